package main

import (
	"log"

	"github.com/MrSnakeDoc/statuspage/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ statuspage failed: %v", err)
	}
}
