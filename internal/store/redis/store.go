package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a requested incident or maintenance window
// does not exist.
var ErrNotFound = errors.New("not found")

// Store handles Redis operations for day records, incidents and
// maintenance windows.
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source (tests pin "today" with it).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether Redis answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
