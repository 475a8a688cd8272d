package catalog

import (
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
)

// envVar matches ${NAME} placeholders. Probe headers often carry tokens
// that must not live in the catalog file itself.
var envVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Map converts a validated catalog file into the domain catalog.
func Map(f File) *domain.Catalog {
	cat := &domain.Catalog{Groups: make([]*domain.Group, 0, len(f))}

	for _, g := range f {
		group := &domain.Group{
			ID:         g.ID,
			Name:       g.Name,
			Components: make([]*domain.Component, 0, len(g.Services)),
		}
		for _, s := range g.Services {
			group.Components = append(group.Components, mapComponent(g.ID, s))
		}
		cat.Groups = append(cat.Groups, group)
	}

	return cat
}

func mapComponent(groupID string, s ComponentSpec) *domain.Component {
	c := &domain.Component{
		ID:      s.ID,
		Name:    s.Name,
		GroupID: groupID,
		URL:     expandEnv(s.URL),
	}
	if s.Interval != nil {
		c.Interval = time.Duration(*s.Interval * float64(time.Second))
	}

	if p := s.ProbeConfig; p != nil {
		pc := &domain.ProbeConfig{
			Method: strings.ToUpper(p.Method),
			Body:   p.Body,
		}
		if len(p.Headers) > 0 {
			pc.Headers = make(map[string]string, len(p.Headers))
			for k, v := range p.Headers {
				pc.Headers[k] = expandEnv(v)
			}
		}
		if p.ExpectedStatus != nil {
			pc.ExpectedStatus = *p.ExpectedStatus
		}
		if p.Timeout != nil {
			pc.Timeout = time.Duration(*p.Timeout * float64(time.Millisecond))
		}
		c.Probe = pc
	}

	return c
}

// expandEnv replaces ${NAME} with the environment value (empty if unset).
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envVar.ReplaceAllStringFunc(s, func(m string) string {
		return os.Getenv(envVar.FindStringSubmatch(m)[1])
	})
}
