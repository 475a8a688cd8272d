package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
)

// ErrIncidentResolved is returned when posting an update to a resolved
// incident. Resolution is terminal.
var ErrIncidentResolved = errors.New("incident already resolved")

// NewIncident holds the operator input for CreateIncident.
type NewIncident struct {
	ComponentID string
	Title       string
	Status      domain.IncidentStatus
	Description string
	UpdateText  string // first update message, defaults to Description
}

// CreateIncident stores a new incident and its first update.
func (s *Store) CreateIncident(ctx context.Context, in NewIncident) (*domain.Incident, error) {
	now := s.now().UTC()
	inc := &domain.Incident{
		ID:          uuid.NewString(),
		ComponentID: in.ComponentID,
		Title:       in.Title,
		Status:      in.Status,
		Description: in.Description,
		CreatedAt:   now,
	}
	if in.Status.Resolved() {
		inc.ResolvedAt = &now
	}

	first := in.UpdateText
	if first == "" {
		first = in.Description
	}
	update := domain.IncidentUpdate{Message: first, Status: in.Status, CreatedAt: now}

	data, err := marshalIncident(inc)
	if err != nil {
		return nil, err
	}
	updateData, err := json.Marshal(update)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal incident update: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, IncidentKey(inc.ID), data, 0)
		pipe.RPush(ctx, IncidentUpdatesKey(inc.ID), updateData)
		pipe.ZAdd(ctx, KeyIncidentsAll, redis.Z{Score: msScore(now), Member: inc.ID})
		if inc.ResolvedAt != nil {
			pipe.ZAdd(ctx, KeyIncidentsResolved, redis.Z{Score: msScore(now), Member: inc.ID})
		} else {
			pipe.ZAdd(ctx, KeyIncidentsOpen, redis.Z{Score: msScore(now), Member: inc.ID})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save incident: %w", err)
	}

	inc.Updates = []domain.IncidentUpdate{update}
	return inc, nil
}

// GetIncident retrieves an incident with its full update log (newest first).
func (s *Store) GetIncident(ctx context.Context, id string) (*domain.Incident, error) {
	inc, err := s.getIncident(ctx, s.client, id)
	if err != nil {
		return nil, err
	}
	updates, err := s.incidentUpdates(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	inc.Updates = updates
	return inc, nil
}

// AppendIncidentUpdate appends an update and moves the incident to status.
// Updates are never edited or removed. Moving to resolved stamps ResolvedAt.
func (s *Store) AppendIncidentUpdate(ctx context.Context, id, message string, status domain.IncidentStatus) (*domain.Incident, error) {
	var out *domain.Incident

	txf := func(tx *redis.Tx) error {
		inc, err := s.getIncident(ctx, tx, id)
		if err != nil {
			return err
		}
		if inc.Status.Resolved() {
			return fmt.Errorf("incident %s: %w", id, ErrIncidentResolved)
		}

		now := s.now().UTC()
		inc.Status = status
		if status.Resolved() {
			inc.ResolvedAt = &now
		}

		data, err := marshalIncident(inc)
		if err != nil {
			return err
		}
		updateData, err := json.Marshal(domain.IncidentUpdate{Message: message, Status: status, CreatedAt: now})
		if err != nil {
			return fmt.Errorf("failed to marshal incident update: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, IncidentKey(id), data, 0)
			pipe.RPush(ctx, IncidentUpdatesKey(id), updateData)
			if inc.ResolvedAt != nil {
				pipe.ZRem(ctx, KeyIncidentsOpen, id)
				pipe.ZAdd(ctx, KeyIncidentsResolved, redis.Z{Score: msScore(now), Member: id})
			}
			return nil
		})
		out = inc
		return err
	}

	if err := s.client.Watch(ctx, txf, IncidentKey(id)); err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			return nil, fmt.Errorf("incident %s was modified concurrently: %w", id, err)
		}
		return nil, err
	}

	updates, err := s.incidentUpdates(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	out.Updates = updates
	return out, nil
}

// DeleteIncident removes an incident and its updates, returning what was
// deleted.
func (s *Store) DeleteIncident(ctx context.Context, id string) (*domain.Incident, error) {
	inc, err := s.getIncident(ctx, s.client, id)
	if err != nil {
		return nil, err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, IncidentKey(id), IncidentUpdatesKey(id))
		pipe.ZRem(ctx, KeyIncidentsAll, id)
		pipe.ZRem(ctx, KeyIncidentsOpen, id)
		pipe.ZRem(ctx, KeyIncidentsResolved, id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete incident: %w", err)
	}
	return inc, nil
}

// OpenIncidents returns unresolved incidents, newest first, each carrying at
// most updatesLimit of its latest updates (0 = all).
func (s *Store) OpenIncidents(ctx context.Context, updatesLimit int) ([]*domain.Incident, error) {
	ids, err := s.client.ZRevRange(ctx, KeyIncidentsOpen, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list open incidents: %w", err)
	}
	return s.loadIncidents(ctx, ids, updatesLimit)
}

// ResolvedIncidentsSince returns incidents resolved after since, most
// recently resolved first, at most limit of them.
func (s *Store) ResolvedIncidentsSince(ctx context.Context, since time.Time, limit int) ([]*domain.Incident, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, KeyIncidentsResolved, &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(since.UnixMilli(), 10),
		Max:   "+inf",
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list resolved incidents: %w", err)
	}
	return s.loadIncidents(ctx, ids, 0)
}

// ClearResolvedIncidents deletes every resolved incident.
func (s *Store) ClearResolvedIncidents(ctx context.Context) (int, error) {
	ids, err := s.client.ZRange(ctx, KeyIncidentsResolved, 0, -1).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list resolved incidents: %w", err)
	}
	for _, id := range ids {
		if _, err := s.DeleteIncident(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	// Drop dangling index entries as well
	if err := s.client.Del(ctx, KeyIncidentsResolved).Err(); err != nil {
		return 0, fmt.Errorf("failed to clear resolved index: %w", err)
	}
	return len(ids), nil
}

func (s *Store) loadIncidents(ctx context.Context, ids []string, updatesLimit int) ([]*domain.Incident, error) {
	out := make([]*domain.Incident, 0, len(ids))
	for _, id := range ids {
		inc, err := s.getIncident(ctx, s.client, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				// Skip incidents that couldn't be retrieved
				continue
			}
			return nil, err
		}
		updates, err := s.incidentUpdates(ctx, id, updatesLimit)
		if err != nil {
			return nil, err
		}
		inc.Updates = updates
		out = append(out, inc)
	}
	return out, nil
}

func (s *Store) getIncident(ctx context.Context, c getter, id string) (*domain.Incident, error) {
	data, err := c.Get(ctx, IncidentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("incident %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	var inc domain.Incident
	if err := json.Unmarshal(data, &inc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal incident: %w", err)
	}
	return &inc, nil
}

// incidentUpdates returns the latest limit updates (0 = all), newest first.
func (s *Store) incidentUpdates(ctx context.Context, id string, limit int) ([]domain.IncidentUpdate, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raw, err := s.client.LRange(ctx, IncidentUpdatesKey(id), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get incident updates: %w", err)
	}

	updates := make([]domain.IncidentUpdate, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var u domain.IncidentUpdate
		if err := json.Unmarshal([]byte(raw[i]), &u); err != nil {
			return nil, fmt.Errorf("failed to unmarshal incident update: %w", err)
		}
		updates = append(updates, u)
	}
	return updates, nil
}

// getter is satisfied by both *redis.Client and *redis.Tx.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func marshalIncident(inc *domain.Incident) ([]byte, error) {
	stored := *inc
	stored.Updates = nil // kept in their own list
	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal incident: %w", err)
	}
	return data, nil
}

func msScore(t time.Time) float64 {
	return float64(t.UnixMilli())
}
