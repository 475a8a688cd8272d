package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
)

// SaveMaintenance stores a new maintenance window. ID and CreatedAt are
// assigned here.
func (s *Store) SaveMaintenance(ctx context.Context, w *domain.MaintenanceWindow) (*domain.MaintenanceWindow, error) {
	stored := *w
	stored.ID = uuid.NewString()
	stored.CreatedAt = s.now().UTC()

	data, err := json.Marshal(&stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal maintenance: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, MaintenanceKey(stored.ID), data, 0)
		pipe.ZAdd(ctx, KeyMaintenanceAll, redis.Z{Score: msScore(stored.EndTime), Member: stored.ID})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save maintenance: %w", err)
	}
	return &stored, nil
}

// ActiveMaintenance returns windows that have not ended yet, earliest
// start first.
func (s *Store) ActiveMaintenance(ctx context.Context) ([]*domain.MaintenanceWindow, error) {
	ids, err := s.client.ZRangeByScore(ctx, KeyMaintenanceAll, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(s.now().UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active maintenance: %w", err)
	}

	windows, err := s.loadMaintenance(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(windows, func(i, j int) bool {
		return windows[i].StartTime.Before(windows[j].StartTime)
	})
	return windows, nil
}

// PastMaintenanceSince returns windows that ended between since and now,
// most recently ended first, at most limit of them.
func (s *Store) PastMaintenanceSince(ctx context.Context, since time.Time, limit int) ([]*domain.MaintenanceWindow, error) {
	ids, err := s.client.ZRevRangeByScore(ctx, KeyMaintenanceAll, &redis.ZRangeBy{
		Min:   "(" + strconv.FormatInt(since.UnixMilli(), 10),
		Max:   "(" + strconv.FormatInt(s.now().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list past maintenance: %w", err)
	}
	return s.loadMaintenance(ctx, ids)
}

// DeleteMaintenance removes a maintenance window.
func (s *Store) DeleteMaintenance(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, MaintenanceKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete maintenance: %w", err)
	}
	if err := s.client.ZRem(ctx, KeyMaintenanceAll, id).Err(); err != nil {
		return fmt.Errorf("failed to remove maintenance from index: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("maintenance %s: %w", id, ErrNotFound)
	}
	return nil
}

// ClearFinishedMaintenance deletes every window whose end time has passed.
func (s *Store) ClearFinishedMaintenance(ctx context.Context) (int, error) {
	ids, err := s.client.ZRangeByScore(ctx, KeyMaintenanceAll, &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(s.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list finished maintenance: %w", err)
	}
	for _, id := range ids {
		if err := s.DeleteMaintenance(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return 0, err
		}
	}
	return len(ids), nil
}

func (s *Store) loadMaintenance(ctx context.Context, ids []string) ([]*domain.MaintenanceWindow, error) {
	out := make([]*domain.MaintenanceWindow, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, MaintenanceKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to get maintenance: %w", err)
		}
		var w domain.MaintenanceWindow
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("failed to unmarshal maintenance: %w", err)
		}
		out = append(out, &w)
	}
	return out, nil
}
