package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/statuspage/internal/domain"
)

// recordScript upserts one day record atomically. It returns 1 when the day
// was created, 2 when its status was raised and 0 otherwise.
//
// KEYS: status hash, uptime hash, days zset, components set
// ARGV: date, status, day number, component id, seeded uptime
var recordScript = redis.NewScript(`
local rank = ` + rankTable() + `
local cur = redis.call('HGET', KEYS[1], ARGV[1])
if not cur then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
  redis.call('HSET', KEYS[2], ARGV[1], ARGV[5])
  redis.call('ZADD', KEYS[3], ARGV[3], ARGV[1])
  redis.call('SADD', KEYS[4], ARGV[4])
  return 1
end
if (rank[ARGV[2]] or 0) > (rank[cur] or 0) then
  redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
  return 2
end
return 0
`)

// rankTable renders the severity priorities as a Lua table literal so the
// script and domain.Status.Priority share one ordering.
func rankTable() string {
	parts := make([]string, 0, len(domain.AllStatuses))
	for _, st := range domain.AllStatuses {
		parts = append(parts, fmt.Sprintf("[%q]=%d", string(st), st.Priority()))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// RecordObservation upserts today's day record for a component. A new day
// starts at uptime 100 whatever the status. An existing day only changes
// when status is strictly more severe than the stored one.
func (s *Store) RecordObservation(ctx context.Context, componentID string, status domain.Status) error {
	if !status.Valid() {
		return fmt.Errorf("record observation for %s: %w: %q", componentID, domain.ErrInvalidStatus, status)
	}

	now := s.now()
	keys := []string{
		HistoryStatusKey(componentID),
		HistoryUptimeKey(componentID),
		HistoryDaysKey(componentID),
		KeyHistoryComponents,
	}
	args := []any{
		domain.DateOf(now),
		string(status),
		domain.DayNumber(now),
		componentID,
		strconv.FormatFloat(domain.DefaultUptimePct, 'f', -1, 64),
	}

	if _, err := recordScript.Run(ctx, s.client, keys, args...).Int(); err != nil {
		return fmt.Errorf("failed to record observation for %s: %w", componentID, err)
	}
	return nil
}

// GetHistory returns up to limit day records for a component, newest first.
func (s *Store) GetHistory(ctx context.Context, componentID string, limit int) ([]domain.DayRecord, error) {
	if limit <= 0 {
		return []domain.DayRecord{}, nil
	}

	dates, err := s.client.ZRevRange(ctx, HistoryDaysKey(componentID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list history days: %w", err)
	}
	if len(dates) == 0 {
		return []domain.DayRecord{}, nil
	}

	pipe := s.client.Pipeline()
	statusCmd := pipe.HMGet(ctx, HistoryStatusKey(componentID), dates...)
	uptimeCmd := pipe.HMGet(ctx, HistoryUptimeKey(componentID), dates...)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}

	statuses := statusCmd.Val()
	uptimes := uptimeCmd.Val()

	records := make([]domain.DayRecord, 0, len(dates))
	for i, date := range dates {
		raw, ok := statuses[i].(string)
		if !ok {
			// Index and hash drifted apart; skip the orphan day
			continue
		}
		rec := domain.DayRecord{
			Date:        date,
			ComponentID: componentID,
			Status:      domain.Status(raw),
			UptimePct:   domain.DefaultUptimePct,
		}
		if u, ok := uptimes[i].(string); ok {
			if pct, err := strconv.ParseFloat(u, 64); err == nil {
				rec.UptimePct = pct
			}
		}
		records = append(records, rec)
	}

	return records, nil
}

// PurgeOlderThan deletes day records dated before today - retentionDays and
// returns how many were removed.
func (s *Store) PurgeOlderThan(ctx context.Context, retentionDays int) (int, error) {
	cutoff := domain.DayNumber(s.now()) - int64(retentionDays)
	maxScore := "(" + strconv.FormatInt(cutoff, 10)

	components, err := s.client.SMembers(ctx, KeyHistoryComponents).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list history components: %w", err)
	}

	purged := 0
	for _, id := range components {
		dates, err := s.client.ZRangeByScore(ctx, HistoryDaysKey(id), &redis.ZRangeBy{
			Min: "-inf",
			Max: maxScore,
		}).Result()
		if err != nil {
			return purged, fmt.Errorf("failed to list expired days for %s: %w", id, err)
		}
		if len(dates) == 0 {
			continue
		}

		members := make([]any, len(dates))
		for i, d := range dates {
			members[i] = d
		}

		_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HDel(ctx, HistoryStatusKey(id), dates...)
			pipe.HDel(ctx, HistoryUptimeKey(id), dates...)
			pipe.ZRem(ctx, HistoryDaysKey(id), members...)
			return nil
		})
		if err != nil {
			return purged, fmt.Errorf("failed to purge history for %s: %w", id, err)
		}
		purged += len(dates)
	}

	return purged, nil
}
