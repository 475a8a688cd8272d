package domain

import "time"

// DateLayout is the ISO calendar date used as the day-record key.
const DateLayout = "2006-01-02"

// DefaultUptimePct seeds every new day record.
const DefaultUptimePct = 100.0

// DayRecord is the worst status observed for a component on one calendar
// day. (Date, ComponentID) is unique.
type DayRecord struct {
	Date        string  `json:"date"`
	ComponentID string  `json:"component_id"`
	Status      Status  `json:"status"`
	UptimePct   float64 `json:"uptime_pct"`
}

// DateOf returns the UTC calendar date of t.
func DateOf(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// DayNumber returns the number of whole days between the epoch and the UTC
// calendar date of t. It orders day records without parsing dates.
func DayNumber(t time.Time) int64 {
	u := t.UTC()
	midnight := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return midnight.Unix() / 86400
}

// Merge applies an observation to r. The stored status is only replaced by
// a strictly more severe one, so a day's status never decreases.
func (r *DayRecord) Merge(status Status) bool {
	if status.Outranks(r.Status) {
		r.Status = status
		return true
	}
	return false
}

// MergeHistory applies an observation on date to a newest-first history
// slice and returns the updated slice, trimmed to limit entries when
// limit > 0. A missing day is prepended with the seeded uptime.
func MergeHistory(history []DayRecord, componentID, date string, status Status, limit int) []DayRecord {
	if len(history) > 0 && history[0].Date == date {
		history[0].Merge(status)
		return history
	}
	out := make([]DayRecord, 0, len(history)+1)
	out = append(out, DayRecord{
		Date:        date,
		ComponentID: componentID,
		Status:      status,
		UptimePct:   DefaultUptimePct,
	})
	out = append(out, history...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
