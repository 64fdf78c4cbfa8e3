package repo

import (
	"context"
	"strings"
	"time"

	"storewatch/internal/core/uptime"
	perr "storewatch/internal/platform/errors"
)

// Poll timestamps arrive as raw text in the form
// "2024-10-14 03:04:50.872817 UTC"; the suffix and the fractional part
// are both optional. Stored verbatim, parsed on read
var tsLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

// ParseTimestampUTC parses a raw poll timestamp, tolerating a trailing " UTC"
func ParseTimestampUTC(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, " UTC"))
	for _, layout := range tsLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, perr.Newf(perr.ErrorCodeInvalidArgument, "unparseable poll timestamp %q", raw)
}

// MaxTimestampUTC returns the newest poll timestamp across all stores.
// The format is fixed-width so the lexicographic MAX is the chronological one
func (r *queries) MaxTimestampUTC(ctx context.Context) (time.Time, bool, error) {
	var raw string
	row := r.q.QueryRow(ctx, `SELECT COALESCE(MAX(ts_utc), '') FROM store_status`)
	if err := row.Scan(&raw); err != nil {
		return time.Time{}, false, err
	}
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := ParseTimestampUTC(raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// StoreIDs returns the distinct store universe across all three input tables.
// limit <= 0 means no cap
func (r *queries) StoreIDs(ctx context.Context, limit int) ([]string, error) {
	const sqlq = `
		SELECT store_id FROM (
			SELECT store_id FROM store_status
			UNION
			SELECT store_id FROM store_hours
			UNION
			SELECT store_id FROM store_timezones
		) u
		ORDER BY store_id
		LIMIT NULLIF($1, 0)
	`
	if limit < 0 {
		limit = 0
	}
	rows, err := r.q.Query(ctx, sqlq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PollsSince returns a store's polls at or after leftUTC. A timestamp that
// fails to parse fails the whole read; the caller decides what to do with
// the store. Status filtering happens later in normalization
func (r *queries) PollsSince(ctx context.Context, storeID string, leftUTC time.Time) ([]uptime.Sample, error) {
	const sqlq = `
		SELECT status, ts_utc
		  FROM store_status
		 WHERE store_id = $1 AND ts_utc >= $2
	`
	left := leftUTC.UTC().Format("2006-01-02 15:04:05")
	rows, err := r.q.Query(ctx, sqlq, storeID, left)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uptime.Sample
	for rows.Next() {
		var status, raw string
		if err := rows.Scan(&status, &raw); err != nil {
			return nil, err
		}
		ts, err := ParseTimestampUTC(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, uptime.Sample{TS: ts, Status: status})
	}
	return out, rows.Err()
}

// Hours returns a store's local business-hour rules; empty means 24x7
func (r *queries) Hours(ctx context.Context, storeID string) ([]uptime.Schedule, error) {
	const sqlq = `
		SELECT day_of_week, start_time_local, end_time_local
		  FROM store_hours
		 WHERE store_id = $1
	`
	rows, err := r.q.Query(ctx, sqlq, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uptime.Schedule
	for rows.Next() {
		var s uptime.Schedule
		if err := rows.Scan(&s.Day, &s.Start, &s.End); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Timezone returns the store's IANA timezone name, if one is recorded
func (r *queries) Timezone(ctx context.Context, storeID string) (string, bool, error) {
	rows, err := r.q.Query(ctx, `SELECT timezone_str FROM store_timezones WHERE store_id = $1`, storeID)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var tz string
	if err := rows.Scan(&tz); err != nil {
		return "", false, err
	}
	return tz, true, rows.Err()
}
