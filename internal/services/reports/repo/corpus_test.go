package repo

import (
	"context"
	"testing"
	"time"

	"storewatch/internal/platform/store"
)

func TestParseTimestampUTC(t *testing.T) {
	cases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2024-10-14 03:04:50.872817 UTC", time.Date(2024, 10, 14, 3, 4, 50, 872817000, time.UTC), true},
		{"2024-10-14 03:04:50 UTC", time.Date(2024, 10, 14, 3, 4, 50, 0, time.UTC), true},
		{"2024-10-14 03:04:50.5", time.Date(2024, 10, 14, 3, 4, 50, 500000000, time.UTC), true},
		{"  2024-10-14 03:04:50 UTC  ", time.Date(2024, 10, 14, 3, 4, 50, 0, time.UTC), true},
		{"2024-10-14T03:04:50Z", time.Date(2024, 10, 14, 3, 4, 50, 0, time.UTC), true},
		{"not a timestamp", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseTimestampUTC(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseTimestampUTC(%q): err = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("ParseTimestampUTC(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

// stubRows replays canned string rows through the store.Rows seam
type stubRows struct {
	rows [][]string
	i    int
}

func (r *stubRows) Next() bool { r.i++; return r.i <= len(r.rows) }
func (r *stubRows) Scan(dest ...any) error {
	row := r.rows[r.i-1]
	for i, d := range dest {
		*(d.(*string)) = row[i]
	}
	return nil
}
func (r *stubRows) Err() error        { return nil }
func (r *stubRows) Close()            {}
func (r *stubRows) Columns() []string { return nil }

type stubQueryer struct{ rows *stubRows }

func (q stubQueryer) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, nil
}
func (q stubQueryer) Query(context.Context, string, ...any) (store.Rows, error) {
	return q.rows, nil
}
func (q stubQueryer) QueryRow(context.Context, string, ...any) store.Row { return nil }

func TestPollsSinceMalformedTimestampIsFatal(t *testing.T) {
	left := time.Date(2024, 10, 6, 0, 0, 0, 0, time.UTC)

	good := NewPG().Bind(stubQueryer{rows: &stubRows{rows: [][]string{
		{"active", "2024-10-14 03:04:50.872817 UTC"},
		{"inactive", "2024-10-14 03:14:50 UTC"},
	}}})
	samples, err := good.PollsSince(context.Background(), "s1", left)
	if err != nil {
		t.Fatalf("PollsSince: %v", err)
	}
	if len(samples) != 2 || samples[0].Status != "active" {
		t.Fatalf("samples = %+v", samples)
	}

	// one corrupt timestamp poisons the store's read instead of vanishing
	bad := NewPG().Bind(stubQueryer{rows: &stubRows{rows: [][]string{
		{"active", "2024-10-14 03:04:50 UTC"},
		{"active", "yesterday-ish"},
	}}})
	if _, err := bad.PollsSince(context.Background(), "s1", left); err == nil {
		t.Fatalf("malformed timestamp must fail the read")
	}
}
