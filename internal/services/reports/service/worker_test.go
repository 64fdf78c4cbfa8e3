package service

import (
	"context"
	"testing"
	"time"

	"storewatch/internal/core/uptime"
	"storewatch/internal/modkit"

	dom "storewatch/internal/services/reports/domain"
)

// fakeRepo stubs the corpus reads; lifecycle and queue methods are unused here
type fakeRepo struct {
	polls []uptime.Sample
	hours []uptime.Schedule
	tz    string
	tzOK  bool
}

func (f *fakeRepo) InsertReport(context.Context, string) error          { return nil }
func (f *fakeRepo) LatestActive(context.Context) (string, bool, error) { return "", false, nil }
func (f *fakeRepo) GetReport(context.Context, string) (dom.Report, error) {
	return dom.Report{}, nil
}
func (f *fakeRepo) MarkRunning(context.Context, string) (bool, error)          { return false, nil }
func (f *fakeRepo) MarkComplete(context.Context, string, string) (bool, error) { return false, nil }
func (f *fakeRepo) MarkFailed(context.Context, string, string) (bool, error)   { return false, nil }
func (f *fakeRepo) ReapStale(context.Context, time.Duration) (int64, error)    { return 0, nil }
func (f *fakeRepo) EnqueueJob(context.Context, string, int) (int64, error)     { return 0, nil }
func (f *fakeRepo) LeaseJobs(context.Context, string, int, time.Duration) ([]dom.Job, error) {
	return nil, nil
}
func (f *fakeRepo) CompleteJob(context.Context, int64) error                  { return nil }
func (f *fakeRepo) RequeueJob(context.Context, int64, string, time.Time) error { return nil }
func (f *fakeRepo) MaxTimestampUTC(context.Context) (time.Time, bool, error) {
	return time.Time{}, false, nil
}
func (f *fakeRepo) StoreIDs(context.Context, int) ([]string, error) { return nil, nil }
func (f *fakeRepo) PollsSince(context.Context, string, time.Time) ([]uptime.Sample, error) {
	return f.polls, nil
}
func (f *fakeRepo) Hours(context.Context, string) ([]uptime.Schedule, error) {
	return f.hours, nil
}
func (f *fakeRepo) Timezone(context.Context, string) (string, bool, error) {
	return f.tz, f.tzOK, nil
}

func newTestSvc(t *testing.T, repo *fakeRepo) *Svc {
	t.Helper()
	svc := New(modkit.Deps{}, Config{DataDir: t.TempDir()})
	svc.repo = repo
	return svc
}

func TestComputeStoreMissingTimezoneUsesChicago(t *testing.T) {
	// Monday 03:00 UTC is Sunday 22:00 in America/Chicago. A schedule that
	// only opens Sundays covers the last hour under Chicago time but not
	// under UTC, so the uptime column discriminates which zone was used
	anchor := time.Date(2024, 10, 14, 3, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		polls: []uptime.Sample{{TS: anchor, Status: "active"}},
		hours: []uptime.Schedule{{Day: 6, Start: "00:00:00", End: "23:59:59"}},
	}
	svc := newTestSvc(t, repo)

	row, include, err := svc.computeStore(context.Background(), "s1", anchor, anchor.Add(-uptime.LookbackMinutes*time.Minute))
	if err != nil {
		t.Fatalf("computeStore: %v", err)
	}
	if !include {
		t.Fatalf("store with polls must be included")
	}
	if row.UptimeHourMin != 60 || row.DowntimeHourMin != 0 {
		t.Fatalf("hour = (%d up, %d down), want (60, 0)", row.UptimeHourMin, row.DowntimeHourMin)
	}
}

func TestComputeStoreInvalidTimezoneUsesUTC(t *testing.T) {
	// a Monday-only schedule covers the last hour under UTC (Monday 03:00)
	// but not under the Chicago default (still Sunday there)
	anchor := time.Date(2024, 10, 14, 3, 0, 0, 0, time.UTC)
	repo := &fakeRepo{
		polls: []uptime.Sample{{TS: anchor, Status: "active"}},
		hours: []uptime.Schedule{{Day: 0, Start: "00:00:00", End: "23:59:59"}},
		tz:    "Not/AZone",
		tzOK:  true,
	}
	svc := newTestSvc(t, repo)

	row, include, err := svc.computeStore(context.Background(), "s1", anchor, anchor.Add(-uptime.LookbackMinutes*time.Minute))
	if err != nil {
		t.Fatalf("computeStore: %v", err)
	}
	if !include {
		t.Fatalf("store with polls must be included")
	}
	if row.UptimeHourMin != 60 {
		t.Fatalf("uptime_last_hour = %d, want 60 (UTC fallback)", row.UptimeHourMin)
	}
}
