package artifact

import (
	"os"
	"strings"
	"testing"

	"storewatch/internal/core/uptime"
)

func TestWriteSortsAndFormats(t *testing.T) {
	w := NewWriter(t.TempDir())

	rows := []uptime.Row{
		{StoreID: "zzz", UptimeHourMin: 60, UptimeDayMin: 1440, UptimeWeekMin: 10080},
		{StoreID: "aaa", DowntimeHourMin: 60, DowntimeDayMin: 90, DowntimeWeekMin: 30},
	}
	ref, err := w.Write("r-123", rows)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !strings.HasPrefix(ref, "file://") || !strings.HasSuffix(ref, "/reports/r-123.csv") {
		t.Fatalf("unexpected ref %q", ref)
	}

	raw, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), raw)
	}
	wantHeader := "store_id,uptime_last_hour,uptime_last_day,uptime_last_week," +
		"downtime_last_hour,downtime_last_day,downtime_last_week"
	if lines[0] != wantHeader {
		t.Fatalf("header = %q", lines[0])
	}
	// rows sorted by store_id; day/week columns rendered as 2dp hours
	if lines[1] != "aaa,0,0.00,0.00,60,1.50,0.50" {
		t.Fatalf("row[0] = %q", lines[1])
	}
	if lines[2] != "zzz,60,24.00,168.00,0,0.00,0.00" {
		t.Fatalf("row[1] = %q", lines[2])
	}
}

func TestWriteEmptyReportStillHasHeader(t *testing.T) {
	w := NewWriter(t.TempDir())
	ref, err := w.Write("empty", nil)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	raw, err := os.ReadFile(strings.TrimPrefix(ref, "file://"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if got := strings.Count(string(raw), "\n"); got != 1 {
		t.Fatalf("expected header only, got %q", raw)
	}
}

func TestPublicURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"file:///data/reports/abc.csv", "/files/reports/abc.csv"},
		{"file:///data/reports/abc.json", "/files/reports/abc.csv"}, // JSON-era reference
		{"https://cdn.example.com/r/abc.csv", "https://cdn.example.com/r/abc.csv"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := PublicURL(tc.in); got != tc.want {
			t.Fatalf("PublicURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
