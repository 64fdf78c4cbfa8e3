package service

import (
	"testing"
	"time"

	"storewatch/internal/core/uptime"
)

func TestConfigNormalizeDefaults(t *testing.T) {
	var c Config
	c.normalize()

	if c.Concurrency != 8 || c.QueueTakeBatch != 1 {
		t.Fatalf("worker defaults: %+v", c)
	}
	if c.SoftDeadline != 25*time.Minute || c.HardDeadline != 30*time.Minute {
		t.Fatalf("deadline defaults: %+v", c)
	}
	if c.LeaseFor <= c.HardDeadline {
		t.Fatalf("lease %v must outlive the hard deadline %v", c.LeaseFor, c.HardDeadline)
	}
	if c.WorkerID == "" {
		t.Fatalf("worker id must be generated")
	}
}

func TestConfigNormalizeKeepsLeaseAboveHardDeadline(t *testing.T) {
	c := Config{HardDeadline: time.Hour, LeaseFor: 10 * time.Minute}
	c.normalize()
	if c.LeaseFor <= c.HardDeadline {
		t.Fatalf("lease %v must be pushed past the hard deadline %v", c.LeaseFor, c.HardDeadline)
	}
}

func TestLookbackLeftFloorsAnchor(t *testing.T) {
	anchor := time.Date(2024, 10, 14, 12, 0, 59, 500_000_000, time.UTC)
	want := time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC).Add(-uptime.LookbackMinutes * time.Minute)
	if got := lookbackLeft(anchor); !got.Equal(want) {
		t.Fatalf("lookbackLeft = %v, want %v (anchor seconds must not narrow the window)", got, want)
	}

	aligned := time.Date(2024, 10, 14, 12, 0, 0, 0, time.UTC)
	if got := lookbackLeft(aligned); !got.Equal(want) {
		t.Fatalf("aligned anchor: lookbackLeft = %v, want %v", got, want)
	}
}

func TestBackoffAfter(t *testing.T) {
	base := 5 * time.Second
	if got := backoffAfter(0, base); got != base {
		t.Fatalf("attempt 0: %v", got)
	}
	if got := backoffAfter(3, base); got != 40*time.Second {
		t.Fatalf("attempt 3: %v, want 40s", got)
	}
	if got := backoffAfter(50, base); got != 10*time.Minute {
		t.Fatalf("attempt 50: %v, want capped at 10m", got)
	}
}
