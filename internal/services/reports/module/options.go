package module

import (
	"time"

	"storewatch/internal/platform/config"
)

// Options controls the reports service and runner
type Options struct {
	Concurrency    int
	QueueTakeBatch int
	PollEvery      time.Duration
	LeaseFor       time.Duration
	SoftDeadline   time.Duration
	HardDeadline   time.Duration
	RetryBase      time.Duration
	DataDir        string
	WorkerID       string
}

// FromConfig reads with REPORTS_ prefix
func FromConfig(cfg config.Conf) Options {
	c := cfg.Prefix("REPORTS_")
	return Options{
		Concurrency:    c.MayInt("WORKER_CONCURRENCY", 8),
		QueueTakeBatch: c.MayInt("QUEUE_TAKE_BATCH", 1),
		PollEvery:      c.MayDuration("QUEUE_POLL_EVERY", 2*time.Second),
		LeaseFor:       c.MayDuration("LEASE_FOR", 35*time.Minute),
		SoftDeadline:   c.MayDuration("SOFT_DEADLINE", 25*time.Minute),
		HardDeadline:   c.MayDuration("HARD_DEADLINE", 30*time.Minute),
		RetryBase:      c.MayDuration("RETRY_BASE", 5*time.Second),
		DataDir:        c.MayString("DATA_DIR", "./data"),
		WorkerID:       c.MayString("WORKER_ID", ""),
	}
}
