// Package domain defines report types and the ports exposed by the reports service
package domain

import (
	"context"
	"time"
)

// Status is the persisted lifecycle state of a report
type Status string

// Lifecycle states; transitions are monotonic
// PENDING -> RUNNING -> COMPLETE | FAILED
const (
	StatusPending  Status = "PENDING"
	StatusRunning  Status = "RUNNING"
	StatusComplete Status = "COMPLETE"
	StatusFailed   Status = "FAILED"
)

// Terminal reports true when no further transition is allowed
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusFailed
}

// Display maps the persisted state onto the public API vocabulary.
// Clients only ever see Running, Complete or Failed; a queued report
// is reported as Running
func (s Status) Display() string {
	switch s {
	case StatusComplete:
		return "Complete"
	case StatusFailed:
		return "Failed"
	default:
		return "Running"
	}
}

// Report is a persisted report row
type Report struct {
	ID          string
	Status      Status
	ArtifactRef string // internal file:// reference, set on COMPLETE
	Error       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Job is one queued unit of report generation work
type Job struct {
	JobID     int64
	ReportID  string
	MaxStores int // 0 means all stores
	Attempts  int
	LeasedBy  string
}

// TriggerArgs carries optional knobs for a trigger request
type TriggerArgs struct {
	MaxStores int
}

// TriggerResult is what a trigger returns to the transport layer
type TriggerResult struct {
	ReportID string
	Status   Status
	Existing bool // true when an active report was reused
}

// StatusResult is the public view of a report
type StatusResult struct {
	ReportID string
	Status   Status
	URL      string // populated only when the report is complete
}

// TriggerPort starts (or reuses) a report run
type TriggerPort interface {
	Trigger(ctx context.Context, args TriggerArgs) (TriggerResult, error)
}

// StatusPort resolves the current state of a report
type StatusPort interface {
	Status(ctx context.Context, reportID string) (StatusResult, error)
}

// RunnerPort is the worker surface: a single job body plus the consumer loop
type RunnerPort interface {
	Run(ctx context.Context, job Job) error
	RunLoop(ctx context.Context) error
}

// ArtifactPort serves and resolves published report artifacts
type ArtifactPort interface {
	// ArtifactPath maps a published artifact filename to its on-disk location
	ArtifactPath(name string) string
}
