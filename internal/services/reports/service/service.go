// Package service implements the report trigger, status and runner ports
package service

import (
	"context"
	"strings"
	"time"

	"storewatch/internal/adapters/artifact"
	"storewatch/internal/modkit"
	"storewatch/internal/modkit/repokit"
	perr "storewatch/internal/platform/errors"

	dom "storewatch/internal/services/reports/domain"
	rrepo "storewatch/internal/services/reports/repo"

	"github.com/google/uuid"
)

// DefaultTimezone is assumed for stores with no timezone record
const DefaultTimezone = "America/Chicago"

// Service implements all reports ports
type Service interface {
	dom.TriggerPort
	dom.StatusPort
	dom.RunnerPort
	dom.ArtifactPort
}

// Config controls the runner
type Config struct {
	Concurrency    int           // per-report store workers
	QueueTakeBatch int           // jobs leased per poll
	PollEvery      time.Duration // queue poll interval
	LeaseFor       time.Duration // job lease TTL; must outlive HardDeadline
	SoftDeadline   time.Duration // log a warning past this
	HardDeadline   time.Duration // fail the report past this
	RetryBase      time.Duration // base backoff between job attempts
	DataDir        string        // artifact root
	WorkerID       string
}

func (c *Config) normalize() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.QueueTakeBatch <= 0 {
		c.QueueTakeBatch = 1
	}
	if c.PollEvery <= 0 {
		c.PollEvery = 2 * time.Second
	}
	if c.SoftDeadline <= 0 {
		c.SoftDeadline = 25 * time.Minute
	}
	if c.HardDeadline <= 0 {
		c.HardDeadline = 30 * time.Minute
	}
	if c.LeaseFor <= c.HardDeadline {
		c.LeaseFor = c.HardDeadline + 5*time.Minute
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 5 * time.Second
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.WorkerID == "" {
		c.WorkerID = uuid.NewString()
	}
}

// Svc implements the reports service
type Svc struct {
	db     repokit.TxRunner
	binder repokit.Binder[rrepo.Repo]
	repo   rrepo.Repo

	artifacts *artifact.Writer
	cfg       Config
	deps      modkit.Deps
}

// New constructs the service
func New(deps modkit.Deps, cfg Config) *Svc {
	cfg.normalize()
	b := rrepo.NewPG()
	return &Svc{
		db:        deps.PG,
		binder:    b,
		repo:      b.Bind(deps.PG),
		artifacts: artifact.NewWriter(cfg.DataDir),
		cfg:       cfg,
		deps:      deps,
	}
}

// Trigger starts a new report run, or returns the active one when a run is
// already pending or in flight. Creating the row and enqueuing its job happen
// in one transaction so a report can never exist without a job or vice versa
func (s *Svc) Trigger(ctx context.Context, args dom.TriggerArgs) (dom.TriggerResult, error) {
	var res dom.TriggerResult
	err := repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		r := s.binder.Bind(q)

		if id, ok, err := r.LatestActive(ctx); err != nil {
			return err
		} else if ok {
			rep, err := r.GetReport(ctx, id)
			if err != nil {
				return err
			}
			res = dom.TriggerResult{ReportID: rep.ID, Status: rep.Status, Existing: true}
			return nil
		}

		id := uuid.NewString()
		if err := r.InsertReport(ctx, id); err != nil {
			return err
		}
		if _, err := r.EnqueueJob(ctx, id, args.MaxStores); err != nil {
			return err
		}
		res = dom.TriggerResult{ReportID: id, Status: dom.StatusPending}
		return nil
	})
	return res, err
}

// Status resolves the public view of a report. The artifact reference is
// translated to a public URL only once the report is complete
func (s *Svc) Status(ctx context.Context, reportID string) (dom.StatusResult, error) {
	if strings.TrimSpace(reportID) == "" {
		return dom.StatusResult{}, perr.InvalidArgf("report_id is required")
	}
	rep, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return dom.StatusResult{}, err
	}
	out := dom.StatusResult{ReportID: rep.ID, Status: rep.Status}
	if rep.Status == dom.StatusComplete {
		out.URL = artifact.PublicURL(rep.ArtifactRef)
	}
	return out, nil
}

// ArtifactPath maps a published artifact filename to its on-disk location
func (s *Svc) ArtifactPath(name string) string {
	return s.artifacts.Path(name)
}
