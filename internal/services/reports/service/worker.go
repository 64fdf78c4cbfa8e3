package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"storewatch/internal/core/minutes"
	"storewatch/internal/core/uptime"
	perr "storewatch/internal/platform/errors"
	"storewatch/internal/platform/logger"

	dom "storewatch/internal/services/reports/domain"
)

// RunLoop consumes the report job queue until the context ends.
// Leased jobs that fail are requeued with backoff; at-least-once delivery,
// with Run's terminal short-circuit absorbing redelivery
func (s *Svc) RunLoop(ctx context.Context) error {
	log := logger.Named("reports-runner")

	ticker := time.NewTicker(s.cfg.PollEvery)
	defer ticker.Stop()
	reap := time.NewTicker(5 * time.Minute)
	defer reap.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-reap.C:
			if n, err := s.repo.ReapStale(ctx, s.cfg.HardDeadline); err != nil {
				log.Error().Err(err).Msg("reap stale reports failed")
			} else if n > 0 {
				log.Warn().Int64("reaped", n).Msg("failed stale running reports")
			}
		case <-ticker.C:
			jobs, err := s.repo.LeaseJobs(ctx, s.cfg.WorkerID, s.cfg.QueueTakeBatch, s.cfg.LeaseFor)
			if err != nil {
				log.Error().Err(err).Msg("lease report jobs failed")
				continue
			}
			for _, j := range jobs {
				if err := s.Run(ctx, j); err != nil {
					log.Warn().Err(err).Int64("job_id", j.JobID).Str("report_id", j.ReportID).Msg("report job failed")
					next := time.Now().Add(backoffAfter(j.Attempts, s.cfg.RetryBase))
					if rqErr := s.repo.RequeueJob(ctx, j.JobID, err.Error(), next); rqErr != nil {
						log.Error().Err(rqErr).Int64("job_id", j.JobID).Msg("requeue failed")
					}
					continue
				}
				if err := s.repo.CompleteJob(ctx, j.JobID); err != nil {
					log.Error().Err(err).Int64("job_id", j.JobID).Msg("ack failed")
				}
			}
		}
	}
}

// Run executes one report generation job end to end.
// Reports already in a terminal state are acknowledged without work, so a
// redelivered job after a crash or lease expiry is harmless
func (s *Svc) Run(ctx context.Context, job dom.Job) error {
	ctx = logger.WithReport(ctx, job.ReportID)
	log := logger.C(ctx)

	rep, err := s.repo.GetReport(ctx, job.ReportID)
	if err != nil {
		return err
	}
	if rep.Status.Terminal() {
		log.Info().Str("status", string(rep.Status)).Msg("report already terminal, skipping")
		return nil
	}
	if rep.Status == dom.StatusPending {
		if ok, err := s.repo.MarkRunning(ctx, job.ReportID); err != nil {
			return err
		} else if !ok {
			// lost the PENDING guard; re-read and bail if another worker finished it
			rep, err = s.repo.GetReport(ctx, job.ReportID)
			if err != nil {
				return err
			}
			if rep.Status.Terminal() {
				return nil
			}
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, s.cfg.HardDeadline)
	defer cancel()

	ref, err := s.generate(runCtx, job)
	if err != nil {
		if _, ferr := s.repo.MarkFailed(ctx, job.ReportID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("mark failed did not stick")
		}
		return err
	}
	if ok, err := s.repo.MarkComplete(ctx, job.ReportID, ref); err != nil {
		return err
	} else if !ok {
		log.Warn().Msg("report no longer RUNNING at completion; artifact kept, state untouched")
	}
	return nil
}

// generate computes the full report and writes the artifact, returning the
// internal file reference
func (s *Svc) generate(ctx context.Context, job dom.Job) (string, error) {
	log := logger.C(ctx)
	started := time.Now()

	soft := time.AfterFunc(s.cfg.SoftDeadline, func() {
		log.Warn().Dur("soft_deadline", s.cfg.SoftDeadline).Msg("report run exceeding soft time budget")
	})
	defer soft.Stop()

	anchor, ok, err := s.repo.MaxTimestampUTC(ctx)
	if err != nil {
		return "", err
	}
	if !ok {
		// empty poll corpus; anchor on wall clock so the artifact still exists
		anchor = time.Now().UTC()
	}
	left := lookbackLeft(anchor)

	ids, err := s.repo.StoreIDs(ctx, job.MaxStores)
	if err != nil {
		return "", err
	}

	var (
		mu      sync.Mutex
		rows    []uptime.Row
		skipped int
		wg      sync.WaitGroup
	)
	sem := make(chan struct{}, max(1, s.cfg.Concurrency))
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(storeID string) {
			defer wg.Done()
			defer func() { <-sem }()
			row, include, err := s.computeStore(ctx, storeID, anchor, left)
			if err != nil {
				log.Warn().Err(err).Str("store_id", storeID).Msg("store skipped")
				mu.Lock()
				skipped++
				mu.Unlock()
				return
			}
			if !include {
				return
			}
			mu.Lock()
			rows = append(rows, row)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return "", perr.Timeoutf("report generation aborted after %s: %v", time.Since(started).Round(time.Second), err)
	}

	ref, err := s.artifacts.Write(job.ReportID, rows)
	if err != nil {
		return "", err
	}
	log.Info().
		Int("stores", len(ids)).
		Int("rows", len(rows)).
		Int("skipped", skipped).
		Dur("elapsed", time.Since(started)).
		Msg("report generated")
	return ref, nil
}

// computeStore loads one store's inputs and runs the interval sweep.
// include=false means the store has no polls in the window and is left out
// of the artifact entirely
func (s *Svc) computeStore(ctx context.Context, storeID string, anchorUTC, leftUTC time.Time) (uptime.Row, bool, error) {
	samples, err := s.repo.PollsSince(ctx, storeID, leftUTC)
	if err != nil {
		return uptime.Row{}, false, err
	}
	rules, err := s.repo.Hours(ctx, storeID)
	if err != nil {
		return uptime.Row{}, false, err
	}

	tzName, found, err := s.repo.Timezone(ctx, storeID)
	if err != nil {
		return uptime.Row{}, false, err
	}
	if !found || strings.TrimSpace(tzName) == "" {
		tzName = DefaultTimezone
	}
	loc, err := time.LoadLocation(strings.TrimSpace(tzName))
	if err != nil {
		logger.C(ctx).Warn().Str("store_id", storeID).Str("tz", tzName).Msg("unknown timezone, using UTC")
		loc = time.UTC
	}

	return uptime.ComputeRow(storeID, samples, rules, loc, anchorUTC)
}

// lookbackLeft returns the oldest UTC instant fetched for a run. The window
// is measured from the floored anchor minute, matching the engine's
// now_local, so a boundary seed sample cannot fall just outside the fetch
func lookbackLeft(anchor time.Time) time.Time {
	return minutes.FloorMinute(anchor).Add(-uptime.LookbackMinutes * time.Minute)
}

// backoffAfter grows exponentially from base, capped at ten minutes
func backoffAfter(attempts int, base time.Duration) time.Duration {
	d := base
	for i := 0; i < attempts && d < 10*time.Minute; i++ {
		d *= 2
	}
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}
