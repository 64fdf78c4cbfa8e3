// Package repo provides the reports persistence surface
package repo

import (
	"context"
	"errors"
	"time"

	"storewatch/internal/core/uptime"
	"storewatch/internal/modkit/repokit"
	perr "storewatch/internal/platform/errors"
	"storewatch/internal/services/reports/domain"

	"github.com/jackc/pgx/v5"
)

// Repo is the persistence surface used by the reports service layer
type Repo interface {
	// report lifecycle
	InsertReport(ctx context.Context, reportID string) error
	LatestActive(ctx context.Context) (string, bool, error)
	GetReport(ctx context.Context, reportID string) (domain.Report, error)
	MarkRunning(ctx context.Context, reportID string) (bool, error)
	MarkComplete(ctx context.Context, reportID, artifactRef string) (bool, error)
	MarkFailed(ctx context.Context, reportID, msg string) (bool, error)
	ReapStale(ctx context.Context, olderThan time.Duration) (int64, error)

	// job queue
	EnqueueJob(ctx context.Context, reportID string, maxStores int) (int64, error)
	LeaseJobs(ctx context.Context, workerID string, limit int, leaseFor time.Duration) ([]domain.Job, error)
	CompleteJob(ctx context.Context, jobID int64) error
	RequeueJob(ctx context.Context, jobID int64, lastErr string, nextAttemptAt time.Time) error

	// poll corpus reads
	MaxTimestampUTC(ctx context.Context) (time.Time, bool, error)
	StoreIDs(ctx context.Context, limit int) ([]string, error)
	PollsSince(ctx context.Context, storeID string, leftUTC time.Time) ([]uptime.Sample, error)
	Hours(ctx context.Context, storeID string) ([]uptime.Schedule, error)
	Timezone(ctx context.Context, storeID string) (string, bool, error)
}

type (
	// PG is a Postgres implementation of the reports repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// InsertReport creates a fresh PENDING report row
func (r *queries) InsertReport(ctx context.Context, reportID string) error {
	const sqlq = `
		INSERT INTO reports (report_id, status, created_at, updated_at)
		VALUES ($1, 'PENDING', now(), now())
	`
	_, err := r.q.Exec(ctx, sqlq, reportID)
	return err
}

// LatestActive returns the newest PENDING or RUNNING report, if any
func (r *queries) LatestActive(ctx context.Context) (string, bool, error) {
	const sqlq = `
		SELECT report_id
		  FROM reports
		 WHERE status IN ('PENDING', 'RUNNING')
		 ORDER BY created_at DESC
		 LIMIT 1
	`
	rows, err := r.q.Query(ctx, sqlq)
	if err != nil {
		return "", false, err
	}
	defer rows.Close()
	if !rows.Next() {
		return "", false, rows.Err()
	}
	var id string
	if err := rows.Scan(&id); err != nil {
		return "", false, err
	}
	return id, true, rows.Err()
}

// GetReport fetches a report by id
func (r *queries) GetReport(ctx context.Context, reportID string) (domain.Report, error) {
	const sqlq = `
		SELECT report_id, status,
		       COALESCE(artifact_ref, '') AS artifact_ref,
		       COALESCE(last_error, '')   AS last_error,
		       created_at, updated_at
		  FROM reports
		 WHERE report_id = $1
	`
	var rep domain.Report
	var status string
	row := r.q.QueryRow(ctx, sqlq, reportID)
	if err := row.Scan(&rep.ID, &status, &rep.ArtifactRef, &rep.Error, &rep.CreatedAt, &rep.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Report{}, perr.NotFoundf("report %q not found", reportID)
		}
		return domain.Report{}, err
	}
	rep.Status = domain.Status(status)
	return rep, nil
}

// MarkRunning flips PENDING to RUNNING; reports whether the guard matched
func (r *queries) MarkRunning(ctx context.Context, reportID string) (bool, error) {
	const sqlq = `
		UPDATE reports
		   SET status = 'RUNNING', updated_at = now()
		 WHERE report_id = $1 AND status = 'PENDING'
	`
	tag, err := r.q.Exec(ctx, sqlq, reportID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkComplete flips RUNNING to COMPLETE and records the artifact reference
func (r *queries) MarkComplete(ctx context.Context, reportID, artifactRef string) (bool, error) {
	const sqlq = `
		UPDATE reports
		   SET status = 'COMPLETE', artifact_ref = $2, last_error = NULL, updated_at = now()
		 WHERE report_id = $1 AND status = 'RUNNING'
	`
	tag, err := r.q.Exec(ctx, sqlq, reportID, artifactRef)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkFailed moves an active report to FAILED with a diagnostic message
func (r *queries) MarkFailed(ctx context.Context, reportID, msg string) (bool, error) {
	const sqlq = `
		UPDATE reports
		   SET status = 'FAILED', last_error = NULLIF($2, ''), updated_at = now()
		 WHERE report_id = $1 AND status IN ('PENDING', 'RUNNING')
	`
	tag, err := r.q.Exec(ctx, sqlq, reportID, msg)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ReapStale fails RUNNING reports whose last touch is older than the cutoff.
// Covers workers that died mid-run without releasing the report
func (r *queries) ReapStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	const sqlq = `
		UPDATE reports
		   SET status = 'FAILED', last_error = 'stale run reaped', updated_at = now()
		 WHERE status = 'RUNNING' AND updated_at < now() - $1::interval
	`
	tag, err := r.q.Exec(ctx, sqlq, olderThan.String())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
