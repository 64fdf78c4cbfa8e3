package repo

import (
	"context"
	"time"

	"storewatch/internal/services/reports/domain"

	"github.com/google/uuid"
)

// EnqueueJob appends one generation job for a report
func (r *queries) EnqueueJob(ctx context.Context, reportID string, maxStores int) (int64, error) {
	const sqlq = `
		INSERT INTO report_jobs (report_id, max_stores, enqueued_at, next_attempt_at)
		VALUES ($1, $2, now(), now())
		RETURNING job_id
	`
	var id int64
	if err := r.q.QueryRow(ctx, sqlq, reportID, maxStores).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// LeaseJobs leases up to limit ready jobs; leaseFor defines the TTL.
// Expired leases are reclaimable, which gives at-least-once delivery
func (r *queries) LeaseJobs(
	ctx context.Context,
	workerID string,
	limit int,
	leaseFor time.Duration,
) ([]domain.Job, error) {
	if workerID == "" {
		workerID = uuid.NewString()
	}
	const sqlq = `
		WITH ready AS (
			SELECT job_id
			  FROM report_jobs
			 WHERE (leased_by IS NULL OR lease_expires_at < now())
			   AND next_attempt_at <= now()
			 ORDER BY next_attempt_at ASC
			 LIMIT $1
			 FOR UPDATE SKIP LOCKED
		), upd AS (
			UPDATE report_jobs j
			   SET leased_by = $2,
			       lease_expires_at = now() + $3::interval
			 WHERE j.job_id IN (SELECT job_id FROM ready)
			RETURNING j.*
		)
		SELECT job_id, report_id, max_stores, attempts, COALESCE(leased_by, $2) AS leased_by
		  FROM upd
	`
	rows, err := r.q.Query(ctx, sqlq, limit, workerID, leaseFor.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Job
	for rows.Next() {
		var j domain.Job
		if err := rows.Scan(&j.JobID, &j.ReportID, &j.MaxStores, &j.Attempts, &j.LeasedBy); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CompleteJob removes a finished job from the queue
func (r *queries) CompleteJob(ctx context.Context, jobID int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM report_jobs WHERE job_id = $1`, jobID)
	return err
}

// RequeueJob re-schedules a job after an error and clears the lease
func (r *queries) RequeueJob(ctx context.Context, jobID int64, lastErr string, nextAttemptAt time.Time) error {
	const sqlq = `
		UPDATE report_jobs
		   SET attempts         = attempts + 1,
		       last_error       = NULLIF($2, ''),
		       next_attempt_at  = $3,
		       leased_by        = NULL,
		       lease_expires_at = NULL
		 WHERE job_id = $1
	`
	_, err := r.q.Exec(ctx, sqlq, jobID, lastErr, nextAttemptAt)
	return err
}
