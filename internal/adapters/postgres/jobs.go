package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"beacon/internal/ports"
)

// ClaimNext selects the next queued job using SKIP LOCKED and marks it running.
func (db *DB) ClaimNext(ctx context.Context) (job ports.ScanJob, found bool, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return job, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id, scan_id FROM scan_jobs
		WHERE status = 'queued'
		ORDER BY queued_at
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&job.ID, &job.ScanID)
	if errors.Is(err, pgx.ErrNoRows) {
		return job, false, nil
	}
	if err != nil {
		return job, false, err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE scan_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1
	`, job.ID); err != nil {
		return job, false, err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE scans SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1
	`, job.ScanID); err != nil {
		return job, false, err
	}
	return job, true, nil
}

func (db *DB) UpdateScanProgress(ctx context.Context, scanID string, phase string, progress float64) error {
	progress = max(0, min(1, progress))
	_, err := db.Pool.Exec(ctx, `UPDATE scans SET progress=GREATEST(progress, $2), phase=$3 WHERE id=$1`, scanID, progress, phase)
	return err
}

func (db *DB) MarkCompleted(ctx context.Context, jobID string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var scanID string
	if err = tx.QueryRow(ctx, `SELECT scan_id FROM scan_jobs WHERE id=$1`, jobID).Scan(&scanID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_jobs SET status='completed', finished_at=now() WHERE id=$1`, jobID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scans SET status='completed', progress=1, phase='done', finished_at=now() WHERE id=$1`, scanID); err != nil {
		return err
	}
	return nil
}

// MarkFailed fails the job and its scan, recording the phase that aborted it.
func (db *DB) MarkFailed(ctx context.Context, jobID string, phase, reason string) (err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	var scanID string
	if err = tx.QueryRow(ctx, `SELECT scan_id FROM scan_jobs WHERE id=$1`, jobID).Scan(&scanID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_jobs SET status='failed', last_error=$2, finished_at=now() WHERE id=$1`, jobID, reason); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, `
		UPDATE scans SET status='failed', phase=NULLIF($2, ''), error=$3, finished_at=now() WHERE id=$1
	`, scanID, phase, reason); err != nil {
		return err
	}
	return nil
}

// StartJobForScan marks the job for a specific scan as running and returns the job id.
func (db *DB) StartJobForScan(ctx context.Context, scanID string) (jobID string, err error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = tx.QueryRow(ctx, `
		SELECT id FROM scan_jobs
		WHERE scan_id = $1 AND status = 'queued'
		FOR UPDATE SKIP LOCKED
	`, scanID).Scan(&jobID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE scan_jobs SET status='running', started_at=now(), attempts=attempts+1 WHERE id=$1`, jobID); err != nil {
		return "", err
	}
	if _, err = tx.Exec(ctx, `UPDATE scans SET status='running', started_at=COALESCE(started_at, now()) WHERE id=$1`, scanID); err != nil {
		return "", err
	}
	return jobID, nil
}

// CountJobs reports scan jobs per status for the metrics collector.
func (db *DB) CountJobs(ctx context.Context) (map[string]int, error) {
	rows, err := db.Pool.Query(ctx, `SELECT status, count(*) FROM scan_jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[status] = n
	}
	return out, rows.Err()
}
