package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/revlook/internal/models"
)

// ErrJobNotFound is returned when a job id has no row in the jobs table.
var ErrJobNotFound = errors.New("job not found")

// targetInsertChunk bounds the number of rows per bulk-insert statement so
// the placeholder count stays well under the driver limit.
const targetInsertChunk = 500

// JobStorage implements PostgreSQL storage for lookup jobs and their targets
type JobStorage struct {
	db     *PostgresDB
	logger arbor.ILogger
}

// EnvelopeOutcome describes what applying a result envelope did to job state.
type EnvelopeOutcome struct {
	JobMissing       bool
	Duplicate        bool
	Completed        bool // true only on the transition edge
	BatchesCompleted int
	BatchesExpected  int
	FoundCount       int
}

// NewJobStorage creates a new job storage instance
func NewJobStorage(db *PostgresDB, logger arbor.ILogger) *JobStorage {
	return &JobStorage{
		db:     db,
		logger: logger,
	}
}

// CreateJobWithTargets inserts the job row and all target rows in a single
// transaction. The job row goes first to satisfy the targets foreign key;
// duplicate fingerprints within the upload collapse to a single target row.
func (s *JobStorage) CreateJobWithTargets(ctx context.Context, jobID uuid.UUID, totalHashes, batchesExpected int, hashes []string) error {
	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobs (job_id, status, total_hashes, batches_expected) VALUES ($1, 'RUNNING', $2, $3)`,
		jobID, totalHashes, batchesExpected,
	)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}

	for start := 0; start < len(hashes); start += targetInsertChunk {
		end := start + targetInsertChunk
		if end > len(hashes) {
			end = len(hashes)
		}
		chunk := hashes[start:end]

		query := fmt.Sprintf(
			`INSERT INTO targets (job_id, hash_hex) VALUES %s ON CONFLICT DO NOTHING`,
			valueTuples(1, len(chunk), 2),
		)
		args := make([]interface{}, 0, len(chunk)*2)
		for _, h := range chunk {
			args = append(args, jobID, h)
		}

		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert targets: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit job creation: %w", err)
	}

	s.logger.Debug().
		Str("job_id", jobID.String()).
		Int("total_hashes", totalHashes).
		Int("batches_expected", batchesExpected).
		Msg("Job and targets persisted")
	return nil
}

// GetJob retrieves a job by ID
func (s *JobStorage) GetJob(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	row := s.db.db.QueryRowContext(ctx,
		`SELECT job_id, created_at, status, total_hashes, batches_expected, batches_completed, found_count
		 FROM jobs WHERE job_id = $1`,
		jobID,
	)
	return scanJob(row)
}

// ListCompletedJobs returns all completed jobs, newest first
func (s *JobStorage) ListCompletedJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.db.db.QueryContext(ctx,
		`SELECT job_id, created_at, status, total_hashes, batches_expected, batches_completed, found_count
		 FROM jobs WHERE status = 'COMPLETED'
		 ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		var job models.Job
		if err := rows.Scan(
			&job.JobID, &job.CreatedAt, &job.Status,
			&job.TotalHashes, &job.BatchesExpected, &job.BatchesCompleted, &job.FoundCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// MarkComplete flips a RUNNING job to COMPLETED. Returns true only when this
// call performed the transition, so completion events fire exactly once.
func (s *JobStorage) MarkComplete(ctx context.Context, jobID uuid.UUID) (bool, error) {
	res, err := s.db.db.ExecContext(ctx,
		`UPDATE jobs SET status = 'COMPLETED' WHERE job_id = $1 AND status = 'RUNNING'`,
		jobID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark job complete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ApplyResultEnvelope advances job state for one result envelope inside a
// single transaction:
//
//  1. unknown job id        -> dropped (JobMissing)
//  2. replayed batch index  -> dropped (Duplicate; processed_batches PK)
//  3. otherwise an atomic increment of batches_completed / found_count,
//     plus an edge-triggered flip to COMPLETED when the last batch lands.
//
// Replays therefore never double-count, and concurrent aggregator consumers
// cannot overwrite each other's progress.
func (s *JobStorage) ApplyResultEnvelope(ctx context.Context, env models.ResultEnvelope) (EnvelopeOutcome, error) {
	var out EnvelopeOutcome

	tx, err := s.db.BeginTx(ctx)
	if err != nil {
		return out, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE job_id = $1)`, env.JobID,
	).Scan(&exists)
	if err != nil {
		return out, fmt.Errorf("failed to check job existence: %w", err)
	}
	if !exists {
		out.JobMissing = true
		return out, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processed_batches (job_id, batch_index) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		env.JobID, env.BatchIndex,
	)
	if err != nil {
		return out, fmt.Errorf("failed to record processed batch: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return out, err
	}
	if inserted == 0 {
		if err := tx.Commit(); err != nil {
			return out, fmt.Errorf("failed to commit duplicate check: %w", err)
		}
		out.Duplicate = true
		return out, nil
	}

	err = tx.QueryRowContext(ctx,
		`UPDATE jobs
		 SET batches_completed = batches_completed + 1,
		     found_count = found_count + $2
		 WHERE job_id = $1
		 RETURNING batches_completed, batches_expected, found_count`,
		env.JobID, len(env.Matches),
	).Scan(&out.BatchesCompleted, &out.BatchesExpected, &out.FoundCount)
	if err != nil {
		return out, fmt.Errorf("failed to update job progress: %w", err)
	}

	if out.BatchesCompleted >= out.BatchesExpected {
		res, err := tx.ExecContext(ctx,
			`UPDATE jobs SET status = 'COMPLETED' WHERE job_id = $1 AND status = 'RUNNING'`,
			env.JobID,
		)
		if err != nil {
			return out, fmt.Errorf("failed to mark job complete: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return out, err
		}
		out.Completed = n == 1
	}

	if err := tx.Commit(); err != nil {
		return out, fmt.Errorf("failed to commit envelope: %w", err)
	}
	return out, nil
}

// scanJob scans a single row into a Job
func scanJob(row *sql.Row) (*models.Job, error) {
	var job models.Job
	err := row.Scan(
		&job.JobID, &job.CreatedAt, &job.Status,
		&job.TotalHashes, &job.BatchesExpected, &job.BatchesCompleted, &job.FoundCount,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to scan job: %w", err)
	}
	return &job, nil
}
