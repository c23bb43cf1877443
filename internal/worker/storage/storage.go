package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/writgo/content-engine/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimJob attempts to claim a job using optimistic locking.
// Returns the job details on success, ErrJobAlreadyClaimed when another
// worker got there first or the job is not PENDING.
func (s *Storage) ClaimJob(ctx context.Context, jobID, workerID string) (*domain.ClaimedJob, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
		RETURNING job_id, client_id, project_id, kind, topic, post_id, options
	`

	var job domain.ClaimedJob
	err := s.db.QueryRowContext(ctx, query, domain.JobStatusRunning, workerID, jobID, domain.JobStatusPending).Scan(
		&job.JobID,
		&job.ClientID,
		&job.ProjectID,
		&job.Kind,
		&job.Topic,
		&job.PostID,
		&job.Options,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim job - already claimed or not found",
				slog.String("job_id", jobID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrJobAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	s.logger.Info("Job claimed successfully",
		slog.String("job_id", jobID),
		slog.String("worker_id", workerID),
		slog.String("kind", job.Kind),
	)

	return &job, nil
}

// UpdateJobOutcome records the terminal state of a finished job.
func (s *Storage) UpdateJobOutcome(ctx context.Context, jobID, status, resultJSON, errorCode, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    result = NULLIF($3, ''),
		    error_code = NULLIF($4, ''),
		    error_message = NULLIF($5, ''),
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $1
	`

	_, err := s.db.ExecContext(ctx, query, jobID, status, resultJSON, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to update job outcome: %w", err)
	}

	s.logger.Info("Job outcome recorded",
		slog.String("job_id", jobID),
		slog.String("status", status),
	)

	return nil
}
