package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/writgo/content-engine/internal/api/domain"
	"github.com/writgo/content-engine/internal/api/model"
	"github.com/writgo/content-engine/internal/pipeline"
	"github.com/writgo/content-engine/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

var _ pipeline.ProjectStore = (*Storage)(nil)

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

func (s *Storage) CreateJob(ctx context.Context, job *model.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, client_id, project_id, kind,
			topic, post_id, options, status, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9, $10
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.ClientID,
		job.ProjectID,
		job.Kind,
		job.Topic,
		job.PostID,
		job.Options,
		job.Status,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *Storage) GetJobByID(ctx context.Context, jobID string) (*model.Job, error) {
	var job model.Job
	query := `
		SELECT
			job_id, client_id, project_id, kind, topic, post_id,
			options, status, result, error_code, error_message,
			created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// MarkJobTerminal records the outcome of a finished job.
func (s *Storage) MarkJobTerminal(ctx context.Context, jobID, status, resultJSON, errorCode, errorMessage string) error {
	query := `
		UPDATE jobs
		SET status = $2,
		    result = NULLIF($3, ''),
		    error_code = NULLIF($4, ''),
		    error_message = NULLIF($5, ''),
		    updated_at = NOW()
		WHERE job_id = $1
	`

	_, err := s.db.ExecContext(ctx, query, jobID, status, resultJSON, errorCode, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to mark job terminal: %w", err)
	}
	return nil
}

type JobFilter struct {
	ClientID  string
	ProjectID string
	Kind      string
	Status    string
	PageSize  int
	Cursor    *JobCursor
}

type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	builder := sq.
		Select("job_id", "client_id", "project_id", "kind", "topic", "post_id",
			"options", "status", "result", "error_code", "error_message",
			"created_at", "updated_at").
		From("jobs").
		OrderBy("created_at DESC", "job_id DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.ClientID != "" {
		builder = builder.Where(sq.Eq{"client_id": filter.ClientID})
	}
	if filter.ProjectID != "" {
		builder = builder.Where(sq.Eq{"project_id": filter.ProjectID})
	}
	if filter.Kind != "" {
		builder = builder.Where(sq.Eq{"kind": filter.Kind})
	}
	if filter.Status != "" {
		builder = builder.Where(sq.Eq{"status": filter.Status})
	}
	if filter.Cursor != nil {
		builder = builder.Where("(created_at, job_id) < (?, ?)", filter.Cursor.CreatedAt, filter.Cursor.JobID)
	}

	// Fetch one extra to determine if there are more results
	query, args, err := builder.Limit(uint64(filter.PageSize + 1)).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build list query: %w", err)
	}

	var jobs []model.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

// GetProject implements pipeline.ProjectStore.
func (s *Storage) GetProject(ctx context.Context, projectID string) (*pipeline.Project, error) {
	var project model.Project
	query := `
		SELECT project_id, client_id, name, site_url, cms_username,
		       cms_password, tone_profile, language, created_at, updated_at
		FROM projects
		WHERE project_id = $1
	`

	err := s.db.GetContext(ctx, &project, query, projectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}

	return &pipeline.Project{
		ID:          project.ProjectID,
		ClientID:    project.ClientID,
		Name:        project.Name,
		SiteURL:     project.SiteURL,
		CMSUsername: project.CMSUsername,
		CMSPassword: project.CMSPassword,
		ToneProfile: project.ToneProfile,
		Language:    project.Language,
	}, nil
}
