package model

import (
	"database/sql"
	"time"
)

// Job is one pipeline execution record.
type Job struct {
	JobID        string         `db:"job_id"`
	ClientID     string         `db:"client_id"`
	ProjectID    string         `db:"project_id"`
	Kind         string         `db:"kind"`
	Topic        string         `db:"topic"`
	PostID       int64          `db:"post_id"`
	Options      string         `db:"options"` // JSON
	Status       string         `db:"status"`
	Result       sql.NullString `db:"result"` // JSON, terminal jobs only
	ErrorCode    sql.NullString `db:"error_code"`
	ErrorMessage sql.NullString `db:"error_message"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
}

// Project is a client's target site with its CMS credentials and brand voice.
type Project struct {
	ProjectID   string    `db:"project_id"`
	ClientID    string    `db:"client_id"`
	Name        string    `db:"name"`
	SiteURL     string    `db:"site_url"`
	CMSUsername string    `db:"cms_username"`
	CMSPassword string    `db:"cms_password"`
	ToneProfile string    `db:"tone_profile"`
	Language    string    `db:"language"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}
