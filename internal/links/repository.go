// Package links stores affiliate/product links and their usage counters.
package links

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/writgo/content-engine/internal/pipeline"
)

// Repository reads and updates affiliate links in Postgres.
type Repository struct {
	db     *sqlx.DB
	logger *slog.Logger
}

var _ pipeline.AffiliateSource = (*Repository)(nil)

// NewRepository wires the database handle.
func NewRepository(db *sqlx.DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

type linkRow struct {
	LinkID     string         `db:"link_id"`
	ProjectID  string         `db:"project_id"`
	URL        string         `db:"url"`
	AnchorText string         `db:"anchor_text"`
	Keywords   pq.StringArray `db:"keywords"`
	UsageCount int            `db:"usage_count"`
}

// ForProject returns the project's links ordered by lowest usage first so
// the insertion stage rotates fairly.
func (r *Repository) ForProject(ctx context.Context, projectID string) ([]pipeline.AffiliateLink, error) {
	query, args, err := sq.
		Select("link_id", "project_id", "url", "anchor_text", "keywords", "usage_count").
		From("affiliate_links").
		Where(sq.Eq{"project_id": projectID}).
		OrderBy("usage_count ASC", "link_id ASC").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build affiliate query: %w", err)
	}

	var rows []linkRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select affiliate links: %w", err)
	}

	result := make([]pipeline.AffiliateLink, len(rows))
	for i, row := range rows {
		result[i] = pipeline.AffiliateLink{
			ID:         row.LinkID,
			URL:        row.URL,
			AnchorText: row.AnchorText,
			Keywords:   row.Keywords,
			UsageCount: row.UsageCount,
		}
	}
	return result, nil
}

// IncrementUsage bumps the usage counter atomically. Concurrent jobs may
// both pick the same least-used link; acceptable, the counter itself never
// loses increments.
func (r *Repository) IncrementUsage(ctx context.Context, linkID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE affiliate_links SET usage_count = usage_count + 1, updated_at = NOW() WHERE link_id = $1`,
		linkID,
	)
	if err != nil {
		return fmt.Errorf("increment link usage: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Usage increment matched no link", slog.String("link_id", linkID))
	}
	return nil
}
