package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"postergen/internal/domain"
	"postergen/internal/infra"
)

const historySchema = `
CREATE TABLE IF NOT EXISTS generation_history (
	id         UUID PRIMARY KEY,
	idea       TEXT NOT NULL DEFAULT '',
	prompt     TEXT NOT NULL,
	width      INTEGER NOT NULL,
	height     INTEGER NOT NULL,
	count      INTEGER NOT NULL,
	seed       BIGINT NOT NULL DEFAULT -1,
	image_urls TEXT[] NOT NULL DEFAULT '{}',
	failures   TEXT[] NOT NULL DEFAULT '{}',
	locale     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS generation_history_created_at_idx ON generation_history (created_at DESC);
`

// HistoryRepositoryPG implements domain.HistoryRepository using PostgreSQL.
type HistoryRepositoryPG struct {
	pool infra.SQLExecutor
}

// NewHistoryRepositoryPG constructs a new history repository instance.
func NewHistoryRepositoryPG(pool infra.SQLExecutor) *HistoryRepositoryPG {
	return &HistoryRepositoryPG{pool: pool}
}

// EnsureSchema creates the history table when it does not exist.
func (r *HistoryRepositoryPG) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, historySchema); err != nil {
		return fmt.Errorf("ensure history schema: %w", err)
	}
	return nil
}

// Save inserts a record, assigning an id when empty.
func (r *HistoryRepositoryPG) Save(ctx context.Context, rec *domain.GenerationRecord) error {
	prepareRecord(rec)
	_, err := r.pool.Exec(ctx, `
INSERT INTO generation_history (id, idea, prompt, width, height, count, seed, image_urls, failures, locale, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`,
		rec.ID,
		rec.Idea,
		rec.Prompt,
		rec.Width,
		rec.Height,
		rec.Count,
		rec.Seed,
		rec.ImageURLs,
		rec.Failures,
		rec.Locale,
		rec.CreatedAt,
	)
	return err
}

// ListRecent returns the newest records first.
func (r *HistoryRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	rows, err := r.pool.Query(ctx, `
SELECT id, idea, prompt, width, height, count, seed, image_urls, failures, locale, created_at
FROM generation_history
ORDER BY created_at DESC
LIMIT $1;
`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.GenerationRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Get returns one record or domain.ErrNotFound.
func (r *HistoryRepositoryPG) Get(ctx context.Context, id string) (*domain.GenerationRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `
SELECT id, idea, prompt, width, height, count, seed, image_urls, failures, locale, created_at
FROM generation_history
WHERE id = $1;
`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return rec, err
}

func scanRecord(row pgx.Row) (*domain.GenerationRecord, error) {
	var rec domain.GenerationRecord
	var id uuid.UUID
	if err := row.Scan(&id, &rec.Idea, &rec.Prompt, &rec.Width, &rec.Height, &rec.Count, &rec.Seed, &rec.ImageURLs, &rec.Failures, &rec.Locale, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.ID = id.String()
	return &rec, nil
}
