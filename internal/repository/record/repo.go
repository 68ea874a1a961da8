// Package record reads transcripts, import batches and the tag table from the SQLite record database.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kailas-cloud/tagrec/internal/domain"
	domrec "github.com/kailas-cloud/tagrec/internal/domain/record"
	"github.com/kailas-cloud/tagrec/internal/domain/vocabulary"
)

const selectColumns = `SELECT id, raw_text, driver_tag, manual_tag, status, batch_id FROM conversations`

// Repo is a read-only view over the record database.
type Repo struct {
	db *sqlx.DB
}

// New creates a record repository.
func New(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// Get returns a record by id or domain.ErrNotFound.
func (r *Repo) Get(ctx context.Context, id int64) (domrec.Record, error) {
	var rw row
	err := r.db.GetContext(ctx, &rw, selectColumns+` WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domrec.Record{}, fmt.Errorf("record %d: %w", id, domain.ErrNotFound)
		}
		return domrec.Record{}, fmt.Errorf("select record %d: %w", id, err)
	}
	return rw.toDomain(), nil
}

// ListApproved returns all approved records ordered by id.
func (r *Repo) ListApproved(ctx context.Context) ([]domrec.Record, error) {
	var rows []row
	err := r.db.SelectContext(ctx, &rows, selectColumns+` WHERE status = ? ORDER BY id`, string(domrec.StatusApproved))
	if err != nil {
		return nil, fmt.Errorf("select approved records: %w", err)
	}
	out := make([]domrec.Record, len(rows))
	for i, rw := range rows {
		out[i] = rw.toDomain()
	}
	return out, nil
}

// Counts returns the total and approved record counts.
func (r *Repo) Counts(ctx context.Context) (total, approved int, err error) {
	var c struct {
		Total    int `db:"total"`
		Approved int `db:"approved"`
	}
	err = r.db.GetContext(ctx, &c,
		`SELECT COUNT(*) AS total, COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) AS approved FROM conversations`,
		string(domrec.StatusApproved))
	if err != nil {
		return 0, 0, fmt.Errorf("count records: %w", err)
	}
	return c.Total, c.Approved, nil
}

// BatchFileName returns the source file name of an import batch or domain.ErrNotFound.
func (r *Repo) BatchFileName(ctx context.Context, batchID int64) (string, error) {
	var name string
	err := r.db.GetContext(ctx, &name, `SELECT file_name FROM import_batches WHERE id = ?`, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("batch %d: %w", batchID, domain.ErrNotFound)
		}
		return "", fmt.Errorf("select batch %d: %w", batchID, err)
	}
	return name, nil
}

// ListTags returns the tag table in id order.
func (r *Repo) ListTags(ctx context.Context) ([]vocabulary.Tag, error) {
	var tags []vocabulary.Tag
	if err := r.db.SelectContext(ctx, &tags, `SELECT name, category, definition FROM tags ORDER BY id`); err != nil {
		return nil, fmt.Errorf("select tags: %w", err)
	}
	return tags, nil
}

// Ping checks the database connection.
func (r *Repo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
