package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sitewise/procure/internal/domain/entity"
	"github.com/sitewise/procure/internal/draft"
)

// DraftRepository implements draft.Repository over the drafts table:
// one JSON body per PR id. The table is a plain key-value store; the
// engine never queries inside the body.
type DraftRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDraftRepository creates a SQLite-backed draft repository.
func NewDraftRepository(db *sql.DB, logger *zap.Logger) *DraftRepository {
	return &DraftRepository{db: db, logger: logger}
}

// Get returns the stored draft for a PR.
func (r *DraftRepository) Get(ctx context.Context, prID string) (*entity.Draft, error) {
	var body string
	err := r.db.QueryRowContext(ctx, "SELECT body FROM drafts WHERE pr_id = ?", prID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, draft.ErrNoDraft
	}
	if err != nil {
		r.logger.Error("Failed to get draft", zap.String("pr_id", prID), zap.Error(err))
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}

	var d entity.Draft
	if err := json.Unmarshal([]byte(body), &d); err != nil {
		return nil, fmt.Errorf("stored draft for %s is corrupt: %w", prID, err)
	}
	return &d, nil
}

// Put upserts the draft keyed by its PR id.
func (r *DraftRepository) Put(ctx context.Context, d *entity.Draft) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal draft for %s: %w", d.PRID, err)
	}
	query := `
		INSERT INTO drafts (pr_id, body, created_at, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (pr_id) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at
	`
	_, err = r.db.ExecContext(ctx, query,
		d.PRID, string(body),
		d.CreatedAt.UTC().Format(time.RFC3339Nano),
		d.LastSavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		r.logger.Error("Failed to save draft", zap.String("pr_id", d.PRID), zap.Error(err))
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

// Delete removes the draft for a PR.
func (r *DraftRepository) Delete(ctx context.Context, prID string) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM drafts WHERE pr_id = ?", prID); err != nil {
		r.logger.Error("Failed to delete draft", zap.String("pr_id", prID), zap.Error(err))
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

// Verify interface compliance
var _ draft.Repository = (*DraftRepository)(nil)
