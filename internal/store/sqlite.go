package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SQLiteStore implements Store over the shared documents table.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteStore creates a document store backed by SQLite.
func NewSQLiteStore(db *sql.DB, logger *zap.Logger) *SQLiteStore {
	return &SQLiteStore{db: db, logger: logger, now: time.Now}
}

// Get fetches one document by type and id.
func (s *SQLiteStore) Get(ctx context.Context, typ DocType, id string) (*Document, error) {
	query := `
		SELECT doc_type, id, project, parent, vendor, sub_type, modified, body
		FROM documents
		WHERE doc_type = ? AND id = ?
	`
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, typ, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, typ, id)
	}
	if err != nil {
		s.logger.Error("Failed to get document", zap.String("type", string(typ)), zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// Create inserts a new document and stamps its modified timestamp.
func (s *SQLiteStore) Create(ctx context.Context, doc *Document) (*Document, error) {
	doc.Modified = s.now().UTC()
	query := `
		INSERT INTO documents (doc_type, id, project, parent, vendor, sub_type, modified, body)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		doc.Type, doc.ID, doc.Project, doc.Parent, doc.Vendor, doc.SubType,
		doc.Modified.Format(time.RFC3339Nano), string(doc.Body),
	)
	if err != nil {
		s.logger.Error("Failed to create document", zap.String("type", string(doc.Type)), zap.String("id", doc.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to create document: %w", err)
	}
	return doc, nil
}

// Update replaces body and indexed fields under optimistic concurrency:
// the write only lands if the stored modified timestamp still equals
// expectedModified.
func (s *SQLiteStore) Update(ctx context.Context, doc *Document, expectedModified time.Time) (*Document, error) {
	newModified := s.now().UTC()
	query := `
		UPDATE documents
		SET project = ?, parent = ?, vendor = ?, sub_type = ?, modified = ?, body = ?
		WHERE doc_type = ? AND id = ? AND modified = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		doc.Project, doc.Parent, doc.Vendor, doc.SubType,
		newModified.Format(time.RFC3339Nano), string(doc.Body),
		doc.Type, doc.ID, expectedModified.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		s.logger.Error("Failed to update document", zap.String("type", string(doc.Type)), zap.String("id", doc.ID), zap.Error(err))
		return nil, fmt.Errorf("failed to update document: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish a stale baseline from a vanished document.
		current, getErr := s.Get(ctx, doc.Type, doc.ID)
		if getErr != nil {
			return nil, getErr
		}
		return nil, &ConflictError{
			Type:     doc.Type,
			ID:       doc.ID,
			Expected: expectedModified,
			Actual:   current.Modified,
		}
	}

	doc.Modified = newModified
	return doc, nil
}

// List returns documents of a type matching the filters, oldest first
// so PO merge probes see rounds in creation order.
func (s *SQLiteStore) List(ctx context.Context, typ DocType, filters Filters) ([]*Document, error) {
	query := `
		SELECT doc_type, id, project, parent, vendor, sub_type, modified, body
		FROM documents
		WHERE doc_type = ?
	`
	args := []interface{}{typ}
	if filters.Project != "" {
		query += " AND project = ?"
		args = append(args, filters.Project)
	}
	if filters.Parent != "" {
		query += " AND parent = ?"
		args = append(args, filters.Parent)
	}
	if filters.Vendor != "" {
		query += " AND vendor = ?"
		args = append(args, filters.Vendor)
	}
	if filters.SubType != "" {
		query += " AND sub_type = ?"
		args = append(args, filters.SubType)
	}
	query += " ORDER BY modified ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("Failed to list documents", zap.String("type", string(typ)), zap.Error(err))
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var doc Document
	var modified, body string
	if err := row.Scan(&doc.Type, &doc.ID, &doc.Project, &doc.Parent, &doc.Vendor, &doc.SubType, &modified, &body); err != nil {
		return nil, err
	}
	ts, err := time.Parse(time.RFC3339Nano, modified)
	if err != nil {
		return nil, fmt.Errorf("corrupt modified timestamp %q: %w", modified, err)
	}
	doc.Modified = ts
	doc.Body = []byte(body)
	return &doc, nil
}

// Verify interface compliance
var _ Store = (*SQLiteStore)(nil)
