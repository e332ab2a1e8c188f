package database

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Migration represents one schema change.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered, embedded schema history. The document
// store is deliberately generic: typed validation happens in the
// repositories, not in SQL.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "documents",
		SQL: `
			CREATE TABLE IF NOT EXISTS documents (
				doc_type TEXT NOT NULL,
				id       TEXT NOT NULL,
				project  TEXT NOT NULL DEFAULT '',
				parent   TEXT NOT NULL DEFAULT '',
				vendor   TEXT NOT NULL DEFAULT '',
				sub_type TEXT NOT NULL DEFAULT '',
				modified DATETIME NOT NULL,
				body     TEXT NOT NULL,
				PRIMARY KEY (doc_type, id)
			);
			CREATE INDEX IF NOT EXISTS idx_documents_project ON documents (doc_type, project);
			CREATE INDEX IF NOT EXISTS idx_documents_parent ON documents (doc_type, parent);
			CREATE INDEX IF NOT EXISTS idx_documents_vendor ON documents (doc_type, parent, vendor);
		`,
	},
	{
		Version: 2,
		Name:    "drafts",
		SQL: `
			CREATE TABLE IF NOT EXISTS drafts (
				pr_id      TEXT PRIMARY KEY,
				body       TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				saved_at   DATETIME NOT NULL
			);
		`,
	},
}

// Migrator applies pending migrations.
type Migrator struct {
	db     *DB
	logger *zap.Logger
}

// NewMigrator creates a new migrator
func NewMigrator(db *DB, logger *zap.Logger) *Migrator {
	return &Migrator{db: db, logger: logger}
}

// RunMigrations applies all pending embedded migrations.
func (m *Migrator) RunMigrations() error {
	if err := m.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := m.appliedVersions()
	if err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if applied[migration.Version] {
			continue
		}
		m.logger.Info("Applying migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))
		if err := m.apply(migration); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
		}
	}

	m.logger.Info("Database migrations completed")
	return nil
}

func (m *Migrator) createMigrationsTable() error {
	_, err := m.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func (m *Migrator) appliedVersions() (map[int]bool, error) {
	rows, err := m.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (m *Migrator) apply(migration Migration) error {
	return m.db.WithTransaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration SQL: %w", err)
		}
		_, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
			migration.Version,
			migration.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}
