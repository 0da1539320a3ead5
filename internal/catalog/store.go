package catalog

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"modelkeep/internal/config"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.DatabasePath())
}

// OpenPath opens the catalog database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

const entryColumns = "id, name, model_name, path, base_label, content_hash, note, is_live, updated_at"

const entryColumnsQualified = "e.id, e.name, e.model_name, e.path, e.base_label, e.content_hash, e.note, e.is_live, e.updated_at"

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		id        int64
		name      sql.NullString
		modelName sql.NullString
		path      string
		baseLabel string
		hash      sql.NullString
		note      sql.NullString
		live      int64
		updatedAt sql.NullInt64
	)

	if err := scanner.Scan(
		&id,
		&name,
		&modelName,
		&path,
		&baseLabel,
		&hash,
		&note,
		&live,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	return &Entry{
		ID:          id,
		Name:        name.String,
		ModelName:   modelName.String,
		Path:        path,
		BaseLabel:   baseLabel,
		ContentHash: hash.String,
		Note:        note.String,
		Live:        live != 0,
		UpdatedAt:   updatedAt.Int64,
	}, nil
}

const jobColumns = "id, description, error, state, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          int64
		description string
		errText     sql.NullString
		state       string
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(&id, &description, &errText, &state, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		Description: description,
		Error:       errText.String,
		State:       JobState(state),
	}
	if createdRaw.Valid {
		if parsed, err := parseTimeString(createdRaw.String); err == nil {
			job.CreatedAt = parsed
		}
	}
	if updatedRaw.Valid {
		if parsed, err := parseTimeString(updatedRaw.String); err == nil {
			job.UpdatedAt = parsed
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", count), ", ")
}
