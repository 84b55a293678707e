package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Status is the outcome of a pass
type Status string

const (
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"    // failed before any mutation
	StatusRecovered Status = "recovered" // failed and rolled back
)

// Pass is one recorded install or update pass
type Pass struct {
	ID        string
	Operation string
	Status    Status
	StartedAt time.Time
	Duration  time.Duration
	Installed int
	Skipped   int
	Failed    int
	Excluded  int
	Unlisted  int
	Removed   int
	Restarted bool
	Error     string
	Details   Details
}

// Details lists the plugins behind each count
type Details struct {
	Installed []string          `json:"installed,omitempty"`
	Skipped   []string          `json:"skipped,omitempty"`
	Failed    map[string]string `json:"failed,omitempty"`   // name -> reason
	Excluded  map[string]string `json:"excluded,omitempty"` // name -> required core
	Unlisted  []string          `json:"unlisted,omitempty"`
	Removed   []string          `json:"removed,omitempty"`
}

// Dialect is a supported SQL database
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// Open connects to the database named by dsn
func Open(dsn string) (*sql.DB, Dialect, error) {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return nil, "", fmt.Errorf("history DSN %q has no scheme", dsn)
	}

	var (
		dialect    Dialect
		driverName string
		source     string
	)
	switch scheme {
	case "sqlite", "sqlite3":
		dialect, driverName, source = DialectSQLite, "sqlite3", rest
	case "postgres", "postgresql":
		dialect, driverName, source = DialectPostgres, "postgres", dsn
	default:
		return nil, "", fmt.Errorf("unsupported history database %q", scheme)
	}

	db, err := sql.Open(driverName, source)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open history database: %w", err)
	}
	return db, dialect, nil
}

// Store reads and writes pass records
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// NewStore creates a store and makes sure its table exists
func NewStore(db *sql.DB, dialect Dialect) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	s := &Store{db: db, dialect: dialect}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure plugin_passes table: %w", err)
	}
	return s, nil
}

func (s *Store) ensureTable() error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	detailsType := "TEXT"
	if s.dialect == DialectPostgres {
		idColumn = "id BIGSERIAL PRIMARY KEY"
		detailsType = "JSONB"
	}

	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS plugin_passes (
		%s,
		pass_id VARCHAR(36) NOT NULL UNIQUE,
		operation VARCHAR(20) NOT NULL,
		status VARCHAR(20) NOT NULL,
		started_at TIMESTAMP NOT NULL,
		duration_ms BIGINT NOT NULL,
		installed INTEGER NOT NULL,
		skipped INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		excluded INTEGER NOT NULL,
		unlisted INTEGER NOT NULL,
		removed INTEGER NOT NULL,
		restarted BOOLEAN NOT NULL,
		error_message TEXT,
		details %s
	);
	CREATE INDEX IF NOT EXISTS idx_plugin_passes_started_at ON plugin_passes(started_at DESC);
	`, idColumn, detailsType)

	_, err := s.db.Exec(query)
	return err
}

// Record stores a pass
func (s *Store) Record(ctx context.Context, p Pass) error {
	details, err := json.Marshal(p.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal details: %w", err)
	}

	var errMsg sql.NullString
	if p.Error != "" {
		errMsg = sql.NullString{String: p.Error, Valid: true}
	}

	query := `
		INSERT INTO plugin_passes (
			pass_id, operation, status, started_at, duration_ms,
			installed, skipped, failed, excluded, unlisted, removed,
			restarted, error_message, details
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11,
			$12, $13, $14
		)
	`

	_, err = s.db.ExecContext(ctx, query,
		p.ID, p.Operation, string(p.Status), p.StartedAt.UTC(), p.Duration.Milliseconds(),
		p.Installed, p.Skipped, p.Failed, p.Excluded, p.Unlisted, p.Removed,
		p.Restarted, errMsg, string(details),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pass %s: %w", p.ID, err)
	}
	return nil
}

// List returns the most recent passes, newest first
func (s *Store) List(ctx context.Context, limit int) ([]Pass, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT pass_id, operation, status, started_at, duration_ms,
			installed, skipped, failed, excluded, unlisted, removed,
			restarted, error_message, details
		FROM plugin_passes
		ORDER BY started_at DESC
		LIMIT $1
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passes: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var passes []Pass
	for rows.Next() {
		var (
			p          Pass
			status     string
			durationMS int64
			errMsg     sql.NullString
			details    sql.NullString
		)
		if err := rows.Scan(
			&p.ID, &p.Operation, &status, &p.StartedAt, &durationMS,
			&p.Installed, &p.Skipped, &p.Failed, &p.Excluded, &p.Unlisted, &p.Removed,
			&p.Restarted, &errMsg, &details,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pass: %w", err)
		}

		p.Status = Status(status)
		p.Duration = time.Duration(durationMS) * time.Millisecond
		p.Error = errMsg.String
		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &p.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details of pass %s: %w", p.ID, err)
			}
		}
		passes = append(passes, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read passes: %w", err)
	}
	return passes, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}
