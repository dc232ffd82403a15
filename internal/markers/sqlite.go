package markers

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	// Registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

// DefaultDatabaseName is the SQLite file name under the XDG data directory
const DefaultDatabaseName = "quorumdesk/markers.db"

const schema = `CREATE TABLE IF NOT EXISTS voted_markers (
	votacion_id TEXT NOT NULL,
	pregunta_id INTEGER NOT NULL,
	voted_at    INTEGER NOT NULL,
	PRIMARY KEY (votacion_id, pregunta_id)
)`

// SQLiteStore keeps markers in a SQLite database
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path, or under the XDG data directory when path is empty,
// and creates the marker table
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		p, err := xdg.DataFile(DefaultDatabaseName)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve markers database: %w", err)
		}
		path = p
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open markers database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping markers database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create markers table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// IsVoted implements voting.MarkerStore
func (s *SQLiteStore) IsVoted(ctx context.Context, votingID string, questionID int64) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM voted_markers WHERE votacion_id = ? AND pregunta_id = ?`,
		votingID, questionID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to query marker: %w", err)
	}
	return n > 0, nil
}

// MarkVoted implements voting.MarkerStore
func (s *SQLiteStore) MarkVoted(ctx context.Context, votingID string, questionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO voted_markers (votacion_id, pregunta_id, voted_at) VALUES (?, ?, ?)
		 ON CONFLICT (votacion_id, pregunta_id) DO UPDATE SET voted_at = excluded.voted_at`,
		votingID, questionID, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert marker: %w", err)
	}
	return nil
}

// Unmark implements voting.MarkerStore
func (s *SQLiteStore) Unmark(ctx context.Context, votingID string, questionID int64) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM voted_markers WHERE votacion_id = ? AND pregunta_id = ?`,
		votingID, questionID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete marker: %w", err)
	}
	return nil
}

// Close implements Store
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
