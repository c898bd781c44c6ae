package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tomz197/sshtargets/internal/leaderboard"
)

// SQLite keeps the list in a high_scores table, one row per retained
// record ordered by position.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating when needed) the database at path and runs the
// schema migration. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection serializes writers and keeps ":memory:" databases
	// from splitting across pool connections.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the schema.
func (s *SQLite) Migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS high_scores (
			position INTEGER PRIMARY KEY,
			id INTEGER NOT NULL UNIQUE,
			name TEXT NOT NULL,
			score INTEGER NOT NULL CHECK (score >= 0),
			date TEXT NOT NULL
		)`,
	}
	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Load(ctx context.Context) ([]leaderboard.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, score, date FROM high_scores ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query high scores: %w", err)
	}
	defer rows.Close()

	var records []leaderboard.Record
	for rows.Next() {
		var (
			r    leaderboard.Record
			date string
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Score, &date); err != nil {
			return nil, fmt.Errorf("failed to scan high score: %w", err)
		}
		r.Date, err = time.Parse(time.RFC3339Nano, date)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrMalformed, date)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read high scores: %w", err)
	}
	return leaderboard.Normalize(records), nil
}

func (s *SQLite) Save(ctx context.Context, records []leaderboard.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM high_scores`); err != nil {
		return fmt.Errorf("failed to clear high scores: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO high_scores (position, id, name, score, date) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, i, r.ID, r.Name, r.Score, r.Date.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert high score %d: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit high scores: %w", err)
	}
	return nil
}
