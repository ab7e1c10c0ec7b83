// Package store persists finished reports so earlier checks can be listed and
// reopened.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ppiankov/claimcheck/internal/model"
)

// ErrNotFound is returned when no report has the requested ID
var ErrNotFound = errors.New("report not found")

// Summary is one row of the history listing
type Summary struct {
	ID        string
	CreatedAt time.Time
	Source    string
	Claims    int
	Index     int
	Counts    model.Summary
}

// SQLiteStore keeps reports in a single SQLite file.
//
// Thread Safety: Safe for concurrent use (database/sql pools connections).
type SQLiteStore struct {
	db *sql.DB
}

// DefaultPath returns $HOME/.claimcheck/history.db
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".claimcheck", "history.db"), nil
}

// Open opens or creates the database at path. An empty path means DefaultPath.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Writes are serialized by SQLite anyway
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		source TEXT NOT NULL,
		claims INTEGER NOT NULL,
		supported INTEGER NOT NULL,
		refuted INTEGER NOT NULL,
		not_enough_info INTEGER NOT NULL,
		conflicting INTEGER NOT NULL,
		degraded INTEGER NOT NULL,
		score_index INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Save inserts the report, replacing an earlier row with the same ID
func (s *SQLiteStore) Save(ctx context.Context, r *model.Report) error {
	if r == nil || r.ID == "" {
		return errors.New("report has no ID")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO reports
			(id, created_at, source, claims, supported, refuted, not_enough_info, conflicting, degraded, score_index, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CreatedAt.UnixNano(), r.Source, len(r.Claims),
		r.Summary.Supported, r.Summary.Refuted, r.Summary.NotEnoughInfo, r.Summary.Conflicting, r.Summary.Degraded,
		r.Score.Index, string(data),
	)
	if err != nil {
		return fmt.Errorf("save report %s: %w", r.ID, err)
	}
	return nil
}

// Get loads one report
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM reports WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", id, err)
	}

	var r model.Report
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &r, nil
}

// List returns the most recent reports first. limit <= 0 returns all of them.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, source, claims, supported, refuted, not_enough_info, conflicting, degraded, score_index
		FROM reports ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			created int64
		)
		if err := rows.Scan(&sum.ID, &created, &sum.Source, &sum.Claims,
			&sum.Counts.Supported, &sum.Counts.Refuted, &sum.Counts.NotEnoughInfo,
			&sum.Counts.Conflicting, &sum.Counts.Degraded, &sum.Index); err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		sum.CreatedAt = time.Unix(0, created).UTC()
		sum.Counts.Total = sum.Claims
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Delete removes one report
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
