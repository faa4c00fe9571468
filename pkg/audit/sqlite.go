package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite audit backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id          TEXT PRIMARY KEY,
	recorded_at INTEGER NOT NULL,
	action      TEXT NOT NULL,
	mint        TEXT NOT NULL,
	src         TEXT NOT NULL DEFAULT '',
	dst         TEXT NOT NULL DEFAULT '',
	amount      INTEGER NOT NULL DEFAULT 0,
	price       INTEGER NOT NULL DEFAULT 0,
	variant     TEXT NOT NULL,
	result      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	fee_bp      INTEGER NOT NULL DEFAULT 0,
	fee_amount  INTEGER NOT NULL DEFAULT 0,
	programs    TEXT NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS idx_decisions_recorded_at ON decisions(recorded_at);
CREATE INDEX IF NOT EXISTS idx_decisions_mint ON decisions(mint);
`

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite audit backend and initializes
// the schema.
func NewSQLiteStorage(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)

	s := &SQLiteStorage{db: db, logger: logger}
	if err := s.initialize(config); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize(config *SQLiteConfig) error {
	if config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	return nil
}

// Store persists a decision.
func (s *SQLiteStorage) Store(ctx context.Context, d *Decision) error {
	programs, err := json.Marshal(d.Programs)
	if err != nil {
		return fmt.Errorf("failed to encode programs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, recorded_at, action, mint, src, dst, amount, price,
			variant, result, reason, fee_bp, fee_amount, programs
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.RecordedAt.UnixNano(), d.Action, d.Mint, d.From, d.To,
		d.Amount, d.Price, d.Variant, d.Result, d.Reason,
		d.FeeBp, d.FeeAmount, string(programs),
	)
	if err != nil {
		return fmt.Errorf("failed to store decision: %w", err)
	}
	return nil
}

// List returns decisions matching the query, newest first.
func (s *SQLiteStorage) List(ctx context.Context, q Query) ([]*Decision, error) {
	query := `
		SELECT id, recorded_at, action, mint, src, dst, amount, price,
		       variant, result, reason, fee_bp, fee_amount, programs
		FROM decisions WHERE 1=1`
	var args []interface{}

	if q.Mint != "" {
		query += " AND mint = ?"
		args = append(args, q.Mint)
	}
	if q.Result != "" {
		query += " AND result = ?"
		args = append(args, q.Result)
	}
	if !q.Since.IsZero() {
		query += " AND recorded_at >= ?"
		args = append(args, q.Since.UnixNano())
	}
	query += " ORDER BY recorded_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var out []*Decision
	for rows.Next() {
		var d Decision
		var recordedAt int64
		var programs string
		if err := rows.Scan(
			&d.ID, &recordedAt, &d.Action, &d.Mint, &d.From, &d.To,
			&d.Amount, &d.Price, &d.Variant, &d.Result, &d.Reason,
			&d.FeeBp, &d.FeeAmount, &programs,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.RecordedAt = time.Unix(0, recordedAt).UTC()
		if err := json.Unmarshal([]byte(programs), &d.Programs); err != nil {
			return nil, fmt.Errorf("failed to decode programs: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// Count returns the number of stored decisions.
func (s *SQLiteStorage) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM decisions").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count decisions: %w", err)
	}
	return n, nil
}

// DeleteBefore removes decisions recorded before the cutoff.
func (s *SQLiteStorage) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM decisions WHERE recorded_at < ?", cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to delete decisions: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
