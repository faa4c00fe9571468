package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements Store using SQLite for persistence. It is
// suitable for single-instance deployments where records must survive
// restarts.
//
// SQLiteStore uses a write-ahead log (WAL) and BEGIN IMMEDIATE
// transactions so that an Update either fully commits or has no effect,
// and conflicting concurrent writers are serialized by the database.
type SQLiteStore struct {
	db *sql.DB
}

// SQLiteStoreConfig configures the SQLite store.
type SQLiteStoreConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a SQLite-backed store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteStoreConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig creates a SQLite-backed store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteStoreConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		address TEXT PRIMARY KEY,
		owner   TEXT NOT NULL,
		balance INTEGER NOT NULL,
		data    BLOB,
		version INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// View runs a read-only transaction.
func (s *SQLiteStore) View(ctx context.Context, fn func(txn Txn) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqliteTxn{tx: tx, readOnly: true})
}

// Update runs a read-write transaction. If fn returns an error the
// transaction is rolled back with no observable effect.
func (s *SQLiteStore) Update(ctx context.Context, fn func(txn Txn) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&sqliteTxn{tx: tx}); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		if strings.Contains(err.Error(), "locked") || strings.Contains(err.Error(), "busy") {
			return ErrConflict
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteTxn struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *sqliteTxn) Get(addr Address) (*Record, error) {
	row := t.tx.QueryRow(
		"SELECT address, owner, balance, data, version FROM records WHERE address = ?",
		string(addr),
	)

	var rec Record
	var address string
	err := row.Scan(&address, &rec.Owner, &rec.Balance, &rec.Data, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load record: %w", err)
	}

	rec.Address = Address(address)
	return &rec, nil
}

func (t *sqliteTxn) Put(rec *Record) error {
	if t.readOnly {
		return ErrReadOnly
	}
	if rec == nil || rec.Address == Zero {
		return ErrNotFound
	}

	_, err := t.tx.Exec(`
		INSERT INTO records (address, owner, balance, data, version)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			balance = excluded.balance,
			data = excluded.data,
			version = records.version + 1
	`, string(rec.Address), rec.Owner, rec.Balance, rec.Data)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}

	return nil
}

func (t *sqliteTxn) Delete(addr Address) error {
	if t.readOnly {
		return ErrReadOnly
	}

	_, err := t.tx.Exec("DELETE FROM records WHERE address = ?", string(addr))
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}

	return nil
}
