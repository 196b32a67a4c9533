package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/agentvault/internal/common"
	"github.com/dmitrijs2005/agentvault/internal/dbx"
	"github.com/dmitrijs2005/agentvault/internal/storage/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// SQLiteKV implements KV on a single sqlite table. It is the structured-store
// backend; the schema is managed by embedded goose migrations.
type SQLiteKV struct {
	db *sql.DB
	tx dbx.DBTX // non-nil when this handle is bound to a transaction
}

// OpenSQLite opens (or creates) the sqlite database at dsn and runs pending
// migrations. Backend unavailability is reported as common.ErrStorageUnavailable.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteKV, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", common.ErrStorageUnavailable, err)
	}

	return &SQLiteKV{db: db}, nil
}

// NewSQLiteKV wraps an already-open database handle. The caller is
// responsible for the schema; OpenSQLite is the usual entry point.
func NewSQLiteKV(db *sql.DB) *SQLiteKV {
	return &SQLiteKV{db: db}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *SQLiteKV) conn() dbx.DBTX {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *SQLiteKV) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.conn().QueryRowContext(ctx, `SELECT value FROM vault WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault[%s]: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteKV) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.conn().ExecContext(ctx, `
		INSERT INTO vault (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set vault[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) Delete(ctx context.Context, key string) error {
	_, err := s.conn().ExecContext(ctx, `DELETE FROM vault WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete vault[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLiteKV) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	// LIKE special characters in a prefix would widen the match
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)

	rows, err := s.conn().QueryContext(ctx,
		`SELECT key FROM vault WHERE key LIKE ? ESCAPE '\'`, escaped+"%")
	if err != nil {
		return nil, fmt.Errorf("failed to list vault keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("failed to scan vault key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate vault keys: %w", err)
	}
	return keys, nil
}

// Update runs fn inside a single sqlite transaction. Nested calls reuse the
// already-open transaction.
func (s *SQLiteKV) Update(ctx context.Context, fn func(ctx context.Context, kv KV) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return fn(ctx, &SQLiteKV{db: s.db, tx: tx})
	})
}

func (s *SQLiteKV) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}
