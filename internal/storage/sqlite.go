package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lockbox/internal/common"
	"github.com/dmitrijs2005/lockbox/internal/dbx"
	"github.com/dmitrijs2005/lockbox/internal/storage/migrations"
	"github.com/pressly/goose/v3"
)

// Keys in the vault key/value table.
const (
	keyBlob    = "blob"
	keyProfile = "profile"
)

// SQLiteStore keeps the blob and profile in a single key/value table.
// The sqlite driver must be registered by the caller (blank import of
// modernc.org/sqlite at the composition root or in tests).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies migrations.
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already opened and migrated database. Used by
// tests that manage the connection themselves.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *SQLiteStore) set(ctx context.Context, tx dbx.DBTX, key string, value []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vault (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to set vault[%s]: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM vault WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vault[%s]: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) SaveBlob(ctx context.Context, serialized string) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.set(ctx, tx, keyBlob, []byte(serialized))
	})
}

func (s *SQLiteStore) LoadBlob(ctx context.Context) (string, error) {
	value, err := s.get(ctx, keyBlob)
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (s *SQLiteStore) SaveProfile(ctx context.Context, p *Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshalling profile: %w", err)
	}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.set(ctx, tx, keyProfile, data)
	})
}

func (s *SQLiteStore) LoadProfile(ctx context.Context) (*Profile, error) {
	value, err := s.get(ctx, keyProfile)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}

	var p Profile
	if err := json.Unmarshal(value, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidFormat, err)
	}
	return &p, nil
}

func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM vault`); err != nil {
			return fmt.Errorf("failed to clear vault: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
