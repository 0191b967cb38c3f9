package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	namespace   TEXT   NOT NULL,
	entry_key   TEXT   NOT NULL,
	entry_value TEXT   NOT NULL,
	updated_at  BIGINT NOT NULL,
	PRIMARY KEY (namespace, entry_key)
)`

// SQLBackend is the durable tier on sqlite or postgres.
type SQLBackend struct {
	db        *sqlx.DB
	namespace string
}

func NewSQLBackend(ctx context.Context, db *sqlx.DB, namespace string) (*SQLBackend, error) {
	if _, err := db.ExecContext(ctx, kvSchema); err != nil {
		return nil, fmt.Errorf("create kv_entries: %w", err)
	}
	return &SQLBackend{db: db, namespace: namespace}, nil
}

func (b *SQLBackend) Name() string { return "sql:" + b.db.DriverName() }

func (b *SQLBackend) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := b.db.GetContext(ctx, &value, b.db.Rebind(`
		SELECT entry_value FROM kv_entries WHERE namespace = ? AND entry_key = ?
	`), b.namespace, key)
	found, err := handleNotFound(&value, err)
	if err != nil {
		return "", false, err
	}
	if found == nil {
		return "", false, nil
	}
	return *found, true, nil
}

func (b *SQLBackend) Set(ctx context.Context, key, value string) error {
	_, err := b.db.ExecContext(ctx, b.db.Rebind(`
		INSERT INTO kv_entries (namespace, entry_key, entry_value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, entry_key)
		DO UPDATE SET entry_value = excluded.entry_value, updated_at = excluded.updated_at
	`), b.namespace, key, value, time.Now().UnixMilli())
	return err
}

func (b *SQLBackend) Delete(ctx context.Context, key string) error {
	_, err := b.db.ExecContext(ctx, b.db.Rebind(`
		DELETE FROM kv_entries WHERE namespace = ? AND entry_key = ?
	`), b.namespace, key)
	return err
}

func (b *SQLBackend) Probe(ctx context.Context) error {
	if err := b.db.PingContext(ctx); err != nil {
		return fmt.Errorf("probe %s: %w", b.Name(), err)
	}
	return roundTripProbe(ctx, b)
}

// handleNotFound turns sql.ErrNoRows into a nil result without error.
func handleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
