package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresKVStore はPostgreSQLのkv_entriesテーブルを使用したキーバリューストア。
// 端末のローカルDBとしてPostgreSQLを使う構成向け。
type PostgresKVStore struct {
	db *sql.DB
}

// NewPostgresKVStore はPostgresKVStoreを生成する。
func NewPostgresKVStore(db *sql.DB) *PostgresKVStore {
	return &PostgresKVStore{db: db}
}

// Get は指定キーの値を取得する。存在しない場合はErrNotFoundを返す。
func (r *PostgresKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM kv_entries WHERE key = $1`,
		key,
	).Scan(&value)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv entry: %w", err)
	}

	return value, nil
}

// Put は指定キーに値をUPSERTする。
func (r *PostgresKVStore) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to put kv entry: %w", err)
	}
	return nil
}

// Delete は指定キーのエントリを削除する。
func (r *PostgresKVStore) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM kv_entries WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}

// Ping はDB接続を確認する。
func (r *PostgresKVStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close はDB接続を閉じる。
func (r *PostgresKVStore) Close() error {
	return r.db.Close()
}

// compile-time interface check
var _ KVStore = (*PostgresKVStore)(nil)
var _ HealthChecker = (*PostgresKVStore)(nil)
