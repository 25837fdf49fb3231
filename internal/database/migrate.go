// Package database はデータベース接続とマイグレーション管理を提供する。
// PostgreSQLはkv_entriesテーブルのみを持ち、端末内保存の代替バックエンドとして使う。
package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrSchemaOutdated はkv_entriesのスキーマが未適用または古いことを表す。
var ErrSchemaOutdated = errors.New("kv store schema is not migrated: run `packman migrate` first")

// ErrSchemaDirty は途中で失敗したマイグレーションが残っていることを表す。
var ErrSchemaDirty = errors.New("kv store schema is dirty: fix the failed migration and force the version")

func newSource() (source.Driver, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	return src, nil
}

// NewMigrator はkv_entries用のmigrateインスタンスを生成する。
func NewMigrator(databaseURL string) (*migrate.Migrate, error) {
	src, err := newSource()
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, nil
}

// LatestVersion は埋め込まれたマイグレーションの最新バージョンを返す。
func LatestVersion() (uint, error) {
	src, err := newSource()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	v, err := src.First()
	if err != nil {
		return 0, fmt.Errorf("no embedded migrations: %w", err)
	}
	for {
		next, err := src.Next(v)
		if err != nil {
			return v, nil
		}
		v = next
	}
}

// RunMigrations は未適用のマイグレーションを適用し、適用後のバージョンを返す。
// すでに最新の場合もエラーにはしない。
func RunMigrations(databaseURL string) (uint, error) {
	m, err := NewMigrator(databaseURL)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return 0, ErrSchemaDirty
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// CheckSchema はserve時にkv_entriesのスキーマが最新まで適用済みかを確かめる。
// マイグレーション自体は実行しない。
func CheckSchema(ctx context.Context, db *sql.DB) error {
	latest, err := LatestVersion()
	if err != nil {
		return err
	}

	var exists bool
	err = db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'schema_migrations')`,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check schema_migrations table: %w", err)
	}
	if !exists {
		return ErrSchemaOutdated
	}

	var (
		version uint
		dirty   bool
	)
	err = db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSchemaOutdated
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	switch {
	case dirty:
		return ErrSchemaDirty
	case version < latest:
		return fmt.Errorf("%w (version %d, want %d)", ErrSchemaOutdated, version, latest)
	}
	return nil
}
