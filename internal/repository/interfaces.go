// Package repository は端末内キーバリューストアのインターフェースと実装を提供する。
package repository

import (
	"context"
	"errors"
)

// ErrNotFound は指定キーのエントリが存在しないことを表す。
var ErrNotFound = errors.New("kv entry not found")

// KVStore は文字列キーで不透明な値を保存するキーバリューストアのインターフェース。
// スキーマバージョンやトランザクションは持たず、書き込みは「最後の書き込みが勝つ」。
type KVStore interface {
	// Get は指定キーの値を取得する。存在しない場合はErrNotFoundを返す。
	Get(ctx context.Context, key string) ([]byte, error)

	// Put は指定キーに値を保存する。既存の値は上書きされる。
	// 戻った時点で書き込みは永続化されている。
	Put(ctx context.Context, key string, value []byte) error

	// Delete は指定キーのエントリを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error

	// Close はストアが保持するリソースを解放する。
	Close() error
}

// HealthChecker はストアの疎通確認に必要なインターフェース。
type HealthChecker interface {
	Ping(ctx context.Context) error
}
