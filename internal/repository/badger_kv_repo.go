package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// BadgerKVStore はBadgerを使用した端末内キーバリューストア。
// デフォルトの永続化先で、ネットワーク接続なしで動作する。
type BadgerKVStore struct {
	db *badger.DB
}

// NewBadgerKVStore はBadgerKVStoreを生成する。
func NewBadgerKVStore(db *badger.DB) *BadgerKVStore {
	return &BadgerKVStore{db: db}
}

// Get は指定キーの値を取得する。存在しない場合はErrNotFoundを返す。
func (r *BadgerKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get kv entry: %w", err)
	}

	return value, nil
}

// Put は指定キーに値を保存する。
func (r *BadgerKVStore) Put(ctx context.Context, key string, value []byte) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("failed to put kv entry: %w", err)
	}
	return nil
}

// Delete は指定キーのエントリを削除する。
func (r *BadgerKVStore) Delete(ctx context.Context, key string) error {
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete kv entry: %w", err)
	}
	return nil
}

// Ping はBadgerが読み取り可能な状態かを確認する。
func (r *BadgerKVStore) Ping(ctx context.Context) error {
	if r.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return nil
}

// Close はBadgerを閉じる。
func (r *BadgerKVStore) Close() error {
	return r.db.Close()
}

// compile-time interface check
var _ KVStore = (*BadgerKVStore)(nil)
var _ HealthChecker = (*BadgerKVStore)(nil)
