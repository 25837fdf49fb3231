package repository

import (
	"context"
	"sync"
)

// MemoryKVStore はプロセス内メモリのみで保持するキーバリューストア。
// STORE_DRIVER=memory の動作確認とテストで使用する。
type MemoryKVStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryKVStore はMemoryKVStoreを生成する。
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{entries: make(map[string][]byte)}
}

// Get は指定キーの値のコピーを返す。
func (r *MemoryKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put は指定キーに値のコピーを保存する。
func (r *MemoryKVStore) Put(ctx context.Context, key string, value []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = append([]byte(nil), value...)
	return nil
}

// Delete は指定キーのエントリを削除する。
func (r *MemoryKVStore) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.entries, key)
	return nil
}

// Close は何もしない。
func (r *MemoryKVStore) Close() error {
	return nil
}

// compile-time interface check
var _ KVStore = (*MemoryKVStore)(nil)
