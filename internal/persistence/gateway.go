// Package persistence は注文カタログとログイン中の作業者名を端末内ストアに保存・復元する。
//
// 保存形式は2つの独立したエントリで、スキーマバージョンは持たない。
//   - <prefix>:db   注文カタログ（{"orders":[...]} のJSON）
//   - <prefix>:user ログイン中の作業者名（プレーン文字列）
//
// 読み込み時にエントリが存在しない、または破損している場合は同梱サンプルに置き換える。
// 破損はログにのみ記録し、作業者には通知しない。
package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/packman/internal/model"
	"github.com/hitoshi/packman/internal/repository"
)

// ErrCorrupt は保存済みデータが構造化データとして解釈できないことを表す。
var ErrCorrupt = errors.New("persisted database is corrupt")

// CorruptionRecorder は破損検出を記録するインターフェース。
// metrics.Collectorが実装する。
type CorruptionRecorder interface {
	RecordPersistenceCorrupt()
}

// Gateway は端末内KVストアのラッパー。
// Databaseを自ら変更することはなく、状態マシンが保持する内容を写すだけである。
type Gateway struct {
	store    repository.KVStore
	logger   *slog.Logger
	recorder CorruptionRecorder
	dbKey    string
	userKey  string
}

// NewGateway はGatewayを生成する。prefixが空の場合は"packman"を使う。
// recorderはnilでもよい。
func NewGateway(store repository.KVStore, prefix string, logger *slog.Logger, recorder CorruptionRecorder) *Gateway {
	if prefix == "" {
		prefix = "packman"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		store:    store,
		logger:   logger,
		recorder: recorder,
		dbKey:    prefix + ":db",
		userKey:  prefix + ":user",
	}
}

// LoadDatabase は保存済みの注文カタログを返す。
// 未保存、読み込み失敗、破損のいずれの場合も同梱サンプルを返す。
func (g *Gateway) LoadDatabase(ctx context.Context) *model.Database {
	raw, err := g.store.Get(ctx, g.dbKey)
	if errors.Is(err, repository.ErrNotFound) {
		g.logger.Info("保存済みの注文データがないためサンプルを使用します")
		return SampleDatabase()
	}
	if err != nil {
		g.logger.Error("注文データの読み込みに失敗したためサンプルを使用します",
			slog.String("key", g.dbKey),
			slog.String("error", err.Error()),
		)
		return SampleDatabase()
	}

	db, err := decodeDatabase(raw)
	if err != nil {
		g.logger.Error("注文データが破損しているためサンプルを使用します",
			slog.String("key", g.dbKey),
			slog.String("error", err.Error()),
		)
		if g.recorder != nil {
			g.recorder.RecordPersistenceCorrupt()
		}
		return SampleDatabase()
	}

	return db
}

// SaveDatabase は注文カタログを保存する。
// 戻り値がnilの時点で書き込みは完了している。
func (g *Gateway) SaveDatabase(ctx context.Context, db *model.Database) error {
	raw, err := encodeDatabase(db)
	if err != nil {
		return err
	}
	if err := g.store.Put(ctx, g.dbKey, raw); err != nil {
		return fmt.Errorf("failed to save database: %w", err)
	}
	return nil
}

// LoadSession は保存済みの作業者名を返す。未保存の場合はokがfalseになる。
func (g *Gateway) LoadSession(ctx context.Context) (user string, ok bool) {
	raw, err := g.store.Get(ctx, g.userKey)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			g.logger.Error("作業者名の読み込みに失敗しました",
				slog.String("key", g.userKey),
				slog.String("error", err.Error()),
			)
		}
		return "", false
	}
	if len(raw) == 0 {
		return "", false
	}
	return string(raw), true
}

// SaveSession は作業者名を保存する。
func (g *Gateway) SaveSession(ctx context.Context, user string) error {
	if err := g.store.Put(ctx, g.userKey, []byte(user)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// ClearSession は保存済みの作業者名を削除する。
func (g *Gateway) ClearSession(ctx context.Context) error {
	if err := g.store.Delete(ctx, g.userKey); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// storedDatabase は永続化形式。ordersキーが存在しない場合を検出するためポインタで受ける。
type storedDatabase struct {
	Orders *[]*model.Order `json:"orders"`
}

func encodeDatabase(db *model.Database) ([]byte, error) {
	orders := db.Orders
	if orders == nil {
		orders = []*model.Order{}
	}
	raw, err := json.Marshal(storedDatabase{Orders: &orders})
	if err != nil {
		return nil, fmt.Errorf("failed to encode database: %w", err)
	}
	return raw, nil
}

// decodeDatabase は保存形式を検証しつつDatabaseに変換する。
// ordersが無い、注文番号が空または重複、状態値が不明、
// 梱包済みなのに梱包日時・梱包者が無い場合はErrCorruptを返す。
func decodeDatabase(raw []byte) (*model.Database, error) {
	var stored storedDatabase
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if stored.Orders == nil {
		return nil, fmt.Errorf("%w: missing orders", ErrCorrupt)
	}

	db := &model.Database{Orders: make([]*model.Order, 0, len(*stored.Orders))}
	seen := make(map[string]bool, len(*stored.Orders))
	for i, o := range *stored.Orders {
		if o == nil || o.OrderID == "" {
			return nil, fmt.Errorf("%w: order %d has no orderId", ErrCorrupt, i)
		}
		if seen[o.OrderID] {
			return nil, fmt.Errorf("%w: duplicate orderId %s", ErrCorrupt, o.OrderID)
		}
		seen[o.OrderID] = true
		switch o.Status {
		case "":
			o.Status = model.OrderStatusPending
		case model.OrderStatusPending:
		case model.OrderStatusPacked:
			if o.PackedAt == nil || o.PackedBy == "" {
				return nil, fmt.Errorf("%w: packed order %s has no packedAt or packedBy", ErrCorrupt, o.OrderID)
			}
		default:
			return nil, fmt.Errorf("%w: order %s has unknown status %q", ErrCorrupt, o.OrderID, o.Status)
		}
		if o.Parts == nil {
			o.Parts = []string{}
		}
		db.Orders = append(db.Orders, o)
	}
	return db, nil
}
