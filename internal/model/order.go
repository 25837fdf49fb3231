// Package model はドメインモデルを定義する。
package model

import "time"

// OrderStatus は注文の梱包状態を表す。
type OrderStatus string

const (
	// OrderStatusPending は梱包待ちの状態。
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPacked は全部品の確認が済み梱包完了した状態。
	// Pending → Packed の一方向にのみ遷移する。
	OrderStatusPacked OrderStatus = "packed"
)

// Order は梱包作業の単位となる注文を表す。
// Partsは取り込み時の並び順を保持し、重複IDも除去しない。
type Order struct {
	OrderID    string      `json:"orderId"`
	Parts      []string    `json:"parts"`
	Customer   string      `json:"customer,omitempty"`
	Project    string      `json:"project,omitempty"`
	SupplyDate string      `json:"supplyDate,omitempty"`
	Status     OrderStatus `json:"status"`
	PackedAt   *time.Time  `json:"packedAt,omitempty"`
	PackedBy   string      `json:"packedBy,omitempty"`
}

// IsPacked は注文が梱包済みかどうかを返す。
func (o *Order) IsPacked() bool {
	return o.Status == OrderStatusPacked
}

// DistinctParts は部品IDを重複なしで初出順に返す。
// 完了判定はこの件数を基準にする。
func (o *Order) DistinctParts() []string {
	seen := make(map[string]struct{}, len(o.Parts))
	result := make([]string, 0, len(o.Parts))
	for _, p := range o.Parts {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
	}
	return result
}

// HasPart は指定の部品IDが注文に含まれるかを返す。
func (o *Order) HasPart(partID string) bool {
	for _, p := range o.Parts {
		if p == partID {
			return true
		}
	}
	return false
}

// Clone は注文のディープコピーを返す。
func (o *Order) Clone() *Order {
	c := *o
	c.Parts = append([]string(nil), o.Parts...)
	if o.PackedAt != nil {
		t := *o.PackedAt
		c.PackedAt = &t
	}
	return &c
}

// Database は端末内に保存される注文カタログ全体を表す。
// 取り込み時に丸ごと置き換えられ、梱包完了時に単一注文の状態のみ更新される。
type Database struct {
	Orders []*Order `json:"orders"`
}

// FindOrder はorderIDに完全一致する注文を返す。見つからない場合はnilを返す。
func (db *Database) FindOrder(orderID string) *Order {
	for _, o := range db.Orders {
		if o.OrderID == orderID {
			return o
		}
	}
	return nil
}

// Clone はDatabaseのディープコピーを返す。
func (db *Database) Clone() *Database {
	c := &Database{Orders: make([]*Order, len(db.Orders))}
	for i, o := range db.Orders {
		c.Orders[i] = o.Clone()
	}
	return c
}

// CountByStatus は状態ごとの注文件数を返す。
func (db *Database) CountByStatus() (pending, packed int) {
	for _, o := range db.Orders {
		if o.IsPacked() {
			packed++
		} else {
			pending++
		}
	}
	return pending, packed
}
