// Package importer は注文ファイルの取り込みを提供する。
//
// 表形式ファイル（CSV / TSV / XLSX）を行に分解し、見出しの揺れを吸収して
// 注文カタログ（model.Database）に正規化する。列の推定はベストエフォートで、
// 名前で見つからない注文番号・部品番号の列は1列目・2列目として扱う。
package importer

import (
	"strings"

	"github.com/hitoshi/packman/internal/model"
)

// Table は表形式ファイルから読み取った行の集合。
// Columnsは1行目の見出しをファイル上の並び順で保持し、全行の列定義となる。
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Sanitizer は取り込んだセル値を無害化するインターフェース。
type Sanitizer interface {
	Sanitize(value string) string
}

// Report は正規化の結果件数。
type Report struct {
	Rows    int // 見出しを除いた行数
	Skipped int // 注文番号または部品番号が解決できず除外した行数
	Orders  int
}

// 列ごとに受け付ける見出しの断片。大文字小文字を区別せず部分一致で判定する。
var (
	orderFragments    = []string{"order", "注文", "受注", "オーダー"}
	partFragments     = []string{"part", "部品", "品番", "パーツ"}
	customerFragments = []string{"customer", "client", "顧客", "得意先", "客先"}
	projectFragments  = []string{"project", "案件", "プロジェクト", "工事"}
	dateFragments     = []string{"supply", "date", "納期", "納入", "供給", "日付"}
)

// columnMap は論理列ごとに選ばれた見出し。空文字列は列なしを表す。
type columnMap struct {
	order    string
	part     string
	customer string
	project  string
	date     string
}

// Normalizer は表形式の行を注文カタログに変換する。I/Oは行わない。
type Normalizer struct {
	sanitizer Sanitizer
}

// NewNormalizer はNormalizerを生成する。sanitizerがnilの場合は前後の空白除去のみ行う。
func NewNormalizer(sanitizer Sanitizer) *Normalizer {
	return &Normalizer{sanitizer: sanitizer}
}

// Normalize は行を注文ごとにまとめたDatabaseを返す。
//
// 同じ注文番号の行は出現順に1件の注文へ統合し、部品番号を読み取り順に追加する。
// 顧客・案件・納期は最初の行の値を採用し、以降の行では上書きしない。
// 注文の並びは初出順を保持し、すべてPendingとして生成する。
func (n *Normalizer) Normalize(t Table) (*model.Database, Report) {
	db := &model.Database{Orders: []*model.Order{}}
	report := Report{Rows: len(t.Rows)}
	if len(t.Rows) == 0 {
		return db, report
	}

	cols := detectColumns(t.Columns)
	index := make(map[string]*model.Order)

	for _, row := range t.Rows {
		orderID := cell(row, cols.order)
		partID := cell(row, cols.part)
		if orderID == "" || partID == "" {
			report.Skipped++
			continue
		}

		order, ok := index[orderID]
		if !ok {
			order = &model.Order{
				OrderID:    orderID,
				Parts:      []string{},
				Customer:   n.clean(cell(row, cols.customer)),
				Project:    n.clean(cell(row, cols.project)),
				SupplyDate: n.clean(cell(row, cols.date)),
				Status:     model.OrderStatusPending,
			}
			index[orderID] = order
			db.Orders = append(db.Orders, order)
		}
		order.Parts = append(order.Parts, partID)
	}

	report.Orders = len(db.Orders)
	return db, report
}

func (n *Normalizer) clean(value string) string {
	if n.sanitizer == nil {
		return value
	}
	return n.sanitizer.Sanitize(value)
}

// detectColumns は見出しから論理列を選ぶ。
// 1つの見出しは1つの論理列にのみ割り当てる。注文番号・部品番号の列は
// 位置による補完も含めて先に確定し、残りの見出しから記述列を選ぶ。
func detectColumns(columns []string) columnMap {
	used := make(map[string]bool)
	pick := func(fragments []string) string {
		for _, c := range columns {
			if used[c] || !matchesAny(c, fragments) {
				continue
			}
			used[c] = true
			return c
		}
		return ""
	}
	fallback := func(pos int) string {
		if pos >= len(columns) || used[columns[pos]] {
			return ""
		}
		used[columns[pos]] = true
		return columns[pos]
	}

	var m columnMap
	m.order = pick(orderFragments)
	m.part = pick(partFragments)
	if m.order == "" {
		m.order = fallback(0)
	}
	if m.part == "" {
		m.part = fallback(1)
	}

	m.customer = pick(customerFragments)
	m.project = pick(projectFragments)
	m.date = pick(dateFragments)
	return m
}

func matchesAny(header string, fragments []string) bool {
	h := strings.ToLower(header)
	for _, f := range fragments {
		if strings.Contains(h, f) {
			return true
		}
	}
	return false
}

func cell(row map[string]string, column string) string {
	if column == "" {
		return ""
	}
	return strings.TrimSpace(row[column])
}
