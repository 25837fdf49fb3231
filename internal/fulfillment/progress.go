package fulfillment

import "github.com/hitoshi/packman/internal/model"

// Progress は1件の注文に対する部品読み取りの進捗を保持する。
// 永続化せず、注文を選び直すか読み取りを中止するたびに破棄される。
// orderはDatabase内の注文への参照で、Progressより長く生存する。
type Progress struct {
	order    *model.Order
	required []string
	scanned  []string
	seen     map[string]struct{}
}

func newProgress(order *model.Order) *Progress {
	return &Progress{
		order:    order,
		required: order.DistinctParts(),
		seen:     make(map[string]struct{}),
	}
}

// Has は部品IDが読み取り済みかどうかを返す。
func (p *Progress) Has(partID string) bool {
	_, ok := p.seen[partID]
	return ok
}

func (p *Progress) add(partID string) {
	p.seen[partID] = struct{}{}
	p.scanned = append(p.scanned, partID)
}

// Missing は未読み取りの部品IDを注文の並び順（重複なし）で返す。
func (p *Progress) Missing() []string {
	missing := make([]string, 0, len(p.required))
	for _, id := range p.required {
		if !p.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// Count は（読み取り済み件数, 必要な部品IDの種類数）を返す。
func (p *Progress) Count() (scanned, required int) {
	return len(p.scanned), len(p.required)
}

// Complete は必要な部品IDがすべて読み取られたかどうかを返す。
// 部品リストに重複がある場合も種類数で判定する。
func (p *Progress) Complete() bool {
	return len(p.scanned) == len(p.required)
}

// Scanned は読み取り順の部品IDのコピーを返す。
func (p *Progress) Scanned() []string {
	return append([]string(nil), p.scanned...)
}
