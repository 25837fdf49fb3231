package scan

import "sync"

// DetectFunc は読み取り元が検出したコードを受け取る。
// 戻り値のエラーは検出を送ってきた呼び出し元にそのまま返る。
type DetectFunc func(code string) error

// Source は読み取り元のインターフェース。
// Startは検出コールバックを登録し、Stopは以後の検出を破棄させる。
type Source interface {
	Start(onDetected DetectFunc)
	Stop()
	Active() bool
}

// OneShotSource は最大1件の検出だけを届ける読み取り元。
// 表示層（ブラウザのデコーダーや手入力欄）から届いた検出をDeliverで受け取る。
type OneShotSource struct {
	mu         sync.Mutex
	active     bool
	onDetected DetectFunc
}

// NewOneShotSource は停止状態のOneShotSourceを生成する。
func NewOneShotSource() *OneShotSource {
	return &OneShotSource{}
}

// Start は検出コールバックを登録して有効にする。
func (s *OneShotSource) Start(onDetected DetectFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDetected = onDetected
	s.active = onDetected != nil
}

// Stop は読み取り元を無効にする。以後のDeliverは破棄される。
func (s *OneShotSource) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	s.onDetected = nil
}

// Active は検出を受け付ける状態かどうかを返す。
func (s *OneShotSource) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Deliver は検出を1件だけコールバックに渡す。
// 無効な状態、または既に1件届けた後の検出は破棄し、delivered=falseを返す。
// コールバックはロックの外で呼ぶ。
func (s *OneShotSource) Deliver(code string) (delivered bool, err error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return false, nil
	}
	cb := s.onDetected
	s.active = false
	s.mu.Unlock()

	return true, cb(code)
}

// compile-time interface check
var _ Source = (*OneShotSource)(nil)
