package scan

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hitoshi/packman/internal/model"
)

// Target は読み取ったコードの送り先。
type Target string

const (
	TargetOrder Target = "order"
	TargetPart  Target = "part"
)

// Valid は既知の送り先かどうかを返す。
func (t Target) Valid() bool {
	return t == TargetOrder || t == TargetPart
}

// Observer は検出イベントの結果を記録するインターフェース。
type Observer interface {
	RecordDetection(outcome string)
}

// 検出イベントの結果
const (
	OutcomeDelivered   = "delivered"
	OutcomeStale       = "stale"
	OutcomeUnsupported = "unsupported"
)

// session は開始済みの読み取りを表す。
type session struct {
	token  string
	target Target
	source *OneShotSource
}

// Controller は読み取り元を一度に1つだけ有効にする。
// 読み取りごとにトークンを発行し、古いトークンに届いた検出は破棄する。
type Controller struct {
	mu       sync.Mutex
	current  *session
	logger   *slog.Logger
	observer Observer
	newToken func() string
}

// NewController はControllerを生成する。
func NewController(logger *slog.Logger, observer Observer) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger:   logger,
		observer: observer,
		newToken: func() string { return uuid.New().String() },
	}
}

// Start は新しい読み取りを開始してトークンを返す。
// 有効な読み取りがあれば先に停止する。
// カメラが使えない場合は何も開始せず空のトークンを返す。表示層は手入力に切り替える。
func (c *Controller) Start(target Target, capability Capability, onDetected DetectFunc) (string, error) {
	if !target.Valid() {
		return "", model.NewValidationError("読み取り対象")
	}
	if !capability.Camera {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.source.Stop()
		c.logger.Info("前の読み取りを停止しました", slog.String("token", c.current.token))
	}

	src := NewOneShotSource()
	src.Start(onDetected)
	c.current = &session{
		token:  c.newToken(),
		target: target,
		source: src,
	}

	c.logger.Info("読み取りを開始しました",
		slog.String("token", c.current.token),
		slog.String("target", string(target)),
	)
	return c.current.token, nil
}

// Stop はトークンに対応する読み取りを停止する。
// 既に停止済み、または別の読み取りに置き換わっている場合は何もしない。
func (c *Controller) Stop(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.token != token {
		return
	}
	c.current.source.Stop()
	c.current = nil
}

// StopAll は有効な読み取りを停止する。画面遷移時に使う。
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.source.Stop()
		c.current = nil
	}
}

// Deliver は検出したコードを読み取りのコールバックに渡す。
//
// 古いトークン、停止済み、または既に1件届けた読み取りへの検出は破棄し、
// エラーなしでdelivered=falseを返す。
// 未対応の規格はUNSUPPORTED_SYMBOLOGYを返し、読み取りは有効なまま残す。
// formatが空の場合（手入力）は規格を検証しない。
func (c *Controller) Deliver(token, code, format string) (delivered bool, err error) {
	c.mu.Lock()
	cur := c.current
	if cur == nil || cur.token != token {
		c.mu.Unlock()
		c.discard(token)
		return false, nil
	}
	if strings.TrimSpace(format) != "" {
		if _, ok := ParseSymbology(format); !ok {
			c.mu.Unlock()
			c.record(OutcomeUnsupported)
			return false, model.NewUnsupportedSymbologyError(format)
		}
	}
	// 単発のため、届けた時点で読み取りを終える
	c.current = nil
	c.mu.Unlock()

	delivered, err = cur.source.Deliver(code)
	cur.source.Stop()
	if !delivered {
		c.discard(token)
		return false, nil
	}

	c.record(OutcomeDelivered)
	return true, err
}

// Active は有効な読み取りのトークンと送り先を返す。
func (c *Controller) Active() (token string, target Target, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return "", "", false
	}
	return c.current.token, c.current.target, true
}

func (c *Controller) discard(token string) {
	c.logger.Debug("停止済みの読み取りへの検出を破棄しました", slog.String("token", token))
	c.record(OutcomeStale)
}

func (c *Controller) record(outcome string) {
	if c.observer != nil {
		c.observer.RecordDetection(outcome)
	}
}
