// Package fulfillment は注文の梱包作業を進める状態マシンを提供する。
//
// 画面遷移は LoggedOut → Home → SelectingOrder → ScanningParts → Summary → Home。
// 読み取られたコードは各遷移で検証され、梱包完了と取り込みの時点でのみ永続化される。
// 不正な入力は状態を変更せず*model.APIErrorとして返すため、呼び出し元は同じ画面で再試行できる。
//
// Machineは独立したインスタンスで、グローバルな状態を持たない。
// HTTPハンドラーなど複数goroutineから呼ばれるため、全操作を内部のmutexで直列化する。
package fulfillment

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/packman/internal/model"
)

// Store は状態マシンが永続化に使うインターフェース。
// persistence.Gatewayの部分集合として定義する。
type Store interface {
	SaveDatabase(ctx context.Context, db *model.Database) error
	SaveSession(ctx context.Context, user string) error
	ClearSession(ctx context.Context) error
}

// Observer は状態マシンのイベントを記録するインターフェース。
// metrics.Collectorが実装する。
type Observer interface {
	RecordRejected(operation, code string)
	RecordPartScanned()
	RecordOrderPacked()
	RecordDatabaseReplaced(orders int)
}

// Options はMachineの任意設定。
type Options struct {
	Logger   *slog.Logger
	Observer Observer
	Now      func() time.Time
}

// Snapshot は表示層に渡す読み取り専用の状態。
type Snapshot struct {
	State        State
	User         string
	Order        *model.Order // 作業中の注文のコピー。作業中でなければnil
	ScannedParts []string
	MissingParts []string
	Scanned      int
	Required     int
}

// Machine は梱包作業の状態マシン。
type Machine struct {
	mu       sync.Mutex
	state    State
	session  model.Session
	db       *model.Database
	progress *Progress

	store    Store
	logger   *slog.Logger
	observer Observer
	now      func() time.Time
}

// NewMachine はMachineを生成する。
// userが空でなければ復元されたログイン状態としてHomeから開始する。
func NewMachine(db *model.Database, user string, store Store, opts Options) *Machine {
	if db == nil {
		db = &model.Database{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Machine{
		state:    StateLoggedOut,
		db:       db,
		store:    store,
		logger:   opts.Logger,
		observer: opts.Observer,
		now:      opts.Now,
	}
	if strings.TrimSpace(user) != "" {
		m.session.User = strings.TrimSpace(user)
		m.state = StateHome
	}
	return m
}

// Login は作業者名でログインし、Homeに遷移する。
// 前後の空白を除いた名前が空の場合はVALIDATION_ERRORを返す。
func (m *Machine) Login(ctx context.Context, name string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLoggedOut {
		return m.reject("login", model.NewInvalidTransitionError("ログイン", m.state.Label()), name)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return m.reject("login", model.NewValidationError("作業者名"), name)
	}

	if err := m.store.SaveSession(ctx, name); err != nil {
		m.logger.Error("作業者名の保存に失敗しました",
			slog.String("user", name),
			slog.String("error", err.Error()),
		)
		return m.snapshotLocked(), model.NewPersistenceFailedError()
	}

	m.session.User = name
	m.state = StateHome

	m.logger.Info("作業者がログインしました", slog.String("user", name))
	return m.snapshotLocked(), nil
}

// Logout はセッションを破棄してLoggedOutに遷移する。Databaseは保持する。
// 保存済みセッションの削除に失敗してもメモリ上はログアウトする。
func (m *Machine) Logout(ctx context.Context) Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateLoggedOut {
		return m.snapshotLocked()
	}

	user := m.session.User
	if err := m.store.ClearSession(ctx); err != nil {
		m.logger.Error("保存済みセッションの削除に失敗しました",
			slog.String("user", user),
			slog.String("error", err.Error()),
		)
	}

	m.session = model.Session{}
	m.progress = nil
	m.state = StateLoggedOut

	m.logger.Info("作業者がログアウトしました", slog.String("user", user))
	return m.snapshotLocked()
}

// BeginOrderSelection はHomeから注文選択画面に遷移する。
// 注文選択画面で呼ばれた場合は何もしない。
func (m *Machine) BeginOrderSelection() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("beginOrderSelection"); err != nil {
		return m.snapshotLocked(), err
	}
	if m.state != StateHome && m.state != StateSelectingOrder {
		return m.reject("beginOrderSelection", model.NewInvalidTransitionError("注文選択", m.state.Label()), "")
	}

	m.state = StateSelectingOrder
	return m.snapshotLocked(), nil
}

// SubmitOrderCode は読み取った注文番号で注文を選択し、部品読み取り画面に遷移する。
// 失敗時は注文選択画面に留まり、進捗は変更しない。
func (m *Machine) SubmitOrderCode(code string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("submitOrderCode"); err != nil {
		return m.snapshotLocked(), err
	}
	if m.state != StateSelectingOrder {
		return m.reject("submitOrderCode", model.NewInvalidTransitionError("注文番号の読み取り", m.state.Label()), code)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return m.reject("submitOrderCode", model.NewValidationError("注文番号"), code)
	}

	order := m.db.FindOrder(code)
	if order == nil {
		return m.reject("submitOrderCode", model.NewOrderNotFoundError(code), code)
	}
	if order.IsPacked() {
		return m.reject("submitOrderCode", model.NewOrderAlreadyPackedError(code), code)
	}

	m.progress = newProgress(order)
	m.state = StateScanningParts
	if m.progress.Complete() {
		m.state = StateSummary
	}

	m.logger.Info("注文を選択しました",
		slog.String("order_id", order.OrderID),
		slog.Int("required_parts", len(m.progress.required)),
	)
	return m.snapshotLocked(), nil
}

// SubmitPartCode は読み取った部品IDを作業中の注文に照合する。
// 空入力は何もしない。必要な部品がすべて揃うとSummaryに遷移する。
func (m *Machine) SubmitPartCode(code string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("submitPartCode"); err != nil {
		return m.snapshotLocked(), err
	}
	if m.state != StateScanningParts {
		return m.reject("submitPartCode", model.NewInvalidTransitionError("部品の読み取り", m.state.Label()), code)
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return m.snapshotLocked(), nil
	}

	if m.progress.Has(code) {
		return m.reject("submitPartCode", model.NewDuplicatePartError(code), code)
	}
	if !m.progress.order.HasPart(code) {
		return m.reject("submitPartCode", model.NewPartNotInOrderError(code), code)
	}

	m.progress.add(code)
	if m.observer != nil {
		m.observer.RecordPartScanned()
	}

	if m.progress.Complete() {
		m.state = StateSummary
		m.logger.Info("すべての部品を確認しました",
			slog.String("order_id", m.progress.order.OrderID),
		)
	}
	return m.snapshotLocked(), nil
}

// CancelScan は部品読み取りを中止し、進捗を破棄して注文選択画面に戻る。
func (m *Machine) CancelScan() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("cancelScan"); err != nil {
		return m.snapshotLocked(), err
	}
	if m.state != StateScanningParts {
		return m.reject("cancelScan", model.NewInvalidTransitionError("読み取りの中止", m.state.Label()), "")
	}

	m.progress = nil
	m.state = StateSelectingOrder
	return m.snapshotLocked(), nil
}

// CommitPack は作業中の注文を梱包済みにして保存し、Homeに戻る。
// 保存に失敗した場合は注文をPendingに戻し、Summaryに留まる。
func (m *Machine) CommitPack(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("commitPack"); err != nil {
		return m.snapshotLocked(), err
	}
	if m.state != StateSummary {
		return m.reject("commitPack", model.NewInvalidTransitionError("梱包完了", m.state.Label()), "")
	}
	if missing := m.progress.Missing(); len(missing) > 0 {
		return m.reject("commitPack", model.NewPartsMissingError(len(missing)), "")
	}

	order := m.progress.order
	previous := *order

	packedAt := m.now().UTC()
	order.Status = model.OrderStatusPacked
	order.PackedAt = &packedAt
	order.PackedBy = m.session.User

	if err := m.store.SaveDatabase(ctx, m.db); err != nil {
		*order = previous
		m.logger.Error("梱包結果の保存に失敗しました",
			slog.String("order_id", order.OrderID),
			slog.String("error", err.Error()),
		)
		return m.snapshotLocked(), model.NewPersistenceFailedError()
	}

	if m.observer != nil {
		m.observer.RecordOrderPacked()
	}
	m.logger.Info("注文を梱包済みにしました",
		slog.String("order_id", order.OrderID),
		slog.String("packed_by", order.PackedBy),
		slog.Time("packed_at", packedAt),
	)

	m.progress = nil
	m.state = StateHome
	return m.snapshotLocked(), nil
}

// ReturnHome は進捗を破棄してHomeに戻る。部品読み取り中の場合は中止を兼ねる。
func (m *Machine) ReturnHome() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("returnHome"); err != nil {
		return m.snapshotLocked(), err
	}

	m.progress = nil
	m.state = StateHome
	return m.snapshotLocked(), nil
}

// ReplaceDatabase は取り込んだ注文カタログを保存してから差し替え、Homeに戻る。
// 保存に失敗した場合は現在のDatabaseを変更しない。
func (m *Machine) ReplaceDatabase(ctx context.Context, db *model.Database) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.requireLoggedIn("replaceDatabase"); err != nil {
		return m.snapshotLocked(), err
	}

	if err := m.store.SaveDatabase(ctx, db); err != nil {
		m.logger.Error("取り込んだ注文データの保存に失敗しました",
			slog.Int("orders", len(db.Orders)),
			slog.String("error", err.Error()),
		)
		return m.snapshotLocked(), model.NewPersistenceFailedError()
	}

	m.db = db
	m.progress = nil
	m.state = StateHome

	if m.observer != nil {
		m.observer.RecordDatabaseReplaced(len(db.Orders))
	}
	m.logger.Info("注文データを取り込みました", slog.Int("orders", len(db.Orders)))
	return m.snapshotLocked(), nil
}

// Snapshot は現在の状態を返す。
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// MissingParts は作業中の注文で未読み取りの部品IDを返す。作業中でなければnil。
func (m *Machine) MissingParts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progress == nil {
		return nil
	}
	return m.progress.Missing()
}

// ProgressCount は（読み取り済み件数, 必要な部品IDの種類数）を返す。
func (m *Machine) ProgressCount() (scanned, required int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.progress == nil {
		return 0, 0
	}
	return m.progress.Count()
}

// Orders は注文カタログのコピーを返す。
func (m *Machine) Orders() *model.Database {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db.Clone()
}

// User はログイン中の作業者名を返す。未ログインの場合は空文字列。
func (m *Machine) User() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.User
}

func (m *Machine) requireLoggedIn(operation string) error {
	if m.session.LoggedIn() {
		return nil
	}
	_, err := m.reject(operation, model.NewNotLoggedInError(), "")
	return err
}

// reject は拒否した操作を記録し、状態を変更せずに返す。
func (m *Machine) reject(operation string, apiErr *model.APIError, input string) (Snapshot, error) {
	m.logger.Warn("操作を受け付けませんでした",
		slog.String("operation", operation),
		slog.String("code", apiErr.Code),
		slog.String("input", input),
		slog.String("state", string(m.state)),
	)
	if m.observer != nil {
		m.observer.RecordRejected(operation, apiErr.Code)
	}
	return m.snapshotLocked(), apiErr
}

func (m *Machine) snapshotLocked() Snapshot {
	s := Snapshot{
		State: m.state,
		User:  m.session.User,
	}
	if m.progress != nil {
		s.Order = m.progress.order.Clone()
		s.ScannedParts = m.progress.Scanned()
		s.MissingParts = m.progress.Missing()
		s.Scanned, s.Required = m.progress.Count()
	}
	return s
}
