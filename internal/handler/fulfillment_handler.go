package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/packman/internal/fulfillment"
	"github.com/hitoshi/packman/internal/model"
)

// FulfillmentService はハンドラーが必要とする状態マシンの操作。
// fulfillment.Machineが実装する。
type FulfillmentService interface {
	Snapshot() fulfillment.Snapshot
	Login(ctx context.Context, name string) (fulfillment.Snapshot, error)
	Logout(ctx context.Context) fulfillment.Snapshot
	BeginOrderSelection() (fulfillment.Snapshot, error)
	SubmitOrderCode(code string) (fulfillment.Snapshot, error)
	SubmitPartCode(code string) (fulfillment.Snapshot, error)
	CancelScan() (fulfillment.Snapshot, error)
	CommitPack(ctx context.Context) (fulfillment.Snapshot, error)
	ReturnHome() (fulfillment.Snapshot, error)
	ReplaceDatabase(ctx context.Context, db *model.Database) (fulfillment.Snapshot, error)
	Orders() *model.Database
	User() string
}

var _ FulfillmentService = (*fulfillment.Machine)(nil)

// ScanStopper は画面遷移時に読み取り中のソースを停止する。
type ScanStopper interface {
	StopAll()
}

// FulfillmentHandler は梱包作業のHTTPハンドラー。
type FulfillmentHandler struct {
	machine FulfillmentService
	scans   ScanStopper
}

// NewFulfillmentHandler はFulfillmentHandlerを生成する。
func NewFulfillmentHandler(machine FulfillmentService, scans ScanStopper) *FulfillmentHandler {
	return &FulfillmentHandler{machine: machine, scans: scans}
}

type loginRequest struct {
	Name string `json:"name"`
}

type codeRequest struct {
	Code string `json:"code"`
}

// progressResponse は部品の読み取り進捗。
type progressResponse struct {
	Scanned  int `json:"scanned"`
	Required int `json:"required"`
}

// stateResponse は画面表示に必要な状態のAPIレスポンス。
type stateResponse struct {
	State        string           `json:"state"`
	Screen       string           `json:"screen"`
	User         string           `json:"user,omitempty"`
	Order        *model.Order     `json:"order,omitempty"`
	ScannedParts []string         `json:"scannedParts"`
	MissingParts []string         `json:"missingParts"`
	Progress     progressResponse `json:"progress"`
}

// ordersResponse は注文一覧のAPIレスポンス。
type ordersResponse struct {
	Orders  []*model.Order `json:"orders"`
	Pending int            `json:"pending"`
	Packed  int            `json:"packed"`
}

// GetState は現在の状態を返す。
// GET /api/state
func (h *FulfillmentHandler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toStateResponse(h.machine.Snapshot()))
}

// Login は作業者名でログインする。
// POST /api/login
func (h *FulfillmentHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, func() (fulfillment.Snapshot, error) {
		return h.machine.Login(r.Context(), req.Name)
	}, false)
}

// Logout はログアウトする。注文データは保持される。
// POST /api/logout
func (h *FulfillmentHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (fulfillment.Snapshot, error) {
		return h.machine.Logout(r.Context()), nil
	}, true)
}

// BeginOrderSelection は注文選択画面に遷移する。
// POST /api/orders/selection
func (h *FulfillmentHandler) BeginOrderSelection(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.BeginOrderSelection, true)
}

// SubmitOrderCode は注文コードの手入力または読み取り結果を受け付ける。
// POST /api/orders/code
func (h *FulfillmentHandler) SubmitOrderCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, func() (fulfillment.Snapshot, error) {
		return h.machine.SubmitOrderCode(req.Code)
	}, true)
}

// SubmitPartCode は部品コードの手入力または読み取り結果を受け付ける。
// POST /api/parts/code
func (h *FulfillmentHandler) SubmitPartCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.respond(w, func() (fulfillment.Snapshot, error) {
		return h.machine.SubmitPartCode(req.Code)
	}, true)
}

// CancelScan は部品読み取りを中断して注文選択に戻る。
// POST /api/scan/cancel
func (h *FulfillmentHandler) CancelScan(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.CancelScan, true)
}

// CommitPack は梱包完了を確定し保存する。
// POST /api/pack
func (h *FulfillmentHandler) CommitPack(w http.ResponseWriter, r *http.Request) {
	h.respond(w, func() (fulfillment.Snapshot, error) {
		return h.machine.CommitPack(r.Context())
	}, true)
}

// ReturnHome はホームに戻る。
// POST /api/home
func (h *FulfillmentHandler) ReturnHome(w http.ResponseWriter, r *http.Request) {
	h.respond(w, h.machine.ReturnHome, true)
}

// ListOrders は注文一覧と状態ごとの件数を返す。
// GET /api/orders
func (h *FulfillmentHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	db := h.machine.Orders()
	pending, packed := db.CountByStatus()
	orders := db.Orders
	if orders == nil {
		orders = []*model.Order{}
	}
	writeJSON(w, http.StatusOK, ordersResponse{Orders: orders, Pending: pending, Packed: packed})
}

// respond は操作を実行し、成功時は状態を返す。
// stopScanがtrueの場合、成功した遷移の後に読み取り中のソースを停止する。
func (h *FulfillmentHandler) respond(w http.ResponseWriter, op func() (fulfillment.Snapshot, error), stopScan bool) {
	snap, err := op()
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if stopScan && h.scans != nil {
		h.scans.StopAll()
	}
	writeJSON(w, http.StatusOK, toStateResponse(snap))
}

// toStateResponse はSnapshotからAPIレスポンスに変換する。
func toStateResponse(s fulfillment.Snapshot) stateResponse {
	scanned := s.ScannedParts
	if scanned == nil {
		scanned = []string{}
	}
	missing := s.MissingParts
	if missing == nil {
		missing = []string{}
	}
	return stateResponse{
		State:        string(s.State),
		Screen:       s.State.Label(),
		User:         s.User,
		Order:        s.Order,
		ScannedParts: scanned,
		MissingParts: missing,
		Progress:     progressResponse{Scanned: s.Scanned, Required: s.Required},
	}
}
