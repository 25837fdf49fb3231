package handler

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/packman/internal/model"
	"github.com/hitoshi/packman/internal/scan"
)

// ScanController は単発の読み取りソースを管理するインターフェース。
// scan.Controllerが実装する。
type ScanController interface {
	Start(target scan.Target, capability scan.Capability, onDetected scan.DetectFunc) (string, error)
	Stop(token string)
	StopAll()
	Deliver(token, code, format string) (bool, error)
}

var _ ScanController = (*scan.Controller)(nil)

// ScanHandler はカメラ読み取りのHTTPハンドラー。
// 表示層がデコードしたコードを受け取り、開始時に指定された送り先の操作に渡す。
type ScanHandler struct {
	scans         ScanController
	machine       FulfillmentService
	secureContext bool
}

// NewScanHandler はScanHandlerを生成する。
func NewScanHandler(scans ScanController, machine FulfillmentService, secureContext bool) *ScanHandler {
	return &ScanHandler{scans: scans, machine: machine, secureContext: secureContext}
}

type scanStartRequest struct {
	Target    string `json:"target"`
	CameraAPI *bool  `json:"cameraApi"`
}

type scanStopRequest struct {
	Token string `json:"token"`
}

type detectionRequest struct {
	Token  string `json:"token"`
	Code   string `json:"code"`
	Format string `json:"format"`
}

type scanStartResponse struct {
	Token  string `json:"token"`
	Target string `json:"target"`
	Camera bool   `json:"camera"`
}

// GetCapability はカメラ読み取りの可否と対応規格を返す。
// カメラAPIの有無はブラウザがクエリパラメータcameraApiで申告する。
// GET /api/scan/capability
func (h *ScanHandler) GetCapability(w http.ResponseWriter, r *http.Request) {
	cameraAPI, _ := strconv.ParseBool(r.URL.Query().Get("cameraApi"))
	writeJSON(w, http.StatusOK, scan.CheckCapability(h.secureContext, cameraAPI))
}

// Start は読み取りを開始してトークンを返す。有効な読み取りは置き換えられる。
// カメラが使えない場合は何も開始せず、camera=falseを200で返す。
// POST /api/scan/start
func (h *ScanHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req scanStartRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	cameraAPI := req.CameraAPI == nil || *req.CameraAPI

	target := scan.Target(req.Target)
	token, err := h.scans.Start(target, scan.CheckCapability(h.secureContext, cameraAPI), h.detectFunc(target))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if token == "" {
		writeJSON(w, http.StatusOK, scanStartResponse{Target: string(target)})
		return
	}
	writeJSON(w, http.StatusCreated, scanStartResponse{Token: token, Target: string(target), Camera: true})
}

// Stop は読み取りを停止する。既に停止済みでも成功する。
// POST /api/scan/stop
func (h *ScanHandler) Stop(w http.ResponseWriter, r *http.Request) {
	var req scanStopRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.scans.Stop(req.Token)
	w.WriteHeader(http.StatusNoContent)
}

// Detect はデコード済みのコードを読み取りに届ける。
// 停止済みの読み取りへの検出は黙って破棄し204を返す。
// POST /api/scan/detections
func (h *ScanHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		handleServiceError(w, model.NewValidationError("トークン"))
		return
	}

	delivered, err := h.scans.Deliver(req.Token, req.Code, req.Format)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if !delivered {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toStateResponse(h.machine.Snapshot()))
}

func (h *ScanHandler) detectFunc(target scan.Target) scan.DetectFunc {
	return func(code string) error {
		var err error
		switch target {
		case scan.TargetOrder:
			_, err = h.machine.SubmitOrderCode(code)
		case scan.TargetPart:
			_, err = h.machine.SubmitPartCode(code)
		}
		return err
	}
}
