package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/hitoshi/packman/internal/importer"
	"github.com/hitoshi/packman/internal/model"
)

// multipartMemory はmultipartフォームをメモリに保持する上限。超過分は一時ファイルに書かれる。
const multipartMemory = 1 << 20

// ImportService はファイルまたはURLから注文カタログを取り込むインターフェース。
type ImportService interface {
	ImportFile(name, contentType string, r io.Reader) (*importer.Result, error)
	ImportURL(ctx context.Context, rawURL string) (*importer.Result, error)
}

var _ ImportService = (*importer.Service)(nil)

// ImportHandler は注文カタログ取り込みのHTTPハンドラー。
type ImportHandler struct {
	service ImportService
	machine FulfillmentService
	scans   ScanStopper
}

// NewImportHandler はImportHandlerを生成する。
func NewImportHandler(service ImportService, machine FulfillmentService, scans ScanStopper) *ImportHandler {
	return &ImportHandler{service: service, machine: machine, scans: scans}
}

type importURLRequest struct {
	URL string `json:"url"`
}

// importResponse は取り込み結果のAPIレスポンス。
type importResponse struct {
	Format  string        `json:"format"`
	Rows    int           `json:"rows"`
	Skipped int           `json:"skipped"`
	Orders  int           `json:"orders"`
	State   stateResponse `json:"state"`
}

// ImportFile はアップロードされたファイルで注文カタログを置き換える。
// POST /api/import （multipartのfileフィールド）
func (h *ImportHandler) ImportFile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		handleServiceError(w, model.NewValidationError("ファイル"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		handleServiceError(w, model.NewValidationError("ファイル"))
		return
	}
	defer file.Close()

	result, err := h.service.ImportFile(header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.replace(w, r, result)
}

// ImportURL は指定URLのファイルで注文カタログを置き換える。
// POST /api/import/url
func (h *ImportHandler) ImportURL(w http.ResponseWriter, r *http.Request) {
	var req importURLRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.URL == "" {
		handleServiceError(w, model.NewValidationError("URL"))
		return
	}

	result, err := h.service.ImportURL(r.Context(), req.URL)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	h.replace(w, r, result)
}

// replace は取り込んだDatabaseを保存して差し替える。
// 作業中の読み取りは旧データを参照しているため停止する。
func (h *ImportHandler) replace(w http.ResponseWriter, r *http.Request, result *importer.Result) {
	snap, err := h.machine.ReplaceDatabase(r.Context(), result.Database)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if h.scans != nil {
		h.scans.StopAll()
	}

	writeJSON(w, http.StatusOK, importResponse{
		Format:  string(result.Format),
		Rows:    result.Report.Rows,
		Skipped: result.Report.Skipped,
		Orders:  result.Report.Orders,
		State:   toStateResponse(snap),
	})
}
