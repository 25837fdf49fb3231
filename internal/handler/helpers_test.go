package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/packman/internal/fulfillment"
	"github.com/hitoshi/packman/internal/importer"
	"github.com/hitoshi/packman/internal/middleware"
	"github.com/hitoshi/packman/internal/model"
	"github.com/hitoshi/packman/internal/scan"
)

// --- モック定義 ---

// mockStore はfulfillment.Storeのモック実装。
type mockStore struct {
	saveDatabaseFn func(ctx context.Context, db *model.Database) error
	saved          *model.Database
	sessionUser    string
}

func (m *mockStore) SaveDatabase(ctx context.Context, db *model.Database) error {
	if m.saveDatabaseFn != nil {
		if err := m.saveDatabaseFn(ctx, db); err != nil {
			return err
		}
	}
	m.saved = db.Clone()
	return nil
}

func (m *mockStore) SaveSession(ctx context.Context, user string) error {
	m.sessionUser = user
	return nil
}

func (m *mockStore) ClearSession(ctx context.Context) error {
	m.sessionUser = ""
	return nil
}

// mockImportService はImportServiceのモック実装。
type mockImportService struct {
	importFileFn func(name, contentType string, r io.Reader) (*importer.Result, error)
	importURLFn  func(ctx context.Context, rawURL string) (*importer.Result, error)
}

func (m *mockImportService) ImportFile(name, contentType string, r io.Reader) (*importer.Result, error) {
	if m.importFileFn != nil {
		return m.importFileFn(name, contentType, r)
	}
	return nil, model.NewImportParseError("not configured")
}

func (m *mockImportService) ImportURL(ctx context.Context, rawURL string) (*importer.Result, error) {
	if m.importURLFn != nil {
		return m.importURLFn(ctx, rawURL)
	}
	return nil, model.NewImportParseError("not configured")
}

// mockHealthChecker はrepository.HealthCheckerのモック実装。
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) Ping(ctx context.Context) error { return m.err }

// --- テストヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testOrders() *model.Database {
	packedAt := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &model.Database{Orders: []*model.Order{
		{OrderID: "ORDER001", Parts: []string{"PART001", "PART002"}, Customer: "サンプル商事", Status: model.OrderStatusPending},
		{OrderID: "ORDER002", Parts: []string{"PART003"}, Status: model.OrderStatusPacked, PackedAt: &packedAt, PackedBy: "Eri"},
	}}
}

type testEnv struct {
	router   http.Handler
	machine  *fulfillment.Machine
	store    *mockStore
	scans    *scan.Controller
	importer *mockImportService
	limiter  *middleware.RateLimiter
}

// newTestEnv は実際の状態マシンと読み取りコントローラーでルーターを構成する。
// userが空でなければログイン済みの状態から開始する。
func newTestEnv(t *testing.T, user string) *testEnv {
	t.Helper()

	store := &mockStore{}
	machine := fulfillment.NewMachine(testOrders(), user, store, fulfillment.Options{
		Logger: discardLogger(),
		Now:    func() time.Time { return time.Date(2024, 4, 1, 10, 30, 0, 0, time.UTC) },
	})
	scans := scan.NewController(discardLogger(), nil)
	imp := &mockImportService{}
	limiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(limiter.Stop)

	router := NewRouter(&RouterDeps{
		Logger:            discardLogger(),
		CORSAllowedOrigin: "http://localhost:8080",
		RateLimiter:       limiter,
		Machine:           machine,
		Scans:             scans,
		Importer:          imp,
		SecureContext:     true,
		HealthChecker:     &mockHealthChecker{},
	})

	return &testEnv{
		router:   router,
		machine:  machine,
		store:    store,
		scans:    scans,
		importer: imp,
		limiter:  limiter,
	}
}

// do はJSONボディ付きのリクエストを送る。bodyが空の場合はボディなし。
func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = jsonBody(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeState(t *testing.T, w *httptest.ResponseRecorder) stateResponse {
	t.Helper()
	var s stateResponse
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("failed to decode state response: %v\nbody: %s", err, w.Body.String())
	}
	return s
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	if got := parseAPIErrorResponse(t, w)["code"]; got != code {
		t.Errorf("code = %q, want %q", got, code)
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
