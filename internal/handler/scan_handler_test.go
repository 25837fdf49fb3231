package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/packman/internal/model"
	"github.com/hitoshi/packman/internal/scan"
)

func startScan(t *testing.T, env *testEnv, target string) string {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/scan/start", `{"target":"`+target+`"}`)
	assertStatus(t, w, http.StatusCreated)
	var resp scanStartResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.Target != target {
		t.Fatalf("start response = %+v", resp)
	}
	return resp.Token
}

func detection(token, code, format string) string {
	b, _ := json.Marshal(detectionRequest{Token: token, Code: code, Format: format})
	return string(b)
}

func TestGetCapability(t *testing.T) {
	env := newTestEnv(t, "Dana")

	tests := []struct {
		query string
		want  bool
	}{
		{"?cameraApi=true", true},
		{"?cameraApi=false", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/scan/capability"+tt.query, "")
			assertStatus(t, w, http.StatusOK)

			var c scan.Capability
			if err := json.NewDecoder(w.Body).Decode(&c); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if c.Camera != tt.want || !c.SecureContext {
				t.Errorf("capability = %+v, want camera=%v", c, tt.want)
			}
			if len(c.Symbologies) != len(scan.Supported()) {
				t.Errorf("symbologies = %v", c.Symbologies)
			}
		})
	}
}

func TestScanStart_WithoutCamera(t *testing.T) {
	env := newTestEnv(t, "Dana")

	w := env.do(t, http.MethodPost, "/api/scan/start", `{"target":"order","cameraApi":false}`)

	assertNoCameraStart(t, w)
	if _, _, ok := env.scans.Active(); ok {
		t.Error("no scan should be active")
	}
}

func TestScanStart_InsecureContext(t *testing.T) {
	env := newTestEnv(t, "Dana")
	h := NewScanHandler(env.scans, env.machine, false)

	req := httptest.NewRequest(http.MethodPost, "/api/scan/start", jsonBody(`{"target":"order"}`))
	w := httptest.NewRecorder()
	h.Start(w, req)

	assertNoCameraStart(t, w)
}

func assertNoCameraStart(t *testing.T, w *httptest.ResponseRecorder) {
	t.Helper()
	assertStatus(t, w, http.StatusOK)

	var resp scanStartResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Camera || resp.Token != "" {
		t.Errorf("response = %+v, want camera=false without token", resp)
	}
}

func TestScanStart_InvalidTarget(t *testing.T) {
	env := newTestEnv(t, "Dana")

	w := env.do(t, http.MethodPost, "/api/scan/start", `{"target":"box"}`)

	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestScanDetection_OrderThenParts(t *testing.T) {
	env := newTestEnv(t, "Dana")
	env.do(t, http.MethodPost, "/api/orders/selection", "")

	token := startScan(t, env, "order")
	w := env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "ORDER001", "code_128"))
	assertStatus(t, w, http.StatusOK)
	if s := decodeState(t, w); s.State != "scanning_parts" {
		t.Fatalf("state = %s, want scanning_parts", s.State)
	}

	for _, part := range []string{"PART001", "PART002"} {
		token = startScan(t, env, "part")
		w = env.do(t, http.MethodPost, "/api/scan/detections", detection(token, part, "EAN-13"))
		assertStatus(t, w, http.StatusOK)
	}

	if s := env.machine.Snapshot(); s.State != "summary" {
		t.Errorf("state = %s, want summary", s.State)
	}
}

func TestScanDetection_SingleShot(t *testing.T) {
	env := newTestEnv(t, "Dana")
	env.do(t, http.MethodPost, "/api/orders/selection", "")
	env.do(t, http.MethodPost, "/api/orders/code", `{"code":"ORDER001"}`)

	token := startScan(t, env, "part")
	assertStatus(t, env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "PART001", "")), http.StatusOK)

	w := env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "PART002", ""))

	assertStatus(t, w, http.StatusNoContent)
	if s := env.machine.Snapshot(); s.Scanned != 1 {
		t.Errorf("scanned = %d, want 1", s.Scanned)
	}
}

func TestScanDetection_StaleAfterTransition(t *testing.T) {
	env := newTestEnv(t, "Dana")
	env.do(t, http.MethodPost, "/api/orders/selection", "")
	env.do(t, http.MethodPost, "/api/orders/code", `{"code":"ORDER001"}`)
	token := startScan(t, env, "part")

	assertStatus(t, env.do(t, http.MethodPost, "/api/scan/cancel", ""), http.StatusOK)

	w := env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "PART001", "code_128"))

	assertStatus(t, w, http.StatusNoContent)
	if s := env.machine.Snapshot(); s.State != "selecting_order" {
		t.Errorf("state = %s, want selecting_order", s.State)
	}
}

func TestScanDetection_UnsupportedSymbology(t *testing.T) {
	env := newTestEnv(t, "Dana")
	env.do(t, http.MethodPost, "/api/orders/selection", "")
	token := startScan(t, env, "order")

	w := env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "ORDER001", "qr_code"))
	assertError(t, w, http.StatusUnprocessableEntity, model.ErrCodeUnsupportedSymbology)

	w = env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "ORDER001", "code_39"))
	assertStatus(t, w, http.StatusOK)
}

func TestScanDetection_RejectedCode(t *testing.T) {
	env := newTestEnv(t, "Dana")
	env.do(t, http.MethodPost, "/api/orders/selection", "")
	token := startScan(t, env, "order")

	w := env.do(t, http.MethodPost, "/api/scan/detections", detection(token, "ORDER999", "code_128"))

	assertError(t, w, http.StatusNotFound, model.ErrCodeOrderNotFound)
	if s := env.machine.Snapshot(); s.State != "selecting_order" {
		t.Errorf("state = %s, want selecting_order", s.State)
	}
}

func TestScanDetection_MissingToken(t *testing.T) {
	env := newTestEnv(t, "Dana")

	w := env.do(t, http.MethodPost, "/api/scan/detections", `{"code":"ORDER001"}`)

	assertError(t, w, http.StatusBadRequest, model.ErrCodeValidation)
}

func TestScanStop(t *testing.T) {
	env := newTestEnv(t, "Dana")
	token := startScan(t, env, "order")

	w := env.do(t, http.MethodPost, "/api/scan/stop", `{"token":"`+token+`"}`)

	assertStatus(t, w, http.StatusNoContent)
	if _, _, ok := env.scans.Active(); ok {
		t.Error("scan should be stopped")
	}
}

func TestScanStart_ReplacesPrevious(t *testing.T) {
	env := newTestEnv(t, "Dana")
	env.do(t, http.MethodPost, "/api/orders/selection", "")
	first := startScan(t, env, "order")
	second := startScan(t, env, "order")

	assertStatus(t, env.do(t, http.MethodPost, "/api/scan/detections", detection(first, "ORDER001", "")), http.StatusNoContent)
	assertStatus(t, env.do(t, http.MethodPost, "/api/scan/detections", detection(second, "ORDER001", "")), http.StatusOK)
}
