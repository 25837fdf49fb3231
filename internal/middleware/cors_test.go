package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

const stationOrigin = "https://packing-station.example.com"

func TestCORSMiddleware_PackingRoutes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantNext   bool
	}{
		{"状態取得", http.MethodGet, "/api/state", http.StatusOK, true},
		{"部品コード送信", http.MethodPost, "/api/parts/code", http.StatusOK, true},
		{"取り込みのプリフライト", http.MethodOptions, "/api/import", http.StatusNoContent, false},
		{"検出のプリフライト", http.MethodOptions, "/api/scan/detections", http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewCORSMiddleware(stationOrigin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != stationOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, stationOrigin)
			}
		})
	}
}

// 表示層はJSONのGET/POSTのみを使う
func TestCORSMiddleware_AllowsOnlyPresenterMethods(t *testing.T) {
	handler := NewCORSMiddleware(stationOrigin)(http.NotFoundHandler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/pack", nil))

	h := w.Header()
	if got := h.Get("Access-Control-Allow-Methods"); got != "GET, POST, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := h.Get("Access-Control-Allow-Headers"); got != "Content-Type" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
	if got := h.Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q", got)
	}
	if got := h.Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q", got)
	}
}
