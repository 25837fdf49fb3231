package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/packman/internal/model"
)

func testRateLimiterConfig(scanBurst, importBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		ScanRate:        1,
		ScanBurst:       scanBurst,
		ImportRate:      1,
		ImportBurst:     importBurst,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(remoteAddr, operator string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/parts/code", nil)
	req.RemoteAddr = remoteAddr
	if operator != "" {
		req = req.WithContext(ContextWithOperator(req.Context(), operator))
	}
	return req
}

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 1))
	defer rl.Stop()
	rl.now = func() time.Time { return time.Unix(1000, 0) }

	handler := rl.ScanMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestFrom("192.0.2.1:5000", "Dana"))
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
}

func TestRateLimiter_Returns429WhenExceeded(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 1))
	defer rl.Stop()
	rl.now = func() time.Time { return time.Unix(1000, 0) }

	handler := rl.ScanMiddleware()(okHandler())
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:5000", "Dana"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1:5000", "Dana"))

	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", w.Header().Get("Retry-After"))
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	handler := rl.ScanMiddleware()(okHandler())
	handler.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:5000", ""))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1:5000", ""))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}

	now = now.Add(2 * time.Second)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestFrom("192.0.2.1:5000", ""))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 after refill", w.Code)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()
	rl.now = func() time.Time { return time.Unix(1000, 0) }

	handler := rl.ScanMiddleware()(okHandler())

	requests := []*http.Request{
		requestFrom("192.0.2.1:5000", "Dana"),
		requestFrom("192.0.2.1:5000", "Eve"),
		requestFrom("192.0.2.2:5000", ""),
		requestFrom("192.0.2.3:5000", ""),
	}
	for i, req := range requests {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Errorf("request %d: status = %d, want 200", i, w.Code)
		}
	}
	if got := rl.ScanLimiterCount(); got != 4 {
		t.Errorf("ScanLimiterCount = %d, want 4", got)
	}
}

func TestRateLimiter_ScanAndImportAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	defer rl.Stop()
	rl.now = func() time.Time { return time.Unix(1000, 0) }

	scan := rl.ScanMiddleware()(okHandler())
	imp := rl.ImportMiddleware()(okHandler())

	scan.ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:5000", "Dana"))

	w := httptest.NewRecorder()
	imp.ServeHTTP(w, requestFrom("192.0.2.1:5000", "Dana"))
	if w.Code != http.StatusOK {
		t.Errorf("import status = %d, want 200", w.Code)
	}
	if rl.ImportLimiterCount() != 1 {
		t.Errorf("ImportLimiterCount = %d, want 1", rl.ImportLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 5))
	defer rl.Stop()
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	rl.ScanMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:5000", ""))
	rl.ImportMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("192.0.2.1:5000", ""))

	now = now.Add(3 * time.Minute)
	rl.cleanup()

	if rl.ScanLimiterCount() != 0 || rl.ImportLimiterCount() != 0 {
		t.Errorf("counts = (%d, %d), want (0, 0)", rl.ScanLimiterCount(), rl.ImportLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(DefaultRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}

func TestPerMinuteRateLimiterConfig(t *testing.T) {
	cfg := PerMinuteRateLimiterConfig(600, 10)

	if float64(cfg.ScanRate) != 10 {
		t.Errorf("ScanRate = %v, want 10", cfg.ScanRate)
	}
	if cfg.ScanBurst != 100 {
		t.Errorf("ScanBurst = %d, want 100", cfg.ScanBurst)
	}
	if cfg.ImportBurst != 10 {
		t.Errorf("ImportBurst = %d, want 10", cfg.ImportBurst)
	}

	if tiny := PerMinuteRateLimiterConfig(0, 0); tiny.ScanBurst != 1 || tiny.ImportBurst != 1 {
		t.Errorf("minimum bursts = (%d, %d), want (1, 1)", tiny.ScanBurst, tiny.ImportBurst)
	}
}

func TestClientKey(t *testing.T) {
	if got := clientKey(requestFrom("192.0.2.1:5000", "Dana")); got != "operator:Dana" {
		t.Errorf("clientKey = %q", got)
	}
	if got := clientKey(requestFrom("192.0.2.1:5000", "")); got != "ip:192.0.2.1" {
		t.Errorf("clientKey = %q", got)
	}
	if got := clientKey(requestFrom("pipe", "")); got != "ip:pipe" {
		t.Errorf("clientKey = %q", got)
	}
}
