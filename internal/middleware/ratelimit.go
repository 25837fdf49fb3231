package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/packman/internal/model"
	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	ScanRate        rate.Limit    // 読み取り系（注文・部品コード送信、検出イベント）のレート（req/sec）
	ScanBurst       int           // 読み取り系のバーストサイズ
	ImportRate      rate.Limit    // 取り込みのレート（req/sec）
	ImportBurst     int           // 取り込みのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// 読み取り 600 req/min、取り込み 10 req/min（クライアントごと）。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(600, 10)
}

// PerMinuteRateLimiterConfig は1分あたりの回数からレート制限設定を作る。
func PerMinuteRateLimiterConfig(scanPerMinute, importPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		ScanRate:        rate.Limit(float64(scanPerMinute) / 60.0),
		ScanBurst:       maxInt(scanPerMinute/6, 1),
		ImportRate:      rate.Limit(float64(importPerMinute) / 60.0),
		ImportBurst:     maxInt(importPerMinute, 1),
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は1種類のレート制限をクライアントごとに管理する。
type limiterSet struct {
	name  string
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*clientLimiter
}

func newLimiterSet(name string, limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		name:     name,
		limit:    limit,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

func (s *limiterSet) allow(key string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cl, ok := s.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[key] = cl
	}
	cl.lastAccess = now
	return cl.limiter.AllowN(now, 1)
}

func (s *limiterSet) expire(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, cl := range s.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter はクライアントごとのレート制限を管理する。
// 読み取り系と取り込みの2種類を独立に提供する。
type RateLimiter struct {
	config RateLimiterConfig
	scan   *limiterSet
	imp    *limiterSet
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		scan:   newLimiterSet("scan", config.ScanRate, config.ScanBurst),
		imp:    newLimiterSet("import", config.ImportRate, config.ImportBurst),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// ScanMiddleware は読み取り系エンドポイントのレート制限ミドルウェアを返す。
func (rl *RateLimiter) ScanMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.scan)
}

// ImportMiddleware は取り込みエンドポイントのレート制限ミドルウェアを返す。
func (rl *RateLimiter) ImportMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.imp)
}

// ScanLimiterCount は管理中の読み取り系リミッター数を返す。
func (rl *RateLimiter) ScanLimiterCount() int {
	return rl.scan.count()
}

// ImportLimiterCount は管理中の取り込みリミッター数を返す。
func (rl *RateLimiter) ImportLimiterCount() int {
	return rl.imp.count()
}

func (rl *RateLimiter) middleware(set *limiterSet) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			if !set.allow(key, rl.now()) {
				slog.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", set.name),
				)
				writeRateLimitResponse(w, set.limit)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientKey はレート制限のキーを返す。
// ログイン中は作業者名、未ログインは接続元IPを使う。
func clientKey(r *http.Request) string {
	if operator, err := OperatorFromContext(r.Context()); err == nil {
		return "operator:" + operator
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	now := rl.now()
	ttl := rl.config.CleanupInterval * 2
	rl.scan.expire(now, ttl)
	rl.imp.expire(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
