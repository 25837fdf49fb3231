package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/packman/internal/metrics"
	"github.com/hitoshi/packman/internal/middleware"
	"github.com/hitoshi/packman/internal/repository"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder

	// 梱包作業
	Machine FulfillmentService
	Scans   ScanController

	// 取り込み
	Importer ImportService

	// カメラ読み取りの可否判定に使う。HTTPSまたはlocalhostで配信している場合にtrue。
	SecureContext bool

	// 運用
	HealthChecker repository.HealthChecker
	Gatherer      prometheus.Gatherer

	// オフライン用の画面アセット。/api以外のパスで配信する。
	Shell http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Operator → RequestID → Logging → Metrics → SecurityHeaders → CORS
//
// /api/login と /api/state 以外の梱包作業ルートはログイン中の作業者を必要とする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewOperatorMiddleware(deps.Machine))
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	fulfillmentHandler := NewFulfillmentHandler(deps.Machine, deps.Scans)
	importHandler := NewImportHandler(deps.Importer, deps.Machine, deps.Scans)
	scanHandler := NewScanHandler(deps.Scans, deps.Machine, deps.SecureContext)
	healthHandler := NewHealthHandler(deps.HealthChecker)

	// --- 運用ルート ---
	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		// --- ログイン不要のルート ---
		r.Get("/state", fulfillmentHandler.GetState)
		r.Post("/login", fulfillmentHandler.Login)

		// --- ログインが必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireOperator())

			r.Post("/logout", fulfillmentHandler.Logout)
			r.Post("/home", fulfillmentHandler.ReturnHome)
			r.Post("/pack", fulfillmentHandler.CommitPack)

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", fulfillmentHandler.ListOrders)
				r.Post("/selection", fulfillmentHandler.BeginOrderSelection)
				r.With(deps.RateLimiter.ScanMiddleware()).Post("/code", fulfillmentHandler.SubmitOrderCode)
			})

			r.With(deps.RateLimiter.ScanMiddleware()).Post("/parts/code", fulfillmentHandler.SubmitPartCode)

			r.Route("/scan", func(r chi.Router) {
				r.Get("/capability", scanHandler.GetCapability)
				r.Post("/cancel", fulfillmentHandler.CancelScan)
				r.Post("/start", scanHandler.Start)
				r.Post("/stop", scanHandler.Stop)
				r.With(deps.RateLimiter.ScanMiddleware()).Post("/detections", scanHandler.Detect)
			})

			r.Route("/import", func(r chi.Router) {
				r.Use(deps.RateLimiter.ImportMiddleware())
				r.Post("/", importHandler.ImportFile)
				r.Post("/url", importHandler.ImportURL)
			})
		})
	})

	if deps.Shell != nil {
		r.Handle("/*", deps.Shell)
	}

	return r
}
