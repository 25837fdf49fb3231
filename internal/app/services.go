package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/packman/internal/config"
	"github.com/hitoshi/packman/internal/database"
	"github.com/hitoshi/packman/internal/fulfillment"
	"github.com/hitoshi/packman/internal/handler"
	"github.com/hitoshi/packman/internal/importer"
	"github.com/hitoshi/packman/internal/metrics"
	"github.com/hitoshi/packman/internal/middleware"
	"github.com/hitoshi/packman/internal/persistence"
	"github.com/hitoshi/packman/internal/repository"
	"github.com/hitoshi/packman/internal/scan"
	"github.com/hitoshi/packman/internal/security"
	"github.com/hitoshi/packman/internal/web"
	"github.com/prometheus/client_golang/prometheus"
)

// Store は設定に応じて開いたKVストアと、疎通確認用のHealthChecker。
type Store struct {
	KV      repository.KVStore
	Checker repository.HealthChecker
}

// OpenStore はSTORE_DRIVERに応じたKVストアを開く。
// 呼び出し元はKV.Close()で閉じること。
func OpenStore(ctx context.Context, cfg *config.Config) (*Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := database.CheckSchema(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
		kv := repository.NewPostgresKVStore(db)
		return &Store{KV: kv, Checker: kv}, nil

	case config.StoreMemory:
		return &Store{KV: repository.NewMemoryKVStore()}, nil

	default:
		db, err := database.OpenBadger(cfg.BadgerDir)
		if err != nil {
			return nil, err
		}
		kv := repository.NewBadgerKVStore(db)
		return &Store{KV: kv, Checker: kv}, nil
	}
}

// Services はserveモードで組み立てた依存関係。
type Services struct {
	Handler http.Handler
	Machine *fulfillment.Machine
	Gateway *persistence.Gateway

	limiter *middleware.RateLimiter
}

// Close はバックグラウンドで動作するリソースを停止する。
func (s *Services) Close() {
	s.limiter.Stop()
}

// NewServices は保存済みの注文データとセッションを復元し、状態マシンとルーターを組み立てる。
// regにはアプリケーションのメトリクスが登録され、/metricsで公開される。
func NewServices(ctx context.Context, cfg *config.Config, store *Store, reg *prometheus.Registry, logger *slog.Logger) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// 1. メトリクス
	collector := metrics.NewCollector(reg)

	// 2. 永続化と状態の復元
	gateway := persistence.NewGateway(store.KV, cfg.StoragePrefix, logger, collector)
	db := gateway.LoadDatabase(ctx)
	user, restored := gateway.LoadSession(ctx)

	machine := fulfillment.NewMachine(db, user, gateway, fulfillment.Options{
		Logger:   logger,
		Observer: collector,
	})
	collector.RecordDatabaseReplaced(len(db.Orders))

	logger.Info("restored fulfillment state",
		slog.Int("orders", len(db.Orders)),
		slog.Bool("session_restored", restored),
	)

	// 3. 読み取りと取り込み
	scans := scan.NewController(logger, collector)
	imp := importer.NewService(
		importer.NewNormalizer(security.NewTextSanitizer()),
		security.NewSSRFGuard(cfg.ImportFetchTimeout),
		cfg.ImportMaxSize,
		collector,
		logger,
	)

	// 4. 画面アセット
	shell, err := web.NewShell(cfg.ShellCacheName)
	if err != nil {
		return nil, fmt.Errorf("failed to build offline shell: %w", err)
	}

	// 5. ルーター
	limiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(cfg.RateLimitScan, cfg.RateLimitImport))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		HTTPRecorder:      collector,
		Machine:           machine,
		Scans:             scans,
		Importer:          imp,
		SecureContext:     cfg.SecureContext,
		HealthChecker:     store.Checker,
		Gatherer:          reg,
		Shell:             shell,
	})

	return &Services{
		Handler: router,
		Machine: machine,
		Gateway: gateway,
		limiter: limiter,
	}, nil
}
