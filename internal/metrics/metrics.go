// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// 状態マシン、取り込み、読み取り、永続化、HTTPの各層から記録される。
type Collector struct {
	ordersPacked       prometheus.Counter
	partsScanned       prometheus.Counter
	rejections         *prometheus.CounterVec
	databaseOrders     prometheus.Gauge
	imports            *prometheus.CounterVec
	importFailures     *prometheus.CounterVec
	importRowsSkipped  prometheus.Counter
	detections         *prometheus.CounterVec
	persistenceCorrupt prometheus.Counter
	httpStatus         *prometheus.CounterVec
	httpLatency        prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ordersPacked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packman_orders_packed_total",
			Help: "梱包済みにした注文の合計数",
		}),
		partsScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packman_parts_scanned_total",
			Help: "照合に成功した部品読み取りの合計数",
		}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packman_rejections_total",
			Help: "受け付けなかった操作の数（操作・エラーコード別）",
		}, []string{"operation", "code"}),
		databaseOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "packman_database_orders",
			Help: "直近に取り込んだ注文カタログの注文数",
		}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packman_imports_total",
			Help: "正規化まで完了した取り込みの数（形式別）",
		}, []string{"format"}),
		importFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packman_import_failures_total",
			Help: "失敗した取り込みの数（取り込み元別）",
		}, []string{"source"}),
		importRowsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packman_import_rows_skipped_total",
			Help: "注文番号または部品番号が解決できず除外した行の合計数",
		}),
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packman_scan_detections_total",
			Help: "読み取り元からの検出イベント数（結果別）",
		}, []string{"outcome"}),
		persistenceCorrupt: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "packman_persistence_corrupt_total",
			Help: "保存データが壊れていたためサンプルに置き換えた回数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "packman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "packman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.ordersPacked,
		c.partsScanned,
		c.rejections,
		c.databaseOrders,
		c.imports,
		c.importFailures,
		c.importRowsSkipped,
		c.detections,
		c.persistenceCorrupt,
		c.httpStatus,
		c.httpLatency,
	)

	return c
}

// RecordOrderPacked は梱包完了を記録する。
func (c *Collector) RecordOrderPacked() {
	c.ordersPacked.Inc()
}

// RecordPartScanned は部品の照合成功を記録する。
func (c *Collector) RecordPartScanned() {
	c.partsScanned.Inc()
}

// RecordRejected は受け付けなかった操作を記録する。
func (c *Collector) RecordRejected(operation, code string) {
	c.rejections.WithLabelValues(operation, code).Inc()
}

// RecordDatabaseReplaced は注文カタログの差し替えを記録する。
func (c *Collector) RecordDatabaseReplaced(orders int) {
	c.databaseOrders.Set(float64(orders))
}

// RecordImport は取り込みの正規化結果を記録する。
func (c *Collector) RecordImport(format string, rows, skipped int) {
	c.imports.WithLabelValues(format).Inc()
	c.importRowsSkipped.Add(float64(skipped))
}

// RecordImportFailed は取り込み失敗を記録する。
func (c *Collector) RecordImportFailed(source string) {
	c.importFailures.WithLabelValues(source).Inc()
}

// RecordDetection は検出イベントの結果を記録する。
func (c *Collector) RecordDetection(outcome string) {
	c.detections.WithLabelValues(outcome).Inc()
}

// RecordPersistenceCorrupt は保存データの破損検出を記録する。
func (c *Collector) RecordPersistenceCorrupt() {
	c.persistenceCorrupt.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordHTTPLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordHTTPLatency(duration time.Duration) {
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
