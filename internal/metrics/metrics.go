// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LedgerRecorder は貸出台帳の操作結果を記録するインターフェース。
// borrowサービスから利用する。
type LedgerRecorder interface {
	RecordBorrow()
	RecordReturn()
	RecordLedgerRejection(operation, reason string)
}

// AuthRecorder は認証試行の結果を記録するインターフェース。
type AuthRecorder interface {
	RecordAuthAttempt(operation string, success bool)
}

// HTTPRecorder はHTTPレスポンスを記録するインターフェース。
// ミドルウェアから利用する。
type HTTPRecorder interface {
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	borrows          prometheus.Counter
	returns          prometheus.Counter
	ledgerRejections *prometheus.CounterVec
	authAttempts     *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		borrows: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libman_borrows_total",
			Help: "成功した貸出の合計数",
		}),
		returns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libman_returns_total",
			Help: "成功した返却の合計数",
		}),
		ledgerRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libman_ledger_rejections_total",
			Help: "業務ルールにより拒否された貸出・返却の数",
		}, []string{"operation", "reason"}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libman_auth_attempts_total",
			Help: "登録・ログイン試行の数",
		}, []string{"operation", "result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "libman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "libman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.borrows,
		c.returns,
		c.ledgerRejections,
		c.authAttempts,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordBorrow は貸出成功を記録する。
func (c *Collector) RecordBorrow() {
	c.borrows.Inc()
}

// RecordReturn は返却成功を記録する。
func (c *Collector) RecordReturn() {
	c.returns.Inc()
}

// RecordLedgerRejection は貸出・返却の拒否を理由別に記録する。
func (c *Collector) RecordLedgerRejection(operation, reason string) {
	c.ledgerRejections.WithLabelValues(operation, reason).Inc()
}

// RecordAuthAttempt は登録・ログインの成否を記録する。
func (c *Collector) RecordAuthAttempt(operation string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttempts.WithLabelValues(operation, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないレコーダー。メトリクスを使わない構成やテストで使用する。
type Nop struct{}

func (Nop) RecordBorrow()                                    {}
func (Nop) RecordReturn()                                    {}
func (Nop) RecordLedgerRejection(operation, reason string)   {}
func (Nop) RecordAuthAttempt(operation string, success bool) {}
func (Nop) RecordHTTPStatus(statusCode int)                  {}
func (Nop) RecordRequestLatency(duration time.Duration)      {}

var (
	_ LedgerRecorder = (*Collector)(nil)
	_ AuthRecorder   = (*Collector)(nil)
	_ HTTPRecorder   = (*Collector)(nil)
	_ LedgerRecorder = Nop{}
	_ AuthRecorder   = Nop{}
	_ HTTPRecorder   = Nop{}
)
