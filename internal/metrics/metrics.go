// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder はメトリクス収集のインターフェース。
// 観測専用であり、制御フローには影響しない。
type Recorder interface {
	RecordSummarySuccess(tenantID string)
	RecordSummaryFailure(tenantID string, reason string)
	RecordSummaryDuration(duration time.Duration)
	RecordMessageProcessed(status string, tenantID string, messageType string)
	RecordDigestDelivery(status string, tenantID string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	summarySuccess    *prometheus.CounterVec
	summaryFailure    *prometheus.CounterVec
	summaryDuration   prometheus.Histogram
	messageProcessing *prometheus.CounterVec
	digestDelivery    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		summarySuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_success_total",
			Help: "要約生成成功の合計数",
		}, []string{"tenant_id"}),
		summaryFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "summary_failure_total",
			Help: "要約生成失敗の合計数",
		}, []string{"tenant_id", "error_type"}),
		summaryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "summary_duration_seconds",
			Help:    "要約生成の所要時間（秒）",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}),
		messageProcessing: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "message_processing_total",
			Help: "処理されたメッセージの合計数",
		}, []string{"status", "tenant_id", "message_type"}),
		digestDelivery: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "digest_delivery_total",
			Help: "ダイジェスト配信の合計数",
		}, []string{"status", "tenant_id"}),
	}

	reg.MustRegister(
		c.summarySuccess,
		c.summaryFailure,
		c.summaryDuration,
		c.messageProcessing,
		c.digestDelivery,
	)

	return c
}

// RecordSummarySuccess は要約生成成功を記録する。
func (c *Collector) RecordSummarySuccess(tenantID string) {
	c.summarySuccess.WithLabelValues(tenantID).Inc()
}

// RecordSummaryFailure は要約生成失敗を記録する。
func (c *Collector) RecordSummaryFailure(tenantID string, reason string) {
	c.summaryFailure.WithLabelValues(tenantID, reason).Inc()
}

// RecordSummaryDuration は要約生成の所要時間を記録する。
func (c *Collector) RecordSummaryDuration(duration time.Duration) {
	c.summaryDuration.Observe(duration.Seconds())
}

// RecordMessageProcessed はメッセージ処理結果を記録する。
func (c *Collector) RecordMessageProcessed(status string, tenantID string, messageType string) {
	c.messageProcessing.WithLabelValues(status, tenantID, messageType).Inc()
}

// RecordDigestDelivery はダイジェスト配信結果を記録する。
func (c *Collector) RecordDigestDelivery(status string, tenantID string) {
	c.digestDelivery.WithLabelValues(status, tenantID).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないRecorder。テストおよびメトリクス無効時用。
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordSummarySuccess(string)                   {}
func (Nop) RecordSummaryFailure(string, string)           {}
func (Nop) RecordSummaryDuration(time.Duration)           {}
func (Nop) RecordMessageProcessed(string, string, string) {}
func (Nop) RecordDigestDelivery(string, string)           {}
