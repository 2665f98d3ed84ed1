// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層、通知、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	CommentCreated()
	SubmissionRejected(reason string)
	ObserveRead(duration time.Duration)
	Notification(kind, result string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	commentsCreated prometheus.Counter
	rejected        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	readLatency     prometheus.Histogram
	httpStatus      *prometheus.CounterVec
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		commentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "comment_sidecar_comments_created_total",
			Help: "保存されたコメントの合計数",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comment_sidecar_submissions_rejected_total",
			Help: "拒否された投稿の理由別の合計数",
		}, []string{"reason"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comment_sidecar_notifications_total",
			Help: "通知メールの種別・結果別の合計数",
		}, []string{"kind", "result"}),
		readLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "comment_sidecar_read_latency_seconds",
			Help:    "コメント一覧の取得とツリー構築のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "comment_sidecar_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.commentsCreated,
		c.rejected,
		c.notifications,
		c.readLatency,
		c.httpStatus,
	)

	return c
}

// CommentCreated はコメントの保存を記録する。
func (c *Collector) CommentCreated() {
	c.commentsCreated.Inc()
}

// SubmissionRejected は投稿の拒否を理由付きで記録する。
func (c *Collector) SubmissionRejected(reason string) {
	c.rejected.WithLabelValues(reason).Inc()
}

// ObserveRead はコメント一覧取得のレイテンシを記録する。
func (c *Collector) ObserveRead(duration time.Duration) {
	c.readLatency.Observe(duration.Seconds())
}

// Notification は通知メールの結果を記録する。
func (c *Collector) Notification(kind, result string) {
	c.notifications.WithLabelValues(kind, result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
