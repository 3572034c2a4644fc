package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	gatherer prometheus.Gatherer

	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱指标
	MailboxesCreated prometheus.Counter
	MailboxesDeleted prometheus.Counter
	MailboxesExpired prometheus.Counter

	// 收信指标
	IngestMessages    *prometheus.CounterVec
	IngestAttachments *prometheus.CounterVec
	IngestDuration    prometheus.Histogram
	AttachmentSize    prometheus.Histogram

	// 错误指标
	PanicsTotal prometheus.Counter
}

// NewMetrics 在给定注册表上创建监控指标
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		MailboxesCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_created_total",
				Help: "Total number of mailboxes created",
			},
		),

		MailboxesDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_deleted_total",
				Help: "Total number of mailboxes deleted",
			},
		),

		MailboxesExpired: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_mailboxes_expired_total",
				Help: "Total number of expired mailboxes purged",
			},
		),

		IngestMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_ingest_messages_total",
				Help: "Total number of inbound messages by terminal state",
			},
			[]string{"state", "reason"},
		),

		IngestAttachments: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_ingest_attachments_total",
				Help: "Total number of inbound attachments by result",
			},
			[]string{"result"},
		),

		IngestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempmail_ingest_duration_seconds",
				Help:    "Inbound message processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		AttachmentSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tempmail_attachment_size_bytes",
				Help:    "Attachment size in bytes",
				Buckets: prometheus.ExponentialBuckets(1024, 2, 16),
			},
		),

		PanicsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMailboxCreated 记录邮箱创建
func (m *Metrics) RecordMailboxCreated() {
	m.MailboxesCreated.Inc()
}

// RecordMailboxDeleted 记录邮箱删除
func (m *Metrics) RecordMailboxDeleted() {
	m.MailboxesDeleted.Inc()
}

// RecordMailboxesExpired 记录清理掉的过期邮箱数
func (m *Metrics) RecordMailboxesExpired(count int) {
	m.MailboxesExpired.Add(float64(count))
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// IngestMessage 记录一封邮件的处理结果
func (m *Metrics) IngestMessage(state, reason string, elapsed time.Duration) {
	m.IngestMessages.WithLabelValues(state, reason).Inc()
	m.IngestDuration.Observe(elapsed.Seconds())
}

// IngestAttachment 记录一个附件的保存结果
func (m *Metrics) IngestAttachment(result string, size int64) {
	m.IngestAttachments.WithLabelValues(result).Inc()
	if result == "saved" {
		m.AttachmentSize.Observe(float64(size))
	}
}

// HTTPHandler 返回 Prometheus HTTP 处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
