package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 业务指标，包级变量只注册一次，服务可以被重复构造
var (
	OrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyshop_orders_created_total",
			Help: "Total number of orders created",
		},
		[]string{"payment_method"},
	)

	OrderCompletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyshop_order_completions_total",
			Help: "Order completion attempts by result",
		},
		[]string{"result"}, // completed, noop, failed
	)

	GuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyshop_guard_rejections_total",
			Help: "Conditional updates that matched zero rows",
		},
		[]string{"guard"}, // promo_usage, promo_per_user, stock, balance, order_status
	)

	LicensesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyshop_licenses_issued_total",
			Help: "Total number of license keys issued",
		},
	)

	LicenseKeyCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyshop_license_key_collisions_total",
			Help: "License key unique conflicts that triggered a retry",
		},
	)

	OutboxDispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyshop_outbox_dispatch_total",
			Help: "Outbox dispatch attempts by event type and result",
		},
		[]string{"type", "result"}, // dispatched, retry, failed
	)

	PaymentConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyshop_payment_confirmations_total",
			Help: "Gateway payment confirmations by channel and result",
		},
		[]string{"channel", "result"}, // completed, duplicate, unpaid, mismatch, refund_required, failed
	)
)

// 数据库连接池
var (
	DBPoolConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "keyshop_db_pool_connections",
			Help: "Database pool connections by state",
		},
		[]string{"state"}, // open, in_use, idle
	)

	DBPoolWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "keyshop_db_pool_waits_total",
			Help: "Connections that had to wait for a free slot",
		},
	)
)

// HTTP 指标
var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordHTTPRequest 记录一次 HTTP 请求
func RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unmatched"
	}
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
