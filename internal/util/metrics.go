package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AdminPurchasesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_purchases_created_total",
		Help: "Total number of admin purchase payment intents created",
	})

	AdminPurchasesSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "admin_purchases_settled_total",
		Help: "Total number of admin purchases settled after verification",
	})

	CheckoutsSettledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_settled_total",
		Help: "Total number of buyer checkouts settled",
	})

	SettlementFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failures_total",
		Help: "Total number of failed settlements",
	}, []string{"flow", "reason"})

	SignatureVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "signature_verifications_total",
		Help: "Total number of gateway signature verifications",
	}, []string{"result"})

	CommissionsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commissions_recorded_total",
		Help: "Total number of broker commission records written",
	})

	SettlementLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_latency_seconds",
		Help:    "Latency of settlement transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"flow"})

	GatewayOrderLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_order_latency_seconds",
		Help:    "Latency of gateway order creation",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
