package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_created_total",
		Help: "Total number of product requests created",
	})

	RequestsApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_approved_total",
		Help: "Total number of requests approved with stock committed",
	})

	RequestsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_rejected_total",
		Help: "Total number of requests rejected",
	})

	RequestsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_cancelled_total",
		Help: "Total number of pending requests cancelled by clients",
	})

	RequestsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "requests_reaped_total",
		Help: "Total number of stale pending requests removed by the reaper",
	})

	ApprovalsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "approvals_failed_total",
		Help: "Total number of failed approval attempts",
	}, []string{"reason"})

	ReconcileLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reconcile_latency_seconds",
		Help:    "Latency of reconciliation transactions",
		Buckets: prometheus.DefBuckets,
	})

	ReaperSweepLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reaper_sweep_latency_seconds",
		Help:    "Latency of stale request sweeps",
		Buckets: prometheus.DefBuckets,
	})

	LiveViewSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_view_subscriptions",
		Help: "Number of open live view subscriptions",
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
