package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of items added to carts",
	})

	CartVendorSwitchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_vendor_switches_total",
		Help: "Total number of vendor-switch resolutions on add",
	}, []string{"outcome"})

	CartPersistFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Total number of failed cart slot writes",
	})

	CartRestoreCorruptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_restore_corrupt_total",
		Help: "Total number of carts restored as empty due to corrupt data",
	})

	CheckoutAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Total number of checkout submissions",
	})

	CheckoutSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkout_success_total",
		Help: "Total number of checkouts accepted upstream",
	})

	CheckoutFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of checkout submissions to the upstream platform",
		Buckets: prometheus.DefBuckets,
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payments",
	})

	TrackingJoinsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tracking_joins_total",
		Help: "Total number of tracking room joins",
	})

	TrackingUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tracking_updates_total",
		Help: "Total number of location updates dispatched",
	}, []string{"outcome"})

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
