package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ShopsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shops_created_total",
		Help: "Total number of shops created",
	})

	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "products_created_total",
		Help: "Total number of products created",
	})

	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersReplayedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_replayed_total",
		Help: "Total number of order creations answered from an idempotency key",
	})

	LineItemMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "line_item_mutations_total",
		Help: "Total number of committed line item mutations",
	}, []string{"operation"})

	LineItemMutationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "line_item_mutations_failed_total",
		Help: "Total number of line item mutations rolled back",
	}, []string{"operation", "kind"})

	OrderTotalRecomputeLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_total_recompute_latency_seconds",
		Help:    "Latency of order total recomputation inside the order transaction",
		Buckets: prometheus.DefBuckets,
	})

	PermissionDenialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "permission_denials_total",
		Help: "Total number of requests rejected by a permission rule",
	}, []string{"rule", "kind"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Total number of domain events that could not be published",
	}, []string{"event_type"})

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
