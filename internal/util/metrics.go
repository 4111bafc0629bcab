package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChangesAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_changes_applied_total",
		Help: "Total number of line changes applied to orders",
	}, []string{"action"})

	ChangesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_changes_failed_total",
		Help: "Total number of failed line change applications",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	ProposalsAcceptedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_accepted_total",
		Help: "Total number of accepted proposals",
	}, []string{"type"})

	ProposalsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "proposals_rejected_total",
		Help: "Total number of rejected proposals",
	})

	ProposalsReclassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_reclassified_total",
		Help: "Total number of reclassified proposals",
	}, []string{"action"})

	SheetSyncsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheet_syncs_total",
		Help: "Total number of spreadsheet mirror passes",
	}, []string{"outcome"})

	SheetCellWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheet_cell_write_failures_total",
		Help: "Total number of non-fatal per-line sheet write failures",
	})

	SheetSyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheet_sync_latency_seconds",
		Help:    "Latency of spreadsheet mirror passes",
		Buckets: prometheus.DefBuckets,
	})

	CatalogResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "catalog_resolutions_total",
		Help: "Total number of catalog item/variant resolutions",
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
