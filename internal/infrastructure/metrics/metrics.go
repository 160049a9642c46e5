package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Ledger metrics
	EntriesPosted   *prometheus.CounterVec
	EntryAmount     prometheus.Histogram
	PostingDuration prometheus.Histogram
	PostingErrors   *prometheus.CounterVec
	AccountsCreated prometheus.Counter
	AccountBalance  *prometheus.GaugeVec

	// Chain metrics
	ChainAppends       *prometheus.CounterVec
	ChainConflicts     *prometheus.CounterVec
	ChainVerifications *prometheus.CounterVec
	ChainTampered      *prometheus.CounterVec
	ChainLength        *prometheus.GaugeVec

	// Audit metrics
	AuditEventsRecorded *prometheus.CounterVec
	AuditBacklogged     prometheus.Counter
	AuditBacklogSize    prometheus.Gauge
	AuditBacklogDrained prometheus.Counter

	// Reconciliation and reporting metrics
	Reconciliations  *prometheus.CounterVec
	ReportsGenerated prometheus.Counter
	ComplianceScore  prometheus.Gauge
	ExportsCreated   *prometheus.CounterVec

	// API metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Database metrics
	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections prometheus.Gauge
	DBErrors      *prometheus.CounterVec

	// Redis metrics
	RedisOperations *prometheus.CounterVec
	RedisErrors     *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics
func New() *Metrics {
	return &Metrics{
		// Ledger metrics
		EntriesPosted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_entries_posted_total",
				Help: "Total number of ledger entries posted",
			},
			[]string{"entry_type"},
		),
		EntryAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainledger_entry_amount",
			Help:    "Posted entry amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		}),
		PostingDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chainledger_posting_duration_seconds",
			Help:    "Duration of ledger posting operations",
			Buckets: prometheus.DefBuckets,
		}),
		PostingErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_posting_errors_total",
				Help: "Total number of posting errors by type",
			},
			[]string{"error_type"},
		),
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainledger_accounts_created_total",
			Help: "Total number of accounts created",
		}),
		AccountBalance: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainledger_account_balance",
				Help: "Current account balance",
			},
			[]string{"account_id", "currency"},
		),

		// Chain metrics
		ChainAppends: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_chain_appends_total",
				Help: "Total chain records appended",
			},
			[]string{"chain"},
		),
		ChainConflicts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_chain_conflicts_total",
				Help: "Total optimistic append conflicts by chain",
			},
			[]string{"chain"},
		),
		ChainVerifications: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_chain_verifications_total",
				Help: "Total chain verification runs by outcome",
			},
			[]string{"chain", "outcome"},
		),
		ChainTampered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_chain_tampered_total",
				Help: "Total verification runs that found tampering",
			},
			[]string{"chain"},
		),
		ChainLength: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "chainledger_chain_length",
				Help: "Current number of records per chain",
			},
			[]string{"chain"},
		),

		// Audit metrics
		AuditEventsRecorded: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_audit_events_total",
				Help: "Total audit events recorded by action and severity",
			},
			[]string{"action", "severity"},
		),
		AuditBacklogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainledger_audit_backlogged_total",
			Help: "Total audit events diverted to the backlog",
		}),
		AuditBacklogSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainledger_audit_backlog_size",
			Help: "Current number of pending backlog items",
		}),
		AuditBacklogDrained: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainledger_audit_backlog_drained_total",
			Help: "Total backlog items successfully replayed",
		}),

		// Reconciliation and reporting metrics
		Reconciliations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_reconciliations_total",
				Help: "Total reconciliation runs by status",
			},
			[]string{"status"},
		),
		ReportsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chainledger_reports_generated_total",
			Help: "Total compliance reports generated",
		}),
		ComplianceScore: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainledger_compliance_score",
			Help: "Score of the most recent compliance report",
		}),
		ExportsCreated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_exports_created_total",
				Help: "Total export bundles created by chain",
			},
			[]string{"chain"},
		),

		// API metrics
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_http_requests_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainledger_http_duration_seconds",
				Help:    "HTTP request duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Database metrics
		DBQueries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_db_queries_total",
				Help: "Total database queries",
			},
			[]string{"operation", "table"},
		),
		DBDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chainledger_db_query_duration_seconds",
				Help:    "Database query duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "chainledger_db_connections",
			Help: "Current number of database connections",
		}),
		DBErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_db_errors_total",
				Help: "Total database errors",
			},
			[]string{"operation"},
		),

		// Redis metrics
		RedisOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_redis_operations_total",
				Help: "Total Redis operations",
			},
			[]string{"operation"},
		),
		RedisErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainledger_redis_errors_total",
				Help: "Total Redis errors",
			},
			[]string{"operation"},
		),
	}
}
