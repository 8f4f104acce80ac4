package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Transaction processor metrics
	TransactionsProcessed *prometheus.CounterVec
	TransactionDuration   prometheus.Histogram
	TransactionAmount     *prometheus.HistogramVec
	IdempotentReplays     prometheus.Counter
	ComplianceVerdicts    *prometheus.CounterVec

	// Journal metrics
	EntriesPosted   prometheus.Counter
	EntriesReversed prometheus.Counter

	// Audit metrics
	AuditEntriesAppended prometheus.Counter
	ChainVerifications   *prometheus.CounterVec

	// Loan metrics
	LoanPaymentsApplied prometheus.Counter
	LoansPaidOff        prometheus.Counter

	// Balance cache metrics
	BalanceCacheHits   prometheus.Counter
	BalanceCacheMisses prometheus.Counter

	// Outbox metrics
	OutboxPublished prometheus.Counter
	OutboxErrors    prometheus.Counter

	// Database metrics
	DBConnections prometheus.Gauge
}

// New creates all metrics registered against the given registerer. Passing a
// fresh prometheus.NewRegistry() keeps tests isolated from each other.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		TransactionsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_transactions_processed_total",
				Help: "Total transactions processed by type and final status",
			},
			[]string{"type", "status"},
		),
		TransactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "corebank_transaction_duration_seconds",
			Help:    "Duration of transaction processing",
			Buckets: prometheus.DefBuckets,
		}),
		TransactionAmount: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "corebank_transaction_amount",
				Help:    "Transaction amounts by type",
				Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
			},
			[]string{"type"},
		),
		IdempotentReplays: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_idempotent_replays_total",
			Help: "Total transactions answered from a prior result instead of reprocessing",
		}),
		ComplianceVerdicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_compliance_verdicts_total",
				Help: "Total compliance verdicts by outcome",
			},
			[]string{"verdict"},
		),

		EntriesPosted: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_journal_entries_posted_total",
			Help: "Total journal entries posted",
		}),
		EntriesReversed: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_journal_entries_reversed_total",
			Help: "Total journal entries reversed",
		}),

		AuditEntriesAppended: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_audit_entries_appended_total",
			Help: "Total audit entries appended to the hash chain",
		}),
		ChainVerifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corebank_audit_chain_verifications_total",
				Help: "Total audit chain verification runs by result",
			},
			[]string{"result"},
		),

		LoanPaymentsApplied: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_loan_payments_applied_total",
			Help: "Total loan payments applied",
		}),
		LoansPaidOff: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_loans_paid_off_total",
			Help: "Total loans fully repaid",
		}),

		BalanceCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_balance_cache_hits_total",
			Help: "Total balance reads served from cache",
		}),
		BalanceCacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_balance_cache_misses_total",
			Help: "Total balance reads that required a ledger replay",
		}),

		OutboxPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_outbox_events_published_total",
			Help: "Total outbox events published",
		}),
		OutboxErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "corebank_outbox_errors_total",
			Help: "Total outbox publish errors",
		}),

		DBConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "corebank_db_connections",
			Help: "Current number of database connections",
		}),
	}
}
