package metrics

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonDB                   = "db"
	ReasonBusinessRule         = "business_rule"
	ReasonUnknown              = "unknown"
)

const (
	InvoiceOutcomeIssued   = "issued"
	InvoiceOutcomeExisting = "existing"
	InvoiceOutcomeFailed   = "failed"
)

// EngineMetrics captures tax engine and invoicing health signals.
type EngineMetrics struct {
	orderLines          *prometheus.CounterVec
	catalogFallbacks    *prometheus.CounterVec
	invoiceRequests     *prometheus.CounterVec
	invoiceErrors       *prometheus.CounterVec
	invoiceDuration     prometheus.Histogram
	reconcileMismatches prometheus.Counter
}

// NewEngineMetrics registers the engine collectors on the default registerer.
func NewEngineMetrics(cfg Config) (*EngineMetrics, error) {
	return newEngineMetrics(prometheus.DefaultRegisterer, cfg)
}

func newEngineMetrics(registerer prometheus.Registerer, cfg Config) (*EngineMetrics, error) {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "qrdine"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &EngineMetrics{
		orderLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "qrdine_order_lines_total",
			Help:        "Priced order lines by tax regime.",
			ConstLabels: constLabels,
		}, []string{"regime"}),
		catalogFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "qrdine_catalog_fallback_total",
			Help:        "Cart lines priced from client-supplied attributes because the catalog item was missing.",
			ConstLabels: constLabels,
		}, []string{"regime"}),
		invoiceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "qrdine_invoice_requests_total",
			Help:        "Invoice generation requests by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		invoiceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "qrdine_invoice_errors_total",
			Help:        "Invoice generation failures by reason.",
			ConstLabels: constLabels,
		}, []string{"reason"}),
		invoiceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "qrdine_invoice_generate_duration_seconds",
			Help:        "Latency of invoice generation including the database transaction.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}),
		reconcileMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "qrdine_invoice_reconcile_mismatch_total",
			Help:        "Invoices whose recomputed line totals disagree with the stored order totals.",
			ConstLabels: constLabels,
		}),
	}

	collectors := []prometheus.Collector{
		m.orderLines,
		m.catalogFallbacks,
		m.invoiceRequests,
		m.invoiceErrors,
		m.invoiceDuration,
		m.reconcileMismatches,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
		}
	}

	return m, nil
}

func (m *EngineMetrics) IncOrderLine(regime string) {
	if m == nil {
		return
	}
	m.orderLines.WithLabelValues(regime).Inc()
}

func (m *EngineMetrics) IncCatalogFallback(regime string) {
	if m == nil {
		return
	}
	m.catalogFallbacks.WithLabelValues(regime).Inc()
}

func (m *EngineMetrics) IncInvoiceRequest(outcome string) {
	if m == nil {
		return
	}
	m.invoiceRequests.WithLabelValues(outcome).Inc()
}

// IncInvoiceError records a failed generation under its classified reason.
func (m *EngineMetrics) IncInvoiceError(err error) {
	if m == nil {
		return
	}
	m.invoiceRequests.WithLabelValues(InvoiceOutcomeFailed).Inc()
	m.invoiceErrors.WithLabelValues(ClassifyErrorReason(err)).Inc()
}

func (m *EngineMetrics) ObserveInvoiceDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.invoiceDuration.Observe(d.Seconds())
}

func (m *EngineMetrics) IncReconcileMismatch() {
	if m == nil {
		return
	}
	m.reconcileMismatches.Inc()
}

// ClassifyErrorReason maps errors to low-cardinality reasons.
func ClassifyErrorReason(err error) string {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return ReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return ReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return ReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return ReasonUniqueViolation
	case isDBError(err):
		return ReasonDB
	default:
		return ReasonBusinessRule
	}
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrMissingWhereClause) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
