package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyErrorReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ReasonUnknown},
		{name: "deadline", err: fmt.Errorf("lock order: %w", context.DeadlineExceeded), want: ReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReasonDBLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: ReasonSerializationFailure},
		{name: "unique_gorm", err: gorm.ErrDuplicatedKey, want: ReasonUniqueViolation},
		{name: "unique_pg", err: &pgconn.PgError{Code: "23505"}, want: ReasonUniqueViolation},
		{name: "other_pg", err: &pgconn.PgError{Code: "42P01"}, want: ReasonDB},
		{name: "not_found", err: gorm.ErrRecordNotFound, want: ReasonBusinessRule},
		{name: "domain", err: errors.New("order_has_no_line_items"), want: ReasonBusinessRule},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyErrorReason(tc.err))
		})
	}
}

func TestEngineMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := newEngineMetrics(registry, Config{ServiceName: "qrdine", Environment: "test"})
	require.NoError(t, err)

	m.IncOrderLine("packaged")
	m.IncOrderLine("packaged")
	m.IncCatalogFallback("service")
	m.IncInvoiceRequest(InvoiceOutcomeIssued)
	m.IncInvoiceError(&pgconn.PgError{Code: "55P03"})
	m.IncReconcileMismatch()
	m.ObserveInvoiceDuration(30 * time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.orderLines.WithLabelValues("packaged")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.catalogFallbacks.WithLabelValues("service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoiceRequests.WithLabelValues(InvoiceOutcomeIssued)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoiceRequests.WithLabelValues(InvoiceOutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invoiceErrors.WithLabelValues(ReasonDBLockTimeout)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.reconcileMismatches))
}

func TestEngineMetricsRegisterTwice(t *testing.T) {
	registry := prometheus.NewRegistry()
	_, err := newEngineMetrics(registry, Config{})
	require.NoError(t, err)

	_, err = newEngineMetrics(registry, Config{})
	assert.NoError(t, err)
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	assert.NotPanics(t, func() {
		m.IncOrderLine("packaged")
		m.IncInvoiceError(errors.New("boom"))
		m.IncReconcileMismatch()
	})
}
