package telemetry_test

import (
	"context"
	"testing"

	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m
		}
	}
	return out
}

func newTestLedgerMetrics(t *testing.T) (*telemetry.LedgerMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	m, err := telemetry.NewLedgerMetrics(provider.Meter("ledger-test"))
	require.NoError(t, err)
	return m, reader
}

func TestNewLedgerMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewLedgerMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestLedgerMetrics_RecordAllocation(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	ctx := context.Background()

	m.RecordAllocation(ctx, "smallest_remaining_first", decimal.RequireFromString("150"), decimal.RequireFromString("50"), 2)
	m.RecordAllocation(ctx, "smallest_remaining_first", decimal.RequireFromString("30"), decimal.Zero, 1)

	metrics := collect(t, reader)

	payments := metrics["ledger_payments_allocated_total"].Data.(metricdata.Sum[int64])
	require.Len(t, payments.DataPoints, 1)
	assert.Equal(t, int64(2), payments.DataPoints[0].Value)

	amount := metrics["ledger_allocation_amount_total"].Data.(metricdata.Sum[float64])
	assert.InDelta(t, 180.0, amount.DataPoints[0].Value, 0.0001)

	unlinked := metrics["ledger_unlinked_remainder_total"].Data.(metricdata.Sum[float64])
	assert.InDelta(t, 50.0, unlinked.DataPoints[0].Value, 0.0001)

	sizes := metrics["ledger_invoices_per_payment"].Data.(metricdata.Histogram[float64])
	assert.Equal(t, uint64(2), sizes.DataPoints[0].Count)
}

func TestLedgerMetrics_TransitionsConflictsAndReports(t *testing.T) {
	m, reader := newTestLedgerMetrics(t)
	ctx := context.Background()

	m.RecordStatusTransition(ctx, "unpaid", "paid")
	m.RecordStatusTransition(ctx, "unpaid", "partial")
	m.RecordStatusTransition(ctx, "unpaid", "paid")
	m.RecordConflict(ctx, "allocate_payment")
	m.RecordWeeklyReport(ctx, false)

	metrics := collect(t, reader)

	transitions := metrics["ledger_invoice_status_transitions_total"].Data.(metricdata.Sum[int64])
	assert.Len(t, transitions.DataPoints, 2)
	var total int64
	for _, dp := range transitions.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)

	conflicts := metrics["ledger_allocation_conflicts_total"].Data.(metricdata.Sum[int64])
	assert.Equal(t, int64(1), conflicts.DataPoints[0].Value)

	reports := metrics["ledger_weekly_reports_sent_total"].Data.(metricdata.Sum[int64])
	delivered, ok := reports.DataPoints[0].Attributes.Value(telemetry.AttrDelivered)
	require.True(t, ok)
	assert.Equal(t, "false", delivered.AsString())
}
