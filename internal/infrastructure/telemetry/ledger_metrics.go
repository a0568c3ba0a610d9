package telemetry

import (
	"context"
	"errors"
	"strconv"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// LedgerMetrics records settlement and reporting counters.
type LedgerMetrics struct {
	paymentsAllocated  *Counter
	allocationAmount   *FloatCounter
	unlinkedRemainder  *FloatCounter
	invoicesPerPayment *Histogram
	conflicts          *Counter
	statusTransitions  *Counter
	weeklyReports      *Counter
}

// NewLedgerMetrics registers the ledger instruments on meter.
func NewLedgerMetrics(meter metric.Meter) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &LedgerMetrics{}
	var err error
	if m.paymentsAllocated, err = NewCounter(meter, "ledger_payments_allocated_total",
		"Payments recorded through the settlement allocator", "{payments}"); err != nil {
		return nil, err
	}
	if m.allocationAmount, err = NewFloatCounter(meter, "ledger_allocation_amount_total",
		"Money allocated to invoices or left unlinked", "{currency}"); err != nil {
		return nil, err
	}
	if m.unlinkedRemainder, err = NewFloatCounter(meter, "ledger_unlinked_remainder_total",
		"Money recorded as unlinked payments", "{currency}"); err != nil {
		return nil, err
	}
	if m.invoicesPerPayment, err = NewHistogram(meter, "ledger_invoices_per_payment",
		"Invoices touched by a single allocation", "{invoices}", AllocationSizeBuckets...); err != nil {
		return nil, err
	}
	if m.conflicts, err = NewCounter(meter, "ledger_allocation_conflicts_total",
		"Transactions retried after a concurrency conflict", "{conflicts}"); err != nil {
		return nil, err
	}
	if m.statusTransitions, err = NewCounter(meter, "ledger_invoice_status_transitions_total",
		"Invoice status changes", "{transitions}"); err != nil {
		return nil, err
	}
	if m.weeklyReports, err = NewCounter(meter, "ledger_weekly_reports_sent_total",
		"Weekly outstanding balance reports", "{reports}"); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordAllocation counts one allocated payment.
func (m *LedgerMetrics) RecordAllocation(ctx context.Context, policy string, amount, unlinked decimal.Decimal, invoices int) {
	m.paymentsAllocated.Inc(ctx, AttrPolicy.String(policy))
	m.allocationAmount.Add(ctx, amount.InexactFloat64(), AttrPolicy.String(policy))
	if unlinked.IsPositive() {
		m.unlinkedRemainder.Add(ctx, unlinked.InexactFloat64(), AttrPolicy.String(policy))
	}
	m.invoicesPerPayment.Record(ctx, float64(invoices), AttrPolicy.String(policy))
}

// RecordConflict counts one retried transaction.
func (m *LedgerMetrics) RecordConflict(ctx context.Context, operation string) {
	m.conflicts.Inc(ctx, AttrOperation.String(operation))
}

// RecordStatusTransition counts an invoice moving between statuses.
func (m *LedgerMetrics) RecordStatusTransition(ctx context.Context, from, to string) {
	m.statusTransitions.Inc(ctx, AttrFromStatus.String(from), AttrToStatus.String(to))
}

// RecordWeeklyReport counts a weekly report attempt.
func (m *LedgerMetrics) RecordWeeklyReport(ctx context.Context, delivered bool) {
	m.weeklyReports.Inc(ctx, AttrDelivered.String(strconv.FormatBool(delivered)))
}
