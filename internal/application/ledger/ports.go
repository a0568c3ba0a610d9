package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Notifier delivers human-readable messages to operators. Delivery is best
// effort; callers log failures and move on.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Metrics records ledger business metrics
type Metrics interface {
	RecordAllocation(ctx context.Context, policy string, amount, unlinked decimal.Decimal, invoices int)
	RecordConflict(ctx context.Context, operation string)
	RecordStatusTransition(ctx context.Context, from, to string)
	RecordWeeklyReport(ctx context.Context, delivered bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordAllocation(context.Context, string, decimal.Decimal, decimal.Decimal, int) {}
func (noopMetrics) RecordConflict(context.Context, string) {}
func (noopMetrics) RecordStatusTransition(context.Context, string, string) {}
func (noopMetrics) RecordWeeklyReport(context.Context, bool) {}
