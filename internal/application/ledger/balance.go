package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// invoiceRemaining loads an invoice and returns it with its paid and
// remaining amounts.
func invoiceRemaining(ctx context.Context, repos TransactionalRepositories, invoiceID uuid.UUID) (*ledger.Invoice, decimal.Decimal, decimal.Decimal, error) {
	inv, err := repos.Invoices().FindByID(ctx, invoiceID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, err
	}
	paid, err := repos.Payments().SumByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, fmt.Errorf("sum payments of invoice %s: %w", invoiceID, err)
	}
	return inv, paid, inv.Remaining(paid), nil
}

// counterpartyBalance derives a client's or supplier's balance from invoice
// totals and attributed payments.
func counterpartyBalance(ctx context.Context, repos TransactionalRepositories, ref ledger.CounterpartyRef) (decimal.Decimal, error) {
	totals, err := repos.Invoices().SumTotalsByType(ctx, &ref)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum invoice totals: %w", err)
	}
	paid, err := repos.Payments().SumByCounterparty(ctx, ref)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum attributed payments: %w", err)
	}
	return ledger.CounterpartyBalance(ref.Kind, totals, paid), nil
}

// outstandingByKind is the sum of every balance of one kind, computed from
// ledger-wide totals in two queries.
func outstandingByKind(ctx context.Context, repos TransactionalRepositories, totals ledger.InvoiceTotals, kind ledger.CounterpartyKind) (decimal.Decimal, error) {
	paid, err := repos.Payments().SumByCounterpartyKind(ctx, kind)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum %s payments: %w", kind, err)
	}
	return ledger.CounterpartyBalance(kind, totals, paid), nil
}

// refreshInvoiceStatus recomputes the status of a loaded invoice from its
// current payments and writes it back when it changed.
func refreshInvoiceStatus(ctx context.Context, repos TransactionalRepositories, inv *ledger.Invoice) (InvoiceStatusResult, error) {
	paid, err := repos.Payments().SumByInvoice(ctx, inv.ID)
	if err != nil {
		return InvoiceStatusResult{}, fmt.Errorf("sum payments of invoice %s: %w", inv.Number, err)
	}
	previous, changed := inv.RefreshStatus(paid)
	if changed {
		if err := repos.Invoices().UpdateStatus(ctx, inv.ID, inv.Status); err != nil {
			return InvoiceStatusResult{}, fmt.Errorf("update status of invoice %s: %w", inv.Number, err)
		}
	}
	return InvoiceStatusResult{
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
		PreviousStatus:  previous,
		Status:          inv.Status,
		Changed:         changed,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      ledger.RoundMoney(paid),
		RemainingAmount: inv.Remaining(paid),
	}, nil
}
