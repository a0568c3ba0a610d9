package ledger

import (
	"github.com/shopspring/decimal"
)

// InvoiceTotals holds summed invoice totals keyed by invoice type, for one
// counterparty or for the whole ledger.
type InvoiceTotals map[InvoiceType]decimal.Decimal

// Get returns the total for t, zero when absent
func (t InvoiceTotals) Get(invoiceType InvoiceType) decimal.Decimal {
	if v, ok := t[invoiceType]; ok {
		return v
	}
	return decimal.Zero
}

// NetSales is sales minus client returns
func (t InvoiceTotals) NetSales() decimal.Decimal {
	return RoundMoney(t.Get(InvoiceTypeSale).Sub(t.Get(InvoiceTypeReturn)))
}

// NetPurchases is purchases minus supplier returns
func (t InvoiceTotals) NetPurchases() decimal.Decimal {
	return RoundMoney(t.Get(InvoiceTypePurchase).Sub(t.Get(InvoiceTypeSupplierReturn)))
}

// PaidAmount sums the payments linked to one invoice
func PaidAmount(linkedPayments []decimal.Decimal) decimal.Decimal {
	return SumMoney(linkedPayments...)
}

// CounterpartyBalance is charges minus credits minus every payment attributed
// to the counterparty, linked or not. For a client that is sales - returns -
// payments; for a supplier purchases - supplier returns - payments. A positive
// client balance means the client owes money; a positive supplier balance
// means the business owes the supplier.
func CounterpartyBalance(kind CounterpartyKind, totals InvoiceTotals, attributedPayments decimal.Decimal) decimal.Decimal {
	charges := totals.Get(kind.ChargeType())
	credits := totals.Get(kind.CreditType())
	return RoundMoney(charges.Sub(credits).Sub(attributedPayments))
}
