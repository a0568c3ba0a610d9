package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceType represents the kind of document an invoice is
type InvoiceType string

const (
	InvoiceTypeSale           InvoiceType = "sale"            // Goods sold to a client
	InvoiceTypePurchase       InvoiceType = "purchase"        // Goods bought from a supplier
	InvoiceTypeReturn         InvoiceType = "return"          // Goods returned by a client
	InvoiceTypeSupplierReturn InvoiceType = "supplier_return" // Goods returned to a supplier
)

// IsValid checks if the type is a known invoice type
func (t InvoiceType) IsValid() bool {
	switch t {
	case InvoiceTypeSale, InvoiceTypePurchase, InvoiceTypeReturn, InvoiceTypeSupplierReturn:
		return true
	}
	return false
}

// String returns the string representation of InvoiceType
func (t InvoiceType) String() string {
	return string(t)
}

// AllInvoiceTypes returns all valid invoice types
func AllInvoiceTypes() []InvoiceType {
	return []InvoiceType{
		InvoiceTypeSale,
		InvoiceTypePurchase,
		InvoiceTypeReturn,
		InvoiceTypeSupplierReturn,
	}
}

// CounterpartyKind returns which side of the business the invoice belongs to
func (t InvoiceType) CounterpartyKind() CounterpartyKind {
	switch t {
	case InvoiceTypePurchase, InvoiceTypeSupplierReturn:
		return CounterpartySupplier
	default:
		return CounterpartyClient
	}
}

// StockDirection is the sign applied to item quantities when the invoice
// moves stock: goods leave on sale and supplier return, arrive on purchase
// and client return.
func (t InvoiceType) StockDirection() int {
	switch t {
	case InvoiceTypeSale, InvoiceTypeSupplierReturn:
		return -1
	default:
		return 1
	}
}

// CashDirection is the sign of a payment linked to an invoice of this type
// in the cash balance.
func (t InvoiceType) CashDirection() int {
	switch t {
	case InvoiceTypeSale, InvoiceTypeSupplierReturn:
		return 1
	default:
		return -1
	}
}

// InvoiceStatus represents the settlement status of an invoice. It is always
// derived from the total and the linked payments.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending" // No payment linked
	InvoiceStatusPartial InvoiceStatus = "partial" // 0 < paid < total
	InvoiceStatusPaid    InvoiceStatus = "paid"    // paid >= total
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartial, InvoiceStatusPaid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// DeriveStatus computes the settlement status from the invoice total and the
// sum of its linked payments.
func DeriveStatus(total, paid decimal.Decimal) InvoiceStatus {
	total = RoundMoney(total)
	paid = RoundMoney(paid)
	switch {
	case paid.GreaterThanOrEqual(total):
		return InvoiceStatusPaid
	case paid.IsPositive():
		return InvoiceStatusPartial
	default:
		return InvoiceStatusPending
	}
}

// RemainingAmount is max(0, round(total - paid)).
func RemainingAmount(total, paid decimal.Decimal) decimal.Decimal {
	return NonNegative(RoundMoney(total.Sub(paid)))
}

// ItemInput describes one line of an invoice before it is persisted
type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
	UnitPrice decimal.Decimal
}

// InvoiceItem is one line of an invoice
type InvoiceItem struct {
	ID         uuid.UUID
	InvoiceID  uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal
}

// Invoice is a sale, purchase, return or supplier return document
type Invoice struct {
	ID          uuid.UUID
	Number      string
	Type        InvoiceType
	Date        time.Time
	DueDate     *time.Time
	ClientID    *uuid.UUID
	SupplierID  *uuid.UUID
	TotalAmount decimal.Decimal
	Status      InvoiceStatus
	Notes       string
	Items       []InvoiceItem
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewInvoice prices the items of a new invoice. Its status is derived from
// the total with nothing paid, so a zero-total invoice starts out paid.
func NewInvoice(number string, invoiceType InvoiceType, counterparty CounterpartyRef, date time.Time, dueDate *time.Time, lines []ItemInput, notes string) (*Invoice, error) {
	if !invoiceType.IsValid() {
		return nil, NewInvalidInvoiceError(fmt.Sprintf("unknown invoice type %q", invoiceType))
	}
	if strings.TrimSpace(number) == "" {
		return nil, NewInvalidInvoiceError("invoice number is required")
	}
	if counterparty.IsZero() {
		return nil, NewInvalidInvoiceError("invoice must reference a client or a supplier")
	}
	if counterparty.Kind != invoiceType.CounterpartyKind() {
		return nil, NewInvalidInvoiceError(fmt.Sprintf("%s invoices must reference a %s", invoiceType, invoiceType.CounterpartyKind()))
	}
	if date.IsZero() {
		return nil, NewInvalidInvoiceError("invoice date is required")
	}
	if dueDate != nil && dueDate.Before(truncateDay(date)) {
		return nil, NewInvalidInvoiceError("due date cannot be before the invoice date")
	}

	now := time.Now()
	inv := &Invoice{
		ID:        uuid.New(),
		Number:    strings.TrimSpace(number),
		Type:      invoiceType,
		Date:      date,
		DueDate:   dueDate,
		Status:    InvoiceStatusPending,
		Notes:     notes,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id := counterparty.ID
	if counterparty.Kind == CounterpartySupplier {
		inv.SupplierID = &id
	} else {
		inv.ClientID = &id
	}

	if _, err := inv.ReplaceItems(lines); err != nil {
		return nil, err
	}
	inv.Status = DeriveStatus(inv.TotalAmount, decimal.Zero)
	return inv, nil
}

// ReplaceItems swaps the invoice lines for new ones, recomputes the total and
// returns the lines that were replaced.
func (i *Invoice) ReplaceItems(lines []ItemInput) ([]InvoiceItem, error) {
	if len(lines) == 0 {
		return nil, NewInvalidInvoiceError("invoice needs at least one item")
	}
	items := make([]InvoiceItem, 0, len(lines))
	total := decimal.Zero
	for idx, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, NewInvalidInvoiceError(fmt.Sprintf("item %d: product is required", idx+1))
		}
		if line.Quantity <= 0 {
			return nil, NewInvalidInvoiceError(fmt.Sprintf("item %d: quantity must be greater than zero", idx+1))
		}
		if line.UnitPrice.IsNegative() {
			return nil, NewInvalidInvoiceError(fmt.Sprintf("item %d: unit price cannot be negative", idx+1))
		}
		unitPrice := RoundMoney(line.UnitPrice)
		lineTotal := RoundMoney(unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		items = append(items, InvoiceItem{
			ID:         uuid.New(),
			InvoiceID:  i.ID,
			ProductID:  line.ProductID,
			Quantity:   line.Quantity,
			UnitPrice:  unitPrice,
			TotalPrice: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	old := i.Items
	i.Items = items
	i.TotalAmount = RoundMoney(total)
	i.UpdatedAt = time.Now()
	return old, nil
}

// StockMovements returns the signed quantity change per product that the
// given items cause for an invoice of type t. Pass reverse to undo them.
func StockMovements(t InvoiceType, items []InvoiceItem, reverse bool) map[uuid.UUID]int {
	sign := t.StockDirection()
	if reverse {
		sign = -sign
	}
	moves := make(map[uuid.UUID]int, len(items))
	for _, item := range items {
		moves[item.ProductID] += sign * item.Quantity
	}
	return moves
}

// Counterparty returns the client or supplier the invoice is issued to
func (i *Invoice) Counterparty() CounterpartyRef {
	if i.SupplierID != nil {
		return CounterpartyRef{ID: *i.SupplierID, Kind: CounterpartySupplier}
	}
	if i.ClientID != nil {
		return CounterpartyRef{ID: *i.ClientID, Kind: CounterpartyClient}
	}
	return CounterpartyRef{}
}

// Remaining returns the unpaid part of the invoice given its paid amount
func (i *Invoice) Remaining(paid decimal.Decimal) decimal.Decimal {
	return RemainingAmount(i.TotalAmount, paid)
}

// RefreshStatus re-derives the status from the paid amount. It returns the
// previous status and whether it changed.
func (i *Invoice) RefreshStatus(paid decimal.Decimal) (InvoiceStatus, bool) {
	previous := i.Status
	i.Status = DeriveStatus(i.TotalAmount, paid)
	if previous == i.Status {
		return previous, false
	}
	i.UpdatedAt = time.Now()
	return previous, true
}

// ReferenceDate is the date aging is measured from: the due date when set,
// otherwise the invoice date.
func (i *Invoice) ReferenceDate() time.Time {
	if i.DueDate != nil {
		return *i.DueDate
	}
	return i.Date
}

// AgeInDays returns whole calendar days between the reference date and today.
// Invoices not yet due have a negative age.
func (i *Invoice) AgeInDays(today time.Time) int {
	return DaysBetween(i.ReferenceDate(), today)
}

// DaysBetween counts calendar days from a to b, ignoring time of day.
func DaysBetween(a, b time.Time) int {
	from := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	to := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(to.Sub(from).Hours()) / 24
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
