package ledger

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	shared.Filter
	Type         *InvoiceType
	Status       *InvoiceStatus
	Counterparty *CounterpartyRef
	DateFrom     *time.Time
	DateTo       *time.Time
}

// ProductFilter defines filtering options for product queries. Name and
// Color match case-insensitive substrings; Type matches exactly.
type ProductFilter struct {
	shared.Filter
	Name  string
	Color string
	Type  string
}

// DateRange optionally bounds period reports. Both ends are inclusive days.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	// FindByID finds an invoice with its items
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindByIDForUpdate finds an invoice and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindOpenForUpdate locks and returns the counterparty's invoices of the given type whose status is not paid
	FindOpenForUpdate(ctx context.Context, counterparty CounterpartyRef, invoiceType InvoiceType) ([]Invoice, error)
	// FindAll lists invoices matching the filter along with the total count
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)
	// FindOutstandingByType returns invoices of a type whose status is not paid
	FindOutstandingByType(ctx context.Context, invoiceType InvoiceType) ([]Invoice, error)
	// FindRecent returns the most recently dated invoices
	FindRecent(ctx context.Context, limit int) ([]Invoice, error)
	// FindByCounterparty lists every invoice issued to the counterparty, newest first
	FindByCounterparty(ctx context.Context, counterparty CounterpartyRef) ([]Invoice, error)
	// FindIDsByCounterparty returns the IDs of every invoice issued to the counterparty
	FindIDsByCounterparty(ctx context.Context, counterparty CounterpartyRef) ([]uuid.UUID, error)
	// FindAllIDs returns every invoice ID
	FindAllIDs(ctx context.Context) ([]uuid.UUID, error)
	// LastNumberWithPrefix returns the highest invoice number starting with prefix, or "" when there is none
	LastNumberWithPrefix(ctx context.Context, prefix string) (string, error)
	// Create inserts a new invoice with its items
	Create(ctx context.Context, invoice *Invoice) error
	// ReplaceItems rewrites the invoice header and replaces all of its items
	ReplaceItems(ctx context.Context, invoice *Invoice) error
	// UpdateStatus writes only the derived status column
	UpdateStatus(ctx context.Context, id uuid.UUID, status InvoiceStatus) error
	// Delete removes the invoice together with its items and payments
	Delete(ctx context.Context, id uuid.UUID) error
	// SumTotalsByType sums invoice totals by type, for one counterparty or for all when nil
	SumTotalsByType(ctx context.Context, counterparty *CounterpartyRef) (InvoiceTotals, error)
	// ListAmounts returns type, date and total of invoices within the range
	ListAmounts(ctx context.Context, period DateRange) ([]InvoiceAmount, error)
}

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Payment, error)
	// FindByInvoice lists the payments linked to an invoice
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]Payment, error)
	// FindByCounterparty lists the payments attributed to a counterparty
	FindByCounterparty(ctx context.Context, counterparty CounterpartyRef) ([]Payment, error)
	// Create inserts a payment
	Create(ctx context.Context, payment *Payment) error
	// Delete removes a payment
	Delete(ctx context.Context, id uuid.UUID) error
	// DeleteByCounterparty removes every payment attributed to the counterparty
	DeleteByCounterparty(ctx context.Context, counterparty CounterpartyRef) error
	// SumByInvoice returns the paid amount of an invoice
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	// SumByInvoices returns paid amounts keyed by invoice ID; invoices without payments are absent
	SumByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
	// SumByCounterparty sums every payment attributed to the counterparty, linked or not
	SumByCounterparty(ctx context.Context, counterparty CounterpartyRef) (decimal.Decimal, error)
	// SumByCounterpartyKind sums payments attributed to any counterparty of the kind
	SumByCounterpartyKind(ctx context.Context, kind CounterpartyKind) (decimal.Decimal, error)
	// SumLinkedByInvoiceType sums linked payments grouped by their invoice's type
	SumLinkedByInvoiceType(ctx context.Context) (InvoiceTotals, error)
	// SumUnlinked sums payments with no invoice
	SumUnlinked(ctx context.Context) (decimal.Decimal, error)
}

// CounterpartyRepository defines the interface for client and supplier persistence
type CounterpartyRepository interface {
	// FindByID finds a client or supplier
	FindByID(ctx context.Context, ref CounterpartyRef) (*Counterparty, error)
	// FindByIDForUpdate finds a counterparty and locks its row, serializing settlements against it
	FindByIDForUpdate(ctx context.Context, ref CounterpartyRef) (*Counterparty, error)
	// FindAll lists every counterparty of a kind ordered by name
	FindAll(ctx context.Context, kind CounterpartyKind) ([]Counterparty, error)
	// FindNames resolves display names for a set of IDs of one kind
	FindNames(ctx context.Context, kind CounterpartyKind, ids []uuid.UUID) (map[uuid.UUID]string, error)
	// Create inserts a counterparty
	Create(ctx context.Context, cp *Counterparty) error
	// Update writes a counterparty's contact details
	Update(ctx context.Context, cp *Counterparty) error
	// Delete removes a counterparty row
	Delete(ctx context.Context, ref CounterpartyRef) error
}

// ProductRepository defines the interface for product persistence
type ProductRepository interface {
	// FindByID finds a product by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	// FindByIDsForUpdate locks and returns products keyed by ID, locking in ID order
	FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Product, error)
	// FindLowStock lists products whose quantity is below threshold
	FindLowStock(ctx context.Context, threshold int) ([]Product, error)
	// FindAll lists products matching the filter along with the total count
	FindAll(ctx context.Context, filter ProductFilter) ([]Product, int64, error)
	// Create inserts a product
	Create(ctx context.Context, product *Product) error
	// Update writes every editable column of a product
	Update(ctx context.Context, product *Product) error
	// UpdateQuantity writes a product's quantity
	UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error
	// IsReferenced reports whether any invoice item names the product
	IsReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	// Delete removes a product
	Delete(ctx context.Context, id uuid.UUID) error
	// StockSummary returns the product count and the total units on hand
	StockSummary(ctx context.Context) (products int64, units int64, err error)
}

// FinancialEntryRepository defines the interface for financial entry persistence
type FinancialEntryRepository interface {
	// Create inserts an entry
	Create(ctx context.Context, entry *FinancialEntry) error
	// SumByType sums entries grouped by entry type
	SumByType(ctx context.Context) (map[EntryType]decimal.Decimal, error)
}

// AuditRepository stores the audit trail
type AuditRepository interface {
	// Record appends an entry
	Record(ctx context.Context, entry *AuditEntry) error
	// FindAll lists entries matching the filter, newest first, along with the total count
	FindAll(ctx context.Context, filter AuditFilter) ([]AuditEntry, int64, error)
}

// RankedItem is one row of a top-N report
type RankedItem struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Detail      string          `json:"detail,omitempty"`
	Quantity    int64           `json:"quantity,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// RankingRepository answers the top-N report queries
type RankingRepository interface {
	// TopProducts ranks products by sale item revenue within the range
	TopProducts(ctx context.Context, period DateRange, limit int) ([]RankedItem, error)
	// TopCounterparties ranks clients by sale totals or suppliers by purchase totals
	TopCounterparties(ctx context.Context, kind CounterpartyKind, period DateRange, limit int) ([]RankedItem, error)
}
