package ledger

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ===================== Settlement =====================

// SettlementTarget names what a payment settles: one invoice, one
// counterparty (a general payment), or both when they agree.
type SettlementTarget struct {
	InvoiceID    *uuid.UUID
	Counterparty *ledger.CounterpartyRef
}

// AllocatePaymentCommand is the input of AllocatePayment
type AllocatePaymentCommand struct {
	Amount decimal.Decimal
	Target SettlementTarget
	// Strict settles only the target invoice and rejects amounts above its
	// remaining balance instead of spilling over.
	Strict         bool
	Details        ledger.PaymentDetails
	IdempotencyKey string
}

// InvoiceStatusResult reports an invoice's settlement state after a recompute
type InvoiceStatusResult struct {
	InvoiceID       uuid.UUID            `json:"invoice_id"`
	InvoiceNumber   string               `json:"invoice_number"`
	PreviousStatus  ledger.InvoiceStatus `json:"previous_status"`
	Status          ledger.InvoiceStatus `json:"status"`
	Changed         bool                 `json:"changed"`
	TotalAmount     decimal.Decimal      `json:"total_amount"`
	PaidAmount      decimal.Decimal      `json:"paid_amount"`
	RemainingAmount decimal.Decimal      `json:"remaining_amount"`
}

// SettlementResult is the outcome of AllocatePayment
type SettlementResult struct {
	Policy           ledger.AllocationPolicy `json:"policy"`
	CounterpartyID   uuid.UUID               `json:"counterparty_id"`
	CounterpartyKind ledger.CounterpartyKind `json:"counterparty_kind"`
	CounterpartyName string                  `json:"counterparty_name"`
	Amount           decimal.Decimal         `json:"amount"`
	Allocations      []ledger.Allocation     `json:"allocations"`
	UnlinkedAmount   decimal.Decimal         `json:"unlinked_amount"`
	PaymentIDs       []uuid.UUID             `json:"payment_ids"`
	Invoices         []InvoiceStatusResult   `json:"invoices"`
	Replayed         bool                    `json:"replayed"`
}

// PaymentDeletionResult is the outcome of DeletePayment
type PaymentDeletionResult struct {
	PaymentID uuid.UUID            `json:"payment_id"`
	Amount    decimal.Decimal      `json:"amount"`
	Invoice   *InvoiceStatusResult `json:"invoice,omitempty"`
}

// StatusBackfillResult summarizes RefreshAllInvoiceStatuses
type StatusBackfillResult struct {
	Checked int `json:"checked"`
	Changed int `json:"changed"`
}

// ===================== Invoicing =====================

// CreateInvoiceCommand is the input of CreateInvoice
type CreateInvoiceCommand struct {
	Type           ledger.InvoiceType
	CounterpartyID uuid.UUID
	Date           time.Time
	DueDate        *time.Time
	Items          []ledger.ItemInput
	Notes          string
}

// InvoiceItemResponse represents an invoice line in API responses
type InvoiceItemResponse struct {
	ID         uuid.UUID       `json:"id"`
	ProductID  uuid.UUID       `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID              uuid.UUID       `json:"id"`
	InvoiceID       *uuid.UUID      `json:"invoice_id,omitempty"`
	ClientID        *uuid.UUID      `json:"client_id,omitempty"`
	SupplierID      *uuid.UUID      `json:"supplier_id,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentDate     time.Time       `json:"payment_date"`
	Method          string          `json:"method,omitempty"`
	ReferenceNumber string          `json:"reference_number,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID              uuid.UUID             `json:"id"`
	Number          string                `json:"number"`
	Type            ledger.InvoiceType    `json:"type"`
	Date            time.Time             `json:"date"`
	DueDate         *time.Time            `json:"due_date,omitempty"`
	ClientID        *uuid.UUID            `json:"client_id,omitempty"`
	SupplierID      *uuid.UUID            `json:"supplier_id,omitempty"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	PaidAmount      decimal.Decimal       `json:"paid_amount"`
	RemainingAmount decimal.Decimal       `json:"remaining_amount"`
	Status          ledger.InvoiceStatus  `json:"status"`
	Notes           string                `json:"notes,omitempty"`
	Items           []InvoiceItemResponse `json:"items,omitempty"`
	Payments        []PaymentResponse     `json:"payments,omitempty"`
	CreatedAt       time.Time             `json:"created_at"`
}

// InvoiceListFilter defines filtering options for invoice list queries
type InvoiceListFilter struct {
	Type           string     `form:"type"`
	Status         string     `form:"status"`
	CounterpartyID *uuid.UUID `form:"counterparty_id"`
	Kind           string     `form:"kind"`
	DateFrom       *time.Time `form:"date_from" time_format:"2006-01-02"`
	DateTo         *time.Time `form:"date_to" time_format:"2006-01-02"`
	Page           int        `form:"page"`
	PageSize       int        `form:"page_size"`
}

func toInvoiceResponse(inv *ledger.Invoice, paid decimal.Decimal) InvoiceResponse {
	resp := InvoiceResponse{
		ID:              inv.ID,
		Number:          inv.Number,
		Type:            inv.Type,
		Date:            inv.Date,
		DueDate:         inv.DueDate,
		ClientID:        inv.ClientID,
		SupplierID:      inv.SupplierID,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      ledger.RoundMoney(paid),
		RemainingAmount: inv.Remaining(paid),
		Status:          inv.Status,
		Notes:           inv.Notes,
		CreatedAt:       inv.CreatedAt,
	}
	if len(inv.Items) > 0 {
		resp.Items = make([]InvoiceItemResponse, len(inv.Items))
		for i, item := range inv.Items {
			resp.Items[i] = InvoiceItemResponse{
				ID:         item.ID,
				ProductID:  item.ProductID,
				Quantity:   item.Quantity,
				UnitPrice:  item.UnitPrice,
				TotalPrice: item.TotalPrice,
			}
		}
	}
	return resp
}

func toPaymentResponse(p *ledger.Payment) PaymentResponse {
	return PaymentResponse{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		ClientID:        p.ClientID,
		SupplierID:      p.SupplierID,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		Method:          p.Method,
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
	}
}

// ===================== Master data =====================

// CounterpartyResponse represents a client or supplier in API responses
type CounterpartyResponse struct {
	ID        uuid.UUID               `json:"id"`
	Kind      ledger.CounterpartyKind `json:"kind"`
	Name      string                  `json:"name"`
	Phone     string                  `json:"phone,omitempty"`
	Email     string                  `json:"email,omitempty"`
	Address   string                  `json:"address,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

func toCounterpartyResponse(cp *ledger.Counterparty) CounterpartyResponse {
	return CounterpartyResponse{
		ID:        cp.ID,
		Kind:      cp.Kind,
		Name:      cp.Name,
		Phone:     cp.Phone,
		Email:     cp.Email,
		Address:   cp.Address,
		CreatedAt: cp.CreatedAt,
	}
}

// UpdateCounterpartyCommand replaces a client's or supplier's contact details
type UpdateCounterpartyCommand struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

// CreateProductCommand is the input of CreateProduct
type CreateProductCommand struct {
	Name          string
	Color         string
	Material      string
	Type          string
	Quantity      int
	FinishingCost decimal.Decimal
	PrintingCost  decimal.Decimal
}

// UpdateProductCommand replaces every editable field of a product. The
// quantity is set as given; it is not a movement.
type UpdateProductCommand struct {
	Name          string
	Color         string
	Material      string
	Type          string
	Quantity      int
	FinishingCost decimal.Decimal
	PrintingCost  decimal.Decimal
}

// ProductListFilter defines filtering options for product list queries
type ProductListFilter struct {
	Name     string `form:"name"`
	Color    string `form:"color"`
	Type     string `form:"type"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ProductResponse represents a product in API responses
type ProductResponse struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Color         string          `json:"color,omitempty"`
	Material      string          `json:"material,omitempty"`
	Type          string          `json:"type,omitempty"`
	Quantity      int             `json:"quantity"`
	FinishingCost decimal.Decimal `json:"finishing_cost"`
	PrintingCost  decimal.Decimal `json:"printing_cost"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toProductResponse(p *ledger.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Color:         p.Color,
		Material:      p.Material,
		Type:          p.Type,
		Quantity:      p.Quantity,
		FinishingCost: p.FinishingCost,
		PrintingCost:  p.PrintingCost,
		UpdatedAt:     p.UpdatedAt,
	}
}

// FinancialEntryResponse represents a financial entry in API responses
type FinancialEntryResponse struct {
	ID          uuid.UUID        `json:"id"`
	EntryType   ledger.EntryType `json:"entry_type"`
	Amount      decimal.Decimal  `json:"amount"`
	Date        time.Time        `json:"date"`
	Description string           `json:"description,omitempty"`
	Category    string           `json:"category,omitempty"`
}

// AuditListFilter defines filtering options for audit trail queries
type AuditListFilter struct {
	Action   string     `form:"action"`
	EntityID *uuid.UUID `form:"entity_id"`
	Page     int        `form:"page"`
	PageSize int        `form:"page_size"`
}

// AuditEntryResponse represents an audit entry in API responses
type AuditEntryResponse struct {
	ID        uuid.UUID          `json:"id"`
	Action    ledger.AuditAction `json:"action"`
	EntityID  uuid.UUID          `json:"entity_id"`
	Details   map[string]any     `json:"details,omitempty"`
	RequestID string             `json:"request_id,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

func toAuditEntryResponse(e *ledger.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        e.ID,
		Action:    e.Action,
		EntityID:  e.EntityID,
		Details:   e.Details,
		RequestID: e.RequestID,
		CreatedAt: e.CreatedAt,
	}
}

// ===================== Reporting =====================

// DashboardSummary is the headline figures of the ledger
type DashboardSummary struct {
	CashBalance          decimal.Decimal   `json:"cash_balance"`
	ClientsOutstanding   decimal.Decimal   `json:"clients_outstanding"`
	SuppliersOutstanding decimal.Decimal   `json:"suppliers_outstanding"`
	NetProfit            decimal.Decimal   `json:"net_profit"`
	ProfitMargin         decimal.Decimal   `json:"profit_margin"`
	ProductCount         int64             `json:"product_count"`
	StockUnits           int64             `json:"stock_units"`
	RecentInvoices       []InvoiceResponse `json:"recent_invoices"`
}

// AlertKind classifies a dashboard alert
type AlertKind string

const (
	AlertLowStock AlertKind = "low_stock"
	AlertDueSoon  AlertKind = "due_soon"
	AlertOverdue  AlertKind = "overdue"
)

// Alert is one dashboard warning
type Alert struct {
	Kind      AlertKind        `json:"kind"`
	Message   string           `json:"message"`
	SubjectID uuid.UUID        `json:"subject_id"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
	DueDate   *time.Time       `json:"due_date,omitempty"`
}

// StatementResponse lists a counterparty's invoices and payments with its balance
type StatementResponse struct {
	Counterparty CounterpartyResponse `json:"counterparty"`
	Balance      decimal.Decimal      `json:"balance"`
	Invoices     []InvoiceResponse    `json:"invoices"`
	Payments     []PaymentResponse    `json:"payments"`
}

// WeeklyReportLine is one client owing money in the weekly report
type WeeklyReportLine struct {
	ClientID   uuid.UUID       `json:"client_id"`
	ClientName string          `json:"client_name"`
	Balance    decimal.Decimal `json:"balance"`
}

// WeeklyReport summarizes what clients owe
type WeeklyReport struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Lines       []WeeklyReportLine `json:"lines"`
	Total       decimal.Decimal    `json:"total"`
	Message     string             `json:"message"`
	Delivered   bool               `json:"delivered"`
}
