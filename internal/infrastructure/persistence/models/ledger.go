package models

import (
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Table names.
const (
	TableClients          = "clients"
	TableSuppliers        = "suppliers"
	TableProducts         = "products"
	TableInvoices         = "invoices"
	TableInvoiceItems     = "invoice_items"
	TablePayments         = "payments"
	TableFinancialEntries = "financial_entries"
	TableAuditEntries     = "audit_entries"
)

// CounterpartyTable returns the table holding counterparties of kind.
func CounterpartyTable(kind ledger.CounterpartyKind) string {
	if kind == ledger.CounterpartySupplier {
		return TableSuppliers
	}
	return TableClients
}

// CounterpartyModel holds the columns shared by the clients and suppliers
// tables. Queries pick the table with CounterpartyTable.
type CounterpartyModel struct {
	BaseModel
	Name    string `gorm:"type:varchar(100);not null;index"`
	Phone   string `gorm:"type:varchar(20)"`
	Email   string `gorm:"type:varchar(120)"`
	Address string `gorm:"type:text"`
}

// ToDomain converts the row into a domain Counterparty of kind.
func (m *CounterpartyModel) ToDomain(kind ledger.CounterpartyKind) *ledger.Counterparty {
	return &ledger.Counterparty{
		ID:        m.ID,
		Kind:      kind,
		Name:      m.Name,
		Phone:     m.Phone,
		Email:     m.Email,
		Address:   m.Address,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// CounterpartyModelFromDomain builds a row from a domain Counterparty.
func CounterpartyModelFromDomain(cp *ledger.Counterparty) *CounterpartyModel {
	return &CounterpartyModel{
		BaseModel: BaseModel{ID: cp.ID, CreatedAt: cp.CreatedAt, UpdatedAt: cp.UpdatedAt},
		Name:      cp.Name,
		Phone:     cp.Phone,
		Email:     cp.Email,
		Address:   cp.Address,
	}
}

// ClientModel maps the clients table.
type ClientModel struct {
	CounterpartyModel
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string { return TableClients }

// SupplierModel maps the suppliers table.
type SupplierModel struct {
	CounterpartyModel
}

// TableName returns the table name for GORM
func (SupplierModel) TableName() string { return TableSuppliers }

// ProductModel maps the products table.
type ProductModel struct {
	BaseModel
	Name          string          `gorm:"type:varchar(100);not null"`
	Color         string          `gorm:"type:varchar(50)"`
	Material      string          `gorm:"type:varchar(50)"`
	Type          string          `gorm:"type:varchar(50)"`
	Quantity      int             `gorm:"not null;default:0"`
	FinishingCost decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	PrintingCost  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string { return TableProducts }

// ToDomain converts the row into a domain Product.
func (m *ProductModel) ToDomain() *ledger.Product {
	return &ledger.Product{
		ID:            m.ID,
		Name:          m.Name,
		Color:         m.Color,
		Material:      m.Material,
		Type:          m.Type,
		Quantity:      m.Quantity,
		FinishingCost: m.FinishingCost,
		PrintingCost:  m.PrintingCost,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

// ProductModelFromDomain builds a row from a domain Product.
func ProductModelFromDomain(p *ledger.Product) *ProductModel {
	return &ProductModel{
		BaseModel:     BaseModel{ID: p.ID, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt},
		Name:          p.Name,
		Color:         p.Color,
		Material:      p.Material,
		Type:          p.Type,
		Quantity:      p.Quantity,
		FinishingCost: p.FinishingCost,
		PrintingCost:  p.PrintingCost,
	}
}

// InvoiceModel maps the invoices table. Exactly one of ClientID and
// SupplierID is set.
type InvoiceModel struct {
	BaseModel
	Number      string               `gorm:"type:varchar(50);not null;uniqueIndex"`
	Type        ledger.InvoiceType   `gorm:"column:invoice_type;type:varchar(20);not null;index"`
	Date        time.Time            `gorm:"type:date;not null;index"`
	DueDate     *time.Time           `gorm:"type:date"`
	ClientID    *uuid.UUID           `gorm:"type:uuid;index"`
	SupplierID  *uuid.UUID           `gorm:"type:uuid;index"`
	TotalAmount decimal.Decimal      `gorm:"type:decimal(18,2);not null;default:0"`
	Status      ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	Notes       string               `gorm:"type:text"`
	Items       []InvoiceItemModel   `gorm:"foreignKey:InvoiceID;references:ID"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string { return TableInvoices }

// ToDomain converts the row, with any preloaded items, into a domain Invoice.
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	inv := &ledger.Invoice{
		ID:          m.ID,
		Number:      m.Number,
		Type:        m.Type,
		Date:        m.Date,
		DueDate:     m.DueDate,
		ClientID:    m.ClientID,
		SupplierID:  m.SupplierID,
		TotalAmount: m.TotalAmount,
		Status:      m.Status,
		Notes:       m.Notes,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if len(m.Items) > 0 {
		inv.Items = make([]ledger.InvoiceItem, len(m.Items))
		for i := range m.Items {
			inv.Items[i] = m.Items[i].ToDomain()
		}
	}
	return inv
}

// InvoiceModelFromDomain builds a row and its item rows from a domain Invoice.
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{
		BaseModel:   BaseModel{ID: inv.ID, CreatedAt: inv.CreatedAt, UpdatedAt: inv.UpdatedAt},
		Number:      inv.Number,
		Type:        inv.Type,
		Date:        inv.Date,
		DueDate:     inv.DueDate,
		ClientID:    inv.ClientID,
		SupplierID:  inv.SupplierID,
		TotalAmount: inv.TotalAmount,
		Status:      inv.Status,
		Notes:       inv.Notes,
	}
	m.Items = InvoiceItemModelsFromDomain(inv.ID, inv.Items)
	return m
}

// InvoiceItemModel maps the invoice_items table.
type InvoiceItemModel struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity   int             `gorm:"not null"`
	UnitPrice  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	TotalPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string { return TableInvoiceItems }

// ToDomain converts the row into a domain InvoiceItem.
func (m *InvoiceItemModel) ToDomain() ledger.InvoiceItem {
	return ledger.InvoiceItem{
		ID:         m.ID,
		InvoiceID:  m.InvoiceID,
		ProductID:  m.ProductID,
		Quantity:   m.Quantity,
		UnitPrice:  m.UnitPrice,
		TotalPrice: m.TotalPrice,
	}
}

// InvoiceItemModelsFromDomain builds item rows owned by invoiceID.
func InvoiceItemModelsFromDomain(invoiceID uuid.UUID, items []ledger.InvoiceItem) []InvoiceItemModel {
	rows := make([]InvoiceItemModel, len(items))
	for i, item := range items {
		rows[i] = InvoiceItemModel{
			ID:         item.ID,
			InvoiceID:  invoiceID,
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			TotalPrice: item.TotalPrice,
		}
	}
	return rows
}

// PaymentModel maps the payments table. InvoiceID is nil for unlinked payments.
type PaymentModel struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"`
	InvoiceID       *uuid.UUID      `gorm:"type:uuid;index"`
	ClientID        *uuid.UUID      `gorm:"type:uuid;index"`
	SupplierID      *uuid.UUID      `gorm:"type:uuid;index"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	PaymentDate     time.Time       `gorm:"not null;index"`
	Method          string          `gorm:"column:payment_method;type:varchar(50)"`
	ReferenceNumber string          `gorm:"type:varchar(100)"`
	Notes           string          `gorm:"type:text"`
	CreatedAt       time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string { return TablePayments }

// ToDomain converts the row into a domain Payment.
func (m *PaymentModel) ToDomain() *ledger.Payment {
	return &ledger.Payment{
		ID:              m.ID,
		InvoiceID:       m.InvoiceID,
		ClientID:        m.ClientID,
		SupplierID:      m.SupplierID,
		Amount:          m.Amount,
		PaymentDate:     m.PaymentDate,
		Method:          m.Method,
		ReferenceNumber: m.ReferenceNumber,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
	}
}

// PaymentModelFromDomain builds a row from a domain Payment.
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	return &PaymentModel{
		ID:              p.ID,
		InvoiceID:       p.InvoiceID,
		ClientID:        p.ClientID,
		SupplierID:      p.SupplierID,
		Amount:          p.Amount,
		PaymentDate:     p.PaymentDate,
		Method:          p.Method,
		ReferenceNumber: p.ReferenceNumber,
		Notes:           p.Notes,
		CreatedAt:       p.CreatedAt,
	}
}

// FinancialEntryModel maps the financial_entries table.
type FinancialEntryModel struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	EntryType   ledger.EntryType `gorm:"type:varchar(20);not null;index"`
	Amount      decimal.Decimal  `gorm:"type:decimal(18,2);not null"`
	Date        time.Time        `gorm:"type:date;not null"`
	Description string           `gorm:"type:text"`
	Category    string           `gorm:"type:varchar(50)"`
	CreatedAt   time.Time        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FinancialEntryModel) TableName() string { return TableFinancialEntries }

// FinancialEntryModelFromDomain builds a row from a domain FinancialEntry.
func FinancialEntryModelFromDomain(e *ledger.FinancialEntry) *FinancialEntryModel {
	return &FinancialEntryModel{
		ID:          e.ID,
		EntryType:   e.EntryType,
		Amount:      e.Amount,
		Date:        e.Date,
		Description: e.Description,
		Category:    e.Category,
		CreatedAt:   e.CreatedAt,
	}
}

// AuditEntryModel maps the audit_entries table. Rows are append-only.
type AuditEntryModel struct {
	ID        uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Action    ledger.AuditAction `gorm:"type:varchar(40);not null;index"`
	EntityID  uuid.UUID          `gorm:"type:uuid;not null;index"`
	Details   map[string]any     `gorm:"type:jsonb;serializer:json"`
	RequestID string             `gorm:"type:varchar(128)"`
	CreatedAt time.Time          `gorm:"not null;index"`
}

// TableName returns the table name for GORM
func (AuditEntryModel) TableName() string { return TableAuditEntries }

// ToDomain converts the row into a domain AuditEntry.
func (m *AuditEntryModel) ToDomain() *ledger.AuditEntry {
	details := m.Details
	if details == nil {
		details = make(map[string]any)
	}
	return &ledger.AuditEntry{
		ID:        m.ID,
		Action:    m.Action,
		EntityID:  m.EntityID,
		Details:   details,
		RequestID: m.RequestID,
		CreatedAt: m.CreatedAt,
	}
}

// AuditEntryModelFromDomain builds a row from a domain AuditEntry.
func AuditEntryModelFromDomain(e *ledger.AuditEntry) *AuditEntryModel {
	return &AuditEntryModel{
		ID:        e.ID,
		Action:    e.Action,
		EntityID:  e.EntityID,
		Details:   e.Details,
		RequestID: e.RequestID,
		CreatedAt: e.CreatedAt,
	}
}

// AllModels lists every ledger model in dependency order, for AutoMigrate in tests.
func AllModels() []any {
	return []any{
		&ClientModel{},
		&SupplierModel{},
		&ProductModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&PaymentModel{},
		&FinancialEntryModel{},
		&AuditEntryModel{},
	}
}
