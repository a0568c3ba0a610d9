package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event type names
const (
	EventTypePaymentAllocated     = "PaymentAllocated"
	EventTypePaymentDeleted       = "PaymentDeleted"
	EventTypeInvoiceStatusChanged = "InvoiceStatusChanged"
	EventTypeInvoiceDeleted       = "InvoiceDeleted"
)

// PaymentAllocatedEvent is raised after a settlement commits
type PaymentAllocatedEvent struct {
	shared.BaseDomainEvent
	Counterparty     CounterpartyRef  `json:"counterparty"`
	CounterpartyName string           `json:"counterparty_name"`
	Amount           decimal.Decimal  `json:"amount"`
	Policy           AllocationPolicy `json:"policy"`
	Allocations      []Allocation     `json:"allocations"`
	UnlinkedAmount   decimal.Decimal  `json:"unlinked_amount"`
	PaymentIDs       []uuid.UUID      `json:"payment_ids"`
}

// EventType returns the event type name
func (e *PaymentAllocatedEvent) EventType() string {
	return EventTypePaymentAllocated
}

// NewPaymentAllocatedEvent creates a new PaymentAllocatedEvent
func NewPaymentAllocatedEvent(counterparty CounterpartyRef, name string, amount decimal.Decimal, policy AllocationPolicy, allocations []Allocation, paymentIDs []uuid.UUID) *PaymentAllocatedEvent {
	return &PaymentAllocatedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypePaymentAllocated, "Payment", counterparty.ID),
		Counterparty:     counterparty,
		CounterpartyName: name,
		Amount:           amount,
		Policy:           policy,
		Allocations:      allocations,
		UnlinkedAmount:   UnlinkedAmount(allocations),
		PaymentIDs:       paymentIDs,
	}
}

// PaymentDeletedEvent is raised after a payment row is removed
type PaymentDeletedEvent struct {
	shared.BaseDomainEvent
	PaymentID uuid.UUID       `json:"payment_id"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
}

// EventType returns the event type name
func (e *PaymentDeletedEvent) EventType() string {
	return EventTypePaymentDeleted
}

// NewPaymentDeletedEvent creates a new PaymentDeletedEvent
func NewPaymentDeletedEvent(p *Payment) *PaymentDeletedEvent {
	return &PaymentDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeleted, "Payment", p.ID),
		PaymentID:       p.ID,
		InvoiceID:       p.InvoiceID,
		Amount:          p.Amount,
	}
}

// InvoiceStatusChangedEvent is raised when a recompute moves an invoice to a
// different status
type InvoiceStatusChangedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	From          InvoiceStatus   `json:"from"`
	To            InvoiceStatus   `json:"to"`
	Remaining     decimal.Decimal `json:"remaining"`
}

// EventType returns the event type name
func (e *InvoiceStatusChangedEvent) EventType() string {
	return EventTypeInvoiceStatusChanged
}

// NewInvoiceStatusChangedEvent creates a new InvoiceStatusChangedEvent
func NewInvoiceStatusChangedEvent(inv *Invoice, from InvoiceStatus, remaining decimal.Decimal) *InvoiceStatusChangedEvent {
	return &InvoiceStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceStatusChanged, "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
		From:            from,
		To:              inv.Status,
		Remaining:       remaining,
	}
}

// InvoiceDeletedEvent is raised after an invoice and its dependents are removed
type InvoiceDeletedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	Type          InvoiceType     `json:"type"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *InvoiceDeletedEvent) EventType() string {
	return EventTypeInvoiceDeleted
}

// NewInvoiceDeletedEvent creates a new InvoiceDeletedEvent
func NewInvoiceDeletedEvent(inv *Invoice) *InvoiceDeletedEvent {
	return &InvoiceDeletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceDeleted, "Invoice", inv.ID),
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
		Type:            inv.Type,
		TotalAmount:     inv.TotalAmount,
	}
}
