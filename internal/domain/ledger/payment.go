package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is a recorded money movement. A payment linked to an invoice
// settles that invoice; an unlinked payment is a general payment attributed
// to a counterparty only. Payments are immutable once written.
type Payment struct {
	ID              uuid.UUID
	InvoiceID       *uuid.UUID
	ClientID        *uuid.UUID
	SupplierID      *uuid.UUID
	Amount          decimal.Decimal
	PaymentDate     time.Time
	Method          string
	ReferenceNumber string
	Notes           string
	CreatedAt       time.Time
}

// PaymentDetails carries the descriptive fields shared by every payment row
// produced from one settlement request
type PaymentDetails struct {
	PaymentDate     time.Time
	Method          string
	ReferenceNumber string
	Notes           string
}

// NewPayment creates a payment attributed to counterparty and, when invoiceID
// is non-nil, linked to that invoice.
func NewPayment(amount decimal.Decimal, invoiceID *uuid.UUID, counterparty CounterpartyRef, details PaymentDetails) (*Payment, error) {
	rounded, err := ValidatePositiveAmount(amount)
	if err != nil {
		return nil, err
	}
	paymentDate := details.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = time.Now()
	}
	p := &Payment{
		ID:              uuid.New(),
		InvoiceID:       invoiceID,
		Amount:          rounded,
		PaymentDate:     paymentDate,
		Method:          strings.TrimSpace(details.Method),
		ReferenceNumber: strings.TrimSpace(details.ReferenceNumber),
		Notes:           details.Notes,
		CreatedAt:       time.Now(),
	}
	if !counterparty.IsZero() {
		id := counterparty.ID
		switch counterparty.Kind {
		case CounterpartySupplier:
			p.SupplierID = &id
		case CounterpartyClient:
			p.ClientID = &id
		}
	}
	return p, nil
}

// IsLinked reports whether the payment settles a specific invoice
func (p *Payment) IsLinked() bool {
	return p.InvoiceID != nil
}

// Counterparty returns the attribution of the payment, if any
func (p *Payment) Counterparty() CounterpartyRef {
	if p.SupplierID != nil {
		return CounterpartyRef{ID: *p.SupplierID, Kind: CounterpartySupplier}
	}
	if p.ClientID != nil {
		return CounterpartyRef{ID: *p.ClientID, Kind: CounterpartyClient}
	}
	return CounterpartyRef{}
}
