package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CounterpartyKind distinguishes clients from suppliers
type CounterpartyKind string

const (
	CounterpartyClient   CounterpartyKind = "client"
	CounterpartySupplier CounterpartyKind = "supplier"
)

// IsValid checks if the kind is a known counterparty kind
func (k CounterpartyKind) IsValid() bool {
	return k == CounterpartyClient || k == CounterpartySupplier
}

// String returns the string representation of CounterpartyKind
func (k CounterpartyKind) String() string {
	return string(k)
}

// ChargeType is the invoice type that increases what the counterparty owes
// (or is owed): sale for clients, purchase for suppliers. General payments
// are settled against invoices of this type.
func (k CounterpartyKind) ChargeType() InvoiceType {
	if k == CounterpartySupplier {
		return InvoiceTypePurchase
	}
	return InvoiceTypeSale
}

// CreditType is the invoice type that reduces the balance.
func (k CounterpartyKind) CreditType() InvoiceType {
	if k == CounterpartySupplier {
		return InvoiceTypeSupplierReturn
	}
	return InvoiceTypeReturn
}

// Counterparty is a client or a supplier
type Counterparty struct {
	ID        uuid.UUID
	Kind      CounterpartyKind
	Name      string
	Phone     string
	Email     string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCounterparty creates a new client or supplier
func NewCounterparty(kind CounterpartyKind, name, phone, email, address string) (*Counterparty, error) {
	if !kind.IsValid() {
		return nil, NewInvalidInputError("counterparty kind must be client or supplier")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewInvalidInputError("name is required")
	}
	now := time.Now()
	return &Counterparty{
		ID:        uuid.New(),
		Kind:      kind,
		Name:      name,
		Phone:     strings.TrimSpace(phone),
		Email:     strings.TrimSpace(email),
		Address:   strings.TrimSpace(address),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Update replaces the contact details. The name stays required.
func (c *Counterparty) Update(name, phone, email, address string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewInvalidInputError("name is required")
	}
	c.Name = name
	c.Phone = strings.TrimSpace(phone)
	c.Email = strings.TrimSpace(email)
	c.Address = strings.TrimSpace(address)
	c.UpdatedAt = time.Now()
	return nil
}

// Ref returns the reference that identifies c
func (c *Counterparty) Ref() CounterpartyRef {
	return CounterpartyRef{ID: c.ID, Kind: c.Kind}
}

// CounterpartyRef identifies a counterparty without loading it
type CounterpartyRef struct {
	ID   uuid.UUID
	Kind CounterpartyKind
}

// IsZero reports whether the reference is unset
func (r CounterpartyRef) IsZero() bool {
	return r.ID == uuid.Nil
}
