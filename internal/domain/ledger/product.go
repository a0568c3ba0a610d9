package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductTypePrinted is the only product type that carries a printing cost
const ProductTypePrinted = "Printed"

// Product is a stock item whose quantity moves with invoice items
type Product struct {
	ID            uuid.UUID
	Name          string
	Color         string
	Material      string
	Type          string
	Quantity      int
	FinishingCost decimal.Decimal
	PrintingCost  decimal.Decimal
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewProduct creates a product with an opening quantity. The printing cost
// is dropped unless the type is Printed.
func NewProduct(name, color, material, productType string, quantity int, finishingCost, printingCost decimal.Decimal) (*Product, error) {
	now := time.Now()
	p := &Product{ID: uuid.New(), CreatedAt: now}
	if err := p.Update(name, color, material, productType, quantity, finishingCost, printingCost); err != nil {
		return nil, err
	}
	p.UpdatedAt = now
	return p, nil
}

// Update replaces the product's descriptive fields, quantity and costs.
// Nothing is changed when validation fails.
func (p *Product) Update(name, color, material, productType string, quantity int, finishingCost, printingCost decimal.Decimal) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return NewInvalidInputError("product name is required")
	}
	if quantity < 0 {
		return NewInvalidInputError("quantity cannot be negative")
	}
	if finishingCost.IsNegative() || printingCost.IsNegative() {
		return NewInvalidInputError("costs cannot be negative")
	}
	productType = strings.TrimSpace(productType)
	if productType != ProductTypePrinted {
		printingCost = decimal.Zero
	}

	p.Name = name
	p.Color = strings.TrimSpace(color)
	p.Material = strings.TrimSpace(material)
	p.Type = productType
	p.Quantity = quantity
	p.FinishingCost = RoundMoney(finishingCost)
	p.PrintingCost = RoundMoney(printingCost)
	p.UpdatedAt = time.Now()
	return nil
}

// AdjustQuantity applies a signed stock movement. The quantity never goes
// below zero.
func (p *Product) AdjustQuantity(delta int) error {
	next := p.Quantity + delta
	if next < 0 {
		return ErrInsufficientStock.WithMessage(
			"insufficient stock for %s: have %d, need %d", p.Name, p.Quantity, -delta)
	}
	p.Quantity = next
	p.UpdatedAt = time.Now()
	return nil
}

// IsLowStock reports whether the quantity is under threshold
func (p *Product) IsLowStock(threshold int) bool {
	return p.Quantity < threshold
}
