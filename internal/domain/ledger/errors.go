package ledger

import (
	"github.com/erp/ledger/internal/domain/shared"
)

// Ledger error kinds. Codes are stable and surface in API responses.
var (
	ErrInvalidAmount        = shared.NewDomainError("INVALID_AMOUNT", "Amount must be greater than zero")
	ErrInvoiceNotFound      = shared.NewDomainError("INVOICE_NOT_FOUND", "Invoice not found")
	ErrAmbiguousTarget      = shared.NewDomainError("AMBIGUOUS_TARGET", "Payment target must name exactly one invoice or one counterparty")
	ErrCounterpartyNotFound = shared.NewDomainError("COUNTERPARTY_NOT_FOUND", "Client or supplier not found")
	ErrProductNotFound      = shared.NewDomainError("PRODUCT_NOT_FOUND", "Product not found")
	ErrPaymentNotFound      = shared.NewDomainError("PAYMENT_NOT_FOUND", "Payment not found")
	ErrProductInUse         = shared.NewDomainError("PRODUCT_IN_USE", "Product is referenced by invoice items")
	ErrOverpayment          = shared.NewDomainError("OVERPAYMENT", "Payment exceeds the invoice remaining amount")
	ErrInvalidInvoice       = shared.NewDomainError("INVALID_INVOICE", "Invoice is invalid")
	ErrInsufficientStock    = shared.ErrInsufficientStock
	ErrConcurrencyConflict  = shared.ErrConcurrencyConflict
	ErrStoreUnavailable     = shared.ErrStoreUnavailable
)

// NewInvalidInputError returns an INVALID_INPUT error with a specific message.
func NewInvalidInputError(message string) *shared.DomainError {
	return shared.ErrInvalidInput.WithMessage("%s", message)
}

// NewInvalidInvoiceError returns an INVALID_INVOICE error with a specific message.
func NewInvalidInvoiceError(message string) *shared.DomainError {
	return ErrInvalidInvoice.WithMessage("%s", message)
}
