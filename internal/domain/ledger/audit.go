package ledger

import (
	"maps"
	"time"

	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
)

// AuditAction names a recorded change to the ledger
type AuditAction string

const (
	AuditClientCreate   AuditAction = "client_create"
	AuditClientEdit     AuditAction = "client_edit"
	AuditClientDelete   AuditAction = "client_delete"
	AuditSupplierCreate AuditAction = "supplier_create"
	AuditSupplierEdit   AuditAction = "supplier_edit"
	AuditSupplierDelete AuditAction = "supplier_delete"
	AuditProductCreate  AuditAction = "product_create"
	AuditProductEdit    AuditAction = "product_edit"
	AuditProductAdjust  AuditAction = "product_adjust"
	AuditProductDelete  AuditAction = "product_delete"
	AuditInvoiceCreate  AuditAction = "invoice_create"
	AuditInvoiceEdit    AuditAction = "invoice_edit"
	AuditInvoiceDelete  AuditAction = "invoice_delete"
	AuditPaymentAdd     AuditAction = "payment_add"
	AuditPaymentDelete  AuditAction = "payment_delete"
)

var auditActions = map[AuditAction]struct{}{
	AuditClientCreate: {}, AuditClientEdit: {}, AuditClientDelete: {},
	AuditSupplierCreate: {}, AuditSupplierEdit: {}, AuditSupplierDelete: {},
	AuditProductCreate: {}, AuditProductEdit: {}, AuditProductAdjust: {}, AuditProductDelete: {},
	AuditInvoiceCreate: {}, AuditInvoiceEdit: {}, AuditInvoiceDelete: {},
	AuditPaymentAdd: {}, AuditPaymentDelete: {},
}

// IsValid checks if the action is a known audit action
func (a AuditAction) IsValid() bool {
	_, ok := auditActions[a]
	return ok
}

// String returns the string representation of AuditAction
func (a AuditAction) String() string {
	return string(a)
}

// CounterpartyAuditAction returns the client or supplier variant of a
// create, edit or delete action.
func CounterpartyAuditAction(kind CounterpartyKind, clientAction AuditAction) AuditAction {
	if kind != CounterpartySupplier {
		return clientAction
	}
	switch clientAction {
	case AuditClientCreate:
		return AuditSupplierCreate
	case AuditClientEdit:
		return AuditSupplierEdit
	case AuditClientDelete:
		return AuditSupplierDelete
	}
	return clientAction
}

// AuditEntry records one change: what happened, to which row, and the
// request that caused it. Entries are append-only.
type AuditEntry struct {
	ID        uuid.UUID
	Action    AuditAction
	EntityID  uuid.UUID
	Details   map[string]any
	RequestID string
	CreatedAt time.Time
}

// NewAuditEntry creates an audit entry for the entity
func NewAuditEntry(action AuditAction, entityID uuid.UUID, details map[string]any, requestID string) (*AuditEntry, error) {
	if !action.IsValid() {
		return nil, NewInvalidInputError("unknown audit action " + action.String())
	}
	if entityID == uuid.Nil {
		return nil, NewInvalidInputError("audit entry must name an entity")
	}
	copied := make(map[string]any, len(details))
	maps.Copy(copied, details)
	return &AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		EntityID:  entityID,
		Details:   copied,
		RequestID: requestID,
		CreatedAt: time.Now(),
	}, nil
}

// AuditFilter narrows audit queries. Results are newest first.
type AuditFilter struct {
	shared.Filter
	Action   *AuditAction
	EntityID *uuid.UUID
}
