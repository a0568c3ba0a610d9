package ledger

import (
	"context"
	"fmt"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// recordAudit appends an audit entry through repos, so the entry commits or
// rolls back with the change it describes.
func recordAudit(ctx context.Context, repos TransactionalRepositories, action ledger.AuditAction, entityID uuid.UUID, details map[string]any) error {
	entry, err := ledger.NewAuditEntry(action, entityID, details, logger.GetRequestID(ctx))
	if err != nil {
		return err
	}
	if err := repos.AuditLog().Record(ctx, entry); err != nil {
		return fmt.Errorf("record audit entry: %w", err)
	}
	return nil
}

func counterpartyAuditDetails(cp *ledger.Counterparty) map[string]any {
	return map[string]any{
		"kind":  cp.Kind.String(),
		"name":  cp.Name,
		"phone": cp.Phone,
		"email": cp.Email,
	}
}

func productAuditDetails(p *ledger.Product) map[string]any {
	return map[string]any{
		"name":           p.Name,
		"color":          p.Color,
		"type":           p.Type,
		"quantity":       p.Quantity,
		"finishing_cost": p.FinishingCost.StringFixed(ledger.MoneyScale),
		"printing_cost":  p.PrintingCost.StringFixed(ledger.MoneyScale),
	}
}

func invoiceAuditDetails(inv *ledger.Invoice) map[string]any {
	return map[string]any{
		"number":          inv.Number,
		"type":            inv.Type.String(),
		"counterparty_id": inv.Counterparty().ID.String(),
		"total_amount":    inv.TotalAmount.StringFixed(ledger.MoneyScale),
	}
}
