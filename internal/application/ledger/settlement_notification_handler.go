package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"go.uber.org/zap"
)

// SettlementNotificationHandler turns settlement events into short
// human-readable messages for operators. Delivery failures are logged and
// never reach the settlement that raised the event.
type SettlementNotificationHandler struct {
	logger   *zap.Logger
	notifier Notifier
}

// NewSettlementNotificationHandler creates a new handler for settlement events
func NewSettlementNotificationHandler(notifier Notifier, logger *zap.Logger) *SettlementNotificationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettlementNotificationHandler{
		logger:   logger,
		notifier: notifier,
	}
}

// EventTypes returns the event types this handler is interested in
func (h *SettlementNotificationHandler) EventTypes() []string {
	return []string{
		ledger.EventTypePaymentAllocated,
		ledger.EventTypePaymentDeleted,
	}
}

// Handle processes a settlement event
func (h *SettlementNotificationHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	var text string
	switch e := event.(type) {
	case *ledger.PaymentAllocatedEvent:
		text = FormatAllocationMessage(e)
	case *ledger.PaymentDeletedEvent:
		text = fmt.Sprintf("Payment %s of %s was deleted", e.PaymentID, e.Amount.StringFixed(2))
	default:
		h.logger.Error("unexpected event type", zap.String("actual", event.EventType()))
		return fmt.Errorf("unexpected event type: %s", event.EventType())
	}

	if h.notifier == nil {
		return nil
	}
	if err := h.notifier.Notify(ctx, text); err != nil {
		h.logger.Warn("Failed to deliver settlement notification",
			zap.String("event_type", event.EventType()),
			zap.String("event_id", event.EventID().String()),
			zap.Error(err),
		)
	}
	return nil
}

// FormatAllocationMessage renders a one-paragraph summary of an allocation
func FormatAllocationMessage(e *ledger.PaymentAllocatedEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Payment of %s from %s %s", e.Amount.StringFixed(2), e.Counterparty.Kind, e.CounterpartyName)
	for _, a := range e.Allocations {
		if a.IsUnlinked() {
			fmt.Fprintf(&b, "\n- %s unlinked", a.Amount.StringFixed(2))
			continue
		}
		fmt.Fprintf(&b, "\n- %s to %s (remaining %s)", a.Amount.StringFixed(2), a.InvoiceNumber, a.RemainingAfter.StringFixed(2))
	}
	return b.String()
}
