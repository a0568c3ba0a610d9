package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SettlementService allocates payments to invoices and keeps invoice status
// consistent with the payments that exist.
type SettlementService struct {
	scope          TransactionScope
	publisher      shared.EventPublisher
	idempotency    shared.IdempotencyStore
	idempotencyTTL time.Duration
	metrics        Metrics
	logger         *zap.Logger
	retry          RetryPolicy
}

// SettlementServiceOption is a functional option for configuring SettlementService
type SettlementServiceOption func(*SettlementService)

// WithSettlementEventPublisher sets the publisher settlement events are sent to after commit
func WithSettlementEventPublisher(publisher shared.EventPublisher) SettlementServiceOption {
	return func(s *SettlementService) {
		s.publisher = publisher
	}
}

// WithIdempotencyStore enables idempotency keys on AllocatePayment
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) SettlementServiceOption {
	return func(s *SettlementService) {
		s.idempotency = store
		if ttl > 0 {
			s.idempotencyTTL = ttl
		}
	}
}

// WithSettlementMetrics sets the metrics recorder
func WithSettlementMetrics(m Metrics) SettlementServiceOption {
	return func(s *SettlementService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSettlementLogger sets the logger
func WithSettlementLogger(logger *zap.Logger) SettlementServiceOption {
	return func(s *SettlementService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSettlementRetryPolicy sets how concurrency conflicts are retried
func WithSettlementRetryPolicy(policy RetryPolicy) SettlementServiceOption {
	return func(s *SettlementService) {
		s.retry = policy
	}
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(scope TransactionScope, opts ...SettlementServiceOption) *SettlementService {
	s := &SettlementService{
		scope:          scope,
		idempotencyTTL: shared.DefaultIdempotencyConfig().TTL,
		metrics:        noopMetrics{},
		logger:         zap.NewNop(),
		retry:          DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===================== Payment allocation =====================

// resolvedTarget is a settlement target after it has been looked up and locked
type resolvedTarget struct {
	counterparty *ledger.Counterparty
	invoice      *ledger.Invoice
}

// AllocatePayment splits amount over the target's open invoices and writes
// one payment row per allocation, all in one transaction.
//
// When the target names an invoice, that invoice is settled first and any
// overflow goes to the counterparty's other open invoices of the same type,
// oldest first. When only a counterparty is named, its open invoices are
// settled smallest remaining first. Anything left over is recorded as a
// single unlinked payment. Every touched invoice has its status recomputed
// before commit.
func (s *SettlementService) AllocatePayment(ctx context.Context, cmd AllocatePaymentCommand) (*SettlementResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "allocate_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, cmd.Amount.String(),
		telemetry.SpanAttrStrict, cmd.Strict,
	)

	amount, err := ledger.ValidatePositiveAmount(cmd.Amount)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if cmd.Target.InvoiceID == nil && cmd.Target.Counterparty == nil {
		telemetry.RecordError(span, ledger.ErrAmbiguousTarget)
		return nil, ledger.ErrAmbiguousTarget
	}

	if cmd.IdempotencyKey != "" && s.idempotency != nil {
		replay, err := s.claimIdempotencyKey(ctx, cmd.IdempotencyKey)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		if replay != nil {
			telemetry.AddEvent(span, "idempotent_replay", "idempotency_key", cmd.IdempotencyKey)
			return replay, nil
		}
	}

	var (
		result *SettlementResult
		events []shared.DomainEvent
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels(telemetry.OperationAllocatePayment, nil), func(c context.Context) {
		err = withRetry(c, s.retry, s.metrics, s.logger, "allocate_payment", func() error {
			return s.scope.Execute(c, func(repos TransactionalRepositories) error {
				r, evts, txErr := s.allocateTx(c, repos, amount, cmd)
				if txErr != nil {
					return txErr
				}
				result, events = r, evts
				return nil
			})
		})
	})
	if err != nil {
		s.releaseIdempotencyKey(ctx, cmd.IdempotencyKey)
		telemetry.RecordError(span, err)
		s.logger.Warn("Payment allocation failed",
			zap.String("amount", amount.String()),
			zap.Error(err),
		)
		return nil, err
	}

	s.completeIdempotencyKey(ctx, cmd.IdempotencyKey, result)
	s.metrics.RecordAllocation(ctx, result.Policy.String(), result.Amount, result.UnlinkedAmount, len(result.Invoices))
	for _, inv := range result.Invoices {
		if inv.Changed {
			s.metrics.RecordStatusTransition(ctx, inv.PreviousStatus.String(), inv.Status.String())
		}
	}
	s.publish(ctx, events...)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrPolicy, result.Policy.String(),
		telemetry.SpanAttrCounterpartyID, result.CounterpartyID.String(),
		"allocation_count", len(result.Allocations),
	)
	telemetry.SetOK(span)
	s.logger.Info("Payment allocated",
		zap.String("policy", result.Policy.String()),
		zap.String("counterparty_id", result.CounterpartyID.String()),
		zap.String("amount", result.Amount.String()),
		zap.String("unlinked", result.UnlinkedAmount.String()),
		zap.Int("allocations", len(result.Allocations)),
	)
	return result, nil
}

func (s *SettlementService) allocateTx(ctx context.Context, repos TransactionalRepositories, amount decimal.Decimal, cmd AllocatePaymentCommand) (*SettlementResult, []shared.DomainEvent, error) {
	target, err := s.resolveTarget(ctx, repos, cmd.Target)
	if err != nil {
		return nil, nil, err
	}
	cpRef := ledger.CounterpartyRef{ID: target.counterparty.ID, Kind: target.counterparty.Kind}

	invoices := make(map[uuid.UUID]*ledger.Invoice)
	var (
		policy ledger.AllocationPolicy
		queue  []ledger.OpenInvoice
	)

	switch {
	case cmd.Strict:
		if target.invoice == nil {
			return nil, nil, ledger.ErrAmbiguousTarget.WithMessage("a direct payment must name an invoice")
		}
		views, err := s.openViews(ctx, repos, []*ledger.Invoice{target.invoice})
		if err != nil {
			return nil, nil, err
		}
		if amount.GreaterThan(views[0].Remaining) {
			return nil, nil, ledger.ErrOverpayment.WithMessage(
				"payment %s exceeds remaining %s on invoice %s", amount, views[0].Remaining, target.invoice.Number)
		}
		invoices[target.invoice.ID] = target.invoice
		policy = ledger.PolicyDirect
		queue = views

	case target.invoice != nil:
		open, err := repos.Invoices().FindOpenForUpdate(ctx, cpRef, target.invoice.Type)
		if err != nil {
			return nil, nil, err
		}
		candidates := []*ledger.Invoice{target.invoice}
		invoices[target.invoice.ID] = target.invoice
		for i := range open {
			if open[i].ID == target.invoice.ID {
				continue
			}
			candidates = append(candidates, &open[i])
			invoices[open[i].ID] = &open[i]
		}
		views, err := s.openViews(ctx, repos, candidates)
		if err != nil {
			return nil, nil, err
		}
		policy = ledger.PolicyTargetedOverflow
		queue = ledger.TargetFirstThenOldest(views[0], views[1:])

	default:
		open, err := repos.Invoices().FindOpenForUpdate(ctx, cpRef, cpRef.Kind.ChargeType())
		if err != nil {
			return nil, nil, err
		}
		candidates := make([]*ledger.Invoice, len(open))
		for i := range open {
			candidates[i] = &open[i]
			invoices[open[i].ID] = &open[i]
		}
		views, err := s.openViews(ctx, repos, candidates)
		if err != nil {
			return nil, nil, err
		}
		policy = ledger.PolicySmallestRemainingFirst
		queue = ledger.SmallestRemainingFirst(views)
	}

	allocations, err := ledger.Distribute(amount, queue)
	if err != nil {
		return nil, nil, err
	}

	paymentIDs := make([]uuid.UUID, 0, len(allocations))
	touched := make([]uuid.UUID, 0, len(allocations))
	for _, alloc := range allocations {
		payment, err := ledger.NewPayment(alloc.Amount, alloc.InvoiceID, cpRef, cmd.Details)
		if err != nil {
			return nil, nil, err
		}
		if err := repos.Payments().Create(ctx, payment); err != nil {
			return nil, nil, fmt.Errorf("record payment: %w", err)
		}
		paymentIDs = append(paymentIDs, payment.ID)
		if alloc.InvoiceID != nil {
			touched = append(touched, *alloc.InvoiceID)
		}
	}

	events := make([]shared.DomainEvent, 0, len(touched)+1)
	statuses := make([]InvoiceStatusResult, 0, len(touched))
	for _, id := range touched {
		inv := invoices[id]
		status, err := refreshInvoiceStatus(ctx, repos, inv)
		if err != nil {
			return nil, nil, err
		}
		statuses = append(statuses, status)
		if status.Changed {
			events = append(events, ledger.NewInvoiceStatusChangedEvent(inv, status.PreviousStatus, status.RemainingAmount))
		}
	}

	events = append([]shared.DomainEvent{
		ledger.NewPaymentAllocatedEvent(cpRef, target.counterparty.Name, amount, policy, allocations, paymentIDs),
	}, events...)

	result := &SettlementResult{
		Policy:           policy,
		CounterpartyID:   cpRef.ID,
		CounterpartyKind: cpRef.Kind,
		CounterpartyName: target.counterparty.Name,
		Amount:           ledger.TotalAllocated(allocations),
		Allocations:      allocations,
		UnlinkedAmount:   ledger.UnlinkedAmount(allocations),
		PaymentIDs:       paymentIDs,
		Invoices:         statuses,
	}
	ids := make([]string, len(paymentIDs))
	for i, id := range paymentIDs {
		ids[i] = id.String()
	}
	err = recordAudit(ctx, repos, ledger.AuditPaymentAdd, cpRef.ID, map[string]any{
		"kind":        cpRef.Kind.String(),
		"amount":      result.Amount.StringFixed(ledger.MoneyScale),
		"unlinked":    result.UnlinkedAmount.StringFixed(ledger.MoneyScale),
		"policy":      policy.String(),
		"payment_ids": ids,
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// resolveTarget looks the target up and takes the locks a settlement needs:
// the counterparty row first, then the target invoice. Settlements for one
// counterparty therefore run one at a time.
func (s *SettlementService) resolveTarget(ctx context.Context, repos TransactionalRepositories, target SettlementTarget) (*resolvedTarget, error) {
	if target.InvoiceID == nil {
		cp, err := repos.Counterparties().FindByIDForUpdate(ctx, *target.Counterparty)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) || errors.Is(err, ledger.ErrCounterpartyNotFound) {
				return nil, ledger.ErrAmbiguousTarget.WithMessage(
					"%s %s not found", target.Counterparty.Kind, target.Counterparty.ID)
			}
			return nil, err
		}
		return &resolvedTarget{counterparty: cp}, nil
	}

	peek, err := repos.Invoices().FindByID(ctx, *target.InvoiceID)
	if err != nil {
		return nil, err
	}
	ref := peek.Counterparty()
	if target.Counterparty != nil && *target.Counterparty != ref {
		return nil, ledger.ErrAmbiguousTarget.WithMessage(
			"invoice %s does not belong to %s %s", peek.Number, target.Counterparty.Kind, target.Counterparty.ID)
	}

	cp, err := repos.Counterparties().FindByIDForUpdate(ctx, ref)
	if err != nil {
		return nil, err
	}
	inv, err := repos.Invoices().FindByIDForUpdate(ctx, *target.InvoiceID)
	if err != nil {
		return nil, err
	}
	return &resolvedTarget{counterparty: cp, invoice: inv}, nil
}

// openViews computes the remaining amount of each invoice, preserving order.
func (s *SettlementService) openViews(ctx context.Context, repos TransactionalRepositories, invoices []*ledger.Invoice) ([]ledger.OpenInvoice, error) {
	if len(invoices) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	paid, err := repos.Payments().SumByInvoices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("sum payments of open invoices: %w", err)
	}
	views := make([]ledger.OpenInvoice, len(invoices))
	for i, inv := range invoices {
		views[i] = ledger.OpenInvoice{
			ID:        inv.ID,
			Number:    inv.Number,
			Date:      inv.Date,
			CreatedAt: inv.CreatedAt,
			Remaining: inv.Remaining(paid[inv.ID]),
		}
	}
	return views, nil
}

// ===================== Payment deletion and status repair =====================

// DeletePayment removes a payment and recomputes the status of the invoice
// it was linked to, in the same transaction.
func (s *SettlementService) DeletePayment(ctx context.Context, paymentID uuid.UUID) (*PaymentDeletionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "settlement", "delete_payment")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, paymentID.String())

	var (
		result *PaymentDeletionResult
		events []shared.DomainEvent
	)
	err := withRetry(ctx, s.retry, s.metrics, s.logger, "delete_payment", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			payment, err := repos.Payments().FindByID(ctx, paymentID)
			if err != nil {
				return err
			}
			var inv *ledger.Invoice
			if payment.InvoiceID != nil {
				inv, err = repos.Invoices().FindByIDForUpdate(ctx, *payment.InvoiceID)
				if err != nil {
					return err
				}
			}
			if err := repos.Payments().Delete(ctx, paymentID); err != nil {
				return err
			}
			details := map[string]any{
				"amount":          payment.Amount.StringFixed(ledger.MoneyScale),
				"counterparty_id": payment.Counterparty().ID.String(),
			}
			if inv != nil {
				details["invoice_number"] = inv.Number
			}
			if err := recordAudit(ctx, repos, ledger.AuditPaymentDelete, payment.ID, details); err != nil {
				return err
			}

			result = &PaymentDeletionResult{PaymentID: payment.ID, Amount: payment.Amount}
			events = []shared.DomainEvent{ledger.NewPaymentDeletedEvent(payment)}
			if inv != nil {
				status, err := refreshInvoiceStatus(ctx, repos, inv)
				if err != nil {
					return err
				}
				result.Invoice = &status
				if status.Changed {
					events = append(events, ledger.NewInvoiceStatusChangedEvent(inv, status.PreviousStatus, status.RemainingAmount))
				}
			}
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if result.Invoice != nil && result.Invoice.Changed {
		s.metrics.RecordStatusTransition(ctx, result.Invoice.PreviousStatus.String(), result.Invoice.Status.String())
	}
	s.publish(ctx, events...)
	telemetry.SetOK(span)
	return result, nil
}

// RefreshInvoiceStatus recomputes one invoice's status from its payments.
// Calling it again without intervening writes is a no-op.
func (s *SettlementService) RefreshInvoiceStatus(ctx context.Context, invoiceID uuid.UUID) (*InvoiceStatusResult, error) {
	var (
		result InvoiceStatusResult
		inv    *ledger.Invoice
	)
	err := withRetry(ctx, s.retry, s.metrics, s.logger, "refresh_status", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			inv, err = repos.Invoices().FindByIDForUpdate(ctx, invoiceID)
			if err != nil {
				return err
			}
			result, err = refreshInvoiceStatus(ctx, repos, inv)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Changed {
		s.metrics.RecordStatusTransition(ctx, result.PreviousStatus.String(), result.Status.String())
		s.publish(ctx, ledger.NewInvoiceStatusChangedEvent(inv, result.PreviousStatus, result.RemainingAmount))
	}
	return &result, nil
}

// RefreshAllInvoiceStatuses recomputes every invoice, one transaction each.
// It is meant for repair and backfill.
func (s *SettlementService) RefreshAllInvoiceStatuses(ctx context.Context) (*StatusBackfillResult, error) {
	ids, err := s.scope.Repositories().Invoices().FindAllIDs(ctx)
	if err != nil {
		return nil, err
	}
	backfill := &StatusBackfillResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return backfill, err
		}
		result, err := s.RefreshInvoiceStatus(ctx, id)
		if err != nil {
			if errors.Is(err, ledger.ErrInvoiceNotFound) {
				continue
			}
			return backfill, err
		}
		backfill.Checked++
		if result.Changed {
			backfill.Changed++
		}
	}
	s.logger.Info("Invoice statuses refreshed",
		zap.Int("checked", backfill.Checked),
		zap.Int("changed", backfill.Changed),
	)
	return backfill, nil
}

// ===================== Balance queries =====================

// ComputeInvoiceRemaining returns max(0, total - paid) for an invoice
func (s *SettlementService) ComputeInvoiceRemaining(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	_, _, remaining, err := invoiceRemaining(ctx, s.scope.Repositories(), invoiceID)
	return remaining, err
}

// ComputeClientBalance returns sales - returns - payments for a client
func (s *SettlementService) ComputeClientBalance(ctx context.Context, clientID uuid.UUID) (decimal.Decimal, error) {
	return s.computeBalance(ctx, ledger.CounterpartyRef{ID: clientID, Kind: ledger.CounterpartyClient})
}

// ComputeSupplierBalance returns purchases - supplier returns - payments for a supplier
func (s *SettlementService) ComputeSupplierBalance(ctx context.Context, supplierID uuid.UUID) (decimal.Decimal, error) {
	return s.computeBalance(ctx, ledger.CounterpartyRef{ID: supplierID, Kind: ledger.CounterpartySupplier})
}

func (s *SettlementService) computeBalance(ctx context.Context, ref ledger.CounterpartyRef) (decimal.Decimal, error) {
	repos := s.scope.Repositories()
	if _, err := repos.Counterparties().FindByID(ctx, ref); err != nil {
		return decimal.Zero, err
	}
	return counterpartyBalance(ctx, repos, ref)
}

// ===================== Helpers =====================

func (s *SettlementService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish settlement events", zap.Error(err))
	}
}

// claimIdempotencyKey reserves key. It returns the stored result when the
// key was already completed, and ErrDuplicateRequest while it is in flight.
func (s *SettlementService) claimIdempotencyKey(ctx context.Context, key string) (*SettlementResult, error) {
	reserved, err := s.idempotency.Reserve(ctx, idempotencyKey(key), s.idempotencyTTL)
	if err != nil {
		s.logger.Warn("Idempotency store unavailable, processing without replay protection",
			zap.String("idempotency_key", key),
			zap.Error(err),
		)
		return nil, nil
	}
	if reserved {
		return nil, nil
	}

	raw, ok, err := s.idempotency.Result(ctx, idempotencyKey(key))
	if err != nil {
		return nil, fmt.Errorf("read idempotent result: %w", err)
	}
	if !ok {
		return nil, shared.ErrDuplicateRequest
	}
	var replay SettlementResult
	if err := json.Unmarshal(raw, &replay); err != nil {
		return nil, fmt.Errorf("decode idempotent result: %w", err)
	}
	replay.Replayed = true
	return &replay, nil
}

func (s *SettlementService) completeIdempotencyKey(ctx context.Context, key string, result *SettlementResult) {
	if key == "" || s.idempotency == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err == nil {
		err = s.idempotency.Complete(ctx, idempotencyKey(key), raw, s.idempotencyTTL)
	}
	if err != nil {
		s.logger.Warn("Failed to store idempotent result", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (s *SettlementService) releaseIdempotencyKey(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, idempotencyKey(key)); err != nil {
		s.logger.Warn("Failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func idempotencyKey(key string) string {
	return "settlement:" + key
}
