package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceService handles invoice lifecycle and the stock movements invoices cause
type InvoiceService struct {
	scope     TransactionScope
	publisher shared.EventPublisher
	metrics   Metrics
	logger    *zap.Logger
	retry     RetryPolicy
}

// InvoiceServiceOption is a functional option for configuring InvoiceService
type InvoiceServiceOption func(*InvoiceService)

// WithInvoiceEventPublisher sets the publisher invoice events are sent to after commit
func WithInvoiceEventPublisher(publisher shared.EventPublisher) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.publisher = publisher
	}
}

// WithInvoiceMetrics sets the metrics recorder
func WithInvoiceMetrics(m Metrics) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithInvoiceLogger sets the logger
func WithInvoiceLogger(logger *zap.Logger) InvoiceServiceOption {
	return func(s *InvoiceService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInvoiceRetryPolicy sets how concurrency conflicts are retried
func WithInvoiceRetryPolicy(policy RetryPolicy) InvoiceServiceOption {
	return func(s *InvoiceService) {
		s.retry = policy
	}
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(scope TransactionScope, opts ...InvoiceServiceOption) *InvoiceService {
	s := &InvoiceService{
		scope:   scope,
		metrics: noopMetrics{},
		logger:  zap.NewNop(),
		retry:   DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// UpdateInvoiceCommand edits an existing invoice. Nil fields are left as they are.
type UpdateInvoiceCommand struct {
	Items   []ledger.ItemInput
	DueDate *time.Time
	Notes   *string
}

// CreateInvoice numbers, prices and stores a new invoice and moves stock
// for its items in one transaction.
func (s *InvoiceService) CreateInvoice(ctx context.Context, cmd CreateInvoiceCommand) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceType, cmd.Type.String(),
		telemetry.SpanAttrCounterpartyID, cmd.CounterpartyID.String(),
	)

	if !cmd.Type.IsValid() {
		err := ledger.NewInvalidInvoiceError(fmt.Sprintf("unknown invoice type %q", cmd.Type))
		telemetry.RecordError(span, err)
		return nil, err
	}
	ref := ledger.CounterpartyRef{ID: cmd.CounterpartyID, Kind: cmd.Type.CounterpartyKind()}
	date := cmd.Date
	if date.IsZero() {
		date = time.Now()
	}

	var created *ledger.Invoice
	err := withRetry(ctx, s.retry, s.metrics, s.logger, "create_invoice", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			if _, err := repos.Counterparties().FindByID(ctx, ref); err != nil {
				return err
			}
			last, err := repos.Invoices().LastNumberWithPrefix(ctx, ledger.InvoiceNumberPrefix(date))
			if err != nil {
				return fmt.Errorf("read last invoice number: %w", err)
			}
			inv, err := ledger.NewInvoice(ledger.NextInvoiceNumber(date, last), cmd.Type, ref, date, cmd.DueDate, cmd.Items, cmd.Notes)
			if err != nil {
				return err
			}
			if err := applyStockMovements(ctx, repos, ledger.StockMovements(inv.Type, inv.Items, false)); err != nil {
				return err
			}
			if err := repos.Invoices().Create(ctx, inv); err != nil {
				return err
			}
			created = inv
			return recordAudit(ctx, repos, ledger.AuditInvoiceCreate, inv.ID, invoiceAuditDetails(inv))
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, created.ID.String())
	telemetry.SetOK(span)
	s.logger.Info("Invoice created",
		zap.String("invoice_number", created.Number),
		zap.String("type", created.Type.String()),
		zap.String("total", created.TotalAmount.String()),
	)
	resp := toInvoiceResponse(created, decimal.Zero)
	return &resp, nil
}

// UpdateInvoiceItems replaces an invoice's items. The old items' stock
// movements are reversed, the new ones applied, and the status recomputed
// against the new total.
func (s *InvoiceService) UpdateInvoiceItems(ctx context.Context, invoiceID uuid.UUID, cmd UpdateInvoiceCommand) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_items")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var (
		updated *ledger.Invoice
		paid    decimal.Decimal
		status  InvoiceStatusResult
	)
	err := withRetry(ctx, s.retry, s.metrics, s.logger, "update_invoice", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, err := repos.Invoices().FindByIDForUpdate(ctx, invoiceID)
			if err != nil {
				return err
			}
			if cmd.DueDate != nil {
				if cmd.DueDate.Before(time.Date(inv.Date.Year(), inv.Date.Month(), inv.Date.Day(), 0, 0, 0, 0, inv.Date.Location())) {
					return ledger.NewInvalidInvoiceError("due date cannot be before the invoice date")
				}
				inv.DueDate = cmd.DueDate
			}
			if cmd.Notes != nil {
				inv.Notes = *cmd.Notes
			}
			if cmd.Items != nil {
				old, err := inv.ReplaceItems(cmd.Items)
				if err != nil {
					return err
				}
				moves := ledger.StockMovements(inv.Type, old, true)
				for productID, qty := range ledger.StockMovements(inv.Type, inv.Items, false) {
					moves[productID] += qty
				}
				if err := applyStockMovements(ctx, repos, moves); err != nil {
					return err
				}
			}
			if err := repos.Invoices().ReplaceItems(ctx, inv); err != nil {
				return err
			}
			status, err = refreshInvoiceStatus(ctx, repos, inv)
			if err != nil {
				return err
			}
			paid = status.PaidAmount
			updated = inv
			return recordAudit(ctx, repos, ledger.AuditInvoiceEdit, inv.ID, invoiceAuditDetails(inv))
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if status.Changed {
		s.metrics.RecordStatusTransition(ctx, status.PreviousStatus.String(), status.Status.String())
		s.publish(ctx, ledger.NewInvoiceStatusChangedEvent(updated, status.PreviousStatus, status.RemainingAmount))
	}
	telemetry.SetOK(span)
	resp := toInvoiceResponse(updated, paid)
	return &resp, nil
}

// DeleteInvoice removes an invoice with its items and payments and reverses
// its stock movements.
func (s *InvoiceService) DeleteInvoice(ctx context.Context, invoiceID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "delete")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, invoiceID.String())

	var deleted *ledger.Invoice
	err := withRetry(ctx, s.retry, s.metrics, s.logger, "delete_invoice", func() error {
		return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			inv, err := repos.Invoices().FindByIDForUpdate(ctx, invoiceID)
			if err != nil {
				return err
			}
			if err := applyStockMovements(ctx, repos, ledger.StockMovements(inv.Type, inv.Items, true)); err != nil {
				return err
			}
			if err := repos.Invoices().Delete(ctx, invoiceID); err != nil {
				return err
			}
			deleted = inv
			return recordAudit(ctx, repos, ledger.AuditInvoiceDelete, inv.ID, invoiceAuditDetails(inv))
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.publish(ctx, ledger.NewInvoiceDeletedEvent(deleted))
	telemetry.SetOK(span)
	s.logger.Info("Invoice deleted", zap.String("invoice_number", deleted.Number))
	return nil
}

// GetInvoice returns an invoice with its items, payments and settlement figures
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	repos := s.scope.Repositories()
	inv, paid, _, err := invoiceRemaining(ctx, repos, invoiceID)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments().FindByInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	resp := toInvoiceResponse(inv, paid)
	resp.Payments = make([]PaymentResponse, len(payments))
	for i := range payments {
		resp.Payments[i] = toPaymentResponse(&payments[i])
	}
	return &resp, nil
}

// ListInvoices returns a page of invoices matching the filter
func (s *InvoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) (*shared.Paginated[InvoiceResponse], error) {
	domainFilter, err := toDomainInvoiceFilter(filter)
	if err != nil {
		return nil, err
	}
	repos := s.scope.Repositories()
	invoices, total, err := repos.Invoices().FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	paid, err := repos.Payments().SumByInvoices(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		items[i] = toInvoiceResponse(&invoices[i], paid[invoices[i].ID])
	}
	page := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit())
	return &page, nil
}

// ComputeInvoiceRemaining returns max(0, total - paid) for an invoice
func (s *InvoiceService) ComputeInvoiceRemaining(ctx context.Context, invoiceID uuid.UUID) (*InvoiceStatusResult, error) {
	inv, paid, remaining, err := invoiceRemaining(ctx, s.scope.Repositories(), invoiceID)
	if err != nil {
		return nil, err
	}
	return &InvoiceStatusResult{
		InvoiceID:       inv.ID,
		InvoiceNumber:   inv.Number,
		PreviousStatus:  inv.Status,
		Status:          inv.Status,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      ledger.RoundMoney(paid),
		RemainingAmount: remaining,
	}, nil
}

func (s *InvoiceService) publish(ctx context.Context, events ...shared.DomainEvent) {
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("Failed to publish invoice events", zap.Error(err))
	}
}

// applyStockMovements locks the affected products in ID order and applies
// the signed quantity changes. Any product going negative aborts the
// transaction.
func applyStockMovements(ctx context.Context, repos TransactionalRepositories, moves map[uuid.UUID]int) error {
	ids := make([]uuid.UUID, 0, len(moves))
	for id, qty := range moves {
		if qty != 0 {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	products, err := repos.Products().FindByIDsForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			return ledger.ErrProductNotFound.WithMessage("product %s not found", id)
		}
		if err := product.AdjustQuantity(moves[id]); err != nil {
			return err
		}
		if err := repos.Products().UpdateQuantity(ctx, id, product.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func toDomainInvoiceFilter(f InvoiceListFilter) (ledger.InvoiceFilter, error) {
	filter := ledger.InvoiceFilter{
		Filter:   shared.DefaultFilter(),
		DateFrom: f.DateFrom,
		DateTo:   f.DateTo,
	}
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	filter.OrderBy = "date"
	if f.Type != "" {
		t := ledger.InvoiceType(f.Type)
		if !t.IsValid() {
			return filter, ledger.NewInvalidInputError(fmt.Sprintf("unknown invoice type %q", f.Type))
		}
		filter.Type = &t
	}
	if f.Status != "" {
		st := ledger.InvoiceStatus(f.Status)
		if !st.IsValid() {
			return filter, ledger.NewInvalidInputError(fmt.Sprintf("unknown invoice status %q", f.Status))
		}
		filter.Status = &st
	}
	if f.CounterpartyID != nil {
		kind := ledger.CounterpartyKind(f.Kind)
		if !kind.IsValid() {
			return filter, ledger.NewInvalidInputError("kind must be client or supplier when filtering by counterparty")
		}
		filter.Counterparty = &ledger.CounterpartyRef{ID: *f.CounterpartyID, Kind: kind}
	}
	return filter, nil
}
