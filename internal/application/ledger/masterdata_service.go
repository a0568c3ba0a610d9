package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MasterDataService manages clients, suppliers, products and financial entries
type MasterDataService struct {
	scope  TransactionScope
	logger *zap.Logger
}

// NewMasterDataService creates a new MasterDataService
func NewMasterDataService(scope TransactionScope, logger *zap.Logger) *MasterDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MasterDataService{scope: scope, logger: logger}
}

// CreateCounterpartyCommand is the input of CreateCounterparty
type CreateCounterpartyCommand struct {
	Kind    ledger.CounterpartyKind
	Name    string
	Phone   string
	Email   string
	Address string
}

// CreateCounterparty creates a client or supplier
func (s *MasterDataService) CreateCounterparty(ctx context.Context, cmd CreateCounterpartyCommand) (*CounterpartyResponse, error) {
	cp, err := ledger.NewCounterparty(cmd.Kind, cmd.Name, cmd.Phone, cmd.Email, cmd.Address)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Counterparties().Create(ctx, cp); err != nil {
			return err
		}
		return recordAudit(ctx, repos, ledger.CounterpartyAuditAction(cp.Kind, ledger.AuditClientCreate), cp.ID, counterpartyAuditDetails(cp))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Counterparty created",
		zap.String("kind", cp.Kind.String()),
		zap.String("counterparty_id", cp.ID.String()),
	)
	resp := toCounterpartyResponse(cp)
	return &resp, nil
}

// GetCounterparty returns one client or supplier
func (s *MasterDataService) GetCounterparty(ctx context.Context, ref ledger.CounterpartyRef) (*CounterpartyResponse, error) {
	cp, err := s.scope.Repositories().Counterparties().FindByID(ctx, ref)
	if err != nil {
		return nil, err
	}
	resp := toCounterpartyResponse(cp)
	return &resp, nil
}

// ListCounterparties lists every client or every supplier by name
func (s *MasterDataService) ListCounterparties(ctx context.Context, kind ledger.CounterpartyKind) ([]CounterpartyResponse, error) {
	if !kind.IsValid() {
		return nil, ledger.NewInvalidInputError("counterparty kind must be client or supplier")
	}
	cps, err := s.scope.Repositories().Counterparties().FindAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	result := make([]CounterpartyResponse, len(cps))
	for i := range cps {
		result[i] = toCounterpartyResponse(&cps[i])
	}
	return result, nil
}

// UpdateCounterparty replaces a client's or supplier's contact details
func (s *MasterDataService) UpdateCounterparty(ctx context.Context, ref ledger.CounterpartyRef, cmd UpdateCounterpartyCommand) (*CounterpartyResponse, error) {
	var updated *ledger.Counterparty
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		cp, err := repos.Counterparties().FindByIDForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		if err := cp.Update(cmd.Name, cmd.Phone, cmd.Email, cmd.Address); err != nil {
			return err
		}
		if err := repos.Counterparties().Update(ctx, cp); err != nil {
			return err
		}
		updated = cp
		return recordAudit(ctx, repos, ledger.CounterpartyAuditAction(cp.Kind, ledger.AuditClientEdit), cp.ID, counterpartyAuditDetails(cp))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Counterparty updated",
		zap.String("kind", ref.Kind.String()),
		zap.String("counterparty_id", ref.ID.String()),
	)
	resp := toCounterpartyResponse(updated)
	return &resp, nil
}

// DeleteCounterparty removes a client or supplier together with its
// invoices, their items and payments, and its unlinked payments. Stock is
// left as it is.
func (s *MasterDataService) DeleteCounterparty(ctx context.Context, ref ledger.CounterpartyRef) error {
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		cp, err := repos.Counterparties().FindByIDForUpdate(ctx, ref)
		if err != nil {
			return err
		}
		ids, err := repos.Invoices().FindIDsByCounterparty(ctx, ref)
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := repos.Invoices().Delete(ctx, id); err != nil {
				return err
			}
		}
		if err := repos.Payments().DeleteByCounterparty(ctx, ref); err != nil {
			return err
		}
		if err := repos.Counterparties().Delete(ctx, ref); err != nil {
			return err
		}
		details := counterpartyAuditDetails(cp)
		details["invoices_deleted"] = len(ids)
		return recordAudit(ctx, repos, ledger.CounterpartyAuditAction(ref.Kind, ledger.AuditClientDelete), ref.ID, details)
	})
	if err != nil {
		return err
	}
	s.logger.Info("Counterparty deleted",
		zap.String("kind", ref.Kind.String()),
		zap.String("counterparty_id", ref.ID.String()),
	)
	return nil
}

// CreateProduct creates a product with its opening stock
func (s *MasterDataService) CreateProduct(ctx context.Context, cmd CreateProductCommand) (*ProductResponse, error) {
	p, err := ledger.NewProduct(cmd.Name, cmd.Color, cmd.Material, cmd.Type, cmd.Quantity, cmd.FinishingCost, cmd.PrintingCost)
	if err != nil {
		return nil, err
	}
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := repos.Products().Create(ctx, p); err != nil {
			return err
		}
		return recordAudit(ctx, repos, ledger.AuditProductCreate, p.ID, productAuditDetails(p))
	})
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(p)
	return &resp, nil
}

// GetProduct returns one product
func (s *MasterDataService) GetProduct(ctx context.Context, id uuid.UUID) (*ProductResponse, error) {
	p, err := s.scope.Repositories().Products().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(p)
	return &resp, nil
}

// ListProducts returns a page of products, most recently updated first
func (s *MasterDataService) ListProducts(ctx context.Context, filter ProductListFilter) (*shared.Paginated[ProductResponse], error) {
	domainFilter := ledger.ProductFilter{
		Filter: shared.DefaultFilter(),
		Name:   filter.Name,
		Color:  filter.Color,
		Type:   filter.Type,
	}
	domainFilter.OrderBy = "updated_at"
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}

	products, total, err := s.scope.Repositories().Products().FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	items := make([]ProductResponse, len(products))
	for i := range products {
		items[i] = toProductResponse(&products[i])
	}
	page := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit())
	return &page, nil
}

// UpdateProduct replaces a product's fields. The quantity is overwritten,
// not moved, so it is a manual stock correction.
func (s *MasterDataService) UpdateProduct(ctx context.Context, id uuid.UUID, cmd UpdateProductCommand) (*ProductResponse, error) {
	var updated *ledger.Product
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Products().FindByIDsForUpdate(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		p, ok := locked[id]
		if !ok {
			return ledger.ErrProductNotFound
		}
		if err := p.Update(cmd.Name, cmd.Color, cmd.Material, cmd.Type, cmd.Quantity, cmd.FinishingCost, cmd.PrintingCost); err != nil {
			return err
		}
		if err := repos.Products().Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return recordAudit(ctx, repos, ledger.AuditProductEdit, p.ID, productAuditDetails(p))
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Product updated", zap.String("product_id", id.String()))
	resp := toProductResponse(updated)
	return &resp, nil
}

// DeleteProduct removes a product that no invoice item references.
// Referenced products fail with ErrProductInUse.
func (s *MasterDataService) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		locked, err := repos.Products().FindByIDsForUpdate(ctx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		p, ok := locked[id]
		if !ok {
			return ledger.ErrProductNotFound
		}
		inUse, err := repos.Products().IsReferenced(ctx, id)
		if err != nil {
			return err
		}
		if inUse {
			return ledger.ErrProductInUse.WithMessage("product %s is referenced by invoice items", p.Name)
		}
		if err := repos.Products().Delete(ctx, id); err != nil {
			return err
		}
		return recordAudit(ctx, repos, ledger.AuditProductDelete, id, productAuditDetails(p))
	})
	if err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	return nil
}

// AdjustProductQuantity applies a manual signed stock correction
func (s *MasterDataService) AdjustProductQuantity(ctx context.Context, id uuid.UUID, delta int) (*ProductResponse, error) {
	if delta == 0 {
		return nil, ledger.NewInvalidInputError("quantity change must not be zero")
	}
	var product *ledger.Product
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		if err := applyStockMovements(ctx, repos, map[uuid.UUID]int{id: delta}); err != nil {
			return err
		}
		var err error
		product, err = repos.Products().FindByID(ctx, id)
		if err != nil {
			return err
		}
		details := productAuditDetails(product)
		details["delta"] = delta
		return recordAudit(ctx, repos, ledger.AuditProductAdjust, id, details)
	})
	if err != nil {
		return nil, err
	}
	resp := toProductResponse(product)
	return &resp, nil
}

// CreateFinancialEntryCommand is the input of CreateFinancialEntry
type CreateFinancialEntryCommand struct {
	EntryType   ledger.EntryType
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Category    string
}

// CreateFinancialEntry records income, an expense or a loan
func (s *MasterDataService) CreateFinancialEntry(ctx context.Context, cmd CreateFinancialEntryCommand) (*FinancialEntryResponse, error) {
	entry, err := ledger.NewFinancialEntry(cmd.EntryType, cmd.Amount, cmd.Date, cmd.Description, cmd.Category)
	if err != nil {
		return nil, err
	}
	if err := s.scope.Repositories().FinancialEntries().Create(ctx, entry); err != nil {
		return nil, err
	}
	return &FinancialEntryResponse{
		ID:          entry.ID,
		EntryType:   entry.EntryType,
		Amount:      entry.Amount,
		Date:        entry.Date,
		Description: entry.Description,
		Category:    entry.Category,
	}, nil
}

// ListAuditEntries returns a page of the audit trail, newest first
func (s *MasterDataService) ListAuditEntries(ctx context.Context, filter AuditListFilter) (*shared.Paginated[AuditEntryResponse], error) {
	domainFilter := ledger.AuditFilter{Filter: shared.DefaultFilter(), EntityID: filter.EntityID}
	if filter.Page > 0 {
		domainFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		domainFilter.PageSize = filter.PageSize
	}
	if filter.Action != "" {
		action := ledger.AuditAction(filter.Action)
		if !action.IsValid() {
			return nil, ledger.NewInvalidInputError(fmt.Sprintf("unknown audit action %q", filter.Action))
		}
		domainFilter.Action = &action
	}

	entries, total, err := s.scope.Repositories().AuditLog().FindAll(ctx, domainFilter)
	if err != nil {
		return nil, err
	}
	items := make([]AuditEntryResponse, len(entries))
	for i := range entries {
		items[i] = toAuditEntryResponse(&entries[i])
	}
	page := shared.NewPaginated(items, total, domainFilter.Page, domainFilter.Limit())
	return &page, nil
}
