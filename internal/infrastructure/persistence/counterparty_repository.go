package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormCounterpartyRepository implements CounterpartyRepository over the
// clients and suppliers tables
type GormCounterpartyRepository struct {
	db *gorm.DB
}

// NewGormCounterpartyRepository creates a new GormCounterpartyRepository
func NewGormCounterpartyRepository(db *gorm.DB) *GormCounterpartyRepository {
	return &GormCounterpartyRepository{db: db}
}

func (r *GormCounterpartyRepository) table(ctx context.Context, kind ledger.CounterpartyKind) *gorm.DB {
	return r.db.WithContext(ctx).Table(models.CounterpartyTable(kind))
}

// FindByID finds a client or supplier
func (r *GormCounterpartyRepository) FindByID(ctx context.Context, ref ledger.CounterpartyRef) (*ledger.Counterparty, error) {
	var model models.CounterpartyModel
	if err := r.table(ctx, ref.Kind).Where("id = ?", ref.ID).First(&model).Error; err != nil {
		return nil, notFound(err, ledger.ErrCounterpartyNotFound)
	}
	return model.ToDomain(ref.Kind), nil
}

// FindByIDForUpdate locks the counterparty row with SELECT ... FOR UPDATE
func (r *GormCounterpartyRepository) FindByIDForUpdate(ctx context.Context, ref ledger.CounterpartyRef) (*ledger.Counterparty, error) {
	var model models.CounterpartyModel
	err := r.table(ctx, ref.Kind).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", ref.ID).
		First(&model).Error
	if err != nil {
		return nil, notFound(err, ledger.ErrCounterpartyNotFound)
	}
	return model.ToDomain(ref.Kind), nil
}

// FindAll lists every counterparty of a kind ordered by name
func (r *GormCounterpartyRepository) FindAll(ctx context.Context, kind ledger.CounterpartyKind) ([]ledger.Counterparty, error) {
	var rows []models.CounterpartyModel
	if err := r.table(ctx, kind).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	result := make([]ledger.Counterparty, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain(kind)
	}
	return result, nil
}

type counterpartyNameRow struct {
	ID   uuid.UUID
	Name string
}

// FindNames resolves display names for a set of IDs of one kind
func (r *GormCounterpartyRepository) FindNames(ctx context.Context, kind ledger.CounterpartyKind, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var rows []counterpartyNameRow
	if err := r.table(ctx, kind).Select("id, name").Where("id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// Create inserts a counterparty
func (r *GormCounterpartyRepository) Create(ctx context.Context, cp *ledger.Counterparty) error {
	return translateError(r.table(ctx, cp.Kind).Create(models.CounterpartyModelFromDomain(cp)).Error)
}

// Update writes a counterparty's contact details
func (r *GormCounterpartyRepository) Update(ctx context.Context, cp *ledger.Counterparty) error {
	result := r.table(ctx, cp.Kind).
		Where("id = ?", cp.ID).
		Updates(map[string]any{
			"name":       cp.Name,
			"phone":      cp.Phone,
			"email":      cp.Email,
			"address":    cp.Address,
			"updated_at": cp.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrCounterpartyNotFound
	}
	return nil
}

// Delete removes a counterparty row
func (r *GormCounterpartyRepository) Delete(ctx context.Context, ref ledger.CounterpartyRef) error {
	result := r.table(ctx, ref.Kind).Where("id = ?", ref.ID).Delete(&models.CounterpartyModel{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrCounterpartyNotFound
	}
	return nil
}

// Ensure GormCounterpartyRepository implements CounterpartyRepository
var _ ledger.CounterpartyRepository = (*GormCounterpartyRepository)(nil)
