package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormFinancialEntryRepository implements FinancialEntryRepository using GORM
type GormFinancialEntryRepository struct {
	db *gorm.DB
}

// NewGormFinancialEntryRepository creates a new GormFinancialEntryRepository
func NewGormFinancialEntryRepository(db *gorm.DB) *GormFinancialEntryRepository {
	return &GormFinancialEntryRepository{db: db}
}

// Create inserts an entry
func (r *GormFinancialEntryRepository) Create(ctx context.Context, entry *ledger.FinancialEntry) error {
	return translateError(r.db.WithContext(ctx).Create(models.FinancialEntryModelFromDomain(entry)).Error)
}

// SumByType sums entries grouped by entry type
func (r *GormFinancialEntryRepository) SumByType(ctx context.Context) (map[ledger.EntryType]decimal.Decimal, error) {
	var rows []struct {
		EntryType ledger.EntryType
		Total     decimal.Decimal
	}
	err := r.db.WithContext(ctx).Model(&models.FinancialEntryModel{}).
		Select("entry_type, SUM(amount) AS total").
		Group("entry_type").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	sums := make(map[ledger.EntryType]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.EntryType] = ledger.RoundMoney(row.Total)
	}
	return sums, nil
}

// Ensure GormFinancialEntryRepository implements FinancialEntryRepository
var _ ledger.FinancialEntryRepository = (*GormFinancialEntryRepository)(nil)
