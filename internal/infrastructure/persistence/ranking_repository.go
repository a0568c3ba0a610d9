package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormRankingRepository answers top-N report queries with grouped SQL
type GormRankingRepository struct {
	db *gorm.DB
}

// NewGormRankingRepository creates a new GormRankingRepository
func NewGormRankingRepository(db *gorm.DB) *GormRankingRepository {
	return &GormRankingRepository{db: db}
}

type rankedRow struct {
	ID          uuid.UUID
	Name        string
	Detail      string
	Quantity    int64
	TotalAmount decimal.Decimal
}

func toRankedItems(rows []rankedRow) []ledger.RankedItem {
	items := make([]ledger.RankedItem, len(rows))
	for i, row := range rows {
		items[i] = ledger.RankedItem{
			ID:          row.ID,
			Name:        row.Name,
			Detail:      row.Detail,
			Quantity:    row.Quantity,
			TotalAmount: ledger.RoundMoney(row.TotalAmount),
		}
	}
	return items
}

// TopProducts ranks products by revenue from sale invoice items
func (r *GormRankingRepository) TopProducts(ctx context.Context, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	query := r.db.WithContext(ctx).Table(models.TableInvoiceItems+" AS ii").
		Select("p.id AS id, p.name AS name, p.type AS detail, SUM(ii.quantity) AS quantity, SUM(ii.total_price) AS total_amount").
		Joins("JOIN "+models.TableInvoices+" AS i ON i.id = ii.invoice_id").
		Joins("JOIN "+models.TableProducts+" AS p ON p.id = ii.product_id").
		Where("i.invoice_type = ?", ledger.InvoiceTypeSale)
	query = inPeriod(query, "i.date", period)

	var rows []rankedRow
	err := query.
		Group("p.id, p.name, p.type").
		Order("total_amount DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toRankedItems(rows), nil
}

// TopCounterparties ranks clients by sale totals or suppliers by purchase totals
func (r *GormRankingRepository) TopCounterparties(ctx context.Context, kind ledger.CounterpartyKind, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	fk := "client_id"
	if kind == ledger.CounterpartySupplier {
		fk = "supplier_id"
	}
	query := r.db.WithContext(ctx).Table(models.TableInvoices+" AS i").
		Select("c.id AS id, c.name AS name, c.phone AS detail, COUNT(i.id) AS quantity, SUM(i.total_amount) AS total_amount").
		Joins("JOIN "+models.CounterpartyTable(kind)+" AS c ON c.id = i."+fk).
		Where("i.invoice_type = ?", kind.ChargeType())
	query = inPeriod(query, "i.date", period)

	var rows []rankedRow
	err := query.
		Group("c.id, c.name, c.phone").
		Order("total_amount DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toRankedItems(rows), nil
}

// Ensure GormRankingRepository implements RankingRepository
var _ ledger.RankingRepository = (*GormRankingRepository)(nil)
