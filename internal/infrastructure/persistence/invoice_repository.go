package persistence

import (
	"context"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func toDomainInvoices(rows []models.InvoiceModel) []ledger.Invoice {
	invoices := make([]ledger.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices
}

func (r *GormInvoiceRepository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	})
}

func byCounterparty(db *gorm.DB, cp ledger.CounterpartyRef) *gorm.DB {
	if cp.Kind == ledger.CounterpartySupplier {
		return db.Where("supplier_id = ?", cp.ID)
	}
	return db.Where("client_id = ?", cp.ID)
}

// FindByID finds an invoice with its items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	if err := r.withItems(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, ledger.ErrInvoiceNotFound)
	}
	return model.ToDomain(), nil
}

// FindByIDForUpdate locks the invoice row with SELECT ... FOR UPDATE
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	err := r.withItems(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, notFound(err, ledger.ErrInvoiceNotFound)
	}
	return model.ToDomain(), nil
}

// FindOpenForUpdate locks the counterparty's unpaid invoices of a type, oldest first
func (r *GormInvoiceRepository) FindOpenForUpdate(ctx context.Context, cp ledger.CounterpartyRef, invoiceType ledger.InvoiceType) ([]ledger.Invoice, error) {
	var rows []models.InvoiceModel
	err := byCounterparty(r.withItems(ctx), cp).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("invoice_type = ? AND status <> ?", invoiceType, ledger.InvoiceStatusPaid).
		Order("date ASC, number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainInvoices(rows), nil
}

// FindAll lists invoices matching the filter along with the total count
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter ledger.InvoiceFilter) ([]ledger.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if filter.Type != nil {
		query = query.Where("invoice_type = ?", *filter.Type)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Counterparty != nil {
		query = byCounterparty(query, *filter.Counterparty)
	}
	if filter.DateFrom != nil {
		query = query.Where("date >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("date <= ?", *filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.InvoiceModel
	err := query.
		Preload("Items").
		Clauses(clause.OrderBy{Columns: orderColumns(filter.Filter, sortableInvoiceColumns, "date", "number")}).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	return toDomainInvoices(rows), total, nil
}

// FindOutstandingByType returns invoices of a type that are not paid, oldest first
func (r *GormInvoiceRepository) FindOutstandingByType(ctx context.Context, invoiceType ledger.InvoiceType) ([]ledger.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Where("invoice_type = ? AND status <> ?", invoiceType, ledger.InvoiceStatusPaid).
		Order("date ASC, number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainInvoices(rows), nil
}

// FindRecent returns the most recently dated invoices
func (r *GormInvoiceRepository) FindRecent(ctx context.Context, limit int) ([]ledger.Invoice, error) {
	var rows []models.InvoiceModel
	err := r.db.WithContext(ctx).
		Order("date DESC, created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainInvoices(rows), nil
}

// FindByCounterparty lists every invoice of the counterparty, newest first
func (r *GormInvoiceRepository) FindByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) ([]ledger.Invoice, error) {
	var rows []models.InvoiceModel
	err := byCounterparty(r.withItems(ctx), cp).
		Order("date DESC, number DESC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainInvoices(rows), nil
}

// FindIDsByCounterparty returns the IDs of every invoice of the counterparty
func (r *GormInvoiceRepository) FindIDsByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := byCounterparty(r.db.WithContext(ctx).Model(&models.InvoiceModel{}), cp).
		Order("date ASC, number ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

// FindAllIDs returns every invoice ID
func (r *GormInvoiceRepository) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Order("date ASC, number ASC").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translateError(err)
	}
	return ids, nil
}

// LastNumberWithPrefix returns the highest number with the prefix. Longer
// numbers sort first so that sequence 10000 follows 9999.
func (r *GormInvoiceRepository) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	var numbers []string
	err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("number LIKE ?", prefix+"%").
		Order("LENGTH(number) DESC, number DESC").
		Limit(1).
		Pluck("number", &numbers).Error
	if err != nil {
		return "", translateError(err)
	}
	if len(numbers) == 0 {
		return "", nil
	}
	return numbers[0], nil
}

// Create inserts a new invoice with its items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	db := r.db.WithContext(ctx)
	if err := db.Omit(clause.Associations).Create(model).Error; err != nil {
		return translateError(err)
	}
	if len(model.Items) > 0 {
		if err := db.Create(&model.Items).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// ReplaceItems rewrites the invoice header and replaces all of its items
func (r *GormInvoiceRepository) ReplaceItems(ctx context.Context, invoice *ledger.Invoice) error {
	db := r.db.WithContext(ctx)
	result := db.Model(&models.InvoiceModel{}).
		Where("id = ?", invoice.ID).
		Updates(map[string]any{
			"total_amount": invoice.TotalAmount,
			"due_date":     invoice.DueDate,
			"notes":        invoice.Notes,
			"status":       invoice.Status,
			"updated_at":   invoice.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrInvoiceNotFound
	}

	if err := db.Where("invoice_id = ?", invoice.ID).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return translateError(err)
	}
	items := models.InvoiceItemModelsFromDomain(invoice.ID, invoice.Items)
	if len(items) > 0 {
		if err := db.Create(&items).Error; err != nil {
			return translateError(err)
		}
	}
	return nil
}

// UpdateStatus writes only the derived status column
func (r *GormInvoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.InvoiceStatus) error {
	result := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrInvoiceNotFound
	}
	return nil
}

// Delete removes the invoice together with its items and payments
func (r *GormInvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("invoice_id = ?", id).Delete(&models.PaymentModel{}).Error; err != nil {
		return translateError(err)
	}
	if err := db.Where("invoice_id = ?", id).Delete(&models.InvoiceItemModel{}).Error; err != nil {
		return translateError(err)
	}
	result := db.Where("id = ?", id).Delete(&models.InvoiceModel{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrInvoiceNotFound
	}
	return nil
}

type typeTotalRow struct {
	InvoiceType ledger.InvoiceType
	Total       decimal.Decimal
}

func toInvoiceTotals(rows []typeTotalRow) ledger.InvoiceTotals {
	totals := ledger.InvoiceTotals{}
	for _, row := range rows {
		totals[row.InvoiceType] = ledger.RoundMoney(row.Total)
	}
	return totals
}

// SumTotalsByType sums invoice totals by type for one counterparty or for all
func (r *GormInvoiceRepository) SumTotalsByType(ctx context.Context, cp *ledger.CounterpartyRef) (ledger.InvoiceTotals, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if cp != nil {
		query = byCounterparty(query, *cp)
	}
	var rows []typeTotalRow
	err := query.
		Select("invoice_type, COALESCE(SUM(total_amount), 0) AS total").
		Group("invoice_type").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toInvoiceTotals(rows), nil
}

// ListAmounts returns type, date and total of the invoices within the range
func (r *GormInvoiceRepository) ListAmounts(ctx context.Context, period ledger.DateRange) ([]ledger.InvoiceAmount, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	query = inPeriod(query, "date", period)

	var rows []models.InvoiceModel
	if err := query.Select("invoice_type", "date", "total_amount").Order("date ASC").Find(&rows).Error; err != nil {
		return nil, translateError(err)
	}
	amounts := make([]ledger.InvoiceAmount, len(rows))
	for i, row := range rows {
		amounts[i] = ledger.InvoiceAmount{Type: row.Type, Date: row.Date, TotalAmount: row.TotalAmount}
	}
	return amounts, nil
}

func inPeriod(query *gorm.DB, column string, period ledger.DateRange) *gorm.DB {
	if period.From != nil {
		query = query.Where(column+" >= ?", *period.From)
	}
	if period.To != nil {
		query = query.Where(column+" <= ?", *period.To)
	}
	return query
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
