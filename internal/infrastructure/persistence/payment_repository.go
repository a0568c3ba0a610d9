package persistence

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func paymentsByCounterparty(db *gorm.DB, cp ledger.CounterpartyRef) *gorm.DB {
	if cp.Kind == ledger.CounterpartySupplier {
		return db.Where("supplier_id = ?", cp.ID)
	}
	return db.Where("client_id = ?", cp.ID)
}

func toDomainPayments(rows []models.PaymentModel) []ledger.Payment {
	payments := make([]ledger.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments
}

// sumAmount scans a single SUM(amount) and rounds it to cents. SQLite sums
// decimals as floats.
func sumAmount(query *gorm.DB) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	if err := query.Select("SUM(amount)").Row().Scan(&sum); err != nil {
		return decimal.Zero, translateError(err)
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return ledger.RoundMoney(sum.Decimal), nil
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Payment, error) {
	var model models.PaymentModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, ledger.ErrPaymentNotFound)
	}
	return model.ToDomain(), nil
}

// FindByInvoice lists the payments linked to an invoice in the order they were recorded
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]ledger.Payment, error) {
	var rows []models.PaymentModel
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainPayments(rows), nil
}

// FindByCounterparty lists the payments attributed to a counterparty
func (r *GormPaymentRepository) FindByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) ([]ledger.Payment, error) {
	var rows []models.PaymentModel
	err := paymentsByCounterparty(r.db.WithContext(ctx), cp).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toDomainPayments(rows), nil
}

// Create inserts a payment
func (r *GormPaymentRepository) Create(ctx context.Context, payment *ledger.Payment) error {
	return translateError(r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(payment)).Error)
}

// Delete removes a payment
func (r *GormPaymentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PaymentModel{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrPaymentNotFound
	}
	return nil
}

// DeleteByCounterparty removes every payment attributed to the counterparty
func (r *GormPaymentRepository) DeleteByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) error {
	return translateError(paymentsByCounterparty(r.db.WithContext(ctx), cp).Delete(&models.PaymentModel{}).Error)
}

// SumByInvoice returns the paid amount of an invoice
func (r *GormPaymentRepository) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	return sumAmount(r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("invoice_id = ?", invoiceID))
}

type invoicePaidRow struct {
	InvoiceID uuid.UUID
	Paid      decimal.Decimal
}

// SumByInvoices returns paid amounts keyed by invoice ID; invoices without payments are absent
func (r *GormPaymentRepository) SumByInvoices(ctx context.Context, invoiceIDs []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	sums := make(map[uuid.UUID]decimal.Decimal, len(invoiceIDs))
	if len(invoiceIDs) == 0 {
		return sums, nil
	}
	var rows []invoicePaidRow
	err := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Select("invoice_id, SUM(amount) AS paid").
		Where("invoice_id IN ?", invoiceIDs).
		Group("invoice_id").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	for _, row := range rows {
		sums[row.InvoiceID] = ledger.RoundMoney(row.Paid)
	}
	return sums, nil
}

// SumByCounterparty sums every payment attributed to the counterparty, linked or not
func (r *GormPaymentRepository) SumByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) (decimal.Decimal, error) {
	return sumAmount(paymentsByCounterparty(r.db.WithContext(ctx).Model(&models.PaymentModel{}), cp))
}

// SumByCounterpartyKind sums payments attributed to any counterparty of the kind
func (r *GormPaymentRepository) SumByCounterpartyKind(ctx context.Context, kind ledger.CounterpartyKind) (decimal.Decimal, error) {
	column := "client_id"
	if kind == ledger.CounterpartySupplier {
		column = "supplier_id"
	}
	return sumAmount(r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where(column + " IS NOT NULL"))
}

// SumLinkedByInvoiceType sums linked payments grouped by their invoice's type
func (r *GormPaymentRepository) SumLinkedByInvoiceType(ctx context.Context) (ledger.InvoiceTotals, error) {
	var rows []typeTotalRow
	err := r.db.WithContext(ctx).Table(models.TablePayments+" AS p").
		Select("i.invoice_type AS invoice_type, SUM(p.amount) AS total").
		Joins("JOIN "+models.TableInvoices+" AS i ON i.id = p.invoice_id").
		Group("i.invoice_type").
		Scan(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	return toInvoiceTotals(rows), nil
}

// SumUnlinked sums payments with no invoice
func (r *GormPaymentRepository) SumUnlinked(ctx context.Context) (decimal.Decimal, error) {
	return sumAmount(r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("invoice_id IS NULL"))
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
