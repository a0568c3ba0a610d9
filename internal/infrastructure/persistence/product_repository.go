package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Product, error) {
	var model models.ProductModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, notFound(err, ledger.ErrProductNotFound)
	}
	return model.ToDomain(), nil
}

// FindByIDsForUpdate locks the products in ID order so that concurrent
// invoice edits touching the same products cannot deadlock. A missing ID
// fails with ErrProductNotFound.
func (r *GormProductRepository) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Product, error) {
	products := make(map[uuid.UUID]*ledger.Product, len(ids))
	if len(ids) == 0 {
		return products, nil
	}
	var rows []models.ProductModel
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	for i := range rows {
		products[rows[i].ID] = rows[i].ToDomain()
	}
	for _, id := range ids {
		if _, ok := products[id]; !ok {
			return nil, ledger.ErrProductNotFound
		}
	}
	return products, nil
}

// FindLowStock lists products whose quantity is below threshold, scarcest first
func (r *GormProductRepository) FindLowStock(ctx context.Context, threshold int) ([]ledger.Product, error) {
	var rows []models.ProductModel
	err := r.db.WithContext(ctx).
		Where("quantity < ?", threshold).
		Order("quantity ASC, name ASC").
		Find(&rows).Error
	if err != nil {
		return nil, translateError(err)
	}
	products := make([]ledger.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, nil
}

// FindAll lists products matching the filter, most recently updated first
// unless the filter orders otherwise
func (r *GormProductRepository) FindAll(ctx context.Context, filter ledger.ProductFilter) ([]ledger.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ProductModel{})
	if name := strings.TrimSpace(filter.Name); name != "" {
		query = query.Where(`LOWER(name) LIKE ? ESCAPE '\'`, containsPattern(name))
	}
	if color := strings.TrimSpace(filter.Color); color != "" {
		query = query.Where(`LOWER(color) LIKE ? ESCAPE '\'`, containsPattern(color))
	}
	if productType := strings.TrimSpace(filter.Type); productType != "" {
		query = query.Where("type = ?", productType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.ProductModel
	err := query.
		Clauses(clause.OrderBy{Columns: orderColumns(filter.Filter, sortableProductColumns, "updated_at", "name")}).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, translateError(err)
	}
	products := make([]ledger.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, total, nil
}

// Create inserts a product
func (r *GormProductRepository) Create(ctx context.Context, product *ledger.Product) error {
	return translateError(r.db.WithContext(ctx).Create(models.ProductModelFromDomain(product)).Error)
}

// UpdateQuantity writes a product's quantity
func (r *GormProductRepository) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", id).
		Updates(map[string]any{"quantity": quantity, "updated_at": time.Now()})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrProductNotFound
	}
	return nil
}

// Update writes every editable column of a product
func (r *GormProductRepository) Update(ctx context.Context, product *ledger.Product) error {
	result := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Where("id = ?", product.ID).
		Updates(map[string]any{
			"name":           product.Name,
			"color":          product.Color,
			"material":       product.Material,
			"type":           product.Type,
			"quantity":       product.Quantity,
			"finishing_cost": product.FinishingCost,
			"printing_cost":  product.PrintingCost,
			"updated_at":     product.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrProductNotFound
	}
	return nil
}

// IsReferenced reports whether any invoice item names the product
func (r *GormProductRepository) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.InvoiceItemModel{}).
		Where("product_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, translateError(err)
	}
	return count > 0, nil
}

// Delete removes a product
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProductModel{})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ledger.ErrProductNotFound
	}
	return nil
}

// StockSummary returns the product count and the total units on hand
func (r *GormProductRepository) StockSummary(ctx context.Context) (int64, int64, error) {
	var row struct {
		Products int64
		Units    int64
	}
	err := r.db.WithContext(ctx).Model(&models.ProductModel{}).
		Select("COUNT(*) AS products, COALESCE(SUM(quantity), 0) AS units").
		Scan(&row).Error
	if err != nil {
		return 0, 0, translateError(err)
	}
	return row.Products, row.Units, nil
}

// Ensure GormProductRepository implements ProductRepository
var _ ledger.ProductRepository = (*GormProductRepository)(nil)
