package handler

import (
	"net/http"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// MasterDataHandler serves products, financial entries and the audit trail
type MasterDataHandler struct {
	BaseHandler
	masterData *ledgerapp.MasterDataService
}

// NewMasterDataHandler creates a new MasterDataHandler
func NewMasterDataHandler(masterData *ledgerapp.MasterDataService) *MasterDataHandler {
	return &MasterDataHandler{masterData: masterData}
}

// CreateProductRequest is the body of POST /products
type CreateProductRequest struct {
	Name          string          `json:"name" binding:"required,min=1,max=200"`
	Color         string          `json:"color" binding:"max=100"`
	Material      string          `json:"material" binding:"max=100"`
	Type          string          `json:"type" binding:"max=100"`
	Quantity      int             `json:"quantity" binding:"gte=0"`
	FinishingCost decimal.Decimal `json:"finishing_cost" binding:"money_gte0"`
	PrintingCost  decimal.Decimal `json:"printing_cost" binding:"money_gte0"`
}

// UpdateProductRequest is the body of PUT /products/:id
type UpdateProductRequest struct {
	Name          string          `json:"name" binding:"required,min=1,max=200"`
	Color         string          `json:"color" binding:"max=100"`
	Material      string          `json:"material" binding:"max=100"`
	Type          string          `json:"type" binding:"max=100"`
	Quantity      int             `json:"quantity" binding:"gte=0"`
	FinishingCost decimal.Decimal `json:"finishing_cost" binding:"money_gte0"`
	PrintingCost  decimal.Decimal `json:"printing_cost" binding:"money_gte0"`
}

// ListProductsQuery is the query string of GET /products
type ListProductsQuery struct {
	Name     string `form:"name" binding:"max=200"`
	Color    string `form:"color" binding:"max=100"`
	Type     string `form:"type" binding:"max=100"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ListAuditEntriesQuery is the query string of GET /audit-entries
type ListAuditEntriesQuery struct {
	Action   string `form:"action"`
	EntityID string `form:"entity_id" binding:"omitempty,uuid"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// AdjustQuantityRequest is the body of POST /products/:id/adjust-quantity
type AdjustQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// CreateFinancialEntryRequest is the body of POST /financial-entries
type CreateFinancialEntryRequest struct {
	EntryType   string          `json:"entry_type" binding:"required,oneof=income expense loan"`
	Amount      decimal.Decimal `json:"amount" binding:"money"`
	Date        string          `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Description string          `json:"description" binding:"max=500"`
	Category    string          `json:"category" binding:"max=100"`
}

// CreateProduct handles POST /products
func (h *MasterDataHandler) CreateProduct(c *gin.Context) {
	var req CreateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.masterData.CreateProduct(c.Request.Context(), ledgerapp.CreateProductCommand{
		Name:          req.Name,
		Color:         req.Color,
		Material:      req.Material,
		Type:          req.Type,
		Quantity:      req.Quantity,
		FinishingCost: req.FinishingCost,
		PrintingCost:  req.PrintingCost,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// GetProduct handles GET /products/:id
func (h *MasterDataHandler) GetProduct(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.masterData.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// ListProducts handles GET /products
func (h *MasterDataHandler) ListProducts(c *gin.Context) {
	var q ListProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	page, err := h.masterData.ListProducts(c.Request.Context(), ledgerapp.ProductListFilter{
		Name:     q.Name,
		Color:    q.Color,
		Type:     q.Type,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// UpdateProduct handles PUT /products/:id
func (h *MasterDataHandler) UpdateProduct(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateProductRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.masterData.UpdateProduct(c.Request.Context(), id, ledgerapp.UpdateProductCommand{
		Name:          req.Name,
		Color:         req.Color,
		Material:      req.Material,
		Type:          req.Type,
		Quantity:      req.Quantity,
		FinishingCost: req.FinishingCost,
		PrintingCost:  req.PrintingCost,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// DeleteProduct handles DELETE /products/:id. Products still used by
// invoice lines are refused with 409.
func (h *MasterDataHandler) DeleteProduct(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.masterData.DeleteProduct(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// AdjustQuantity handles POST /products/:id/adjust-quantity
func (h *MasterDataHandler) AdjustQuantity(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req AdjustQuantityRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.masterData.AdjustProductQuantity(c.Request.Context(), id, req.Delta)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// CreateFinancialEntry handles POST /financial-entries
func (h *MasterDataHandler) CreateFinancialEntry(c *gin.Context) {
	var req CreateFinancialEntryRequest
	if !h.bindJSON(c, &req) {
		return
	}

	var date time.Time
	if d, err := parseOptionalDate(req.Date); err != nil {
		h.Error(c, dto.GetHTTPStatus(dto.ErrCodeValidationFormat), dto.ErrCodeValidationFormat, "date must be YYYY-MM-DD")
		return
	} else if d != nil {
		date = *d
	}

	resp, err := h.masterData.CreateFinancialEntry(c.Request.Context(), ledgerapp.CreateFinancialEntryCommand{
		EntryType:   ledger.EntryType(req.EntryType),
		Amount:      req.Amount,
		Date:        date,
		Description: req.Description,
		Category:    req.Category,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// ListAuditEntries handles GET /audit-entries
func (h *MasterDataHandler) ListAuditEntries(c *gin.Context) {
	var q ListAuditEntriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}
	entityID, err := parseOptionalUUID(q.EntityID)
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, "entity_id must be a UUID")
		return
	}
	page, err := h.masterData.ListAuditEntries(c.Request.Context(), ledgerapp.AuditListFilter{
		Action:   q.Action,
		EntityID: entityID,
		Page:     q.Page,
		PageSize: q.PageSize,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
