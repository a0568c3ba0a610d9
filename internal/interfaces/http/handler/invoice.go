package handler

import (
	"net/http"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceHandler serves invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices   *ledgerapp.InvoiceService
	settlement *ledgerapp.SettlementService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices *ledgerapp.InvoiceService, settlement *ledgerapp.SettlementService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices, settlement: settlement}
}

// InvoiceItemRequest is one line of an invoice request
type InvoiceItemRequest struct {
	ProductID string          `json:"product_id" binding:"required,uuid"`
	Quantity  int             `json:"quantity" binding:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" binding:"money_gte0"`
}

// CreateInvoiceRequest is the body of POST /invoices
type CreateInvoiceRequest struct {
	Type           string               `json:"type" binding:"required,oneof=sale purchase return supplier_return"`
	CounterpartyID string               `json:"counterparty_id" binding:"required,uuid"`
	Date           string               `json:"date" binding:"omitempty,datetime=2006-01-02"`
	DueDate        string               `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Items          []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	Notes          string               `json:"notes" binding:"max=1000"`
}

// UpdateInvoiceItemsRequest is the body of PUT /invoices/:id/items
type UpdateInvoiceItemsRequest struct {
	Items   []InvoiceItemRequest `json:"items" binding:"required,min=1,dive"`
	DueDate string               `json:"due_date" binding:"omitempty,datetime=2006-01-02"`
	Notes   *string              `json:"notes" binding:"omitempty,max=1000"`
}

// ListInvoicesQuery holds the query string of GET /invoices
type ListInvoicesQuery struct {
	Type           string `form:"type"`
	Status         string `form:"status"`
	Kind           string `form:"kind"`
	CounterpartyID string `form:"counterparty_id" binding:"omitempty,uuid"`
	DateFrom       string `form:"date_from" binding:"omitempty,datetime=2006-01-02"`
	DateTo         string `form:"date_to" binding:"omitempty,datetime=2006-01-02"`
	Page           int    `form:"page" binding:"omitempty,min=1"`
	PageSize       int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func toItemInputs(items []InvoiceItemRequest) []ledger.ItemInput {
	inputs := make([]ledger.ItemInput, len(items))
	for i, item := range items {
		inputs[i] = ledger.ItemInput{
			// validated by the uuid binding tag
			ProductID: uuid.MustParse(item.ProductID),
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return inputs
}

// Create handles POST /invoices
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if !h.bindJSON(c, &req) {
		return
	}

	date, _ := parseOptionalDate(req.Date)
	dueDate, _ := parseOptionalDate(req.DueDate)
	cmd := ledgerapp.CreateInvoiceCommand{
		Type:           ledger.InvoiceType(req.Type),
		CounterpartyID: uuid.MustParse(req.CounterpartyID),
		DueDate:        dueDate,
		Items:          toItemInputs(req.Items),
		Notes:          req.Notes,
	}
	if date != nil {
		cmd.Date = *date
	}

	resp, err := h.invoices.CreateInvoice(c.Request.Context(), cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List handles GET /invoices
func (h *InvoiceHandler) List(c *gin.Context) {
	var q ListInvoicesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidation, err.Error())
		return
	}

	filter := ledgerapp.InvoiceListFilter{
		Type:     q.Type,
		Status:   q.Status,
		Kind:     q.Kind,
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	filter.CounterpartyID, _ = parseOptionalUUID(q.CounterpartyID)
	filter.DateFrom, _ = parseOptionalDate(q.DateFrom)
	filter.DateTo, _ = parseOptionalDate(q.DateTo)

	page, err := h.invoices.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// Get handles GET /invoices/:id
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.invoices.GetInvoice(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// UpdateItems handles PUT /invoices/:id/items
func (h *InvoiceHandler) UpdateItems(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateInvoiceItemsRequest
	if !h.bindJSON(c, &req) {
		return
	}

	cmd := ledgerapp.UpdateInvoiceCommand{
		Items: toItemInputs(req.Items),
		Notes: req.Notes,
	}
	cmd.DueDate, _ = parseOptionalDate(req.DueDate)

	resp, err := h.invoices.UpdateInvoiceItems(c.Request.Context(), id, cmd)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Delete handles DELETE /invoices/:id
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.invoices.DeleteInvoice(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Remaining handles GET /invoices/:id/remaining
func (h *InvoiceHandler) Remaining(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.invoices.ComputeInvoiceRemaining(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RefreshStatus handles POST /invoices/:id/refresh-status
func (h *InvoiceHandler) RefreshStatus(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.settlement.RefreshInvoiceStatus(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// RefreshAllStatuses handles POST /invoices/refresh-status
func (h *InvoiceHandler) RefreshAllStatuses(c *gin.Context) {
	resp, err := h.settlement.RefreshAllInvoiceStatuses(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}
