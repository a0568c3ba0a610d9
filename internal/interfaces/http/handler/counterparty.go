package handler

import (
	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CounterpartyHandler serves the client or the supplier endpoints. One
// instance is mounted per kind.
type CounterpartyHandler struct {
	BaseHandler
	kind       ledger.CounterpartyKind
	masterData *ledgerapp.MasterDataService
	settlement *ledgerapp.SettlementService
	reports    *ledgerapp.ReportService
}

// NewCounterpartyHandler creates a CounterpartyHandler for kind
func NewCounterpartyHandler(
	kind ledger.CounterpartyKind,
	masterData *ledgerapp.MasterDataService,
	settlement *ledgerapp.SettlementService,
	reports *ledgerapp.ReportService,
) *CounterpartyHandler {
	return &CounterpartyHandler{
		kind:       kind,
		masterData: masterData,
		settlement: settlement,
		reports:    reports,
	}
}

// CreateCounterpartyRequest is the body of POST /clients and POST /suppliers
type CreateCounterpartyRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200"`
	Phone   string `json:"phone" binding:"max=50"`
	Email   string `json:"email" binding:"omitempty,email,max=200"`
	Address string `json:"address" binding:"max=500"`
}

// UpdateCounterpartyRequest is the body of PUT /clients/:id and PUT /suppliers/:id
type UpdateCounterpartyRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=200"`
	Phone   string `json:"phone" binding:"max=50"`
	Email   string `json:"email" binding:"omitempty,email,max=200"`
	Address string `json:"address" binding:"max=500"`
}

// BalanceResponse is the body of GET /clients/:id/balance
type BalanceResponse struct {
	ID      uuid.UUID               `json:"id"`
	Kind    ledger.CounterpartyKind `json:"kind"`
	Balance decimal.Decimal         `json:"balance"`
}

func (h *CounterpartyHandler) ref(id uuid.UUID) ledger.CounterpartyRef {
	return ledger.CounterpartyRef{ID: id, Kind: h.kind}
}

// Create handles POST /clients and POST /suppliers
func (h *CounterpartyHandler) Create(c *gin.Context) {
	var req CreateCounterpartyRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.masterData.CreateCounterparty(c.Request.Context(), ledgerapp.CreateCounterpartyCommand{
		Kind:    h.kind,
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List handles GET /clients and GET /suppliers
func (h *CounterpartyHandler) List(c *gin.Context) {
	resp, err := h.masterData.ListCounterparties(c.Request.Context(), h.kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Get handles GET /clients/:id
func (h *CounterpartyHandler) Get(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.masterData.GetCounterparty(c.Request.Context(), h.ref(id))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Update handles PUT /clients/:id and PUT /suppliers/:id
func (h *CounterpartyHandler) Update(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	var req UpdateCounterpartyRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.masterData.UpdateCounterparty(c.Request.Context(), h.ref(id), ledgerapp.UpdateCounterpartyCommand{
		Name:    req.Name,
		Phone:   req.Phone,
		Email:   req.Email,
		Address: req.Address,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Balance handles GET /clients/:id/balance. Positive means the client owes
// us (or we owe the supplier); negative means an unapplied credit.
func (h *CounterpartyHandler) Balance(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}

	var (
		balance decimal.Decimal
		err     error
	)
	if h.kind == ledger.CounterpartySupplier {
		balance, err = h.settlement.ComputeSupplierBalance(c.Request.Context(), id)
	} else {
		balance, err = h.settlement.ComputeClientBalance(c.Request.Context(), id)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, BalanceResponse{ID: id, Kind: h.kind, Balance: balance})
}

// Statement handles GET /clients/:id/statement
func (h *CounterpartyHandler) Statement(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	stmt, err := h.reports.CounterpartyStatement(c.Request.Context(), h.ref(id))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stmt)
}

// Delete handles DELETE /clients/:id. The counterparty's invoices and
// payments are removed with it.
func (h *CounterpartyHandler) Delete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.masterData.DeleteCounterparty(c.Request.Context(), h.ref(id)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
