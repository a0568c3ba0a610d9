package handler

import (
	"net/http"
	"strings"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// maxIdempotencyKeyLength bounds the Idempotency-Key header
const maxIdempotencyKeyLength = 255

// PaymentHandler serves payment endpoints
type PaymentHandler struct {
	BaseHandler
	settlement *ledgerapp.SettlementService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(settlement *ledgerapp.SettlementService) *PaymentHandler {
	return &PaymentHandler{settlement: settlement}
}

// AllocatePaymentRequest is the body of POST /payments. Name an invoice, a
// client or a supplier. Naming an invoice and its own counterparty is allowed.
type AllocatePaymentRequest struct {
	Amount          decimal.Decimal `json:"amount"`
	InvoiceID       string          `json:"invoice_id" binding:"omitempty,uuid"`
	ClientID        string          `json:"client_id" binding:"omitempty,uuid"`
	SupplierID      string          `json:"supplier_id" binding:"omitempty,uuid"`
	Strict          bool            `json:"strict"`
	PaymentDate     string          `json:"payment_date" binding:"omitempty,datetime=2006-01-02"`
	Method          string          `json:"method" binding:"max=50"`
	ReferenceNumber string          `json:"reference_number" binding:"max=100"`
	Notes           string          `json:"notes" binding:"max=1000"`
}

func (r AllocatePaymentRequest) target() (ledgerapp.SettlementTarget, error) {
	var target ledgerapp.SettlementTarget
	if r.ClientID != "" && r.SupplierID != "" {
		return target, ledger.ErrAmbiguousTarget
	}

	target.InvoiceID, _ = parseOptionalUUID(r.InvoiceID)
	if id, _ := parseOptionalUUID(r.ClientID); id != nil {
		target.Counterparty = &ledger.CounterpartyRef{ID: *id, Kind: ledger.CounterpartyClient}
	}
	if id, _ := parseOptionalUUID(r.SupplierID); id != nil {
		target.Counterparty = &ledger.CounterpartyRef{ID: *id, Kind: ledger.CounterpartySupplier}
	}
	return target, nil
}

// Allocate handles POST /payments. With an Idempotency-Key header a retried
// request returns the first result instead of paying twice.
func (h *PaymentHandler) Allocate(c *gin.Context) {
	var req AllocatePaymentRequest
	if !h.bindJSON(c, &req) {
		return
	}

	key := strings.TrimSpace(c.GetHeader(middleware.IdempotencyKeyHeader))
	if len(key) > maxIdempotencyKeyLength {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRange, "Idempotency-Key is too long")
		return
	}

	target, err := req.target()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	var paymentDate time.Time
	if d, _ := parseOptionalDate(req.PaymentDate); d != nil {
		paymentDate = *d
	}

	ctx := c.Request.Context()
	if key != "" {
		ctx = logger.WithIdempotencyKey(ctx, key)
	}

	result, err := h.settlement.AllocatePayment(ctx, ledgerapp.AllocatePaymentCommand{
		Amount: req.Amount,
		Target: target,
		Strict: req.Strict,
		Details: ledger.PaymentDetails{
			PaymentDate:     paymentDate,
			Method:          req.Method,
			ReferenceNumber: req.ReferenceNumber,
			Notes:           req.Notes,
		},
		IdempotencyKey: key,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
		h.Success(c, result)
		return
	}
	h.Created(c, result)
}

// Delete handles DELETE /payments/:id. The linked invoice's status is
// recomputed in the same transaction.
func (h *PaymentHandler) Delete(c *gin.Context) {
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	result, err := h.settlement.DeletePayment(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
