package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// maxTopLimit caps the limit query parameter of the ranking reports
const maxTopLimit = 100

// WeeklyReportSender builds and delivers the weekly summary
type WeeklyReportSender interface {
	Send(ctx context.Context) (*ledgerapp.WeeklyReport, error)
}

// ReportHandler serves the /reports endpoints
type ReportHandler struct {
	BaseHandler
	reports *ledgerapp.ReportService
	weekly  WeeklyReportSender
	now     func() time.Time
}

// NewReportHandler creates a new ReportHandler. weekly may be nil when the
// notifier is not configured; the send endpoint then answers 503.
func NewReportHandler(reports *ledgerapp.ReportService, weekly WeeklyReportSender) *ReportHandler {
	return &ReportHandler{reports: reports, weekly: weekly, now: time.Now}
}

// AmountResponse wraps a single figure
type AmountResponse struct {
	Value decimal.Decimal `json:"value"`
}

type amountFunc func(ctx context.Context) (decimal.Decimal, error)

func (h *ReportHandler) amount(c *gin.Context, fn amountFunc) {
	v, err := fn(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, AmountResponse{Value: v})
}

// CashBalance handles GET /reports/cash-balance
func (h *ReportHandler) CashBalance(c *gin.Context) {
	h.amount(c, h.reports.ComputeCashBalance)
}

// ClientsOutstanding handles GET /reports/clients-outstanding
func (h *ReportHandler) ClientsOutstanding(c *gin.Context) {
	h.amount(c, h.reports.ComputeClientsOutstanding)
}

// SuppliersOutstanding handles GET /reports/suppliers-outstanding
func (h *ReportHandler) SuppliersOutstanding(c *gin.Context) {
	h.amount(c, h.reports.ComputeSuppliersOutstanding)
}

// NetProfit handles GET /reports/net-profit
func (h *ReportHandler) NetProfit(c *gin.Context) {
	h.amount(c, h.reports.ComputeNetProfit)
}

// ProfitMargin handles GET /reports/profit-margin. The value is a percentage.
func (h *ReportHandler) ProfitMargin(c *gin.Context) {
	h.amount(c, h.reports.ComputeProfitMargin)
}

// Aging handles GET /reports/aging?today=YYYY-MM-DD
func (h *ReportHandler) Aging(c *gin.Context) {
	today, ok := h.requestDate(c, "today", h.now())
	if !ok {
		return
	}
	report, err := h.reports.ComputeAgingReport(c.Request.Context(), today)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// Dashboard handles GET /reports/dashboard
func (h *ReportHandler) Dashboard(c *gin.Context) {
	summary, err := h.reports.DashboardSummary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, summary)
}

// Alerts handles GET /reports/alerts?today=YYYY-MM-DD
func (h *ReportHandler) Alerts(c *gin.Context) {
	today, ok := h.requestDate(c, "today", h.now())
	if !ok {
		return
	}
	alerts, err := h.reports.Alerts(c.Request.Context(), today)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if alerts == nil {
		alerts = []ledgerapp.Alert{}
	}
	h.Success(c, alerts)
}

// MonthlyProfit handles GET /reports/monthly-profit?from=&to=
func (h *ReportHandler) MonthlyProfit(c *gin.Context) {
	period, ok := h.dateRange(c)
	if !ok {
		return
	}
	rows, err := h.reports.MonthlyProfitReport(c.Request.Context(), period)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, rows)
}

type rankingFunc func(ctx context.Context, period ledger.DateRange, limit int) ([]ledger.RankedItem, error)

func (h *ReportHandler) ranking(c *gin.Context, fn rankingFunc) {
	period, ok := h.dateRange(c)
	if !ok {
		return
	}
	limit, ok := h.limit(c)
	if !ok {
		return
	}
	items, err := fn(c.Request.Context(), period, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, items)
}

// TopProducts handles GET /reports/top-products
func (h *ReportHandler) TopProducts(c *gin.Context) {
	h.ranking(c, h.reports.TopProducts)
}

// TopClients handles GET /reports/top-clients
func (h *ReportHandler) TopClients(c *gin.Context) {
	h.ranking(c, h.reports.TopClients)
}

// TopSuppliers handles GET /reports/top-suppliers
func (h *ReportHandler) TopSuppliers(c *gin.Context) {
	h.ranking(c, h.reports.TopSuppliers)
}

// SendWeekly handles POST /reports/weekly/send
func (h *ReportHandler) SendWeekly(c *gin.Context) {
	if h.weekly == nil {
		h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeStoreUnavailable, "Weekly report delivery is not configured")
		return
	}
	report, err := h.weekly.Send(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

// requestDate reads a YYYY-MM-DD query parameter, using fallback when absent.
func (h *ReportHandler) requestDate(c *gin.Context, name string, fallback time.Time) (time.Time, bool) {
	d, err := parseOptionalDate(c.Query(name))
	if err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, name+" must be YYYY-MM-DD")
		return time.Time{}, false
	}
	if d == nil {
		return fallback, true
	}
	return *d, true
}

func (h *ReportHandler) dateRange(c *gin.Context) (ledger.DateRange, bool) {
	var period ledger.DateRange
	var err error
	if period.From, err = parseOptionalDate(c.Query("from")); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, "from must be YYYY-MM-DD")
		return period, false
	}
	if period.To, err = parseOptionalDate(c.Query("to")); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationFormat, "to must be YYYY-MM-DD")
		return period, false
	}
	if period.From != nil && period.To != nil && period.To.Before(*period.From) {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRange, "to must not be before from")
		return period, false
	}
	return period, true
}

func (h *ReportHandler) limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return ledgerapp.DefaultTopLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxTopLimit {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeValidationRange, "limit must be between 1 and 100")
		return 0, false
	}
	return n, true
}
