package router

import (
	"net/http"

	"github.com/erp/ledger/internal/interfaces/http/dto"
	"github.com/erp/ledger/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
)

// LedgerHandlers holds every handler the API mounts
type LedgerHandlers struct {
	Clients    *handler.CounterpartyHandler
	Suppliers  *handler.CounterpartyHandler
	MasterData *handler.MasterDataHandler
	Invoices   *handler.InvoiceHandler
	Payments   *handler.PaymentHandler
	Reports    *handler.ReportHandler
	System     *handler.SystemHandler
}

func counterpartyGroup(name, prefix string, h *handler.CounterpartyHandler) *DomainGroup {
	return NewDomainGroup(name, prefix).
		Handle(http.MethodPost, "", "create a "+name, h.Create).
		Handle(http.MethodGet, "", "list "+name+"s by name", h.List).
		Handle(http.MethodGet, "/:id", "get a "+name, h.Get).
		Handle(http.MethodPut, "/:id", "edit a "+name, h.Update).
		Handle(http.MethodGet, "/:id/balance", "signed balance of a "+name, h.Balance).
		Handle(http.MethodGet, "/:id/statement", "invoices, payments and balance of a "+name, h.Statement).
		Handle(http.MethodDelete, "/:id", "delete a "+name+" with its invoices and payments", h.Delete)
}

// Groups returns the API's route groups
func (h LedgerHandlers) Groups() []*DomainGroup {
	products := NewDomainGroup("products", "/products").
		Handle(http.MethodPost, "", "create a product", h.MasterData.CreateProduct).
		Handle(http.MethodGet, "", "list products", h.MasterData.ListProducts).
		Handle(http.MethodGet, "/:id", "get a product", h.MasterData.GetProduct).
		Handle(http.MethodPut, "/:id", "edit a product", h.MasterData.UpdateProduct).
		Handle(http.MethodDelete, "/:id", "delete a product no invoice uses", h.MasterData.DeleteProduct).
		Handle(http.MethodPost, "/:id/adjust-quantity", "move stock by a signed delta", h.MasterData.AdjustQuantity)

	entries := NewDomainGroup("financial-entries", "/financial-entries").
		Handle(http.MethodPost, "", "record income, an expense or a loan", h.MasterData.CreateFinancialEntry)

	invoices := NewDomainGroup("invoices", "/invoices").
		Handle(http.MethodPost, "", "create an invoice", h.Invoices.Create).
		Handle(http.MethodGet, "", "list invoices", h.Invoices.List).
		Handle(http.MethodPost, "/refresh-status", "recompute every invoice status", h.Invoices.RefreshAllStatuses).
		Handle(http.MethodGet, "/:id", "get an invoice with items and payments", h.Invoices.Get).
		Handle(http.MethodPut, "/:id/items", "replace an invoice's items", h.Invoices.UpdateItems).
		Handle(http.MethodDelete, "/:id", "delete an invoice and its payments", h.Invoices.Delete).
		Handle(http.MethodGet, "/:id/remaining", "remaining amount of an invoice", h.Invoices.Remaining).
		Handle(http.MethodPost, "/:id/refresh-status", "recompute one invoice status", h.Invoices.RefreshStatus)

	payments := NewDomainGroup("payments", "/payments").
		Handle(http.MethodPost, "", "allocate a payment", h.Payments.Allocate).
		Handle(http.MethodDelete, "/:id", "delete a payment", h.Payments.Delete)

	reports := NewDomainGroup("reports", "/reports").
		Handle(http.MethodGet, "/cash-balance", "signed cash position", h.Reports.CashBalance).
		Handle(http.MethodGet, "/clients-outstanding", "sum of client balances", h.Reports.ClientsOutstanding).
		Handle(http.MethodGet, "/suppliers-outstanding", "sum of supplier balances", h.Reports.SuppliersOutstanding).
		Handle(http.MethodGet, "/net-profit", "cash plus receivables minus payables", h.Reports.NetProfit).
		Handle(http.MethodGet, "/profit-margin", "margin of net sales in percent", h.Reports.ProfitMargin).
		Handle(http.MethodGet, "/aging", "open sales invoices by age", h.Reports.Aging).
		Handle(http.MethodGet, "/dashboard", "headline figures", h.Reports.Dashboard).
		Handle(http.MethodGet, "/alerts", "low stock and due invoices", h.Reports.Alerts).
		Handle(http.MethodGet, "/monthly-profit", "sales and purchases per month", h.Reports.MonthlyProfit).
		Handle(http.MethodGet, "/top-products", "best selling products", h.Reports.TopProducts).
		Handle(http.MethodGet, "/top-clients", "largest clients", h.Reports.TopClients).
		Handle(http.MethodGet, "/top-suppliers", "largest suppliers", h.Reports.TopSuppliers)
	reports.Group("weekly", "/weekly").
		Handle(http.MethodPost, "/send", "send the weekly balance report now", h.Reports.SendWeekly)

	audit := NewDomainGroup("audit", "/audit-entries").
		Handle(http.MethodGet, "", "audit trail, newest first", h.MasterData.ListAuditEntries)

	system := NewDomainGroup("system", "/system").
		Handle(http.MethodGet, "/info", "service name, version and uptime", h.System.GetSystemInfo).
		Handle(http.MethodGet, "/ping", "liveness", h.System.Ping)

	return []*DomainGroup{
		counterpartyGroup("client", "/clients", h.Clients),
		counterpartyGroup("supplier", "/suppliers", h.Suppliers),
		products,
		entries,
		invoices,
		payments,
		reports,
		audit,
		system,
	}
}

// MountLedgerAPI registers the health check at the root and every ledger
// group under the versioned prefix. GET <prefix>/system/routes lists them.
func MountLedgerAPI(engine *gin.Engine, handlers LedgerHandlers, opts ...RouterOption) *Router {
	engine.GET("/health", handlers.System.Health)

	r := NewRouter(engine, opts...)
	groups := handlers.Groups()
	for _, g := range groups {
		r.Register(g)
	}
	r.Setup()

	var routes []RouteInfo
	for _, g := range groups {
		routes = append(routes, g.Routes(r.BasePath())...)
	}
	SortRoutes(routes)
	engine.GET(r.BasePath()+"/system/routes", func(c *gin.Context) {
		c.JSON(http.StatusOK, dto.NewSuccessResponse(routes))
	})
	return r
}
