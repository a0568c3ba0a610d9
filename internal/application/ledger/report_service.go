package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Default report settings
const (
	DefaultLowStockThreshold = 10
	DefaultDueSoonDays       = 7
	DefaultTopLimit          = 10
	recentInvoiceCount       = 5
)

// AlertSettings controls which conditions raise dashboard alerts
type AlertSettings struct {
	LowStockThreshold int
	DueSoonDays       int
}

// ReportService computes the read-only aggregates of the ledger. Every
// figure is derived from invoices, payments and entries at call time.
type ReportService struct {
	scope  TransactionScope
	alerts AlertSettings
	logger *zap.Logger
	now    func() time.Time
}

// ReportServiceOption is a functional option for configuring ReportService
type ReportServiceOption func(*ReportService)

// WithAlertSettings overrides the default alert thresholds
func WithAlertSettings(settings AlertSettings) ReportServiceOption {
	return func(s *ReportService) {
		if settings.LowStockThreshold > 0 {
			s.alerts.LowStockThreshold = settings.LowStockThreshold
		}
		if settings.DueSoonDays > 0 {
			s.alerts.DueSoonDays = settings.DueSoonDays
		}
	}
}

// WithReportLogger sets the logger
func WithReportLogger(logger *zap.Logger) ReportServiceOption {
	return func(s *ReportService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithReportClock sets the clock "today" is taken from
func WithReportClock(now func() time.Time) ReportServiceOption {
	return func(s *ReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewReportService creates a new ReportService
func NewReportService(scope TransactionScope, opts ...ReportServiceOption) *ReportService {
	s := &ReportService{
		scope: scope,
		alerts: AlertSettings{
			LowStockThreshold: DefaultLowStockThreshold,
			DueSoonDays:       DefaultDueSoonDays,
		},
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===================== Headline figures =====================

// ComputeCashBalance returns the signed cash position
func (s *ReportService) ComputeCashBalance(ctx context.Context) (decimal.Decimal, error) {
	repos := s.scope.Repositories()
	linked, err := repos.Payments().SumLinkedByInvoiceType(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum linked payments: %w", err)
	}
	unlinked, err := repos.Payments().SumUnlinked(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum unlinked payments: %w", err)
	}
	entries, err := repos.FinancialEntries().SumByType(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum financial entries: %w", err)
	}
	return ledger.CashBalance(ledger.CashFlows{
		LinkedPayments:   linked,
		UnlinkedPayments: unlinked,
		Entries:          entries,
	}), nil
}

// ComputeClientsOutstanding returns the sum of every client balance
func (s *ReportService) ComputeClientsOutstanding(ctx context.Context) (decimal.Decimal, error) {
	totals, err := s.scope.Repositories().Invoices().SumTotalsByType(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return outstandingByKind(ctx, s.scope.Repositories(), totals, ledger.CounterpartyClient)
}

// ComputeSuppliersOutstanding returns the sum of every supplier balance
func (s *ReportService) ComputeSuppliersOutstanding(ctx context.Context) (decimal.Decimal, error) {
	totals, err := s.scope.Repositories().Invoices().SumTotalsByType(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return outstandingByKind(ctx, s.scope.Repositories(), totals, ledger.CounterpartySupplier)
}

// ComputeNetProfit returns cash balance + clients outstanding - suppliers outstanding
func (s *ReportService) ComputeNetProfit(ctx context.Context) (decimal.Decimal, error) {
	figures, err := s.headline(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return figures.NetProfit, nil
}

// ComputeProfitMargin returns the margin of net sales over net purchases in
// percent, or zero when there are no net sales.
func (s *ReportService) ComputeProfitMargin(ctx context.Context) (decimal.Decimal, error) {
	totals, err := s.scope.Repositories().Invoices().SumTotalsByType(ctx, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.ProfitMargin(totals), nil
}

// headline computes the figures shared by the dashboard and net profit
func (s *ReportService) headline(ctx context.Context) (*DashboardSummary, error) {
	repos := s.scope.Repositories()
	cash, err := s.ComputeCashBalance(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := repos.Invoices().SumTotalsByType(ctx, nil)
	if err != nil {
		return nil, err
	}
	clients, err := outstandingByKind(ctx, repos, totals, ledger.CounterpartyClient)
	if err != nil {
		return nil, err
	}
	suppliers, err := outstandingByKind(ctx, repos, totals, ledger.CounterpartySupplier)
	if err != nil {
		return nil, err
	}
	return &DashboardSummary{
		CashBalance:          cash,
		ClientsOutstanding:   clients,
		SuppliersOutstanding: suppliers,
		NetProfit:            ledger.NetProfit(cash, clients, suppliers),
		ProfitMargin:         ledger.ProfitMargin(totals),
	}, nil
}

// ===================== Aging =====================

// ComputeAgingReport buckets every outstanding sale invoice by the number of
// days since its due date (or its date when it has none) as of today.
func (s *ReportService) ComputeAgingReport(ctx context.Context, today time.Time) (*ledger.AgingReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "report", "aging")
	defer span.End()

	if today.IsZero() {
		today = s.now()
	}
	repos := s.scope.Repositories()
	invoices, err := repos.Invoices().FindOutstandingByType(ctx, ledger.InvoiceTypeSale)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	ids := make([]uuid.UUID, len(invoices))
	clientIDs := make([]uuid.UUID, 0, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
		if inv.ClientID != nil {
			clientIDs = append(clientIDs, *inv.ClientID)
		}
	}
	paid, err := repos.Payments().SumByInvoices(ctx, ids)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	names, err := repos.Counterparties().FindNames(ctx, ledger.CounterpartyClient, clientIDs)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := ledger.NewAgingReport(today)
	for i := range invoices {
		inv := &invoices[i]
		entry := ledger.AgingEntry{
			InvoiceID:       inv.ID,
			InvoiceNumber:   inv.Number,
			Date:            inv.Date,
			DueDate:         inv.DueDate,
			TotalAmount:     inv.TotalAmount,
			RemainingAmount: inv.Remaining(paid[inv.ID]),
			AgeDays:         inv.AgeInDays(today),
		}
		if inv.ClientID != nil {
			entry.ClientID = *inv.ClientID
			entry.ClientName = names[*inv.ClientID]
		}
		report.Add(entry)
	}
	telemetry.SetAttributes(span, "invoice_count", len(invoices))
	telemetry.SetOK(span)
	return report, nil
}

// ===================== Dashboard =====================

// DashboardSummary returns the headline figures, stock totals and the most
// recent invoices.
func (s *ReportService) DashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	summary, err := s.headline(ctx)
	if err != nil {
		return nil, err
	}
	repos := s.scope.Repositories()
	summary.ProductCount, summary.StockUnits, err = repos.Products().StockSummary(ctx)
	if err != nil {
		return nil, err
	}

	recent, err := repos.Invoices().FindRecent(ctx, recentInvoiceCount)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(recent))
	for i, inv := range recent {
		ids[i] = inv.ID
	}
	paid, err := repos.Payments().SumByInvoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	summary.RecentInvoices = make([]InvoiceResponse, len(recent))
	for i := range recent {
		summary.RecentInvoices[i] = toInvoiceResponse(&recent[i], paid[recent[i].ID])
	}
	return summary, nil
}

// Alerts lists low stock products, unpaid sale invoices due soon and overdue
// unpaid sale invoices, as of today.
func (s *ReportService) Alerts(ctx context.Context, today time.Time) ([]Alert, error) {
	if today.IsZero() {
		today = s.now()
	}
	repos := s.scope.Repositories()
	alerts := make([]Alert, 0)

	lowStock, err := repos.Products().FindLowStock(ctx, s.alerts.LowStockThreshold)
	if err != nil {
		return nil, err
	}
	for _, p := range lowStock {
		qty := p.Quantity
		alerts = append(alerts, Alert{
			Kind:      AlertLowStock,
			Message:   fmt.Sprintf("%s is low on stock (%d left)", p.Name, p.Quantity),
			SubjectID: p.ID,
			Quantity:  &qty,
		})
	}

	invoices, err := repos.Invoices().FindOutstandingByType(ctx, ledger.InvoiceTypeSale)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(invoices))
	for _, inv := range invoices {
		if inv.DueDate != nil {
			ids = append(ids, inv.ID)
		}
	}
	paid, err := repos.Payments().SumByInvoices(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range invoices {
		inv := &invoices[i]
		if inv.DueDate == nil {
			continue
		}
		remaining := inv.Remaining(paid[inv.ID])
		if !remaining.IsPositive() {
			continue
		}
		daysLeft := ledger.DaysBetween(today, *inv.DueDate)
		switch {
		case daysLeft < 0:
			alerts = append(alerts, Alert{
				Kind:      AlertOverdue,
				Message:   fmt.Sprintf("Invoice %s is %d days overdue", inv.Number, -daysLeft),
				SubjectID: inv.ID,
				Amount:    &remaining,
				DueDate:   inv.DueDate,
			})
		case daysLeft <= s.alerts.DueSoonDays:
			alerts = append(alerts, Alert{
				Kind:      AlertDueSoon,
				Message:   fmt.Sprintf("Invoice %s is due in %d days", inv.Number, daysLeft),
				SubjectID: inv.ID,
				Amount:    &remaining,
				DueDate:   inv.DueDate,
			})
		}
	}
	return alerts, nil
}

// ===================== Period reports =====================

// MonthlyProfitReport returns per-month sales, purchases, returns and profit
func (s *ReportService) MonthlyProfitReport(ctx context.Context, period ledger.DateRange) ([]ledger.MonthlyProfit, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	rows, err := s.scope.Repositories().Invoices().ListAmounts(ctx, period)
	if err != nil {
		return nil, err
	}
	return ledger.BuildMonthlyProfit(rows), nil
}

// TopProducts ranks products by sale revenue
func (s *ReportService) TopProducts(ctx context.Context, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	return s.scope.Repositories().Rankings().TopProducts(ctx, period, normalizeLimit(limit))
}

// TopClients ranks clients by sale totals
func (s *ReportService) TopClients(ctx context.Context, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	return s.scope.Repositories().Rankings().TopCounterparties(ctx, ledger.CounterpartyClient, period, normalizeLimit(limit))
}

// TopSuppliers ranks suppliers by purchase totals
func (s *ReportService) TopSuppliers(ctx context.Context, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}
	return s.scope.Repositories().Rankings().TopCounterparties(ctx, ledger.CounterpartySupplier, period, normalizeLimit(limit))
}

// ===================== Statements =====================

// CounterpartyStatement lists a client's or supplier's invoices with their
// remaining amounts, its payments and its balance.
func (s *ReportService) CounterpartyStatement(ctx context.Context, ref ledger.CounterpartyRef) (*StatementResponse, error) {
	repos := s.scope.Repositories()
	cp, err := repos.Counterparties().FindByID(ctx, ref)
	if err != nil {
		return nil, err
	}
	balance, err := counterpartyBalance(ctx, repos, ref)
	if err != nil {
		return nil, err
	}

	invoices, err := repos.Invoices().FindByCounterparty(ctx, ref)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(invoices))
	for i, inv := range invoices {
		ids[i] = inv.ID
	}
	paid, err := repos.Payments().SumByInvoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	payments, err := repos.Payments().FindByCounterparty(ctx, ref)
	if err != nil {
		return nil, err
	}

	stmt := &StatementResponse{
		Counterparty: toCounterpartyResponse(cp),
		Balance:      balance,
		Invoices:     make([]InvoiceResponse, len(invoices)),
		Payments:     make([]PaymentResponse, len(payments)),
	}
	for i := range invoices {
		stmt.Invoices[i] = toInvoiceResponse(&invoices[i], paid[invoices[i].ID])
	}
	sort.SliceStable(payments, func(i, j int) bool {
		return payments[i].PaymentDate.After(payments[j].PaymentDate)
	})
	for i := range payments {
		stmt.Payments[i] = toPaymentResponse(&payments[i])
	}
	return stmt, nil
}

func validatePeriod(period ledger.DateRange) error {
	if period.From != nil && period.To != nil && period.To.Before(*period.From) {
		return ledger.NewInvalidInputError("end of period is before its start")
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return DefaultTopLimit
	}
	return limit
}
