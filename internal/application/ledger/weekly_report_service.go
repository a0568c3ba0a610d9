package ledger

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// NoOutstandingMessage is sent when no client owes anything
const NoOutstandingMessage = "No outstanding balances this week."

// WeeklyReportService compiles what clients owe and pushes the summary to a
// notifier. It only reads the ledger.
type WeeklyReportService struct {
	scope    TransactionScope
	notifier Notifier
	currency string
	printer  *message.Printer
	metrics  Metrics
	logger   *zap.Logger
	now      func() time.Time
}

// WeeklyReportOption is a functional option for configuring WeeklyReportService
type WeeklyReportOption func(*WeeklyReportService)

// WithCurrencyLabel sets the label printed after amounts
func WithCurrencyLabel(label string) WeeklyReportOption {
	return func(s *WeeklyReportService) {
		s.currency = strings.TrimSpace(label)
	}
}

// WithReportLanguage sets the locale amounts are formatted in
func WithReportLanguage(tag language.Tag) WeeklyReportOption {
	return func(s *WeeklyReportService) {
		s.printer = message.NewPrinter(tag)
	}
}

// WithWeeklyReportMetrics sets the metrics recorder
func WithWeeklyReportMetrics(m Metrics) WeeklyReportOption {
	return func(s *WeeklyReportService) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithWeeklyReportLogger sets the logger
func WithWeeklyReportLogger(logger *zap.Logger) WeeklyReportOption {
	return func(s *WeeklyReportService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithWeeklyReportClock sets the clock the report is stamped with
func WithWeeklyReportClock(now func() time.Time) WeeklyReportOption {
	return func(s *WeeklyReportService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewWeeklyReportService creates a new WeeklyReportService
func NewWeeklyReportService(scope TransactionScope, notifier Notifier, opts ...WeeklyReportOption) *WeeklyReportService {
	s := &WeeklyReportService{
		scope:    scope,
		notifier: notifier,
		currency: "EGP",
		printer:  message.NewPrinter(language.English),
		metrics:  noopMetrics{},
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Build lists every client with a positive balance, in name order, and
// renders the summary message.
func (s *WeeklyReportService) Build(ctx context.Context) (*WeeklyReport, error) {
	repos := s.scope.Repositories()
	clients, err := repos.Counterparties().FindAll(ctx, ledger.CounterpartyClient)
	if err != nil {
		return nil, err
	}

	report := &WeeklyReport{
		GeneratedAt: s.now(),
		Lines:       make([]WeeklyReportLine, 0),
		Total:       decimal.Zero,
	}
	for _, client := range clients {
		balance, err := counterpartyBalance(ctx, repos, ledger.CounterpartyRef{ID: client.ID, Kind: client.Kind})
		if err != nil {
			return nil, err
		}
		if !balance.IsPositive() {
			continue
		}
		report.Lines = append(report.Lines, WeeklyReportLine{
			ClientID:   client.ID,
			ClientName: client.Name,
			Balance:    balance,
		})
		report.Total = report.Total.Add(balance)
	}
	report.Total = ledger.RoundMoney(report.Total)
	report.Message = s.render(report)
	return report, nil
}

// Send builds the report and delivers it. A delivery failure is logged and
// reflected in Delivered; it is not returned as an error.
func (s *WeeklyReportService) Send(ctx context.Context) (*WeeklyReport, error) {
	report, err := s.Build(ctx)
	if err != nil {
		s.logger.Error("Failed to build weekly report", zap.Error(err))
		return nil, err
	}

	if s.notifier == nil {
		s.logger.Warn("No notifier configured, weekly report not delivered")
	} else if err := s.notifier.Notify(ctx, report.Message); err != nil {
		s.logger.Error("Failed to deliver weekly report", zap.Error(err))
	} else {
		report.Delivered = true
		s.logger.Info("Weekly report delivered",
			zap.Int("clients", len(report.Lines)),
			zap.String("total", report.Total.String()),
		)
	}
	s.metrics.RecordWeeklyReport(ctx, report.Delivered)
	return report, nil
}

func (s *WeeklyReportService) render(report *WeeklyReport) string {
	if len(report.Lines) == 0 {
		return NoOutstandingMessage
	}
	var b strings.Builder
	b.WriteString("Weekly outstanding balances:\n")
	for _, line := range report.Lines {
		b.WriteString(line.ClientName)
		b.WriteString(": ")
		b.WriteString(s.formatAmount(line.Balance))
		b.WriteString("\n")
	}
	b.WriteString("Total: ")
	b.WriteString(s.formatAmount(report.Total))
	return b.String()
}

// formatAmount groups the whole part in the report locale. The digits come
// from the decimal itself, so large balances keep every cent.
func (s *WeeklyReportService) formatAmount(amount decimal.Decimal) string {
	rounded := ledger.RoundMoney(amount)
	formatted := rounded.StringFixed(ledger.MoneyScale)
	whole, frac, _ := strings.Cut(rounded.Abs().StringFixed(ledger.MoneyScale), ".")
	if units, err := strconv.ParseInt(whole, 10, 64); err == nil {
		cents, _ := strconv.ParseInt(frac, 10, 64)
		formatted = s.printer.Sprint(number.Decimal(units)) + decimalSeparator(s.printer) +
			s.printer.Sprint(number.Decimal(cents, number.MinIntegerDigits(int(ledger.MoneyScale)), number.NoSeparator()))
		if rounded.IsNegative() {
			formatted = "-" + formatted
		}
	}
	if s.currency == "" {
		return formatted
	}
	return formatted + " " + s.currency
}

func decimalSeparator(p *message.Printer) string {
	sample := p.Sprint(number.Decimal(1.5, number.Scale(1)))
	sep := strings.TrimPrefix(sample, p.Sprint(number.Decimal(1)))
	return strings.TrimSuffix(sep, p.Sprint(number.Decimal(5)))
}
