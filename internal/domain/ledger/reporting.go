package ledger

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CashFlows are the aggregated facts the cash balance is computed from
type CashFlows struct {
	// LinkedPayments sums payments linked to invoices, keyed by invoice type
	LinkedPayments InvoiceTotals
	// UnlinkedPayments sums payments with no invoice
	UnlinkedPayments decimal.Decimal
	// Entries sums financial entries by entry type
	Entries map[EntryType]decimal.Decimal
}

// CashBalance classifies linked payments by their invoice type (sale and
// supplier return in, purchase and return out), counts every unlinked
// payment as an outflow and adds income minus expense entries.
func CashBalance(f CashFlows) decimal.Decimal {
	total := decimal.Zero
	for _, t := range AllInvoiceTypes() {
		amount := f.LinkedPayments.Get(t)
		total = total.Add(amount.Mul(decimal.NewFromInt(int64(t.CashDirection()))))
	}
	total = total.Sub(f.UnlinkedPayments)
	for entryType, amount := range f.Entries {
		total = total.Add(amount.Mul(decimal.NewFromInt(int64(entryType.CashDirection()))))
	}
	return RoundMoney(total)
}

// NetProfit = cash balance + clients outstanding - suppliers outstanding
func NetProfit(cash, clientsOutstanding, suppliersOutstanding decimal.Decimal) decimal.Decimal {
	return RoundMoney(cash.Add(clientsOutstanding).Sub(suppliersOutstanding))
}

// ProfitMargin = (net sales - net purchases) / net sales * 100, rounded to two
// places. Zero when there are no net sales.
func ProfitMargin(totals InvoiceTotals) decimal.Decimal {
	netSales := totals.NetSales()
	if netSales.IsZero() {
		return decimal.Zero
	}
	profit := netSales.Sub(totals.NetPurchases())
	return RoundMoney(profit.Div(netSales).Mul(hundred))
}

// AgingBucketSpec describes one day range of the aging report. MaxDays nil
// means unbounded.
type AgingBucketSpec struct {
	Key     string
	Label   string
	MaxDays *int
}

func intPtr(v int) *int { return &v }

// AgingBucketSpecs are the fixed buckets [0,7], (7,30], (30,60], (60,90],
// (90,inf). Invoices not yet due land in the first bucket.
var AgingBucketSpecs = []AgingBucketSpec{
	{Key: "0-7", Label: "0-7 days", MaxDays: intPtr(7)},
	{Key: "8-30", Label: "8-30 days", MaxDays: intPtr(30)},
	{Key: "31-60", Label: "31-60 days", MaxDays: intPtr(60)},
	{Key: "61-90", Label: "61-90 days", MaxDays: intPtr(90)},
	{Key: "90+", Label: "Over 90 days"},
}

// AgingBucketIndex returns the bucket an age in days belongs to. Upper
// bounds are inclusive.
func AgingBucketIndex(ageDays int) int {
	for i, bucket := range AgingBucketSpecs {
		if bucket.MaxDays == nil || ageDays <= *bucket.MaxDays {
			return i
		}
	}
	return len(AgingBucketSpecs) - 1
}

// AgingEntry is one outstanding sale invoice in the aging report
type AgingEntry struct {
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	InvoiceNumber   string          `json:"invoice_number"`
	ClientID        uuid.UUID       `json:"client_id"`
	ClientName      string          `json:"client_name"`
	Date            time.Time       `json:"date"`
	DueDate         *time.Time      `json:"due_date,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	RemainingAmount decimal.Decimal `json:"remaining_amount"`
	AgeDays         int             `json:"age_days"`
}

// AgingBucket holds the invoices of one day range and their remaining total
type AgingBucket struct {
	Key      string          `json:"key"`
	Label    string          `json:"label"`
	Total    decimal.Decimal `json:"total"`
	Invoices []AgingEntry    `json:"invoices"`
}

// AgingReport groups outstanding sale invoices by age
type AgingReport struct {
	AsOf       time.Time       `json:"as_of"`
	Buckets    []AgingBucket   `json:"buckets"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// NewAgingReport creates an empty report with all five buckets present
func NewAgingReport(asOf time.Time) *AgingReport {
	buckets := make([]AgingBucket, len(AgingBucketSpecs))
	for i, bucket := range AgingBucketSpecs {
		buckets[i] = AgingBucket{
			Key:      bucket.Key,
			Label:    bucket.Label,
			Total:    decimal.Zero,
			Invoices: []AgingEntry{},
		}
	}
	return &AgingReport{
		AsOf:       asOf,
		Buckets:    buckets,
		GrandTotal: decimal.Zero,
	}
}

// Add files an entry under its bucket. Entries with nothing remaining are
// ignored.
func (r *AgingReport) Add(entry AgingEntry) {
	if !entry.RemainingAmount.IsPositive() {
		return
	}
	idx := AgingBucketIndex(entry.AgeDays)
	r.Buckets[idx].Invoices = append(r.Buckets[idx].Invoices, entry)
	r.Buckets[idx].Total = RoundMoney(r.Buckets[idx].Total.Add(entry.RemainingAmount))
	r.GrandTotal = RoundMoney(r.GrandTotal.Add(entry.RemainingAmount))
}

// InvoiceAmount is the minimal invoice projection used by period reports
type InvoiceAmount struct {
	Type        InvoiceType
	Date        time.Time
	TotalAmount decimal.Decimal
}

// MonthlyProfit is one row of the monthly profit report
type MonthlyProfit struct {
	Month           string          `json:"month"`
	Sales           decimal.Decimal `json:"sales"`
	Purchases       decimal.Decimal `json:"purchases"`
	Returns         decimal.Decimal `json:"returns"`
	SupplierReturns decimal.Decimal `json:"supplier_returns"`
	NetSales        decimal.Decimal `json:"net_sales"`
	NetPurchases    decimal.Decimal `json:"net_purchases"`
	Profit          decimal.Decimal `json:"profit"`
	ProfitMargin    decimal.Decimal `json:"profit_margin"`
}

// BuildMonthlyProfit groups invoice amounts by calendar month (YYYY-MM) and
// derives net sales, net purchases, profit and margin per month, oldest month
// first.
func BuildMonthlyProfit(rows []InvoiceAmount) []MonthlyProfit {
	byMonth := make(map[string]InvoiceTotals)
	for _, row := range rows {
		month := row.Date.Format("2006-01")
		totals, ok := byMonth[month]
		if !ok {
			totals = InvoiceTotals{}
			byMonth[month] = totals
		}
		totals[row.Type] = totals.Get(row.Type).Add(row.TotalAmount)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	result := make([]MonthlyProfit, 0, len(months))
	for _, m := range months {
		totals := byMonth[m]
		netSales := totals.NetSales()
		netPurchases := totals.NetPurchases()
		result = append(result, MonthlyProfit{
			Month:           m,
			Sales:           RoundMoney(totals.Get(InvoiceTypeSale)),
			Purchases:       RoundMoney(totals.Get(InvoiceTypePurchase)),
			Returns:         RoundMoney(totals.Get(InvoiceTypeReturn)),
			SupplierReturns: RoundMoney(totals.Get(InvoiceTypeSupplierReturn)),
			NetSales:        netSales,
			NetPurchases:    netPurchases,
			Profit:          RoundMoney(netSales.Sub(netPurchases)),
			ProfitMargin:    ProfitMargin(totals),
		})
	}
	return result
}
