package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// In-memory ledger store used by the service tests.
// Execute snapshots the state and restores it when fn fails, so rollback
// behaves like a database transaction. Transactions are serialized.
// =============================================================================

var errStoreWrite = errors.New("simulated store write failure")

type memoryState struct {
	counterparties map[uuid.UUID]ledger.Counterparty
	invoices       map[uuid.UUID]ledger.Invoice
	payments       map[uuid.UUID]ledger.Payment
	products       map[uuid.UUID]ledger.Product
	entries        map[uuid.UUID]ledger.FinancialEntry
	audit          []ledger.AuditEntry
}

func newMemoryState() *memoryState {
	return &memoryState{
		counterparties: make(map[uuid.UUID]ledger.Counterparty),
		invoices:       make(map[uuid.UUID]ledger.Invoice),
		payments:       make(map[uuid.UUID]ledger.Payment),
		products:       make(map[uuid.UUID]ledger.Product),
		entries:        make(map[uuid.UUID]ledger.FinancialEntry),
	}
}

func (s *memoryState) clone() *memoryState {
	c := newMemoryState()
	for k, v := range s.counterparties {
		c.counterparties[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.entries {
		c.entries[k] = v
	}
	c.audit = append([]ledger.AuditEntry(nil), s.audit...)
	return c
}

func copyInvoice(inv ledger.Invoice) ledger.Invoice {
	inv.Items = append([]ledger.InvoiceItem(nil), inv.Items...)
	return inv
}

type memoryStore struct {
	mu    sync.Mutex
	state *memoryState

	// failPaymentCreateAt makes the n-th payment insert (1-based, counted
	// across the store's life) fail.
	failPaymentCreateAt int
	paymentCreates      int
	// conflictsLeft makes the next n transactions fail with a concurrency conflict.
	conflictsLeft int
	executions    int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: newMemoryState()}
}

func (m *memoryStore) Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions++
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return shared.ErrConcurrencyConflict
	}
	snapshot := m.state.clone()
	if err := fn(&memoryRepos{store: m}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *memoryStore) Repositories() TransactionalRepositories {
	return &memoryRepos{store: m, autoLock: true}
}

var _ TransactionScope = (*memoryStore)(nil)

type memoryRepos struct {
	store    *memoryStore
	autoLock bool
}

func (r *memoryRepos) lock() func() {
	if !r.autoLock {
		return func() {}
	}
	r.store.mu.Lock()
	return r.store.mu.Unlock
}

func (r *memoryRepos) Invoices() ledger.InvoiceRepository { return &memoryInvoices{r} }
func (r *memoryRepos) Payments() ledger.PaymentRepository { return &memoryPayments{r} }
func (r *memoryRepos) Counterparties() ledger.CounterpartyRepository { return &memoryCounterparties{r} }
func (r *memoryRepos) Products() ledger.ProductRepository { return &memoryProducts{r} }
func (r *memoryRepos) FinancialEntries() ledger.FinancialEntryRepository { return &memoryEntries{r} }
func (r *memoryRepos) Rankings() ledger.RankingRepository { return &memoryRankings{r} }
func (r *memoryRepos) AuditLog() ledger.AuditRepository { return &memoryAudit{r} }

// ----------------------------- invoices -----------------------------

type memoryInvoices struct{ *memoryRepos }

func (r *memoryInvoices) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	defer r.lock()()
	inv, ok := r.store.state.invoices[id]
	if !ok {
		return nil, ledger.ErrInvoiceNotFound
	}
	c := copyInvoice(inv)
	return &c, nil
}

func (r *memoryInvoices) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	return r.FindByID(ctx, id)
}

func (r *memoryInvoices) filter(keep func(ledger.Invoice) bool) []ledger.Invoice {
	result := make([]ledger.Invoice, 0)
	for _, inv := range r.store.state.invoices {
		if keep(inv) {
			result = append(result, copyInvoice(inv))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].Number < result[j].Number
	})
	return result
}

func (r *memoryInvoices) FindOpenForUpdate(ctx context.Context, cp ledger.CounterpartyRef, t ledger.InvoiceType) ([]ledger.Invoice, error) {
	defer r.lock()()
	return r.filter(func(inv ledger.Invoice) bool {
		return inv.Counterparty() == cp && inv.Type == t && inv.Status != ledger.InvoiceStatusPaid
	}), nil
}

func (r *memoryInvoices) FindAll(ctx context.Context, f ledger.InvoiceFilter) ([]ledger.Invoice, int64, error) {
	defer r.lock()()
	all := r.filter(func(inv ledger.Invoice) bool {
		if f.Type != nil && inv.Type != *f.Type {
			return false
		}
		if f.Status != nil && inv.Status != *f.Status {
			return false
		}
		if f.Counterparty != nil && inv.Counterparty() != *f.Counterparty {
			return false
		}
		if f.DateFrom != nil && inv.Date.Before(*f.DateFrom) {
			return false
		}
		if f.DateTo != nil && inv.Date.After(*f.DateTo) {
			return false
		}
		return true
	})
	return pageOf(all, f.Filter), int64(len(all)), nil
}

func pageOf[T any](all []T, f shared.Filter) []T {
	start := min(f.Offset(), len(all))
	end := min(start+f.Limit(), len(all))
	return all[start:end]
}

func (r *memoryInvoices) FindOutstandingByType(ctx context.Context, t ledger.InvoiceType) ([]ledger.Invoice, error) {
	defer r.lock()()
	return r.filter(func(inv ledger.Invoice) bool {
		return inv.Type == t && inv.Status != ledger.InvoiceStatusPaid
	}), nil
}

func (r *memoryInvoices) FindRecent(ctx context.Context, limit int) ([]ledger.Invoice, error) {
	defer r.lock()()
	all := r.filter(func(ledger.Invoice) bool { return true })
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date.After(all[j].Date) })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memoryInvoices) FindByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) ([]ledger.Invoice, error) {
	defer r.lock()()
	all := r.filter(func(inv ledger.Invoice) bool { return inv.Counterparty() == cp })
	slices.Reverse(all)
	return all, nil
}

func (r *memoryInvoices) FindIDsByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) ([]uuid.UUID, error) {
	defer r.lock()()
	ids := make([]uuid.UUID, 0)
	for _, inv := range r.filter(func(inv ledger.Invoice) bool { return inv.Counterparty() == cp }) {
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (r *memoryInvoices) FindAllIDs(ctx context.Context) ([]uuid.UUID, error) {
	defer r.lock()()
	ids := make([]uuid.UUID, 0)
	for _, inv := range r.filter(func(ledger.Invoice) bool { return true }) {
		ids = append(ids, inv.ID)
	}
	return ids, nil
}

func (r *memoryInvoices) LastNumberWithPrefix(ctx context.Context, prefix string) (string, error) {
	defer r.lock()()
	last := ""
	for _, inv := range r.store.state.invoices {
		if strings.HasPrefix(inv.Number, prefix) && inv.Number > last {
			last = inv.Number
		}
	}
	return last, nil
}

func (r *memoryInvoices) Create(ctx context.Context, inv *ledger.Invoice) error {
	defer r.lock()()
	for _, existing := range r.store.state.invoices {
		if existing.Number == inv.Number {
			return shared.ErrConcurrencyConflict
		}
	}
	r.store.state.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (r *memoryInvoices) ReplaceItems(ctx context.Context, inv *ledger.Invoice) error {
	defer r.lock()()
	if _, ok := r.store.state.invoices[inv.ID]; !ok {
		return ledger.ErrInvoiceNotFound
	}
	r.store.state.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (r *memoryInvoices) UpdateStatus(ctx context.Context, id uuid.UUID, status ledger.InvoiceStatus) error {
	defer r.lock()()
	inv, ok := r.store.state.invoices[id]
	if !ok {
		return ledger.ErrInvoiceNotFound
	}
	inv.Status = status
	r.store.state.invoices[id] = inv
	return nil
}

func (r *memoryInvoices) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.store.state.invoices[id]; !ok {
		return ledger.ErrInvoiceNotFound
	}
	delete(r.store.state.invoices, id)
	for pid, p := range r.store.state.payments {
		if p.InvoiceID != nil && *p.InvoiceID == id {
			delete(r.store.state.payments, pid)
		}
	}
	return nil
}

func (r *memoryInvoices) SumTotalsByType(ctx context.Context, cp *ledger.CounterpartyRef) (ledger.InvoiceTotals, error) {
	defer r.lock()()
	totals := ledger.InvoiceTotals{}
	for _, inv := range r.store.state.invoices {
		if cp != nil && inv.Counterparty() != *cp {
			continue
		}
		totals[inv.Type] = totals.Get(inv.Type).Add(inv.TotalAmount)
	}
	return totals, nil
}

func (r *memoryInvoices) ListAmounts(ctx context.Context, period ledger.DateRange) ([]ledger.InvoiceAmount, error) {
	defer r.lock()()
	rows := make([]ledger.InvoiceAmount, 0)
	for _, inv := range r.store.state.invoices {
		if !inPeriod(inv.Date, period) {
			continue
		}
		rows = append(rows, ledger.InvoiceAmount{Type: inv.Type, Date: inv.Date, TotalAmount: inv.TotalAmount})
	}
	return rows, nil
}

func inPeriod(date time.Time, period ledger.DateRange) bool {
	if period.From != nil && date.Before(*period.From) {
		return false
	}
	if period.To != nil && date.After(*period.To) {
		return false
	}
	return true
}

// ----------------------------- payments -----------------------------

type memoryPayments struct{ *memoryRepos }

func (r *memoryPayments) sorted(keep func(ledger.Payment) bool) []ledger.Payment {
	result := make([]ledger.Payment, 0)
	for _, p := range r.store.state.payments {
		if keep(p) {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result
}

func (r *memoryPayments) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Payment, error) {
	defer r.lock()()
	p, ok := r.store.state.payments[id]
	if !ok {
		return nil, ledger.ErrPaymentNotFound
	}
	return &p, nil
}

func (r *memoryPayments) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]ledger.Payment, error) {
	defer r.lock()()
	return r.sorted(func(p ledger.Payment) bool { return p.InvoiceID != nil && *p.InvoiceID == invoiceID }), nil
}

func (r *memoryPayments) FindByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) ([]ledger.Payment, error) {
	defer r.lock()()
	return r.sorted(func(p ledger.Payment) bool { return p.Counterparty() == cp }), nil
}

func (r *memoryPayments) Create(ctx context.Context, p *ledger.Payment) error {
	defer r.lock()()
	r.store.paymentCreates++
	if r.store.failPaymentCreateAt > 0 && r.store.paymentCreates == r.store.failPaymentCreateAt {
		return errStoreWrite
	}
	r.store.state.payments[p.ID] = *p
	return nil
}

func (r *memoryPayments) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.store.state.payments[id]; !ok {
		return ledger.ErrPaymentNotFound
	}
	delete(r.store.state.payments, id)
	return nil
}

func (r *memoryPayments) DeleteByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) error {
	defer r.lock()()
	for id, p := range r.store.state.payments {
		if p.Counterparty() == cp {
			delete(r.store.state.payments, id)
		}
	}
	return nil
}

func (r *memoryPayments) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	defer r.lock()()
	sum := decimal.Zero
	for _, p := range r.store.state.payments {
		if p.InvoiceID != nil && *p.InvoiceID == invoiceID {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *memoryPayments) SumByInvoices(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	defer r.lock()()
	wanted := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	sums := make(map[uuid.UUID]decimal.Decimal)
	for _, p := range r.store.state.payments {
		if p.InvoiceID != nil && wanted[*p.InvoiceID] {
			sums[*p.InvoiceID] = sums[*p.InvoiceID].Add(p.Amount)
		}
	}
	return sums, nil
}

func (r *memoryPayments) SumByCounterparty(ctx context.Context, cp ledger.CounterpartyRef) (decimal.Decimal, error) {
	defer r.lock()()
	sum := decimal.Zero
	for _, p := range r.store.state.payments {
		if p.Counterparty() == cp {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *memoryPayments) SumByCounterpartyKind(ctx context.Context, kind ledger.CounterpartyKind) (decimal.Decimal, error) {
	defer r.lock()()
	sum := decimal.Zero
	for _, p := range r.store.state.payments {
		if !p.Counterparty().IsZero() && p.Counterparty().Kind == kind {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

func (r *memoryPayments) SumLinkedByInvoiceType(ctx context.Context) (ledger.InvoiceTotals, error) {
	defer r.lock()()
	totals := ledger.InvoiceTotals{}
	for _, p := range r.store.state.payments {
		if p.InvoiceID == nil {
			continue
		}
		inv, ok := r.store.state.invoices[*p.InvoiceID]
		if !ok {
			continue
		}
		totals[inv.Type] = totals.Get(inv.Type).Add(p.Amount)
	}
	return totals, nil
}

func (r *memoryPayments) SumUnlinked(ctx context.Context) (decimal.Decimal, error) {
	defer r.lock()()
	sum := decimal.Zero
	for _, p := range r.store.state.payments {
		if p.InvoiceID == nil {
			sum = sum.Add(p.Amount)
		}
	}
	return sum, nil
}

// --------------------------- counterparties ---------------------------

type memoryCounterparties struct{ *memoryRepos }

func (r *memoryCounterparties) FindByID(ctx context.Context, ref ledger.CounterpartyRef) (*ledger.Counterparty, error) {
	defer r.lock()()
	cp, ok := r.store.state.counterparties[ref.ID]
	if !ok || cp.Kind != ref.Kind {
		return nil, ledger.ErrCounterpartyNotFound
	}
	return &cp, nil
}

func (r *memoryCounterparties) FindByIDForUpdate(ctx context.Context, ref ledger.CounterpartyRef) (*ledger.Counterparty, error) {
	return r.FindByID(ctx, ref)
}

func (r *memoryCounterparties) FindAll(ctx context.Context, kind ledger.CounterpartyKind) ([]ledger.Counterparty, error) {
	defer r.lock()()
	result := make([]ledger.Counterparty, 0)
	for _, cp := range r.store.state.counterparties {
		if cp.Kind == kind {
			result = append(result, cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (r *memoryCounterparties) FindNames(ctx context.Context, kind ledger.CounterpartyKind, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	defer r.lock()()
	names := make(map[uuid.UUID]string)
	for _, id := range ids {
		if cp, ok := r.store.state.counterparties[id]; ok && cp.Kind == kind {
			names[id] = cp.Name
		}
	}
	return names, nil
}

func (r *memoryCounterparties) Create(ctx context.Context, cp *ledger.Counterparty) error {
	defer r.lock()()
	r.store.state.counterparties[cp.ID] = *cp
	return nil
}

func (r *memoryCounterparties) Update(ctx context.Context, cp *ledger.Counterparty) error {
	defer r.lock()()
	existing, ok := r.store.state.counterparties[cp.ID]
	if !ok || existing.Kind != cp.Kind {
		return ledger.ErrCounterpartyNotFound
	}
	r.store.state.counterparties[cp.ID] = *cp
	return nil
}

func (r *memoryCounterparties) Delete(ctx context.Context, ref ledger.CounterpartyRef) error {
	defer r.lock()()
	delete(r.store.state.counterparties, ref.ID)
	return nil
}

// ----------------------------- products -----------------------------

type memoryProducts struct{ *memoryRepos }

func (r *memoryProducts) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Product, error) {
	defer r.lock()()
	p, ok := r.store.state.products[id]
	if !ok {
		return nil, ledger.ErrProductNotFound
	}
	return &p, nil
}

func (r *memoryProducts) FindByIDsForUpdate(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ledger.Product, error) {
	defer r.lock()()
	result := make(map[uuid.UUID]*ledger.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.store.state.products[id]; ok {
			p := p
			result[id] = &p
		}
	}
	return result, nil
}

func (r *memoryProducts) FindLowStock(ctx context.Context, threshold int) ([]ledger.Product, error) {
	defer r.lock()()
	result := make([]ledger.Product, 0)
	for _, p := range r.store.state.products {
		if p.Quantity < threshold {
			result = append(result, p)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Quantity < result[j].Quantity })
	return result, nil
}

func (r *memoryProducts) FindAll(ctx context.Context, f ledger.ProductFilter) ([]ledger.Product, int64, error) {
	defer r.lock()()
	all := make([]ledger.Product, 0)
	for _, p := range r.store.state.products {
		if f.Name != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			continue
		}
		if f.Color != "" && !strings.Contains(strings.ToLower(p.Color), strings.ToLower(f.Color)) {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].Name > all[j].Name
	})
	return pageOf(all, f.Filter), int64(len(all)), nil
}

func (r *memoryProducts) Create(ctx context.Context, p *ledger.Product) error {
	defer r.lock()()
	r.store.state.products[p.ID] = *p
	return nil
}

func (r *memoryProducts) Update(ctx context.Context, p *ledger.Product) error {
	defer r.lock()()
	if _, ok := r.store.state.products[p.ID]; !ok {
		return ledger.ErrProductNotFound
	}
	r.store.state.products[p.ID] = *p
	return nil
}

func (r *memoryProducts) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	defer r.lock()()
	for _, inv := range r.store.state.invoices {
		for _, item := range inv.Items {
			if item.ProductID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

func (r *memoryProducts) Delete(ctx context.Context, id uuid.UUID) error {
	defer r.lock()()
	if _, ok := r.store.state.products[id]; !ok {
		return ledger.ErrProductNotFound
	}
	delete(r.store.state.products, id)
	return nil
}

func (r *memoryProducts) UpdateQuantity(ctx context.Context, id uuid.UUID, quantity int) error {
	defer r.lock()()
	p, ok := r.store.state.products[id]
	if !ok {
		return ledger.ErrProductNotFound
	}
	p.Quantity = quantity
	r.store.state.products[id] = p
	return nil
}

func (r *memoryProducts) StockSummary(ctx context.Context) (int64, int64, error) {
	defer r.lock()()
	var units int64
	for _, p := range r.store.state.products {
		units += int64(p.Quantity)
	}
	return int64(len(r.store.state.products)), units, nil
}

// ------------------------------- audit -------------------------------

type memoryAudit struct{ *memoryRepos }

func (r *memoryAudit) Record(ctx context.Context, e *ledger.AuditEntry) error {
	defer r.lock()()
	r.store.state.audit = append(r.store.state.audit, *e)
	return nil
}

func (r *memoryAudit) FindAll(ctx context.Context, f ledger.AuditFilter) ([]ledger.AuditEntry, int64, error) {
	defer r.lock()()
	all := make([]ledger.AuditEntry, 0)
	for i := len(r.store.state.audit) - 1; i >= 0; i-- {
		e := r.store.state.audit[i]
		if f.Action != nil && e.Action != *f.Action {
			continue
		}
		if f.EntityID != nil && e.EntityID != *f.EntityID {
			continue
		}
		all = append(all, e)
	}
	return pageOf(all, f.Filter), int64(len(all)), nil
}

// ------------------------- financial entries -------------------------

type memoryEntries struct{ *memoryRepos }

func (r *memoryEntries) Create(ctx context.Context, e *ledger.FinancialEntry) error {
	defer r.lock()()
	r.store.state.entries[e.ID] = *e
	return nil
}

func (r *memoryEntries) SumByType(ctx context.Context) (map[ledger.EntryType]decimal.Decimal, error) {
	defer r.lock()()
	sums := make(map[ledger.EntryType]decimal.Decimal)
	for _, e := range r.store.state.entries {
		sums[e.EntryType] = sums[e.EntryType].Add(e.Amount)
	}
	return sums, nil
}

// ----------------------------- rankings -----------------------------

type memoryRankings struct{ *memoryRepos }

func (r *memoryRankings) TopProducts(ctx context.Context, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	defer r.lock()()
	byProduct := make(map[uuid.UUID]*ledger.RankedItem)
	for _, inv := range r.store.state.invoices {
		if inv.Type != ledger.InvoiceTypeSale || !inPeriod(inv.Date, period) {
			continue
		}
		for _, item := range inv.Items {
			row, ok := byProduct[item.ProductID]
			if !ok {
				row = &ledger.RankedItem{ID: item.ProductID, Name: r.store.state.products[item.ProductID].Name}
				byProduct[item.ProductID] = row
			}
			row.Quantity += int64(item.Quantity)
			row.TotalAmount = row.TotalAmount.Add(item.TotalPrice)
		}
	}
	return rank(byProduct, limit), nil
}

func (r *memoryRankings) TopCounterparties(ctx context.Context, kind ledger.CounterpartyKind, period ledger.DateRange, limit int) ([]ledger.RankedItem, error) {
	defer r.lock()()
	byCounterparty := make(map[uuid.UUID]*ledger.RankedItem)
	for _, inv := range r.store.state.invoices {
		if inv.Type != kind.ChargeType() || !inPeriod(inv.Date, period) {
			continue
		}
		id := inv.Counterparty().ID
		row, ok := byCounterparty[id]
		if !ok {
			row = &ledger.RankedItem{ID: id, Name: r.store.state.counterparties[id].Name}
			byCounterparty[id] = row
		}
		row.Quantity++
		row.TotalAmount = row.TotalAmount.Add(inv.TotalAmount)
	}
	return rank(byCounterparty, limit), nil
}

func rank(rows map[uuid.UUID]*ledger.RankedItem, limit int) []ledger.RankedItem {
	result := make([]ledger.RankedItem, 0, len(rows))
	for _, row := range rows {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].TotalAmount.GreaterThan(result[j].TotalAmount) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ----------------------------- fixtures -----------------------------

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (m *memoryStore) addCounterparty(kind ledger.CounterpartyKind, name string) ledger.CounterpartyRef {
	cp, err := ledger.NewCounterparty(kind, name, "", "", "")
	if err != nil {
		panic(err)
	}
	m.state.counterparties[cp.ID] = *cp
	return ledger.CounterpartyRef{ID: cp.ID, Kind: kind}
}

func (m *memoryStore) addProduct(name string, quantity int) uuid.UUID {
	p, err := ledger.NewProduct(name, "", "", "", quantity, decimal.Zero, decimal.Zero)
	if err != nil {
		panic(err)
	}
	m.state.products[p.ID] = *p
	return p.ID
}

// addInvoice stores a single-line invoice with the given total, bypassing
// stock movements.
func (m *memoryStore) addInvoice(cp ledger.CounterpartyRef, t ledger.InvoiceType, total string, date time.Time, due *time.Time) *ledger.Invoice {
	number := ledger.FormatInvoiceNumber(date, len(m.state.invoices)+1)
	inv, err := ledger.NewInvoice(number, t, cp, date, due, []ledger.ItemInput{
		{ProductID: uuid.New(), Quantity: 1, UnitPrice: dec(total)},
	}, "")
	if err != nil {
		panic(err)
	}
	m.state.invoices[inv.ID] = copyInvoice(*inv)
	return inv
}

// addPayment stores a payment linked to invoiceID (when non-nil) and keeps
// the invoice status consistent.
func (m *memoryStore) addPayment(cp ledger.CounterpartyRef, invoiceID *uuid.UUID, amount string) uuid.UUID {
	p, err := ledger.NewPayment(dec(amount), invoiceID, cp, ledger.PaymentDetails{})
	if err != nil {
		panic(err)
	}
	m.state.payments[p.ID] = *p
	if invoiceID != nil {
		inv := m.state.invoices[*invoiceID]
		paid := decimal.Zero
		for _, existing := range m.state.payments {
			if existing.InvoiceID != nil && *existing.InvoiceID == inv.ID {
				paid = paid.Add(existing.Amount)
			}
		}
		inv.RefreshStatus(paid)
		m.state.invoices[inv.ID] = inv
	}
	return p.ID
}

func (m *memoryStore) invoice(id uuid.UUID) ledger.Invoice {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.invoices[id]
}

func (m *memoryStore) auditActions() []ledger.AuditAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	actions := make([]ledger.AuditAction, len(m.state.audit))
	for i, e := range m.state.audit {
		actions[i] = e.Action
	}
	return actions
}

func (m *memoryStore) paymentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.payments)
}

func (m *memoryStore) productQuantity(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.products[id].Quantity
}

// ------------------------------ doubles ------------------------------

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.events))
	for i, e := range p.events {
		types[i] = e.EventType()
	}
	return types
}

type memoryIdempotency struct {
	mu      sync.Mutex
	keys    map[string]bool
	results map[string][]byte
}

func newMemoryIdempotency() *memoryIdempotency {
	return &memoryIdempotency{keys: make(map[string]bool), results: make(map[string][]byte)}
}

func (m *memoryIdempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *memoryIdempotency) Complete(ctx context.Context, key string, result []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[key] = result
	return nil
}

func (m *memoryIdempotency) Result(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[key]
	return r, ok, nil
}

func (m *memoryIdempotency) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	delete(m.results, key)
	return nil
}

func (m *memoryIdempotency) Close() error { return nil }

var _ shared.IdempotencyStore = (*memoryIdempotency)(nil)

func mustFind(allocs []ledger.Allocation, id uuid.UUID) ledger.Allocation {
	for _, a := range allocs {
		if a.InvoiceID != nil && *a.InvoiceID == id {
			return a
		}
	}
	panic(fmt.Sprintf("no allocation for invoice %s", id))
}
