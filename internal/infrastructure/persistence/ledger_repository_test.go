package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	appledger "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sqliteFixture struct {
	t     *testing.T
	db    *Database
	scope *GormTransactionScope
	repos appledger.TransactionalRepositories
}

func newSQLiteFixture(t *testing.T) *sqliteFixture {
	t.Helper()
	db, err := NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	scope := db.TransactionScope()
	return &sqliteFixture{t: t, db: db, scope: scope, repos: scope.Repositories()}
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (f *sqliteFixture) counterparty(kind ledger.CounterpartyKind, name string) ledger.CounterpartyRef {
	cp, err := ledger.NewCounterparty(kind, name, "", "", "")
	require.NoError(f.t, err)
	require.NoError(f.t, f.repos.Counterparties().Create(context.Background(), cp))
	return ledger.CounterpartyRef{ID: cp.ID, Kind: kind}
}

func (f *sqliteFixture) product(name string, qty int) *ledger.Product {
	p, err := ledger.NewProduct(name, "", "", "", qty, decimal.Zero, decimal.Zero)
	require.NoError(f.t, err)
	require.NoError(f.t, f.repos.Products().Create(context.Background(), p))
	return p
}

func (f *sqliteFixture) invoice(number string, typ ledger.InvoiceType, cp ledger.CounterpartyRef, date time.Time, productID uuid.UUID, qty int, price string) *ledger.Invoice {
	inv, err := ledger.NewInvoice(number, typ, cp, date, nil,
		[]ledger.ItemInput{{ProductID: productID, Quantity: qty, UnitPrice: money(price)}}, "")
	require.NoError(f.t, err)
	require.NoError(f.t, f.repos.Invoices().Create(context.Background(), inv))
	return inv
}

func (f *sqliteFixture) pay(amount string, invoiceID *uuid.UUID, cp ledger.CounterpartyRef) *ledger.Payment {
	p, err := ledger.NewPayment(money(amount), invoiceID, cp, ledger.PaymentDetails{PaymentDate: day(2024, 3, 10)})
	require.NoError(f.t, err)
	require.NoError(f.t, f.repos.Payments().Create(context.Background(), p))
	return p
}

func TestGormInvoiceRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	client := f.counterparty(ledger.CounterpartyClient, "Nile Prints")
	prod := f.product("Mug", 100)

	a := f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 2, "50.00")
	f.invoice("INV-20240301-0002", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 1, "20.00")

	t.Run("FindByID loads items", func(t *testing.T) {
		got, err := f.repos.Invoices().FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, money("100.00").Equal(got.TotalAmount))
		require.Len(t, got.Items, 1)
		assert.Equal(t, prod.ID, got.Items[0].ProductID)
		assert.Equal(t, 2, got.Items[0].Quantity)
	})

	t.Run("FindByID missing", func(t *testing.T) {
		_, err := f.repos.Invoices().FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
	})

	t.Run("LastNumberWithPrefix returns highest", func(t *testing.T) {
		last, err := f.repos.Invoices().LastNumberWithPrefix(ctx, "INV-20240301-")
		require.NoError(t, err)
		assert.Equal(t, "INV-20240301-0002", last)

		none, err := f.repos.Invoices().LastNumberWithPrefix(ctx, "INV-20991231-")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("duplicate number is a concurrency conflict", func(t *testing.T) {
		dup, err := ledger.NewInvoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), nil, nil, "")
		require.NoError(t, err)
		err = f.repos.Invoices().Create(ctx, dup)
		assert.ErrorIs(t, err, ledger.ErrConcurrencyConflict)
	})

	t.Run("SumTotalsByType", func(t *testing.T) {
		totals, err := f.repos.Invoices().SumTotalsByType(ctx, &client)
		require.NoError(t, err)
		assert.True(t, money("120.00").Equal(totals.Get(ledger.InvoiceTypeSale)))
		assert.True(t, totals.Get(ledger.InvoiceTypePurchase).IsZero())
	})

	t.Run("UpdateStatus", func(t *testing.T) {
		require.NoError(t, f.repos.Invoices().UpdateStatus(ctx, a.ID, ledger.InvoiceStatusPartial))
		got, err := f.repos.Invoices().FindByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, ledger.InvoiceStatusPartial, got.Status)

		assert.ErrorIs(t, f.repos.Invoices().UpdateStatus(ctx, uuid.New(), ledger.InvoiceStatusPaid), ledger.ErrInvoiceNotFound)
	})
}

func TestGormInvoiceRepository_FindOpenForUpdate_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	client := f.counterparty(ledger.CounterpartyClient, "Delta Stationery")
	other := f.counterparty(ledger.CounterpartyClient, "Other")
	prod := f.product("Pen", 100)

	newer := f.invoice("INV-20240305-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 5), prod.ID, 1, "10.00")
	older := f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 1, "10.00")
	paid := f.invoice("INV-20240302-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 2), prod.ID, 1, "10.00")
	require.NoError(t, f.repos.Invoices().UpdateStatus(ctx, paid.ID, ledger.InvoiceStatusPaid))
	f.invoice("INV-20240303-0001", ledger.InvoiceTypeReturn, client, day(2024, 3, 3), prod.ID, 1, "10.00")
	f.invoice("INV-20240303-0002", ledger.InvoiceTypeSale, other, day(2024, 3, 3), prod.ID, 1, "10.00")

	err := f.scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		open, err := repos.Invoices().FindOpenForUpdate(ctx, client, ledger.InvoiceTypeSale)
		require.NoError(t, err)
		require.Len(t, open, 2)
		assert.Equal(t, older.ID, open[0].ID)
		assert.Equal(t, newer.ID, open[1].ID)
		return nil
	})
	require.NoError(t, err)
}

func TestGormPaymentRepository_Sums_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	client := f.counterparty(ledger.CounterpartyClient, "Client")
	supplier := f.counterparty(ledger.CounterpartySupplier, "Supplier")
	prod := f.product("Cup", 100)

	sale := f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 3, "33.33")
	purchase := f.invoice("INV-20240301-0002", ledger.InvoiceTypePurchase, supplier, day(2024, 3, 1), prod.ID, 1, "80.00")

	f.pay("10.10", &sale.ID, client)
	f.pay("20.20", &sale.ID, client)
	f.pay("30.00", &purchase.ID, supplier)
	f.pay("5.55", nil, client)

	payments := f.repos.Payments()

	paid, err := payments.SumByInvoice(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, money("30.30").Equal(paid))

	byInvoice, err := payments.SumByInvoices(ctx, []uuid.UUID{sale.ID, purchase.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byInvoice, 2)
	assert.True(t, money("30.00").Equal(byInvoice[purchase.ID]))

	attributed, err := payments.SumByCounterparty(ctx, client)
	require.NoError(t, err)
	assert.True(t, money("35.85").Equal(attributed))

	clients, err := payments.SumByCounterpartyKind(ctx, ledger.CounterpartyClient)
	require.NoError(t, err)
	assert.True(t, money("35.85").Equal(clients))

	linked, err := payments.SumLinkedByInvoiceType(ctx)
	require.NoError(t, err)
	assert.True(t, money("30.30").Equal(linked.Get(ledger.InvoiceTypeSale)))
	assert.True(t, money("30.00").Equal(linked.Get(ledger.InvoiceTypePurchase)))

	unlinked, err := payments.SumUnlinked(ctx)
	require.NoError(t, err)
	assert.True(t, money("5.55").Equal(unlinked))

	none, err := payments.SumByInvoice(ctx, uuid.New())
	require.NoError(t, err)
	assert.True(t, none.IsZero())
}

func TestGormInvoiceRepository_DeleteCascades_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	client := f.counterparty(ledger.CounterpartyClient, "Client")
	prod := f.product("Cup", 100)
	inv := f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 1, "40.00")
	p := f.pay("15.00", &inv.ID, client)

	require.NoError(t, f.repos.Invoices().Delete(ctx, inv.ID))

	_, err := f.repos.Invoices().FindByID(ctx, inv.ID)
	assert.ErrorIs(t, err, ledger.ErrInvoiceNotFound)
	_, err = f.repos.Payments().FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
	assert.ErrorIs(t, f.repos.Invoices().Delete(ctx, inv.ID), ledger.ErrInvoiceNotFound)
}

func TestGormProductRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	low := f.product("Sticker", 3)
	high := f.product("Poster", 40)

	locked, err := f.repos.Products().FindByIDsForUpdate(ctx, []uuid.UUID{high.ID, low.ID})
	require.NoError(t, err)
	assert.Len(t, locked, 2)

	_, err = f.repos.Products().FindByIDsForUpdate(ctx, []uuid.UUID{low.ID, uuid.New()})
	assert.ErrorIs(t, err, ledger.ErrProductNotFound)

	lows, err := f.repos.Products().FindLowStock(ctx, 10)
	require.NoError(t, err)
	require.Len(t, lows, 1)
	assert.Equal(t, low.ID, lows[0].ID)

	require.NoError(t, f.repos.Products().UpdateQuantity(ctx, low.ID, 12))
	products, units, err := f.repos.Products().StockSummary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), products)
	assert.Equal(t, int64(52), units)
}

func TestGormCounterpartyRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	b := f.counterparty(ledger.CounterpartyClient, "Beta")
	a := f.counterparty(ledger.CounterpartyClient, "Alpha")
	s := f.counterparty(ledger.CounterpartySupplier, "Gamma")

	all, err := f.repos.Counterparties().FindAll(ctx, ledger.CounterpartyClient)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Alpha", all[0].Name)

	names, err := f.repos.Counterparties().FindNames(ctx, ledger.CounterpartyClient, []uuid.UUID{a.ID, b.ID, s.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uuid.UUID]string{a.ID: "Alpha", b.ID: "Beta"}, names)

	_, err = f.repos.Counterparties().FindByID(ctx, ledger.CounterpartyRef{ID: s.ID, Kind: ledger.CounterpartyClient})
	assert.ErrorIs(t, err, ledger.ErrCounterpartyNotFound)

	require.NoError(t, f.repos.Counterparties().Delete(ctx, s))
	assert.ErrorIs(t, f.repos.Counterparties().Delete(ctx, s), ledger.ErrCounterpartyNotFound)
}

func TestGormProductRepository_ListEditDelete_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	mug := f.product("Mug", 5)
	f.product("Mug_100%", 1)
	plate := f.product("Plate", 2)
	require.NoError(t, plate.Update("Plate", "Blue", "", ledger.ProductTypePrinted, 2, money("1"), money("2.5")))
	require.NoError(t, f.repos.Products().Update(ctx, plate))

	byName := ledger.ProductFilter{Filter: shared.Filter{OrderBy: "name", OrderDir: "asc"}}
	all, total, err := f.repos.Products().FindAll(ctx, byName)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"Mug", "Mug_100%", "Plate"}, []string{all[0].Name, all[1].Name, all[2].Name})

	byName.Name = "mug_"
	literal, total, err := f.repos.Products().FindAll(ctx, byName)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total, "underscore matches literally")
	assert.Equal(t, "Mug_100%", literal[0].Name)

	typed, _, err := f.repos.Products().FindAll(ctx, ledger.ProductFilter{Color: "BLU", Type: ledger.ProductTypePrinted})
	require.NoError(t, err)
	require.Len(t, typed, 1)
	assert.Equal(t, plate.ID, typed[0].ID)
	assert.True(t, typed[0].PrintingCost.Equal(money("2.50")))

	paged, total, err := f.repos.Products().FindAll(ctx, ledger.ProductFilter{Filter: shared.Filter{Page: 2, PageSize: 2, OrderBy: "name", OrderDir: "asc"}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, paged, 1)
	assert.Equal(t, plate.ID, paged[0].ID)

	client := f.counterparty(ledger.CounterpartyClient, "Acme")
	f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), mug.ID, 1, "10.00")

	used, err := f.repos.Products().IsReferenced(ctx, mug.ID)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = f.repos.Products().IsReferenced(ctx, plate.ID)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, f.repos.Products().Delete(ctx, plate.ID))
	assert.ErrorIs(t, f.repos.Products().Delete(ctx, plate.ID), ledger.ErrProductNotFound)
	assert.ErrorIs(t, f.repos.Products().Update(ctx, plate), ledger.ErrProductNotFound)
}

func TestGormCounterpartyRepository_Update_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	ref := f.counterparty(ledger.CounterpartySupplier, "Paper Co")

	cp, err := f.repos.Counterparties().FindByID(ctx, ref)
	require.NoError(t, err)
	require.NoError(t, cp.Update("Paper Company", "0100", "sales@paper.example", "Giza"))
	require.NoError(t, f.repos.Counterparties().Update(ctx, cp))

	got, err := f.repos.Counterparties().FindByID(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "Paper Company", got.Name)
	assert.Equal(t, "sales@paper.example", got.Email)
	assert.Equal(t, "Giza", got.Address)

	cp.Kind = ledger.CounterpartyClient
	assert.ErrorIs(t, f.repos.Counterparties().Update(ctx, cp), ledger.ErrCounterpartyNotFound)
}

func TestGormAuditRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	productID := uuid.New()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	record := func(action ledger.AuditAction, entityID uuid.UUID, details map[string]any, at time.Time) *ledger.AuditEntry {
		entry, err := ledger.NewAuditEntry(action, entityID, details, "req-1")
		require.NoError(t, err)
		entry.CreatedAt = at
		require.NoError(t, f.repos.AuditLog().Record(ctx, entry))
		return entry
	}
	record(ledger.AuditProductCreate, productID, map[string]any{"name": "Mug"}, base)
	record(ledger.AuditProductAdjust, productID, map[string]any{"delta": 3}, base.Add(time.Minute))
	last := record(ledger.AuditClientCreate, uuid.New(), nil, base.Add(2*time.Minute))

	all, total, err := f.repos.AuditLog().FindAll(ctx, ledger.AuditFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, all, 3)
	assert.Equal(t, last.ID, all[0].ID)
	assert.Empty(t, all[0].Details)
	assert.Equal(t, "req-1", all[0].RequestID)
	assert.EqualValues(t, 3, all[1].Details["delta"])
	assert.Equal(t, "Mug", all[2].Details["name"])

	action := ledger.AuditProductCreate
	creates, total, err := f.repos.AuditLog().FindAll(ctx, ledger.AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, productID, creates[0].EntityID)

	_, total, err = f.repos.AuditLog().FindAll(ctx, ledger.AuditFilter{EntityID: &productID, Filter: shared.Filter{PageSize: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestGormRankingRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	c1 := f.counterparty(ledger.CounterpartyClient, "Small")
	c2 := f.counterparty(ledger.CounterpartyClient, "Big")
	mug := f.product("Mug", 100)
	pen := f.product("Pen", 100)

	f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, c1, day(2024, 3, 1), mug.ID, 1, "10.00")
	f.invoice("INV-20240301-0002", ledger.InvoiceTypeSale, c2, day(2024, 3, 1), pen.ID, 10, "10.00")
	f.invoice("INV-20240301-0003", ledger.InvoiceTypeSale, c2, day(2024, 3, 2), mug.ID, 2, "10.00")
	f.invoice("INV-20240401-0001", ledger.InvoiceTypeSale, c1, day(2024, 4, 1), mug.ID, 50, "10.00")

	march := ledger.DateRange{From: ptr(day(2024, 3, 1)), To: ptr(day(2024, 3, 31))}

	products, err := f.repos.Rankings().TopProducts(ctx, march, 10)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, pen.ID, products[0].ID)
	assert.Equal(t, int64(10), products[0].Quantity)
	assert.True(t, money("30.00").Equal(products[1].TotalAmount))

	clients, err := f.repos.Rankings().TopCounterparties(ctx, ledger.CounterpartyClient, march, 1)
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Big", clients[0].Name)
	assert.Equal(t, int64(2), clients[0].Quantity)
}

func TestGormFinancialEntryRepository_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	for _, e := range []struct {
		typ    ledger.EntryType
		amount string
	}{
		{ledger.EntryTypeIncome, "100.10"},
		{ledger.EntryTypeIncome, "0.20"},
		{ledger.EntryTypeExpense, "40.00"},
	} {
		entry, err := ledger.NewFinancialEntry(e.typ, money(e.amount), day(2024, 3, 1), "", "")
		require.NoError(t, err)
		require.NoError(t, f.repos.FinancialEntries().Create(ctx, entry))
	}

	sums, err := f.repos.FinancialEntries().SumByType(ctx)
	require.NoError(t, err)
	assert.True(t, money("100.30").Equal(sums[ledger.EntryTypeIncome]))
	assert.True(t, money("40.00").Equal(sums[ledger.EntryTypeExpense]))
	_, hasLoan := sums[ledger.EntryTypeLoan]
	assert.False(t, hasLoan)
}

func TestGormTransactionScope_RollsBack_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	client := f.counterparty(ledger.CounterpartyClient, "Client")
	prod := f.product("Cup", 100)
	inv := f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 1, "40.00")

	errAbort := errors.New("abort")
	err := f.scope.Execute(ctx, func(repos appledger.TransactionalRepositories) error {
		p, err := ledger.NewPayment(money("40.00"), &inv.ID, client, ledger.PaymentDetails{})
		require.NoError(t, err)
		require.NoError(t, repos.Payments().Create(ctx, p))
		require.NoError(t, repos.Invoices().UpdateStatus(ctx, inv.ID, ledger.InvoiceStatusPaid))
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	paid, err := f.repos.Payments().SumByInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.True(t, paid.IsZero())
	got, err := f.repos.Invoices().FindByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPending, got.Status)
}

func TestSettlementService_TargetedOverflow_SQLite(t *testing.T) {
	ctx := context.Background()
	f := newSQLiteFixture(t)
	client := f.counterparty(ledger.CounterpartyClient, "Client")
	prod := f.product("Cup", 100)
	oldest := f.invoice("INV-20240301-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 1), prod.ID, 1, "100.00")
	target := f.invoice("INV-20240305-0001", ledger.InvoiceTypeSale, client, day(2024, 3, 5), prod.ID, 1, "50.00")

	svc := appledger.NewSettlementService(f.scope)

	result, err := svc.AllocatePayment(ctx, appledger.AllocatePaymentCommand{
		Amount: money("120.00"),
		Target: appledger.SettlementTarget{InvoiceID: &target.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PolicyTargetedOverflow, result.Policy)
	assert.True(t, result.UnlinkedAmount.IsZero())

	got, err := f.repos.Invoices().FindByID(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, got.Status)
	got, err = f.repos.Invoices().FindByID(ctx, oldest.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPartial, got.Status)

	remaining, err := svc.ComputeInvoiceRemaining(ctx, oldest.ID)
	require.NoError(t, err)
	assert.True(t, money("30.00").Equal(remaining))

	// A general payment larger than everything owed leaves an unlinked remainder.
	result, err = svc.AllocatePayment(ctx, appledger.AllocatePaymentCommand{
		Amount: money("200.00"),
		Target: appledger.SettlementTarget{Counterparty: &client},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PolicySmallestRemainingFirst, result.Policy)
	assert.True(t, money("170.00").Equal(result.UnlinkedAmount))

	balance, err := svc.ComputeClientBalance(ctx, client.ID)
	require.NoError(t, err)
	assert.True(t, money("-170.00").Equal(balance))
}

func ptr[T any](v T) *T {
	return &v
}
