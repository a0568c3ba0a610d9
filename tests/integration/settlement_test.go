package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ledgerapp "github.com/erp/ledger/internal/application/ledger"
	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/event"
	"github.com/erp/ledger/tests/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type ledgerFixture struct {
	db         *TestDB
	masterData *ledgerapp.MasterDataService
	invoices   *ledgerapp.InvoiceService
	settlement *ledgerapp.SettlementService
	reports    *ledgerapp.ReportService
	events     *testutil.EventRecorder
}

func newLedgerFixture(t *testing.T, tdb *TestDB) *ledgerFixture {
	t.Helper()
	log := zaptest.NewLogger(t)

	recorder := testutil.NewEventRecorder()
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(recorder,
		ledger.EventTypePaymentAllocated,
		ledger.EventTypePaymentDeleted,
		ledger.EventTypeInvoiceStatusChanged,
	)

	scope := tdb.TransactionScope()
	return &ledgerFixture{
		db:         tdb,
		masterData: ledgerapp.NewMasterDataService(scope, log),
		invoices:   ledgerapp.NewInvoiceService(scope, ledgerapp.WithInvoiceEventPublisher(bus)),
		settlement: ledgerapp.NewSettlementService(scope,
			ledgerapp.WithSettlementEventPublisher(bus),
			ledgerapp.WithSettlementLogger(log),
			ledgerapp.WithSettlementRetryPolicy(ledgerapp.RetryPolicy{MaxRetries: 10, Backoff: 5 * time.Millisecond}),
		),
		reports: ledgerapp.NewReportService(scope),
		events:  recorder,
	}
}

func (f *ledgerFixture) counterparty(t *testing.T, kind ledger.CounterpartyKind, name string) uuid.UUID {
	t.Helper()
	cp, err := f.masterData.CreateCounterparty(context.Background(), ledgerapp.CreateCounterpartyCommand{Kind: kind, Name: name})
	require.NoError(t, err)
	return cp.ID
}

func (f *ledgerFixture) product(t *testing.T, quantity int) uuid.UUID {
	t.Helper()
	p, err := f.masterData.CreateProduct(context.Background(), ledgerapp.CreateProductCommand{Name: "Mug", Quantity: quantity})
	require.NoError(t, err)
	return p.ID
}

func (f *ledgerFixture) invoice(t *testing.T, typ ledger.InvoiceType, counterparty, product uuid.UUID, price string, date time.Time) *ledgerapp.InvoiceResponse {
	t.Helper()
	inv, err := f.invoices.CreateInvoice(context.Background(), ledgerapp.CreateInvoiceCommand{
		Type:           typ,
		CounterpartyID: counterparty,
		Date:           date,
		Items:          []ledger.ItemInput{{ProductID: product, Quantity: 1, UnitPrice: testutil.Money(t, price)}},
	})
	require.NoError(t, err)
	return inv
}

func (f *ledgerFixture) paidOn(t *testing.T, invoiceID uuid.UUID) decimal.Decimal {
	t.Helper()
	var paid decimal.Decimal
	err := f.db.DB.Raw(`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id = ?`, invoiceID).Row().Scan(&paid)
	require.NoError(t, err)
	return paid
}

func TestConcurrentDirectPaymentsNeverOverpay(t *testing.T) {
	tdb := NewTestDB(t)
	f := newLedgerFixture(t, tdb)
	ctx := testutil.ContextWithTimeout(t, time.Minute)

	client := f.counterparty(t, ledger.CounterpartyClient, "Acme")
	product := f.product(t, 100)
	inv := f.invoice(t, ledger.InvoiceTypeSale, client, product, "100.00", testutil.Day(2024, 1, 1))

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
		other     []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.settlement.AllocatePayment(ctx, ledgerapp.AllocatePaymentCommand{
				Amount: decimal.NewFromInt(20),
				Target: ledgerapp.SettlementTarget{InvoiceID: &inv.ID},
				Strict: true,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ledger.ErrOverpayment):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	require.Empty(t, other)
	assert.Equal(t, 5, succeeded)
	assert.Equal(t, 5, rejected)
	assert.True(t, f.paidOn(t, inv.ID).Equal(decimal.NewFromInt(100)))

	got, err := f.invoices.GetInvoice(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.InvoiceStatusPaid, got.Status)
	assert.True(t, got.RemainingAmount.IsZero())

	assert.Equal(t, 5, f.events.CountOf(ledger.EventTypePaymentAllocated))
}

func TestConcurrentGeneralPaymentsSpillToUnlinked(t *testing.T) {
	tdb := NewTestDB(t)
	f := newLedgerFixture(t, tdb)
	ctx := testutil.ContextWithTimeout(t, time.Minute)

	client := f.counterparty(t, ledger.CounterpartyClient, "Acme")
	product := f.product(t, 100)
	invoices := []*ledgerapp.InvoiceResponse{
		f.invoice(t, ledger.InvoiceTypeSale, client, product, "50.00", testutil.Day(2024, 1, 1)),
		f.invoice(t, ledger.InvoiceTypeSale, client, product, "70.00", testutil.Day(2024, 1, 2)),
		f.invoice(t, ledger.InvoiceTypeSale, client, product, "80.00", testutil.Day(2024, 1, 3)),
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.settlement.AllocatePayment(ctx, ledgerapp.AllocatePaymentCommand{
				Amount: decimal.NewFromInt(30),
				Target: ledgerapp.SettlementTarget{
					Counterparty: &ledger.CounterpartyRef{ID: client, Kind: ledger.CounterpartyClient},
				},
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	for _, inv := range invoices {
		assert.True(t, f.paidOn(t, inv.ID).Equal(inv.TotalAmount), inv.Number)
	}

	var unlinked decimal.Decimal
	err := tdb.DB.Raw(`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id IS NULL AND client_id = ?`, client).Row().Scan(&unlinked)
	require.NoError(t, err)
	assert.True(t, unlinked.Equal(decimal.NewFromInt(40)), unlinked.String())

	balance, err := f.settlement.ComputeClientBalance(ctx, client)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(-40)), balance.String())

	// unlinked payments count as outflow whatever their counterparty
	cash, err := f.reports.ComputeCashBalance(ctx)
	require.NoError(t, err)
	assert.True(t, cash.Equal(decimal.NewFromInt(160)), cash.String())
}

func TestTargetedOverflowAndDeletion(t *testing.T) {
	tdb := NewTestDB(t)
	f := newLedgerFixture(t, tdb)
	ctx := context.Background()

	supplier := f.counterparty(t, ledger.CounterpartySupplier, "Paper Co")
	product := f.product(t, 0)
	older := f.invoice(t, ledger.InvoiceTypePurchase, supplier, product, "40.00", testutil.Day(2024, 1, 1))
	target := f.invoice(t, ledger.InvoiceTypePurchase, supplier, product, "25.00", testutil.Day(2024, 2, 1))

	result, err := f.settlement.AllocatePayment(ctx, ledgerapp.AllocatePaymentCommand{
		Amount: decimal.NewFromInt(75),
		Target: ledgerapp.SettlementTarget{InvoiceID: &target.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, ledger.PolicyTargetedOverflow, result.Policy)
	require.Len(t, result.Allocations, 3)
	assert.Equal(t, target.ID, *result.Allocations[0].InvoiceID)
	assert.Equal(t, older.ID, *result.Allocations[1].InvoiceID)
	assert.True(t, result.UnlinkedAmount.Equal(decimal.NewFromInt(10)))

	balance, err := f.settlement.ComputeSupplierBalance(ctx, supplier)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(-10)))

	deleted, err := f.settlement.DeletePayment(ctx, result.PaymentIDs[0])
	require.NoError(t, err)
	require.NotNil(t, deleted.Invoice)
	assert.Equal(t, ledger.InvoiceStatusPending, deleted.Invoice.Status)
	assert.Equal(t, 1, f.events.CountOf(ledger.EventTypePaymentDeleted))

	_, err = f.settlement.DeletePayment(ctx, result.PaymentIDs[0])
	assert.ErrorIs(t, err, ledger.ErrPaymentNotFound)
}

func TestDeleteCounterpartyCascades(t *testing.T) {
	tdb := NewTestDB(t)
	f := newLedgerFixture(t, tdb)
	ctx := context.Background()

	client := f.counterparty(t, ledger.CounterpartyClient, "Acme")
	product := f.product(t, 10)
	inv := f.invoice(t, ledger.InvoiceTypeSale, client, product, "30.00", testutil.Day(2024, 1, 1))
	_, err := f.settlement.AllocatePayment(ctx, ledgerapp.AllocatePaymentCommand{
		Amount: decimal.NewFromInt(50),
		Target: ledgerapp.SettlementTarget{InvoiceID: &inv.ID},
	})
	require.NoError(t, err)

	ref := ledger.CounterpartyRef{ID: client, Kind: ledger.CounterpartyClient}
	require.NoError(t, f.masterData.DeleteCounterparty(ctx, ref))

	var count int64
	require.NoError(t, tdb.DB.Table("payments").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, tdb.DB.Table("invoices").Count(&count).Error)
	assert.Zero(t, count)

	_, err = f.settlement.ComputeClientBalance(ctx, client)
	assert.ErrorIs(t, err, ledger.ErrCounterpartyNotFound)
}

func TestSchemaRejectsOverdrawnStock(t *testing.T) {
	tdb := NewTestDB(t)
	f := newLedgerFixture(t, tdb)

	client := f.counterparty(t, ledger.CounterpartyClient, "Acme")
	product := f.product(t, 1)

	_, err := f.invoices.CreateInvoice(context.Background(), ledgerapp.CreateInvoiceCommand{
		Type:           ledger.InvoiceTypeSale,
		CounterpartyID: client,
		Date:           testutil.Day(2024, 1, 1),
		Items:          []ledger.ItemInput{{ProductID: product, Quantity: 2, UnitPrice: decimal.NewFromInt(5)}},
	})
	require.Error(t, err)
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, ledger.ErrInsufficientStock.Code, domainErr.Code)

	var quantity int
	require.NoError(t, tdb.DB.Raw(`SELECT quantity FROM products WHERE id = ?`, product).Row().Scan(&quantity))
	assert.Equal(t, 1, quantity)
}
