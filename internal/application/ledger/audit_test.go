package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/erp/ledger/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuditTrail_WrittenWithEachChange(t *testing.T) {
	store := newMemoryStore()
	client := store.addCounterparty(ledger.CounterpartyClient, "Acme")
	mug := store.addProduct("Mug", 10)
	ctx, _ := logger.WithRequestID(context.Background(), zap.NewNop(), "req-42")

	invoices := NewInvoiceService(store)
	inv, err := invoices.CreateInvoice(ctx, CreateInvoiceCommand{
		Type:           ledger.InvoiceTypeSale,
		CounterpartyID: client.ID,
		Date:           day(2024, 1, 1),
		Items:          []ledger.ItemInput{{ProductID: mug, Quantity: 5, UnitPrice: dec("10.00")}},
	})
	require.NoError(t, err)

	settlement := NewSettlementService(store)
	result, err := settlement.AllocatePayment(ctx, AllocatePaymentCommand{Amount: dec("60.00"), Target: clientTarget(client)})
	require.NoError(t, err)
	require.Len(t, result.PaymentIDs, 2)

	_, err = settlement.DeletePayment(ctx, result.PaymentIDs[1])
	require.NoError(t, err)
	require.NoError(t, invoices.DeleteInvoice(ctx, inv.ID))
	require.NoError(t, NewMasterDataService(store, nil).DeleteCounterparty(ctx, client))

	assert.Equal(t, []ledger.AuditAction{
		ledger.AuditInvoiceCreate,
		ledger.AuditPaymentAdd,
		ledger.AuditPaymentDelete,
		ledger.AuditInvoiceDelete,
		ledger.AuditClientDelete,
	}, store.auditActions())

	add := store.state.audit[1]
	assert.Equal(t, client.ID, add.EntityID)
	assert.Equal(t, "req-42", add.RequestID)
	assert.Equal(t, "60.00", add.Details["amount"])
	assert.Equal(t, "10.00", add.Details["unlinked"])
	assert.Equal(t, ledger.PolicySmallestRemainingFirst.String(), add.Details["policy"])

	del := store.state.audit[2]
	assert.Equal(t, result.PaymentIDs[1], del.EntityID)
	assert.Equal(t, "10.00", del.Details["amount"])
	assert.NotContains(t, del.Details, "invoice_number")

	assert.Equal(t, inv.ID, store.state.audit[3].EntityID)
	assert.Equal(t, inv.Number, store.state.audit[3].Details["number"])
	assert.Equal(t, 10, store.productQuantity(mug))
}

func TestAuditTrail_RolledBackWithFailedChange(t *testing.T) {
	store := newMemoryStore()
	client := store.addCounterparty(ledger.CounterpartyClient, "Acme")
	store.addInvoice(client, ledger.InvoiceTypeSale, "50.00", day(2024, 1, 1), nil)
	store.addInvoice(client, ledger.InvoiceTypeSale, "30.00", day(2024, 1, 5), nil)
	store.failPaymentCreateAt = 2

	_, err := NewSettlementService(store).AllocatePayment(context.Background(), AllocatePaymentCommand{
		Amount: dec("70.00"),
		Target: clientTarget(client),
	})
	require.Error(t, err)
	assert.Empty(t, store.auditActions())
}

func TestListAuditEntries(t *testing.T) {
	store := newMemoryStore()
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	mug, err := svc.CreateProduct(ctx, CreateProductCommand{Name: "Mug", Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AdjustProductQuantity(ctx, mug.ID, 4)
	require.NoError(t, err)
	plate, err := svc.CreateProduct(ctx, CreateProductCommand{Name: "Plate"})
	require.NoError(t, err)

	all, err := svc.ListAuditEntries(ctx, AuditListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	require.Len(t, all.Items, 3)
	assert.Equal(t, plate.ID, all.Items[0].EntityID)
	assert.Equal(t, ledger.AuditProductAdjust, all.Items[1].Action)
	assert.Equal(t, 4, all.Items[1].Details["delta"])

	creates, err := svc.ListAuditEntries(ctx, AuditListFilter{Action: "product_create", Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), creates.Total)
	require.Len(t, creates.Items, 1)
	assert.Equal(t, mug.ID, creates.Items[0].EntityID)

	forMug, err := svc.ListAuditEntries(ctx, AuditListFilter{EntityID: &mug.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), forMug.Total)

	_, err = svc.ListAuditEntries(ctx, AuditListFilter{Action: "user_create"})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}
