package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/erp/ledger/internal/domain/ledger"
	"github.com/erp/ledger/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterData_CreateAndList(t *testing.T) {
	store := newMemoryStore()
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	_, err := svc.CreateCounterparty(ctx, CreateCounterpartyCommand{Kind: ledger.CounterpartyClient, Name: "  Zeta "})
	require.NoError(t, err)
	_, err = svc.CreateCounterparty(ctx, CreateCounterpartyCommand{Kind: ledger.CounterpartyClient, Name: "Acme", Phone: "123"})
	require.NoError(t, err)
	_, err = svc.CreateCounterparty(ctx, CreateCounterpartyCommand{Kind: ledger.CounterpartySupplier, Name: "Paper Co"})
	require.NoError(t, err)

	clients, err := svc.ListCounterparties(ctx, ledger.CounterpartyClient)
	require.NoError(t, err)
	require.Len(t, clients, 2)
	assert.Equal(t, "Acme", clients[0].Name)
	assert.Equal(t, "Zeta", clients[1].Name)

	_, err = svc.CreateCounterparty(ctx, CreateCounterpartyCommand{Kind: ledger.CounterpartyClient, Name: " "})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	_, err = svc.ListCounterparties(ctx, "partner")
	assert.Error(t, err)
}

func TestMasterData_DeleteCounterpartyCascades(t *testing.T) {
	store := newMemoryStore()
	client := store.addCounterparty(ledger.CounterpartyClient, "Acme")
	keep := store.addCounterparty(ledger.CounterpartyClient, "Keep")
	inv := store.addInvoice(client, ledger.InvoiceTypeSale, "50.00", day(2024, 1, 1), nil)
	store.addPayment(client, &inv.ID, "20.00")
	store.addPayment(client, nil, "5.00")
	kept := store.addInvoice(keep, ledger.InvoiceTypeSale, "10.00", day(2024, 1, 1), nil)
	store.addPayment(keep, &kept.ID, "10.00")
	svc := NewMasterDataService(store, nil)

	require.NoError(t, svc.DeleteCounterparty(context.Background(), client))

	assert.Len(t, store.state.invoices, 1)
	assert.Equal(t, 1, store.paymentCount())
	_, err := svc.GetCounterparty(context.Background(), client)
	assert.True(t, errors.Is(err, ledger.ErrCounterpartyNotFound))

	err = svc.DeleteCounterparty(context.Background(), client)
	assert.True(t, errors.Is(err, ledger.ErrCounterpartyNotFound))
}

func TestMasterData_Products(t *testing.T) {
	store := newMemoryStore()
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, CreateProductCommand{Name: "Mug", Quantity: 3, FinishingCost: dec("1.005")})
	require.NoError(t, err)
	assert.True(t, p.FinishingCost.Equal(dec("1.01")))

	p, err = svc.AdjustProductQuantity(ctx, p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Quantity)

	_, err = svc.AdjustProductQuantity(ctx, p.ID, -11)
	assert.True(t, errors.Is(err, ledger.ErrInsufficientStock))
	assert.Equal(t, 10, store.productQuantity(p.ID))

	_, err = svc.CreateProduct(ctx, CreateProductCommand{Name: "Bad", Quantity: -1})
	assert.Error(t, err)
}

func TestMasterData_FinancialEntry(t *testing.T) {
	svc := NewMasterDataService(newMemoryStore(), nil)
	ctx := context.Background()

	entry, err := svc.CreateFinancialEntry(ctx, CreateFinancialEntryCommand{
		EntryType: ledger.EntryTypeExpense,
		Amount:    dec("12.345"),
		Category:  "rent",
	})
	require.NoError(t, err)
	assert.True(t, entry.Amount.Equal(dec("12.35")))
	assert.False(t, entry.Date.IsZero())

	_, err = svc.CreateFinancialEntry(ctx, CreateFinancialEntryCommand{EntryType: ledger.EntryTypeIncome, Amount: dec("0")})
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
	_, err = svc.CreateFinancialEntry(ctx, CreateFinancialEntryCommand{EntryType: "gift", Amount: dec("1")})
	assert.Error(t, err)
}

func TestMasterData_UpdateCounterparty(t *testing.T) {
	store := newMemoryStore()
	supplier := store.addCounterparty(ledger.CounterpartySupplier, "Paper Co")
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	updated, err := svc.UpdateCounterparty(ctx, supplier, UpdateCounterpartyCommand{Name: " Paper Company ", Phone: "0100", Email: "sales@paper.test"})
	require.NoError(t, err)
	assert.Equal(t, "Paper Company", updated.Name)
	assert.Equal(t, "0100", store.state.counterparties[supplier.ID].Phone)
	assert.Equal(t, []ledger.AuditAction{ledger.AuditSupplierEdit}, store.auditActions())

	_, err = svc.UpdateCounterparty(ctx, supplier, UpdateCounterpartyCommand{Name: " "})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	assert.Equal(t, "Paper Company", store.state.counterparties[supplier.ID].Name)

	// A supplier ID is not a client.
	_, err = svc.UpdateCounterparty(ctx, ledger.CounterpartyRef{ID: supplier.ID, Kind: ledger.CounterpartyClient}, UpdateCounterpartyCommand{Name: "X"})
	assert.True(t, errors.Is(err, ledger.ErrCounterpartyNotFound))
	assert.Len(t, store.auditActions(), 1)
}

func TestMasterData_UpdateProduct(t *testing.T) {
	store := newMemoryStore()
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	created, err := svc.CreateProduct(ctx, CreateProductCommand{Name: "Card", Type: ledger.ProductTypePrinted, Quantity: 4, PrintingCost: dec("3.50")})
	require.NoError(t, err)
	assert.True(t, created.PrintingCost.Equal(dec("3.50")))

	updated, err := svc.UpdateProduct(ctx, created.ID, UpdateProductCommand{
		Name:          "Card",
		Color:         "white",
		Type:          "Plain",
		Quantity:      9,
		FinishingCost: dec("0.25"),
		PrintingCost:  dec("3.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, 9, store.productQuantity(created.ID))
	assert.True(t, updated.PrintingCost.IsZero())
	assert.Equal(t, "white", updated.Color)
	assert.Equal(t, []ledger.AuditAction{ledger.AuditProductCreate, ledger.AuditProductEdit}, store.auditActions())

	_, err = svc.UpdateProduct(ctx, created.ID, UpdateProductCommand{Name: "Card", Quantity: -1})
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	assert.Equal(t, 9, store.productQuantity(created.ID))

	_, err = svc.UpdateProduct(ctx, uuid.New(), UpdateProductCommand{Name: "Ghost"})
	assert.True(t, errors.Is(err, ledger.ErrProductNotFound))
	assert.Len(t, store.auditActions(), 2)
}

func TestMasterData_DeleteProduct(t *testing.T) {
	store := newMemoryStore()
	client := store.addCounterparty(ledger.CounterpartyClient, "Acme")
	sold := store.addProduct("Mug", 10)
	unused := store.addProduct("Plate", 2)
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	_, err := NewInvoiceService(store).CreateInvoice(ctx, CreateInvoiceCommand{
		Type:           ledger.InvoiceTypeSale,
		CounterpartyID: client.ID,
		Date:           day(2024, 3, 15),
		Items:          []ledger.ItemInput{{ProductID: sold, Quantity: 1, UnitPrice: dec("4.00")}},
	})
	require.NoError(t, err)

	err = svc.DeleteProduct(ctx, sold)
	assert.True(t, errors.Is(err, ledger.ErrProductInUse))
	assert.Contains(t, store.state.products, sold)

	require.NoError(t, svc.DeleteProduct(ctx, unused))
	assert.NotContains(t, store.state.products, unused)
	assert.Equal(t, []ledger.AuditAction{ledger.AuditInvoiceCreate, ledger.AuditProductDelete}, store.auditActions())

	err = svc.DeleteProduct(ctx, unused)
	assert.True(t, errors.Is(err, ledger.ErrProductNotFound))
}

func TestMasterData_ListProducts(t *testing.T) {
	store := newMemoryStore()
	base := day(2024, 3, 1)
	for i, name := range []string{"Red mug", "Blue mug", "Red plate"} {
		id := store.addProduct(name, i)
		p := store.state.products[id]
		p.Color = strings.Fields(name)[0]
		p.Type = "Plain"
		if name == "Red plate" {
			p.Type = ledger.ProductTypePrinted
		}
		p.UpdatedAt = base.AddDate(0, 0, i)
		store.state.products[id] = p
	}
	svc := NewMasterDataService(store, nil)
	ctx := context.Background()

	all, err := svc.ListProducts(ctx, ProductListFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), all.Total)
	require.Len(t, all.Items, 3)
	assert.Equal(t, "Red plate", all.Items[0].Name)
	assert.Equal(t, "Red mug", all.Items[2].Name)

	mugs, err := svc.ListProducts(ctx, ProductListFilter{Name: "MUG"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), mugs.Total)

	red, err := svc.ListProducts(ctx, ProductListFilter{Color: "red", Type: "Plain"})
	require.NoError(t, err)
	require.Len(t, red.Items, 1)
	assert.Equal(t, "Red mug", red.Items[0].Name)

	second, err := svc.ListProducts(ctx, ProductListFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), second.Total)
	assert.Equal(t, 2, second.TotalPages)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "Red mug", second.Items[0].Name)
}
