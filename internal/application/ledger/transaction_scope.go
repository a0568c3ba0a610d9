package ledger

import (
	"context"

	"github.com/erp/ledger/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// All repository operations performed inside Execute share one database
// transaction and are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
	// Repositories returns repositories bound to no transaction, for reads
	Repositories() TransactionalRepositories
}

// TransactionalRepositories provides access to all ledger repositories.
// Inside Execute every repository shares the same transaction.
type TransactionalRepositories interface {
	Invoices() ledger.InvoiceRepository
	Payments() ledger.PaymentRepository
	Counterparties() ledger.CounterpartyRepository
	Products() ledger.ProductRepository
	FinancialEntries() ledger.FinancialEntryRepository
	Rankings() ledger.RankingRepository
	AuditLog() ledger.AuditRepository
}
