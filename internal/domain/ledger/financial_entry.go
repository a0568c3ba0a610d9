package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EntryType classifies a standalone financial entry
type EntryType string

const (
	EntryTypeIncome  EntryType = "income"
	EntryTypeExpense EntryType = "expense"
	EntryTypeLoan    EntryType = "loan"
)

// IsValid checks if the entry type is known
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeIncome, EntryTypeExpense, EntryTypeLoan:
		return true
	}
	return false
}

// CashDirection is +1 for income, -1 for expense and 0 for loans, which are
// recorded but kept out of the cash balance.
func (t EntryType) CashDirection() int {
	switch t {
	case EntryTypeIncome:
		return 1
	case EntryTypeExpense:
		return -1
	default:
		return 0
	}
}

// FinancialEntry is income or expense recorded outside invoicing
type FinancialEntry struct {
	ID          uuid.UUID
	EntryType   EntryType
	Amount      decimal.Decimal
	Date        time.Time
	Description string
	Category    string
	CreatedAt   time.Time
}

// NewFinancialEntry creates a financial entry
func NewFinancialEntry(entryType EntryType, amount decimal.Decimal, date time.Time, description, category string) (*FinancialEntry, error) {
	if !entryType.IsValid() {
		return nil, NewInvalidInputError(fmt.Sprintf("unknown entry type %q", entryType))
	}
	rounded, err := ValidatePositiveAmount(amount)
	if err != nil {
		return nil, err
	}
	if date.IsZero() {
		date = time.Now()
	}
	return &FinancialEntry{
		ID:          uuid.New(),
		EntryType:   entryType,
		Amount:      rounded,
		Date:        date,
		Description: strings.TrimSpace(description),
		Category:    strings.TrimSpace(category),
		CreatedAt:   time.Now(),
	}, nil
}
