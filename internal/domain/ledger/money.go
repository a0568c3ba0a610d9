package ledger

import (
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places every monetary value is kept at.
const MoneyScale int32 = 2

// RoundMoney rounds to MoneyScale places, half away from zero (2.345 -> 2.35,
// -2.345 -> -2.35). Every amount is passed through it before it is compared
// or stored.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// NonNegative floors d at zero.
func NonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// SumMoney adds the amounts and rounds the result.
func SumMoney(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return RoundMoney(total)
}

// ValidatePositiveAmount rounds amount and rejects it with ErrInvalidAmount
// unless the rounded value is strictly positive.
func ValidatePositiveAmount(amount decimal.Decimal) (decimal.Decimal, error) {
	rounded := RoundMoney(amount)
	if !rounded.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	return rounded, nil
}

// ParseMoney parses a decimal string and rounds it.
func ParseMoney(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, NewInvalidInputError("invalid monetary amount: " + s)
	}
	return RoundMoney(d), nil
}
