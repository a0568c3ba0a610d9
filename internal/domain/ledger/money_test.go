package ledger

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundMoney(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2.345", "2.35"},
		{"2.344", "2.34"},
		{"-2.345", "-2.35"},
		{"0.005", "0.01"},
		{"10", "10"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := RoundMoney(decimal.RequireFromString(tt.in))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestValidatePositiveAmount(t *testing.T) {
	t.Run("rejects zero", func(t *testing.T) {
		_, err := ValidatePositiveAmount(decimal.Zero)
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("rejects negative", func(t *testing.T) {
		_, err := ValidatePositiveAmount(decimal.NewFromInt(-5))
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("rejects amounts that round to zero", func(t *testing.T) {
		_, err := ValidatePositiveAmount(decimal.RequireFromString("0.004"))
		assert.True(t, errors.Is(err, ErrInvalidAmount))
	})

	t.Run("rounds accepted amounts", func(t *testing.T) {
		got, err := ValidatePositiveAmount(decimal.RequireFromString("12.345"))
		require.NoError(t, err)
		assert.Equal(t, "12.35", got.StringFixed(2))
	})
}

func TestParseMoney(t *testing.T) {
	got, err := ParseMoney("70.005")
	require.NoError(t, err)
	assert.Equal(t, "70.01", got.StringFixed(2))

	_, err = ParseMoney("seventy")
	assert.Error(t, err)
}
