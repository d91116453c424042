package tracker

import (
	"github.com/shopspring/decimal"
)

// Money is a currency amount. It is stored as a numeric column and rendered
// in JSON as a string with exactly two decimals ("45.50").
type Money struct {
	decimal.Decimal
}

func NewMoney(d decimal.Decimal) Money { return Money{Decimal: d} }

// MoneyPtr is a convenience for optional columns.
func MoneyPtr(d decimal.Decimal) *Money {
	m := NewMoney(d)
	return &m
}

func MustMoney(s string) Money {
	return Money{Decimal: decimal.RequireFromString(s)}
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.StringFixed(2) + `"`), nil
}

func (m Money) String() string { return m.StringFixed(2) }
