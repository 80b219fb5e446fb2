package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Amount is an exact, arbitrary-precision signed value expressed in base
// token units. All balance arithmetic in the ledger goes through Amount:
// native floating point loses integer precision above 2^53 and fixed-width
// integers can silently overflow at supply-scale magnitudes, so neither is
// allowed anywhere near a balance.
type Amount struct {
	d decimal.Decimal
}

// AmountZero is the additive identity. The zero value of Amount equals it.
var AmountZero = Amount{}

func NewAmount(v int64) Amount {
	return Amount{decimal.NewFromInt(v)}
}

// AmountFromString parses an exact decimal string representation
func AmountFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: malformed amount '%s'", ErrInvalidTransaction, s)
	}
	return Amount{d}, nil
}

// MustAmountFromString is for constants and tests
func MustAmountFromString(s string) Amount {
	ret, err := AmountFromString(s)
	if err != nil {
		panic(err)
	}
	return ret
}

func (a Amount) Add(b Amount) Amount {
	return Amount{a.d.Add(b.d)}
}

func (a Amount) Sub(b Amount) Amount {
	return Amount{a.d.Sub(b.d)}
}

// Cmp returns -1, 0 or 1
func (a Amount) Cmp(b Amount) int {
	return a.d.Cmp(b.d)
}

func (a Amount) IsNegative() bool {
	return a.d.Sign() < 0
}

func (a Amount) IsZero() bool {
	return a.d.Sign() == 0
}

// String returns the canonical decimal representation. Two equal amounts
// always render identically
func (a Amount) String() string {
	return a.d.String()
}

func (a Amount) Equal(b Amount) bool {
	return a.d.Cmp(b.d) == 0
}
