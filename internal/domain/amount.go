package domain

import (
	"math"
	"strings"

	xerrors "ledger-service/shared/utils/errors"

	"github.com/shopspring/decimal"
)

// Finite reports whether d survives conversion to the float64 balances are stored in.
func Finite(d decimal.Decimal) bool {
	f := d.InexactFloat64()
	return !math.IsInf(f, 0) && !math.IsNaN(f)
}

// ParseAmount accepts a strictly positive decimal string that is still positive as a float64.
func ParseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !d.IsPositive() || !Finite(d) || d.InexactFloat64() <= 0 {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	return d, nil
}

// ParseDelta accepts any non-zero decimal string, used for operator balance adjustments.
func ParseDelta(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsZero() || !Finite(d) || d.InexactFloat64() == 0 {
		return decimal.Zero, xerrors.ErrInvalidAmount
	}
	return d, nil
}

// ParsePercent is lenient: a missing, malformed or out of range percent counts as 0.
func ParsePercent(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || !Finite(d) {
		return decimal.Zero
	}
	return d
}

// Outcome decides a trade against the favored side. A win pays amount*percent/100, a loss forfeits amount.
func Outcome(side, favored Side, amount, percent decimal.Decimal) (TradeResult, decimal.Decimal) {
	if side == favored {
		return TradeWin, amount.Mul(percent).Div(decimal.NewFromInt(100))
	}
	return TradeLose, amount.Neg()
}
