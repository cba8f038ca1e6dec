package domain

import (
	"strings"
	"time"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"

	DefaultFavoredSide = SideShort
)

// ParseSide accepts long or short in any case.
func ParseSide(s string) (Side, bool) {
	switch Side(strings.ToLower(strings.TrimSpace(s))) {
	case SideLong:
		return SideLong, true
	case SideShort:
		return SideShort, true
	}
	return "", false
}

type TradeResult string

const (
	TradeWin  TradeResult = "win"
	TradeLose TradeResult = "lose"
)

// Trade is immutable once settled.
type Trade struct {
	ID        int64       `json:"id" db:"id"`
	Username  string      `json:"username" db:"username"`
	Symbol    string      `json:"symbol" db:"symbol"`
	Side      Side        `json:"side" db:"side"`
	Amount    float64     `json:"amount" db:"amount"`
	Percent   float64     `json:"percent" db:"percent"`
	Profit    float64     `json:"profit" db:"profit"`
	Result    TradeResult `json:"result" db:"result"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}

type TradeRequest struct {
	Username string
	Symbol   string
	Side     string
	Amount   string
	Percent  string
}

type Settlement struct {
	Trade   *Trade      `json:"trade"`
	Result  TradeResult `json:"result"`
	Profit  float64     `json:"profit"`
	Balance float64     `json:"balance"`
}

type TradeFilter struct {
	Username string
	Limit    int
	Offset   int
}
