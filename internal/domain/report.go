package domain

import "time"

type FundRequestStat struct {
	Day    time.Time `json:"day"`
	Kind   FundKind  `json:"kind"`
	Status Status    `json:"status"`
	Count  int64     `json:"count"`
	Total  float64   `json:"total"`
}

type VerificationStat struct {
	Day    time.Time        `json:"day"`
	Kind   VerificationKind `json:"kind"`
	Status Status           `json:"status"`
	Count  int64            `json:"count"`
}

type TradeStat struct {
	Day         time.Time `json:"day"`
	Trades      int64     `json:"trades"`
	Wins        int64     `json:"wins"`
	Losses      int64     `json:"losses"`
	TotalProfit float64   `json:"total_profit"`
}

type Summary struct {
	From          time.Time          `json:"from"`
	To            time.Time          `json:"to"`
	FundRequests  []FundRequestStat  `json:"fund_requests"`
	Verifications []VerificationStat `json:"verifications"`
	Trades        []TradeStat        `json:"trades"`
}
