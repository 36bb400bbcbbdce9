package model

import "github.com/shopspring/decimal"

// PoolAttributes mirrors the ledger-held stats tuple for one pool. The field
// order matches the positional on-chain tuple; price is derived separately
// and never part of the reconciliation comparison.
type PoolAttributes struct {
	PlayerName string  `json:"player_name"`
	Matches    uint64  `json:"matches"`
	Runs       uint64  `json:"runs"`
	Wickets    uint64  `json:"wickets"`
	Fifties    uint64  `json:"fifties"`
	Centuries  uint64  `json:"centuries"`
	StrikeRate float64 `json:"strike_rate"`
	Category   string  `json:"category"`
	Role       string  `json:"role"`
	Image      string  `json:"image"`
	Date       string  `json:"date"`
}

// SupplyInfo is the per-pool mint schedule held by the ledger.
type SupplyInfo struct {
	Minted uint64          `json:"minted"`
	Max    uint64          `json:"max"`
	Price  decimal.Decimal `json:"price"`
}

// Remaining returns the number of tokens still mintable from the pool.
func (s SupplyInfo) Remaining() uint64 {
	if s.Minted >= s.Max {
		return 0
	}
	return s.Max - s.Minted
}
