// Package pricing converts raw performance statistics into the bounded
// two-decimal unit price used for pool creation and listings.
package pricing

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"statpool/internal/model"
)

// Prices are clamped to [1.00, 10.00] after weighting.
var (
	minPrice = decimal.New(100, -2)
	maxPrice = decimal.New(1000, -2)
)

// ComputePrice derives the unit price for a stat row. The function is pure
// and deterministic: the same row always yields the same price. A row whose
// divisor collapses to zero (zero matches, zero economy) yields an error
// rather than a NaN or infinite price.
func ComputePrice(row model.StatRow) (decimal.Decimal, error) {
	base := 0.0
	weight := 1.0

	matches := float64(row.Matches)

	switch row.Category {
	case model.CategoryMostRuns:
		base = float64(row.Runs) / (matches * 15)
		weight = 1.4
	case model.CategoryMostWickets:
		base = (float64(row.Wickets) * 1.5) / matches
		weight = 1.3
	case model.CategoryMostFifties:
		base = (float64(row.Runs) / (matches * 8)) * (float64(row.Fifties) / 8)
		weight = 1.4
	case model.CategoryHighestInnings:
		base = float64(row.Runs) / (matches*10 + float64(row.Fifties)*8 + float64(row.Centuries)*12)
		weight = 1.2
	case model.CategoryBestStrikeRate:
		base = row.StrikeRate / (matches * 20)
		weight = 1.2
	case model.CategoryBestEconomy:
		base = 30 / (row.Economy * matches)
		weight = 1.1
	}

	weighted := base * weight
	if math.IsNaN(weighted) || math.IsInf(weighted, 0) {
		return decimal.Decimal{}, fmt.Errorf("price for %q (%s) is not finite", row.Player, row.Category)
	}

	price := decimal.NewFromFloat(weighted).Round(2)
	if price.LessThan(minPrice) {
		return minPrice, nil
	}
	if price.GreaterThan(maxPrice) {
		return maxPrice, nil
	}
	return price, nil
}

// PriceToUnits converts a price into ledger base units (two decimals).
func PriceToUnits(price decimal.Decimal) *big.Int {
	return price.Shift(2).BigInt()
}

// PriceFromUnits converts ledger base units back into a price.
func PriceFromUnits(units *big.Int) decimal.Decimal {
	if units == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(units, -2)
}
