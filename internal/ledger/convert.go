package ledger

import (
	"fmt"
	"math/big"
	"strconv"

	"statpool/internal/model"
)

// statsTuple mirrors the positional on-chain stats struct. It is the only
// place in the repository that knows the tuple layout; everything else works
// with model.PoolAttributes.
type statsTuple struct {
	PlayerName string
	Matches    *big.Int
	Runs       *big.Int
	Wickets    *big.Int
	Fifties    *big.Int
	Centuries  *big.Int
	StrikeRate string
	Category   string
	Role       string
	Image      string
	Date       string
}

func toStatsTuple(attrs model.PoolAttributes) statsTuple {
	return statsTuple{
		PlayerName: attrs.PlayerName,
		Matches:    new(big.Int).SetUint64(attrs.Matches),
		Runs:       new(big.Int).SetUint64(attrs.Runs),
		Wickets:    new(big.Int).SetUint64(attrs.Wickets),
		Fifties:    new(big.Int).SetUint64(attrs.Fifties),
		Centuries:  new(big.Int).SetUint64(attrs.Centuries),
		StrikeRate: formatRate(attrs.StrikeRate),
		Category:   attrs.Category,
		Role:       attrs.Role,
		Image:      attrs.Image,
		Date:       attrs.Date,
	}
}

func fromStatsTuple(tuple statsTuple) (model.PoolAttributes, error) {
	attrs := model.PoolAttributes{
		PlayerName: tuple.PlayerName,
		Category:   tuple.Category,
		Role:       tuple.Role,
		Image:      tuple.Image,
		Date:       tuple.Date,
	}

	var err error
	if attrs.Matches, err = asUint64(tuple.Matches); err != nil {
		return model.PoolAttributes{}, fmt.Errorf("matches: %w", err)
	}
	if attrs.Runs, err = asUint64(tuple.Runs); err != nil {
		return model.PoolAttributes{}, fmt.Errorf("runs: %w", err)
	}
	if attrs.Wickets, err = asUint64(tuple.Wickets); err != nil {
		return model.PoolAttributes{}, fmt.Errorf("wickets: %w", err)
	}
	if attrs.Fifties, err = asUint64(tuple.Fifties); err != nil {
		return model.PoolAttributes{}, fmt.Errorf("fifties: %w", err)
	}
	if attrs.Centuries, err = asUint64(tuple.Centuries); err != nil {
		return model.PoolAttributes{}, fmt.Errorf("centuries: %w", err)
	}
	if attrs.StrikeRate, err = parseRate(tuple.StrikeRate); err != nil {
		return model.PoolAttributes{}, fmt.Errorf("strike rate: %w", err)
	}

	return attrs, nil
}

// formatRate renders a rate without trailing zeros so a round-trip through
// the ledger reproduces the feed's textual form.
func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', -1, 64)
}

func parseRate(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return strconv.ParseFloat(value, 64)
}

func asUint64(value *big.Int) (uint64, error) {
	if value == nil {
		return 0, fmt.Errorf("nil value")
	}
	if !value.IsUint64() {
		return 0, fmt.Errorf("value does not fit in uint64: %s", value)
	}
	return value.Uint64(), nil
}
