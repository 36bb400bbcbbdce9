package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Listing is a seller's standing offer for one token. A zero price marks a
// cancelled or consumed listing and must be treated as absent by readers.
type Listing struct {
	TokenID   uint64          `json:"token_id"`
	Seller    string          `json:"seller"`
	Price     decimal.Decimal `json:"price"`
	Timestamp int64           `json:"timestamp"`
}

// Active reports whether the listing is still open for purchase.
func (l Listing) Active() bool {
	return l.Price.IsPositive()
}

// Key returns the read-side dedup identity for the listing. Seller addresses
// are case-normalized so checksummed and lowercase forms collide.
func (l Listing) Key() string {
	return fmt.Sprintf("%d-%s", l.TokenID, strings.ToLower(l.Seller))
}
