package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"statpool/internal/model"
	"statpool/internal/pricing"
)

// listingTuple mirrors the marketplace's positional listing record.
type listingTuple struct {
	Seller    common.Address
	Price     *big.Int
	Timestamp *big.Int
}

// MarketContract adapts the marketplace contract: listing lifecycle and the
// raw listing feed.
type MarketContract struct {
	contract
}

// NewMarketContract binds the adapter to a deployed marketplace address.
func NewMarketContract(address common.Address, caller Caller, submitter Submitter) (*MarketContract, error) {
	parsed, err := MarketABI()
	if err != nil {
		return nil, fmt.Errorf("parse marketplace abi: %w", err)
	}
	return &MarketContract{contract{
		address:   address,
		parsedABI: parsed,
		caller:    caller,
		submitter: submitter,
	}}, nil
}

// Address returns the deployed marketplace address. Used as the approval
// operator and payment spender.
func (c *MarketContract) Address() common.Address {
	return c.address
}

// ListNFT records a listing for the caller at the given unit price.
func (c *MarketContract) ListNFT(ctx context.Context, tokenID uint64, priceUnits *big.Int) (string, error) {
	receipt, err := c.submit(ctx, "listNFT", new(big.Int).SetUint64(tokenID), priceUnits)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// CancelListing zeroes the caller's listing price, logically removing it.
func (c *MarketContract) CancelListing(ctx context.Context, tokenID uint64) (string, error) {
	receipt, err := c.submit(ctx, "cancelListing", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// BuyNFT atomically transfers payment to the seller and the token to the
// caller, consuming the listing.
func (c *MarketContract) BuyNFT(ctx context.Context, tokenID uint64) (string, error) {
	receipt, err := c.submit(ctx, "buyNFT", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// GetAllListings returns every listing record the ledger holds, including
// cancelled and duplicate entries. The parallel on-chain arrays are merged
// into typed records here; filtering is the reader's responsibility.
func (c *MarketContract) GetAllListings(ctx context.Context) ([]model.Listing, error) {
	values, err := c.call(ctx, "getAllListings")
	if err != nil {
		return nil, err
	}

	tokenIDs, ok := values[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported token id list type %T", values[0])
	}
	tuples := *abi.ConvertType(values[1], new([]listingTuple)).(*[]listingTuple)

	if len(tokenIDs) != len(tuples) {
		return nil, fmt.Errorf("listing arrays length mismatch: %d ids, %d records", len(tokenIDs), len(tuples))
	}

	listings := make([]model.Listing, 0, len(tuples))
	for i, tuple := range tuples {
		tokenID, err := asUint64(tokenIDs[i])
		if err != nil {
			return nil, fmt.Errorf("listing %d token id: %w", i, err)
		}
		var timestamp int64
		if tuple.Timestamp != nil && tuple.Timestamp.IsInt64() {
			timestamp = tuple.Timestamp.Int64()
		}
		listings = append(listings, model.Listing{
			TokenID:   tokenID,
			Seller:    tuple.Seller.Hex(),
			Price:     pricing.PriceFromUnits(tuple.Price),
			Timestamp: timestamp,
		})
	}

	return listings, nil
}
