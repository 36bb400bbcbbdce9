// Package ledger holds the typed adapters over the deployed contracts. The
// raw ABI tuples are positional; this package is the single translation
// point between them and the typed records the rest of the repository uses.
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

// TokenContract adapts the pool/token contract: pool registration, stats,
// supply, minting, ownership and approval queries.
type TokenContract struct {
	contract
}

// NewTokenContract binds the adapter to a deployed contract address. The
// submitter may be nil for read-only use.
func NewTokenContract(address common.Address, caller Caller, submitter Submitter) (*TokenContract, error) {
	parsed, err := TokenABI()
	if err != nil {
		return nil, fmt.Errorf("parse token abi: %w", err)
	}
	return &TokenContract{contract{
		address:   address,
		parsedABI: parsed,
		caller:    caller,
		submitter: submitter,
	}}, nil
}

// PoolIDCounter returns the next unassigned pool id; pools are enumerated
// 1..counter-1.
func (c *TokenContract) PoolIDCounter(ctx context.Context) (uint64, error) {
	values, err := c.call(ctx, "poolIdCounter")
	if err != nil {
		return 0, err
	}
	return asUint64(values[0].(*big.Int))
}

// GetPlayerStats reads the stats tuple for a pool as a typed record.
func (c *TokenContract) GetPlayerStats(ctx context.Context, poolID uint64) (model.PoolAttributes, error) {
	values, err := c.call(ctx, "getPlayerStats", new(big.Int).SetUint64(poolID))
	if err != nil {
		return model.PoolAttributes{}, err
	}
	tuple := *abi.ConvertType(values[0], new(statsTuple)).(*statsTuple)
	attrs, err := fromStatsTuple(tuple)
	if err != nil {
		return model.PoolAttributes{}, fmt.Errorf("pool %d stats: %w", poolID, err)
	}
	return attrs, nil
}

// GetSupplyInfo reads the mint schedule for a pool.
func (c *TokenContract) GetSupplyInfo(ctx context.Context, poolID uint64) (model.SupplyInfo, error) {
	values, err := c.call(ctx, "getSupplyInfo", new(big.Int).SetUint64(poolID))
	if err != nil {
		return model.SupplyInfo{}, err
	}

	var info model.SupplyInfo
	if info.Minted, err = asUint64(values[0].(*big.Int)); err != nil {
		return model.SupplyInfo{}, fmt.Errorf("minted: %w", err)
	}
	if info.Max, err = asUint64(values[1].(*big.Int)); err != nil {
		return model.SupplyInfo{}, fmt.Errorf("max supply: %w", err)
	}
	info.Price = pricing.PriceFromUnits(values[2].(*big.Int))
	return info, nil
}

// UpdatePlayerStats issues the corrective stats write and awaits finality.
// It returns the confirmed transaction hash.
func (c *TokenContract) UpdatePlayerStats(ctx context.Context, poolID uint64, attrs model.PoolAttributes) (string, error) {
	receipt, err := c.submit(ctx, "updatePlayerStats", new(big.Int).SetUint64(poolID), toStatsTuple(attrs))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// CreatePool registers a new pool with its unit price and max supply.
func (c *TokenContract) CreatePool(ctx context.Context, attrs model.PoolAttributes, priceUnits *big.Int, maxSupply uint64) (string, error) {
	receipt, err := c.submit(ctx, "createPool", toStatsTuple(attrs), priceUnits, new(big.Int).SetUint64(maxSupply))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// MintFromAvailable mints quantity tokens from the pool to the caller.
func (c *TokenContract) MintFromAvailable(ctx context.Context, poolID uint64, quantity uint64) (string, error) {
	receipt, err := c.submit(ctx, "mintFromAvailable", new(big.Int).SetUint64(poolID), new(big.Int).SetUint64(quantity))
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}

// TokenToPoolID maps a token id to its pool.
func (c *TokenContract) TokenToPoolID(ctx context.Context, tokenID uint64) (uint64, error) {
	values, err := c.call(ctx, "tokenToPoolId", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return 0, err
	}
	return asUint64(values[0].(*big.Int))
}

// TokenURI returns the token metadata URI.
func (c *TokenContract) TokenURI(ctx context.Context, tokenID uint64) (string, error) {
	values, err := c.call(ctx, "tokenURI", new(big.Int).SetUint64(tokenID))
	if err != nil {
		return "", err
	}
	uri, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("unsupported tokenURI type %T", values[0])
	}
	return uri, nil
}

// BalanceOf returns the number of tokens owned by the address.
func (c *TokenContract) BalanceOf(ctx context.Context, owner common.Address) (uint64, error) {
	values, err := c.call(ctx, "balanceOf", owner)
	if err != nil {
		return 0, err
	}
	return asUint64(values[0].(*big.Int))
}

// TokenOfOwnerByIndex enumerates the owner's tokens.
func (c *TokenContract) TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index uint64) (uint64, error) {
	values, err := c.call(ctx, "tokenOfOwnerByIndex", owner, new(big.Int).SetUint64(index))
	if err != nil {
		return 0, err
	}
	return asUint64(values[0].(*big.Int))
}

// IsApprovedForAll reports whether operator holds collection-wide transfer
// approval from owner.
func (c *TokenContract) IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error) {
	values, err := c.call(ctx, "isApprovedForAll", owner, operator)
	if err != nil {
		return false, err
	}
	approved, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("unsupported approval type %T", values[0])
	}
	return approved, nil
}

// SetApprovalForAll grants or revokes collection-wide transfer approval.
func (c *TokenContract) SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (string, error) {
	receipt, err := c.submit(ctx, "setApprovalForAll", operator, approved)
	if err != nil {
		return "", err
	}
	return receipt.TxHash.Hex(), nil
}
