// Package market manages the listing lifecycle against the marketplace
// contract: create, cancel, buy, and the read-side normalization of the raw
// listing feed.
package market

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statpool/internal/fault"
	"statpool/internal/model"
	"statpool/internal/pricing"
)

// MarketLedger is the marketplace capability consumed by the registry.
type MarketLedger interface {
	Address() common.Address
	ListNFT(ctx context.Context, tokenID uint64, priceUnits *big.Int) (string, error)
	CancelListing(ctx context.Context, tokenID uint64) (string, error)
	BuyNFT(ctx context.Context, tokenID uint64) (string, error)
	GetAllListings(ctx context.Context) ([]model.Listing, error)
}

// TokenLedger is the ownership/approval capability consumed by the registry.
type TokenLedger interface {
	TokenToPoolID(ctx context.Context, tokenID uint64) (uint64, error)
	GetSupplyInfo(ctx context.Context, poolID uint64) (model.SupplyInfo, error)
	IsApprovedForAll(ctx context.Context, owner, operator common.Address) (bool, error)
	SetApprovalForAll(ctx context.Context, operator common.Address, approved bool) (string, error)
}

// PaymentLedger is the settlement-token capability consumed by the registry.
type PaymentLedger interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (string, error)
}

// Config holds registry policy.
type Config struct {
	// AutoApprove submits an allowance top-up before a purchase when the
	// current allowance is short. When disabled a short allowance fails
	// fast instead.
	AutoApprove bool
}

// Registry drives listing operations for one acting party. Every dependent
// write awaits the previous confirmation; approval chains are sequential.
type Registry struct {
	cfg     Config
	market  MarketLedger
	token   TokenLedger
	payment PaymentLedger
	actor   common.Address
	logger  *zap.Logger
}

// NewRegistry builds a Registry acting as actor.
func NewRegistry(cfg Config, market MarketLedger, token TokenLedger, payment PaymentLedger, actor common.Address, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		cfg:     cfg,
		market:  market,
		token:   token,
		payment: payment,
		actor:   actor,
		logger:  logger,
	}
}

// CreateListing lists a token at price. A zero price falls back to the
// token's pool unit price. The marketplace transfer approval is requested
// and awaited first when absent; an already-granted approval is a read-only
// check, not a redundant write.
func (r *Registry) CreateListing(ctx context.Context, tokenID uint64, price decimal.Decimal) (string, error) {
	if !price.IsPositive() {
		fallback, err := r.defaultPrice(ctx, tokenID)
		if err != nil {
			return "", err
		}
		price = fallback
		r.logger.Info("using pool unit price for listing",
			zap.Uint64("token_id", tokenID),
			zap.String("price", price.StringFixed(2)),
		)
	}
	if !price.IsPositive() {
		return "", fault.ErrInvalidPrice
	}

	if err := r.ensureApproval(ctx); err != nil {
		return "", err
	}

	txHash, err := r.market.ListNFT(ctx, tokenID, pricing.PriceToUnits(price))
	if err != nil {
		return "", fmt.Errorf("list token %d: %w", tokenID, err)
	}

	r.logger.Info("token listed",
		zap.Uint64("token_id", tokenID),
		zap.String("price", price.StringFixed(2)),
		zap.String("tx", txHash),
	)
	return txHash, nil
}

// CancelListing removes the caller's active listing for the token. Only the
// active seller may cancel.
func (r *Registry) CancelListing(ctx context.Context, tokenID uint64) (string, error) {
	listing, err := r.activeListing(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if !strings.EqualFold(listing.Seller, r.actor.Hex()) {
		return "", fmt.Errorf("%w: token %d listed by %s", fault.ErrNotSeller, tokenID, listing.Seller)
	}

	txHash, err := r.market.CancelListing(ctx, tokenID)
	if err != nil {
		return "", fmt.Errorf("cancel listing for token %d: %w", tokenID, err)
	}

	r.logger.Info("listing cancelled", zap.Uint64("token_id", tokenID), zap.String("tx", txHash))
	return txHash, nil
}

// Buy purchases the token's active listing. Payment balance and allowance
// are checked locally before anything is submitted, so a doomed purchase
// never reaches the ledger.
func (r *Registry) Buy(ctx context.Context, tokenID uint64) (string, error) {
	listing, err := r.activeListing(ctx, tokenID)
	if err != nil {
		return "", err
	}
	priceUnits := pricing.PriceToUnits(listing.Price)

	balance, err := r.payment.BalanceOf(ctx, r.actor)
	if err != nil {
		return "", fmt.Errorf("payment balance: %w", err)
	}
	if balance.Cmp(priceUnits) < 0 {
		return "", fmt.Errorf("%w: have %s, need %s",
			fault.ErrInsufficientBalance,
			pricing.PriceFromUnits(balance).StringFixed(2),
			listing.Price.StringFixed(2),
		)
	}

	allowance, err := r.payment.Allowance(ctx, r.actor, r.market.Address())
	if err != nil {
		return "", fmt.Errorf("payment allowance: %w", err)
	}
	if allowance.Cmp(priceUnits) < 0 {
		if !r.cfg.AutoApprove {
			return "", fmt.Errorf("%w: have %s, need %s",
				fault.ErrInsufficientAllowance,
				pricing.PriceFromUnits(allowance).StringFixed(2),
				listing.Price.StringFixed(2),
			)
		}
		approveTx, err := r.payment.Approve(ctx, r.market.Address(), priceUnits)
		if err != nil {
			return "", fmt.Errorf("approve payment: %w", err)
		}
		r.logger.Info("payment allowance granted",
			zap.String("amount", listing.Price.StringFixed(2)),
			zap.String("tx", approveTx),
		)
	}

	txHash, err := r.market.BuyNFT(ctx, tokenID)
	if err != nil {
		return "", fmt.Errorf("buy token %d: %w", tokenID, err)
	}

	r.logger.Info("token purchased",
		zap.Uint64("token_id", tokenID),
		zap.String("price", listing.Price.StringFixed(2)),
		zap.String("seller", listing.Seller),
		zap.String("tx", txHash),
	)
	return txHash, nil
}

// ActiveListings returns the normalized listing view. The raw feed may carry
// several records per (token, seller) key; the latest record decides the
// key's state, so a zero-price cancellation suppresses every earlier record
// for that key. Keys whose resolved state is inactive are absent. The ledger
// guarantees none of this; normalization is the reader's job.
func (r *Registry) ActiveListings(ctx context.Context) ([]model.Listing, error) {
	raw, err := r.market.GetAllListings(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}

	resolved := make(map[string]model.Listing, len(raw))
	var order []string
	for _, listing := range raw {
		key := listing.Key()
		if _, seen := resolved[key]; !seen {
			order = append(order, key)
		}
		resolved[key] = listing
	}

	var active []model.Listing
	for _, key := range order {
		if listing := resolved[key]; listing.Active() {
			active = append(active, listing)
		}
	}
	return active, nil
}

// ListedTokenSet returns the token ids with at least one active listing.
func (r *Registry) ListedTokenSet(ctx context.Context) (map[uint64]struct{}, error) {
	active, err := r.ActiveListings(ctx)
	if err != nil {
		return nil, err
	}
	set := make(map[uint64]struct{}, len(active))
	for _, listing := range active {
		set[listing.TokenID] = struct{}{}
	}
	return set, nil
}

func (r *Registry) activeListing(ctx context.Context, tokenID uint64) (model.Listing, error) {
	active, err := r.ActiveListings(ctx)
	if err != nil {
		return model.Listing{}, err
	}
	for _, listing := range active {
		if listing.TokenID == tokenID {
			return listing, nil
		}
	}
	return model.Listing{}, fmt.Errorf("%w: token %d", fault.ErrNotListed, tokenID)
}

func (r *Registry) defaultPrice(ctx context.Context, tokenID uint64) (decimal.Decimal, error) {
	poolID, err := r.token.TokenToPoolID(ctx, tokenID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("resolve pool for token %d: %w", tokenID, err)
	}
	info, err := r.token.GetSupplyInfo(ctx, poolID)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("supply info for pool %d: %w", poolID, err)
	}
	if !info.Price.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: pool %d has no unit price", fault.ErrInvalidPrice, poolID)
	}
	return info.Price, nil
}

func (r *Registry) ensureApproval(ctx context.Context) error {
	operator := r.market.Address()
	approved, err := r.token.IsApprovedForAll(ctx, r.actor, operator)
	if err != nil {
		return fmt.Errorf("check approval: %w", err)
	}
	if approved {
		return nil
	}

	txHash, err := r.token.SetApprovalForAll(ctx, operator, true)
	if err != nil {
		return fmt.Errorf("grant approval: %w", err)
	}
	r.logger.Info("marketplace approved for transfers", zap.String("tx", txHash))
	return nil
}
