// Package sync coordinates the reconcile-before-view and
// refresh-after-mutation policy. The orchestrator owns no ledger state;
// dependent views poll its version counter to learn that a mutation was
// confirmed.
package sync

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"statpool/internal/fault"
	"statpool/internal/model"
	"statpool/internal/pricing"
	"statpool/internal/reconcile"
)

// PoolLedger is the token-contract capability the orchestrator reads and
// mints through.
type PoolLedger interface {
	PoolIDCounter(ctx context.Context) (uint64, error)
	GetPlayerStats(ctx context.Context, poolID uint64) (model.PoolAttributes, error)
	GetSupplyInfo(ctx context.Context, poolID uint64) (model.SupplyInfo, error)
	MintFromAvailable(ctx context.Context, poolID, quantity uint64) (string, error)
	TokenToPoolID(ctx context.Context, tokenID uint64) (uint64, error)
	BalanceOf(ctx context.Context, owner common.Address) (uint64, error)
	TokenOfOwnerByIndex(ctx context.Context, owner common.Address, index uint64) (uint64, error)
	TokenURI(ctx context.Context, tokenID uint64) (string, error)
}

// Reconciler corrects one pool's ledger attributes against the feed.
type Reconciler interface {
	Reconcile(ctx context.Context, poolID uint64, onChain model.PoolAttributes) (reconcile.Outcome, error)
}

// Lister is the listing capability the orchestrator drives.
type Lister interface {
	CreateListing(ctx context.Context, tokenID uint64, price decimal.Decimal) (string, error)
	CancelListing(ctx context.Context, tokenID uint64) (string, error)
	Buy(ctx context.Context, tokenID uint64) (string, error)
	ActiveListings(ctx context.Context) ([]model.Listing, error)
	ListedTokenSet(ctx context.Context) (map[uint64]struct{}, error)
}

// Payments is the settlement capability used for mint pre-flight.
type Payments interface {
	BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (string, error)
}

// MintableEntry is one pool's mintable state after reconciliation.
type MintableEntry struct {
	PoolID      uint64
	Category    string
	Role        string
	Date        string
	Image       string
	Description string
	Price       decimal.Decimal
	Remaining   uint64
}

// OwnedEntry groups an owner's tokens that share one metadata identity.
type OwnedEntry struct {
	Name        string
	Description string
	Image       string
	TokenIDs    []uint64
	ListedCount int
}

// Config holds orchestrator settings.
type Config struct {
	// TokenSpender is the contract paid for mints, i.e. the token contract
	// address the payment allowance must cover.
	TokenSpender common.Address
	// MetadataTTL bounds the advisory token-metadata cache. The cache is
	// display-only; on-chain attributes are always re-read.
	MetadataTTL time.Duration
}

// Orchestrator drives reconciliation and listing flows for one acting party.
type Orchestrator struct {
	cfg       Config
	pool      PoolLedger
	rec       Reconciler
	lister    Lister
	payments  Payments
	actor     common.Address
	logger    *zap.Logger
	version   atomic.Uint64
	metaCache *gocache.Cache
}

// New builds an Orchestrator.
func New(cfg Config, pool PoolLedger, rec Reconciler, lister Lister, payments Payments, actor common.Address, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.MetadataTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Orchestrator{
		cfg:       cfg,
		pool:      pool,
		rec:       rec,
		lister:    lister,
		payments:  payments,
		actor:     actor,
		logger:    logger,
		metaCache: gocache.New(ttl, 2*ttl),
	}
}

// Version returns the monotonically increasing mutation counter. A changed
// version tells dependent views that confirmed state moved underneath them.
func (o *Orchestrator) Version() uint64 {
	return o.version.Load()
}

func (o *Orchestrator) bump() {
	o.version.Add(1)
}

// MintableView reconciles every pool and returns its mintable state. A pool
// that fails to load or reconcile is skipped with a warning so one bad pool
// does not hide the rest.
func (o *Orchestrator) MintableView(ctx context.Context) ([]MintableEntry, error) {
	counter, err := o.pool.PoolIDCounter(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool counter: %w", err)
	}

	var entries []MintableEntry
	for poolID := uint64(1); poolID < counter; poolID++ {
		entry, err := o.mintableEntry(ctx, poolID)
		if err != nil {
			o.logger.Warn("skipping pool", zap.Uint64("pool_id", poolID), zap.Error(err))
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (o *Orchestrator) mintableEntry(ctx context.Context, poolID uint64) (MintableEntry, error) {
	stats, err := o.pool.GetPlayerStats(ctx, poolID)
	if err != nil {
		return MintableEntry{}, fmt.Errorf("read stats: %w", err)
	}

	outcome, err := o.rec.Reconcile(ctx, poolID, stats)
	if err != nil {
		return MintableEntry{}, fmt.Errorf("reconcile: %w", err)
	}
	if outcome == reconcile.Updated {
		// Surface the corrected attributes, not the stale read.
		if stats, err = o.pool.GetPlayerStats(ctx, poolID); err != nil {
			return MintableEntry{}, fmt.Errorf("re-read stats: %w", err)
		}
	}

	info, err := o.pool.GetSupplyInfo(ctx, poolID)
	if err != nil {
		return MintableEntry{}, fmt.Errorf("read supply: %w", err)
	}

	return MintableEntry{
		PoolID:      poolID,
		Category:    stats.Category,
		Role:        stats.Role,
		Date:        stats.Date,
		Image:       stats.Image,
		Description: fmt.Sprintf("Top %s %s as of %s", stats.Category, stats.Role, stats.Date),
		Price:       info.Price,
		Remaining:   info.Remaining(),
	}, nil
}

// Mint purchases quantity tokens from the pool. Supply, balance, and
// allowance are pre-flighted locally; the allowance top-up and the mint are
// sequential awaited writes.
func (o *Orchestrator) Mint(ctx context.Context, poolID, quantity uint64) (string, error) {
	if quantity == 0 {
		return "", fmt.Errorf("mint quantity must be positive")
	}

	info, err := o.pool.GetSupplyInfo(ctx, poolID)
	if err != nil {
		return "", fmt.Errorf("read supply: %w", err)
	}
	if info.Minted+quantity > info.Max {
		return "", fmt.Errorf("%w: pool %d has %d of %d left",
			fault.ErrSoldOut, poolID, info.Remaining(), info.Max)
	}

	total := info.Price.Mul(decimal.NewFromInt(int64(quantity)))
	totalUnits := pricing.PriceToUnits(total)

	balance, err := o.payments.BalanceOf(ctx, o.actor)
	if err != nil {
		return "", fmt.Errorf("payment balance: %w", err)
	}
	if balance.Cmp(totalUnits) < 0 {
		return "", fmt.Errorf("%w: have %s, need %s",
			fault.ErrInsufficientBalance,
			pricing.PriceFromUnits(balance).StringFixed(2),
			total.StringFixed(2),
		)
	}

	allowance, err := o.payments.Allowance(ctx, o.actor, o.cfg.TokenSpender)
	if err != nil {
		return "", fmt.Errorf("payment allowance: %w", err)
	}
	if allowance.Cmp(totalUnits) < 0 {
		approveTx, err := o.payments.Approve(ctx, o.cfg.TokenSpender, totalUnits)
		if err != nil {
			return "", fmt.Errorf("approve payment: %w", err)
		}
		o.logger.Info("mint payment approved",
			zap.String("amount", total.StringFixed(2)),
			zap.String("tx", approveTx),
		)
	}

	txHash, err := o.pool.MintFromAvailable(ctx, poolID, quantity)
	if err != nil {
		return "", fmt.Errorf("mint from pool %d: %w", poolID, err)
	}

	o.bump()
	o.logger.Info("minted",
		zap.Uint64("pool_id", poolID),
		zap.Uint64("quantity", quantity),
		zap.String("tx", txHash),
	)
	return txHash, nil
}

// OwnedView enumerates the owner's tokens, reconciling each distinct pool
// once, and groups them by metadata identity.
func (o *Orchestrator) OwnedView(ctx context.Context, owner common.Address) ([]OwnedEntry, error) {
	balance, err := o.pool.BalanceOf(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("token balance: %w", err)
	}

	checked := make(map[uint64]struct{})
	groups := make(map[string]*OwnedEntry)
	var order []string

	for i := uint64(0); i < balance; i++ {
		tokenID, err := o.pool.TokenOfOwnerByIndex(ctx, owner, i)
		if err != nil {
			return nil, fmt.Errorf("token of owner at %d: %w", i, err)
		}

		poolID, err := o.pool.TokenToPoolID(ctx, tokenID)
		if err != nil {
			return nil, fmt.Errorf("pool for token %d: %w", tokenID, err)
		}

		if _, done := checked[poolID]; !done {
			checked[poolID] = struct{}{}
			stats, err := o.pool.GetPlayerStats(ctx, poolID)
			if err != nil {
				return nil, fmt.Errorf("read stats for pool %d: %w", poolID, err)
			}
			if _, err := o.rec.Reconcile(ctx, poolID, stats); err != nil {
				o.logger.Warn("reconcile failed for owned pool",
					zap.Uint64("pool_id", poolID), zap.Error(err))
			}
		}

		meta, err := o.tokenMetadata(ctx, tokenID)
		if err != nil {
			return nil, fmt.Errorf("metadata for token %d: %w", tokenID, err)
		}

		key := meta.Name + meta.Image
		group, ok := groups[key]
		if !ok {
			group = &OwnedEntry{Name: meta.Name, Description: meta.Description, Image: meta.Image}
			groups[key] = group
			order = append(order, key)
		}
		group.TokenIDs = append(group.TokenIDs, tokenID)
	}

	listed, err := o.lister.ListedTokenSet(ctx)
	if err != nil {
		return nil, fmt.Errorf("listed tokens: %w", err)
	}

	entries := make([]OwnedEntry, 0, len(order))
	for _, key := range order {
		group := groups[key]
		for _, tokenID := range group.TokenIDs {
			if _, ok := listed[tokenID]; ok {
				group.ListedCount++
			}
		}
		entries = append(entries, *group)
	}
	return entries, nil
}

// List creates a listing through the registry and bumps the version.
func (o *Orchestrator) List(ctx context.Context, tokenID uint64, price decimal.Decimal) (string, error) {
	txHash, err := o.lister.CreateListing(ctx, tokenID, price)
	if err != nil {
		return "", err
	}
	o.bump()
	return txHash, nil
}

// Cancel removes a listing through the registry and bumps the version.
func (o *Orchestrator) Cancel(ctx context.Context, tokenID uint64) (string, error) {
	txHash, err := o.lister.CancelListing(ctx, tokenID)
	if err != nil {
		return "", err
	}
	o.bump()
	return txHash, nil
}

// Buy purchases a listing through the registry and bumps the version.
func (o *Orchestrator) Buy(ctx context.Context, tokenID uint64) (string, error) {
	txHash, err := o.lister.Buy(ctx, tokenID)
	if err != nil {
		return "", err
	}
	o.bump()
	return txHash, nil
}

// Listings returns the normalized listing view.
func (o *Orchestrator) Listings(ctx context.Context) ([]model.Listing, error) {
	return o.lister.ActiveListings(ctx)
}

// TokenMetadata is the display metadata embedded in a token URI.
type TokenMetadata struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

func (o *Orchestrator) tokenMetadata(ctx context.Context, tokenID uint64) (TokenMetadata, error) {
	key := strconv.FormatUint(tokenID, 10)
	if cached, ok := o.metaCache.Get(key); ok {
		return cached.(TokenMetadata), nil
	}

	uri, err := o.pool.TokenURI(ctx, tokenID)
	if err != nil {
		return TokenMetadata{}, err
	}
	meta, err := DecodeTokenURI(uri)
	if err != nil {
		return TokenMetadata{}, err
	}

	o.metaCache.SetDefault(key, meta)
	return meta, nil
}

// DecodeTokenURI parses a base64 data URI into token metadata.
func DecodeTokenURI(uri string) (TokenMetadata, error) {
	_, payload, found := strings.Cut(uri, ",")
	if !found {
		return TokenMetadata{}, fmt.Errorf("token uri has no payload")
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return TokenMetadata{}, fmt.Errorf("decode token uri: %w", err)
	}
	var meta TokenMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return TokenMetadata{}, fmt.Errorf("parse token metadata: %w", err)
	}
	return meta, nil
}
