package sync

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"statpool/internal/fault"
	"statpool/internal/model"
	"statpool/internal/reconcile"
)

var (
	ownerAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	spenderAddr = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

type fakePool struct {
	counter   uint64
	stats     map[uint64]model.PoolAttributes
	supply    map[uint64]model.SupplyInfo
	tokenPool map[uint64]uint64
	owned     []uint64
	uris      map[uint64]string

	statsErr map[uint64]error
	mints    []uint64
	uriReads int
}

func (f *fakePool) PoolIDCounter(_ context.Context) (uint64, error) { return f.counter, nil }

func (f *fakePool) GetPlayerStats(_ context.Context, poolID uint64) (model.PoolAttributes, error) {
	if err := f.statsErr[poolID]; err != nil {
		return model.PoolAttributes{}, err
	}
	return f.stats[poolID], nil
}

func (f *fakePool) GetSupplyInfo(_ context.Context, poolID uint64) (model.SupplyInfo, error) {
	return f.supply[poolID], nil
}

func (f *fakePool) MintFromAvailable(_ context.Context, poolID, quantity uint64) (string, error) {
	for i := uint64(0); i < quantity; i++ {
		f.mints = append(f.mints, poolID)
	}
	return "0xmint", nil
}

func (f *fakePool) TokenToPoolID(_ context.Context, tokenID uint64) (uint64, error) {
	return f.tokenPool[tokenID], nil
}

func (f *fakePool) BalanceOf(_ context.Context, _ common.Address) (uint64, error) {
	return uint64(len(f.owned)), nil
}

func (f *fakePool) TokenOfOwnerByIndex(_ context.Context, _ common.Address, index uint64) (uint64, error) {
	return f.owned[index], nil
}

func (f *fakePool) TokenURI(_ context.Context, tokenID uint64) (string, error) {
	f.uriReads++
	return f.uris[tokenID], nil
}

type fakeReconciler struct {
	outcomes map[uint64]reconcile.Outcome
	errs     map[uint64]error
	calls    []uint64
	// corrected replaces the pool's stats after an Updated outcome, so the
	// next read observes the correction.
	corrected map[uint64]model.PoolAttributes
	pool      *fakePool
}

func (f *fakeReconciler) Reconcile(_ context.Context, poolID uint64, _ model.PoolAttributes) (reconcile.Outcome, error) {
	f.calls = append(f.calls, poolID)
	if err := f.errs[poolID]; err != nil {
		return reconcile.Unchanged, err
	}
	outcome := f.outcomes[poolID]
	if outcome == reconcile.Updated && f.pool != nil {
		f.pool.stats[poolID] = f.corrected[poolID]
	}
	return outcome, nil
}

type fakeLister struct {
	listings []model.Listing
	listErr  error
	lastOp   string
}

func (f *fakeLister) CreateListing(_ context.Context, tokenID uint64, _ decimal.Decimal) (string, error) {
	if f.listErr != nil {
		return "", f.listErr
	}
	f.lastOp = fmt.Sprintf("list %d", tokenID)
	return "0xlist", nil
}

func (f *fakeLister) CancelListing(_ context.Context, tokenID uint64) (string, error) {
	if f.listErr != nil {
		return "", f.listErr
	}
	f.lastOp = fmt.Sprintf("cancel %d", tokenID)
	return "0xcancel", nil
}

func (f *fakeLister) Buy(_ context.Context, tokenID uint64) (string, error) {
	if f.listErr != nil {
		return "", f.listErr
	}
	f.lastOp = fmt.Sprintf("buy %d", tokenID)
	return "0xbuy", nil
}

func (f *fakeLister) ActiveListings(_ context.Context) ([]model.Listing, error) {
	return f.listings, nil
}

func (f *fakeLister) ListedTokenSet(_ context.Context) (map[uint64]struct{}, error) {
	set := make(map[uint64]struct{})
	for _, l := range f.listings {
		set[l.TokenID] = struct{}{}
	}
	return set, nil
}

type fakePayments struct {
	balance   *big.Int
	allowance *big.Int
	approved  *big.Int
}

func (f *fakePayments) BalanceOf(_ context.Context, _ common.Address) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakePayments) Allowance(_ context.Context, _, _ common.Address) (*big.Int, error) {
	return f.allowance, nil
}

func (f *fakePayments) Approve(_ context.Context, _ common.Address, amount *big.Int) (string, error) {
	f.approved = amount
	return "0xapprove", nil
}

func metadataURI(name, description, image string) string {
	raw := fmt.Sprintf(`{"name":%q,"description":%q,"image":%q}`, name, description, image)
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(raw))
}

func testAttrs(player string, runs uint64) model.PoolAttributes {
	return model.PoolAttributes{
		PlayerName: player,
		Matches:    10,
		Runs:       runs,
		Category:   model.CategoryMostRuns,
		Role:       model.RoleBatsman,
		Image:      "ipfs://" + player,
		Date:       "8/3/24",
	}
}

func newTestOrchestrator(pool *fakePool, rec *fakeReconciler, lister *fakeLister, pay *fakePayments) *Orchestrator {
	rec.pool = pool
	return New(Config{TokenSpender: spenderAddr}, pool, rec, lister, pay, ownerAddr, nil)
}

func TestMintableViewReconcilesEveryPool(t *testing.T) {
	pool := &fakePool{
		counter: 3,
		stats: map[uint64]model.PoolAttributes{
			1: testAttrs("Kohli", 450),
			2: testAttrs("Bumrah", 120),
		},
		supply: map[uint64]model.SupplyInfo{
			1: {Minted: 10, Max: 50, Price: decimal.RequireFromString("4.20")},
			2: {Minted: 50, Max: 50, Price: decimal.RequireFromString("1.00")},
		},
	}
	rec := &fakeReconciler{outcomes: map[uint64]reconcile.Outcome{}}
	o := newTestOrchestrator(pool, rec, &fakeLister{}, &fakePayments{})

	entries, err := o.MintableView(context.Background())
	if err != nil {
		t.Fatalf("MintableView: %v", err)
	}
	if !reflect.DeepEqual(rec.calls, []uint64{1, 2}) {
		t.Fatalf("reconciled pools = %v, want [1 2]", rec.calls)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].PoolID != 1 || entries[0].Remaining != 40 {
		t.Fatalf("entry 0 = %+v", entries[0])
	}
	if entries[1].Remaining != 0 {
		t.Fatalf("sold out pool remaining = %d, want 0", entries[1].Remaining)
	}
}

func TestMintableViewRereadsAfterCorrection(t *testing.T) {
	stale := testAttrs("Kohli", 400)
	fresh := testAttrs("Kohli", 450)
	fresh.Image = "ipfs://kohli-updated"
	pool := &fakePool{
		counter: 2,
		stats:   map[uint64]model.PoolAttributes{1: stale},
		supply:  map[uint64]model.SupplyInfo{1: {Minted: 0, Max: 50, Price: decimal.RequireFromString("4.20")}},
	}
	rec := &fakeReconciler{
		outcomes:  map[uint64]reconcile.Outcome{1: reconcile.Updated},
		corrected: map[uint64]model.PoolAttributes{1: fresh},
	}
	o := newTestOrchestrator(pool, rec, &fakeLister{}, &fakePayments{})

	entries, err := o.MintableView(context.Background())
	if err != nil {
		t.Fatalf("MintableView: %v", err)
	}
	if entries[0].Image != fresh.Image {
		t.Fatalf("entry image = %q, want corrected read", entries[0].Image)
	}
}

func TestMintableViewSkipsFailingPool(t *testing.T) {
	pool := &fakePool{
		counter: 3,
		stats: map[uint64]model.PoolAttributes{
			2: testAttrs("Bumrah", 120),
		},
		statsErr: map[uint64]error{1: errors.New("execution reverted")},
		supply: map[uint64]model.SupplyInfo{
			2: {Minted: 0, Max: 50, Price: decimal.RequireFromString("2.50")},
		},
	}
	rec := &fakeReconciler{outcomes: map[uint64]reconcile.Outcome{}}
	o := newTestOrchestrator(pool, rec, &fakeLister{}, &fakePayments{})

	entries, err := o.MintableView(context.Background())
	if err != nil {
		t.Fatalf("MintableView: %v", err)
	}
	if len(entries) != 1 || entries[0].PoolID != 2 {
		t.Fatalf("entries = %+v, want only pool 2", entries)
	}
}

func TestMintSoldOut(t *testing.T) {
	pool := &fakePool{
		supply: map[uint64]model.SupplyInfo{1: {Minted: 49, Max: 50, Price: decimal.RequireFromString("2.00")}},
	}
	o := newTestOrchestrator(pool, &fakeReconciler{}, &fakeLister{}, &fakePayments{})

	_, err := o.Mint(context.Background(), 1, 2)
	if !errors.Is(err, fault.ErrSoldOut) {
		t.Fatalf("err = %v, want ErrSoldOut", err)
	}
	if len(pool.mints) != 0 {
		t.Fatalf("mint submitted despite exhausted supply")
	}
}

func TestMintInsufficientBalance(t *testing.T) {
	pool := &fakePool{
		supply: map[uint64]model.SupplyInfo{1: {Minted: 0, Max: 50, Price: decimal.RequireFromString("4.20")}},
	}
	pay := &fakePayments{balance: big.NewInt(419), allowance: big.NewInt(0)}
	o := newTestOrchestrator(pool, &fakeReconciler{}, &fakeLister{}, pay)

	_, err := o.Mint(context.Background(), 1, 1)
	if !errors.Is(err, fault.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	if pay.approved != nil || len(pool.mints) != 0 {
		t.Fatalf("writes submitted despite failed pre-flight")
	}
}

func TestMintTopsUpAllowance(t *testing.T) {
	pool := &fakePool{
		supply: map[uint64]model.SupplyInfo{1: {Minted: 0, Max: 50, Price: decimal.RequireFromString("4.20")}},
	}
	pay := &fakePayments{balance: big.NewInt(1000), allowance: big.NewInt(100)}
	o := newTestOrchestrator(pool, &fakeReconciler{}, &fakeLister{}, pay)

	txHash, err := o.Mint(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if txHash != "0xmint" {
		t.Fatalf("txHash = %q", txHash)
	}
	// 2 x 4.20 in 2-decimal base units.
	if pay.approved == nil || pay.approved.Cmp(big.NewInt(840)) != 0 {
		t.Fatalf("approved = %v, want 840", pay.approved)
	}
	if !reflect.DeepEqual(pool.mints, []uint64{1, 1}) {
		t.Fatalf("mints = %v", pool.mints)
	}
	if o.Version() != 1 {
		t.Fatalf("version = %d, want 1", o.Version())
	}
}

func TestMintSkipsApprovalWhenCovered(t *testing.T) {
	pool := &fakePool{
		supply: map[uint64]model.SupplyInfo{1: {Minted: 0, Max: 50, Price: decimal.RequireFromString("4.20")}},
	}
	pay := &fakePayments{balance: big.NewInt(1000), allowance: big.NewInt(1000)}
	o := newTestOrchestrator(pool, &fakeReconciler{}, &fakeLister{}, pay)

	if _, err := o.Mint(context.Background(), 1, 1); err != nil {
		t.Fatalf("Mint: %v", err)
	}
	if pay.approved != nil {
		t.Fatalf("approval submitted despite sufficient allowance")
	}
}

func TestOwnedViewGroupsByMetadata(t *testing.T) {
	pool := &fakePool{
		stats: map[uint64]model.PoolAttributes{
			1: testAttrs("Kohli", 450),
			2: testAttrs("Bumrah", 120),
		},
		tokenPool: map[uint64]uint64{11: 1, 12: 1, 21: 2},
		owned:     []uint64{11, 12, 21},
		uris: map[uint64]string{
			11: metadataURI("Kohli", "Most Runs", "ipfs://kohli"),
			12: metadataURI("Kohli", "Most Runs", "ipfs://kohli"),
			21: metadataURI("Bumrah", "Most Wickets", "ipfs://bumrah"),
		},
	}
	rec := &fakeReconciler{outcomes: map[uint64]reconcile.Outcome{}}
	lister := &fakeLister{listings: []model.Listing{
		{TokenID: 12, Seller: ownerAddr.Hex(), Price: decimal.RequireFromString("5.00")},
	}}
	o := newTestOrchestrator(pool, rec, lister, &fakePayments{})

	entries, err := o.OwnedView(context.Background(), ownerAddr)
	if err != nil {
		t.Fatalf("OwnedView: %v", err)
	}

	want := []OwnedEntry{
		{Name: "Kohli", Description: "Most Runs", Image: "ipfs://kohli", TokenIDs: []uint64{11, 12}, ListedCount: 1},
		{Name: "Bumrah", Description: "Most Wickets", Image: "ipfs://bumrah", TokenIDs: []uint64{21}},
	}
	if !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %+v, want %+v", entries, want)
	}
	// Both tokens of pool 1 trigger one reconciliation.
	if !reflect.DeepEqual(rec.calls, []uint64{1, 2}) {
		t.Fatalf("reconciled pools = %v, want [1 2]", rec.calls)
	}
}

func TestOwnedViewCachesMetadata(t *testing.T) {
	pool := &fakePool{
		stats:     map[uint64]model.PoolAttributes{1: testAttrs("Kohli", 450)},
		tokenPool: map[uint64]uint64{11: 1},
		owned:     []uint64{11},
		uris:      map[uint64]string{11: metadataURI("Kohli", "Most Runs", "ipfs://kohli")},
	}
	rec := &fakeReconciler{outcomes: map[uint64]reconcile.Outcome{}}
	o := newTestOrchestrator(pool, rec, &fakeLister{}, &fakePayments{})

	for i := 0; i < 3; i++ {
		if _, err := o.OwnedView(context.Background(), ownerAddr); err != nil {
			t.Fatalf("OwnedView: %v", err)
		}
	}
	if pool.uriReads != 1 {
		t.Fatalf("uriReads = %d, want 1", pool.uriReads)
	}
}

func TestOwnedViewToleratesReconcileFailure(t *testing.T) {
	pool := &fakePool{
		stats:     map[uint64]model.PoolAttributes{1: testAttrs("Kohli", 450)},
		tokenPool: map[uint64]uint64{11: 1},
		owned:     []uint64{11},
		uris:      map[uint64]string{11: metadataURI("Kohli", "Most Runs", "ipfs://kohli")},
	}
	rec := &fakeReconciler{errs: map[uint64]error{1: errors.New("execution reverted")}}
	o := newTestOrchestrator(pool, rec, &fakeLister{}, &fakePayments{})

	entries, err := o.OwnedView(context.Background(), ownerAddr)
	if err != nil {
		t.Fatalf("OwnedView: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
}

func TestMutationsBumpVersion(t *testing.T) {
	lister := &fakeLister{}
	o := newTestOrchestrator(&fakePool{}, &fakeReconciler{}, lister, &fakePayments{})

	if _, err := o.List(context.Background(), 7, decimal.RequireFromString("3.00")); err != nil {
		t.Fatalf("List: %v", err)
	}
	if _, err := o.Cancel(context.Background(), 7); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := o.Buy(context.Background(), 7); err != nil {
		t.Fatalf("Buy: %v", err)
	}
	if o.Version() != 3 {
		t.Fatalf("version = %d, want 3", o.Version())
	}
}

func TestFailedMutationLeavesVersion(t *testing.T) {
	lister := &fakeLister{listErr: fault.ErrNotListed}
	o := newTestOrchestrator(&fakePool{}, &fakeReconciler{}, lister, &fakePayments{})

	if _, err := o.Buy(context.Background(), 7); !errors.Is(err, fault.ErrNotListed) {
		t.Fatalf("err = %v, want ErrNotListed", err)
	}
	if o.Version() != 0 {
		t.Fatalf("version = %d, want 0", o.Version())
	}
}

func TestDecodeTokenURI(t *testing.T) {
	meta, err := DecodeTokenURI(metadataURI("Kohli", "Most Runs", "ipfs://kohli"))
	if err != nil {
		t.Fatalf("DecodeTokenURI: %v", err)
	}
	want := TokenMetadata{Name: "Kohli", Description: "Most Runs", Image: "ipfs://kohli"}
	if meta != want {
		t.Fatalf("meta = %+v, want %+v", meta, want)
	}

	if _, err := DecodeTokenURI("no payload here"); err == nil {
		t.Fatalf("expected error for uri without payload")
	}
	if _, err := DecodeTokenURI("data:application/json;base64,!!!"); err == nil {
		t.Fatalf("expected error for invalid base64")
	}
}
