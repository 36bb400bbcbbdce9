package ledger

import (
	"context"
	"math/big"
	"reflect"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"statpool/internal/model"
)

// fakeCaller answers every contract call with a canned ABI-encoded response.
type fakeCaller struct {
	resp []byte
	err  error
}

func (f *fakeCaller) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	return f.resp, f.err
}

func sampleAttributes() model.PoolAttributes {
	return model.PoolAttributes{
		PlayerName: "V Kohli",
		Matches:    10,
		Runs:       450,
		Fifties:    4,
		Centuries:  1,
		StrikeRate: 141.2,
		Category:   model.CategoryMostRuns,
		Role:       model.RoleBatsman,
		Image:      "ipfs://QmRuns",
		Date:       "5/3/25",
	}
}

func TestGetPlayerStatsRoundTrip(t *testing.T) {
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	want := sampleAttributes()
	resp, err := parsed.Methods["getPlayerStats"].Outputs.Pack(toStatsTuple(want))
	if err != nil {
		t.Fatalf("pack stats: %v", err)
	}

	token, err := NewTokenContract(common.HexToAddress("0x1"), &fakeCaller{resp: resp}, nil)
	if err != nil {
		t.Fatalf("new token contract: %v", err)
	}

	got, err := token.GetPlayerStats(context.Background(), 1)
	if err != nil {
		t.Fatalf("get player stats: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("attributes mismatch: %+v != %+v", got, want)
	}
}

func TestGetSupplyInfo(t *testing.T) {
	parsed, err := TokenABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	resp, err := parsed.Methods["getSupplyInfo"].Outputs.Pack(
		big.NewInt(12), big.NewInt(50), big.NewInt(420),
	)
	if err != nil {
		t.Fatalf("pack supply: %v", err)
	}

	token, err := NewTokenContract(common.HexToAddress("0x1"), &fakeCaller{resp: resp}, nil)
	if err != nil {
		t.Fatalf("new token contract: %v", err)
	}

	info, err := token.GetSupplyInfo(context.Background(), 3)
	if err != nil {
		t.Fatalf("get supply info: %v", err)
	}
	if info.Minted != 12 || info.Max != 50 {
		t.Fatalf("supply mismatch: %+v", info)
	}
	if info.Price.StringFixed(2) != "4.20" {
		t.Fatalf("price mismatch: %s", info.Price)
	}
	if info.Remaining() != 38 {
		t.Fatalf("remaining mismatch: %d", info.Remaining())
	}
}

func TestGetAllListings(t *testing.T) {
	parsed, err := MarketABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	seller := common.HexToAddress("0xAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAaAa")
	resp, err := parsed.Methods["getAllListings"].Outputs.Pack(
		[]*big.Int{big.NewInt(5), big.NewInt(5)},
		[]listingTuple{
			{Seller: seller, Price: big.NewInt(200), Timestamp: big.NewInt(1714000000)},
			{Seller: seller, Price: big.NewInt(0), Timestamp: big.NewInt(1714000500)},
		},
	)
	if err != nil {
		t.Fatalf("pack listings: %v", err)
	}

	market, err := NewMarketContract(common.HexToAddress("0x2"), &fakeCaller{resp: resp}, nil)
	if err != nil {
		t.Fatalf("new market contract: %v", err)
	}

	listings, err := market.GetAllListings(context.Background())
	if err != nil {
		t.Fatalf("get all listings: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected raw feed of 2, got %d", len(listings))
	}
	if listings[0].TokenID != 5 || listings[0].Price.StringFixed(2) != "2.00" || !listings[0].Active() {
		t.Fatalf("first listing mismatch: %+v", listings[0])
	}
	if listings[1].Active() {
		t.Fatalf("zero-price listing must be inactive")
	}
	if listings[0].Key() != listings[1].Key() {
		t.Fatalf("dedup keys should match for same token and seller")
	}
}

func TestStatsTupleRateFormat(t *testing.T) {
	attrs := sampleAttributes()
	tuple := toStatsTuple(attrs)
	if tuple.StrikeRate != "141.2" {
		t.Fatalf("strike rate format mismatch: %s", tuple.StrikeRate)
	}

	back, err := fromStatsTuple(tuple)
	if err != nil {
		t.Fatalf("from tuple: %v", err)
	}
	if !reflect.DeepEqual(back, attrs) {
		t.Fatalf("tuple round-trip mismatch: %+v != %+v", back, attrs)
	}
}
