package engine

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"gridLadder/internal/asset"
	"gridLadder/internal/fixedpoint"
	"gridLadder/internal/ladder"
	"gridLadder/internal/oracle"
)

var (
	baseToken  = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	quoteToken = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	engineAcct = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	ownerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	buyerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")

	engineNow = time.Unix(1_700_000_000, 0)
)

const farDeadline = int64(4_000_000_000)

func e6(n int64) *big.Int  { return new(big.Int).Mul(big.NewInt(n), fixedpoint.Pow10(6)) }
func e8(n int64) *big.Int  { return new(big.Int).Mul(big.NewInt(n), fixedpoint.Pow10(8)) }
func e18(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), fixedpoint.Pow10(18)) }

func usdRound(price1e8 *big.Int) oracle.RoundData {
	return oracle.RoundData{
		RoundID:         big.NewInt(1),
		Answer:          new(big.Int).Set(price1e8),
		UpdatedAt:       uint64(engineNow.Unix()) - 30,
		AnsweredInRound: big.NewInt(1),
		Decimals:        8,
	}
}

type harness struct {
	engine    *Engine
	ledger    *asset.MemoryLedger
	baseFeed  *oracle.StaticFeed
	quoteFeed *oracle.StaticFeed
	params    ladder.Params
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	ledger := asset.NewMemoryLedger(engineAcct)
	ledger.SetDecimals(baseToken, 18)
	ledger.SetDecimals(quoteToken, 6)
	ledger.SetBalance(baseToken, ownerAddr, e18(100))
	ledger.Approve(baseToken, ownerAddr, e18(100))
	ledger.SetBalance(quoteToken, buyerAddr, e6(1_000_000))
	ledger.Approve(quoteToken, buyerAddr, e6(1_000_000))

	baseFeed := oracle.NewStaticFeed(usdRound(e8(2000)))
	quoteFeed := oracle.NewStaticFeed(usdRound(e8(1)))

	eng := New(Deps{
		Ledger:    ledger,
		BaseFeed:  baseFeed,
		QuoteFeed: quoteFeed,
		Account:   engineAcct,
		Now:       func() time.Time { return engineNow },
	})

	return &harness{
		engine:    eng,
		ledger:    ledger,
		baseFeed:  baseFeed,
		quoteFeed: quoteFeed,
		params: ladder.Params{
			RungCount:           3,
			InitialDeviationBps: 100,
			TakeProfitBps:       200,
			PriceGrowthBps:      11000,
			SizeGrowthBps:       500,
			BaseRungSize:        e18(1),
			SubsequentRungSize:  e18(1),
		},
	}
}

func (h *harness) initialize(t *testing.T) {
	t.Helper()
	if err := h.engine.Initialize(context.Background(), h.params, baseToken, quoteToken, ownerAddr); err != nil {
		t.Fatalf("initialize: %v", err)
	}
}

func TestInitializePullsInventory(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	if !h.engine.Initialized() {
		t.Fatalf("engine must report initialized")
	}

	// 1e18 + 1e18 + 1.05e18
	wantTotal := new(big.Int).Add(e18(2), new(big.Int).Mul(big.NewInt(105), fixedpoint.Pow10(16)))
	bal, err := h.engine.AvailableBaseBalance(context.Background())
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if bal.Cmp(wantTotal) != 0 {
		t.Fatalf("engine inventory mismatch: %s != %s", bal, wantTotal)
	}

	rungs := h.engine.Rungs()
	if len(rungs) != 3 {
		t.Fatalf("rung count mismatch: %d", len(rungs))
	}
	if rungs[0].Price.Cmp(e8(2000)) != 0 {
		t.Fatalf("rung 0 price mismatch: %s", rungs[0].Price)
	}
	if h.engine.Cursor() != 0 {
		t.Fatalf("cursor must start at 0")
	}
	if h.engine.TotalBaseSold().Sign() != 0 {
		t.Fatalf("nothing sold at initialize")
	}
	if h.engine.AverageSellPrice().Sign() != 0 {
		t.Fatalf("average sell price must be zero before fills")
	}
}

func TestInitializeIsOneShot(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	err := h.engine.Initialize(context.Background(), h.params, baseToken, quoteToken, ownerAddr)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected double-initialize error, got %v", err)
	}
}

func TestInitializeConfigRejections(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		run  func(h *harness) error
	}{
		{"zero base token", func(h *harness) error {
			return h.engine.Initialize(ctx, h.params, common.Address{}, quoteToken, ownerAddr)
		}},
		{"equal tokens", func(h *harness) error {
			return h.engine.Initialize(ctx, h.params, baseToken, baseToken, ownerAddr)
		}},
		{"one rung", func(h *harness) error {
			h.params.RungCount = 1
			return h.engine.Initialize(ctx, h.params, baseToken, quoteToken, ownerAddr)
		}},
		{"take profit too high", func(h *harness) error {
			h.params.TakeProfitBps = 10000
			return h.engine.Initialize(ctx, h.params, baseToken, quoteToken, ownerAddr)
		}},
	}
	for _, tc := range cases {
		h := newHarness(t)
		if err := tc.run(h); !errors.Is(err, ErrConfig) {
			t.Fatalf("%s: expected config error, got %v", tc.name, err)
		}
		if h.engine.Initialized() {
			t.Fatalf("%s: failed initialize must not mark engine initialized", tc.name)
		}
	}
}

func TestInitializeRejectsStaleOracle(t *testing.T) {
	h := newHarness(t)
	round := usdRound(e8(2000))
	round.UpdatedAt = uint64(engineNow.Add(-2 * time.Hour).Unix())
	h.baseFeed.SetRound(round)

	err := h.engine.Initialize(context.Background(), h.params, baseToken, quoteToken, ownerAddr)
	if !errors.Is(err, oracle.ErrRoundTooOld) {
		t.Fatalf("expected too-old oracle error, got %v", err)
	}
}

func TestInitializeFailsWithoutAllowance(t *testing.T) {
	h := newHarness(t)
	h.ledger.Approve(baseToken, ownerAddr, new(big.Int))

	err := h.engine.Initialize(context.Background(), h.params, baseToken, quoteToken, ownerAddr)
	if !errors.Is(err, ErrTransfer) {
		t.Fatalf("expected transfer error, got %v", err)
	}
	if h.engine.Initialized() {
		t.Fatalf("failed pull must leave engine uninitialized")
	}
}

func TestCurrentSpotPrice(t *testing.T) {
	h := newHarness(t)
	h.initialize(t)

	spot, err := h.engine.CurrentSpotPrice(context.Background())
	if err != nil {
		t.Fatalf("spot: %v", err)
	}
	if spot.Cmp(e8(2000)) != 0 {
		t.Fatalf("spot mismatch: %s", spot)
	}
}

func TestOperationsRequireInitialize(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if _, err := h.engine.Buy(ctx, buyerAddr, e6(1), nil, farDeadline); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("buy before initialize: %v", err)
	}
	if _, err := h.engine.Sell(ctx, buyerAddr, e18(1), nil, farDeadline); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("sell before initialize: %v", err)
	}
	if _, _, err := h.engine.PreviewBuy(e6(1)); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("preview before initialize: %v", err)
	}
}
