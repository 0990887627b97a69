package engine

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"gridLadder/internal/asset"
	"gridLadder/internal/ladder"
	"gridLadder/internal/oracle"
)

// AssetPair identifies the traded tokens and their precisions. Immutable
// after Initialize.
type AssetPair struct {
	BaseToken     common.Address
	QuoteToken    common.Address
	BaseDecimals  uint8
	QuoteDecimals uint8
}

// Deps are the engine's collaborators.
type Deps struct {
	Ledger    asset.Ledger
	BaseFeed  oracle.Feed
	QuoteFeed oracle.Feed
	Account   common.Address
	Logger    *zap.Logger
	Now       func() time.Time
}

// Engine owns one ladder, one asset pair, and one owner. Initialize,
// Buy, and Sell are mutually exclusive and atomic: state only commits
// after every check and transfer has succeeded. Read views take a
// shared lock and never mutate.
type Engine struct {
	mu     sync.RWMutex
	ledger asset.Ledger
	base   oracle.Feed
	quote  oracle.Feed
	acct   common.Address
	logger *zap.Logger
	now    func() time.Time

	initialized bool
	owner       common.Address
	pair        AssetPair
	params      ladder.Params
	rungs       []ladder.Rung
	cursor      int
}

// New builds an engine with its dependencies.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		ledger: deps.Ledger,
		base:   deps.BaseFeed,
		quote:  deps.QuoteFeed,
		acct:   deps.Account,
		logger: logger,
		now:    now,
	}
}

// Initialize generates the first ladder from the live cross rate and
// pulls its total capacity from the owner into the engine account.
// One-shot: a second call fails.
func (e *Engine) Initialize(ctx context.Context, params ladder.Params, baseToken, quoteToken, owner common.Address) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return ErrAlreadyInitialized
	}
	if baseToken == (common.Address{}) || quoteToken == (common.Address{}) {
		return fmt.Errorf("%w: zero token address", ErrConfig)
	}
	if baseToken == quoteToken {
		return fmt.Errorf("%w: base and quote tokens are equal", ErrConfig)
	}
	if e.base == nil || e.quote == nil {
		return fmt.Errorf("%w: missing price feed", ErrConfig)
	}
	if e.ledger == nil {
		return fmt.Errorf("%w: missing asset ledger", ErrConfig)
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	baseDecimals, err := e.ledger.Decimals(ctx, baseToken)
	if err != nil {
		return fmt.Errorf("%w: base decimals: %v", ErrConfig, err)
	}
	quoteDecimals, err := e.ledger.Decimals(ctx, quoteToken)
	if err != nil {
		return fmt.Errorf("%w: quote decimals: %v", ErrConfig, err)
	}

	spot, err := oracle.SpotPrice(ctx, e.base, e.quote, e.now())
	if err != nil {
		return err
	}

	rungs, err := ladder.Build(params, spot)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}

	total := ladder.TotalCapacity(rungs)
	if err := e.ledger.TransferFrom(ctx, baseToken, owner, e.acct, total); err != nil {
		return fmt.Errorf("%w: pull inventory: %v", ErrTransfer, err)
	}

	e.initialized = true
	e.owner = owner
	e.pair = AssetPair{
		BaseToken:     baseToken,
		QuoteToken:    quoteToken,
		BaseDecimals:  baseDecimals,
		QuoteDecimals: quoteDecimals,
	}
	e.params = params
	e.rungs = rungs
	e.cursor = 0

	e.logger.Info("engine initialized",
		zap.String("owner", owner.Hex()),
		zap.String("base", baseToken.Hex()),
		zap.String("quote", quoteToken.Hex()),
		zap.String("spot", spot.String()),
		zap.String("inventory", total.String()),
		zap.Uint32("rungs", params.RungCount),
	)
	return nil
}

// Account returns the engine principal holding inventory.
func (e *Engine) Account() common.Address {
	return e.acct
}

// Owner returns the owner principal.
func (e *Engine) Owner() common.Address {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner
}

// Initialized reports whether Initialize has completed.
func (e *Engine) Initialized() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.initialized
}

// Pair returns the asset pair snapshot.
func (e *Engine) Pair() AssetPair {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pair
}

// Params returns the immutable ladder parameters.
func (e *Engine) Params() ladder.Params {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.params
}

// Rungs returns a deep copy of the current ladder.
func (e *Engine) Rungs() []ladder.Rung {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ladder.CloneRungs(e.rungs)
}

// Cursor returns the index of the earliest not-fully-filled rung.
func (e *Engine) Cursor() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursor
}

// TotalBaseSold sums filled across all rungs.
func (e *Engine) TotalBaseSold() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ladder.TotalFilled(e.rungs)
}

// AverageSellPrice returns the ceil-cost weighted average price of all
// fills at 1e8, or zero when nothing has sold.
func (e *Engine) AverageSellPrice() *big.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return averageSellPrice(e.rungs, e.pair.BaseDecimals, e.pair.QuoteDecimals)
}

// CurrentSpotPrice reads the live cross rate without touching state.
func (e *Engine) CurrentSpotPrice(ctx context.Context) (*big.Int, error) {
	return oracle.SpotPrice(ctx, e.base, e.quote, e.now())
}

// AvailableBaseBalance returns the engine account's base token balance.
func (e *Engine) AvailableBaseBalance(ctx context.Context) (*big.Int, error) {
	e.mu.RLock()
	pair := e.pair
	e.mu.RUnlock()
	return e.ledger.BalanceOf(ctx, pair.BaseToken, e.acct)
}
