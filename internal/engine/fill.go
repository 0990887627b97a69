package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"gridLadder/internal/fixedpoint"
	"gridLadder/internal/ladder"
)

// BuyResult reports an executed buy.
type BuyResult struct {
	QuoteSpent    *big.Int
	BaseDelivered *big.Int
	RungsTouched  []int
	Cursor        int
}

// Buy consumes quoteIn against the ladder from the cursor onward,
// delivering base and charging only what the fills cost; the remainder
// of quoteIn is never pulled from the caller.
func (e *Engine) Buy(ctx context.Context, caller common.Address, quoteIn, minBaseOut *big.Int, deadline int64) (BuyResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return BuyResult{}, ErrNotInitialized
	}
	now := e.now()
	if !now.Before(time.Unix(deadline, 0)) {
		return BuyResult{}, ErrExpired
	}
	if quoteIn == nil || quoteIn.Sign() <= 0 {
		return BuyResult{}, ErrZeroAmount
	}

	outcome, err := simulateFill(e.rungs, e.cursor, quoteIn, e.pair.BaseDecimals, e.pair.QuoteDecimals)
	if err != nil {
		return BuyResult{}, err
	}
	if minBaseOut != nil && outcome.out.Cmp(minBaseOut) < 0 {
		return BuyResult{}, fmt.Errorf("%w: out %s below min %s", ErrSlippage, outcome.out, minBaseOut)
	}

	if outcome.out.Sign() > 0 {
		if err := e.ledger.TransferFrom(ctx, e.pair.QuoteToken, caller, e.acct, outcome.spent); err != nil {
			return BuyResult{}, fmt.Errorf("%w: pull quote: %v", ErrTransfer, err)
		}
		if err := e.ledger.Transfer(ctx, e.pair.BaseToken, caller, outcome.out); err != nil {
			// Return the pulled quote so the failed operation leaves the
			// caller whole.
			if refundErr := e.ledger.Transfer(ctx, e.pair.QuoteToken, caller, outcome.spent); refundErr != nil {
				e.logger.Error("quote refund failed after aborted buy",
					zap.String("caller", caller.Hex()),
					zap.String("quote", outcome.spent.String()),
					zap.Error(refundErr),
				)
				return BuyResult{}, fmt.Errorf("%w: deliver base: %v; quote refund also failed: %v", ErrTransfer, err, refundErr)
			}
			return BuyResult{}, fmt.Errorf("%w: deliver base: %v", ErrTransfer, err)
		}
	}

	e.rungs = outcome.rungs
	e.cursor = outcome.cursor

	e.logger.Info("buy executed",
		zap.String("caller", caller.Hex()),
		zap.String("quote_spent", outcome.spent.String()),
		zap.String("base_delivered", outcome.out.String()),
		zap.Int("cursor", e.cursor),
		zap.Ints("rungs_touched", outcome.touched),
	)

	return BuyResult{
		QuoteSpent:    outcome.spent,
		BaseDelivered: outcome.out,
		RungsTouched:  outcome.touched,
		Cursor:        e.cursor,
	}, nil
}

// PreviewBuy simulates Buy without mutating state or moving tokens.
func (e *Engine) PreviewBuy(quoteIn *big.Int) (*big.Int, []int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.initialized {
		return nil, nil, ErrNotInitialized
	}
	if quoteIn == nil || quoteIn.Sign() <= 0 {
		return nil, nil, ErrZeroAmount
	}
	outcome, err := simulateFill(e.rungs, e.cursor, quoteIn, e.pair.BaseDecimals, e.pair.QuoteDecimals)
	if err != nil {
		return nil, nil, err
	}
	return outcome.out, outcome.touched, nil
}

type fillOutcome struct {
	rungs   []ladder.Rung
	cursor  int
	spent   *big.Int
	out     *big.Int
	touched []int
}

// simulateFill walks the ladder from the cursor, sizing each fill with
// a floor conversion and charging it with a ceiling one. The one-unit
// backoff keeps the ceiling cost affordable without ever skipping past
// a partially-filled rung.
func simulateFill(rungs []ladder.Rung, cursor int, quoteIn *big.Int, baseDec, quoteDec uint8) (fillOutcome, error) {
	work := ladder.CloneRungs(rungs)
	remaining := new(big.Int).Set(quoteIn)
	out := new(big.Int)
	touched := make([]int, 0, 2)
	one := big.NewInt(1)

	cur := cursor
	for cur < len(work) {
		rung := &work[cur]
		if rung.Full() {
			cur++
			continue
		}

		fill, err := fixedpoint.QuoteToBaseFloor(remaining, rung.Price, baseDec, quoteDec)
		if err != nil {
			return fillOutcome{}, err
		}
		if unfilled := rung.Unfilled(); fill.Cmp(unfilled) > 0 {
			fill = unfilled
		}
		if fill.Sign() == 0 {
			break
		}

		cost := fixedpoint.BaseToQuoteCeil(fill, rung.Price, baseDec, quoteDec)
		if cost.Cmp(remaining) > 0 {
			fill = new(big.Int).Sub(fill, one)
			if fill.Sign() == 0 {
				break
			}
			cost = fixedpoint.BaseToQuoteCeil(fill, rung.Price, baseDec, quoteDec)
			if cost.Cmp(remaining) > 0 {
				break
			}
		}

		rung.Filled.Add(rung.Filled, fill)
		remaining.Sub(remaining, cost)
		out.Add(out, fill)
		touched = append(touched, cur)

		if !rung.Full() {
			break
		}
		cur++
	}

	return fillOutcome{
		rungs:   work,
		cursor:  cur,
		spent:   new(big.Int).Sub(quoteIn, remaining),
		out:     out,
		touched: touched,
	}, nil
}
