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
	"gridLadder/internal/oracle"
)

// SellResult reports an executed sell.
type SellResult struct {
	BaseSpent      *big.Int
	QuoteDelivered *big.Int
	LadderReset    bool
}

// Sell buys back previously sold base at a schedule anchored to the
// historical average sell price discounted by the take-profit margin.
// Whenever any quote is paid out, the whole ladder regenerates from the
// live cross rate, capped to the post-deposit inventory, and the cursor
// resets to zero.
func (e *Engine) Sell(ctx context.Context, caller common.Address, baseIn, minQuoteOut *big.Int, deadline int64) (SellResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.initialized {
		return SellResult{}, ErrNotInitialized
	}
	now := e.now()
	if !now.Before(time.Unix(deadline, 0)) {
		return SellResult{}, ErrExpired
	}
	if baseIn == nil || baseIn.Sign() <= 0 {
		return SellResult{}, ErrZeroAmount
	}

	totalFilled := ladder.TotalFilled(e.rungs)
	if totalFilled.Sign() == 0 {
		return SellResult{}, ErrNoInventorySold
	}

	consumed, proceeds, err := e.rebuySchedule(baseIn)
	if err != nil {
		return SellResult{}, err
	}
	if minQuoteOut != nil && proceeds.Cmp(minQuoteOut) < 0 {
		return SellResult{}, fmt.Errorf("%w: out %s below min %s", ErrSlippage, proceeds, minQuoteOut)
	}

	if proceeds.Sign() == 0 {
		// Nothing payable: no transfers, no regeneration, no mutation.
		return SellResult{BaseSpent: new(big.Int), QuoteDelivered: new(big.Int)}, nil
	}

	// Regeneration inputs are computed before any transfer so a failure
	// here aborts with zero side effects. The cap equals the engine's
	// base balance once the rebuy deposit lands.
	spot, err := oracle.SpotPrice(ctx, e.base, e.quote, now)
	if err != nil {
		return SellResult{}, err
	}
	fresh, err := ladder.Build(e.params, spot)
	if err != nil {
		return SellResult{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	balance, err := e.ledger.BalanceOf(ctx, e.pair.BaseToken, e.acct)
	if err != nil {
		return SellResult{}, fmt.Errorf("%w: base balance: %v", ErrTransfer, err)
	}
	cap := new(big.Int).Add(balance, consumed)
	fresh = ladder.CapToInventory(fresh, cap)

	if err := e.ledger.TransferFrom(ctx, e.pair.BaseToken, caller, e.acct, consumed); err != nil {
		return SellResult{}, fmt.Errorf("%w: pull base: %v", ErrTransfer, err)
	}
	if err := e.ledger.Transfer(ctx, e.pair.QuoteToken, caller, proceeds); err != nil {
		// Return the pulled base so the failed operation leaves the
		// caller whole.
		if refundErr := e.ledger.Transfer(ctx, e.pair.BaseToken, caller, consumed); refundErr != nil {
			e.logger.Error("base refund failed after aborted sell",
				zap.String("caller", caller.Hex()),
				zap.String("base", consumed.String()),
				zap.Error(refundErr),
			)
			return SellResult{}, fmt.Errorf("%w: pay quote: %v; base refund also failed: %v", ErrTransfer, err, refundErr)
		}
		return SellResult{}, fmt.Errorf("%w: pay quote: %v", ErrTransfer, err)
	}

	e.rungs = fresh
	e.cursor = 0

	e.logger.Info("sell executed",
		zap.String("caller", caller.Hex()),
		zap.String("base_spent", consumed.String()),
		zap.String("quote_delivered", proceeds.String()),
		zap.String("reset_spot", spot.String()),
		zap.String("inventory_cap", cap.String()),
	)

	return SellResult{
		BaseSpent:      consumed,
		QuoteDelivered: proceeds,
		LadderReset:    true,
	}, nil
}

// rebuySchedule walks filled rungs in forward order at a price that
// starts from the discounted average and steps down by a compounding
// delta. The delta derives from the average sell price itself, not the
// discounted start; the two knobs are independent on purpose.
func (e *Engine) rebuySchedule(baseIn *big.Int) (consumed, proceeds *big.Int, err error) {
	avg := averageSellPrice(e.rungs, e.pair.BaseDecimals, e.pair.QuoteDecimals)

	rebuyStart := fixedpoint.ApplyBpsFloor(avg, fixedpoint.BpsDenominator-e.params.TakeProfitBps)
	if rebuyStart.Sign() == 0 {
		return nil, nil, ErrRebuyStartZero
	}
	delta := fixedpoint.ApplyBpsFloor(avg, e.params.InitialDeviationBps)
	if delta.Cmp(rebuyStart) >= 0 {
		return nil, nil, fmt.Errorf("%w: initial delta %s >= start %s", ErrDeltaUnderflow, delta, rebuyStart)
	}

	price := new(big.Int).Set(rebuyStart)
	remaining := new(big.Int).Set(baseIn)
	consumed = new(big.Int)
	proceeds = new(big.Int)

	for i := range e.rungs {
		if e.rungs[i].Filled.Sign() > 0 {
			qty := new(big.Int).Set(remaining)
			if qty.Cmp(e.rungs[i].Filled) > 0 {
				qty.Set(e.rungs[i].Filled)
			}
			pay := fixedpoint.BaseToQuoteFloor(qty, price, e.pair.BaseDecimals, e.pair.QuoteDecimals)
			if pay.Sign() == 0 {
				break
			}
			proceeds.Add(proceeds, pay)
			consumed.Add(consumed, qty)
			remaining.Sub(remaining, qty)
		}
		if remaining.Sign() == 0 {
			break
		}
		if i < len(e.rungs)-1 {
			delta = fixedpoint.ApplyBpsFloor(delta, e.params.PriceGrowthBps)
			if price.Cmp(delta) <= 0 {
				return nil, nil, fmt.Errorf("%w: delta %s reaches price %s", ErrDeltaUnderflow, delta, price)
			}
			price.Sub(price, delta)
		}
	}

	return consumed, proceeds, nil
}

// averageSellPrice weights each filled rung by its ceiling quote cost,
// returning a 1e8 price, or zero when nothing has filled.
func averageSellPrice(rungs []ladder.Rung, baseDec, quoteDec uint8) *big.Int {
	totalFilled := new(big.Int)
	totalCost := new(big.Int)
	for _, r := range rungs {
		if r.Filled.Sign() == 0 {
			continue
		}
		totalFilled.Add(totalFilled, r.Filled)
		totalCost.Add(totalCost, fixedpoint.BaseToQuoteCeil(r.Filled, r.Price, baseDec, quoteDec))
	}
	if totalFilled.Sign() == 0 {
		return new(big.Int)
	}

	// Invert the quote conversion to land back on the 1e8 price scale.
	num := new(big.Int).Mul(totalCost, fixedpoint.PriceScale())
	num.Mul(num, fixedpoint.Pow10(baseDec))
	den := new(big.Int).Mul(totalFilled, fixedpoint.Pow10(quoteDec))
	return num.Quo(num, den)
}
