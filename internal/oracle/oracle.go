package oracle

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"gridLadder/internal/fixedpoint"
)

// MaxRoundAge is how old a feed reading may be before it is rejected.
const MaxRoundAge = time.Hour

var (
	ErrInvalidRound  = errors.New("oracle round invalid")
	ErrStaleRound    = errors.New("oracle round stale")
	ErrRoundTooOld   = errors.New("oracle round too old")
	ErrZeroCrossRate = errors.New("cross rate is zero")
)

// RoundData is one feed reading as reported by the aggregator.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	UpdatedAt       uint64
	AnsweredInRound *big.Int
	Decimals        uint8
}

// Feed returns the latest round of a USD-denominated price feed.
type Feed interface {
	LatestRound(ctx context.Context) (RoundData, error)
}

// Validate checks round completeness and freshness against now.
func (rd RoundData) Validate(now time.Time) error {
	if rd.Answer == nil || rd.Answer.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive answer", ErrInvalidRound)
	}
	if rd.RoundID == nil || rd.AnsweredInRound == nil {
		return fmt.Errorf("%w: missing round identifiers", ErrInvalidRound)
	}
	if rd.UpdatedAt == 0 {
		return fmt.Errorf("%w: round not complete", ErrStaleRound)
	}
	if rd.AnsweredInRound.Cmp(rd.RoundID) < 0 {
		return fmt.Errorf("%w: answered in round %s < round %s", ErrStaleRound, rd.AnsweredInRound, rd.RoundID)
	}
	age := now.Unix() - int64(rd.UpdatedAt)
	if age >= int64(MaxRoundAge/time.Second) {
		return fmt.Errorf("%w: age %ds", ErrRoundTooOld, age)
	}
	return nil
}

// Normalized returns the answer rescaled to the internal 1e8 scale,
// flooring when the feed reports more than eight decimals.
func (rd RoundData) Normalized() *big.Int {
	return fixedpoint.Rescale(rd.Answer, rd.Decimals, fixedpoint.PriceDecimals)
}

// CrossRate derives the quote-per-base rate from two normalized USD
// prices: baseUsd * 1e8 / quoteUsd, floored.
func CrossRate(baseUsd, quoteUsd *big.Int) (*big.Int, error) {
	if quoteUsd == nil || quoteUsd.Sign() == 0 {
		return nil, fmt.Errorf("%w: quote feed normalized to zero", ErrZeroCrossRate)
	}
	cross := fixedpoint.MulDivFloor(baseUsd, fixedpoint.PriceScale(), quoteUsd)
	if cross.Sign() == 0 {
		return nil, ErrZeroCrossRate
	}
	return cross, nil
}

// SpotPrice reads both feeds, validates each round against now, and
// returns the cross rate at 1e8.
func SpotPrice(ctx context.Context, baseFeed, quoteFeed Feed, now time.Time) (*big.Int, error) {
	baseRound, err := baseFeed.LatestRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("base feed: %w", err)
	}
	if err := baseRound.Validate(now); err != nil {
		return nil, fmt.Errorf("base feed: %w", err)
	}

	quoteRound, err := quoteFeed.LatestRound(ctx)
	if err != nil {
		return nil, fmt.Errorf("quote feed: %w", err)
	}
	if err := quoteRound.Validate(now); err != nil {
		return nil, fmt.Errorf("quote feed: %w", err)
	}

	return CrossRate(baseRound.Normalized(), quoteRound.Normalized())
}
