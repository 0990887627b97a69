package ladder

import (
	"fmt"
	"math/big"

	"gridLadder/internal/fixedpoint"
)

// Rung is one price level of the sell ladder. Capacity and Filled are
// smallest base-token units; Price is quote-per-base at 1e8.
type Rung struct {
	Capacity *big.Int `json:"capacity"`
	Filled   *big.Int `json:"filled"`
	Price    *big.Int `json:"price"`
}

// Clone returns a deep copy of the rung.
func (r Rung) Clone() Rung {
	return Rung{
		Capacity: new(big.Int).Set(r.Capacity),
		Filled:   new(big.Int).Set(r.Filled),
		Price:    new(big.Int).Set(r.Price),
	}
}

// Unfilled returns capacity minus filled.
func (r Rung) Unfilled() *big.Int {
	return new(big.Int).Sub(r.Capacity, r.Filled)
}

// Full reports whether the rung has no remaining capacity. Zero-capacity
// placeholder rungs count as full.
func (r Rung) Full() bool {
	return r.Filled.Cmp(r.Capacity) >= 0
}

// Params are the immutable ladder construction parameters.
type Params struct {
	RungCount           uint32
	InitialDeviationBps uint32
	TakeProfitBps       uint32
	PriceGrowthBps      uint32
	SizeGrowthBps       uint32
	BaseRungSize        *big.Int
	SubsequentRungSize  *big.Int
}

// Validate rejects parameter sets that cannot produce a usable ladder.
func (p Params) Validate() error {
	if p.RungCount < 2 {
		return fmt.Errorf("rung count must be at least 2, got %d", p.RungCount)
	}
	if p.TakeProfitBps >= fixedpoint.BpsDenominator {
		return fmt.Errorf("take profit must be below %d bps, got %d", fixedpoint.BpsDenominator, p.TakeProfitBps)
	}
	if p.InitialDeviationBps == 0 {
		return fmt.Errorf("initial deviation must be positive")
	}
	if p.PriceGrowthBps == 0 {
		return fmt.Errorf("price growth must be positive")
	}
	if p.BaseRungSize == nil || p.BaseRungSize.Sign() <= 0 {
		return fmt.Errorf("base rung size must be positive")
	}
	if p.SubsequentRungSize == nil || p.SubsequentRungSize.Sign() <= 0 {
		return fmt.Errorf("subsequent rung size must be positive")
	}
	return nil
}

// Build constructs the ascending rung sequence from startPrice (1e8).
// The price step compounds on the previous step, not the cumulative
// price, and every division floors; the drift this produces is part of
// the contract and reproduces bit-for-bit on identical inputs.
func Build(p Params, startPrice *big.Int) ([]Rung, error) {
	if startPrice == nil || startPrice.Sign() <= 0 {
		return nil, fmt.Errorf("start price must be positive")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	delta := fixedpoint.ApplyBpsFloor(startPrice, p.InitialDeviationBps)

	rungs := make([]Rung, 0, p.RungCount)
	rungs = append(rungs, Rung{
		Capacity: new(big.Int).Set(p.BaseRungSize),
		Filled:   new(big.Int),
		Price:    new(big.Int).Set(startPrice),
	})

	price := new(big.Int).Set(startPrice)
	size := new(big.Int).Set(p.SubsequentRungSize)
	for i := uint32(1); i < p.RungCount; i++ {
		delta = fixedpoint.ApplyBpsFloor(delta, p.PriceGrowthBps)
		if delta.Sign() == 0 {
			return nil, fmt.Errorf("price step collapsed to zero at rung %d", i)
		}
		price = new(big.Int).Add(price, delta)

		if i > 1 {
			size = fixedpoint.MulDivFloor(size,
				big.NewInt(int64(fixedpoint.BpsDenominator)+int64(p.SizeGrowthBps)),
				big.NewInt(fixedpoint.BpsDenominator))
		}

		rungs = append(rungs, Rung{
			Capacity: new(big.Int).Set(size),
			Filled:   new(big.Int),
			Price:    new(big.Int).Set(price),
		})
	}

	return rungs, nil
}

// CapToInventory truncates total capacity to cap, walking rungs in
// order. The first rung that exceeds the remaining budget is cut to
// exactly the remainder; everything after it becomes a zero-capacity
// placeholder so rung count and price ordering survive.
func CapToInventory(rungs []Rung, cap *big.Int) []Rung {
	remaining := new(big.Int).Set(cap)
	out := make([]Rung, len(rungs))
	for i, r := range rungs {
		out[i] = r.Clone()
		if out[i].Capacity.Cmp(remaining) <= 0 {
			remaining.Sub(remaining, out[i].Capacity)
			continue
		}
		out[i].Capacity = new(big.Int).Set(remaining)
		out[i].Filled = new(big.Int)
		remaining.SetInt64(0)
	}
	return out
}

// TotalCapacity sums capacity across rungs.
func TotalCapacity(rungs []Rung) *big.Int {
	total := new(big.Int)
	for _, r := range rungs {
		total.Add(total, r.Capacity)
	}
	return total
}

// TotalFilled sums filled across rungs.
func TotalFilled(rungs []Rung) *big.Int {
	total := new(big.Int)
	for _, r := range rungs {
		total.Add(total, r.Filled)
	}
	return total
}

// CloneRungs deep-copies a rung slice.
func CloneRungs(rungs []Rung) []Rung {
	out := make([]Rung, len(rungs))
	for i, r := range rungs {
		out[i] = r.Clone()
	}
	return out
}
