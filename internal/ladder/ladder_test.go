package ladder

import (
	"math/big"
	"testing"

	"gridLadder/internal/fixedpoint"
)

func e8(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixedpoint.Pow10(8))
}

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixedpoint.Pow10(18))
}

func testParams() Params {
	return Params{
		RungCount:           3,
		InitialDeviationBps: 100,
		TakeProfitBps:       200,
		PriceGrowthBps:      11000,
		SizeGrowthBps:       500,
		BaseRungSize:        e18(1),
		SubsequentRungSize:  e18(1),
	}
}

func TestBuildGeometricLadder(t *testing.T) {
	rungs, err := Build(testParams(), e8(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rungs) != 3 {
		t.Fatalf("rung count mismatch: %d != 3", len(rungs))
	}

	// delta0 = 20e8, delta1 = 22e8, delta2 = 24.2e8
	wantPrices := []*big.Int{
		e8(2000),
		e8(2022),
		new(big.Int).Add(e8(2046), big.NewInt(20000000)), // 2046.2e8
	}
	wantSizes := []*big.Int{
		e18(1),
		e18(1),
		new(big.Int).Mul(big.NewInt(105), fixedpoint.Pow10(16)), // 1.05e18
	}
	for i, r := range rungs {
		if r.Price.Cmp(wantPrices[i]) != 0 {
			t.Fatalf("rung %d price mismatch: %s != %s", i, r.Price, wantPrices[i])
		}
		if r.Capacity.Cmp(wantSizes[i]) != 0 {
			t.Fatalf("rung %d size mismatch: %s != %s", i, r.Capacity, wantSizes[i])
		}
		if r.Filled.Sign() != 0 {
			t.Fatalf("rung %d filled must start at zero", i)
		}
	}
}

func TestBuildPricesStrictlyIncrease(t *testing.T) {
	p := testParams()
	p.RungCount = 12
	rungs, err := Build(p, e8(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 1; i < len(rungs); i++ {
		if rungs[i].Price.Cmp(rungs[i-1].Price) <= 0 {
			t.Fatalf("prices not strictly increasing at rung %d: %s <= %s", i, rungs[i].Price, rungs[i-1].Price)
		}
	}
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(testParams(), e8(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Build(testParams(), e8(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range a {
		if a[i].Price.Cmp(b[i].Price) != 0 || a[i].Capacity.Cmp(b[i].Capacity) != 0 {
			t.Fatalf("generation not reproducible at rung %d", i)
		}
	}
}

func TestBuildRejectsCollapsedStep(t *testing.T) {
	p := testParams()
	// Tiny start price floors the first step to zero.
	if _, err := Build(p, big.NewInt(5)); err == nil {
		t.Fatalf("expected error for collapsed price step")
	}
}

func TestBuildRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Params)
	}{
		{"one rung", func(p *Params) { p.RungCount = 1 }},
		{"take profit too high", func(p *Params) { p.TakeProfitBps = 10000 }},
		{"zero deviation", func(p *Params) { p.InitialDeviationBps = 0 }},
		{"zero price growth", func(p *Params) { p.PriceGrowthBps = 0 }},
		{"zero base size", func(p *Params) { p.BaseRungSize = new(big.Int) }},
		{"nil subsequent size", func(p *Params) { p.SubsequentRungSize = nil }},
	}
	for _, tc := range cases {
		p := testParams()
		tc.mutate(&p)
		if _, err := Build(p, e8(2000)); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestCapToInventory(t *testing.T) {
	rungs, err := Build(testParams(), e8(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Budget covers rung0 plus half of rung1.
	cap := new(big.Int).Add(e18(1), new(big.Int).Div(e18(1), big.NewInt(2)))
	capped := CapToInventory(rungs, cap)

	if len(capped) != len(rungs) {
		t.Fatalf("rung count must be preserved: %d != %d", len(capped), len(rungs))
	}
	if capped[0].Capacity.Cmp(e18(1)) != 0 {
		t.Fatalf("rung 0 must keep full capacity, got %s", capped[0].Capacity)
	}
	if capped[1].Capacity.Cmp(new(big.Int).Div(e18(1), big.NewInt(2))) != 0 {
		t.Fatalf("rung 1 must be truncated to the remainder, got %s", capped[1].Capacity)
	}
	if capped[2].Capacity.Sign() != 0 {
		t.Fatalf("rung 2 must be zeroed, got %s", capped[2].Capacity)
	}
	if TotalCapacity(capped).Cmp(cap) != 0 {
		t.Fatalf("capped total must equal cap: %s != %s", TotalCapacity(capped), cap)
	}
	for i := 1; i < len(capped); i++ {
		if capped[i].Price.Cmp(capped[i-1].Price) <= 0 {
			t.Fatalf("price ordering lost at rung %d", i)
		}
	}
}

func TestCapToInventoryLargeBudgetKeepsRaw(t *testing.T) {
	rungs, err := Build(testParams(), e8(2000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw := TotalCapacity(rungs)
	capped := CapToInventory(rungs, e18(100))
	if TotalCapacity(capped).Cmp(raw) != 0 {
		t.Fatalf("oversized cap must keep raw total: %s != %s", TotalCapacity(capped), raw)
	}
}

func TestZeroCapacityRungIsFull(t *testing.T) {
	r := Rung{Capacity: new(big.Int), Filled: new(big.Int), Price: e8(1)}
	if !r.Full() {
		t.Fatalf("zero-capacity rung must report full")
	}
}
