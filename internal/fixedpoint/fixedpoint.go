package fixedpoint

import (
	"fmt"
	"math/big"
)

// PriceDecimals is the internal price scale: quote-per-base prices carry
// eight fractional digits regardless of either token's own decimals.
const PriceDecimals = 8

// BpsDenominator is the basis-point denominator.
const BpsDenominator = 10000

var (
	priceScale = Pow10(PriceDecimals)
	bpsDenom   = big.NewInt(BpsDenominator)
)

// PriceScale returns 10^8 as a fresh big.Int.
func PriceScale() *big.Int {
	return new(big.Int).Set(priceScale)
}

// Pow10 returns 10^n.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// MulDivFloor returns floor(a*b/den).
func MulDivFloor(a, b, den *big.Int) *big.Int {
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, den)
}

// MulDivCeil returns ceil(a*b/den).
func MulDivCeil(a, b, den *big.Int) *big.Int {
	num := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// ApplyBpsFloor returns floor(v*bps/10000).
func ApplyBpsFloor(v *big.Int, bps uint32) *big.Int {
	return MulDivFloor(v, new(big.Int).SetUint64(uint64(bps)), bpsDenom)
}

// Rescale converts v between decimal scales, flooring when scaling down.
func Rescale(v *big.Int, from, to uint8) *big.Int {
	if from == to {
		return new(big.Int).Set(v)
	}
	if from > to {
		return new(big.Int).Quo(v, Pow10(from-to))
	}
	return new(big.Int).Mul(v, Pow10(to-from))
}

// BaseToQuoteFloor converts base units to quote units at a 1e8 price,
// rounding down: floor(base * price * 10^quoteDec / (1e8 * 10^baseDec)).
func BaseToQuoteFloor(base, price *big.Int, baseDec, quoteDec uint8) *big.Int {
	den := new(big.Int).Mul(priceScale, Pow10(baseDec))
	num := new(big.Int).Mul(base, price)
	num.Mul(num, Pow10(quoteDec))
	return num.Quo(num, den)
}

// BaseToQuoteCeil converts base units to quote units at a 1e8 price,
// rounding up. Charging a buyer uses this direction so the ladder can
// never deliver base for less quote than its priced value.
func BaseToQuoteCeil(base, price *big.Int, baseDec, quoteDec uint8) *big.Int {
	den := new(big.Int).Mul(priceScale, Pow10(baseDec))
	num := new(big.Int).Mul(base, price)
	num.Mul(num, Pow10(quoteDec))
	quo, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// QuoteToBaseFloor converts quote units to base units at a 1e8 price,
// rounding down: floor(quote * 1e8 * 10^baseDec / (price * 10^quoteDec)).
func QuoteToBaseFloor(quote, price *big.Int, baseDec, quoteDec uint8) (*big.Int, error) {
	if price == nil || price.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive price")
	}
	den := new(big.Int).Mul(price, Pow10(quoteDec))
	num := new(big.Int).Mul(quote, priceScale)
	num.Mul(num, Pow10(baseDec))
	return num.Quo(num, den), nil
}

// FormatUnits renders an integer token amount as a decimal string at the
// given decimals, for logs and journal records.
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	if decimals == 0 {
		return v.String()
	}
	sign := v.Sign()
	abs := new(big.Int).Abs(v)
	rat := new(big.Rat).SetFrac(abs, Pow10(decimals))
	text := rat.FloatString(int(decimals))
	if sign < 0 {
		return "-" + text
	}
	return text
}
