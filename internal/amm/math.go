package amm

import (
	"math/big"

	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/shopspring/decimal"
)

const (
	// LockedPoolTokens is burned on the first deposit and never redeemable.
	LockedPoolTokens = 1000

	// FeeDenominator is the basis-point scale of a pool's fee share.
	FeeDenominator = 10000

	priceImpactPlaces = 5
)

// Bound selects the direction slippage is applied in.
type Bound int

const (
	// BoundMin lowers an expected output (protects the receiver).
	BoundMin Bound = iota
	// BoundMax raises an expected input (protects the payer).
	BoundMax
)

var one = decimal.NewFromInt(1)

func bigU(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

func dec(v uint64) decimal.Decimal { return decimal.NewFromBigInt(bigU(v), 0) }

// ceilDiv returns ceil(a/b) for non-negative a and positive b.
func ceilDiv(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// isqrt is the floor of the square root.
func isqrt(v *big.Int) *big.Int { return new(big.Int).Sqrt(v) }

func toUint64(v *big.Int, what string) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, ammerr.New(ammerr.KindInvalidAmount, "%s %s out of range", what, v.String())
	}
	return v.Uint64(), nil
}

func checkFeeShare(feeBps uint64) error {
	if feeBps >= FeeDenominator {
		return ammerr.New(ammerr.KindInvalidAmount, "fee share %d bps out of range", feeBps)
	}
	return nil
}

// ValidateSlippage accepts fractions in [0, 1].
func ValidateSlippage(s decimal.Decimal) error {
	if s.IsNegative() || s.GreaterThan(one) {
		return ammerr.New(ammerr.KindInvalidSlippage, "slippage %s must be between 0 and 1", s.String())
	}
	return nil
}

// SlippageFromBps converts basis points to a fraction (100 = 0.01).
func SlippageFromBps(bps uint64) decimal.Decimal {
	return decimal.NewFromBigInt(bigU(bps), -4)
}

// ApplySlippage returns floor(amount * (1 - s)) for BoundMin and
// floor(amount * (1 + s)) for BoundMax.
func ApplySlippage(amount uint64, s decimal.Decimal, b Bound) (uint64, error) {
	if err := ValidateSlippage(s); err != nil {
		return 0, err
	}
	factor := one.Sub(s)
	if b == BoundMax {
		factor = one.Add(s)
	}
	return toUint64(dec(amount).Mul(factor).Floor().BigInt(), "bounded amount")
}

// ToBaseUnits converts a display amount into integer base units.
func ToBaseUnits(amount decimal.Decimal, decimals uint32) (uint64, error) {
	if amount.IsNegative() {
		return 0, ammerr.New(ammerr.KindInvalidAmount, "amount %s is negative", amount.String())
	}
	v := amount.Shift(int32(decimals))
	if !v.Equal(v.Truncate(0)) {
		return 0, ammerr.New(ammerr.KindInvalidAmount, "amount %s has more than %d decimals", amount.String(), decimals)
	}
	return toUint64(v.BigInt(), "amount")
}

// FromBaseUnits converts integer base units into a display amount.
func FromBaseUnits(amount uint64, decimals uint32) decimal.Decimal {
	return dec(amount).Shift(-int32(decimals))
}

// SwapFee is the fixed-input fee, floor(amount * feeBps / 10000).
func SwapFee(amount, feeBps uint64) uint64 {
	f := new(big.Int).Mul(bigU(amount), bigU(feeBps))
	return f.Quo(f, bigU(FeeDenominator)).Uint64()
}

// GrossUp returns the smallest amount whose post-fee remainder covers net,
// ceil(net * 10000 / (10000 - feeBps)).
func GrossUp(net, feeBps uint64) (uint64, error) {
	if err := checkFeeShare(feeBps); err != nil {
		return 0, err
	}
	n := new(big.Int).Mul(bigU(net), bigU(FeeDenominator))
	return toUint64(ceilDiv(n, bigU(FeeDenominator-feeBps)), "gross amount")
}

// Share returns part / total as a fraction, zero when total is zero.
func Share(part, total uint64) decimal.Decimal {
	if total == 0 {
		return decimal.Zero
	}
	return dec(part).Div(dec(total))
}

// PriceImpact is |(amountOut/amountIn) / (outSupply/inSupply) - 1| rounded
// to five places. Decimals cancel out so base units are used directly.
func PriceImpact(inSupply, outSupply, amountIn, amountOut uint64) decimal.Decimal {
	if amountIn == 0 || outSupply == 0 {
		return decimal.Zero
	}
	num := dec(amountOut).Mul(dec(inSupply))
	den := dec(amountIn).Mul(dec(outSupply))
	return num.Div(den).Sub(one).Abs().Round(priceImpactPlaces)
}
