package amm

import (
	"math/big"

	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// FixedInputSwap computes the output of selling amountIn into a
// constant-product pool:
//
//	fee       = floor(amountIn * feeBps / 10000)
//	effective = amountIn - fee
//	amountOut = reserveOut - ceil(reserveIn*reserveOut / (reserveIn + effective))
func FixedInputSwap(reserveIn, reserveOut, amountIn, feeBps uint64) (amountOut, fee uint64, err error) {
	if err := checkFeeShare(feeBps); err != nil {
		return 0, 0, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, 0, ammerr.New(ammerr.KindInsufficientLiquidity, "pool has no liquidity")
	}

	fee = SwapFee(amountIn, feeBps)
	effective := bigU(amountIn - fee)

	k := new(big.Int).Mul(bigU(reserveIn), bigU(reserveOut))
	after := ceilDiv(k, effective.Add(effective, bigU(reserveIn)))

	out := new(big.Int).Sub(bigU(reserveOut), after)
	if out.Sign() < 0 || out.Cmp(bigU(reserveOut)) > 0 {
		return 0, 0, ammerr.New(ammerr.KindInsufficientLiquidity, "output %s exceeds reserve %d", out.String(), reserveOut)
	}
	return out.Uint64(), fee, nil
}

// FixedOutputSwap computes the input needed to buy exactly amountOut:
//
//	effective = ceil(reserveIn*reserveOut / (reserveOut - amountOut)) - reserveIn
//	amountIn  = ceil(effective * 10000 / (10000 - feeBps))
func FixedOutputSwap(reserveIn, reserveOut, amountOut, feeBps uint64) (amountIn, fee uint64, err error) {
	if err := checkFeeShare(feeBps); err != nil {
		return 0, 0, err
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, 0, ammerr.New(ammerr.KindInsufficientLiquidity, "pool has no liquidity")
	}
	if amountOut >= reserveOut {
		return 0, 0, ammerr.New(ammerr.KindInsufficientLiquidity, "output %d exceeds reserve %d", amountOut, reserveOut)
	}

	k := new(big.Int).Mul(bigU(reserveIn), bigU(reserveOut))
	after := ceilDiv(k, bigU(reserveOut-amountOut))
	effective, err := toUint64(after.Sub(after, bigU(reserveIn)), "swap input")
	if err != nil {
		return 0, 0, err
	}

	amountIn, err = GrossUp(effective, feeBps)
	if err != nil {
		return 0, 0, err
	}
	return amountIn, amountIn - effective, nil
}

// QuoteSwap prices a swap of assetIn for assetOut against a reserve snapshot.
// For FixedInput amount is the input; for FixedOutput it is the output.
func QuoteSwap(p *pool.Pool, snap pool.ReserveSnapshot, mode SwapMode, assetIn, assetOut, amount, feeBps uint64) (*SwapQuote, error) {
	if err := p.CheckPair(assetIn, assetOut); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "swap amount must be positive")
	}

	reserveIn, _ := snap.Reserve(p, assetIn)
	reserveOut, _ := snap.Reserve(p, assetOut)

	q := &SwapQuote{Mode: mode}
	switch mode {
	case FixedInput:
		out, fee, err := FixedInputSwap(reserveIn, reserveOut, amount, feeBps)
		if err != nil {
			return nil, err
		}
		if out == 0 {
			return nil, ammerr.New(ammerr.KindInvalidAmount, "swap amount %d is too small to produce output", amount)
		}
		q.AmountIn = AssetAmount{AssetID: assetIn, Amount: amount}
		q.AmountOut = AssetAmount{AssetID: assetOut, Amount: out}
		q.SwapFee = AssetAmount{AssetID: assetIn, Amount: fee}
	case FixedOutput:
		in, fee, err := FixedOutputSwap(reserveIn, reserveOut, amount, feeBps)
		if err != nil {
			return nil, err
		}
		q.AmountIn = AssetAmount{AssetID: assetIn, Amount: in}
		q.AmountOut = AssetAmount{AssetID: assetOut, Amount: amount}
		q.SwapFee = AssetAmount{AssetID: assetIn, Amount: fee}
	default:
		return nil, ammerr.New(ammerr.KindUnsupportedOperation, "unknown swap mode %q", mode)
	}

	q.PriceImpact = PriceImpact(reserveIn, reserveOut, q.AmountIn.Amount, q.AmountOut.Amount)
	return q, nil
}
