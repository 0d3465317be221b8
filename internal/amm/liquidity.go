package amm

import (
	"math/big"

	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// QuoteInitialAdd prices the first deposit into an empty pool:
// floor(sqrt(amount1*amount2)) - LockedPoolTokens.
func QuoteInitialAdd(p *pool.Pool, amount1, amount2 uint64) (*AddLiquidityQuote, error) {
	if amount1 == 0 || amount2 == 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "initial deposit needs both assets")
	}

	g := isqrt(new(big.Int).Mul(bigU(amount1), bigU(amount2)))
	if g.Cmp(big.NewInt(LockedPoolTokens)) <= 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount,
			"initial deposit too small: sqrt(%d*%d) must exceed %d", amount1, amount2, LockedPoolTokens)
	}
	minted := g.Uint64() - LockedPoolTokens

	return &AddLiquidityQuote{
		Mode:       AddInitial,
		Amount1:    AssetAmount{AssetID: p.Asset1ID, Amount: amount1},
		Amount2:    AssetAmount{AssetID: p.Asset2ID, Amount: amount2},
		PoolTokens: AssetAmount{AssetID: p.PoolTokenID, Amount: minted},
		Share:      Share(minted, g.Uint64()),
	}, nil
}

// QuoteProportionalAdd prices a deposit at the pool ratio. The side that
// exceeds the ratio is not minted against.
func QuoteProportionalAdd(p *pool.Pool, snap pool.ReserveSnapshot, amount1, amount2 uint64) (*AddLiquidityQuote, error) {
	if amount1 == 0 || amount2 == 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "proportional deposit needs both assets")
	}
	if err := requireLiquidity(snap); err != nil {
		return nil, err
	}

	issued := bigU(snap.IssuedPoolTokens)
	out1 := new(big.Int).Mul(bigU(amount1), issued)
	out1.Quo(out1, bigU(snap.Asset1))
	out2 := new(big.Int).Mul(bigU(amount2), issued)
	out2.Quo(out2, bigU(snap.Asset2))

	minted := out1
	if out2.Cmp(out1) < 0 {
		minted = out2
	}
	m, err := toUint64(minted, "pool token amount")
	if err != nil {
		return nil, err
	}
	if m == 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "deposit too small to mint pool tokens")
	}

	return &AddLiquidityQuote{
		Mode:       AddProportional,
		Amount1:    AssetAmount{AssetID: p.Asset1ID, Amount: amount1},
		Amount2:    AssetAmount{AssetID: p.Asset2ID, Amount: amount2},
		PoolTokens: AssetAmount{AssetID: p.PoolTokenID, Amount: m},
		Share:      Share(m, snap.IssuedPoolTokens+m),
	}, nil
}

// QuoteFlexibleAdd prices a deposit at any ratio. The surplus side is swapped
// internally; that swap's fee is charged as pool tokens.
func QuoteFlexibleAdd(p *pool.Pool, snap pool.ReserveSnapshot, amount1, amount2, feeBps uint64) (*AddLiquidityQuote, error) {
	if amount1 == 0 && amount2 == 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "provide an amount")
	}
	return rebalancedAdd(p, snap, AddFlexible, amount1, amount2, feeBps)
}

// QuoteSingleAdd prices a one-sided deposit. Exactly one amount must be set.
func QuoteSingleAdd(p *pool.Pool, snap pool.ReserveSnapshot, amount1, amount2, feeBps uint64) (*AddLiquidityQuote, error) {
	switch {
	case amount1 == 0 && amount2 == 0:
		return nil, ammerr.New(ammerr.KindInvalidAmount, "provide an amount")
	case amount1 != 0 && amount2 != 0:
		return nil, ammerr.New(ammerr.KindInvalidAmount, "use flexible mode for both-sided deposits")
	}
	return rebalancedAdd(p, snap, AddSingle, amount1, amount2, feeBps)
}

func rebalancedAdd(p *pool.Pool, snap pool.ReserveSnapshot, mode AddMode, amount1, amount2, feeBps uint64) (*AddLiquidityQuote, error) {
	if err := checkFeeShare(feeBps); err != nil {
		return nil, err
	}
	if err := requireLiquidity(snap); err != nil {
		return nil, err
	}

	r1, r2 := bigU(snap.Asset1), bigU(snap.Asset2)
	issued := bigU(snap.IssuedPoolTokens)
	newR1 := new(big.Int).Add(r1, bigU(amount1))
	newR2 := new(big.Int).Add(r2, bigU(amount2))

	oldK := new(big.Int).Mul(r1, r2)
	newK := new(big.Int).Mul(newR1, newR2)

	// newIssued = floor(sqrt(newK * issued^2 / oldK))
	n := new(big.Int).Mul(newK, new(big.Int).Mul(issued, issued))
	newIssued := isqrt(n.Quo(n, oldK))
	minted := new(big.Int).Sub(newIssued, issued)

	calc1 := new(big.Int).Mul(minted, newR1)
	calc1.Quo(calc1, newIssued)
	calc2 := new(big.Int).Mul(minted, newR2)
	calc2.Quo(calc2, newIssued)

	swap1 := new(big.Int).Sub(bigU(amount1), calc1)
	swap2 := new(big.Int).Sub(bigU(amount2), calc2)

	var (
		inID, outID          uint64
		inNoFee, out, newRin *big.Int
		inSupply, outSupply  uint64
	)
	if swap1.Cmp(swap2) > 0 {
		inID, outID = p.Asset1ID, p.Asset2ID
		inNoFee, out, newRin = swap1, negMin(swap2), newR1
		inSupply, outSupply = snap.Asset1, snap.Asset2
	} else {
		inID, outID = p.Asset2ID, p.Asset1ID
		inNoFee, out, newRin = swap2, negMin(swap1), newR2
		inSupply, outSupply = snap.Asset2, snap.Asset1
	}

	// fee = floor(inNoFee * feeBps / (10000 - feeBps))
	fee := new(big.Int).Mul(inNoFee, bigU(feeBps))
	fee.Quo(fee, bigU(FeeDenominator-feeBps))

	// feeAsPoolTokens = floor(fee * newIssued / (newRin * 2))
	feeTokens := new(big.Int).Mul(fee, newIssued)
	feeTokens.Quo(feeTokens, new(big.Int).Lsh(newRin, 1))
	minted.Sub(minted, feeTokens)

	m, err := toUint64(minted, "pool token amount")
	if err != nil || m == 0 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "deposit too small to mint pool tokens")
	}

	q := &AddLiquidityQuote{
		Mode:       mode,
		Amount1:    AssetAmount{AssetID: p.Asset1ID, Amount: amount1},
		Amount2:    AssetAmount{AssetID: p.Asset2ID, Amount: amount2},
		PoolTokens: AssetAmount{AssetID: p.PoolTokenID, Amount: m},
		Share:      Share(m, snap.IssuedPoolTokens+m),
	}

	if inNoFee.Sign() > 0 {
		swapIn, err := toUint64(new(big.Int).Add(inNoFee, fee), "internal swap input")
		if err != nil {
			return nil, err
		}
		swapOut, err := toUint64(out, "internal swap output")
		if err != nil {
			return nil, err
		}
		q.InternalSwap = &InternalSwapQuote{
			AmountIn:    AssetAmount{AssetID: inID, Amount: swapIn},
			AmountOut:   AssetAmount{AssetID: outID, Amount: swapOut},
			SwapFee:     AssetAmount{AssetID: inID, Amount: fee.Uint64()},
			PriceImpact: PriceImpact(inSupply, outSupply, swapIn, swapOut),
		}
	}
	return q, nil
}

// QuoteProportionalRemove splits burned pool tokens across both reserves.
// When the burn would leave no more than the locked amount issued, the whole
// remaining reserve is returned.
func QuoteProportionalRemove(p *pool.Pool, snap pool.ReserveSnapshot, poolTokens uint64) (*RemoveLiquidityQuote, error) {
	out1, out2, err := proportionalOut(snap, poolTokens)
	if err != nil {
		return nil, err
	}
	return &RemoveLiquidityQuote{
		Mode:       RemoveProportional,
		PoolTokens: AssetAmount{AssetID: p.PoolTokenID, Amount: poolTokens},
		Outputs: []AssetAmount{
			{AssetID: p.Asset1ID, Amount: out1},
			{AssetID: p.Asset2ID, Amount: out2},
		},
	}, nil
}

// QuoteSingleRemove withdraws proportionally, then swaps the unwanted side
// into outputAsset against the post-withdrawal reserves.
func QuoteSingleRemove(p *pool.Pool, snap pool.ReserveSnapshot, poolTokens, outputAsset, feeBps uint64) (*RemoveLiquidityQuote, error) {
	other, err := p.Other(outputAsset)
	if err != nil {
		return nil, err
	}
	out1, out2, err := proportionalOut(snap, poolTokens)
	if err != nil {
		return nil, err
	}
	// no reserve would be left to swap against
	if snap.IssuedPoolTokens-poolTokens <= LockedPoolTokens {
		return nil, ammerr.New(ammerr.KindInvalidAmount,
			"full withdrawal must be proportional: burning %d of %d issued leaves only the locked pool tokens",
			poolTokens, snap.IssuedPoolTokens)
	}

	wanted, unwanted := out1, out2
	wantedReserve, unwantedReserve := snap.Asset1-out1, snap.Asset2-out2
	if outputAsset == p.Asset2ID {
		wanted, unwanted = out2, out1
		wantedReserve, unwantedReserve = snap.Asset2-out2, snap.Asset1-out1
	}

	q := &RemoveLiquidityQuote{
		Mode:       RemoveSingle,
		PoolTokens: AssetAmount{AssetID: p.PoolTokenID, Amount: poolTokens},
	}

	total := wanted
	if unwanted > 0 {
		swapOut, fee, err := FixedInputSwap(unwantedReserve, wantedReserve, unwanted, feeBps)
		if err != nil {
			return nil, err
		}
		total += swapOut
		q.InternalSwap = &InternalSwapQuote{
			AmountIn:    AssetAmount{AssetID: other, Amount: unwanted},
			AmountOut:   AssetAmount{AssetID: outputAsset, Amount: swapOut},
			SwapFee:     AssetAmount{AssetID: other, Amount: fee},
			PriceImpact: PriceImpact(unwantedReserve, wantedReserve, unwanted, swapOut),
		}
	}
	q.Outputs = []AssetAmount{{AssetID: outputAsset, Amount: total}}
	return q, nil
}

func proportionalOut(snap pool.ReserveSnapshot, poolTokens uint64) (uint64, uint64, error) {
	if poolTokens == 0 {
		return 0, 0, ammerr.New(ammerr.KindInvalidAmount, "pool token amount must be positive")
	}
	if snap.IssuedPoolTokens == 0 {
		return 0, 0, ammerr.New(ammerr.KindInsufficientLiquidity, "pool has no issued pool tokens")
	}
	if poolTokens > snap.IssuedPoolTokens {
		return 0, 0, ammerr.New(ammerr.KindInsufficientLiquidity,
			"pool token amount %d exceeds issued %d", poolTokens, snap.IssuedPoolTokens)
	}
	if snap.IssuedPoolTokens-poolTokens <= LockedPoolTokens {
		return snap.Asset1, snap.Asset2, nil
	}

	issued := bigU(snap.IssuedPoolTokens)
	out1 := new(big.Int).Mul(bigU(poolTokens), bigU(snap.Asset1))
	out2 := new(big.Int).Mul(bigU(poolTokens), bigU(snap.Asset2))
	return out1.Quo(out1, issued).Uint64(), out2.Quo(out2, issued).Uint64(), nil
}

func requireLiquidity(snap pool.ReserveSnapshot) error {
	if snap.Asset1 == 0 || snap.Asset2 == 0 || snap.IssuedPoolTokens == 0 {
		return ammerr.New(ammerr.KindInsufficientLiquidity, "pool has no liquidity")
	}
	return nil
}

// negMin returns -min(v, 0).
func negMin(v *big.Int) *big.Int {
	if v.Sign() >= 0 {
		return new(big.Int)
	}
	return new(big.Int).Neg(v)
}
