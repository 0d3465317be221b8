package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	usdc  = 31566704
	algo  = 0
	token = 552635992
)

func testPool() *pool.Pool {
	return &pool.Pool{
		Asset1ID:      usdc,
		Asset2ID:      algo,
		PoolTokenID:   token,
		TotalFeeShare: 30,
		Status:        pool.StatusReady,
	}
}

func evenSnapshot() pool.ReserveSnapshot {
	return pool.ReserveSnapshot{Round: 1, Asset1: 1_000_000, Asset2: 1_000_000, IssuedPoolTokens: 1_000_000}
}

func TestQuoteSwap_FixedInputScenario(t *testing.T) {
	q, err := QuoteSwap(testPool(), evenSnapshot(), FixedInput, usdc, algo, 10_000, 30)
	require.NoError(t, err)

	assert.Equal(t, AssetAmount{AssetID: usdc, Amount: 10_000}, q.AmountIn)
	assert.Equal(t, AssetAmount{AssetID: algo, Amount: 9_871}, q.AmountOut)
	assert.Equal(t, AssetAmount{AssetID: usdc, Amount: 30}, q.SwapFee)
	assert.Equal(t, "0.0129", q.PriceImpact.String())

	minOut, err := q.AmountOutWithSlippage(decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(9_772), minOut)

	maxIn, err := q.AmountInWithSlippage(decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000), maxIn)
}

func TestQuoteSwap_FixedOutput(t *testing.T) {
	q, err := QuoteSwap(testPool(), evenSnapshot(), FixedOutput, usdc, algo, 9_871, 30)
	require.NoError(t, err)

	assert.Equal(t, uint64(10_000), q.AmountIn.Amount)
	assert.Equal(t, uint64(30), q.SwapFee.Amount)

	maxIn, err := q.AmountInWithSlippage(decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(10_100), maxIn)

	minOut, err := q.AmountOutWithSlippage(decimal.RequireFromString("0.01"))
	require.NoError(t, err)
	assert.Equal(t, uint64(9_871), minOut)
}

func TestQuoteSwap_Failures(t *testing.T) {
	p := testPool()

	_, err := QuoteSwap(p, evenSnapshot(), FixedInput, usdc, 10458941, 100, 30)
	assert.True(t, errors.Is(err, ammerr.ErrAssetMismatch))

	_, err = QuoteSwap(p, evenSnapshot(), FixedInput, usdc, algo, 0, 30)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))

	_, err = QuoteSwap(p, pool.ReserveSnapshot{Asset1: 0, Asset2: 10}, FixedInput, usdc, algo, 100, 30)
	assert.True(t, errors.Is(err, ammerr.ErrInsufficientLiquidity))

	_, err = QuoteSwap(p, evenSnapshot(), FixedOutput, usdc, algo, 1_000_000, 30)
	assert.True(t, errors.Is(err, ammerr.ErrInsufficientLiquidity))

	_, err = QuoteSwap(p, evenSnapshot(), FixedInput, usdc, algo, 1, 30)
	assert.True(t, errors.Is(err, ammerr.ErrInvalidAmount))
}

func TestFixedInputSwap_ProductNeverDecreases(t *testing.T) {
	reserves := [][2]uint64{
		{1_000_000, 1_000_000},
		{7, 1_000_000_000},
		{123_456_789, 987_654},
		{1 << 40, 1 << 50},
	}
	amounts := []uint64{1, 17, 1_000, 99_999, 5_000_000}
	fees := []uint64{0, 25, 30, 100}

	for _, r := range reserves {
		for _, a := range amounts {
			for _, f := range fees {
				out, fee, err := FixedInputSwap(r[0], r[1], a, f)
				require.NoError(t, err)

				k := new(big.Int).Mul(bigU(r[0]), bigU(r[1]))
				after := new(big.Int).Mul(bigU(r[0]+a-fee), bigU(r[1]-out))
				assert.True(t, k.Cmp(after) <= 0, "reserves=%v amount=%d fee=%d", r, a, f)
			}
		}
	}
}

func TestSwap_RoundTripFavorsPool(t *testing.T) {
	reserves := [][2]uint64{
		{1_000_000, 1_000_000},
		{5_000, 80_000_000},
		{123_456_789, 987_654},
	}
	fees := []uint64{0, 30, 100}

	for _, r := range reserves {
		for _, f := range fees {
			for _, out := range []uint64{1, 10, 333, r[1] / 2, r[1] - 1} {
				in, _, err := FixedOutputSwap(r[0], r[1], out, f)
				require.NoError(t, err)

				got, _, err := FixedInputSwap(r[0], r[1], in, f)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, out, "reserves=%v out=%d fee=%d", r, out, f)
			}
		}
	}
}
