package engine

import (
	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// Operation names an executed protocol call.
type Operation string

const (
	OpSwap            Operation = "swap"
	OpAddLiquidity    Operation = "add_liquidity"
	OpRemoveLiquidity Operation = "remove_liquidity"
	OpRedeem          Operation = "redeem"
	OpBootstrap       Operation = "bootstrap"
	OpOptIn           Operation = "opt_in"
)

// Pair selects a pool by its two assets, in any order.
type Pair struct {
	AssetA uint64 `json:"asset_a"`
	AssetB uint64 `json:"asset_b"`
}

// Ordered returns the pair in pool order (greater id first).
func (p Pair) Ordered() (uint64, uint64) { return pool.OrderAssets(p.AssetA, p.AssetB) }

func (p Pair) Validate() error {
	if p.AssetA == p.AssetB {
		return ammerr.New(ammerr.KindAssetMismatch, "pool assets must differ, got %d twice", p.AssetA)
	}
	return nil
}

func (p Pair) has(assetID uint64) bool { return assetID == p.AssetA || assetID == p.AssetB }

// SwapRequest trades AssetIn for AssetOut. Amount is the input for
// fixed-input swaps and the output for fixed-output swaps.
type SwapRequest struct {
	Pool     Pair         `json:"pool"`
	AssetIn  uint64       `json:"asset_in"`
	AssetOut uint64       `json:"asset_out"`
	Mode     amm.SwapMode `json:"mode"`
	Amount   uint64       `json:"amount"`
	// SlippageBps falls back to the configured default when nil.
	SlippageBps *uint16 `json:"slippage_bps,omitempty"`
}

func (r SwapRequest) Validate() error {
	if err := r.Pool.Validate(); err != nil {
		return err
	}
	if r.AssetIn == r.AssetOut || !r.Pool.has(r.AssetIn) || !r.Pool.has(r.AssetOut) {
		return ammerr.New(ammerr.KindAssetMismatch, "pair %d/%d does not match pool %d/%d",
			r.AssetIn, r.AssetOut, r.Pool.AssetA, r.Pool.AssetB)
	}
	switch r.Mode {
	case amm.FixedInput, amm.FixedOutput:
	default:
		return ammerr.New(ammerr.KindUnsupportedOperation, "unknown swap mode %q", r.Mode)
	}
	if r.Amount == 0 {
		return ammerr.New(ammerr.KindInvalidAmount, "swap amount must be positive")
	}
	return nil
}

// AddLiquidityRequest deposits into a pool. Amounts are matched to pool sides
// by asset id; a single-asset deposit leaves the other amount at zero.
type AddLiquidityRequest struct {
	Pool        Pair            `json:"pool"`
	Mode        amm.AddMode     `json:"mode"`
	Amount1     amm.AssetAmount `json:"amount1"`
	Amount2     amm.AssetAmount `json:"amount2"`
	SlippageBps *uint16         `json:"slippage_bps,omitempty"`
}

func (r AddLiquidityRequest) Validate() error {
	if err := r.Pool.Validate(); err != nil {
		return err
	}
	if r.Amount1.AssetID == r.Amount2.AssetID || !r.Pool.has(r.Amount1.AssetID) || !r.Pool.has(r.Amount2.AssetID) {
		return ammerr.New(ammerr.KindAssetMismatch, "deposit %d/%d does not match pool %d/%d",
			r.Amount1.AssetID, r.Amount2.AssetID, r.Pool.AssetA, r.Pool.AssetB)
	}
	switch r.Mode {
	case amm.AddInitial, amm.AddProportional, amm.AddFlexible, amm.AddSingle:
	default:
		return ammerr.New(ammerr.KindUnsupportedOperation, "unknown add-liquidity mode %q", r.Mode)
	}
	if r.Amount1.Amount == 0 && r.Amount2.Amount == 0 {
		return ammerr.New(ammerr.KindInvalidAmount, "provide an amount")
	}
	return nil
}

// amounts returns the deposit in pool order.
func (r AddLiquidityRequest) amounts(p *pool.Pool) (uint64, uint64) {
	if r.Amount1.AssetID == p.Asset1ID {
		return r.Amount1.Amount, r.Amount2.Amount
	}
	return r.Amount2.Amount, r.Amount1.Amount
}

// RemoveLiquidityRequest burns pool tokens. OutputAsset is only read in
// single mode.
type RemoveLiquidityRequest struct {
	Pool        Pair           `json:"pool"`
	Mode        amm.RemoveMode `json:"mode"`
	PoolTokens  uint64         `json:"pool_tokens"`
	OutputAsset uint64         `json:"output_asset,omitempty"`
	SlippageBps *uint16        `json:"slippage_bps,omitempty"`
}

func (r RemoveLiquidityRequest) Validate() error {
	if err := r.Pool.Validate(); err != nil {
		return err
	}
	switch r.Mode {
	case amm.RemoveProportional:
	case amm.RemoveSingle:
		if !r.Pool.has(r.OutputAsset) {
			return ammerr.New(ammerr.KindAssetMismatch, "output asset %d is not in pool %d/%d",
				r.OutputAsset, r.Pool.AssetA, r.Pool.AssetB)
		}
	default:
		return ammerr.New(ammerr.KindUnsupportedOperation, "unknown remove-liquidity mode %q", r.Mode)
	}
	if r.PoolTokens == 0 {
		return ammerr.New(ammerr.KindInvalidAmount, "pool token amount must be positive")
	}
	return nil
}

// RedeemRequest withdraws accumulated excess of one asset. A zero Amount
// redeems the full current excess.
type RedeemRequest struct {
	Pool    Pair   `json:"pool"`
	AssetID uint64 `json:"asset_id"`
	Amount  uint64 `json:"amount,omitempty"`
}

func (r RedeemRequest) Validate() error {
	return r.Pool.Validate()
}
