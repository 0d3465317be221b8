package amm

import (
	"github.com/shopspring/decimal"
)

// SwapMode selects which side of a swap is fixed.
type SwapMode string

const (
	FixedInput  SwapMode = "fixed-input"
	FixedOutput SwapMode = "fixed-output"
)

// AddMode selects the add-liquidity formula.
type AddMode string

const (
	AddInitial      AddMode = "initial"
	AddProportional AddMode = "proportional"
	AddFlexible     AddMode = "flexible"
	AddSingle       AddMode = "single"
)

// RemoveMode selects the remove-liquidity formula.
type RemoveMode string

const (
	RemoveProportional RemoveMode = "proportional"
	RemoveSingle       RemoveMode = "single"
)

type AssetAmount struct {
	AssetID uint64 `json:"asset_id"`
	Amount  uint64 `json:"amount"`
}

// SwapQuote is the predicted result of a swap. SwapFee is denominated in the
// input asset.
type SwapQuote struct {
	Mode        SwapMode        `json:"mode"`
	AmountIn    AssetAmount     `json:"amount_in"`
	AmountOut   AssetAmount     `json:"amount_out"`
	SwapFee     AssetAmount     `json:"swap_fee"`
	PriceImpact decimal.Decimal `json:"price_impact"`
}

// AmountInWithSlippage is the most the payer may spend. Only fixed-output
// swaps have a variable input.
func (q *SwapQuote) AmountInWithSlippage(s decimal.Decimal) (uint64, error) {
	if q.Mode == FixedInput {
		if err := ValidateSlippage(s); err != nil {
			return 0, err
		}
		return q.AmountIn.Amount, nil
	}
	return ApplySlippage(q.AmountIn.Amount, s, BoundMax)
}

// AmountOutWithSlippage is the least the receiver accepts. Only fixed-input
// swaps have a variable output.
func (q *SwapQuote) AmountOutWithSlippage(s decimal.Decimal) (uint64, error) {
	if q.Mode == FixedOutput {
		if err := ValidateSlippage(s); err != nil {
			return 0, err
		}
		return q.AmountOut.Amount, nil
	}
	return ApplySlippage(q.AmountOut.Amount, s, BoundMin)
}

// InternalSwapQuote describes the rebalancing swap the pool performs inside
// a flexible or single-asset liquidity operation.
type InternalSwapQuote struct {
	AmountIn    AssetAmount     `json:"amount_in"`
	AmountOut   AssetAmount     `json:"amount_out"`
	SwapFee     AssetAmount     `json:"swap_fee"`
	PriceImpact decimal.Decimal `json:"price_impact"`
}

type AddLiquidityQuote struct {
	Mode         AddMode            `json:"mode"`
	Amount1      AssetAmount        `json:"amount1"`
	Amount2      AssetAmount        `json:"amount2"`
	PoolTokens   AssetAmount        `json:"pool_tokens"`
	Share        decimal.Decimal    `json:"share"`
	InternalSwap *InternalSwapQuote `json:"internal_swap,omitempty"`
}

// PoolTokensWithSlippage is the minimum pool token amount to accept.
// Initial deposits are deterministic and ignore slippage.
func (q *AddLiquidityQuote) PoolTokensWithSlippage(s decimal.Decimal) (uint64, error) {
	if q.Mode == AddInitial {
		if err := ValidateSlippage(s); err != nil {
			return 0, err
		}
		return q.PoolTokens.Amount, nil
	}
	return ApplySlippage(q.PoolTokens.Amount, s, BoundMin)
}

// RemoveLiquidityQuote carries one output per withdrawn asset: two for
// proportional withdrawals, one for single-asset.
type RemoveLiquidityQuote struct {
	Mode         RemoveMode         `json:"mode"`
	PoolTokens   AssetAmount        `json:"pool_tokens"`
	Outputs      []AssetAmount      `json:"outputs"`
	InternalSwap *InternalSwapQuote `json:"internal_swap,omitempty"`
}

// OutputsWithSlippage lowers every output by the slippage tolerance.
func (q *RemoveLiquidityQuote) OutputsWithSlippage(s decimal.Decimal) ([]AssetAmount, error) {
	out := make([]AssetAmount, len(q.Outputs))
	for i, o := range q.Outputs {
		v, err := ApplySlippage(o.Amount, s, BoundMin)
		if err != nil {
			return nil, err
		}
		out[i] = AssetAmount{AssetID: o.AssetID, Amount: v}
	}
	return out, nil
}

// Output returns the quoted amount for one asset, zero if absent.
func (q *RemoveLiquidityQuote) Output(assetID uint64) uint64 {
	for _, o := range q.Outputs {
		if o.AssetID == assetID {
			return o.Amount
		}
	}
	return 0
}
