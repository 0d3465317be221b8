package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/aman-zulfiqar/amm-engine/internal/txgroup"
)

// Protocol holds everything that differs between contract versions: fee
// source, supported modes and the app-call arguments of each group.
type Protocol interface {
	Version() pool.Version
	FeeShare(p *pool.Pool) uint64

	QuoteSwap(st *pool.State, req SwapRequest) (*amm.SwapQuote, error)
	QuoteAddLiquidity(st *pool.State, req AddLiquidityRequest) (*amm.AddLiquidityQuote, error)
	QuoteRemoveLiquidity(st *pool.State, req RemoveLiquidityRequest) (*amm.RemoveLiquidityQuote, error)

	BuildSwap(b *txgroup.Builder, q *amm.SwapQuote, slippage decimal.Decimal) (*txgroup.Group, error)
	BuildAddLiquidity(b *txgroup.Builder, q *amm.AddLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error)
	BuildRemoveLiquidity(b *txgroup.Builder, q *amm.RemoveLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error)
	BuildRedeem(b *txgroup.Builder, out amm.AssetAmount) (*txgroup.Group, error)
	BuildBootstrap(b *txgroup.Builder, p *pool.Pool, poolTokenName string) (*txgroup.Group, error)
}

// ProtocolFor returns the implementation of a contract version.
func ProtocolFor(v pool.Version) (Protocol, error) {
	switch v {
	case pool.V1:
		return V1(), nil
	case pool.V2:
		return V2(), nil
	}
	return nil, fmt.Errorf("unknown protocol version %q", v)
}

// base carries the quote and build logic shared by both versions. The
// version types supply the fee and the arguments.
type base struct {
	feeShare       func(p *pool.Pool) uint64
	supportsAdd    func(mode amm.AddMode) bool
	supportsRemove func(mode amm.RemoveMode) bool
}

func (b base) FeeShare(p *pool.Pool) uint64 { return b.feeShare(p) }

func (b base) QuoteSwap(st *pool.State, req SwapRequest) (*amm.SwapQuote, error) {
	if err := st.Pool.Ready(); err != nil {
		return nil, err
	}
	return amm.QuoteSwap(&st.Pool, st.Reserves, req.Mode, req.AssetIn, req.AssetOut, req.Amount, b.FeeShare(&st.Pool))
}

func (b base) QuoteAddLiquidity(st *pool.State, req AddLiquidityRequest) (*amm.AddLiquidityQuote, error) {
	if !b.supportsAdd(req.Mode) {
		return nil, unsupported("add-liquidity", string(req.Mode))
	}
	if err := st.Pool.Ready(); err != nil {
		return nil, err
	}
	p := &st.Pool
	a1, a2 := req.amounts(p)

	switch req.Mode {
	case amm.AddInitial:
		if st.Reserves.IssuedPoolTokens != 0 {
			return nil, ammerr.New(ammerr.KindInvalidAmount, "pool already has liquidity, use another mode")
		}
		return amm.QuoteInitialAdd(p, a1, a2)
	case amm.AddProportional:
		return amm.QuoteProportionalAdd(p, st.Reserves, a1, a2)
	case amm.AddFlexible:
		return amm.QuoteFlexibleAdd(p, st.Reserves, a1, a2, b.FeeShare(p))
	case amm.AddSingle:
		return amm.QuoteSingleAdd(p, st.Reserves, a1, a2, b.FeeShare(p))
	}
	return nil, unsupported("add-liquidity", string(req.Mode))
}

func (b base) QuoteRemoveLiquidity(st *pool.State, req RemoveLiquidityRequest) (*amm.RemoveLiquidityQuote, error) {
	if !b.supportsRemove(req.Mode) {
		return nil, unsupported("remove-liquidity", string(req.Mode))
	}
	if err := st.Pool.Ready(); err != nil {
		return nil, err
	}
	p := &st.Pool

	switch req.Mode {
	case amm.RemoveProportional:
		return amm.QuoteProportionalRemove(p, st.Reserves, req.PoolTokens)
	case amm.RemoveSingle:
		return amm.QuoteSingleRemove(p, st.Reserves, req.PoolTokens, req.OutputAsset, b.FeeShare(p))
	}
	return nil, unsupported("remove-liquidity", string(req.Mode))
}

// swapAmounts returns the slippage-bounded transfers of a swap group.
func swapAmounts(q *amm.SwapQuote, slippage decimal.Decimal) (amm.AssetAmount, amm.AssetAmount, error) {
	in, err := q.AmountInWithSlippage(slippage)
	if err != nil {
		return amm.AssetAmount{}, amm.AssetAmount{}, err
	}
	out, err := q.AmountOutWithSlippage(slippage)
	if err != nil {
		return amm.AssetAmount{}, amm.AssetAmount{}, err
	}
	return amm.AssetAmount{AssetID: q.AmountIn.AssetID, Amount: in},
		amm.AssetAmount{AssetID: q.AmountOut.AssetID, Amount: out}, nil
}

func buildAdd(b *txgroup.Builder, args [][]byte, q *amm.AddLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	minted, err := q.PoolTokensWithSlippage(slippage)
	if err != nil {
		return nil, err
	}
	tokens := amm.AssetAmount{AssetID: q.PoolTokens.AssetID, Amount: minted}
	if q.Mode == amm.AddSingle {
		in := q.Amount1
		if in.Amount == 0 {
			in = q.Amount2
		}
		return b.AddSingle(args, in, tokens)
	}
	return b.AddLiquidity(args, q.Amount1, q.Amount2, tokens)
}

func buildRemove(b *txgroup.Builder, args [][]byte, q *amm.RemoveLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	outs, err := q.OutputsWithSlippage(slippage)
	if err != nil {
		return nil, err
	}
	if q.Mode == amm.RemoveSingle {
		if len(outs) != 1 {
			return nil, ammerr.New(ammerr.KindInvalidAmount, "single remove needs one output, got %d", len(outs))
		}
		return b.RemoveSingle(args, q.PoolTokens, outs[0])
	}
	if len(outs) != 2 {
		return nil, ammerr.New(ammerr.KindInvalidAmount, "proportional remove needs two outputs, got %d", len(outs))
	}
	return b.RemoveLiquidity(args, q.PoolTokens, outs[0], outs[1])
}

func unsupported(op, mode string) error {
	return ammerr.New(ammerr.KindUnsupportedOperation, "%s mode %q is not supported by this pool version", op, mode)
}

func strArgs(s ...string) [][]byte {
	out := make([][]byte, len(s))
	for i, v := range s {
		out[i] = []byte(v)
	}
	return out
}

// v1Protocol charges a fixed fee and knows only ratio-matching deposits and
// proportional withdrawals.
type v1Protocol struct{ base }

func V1() Protocol {
	return v1Protocol{base{
		feeShare: func(*pool.Pool) uint64 { return pool.DefaultTotalFeeShare },
		supportsAdd: func(mode amm.AddMode) bool {
			return mode == amm.AddInitial || mode == amm.AddProportional
		},
		supportsRemove: func(mode amm.RemoveMode) bool {
			return mode == amm.RemoveProportional
		},
	}}
}

func (v1Protocol) Version() pool.Version { return pool.V1 }

func (v1Protocol) BuildSwap(b *txgroup.Builder, q *amm.SwapQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	in, out, err := swapAmounts(q, slippage)
	if err != nil {
		return nil, err
	}
	mode := "fi"
	if q.Mode == amm.FixedOutput {
		mode = "fo"
	}
	return b.Swap(strArgs("swap", mode), in, out)
}

func (v1Protocol) BuildAddLiquidity(b *txgroup.Builder, q *amm.AddLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	if q.Mode != amm.AddInitial && q.Mode != amm.AddProportional {
		return nil, unsupported("add-liquidity", string(q.Mode))
	}
	return buildAdd(b, strArgs("mint"), q, slippage)
}

func (v1Protocol) BuildRemoveLiquidity(b *txgroup.Builder, q *amm.RemoveLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	if q.Mode != amm.RemoveProportional {
		return nil, unsupported("remove-liquidity", string(q.Mode))
	}
	return buildRemove(b, strArgs("burn"), q, slippage)
}

func (v1Protocol) BuildRedeem(b *txgroup.Builder, out amm.AssetAmount) (*txgroup.Group, error) {
	return b.Redeem(strArgs("redeem"), out)
}

func (v1Protocol) BuildBootstrap(b *txgroup.Builder, p *pool.Pool, name string) (*txgroup.Group, error) {
	args := append(strArgs("bootstrap"), txgroup.AssetArgs(p.Asset1ID, p.Asset2ID)...)
	return b.Bootstrap(args, name)
}

// v2Protocol reads the fee share from pool state and supports every mode.
// The contract has no proportional deposit: proportional quotes are sent as
// flexible ones, so any side beyond the pool ratio is deposited too and
// rebalanced by an internal swap instead of being left with the initiator.
type v2Protocol struct{ base }

func V2() Protocol {
	return v2Protocol{base{
		feeShare: func(p *pool.Pool) uint64 {
			if p.TotalFeeShare == 0 {
				return pool.DefaultTotalFeeShare
			}
			return p.TotalFeeShare
		},
		supportsAdd:    func(amm.AddMode) bool { return true },
		supportsRemove: func(amm.RemoveMode) bool { return true },
	}}
}

func (v2Protocol) Version() pool.Version { return pool.V2 }

func (v2Protocol) BuildSwap(b *txgroup.Builder, q *amm.SwapQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	in, out, err := swapAmounts(q, slippage)
	if err != nil {
		return nil, err
	}
	return b.Swap(strArgs("swap", string(q.Mode)), in, out)
}

func (v2Protocol) BuildAddLiquidity(b *txgroup.Builder, q *amm.AddLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	mode := q.Mode
	if mode == amm.AddProportional {
		mode = amm.AddFlexible
	}
	return buildAdd(b, strArgs("add_liquidity", string(mode)), q, slippage)
}

func (v2Protocol) BuildRemoveLiquidity(b *txgroup.Builder, q *amm.RemoveLiquidityQuote, slippage decimal.Decimal) (*txgroup.Group, error) {
	return buildRemove(b, strArgs("remove_liquidity", string(q.Mode)), q, slippage)
}

func (v2Protocol) BuildRedeem(b *txgroup.Builder, out amm.AssetAmount) (*txgroup.Group, error) {
	return b.Redeem(strArgs("redeem"), out)
}

func (v2Protocol) BuildBootstrap(b *txgroup.Builder, _ *pool.Pool, name string) (*txgroup.Group, error) {
	return b.Bootstrap(strArgs("bootstrap"), name)
}
