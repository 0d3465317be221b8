package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/aman-zulfiqar/amm-engine/internal/txgroup"
)

// Swap quotes and executes a swap. Only assets whose amount can vary are
// bounded by slippage.
func (e *Engine) Swap(ctx context.Context, req SwapRequest) (*ExecutionResult, error) {
	slippage, bps, err := e.risk.Slippage(req.SlippageBps)
	if err != nil {
		return nil, err
	}
	st, q, err := e.quoteSwap(ctx, req)
	if err != nil {
		return nil, err
	}
	in, out, err := swapAmounts(q, slippage)
	if err != nil {
		return nil, err
	}

	return e.execute(ctx, job{
		op:          OpSwap,
		state:       st,
		guard:       true,
		slippageBps: bps,
		impact:      q.PriceImpact,
		build: e.poolGroup(st, func(b *txgroup.Builder) (*txgroup.Group, error) {
			return e.protocol.BuildSwap(b, q, slippage)
		}),
		track:   []uint64{q.AmountIn.AssetID, q.AmountOut.AssetID},
		inputs:  []amm.AssetAmount{in},
		outputs: []Output{{AssetID: out.AssetID, Quoted: q.AmountOut.Amount, Nominal: out.Amount}},
		quote:   q,
	})
}

func (e *Engine) AddLiquidity(ctx context.Context, req AddLiquidityRequest) (*ExecutionResult, error) {
	slippage, bps, err := e.risk.Slippage(req.SlippageBps)
	if err != nil {
		return nil, err
	}
	st, q, err := e.quoteAddLiquidity(ctx, req)
	if err != nil {
		return nil, err
	}
	minted, err := q.PoolTokensWithSlippage(slippage)
	if err != nil {
		return nil, err
	}

	var inputs []amm.AssetAmount
	for _, a := range []amm.AssetAmount{q.Amount1, q.Amount2} {
		if a.Amount > 0 {
			inputs = append(inputs, a)
		}
	}

	return e.execute(ctx, job{
		op:          OpAddLiquidity,
		state:       st,
		guard:       true,
		slippageBps: bps,
		impact:      internalImpact(q.InternalSwap),
		build: e.poolGroup(st, func(b *txgroup.Builder) (*txgroup.Group, error) {
			return e.protocol.BuildAddLiquidity(b, q, slippage)
		}),
		track:   []uint64{st.Pool.Asset1ID, st.Pool.Asset2ID, st.Pool.PoolTokenID},
		inputs:  inputs,
		outputs: []Output{{AssetID: q.PoolTokens.AssetID, Quoted: q.PoolTokens.Amount, Nominal: minted}},
		quote:   q,
	})
}

func (e *Engine) RemoveLiquidity(ctx context.Context, req RemoveLiquidityRequest) (*ExecutionResult, error) {
	slippage, bps, err := e.risk.Slippage(req.SlippageBps)
	if err != nil {
		return nil, err
	}
	st, q, err := e.quoteRemoveLiquidity(ctx, req)
	if err != nil {
		return nil, err
	}
	bounded, err := q.OutputsWithSlippage(slippage)
	if err != nil {
		return nil, err
	}
	outputs := make([]Output, len(bounded))
	for i, b := range bounded {
		outputs[i] = Output{AssetID: b.AssetID, Quoted: q.Output(b.AssetID), Nominal: b.Amount}
	}

	return e.execute(ctx, job{
		op:          OpRemoveLiquidity,
		state:       st,
		guard:       true,
		slippageBps: bps,
		impact:      internalImpact(q.InternalSwap),
		build: e.poolGroup(st, func(b *txgroup.Builder) (*txgroup.Group, error) {
			return e.protocol.BuildRemoveLiquidity(b, q, slippage)
		}),
		track:   []uint64{st.Pool.Asset1ID, st.Pool.Asset2ID},
		inputs:  []amm.AssetAmount{q.PoolTokens},
		outputs: outputs,
		quote:   q,
	})
}

// Redeem withdraws the initiator's excess of one asset from a pool. The
// excess is read first so a zero request redeems all of it and an oversized
// one fails before anything is built.
func (e *Engine) Redeem(ctx context.Context, req RedeemRequest) (*ExecutionResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if e.signer == nil {
		return nil, ammerr.New(ammerr.KindNoSigner, "engine has no signer configured")
	}
	st, err := e.FetchPool(ctx, req.Pool)
	if err != nil {
		return nil, err
	}
	if err := st.Pool.Ready(); err != nil {
		return nil, err
	}
	if !st.Pool.Has(req.AssetID) && req.AssetID != st.Pool.PoolTokenID {
		return nil, ammerr.New(ammerr.KindAssetMismatch, "asset %d is not in pool %d/%d", req.AssetID, st.Pool.Asset1ID, st.Pool.Asset2ID)
	}

	snap, err := e.excess.Excess(ctx, e.signer.Address().String(), &st.Pool, []uint64{req.AssetID})
	if err != nil {
		return nil, err
	}
	available := snap.Get(req.AssetID)
	amount := req.Amount
	switch {
	case available == 0:
		return nil, ammerr.New(ammerr.KindInvalidAmount, "no excess of asset %d to redeem", req.AssetID)
	case amount == 0:
		amount = available
	case amount > available:
		return nil, ammerr.New(ammerr.KindInvalidAmount, "redeem %d exceeds excess %d of asset %d", amount, available, req.AssetID)
	}
	out := amm.AssetAmount{AssetID: req.AssetID, Amount: amount}

	return e.execute(ctx, job{
		op:    OpRedeem,
		state: st,
		guard: true,
		build: e.poolGroup(st, func(b *txgroup.Builder) (*txgroup.Group, error) {
			return e.protocol.BuildRedeem(b, out)
		}),
		outputs: []Output{{AssetID: out.AssetID, Quoted: amount, Nominal: amount}},
	})
}

// Bootstrap creates a pair's pool: funds the program account, opts it into
// the validator app and the assets, and creates the pool token.
func (e *Engine) Bootstrap(ctx context.Context, pair Pair) (*ExecutionResult, error) {
	if e.signer == nil {
		return nil, ammerr.New(ammerr.KindNoSigner, "engine has no signer configured")
	}
	st, err := e.FetchPool(ctx, pair)
	if err != nil {
		return nil, err
	}
	if st.Pool.Status != pool.StatusNotCreated {
		return nil, ammerr.New(ammerr.KindUnsupportedOperation, "%s is already %s", &st.Pool, st.Pool.Status)
	}
	name := e.poolTokenName(ctx, &st.Pool)

	return e.execute(ctx, job{
		op:    OpBootstrap,
		state: st,
		build: e.poolGroup(st, func(b *txgroup.Builder) (*txgroup.Group, error) {
			return e.protocol.BuildBootstrap(b, &st.Pool, name)
		}),
		quote: map[string]string{"pool_token_name": name},
	})
}

// OptIn submits the opt-ins RequiredOptIns reports for the signer.
func (e *Engine) OptIn(ctx context.Context, pair Pair) (*ExecutionResult, error) {
	if e.signer == nil {
		return nil, ammerr.New(ammerr.KindNoSigner, "engine has no signer configured")
	}
	plan, err := e.RequiredOptIns(ctx, "", pair)
	if err != nil {
		return nil, err
	}
	if plan.Empty() {
		return nil, ammerr.New(ammerr.KindUnsupportedOperation, "account %s needs no opt-ins", plan.Account)
	}
	initiator := e.signer.Address()

	return e.execute(ctx, job{
		op: OpOptIn,
		build: func(params types.SuggestedParams) (*txgroup.Group, error) {
			return txgroup.OptIns(params, initiator, plan.AppID, plan.Assets)
		},
		quote: plan,
	})
}

// poolGroup adapts a protocol build step to execute's build hook.
func (e *Engine) poolGroup(st *pool.State, build func(b *txgroup.Builder) (*txgroup.Group, error)) func(types.SuggestedParams) (*txgroup.Group, error) {
	return func(params types.SuggestedParams) (*txgroup.Group, error) {
		program, err := types.DecodeAddress(st.Pool.Address)
		if err != nil {
			return nil, fmt.Errorf("pool address: %w", err)
		}
		b, err := txgroup.NewBuilder(params, &st.Pool, program, e.signer.Address())
		if err != nil {
			return nil, err
		}
		g, err := build(b)
		if err != nil {
			return nil, err
		}
		if err := g.Validate(); err != nil {
			return nil, fmt.Errorf("invalid %s group: %w", st.Pool.Version, err)
		}
		return g, nil
	}
}

func (e *Engine) poolTokenName(ctx context.Context, p *pool.Pool) string {
	prefix := "TinymanPool2.0"
	if p.Version == pool.V1 {
		prefix = "TinymanPool1.1"
	}
	unit := func(id uint64) string {
		if e.assets != nil {
			if info, err := e.assets.Info(ctx, id); err == nil && info.UnitName != "" {
				return info.UnitName
			}
		}
		return fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("%s %s-%s", prefix, unit(p.Asset1ID), unit(p.Asset2ID))
}

func internalImpact(q *amm.InternalSwapQuote) decimal.Decimal {
	if q == nil {
		return decimal.Zero
	}
	return q.PriceImpact
}

func sortedKeys(m map[uint64]uint64) []uint64 {
	return slices.Sorted(maps.Keys(m))
}
