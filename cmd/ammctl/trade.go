package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/app"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
)

// baseUnits converts a whole-unit amount flag. An empty value is zero.
func baseUnits(ctx context.Context, a *app.App, id uint64, value string) (uint64, error) {
	if value == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	return a.Assets.ToBaseUnits(ctx, id, d)
}

// slippageFlag returns nil when --slippage-bps was not given so the
// configured default applies.
func slippageFlag(cmd *cobra.Command) (*uint16, error) {
	if !cmd.Flags().Changed("slippage-bps") {
		return nil, nil
	}
	v, err := cmd.Flags().GetUint16("slippage-bps")
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *cli) quoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote an operation without submitting anything",
	}
	cmd.AddCommand(c.swapCmd(true), c.addCmd(true), c.removeCmd(true))
	return cmd
}

func (c *cli) swapCmd(quoteOnly bool) *cobra.Command {
	var (
		assetIn uint64
		amount  string
		mode    string
	)
	cmd := &cobra.Command{
		Use:   "swap <asset> <asset>",
		Short: "Swap one pool asset for the other",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pair, err := pairArgs(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("in") {
				return fmt.Errorf("--in is required")
			}
			assetOut := pair.AssetA
			if assetIn == pair.AssetA {
				assetOut = pair.AssetB
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}

			// the fixed side determines the amount's asset
			fixed := assetIn
			if amm.SwapMode(mode) == amm.FixedOutput {
				fixed = assetOut
			}
			base, err := baseUnits(ctx, a, fixed, amount)
			if err != nil {
				return err
			}
			slip, err := slippageFlag(cmd)
			if err != nil {
				return err
			}
			req := engine.SwapRequest{
				Pool:        pair,
				AssetIn:     assetIn,
				AssetOut:    assetOut,
				Mode:        amm.SwapMode(mode),
				Amount:      base,
				SlippageBps: slip,
			}

			if quoteOnly {
				q, err := a.Engine.QuoteSwap(ctx, req)
				if err != nil {
					return err
				}
				return c.renderSwapQuote(ctx, q)
			}
			res, err := a.Engine.Swap(ctx, req)
			return c.finish(ctx, res, err)
		},
	}
	cmd.Flags().Uint64Var(&assetIn, "in", 0, "asset id sent to the pool")
	cmd.Flags().StringVar(&amount, "amount", "", "fixed amount in whole units")
	cmd.Flags().StringVar(&mode, "mode", string(amm.FixedInput), "fixed-input or fixed-output")
	cmd.Flags().Uint16("slippage-bps", 0, "slippage tolerance in bps")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func (c *cli) addCmd(quoteOnly bool) *cobra.Command {
	var amountA, amountB, mode string
	cmd := &cobra.Command{
		Use:   "add <asset> <asset>",
		Short: "Add liquidity to a pool",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pair, err := pairArgs(args)
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			baseA, err := baseUnits(ctx, a, pair.AssetA, amountA)
			if err != nil {
				return err
			}
			baseB, err := baseUnits(ctx, a, pair.AssetB, amountB)
			if err != nil {
				return err
			}
			slip, err := slippageFlag(cmd)
			if err != nil {
				return err
			}
			req := engine.AddLiquidityRequest{
				Pool:        pair,
				Mode:        amm.AddMode(mode),
				Amount1:     amm.AssetAmount{AssetID: pair.AssetA, Amount: baseA},
				Amount2:     amm.AssetAmount{AssetID: pair.AssetB, Amount: baseB},
				SlippageBps: slip,
			}

			if quoteOnly {
				q, err := a.Engine.QuoteAddLiquidity(ctx, req)
				if err != nil {
					return err
				}
				return c.renderAddQuote(ctx, q)
			}
			res, err := a.Engine.AddLiquidity(ctx, req)
			return c.finish(ctx, res, err)
		},
	}
	cmd.Flags().StringVar(&amountA, "amount-a", "", "amount of the first asset in whole units")
	cmd.Flags().StringVar(&amountB, "amount-b", "", "amount of the second asset in whole units")
	cmd.Flags().StringVar(&mode, "mode", string(amm.AddFlexible), "initial, proportional, flexible or single")
	cmd.Flags().Uint16("slippage-bps", 0, "slippage tolerance in bps")
	return cmd
}

func (c *cli) removeCmd(quoteOnly bool) *cobra.Command {
	var (
		tokens string
		mode   string
		output uint64
	)
	cmd := &cobra.Command{
		Use:   "remove <asset> <asset>",
		Short: "Burn pool tokens for the pool assets",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pair, err := pairArgs(args)
			if err != nil {
				return err
			}
			if amm.RemoveMode(mode) == amm.RemoveSingle && !cmd.Flags().Changed("out") {
				return fmt.Errorf("--out is required in single mode")
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			st, err := a.Engine.FetchPool(ctx, pair)
			if err != nil {
				return err
			}
			if st.Pool.PoolTokenID == 0 {
				return fmt.Errorf("pool %s has no pool token", st.Pool.Address)
			}
			base, err := baseUnits(ctx, a, st.Pool.PoolTokenID, tokens)
			if err != nil {
				return err
			}
			slip, err := slippageFlag(cmd)
			if err != nil {
				return err
			}
			req := engine.RemoveLiquidityRequest{
				Pool:        pair,
				Mode:        amm.RemoveMode(mode),
				PoolTokens:  base,
				OutputAsset: output,
				SlippageBps: slip,
			}

			if quoteOnly {
				q, err := a.Engine.QuoteRemoveLiquidity(ctx, req)
				if err != nil {
					return err
				}
				return c.renderRemoveQuote(ctx, q)
			}
			res, err := a.Engine.RemoveLiquidity(ctx, req)
			return c.finish(ctx, res, err)
		},
	}
	cmd.Flags().StringVar(&tokens, "pool-tokens", "", "pool tokens to burn in whole units")
	cmd.Flags().StringVar(&mode, "mode", string(amm.RemoveProportional), "proportional or single")
	cmd.Flags().Uint64Var(&output, "out", 0, "output asset in single mode")
	cmd.Flags().Uint16("slippage-bps", 0, "slippage tolerance in bps")
	_ = cmd.MarkFlagRequired("pool-tokens")
	return cmd
}

func (c *cli) redeemCmd() *cobra.Command {
	var (
		asset  uint64
		amount string
	)
	cmd := &cobra.Command{
		Use:   "redeem <asset> <asset>",
		Short: "Withdraw excess left in a pool by earlier operations",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pair, err := pairArgs(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("asset") {
				return fmt.Errorf("--asset is required")
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			base, err := baseUnits(ctx, a, asset, amount)
			if err != nil {
				return err
			}
			res, err := a.Engine.Redeem(ctx, engine.RedeemRequest{Pool: pair, AssetID: asset, Amount: base})
			return c.finish(ctx, res, err)
		},
	}
	cmd.Flags().Uint64Var(&asset, "asset", 0, "asset to redeem")
	cmd.Flags().StringVar(&amount, "amount", "", "amount in whole units (default all)")
	return cmd
}

// finish renders an execution and returns its error. A failed execution
// that got far enough to have a result is rendered before the error.
func (c *cli) finish(ctx context.Context, res *engine.ExecutionResult, err error) error {
	if res != nil {
		if rerr := c.renderExecution(ctx, res); rerr != nil {
			return rerr
		}
	}
	return err
}
