package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-engine/internal/models"
)

func (c *cli) poolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pool <asset> <asset>",
		Short: "Show a pool's status and reserves",
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
			st, err := a.Engine.FetchPool(ctx, pair)
			if err != nil {
				return err
			}
			return c.renderPool(ctx, st)
		},
	}
}

func (c *cli) bootstrapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap <asset> <asset>",
		Short: "Create the pool of an asset pair",
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
			res, err := a.Engine.Bootstrap(ctx, pair)
			return c.finish(ctx, res, err)
		},
	}
}

func (c *cli) optInCmd() *cobra.Command {
	var check bool
	var account string
	cmd := &cobra.Command{
		Use:   "optin <asset> <asset>",
		Short: "Opt the wallet into the validator app and pool assets",
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
			if check || account != "" {
				plan, err := a.Engine.RequiredOptIns(ctx, account, pair)
				if err != nil {
					return err
				}
				return c.renderPlan(plan)
			}
			res, err := a.Engine.OptIn(ctx, pair)
			return c.finish(ctx, res, err)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "only list missing opt-ins")
	cmd.Flags().StringVar(&account, "account", "", "list missing opt-ins of another account")
	return cmd
}

func (c *cli) excessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "excess [address]",
		Short: "List unredeemed excess across all pools",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			var account string
			if len(args) == 1 {
				account = args[0]
			}
			items, err := a.Engine.ExcessAmounts(ctx, account)
			if err != nil {
				return err
			}
			if account == "" {
				account = a.Engine.Signer().Address().String()
			}
			return c.renderExcess(ctx, account, items)
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [asset...]",
		Short: "Show the wallet's holdings (ALGO when no asset is given)",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ids, err := assetArgs(args)
			if err != nil {
				return err
			}
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			if a.Wallet == nil {
				return ammerr.ErrNoSigner
			}
			rows := make([]balance, 0, len(ids))
			for _, id := range ids {
				amount, optedIn, err := a.Wallet.Balance(ctx, a.Algod, id)
				if err != nil {
					return err
				}
				rows = append(rows, balance{AssetID: id, Amount: amount, OptedIn: optedIn})
			}
			return c.renderBalances(ctx, a.Wallet.String(), rows)
		},
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream published executions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx)
			if err != nil {
				return err
			}
			if a.PubSub == nil {
				return fmt.Errorf("watch needs redis-addr")
			}
			err = a.PubSub.SubscribeExecutions(ctx, pattern, func(ev *models.ExecutionEvent) {
				fmt.Fprintln(c.out, eventLine(ev))
			})
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", constants.PubSubChannelExecutions,
		"channel pattern, e.g. "+constants.PubSubChannelPoolPrefix+"* or "+constants.PubSubChannelOperationPrefix+"swap")
	return cmd
}
