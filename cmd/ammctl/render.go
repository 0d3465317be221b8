package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
	"github.com/aman-zulfiqar/amm-engine/internal/excess"
	"github.com/aman-zulfiqar/amm-engine/internal/models"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// emit prints v as JSON with --json, otherwise the table fill builds. The
// title goes on its own line; a table title is wrapped to the column width.
func (c *cli) emit(v any, title string, fill func(t table.Writer)) error {
	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	if title != "" {
		fmt.Fprintln(c.out, text.Bold.Sprint(title))
	}
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleRounded)
	fill(t)
	t.Render()
	return nil
}

// amount formats base units in whole units with the asset's unit name. It
// falls back to base units when metadata is unavailable.
func (c *cli) amount(ctx context.Context, id, base uint64) string {
	if c.app == nil {
		return fmt.Sprintf("%d", base)
	}
	info, err := c.app.Assets.Info(ctx, id)
	if err != nil {
		return fmt.Sprintf("%d (asset %d)", base, id)
	}
	whole, err := c.app.Assets.FromBaseUnits(ctx, id, base)
	if err != nil {
		return fmt.Sprintf("%d", base)
	}
	name := info.UnitName
	if name == "" {
		name = fmt.Sprintf("#%d", id)
	}
	return whole.String() + " " + name
}

func (c *cli) assetAmount(ctx context.Context, a amm.AssetAmount) string {
	return c.amount(ctx, a.AssetID, a.Amount)
}

func statusColor(s pool.Status) string {
	switch s {
	case pool.StatusReady:
		return text.FgGreen.Sprint(s)
	case pool.StatusError:
		return text.FgRed.Sprint(s)
	default:
		return text.FgYellow.Sprint(s)
	}
}

func stateColor(s engine.State) string {
	switch s {
	case engine.StateConfirmed:
		return text.FgGreen.Sprint(s)
	case engine.StateFailed:
		return text.FgRed.Sprint(s)
	default:
		return text.FgYellow.Sprint(s)
	}
}

func (c *cli) renderPool(ctx context.Context, st *pool.State) error {
	p := st.Pool
	return c.emit(st, p.Address, func(t table.Writer) {
		t.AppendRows([]table.Row{
			{"Version", p.Version},
			{"Status", statusColor(p.Status)},
			{"Validator app", p.ValidatorAppID},
			{"Fee", fmt.Sprintf("%d bps", p.TotalFeeShare)},
			{"Round", st.Reserves.Round},
		})
		t.AppendSeparator()
		t.AppendRows([]table.Row{
			{"Asset 1 reserve", c.amount(ctx, p.Asset1ID, st.Reserves.Asset1)},
			{"Asset 2 reserve", c.amount(ctx, p.Asset2ID, st.Reserves.Asset2)},
		})
		if p.PoolTokenID != 0 {
			t.AppendRow(table.Row{"Issued pool tokens", c.amount(ctx, p.PoolTokenID, st.Reserves.IssuedPoolTokens)})
		}
		for _, id := range []uint64{p.Asset1ID, p.Asset2ID, p.PoolTokenID} {
			if n := st.Outstanding[id]; n > 0 {
				t.AppendRow(table.Row{"Outstanding excess", c.amount(ctx, id, n)})
			}
		}
	})
}

func (c *cli) renderSwapQuote(ctx context.Context, q *amm.SwapQuote) error {
	return c.emit(q, "Swap quote ("+string(q.Mode)+")", func(t table.Writer) {
		t.AppendRows([]table.Row{
			{"In", c.assetAmount(ctx, q.AmountIn)},
			{"Out", c.assetAmount(ctx, q.AmountOut)},
			{"Fee", c.assetAmount(ctx, q.SwapFee)},
			{"Price impact", q.PriceImpact.Shift(2).StringFixed(2) + "%"},
		})
	})
}

func (c *cli) renderAddQuote(ctx context.Context, q *amm.AddLiquidityQuote) error {
	return c.emit(q, "Add liquidity quote ("+string(q.Mode)+")", func(t table.Writer) {
		t.AppendRows([]table.Row{
			{"Deposit", c.assetAmount(ctx, q.Amount1)},
			{"Deposit", c.assetAmount(ctx, q.Amount2)},
			{"Pool tokens", c.assetAmount(ctx, q.PoolTokens)},
			{"Share", q.Share.Shift(2).StringFixed(4) + "%"},
		})
		if s := q.InternalSwap; s != nil {
			t.AppendSeparator()
			t.AppendRow(table.Row{"Internal swap", c.assetAmount(ctx, s.AmountIn) + " -> " + c.assetAmount(ctx, s.AmountOut)})
			t.AppendRow(table.Row{"Internal price impact", s.PriceImpact.Shift(2).StringFixed(2) + "%"})
		}
	})
}

func (c *cli) renderRemoveQuote(ctx context.Context, q *amm.RemoveLiquidityQuote) error {
	return c.emit(q, "Remove liquidity quote ("+string(q.Mode)+")", func(t table.Writer) {
		t.AppendRow(table.Row{"Burn", c.assetAmount(ctx, q.PoolTokens)})
		for _, o := range q.Outputs {
			t.AppendRow(table.Row{"Receive", c.assetAmount(ctx, o)})
		}
		if s := q.InternalSwap; s != nil {
			t.AppendSeparator()
			t.AppendRow(table.Row{"Internal swap", c.assetAmount(ctx, s.AmountIn) + " -> " + c.assetAmount(ctx, s.AmountOut)})
		}
	})
}

func (c *cli) renderExecution(ctx context.Context, r *engine.ExecutionResult) error {
	if c.jsonOut {
		return c.emit(r, "", nil)
	}
	if err := c.emit(r, fmt.Sprintf("%s %s", r.Operation, r.ExecutionID), func(t table.Writer) {
		t.AppendRows([]table.Row{
			{"State", stateColor(r.State)},
			{"Pool", r.Pool},
			{"Round", r.Round},
			{"Group", r.GroupID},
			{"Transactions", strings.Join(r.TxIDs, "\n")},
			{"Fees", c.amount(ctx, 0, r.Fees)},
			{"Took", r.Duration.Round(time.Millisecond).String()},
		})
		for _, in := range r.Inputs {
			t.AppendRow(table.Row{"Sent", c.assetAmount(ctx, in)})
		}
	}); err != nil {
		return err
	}
	if len(r.Outputs) == 0 {
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Asset", "Quoted", "Nominal", "Excess", "Total"})
	for _, o := range r.Outputs {
		t.AppendRow(table.Row{
			o.AssetID,
			c.amount(ctx, o.AssetID, o.Quoted),
			c.amount(ctx, o.AssetID, o.Nominal),
			c.amount(ctx, o.AssetID, o.Excess),
			c.amount(ctx, o.AssetID, o.Total),
		})
	}
	t.Render()
	return nil
}

func (c *cli) renderExcess(ctx context.Context, account string, items []excess.Entry) error {
	return c.emit(items, "Excess of "+account, func(t table.Writer) {
		t.AppendHeader(table.Row{"Pool", "Asset", "Amount"})
		for _, e := range items {
			t.AppendRow(table.Row{e.PoolAddress, e.AssetID, c.amount(ctx, e.AssetID, e.Amount)})
		}
		if len(items) == 0 {
			t.AppendRow(table.Row{"-", "-", "none"})
		}
	})
}

type balance struct {
	AssetID uint64 `json:"asset_id"`
	Amount  uint64 `json:"amount"`
	OptedIn bool   `json:"opted_in"`
}

func (c *cli) renderBalances(ctx context.Context, account string, rows []balance) error {
	return c.emit(rows, "Balances of "+account, func(t table.Writer) {
		t.AppendHeader(table.Row{"Asset", "Amount"})
		for _, b := range rows {
			amount := c.amount(ctx, b.AssetID, b.Amount)
			if !b.OptedIn {
				amount = text.FgYellow.Sprint("not opted in")
			}
			t.AppendRow(table.Row{b.AssetID, amount})
		}
	})
}

func (c *cli) renderPlan(plan *engine.OptInPlan) error {
	return c.emit(plan, "Opt-ins for "+plan.Account, func(t table.Writer) {
		if plan.Empty() {
			t.AppendRow(table.Row{"nothing to opt into"})
			return
		}
		if plan.AppID != 0 {
			t.AppendRow(table.Row{"Application", plan.AppID})
		}
		for _, id := range plan.Assets {
			t.AppendRow(table.Row{"Asset", id})
		}
	})
}

// eventLine is the one-line form of a published execution.
func eventLine(ev *models.ExecutionEvent) string {
	line := fmt.Sprintf("%s %-16s %-9s pool=%s round=%d fees=%d",
		ev.Timestamp.Format("15:04:05"), ev.Operation, ev.Status, ev.Pool, ev.Round, ev.Fees)
	for _, x := range ev.Excess {
		line += fmt.Sprintf(" excess[%d]=%d", x.AssetID, x.Amount)
	}
	if ev.ErrorKind != "" {
		line += fmt.Sprintf(" error=%s %q", ev.ErrorKind, ev.ErrorMessage)
	}
	return line
}
