package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
	"github.com/aman-zulfiqar/amm-engine/internal/models"
)

func TestPairArgs(t *testing.T) {
	p, err := pairArgs([]string{"31566704", "0"})
	require.NoError(t, err)
	assert.Equal(t, engine.Pair{AssetA: 31566704, AssetB: 0}, p)

	_, err = pairArgs([]string{"1"})
	assert.Error(t, err)
	_, err = pairArgs([]string{"1", "usdc"})
	assert.ErrorContains(t, err, "usdc")
}

func TestAssetArgs(t *testing.T) {
	ids, err := assetArgs(nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, ids)

	ids, err = assetArgs([]string{"31566704", "0"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{31566704, 0}, ids)

	_, err = assetArgs([]string{"-1"})
	assert.ErrorContains(t, err, "-1")
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"pool", "quote", "swap", "add", "remove", "redeem", "bootstrap", "optin", "excess", "balance", "watch"} {
		assert.Contains(t, names, want)
	}

	quote, _, err := root.Find([]string{"quote", "swap"})
	require.NoError(t, err)
	assert.Equal(t, "swap", quote.Name())
}

func TestSwapCmd_ValidatesBeforeConnecting(t *testing.T) {
	out := &bytes.Buffer{}
	root := newRootCmd(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"swap", "31566704", "0", "--amount", "1"})

	err := root.Execute()
	assert.ErrorContains(t, err, "--in is required")
}

func TestRender_Tables(t *testing.T) {
	out := &bytes.Buffer{}
	c := &cli{out: out}

	require.NoError(t, c.renderSwapQuote(t.Context(), &amm.SwapQuote{
		Mode:        amm.FixedInput,
		AmountIn:    amm.AssetAmount{AssetID: 31566704, Amount: 10_000},
		AmountOut:   amm.AssetAmount{AssetID: 0, Amount: 9_871},
		SwapFee:     amm.AssetAmount{AssetID: 31566704, Amount: 30},
		PriceImpact: decimal.RequireFromString("0.0099"),
	}))
	s := strings.ToLower(out.String())
	// narrow tables must not wrap the title
	assert.Contains(t, s, "swap quote (fixed-input)")
	assert.Contains(t, strings.ToLower(strings.SplitN(out.String(), "\n", 2)[0]), "swap quote (fixed-input)")
	assert.Contains(t, s, "9871")
	assert.Contains(t, s, "0.99%")

	out.Reset()
	require.NoError(t, c.renderExecution(t.Context(), &engine.ExecutionResult{
		ExecutionID: "x1",
		Operation:   engine.OpSwap,
		State:       engine.StateConfirmed,
		TxIDs:       []string{"A", "B"},
		Fees:        4000,
		Outputs:     []engine.Output{{AssetID: 0, Quoted: 9871, Nominal: 9821, Excess: 50, Total: 9871}},
	}))
	s = strings.ToLower(out.String())
	assert.Contains(t, s, "swap x1")
	assert.Contains(t, s, "9821")
	assert.Contains(t, s, "excess")
}

func TestRender_Balances(t *testing.T) {
	out := &bytes.Buffer{}
	c := &cli{out: out}
	require.NoError(t, c.renderBalances(t.Context(), "ACC", []balance{
		{AssetID: 0, Amount: 5_000_000, OptedIn: true},
		{AssetID: 31566704, OptedIn: false},
	}))
	s := out.String()
	assert.Contains(t, strings.SplitN(s, "\n", 2)[0], "Balances of ACC")
	assert.Contains(t, s, "5000000")
	assert.Contains(t, s, "not opted in")

	out.Reset()
	c.jsonOut = true
	require.NoError(t, c.renderBalances(t.Context(), "ACC", []balance{{AssetID: 7, Amount: 3, OptedIn: true}}))
	assert.JSONEq(t, `[{"asset_id":7,"amount":3,"opted_in":true}]`, out.String())
}

func TestRender_JSON(t *testing.T) {
	out := &bytes.Buffer{}
	c := &cli{out: out, jsonOut: true}
	require.NoError(t, c.renderPlan(&engine.OptInPlan{Account: "ACC", AppID: 7}))
	assert.JSONEq(t, `{"account":"ACC","app_id":7}`, out.String())
}

func TestEventLine(t *testing.T) {
	line := eventLine(&models.ExecutionEvent{
		Timestamp: time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC),
		Operation: "swap",
		Status:    models.StatusFailed,
		Pool:      "POOL",
		Excess:    []models.AssetAmount{{AssetID: 0, Amount: 50}},
		ErrorKind: "SlippageTolerance",
	})
	assert.True(t, strings.HasPrefix(line, "12:30:00 swap"))
	assert.Contains(t, line, "excess[0]=50")
	assert.Contains(t, line, "error=SlippageTolerance")
}
