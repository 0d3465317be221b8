package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
)

// uintQuery parses an optional uint64 query parameter.
func uintQuery(c echo.Context, name string) (uint64, bool, error) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, true, err
	}
	return n, true, nil
}

func slippageQuery(c echo.Context) (*uint16, error) {
	v := strings.TrimSpace(c.QueryParam("slippage_bps"))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return nil, err
	}
	tmp := uint16(n)
	return &tmp, nil
}

// QuoteSwap quotes a swap. asset_out defaults to the other pool asset.
func (h *Handlers) QuoteSwap(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	assetIn, ok, err := uintQuery(c, "asset_in")
	if err != nil || !ok {
		return h.err(c, http.StatusBadRequest, "invalid asset_in", map[string]any{"asset_in": "required uint64"})
	}
	assetOut, ok, err := uintQuery(c, "asset_out")
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid asset_out", map[string]any{"asset_out": "must be uint64"})
	}
	if !ok {
		assetOut = pair.AssetA
		if assetIn == pair.AssetA {
			assetOut = pair.AssetB
		}
	}
	amount, ok, err := uintQuery(c, "amount")
	if err != nil || !ok {
		return h.err(c, http.StatusBadRequest, "invalid amount", map[string]any{"amount": "required uint64"})
	}
	mode := amm.SwapMode(strings.TrimSpace(c.QueryParam("mode")))
	if mode == "" {
		mode = amm.FixedInput
	}
	if mode != amm.FixedInput && mode != amm.FixedOutput {
		return h.err(c, http.StatusBadRequest, "invalid mode", map[string]any{"mode": "must be fixed-input or fixed-output"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	q, err := h.Engine.QuoteSwap(ctx, engine.SwapRequest{
		Pool:     pair,
		AssetIn:  assetIn,
		AssetOut: assetOut,
		Mode:     mode,
		Amount:   amount,
	})
	if err != nil {
		return h.engineErr(c, "swap quote failed", err)
	}
	p, err := h.Engine.PoolFor(pair)
	if err != nil {
		return h.engineErr(c, "swap quote failed", err)
	}
	return c.JSON(http.StatusOK, SwapQuoteResponse{Pool: p, Quote: q})
}

// QuoteAdd quotes adding liquidity. amount1 and amount2 follow the order of
// the assets in the path.
func (h *Handlers) QuoteAdd(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	amount1, _, err := uintQuery(c, "amount1")
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount1", map[string]any{"amount1": "must be uint64"})
	}
	amount2, _, err := uintQuery(c, "amount2")
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid amount2", map[string]any{"amount2": "must be uint64"})
	}
	mode := amm.AddMode(strings.TrimSpace(c.QueryParam("mode")))
	if mode == "" {
		mode = amm.AddFlexible
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	q, err := h.Engine.QuoteAddLiquidity(ctx, engine.AddLiquidityRequest{
		Pool:    pair,
		Mode:    mode,
		Amount1: amm.AssetAmount{AssetID: pair.AssetA, Amount: amount1},
		Amount2: amm.AssetAmount{AssetID: pair.AssetB, Amount: amount2},
	})
	if err != nil {
		return h.engineErr(c, "add liquidity quote failed", err)
	}
	p, err := h.Engine.PoolFor(pair)
	if err != nil {
		return h.engineErr(c, "add liquidity quote failed", err)
	}
	return c.JSON(http.StatusOK, AddQuoteResponse{Pool: p, Quote: q})
}

func (h *Handlers) QuoteRemove(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	tokens, ok, err := uintQuery(c, "pool_tokens")
	if err != nil || !ok {
		return h.err(c, http.StatusBadRequest, "invalid pool_tokens", map[string]any{"pool_tokens": "required uint64"})
	}
	output, _, err := uintQuery(c, "output_asset")
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid output_asset", map[string]any{"output_asset": "must be uint64"})
	}
	mode := amm.RemoveMode(strings.TrimSpace(c.QueryParam("mode")))
	if mode == "" {
		mode = amm.RemoveProportional
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	q, err := h.Engine.QuoteRemoveLiquidity(ctx, engine.RemoveLiquidityRequest{
		Pool:        pair,
		Mode:        mode,
		PoolTokens:  tokens,
		OutputAsset: output,
	})
	if err != nil {
		return h.engineErr(c, "remove liquidity quote failed", err)
	}
	p, err := h.Engine.PoolFor(pair)
	if err != nil {
		return h.engineErr(c, "remove liquidity quote failed", err)
	}
	return c.JSON(http.StatusOK, RemoveQuoteResponse{Pool: p, Quote: q})
}
