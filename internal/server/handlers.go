package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/engine"
	"github.com/aman-zulfiqar/amm-engine/internal/excess"
	"github.com/aman-zulfiqar/amm-engine/internal/flags"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// Engine is the part of engine.Engine the API serves.
type Engine interface {
	ValidatorAppID() uint64
	Protocol() engine.Protocol
	PoolFor(pair engine.Pair) (pool.Pool, error)
	FetchPool(ctx context.Context, pair engine.Pair) (*pool.State, error)
	QuoteSwap(ctx context.Context, req engine.SwapRequest) (*amm.SwapQuote, error)
	QuoteAddLiquidity(ctx context.Context, req engine.AddLiquidityRequest) (*amm.AddLiquidityQuote, error)
	QuoteRemoveLiquidity(ctx context.Context, req engine.RemoveLiquidityRequest) (*amm.RemoveLiquidityQuote, error)
	ExcessAmounts(ctx context.Context, account string) ([]excess.Entry, error)
	RequiredOptIns(ctx context.Context, account string, pair engine.Pair) (*engine.OptInPlan, error)
}

// FlagStore is the flag and halt surface of flags.Store.
type FlagStore interface {
	Upsert(ctx context.Context, key string, value bool, reason string) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
	HaltPool(ctx context.Context, poolAddress, reason string) (*flags.Halt, error)
	ResumePool(ctx context.Context, poolAddress string) error
	Halt(ctx context.Context, poolAddress string) (*flags.Halt, error)
	Halts(ctx context.Context) ([]*flags.Halt, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Engine  Engine
	Flags   FlagStore // nil without Redis; flag routes answer 503
	CanSign bool
	DevMode bool
	Logger  *logrus.Logger
}

// err returns a standardized JSON error response
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

// engineErr reports an engine failure with its kind. Validation messages
// are safe to show; anything else is only detailed in dev mode.
func (h *Handlers) engineErr(c echo.Context, msg string, err error) error {
	code := statusFor(err)
	resp := ErrorResponse{Error: msg, Code: code}
	var e *ammerr.Error
	if errors.As(err, &e) {
		resp.Kind = string(e.Kind)
		if code < http.StatusInternalServerError {
			resp.Error = e.Error()
		}
	}
	if h.DevMode {
		resp.Details = map[string]any{"err": err.Error()}
	}
	if code >= http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("path", c.Path()).Warn(msg)
	}
	return c.JSON(code, resp)
}

// withTimeout creates a context with timeout, defaulting to 10 seconds if duration <= 0
func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		OK:             true,
		Version:        string(h.Engine.Protocol().Version()),
		ValidatorAppID: h.Engine.ValidatorAppID(),
		CanSign:        h.CanSign,
	})
}

// Pool returns a pool's status, reserves and outstanding excess totals.
func (h *Handlers) Pool(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	st, err := h.Engine.FetchPool(ctx, pair)
	if err != nil {
		return h.engineErr(c, "failed to read pool", err)
	}
	resp := PoolResponse{State: st}
	if h.Flags != nil {
		halt, err := h.Flags.Halt(ctx, st.Pool.Address)
		if err != nil {
			h.Logger.WithError(err).Warn("halt lookup failed")
		}
		resp.Halted = halt != nil
		resp.Halt = halt
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) HaltPool(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	var req HaltRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return h.err(c, http.StatusBadRequest, "invalid json", nil)
		}
	}
	p, err := h.Engine.PoolFor(pair)
	if err != nil {
		return h.engineErr(c, "failed to derive pool", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.HaltPool(ctx, p.Address, req.Reason)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to halt pool", map[string]any{"err": err.Error()})
	}
	h.Logger.WithFields(logrus.Fields{"pool": p.Address, "reason": req.Reason}).Warn("pool halted")
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) ResumePool(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}
	p, err := h.Engine.PoolFor(pair)
	if err != nil {
		return h.engineErr(c, "failed to derive pool", err)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.ResumePool(ctx, p.Address); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to resume pool", nil)
	}
	h.Logger.WithField("pool", p.Address).Info("pool resumed")
	return c.NoContent(http.StatusNoContent)
}

// Halts lists every halted pool, newest first.
func (h *Handlers) Halts(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.Halts(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list halts", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

// Excess lists an account's unredeemed excess across all pools.
func (h *Handlers) Excess(c echo.Context) error {
	account := c.Param("address")

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Engine.ExcessAmounts(ctx, account)
	if err != nil {
		return h.engineErr(c, "failed to read excess", err)
	}
	if items == nil {
		items = []excess.Entry{}
	}
	return c.JSON(http.StatusOK, ExcessResponse{Account: account, Items: items})
}

func (h *Handlers) OptIns(c echo.Context) error {
	pair, err := pairParam(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, err.Error(), nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	plan, err := h.Engine.RequiredOptIns(ctx, c.Param("address"), pair)
	if err != nil {
		return h.engineErr(c, "failed to check opt-ins", err)
	}
	return c.JSON(http.StatusOK, plan)
}

func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value, req.Reason)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value, req.Reason)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusServiceUnavailable, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

func pairParam(c echo.Context) (engine.Pair, error) {
	a, err := strconv.ParseUint(c.Param("asset1"), 10, 64)
	if err != nil {
		return engine.Pair{}, errors.New("invalid asset1")
	}
	b, err := strconv.ParseUint(c.Param("asset2"), 10, 64)
	if err != nil {
		return engine.Pair{}, errors.New("invalid asset2")
	}
	return engine.Pair{AssetA: a, AssetB: b}, nil
}
