package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/constants"
)

// RiskConfig bounds what the engine will submit.
type RiskConfig struct {
	// Price impact limit, applied to swaps and to the internal swap of
	// flexible and single-asset liquidity operations. Zero disables it.
	MaxPriceImpactBps uint16

	// Slippage constraints
	DefaultSlippageBps uint16 // used when a request carries none
	MaxSlippageBps     uint16
}

// DefaultRiskConfig returns conservative risk settings
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		MaxPriceImpactBps:  constants.DefaultMaxImpactBps,
		DefaultSlippageBps: constants.DefaultSlippageBps,
		MaxSlippageBps:     500,
	}
}

// HaltChecker reports operator halts of a pool.
type HaltChecker interface {
	PoolHalted(ctx context.Context, address string) (bool, error)
}

// RiskCheckResult explains a guard decision.
type RiskCheckResult struct {
	Allowed            bool            `json:"allowed"`
	Reason             string          `json:"reason,omitempty"`
	SlippageBps        uint16          `json:"slippage_bps"`
	PriceImpact        decimal.Decimal `json:"price_impact"`
	PriceImpactTooHigh bool            `json:"price_impact_too_high,omitempty"`
	Halted             bool            `json:"halted,omitempty"`
}

// RiskManager enforces risk limits
type RiskManager struct {
	config RiskConfig
	halts  HaltChecker
}

// NewRiskManager creates a risk manager. halts may be nil.
func NewRiskManager(config RiskConfig, halts HaltChecker) *RiskManager {
	return &RiskManager{config: config, halts: halts}
}

func (rm *RiskManager) Config() RiskConfig { return rm.config }

// Slippage resolves a request's slippage against the default and the cap.
func (rm *RiskManager) Slippage(requested *uint16) (decimal.Decimal, uint16, error) {
	bps := rm.config.DefaultSlippageBps
	if requested != nil {
		bps = *requested
	}
	if bps > constants.MaxSlippageBps {
		return decimal.Zero, bps, ammerr.New(ammerr.KindInvalidSlippage, "slippage %d bps must be between 0 and %d", bps, constants.MaxSlippageBps)
	}
	if rm.config.MaxSlippageBps > 0 && bps > rm.config.MaxSlippageBps {
		return decimal.Zero, bps, ammerr.New(ammerr.KindInvalidSlippage, "slippage %d bps exceeds max %d bps", bps, rm.config.MaxSlippageBps)
	}
	return amm.SlippageFromBps(uint64(bps)), bps, nil
}

// Check runs the pre-submission guard for one operation on a pool.
func (rm *RiskManager) Check(ctx context.Context, poolAddress string, slippageBps uint16, impact decimal.Decimal) (*RiskCheckResult, error) {
	result := &RiskCheckResult{Allowed: true, SlippageBps: slippageBps, PriceImpact: impact}

	// 1. Operator halt
	if rm.halts != nil {
		halted, err := rm.halts.PoolHalted(ctx, poolAddress)
		if err != nil {
			return nil, fmt.Errorf("read halt flag: %w", err)
		}
		if halted {
			result.Allowed = false
			result.Halted = true
			result.Reason = fmt.Sprintf("pool %s is halted", poolAddress)
			return result, nil
		}
	}

	// 2. Price impact
	if rm.config.MaxPriceImpactBps > 0 {
		limit := amm.SlippageFromBps(uint64(rm.config.MaxPriceImpactBps))
		if impact.GreaterThan(limit) {
			result.Allowed = false
			result.PriceImpactTooHigh = true
			result.Reason = fmt.Sprintf("price impact %s%% exceeds max %s%%",
				impact.Shift(2).StringFixed(2), limit.Shift(2).StringFixed(2))
			return result, nil
		}
	}

	// 3. Slippage cap
	if rm.config.MaxSlippageBps > 0 && slippageBps > rm.config.MaxSlippageBps {
		result.Allowed = false
		result.Reason = fmt.Sprintf("slippage %d bps exceeds max %d bps", slippageBps, rm.config.MaxSlippageBps)
		return result, nil
	}

	return result, nil
}

// Err converts a rejected check into an engine error.
func (r *RiskCheckResult) Err() error {
	switch {
	case r.Allowed:
		return nil
	case r.Halted:
		return ammerr.New(ammerr.KindPoolNotReady, "%s", r.Reason)
	case r.PriceImpactTooHigh:
		return ammerr.New(ammerr.KindPriceImpact, "%s", r.Reason)
	}
	return ammerr.New(ammerr.KindInvalidSlippage, "%s", r.Reason)
}
