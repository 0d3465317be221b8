package server

import (
	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/excess"
	"github.com/aman-zulfiqar/amm-engine/internal/flags"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Kind    string `json:"kind,omitempty"`    // Engine error kind, when there is one
	Details any    `json:"details,omitempty"` // Additional error details (dev mode only)
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK             bool   `json:"ok"`
	Version        string `json:"version"`
	ValidatorAppID uint64 `json:"validator_app_id"`
	CanSign        bool   `json:"can_sign"`
}

// PoolResponse is a pool with its reserves and halt record.
type PoolResponse struct {
	*pool.State
	Halted bool        `json:"halted"`
	Halt   *flags.Halt `json:"halt,omitempty"`
}

type SwapQuoteResponse struct {
	Pool  pool.Pool      `json:"pool"`
	Quote *amm.SwapQuote `json:"quote"`
}

type AddQuoteResponse struct {
	Pool  pool.Pool              `json:"pool"`
	Quote *amm.AddLiquidityQuote `json:"quote"`
}

type RemoveQuoteResponse struct {
	Pool  pool.Pool                 `json:"pool"`
	Quote *amm.RemoveLiquidityQuote `json:"quote"`
}

type ExcessResponse struct {
	Account string         `json:"account"`
	Items   []excess.Entry `json:"items"`
}

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key    string `json:"key"`
	Value  bool   `json:"value"`
	Reason string `json:"reason"`
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value  bool   `json:"value"`
	Reason string `json:"reason"`
}

type HaltRequest struct {
	Reason string `json:"reason"`
}
