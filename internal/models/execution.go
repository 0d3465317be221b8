package models

import "time"

// Execution statuses
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

type AssetAmount struct {
	AssetID uint64 `json:"asset_id"`
	Amount  uint64 `json:"amount"`
}

// ExecutionEvent is the published and persisted record of one pool operation.
type ExecutionEvent struct {
	ExecutionID string        `json:"execution_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Operation   string        `json:"operation"`
	Status      string        `json:"status"`
	Pool        string        `json:"pool"`
	Asset1ID    uint64        `json:"asset1_id"`
	Asset2ID    uint64        `json:"asset2_id"`
	Initiator   string        `json:"initiator"`
	Round       uint64        `json:"round,omitempty"`
	GroupID     string        `json:"group_id,omitempty"`
	TxIDs       []string      `json:"tx_ids,omitempty"`
	Fees        uint64        `json:"fees"`
	Inputs      []AssetAmount `json:"inputs,omitempty"`
	Outputs     []AssetAmount `json:"outputs,omitempty"`
	Excess      []AssetAmount `json:"excess,omitempty"`
	// ExcessUnknown marks a confirmed execution whose excess was not read.
	ExcessUnknown bool   `json:"excess_unknown,omitempty"`
	ErrorKind     string `json:"error_kind,omitempty"`
	ErrorMessage  string `json:"error_message,omitempty"`
}
