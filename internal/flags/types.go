package flags

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("flag not found")

// Flag is a boolean operator switch.
type Flag struct {
	Key       string    `json:"key"`
	Value     bool      `json:"value"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Halt stops the engine from building groups for one pool until it is
// resumed.
type Halt struct {
	Pool     string    `json:"pool"`
	Reason   string    `json:"reason,omitempty"`
	HaltedAt time.Time `json:"halted_at"`
}
