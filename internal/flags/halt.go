package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// HaltPool records a halt for a pool address. Halting a halted pool replaces
// the reason and time.
func (s *Store) HaltPool(ctx context.Context, poolAddress, reason string) (*Halt, error) {
	if _, err := types.DecodeAddress(poolAddress); err != nil {
		return nil, fmt.Errorf("halt pool: %w", err)
	}
	h := &Halt{Pool: poolAddress, Reason: reason, HaltedAt: s.now()}
	if err := s.put(ctx, haltsHash, poolAddress, h); err != nil {
		return nil, fmt.Errorf("halt pool: %w", err)
	}
	return h, nil
}

func (s *Store) ResumePool(ctx context.Context, poolAddress string) error {
	if err := s.client.HDel(ctx, haltsHash, poolAddress).Err(); err != nil {
		return fmt.Errorf("resume pool: %w", err)
	}
	return nil
}

// Halt returns a pool's halt record, or nil when the pool is not halted.
func (s *Store) Halt(ctx context.Context, poolAddress string) (*Halt, error) {
	var h Halt
	err := s.get(ctx, haltsHash, poolAddress, &h)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// PoolHalted reports whether a pool is halted.
func (s *Store) PoolHalted(ctx context.Context, poolAddress string) (bool, error) {
	ok, err := s.client.HExists(ctx, haltsHash, poolAddress).Result()
	if err != nil {
		return false, fmt.Errorf("read halt: %w", err)
	}
	return ok, nil
}

// Halts lists every halted pool, most recent first.
func (s *Store) Halts(ctx context.Context) ([]*Halt, error) {
	raw, err := s.client.HGetAll(ctx, haltsHash).Result()
	if err != nil {
		return nil, fmt.Errorf("list halts: %w", err)
	}
	out := make([]*Halt, 0, len(raw))
	for _, v := range raw {
		var h Halt
		if json.Unmarshal([]byte(v), &h) == nil {
			out = append(out, &h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].HaltedAt.Equal(out[j].HaltedAt) {
			return out[i].HaltedAt.After(out[j].HaltedAt)
		}
		return out[i].Pool < out[j].Pool
	})
	return out, nil
}
