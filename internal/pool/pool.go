package pool

import (
	"fmt"

	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
)

// Status of a pool's on-chain lifecycle.
type Status string

const (
	StatusNotCreated Status = "NOT_CREATED"
	StatusBootstrap  Status = "BOOTSTRAP"
	StatusReady      Status = "READY"
	StatusError      Status = "ERROR"
)

// Version is the contract generation a pool was deployed with.
type Version string

const (
	V1 Version = "v1"
	V2 Version = "v2"
)

// Pool identifies an AMM pair. Asset1ID is always the numerically greater id.
type Pool struct {
	Asset1ID       uint64  `json:"asset1_id"`
	Asset2ID       uint64  `json:"asset2_id"`
	PoolTokenID    uint64  `json:"pool_token_id"`
	Address        string  `json:"address"`
	ValidatorAppID uint64  `json:"validator_app_id"`
	TotalFeeShare  uint64  `json:"total_fee_share"` // basis points
	Status         Status  `json:"status"`
	Version        Version `json:"version"`
}

// ReserveSnapshot is a point-in-time read of pool reserves.
type ReserveSnapshot struct {
	Round            uint64 `json:"round"`
	Asset1           uint64 `json:"asset1"`
	Asset2           uint64 `json:"asset2"`
	IssuedPoolTokens uint64 `json:"issued_pool_tokens"`
}

// OrderAssets returns the pair in pool order (greater id first).
func OrderAssets(a, b uint64) (uint64, uint64) {
	if a > b {
		return a, b
	}
	return b, a
}

func (p *Pool) Ready() error {
	if p.Status != StatusReady {
		return ammerr.New(ammerr.KindPoolNotReady, "pool %d/%d is %s", p.Asset1ID, p.Asset2ID, p.Status)
	}
	return nil
}

// Has reports whether assetID is one side of the pair.
func (p *Pool) Has(assetID uint64) bool {
	return assetID == p.Asset1ID || assetID == p.Asset2ID
}

// Other returns the opposite side of the pair.
func (p *Pool) Other(assetID uint64) (uint64, error) {
	switch assetID {
	case p.Asset1ID:
		return p.Asset2ID, nil
	case p.Asset2ID:
		return p.Asset1ID, nil
	}
	return 0, ammerr.New(ammerr.KindAssetMismatch, "asset %d is not in pool %d/%d", assetID, p.Asset1ID, p.Asset2ID)
}

// CheckPair fails with AssetMismatch unless (in, out) are the two assets of the pool.
func (p *Pool) CheckPair(in, out uint64) error {
	if in == out || !p.Has(in) || !p.Has(out) {
		return ammerr.New(ammerr.KindAssetMismatch, "pair %d/%d does not match pool %d/%d", in, out, p.Asset1ID, p.Asset2ID)
	}
	return nil
}

// Reserve returns the snapshot reserve of one side.
func (s ReserveSnapshot) Reserve(p *Pool, assetID uint64) (uint64, error) {
	switch assetID {
	case p.Asset1ID:
		return s.Asset1, nil
	case p.Asset2ID:
		return s.Asset2, nil
	}
	return 0, ammerr.New(ammerr.KindAssetMismatch, "asset %d is not in pool %d/%d", assetID, p.Asset1ID, p.Asset2ID)
}

func (p *Pool) String() string {
	return fmt.Sprintf("%s pool %d/%d (%s)", p.Version, p.Asset1ID, p.Asset2ID, p.Address)
}
