package excess

import (
	"context"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

const (
	tag    = 'e'
	keyLen = 32 + 1 + 8
)

// Entry is one unredeemed excess balance of an account in a pool.
type Entry struct {
	PoolAddress string `json:"pool_address"`
	AssetID     uint64 `json:"asset_id"`
	Amount      uint64 `json:"amount"`
}

// Snapshot is a read of an account's excess in one pool.
type Snapshot struct {
	Round   uint64            `json:"round"`
	Amounts map[uint64]uint64 `json:"amounts"`
}

// Get returns the excess of an asset, zero when absent.
func (s Snapshot) Get(assetID uint64) uint64 {
	return s.Amounts[assetID]
}

// Key is the local-state key holding an account's excess of assetID in the
// pool at poolAddr.
func Key(poolAddr types.Address, assetID uint64) []byte {
	k := make([]byte, keyLen)
	copy(k, poolAddr[:])
	k[32] = tag
	binary.BigEndian.PutUint64(k[33:], assetID)
	return k
}

func ParseKey(key []byte) (types.Address, uint64, error) {
	var addr types.Address
	if len(key) != keyLen || key[32] != tag {
		return addr, 0, fmt.Errorf("not an excess key: %x", key)
	}
	copy(addr[:], key[:32])
	return addr, binary.BigEndian.Uint64(key[33:]), nil
}

// Delta is the excess of assetID gained between two snapshots. A drop, for
// example from a concurrent redeem, counts as zero.
func Delta(before, after Snapshot, assetID uint64) uint64 {
	b, a := before.Get(assetID), after.Get(assetID)
	if a < b {
		return 0
	}
	return a - b
}

// Reader reads excess snapshots.
type Reader interface {
	Excess(ctx context.Context, account string, p *pool.Pool, assetIDs []uint64) (Snapshot, error)
}

type AccountReader interface {
	AccountInformation(ctx context.Context, address string) (*algod.Account, error)
}

// LedgerReader reads excess from the account's local state of the validator app.
type LedgerReader struct {
	client AccountReader
}

func NewLedgerReader(client AccountReader) *LedgerReader {
	return &LedgerReader{client: client}
}

func (r *LedgerReader) Excess(ctx context.Context, account string, p *pool.Pool, assetIDs []uint64) (Snapshot, error) {
	addr, err := types.DecodeAddress(p.Address)
	if err != nil {
		return Snapshot{}, fmt.Errorf("pool address: %w", err)
	}
	acct, err := r.client.AccountInformation(ctx, account)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read account excess: %w", err)
	}

	snap := Snapshot{Round: acct.Round, Amounts: make(map[uint64]uint64, len(assetIDs))}
	ls, ok := acct.LocalState(p.ValidatorAppID)
	if !ok {
		return snap, nil
	}
	vals, err := ls.Uints()
	if err != nil {
		return Snapshot{}, err
	}
	for _, id := range assetIDs {
		if v, ok := vals[string(Key(addr, id))]; ok {
			snap.Amounts[id] = v
		}
	}
	return snap, nil
}

// List returns every non-zero excess entry of account under a validator
// app, ordered by pool address then asset id.
func (r *LedgerReader) List(ctx context.Context, account string, appID uint64) ([]Entry, error) {
	acct, err := r.client.AccountInformation(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("read account excess: %w", err)
	}
	ls, ok := acct.LocalState(appID)
	if !ok {
		return nil, nil
	}
	vals, err := ls.Uints()
	if err != nil {
		return nil, err
	}

	var out []Entry
	for k, v := range vals {
		addr, assetID, err := ParseKey([]byte(k))
		if err != nil || v == 0 {
			continue
		}
		out = append(out, Entry{PoolAddress: addr.String(), AssetID: assetID, Amount: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PoolAddress != out[j].PoolAddress {
			return out[i].PoolAddress < out[j].PoolAddress
		}
		return out[i].AssetID < out[j].AssetID
	})
	return out, nil
}
