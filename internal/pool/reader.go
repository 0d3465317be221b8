package pool

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/sirupsen/logrus"
)

// DefaultTotalFeeShare is the v1 swap fee and the v2 fallback, in basis points.
const DefaultTotalFeeShare = 30

// Pool account local-state keys of the validator app.
const (
	keyAsset1ID      = "a1"
	keyAsset2ID      = "a2"
	keyReserve1      = "s1"
	keyReserve2      = "s2"
	keyIssued        = "ilt"
	keyTotalFeeShare = "total_fee_share"
	outstandingTag   = 'o'
)

// AccountReader is the slice of the ledger client the reader needs.
type AccountReader interface {
	AccountInformation(ctx context.Context, address string) (*algod.Account, error)
}

// State is a pool together with the reserves read in the same round.
type State struct {
	Pool        Pool              `json:"pool"`
	Reserves    ReserveSnapshot   `json:"reserves"`
	Outstanding map[uint64]uint64 `json:"outstanding"`
}

// Reader loads pool state from the pool account.
type Reader struct {
	client AccountReader
	logger *logrus.Logger
}

func NewReader(client AccountReader, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Reader{client: client, logger: logger}
}

// OutstandingKey is the pool state key tracking unredeemed excess of an asset.
func OutstandingKey(assetID uint64) string {
	b := make([]byte, 9)
	b[0] = outstandingTag
	binary.BigEndian.PutUint64(b[1:], assetID)
	return string(b)
}

// Read fills in status, pool token, fee share and reserves for p.
// p must carry the asset ids, address, validator app and version.
func (r *Reader) Read(ctx context.Context, p Pool) (*State, error) {
	acct, err := r.client.AccountInformation(ctx, p.Address)
	if err != nil {
		return nil, fmt.Errorf("read pool account: %w", err)
	}

	st := &State{Pool: p, Outstanding: map[uint64]uint64{}}
	st.Reserves.Round = acct.Round
	if st.Pool.TotalFeeShare == 0 {
		st.Pool.TotalFeeShare = DefaultTotalFeeShare
	}

	ls, ok := acct.LocalState(p.ValidatorAppID)
	if !ok {
		st.Pool.Status = StatusNotCreated
		return st, nil
	}
	if len(acct.CreatedAssets) == 0 {
		st.Pool.Status = StatusBootstrap
		return st, nil
	}
	st.Pool.PoolTokenID = acct.CreatedAssets[0].Index

	vals, err := ls.Uints()
	if err != nil {
		return nil, ammerr.Wrap(ammerr.KindCorruptedState, err, "undecodable pool state")
	}

	if a1, ok := vals[keyAsset1ID]; ok && a1 != p.Asset1ID {
		return nil, ammerr.New(ammerr.KindCorruptedState, "pool state asset1 %d, expected %d", a1, p.Asset1ID)
	}
	if a2, ok := vals[keyAsset2ID]; ok && a2 != p.Asset2ID {
		return nil, ammerr.New(ammerr.KindCorruptedState, "pool state asset2 %d, expected %d", a2, p.Asset2ID)
	}
	if fee, ok := vals[keyTotalFeeShare]; ok && p.Version == V2 {
		st.Pool.TotalFeeShare = fee
	}

	st.Reserves.Asset1 = vals[keyReserve1]
	st.Reserves.Asset2 = vals[keyReserve2]
	st.Reserves.IssuedPoolTokens = vals[keyIssued]
	for _, id := range []uint64{p.Asset1ID, p.Asset2ID, st.Pool.PoolTokenID} {
		if v := vals[OutstandingKey(id)]; v > 0 {
			st.Outstanding[id] = v
		}
	}

	if err := checkHoldings(acct, p.Asset1ID, st.Reserves.Asset1, st.Outstanding[p.Asset1ID]); err != nil {
		return nil, err
	}
	if err := checkHoldings(acct, p.Asset2ID, st.Reserves.Asset2, st.Outstanding[p.Asset2ID]); err != nil {
		return nil, err
	}

	st.Pool.Status = StatusReady

	r.logger.WithFields(logrus.Fields{
		"pool":   p.Address,
		"round":  st.Reserves.Round,
		"asset1": st.Reserves.Asset1,
		"asset2": st.Reserves.Asset2,
		"issued": st.Reserves.IssuedPoolTokens,
	}).Debug("pool state read")

	return st, nil
}

// checkHoldings rejects state whose recorded reserve and outstanding excess
// exceed what the pool account actually holds.
func checkHoldings(acct *algod.Account, assetID, reserve, outstanding uint64) error {
	held, ok := acct.Holding(assetID)
	if !ok {
		if reserve == 0 && outstanding == 0 {
			return nil
		}
		return ammerr.New(ammerr.KindCorruptedState, "pool does not hold asset %d", assetID)
	}
	need := reserve + outstanding
	if need < reserve || need > held {
		return ammerr.New(ammerr.KindCorruptedState,
			"asset %d: reserve %d + outstanding %d exceeds holdings %d", assetID, reserve, outstanding, held)
	}
	return nil
}
