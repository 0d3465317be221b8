package excess

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

const (
	appID = 62368684
	usdc  = 31566704
	algo  = 0
	user  = "USER"
)

// scriptedAccounts returns one account state per call, repeating the last.
// A non-nil errs[i] fails call i instead.
type scriptedAccounts struct {
	states []*algod.Account
	errs   []error
	calls  int
}

func (s *scriptedAccounts) AccountInformation(_ context.Context, _ string) (*algod.Account, error) {
	if s.calls < len(s.errs) && s.errs[s.calls] != nil {
		s.calls++
		return nil, s.errs[s.calls-1]
	}
	i := s.calls
	if i >= len(s.states) {
		i = len(s.states) - 1
	}
	s.calls++
	return s.states[i], nil
}

func excessKV(poolAddr types.Address, assetID, amount uint64) algod.TealKeyValue {
	return algod.TealKeyValue{
		Key:   base64.StdEncoding.EncodeToString(Key(poolAddr, assetID)),
		Value: algod.TealValue{Type: 2, Uint: amount},
	}
}

func account(round uint64, kvs ...algod.TealKeyValue) *algod.Account {
	return &algod.Account{
		Address:        user,
		Round:          round,
		AppsLocalState: []algod.LocalState{{ID: appID, KeyValue: kvs}},
	}
}

func testPool(addr types.Address) *pool.Pool {
	return &pool.Pool{Asset1ID: usdc, Asset2ID: algo, Address: addr.String(), ValidatorAppID: appID}
}

func TestKey_RoundTrip(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	k := Key(addr, usdc)
	require.Len(t, k, 41)
	assert.Equal(t, byte('e'), k[32])

	gotAddr, gotAsset, err := ParseKey(k)
	require.NoError(t, err)
	assert.Equal(t, addr, gotAddr)
	assert.Equal(t, uint64(usdc), gotAsset)

	_, _, err = ParseKey([]byte("s1"))
	assert.Error(t, err)

	bad := append([]byte(nil), k...)
	bad[32] = 'o'
	_, _, err = ParseKey(bad)
	assert.Error(t, err)
}

func TestDelta(t *testing.T) {
	before := Snapshot{Amounts: map[uint64]uint64{usdc: 100}}
	after := Snapshot{Amounts: map[uint64]uint64{usdc: 150}}

	assert.Equal(t, uint64(50), Delta(before, after, usdc))
	assert.Equal(t, uint64(0), Delta(after, after, usdc))
	assert.Equal(t, uint64(0), Delta(after, before, usdc))
	assert.Equal(t, uint64(0), Delta(before, after, algo))
}

func TestLedgerReader_Excess(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	other := crypto.GenerateAccount().Address
	accts := &scriptedAccounts{states: []*algod.Account{
		account(9, excessKV(addr, usdc, 100), excessKV(other, usdc, 7)),
	}}

	snap, err := NewLedgerReader(accts).Excess(context.Background(), user, testPool(addr), []uint64{usdc, algo})
	require.NoError(t, err)
	assert.Equal(t, uint64(9), snap.Round)
	assert.Equal(t, uint64(100), snap.Get(usdc))
	assert.Equal(t, uint64(0), snap.Get(algo))
}

func TestLedgerReader_NotOptedIn(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	accts := &scriptedAccounts{states: []*algod.Account{{Address: user, Round: 3}}}

	snap, err := NewLedgerReader(accts).Excess(context.Background(), user, testPool(addr), []uint64{usdc})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.Get(usdc))

	entries, err := NewLedgerReader(accts).List(context.Background(), user, appID)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLedgerReader_List(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	accts := &scriptedAccounts{states: []*algod.Account{
		account(9,
			excessKV(addr, usdc, 100),
			excessKV(addr, algo, 5),
			excessKV(addr, 10458941, 0),
			algod.TealKeyValue{Key: base64.StdEncoding.EncodeToString([]byte("s1")), Value: algod.TealValue{Type: 2, Uint: 4}},
		),
	}}

	entries, err := NewLedgerReader(accts).List(context.Background(), user, appID)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{PoolAddress: addr.String(), AssetID: algo, Amount: 5},
		{PoolAddress: addr.String(), AssetID: usdc, Amount: 100},
	}, entries)
}

func TestReconciler_Track(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	accts := &scriptedAccounts{states: []*algod.Account{
		account(10, excessKV(addr, usdc, 100)),
		account(12, excessKV(addr, usdc, 150), excessKV(addr, algo, 3)),
	}}
	r := NewReconciler(NewLedgerReader(accts), nil)

	ran := false
	gained, err := r.Track(context.Background(), user, testPool(addr), []uint64{usdc, algo}, func(ctx context.Context) error {
		assert.Equal(t, 1, accts.calls, "before-read must precede the operation")
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, accts.calls)
	assert.Equal(t, map[uint64]uint64{usdc: 50, algo: 3}, gained)

	// no intervening operation
	gained, err = r.Track(context.Background(), user, testPool(addr), []uint64{usdc}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gained[usdc])
}

func TestReconciler_ClampsDrain(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	accts := &scriptedAccounts{states: []*algod.Account{
		account(10, excessKV(addr, usdc, 150)),
		account(11),
	}}
	gained, err := NewReconciler(NewLedgerReader(accts), nil).Track(context.Background(), user, testPool(addr),
		[]uint64{usdc}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint64(0), gained[usdc])
}

func TestReconciler_OperationFails(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	accts := &scriptedAccounts{states: []*algod.Account{account(10)}}
	boom := errors.New("boom")

	_, err := NewReconciler(NewLedgerReader(accts), nil).Track(context.Background(), user, testPool(addr),
		[]uint64{usdc}, func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, accts.calls)
}

func TestReconciler_AfterReadFails(t *testing.T) {
	addr := crypto.GenerateAccount().Address
	unavailable := &algod.APIError{Status: 503, Message: "service unavailable"}
	accts := &scriptedAccounts{
		states: []*algod.Account{account(10)},
		errs:   []error{nil, unavailable},
	}

	ran := false
	_, err := NewReconciler(NewLedgerReader(accts), nil).Track(context.Background(), user, testPool(addr),
		[]uint64{usdc}, func(ctx context.Context) error { ran = true; return nil })
	assert.True(t, ran)
	assert.ErrorIs(t, err, ErrAfterRead)
	assert.ErrorIs(t, err, unavailable)
	assert.Equal(t, 2, accts.calls)
}
