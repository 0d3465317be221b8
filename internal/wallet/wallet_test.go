package wallet

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
)

func TestNewWallet_KeyFormats(t *testing.T) {
	acct := crypto.GenerateAccount()

	words, err := mnemonic.FromPrivateKey(acct.PrivateKey)
	require.NoError(t, err)

	ints := make([]int, len(acct.PrivateKey))
	for i, b := range acct.PrivateKey {
		ints[i] = int(b)
	}
	jsonKey, err := json.Marshal(ints)
	require.NoError(t, err)

	for name, key := range map[string]string{
		"mnemonic": "  " + words + "\n",
		"base58":   base58.Encode(acct.PrivateKey),
		"json":     string(jsonKey),
	} {
		t.Run(name, func(t *testing.T) {
			w, err := NewWallet(WalletConfig{PrivateKey: key})
			require.NoError(t, err)
			assert.Equal(t, acct.Address, w.Address())
			assert.Equal(t, acct.Address.String(), w.String())
		})
	}
}

func TestNewWallet_Invalid(t *testing.T) {
	acct := crypto.GenerateAccount()
	tampered := append([]byte(nil), acct.PrivateKey...)
	tampered[40] ^= 0xff

	for name, key := range map[string]string{
		"empty":      "  ",
		"short":      base58.Encode([]byte{1, 2, 3}),
		"not base58": "0OIl",
		"bad json":   "[1, 2,",
		"json range": "[300]",
		"mismatch":   base58.Encode(tampered),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewWallet(WalletConfig{PrivateKey: key})
			assert.Error(t, err)
		})
	}
}

func TestWallet_SignTransaction(t *testing.T) {
	acct := crypto.GenerateAccount()
	w, err := NewWallet(WalletConfig{PrivateKey: base58.Encode(acct.PrivateKey)})
	require.NoError(t, err)

	sp := types.SuggestedParams{
		Fee:             1000,
		FlatFee:         true,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: 1,
		LastRoundValid:  1001,
	}
	tx, err := transaction.MakePaymentTxn(acct.Address.String(), acct.Address.String(), 0, nil, "", sp)
	require.NoError(t, err)

	blob, err := w.SignTransaction(tx)
	require.NoError(t, err)
	var stx types.SignedTxn
	require.NoError(t, msgpack.Decode(blob, &stx))
	assert.NotEqual(t, types.Signature{}, stx.Sig)

	other := crypto.GenerateAccount()
	foreign, err := transaction.MakePaymentTxn(other.Address.String(), acct.Address.String(), 0, nil, "", sp)
	require.NoError(t, err)
	_, err = w.SignTransaction(foreign)
	assert.Error(t, err)
}

type staticAccount struct{ acct *algod.Account }

func (s staticAccount) AccountInformation(context.Context, string) (*algod.Account, error) {
	return s.acct, nil
}

func TestWallet_Balance(t *testing.T) {
	acct := crypto.GenerateAccount()
	w, err := NewWallet(WalletConfig{PrivateKey: base58.Encode(acct.PrivateKey)})
	require.NoError(t, err)

	client := staticAccount{acct: &algod.Account{
		Amount: 5_000_000,
		Assets: []algod.AssetHolding{{AssetID: 31566704, Amount: 42}},
	}}

	amount, ok, err := w.Balance(context.Background(), client, 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(5_000_000), amount)

	amount, ok, err = w.Balance(context.Background(), client, 31566704)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), amount)

	_, ok, err = w.Balance(context.Background(), client, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
