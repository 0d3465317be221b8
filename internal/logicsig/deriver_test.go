package logicsig

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// version 4, intcblock of three placeholders, pushint 1
var templateCode = []byte{0x04, 0x20, 0x03, 0x00, 0x00, 0x00, 0x81, 0x01}

func ascJSON(vars string) []byte {
	return []byte(fmt.Sprintf(`{
  "repo": "https://github.com/tinymanorg/tinyman-contracts-v1",
  "contracts": {
    "pool_logicsig": {
      "type": "logicsig",
      "logic": {
        "bytecode": %q,
        "variables": %s
      }
    }
  }
}`, base64.StdEncoding.EncodeToString(templateCode), vars))
}

const poolVars = `[
  {"name": "TMPL_VALIDATOR_APP_ID", "type": "int", "index": 5, "length": 1},
  {"name": "TMPL_ASSET_ID_1", "type": "int", "index": 3, "length": 1},
  {"name": "TMPL_ASSET_ID_2", "type": "int", "index": 4, "length": 1}
]`

func expectedProgram(a1, a2, app uint64) []byte {
	out := []byte{0x04, 0x20, 0x03}
	out = binary.AppendUvarint(out, a1)
	out = binary.AppendUvarint(out, a2)
	out = binary.AppendUvarint(out, app)
	return append(out, 0x81, 0x01)
}

func TestParseTemplate_SortsVariables(t *testing.T) {
	tmpl, err := ParseTemplate(ascJSON(poolVars))
	require.NoError(t, err)
	require.Len(t, tmpl.Variables, 3)
	assert.Equal(t, VarAsset1ID, tmpl.Variables[0].Name)
	assert.Equal(t, VarValidatorAppID, tmpl.Variables[2].Name)
}

func TestParseTemplate_Errors(t *testing.T) {
	_, err := ParseTemplate([]byte(`{"contracts": {}}`))
	assert.Error(t, err)

	_, err = ParseTemplate([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseTemplate(ascJSON(`[{"name": "TMPL_ASSET_ID_1", "type": "int", "index": 7, "length": 4}]`))
	assert.Error(t, err)

	_, err = ParseTemplate(ascJSON(`[
	  {"name": "TMPL_ASSET_ID_1", "type": "int", "index": 3, "length": 2},
	  {"name": "TMPL_ASSET_ID_2", "type": "int", "index": 4, "length": 1}
	]`))
	assert.Error(t, err)
}

func TestDeriver_Derive(t *testing.T) {
	tmpl, err := ParseTemplate(ascJSON(poolVars))
	require.NoError(t, err)
	d, err := NewDeriver(tmpl, 0)
	require.NoError(t, err)

	acct, err := d.Derive(0, 31566704, 62368684)
	require.NoError(t, err)

	prog := expectedProgram(31566704, 0, 62368684)
	lsa := crypto.LogicSigAccount{Lsig: types.LogicSig{Logic: prog}}
	want, err := lsa.Address()
	require.NoError(t, err)
	assert.Equal(t, want, acct.Address())
	assert.Equal(t, prog, acct.(*Account).Program())

	swapped, err := d.Derive(31566704, 0, 62368684)
	require.NoError(t, err)
	assert.Equal(t, acct.Address(), swapped.Address())
	assert.Same(t, acct, swapped)

	other, err := d.Derive(31566704, 0, 552635992)
	require.NoError(t, err)
	assert.NotEqual(t, acct.Address(), other.Address())

	_, err = d.Derive(5, 5, 62368684)
	assert.Error(t, err)
}

func TestDeriver_MissingVariable(t *testing.T) {
	tmpl, err := ParseTemplate(ascJSON(`[{"name": "TMPL_FEE", "type": "int", "index": 3, "length": 1}]`))
	require.NoError(t, err)
	d, err := NewDeriver(tmpl, 4)
	require.NoError(t, err)
	_, err = d.Derive(1, 2, 3)
	assert.Error(t, err)
}

func TestAccount_Authorize(t *testing.T) {
	acct, err := NewAccount(expectedProgram(10, 0, 1))
	require.NoError(t, err)

	sp := types.SuggestedParams{
		Fee:             1000,
		FlatFee:         true,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     make([]byte, 32),
		FirstRoundValid: 1,
		LastRoundValid:  1001,
	}
	user := crypto.GenerateAccount()

	tx, err := transaction.MakeAssetTransferTxn(acct.Address().String(), user.Address.String(), 5, nil, sp, "", 10)
	require.NoError(t, err)
	blob, err := acct.Authorize(tx)
	require.NoError(t, err)

	var stx types.SignedTxn
	require.NoError(t, msgpack.Decode(blob, &stx))
	assert.Equal(t, acct.Program(), stx.Lsig.Logic)
	assert.Equal(t, acct.Address(), stx.Txn.Sender)

	foreign, err := transaction.MakePaymentTxn(user.Address.String(), acct.Address().String(), 5, nil, "", sp)
	require.NoError(t, err)
	_, err = acct.Authorize(foreign)
	assert.Error(t, err)
}
