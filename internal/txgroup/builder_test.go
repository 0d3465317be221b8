package txgroup

import (
	"bytes"
	"errors"
	"testing"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

const (
	usdc     = 31566704
	algo     = 0
	goBTC    = 386192725
	poolTok  = 552635992
	appIndex = 62368684
)

type testSigner struct{ acct crypto.Account }

func (s testSigner) Address() types.Address { return s.acct.Address }

func (s testSigner) SignTransaction(tx types.Transaction) ([]byte, error) {
	_, blob, err := crypto.SignTransaction(s.acct.PrivateKey, tx)
	return blob, err
}

type testProgram struct {
	lsa  crypto.LogicSigAccount
	addr types.Address
}

func newTestProgram(t *testing.T) testProgram {
	// #pragma version 4; int 1
	lsa := crypto.LogicSigAccount{Lsig: types.LogicSig{Logic: []byte{0x04, 0x81, 0x01}}}
	addr, err := lsa.Address()
	require.NoError(t, err)
	return testProgram{lsa: lsa, addr: addr}
}

func (p testProgram) Address() types.Address { return p.addr }

func (p testProgram) Authorize(tx types.Transaction) ([]byte, error) {
	_, blob, err := crypto.SignLogicSigAccountTransaction(p.lsa, tx)
	return blob, err
}

func testParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             0,
		GenesisID:       "testnet-v1.0",
		GenesisHash:     bytes.Repeat([]byte{7}, 32),
		FirstRoundValid: 100,
		LastRoundValid:  1100,
		MinFee:          1000,
	}
}

type fixture struct {
	pool      *pool.Pool
	initiator testSigner
	program   testProgram
	builder   *Builder
}

func newFixture(t *testing.T, asset2 uint64, poolToken uint64) fixture {
	program := newTestProgram(t)
	p := &pool.Pool{
		Asset1ID:       usdc,
		Asset2ID:       asset2,
		PoolTokenID:    poolToken,
		Address:        program.addr.String(),
		ValidatorAppID: appIndex,
		Status:         pool.StatusReady,
	}
	initiator := testSigner{acct: crypto.GenerateAccount()}
	b, err := NewBuilder(testParams(), p, program.addr, initiator.Address())
	require.NoError(t, err)
	return fixture{pool: p, initiator: initiator, program: program, builder: b}
}

func fundingAmount(g *Group) uint64 { return uint64(g.Members[0].Txn.Amount) }

func TestBuilder_SwapShape(t *testing.T) {
	f := newFixture(t, algo, poolTok)

	g, err := f.builder.Swap([][]byte{[]byte("swap"), []byte("fi")},
		amm.AssetAmount{AssetID: algo, Amount: 10_000},
		amm.AssetAmount{AssetID: usdc, Amount: 9_772})
	require.NoError(t, err)

	assert.Equal(t, []Role{RoleFeeFunding, RoleAppCall, RoleAssetIn, RoleAssetOut}, g.Roles())
	assert.Equal(t, uint64(2_000), fundingAmount(g))
	assert.Equal(t, uint64(4_000), g.TotalFees())
	require.NoError(t, g.Validate())

	in, ok := g.Member(RoleAssetIn)
	require.True(t, ok)
	assert.Equal(t, types.PaymentTx, in.Txn.Type)
	assert.Equal(t, f.initiator.Address(), in.Txn.Sender)
	assert.Equal(t, f.program.addr, in.Txn.Receiver)

	out, ok := g.Member(RoleAssetOut)
	require.True(t, ok)
	assert.Equal(t, types.AssetTransferTx, out.Txn.Type)
	assert.Equal(t, types.AssetIndex(usdc), out.Txn.XferAsset)
	assert.Equal(t, uint64(9_772), out.Txn.AssetAmount)
	assert.Equal(t, SignerProgram, out.Signer)

	call, _ := g.Member(RoleAppCall)
	assert.Equal(t, types.AppIndex(appIndex), call.Txn.ApplicationID)
	assert.Equal(t, []byte("fi"), call.Txn.ApplicationArgs[1])
	assert.Equal(t, []types.Address{f.initiator.Address()}, call.Txn.Accounts)

	for _, m := range g.Members {
		assert.Equal(t, g.ID, m.Txn.Group)
		assert.Equal(t, types.MicroAlgos(1_000), m.Txn.Fee)
	}
}

func TestBuilder_SwapAssetMismatch(t *testing.T) {
	f := newFixture(t, algo, poolTok)
	_, err := f.builder.Swap(nil,
		amm.AssetAmount{AssetID: goBTC, Amount: 1},
		amm.AssetAmount{AssetID: usdc, Amount: 1})
	assert.True(t, errors.Is(err, ammerr.ErrAssetMismatch))
}

func TestBuilder_LiquidityShapes(t *testing.T) {
	f := newFixture(t, goBTC, poolTok)
	a1 := amm.AssetAmount{AssetID: usdc, Amount: 100}
	a2 := amm.AssetAmount{AssetID: goBTC, Amount: 200}
	pt := amm.AssetAmount{AssetID: poolTok, Amount: 50}

	tests := []struct {
		name    string
		build   func() (*Group, error)
		roles   []Role
		funding uint64
	}{
		{
			name:    "add",
			build:   func() (*Group, error) { return f.builder.AddLiquidity(nil, a1, a2, pt) },
			roles:   []Role{RoleFeeFunding, RoleAppCall, RoleAsset1In, RoleAsset2In, RolePoolTokenOut},
			funding: 2_000,
		},
		{
			name:    "add single",
			build:   func() (*Group, error) { return f.builder.AddSingle(nil, a2, pt) },
			roles:   []Role{RoleFeeFunding, RoleAppCall, RoleAssetIn, RolePoolTokenOut},
			funding: 2_000,
		},
		{
			name:    "remove",
			build:   func() (*Group, error) { return f.builder.RemoveLiquidity(nil, pt, a1, a2) },
			roles:   []Role{RoleFeeFunding, RoleAppCall, RoleAsset1Out, RoleAsset2Out, RolePoolTokenIn},
			funding: 3_000,
		},
		{
			name:    "remove single",
			build:   func() (*Group, error) { return f.builder.RemoveSingle(nil, pt, a1) },
			roles:   []Role{RoleFeeFunding, RoleAppCall, RoleAssetOut, RolePoolTokenIn},
			funding: 2_000,
		},
		{
			name:    "redeem",
			build:   func() (*Group, error) { return f.builder.Redeem(nil, pt) },
			roles:   []Role{RoleFeeFunding, RoleAppCall, RoleAssetOut},
			funding: 2_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := tt.build()
			require.NoError(t, err)
			assert.Equal(t, tt.roles, g.Roles())
			assert.Equal(t, tt.funding, fundingAmount(g))
			assert.NoError(t, g.Validate())
		})
	}
}

func TestBuilder_LiquidityMismatch(t *testing.T) {
	f := newFixture(t, goBTC, poolTok)
	a1 := amm.AssetAmount{AssetID: usdc, Amount: 100}
	a2 := amm.AssetAmount{AssetID: goBTC, Amount: 200}

	_, err := f.builder.AddLiquidity(nil, a2, a1, amm.AssetAmount{AssetID: poolTok, Amount: 1})
	assert.True(t, errors.Is(err, ammerr.ErrAssetMismatch))

	_, err = f.builder.AddLiquidity(nil, a1, a2, amm.AssetAmount{AssetID: 1, Amount: 1})
	assert.True(t, errors.Is(err, ammerr.ErrAssetMismatch))

	_, err = f.builder.Redeem(nil, amm.AssetAmount{AssetID: 1, Amount: 1})
	assert.True(t, errors.Is(err, ammerr.ErrAssetMismatch))

	noToken := newFixture(t, goBTC, 0)
	_, err = noToken.builder.AddLiquidity(nil, a1, a2, amm.AssetAmount{AssetID: 0, Amount: 1})
	assert.True(t, errors.Is(err, ammerr.ErrPoolNotReady))
}

func TestBuilder_Bootstrap(t *testing.T) {
	f := newFixture(t, algo, 0)
	g, err := f.builder.Bootstrap(append([][]byte{[]byte("bootstrap")}, AssetArgs(usdc, algo)...), "TinymanPool1.1 USDC-ALGO")
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleFeeFunding, RoleAppCall, RolePoolTokenCreate, RoleAsset1OptIn}, g.Roles())
	assert.Equal(t, uint64(BootstrapFundingAlgoPair), fundingAmount(g))
	require.NoError(t, g.Validate())

	call, _ := g.Member(RoleAppCall)
	assert.Equal(t, types.OptInOC, call.Txn.OnCompletion)

	create, _ := g.Member(RolePoolTokenCreate)
	assert.Equal(t, "TMPOOL", create.Txn.AssetParams.UnitName)

	f = newFixture(t, goBTC, 0)
	g, err = f.builder.Bootstrap(nil, "TinymanPool1.1 USDC-goBTC")
	require.NoError(t, err)
	assert.Len(t, g.Members, 5)
	assert.Equal(t, uint64(BootstrapFundingAssetPair), fundingAmount(g))
}

func TestGroup_SignAndEncode(t *testing.T) {
	f := newFixture(t, algo, poolTok)
	g, err := f.builder.Swap(nil,
		amm.AssetAmount{AssetID: usdc, Amount: 10},
		amm.AssetAmount{AssetID: algo, Amount: 9})
	require.NoError(t, err)

	_, err = g.Encode()
	assert.Error(t, err)

	require.NoError(t, g.Sign(f.initiator, f.program))
	blob, err := g.Encode()
	require.NoError(t, err)

	dec := msgpack.NewDecoder(bytes.NewReader(blob))
	for i, m := range g.Members {
		var stx types.SignedTxn
		require.NoError(t, dec.Decode(&stx), "member %d", i)
		if m.Signer == SignerProgram {
			assert.Equal(t, f.program.lsa.Lsig.Logic, stx.Lsig.Logic)
		} else {
			assert.NotEqual(t, types.Signature{}, stx.Sig)
		}
		assert.Equal(t, g.ID, stx.Txn.Group)
	}

	assert.Len(t, g.TxIDs(), 4)
	assert.NotEmpty(t, g.IDString())
}

func TestGroup_SignRejectsWrongKeys(t *testing.T) {
	f := newFixture(t, algo, poolTok)
	g, err := f.builder.Redeem(nil, amm.AssetAmount{AssetID: usdc, Amount: 1})
	require.NoError(t, err)

	other := testSigner{acct: crypto.GenerateAccount()}
	assert.Error(t, g.Sign(other, f.program))
	assert.False(t, g.Signed())
}

func TestGroup_ValidateDetectsReorder(t *testing.T) {
	f := newFixture(t, algo, poolTok)
	g, err := f.builder.Swap(nil,
		amm.AssetAmount{AssetID: usdc, Amount: 10},
		amm.AssetAmount{AssetID: algo, Amount: 9})
	require.NoError(t, err)

	g.Members[2], g.Members[3] = g.Members[3], g.Members[2]
	assert.Error(t, g.Validate())
}

func TestOptIns(t *testing.T) {
	initiator := testSigner{acct: crypto.GenerateAccount()}

	g, err := OptIns(testParams(), initiator.Address(), 148607000, []uint64{0, 31566704, 10458941})
	require.NoError(t, err)
	assert.Equal(t, []Role{RoleAppOptIn, RoleAssetOptIn, RoleAssetOptIn}, g.Roles())
	assert.False(t, g.ProgramSigned())
	assert.Equal(t, uint64(3000), g.TotalFees())
	for _, m := range g.Members {
		assert.Equal(t, g.ID, m.Txn.Group)
		assert.Equal(t, initiator.Address(), m.Txn.Sender)
	}

	require.NoError(t, g.Sign(initiator, nil))
	blob, err := g.Encode()
	require.NoError(t, err)
	assert.NotEmpty(t, blob)

	_, err = OptIns(testParams(), initiator.Address(), 0, []uint64{0})
	assert.Error(t, err)
}
