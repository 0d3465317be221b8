package txgroup

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/aman-zulfiqar/amm-engine/internal/amm"
	"github.com/aman-zulfiqar/amm-engine/internal/ammerr"
	"github.com/aman-zulfiqar/amm-engine/internal/pool"
)

// Minimum balance the program account needs to hold a bootstrapped pool.
const (
	BootstrapFundingAlgoPair  = 860_000
	BootstrapFundingAssetPair = 961_000
)

const (
	defaultMinFee     = 1000
	poolTokenUnitName = "TMPOOL"
	poolTokenDecimals = 6
	poolTokenURL      = "https://tinyman.org"
	maxAssetNameLen   = 32
)

// Builder assembles protocol-shaped groups for one pool. Every member pays
// the flat minimum fee.
type Builder struct {
	params    types.SuggestedParams
	pool      *pool.Pool
	program   types.Address
	initiator types.Address
}

func NewBuilder(params types.SuggestedParams, p *pool.Pool, program, initiator types.Address) (*Builder, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	if program.IsZero() || initiator.IsZero() {
		return nil, fmt.Errorf("program and initiator addresses are required")
	}
	if program.String() != p.Address {
		return nil, fmt.Errorf("program address %s does not match pool %s", program, p.Address)
	}

	fee := params.MinFee
	if uint64(params.Fee) > fee {
		fee = uint64(params.Fee)
	}
	if fee == 0 {
		fee = defaultMinFee
	}
	params.Fee = types.MicroAlgos(fee)
	params.FlatFee = true

	return &Builder{params: params, pool: p, program: program, initiator: initiator}, nil
}

// Swap: [fee funding, app call, asset in, asset out].
func (b *Builder) Swap(args [][]byte, in, out amm.AssetAmount) (*Group, error) {
	if err := b.pool.CheckPair(in.AssetID, out.AssetID); err != nil {
		return nil, err
	}
	return b.build(0,
		b.appCall(args, false),
		b.transfer(RoleAssetIn, SignerInitiator, in),
		b.transfer(RoleAssetOut, SignerProgram, out),
	)
}

// AddLiquidity: [fee funding, app call, asset1 in, asset2 in, pool token out].
func (b *Builder) AddLiquidity(args [][]byte, amount1, amount2, poolTokens amm.AssetAmount) (*Group, error) {
	if err := b.checkSides(amount1, amount2); err != nil {
		return nil, err
	}
	if err := b.checkPoolToken(poolTokens); err != nil {
		return nil, err
	}
	return b.build(0,
		b.appCall(args, false),
		b.transfer(RoleAsset1In, SignerInitiator, amount1),
		b.transfer(RoleAsset2In, SignerInitiator, amount2),
		b.transfer(RolePoolTokenOut, SignerProgram, poolTokens),
	)
}

// AddSingle: [fee funding, app call, asset in, pool token out].
func (b *Builder) AddSingle(args [][]byte, in, poolTokens amm.AssetAmount) (*Group, error) {
	if !b.pool.Has(in.AssetID) {
		return nil, mismatch(in.AssetID, b.pool)
	}
	if err := b.checkPoolToken(poolTokens); err != nil {
		return nil, err
	}
	return b.build(0,
		b.appCall(args, false),
		b.transfer(RoleAssetIn, SignerInitiator, in),
		b.transfer(RolePoolTokenOut, SignerProgram, poolTokens),
	)
}

// RemoveLiquidity: [fee funding, app call, asset1 out, asset2 out, pool token in].
func (b *Builder) RemoveLiquidity(args [][]byte, poolTokens, out1, out2 amm.AssetAmount) (*Group, error) {
	if err := b.checkSides(out1, out2); err != nil {
		return nil, err
	}
	if err := b.checkPoolToken(poolTokens); err != nil {
		return nil, err
	}
	return b.build(0,
		b.appCall(args, false),
		b.transfer(RoleAsset1Out, SignerProgram, out1),
		b.transfer(RoleAsset2Out, SignerProgram, out2),
		b.transfer(RolePoolTokenIn, SignerInitiator, poolTokens),
	)
}

// RemoveSingle: [fee funding, app call, asset out, pool token in].
func (b *Builder) RemoveSingle(args [][]byte, poolTokens, out amm.AssetAmount) (*Group, error) {
	if !b.pool.Has(out.AssetID) {
		return nil, mismatch(out.AssetID, b.pool)
	}
	if err := b.checkPoolToken(poolTokens); err != nil {
		return nil, err
	}
	return b.build(0,
		b.appCall(args, false),
		b.transfer(RoleAssetOut, SignerProgram, out),
		b.transfer(RolePoolTokenIn, SignerInitiator, poolTokens),
	)
}

// Redeem: [fee funding, app call, asset out]. The asset may be either pool
// asset or the pool token.
func (b *Builder) Redeem(args [][]byte, out amm.AssetAmount) (*Group, error) {
	if !b.pool.Has(out.AssetID) && (b.pool.PoolTokenID == 0 || out.AssetID != b.pool.PoolTokenID) {
		return nil, mismatch(out.AssetID, b.pool)
	}
	return b.build(0,
		b.appCall(args, false),
		b.transfer(RoleAssetOut, SignerProgram, out),
	)
}

// Bootstrap: [fee funding, app opt-in, pool token create, asset1 opt-in,
// asset2 opt-in]. The last member is omitted for ALGO pairs.
func (b *Builder) Bootstrap(args [][]byte, poolTokenName string) (*Group, error) {
	funding := uint64(BootstrapFundingAlgoPair)
	steps := []step{
		b.appCall(args, true),
		b.createPoolToken(poolTokenName),
		b.optIn(RoleAsset1OptIn, b.pool.Asset1ID),
	}
	if b.pool.Asset2ID != 0 {
		funding = BootstrapFundingAssetPair
		steps = append(steps, b.optIn(RoleAsset2OptIn, b.pool.Asset2ID))
	}
	return b.build(funding, steps...)
}

// AssetArgs encodes asset ids the way the validator app reads them.
func AssetArgs(ids ...uint64) [][]byte {
	out := make([][]byte, len(ids))
	for i, id := range ids {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, id)
		out[i] = b
	}
	return out
}

type step struct {
	role   Role
	signer SignerRole
	make   func() (types.Transaction, error)
}

// build prepends the fee-funding payment and assigns the group id. The
// funding covers every program-signed fee and never less than minFunding.
func (b *Builder) build(minFunding uint64, steps ...step) (*Group, error) {
	members := make([]Member, 0, len(steps)+1)
	members = append(members, Member{Role: RoleFeeFunding, Signer: SignerInitiator})

	var programFees uint64
	for _, s := range steps {
		tx, err := s.make()
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", s.role, err)
		}
		if s.signer == SignerProgram {
			programFees += uint64(tx.Fee)
		}
		members = append(members, Member{Role: s.role, Signer: s.signer, Txn: tx})
	}

	funding := programFees
	if minFunding > funding {
		funding = minFunding
	}
	pay, err := transaction.MakePaymentTxn(b.initiator.String(), b.program.String(), funding, nil, "", b.params)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", RoleFeeFunding, err)
	}
	members[0].Txn = pay

	txns := make([]types.Transaction, len(members))
	for i, m := range members {
		txns[i] = m.Txn
	}
	gid, err := crypto.ComputeGroupID(txns)
	if err != nil {
		return nil, fmt.Errorf("compute group id: %w", err)
	}
	for i := range members {
		members[i].Txn.Group = gid
	}

	return &Group{ID: gid, Members: members, Initiator: b.initiator, Program: b.program}, nil
}

func (b *Builder) appCall(args [][]byte, optIn bool) step {
	return step{role: RoleAppCall, signer: SignerProgram, make: func() (types.Transaction, error) {
		accounts := []string{b.initiator.String()}
		if optIn {
			return transaction.MakeApplicationOptInTx(b.pool.ValidatorAppID, args, nil, nil, b.foreignAssets(false),
				b.params, b.program, nil, types.Digest{}, [32]byte{}, types.Address{})
		}
		return transaction.MakeApplicationNoOpTx(b.pool.ValidatorAppID, args, accounts, nil, b.foreignAssets(true),
			b.params, b.program, nil, types.Digest{}, [32]byte{}, types.Address{})
	}}
}

func (b *Builder) foreignAssets(withPoolToken bool) []uint64 {
	out := []uint64{b.pool.Asset1ID}
	if b.pool.Asset2ID != 0 {
		out = append(out, b.pool.Asset2ID)
	}
	if withPoolToken && b.pool.PoolTokenID != 0 {
		out = append(out, b.pool.PoolTokenID)
	}
	return out
}

// transfer moves amount between the initiator and the program. The signer
// decides the direction.
func (b *Builder) transfer(role Role, signer SignerRole, a amm.AssetAmount) step {
	from, to := b.initiator, b.program
	if signer == SignerProgram {
		from, to = b.program, b.initiator
	}
	return step{role: role, signer: signer, make: func() (types.Transaction, error) {
		if a.AssetID == 0 {
			return transaction.MakePaymentTxn(from.String(), to.String(), a.Amount, nil, "", b.params)
		}
		return transaction.MakeAssetTransferTxn(from.String(), to.String(), a.Amount, nil, b.params, "", a.AssetID)
	}}
}

func (b *Builder) optIn(role Role, assetID uint64) step {
	return step{role: role, signer: SignerProgram, make: func() (types.Transaction, error) {
		return transaction.MakeAssetAcceptanceTxn(b.program.String(), nil, b.params, assetID)
	}}
}

func (b *Builder) createPoolToken(name string) step {
	if len(name) > maxAssetNameLen {
		name = name[:maxAssetNameLen]
	}
	return step{role: RolePoolTokenCreate, signer: SignerProgram, make: func() (types.Transaction, error) {
		return transaction.MakeAssetCreateTxn(b.program.String(), nil, b.params, math.MaxUint64, poolTokenDecimals,
			false, "", b.program.String(), "", "", poolTokenUnitName, name, poolTokenURL, "")
	}}
}

func (b *Builder) checkSides(a1, a2 amm.AssetAmount) error {
	if a1.AssetID != b.pool.Asset1ID || a2.AssetID != b.pool.Asset2ID {
		return ammerr.New(ammerr.KindAssetMismatch, "pair %d/%d does not match pool %d/%d",
			a1.AssetID, a2.AssetID, b.pool.Asset1ID, b.pool.Asset2ID)
	}
	return nil
}

func (b *Builder) checkPoolToken(a amm.AssetAmount) error {
	if b.pool.PoolTokenID == 0 {
		return ammerr.New(ammerr.KindPoolNotReady, "pool has no pool token")
	}
	if a.AssetID != b.pool.PoolTokenID {
		return ammerr.New(ammerr.KindAssetMismatch, "asset %d is not the pool token %d", a.AssetID, b.pool.PoolTokenID)
	}
	return nil
}

func mismatch(assetID uint64, p *pool.Pool) error {
	return ammerr.New(ammerr.KindAssetMismatch, "asset %d is not in pool %d/%d", assetID, p.Asset1ID, p.Asset2ID)
}
