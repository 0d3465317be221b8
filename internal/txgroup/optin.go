package txgroup

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// MaxGroupSize is the ledger's limit on atomic group members.
const MaxGroupSize = 16

// OptIns builds an initiator-only group opting into the validator app (when
// appID is non-zero) and into each asset. ALGO needs no opt-in and is skipped.
func OptIns(params types.SuggestedParams, initiator types.Address, appID uint64, assetIDs []uint64) (*Group, error) {
	if initiator.IsZero() {
		return nil, fmt.Errorf("initiator address is required")
	}
	if params.MinFee > uint64(params.Fee) {
		params.Fee = types.MicroAlgos(params.MinFee)
	}
	if params.Fee == 0 {
		params.Fee = defaultMinFee
	}
	params.FlatFee = true

	var members []Member
	if appID != 0 {
		tx, err := transaction.MakeApplicationOptInTx(appID, nil, nil, nil, nil,
			params, initiator, nil, types.Digest{}, [32]byte{}, types.Address{})
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", RoleAppOptIn, err)
		}
		members = append(members, Member{Role: RoleAppOptIn, Signer: SignerInitiator, Txn: tx})
	}
	for _, id := range assetIDs {
		if id == 0 {
			continue
		}
		tx, err := transaction.MakeAssetAcceptanceTxn(initiator.String(), nil, params, id)
		if err != nil {
			return nil, fmt.Errorf("build %s %d: %w", RoleAssetOptIn, id, err)
		}
		members = append(members, Member{Role: RoleAssetOptIn, Signer: SignerInitiator, Txn: tx})
	}

	switch {
	case len(members) == 0:
		return nil, fmt.Errorf("nothing to opt into")
	case len(members) > MaxGroupSize:
		return nil, fmt.Errorf("%d opt-ins exceed the group limit of %d", len(members), MaxGroupSize)
	}

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
	return &Group{ID: gid, Members: members, Initiator: initiator}, nil
}
