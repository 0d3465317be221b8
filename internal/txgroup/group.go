package txgroup

import (
	"bytes"
	"encoding/base64"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
)

// Role names a member's position in a protocol group. The order of roles is
// part of what the validator app checks.
type Role string

const (
	RoleFeeFunding      Role = "fee_funding"
	RoleAppCall         Role = "app_call"
	RoleAssetIn         Role = "asset_in"
	RoleAssetOut        Role = "asset_out"
	RoleAsset1In        Role = "asset1_in"
	RoleAsset2In        Role = "asset2_in"
	RoleAsset1Out       Role = "asset1_out"
	RoleAsset2Out       Role = "asset2_out"
	RolePoolTokenIn     Role = "pool_token_in"
	RolePoolTokenOut    Role = "pool_token_out"
	RolePoolTokenCreate Role = "pool_token_create"
	RoleAsset1OptIn     Role = "asset1_opt_in"
	RoleAsset2OptIn     Role = "asset2_opt_in"
	RoleAssetOptIn      Role = "asset_opt_in"
	RoleAppOptIn        Role = "app_opt_in"
)

// SignerRole is who authorizes a member.
type SignerRole int

const (
	SignerInitiator SignerRole = iota
	SignerProgram
)

func (s SignerRole) String() string {
	if s == SignerProgram {
		return "program"
	}
	return "initiator"
}

// Signer is the initiator's key.
type Signer interface {
	Address() types.Address
	SignTransaction(tx types.Transaction) ([]byte, error)
}

// ProgramAccount is the pool's logic-signature account.
type ProgramAccount interface {
	Address() types.Address
	Authorize(tx types.Transaction) ([]byte, error)
}

type Member struct {
	Role   Role              `json:"role"`
	Signer SignerRole        `json:"signer"`
	Txn    types.Transaction `json:"-"`
}

// Group is an ordered atomic transaction group.
type Group struct {
	ID        types.Digest
	Members   []Member
	Initiator types.Address
	Program   types.Address

	signed [][]byte
}

// Roles lists the member roles in order.
func (g *Group) Roles() []Role {
	out := make([]Role, len(g.Members))
	for i, m := range g.Members {
		out[i] = m.Role
	}
	return out
}

// IDString is the base64 group id.
func (g *Group) IDString() string {
	return base64.StdEncoding.EncodeToString(g.ID[:])
}

// TxIDs returns the id of every member in order.
func (g *Group) TxIDs() []string {
	out := make([]string, len(g.Members))
	for i, m := range g.Members {
		out[i] = crypto.GetTxID(m.Txn)
	}
	return out
}

// TotalFees is the sum of every member's declared fee.
func (g *Group) TotalFees() uint64 {
	var total uint64
	for _, m := range g.Members {
		total += uint64(m.Txn.Fee)
	}
	return total
}

// ProgramFees is the sum of fees of members the program account signs.
func (g *Group) ProgramFees() uint64 {
	var total uint64
	for _, m := range g.Members {
		if m.Signer == SignerProgram {
			total += uint64(m.Txn.Fee)
		}
	}
	return total
}

// ProgramSigned reports whether any member needs the program account.
func (g *Group) ProgramSigned() bool {
	for _, m := range g.Members {
		if m.Signer == SignerProgram {
			return true
		}
	}
	return false
}

// Member returns the first member with the given role.
func (g *Group) Member(role Role) (*Member, bool) {
	for i := range g.Members {
		if g.Members[i].Role == role {
			return &g.Members[i], true
		}
	}
	return nil, false
}

// Validate checks the structural invariants of a built group: one shared id
// matching the member set, a leading fee-funding payment that covers every
// program-signed fee, and signers limited to the initiator and the program.
func (g *Group) Validate() error {
	if len(g.Members) < 2 {
		return fmt.Errorf("group has %d members", len(g.Members))
	}

	txns := make([]types.Transaction, len(g.Members))
	for i, m := range g.Members {
		if m.Txn.Group != g.ID {
			return fmt.Errorf("member %d (%s) has a different group id", i, m.Role)
		}
		want := g.Initiator
		if m.Signer == SignerProgram {
			want = g.Program
		}
		if m.Txn.Sender != want {
			return fmt.Errorf("member %d (%s) sender is not the %s", i, m.Role, m.Signer)
		}
		tx := m.Txn
		tx.Group = types.Digest{}
		txns[i] = tx
	}

	gid, err := crypto.ComputeGroupID(txns)
	if err != nil {
		return fmt.Errorf("compute group id: %w", err)
	}
	if gid != g.ID {
		return fmt.Errorf("group id does not match members")
	}

	funding := g.Members[0]
	if funding.Role != RoleFeeFunding || funding.Txn.Type != types.PaymentTx {
		return fmt.Errorf("first member must be the fee-funding payment")
	}
	if funding.Txn.Receiver != g.Program {
		return fmt.Errorf("fee funding must pay the program account")
	}
	if uint64(funding.Txn.Amount) < g.ProgramFees() {
		return fmt.Errorf("fee funding %d does not cover program fees %d", funding.Txn.Amount, g.ProgramFees())
	}
	return nil
}

// Sign authorizes every member by its signer role.
func (g *Group) Sign(initiator Signer, program ProgramAccount) error {
	if initiator == nil || initiator.Address() != g.Initiator {
		return fmt.Errorf("initiator signer does not match group initiator")
	}
	if g.ProgramSigned() && (program == nil || program.Address() != g.Program) {
		return fmt.Errorf("program account does not match group program")
	}

	signed := make([][]byte, len(g.Members))
	for i, m := range g.Members {
		var (
			blob []byte
			err  error
		)
		switch m.Signer {
		case SignerProgram:
			blob, err = program.Authorize(m.Txn)
		default:
			blob, err = initiator.SignTransaction(m.Txn)
		}
		if err != nil {
			return fmt.Errorf("sign member %d (%s): %w", i, m.Role, err)
		}
		signed[i] = blob
	}
	g.signed = signed
	return nil
}

func (g *Group) Signed() bool { return len(g.signed) == len(g.Members) && len(g.signed) > 0 }

// Encode concatenates the signed members for submission.
func (g *Group) Encode() ([]byte, error) {
	if !g.Signed() {
		return nil, fmt.Errorf("group is not signed")
	}
	return bytes.Join(g.signed, nil), nil
}
