package logicsig

import (
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aman-zulfiqar/amm-engine/internal/pool"
	"github.com/aman-zulfiqar/amm-engine/internal/txgroup"
)

// DefaultCacheSize bounds the number of derived accounts kept in memory.
const DefaultCacheSize = 1024

type pairKey struct {
	asset1, asset2, appID uint64
}

// Deriver computes the pool program account of an asset pair. Derived
// accounts are memoized since they depend only on the inputs.
type Deriver struct {
	tmpl    *Template
	derived *lru.Cache[pairKey, *Account]
}

func NewDeriver(tmpl *Template, cacheSize int) (*Deriver, error) {
	if tmpl == nil {
		return nil, fmt.Errorf("template is nil")
	}
	if cacheSize <= 0 {
		cacheSize = DefaultCacheSize
	}
	derived, err := lru.New[pairKey, *Account](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create derived cache: %w", err)
	}
	return &Deriver{tmpl: tmpl, derived: derived}, nil
}

// Derive returns the program account for (asset1, asset2) under a validator
// app. The pair may be passed in any order.
func (d *Deriver) Derive(asset1, asset2, appID uint64) (txgroup.ProgramAccount, error) {
	if asset1 == asset2 {
		return nil, fmt.Errorf("pool assets must differ, got %d twice", asset1)
	}
	a1, a2 := pool.OrderAssets(asset1, asset2)
	key := pairKey{asset1: a1, asset2: a2, appID: appID}
	if acct, ok := d.derived.Get(key); ok {
		return acct, nil
	}

	prog, err := d.tmpl.Program(map[string]any{
		VarAsset1ID:       a1,
		VarAsset2ID:       a2,
		VarValidatorAppID: appID,
	})
	if err != nil {
		return nil, fmt.Errorf("substitute pool program: %w", err)
	}
	acct, err := NewAccount(prog)
	if err != nil {
		return nil, err
	}
	d.derived.Add(key, acct)
	return acct, nil
}

// Account is a logic-signature account without delegation.
type Account struct {
	lsa  crypto.LogicSigAccount
	addr types.Address
}

func NewAccount(program []byte) (*Account, error) {
	lsa := crypto.LogicSigAccount{Lsig: types.LogicSig{Logic: program}}
	addr, err := lsa.Address()
	if err != nil {
		return nil, fmt.Errorf("program address: %w", err)
	}
	return &Account{lsa: lsa, addr: addr}, nil
}

func (a *Account) Address() types.Address { return a.addr }

func (a *Account) Program() []byte { return a.lsa.Lsig.Logic }

// Authorize attaches the program to tx. tx must be sent by the account.
func (a *Account) Authorize(tx types.Transaction) ([]byte, error) {
	if tx.Sender != a.addr {
		return nil, fmt.Errorf("sender %s is not program account %s", tx.Sender, a.addr)
	}
	_, blob, err := crypto.SignLogicSigAccountTransaction(a.lsa, tx)
	if err != nil {
		return nil, fmt.Errorf("authorize with program: %w", err)
	}
	return blob, nil
}
