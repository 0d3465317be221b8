package algod

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

// validityWindow is the number of rounds a built transaction stays valid.
const validityWindow = 1000

// APIError is a non-2xx algod response
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("algod: status %d: %s", e.Status, e.Message)
}

// TransactionParams is the response of /v2/transactions/params
type TransactionParams struct {
	ConsensusVersion string `json:"consensus-version"`
	Fee              uint64 `json:"fee"`
	GenesisHash      []byte `json:"genesis-hash"`
	GenesisID        string `json:"genesis-id"`
	LastRound        uint64 `json:"last-round"`
	MinFee           uint64 `json:"min-fee"`
}

// Suggested converts the node parameters into flat-fee builder parameters:
// every transaction pays exactly the minimum fee.
func (p *TransactionParams) Suggested() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:              types.MicroAlgos(p.MinFee),
		GenesisID:        p.GenesisID,
		GenesisHash:      p.GenesisHash,
		FirstRoundValid:  types.Round(p.LastRound),
		LastRoundValid:   types.Round(p.LastRound + validityWindow),
		ConsensusVersion: p.ConsensusVersion,
		FlatFee:          true,
		MinFee:           p.MinFee,
	}
}

// Account is the response of /v2/accounts/{address}
type Account struct {
	Address        string         `json:"address"`
	Amount         uint64         `json:"amount"`
	MinBalance     uint64         `json:"min-balance"`
	Round          uint64         `json:"round"`
	Assets         []AssetHolding `json:"assets"`
	CreatedAssets  []CreatedAsset `json:"created-assets"`
	AppsLocalState []LocalState   `json:"apps-local-state"`
}

type AssetHolding struct {
	AssetID  uint64 `json:"asset-id"`
	Amount   uint64 `json:"amount"`
	IsFrozen bool   `json:"is-frozen"`
}

type CreatedAsset struct {
	Index  uint64      `json:"index"`
	Params AssetParams `json:"params"`
}

type AssetParams struct {
	Creator  string `json:"creator"`
	Decimals uint32 `json:"decimals"`
	Name     string `json:"name"`
	UnitName string `json:"unit-name"`
	Total    uint64 `json:"total"`
	URL      string `json:"url"`
}

// Asset is the response of /v2/assets/{id}
type Asset struct {
	Index  uint64      `json:"index"`
	Params AssetParams `json:"params"`
}

type LocalState struct {
	ID       uint64         `json:"id"`
	KeyValue []TealKeyValue `json:"key-value"`
}

type TealKeyValue struct {
	Key   string    `json:"key"` // base64
	Value TealValue `json:"value"`
}

// TealValue type 1 is bytes, type 2 is uint.
type TealValue struct {
	Type  uint64 `json:"type"`
	Bytes string `json:"bytes"`
	Uint  uint64 `json:"uint"`
}

// PendingTransaction is the response of /v2/transactions/pending/{txid}
type PendingTransaction struct {
	ConfirmedRound uint64          `json:"confirmed-round"`
	PoolError      string          `json:"pool-error"`
	Txn            json.RawMessage `json:"txn"`
}

// LocalState returns the account's local state for an application.
func (a *Account) LocalState(appID uint64) (*LocalState, bool) {
	for i := range a.AppsLocalState {
		if a.AppsLocalState[i].ID == appID {
			return &a.AppsLocalState[i], true
		}
	}
	return nil, false
}

// Holding returns the account balance of an asset; asset 0 is the native balance.
func (a *Account) Holding(assetID uint64) (uint64, bool) {
	if assetID == 0 {
		return a.Amount, true
	}
	for _, h := range a.Assets {
		if h.AssetID == assetID {
			return h.Amount, true
		}
	}
	return 0, false
}

// OptedIn reports whether the account holds (or is the native) asset.
func (a *Account) OptedIn(assetID uint64) bool {
	_, ok := a.Holding(assetID)
	return ok
}

// Uints decodes the integer entries of a local state, keyed by raw key bytes.
func (s *LocalState) Uints() (map[string]uint64, error) {
	out := make(map[string]uint64, len(s.KeyValue))
	for _, kv := range s.KeyValue {
		if kv.Value.Type != 2 {
			continue
		}
		key, err := base64.StdEncoding.DecodeString(kv.Key)
		if err != nil {
			return nil, fmt.Errorf("decode state key %q: %w", kv.Key, err)
		}
		out[string(key)] = kv.Value.Uint
	}
	return out, nil
}
