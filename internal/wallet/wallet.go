package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/mnemonic"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/mr-tron/base58"

	"github.com/aman-zulfiqar/amm-engine/internal/algod"
)

type WalletConfig struct {
	// 25-word mnemonic, base58-encoded 64-byte key, or JSON byte array
	PrivateKey string
}

// AccountReader is used for balance lookups.
type AccountReader interface {
	AccountInformation(ctx context.Context, address string) (*algod.Account, error)
}

// Wallet holds the initiator key and signs its transactions.
type Wallet struct {
	priv ed25519.PrivateKey
	addr types.Address
}

func NewWallet(cfg WalletConfig) (*Wallet, error) {
	if strings.TrimSpace(cfg.PrivateKey) == "" {
		return nil, fmt.Errorf("wallet: PrivateKey is required")
	}

	priv, err := parsePrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	var addr types.Address
	copy(addr[:], priv.Public().(ed25519.PublicKey))
	return &Wallet{priv: priv, addr: addr}, nil
}

func (w *Wallet) Address() types.Address { return w.addr }
func (w *Wallet) String() string         { return w.addr.String() }

// SignTransaction returns the msgpack-encoded signed transaction.
func (w *Wallet) SignTransaction(tx types.Transaction) ([]byte, error) {
	if tx.Sender != w.addr {
		return nil, fmt.Errorf("wallet: sender %s is not %s", tx.Sender, w.addr)
	}
	_, blob, err := crypto.SignTransaction(w.priv, tx)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign: %w", err)
	}
	return blob, nil
}

// Balance returns the wallet's holding of an asset; asset 0 is ALGO.
// The second result is false when the wallet is not opted in.
func (w *Wallet) Balance(ctx context.Context, client AccountReader, assetID uint64) (uint64, bool, error) {
	acct, err := client.AccountInformation(ctx, w.addr.String())
	if err != nil {
		return 0, false, fmt.Errorf("wallet: account information: %w", err)
	}
	amount, ok := acct.Holding(assetID)
	return amount, ok, nil
}

func parsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if words := strings.Fields(s); len(words) == 25 {
		priv, err := mnemonic.ToPrivateKey(strings.Join(words, " "))
		if err != nil {
			return nil, fmt.Errorf("wallet: invalid mnemonic: %w", err)
		}
		return priv, nil
	}

	if strings.HasPrefix(s, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(s), &ints); err != nil {
			return nil, fmt.Errorf("wallet: invalid JSON private key: %w", err)
		}
		b := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("wallet: invalid byte at %d: %d", i, v)
			}
			b[i] = byte(v)
		}
		return checkKey(b)
	}

	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("wallet: invalid base58 private key: %w", err)
	}
	return checkKey(raw)
}

// checkKey requires a 64-byte key whose public half matches its seed.
func checkKey(b []byte) (ed25519.PrivateKey, error) {
	if len(b) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("wallet: expected %d bytes, got %d", ed25519.PrivateKeySize, len(b))
	}
	priv := ed25519.NewKeyFromSeed(b[:ed25519.SeedSize])
	if !priv.Equal(ed25519.PrivateKey(b)) {
		return nil, fmt.Errorf("wallet: public key does not match seed")
	}
	return priv, nil
}
