package wallet

import (
	"fmt"

	"github.com/consensus-shipyard/mono-ipc/crypto"
	"github.com/consensus-shipyard/mono-ipc/topdown"
)

// Wallet holds a validator's key pair.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// PubKey returns the hex-encoded ed25519 public key.
func (w *Wallet) PubKey() string {
	return w.pub.Hex()
}

// Address returns the short human-readable address (first 20 bytes of SHA-256(pubkey)).
func (w *Wallet) Address() string {
	return w.pub.Address()
}

// ValidatorKey converts this wallet's public key into the fixed-size
// identity the vote tally keys its power table by.
func (w *Wallet) ValidatorKey() (topdown.ValidatorKey, error) {
	var key topdown.ValidatorKey
	if len(w.pub) != len(key) {
		return key, fmt.Errorf("public key length %d does not match validator key size %d", len(w.pub), len(key))
	}
	copy(key[:], w.pub)
	return key, nil
}
