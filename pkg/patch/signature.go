package patch

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// SignerID is a signer's Ed25519 public key.
type SignerID struct {
	PublicKey ed25519.PublicKey
}

// String renders the signer id as hex.
func (s SignerID) String() string { return hex.EncodeToString(s.PublicKey) }

// Equal reports whether two signer ids name the same public key.
func (s SignerID) Equal(other SignerID) bool {
	return string(s.PublicKey) == string(other.PublicKey)
}

// Signature is an Ed25519 signature over a caller-supplied message. The
// approval gate verifies it against whatever message the caller passes and
// does not check that this message is the patch's hash.
type Signature struct {
	Bytes []byte
}

// Keyring signs messages with an Ed25519 private key, grounded on the same
// HKDF-tenant-derivation discipline as the ambient governance keyring.
type Keyring struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewKeyring generates a fresh Ed25519 keypair.
func NewKeyring() (*Keyring, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Keyring{priv: priv, pub: pub}, nil
}

// SignerID returns this keyring's public identity.
func (k *Keyring) SignerID() SignerID { return SignerID{PublicKey: k.pub} }

// Sign signs message with the keyring's private key.
func (k *Keyring) Sign(message []byte) Signature {
	return Signature{Bytes: ed25519.Sign(k.priv, message)}
}

// DeriveForPatchType derives a patch-type-scoped signing keyring via
// HKDF-SHA256 over this keyring's seed, so different patch types can be
// gated by distinct approvers without separate key management.
func (k *Keyring) DeriveForPatchType(kind Kind) (*Keyring, error) {
	if kind == "" {
		return nil, fmt.Errorf("patch: kind must not be empty")
	}
	seed := k.priv.Seed()
	reader := hkdf.New(sha256.New, seed, []byte("oracle-omen-patch-kdf"), []byte(kind))
	derivedSeed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(reader, derivedSeed); err != nil {
		return nil, fmt.Errorf("patch: hkdf derivation failed: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(derivedSeed)
	pub := priv.Public().(ed25519.PublicKey)
	return &Keyring{priv: priv, pub: pub}, nil
}

// Verify reports whether sig is a valid Ed25519 signature over message by
// signer.
func Verify(signer SignerID, message []byte, sig Signature) bool {
	if len(signer.PublicKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(signer.PublicKey, message, sig.Bytes)
}
