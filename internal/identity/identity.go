// Package identity computes event ids and checks BIP-340 Schnorr signatures
// over them. Verification is pure: it depends only on the event.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/alfredjeanlab/relay/internal/model"
)

// ErrInvalidKey is returned when a secret key cannot be decoded.
var ErrInvalidKey = errors.New("invalid secret key")

// Hash returns the hex sha256 of the event's canonical serialization.
func Hash(e *model.Event) string {
	sum := sha256.Sum256(e.Serialize())
	return hex.EncodeToString(sum[:])
}

// Verify reports whether the event id matches its content and the signature
// is valid for that id under the event's pubkey. Malformed keys or signatures
// yield false.
func Verify(e *model.Event) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()

	if e == nil || Hash(e) != e.ID {
		return false
	}

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return false
	}
	pkBytes, err := hex.DecodeString(e.PubKey)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(e.Sig)
	if err != nil {
		return false
	}

	pub, err := schnorr.ParsePubKey(pkBytes)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(idBytes, pub)
}

// Sign sets the event's pubkey from key, computes its id and signs it.
func Sign(e *model.Event, key *btcec.PrivateKey) error {
	e.PubKey = PublicKeyHex(key)
	e.ID = Hash(e)

	idBytes, err := hex.DecodeString(e.ID)
	if err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	sig, err := schnorr.Sign(key, idBytes)
	if err != nil {
		return fmt.Errorf("sign event: %w", err)
	}
	e.Sig = hex.EncodeToString(sig.Serialize())
	return nil
}

// GenerateKey returns a fresh secp256k1 secret key.
func GenerateKey() (*btcec.PrivateKey, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return key, nil
}

// ParseSecretKey decodes a 32-byte hex secret key.
func ParseSecretKey(s string) (*btcec.PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return nil, ErrInvalidKey
	}
	key, _ := btcec.PrivKeyFromBytes(b)
	return key, nil
}

// SecretKeyHex encodes a secret key as hex.
func SecretKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(key.Serialize())
}

// PublicKeyHex returns the x-only public key of key as hex.
func PublicKeyHex(key *btcec.PrivateKey) string {
	return hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))
}
