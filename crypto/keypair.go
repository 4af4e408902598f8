// Package crypto implements the Curve25519 static key primitives used to
// establish authenticated Noise channels between revault infrastructure
// machines.
//
// Keys are plain 32-byte values. Key distribution is out of scope: every
// machine is provisioned with its own secret key and the public keys of the
// peers it is allowed to talk to.
//
// Example:
//
//	keys, err := crypto.GenerateKeyPair()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Public key:", keys.Public.Hex())
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeySize is the size in bytes of a Curve25519 key, public or private.
const KeySize = 32

var (
	// ErrZeroKey indicates a key consisting of all zero bytes.
	ErrZeroKey = errors.New("invalid key: all zeros")
	// ErrBadKeyEncoding indicates a hex string that does not decode to
	// exactly KeySize bytes.
	ErrBadKeyEncoding = errors.New("invalid key encoding: want 32 hex-encoded bytes")
)

// PublicKey is a Curve25519 static public key identifying a peer.
type PublicKey [KeySize]byte

// PrivateKey is a Curve25519 static secret key. It never leaves the local
// machine.
type PrivateKey [KeySize]byte

// KeyPair represents a Curve25519 static key pair.
type KeyPair struct {
	Public  PublicKey
	Private PrivateKey
}

// GenerateKeyPair creates a new random Curve25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	var priv PrivateKey
	if _, err := rand.Read(priv[:]); err != nil {
		return nil, fmt.Errorf("failed to read entropy: %w", err)
	}
	return FromPrivateKey(priv)
}

// FromPrivateKey creates a key pair from an existing private key, deriving
// the public key by multiplying with the curve base point.
func FromPrivateKey(privateKey PrivateKey) (*KeyPair, error) {
	if isZeroKey(privateKey[:]) {
		return nil, ErrZeroKey
	}

	pub, err := curve25519.X25519(privateKey[:], curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}

	keyPair := &KeyPair{Private: privateKey}
	copy(keyPair.Public[:], pub)
	return keyPair, nil
}

// ParsePublicKey decodes a hex-encoded public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pub PublicKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return pub, fmt.Errorf("%w: %v", ErrBadKeyEncoding, err)
	}
	if len(raw) != KeySize {
		return pub, ErrBadKeyEncoding
	}
	copy(pub[:], raw)
	return pub, nil
}

// Hex returns the lowercase hex encoding of the public key.
func (p PublicKey) Hex() string {
	return hex.EncodeToString(p[:])
}

// isZeroKey checks if a key consists of all zeros.
func isZeroKey(key []byte) bool {
	for _, b := range key {
		if b != 0 {
			return false
		}
	}
	return true
}
