package noise

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/flynn/noise"

	"github.com/opd-ai/revaultd-net/crypto"
)

const (
	// MaxMessageSize is the maximum Noise message size on the wire.
	MaxMessageSize = 65535
	// LengthPrefixSize is the size of the big-endian message length prefix.
	LengthPrefixSize = 2
	// HeaderSize is the size of an encrypted header: the length prefix plus
	// its MAC.
	HeaderSize = LengthPrefixSize + MACSize
	// MaxPlaintextSize is the maximum size of a message before encryption,
	// bounded by the Noise message size minus the framing overhead.
	MaxPlaintextSize = MaxMessageSize - HeaderSize - MACSize
)

var (
	// ErrInvalidPlaintext indicates a plaintext larger than MaxPlaintextSize.
	ErrInvalidPlaintext = errors.New("plaintext exceeds maximum message size")
	// ErrInvalidCiphertext indicates a ciphertext shorter than a MAC or
	// larger than the maximum Noise message size.
	ErrInvalidCiphertext = errors.New("ciphertext length out of bounds")
	// ErrHandshakeNotComplete indicates an attempt to build a Channel from a
	// handshake that never produced transport keys. Unreachable when the act
	// constructors are used.
	ErrHandshakeNotComplete = errors.New("handshake not complete")
)

// EncryptedHeader is a ciphertext containing the length prefix of an
// encrypted message body, MAC'ed on its own so the receiver can size the
// body read before decrypting it.
type EncryptedHeader [HeaderSize]byte

// EncryptedMessage is a ciphertext containing an application message body
// and its trailing MAC.
type EncryptedMessage []byte

// Channel is a bidirectional symmetric encryption facility derived from a
// completed KK handshake. Each direction owns an independent nonce counter
// advanced by every encrypt or decrypt call, so operations on one side must
// be consumed by the peer in the exact order produced. A Channel is owned by
// a single logical connection and must not be shared between goroutines
// without external locking.
type Channel struct {
	sendCipher   *noise.CipherState
	recvCipher   *noise.CipherState
	remoteStatic crypto.PublicKey
}

// FromHandshake constructs the transport-mode Channel from a terminal
// handshake stage, consuming it.
func FromHandshake(actTwo *HandshakeActTwo) (*Channel, error) {
	if actTwo.consumed {
		return nil, ErrHandshakeConsumed
	}
	if actTwo.sendCipher == nil || actTwo.recvCipher == nil {
		return nil, ErrHandshakeNotComplete
	}
	actTwo.consumed = true

	return &Channel{
		sendCipher:   actTwo.sendCipher,
		recvCipher:   actTwo.recvCipher,
		remoteStatic: actTwo.remoteStatic,
	}, nil
}

// EncryptMessage encrypts a message of at most MaxPlaintextSize bytes,
// prefixing it with a header that carries the encrypted body length (body
// plus MAC) MAC'ed on its own to permit incremental reads. The header is
// encrypted before the body; each call advances the sending nonce counter by
// one, so the two ciphertexts must be decrypted by the peer in that order.
func (c *Channel) EncryptMessage(message []byte) (EncryptedMessage, error) {
	if len(message) > MaxPlaintextSize {
		return nil, ErrInvalidPlaintext
	}

	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(MACSize+len(message)))

	out := make([]byte, 0, HeaderSize+len(message)+MACSize)
	out, err := c.sendCipher.Encrypt(out, nil, prefix[:])
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt header: %w", err)
	}
	out, err = c.sendCipher.Encrypt(out, nil, message)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt message: %w", err)
	}

	return EncryptedMessage(out), nil
}

// DecryptHeader decrypts an encrypted header, returning the length of the
// encrypted body that follows it (body plus MAC, so the caller can size the
// next read without knowing the plaintext length).
func (c *Channel) DecryptHeader(header *EncryptedHeader) (uint16, error) {
	prefix, err := c.recvCipher.Decrypt(nil, nil, header[:])
	if err != nil {
		return 0, fmt.Errorf("failed to decrypt header: %w", err)
	}
	return binary.BigEndian.Uint16(prefix), nil
}

// DecryptMessage decrypts an encrypted message body and strips its trailing
// MAC. The body must be exactly the one announced by the preceding
// DecryptHeader call on this Channel, in the order the peer produced it.
func (c *Channel) DecryptMessage(message EncryptedMessage) ([]byte, error) {
	if len(message) < MACSize || len(message) > MaxMessageSize {
		return nil, ErrInvalidCiphertext
	}

	plaintext, err := c.recvCipher.Decrypt(nil, nil, message)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message: %w", err)
	}
	return plaintext, nil
}

// RemoteStatic returns the peer's static public key bound during the
// handshake. A KK handshake cannot complete without it.
func (c *Channel) RemoteStatic() crypto.PublicKey {
	return c.remoteStatic
}
