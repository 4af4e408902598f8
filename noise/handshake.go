package noise

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/flynn/noise"

	"github.com/opd-ai/revaultd-net/crypto"
)

const (
	// KeySize is the size of a Curve25519 key, public or private.
	KeySize = crypto.KeySize
	// MACSize is the size of the Poly1305 authentication tag.
	MACSize = 16
	// HandshakeMessage is sent as the act one payload for versioning and
	// identification during the handshake. Changing it breaks wire
	// compatibility with every deployed peer.
	HandshakeMessage = "practical_revault_0"
	// ActOneSize is the size of the first KK handshake message (e, es, ss).
	ActOneSize = KeySize + len(HandshakeMessage) + MACSize
	// ActTwoSize is the size of the second KK handshake message (e, ee, se).
	ActTwoSize = KeySize + MACSize
)

var (
	// ErrBadHandshake indicates an act one message that decrypted correctly
	// but did not carry the expected protocol tag. This is a version or
	// protocol incompatibility, not a wrong-key guess.
	ErrBadHandshake = errors.New("handshake payload does not match the protocol tag")
	// ErrMissingStaticKey indicates that no candidate public key could
	// validate the incoming act one message.
	ErrMissingStaticKey = errors.New("no candidate static key matches the handshake")
	// ErrHandshakeConsumed indicates reuse of a handshake stage that was
	// already advanced. Every stage is consumed exactly once.
	ErrHandshakeConsumed = errors.New("handshake stage already consumed")
)

// MessageActOne is the first message of the KK handshake: the initiator's
// ephemeral key plus the encrypted protocol tag and its MAC.
type MessageActOne [ActOneSize]byte

// MessageActTwo is the second and final message of the KK handshake: the
// responder's ephemeral key plus the MAC of an empty payload.
type MessageActTwo [ActTwoSize]byte

// cipherSuite returns the Noise_KK_25519_ChaChaPoly_SHA256 suite shared by
// every handshake state built in this package.
func cipherSuite() noise.CipherSuite {
	return noise.NewCipherSuite(noise.DH25519, noise.CipherChaChaPoly, noise.HashSHA256)
}

// newHandshakeState builds a fresh KK handshake engine bound to our private
// key and the declared remote public key.
func newHandshakeState(myPrivateKey crypto.PrivateKey, theirPublicKey crypto.PublicKey, initiator bool) (*noise.HandshakeState, error) {
	keyPair, err := crypto.FromPrivateKey(myPrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive static keypair: %w", err)
	}

	staticKey := noise.DHKey{
		Private: make([]byte, KeySize),
		Public:  make([]byte, KeySize),
	}
	copy(staticKey.Private, keyPair.Private[:])
	copy(staticKey.Public, keyPair.Public[:])
	defer crypto.WipeKeyPair(keyPair)

	peerStatic := make([]byte, KeySize)
	copy(peerStatic, theirPublicKey[:])

	state, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite(),
		Random:        rand.Reader,
		Pattern:       noise.HandshakeKK,
		Initiator:     initiator,
		StaticKeypair: staticKey,
		PeerStatic:    peerStatic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create handshake state: %w", err)
	}
	return state, nil
}

// HandshakeActOne is the first stage of the KK handshake. It owns a live
// handshake engine and is consumed exactly once by the act two constructors.
type HandshakeActOne struct {
	state     *noise.HandshakeState
	initiator bool
	consumed  bool
}

// InitiatorActOne starts the handshake as an initiator, producing the act one
// message (e, es, ss) carrying the protocol tag for the declared responder.
func InitiatorActOne(myPrivateKey crypto.PrivateKey, theirPublicKey crypto.PublicKey) (*HandshakeActOne, *MessageActOne, error) {
	state, err := newHandshakeState(myPrivateKey, theirPublicKey, true)
	if err != nil {
		return nil, nil, err
	}

	out, _, _, err := state.WriteMessage(nil, []byte(HandshakeMessage))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write act one message: %w", err)
	}

	var msg MessageActOne
	copy(msg[:], out)
	return &HandshakeActOne{state: state, initiator: true}, &msg, nil
}

// ResponderActOne starts the handshake as a responder. The responder does not
// know which of its known correspondents is connecting, so it tries the act
// one message against each candidate public key in order, with a fresh engine
// per attempt, until one decrypts. A message that decrypts but carries the
// wrong protocol tag fails immediately with ErrBadHandshake: the key was
// right, the protocol version was not.
func ResponderActOne(myPrivateKey crypto.PrivateKey, candidateKeys []crypto.PublicKey, message *MessageActOne) (*HandshakeActOne, error) {
	for _, candidate := range candidateKeys {
		state, err := newHandshakeState(myPrivateKey, candidate, false)
		if err != nil {
			return nil, err
		}

		payload, _, _, err := state.ReadMessage(nil, message[:])
		if err != nil {
			// Wrong candidate, not a protocol failure. Try the next one.
			continue
		}
		if !bytes.Equal(payload, []byte(HandshakeMessage)) {
			return nil, ErrBadHandshake
		}

		return &HandshakeActOne{state: state, initiator: false}, nil
	}

	return nil, ErrMissingStaticKey
}

// HandshakeActTwo is the terminal handshake stage. The engine has been driven
// through both messages and split into its two directional cipher states,
// waiting to be turned into a Channel.
type HandshakeActTwo struct {
	sendCipher   *noise.CipherState
	recvCipher   *noise.CipherState
	remoteStatic crypto.PublicKey
	consumed     bool
}

// InitiatorActTwo consumes the initiator's act one and validates the
// responder's act two message (e, ee, se). The message carries no payload;
// a decryption failure means a corrupted or malicious reply.
func InitiatorActTwo(actOne *HandshakeActOne, message *MessageActTwo) (*HandshakeActTwo, error) {
	if !actOne.initiator {
		return nil, fmt.Errorf("only an initiator act one can read the act two message")
	}
	if actOne.consumed {
		return nil, ErrHandshakeConsumed
	}
	actOne.consumed = true

	// The final handshake message yields the transport cipher states. The
	// MAC-verified payload is empty in this protocol revision and discarded.
	_, initiatorToResponder, responderToInitiator, err := actOne.state.ReadMessage(nil, message[:])
	if err != nil {
		return nil, fmt.Errorf("failed to read act two message: %w", err)
	}

	actTwo := &HandshakeActTwo{
		sendCipher: initiatorToResponder,
		recvCipher: responderToInitiator,
	}
	copy(actTwo.remoteStatic[:], actOne.state.PeerStatic())
	return actTwo, nil
}

// ResponderActTwo consumes the responder's act one and writes the act two
// message (e, ee, se) with an empty payload, completing the key agreement on
// the responder side.
func ResponderActTwo(actOne *HandshakeActOne) (*HandshakeActTwo, *MessageActTwo, error) {
	if actOne.initiator {
		return nil, nil, fmt.Errorf("only a responder act one can write the act two message")
	}
	if actOne.consumed {
		return nil, nil, ErrHandshakeConsumed
	}
	actOne.consumed = true

	out, initiatorToResponder, responderToInitiator, err := actOne.state.WriteMessage(nil, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to write act two message: %w", err)
	}

	// flynn/noise always orders the split with the initiator-to-responder
	// direction first; as responder we receive on it and send on the other.
	actTwo := &HandshakeActTwo{
		sendCipher: responderToInitiator,
		recvCipher: initiatorToResponder,
	}
	copy(actTwo.remoteStatic[:], actOne.state.PeerStatic())

	var msg MessageActTwo
	copy(msg[:], out)
	return actTwo, &msg, nil
}
