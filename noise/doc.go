// Package noise implements the authenticated and encrypted channels used
// between revault infrastructure machines, built on the Noise Protocol
// Framework via the formally specified flynn/noise library.
//
// The channel uses the KK handshake pattern with ChaCha20-Poly1305 encryption,
// SHA256 hashing, and Curve25519 key exchange (Noise_KK_25519_ChaChaPoly_SHA256):
// both parties know each other's static public key in advance, and the
// two-message handshake mutually authenticates them.
//
// Message flow:
//
//	Initiator                              Responder
//	─────────                              ─────────
//	-> e, es, ss   (68 bytes, carries the protocol tag)
//	               <- e, ee, se   (48 bytes, empty payload)
//	[channel established]
//
// The handshake progresses through three stages, each consumed exactly once:
// [HandshakeActOne] then [HandshakeActTwo] then [Channel]. A failed handshake
// cannot be resumed; callers restart from a fresh act one.
//
// After the handshake, [Channel] frames every application message as an
// 18-byte encrypted header (2-byte big-endian length of the encrypted body,
// MAC'ed on its own so receivers can size the next read incrementally)
// followed by the encrypted body. Each encrypt and decrypt call advances a
// per-direction nonce counter, so messages must be decrypted in the exact
// order they were encrypted, header before body. A Channel must not be used
// from multiple goroutines without external locking: concurrent calls race on
// the nonce counters and irrecoverably desynchronize the stream.
package noise
