// Package transport wraps a TCP stream with the Noise KK channel from the
// noise package, enforcing authenticated and encrypted communication between
// revault infrastructure machines.
//
// [Connect] and [Accept] drive the two-message handshake over a freshly
// opened stream and return a [KKTransport] whose Read and Write methods frame
// whole application messages. I/O is fully synchronous and blocking; there is
// no internal goroutine, and a KKTransport belongs to exactly one logical
// connection.
//
// Read and Write recover from transient stream errors by re-attempting the
// whole operation a bounded number of times with a fixed pause in between.
// Cryptographic failures and dead streams (clean end of stream, closed
// connection) are never retried: the first cannot be fixed by rereading and
// the second cannot recover. A failed handshake is likewise never resumed;
// callers reconnect from scratch.
package transport
