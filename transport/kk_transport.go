package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/revaultd-net/crypto"
	"github.com/opd-ai/revaultd-net/noise"
)

const (
	// DefaultConnectTimeout bounds the TCP connection attempt in Connect.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultRetryAttempts is the total number of attempts for a Read or
	// Write before the last stream error is surfaced.
	DefaultRetryAttempts = 5
	// DefaultRetryDelay is the pause between re-attempts.
	DefaultRetryDelay = 1 * time.Second
)

// Config carries the transport tunables. The zero value of any field falls
// back to the package default.
type Config struct {
	ConnectTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
}

// DefaultConfig returns the standard connection parameters.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: DefaultConnectTimeout,
		RetryAttempts:  DefaultRetryAttempts,
		RetryDelay:     DefaultRetryDelay,
	}
}

func (c Config) withDefaults() Config {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = DefaultRetryAttempts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	return c
}

// KKTransport owns one open TCP stream and the Noise KK channel riding on
// it. It lives as long as the logical connection and must not be driven from
// multiple goroutines without external locking: the channel's nonce counters
// race otherwise.
type KKTransport struct {
	conn    net.Conn
	channel *noise.Channel
	config  Config
}

// Connect dials the server at addr and enacts the Noise KK handshake with
// our private key against the server's declared public key, using the
// default configuration.
func Connect(addr string, myPrivateKey crypto.PrivateKey, theirPublicKey crypto.PublicKey) (*KKTransport, error) {
	return ConnectWithConfig(addr, myPrivateKey, theirPublicKey, DefaultConfig())
}

// ConnectWithConfig is Connect with explicit connection parameters.
func ConnectWithConfig(addr string, myPrivateKey crypto.PrivateKey, theirPublicKey crypto.PublicKey, config Config) (*KKTransport, error) {
	config = config.withDefaults()

	conn, err := net.DialTimeout("tcp", addr, config.ConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	actOne, msgOne, err := noise.InitiatorActOne(myPrivateKey, theirPublicKey)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Write(msgOne[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to write act one message: %w", err)
	}

	var msgTwo noise.MessageActTwo
	if _, err := io.ReadFull(conn, msgTwo[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read act two message: %w", err)
	}
	actTwo, err := noise.InitiatorActTwo(actOne, &msgTwo)
	if err != nil {
		conn.Close()
		return nil, err
	}
	channel, err := noise.FromHandshake(actTwo)
	if err != nil {
		conn.Close()
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Connect",
		"remote_addr": conn.RemoteAddr().String(),
		"remote_key":  channel.RemoteStatic().Hex()[:16],
	}).Info("Noise KK channel established")

	return &KKTransport{conn: conn, channel: channel, config: config}, nil
}

// Accept takes one incoming connection from the listener and performs the
// Noise KK handshake as a responder, identifying the caller by trying each
// candidate public key against its act one message. Uses the default
// configuration.
func Accept(listener net.Listener, myPrivateKey crypto.PrivateKey, candidateKeys []crypto.PublicKey) (*KKTransport, error) {
	return AcceptWithConfig(listener, myPrivateKey, candidateKeys, DefaultConfig())
}

// AcceptWithConfig is Accept with explicit connection parameters.
func AcceptWithConfig(listener net.Listener, myPrivateKey crypto.PrivateKey, candidateKeys []crypto.PublicKey, config Config) (*KKTransport, error) {
	config = config.withDefaults()

	conn, err := listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("failed to accept connection: %w", err)
	}

	var msgOne noise.MessageActOne
	if _, err := io.ReadFull(conn, msgOne[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read act one message: %w", err)
	}

	actOne, err := noise.ResponderActOne(myPrivateKey, candidateKeys, &msgOne)
	if err != nil {
		conn.Close()
		return nil, err
	}
	actTwo, msgTwo, err := noise.ResponderActTwo(actOne)
	if err != nil {
		conn.Close()
		return nil, err
	}
	channel, err := noise.FromHandshake(actTwo)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := conn.Write(msgTwo[:]); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to write act two message: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"function":    "Accept",
		"remote_addr": conn.RemoteAddr().String(),
		"remote_key":  channel.RemoteStatic().Hex()[:16],
	}).Info("Noise KK channel established")

	return &KKTransport{conn: conn, channel: channel, config: config}, nil
}

// Write encrypts the message and writes the whole ciphertext to the stream.
// Stream write errors are re-attempted up to the configured attempt budget
// with a pause in between; encryption errors are surfaced immediately.
func (t *KKTransport) Write(message []byte) error {
	encrypted, err := t.channel.EncryptMessage(message)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= t.config.RetryAttempts; attempt++ {
		_, err := t.conn.Write(encrypted)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < t.config.RetryAttempts {
			logrus.WithFields(logrus.Fields{
				"function": "Write",
				"attempt":  attempt,
				"error":    lastErr.Error(),
			}).Warn("stream write failed, retrying")
			time.Sleep(t.config.RetryDelay)
		}
	}
	return fmt.Errorf("failed to write message after %d attempts: %w", t.config.RetryAttempts, lastErr)
}

// Read reads one whole message from the stream: the 18-byte encrypted header
// first, then exactly the body length it announces. Transient stream errors
// re-attempt the whole read up to the configured attempt budget; fatal stream
// conditions and decryption failures are returned immediately, since another
// attempt cannot fix either.
func (t *KKTransport) Read() ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= t.config.RetryAttempts; attempt++ {
		message, err := t.readMessage()
		if err == nil {
			return message, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt < t.config.RetryAttempts {
			logrus.WithFields(logrus.Fields{
				"function": "Read",
				"attempt":  attempt,
				"error":    lastErr.Error(),
			}).Warn("stream read failed, retrying")
			time.Sleep(t.config.RetryDelay)
		}
	}
	return nil, fmt.Errorf("failed to read message after %d attempts: %w", t.config.RetryAttempts, lastErr)
}

func (t *KKTransport) readMessage() ([]byte, error) {
	var header noise.EncryptedHeader
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	bodyLen, err := t.channel.DecryptHeader(&header)
	if err != nil {
		return nil, err
	}

	// bodyLen is two bytes on the wire, so it cannot exceed the Noise
	// message size.
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return nil, fmt.Errorf("failed to read message body: %w", err)
	}
	return t.channel.DecryptMessage(noise.EncryptedMessage(body))
}

// retryable reports whether a failed read attempt may succeed when the read
// is re-attempted as a whole. A clean end of stream or a closed connection
// cannot recover, and cryptographic failures do not come back different.
func retryable(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// RemoteStatic returns the static public key the peer authenticated with
// during the handshake.
func (t *KKTransport) RemoteStatic() crypto.PublicKey {
	return t.channel.RemoteStatic()
}

// LocalAddr returns the local address of the underlying stream.
func (t *KKTransport) LocalAddr() net.Addr {
	return t.conn.LocalAddr()
}

// RemoteAddr returns the remote address of the underlying stream.
func (t *KKTransport) RemoteAddr() net.Addr {
	return t.conn.RemoteAddr()
}

// Close tears down the underlying stream. The transport is unusable
// afterwards.
func (t *KKTransport) Close() error {
	return t.conn.Close()
}
