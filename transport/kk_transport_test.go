package transport

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/revaultd-net/crypto"
	"github.com/opd-ai/revaultd-net/noise"
)

// fastConfig keeps test failures from sleeping through the retry budget.
func fastConfig() Config {
	return Config{
		ConnectTimeout: 2 * time.Second,
		RetryAttempts:  2,
		RetryDelay:     10 * time.Millisecond,
	}
}

func genKeyPair(t *testing.T) *crypto.KeyPair {
	t.Helper()
	keyPair, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return keyPair
}

// transportPair drives Connect and Accept over a loopback listener, one
// endpoint per goroutine, and returns both transports.
func transportPair(t *testing.T, client, server *crypto.KeyPair, candidates []crypto.PublicKey) (*KKTransport, *KKTransport) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	type result struct {
		transport *KKTransport
		err       error
	}
	clientCh := make(chan result, 1)
	go func() {
		ct, err := ConnectWithConfig(listener.Addr().String(), client.Private, server.Public, fastConfig())
		clientCh <- result{ct, err}
	}()

	serverTransport, err := AcceptWithConfig(listener, server.Private, candidates, fastConfig())
	require.NoError(t, err)

	res := <-clientCh
	require.NoError(t, res.err)
	return res.transport, serverTransport
}

func TestTransportKK(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)
	other := genKeyPair(t)

	clientTransport, serverTransport := transportPair(t, client, server,
		[]crypto.PublicKey{other.Public, client.Public})
	defer clientTransport.Close()
	defer serverTransport.Close()

	assert.Equal(t, client.Public, serverTransport.RemoteStatic())
	assert.Equal(t, server.Public, clientTransport.RemoteStatic())

	require.NoError(t, clientTransport.Write([]byte("Hello")))
	msg, err := serverTransport.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), msg)

	require.NoError(t, serverTransport.Write([]byte("Goodbye")))
	msg, err = clientTransport.Read()
	require.NoError(t, err)
	assert.Equal(t, []byte("Goodbye"), msg)
}

func TestTransportManyMessages(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)

	clientTransport, serverTransport := transportPair(t, client, server,
		[]crypto.PublicKey{client.Public})
	defer clientTransport.Close()
	defer serverTransport.Close()

	for i := 0; i < 50; i++ {
		payload := []byte{byte(i), byte(i >> 8)}
		require.NoError(t, clientTransport.Write(payload))
		msg, err := serverTransport.Read()
		require.NoError(t, err)
		require.Equal(t, payload, msg)
	}
}

func TestAcceptUnknownInitiator(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)
	stranger := genKeyPair(t)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	go func() {
		// The connect side fails once the server drops the handshake; we
		// only care about the responder's verdict here.
		ct, err := ConnectWithConfig(listener.Addr().String(), client.Private, server.Public, fastConfig())
		if err == nil {
			ct.Close()
		}
	}()

	_, err = AcceptWithConfig(listener, server.Private, []crypto.PublicKey{stranger.Public}, fastConfig())
	assert.ErrorIs(t, err, noise.ErrMissingStaticKey)
}

func TestReadAfterPeerClose(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)

	clientTransport, serverTransport := transportPair(t, client, server,
		[]crypto.PublicKey{client.Public})
	defer serverTransport.Close()

	require.NoError(t, clientTransport.Close())

	// A clean end of stream is fatal and must not burn the retry budget.
	start := time.Now()
	_, err := serverTransport.Read()
	require.Error(t, err)
	assert.Less(t, time.Since(start), fastConfig().RetryDelay)
}

func TestWriteAfterClose(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)

	clientTransport, serverTransport := transportPair(t, client, server,
		[]crypto.PublicKey{client.Public})
	defer serverTransport.Close()

	require.NoError(t, clientTransport.Close())
	err := clientTransport.Write([]byte("too late"))
	require.Error(t, err)
}

func TestWriteOversizedMessage(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)

	clientTransport, serverTransport := transportPair(t, client, server,
		[]crypto.PublicKey{client.Public})
	defer clientTransport.Close()
	defer serverTransport.Close()

	err := clientTransport.Write(make([]byte, noise.MaxPlaintextSize+1))
	assert.ErrorIs(t, err, noise.ErrInvalidPlaintext)
}

func TestConnectRefused(t *testing.T) {
	client := genKeyPair(t)
	server := genKeyPair(t)

	// Bind then close to get an address nobody listens on.
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	_, err = ConnectWithConfig(addr, client.Private, server.Public, fastConfig())
	require.Error(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout)
	assert.Equal(t, DefaultRetryAttempts, cfg.RetryAttempts)
	assert.Equal(t, DefaultRetryDelay, cfg.RetryDelay)

	custom := Config{ConnectTimeout: time.Second, RetryAttempts: 3, RetryDelay: time.Millisecond}
	assert.Equal(t, custom, custom.withDefaults())
}
