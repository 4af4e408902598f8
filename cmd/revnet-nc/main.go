// revnet-nc is a netcat-style tool over the authenticated Noise KK
// transport: lines from stdin are sent to the peer, received messages are
// printed to stdout. Useful for smoke-testing provisioned keys between two
// machines.
package main

import (
	"bufio"
	"fmt"
	"net"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/revaultd-net/crypto"
	"github.com/opd-ai/revaultd-net/transport"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "revnet-nc",
		Short: "Authenticated encrypted netcat for revault machines",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "revnet.yaml", "config file naming key_file and peers")

	connectCmd := &cobra.Command{
		Use:   "connect <addr>",
		Short: "Connect to a listening peer and pipe stdin/stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPair, peers, err := load(configPath)
			if err != nil {
				return err
			}
			defer crypto.WipeKeyPair(keyPair)

			// The first configured peer is the server we dial.
			t, err := transport.Connect(args[0], keyPair.Private, peers[0])
			if err != nil {
				return err
			}
			defer t.Close()
			return pipe(t)
		},
	}

	listenCmd := &cobra.Command{
		Use:   "listen <addr>",
		Short: "Accept one peer connection and pipe stdin/stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPair, peers, err := load(configPath)
			if err != nil {
				return err
			}
			defer crypto.WipeKeyPair(keyPair)

			listener, err := net.Listen("tcp", args[0])
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", args[0], err)
			}
			defer listener.Close()

			t, err := transport.Accept(listener, keyPair.Private, peers)
			if err != nil {
				return err
			}
			defer t.Close()
			return pipe(t)
		},
	}

	root.AddCommand(connectCmd, listenCmd)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func load(configPath string) (*crypto.KeyPair, []crypto.PublicKey, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	keyPair, err := crypto.LoadPrivateKey(cfg.KeyFile)
	if err != nil {
		return nil, nil, err
	}
	peers, err := cfg.peerKeys()
	if err != nil {
		return nil, nil, err
	}
	return keyPair, peers, nil
}

// pipe shuttles stdin lines to the peer and peer messages to stdout until
// either side ends.
func pipe(t *transport.KKTransport) error {
	errCh := make(chan error, 2)

	go func() {
		for {
			msg, err := t.Read()
			if err != nil {
				errCh <- err
				return
			}
			fmt.Printf("%s\n", msg)
		}
	}()

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if err := t.Write(scanner.Bytes()); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- scanner.Err()
	}()

	if err := <-errCh; err != nil {
		logrus.WithFields(logrus.Fields{
			"function": "pipe",
			"error":    err.Error(),
		}).Debug("session ended")
		return err
	}
	return nil
}
