// revnet-keygen generates a Curve25519 static key pair for a revault
// infrastructure machine. The private key is written to a file readable only
// by the owner; the public key is printed so it can be provisioned on peers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/opd-ai/revaultd-net/crypto"
)

func main() {
	var outFile string

	root := &cobra.Command{
		Use:   "revnet-keygen",
		Short: "Generate a static Noise key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			keyPair, err := crypto.GenerateKeyPair()
			if err != nil {
				return err
			}
			defer crypto.WipeKeyPair(keyPair)

			if err := crypto.SavePrivateKey(outFile, keyPair); err != nil {
				return err
			}
			fmt.Printf("Private key written to %s\nPublic key: %s\n", outFile, keyPair.Public.Hex())
			return nil
		},
	}
	root.Flags().StringVarP(&outFile, "out", "o", "revnet.key", "private key output file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
