package crypto

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"
)

// SavePrivateKey writes the hex-encoded private key to path with permissions
// restricted to the owner. It refuses to overwrite an existing file so a
// provisioned identity cannot be clobbered by a second keygen run.
func SavePrivateKey(path string, keyPair *KeyPair) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	defer f.Close()

	encoded := hex.EncodeToString(keyPair.Private[:])
	if _, err := f.WriteString(encoded + "\n"); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// LoadPrivateKey reads a hex-encoded private key from path and derives the
// full key pair from it.
func LoadPrivateKey(path string) (*KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer ZeroBytes(raw)

	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKeyEncoding, err)
	}
	if len(decoded) != KeySize {
		return nil, ErrBadKeyEncoding
	}

	var priv PrivateKey
	copy(priv[:], decoded)
	defer ZeroBytes(decoded)

	return FromPrivateKey(priv)
}
