package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/opd-ai/revaultd-net/crypto"
)

// config names the local identity and the peers this machine may talk to.
//
//	key_file: /etc/revnet/revnet.key
//	peers:
//	  - 31d2e5fcf04c24471a36b1f83c6b1d33f024c1aca72bb39b168926e5ab82c421
type config struct {
	KeyFile string   `yaml:"key_file"`
	Peers   []string `yaml:"peers"`
}

func loadConfig(path string) (*config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("config is missing key_file")
	}
	if len(cfg.Peers) == 0 {
		return nil, fmt.Errorf("config names no peers")
	}
	return &cfg, nil
}

// peerKeys decodes every peer entry in the config.
func (c *config) peerKeys() ([]crypto.PublicKey, error) {
	keys := make([]crypto.PublicKey, 0, len(c.Peers))
	for _, entry := range c.Peers {
		pub, err := crypto.ParsePublicKey(entry)
		if err != nil {
			return nil, fmt.Errorf("bad peer key %q: %w", entry, err)
		}
		keys = append(keys, pub)
	}
	return keys, nil
}
