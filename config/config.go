package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// TLSConfig holds paths to the PEM files needed for mTLS on the query
// RPC listener. When nil or all paths empty, it falls back to plain
// TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`
	NodeCert string `json:"node_cert"`
	NodeKey  string `json:"node_key"`
}

// PeerConfig names a known counterparty chain this node routinely
// coordinates transactions and dependency checks with.
type PeerConfig struct {
	Fpr     string `json:"fpr"`
	Rootdir string `json:"rootdir"`
}

// Config holds all pyomcore node configuration: where its own chain
// lives, how long new transactions stay open by default, which peers it
// knows about by default, and how to expose the read-only query RPC.
type Config struct {
	Rootdir      string        `json:"rootdir"`
	KeystorePath string        `json:"keystore_path"`
	RPCAddr      string        `json:"rpc_addr"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`
	TransactionExpiry time.Duration `json:"transaction_expiry"`
	Peers        []PeerConfig  `json:"peers,omitempty"`
	TLS          *TLSConfig    `json:"tls,omitempty"`
}

// DefaultConfig returns a single-chain development configuration.
func DefaultConfig() *Config {
	return &Config{
		Rootdir:           "./pyom",
		KeystorePath:       "./pyom/keystore.json",
		RPCAddr:            "127.0.0.1:8777",
		TransactionExpiry:  7 * 24 * time.Hour,
	}
}

// Load reads a JSON config file from path and validates required
// fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.Rootdir == "" {
		return fmt.Errorf("rootdir must not be empty")
	}
	if c.KeystorePath == "" {
		return fmt.Errorf("keystore_path must not be empty")
	}
	if c.RPCAddr == "" {
		return fmt.Errorf("rpc_addr must not be empty")
	}
	if c.TransactionExpiry <= 0 {
		return fmt.Errorf("transaction_expiry must be positive")
	}
	for i, p := range c.Peers {
		if p.Fpr == "" || p.Rootdir == "" {
			return fmt.Errorf("peers[%d]: fpr and rootdir must both be set", i)
		}
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
