package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig should validate: %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Peers = []PeerConfig{{Fpr: "ABCD", Rootdir: "/other/rootdir"}}
	path := filepath.Join(t.TempDir(), "config.json")

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Rootdir != cfg.Rootdir || len(got.Peers) != 1 || got.Peers[0].Fpr != "ABCD" {
		t.Errorf("config did not round-trip: %+v", got)
	}
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*Config)
	}{
		{"empty rootdir", func(c *Config) { c.Rootdir = "" }},
		{"empty keystore path", func(c *Config) { c.KeystorePath = "" }},
		{"empty rpc addr", func(c *Config) { c.RPCAddr = "" }},
		{"non-positive expiry", func(c *Config) { c.TransactionExpiry = 0 }},
		{"peer missing fpr", func(c *Config) { c.Peers = []PeerConfig{{Rootdir: "/x"}} }},
		{"peer missing rootdir", func(c *Config) { c.Peers = []PeerConfig{{Fpr: "ABCD"}} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mut(cfg)
			if err := cfg.Validate(); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateTLSRequiresAllOrNone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TLS = &TLSConfig{CACert: "ca.pem"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for partially-set TLS config")
	}

	cfg.TLS = &TLSConfig{CACert: "ca.pem", NodeCert: "node.pem", NodeKey: "node.key"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("fully-set TLS config should validate: %v", err)
	}

	cfg.TLS = &TLSConfig{}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty TLS config should validate: %v", err)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error loading a nonexistent config file")
	}
}

func TestLoadAppliesDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := []byte(`{"rootdir": "./custom", "keystore_path": "./custom/keystore.json"}`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCAddr != "127.0.0.1:8777" {
		t.Errorf("RPCAddr: got %q want default 127.0.0.1:8777", cfg.RPCAddr)
	}
	if cfg.TransactionExpiry != 7*24*time.Hour {
		t.Errorf("TransactionExpiry: got %v want default %v", cfg.TransactionExpiry, 7*24*time.Hour)
	}
}
