// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config defines node parameters and their validation. Everything
// tunable is a plain struct passed into the store at init.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Validation errors.
var (
	ErrInvalidLedgerDepth    = errors.New("ledger depth must be between 1 and 35")
	ErrInvalidMaxPeers       = errors.New("max peers must be >= 1")
	ErrInvalidRPCTimeout     = errors.New("rpc timeout must be >= 1ms")
	ErrInvalidWorkerStartCap = errors.New("snark worker start timeout must be >= 1s")
	ErrMissingSignalingURL   = errors.New("webrtc transport requires a signaling url")
)

// P2PConfig tunes the dispatcher.
type P2PConfig struct {
	ListenAddrs      []string      `yaml:"listen_addrs"`
	SeedAddrs        []string      `yaml:"seed_addrs"`
	SignalingURL     string        `yaml:"signaling_url"`
	EnableWebRTC     bool          `yaml:"enable_webrtc"`
	MaxPeers         int           `yaml:"max_peers"`
	MaxRemoteRPCs    int           `yaml:"max_remote_rpcs"`
	RPCTimeout       time.Duration `yaml:"rpc_timeout"`
	ReconnectMinWait time.Duration `yaml:"reconnect_min_wait"`
}

// SnarkerConfig enables the local snark worker when PublicKey is set.
type SnarkerConfig struct {
	PublicKey    string        `yaml:"public_key"`
	Fee          uint64        `yaml:"fee"`
	WorkerPath   string        `yaml:"worker_path"`
	Strategy     string        `yaml:"strategy"` // sequential | random
	StartTimeout time.Duration `yaml:"start_timeout"`
}

// HTTPConfig tunes the health/readiness surface.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	HealthzInterval time.Duration `yaml:"healthz_interval"`
	ReadyzTimeout   time.Duration `yaml:"readyz_timeout"`
	ReadyMinPeers   int           `yaml:"ready_min_peers"`
}

// Config is the whole node configuration.
type Config struct {
	Constraints ConstraintConstants `yaml:"constraints"`
	P2P         P2PConfig           `yaml:"p2p"`
	Snarker     SnarkerConfig       `yaml:"snarker"`
	HTTP        HTTPConfig          `yaml:"http"`

	GenesisStateHash  string `yaml:"genesis_state_hash"`
	GenesisLedgerHash string `yaml:"genesis_ledger_hash"`
}

// Default returns a configuration that passes Validate.
func Default() Config {
	return Config{
		Constraints: DefaultConstraintConstants(),
		P2P: P2PConfig{
			MaxPeers:         100,
			MaxRemoteRPCs:    5,
			RPCTimeout:       30 * time.Second,
			ReconnectMinWait: 10 * time.Second,
		},
		Snarker: SnarkerConfig{
			Strategy:     "sequential",
			StartTimeout: 120 * time.Second,
		},
		HTTP: HTTPConfig{
			Addr:            ":3000",
			HealthzInterval: 60 * time.Second,
			ReadyzTimeout:   20 * time.Minute,
			ReadyMinPeers:   1,
		},
	}
}

// Validate refuses configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.Constraints.LedgerDepth == 0 || c.Constraints.LedgerDepth > 35 {
		return ErrInvalidLedgerDepth
	}
	if c.P2P.MaxPeers < 1 {
		return ErrInvalidMaxPeers
	}
	if c.P2P.RPCTimeout < time.Millisecond {
		return ErrInvalidRPCTimeout
	}
	if c.P2P.EnableWebRTC && c.P2P.SignalingURL == "" {
		return ErrMissingSignalingURL
	}
	if c.Snarker.PublicKey != "" && c.Snarker.StartTimeout < time.Second {
		return ErrInvalidWorkerStartCap
	}
	return nil
}

// Load reads a YAML config file over Default values and validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
