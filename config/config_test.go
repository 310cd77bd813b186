// Copyright (C) 2023-2025, Openmina Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require := require.New(t)

	cfg := Default()
	require.NoError(cfg.Validate())
	require.Equal(uint64(35), cfg.Constraints.LedgerDepth)
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{
			name:   "zero ledger depth",
			mutate: func(c *Config) { c.Constraints.LedgerDepth = 0 },
			err:    ErrInvalidLedgerDepth,
		},
		{
			name:   "ledger depth too large",
			mutate: func(c *Config) { c.Constraints.LedgerDepth = 36 },
			err:    ErrInvalidLedgerDepth,
		},
		{
			name:   "no peers",
			mutate: func(c *Config) { c.P2P.MaxPeers = 0 },
			err:    ErrInvalidMaxPeers,
		},
		{
			name:   "webrtc without signaling",
			mutate: func(c *Config) { c.P2P.EnableWebRTC = true },
			err:    ErrMissingSignalingURL,
		},
		{
			name: "snarker with no start cap",
			mutate: func(c *Config) {
				c.Snarker.PublicKey = "B62qpubkey"
				c.Snarker.StartTimeout = 0
			},
			err: ErrInvalidWorkerStartCap,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorIs(t, cfg.Validate(), tt.err)
		})
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "node.yaml")
	require.NoError(os.WriteFile(path, []byte(`
p2p:
  max_peers: 7
  seed_addrs: ["/ip4/127.0.0.1/tcp/8302/p2p/12D3KooW"]
http:
  ready_min_peers: 3
`), 0o600))

	cfg, err := Load(path)
	require.NoError(err)
	require.Equal(7, cfg.P2P.MaxPeers)
	require.Equal(3, cfg.HTTP.ReadyMinPeers)
	// untouched defaults survive
	require.Equal(5, cfg.P2P.MaxRemoteRPCs)
}

func TestLoadMissingFile(t *testing.T) {
	require := require.New(t)

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(err)
}
