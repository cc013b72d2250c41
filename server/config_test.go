// File: server/config_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/momentics/frameloop/server"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := server.DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*server.Config)
	}{
		{"empty addr", func(c *server.Config) { c.Addr = "" }},
		{"zero max conns", func(c *server.Config) { c.MaxConns = 0 }},
		{"negative max conns", func(c *server.Config) { c.MaxConns = -1 }},
		{"read buffer below header", func(c *server.Config) { c.ReadBufferSize = 4 }},
		{"write buffer below header", func(c *server.Config) { c.WriteBufferSize = 3 }},
		{"zero read timeout", func(c *server.Config) { c.ReadTimeout = 0 }},
		{"negative workers", func(c *server.Config) { c.Workers = -2 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := server.DefaultConfig()
			tc.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfigValidateFillsDefaults(t *testing.T) {
	cfg := server.DefaultConfig()
	cfg.MaxEvents = 0
	cfg.Backlog = -1
	cfg.ReadTimeout = 30 * time.Second
	require.NoError(t, cfg.Validate())
	require.Equal(t, 128, cfg.MaxEvents)
	require.Equal(t, 1024, cfg.Backlog)
}
