// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futu-stock-mcp-server/internal/config"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	cfg.LogConsole = false
	cfg.LogLevel = "debug"

	logger, closeFn, err := Setup(cfg)
	require.NoError(t, err)
	defer closeFn()

	logger.Info().Str("conn_id", "7722").Msg("connected to gateway")

	raw, err := os.ReadFile(filepath.Join(cfg.LogDir, logFileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"connected to gateway"`)
	assert.Contains(t, string(raw), `"conn_id":"7722"`)
	assert.Contains(t, string(raw), `"level":"info"`)
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	cfg.LogConsole = false
	cfg.LogLevel = "WARN" // case and padding must not matter

	logger, closeFn, err := Setup(cfg)
	require.NoError(t, err)
	defer closeFn()

	logger.Debug().Msg("chatter")
	logger.Warn().Msg("keep-alive failed")

	raw, err := os.ReadFile(filepath.Join(cfg.LogDir, logFileName))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "chatter")
	assert.Contains(t, string(raw), "keep-alive failed")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	cfg := config.Default()
	cfg.LogDir = t.TempDir()
	cfg.LogLevel = "loud"

	_, _, err := Setup(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown level "loud"`)
}
