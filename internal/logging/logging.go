// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

// Package logging wires zerolog for a process whose stdout belongs to the
// MCP transport. Sinks are stderr (human-readable, optional) and a rotating
// JSON file; stdout is never written to.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"futu-stock-mcp-server/internal/config"
)

const logFileName = "futu-stock-mcp-server.log"

// Setup builds the process logger from the configuration. The returned
// close func flushes and closes the file sink.
func Setup(cfg *config.Config) (zerolog.Logger, func(), error) {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel)))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("logging: unknown level %q", cfg.LogLevel)
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.LogDir, logFileName),
		MaxSize:    100, // MiB per file
		MaxBackups: 10,
		MaxAge:     14, // days
		Compress:   true,
	}

	writers := []io.Writer{rotator}
	if cfg.LogConsole {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(level).
		With().
		Timestamp().
		Logger()

	closeFn := func() { _ = rotator.Close() }
	return logger, closeFn, nil
}
