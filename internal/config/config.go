// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

// Package config resolves the server configuration. Precedence, lowest to
// highest: built-in defaults, an optional YAML file, FUTU_* environment
// variables (a .env file loaded by the entrypoint lands in the environment
// before this package reads it).
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"futu-stock-mcp-server/internal/opend"
)

// Config is the resolved server configuration.
type Config struct {
	// Gateway connection.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// Trading gate and account selection.
	EnableTrading bool   `yaml:"enable_trading"`
	TradeEnv      string `yaml:"trade_env"`
	TrdMarket     string `yaml:"trd_market"`
	SecurityFirm  string `yaml:"security_firm"`

	// Logging. Console output goes to stderr; stdout belongs to the MCP
	// transport.
	LogLevel   string `yaml:"log_level"`
	LogDir     string `yaml:"log_dir"`
	LogConsole bool   `yaml:"log_console"`

	// MCP transport: "stdio" or "http".
	Transport string `yaml:"transport"`
	HTTPAddr  string `yaml:"http_addr"`

	DialTimeoutSec    int `yaml:"dial_timeout_sec"`
	RequestTimeoutSec int `yaml:"request_timeout_sec"`

	LockFile string `yaml:"lock_file"`

	trdEnv    opend.TrdEnv
	trdMarket opend.TrdMarket
	firm      opend.SecurityFirm
}

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Default returns the configuration used when nothing is set: a local OpenD
// on the standard port, trading disabled, simulated environment.
func Default() *Config {
	return &Config{
		Host:              "127.0.0.1",
		Port:              11111,
		EnableTrading:     false,
		TradeEnv:          "SIMULATE",
		TrdMarket:         "HK",
		SecurityFirm:      "FUTUSECURITIES",
		LogLevel:          "info",
		LogDir:            "logs",
		LogConsole:        true,
		Transport:         TransportStdio,
		HTTPAddr:          "127.0.0.1:8080",
		DialTimeoutSec:    10,
		RequestTimeoutSec: 30,
		LockFile:          filepath.Join(os.TempDir(), "futu-stock-mcp-server.lock"),
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// yamlPath (empty skips it), and the environment, then validates it.
func Load(yamlPath string) (*Config, error) {
	cfg := Default()

	if yamlPath != "" {
		raw, err := os.ReadFile(yamlPath)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type envMapping struct {
	key   string
	apply func(value string) error
}

func (c *Config) envMappings() []envMapping {
	return []envMapping{
		{"FUTU_HOST", func(v string) error { c.Host = v; return nil }},
		{"FUTU_PORT", intSetter(&c.Port)},
		{"FUTU_ENABLE_TRADING", boolSetter(&c.EnableTrading)},
		{"FUTU_TRADE_ENV", func(v string) error { c.TradeEnv = v; return nil }},
		{"FUTU_TRD_MARKET", func(v string) error { c.TrdMarket = v; return nil }},
		{"FUTU_SECURITY_FIRM", func(v string) error { c.SecurityFirm = v; return nil }},
		{"FUTU_LOG_LEVEL", func(v string) error { c.LogLevel = v; return nil }},
		{"FUTU_LOG_DIR", func(v string) error { c.LogDir = v; return nil }},
		{"FUTU_LOG_CONSOLE", boolSetter(&c.LogConsole)},
		{"FUTU_MCP_TRANSPORT", func(v string) error { c.Transport = v; return nil }},
		{"FUTU_MCP_HTTP_ADDR", func(v string) error { c.HTTPAddr = v; return nil }},
		{"FUTU_DIAL_TIMEOUT_SEC", intSetter(&c.DialTimeoutSec)},
		{"FUTU_REQUEST_TIMEOUT_SEC", intSetter(&c.RequestTimeoutSec)},
		{"FUTU_LOCK_FILE", func(v string) error { c.LockFile = v; return nil }},
	}
}

func (c *Config) applyEnv() error {
	for _, m := range c.envMappings() {
		v, ok := os.LookupEnv(m.key)
		if !ok || v == "" {
			continue
		}
		if err := m.apply(v); err != nil {
			return fmt.Errorf("config: %s: %w", m.key, err)
		}
	}
	return nil
}

func intSetter(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*dst = n
		return nil
	}
}

func boolSetter(dst *bool) func(string) error {
	return func(v string) error {
		// The original accepted 0/1; keep that alongside Go's spellings.
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("not a boolean: %q", v)
		}
		*dst = b
		return nil
	}
}

// Validate checks ranges and resolves the enum strings. It must pass before
// the typed getters are used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Host) == "" {
		return fmt.Errorf("config: host must not be empty")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Port)
	}
	if c.DialTimeoutSec <= 0 {
		return fmt.Errorf("config: dial timeout must be positive, got %d", c.DialTimeoutSec)
	}
	if c.RequestTimeoutSec <= 0 {
		return fmt.Errorf("config: request timeout must be positive, got %d", c.RequestTimeoutSec)
	}

	switch c.Transport {
	case TransportStdio:
	case TransportHTTP:
		if strings.TrimSpace(c.HTTPAddr) == "" {
			return fmt.Errorf("config: http transport needs a listen address")
		}
	default:
		return fmt.Errorf("config: unknown transport %q (want %s or %s)", c.Transport, TransportStdio, TransportHTTP)
	}

	var err error
	if c.trdEnv, err = opend.ParseTrdEnv(c.TradeEnv); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.trdMarket, err = opend.ParseTrdMarket(c.TrdMarket); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.firm, err = opend.ParseSecurityFirm(c.SecurityFirm); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Addr is the gateway host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.DialTimeoutSec) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSec) * time.Second
}

// TrdEnvValue returns the parsed trade environment. Valid after Validate.
func (c *Config) TrdEnvValue() opend.TrdEnv { return c.trdEnv }

// TrdMarketValue returns the parsed trade market. Valid after Validate.
func (c *Config) TrdMarketValue() opend.TrdMarket { return c.trdMarket }

// SecurityFirmValue returns the parsed security firm. Valid after Validate.
func (c *Config) SecurityFirmValue() opend.SecurityFirm { return c.firm }
