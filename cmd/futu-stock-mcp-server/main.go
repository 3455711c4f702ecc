// Command futu-stock-mcp-server bridges a local Futu OpenD gateway to MCP
// clients. It serves the Model Context Protocol over stdio by default, or
// over streamable HTTP with --transport http.
//
// Run against an OpenD on the standard port:
//
//	futu-stock-mcp-server
//
// All diagnostics go to stderr and the log file; stdout carries MCP frames
// only.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"futu-stock-mcp-server/internal/config"
	"futu-stock-mcp-server/internal/logging"
	"futu-stock-mcp-server/internal/opend"
	"futu-stock-mcp-server/internal/proclock"
	"futu-stock-mcp-server/internal/server"
)

// Set by scripts/build.sh via -ldflags.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	envFile    string
	configFile string
	transport  string
	httpAddr   string
)

var rootCmd = &cobra.Command{
	Use:           "futu-stock-mcp-server",
	Short:         "MCP server exposing Futu OpenD market data, options and account state",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(*cobra.Command, []string) {
		fmt.Printf("futu-stock-mcp-server %s (commit %s, built %s)\n", version, commit, date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load environment from this file instead of ./.env")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&transport, "transport", "", "MCP transport: stdio or http (overrides FUTU_MCP_TRANSPORT)")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "http-addr", "", "listen address for the http transport (overrides FUTU_MCP_HTTP_ADDR)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "futu-stock-mcp-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	if err := loadEnvFile(); err != nil {
		return err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if transport != "" {
		cfg.Transport = transport
	}
	if httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closeLogs, err := logging.Setup(cfg)
	if err != nil {
		return err
	}
	defer closeLogs()

	lock, err := proclock.Acquire(cfg.LockFile)
	if err != nil {
		return err
	}
	defer lock.Release()

	logger.Info().
		Str("version", version).
		Str("transport", cfg.Transport).
		Str("gateway", cfg.Addr()).
		Bool("trading_enabled", cfg.EnableTrading).
		Msg("starting futu-stock-mcp-server")

	client, err := opend.Dial(ctx, opend.Options{
		Addr:           cfg.Addr(),
		DialTimeout:    cfg.DialTimeout(),
		RequestTimeout: cfg.RequestTimeout(),
		TrdEnv:         cfg.TrdEnvValue(),
		TrdMarket:      cfg.TrdMarketValue(),
		SecurityFirm:   cfg.SecurityFirmValue(),
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("connect to OpenD at %s: %w", cfg.Addr(), err)
	}
	defer client.Close()

	srv := server.New(client, &server.Options{
		TradingEnabled: cfg.EnableTrading,
		Version:        version,
		Logger:         logger,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Transport == config.TransportHTTP {
		return serveHTTP(ctx, srv, cfg.HTTPAddr, logger)
	}

	logger.Info().Msg("serving MCP over stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info().Msg("shutting down")
	return nil
}

// loadEnvFile loads --env-file when given, otherwise a ./.env if one exists.
func loadEnvFile() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("load .env: %w", err)
		}
	}
	return nil
}

func serveHTTP(ctx context.Context, srv *mcp.Server, addr string, logger zerolog.Logger) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)
	hs := &http.Server{Addr: addr, Handler: handler}

	errc := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", addr).Msg("serving MCP over http")
		errc <- hs.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
