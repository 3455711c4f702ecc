// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

// Package server builds the MCP surface of the shim: every tool, resource
// and prompt, each a thin forwarder onto one gateway call with the tabular
// reply reshaped into records. No market logic lives here.
package server

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"futu-stock-mcp-server/internal/opend"
)

// serverName is the Implementation.Name advertised during initialize.
const serverName = "futu-stock-mcp-server"

// Gateway is the slice of the OpenD client the tools call. Tests substitute
// a fake; production passes *opend.Client.
type Gateway interface {
	GlobalState(ctx context.Context) (*opend.GlobalState, error)

	BasicQuotes(ctx context.Context, secs []opend.Security) ([]opend.BasicQuote, error)
	Snapshots(ctx context.Context, secs []opend.Security) ([]opend.Snapshot, error)
	CurKLines(ctx context.Context, sec opend.Security, klType opend.KLType, count int32) ([]opend.KLine, error)
	HistoryKLines(ctx context.Context, sec opend.Security, klType opend.KLType, begin, end string, maxCount int32) ([]opend.KLine, error)
	RTData(ctx context.Context, sec opend.Security) ([]opend.TimeShare, error)
	Tickers(ctx context.Context, sec opend.Security, count int32) ([]opend.Ticker, error)
	OrderBook(ctx context.Context, sec opend.Security, num int32) (*opend.OrderBookSides, error)
	BrokerQueue(ctx context.Context, sec opend.Security) (*opend.BrokerQueueSides, error)

	Subscribe(ctx context.Context, secs []opend.Security, subs []opend.SubType) error
	Unsubscribe(ctx context.Context, secs []opend.Security, subs []opend.SubType) error
	Subscriptions() []opend.Subscription

	StaticInfos(ctx context.Context, secs []opend.Security) ([]opend.StaticInfo, error)
	StaticInfosByMarket(ctx context.Context, market opend.Market, secType opend.SecurityType) ([]opend.StaticInfo, error)
	OptionChain(ctx context.Context, owner opend.Security, begin, end string, optType opend.OptionType) ([]opend.OptionChainDate, error)
	OptionExpirationDates(ctx context.Context, owner opend.Security) ([]opend.OptionExpiry, error)
	StockFilter(ctx context.Context, req *opend.StockFilterRequest) (*opend.StockFilterResult, error)

	AccountList(ctx context.Context) ([]opend.Account, error)
	Funds(ctx context.Context) (*opend.Funds, error)
	Positions(ctx context.Context) ([]opend.Position, error)
	MaxTrdQtys(ctx context.Context, sec opend.Security, price float64) (*opend.MaxTrdQtys, error)
	MarginRatio(ctx context.Context, secs []opend.Security) ([]opend.MarginRatioInfo, error)

	Status() opend.Status
}

var _ Gateway = (*opend.Client)(nil)

// Options tunes the MCP surface.
type Options struct {
	// TradingEnabled opens the account tools. When false they stay
	// registered but answer with an error, so the tool list is stable
	// either way.
	TradingEnabled bool

	// Version is reported during initialize; empty means "dev".
	Version string

	Logger zerolog.Logger
}

// Server carries the shared state behind every handler.
type Server struct {
	gw             Gateway
	tradingEnabled bool
	log            zerolog.Logger
}

// New assembles the complete MCP server over a gateway connection.
func New(gw Gateway, opts *Options) *mcp.Server {
	if opts == nil {
		opts = &Options{}
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	s := &Server{
		gw:             gw,
		tradingEnabled: opts.TradingEnabled,
		log:            opts.Logger.With().Str("component", "mcp").Logger(),
	}

	srv := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: version}, nil)
	srv.AddReceivingMiddleware(s.logMiddleware())

	s.registerMarketTools(srv)
	s.registerDerivativeTools(srv)
	s.registerAccountTools(srv)
	s.registerInfoTools(srv)
	s.registerResources(srv)
	s.registerPrompts(srv)
	return srv
}

// logMiddleware traces every inbound MCP request. Failures here are
// protocol-level ones; tool-level errors travel inside the result and are
// logged where they happen.
func (s *Server) logMiddleware() mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			evt := s.log.Debug()
			if err != nil {
				evt = s.log.Warn().Err(err)
			}
			evt.Str("method", method).Dur("elapsed", time.Since(start)).Msg("mcp request")
			return result, err
		}
	}
}
