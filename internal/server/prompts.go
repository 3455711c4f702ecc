// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (s *Server) registerPrompts(srv *mcp.Server) {
	srv.AddPrompt(&mcp.Prompt{
		Name:        "market_analysis",
		Description: "Analyze market data for a stock.",
		Arguments: []*mcp.PromptArgument{
			{Name: "symbol", Description: "Stock symbol, e.g. HK.00700", Required: true},
		},
	}, s.marketAnalysisPrompt)
	srv.AddPrompt(&mcp.Prompt{
		Name:        "option_strategy",
		Description: "Analyze option strategies for a stock at one expiry.",
		Arguments: []*mcp.PromptArgument{
			{Name: "symbol", Description: "Underlying stock symbol, e.g. HK.00700", Required: true},
			{Name: "expiry", Description: "Contract expiry date, yyyy-MM-dd", Required: true},
		},
	}, s.optionStrategyPrompt)
}

func promptArg(req *mcp.GetPromptRequest, name string) (string, error) {
	value := req.Params.Arguments[name]
	if value == "" {
		return "", fmt.Errorf("missing required argument %q", name)
	}
	return value, nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []*mcp.PromptMessage{
			{Role: "user", Content: &mcp.TextContent{Text: text}},
		},
	}
}

func (s *Server) marketAnalysisPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	symbol, err := promptArg(req, "symbol")
	if err != nil {
		return nil, err
	}
	return userPrompt(
		"Market analysis for "+symbol,
		fmt.Sprintf("Please analyze the market data for %s: current quote, recent klines, order book depth and market snapshot. Summarize the trend and notable activity.", symbol),
	), nil
}

func (s *Server) optionStrategyPrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	symbol, err := promptArg(req, "symbol")
	if err != nil {
		return nil, err
	}
	expiry, err := promptArg(req, "expiry")
	if err != nil {
		return nil, err
	}
	return userPrompt(
		"Option strategy analysis for "+symbol,
		fmt.Sprintf("Please analyze option strategies for %s expiring on %s: review the option chain, then evaluate an iron condor and a butterfly around the current price.", symbol, expiry),
	), nil
}
