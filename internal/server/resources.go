// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"futu-stock-mcp-server/internal/opend"
)

const (
	subscriptionsURI = "futu://subscriptions"
	gatewayURI       = "futu://gateway"
)

// Resources expose read-only server state. futu://subscriptions mirrors what
// this process last sent to the gateway, not what the gateway holds; other
// clients of the same gateway are invisible here.
func (s *Server) registerResources(srv *mcp.Server) {
	srv.AddResource(&mcp.Resource{
		URI:         subscriptionsURI,
		Name:        "subscriptions",
		Description: "Quote subscriptions established by this server, grouped by symbol.",
		MIMEType:    "application/json",
	}, s.readSubscriptions)
	srv.AddResource(&mcp.Resource{
		URI:         gatewayURI,
		Name:        "gateway",
		Description: "Connection state of the OpenD gateway link.",
		MIMEType:    "application/json",
	}, s.readGateway)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{
			{URI: uri, MIMEType: "application/json", Text: string(data)},
		},
	}, nil
}

func (s *Server) readSubscriptions(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	subs := s.gw.Subscriptions()
	if subs == nil {
		subs = []opend.Subscription{}
	}
	return jsonResource(req.Params.URI, struct {
		Subscriptions []opend.Subscription `json:"subscriptions"`
	}{subs})
}

func (s *Server) readGateway(_ context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return jsonResource(req.Params.URI, s.gw.Status())
}
