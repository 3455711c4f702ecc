// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"futu-stock-mcp-server/internal/opend"
)

func (s *Server) registerDerivativeTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_option_chain",
		Description: "Get the option chain for an underlying stock, with expiries between two dates (yyyy-MM-dd).",
	}, s.getOptionChain)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_option_expiration_date",
		Description: "List the option expiration dates currently trading for an underlying stock.",
	}, s.getOptionExpirationDate)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_option_condor",
		Description: "Build an iron condor around a target strike from the option chain at one expiry: buy/sell puts below, sell/buy calls above.",
	}, s.getOptionCondor)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_option_butterfly",
		Description: "Build a call butterfly around a target strike from the option chain at one expiry: buy the wings, sell twice the body.",
	}, s.getOptionButterfly)
}

// -- get_option_chain ---------------------------------------------------------

type GetOptionChainInput struct {
	Symbol     string `json:"symbol" jsonschema:"underlying stock symbol, e.g. HK.00700"`
	Start      string `json:"start" jsonschema:"earliest expiry date, yyyy-MM-dd"`
	End        string `json:"end" jsonschema:"latest expiry date, yyyy-MM-dd"`
	OptionType string `json:"option_type,omitempty" jsonschema:"CALL, PUT or ALL (default ALL)"`
}

type OptionContract struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	OptionType  string  `json:"option_type"`
	StrikeTime  string  `json:"strike_time"`
	StrikePrice float64 `json:"strike_price"`
	LotSize     int32   `json:"lot_size"`
	Suspend     bool    `json:"suspend"`
}

type GetOptionChainOutput struct {
	OptionChain []OptionContract `json:"option_chain"`
}

func optionContract(info *opend.StaticInfo) (OptionContract, bool) {
	if info == nil || info.OptionExData == nil {
		return OptionContract{}, false
	}
	return OptionContract{
		Symbol:      info.Basic.Security.String(),
		Name:        info.Basic.Name,
		OptionType:  opend.OptionType(info.OptionExData.Type).String(),
		StrikeTime:  info.OptionExData.StrikeTime,
		StrikePrice: info.OptionExData.StrikePrice,
		LotSize:     info.Basic.LotSize,
		Suspend:     info.OptionExData.Suspend,
	}, true
}

func (s *Server) getOptionChain(ctx context.Context, _ *mcp.CallToolRequest, in GetOptionChainInput) (*mcp.CallToolResult, GetOptionChainOutput, error) {
	owner, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetOptionChainOutput{}, err
	}
	optType, err := opend.ParseOptionType(in.OptionType)
	if err != nil {
		return nil, GetOptionChainOutput{}, err
	}
	if in.Start == "" || in.End == "" {
		return nil, GetOptionChainOutput{}, fmt.Errorf("start and end dates are required (yyyy-MM-dd)")
	}
	dates, err := s.gw.OptionChain(ctx, owner, in.Start, in.End, optType)
	if err != nil {
		return nil, GetOptionChainOutput{}, err
	}

	var out GetOptionChainOutput
	for _, d := range dates {
		for _, pair := range d.Option {
			if c, ok := optionContract(pair.Call); ok {
				out.OptionChain = append(out.OptionChain, c)
			}
			if p, ok := optionContract(pair.Put); ok {
				out.OptionChain = append(out.OptionChain, p)
			}
		}
	}
	return nil, out, nil
}

// -- get_option_expiration_date -----------------------------------------------

type GetOptionExpirationDateInput struct {
	Symbol string `json:"symbol" jsonschema:"underlying stock symbol, e.g. HK.00700"`
}

type ExpirationDate struct {
	StrikeTime   string `json:"strike_time"`
	DaysToExpiry int32  `json:"option_expiry_date_distance"`
}

type GetOptionExpirationDateOutput struct {
	ExpirationDateList []ExpirationDate `json:"expiration_date_list"`
}

func (s *Server) getOptionExpirationDate(ctx context.Context, _ *mcp.CallToolRequest, in GetOptionExpirationDateInput) (*mcp.CallToolResult, GetOptionExpirationDateOutput, error) {
	owner, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetOptionExpirationDateOutput{}, err
	}
	rows, err := s.gw.OptionExpirationDates(ctx, owner)
	if err != nil {
		return nil, GetOptionExpirationDateOutput{}, err
	}
	out := GetOptionExpirationDateOutput{ExpirationDateList: make([]ExpirationDate, 0, len(rows))}
	for _, r := range rows {
		out.ExpirationDateList = append(out.ExpirationDateList, ExpirationDate{
			StrikeTime:   r.StrikeTime,
			DaysToExpiry: r.OptionExpiryDateDistance,
		})
	}
	return nil, out, nil
}

// -- get_option_condor / get_option_butterfly ---------------------------------

type GetOptionStrategyInput struct {
	Symbol      string  `json:"symbol" jsonschema:"underlying stock symbol, e.g. HK.00700"`
	Expiry      string  `json:"expiry" jsonschema:"contract expiry date, yyyy-MM-dd"`
	StrikePrice float64 `json:"strike_price" jsonschema:"target strike the strategy centers on"`
}

type StrategyLeg struct {
	Action      string  `json:"action"`
	Quantity    int32   `json:"quantity"`
	OptionType  string  `json:"option_type"`
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name,omitempty"`
	StrikePrice float64 `json:"strike_price"`
}

type OptionStrategyOutput struct {
	Strategy   string        `json:"strategy"`
	Underlying string        `json:"underlying"`
	Expiry     string        `json:"expiry"`
	Legs       []StrategyLeg `json:"legs"`
}

// chainStrike is one strike row of a single-expiry chain.
type chainStrike struct {
	price float64
	call  *opend.StaticInfo
	put   *opend.StaticInfo
}

// strikesAt fetches the chain for exactly one expiry and folds it into
// strike rows sorted by price.
func (s *Server) strikesAt(ctx context.Context, owner opend.Security, expiry string) ([]chainStrike, error) {
	dates, err := s.gw.OptionChain(ctx, owner, expiry, expiry, opend.OptionTypeAll)
	if err != nil {
		return nil, err
	}
	byPrice := make(map[float64]*chainStrike)
	for _, d := range dates {
		for _, pair := range d.Option {
			price, ok := pairStrike(pair)
			if !ok {
				continue
			}
			row := byPrice[price]
			if row == nil {
				row = &chainStrike{price: price}
				byPrice[price] = row
			}
			if pair.Call != nil && pair.Call.OptionExData != nil {
				row.call = pair.Call
			}
			if pair.Put != nil && pair.Put.OptionExData != nil {
				row.put = pair.Put
			}
		}
	}
	if len(byPrice) == 0 {
		return nil, fmt.Errorf("no option contracts for %s expiring %s", owner, expiry)
	}
	out := make([]chainStrike, 0, len(byPrice))
	for _, row := range byPrice {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].price < out[j].price })
	return out, nil
}

func pairStrike(pair opend.OptionPair) (float64, bool) {
	if pair.Call != nil && pair.Call.OptionExData != nil {
		return pair.Call.OptionExData.StrikePrice, true
	}
	if pair.Put != nil && pair.Put.OptionExData != nil {
		return pair.Put.OptionExData.StrikePrice, true
	}
	return 0, false
}

func leg(action string, qty int32, info *opend.StaticInfo) StrategyLeg {
	return StrategyLeg{
		Action:      action,
		Quantity:    qty,
		OptionType:  opend.OptionType(info.OptionExData.Type).String(),
		Symbol:      info.Basic.Security.String(),
		Name:        info.Basic.Name,
		StrikePrice: info.OptionExData.StrikePrice,
	}
}

// getOptionCondor builds an iron condor: long put at the lower wing, short
// put below the target, short call above it, long call at the upper wing.
func (s *Server) getOptionCondor(ctx context.Context, _ *mcp.CallToolRequest, in GetOptionStrategyInput) (*mcp.CallToolResult, OptionStrategyOutput, error) {
	owner, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, OptionStrategyOutput{}, err
	}
	strikes, err := s.strikesAt(ctx, owner, in.Expiry)
	if err != nil {
		return nil, OptionStrategyOutput{}, err
	}

	var below, above []chainStrike
	for _, row := range strikes {
		switch {
		case row.price < in.StrikePrice && row.put != nil:
			below = append(below, row)
		case row.price > in.StrikePrice && row.call != nil:
			above = append(above, row)
		}
	}
	if len(below) < 2 {
		return nil, OptionStrategyOutput{}, fmt.Errorf("need two put strikes below %.2f for %s expiring %s, found %d", in.StrikePrice, owner, in.Expiry, len(below))
	}
	if len(above) < 2 {
		return nil, OptionStrategyOutput{}, fmt.Errorf("need two call strikes above %.2f for %s expiring %s, found %d", in.StrikePrice, owner, in.Expiry, len(above))
	}

	lowerWing, lowerBody := below[len(below)-2], below[len(below)-1]
	upperBody, upperWing := above[0], above[1]

	return nil, OptionStrategyOutput{
		Strategy:   "iron_condor",
		Underlying: owner.String(),
		Expiry:     in.Expiry,
		Legs: []StrategyLeg{
			leg("BUY", 1, lowerWing.put),
			leg("SELL", 1, lowerBody.put),
			leg("SELL", 1, upperBody.call),
			leg("BUY", 1, upperWing.call),
		},
	}, nil
}

// getOptionButterfly builds a call butterfly: long wings one strike out on
// each side, short twice the strike nearest the target.
func (s *Server) getOptionButterfly(ctx context.Context, _ *mcp.CallToolRequest, in GetOptionStrategyInput) (*mcp.CallToolResult, OptionStrategyOutput, error) {
	owner, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, OptionStrategyOutput{}, err
	}
	strikes, err := s.strikesAt(ctx, owner, in.Expiry)
	if err != nil {
		return nil, OptionStrategyOutput{}, err
	}

	withCalls := strikes[:0:0]
	for _, row := range strikes {
		if row.call != nil {
			withCalls = append(withCalls, row)
		}
	}
	if len(withCalls) < 3 {
		return nil, OptionStrategyOutput{}, fmt.Errorf("need three call strikes for %s expiring %s, found %d", owner, in.Expiry, len(withCalls))
	}

	body := 0
	for i := 1; i < len(withCalls); i++ {
		if abs(withCalls[i].price-in.StrikePrice) < abs(withCalls[body].price-in.StrikePrice) {
			body = i
		}
	}
	if body == 0 {
		body = 1
	}
	if body == len(withCalls)-1 {
		body = len(withCalls) - 2
	}
	lower, mid, upper := withCalls[body-1], withCalls[body], withCalls[body+1]

	return nil, OptionStrategyOutput{
		Strategy:   "butterfly",
		Underlying: owner.String(),
		Expiry:     in.Expiry,
		Legs: []StrategyLeg{
			leg("BUY", 1, lower.call),
			leg("SELL", 2, mid.call),
			leg("BUY", 1, upper.call),
		},
	}, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
