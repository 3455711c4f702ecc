// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"futu-stock-mcp-server/internal/opend"
)

// Account tools are always listed so that clients see a stable catalog, but
// every call fails fast until trading is switched on.
func (s *Server) registerAccountTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_account_list",
		Description: "List the trading accounts visible to the gateway.",
	}, s.getAccountList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_funds",
		Description: "Get funds for the active trading account: cash, assets, buying power.",
	}, s.getFunds)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_positions",
		Description: "List open positions for the active trading account.",
	}, s.getPositions)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_max_power",
		Description: "Get the maximum tradable quantities for a security at a given price.",
	}, s.getMaxPower)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_margin_ratio",
		Description: "Get margin ratio details for a security.",
	}, s.getMarginRatio)
}

func (s *Server) requireTrading() error {
	if !s.tradingEnabled {
		return fmt.Errorf("trading functionality is disabled (set FUTU_ENABLE_TRADING=1 to enable)")
	}
	return nil
}

// -- get_account_list ---------------------------------------------------------

type GetAccountListInput struct{}

type AccountRecord struct {
	AccID        uint64 `json:"acc_id"`
	TrdEnv       string `json:"trd_env"`
	AccType      int32  `json:"acc_type"`
	CardNum      string `json:"card_num,omitempty"`
	SecurityFirm int32  `json:"security_firm"`
	SimAccType   int32  `json:"sim_acc_type,omitempty"`
}

type GetAccountListOutput struct {
	AccountList []AccountRecord `json:"account_list"`
}

func (s *Server) getAccountList(ctx context.Context, _ *mcp.CallToolRequest, _ GetAccountListInput) (*mcp.CallToolResult, GetAccountListOutput, error) {
	if err := s.requireTrading(); err != nil {
		return nil, GetAccountListOutput{}, err
	}
	accounts, err := s.gw.AccountList(ctx)
	if err != nil {
		return nil, GetAccountListOutput{}, err
	}
	out := GetAccountListOutput{AccountList: make([]AccountRecord, 0, len(accounts))}
	for _, acc := range accounts {
		out.AccountList = append(out.AccountList, AccountRecord{
			AccID:        acc.AccID,
			TrdEnv:       opend.TrdEnv(acc.TrdEnv).String(),
			AccType:      acc.AccType,
			CardNum:      acc.CardNum,
			SecurityFirm: acc.SecurityFirm,
			SimAccType:   acc.SimAccType,
		})
	}
	return nil, out, nil
}

// -- get_funds ----------------------------------------------------------------

type GetFundsInput struct{}

type FundsRecord struct {
	Power             float64 `json:"power"`
	TotalAssets       float64 `json:"total_assets"`
	Cash              float64 `json:"cash"`
	MarketVal         float64 `json:"market_val"`
	FrozenCash        float64 `json:"frozen_cash"`
	DebtCash          float64 `json:"debt_cash"`
	AvlWithdrawalCash float64 `json:"avl_withdrawal_cash"`
	Currency          int32   `json:"currency,omitempty"`
	AvailableFunds    float64 `json:"available_funds,omitempty"`
	UnrealizedPL      float64 `json:"unrealized_pl,omitempty"`
	RealizedPL        float64 `json:"realized_pl,omitempty"`
	MaxPowerShort     float64 `json:"max_power_short,omitempty"`
	NetCashPower      float64 `json:"net_cash_power,omitempty"`
}

type GetFundsOutput struct {
	Funds FundsRecord `json:"funds"`
}

func (s *Server) getFunds(ctx context.Context, _ *mcp.CallToolRequest, _ GetFundsInput) (*mcp.CallToolResult, GetFundsOutput, error) {
	if err := s.requireTrading(); err != nil {
		return nil, GetFundsOutput{}, err
	}
	funds, err := s.gw.Funds(ctx)
	if err != nil {
		return nil, GetFundsOutput{}, err
	}
	return nil, GetFundsOutput{Funds: FundsRecord{
		Power:             funds.Power,
		TotalAssets:       funds.TotalAssets,
		Cash:              funds.Cash,
		MarketVal:         funds.MarketVal,
		FrozenCash:        funds.FrozenCash,
		DebtCash:          funds.DebtCash,
		AvlWithdrawalCash: funds.AvlWithdrawalCash,
		Currency:          funds.Currency,
		AvailableFunds:    funds.AvailableFunds,
		UnrealizedPL:      funds.UnrealizedPL,
		RealizedPL:        funds.RealizedPL,
		MaxPowerShort:     funds.MaxPowerShort,
		NetCashPower:      funds.NetCashPower,
	}}, nil
}

// -- get_positions ------------------------------------------------------------

type GetPositionsInput struct{}

type PositionRecord struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Qty          float64 `json:"qty"`
	CanSellQty   float64 `json:"can_sell_qty"`
	Price        float64 `json:"price"`
	CostPrice    float64 `json:"cost_price,omitempty"`
	Val          float64 `json:"val"`
	PLVal        float64 `json:"pl_val"`
	PLRatio      float64 `json:"pl_ratio,omitempty"`
	UnrealizedPL float64 `json:"unrealized_pl,omitempty"`
	RealizedPL   float64 `json:"realized_pl,omitempty"`
	PositionSide int32   `json:"position_side"`
}

type GetPositionsOutput struct {
	PositionList []PositionRecord `json:"position_list"`
}

func (s *Server) getPositions(ctx context.Context, _ *mcp.CallToolRequest, _ GetPositionsInput) (*mcp.CallToolResult, GetPositionsOutput, error) {
	if err := s.requireTrading(); err != nil {
		return nil, GetPositionsOutput{}, err
	}
	positions, err := s.gw.Positions(ctx)
	if err != nil {
		return nil, GetPositionsOutput{}, err
	}
	out := GetPositionsOutput{PositionList: make([]PositionRecord, 0, len(positions))}
	for _, p := range positions {
		out.PositionList = append(out.PositionList, PositionRecord{
			Symbol:       positionSymbol(p),
			Name:         p.Name,
			Qty:          p.Qty,
			CanSellQty:   p.CanSellQty,
			Price:        p.Price,
			CostPrice:    p.CostPrice,
			Val:          p.Val,
			PLVal:        p.PLVal,
			PLRatio:      p.PLRatio,
			UnrealizedPL: p.UnrealizedPL,
			RealizedPL:   p.RealizedPL,
			PositionSide: p.PositionSide,
		})
	}
	return nil, out, nil
}

// positionSymbol renders a position's market and code like a quote symbol.
// Positions carry trade-market numbering, which matches quote numbering for
// HK but not the others, so map the few known values by hand.
func positionSymbol(p opend.Position) string {
	switch p.SecMarket {
	case 1:
		return "HK." + p.Code
	case 2:
		return "US." + p.Code
	case 31:
		return "SH." + p.Code
	case 32:
		return "SZ." + p.Code
	}
	return p.Code
}

// -- get_max_power ------------------------------------------------------------

type GetMaxPowerInput struct {
	Symbol string  `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
	Price  float64 `json:"price" jsonschema:"intended order price"`
}

type GetMaxPowerOutput struct {
	MaxCashBuy       float64 `json:"max_cash_buy"`
	MaxCashAndMargin float64 `json:"max_cash_and_margin_buy,omitempty"`
	MaxPositionSell  float64 `json:"max_position_sell"`
	MaxSellShort     float64 `json:"max_sell_short,omitempty"`
	MaxBuyBack       float64 `json:"max_buy_back,omitempty"`
	LongRequiredIM   float64 `json:"long_required_im,omitempty"`
	ShortRequiredIM  float64 `json:"short_required_im,omitempty"`
}

func (s *Server) getMaxPower(ctx context.Context, _ *mcp.CallToolRequest, in GetMaxPowerInput) (*mcp.CallToolResult, GetMaxPowerOutput, error) {
	if err := s.requireTrading(); err != nil {
		return nil, GetMaxPowerOutput{}, err
	}
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetMaxPowerOutput{}, err
	}
	if in.Price <= 0 {
		return nil, GetMaxPowerOutput{}, fmt.Errorf("price must be positive, got %v", in.Price)
	}
	qtys, err := s.gw.MaxTrdQtys(ctx, sec, in.Price)
	if err != nil {
		return nil, GetMaxPowerOutput{}, err
	}
	return nil, GetMaxPowerOutput{
		MaxCashBuy:       qtys.MaxCashBuy,
		MaxCashAndMargin: qtys.MaxCashAndMarginBuy,
		MaxPositionSell:  qtys.MaxPositionSell,
		MaxSellShort:     qtys.MaxSellShort,
		MaxBuyBack:       qtys.MaxBuyBack,
		LongRequiredIM:   qtys.LongRequiredIM,
		ShortRequiredIM:  qtys.ShortRequiredIM,
	}, nil
}

// -- get_margin_ratio ---------------------------------------------------------

type GetMarginRatioInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
}

type MarginRatioRecord struct {
	Symbol          string  `json:"symbol"`
	IsLongPermit    bool    `json:"is_long_permit"`
	IsShortPermit   bool    `json:"is_short_permit"`
	ShortPoolRemain float64 `json:"short_pool_remain,omitempty"`
	ShortFeeRate    float64 `json:"short_fee_rate,omitempty"`
	AlertLongRatio  float64 `json:"alert_long_ratio,omitempty"`
	AlertShortRatio float64 `json:"alert_short_ratio,omitempty"`
	IMLongRatio     float64 `json:"im_long_ratio,omitempty"`
	IMShortRatio    float64 `json:"im_short_ratio,omitempty"`
	MCMLongRatio    float64 `json:"mcm_long_ratio,omitempty"`
	MCMShortRatio   float64 `json:"mcm_short_ratio,omitempty"`
	MMLongRatio     float64 `json:"mm_long_ratio,omitempty"`
	MMShortRatio    float64 `json:"mm_short_ratio,omitempty"`
}

type GetMarginRatioOutput struct {
	MarginRatioList []MarginRatioRecord `json:"margin_ratio_list"`
}

func (s *Server) getMarginRatio(ctx context.Context, _ *mcp.CallToolRequest, in GetMarginRatioInput) (*mcp.CallToolResult, GetMarginRatioOutput, error) {
	if err := s.requireTrading(); err != nil {
		return nil, GetMarginRatioOutput{}, err
	}
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetMarginRatioOutput{}, err
	}
	rows, err := s.gw.MarginRatio(ctx, []opend.Security{sec})
	if err != nil {
		return nil, GetMarginRatioOutput{}, err
	}
	out := GetMarginRatioOutput{MarginRatioList: make([]MarginRatioRecord, 0, len(rows))}
	for _, r := range rows {
		out.MarginRatioList = append(out.MarginRatioList, MarginRatioRecord{
			Symbol:          r.Security.String(),
			IsLongPermit:    r.IsLongPermit,
			IsShortPermit:   r.IsShortPermit,
			ShortPoolRemain: r.ShortPoolRemain,
			ShortFeeRate:    r.ShortFeeRate,
			AlertLongRatio:  r.AlertLongRatio,
			AlertShortRatio: r.AlertShortRatio,
			IMLongRatio:     r.IMLongRatio,
			IMShortRatio:    r.IMShortRatio,
			MCMLongRatio:    r.MCMLongRatio,
			MCMShortRatio:   r.MCMShortRatio,
			MMLongRatio:     r.MMLongRatio,
			MMShortRatio:    r.MMShortRatio,
		})
	}
	return nil, out, nil
}
