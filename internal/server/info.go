// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"futu-stock-mcp-server/internal/opend"
)

const (
	defaultFilterPageSize = 200
	maxFilterPageSize     = 200
)

func (s *Server) registerInfoTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_market_state",
		Description: "Get the trading state of a market (HK, US, SH or SZ) together with the gateway's login state.",
	}, s.getMarketState)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_security_info",
		Description: "Get static information for securities: name, lot size, type, listing date.",
	}, s.getSecurityInfo)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_security_list",
		Description: "List every security of one type in a market.",
	}, s.getSecurityList)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_stock_filter",
		Description: "Screen stocks in a market by quote, accumulated and financial conditions, one page at a time.",
	}, s.getStockFilter)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_current_time",
		Description: "Get the server's current local time.",
	}, s.getCurrentTime)
}

// -- get_market_state ---------------------------------------------------------

type GetMarketStateInput struct {
	Market string `json:"market" jsonschema:"market name: HK, US, SH or SZ"`
}

type GetMarketStateOutput struct {
	Market      string `json:"market"`
	MarketState string `json:"market_state"`
	QotLogined  bool   `json:"qot_logined"`
	TrdLogined  bool   `json:"trd_logined"`
	ServerVer   int32  `json:"server_ver"`
	Time        int64  `json:"time"`
}

func (s *Server) getMarketState(ctx context.Context, _ *mcp.CallToolRequest, in GetMarketStateInput) (*mcp.CallToolResult, GetMarketStateOutput, error) {
	market, err := opend.ParseMarket(in.Market)
	if err != nil {
		return nil, GetMarketStateOutput{}, err
	}
	state, err := s.gw.GlobalState(ctx)
	if err != nil {
		return nil, GetMarketStateOutput{}, err
	}
	value, _ := state.StateOf(market)
	return nil, GetMarketStateOutput{
		Market:      strings.ToUpper(strings.TrimSpace(in.Market)),
		MarketState: opend.MarketStateName(value),
		QotLogined:  state.QotLogined,
		TrdLogined:  state.TrdLogined,
		ServerVer:   state.ServerVer,
		Time:        state.Time,
	}, nil
}

// -- get_security_info / get_security_list ------------------------------------

type GetSecurityInfoInput struct {
	Symbols []string `json:"symbols" jsonschema:"stock symbols, e.g. [\"HK.00700\",\"US.AAPL\"]"`
}

type SecurityRecord struct {
	Symbol    string `json:"symbol"`
	Name      string `json:"name"`
	LotSize   int32  `json:"lot_size"`
	SecType   string `json:"sec_type"`
	StockID   int64  `json:"stock_id"`
	ListTime  string `json:"list_time,omitempty"`
	Delisting bool   `json:"delisting,omitempty"`
}

type GetSecurityInfoOutput struct {
	SecurityList []SecurityRecord `json:"security_list"`
}

func securityRecords(infos []opend.StaticInfo) []SecurityRecord {
	records := make([]SecurityRecord, 0, len(infos))
	for _, info := range infos {
		records = append(records, SecurityRecord{
			Symbol:    info.Basic.Security.String(),
			Name:      info.Basic.Name,
			LotSize:   info.Basic.LotSize,
			SecType:   opend.SecurityType(info.Basic.SecType).String(),
			StockID:   info.Basic.ID,
			ListTime:  info.Basic.ListTime,
			Delisting: info.Basic.Delisting,
		})
	}
	return records
}

func (s *Server) getSecurityInfo(ctx context.Context, _ *mcp.CallToolRequest, in GetSecurityInfoInput) (*mcp.CallToolResult, GetSecurityInfoOutput, error) {
	secs, err := opend.ParseSymbols(in.Symbols)
	if err != nil {
		return nil, GetSecurityInfoOutput{}, err
	}
	infos, err := s.gw.StaticInfos(ctx, secs)
	if err != nil {
		return nil, GetSecurityInfoOutput{}, err
	}
	return nil, GetSecurityInfoOutput{SecurityList: securityRecords(infos)}, nil
}

type GetSecurityListInput struct {
	Market  string `json:"market" jsonschema:"market name: HK, US, SH or SZ"`
	SecType string `json:"sec_type,omitempty" jsonschema:"security type: STOCK, WARRANT, INDEX, PLATE, BOND, TRUST, DRVT or FUTURE (default STOCK)"`
}

func (s *Server) getSecurityList(ctx context.Context, _ *mcp.CallToolRequest, in GetSecurityListInput) (*mcp.CallToolResult, GetSecurityInfoOutput, error) {
	market, err := opend.ParseMarket(in.Market)
	if err != nil {
		return nil, GetSecurityInfoOutput{}, err
	}
	secType, err := opend.ParseSecurityType(in.SecType)
	if err != nil {
		return nil, GetSecurityInfoOutput{}, err
	}
	infos, err := s.gw.StaticInfosByMarket(ctx, market, secType)
	if err != nil {
		return nil, GetSecurityInfoOutput{}, err
	}
	return nil, GetSecurityInfoOutput{SecurityList: securityRecords(infos)}, nil
}

// -- get_stock_filter ---------------------------------------------------------

type BaseFilterArg struct {
	FieldName  int32    `json:"field_name" jsonschema:"StockField enum value to filter on"`
	FilterMin  *float64 `json:"filter_min,omitempty"`
	FilterMax  *float64 `json:"filter_max,omitempty"`
	IsNoFilter *bool    `json:"is_no_filter,omitempty"`
	SortDir    int32    `json:"sort_dir,omitempty" jsonschema:"0 none, 1 ascending, 2 descending"`
}

type AccumulateFilterArg struct {
	BaseFilterArg
	Days int32 `json:"days" jsonschema:"trailing window in trading days"`
}

type FinancialFilterArg struct {
	BaseFilterArg
	Quarter int32 `json:"quarter" jsonschema:"reporting period enum value"`
}

type GetStockFilterInput struct {
	Market            string                `json:"market" jsonschema:"market name: HK, US, SH or SZ"`
	Plate             string                `json:"plate,omitempty" jsonschema:"optional plate symbol to restrict the screen to, e.g. HK.LIST2367"`
	BaseFilters       []BaseFilterArg       `json:"base_filters,omitempty"`
	AccumulateFilters []AccumulateFilterArg `json:"accumulate_filters,omitempty"`
	FinancialFilters  []FinancialFilterArg  `json:"financial_filters,omitempty"`
	Page              int32                 `json:"page,omitempty" jsonschema:"1-based result page (default 1)"`
	PageSize          int32                 `json:"page_size,omitempty" jsonschema:"rows per page, at most 200 (default 200)"`
}

type FieldValue struct {
	FieldName int32   `json:"field_name"`
	Value     float64 `json:"value"`
	Days      int32   `json:"days,omitempty"`
	Quarter   int32   `json:"quarter,omitempty"`
}

type FilteredStockRecord struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Fields []FieldValue `json:"fields,omitempty"`
}

type GetStockFilterOutput struct {
	TotalCount int32                 `json:"total_count"`
	LastPage   bool                  `json:"last_page"`
	StockList  []FilteredStockRecord `json:"stock_list"`
}

func (s *Server) getStockFilter(ctx context.Context, _ *mcp.CallToolRequest, in GetStockFilterInput) (*mcp.CallToolResult, GetStockFilterOutput, error) {
	market, err := opend.ParseMarket(in.Market)
	if err != nil {
		return nil, GetStockFilterOutput{}, err
	}
	page := in.Page
	if page < 1 {
		page = 1
	}
	pageSize := in.PageSize
	if pageSize < 1 {
		pageSize = defaultFilterPageSize
	}
	if pageSize > maxFilterPageSize {
		pageSize = maxFilterPageSize
	}

	req := &opend.StockFilterRequest{
		Begin:  (page - 1) * pageSize,
		Num:    pageSize,
		Market: market,
	}
	if in.Plate != "" {
		plate, err := opend.ParseSymbol(in.Plate)
		if err != nil {
			return nil, GetStockFilterOutput{}, err
		}
		req.Plate = &plate
	}
	for _, f := range in.BaseFilters {
		req.BaseFilterList = append(req.BaseFilterList, opend.BaseFilter{
			FieldName:  f.FieldName,
			FilterMin:  f.FilterMin,
			FilterMax:  f.FilterMax,
			IsNoFilter: f.IsNoFilter,
			SortDir:    f.SortDir,
		})
	}
	for _, f := range in.AccumulateFilters {
		req.AccumulateFilterList = append(req.AccumulateFilterList, opend.AccumulateFilter{
			FieldName:  f.FieldName,
			FilterMin:  f.FilterMin,
			FilterMax:  f.FilterMax,
			IsNoFilter: f.IsNoFilter,
			SortDir:    f.SortDir,
			Days:       f.Days,
		})
	}
	for _, f := range in.FinancialFilters {
		req.FinancialFilterList = append(req.FinancialFilterList, opend.FinancialFilter{
			FieldName:  f.FieldName,
			FilterMin:  f.FilterMin,
			FilterMax:  f.FilterMax,
			IsNoFilter: f.IsNoFilter,
			SortDir:    f.SortDir,
			Quarter:    f.Quarter,
		})
	}

	result, err := s.gw.StockFilter(ctx, req)
	if err != nil {
		return nil, GetStockFilterOutput{}, err
	}

	out := GetStockFilterOutput{
		TotalCount: result.AllCount,
		LastPage:   result.LastPage,
		StockList:  make([]FilteredStockRecord, 0, len(result.DataList)),
	}
	for _, stock := range result.DataList {
		record := FilteredStockRecord{
			Symbol: stock.Security.String(),
			Name:   stock.Name,
		}
		for _, d := range stock.BaseDataList {
			record.Fields = append(record.Fields, FieldValue{FieldName: d.FieldName, Value: d.Value})
		}
		for _, d := range stock.AccumulateDataList {
			record.Fields = append(record.Fields, FieldValue{FieldName: d.FieldName, Value: d.Value, Days: d.Days})
		}
		for _, d := range stock.FinancialDataList {
			record.Fields = append(record.Fields, FieldValue{FieldName: d.FieldName, Value: d.Value, Quarter: d.Quarter})
		}
		out.StockList = append(out.StockList, record)
	}
	return nil, out, nil
}

// -- get_current_time ---------------------------------------------------------

type GetCurrentTimeInput struct{}

type GetCurrentTimeOutput struct {
	Timestamp int64  `json:"timestamp"`
	Datetime  string `json:"datetime"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Timezone  string `json:"timezone"`
}

// getCurrentTime answers from the local clock; it is the one tool that never
// touches the gateway.
func (s *Server) getCurrentTime(_ context.Context, _ *mcp.CallToolRequest, _ GetCurrentTimeInput) (*mcp.CallToolResult, GetCurrentTimeOutput, error) {
	now := time.Now()
	zone, _ := now.Zone()
	return nil, GetCurrentTimeOutput{
		Timestamp: now.Unix(),
		Datetime:  now.Format("2006-01-02 15:04:05"),
		Date:      now.Format("2006-01-02"),
		Time:      now.Format("15:04:05"),
		Timezone:  zone,
	}, nil
}
