// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futu-stock-mcp-server/internal/opend"
)

func TestGetMarketState(t *testing.T) {
	gw := &fakeGateway{
		globalState: func(context.Context) (*opend.GlobalState, error) {
			return &opend.GlobalState{
				MarketHK:   5,
				MarketUS:   6,
				QotLogined: true,
				ServerVer:  898,
				Time:       1756166400,
			}, nil
		},
	}
	session := newTestSession(t, gw, nil)

	res := callTool(t, session, "get_market_state", map[string]json.RawMessage{
		"market": json.RawMessage(`"hk"`),
	})

	var out GetMarketStateOutput
	decodeResult(t, res, &out)
	assert.Equal(t, "HK", out.Market)
	assert.Equal(t, "AFTERNOON", out.MarketState)
	assert.True(t, out.QotLogined)
	assert.False(t, out.TrdLogined)
	assert.Equal(t, int32(898), out.ServerVer)
	assert.Equal(t, int64(1756166400), out.Time)

	res = callTool(t, session, "get_market_state", map[string]json.RawMessage{
		"market": json.RawMessage(`"US"`),
	})
	decodeResult(t, res, &out)
	assert.Equal(t, "CLOSED", out.MarketState)
}

func TestGetMarketStateUnknownMarket(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)

	text := callToolErr(t, session, "get_market_state", map[string]json.RawMessage{
		"market": json.RawMessage(`"TOKYO"`),
	})
	assert.Contains(t, text, "unknown market")
}

func TestGetSecurityInfo(t *testing.T) {
	var gotSecs []opend.Security
	gw := &fakeGateway{
		staticInfos: func(_ context.Context, secs []opend.Security) ([]opend.StaticInfo, error) {
			gotSecs = secs
			return []opend.StaticInfo{{
				Basic: opend.StaticBasic{
					Security: opend.Security{Market: opend.MarketHK, Code: "00700"},
					ID:       54047868787708,
					LotSize:  100,
					SecType:  3,
					Name:     "TENCENT",
					ListTime: "2004-06-16",
				},
			}}, nil
		},
	}
	session := newTestSession(t, gw, nil)

	res := callTool(t, session, "get_security_info", map[string]json.RawMessage{
		"symbols": json.RawMessage(`["HK.00700"]`),
	})
	require.Equal(t, []opend.Security{{Market: opend.MarketHK, Code: "00700"}}, gotSecs)

	var out GetSecurityInfoOutput
	decodeResult(t, res, &out)
	require.Len(t, out.SecurityList, 1)
	rec := out.SecurityList[0]
	assert.Equal(t, "HK.00700", rec.Symbol)
	assert.Equal(t, "TENCENT", rec.Name)
	assert.Equal(t, int32(100), rec.LotSize)
	assert.Equal(t, "STOCK", rec.SecType)
	assert.Equal(t, int64(54047868787708), rec.StockID)
	assert.Equal(t, "2004-06-16", rec.ListTime)
}

func TestGetSecurityList(t *testing.T) {
	var gotMarket opend.Market
	var gotType opend.SecurityType
	gw := &fakeGateway{
		staticInfosByMarket: func(_ context.Context, market opend.Market, secType opend.SecurityType) ([]opend.StaticInfo, error) {
			gotMarket, gotType = market, secType
			return []opend.StaticInfo{{
				Basic: opend.StaticBasic{
					Security: opend.Security{Market: opend.MarketUS, Code: "AAPL"},
					Name:     "Apple",
					LotSize:  1,
					SecType:  3,
				},
			}}, nil
		},
	}
	session := newTestSession(t, gw, nil)

	res := callTool(t, session, "get_security_list", map[string]json.RawMessage{
		"market": json.RawMessage(`"US"`),
	})
	assert.Equal(t, opend.MarketUS, gotMarket)
	assert.Equal(t, opend.SecurityTypeStock, gotType, "sec_type should default to STOCK")

	var out GetSecurityInfoOutput
	decodeResult(t, res, &out)
	require.Len(t, out.SecurityList, 1)
	assert.Equal(t, "US.AAPL", out.SecurityList[0].Symbol)

	callTool(t, session, "get_security_list", map[string]json.RawMessage{
		"market":   json.RawMessage(`"US"`),
		"sec_type": json.RawMessage(`"INDEX"`),
	})
	assert.Equal(t, opend.SecurityTypeIndex, gotType)
}

func TestGetSecurityListUnknownType(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)

	text := callToolErr(t, session, "get_security_list", map[string]json.RawMessage{
		"market":   json.RawMessage(`"US"`),
		"sec_type": json.RawMessage(`"EQUITY"`),
	})
	assert.Contains(t, text, "unknown security type")
}

func TestGetStockFilterPaging(t *testing.T) {
	var gotReq *opend.StockFilterRequest
	gw := &fakeGateway{
		stockFilter: func(_ context.Context, req *opend.StockFilterRequest) (*opend.StockFilterResult, error) {
			gotReq = req
			return &opend.StockFilterResult{
				LastPage: false,
				AllCount: 1234,
				DataList: []opend.FilteredStock{{
					Security:           opend.Security{Market: opend.MarketHK, Code: "00700"},
					Name:               "TENCENT",
					BaseDataList:       []opend.FilterData{{FieldName: 2, Value: 321.4}},
					AccumulateDataList: []opend.AccumulateData{{FieldName: 24, Days: 30, Value: 12.5}},
					FinancialDataList:  []opend.FinancialData{{FieldName: 40, Quarter: 2, Value: 0.8}},
				}},
			}, nil
		},
	}
	session := newTestSession(t, gw, nil)

	res := callTool(t, session, "get_stock_filter", map[string]json.RawMessage{
		"market":    json.RawMessage(`"HK"`),
		"page":      json.RawMessage(`3`),
		"page_size": json.RawMessage(`50`),
	})

	require.NotNil(t, gotReq)
	assert.Equal(t, int32(100), gotReq.Begin)
	assert.Equal(t, int32(50), gotReq.Num)
	assert.Equal(t, opend.MarketHK, gotReq.Market)

	var out GetStockFilterOutput
	decodeResult(t, res, &out)
	assert.Equal(t, int32(1234), out.TotalCount)
	assert.False(t, out.LastPage)
	require.Len(t, out.StockList, 1)
	stock := out.StockList[0]
	assert.Equal(t, "HK.00700", stock.Symbol)
	assert.Equal(t, "TENCENT", stock.Name)
	require.Len(t, stock.Fields, 3)
	assert.Equal(t, FieldValue{FieldName: 2, Value: 321.4}, stock.Fields[0])
	assert.Equal(t, FieldValue{FieldName: 24, Value: 12.5, Days: 30}, stock.Fields[1])
	assert.Equal(t, FieldValue{FieldName: 40, Value: 0.8, Quarter: 2}, stock.Fields[2])
}

func TestGetStockFilterDefaultsAndFilters(t *testing.T) {
	var gotReq *opend.StockFilterRequest
	gw := &fakeGateway{
		stockFilter: func(_ context.Context, req *opend.StockFilterRequest) (*opend.StockFilterResult, error) {
			gotReq = req
			return &opend.StockFilterResult{LastPage: true}, nil
		},
	}
	session := newTestSession(t, gw, nil)

	callTool(t, session, "get_stock_filter", map[string]json.RawMessage{
		"market": json.RawMessage(`"HK"`),
		"plate":  json.RawMessage(`"HK.LIST2367"`),
		"base_filters": json.RawMessage(`[
			{"field_name": 2, "filter_min": 10.5, "sort_dir": 2}
		]`),
		"accumulate_filters": json.RawMessage(`[
			{"field_name": 24, "days": 30}
		]`),
		"financial_filters": json.RawMessage(`[
			{"field_name": 40, "quarter": 2, "filter_max": 1.5}
		]`),
	})

	require.NotNil(t, gotReq)
	assert.Equal(t, int32(0), gotReq.Begin)
	assert.Equal(t, int32(200), gotReq.Num, "page size should default to 200")

	require.NotNil(t, gotReq.Plate)
	assert.Equal(t, opend.Security{Market: opend.MarketHK, Code: "LIST2367"}, *gotReq.Plate)

	require.Len(t, gotReq.BaseFilterList, 1)
	base := gotReq.BaseFilterList[0]
	assert.Equal(t, int32(2), base.FieldName)
	require.NotNil(t, base.FilterMin)
	assert.Equal(t, 10.5, *base.FilterMin)
	assert.Nil(t, base.FilterMax)
	assert.Equal(t, int32(2), base.SortDir)

	require.Len(t, gotReq.AccumulateFilterList, 1)
	assert.Equal(t, int32(30), gotReq.AccumulateFilterList[0].Days)

	require.Len(t, gotReq.FinancialFilterList, 1)
	fin := gotReq.FinancialFilterList[0]
	assert.Equal(t, int32(2), fin.Quarter)
	require.NotNil(t, fin.FilterMax)
	assert.Equal(t, 1.5, *fin.FilterMax)

	// An oversized page is clamped, not rejected.
	callTool(t, session, "get_stock_filter", map[string]json.RawMessage{
		"market":    json.RawMessage(`"HK"`),
		"page_size": json.RawMessage(`500`),
	})
	assert.Equal(t, int32(200), gotReq.Num)
}

func TestGetCurrentTime(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)

	res := callTool(t, session, "get_current_time", nil)

	var out GetCurrentTimeOutput
	decodeResult(t, res, &out)
	require.Greater(t, out.Timestamp, int64(0))

	// All rendered forms come from the same instant.
	at := time.Unix(out.Timestamp, 0)
	assert.Equal(t, at.Format("2006-01-02 15:04:05"), out.Datetime)
	assert.Equal(t, at.Format("2006-01-02"), out.Date)
	assert.Equal(t, at.Format("15:04:05"), out.Time)
	assert.NotEmpty(t, out.Timezone)
}
