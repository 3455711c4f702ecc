// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"context"
	"fmt"
)

// Wire structs in this file mirror OpenD's JSON bodies, which use the proto
// field names (camelCase). Only the fields this server forwards are declared;
// encoding/json skips the rest.

// ---------------------------------------------------------------------------
// Global state
// ---------------------------------------------------------------------------

// GlobalState is the gateway-wide status snapshot from GetGlobalState.
type GlobalState struct {
	MarketHK       int32   `json:"marketHK"`
	MarketUS       int32   `json:"marketUS"`
	MarketSH       int32   `json:"marketSH"`
	MarketSZ       int32   `json:"marketSZ"`
	MarketHKFuture int32   `json:"marketHKFuture"`
	MarketUSFuture int32   `json:"marketUSFuture"`
	QotLogined     bool    `json:"qotLogined"`
	TrdLogined     bool    `json:"trdLogined"`
	ServerVer      int32   `json:"serverVer"`
	ServerBuildNo  int32   `json:"serverBuildNo"`
	Time           int64   `json:"time"`
	LocalTime      float64 `json:"localTime"`
	ConnID         uint64  `json:"connID"`
}

// StateOf selects the market-state field for one quote market.
func (g *GlobalState) StateOf(m Market) (int32, bool) {
	switch m {
	case MarketHK:
		return g.MarketHK, true
	case MarketUS:
		return g.MarketUS, true
	case MarketSH:
		return g.MarketSH, true
	case MarketSZ:
		return g.MarketSZ, true
	default:
		return 0, false
	}
}

// GlobalState fetches the gateway-wide status snapshot.
func (c *Client) GlobalState(ctx context.Context) (*GlobalState, error) {
	// userID is a historical required field; zero means "this login".
	c2s := struct {
		UserID uint64 `json:"userID"`
	}{}
	var s2c GlobalState
	if err := c.call(ctx, protoGetGlobalState, c2s, &s2c); err != nil {
		return nil, err
	}
	return &s2c, nil
}

// ---------------------------------------------------------------------------
// Subscriptions
// ---------------------------------------------------------------------------

type qotSubC2S struct {
	SecurityList     []Security `json:"securityList"`
	SubTypeList      []SubType  `json:"subTypeList"`
	IsSubOrUnSub     bool       `json:"isSubOrUnSub"`
	IsRegOrUnRegPush bool       `json:"isRegOrUnRegPush"`
	IsFirstPush      bool       `json:"isFirstPush"`
}

// Subscribe asks the gateway to open quote subscriptions for every
// (security, type) pair. The local mirror is updated only on success.
func (c *Client) Subscribe(ctx context.Context, secs []Security, subs []SubType) error {
	// Push registration stays off: this server polls via the Get protos and
	// drops pushed data anyway.
	err := c.call(ctx, protoQotSub, qotSubC2S{
		SecurityList: secs,
		SubTypeList:  subs,
		IsSubOrUnSub: true,
	}, nil)
	if err != nil {
		return err
	}
	c.subs.add(secs, subs)
	return nil
}

// Unsubscribe closes quote subscriptions. The local mirror is updated only
// on success.
func (c *Client) Unsubscribe(ctx context.Context, secs []Security, subs []SubType) error {
	err := c.call(ctx, protoQotSub, qotSubC2S{
		SecurityList: secs,
		SubTypeList:  subs,
		IsSubOrUnSub: false,
	}, nil)
	if err != nil {
		return err
	}
	c.subs.remove(secs, subs)
	return nil
}

// ---------------------------------------------------------------------------
// Quotes and snapshots
// ---------------------------------------------------------------------------

// BasicQuote is one row of Qot_GetBasicQot. Requires a QUOTE subscription.
type BasicQuote struct {
	Security        Security `json:"security"`
	Name            string   `json:"name,omitempty"`
	IsSuspended     bool     `json:"isSuspended"`
	ListTime        string   `json:"listTime"`
	PriceSpread     float64  `json:"priceSpread"`
	UpdateTime      string   `json:"updateTime"`
	HighPrice       float64  `json:"highPrice"`
	OpenPrice       float64  `json:"openPrice"`
	LowPrice        float64  `json:"lowPrice"`
	CurPrice        float64  `json:"curPrice"`
	LastClosePrice  float64  `json:"lastClosePrice"`
	Volume          int64    `json:"volume"`
	Turnover        float64  `json:"turnover"`
	TurnoverRate    float64  `json:"turnoverRate"`
	Amplitude       float64  `json:"amplitude"`
	UpdateTimestamp float64  `json:"updateTimestamp,omitempty"`
}

// BasicQuotes fetches real-time quotes for subscribed securities.
func (c *Client) BasicQuotes(ctx context.Context, secs []Security) ([]BasicQuote, error) {
	c2s := struct {
		SecurityList []Security `json:"securityList"`
	}{secs}
	var s2c struct {
		BasicQotList []BasicQuote `json:"basicQotList"`
	}
	if err := c.call(ctx, protoQotGetBasicQot, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.BasicQotList, nil
}

// Snapshot is one row of Qot_GetSecuritySnapshot. Snapshots need no
// subscription but are rate-limited by the gateway.
type Snapshot struct {
	Basic        SnapshotBasic     `json:"basic"`
	EquityExData *SnapshotEquityEx `json:"equityExData,omitempty"`
	OptionExData *SnapshotOptionEx `json:"optionExData,omitempty"`
}

type SnapshotBasic struct {
	Security       Security `json:"security"`
	Name           string   `json:"name,omitempty"`
	Type           int32    `json:"type"`
	IsSuspend      bool     `json:"isSuspend"`
	ListTime       string   `json:"listTime"`
	LotSize        int32    `json:"lotSize"`
	PriceSpread    float64  `json:"priceSpread"`
	UpdateTime     string   `json:"updateTime"`
	HighPrice      float64  `json:"highPrice"`
	OpenPrice      float64  `json:"openPrice"`
	LowPrice       float64  `json:"lowPrice"`
	LastClosePrice float64  `json:"lastClosePrice"`
	CurPrice       float64  `json:"curPrice"`
	Volume         int64    `json:"volume"`
	Turnover       float64  `json:"turnover"`
	TurnoverRate   float64  `json:"turnoverRate"`
	AskPrice       float64  `json:"askPrice"`
	BidPrice       float64  `json:"bidPrice"`
	AskVol         int64    `json:"askVol"`
	BidVol         int64    `json:"bidVol"`
}

type SnapshotEquityEx struct {
	IssuedShares      int64   `json:"issuedShares"`
	IssuedMarketVal   float64 `json:"issuedMarketVal"`
	NetAsset          float64 `json:"netAsset"`
	NetProfit         float64 `json:"netProfit"`
	EarningsPershare  float64 `json:"earningsPershare"`
	OutstandingShares int64   `json:"outstandingShares"`
	NetAssetPershare  float64 `json:"netAssetPershare"`
	PeRate            float64 `json:"peRate"`
	PbRate            float64 `json:"pbRate"`
	PeTTMRate         float64 `json:"peTTMRate"`
	DividendTTM       float64 `json:"dividendTTM"`
	DividendRatioTTM  float64 `json:"dividendRatioTTM"`
}

type SnapshotOptionEx struct {
	Type              int32    `json:"type"`
	Owner             Security `json:"owner"`
	StrikeTime        string   `json:"strikeTime"`
	StrikePrice       float64  `json:"strikePrice"`
	ContractSize      int32    `json:"contractSize"`
	OpenInterest      int32    `json:"openInterest"`
	ImpliedVolatility float64  `json:"impliedVolatility"`
	Premium           float64  `json:"premium"`
	Delta             float64  `json:"delta"`
	Gamma             float64  `json:"gamma"`
	Vega              float64  `json:"vega"`
	Theta             float64  `json:"theta"`
	Rho               float64  `json:"rho"`
}

// Snapshots fetches market snapshots for up to 400 securities per call.
func (c *Client) Snapshots(ctx context.Context, secs []Security) ([]Snapshot, error) {
	c2s := struct {
		SecurityList []Security `json:"securityList"`
	}{secs}
	var s2c struct {
		SnapshotList []Snapshot `json:"snapshotList"`
	}
	if err := c.call(ctx, protoQotGetSnapshot, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.SnapshotList, nil
}

// ---------------------------------------------------------------------------
// K-lines
// ---------------------------------------------------------------------------

// KLine is one candle row, shared by Qot_GetKL and Qot_RequestHistoryKL.
type KLine struct {
	Time           string  `json:"time"`
	IsBlank        bool    `json:"isBlank"`
	HighPrice      float64 `json:"highPrice"`
	OpenPrice      float64 `json:"openPrice"`
	LowPrice       float64 `json:"lowPrice"`
	ClosePrice     float64 `json:"closePrice"`
	LastClosePrice float64 `json:"lastClosePrice"`
	Volume         int64   `json:"volume"`
	Turnover       float64 `json:"turnover"`
	TurnoverRate   float64 `json:"turnoverRate,omitempty"`
	PE             float64 `json:"pe,omitempty"`
	ChangeRate     float64 `json:"changeRate,omitempty"`
	Timestamp      float64 `json:"timestamp,omitempty"`
}

// CurKLines fetches the most recent count candles. Requires the matching
// K-line subscription. Prices are forward adjusted.
func (c *Client) CurKLines(ctx context.Context, sec Security, klType KLType, count int32) ([]KLine, error) {
	c2s := struct {
		RehabType RehabType `json:"rehabType"`
		KLType    KLType    `json:"klType"`
		ReqNum    int32     `json:"reqNum"`
		Security  Security  `json:"security"`
	}{RehabForward, klType, count, sec}
	var s2c struct {
		Security Security `json:"security"`
		KLList   []KLine  `json:"klList"`
	}
	if err := c.call(ctx, protoQotGetKL, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.KLList, nil
}

// historyKLPageCap bounds the pagination loop; 50 pages at the gateway's
// 1000-row page size is far beyond any sane tool call.
const historyKLPageCap = 50

type historyKLC2S struct {
	RehabType   RehabType `json:"rehabType"`
	KLType      KLType    `json:"klType"`
	Security    Security  `json:"security"`
	BeginTime   string    `json:"beginTime"`
	EndTime     string    `json:"endTime"`
	MaxAckKLNum int32     `json:"maxAckKLNum,omitempty"`
	NextReqKey  []byte    `json:"nextReqKey,omitempty"`
}

// HistoryKLines fetches candles between begin and end (inclusive, "yyyy-MM-dd"),
// following the gateway's nextReqKey pagination until the range is exhausted
// or maxCount rows (when positive) have been collected.
func (c *Client) HistoryKLines(ctx context.Context, sec Security, klType KLType, begin, end string, maxCount int32) ([]KLine, error) {
	var (
		out     []KLine
		nextKey []byte
	)
	for page := 0; ; page++ {
		if page >= historyKLPageCap {
			return nil, fmt.Errorf("opend: history kline pagination exceeded %d pages for %s", historyKLPageCap, sec)
		}
		c2s := historyKLC2S{
			RehabType:  RehabForward,
			KLType:     klType,
			Security:   sec,
			BeginTime:  begin,
			EndTime:    end,
			NextReqKey: nextKey,
		}
		var s2c struct {
			Security   Security `json:"security"`
			KLList     []KLine  `json:"klList"`
			NextReqKey []byte   `json:"nextReqKey"`
		}
		if err := c.call(ctx, protoQotRequestHistoryKL, c2s, &s2c); err != nil {
			return nil, err
		}
		out = append(out, s2c.KLList...)
		if maxCount > 0 && int32(len(out)) >= maxCount {
			return out[:maxCount], nil
		}
		if len(s2c.NextReqKey) == 0 {
			return out, nil
		}
		nextKey = s2c.NextReqKey
	}
}

// ---------------------------------------------------------------------------
// Time shares, tickers, books, brokers
// ---------------------------------------------------------------------------

// TimeShare is one row of per-minute data from Qot_GetRT. Requires an
// RT_DATA subscription.
type TimeShare struct {
	Time           string  `json:"time"`
	Minute         int32   `json:"minute"`
	IsBlank        bool    `json:"isBlank"`
	Price          float64 `json:"price"`
	LastClosePrice float64 `json:"lastClosePrice"`
	AvgPrice       float64 `json:"avgPrice"`
	Volume         int64   `json:"volume"`
	Turnover       float64 `json:"turnover"`
}

// RTData fetches the day's time-share curve for a subscribed security.
func (c *Client) RTData(ctx context.Context, sec Security) ([]TimeShare, error) {
	c2s := struct {
		Security Security `json:"security"`
	}{sec}
	var s2c struct {
		Security Security    `json:"security"`
		RTList   []TimeShare `json:"rtList"`
	}
	if err := c.call(ctx, protoQotGetRT, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.RTList, nil
}

// Ticker is one trade print from Qot_GetTicker. Requires a TICKER
// subscription. Dir is the aggressor side (1 buy, 2 sell, 0 neutral).
type Ticker struct {
	Time      string  `json:"time"`
	Sequence  int64   `json:"sequence"`
	Dir       int32   `json:"dir"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Turnover  float64 `json:"turnover"`
	Type      int32   `json:"type,omitempty"`
	Timestamp float64 `json:"timestamp,omitempty"`
}

// Tickers fetches the most recent count trade prints.
func (c *Client) Tickers(ctx context.Context, sec Security, count int32) ([]Ticker, error) {
	c2s := struct {
		Security  Security `json:"security"`
		MaxRetNum int32    `json:"maxRetNum"`
	}{sec, count}
	var s2c struct {
		Security   Security `json:"security"`
		TickerList []Ticker `json:"tickerList"`
	}
	if err := c.call(ctx, protoQotGetTicker, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.TickerList, nil
}

// OrderBookLevel is one price level of the book.
type OrderBookLevel struct {
	Price  float64 `json:"price"`
	Volume int64   `json:"volume"`
	// The gateway really does spell the field "orederCount".
	OrderCount int32 `json:"orederCount"`
}

// OrderBookSides is the two-sided book from Qot_GetOrderBook. Requires an
// ORDER_BOOK subscription.
type OrderBookSides struct {
	Bids []OrderBookLevel
	Asks []OrderBookLevel
}

// OrderBook fetches up to num levels per side.
func (c *Client) OrderBook(ctx context.Context, sec Security, num int32) (*OrderBookSides, error) {
	c2s := struct {
		Security Security `json:"security"`
		Num      int32    `json:"num"`
	}{sec, num}
	var s2c struct {
		Security         Security         `json:"security"`
		OrderBookAskList []OrderBookLevel `json:"orderBookAskList"`
		OrderBookBidList []OrderBookLevel `json:"orderBookBidList"`
	}
	if err := c.call(ctx, protoQotGetOrderBook, c2s, &s2c); err != nil {
		return nil, err
	}
	return &OrderBookSides{Bids: s2c.OrderBookBidList, Asks: s2c.OrderBookAskList}, nil
}

// Broker is one seat in the broker queue.
type Broker struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Pos  int32  `json:"pos"`
}

// BrokerQueueSides is the two-sided broker queue from Qot_GetBroker.
// Requires a BROKER subscription.
type BrokerQueueSides struct {
	Bids []Broker
	Asks []Broker
}

// BrokerQueue fetches the broker queue for a subscribed HK security.
func (c *Client) BrokerQueue(ctx context.Context, sec Security) (*BrokerQueueSides, error) {
	c2s := struct {
		Security Security `json:"security"`
	}{sec}
	var s2c struct {
		Security      Security `json:"security"`
		BrokerAskList []Broker `json:"brokerAskList"`
		BrokerBidList []Broker `json:"brokerBidList"`
	}
	if err := c.call(ctx, protoQotGetBroker, c2s, &s2c); err != nil {
		return nil, err
	}
	return &BrokerQueueSides{Bids: s2c.BrokerBidList, Asks: s2c.BrokerAskList}, nil
}

// ---------------------------------------------------------------------------
// Static info and options
// ---------------------------------------------------------------------------

// StaticInfo is one row of Qot_GetStaticInfo / Qot_GetOptionChain.
type StaticInfo struct {
	Basic        StaticBasic     `json:"basic"`
	OptionExData *OptionStaticEx `json:"optionExData,omitempty"`
}

type StaticBasic struct {
	Security  Security `json:"security"`
	ID        int64    `json:"id"`
	LotSize   int32    `json:"lotSize"`
	SecType   int32    `json:"secType"`
	Name      string   `json:"name"`
	ListTime  string   `json:"listTime"`
	Delisting bool     `json:"delisting,omitempty"`
}

type OptionStaticEx struct {
	Type        int32    `json:"type"`
	Owner       Security `json:"owner"`
	StrikeTime  string   `json:"strikeTime"`
	StrikePrice float64  `json:"strikePrice"`
	Suspend     bool     `json:"suspend"`
}

// StaticInfos fetches static descriptions for specific securities.
func (c *Client) StaticInfos(ctx context.Context, secs []Security) ([]StaticInfo, error) {
	c2s := struct {
		SecurityList []Security `json:"securityList"`
	}{secs}
	var s2c struct {
		StaticInfoList []StaticInfo `json:"staticInfoList"`
	}
	if err := c.call(ctx, protoQotGetStaticInfo, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.StaticInfoList, nil
}

// StaticInfosByMarket fetches static descriptions for every security of one
// type in a market.
func (c *Client) StaticInfosByMarket(ctx context.Context, market Market, secType SecurityType) ([]StaticInfo, error) {
	c2s := struct {
		Market  Market       `json:"market"`
		SecType SecurityType `json:"secType"`
	}{market, secType}
	var s2c struct {
		StaticInfoList []StaticInfo `json:"staticInfoList"`
	}
	if err := c.call(ctx, protoQotGetStaticInfo, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.StaticInfoList, nil
}

// OptionChainDate groups one expiry's contracts.
type OptionChainDate struct {
	StrikeTime string       `json:"strikeTime"`
	Option     []OptionPair `json:"option"`
}

// OptionPair is the call/put pair at one strike.
type OptionPair struct {
	Call *StaticInfo `json:"call,omitempty"`
	Put  *StaticInfo `json:"put,omitempty"`
}

// OptionChain fetches the chain for an underlier with expiries in
// [begin, end] ("yyyy-MM-dd"). optType narrows to calls or puts; ALL keeps
// both sides.
func (c *Client) OptionChain(ctx context.Context, owner Security, begin, end string, optType OptionType) ([]OptionChainDate, error) {
	c2s := struct {
		Owner     Security   `json:"owner"`
		BeginTime string     `json:"beginTime"`
		EndTime   string     `json:"endTime"`
		Type      OptionType `json:"type,omitempty"`
	}{owner, begin, end, optType}
	var s2c struct {
		OptionChain []OptionChainDate `json:"optionChain"`
	}
	if err := c.call(ctx, protoQotGetOptionChain, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.OptionChain, nil
}

// OptionExpiry is one listed expiration date.
type OptionExpiry struct {
	StrikeTime               string `json:"strikeTime"`
	OptionExpiryDateDistance int32  `json:"optionExpiryDateDistance"`
}

// OptionExpirationDates lists the expiries currently trading for an underlier.
func (c *Client) OptionExpirationDates(ctx context.Context, owner Security) ([]OptionExpiry, error) {
	c2s := struct {
		Owner Security `json:"owner"`
	}{owner}
	var s2c struct {
		DateList []OptionExpiry `json:"dateList"`
	}
	if err := c.call(ctx, protoQotGetOptionExpirationDate, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.DateList, nil
}

// ---------------------------------------------------------------------------
// Stock filter
// ---------------------------------------------------------------------------

// BaseFilter is a simple-field condition. Field numbers follow the gateway's
// StockField enum and pass through from the tool untouched.
type BaseFilter struct {
	FieldName  int32    `json:"fieldName"`
	FilterMin  *float64 `json:"filterMin,omitempty"`
	FilterMax  *float64 `json:"filterMax,omitempty"`
	IsNoFilter *bool    `json:"isNoFilter,omitempty"`
	SortDir    int32    `json:"sortDir,omitempty"`
}

// AccumulateFilter is a condition over a trailing window of days.
type AccumulateFilter struct {
	FieldName  int32    `json:"fieldName"`
	FilterMin  *float64 `json:"filterMin,omitempty"`
	FilterMax  *float64 `json:"filterMax,omitempty"`
	IsNoFilter *bool    `json:"isNoFilter,omitempty"`
	SortDir    int32    `json:"sortDir,omitempty"`
	Days       int32    `json:"days"`
}

// FinancialFilter is a condition on a reporting quarter.
type FinancialFilter struct {
	FieldName  int32    `json:"fieldName"`
	FilterMin  *float64 `json:"filterMin,omitempty"`
	FilterMax  *float64 `json:"filterMax,omitempty"`
	IsNoFilter *bool    `json:"isNoFilter,omitempty"`
	SortDir    int32    `json:"sortDir,omitempty"`
	Quarter    int32    `json:"quarter"`
}

// StockFilterRequest is the Qot_StockFilter request. Begin/Num page the
// result set.
type StockFilterRequest struct {
	Begin                int32              `json:"begin"`
	Num                  int32              `json:"num"`
	Market               Market             `json:"market"`
	Plate                *Security          `json:"plate,omitempty"`
	BaseFilterList       []BaseFilter       `json:"baseFilterList,omitempty"`
	AccumulateFilterList []AccumulateFilter `json:"accumulateFilterList,omitempty"`
	FinancialFilterList  []FinancialFilter  `json:"financialFilterList,omitempty"`
}

// FilterData is one evaluated simple field.
type FilterData struct {
	FieldName int32   `json:"fieldName"`
	Value     float64 `json:"value"`
}

// AccumulateData is one evaluated trailing-window field.
type AccumulateData struct {
	FieldName int32   `json:"fieldName"`
	Days      int32   `json:"days"`
	Value     float64 `json:"value"`
}

// FinancialData is one evaluated financial field.
type FinancialData struct {
	FieldName int32   `json:"fieldName"`
	Quarter   int32   `json:"quarter"`
	Value     float64 `json:"value"`
}

// FilteredStock is one match with its evaluated fields.
type FilteredStock struct {
	Security           Security         `json:"security"`
	Name               string           `json:"name"`
	BaseDataList       []FilterData     `json:"baseDataList,omitempty"`
	AccumulateDataList []AccumulateData `json:"accumulateDataList,omitempty"`
	FinancialDataList  []FinancialData  `json:"financialDataList,omitempty"`
}

// StockFilterResult is one page of matches.
type StockFilterResult struct {
	LastPage bool            `json:"lastPage"`
	AllCount int32           `json:"allCount"`
	DataList []FilteredStock `json:"dataList"`
}

// StockFilter runs a screened query over one market.
func (c *Client) StockFilter(ctx context.Context, req *StockFilterRequest) (*StockFilterResult, error) {
	var s2c StockFilterResult
	if err := c.call(ctx, protoQotStockFilter, req, &s2c); err != nil {
		return nil, err
	}
	return &s2c, nil
}
