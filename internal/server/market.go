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

// Record fields are snake_case to match the payloads the original Futu API
// surface documents; wire camelCase stays inside internal/opend.

func (s *Server) registerMarketTools(srv *mcp.Server) {
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_stock_quote",
		Description: "Get real-time quote data for the given stocks. Requires an active QUOTE subscription for each symbol (see subscribe).",
	}, s.getStockQuote)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_market_snapshot",
		Description: "Get a market snapshot for the given stocks. No subscription needed.",
	}, s.getMarketSnapshot)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_cur_kline",
		Description: "Get the most recent candlesticks for a stock. Requires the matching K-line subscription (e.g. K_DAY).",
	}, s.getCurKline)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_history_kline",
		Description: "Get historical candlesticks for a stock between two dates (yyyy-MM-dd). Paginates through the gateway until the range is exhausted.",
	}, s.getHistoryKline)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_rt_data",
		Description: "Get the day's minute-by-minute price curve for a stock. Requires an RT_DATA subscription.",
	}, s.getRTData)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_ticker",
		Description: "Get recent trade prints for a stock. Requires a TICKER subscription.",
	}, s.getTicker)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_order_book",
		Description: "Get the current order book for a stock. Requires an ORDER_BOOK subscription.",
	}, s.getOrderBook)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "get_broker_queue",
		Description: "Get the broker queue for a stock (HK market). Requires a BROKER subscription.",
	}, s.getBrokerQueue)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "subscribe",
		Description: "Open market-data subscriptions for symbols. Types: QUOTE, ORDER_BOOK, TICKER, RT_DATA, BROKER, K_1M, K_3M, K_5M, K_15M, K_30M, K_60M, K_DAY, K_WEEK, K_MON, K_QUARTER, K_YEAR.",
	}, s.subscribe)
	mcp.AddTool(srv, &mcp.Tool{
		Name:        "unsubscribe",
		Description: "Close market-data subscriptions previously opened with subscribe.",
	}, s.unsubscribe)
}

// -- get_stock_quote ----------------------------------------------------------

type GetStockQuoteInput struct {
	Symbols []string `json:"symbols" jsonschema:"stock symbols, e.g. HK.00700 or US.AAPL"`
}

type Quote struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name,omitempty"`
	CurPrice       float64 `json:"cur_price"`
	OpenPrice      float64 `json:"open_price"`
	HighPrice      float64 `json:"high_price"`
	LowPrice       float64 `json:"low_price"`
	LastClosePrice float64 `json:"last_close_price"`
	Volume         int64   `json:"volume"`
	Turnover       float64 `json:"turnover"`
	TurnoverRate   float64 `json:"turnover_rate"`
	Amplitude      float64 `json:"amplitude"`
	IsSuspended    bool    `json:"is_suspended"`
	PriceSpread    float64 `json:"price_spread,omitempty"`
	ListTime       string  `json:"list_time,omitempty"`
	UpdateTime     string  `json:"update_time,omitempty"`
}

type GetStockQuoteOutput struct {
	QuoteList []Quote `json:"quote_list"`
}

func (s *Server) getStockQuote(ctx context.Context, _ *mcp.CallToolRequest, in GetStockQuoteInput) (*mcp.CallToolResult, GetStockQuoteOutput, error) {
	secs, err := opend.ParseSymbols(in.Symbols)
	if err != nil {
		return nil, GetStockQuoteOutput{}, err
	}
	rows, err := s.gw.BasicQuotes(ctx, secs)
	if err != nil {
		return nil, GetStockQuoteOutput{}, err
	}
	out := GetStockQuoteOutput{QuoteList: make([]Quote, 0, len(rows))}
	for _, r := range rows {
		out.QuoteList = append(out.QuoteList, Quote{
			Symbol:         r.Security.String(),
			Name:           r.Name,
			CurPrice:       r.CurPrice,
			OpenPrice:      r.OpenPrice,
			HighPrice:      r.HighPrice,
			LowPrice:       r.LowPrice,
			LastClosePrice: r.LastClosePrice,
			Volume:         r.Volume,
			Turnover:       r.Turnover,
			TurnoverRate:   r.TurnoverRate,
			Amplitude:      r.Amplitude,
			IsSuspended:    r.IsSuspended,
			PriceSpread:    r.PriceSpread,
			ListTime:       r.ListTime,
			UpdateTime:     r.UpdateTime,
		})
	}
	return nil, out, nil
}

// -- get_market_snapshot ------------------------------------------------------

type GetMarketSnapshotInput struct {
	Symbols []string `json:"symbols" jsonschema:"stock symbols, e.g. HK.00700 or US.AAPL"`
}

type SnapshotRecord struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name,omitempty"`
	IsSuspend      bool    `json:"is_suspend"`
	ListTime       string  `json:"list_time,omitempty"`
	LotSize        int32   `json:"lot_size"`
	PriceSpread    float64 `json:"price_spread,omitempty"`
	UpdateTime     string  `json:"update_time,omitempty"`
	CurPrice       float64 `json:"cur_price"`
	OpenPrice      float64 `json:"open_price"`
	HighPrice      float64 `json:"high_price"`
	LowPrice       float64 `json:"low_price"`
	LastClosePrice float64 `json:"last_close_price"`
	Volume         int64   `json:"volume"`
	Turnover       float64 `json:"turnover"`
	TurnoverRate   float64 `json:"turnover_rate"`
	AskPrice       float64 `json:"ask_price"`
	BidPrice       float64 `json:"bid_price"`
	AskVol         int64   `json:"ask_vol"`
	BidVol         int64   `json:"bid_vol"`

	Equity *EquitySnapshot `json:"equity,omitempty"`
	Option *OptionSnapshot `json:"option,omitempty"`
}

type EquitySnapshot struct {
	IssuedShares     int64   `json:"issued_shares"`
	NetAsset         float64 `json:"net_asset"`
	NetProfit        float64 `json:"net_profit"`
	EarningsPerShare float64 `json:"earnings_per_share"`
	NetAssetPerShare float64 `json:"net_asset_per_share"`
	PERate           float64 `json:"pe_ratio"`
	PBRate           float64 `json:"pb_ratio"`
	PETTMRate        float64 `json:"pe_ttm_ratio"`
	DividendTTM      float64 `json:"dividend_ttm"`
	DividendRatioTTM float64 `json:"dividend_ratio_ttm"`
}

type OptionSnapshot struct {
	Type              string  `json:"option_type"`
	Owner             string  `json:"owner"`
	StrikeTime        string  `json:"strike_time"`
	StrikePrice       float64 `json:"strike_price"`
	ContractSize      int32   `json:"contract_size"`
	OpenInterest      int32   `json:"open_interest"`
	ImpliedVolatility float64 `json:"implied_volatility"`
	Premium           float64 `json:"premium"`
	Delta             float64 `json:"delta"`
	Gamma             float64 `json:"gamma"`
	Vega              float64 `json:"vega"`
	Theta             float64 `json:"theta"`
	Rho               float64 `json:"rho"`
}

type GetMarketSnapshotOutput struct {
	SnapshotList []SnapshotRecord `json:"snapshot_list"`
}

func (s *Server) getMarketSnapshot(ctx context.Context, _ *mcp.CallToolRequest, in GetMarketSnapshotInput) (*mcp.CallToolResult, GetMarketSnapshotOutput, error) {
	secs, err := opend.ParseSymbols(in.Symbols)
	if err != nil {
		return nil, GetMarketSnapshotOutput{}, err
	}
	rows, err := s.gw.Snapshots(ctx, secs)
	if err != nil {
		return nil, GetMarketSnapshotOutput{}, err
	}
	out := GetMarketSnapshotOutput{SnapshotList: make([]SnapshotRecord, 0, len(rows))}
	for _, r := range rows {
		rec := SnapshotRecord{
			Symbol:         r.Basic.Security.String(),
			Name:           r.Basic.Name,
			IsSuspend:      r.Basic.IsSuspend,
			ListTime:       r.Basic.ListTime,
			LotSize:        r.Basic.LotSize,
			PriceSpread:    r.Basic.PriceSpread,
			UpdateTime:     r.Basic.UpdateTime,
			CurPrice:       r.Basic.CurPrice,
			OpenPrice:      r.Basic.OpenPrice,
			HighPrice:      r.Basic.HighPrice,
			LowPrice:       r.Basic.LowPrice,
			LastClosePrice: r.Basic.LastClosePrice,
			Volume:         r.Basic.Volume,
			Turnover:       r.Basic.Turnover,
			TurnoverRate:   r.Basic.TurnoverRate,
			AskPrice:       r.Basic.AskPrice,
			BidPrice:       r.Basic.BidPrice,
			AskVol:         r.Basic.AskVol,
			BidVol:         r.Basic.BidVol,
		}
		if eq := r.EquityExData; eq != nil {
			rec.Equity = &EquitySnapshot{
				IssuedShares:     eq.IssuedShares,
				NetAsset:         eq.NetAsset,
				NetProfit:        eq.NetProfit,
				EarningsPerShare: eq.EarningsPershare,
				NetAssetPerShare: eq.NetAssetPershare,
				PERate:           eq.PeRate,
				PBRate:           eq.PbRate,
				PETTMRate:        eq.PeTTMRate,
				DividendTTM:      eq.DividendTTM,
				DividendRatioTTM: eq.DividendRatioTTM,
			}
		}
		if op := r.OptionExData; op != nil {
			rec.Option = &OptionSnapshot{
				Type:              opend.OptionType(op.Type).String(),
				Owner:             op.Owner.String(),
				StrikeTime:        op.StrikeTime,
				StrikePrice:       op.StrikePrice,
				ContractSize:      op.ContractSize,
				OpenInterest:      op.OpenInterest,
				ImpliedVolatility: op.ImpliedVolatility,
				Premium:           op.Premium,
				Delta:             op.Delta,
				Gamma:             op.Gamma,
				Vega:              op.Vega,
				Theta:             op.Theta,
				Rho:               op.Rho,
			}
		}
		out.SnapshotList = append(out.SnapshotList, rec)
	}
	return nil, out, nil
}

// -- get_cur_kline / get_history_kline ----------------------------------------

const (
	defaultKLineCount = 100
	maxKLineCount     = 1000
)

type GetCurKlineInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
	KType  string `json:"ktype" jsonschema:"candlestick type: K_1M, K_3M, K_5M, K_15M, K_30M, K_60M, K_DAY, K_WEEK, K_MON, K_QUARTER, K_YEAR"`
	Count  int32  `json:"count,omitempty" jsonschema:"number of candles, default 100, max 1000"`
}

type KLineRecord struct {
	Time           string  `json:"time"`
	OpenPrice      float64 `json:"open_price"`
	ClosePrice     float64 `json:"close_price"`
	HighPrice      float64 `json:"high_price"`
	LowPrice       float64 `json:"low_price"`
	LastClosePrice float64 `json:"last_close_price"`
	Volume         int64   `json:"volume"`
	Turnover       float64 `json:"turnover"`
	TurnoverRate   float64 `json:"turnover_rate,omitempty"`
	ChangeRate     float64 `json:"change_rate,omitempty"`
}

type GetKlineOutput struct {
	KLineList []KLineRecord `json:"kline_list"`
}

func klineRecords(rows []opend.KLine) []KLineRecord {
	out := make([]KLineRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, KLineRecord{
			Time:           r.Time,
			OpenPrice:      r.OpenPrice,
			ClosePrice:     r.ClosePrice,
			HighPrice:      r.HighPrice,
			LowPrice:       r.LowPrice,
			LastClosePrice: r.LastClosePrice,
			Volume:         r.Volume,
			Turnover:       r.Turnover,
			TurnoverRate:   r.TurnoverRate,
			ChangeRate:     r.ChangeRate,
		})
	}
	return out
}

func (s *Server) getCurKline(ctx context.Context, _ *mcp.CallToolRequest, in GetCurKlineInput) (*mcp.CallToolResult, GetKlineOutput, error) {
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetKlineOutput{}, err
	}
	kt, err := opend.ParseKLType(in.KType)
	if err != nil {
		return nil, GetKlineOutput{}, err
	}
	count := in.Count
	if count <= 0 {
		count = defaultKLineCount
	}
	if count > maxKLineCount {
		count = maxKLineCount
	}
	rows, err := s.gw.CurKLines(ctx, sec, kt, count)
	if err != nil {
		return nil, GetKlineOutput{}, err
	}
	return nil, GetKlineOutput{KLineList: klineRecords(rows)}, nil
}

type GetHistoryKlineInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
	KType  string `json:"ktype" jsonschema:"candlestick type: K_1M, K_3M, K_5M, K_15M, K_30M, K_60M, K_DAY, K_WEEK, K_MON, K_QUARTER, K_YEAR"`
	Start  string `json:"start" jsonschema:"range start date, yyyy-MM-dd"`
	End    string `json:"end" jsonschema:"range end date, yyyy-MM-dd"`
	Count  int32  `json:"count,omitempty" jsonschema:"cap on returned candles; 0 returns the whole range"`
}

func (s *Server) getHistoryKline(ctx context.Context, _ *mcp.CallToolRequest, in GetHistoryKlineInput) (*mcp.CallToolResult, GetKlineOutput, error) {
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetKlineOutput{}, err
	}
	kt, err := opend.ParseKLType(in.KType)
	if err != nil {
		return nil, GetKlineOutput{}, err
	}
	if in.Start == "" || in.End == "" {
		return nil, GetKlineOutput{}, fmt.Errorf("start and end dates are required (yyyy-MM-dd)")
	}
	rows, err := s.gw.HistoryKLines(ctx, sec, kt, in.Start, in.End, in.Count)
	if err != nil {
		return nil, GetKlineOutput{}, err
	}
	return nil, GetKlineOutput{KLineList: klineRecords(rows)}, nil
}

// -- get_rt_data --------------------------------------------------------------

type GetRTDataInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
}

type RTDataRecord struct {
	Time           string  `json:"time"`
	Price          float64 `json:"price"`
	AvgPrice       float64 `json:"avg_price"`
	LastClosePrice float64 `json:"last_close_price"`
	Volume         int64   `json:"volume"`
	Turnover       float64 `json:"turnover"`
}

type GetRTDataOutput struct {
	RTDataList []RTDataRecord `json:"rt_data_list"`
}

func (s *Server) getRTData(ctx context.Context, _ *mcp.CallToolRequest, in GetRTDataInput) (*mcp.CallToolResult, GetRTDataOutput, error) {
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetRTDataOutput{}, err
	}
	rows, err := s.gw.RTData(ctx, sec)
	if err != nil {
		return nil, GetRTDataOutput{}, err
	}
	out := GetRTDataOutput{RTDataList: make([]RTDataRecord, 0, len(rows))}
	for _, r := range rows {
		out.RTDataList = append(out.RTDataList, RTDataRecord{
			Time:           r.Time,
			Price:          r.Price,
			AvgPrice:       r.AvgPrice,
			LastClosePrice: r.LastClosePrice,
			Volume:         r.Volume,
			Turnover:       r.Turnover,
		})
	}
	return nil, out, nil
}

// -- get_ticker ---------------------------------------------------------------

type GetTickerInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
	Count  int32  `json:"count,omitempty" jsonschema:"number of trade prints, default 100, max 1000"`
}

type TickerRecord struct {
	Time      string  `json:"time"`
	Sequence  int64   `json:"sequence"`
	Direction string  `json:"direction"`
	Price     float64 `json:"price"`
	Volume    int64   `json:"volume"`
	Turnover  float64 `json:"turnover"`
}

type GetTickerOutput struct {
	TickerList []TickerRecord `json:"ticker_list"`
}

func tickerDirection(dir int32) string {
	switch dir {
	case 1:
		return "BUY"
	case 2:
		return "SELL"
	default:
		return "NEUTRAL"
	}
}

func (s *Server) getTicker(ctx context.Context, _ *mcp.CallToolRequest, in GetTickerInput) (*mcp.CallToolResult, GetTickerOutput, error) {
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetTickerOutput{}, err
	}
	count := in.Count
	if count <= 0 {
		count = defaultKLineCount
	}
	if count > maxKLineCount {
		count = maxKLineCount
	}
	rows, err := s.gw.Tickers(ctx, sec, count)
	if err != nil {
		return nil, GetTickerOutput{}, err
	}
	out := GetTickerOutput{TickerList: make([]TickerRecord, 0, len(rows))}
	for _, r := range rows {
		out.TickerList = append(out.TickerList, TickerRecord{
			Time:      r.Time,
			Sequence:  r.Sequence,
			Direction: tickerDirection(r.Dir),
			Price:     r.Price,
			Volume:    r.Volume,
			Turnover:  r.Turnover,
		})
	}
	return nil, out, nil
}

// -- get_order_book -----------------------------------------------------------

// orderBookDepth matches the gateway's default book depth.
const orderBookDepth = 10

type GetOrderBookInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
}

type BookLevel struct {
	Price      float64 `json:"price"`
	Volume     int64   `json:"volume"`
	OrderCount int32   `json:"order_count"`
}

type GetOrderBookOutput struct {
	Symbol string      `json:"symbol"`
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
}

func bookLevels(rows []opend.OrderBookLevel) []BookLevel {
	out := make([]BookLevel, 0, len(rows))
	for _, r := range rows {
		out = append(out, BookLevel{Price: r.Price, Volume: r.Volume, OrderCount: r.OrderCount})
	}
	return out
}

func (s *Server) getOrderBook(ctx context.Context, _ *mcp.CallToolRequest, in GetOrderBookInput) (*mcp.CallToolResult, GetOrderBookOutput, error) {
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetOrderBookOutput{}, err
	}
	book, err := s.gw.OrderBook(ctx, sec, orderBookDepth)
	if err != nil {
		return nil, GetOrderBookOutput{}, err
	}
	return nil, GetOrderBookOutput{
		Symbol: sec.String(),
		Bids:   bookLevels(book.Bids),
		Asks:   bookLevels(book.Asks),
	}, nil
}

// -- get_broker_queue ---------------------------------------------------------

type GetBrokerQueueInput struct {
	Symbol string `json:"symbol" jsonschema:"stock symbol, e.g. HK.00700"`
}

type BrokerRecord struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Pos  int32  `json:"pos"`
}

type GetBrokerQueueOutput struct {
	Symbol        string         `json:"symbol"`
	BidBrokerList []BrokerRecord `json:"bid_broker_list"`
	AskBrokerList []BrokerRecord `json:"ask_broker_list"`
}

func brokerRecords(rows []opend.Broker) []BrokerRecord {
	out := make([]BrokerRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, BrokerRecord{ID: r.ID, Name: r.Name, Pos: r.Pos})
	}
	return out
}

func (s *Server) getBrokerQueue(ctx context.Context, _ *mcp.CallToolRequest, in GetBrokerQueueInput) (*mcp.CallToolResult, GetBrokerQueueOutput, error) {
	sec, err := opend.ParseSymbol(in.Symbol)
	if err != nil {
		return nil, GetBrokerQueueOutput{}, err
	}
	queue, err := s.gw.BrokerQueue(ctx, sec)
	if err != nil {
		return nil, GetBrokerQueueOutput{}, err
	}
	return nil, GetBrokerQueueOutput{
		Symbol:        sec.String(),
		BidBrokerList: brokerRecords(queue.Bids),
		AskBrokerList: brokerRecords(queue.Asks),
	}, nil
}

// -- subscribe / unsubscribe --------------------------------------------------

type SubscribeInput struct {
	Symbols  []string `json:"symbols" jsonschema:"stock symbols, e.g. HK.00700"`
	SubTypes []string `json:"sub_types" jsonschema:"subscription types: QUOTE, ORDER_BOOK, TICKER, RT_DATA, BROKER, K_1M, K_3M, K_5M, K_15M, K_30M, K_60M, K_DAY, K_WEEK, K_MON, K_QUARTER, K_YEAR"`
}

type SubscribeOutput struct {
	Status string `json:"status"`
	// Subscriptions is the state last acknowledged by the gateway, after
	// this call took effect.
	Subscriptions []opend.Subscription `json:"subscriptions"`
}

func (s *Server) subscribe(ctx context.Context, _ *mcp.CallToolRequest, in SubscribeInput) (*mcp.CallToolResult, SubscribeOutput, error) {
	secs, subs, err := parseSubArgs(in.Symbols, in.SubTypes)
	if err != nil {
		return nil, SubscribeOutput{}, err
	}
	if err := s.gw.Subscribe(ctx, secs, subs); err != nil {
		return nil, SubscribeOutput{}, err
	}
	s.log.Info().Strs("symbols", in.Symbols).Strs("sub_types", in.SubTypes).Msg("subscribed")
	return nil, SubscribeOutput{Status: "success", Subscriptions: s.gw.Subscriptions()}, nil
}

func (s *Server) unsubscribe(ctx context.Context, _ *mcp.CallToolRequest, in SubscribeInput) (*mcp.CallToolResult, SubscribeOutput, error) {
	secs, subs, err := parseSubArgs(in.Symbols, in.SubTypes)
	if err != nil {
		return nil, SubscribeOutput{}, err
	}
	if err := s.gw.Unsubscribe(ctx, secs, subs); err != nil {
		return nil, SubscribeOutput{}, err
	}
	s.log.Info().Strs("symbols", in.Symbols).Strs("sub_types", in.SubTypes).Msg("unsubscribed")
	return nil, SubscribeOutput{Status: "success", Subscriptions: s.gw.Subscriptions()}, nil
}

func parseSubArgs(symbols, subTypes []string) ([]opend.Security, []opend.SubType, error) {
	secs, err := opend.ParseSymbols(symbols)
	if err != nil {
		return nil, nil, err
	}
	subs, err := opend.ParseSubTypes(subTypes)
	if err != nil {
		return nil, nil, err
	}
	return secs, subs, nil
}
