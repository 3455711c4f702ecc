// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futu-stock-mcp-server/internal/opend"
)

// fakeGateway implements Gateway with one function field per method. Methods
// without a stub fail loudly, so a test that hits an unexpected gateway call
// shows up as a tool error naming the method.
type fakeGateway struct {
	globalState           func(context.Context) (*opend.GlobalState, error)
	basicQuotes           func(context.Context, []opend.Security) ([]opend.BasicQuote, error)
	snapshots             func(context.Context, []opend.Security) ([]opend.Snapshot, error)
	curKLines             func(context.Context, opend.Security, opend.KLType, int32) ([]opend.KLine, error)
	historyKLines         func(context.Context, opend.Security, opend.KLType, string, string, int32) ([]opend.KLine, error)
	rtData                func(context.Context, opend.Security) ([]opend.TimeShare, error)
	tickers               func(context.Context, opend.Security, int32) ([]opend.Ticker, error)
	orderBook             func(context.Context, opend.Security, int32) (*opend.OrderBookSides, error)
	brokerQueue           func(context.Context, opend.Security) (*opend.BrokerQueueSides, error)
	subscribe             func(context.Context, []opend.Security, []opend.SubType) error
	unsubscribe           func(context.Context, []opend.Security, []opend.SubType) error
	subscriptions         func() []opend.Subscription
	staticInfos           func(context.Context, []opend.Security) ([]opend.StaticInfo, error)
	staticInfosByMarket   func(context.Context, opend.Market, opend.SecurityType) ([]opend.StaticInfo, error)
	optionChain           func(context.Context, opend.Security, string, string, opend.OptionType) ([]opend.OptionChainDate, error)
	optionExpirationDates func(context.Context, opend.Security) ([]opend.OptionExpiry, error)
	stockFilter           func(context.Context, *opend.StockFilterRequest) (*opend.StockFilterResult, error)
	accountList           func(context.Context) ([]opend.Account, error)
	funds                 func(context.Context) (*opend.Funds, error)
	positions             func(context.Context) ([]opend.Position, error)
	maxTrdQtys            func(context.Context, opend.Security, float64) (*opend.MaxTrdQtys, error)
	marginRatio           func(context.Context, []opend.Security) ([]opend.MarginRatioInfo, error)
	status                func() opend.Status
}

var _ Gateway = (*fakeGateway)(nil)

func errNotStubbed(method string) error {
	return fmt.Errorf("fakeGateway: %s not stubbed", method)
}

func (f *fakeGateway) GlobalState(ctx context.Context) (*opend.GlobalState, error) {
	if f.globalState == nil {
		return nil, errNotStubbed("GlobalState")
	}
	return f.globalState(ctx)
}

func (f *fakeGateway) BasicQuotes(ctx context.Context, secs []opend.Security) ([]opend.BasicQuote, error) {
	if f.basicQuotes == nil {
		return nil, errNotStubbed("BasicQuotes")
	}
	return f.basicQuotes(ctx, secs)
}

func (f *fakeGateway) Snapshots(ctx context.Context, secs []opend.Security) ([]opend.Snapshot, error) {
	if f.snapshots == nil {
		return nil, errNotStubbed("Snapshots")
	}
	return f.snapshots(ctx, secs)
}

func (f *fakeGateway) CurKLines(ctx context.Context, sec opend.Security, klType opend.KLType, count int32) ([]opend.KLine, error) {
	if f.curKLines == nil {
		return nil, errNotStubbed("CurKLines")
	}
	return f.curKLines(ctx, sec, klType, count)
}

func (f *fakeGateway) HistoryKLines(ctx context.Context, sec opend.Security, klType opend.KLType, begin, end string, maxCount int32) ([]opend.KLine, error) {
	if f.historyKLines == nil {
		return nil, errNotStubbed("HistoryKLines")
	}
	return f.historyKLines(ctx, sec, klType, begin, end, maxCount)
}

func (f *fakeGateway) RTData(ctx context.Context, sec opend.Security) ([]opend.TimeShare, error) {
	if f.rtData == nil {
		return nil, errNotStubbed("RTData")
	}
	return f.rtData(ctx, sec)
}

func (f *fakeGateway) Tickers(ctx context.Context, sec opend.Security, count int32) ([]opend.Ticker, error) {
	if f.tickers == nil {
		return nil, errNotStubbed("Tickers")
	}
	return f.tickers(ctx, sec, count)
}

func (f *fakeGateway) OrderBook(ctx context.Context, sec opend.Security, num int32) (*opend.OrderBookSides, error) {
	if f.orderBook == nil {
		return nil, errNotStubbed("OrderBook")
	}
	return f.orderBook(ctx, sec, num)
}

func (f *fakeGateway) BrokerQueue(ctx context.Context, sec opend.Security) (*opend.BrokerQueueSides, error) {
	if f.brokerQueue == nil {
		return nil, errNotStubbed("BrokerQueue")
	}
	return f.brokerQueue(ctx, sec)
}

func (f *fakeGateway) Subscribe(ctx context.Context, secs []opend.Security, subs []opend.SubType) error {
	if f.subscribe == nil {
		return errNotStubbed("Subscribe")
	}
	return f.subscribe(ctx, secs, subs)
}

func (f *fakeGateway) Unsubscribe(ctx context.Context, secs []opend.Security, subs []opend.SubType) error {
	if f.unsubscribe == nil {
		return errNotStubbed("Unsubscribe")
	}
	return f.unsubscribe(ctx, secs, subs)
}

func (f *fakeGateway) Subscriptions() []opend.Subscription {
	if f.subscriptions == nil {
		return nil
	}
	return f.subscriptions()
}

func (f *fakeGateway) StaticInfos(ctx context.Context, secs []opend.Security) ([]opend.StaticInfo, error) {
	if f.staticInfos == nil {
		return nil, errNotStubbed("StaticInfos")
	}
	return f.staticInfos(ctx, secs)
}

func (f *fakeGateway) StaticInfosByMarket(ctx context.Context, market opend.Market, secType opend.SecurityType) ([]opend.StaticInfo, error) {
	if f.staticInfosByMarket == nil {
		return nil, errNotStubbed("StaticInfosByMarket")
	}
	return f.staticInfosByMarket(ctx, market, secType)
}

func (f *fakeGateway) OptionChain(ctx context.Context, owner opend.Security, begin, end string, optType opend.OptionType) ([]opend.OptionChainDate, error) {
	if f.optionChain == nil {
		return nil, errNotStubbed("OptionChain")
	}
	return f.optionChain(ctx, owner, begin, end, optType)
}

func (f *fakeGateway) OptionExpirationDates(ctx context.Context, owner opend.Security) ([]opend.OptionExpiry, error) {
	if f.optionExpirationDates == nil {
		return nil, errNotStubbed("OptionExpirationDates")
	}
	return f.optionExpirationDates(ctx, owner)
}

func (f *fakeGateway) StockFilter(ctx context.Context, req *opend.StockFilterRequest) (*opend.StockFilterResult, error) {
	if f.stockFilter == nil {
		return nil, errNotStubbed("StockFilter")
	}
	return f.stockFilter(ctx, req)
}

func (f *fakeGateway) AccountList(ctx context.Context) ([]opend.Account, error) {
	if f.accountList == nil {
		return nil, errNotStubbed("AccountList")
	}
	return f.accountList(ctx)
}

func (f *fakeGateway) Funds(ctx context.Context) (*opend.Funds, error) {
	if f.funds == nil {
		return nil, errNotStubbed("Funds")
	}
	return f.funds(ctx)
}

func (f *fakeGateway) Positions(ctx context.Context) ([]opend.Position, error) {
	if f.positions == nil {
		return nil, errNotStubbed("Positions")
	}
	return f.positions(ctx)
}

func (f *fakeGateway) MaxTrdQtys(ctx context.Context, sec opend.Security, price float64) (*opend.MaxTrdQtys, error) {
	if f.maxTrdQtys == nil {
		return nil, errNotStubbed("MaxTrdQtys")
	}
	return f.maxTrdQtys(ctx, sec, price)
}

func (f *fakeGateway) MarginRatio(ctx context.Context, secs []opend.Security) ([]opend.MarginRatioInfo, error) {
	if f.marginRatio == nil {
		return nil, errNotStubbed("MarginRatio")
	}
	return f.marginRatio(ctx, secs)
}

func (f *fakeGateway) Status() opend.Status {
	if f.status == nil {
		return opend.Status{}
	}
	return f.status()
}

// newTestSession starts the server over in-memory transports and connects a
// test client. Cleanup is handled via t.Cleanup.
func newTestSession(t *testing.T, gw Gateway, opts *Options) *mcp.ClientSession {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	srv := New(gw, opts)
	serverTransport, clientTransport := mcp.NewInMemoryTransports()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, serverTransport)
	}()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		t.Fatalf("client.Connect: %v", err)
	}

	t.Cleanup(func() {
		session.Close()
		cancel()
		<-errCh
	})
	return session
}

// callTool invokes a tool and requires a non-error result.
func callTool(t *testing.T, session *mcp.ClientSession, name string, args map[string]json.RawMessage) *mcp.CallToolResult {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	if res.IsError {
		t.Fatalf("%s returned tool error: %s", name, resultText(t, res))
	}
	return res
}

// callToolErr invokes a tool and returns the in-band error text.
func callToolErr(t *testing.T, session *mcp.ClientSession, name string, args map[string]json.RawMessage) string {
	t.Helper()
	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.True(t, res.IsError, "%s should have failed", name)
	return resultText(t, res)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "first content block should be text, got %T", res.Content[0])
	return text.Text
}

// decodeResult unmarshals the tool's JSON payload into out.
func decodeResult(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), out))
}

func toolNames(tools []*mcp.Tool) []string {
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	return names
}

var allToolNames = []string{
	"get_stock_quote", "get_market_snapshot", "get_cur_kline", "get_history_kline",
	"get_rt_data", "get_ticker", "get_order_book", "get_broker_queue",
	"subscribe", "unsubscribe",
	"get_option_chain", "get_option_expiration_date", "get_option_condor", "get_option_butterfly",
	"get_account_list", "get_funds", "get_positions", "get_max_power", "get_margin_ratio",
	"get_market_state", "get_security_info", "get_security_list", "get_stock_filter", "get_current_time",
}

func TestInitialize(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, &Options{Version: "1.4.0"})

	initResult := session.InitializeResult()
	require.NotNil(t, initResult)
	require.NotNil(t, initResult.ServerInfo)
	assert.Equal(t, "futu-stock-mcp-server", initResult.ServerInfo.Name)
	assert.Equal(t, "1.4.0", initResult.ServerInfo.Version)
}

func TestToolCatalogIsStable(t *testing.T) {
	ctx := context.Background()

	// The catalog must not depend on the trading gate; only call outcomes do.
	for _, trading := range []bool{false, true} {
		session := newTestSession(t, &fakeGateway{}, &Options{TradingEnabled: trading})
		tools, err := session.ListTools(ctx, nil)
		require.NoError(t, err)
		assert.ElementsMatch(t, allToolNames, toolNames(tools.Tools), "trading=%v", trading)
	}
}

func TestToolErrorsTravelInBand(t *testing.T) {
	gw := &fakeGateway{
		basicQuotes: func(context.Context, []opend.Security) ([]opend.BasicQuote, error) {
			return nil, errors.New("Qot_GetBasicQot: the security is not subscribed")
		},
	}
	session := newTestSession(t, gw, nil)

	text := callToolErr(t, session, "get_stock_quote", map[string]json.RawMessage{
		"symbols": json.RawMessage(`["HK.00700"]`),
	})
	assert.Contains(t, text, "not subscribed")
}

func TestListResources(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)

	resources, err := session.ListResources(context.Background(), nil)
	require.NoError(t, err)

	uris := make([]string, len(resources.Resources))
	for i, r := range resources.Resources {
		uris[i] = r.URI
	}
	assert.ElementsMatch(t, []string{"futu://subscriptions", "futu://gateway"}, uris)
}

func TestReadSubscriptionsResource(t *testing.T) {
	gw := &fakeGateway{
		subscriptions: func() []opend.Subscription {
			return []opend.Subscription{
				{Symbol: "HK.00700", SubTypes: []string{"K_DAY", "QUOTE"}},
			}
		},
	}
	session := newTestSession(t, gw, nil)

	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "futu://subscriptions"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	assert.Equal(t, "futu://subscriptions", res.Contents[0].URI)
	assert.Equal(t, "application/json", res.Contents[0].MIMEType)

	var payload struct {
		Subscriptions []opend.Subscription `json:"subscriptions"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &payload))
	require.Len(t, payload.Subscriptions, 1)
	assert.Equal(t, "HK.00700", payload.Subscriptions[0].Symbol)
	assert.Equal(t, []string{"K_DAY", "QUOTE"}, payload.Subscriptions[0].SubTypes)
}

func TestReadSubscriptionsResourceEmpty(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)

	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "futu://subscriptions"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)
	// An empty mirror is an empty list, not null.
	assert.Contains(t, res.Contents[0].Text, `"subscriptions": []`)
}

func TestReadGatewayResource(t *testing.T) {
	gw := &fakeGateway{
		status: func() opend.Status {
			return opend.Status{
				Connected:    true,
				Addr:         "127.0.0.1:11111",
				ConnID:       7722,
				ServerVer:    898,
				KeepAliveSec: 10,
			}
		},
	}
	session := newTestSession(t, gw, nil)

	res, err := session.ReadResource(context.Background(), &mcp.ReadResourceParams{URI: "futu://gateway"})
	require.NoError(t, err)
	require.Len(t, res.Contents, 1)

	var status opend.Status
	require.NoError(t, json.Unmarshal([]byte(res.Contents[0].Text), &status))
	assert.True(t, status.Connected)
	assert.Equal(t, "127.0.0.1:11111", status.Addr)
	assert.Equal(t, uint64(7722), status.ConnID)
}

func TestPrompts(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)
	ctx := context.Background()

	prompts, err := session.ListPrompts(ctx, nil)
	require.NoError(t, err)
	names := make([]string, len(prompts.Prompts))
	for i, p := range prompts.Prompts {
		names[i] = p.Name
	}
	assert.ElementsMatch(t, []string{"market_analysis", "option_strategy"}, names)

	res, err := session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "market_analysis",
		Arguments: map[string]string{"symbol": "HK.00700"},
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, mcp.Role("user"), res.Messages[0].Role)
	text, ok := res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "HK.00700")

	res, err = session.GetPrompt(ctx, &mcp.GetPromptParams{
		Name:      "option_strategy",
		Arguments: map[string]string{"symbol": "US.AAPL", "expiry": "2025-12-19"},
	})
	require.NoError(t, err)
	text, ok = res.Messages[0].Content.(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "US.AAPL")
	assert.Contains(t, text.Text, "2025-12-19")
}

func TestPromptMissingArgument(t *testing.T) {
	session := newTestSession(t, &fakeGateway{}, nil)

	_, err := session.GetPrompt(context.Background(), &mcp.GetPromptParams{
		Name:      "option_strategy",
		Arguments: map[string]string{"symbol": "US.AAPL"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required argument "expiry"`)
}

func TestHTTPTransport(t *testing.T) {
	srv := New(&fakeGateway{}, nil)
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return srv }, nil)

	httpSrv := httptest.NewServer(handler)
	t.Cleanup(httpSrv.Close)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-http-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(context.Background(), &mcp.StreamableClientTransport{
		Endpoint: httpSrv.URL,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	res := callTool(t, session, "get_current_time", nil)
	var out GetCurrentTimeOutput
	decodeResult(t, res, &out)
	assert.Greater(t, out.Timestamp, int64(0))
}
