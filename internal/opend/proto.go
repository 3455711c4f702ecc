// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Proto IDs from the OpenD interface definition. Only a subset is called by
// this server; the table keeps the full names so log lines stay readable.
const (
	protoInitConnect                uint32 = 1001
	protoGetGlobalState             uint32 = 1002
	protoNotify                     uint32 = 1003
	protoKeepAlive                  uint32 = 1004
	protoTrdGetAccList              uint32 = 2001
	protoTrdGetFunds                uint32 = 2101
	protoTrdGetPositions            uint32 = 2102
	protoTrdGetMaxTrdQtys           uint32 = 2111
	protoTrdGetMarginRatio          uint32 = 2223
	protoQotSub                     uint32 = 3001
	protoQotGetSubInfo              uint32 = 3003
	protoQotGetBasicQot             uint32 = 3004
	protoQotGetKL                   uint32 = 3005
	protoQotGetRT                   uint32 = 3006
	protoQotGetTicker               uint32 = 3007
	protoQotGetOrderBook            uint32 = 3008
	protoQotGetBroker               uint32 = 3009
	protoQotRequestHistoryKL        uint32 = 3103
	protoQotGetStaticInfo           uint32 = 3202
	protoQotGetSnapshot             uint32 = 3203
	protoQotGetOptionChain          uint32 = 3209
	protoQotStockFilter             uint32 = 3215
	protoQotGetMarketState          uint32 = 3223
	protoQotGetOptionExpirationDate uint32 = 3224
)

// protoName maps the IDs above to their OpenD interface names for logging.
var protoName = map[uint32]string{
	protoInitConnect:                "InitConnect",
	protoGetGlobalState:             "GetGlobalState",
	protoNotify:                     "Notify",
	protoKeepAlive:                  "KeepAlive",
	protoTrdGetAccList:              "Trd_GetAccList",
	protoTrdGetFunds:                "Trd_GetFunds",
	protoTrdGetPositions:            "Trd_GetPositionList",
	protoTrdGetMaxTrdQtys:           "Trd_GetMaxTrdQtys",
	protoTrdGetMarginRatio:          "Trd_GetMarginRatio",
	protoQotSub:                     "Qot_Sub",
	protoQotGetSubInfo:              "Qot_GetSubInfo",
	protoQotGetBasicQot:             "Qot_GetBasicQot",
	protoQotGetKL:                   "Qot_GetKL",
	protoQotGetRT:                   "Qot_GetRT",
	protoQotGetTicker:               "Qot_GetTicker",
	protoQotGetOrderBook:            "Qot_GetOrderBook",
	protoQotGetBroker:               "Qot_GetBroker",
	protoQotRequestHistoryKL:        "Qot_RequestHistoryKL",
	protoQotGetStaticInfo:           "Qot_GetStaticInfo",
	protoQotGetSnapshot:             "Qot_GetSecuritySnapshot",
	protoQotGetOptionChain:          "Qot_GetOptionChain",
	protoQotStockFilter:             "Qot_StockFilter",
	protoQotGetMarketState:          "Qot_GetMarketState",
	protoQotGetOptionExpirationDate: "Qot_GetOptionExpirationDate",
}

// request and response are the JSON envelopes OpenD wraps every body in.
type request struct {
	C2S any `json:"c2s"`
}

type response struct {
	RetType int32           `json:"retType"`
	RetMsg  string          `json:"retMsg"`
	ErrCode int32           `json:"errCode"`
	S2C     json.RawMessage `json:"s2c"`
}

const retTypeSucceed = 0

// GatewayError is a request the gateway accepted on the wire but rejected,
// e.g. an unsubscribed quote read or an unknown security. The message is the
// gateway's own retMsg so tools can surface it verbatim.
type GatewayError struct {
	Proto   uint32
	ErrCode int32
	Msg     string
}

func (e *GatewayError) Error() string {
	name := protoName[e.Proto]
	if name == "" {
		name = fmt.Sprintf("proto %d", e.Proto)
	}
	if e.Msg == "" {
		return fmt.Sprintf("%s failed (errCode %d)", name, e.ErrCode)
	}
	return fmt.Sprintf("%s: %s", name, e.Msg)
}

// ---------------------------------------------------------------------------
// Markets and securities
// ---------------------------------------------------------------------------

// Market is OpenD's QotMarket enum.
type Market int32

const (
	MarketHK Market = 1
	MarketUS Market = 11
	MarketSH Market = 21
	MarketSZ Market = 22
)

var marketByName = map[string]Market{
	"HK": MarketHK,
	"US": MarketUS,
	"SH": MarketSH,
	"SZ": MarketSZ,
}

var marketName = map[Market]string{
	MarketHK: "HK",
	MarketUS: "US",
	MarketSH: "SH",
	MarketSZ: "SZ",
}

// ParseMarket resolves a market name ("HK", "US", "SH", "SZ").
func ParseMarket(name string) (Market, error) {
	m, ok := marketByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown market %q (want HK, US, SH or SZ)", name)
	}
	return m, nil
}

// MarketNames lists the supported market names in stable order.
func MarketNames() []string {
	names := make([]string, 0, len(marketByName))
	for n := range marketByName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Security identifies one instrument on the wire.
type Security struct {
	Market Market `json:"market"`
	Code   string `json:"code"`
}

// String renders the "MARKET.CODE" form used by every tool, e.g. "HK.00700".
func (s Security) String() string {
	name := marketName[s.Market]
	if name == "" {
		name = fmt.Sprintf("%d", int32(s.Market))
	}
	return name + "." + s.Code
}

// ParseSymbol converts a "MARKET.CODE" symbol into a wire Security.
func ParseSymbol(symbol string) (Security, error) {
	market, code, ok := strings.Cut(strings.TrimSpace(symbol), ".")
	if !ok || code == "" {
		return Security{}, fmt.Errorf("invalid symbol %q (want e.g. HK.00700 or US.AAPL)", symbol)
	}
	m, err := ParseMarket(market)
	if err != nil {
		return Security{}, fmt.Errorf("invalid symbol %q: %w", symbol, err)
	}
	return Security{Market: m, Code: code}, nil
}

// ParseSymbols converts a symbol list, failing on the first bad entry.
func ParseSymbols(symbols []string) ([]Security, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols given")
	}
	secs := make([]Security, 0, len(symbols))
	for _, s := range symbols {
		sec, err := ParseSymbol(s)
		if err != nil {
			return nil, err
		}
		secs = append(secs, sec)
	}
	return secs, nil
}

// ---------------------------------------------------------------------------
// Subscription and K-line types
// ---------------------------------------------------------------------------

// SubType is OpenD's SubType enum.
type SubType int32

const (
	SubTypeQuote     SubType = 1
	SubTypeOrderBook SubType = 2
	SubTypeTicker    SubType = 4
	SubTypeRT        SubType = 5
	SubTypeKLDay     SubType = 6
	SubTypeKL5Min    SubType = 7
	SubTypeKL15Min   SubType = 8
	SubTypeKL30Min   SubType = 9
	SubTypeKL60Min   SubType = 10
	SubTypeKL1Min    SubType = 11
	SubTypeKLWeek    SubType = 12
	SubTypeKLMonth   SubType = 13
	SubTypeBroker    SubType = 14
	SubTypeKLQuarter SubType = 15
	SubTypeKLYear    SubType = 16
	SubTypeKL3Min    SubType = 17
)

// subTypeByName uses the names the original Futu API documents, which is what
// MCP clients pass to subscribe/unsubscribe.
var subTypeByName = map[string]SubType{
	"QUOTE":      SubTypeQuote,
	"ORDER_BOOK": SubTypeOrderBook,
	"TICKER":     SubTypeTicker,
	"RT_DATA":    SubTypeRT,
	"K_DAY":      SubTypeKLDay,
	"K_5M":       SubTypeKL5Min,
	"K_15M":      SubTypeKL15Min,
	"K_30M":      SubTypeKL30Min,
	"K_60M":      SubTypeKL60Min,
	"K_1M":       SubTypeKL1Min,
	"K_3M":       SubTypeKL3Min,
	"K_WEEK":     SubTypeKLWeek,
	"K_MON":      SubTypeKLMonth,
	"K_QUARTER":  SubTypeKLQuarter,
	"K_YEAR":     SubTypeKLYear,
	"BROKER":     SubTypeBroker,
}

var subTypeName = func() map[SubType]string {
	m := make(map[SubType]string, len(subTypeByName))
	for name, st := range subTypeByName {
		m[st] = name
	}
	return m
}()

// ParseSubType resolves a subscription type name such as "QUOTE" or "K_DAY".
func ParseSubType(name string) (SubType, error) {
	st, ok := subTypeByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown subscription type %q", name)
	}
	return st, nil
}

// ParseSubTypes resolves a subscription type name list.
func ParseSubTypes(names []string) ([]SubType, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no subscription types given")
	}
	subs := make([]SubType, 0, len(names))
	for _, n := range names {
		st, err := ParseSubType(n)
		if err != nil {
			return nil, err
		}
		subs = append(subs, st)
	}
	return subs, nil
}

func (s SubType) String() string {
	if name, ok := subTypeName[s]; ok {
		return name
	}
	return fmt.Sprintf("SUB_TYPE_%d", int32(s))
}

// KLType is OpenD's KLType enum. Note the wire values do not follow the
// bar-size ordering.
type KLType int32

const (
	KL1Min    KLType = 1
	KLDay     KLType = 2
	KLWeek    KLType = 3
	KLMonth   KLType = 4
	KLYear    KLType = 5
	KL5Min    KLType = 6
	KL15Min   KLType = 7
	KL30Min   KLType = 8
	KL60Min   KLType = 9
	KL3Min    KLType = 10
	KLQuarter KLType = 11
)

var klTypeByName = map[string]KLType{
	"K_1M":      KL1Min,
	"K_3M":      KL3Min,
	"K_5M":      KL5Min,
	"K_15M":     KL15Min,
	"K_30M":     KL30Min,
	"K_60M":     KL60Min,
	"K_DAY":     KLDay,
	"K_WEEK":    KLWeek,
	"K_MON":     KLMonth,
	"K_QUARTER": KLQuarter,
	"K_YEAR":    KLYear,
}

// ParseKLType resolves a K-line type name such as "K_DAY" or "K_5M".
func ParseKLType(name string) (KLType, error) {
	kt, ok := klTypeByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown kline type %q", name)
	}
	return kt, nil
}

// RehabType is OpenD's price-adjustment enum.
type RehabType int32

const (
	RehabNone     RehabType = 0
	RehabForward  RehabType = 1
	RehabBackward RehabType = 2
)

// ---------------------------------------------------------------------------
// Static info, options and filters
// ---------------------------------------------------------------------------

// SecurityType is OpenD's SecurityType enum.
type SecurityType int32

const (
	SecurityTypeBond    SecurityType = 1
	SecurityTypeStock   SecurityType = 3
	SecurityTypeTrust   SecurityType = 4
	SecurityTypeWarrant SecurityType = 5
	SecurityTypeIndex   SecurityType = 6
	SecurityTypePlate   SecurityType = 7
	SecurityTypeDrvt    SecurityType = 8
	SecurityTypeFuture  SecurityType = 10
)

var securityTypeByName = map[string]SecurityType{
	"BOND":    SecurityTypeBond,
	"STOCK":   SecurityTypeStock,
	"TRUST":   SecurityTypeTrust,
	"WARRANT": SecurityTypeWarrant,
	"INDEX":   SecurityTypeIndex,
	"PLATE":   SecurityTypePlate,
	"DRVT":    SecurityTypeDrvt,
	"FUTURE":  SecurityTypeFuture,
}

var securityTypeName = func() map[SecurityType]string {
	m := make(map[SecurityType]string, len(securityTypeByName))
	for name, st := range securityTypeByName {
		m[st] = name
	}
	return m
}()

// String renders the security type name, falling back to the raw number for
// values the table does not know.
func (t SecurityType) String() string {
	if name, ok := securityTypeName[t]; ok {
		return name
	}
	return fmt.Sprintf("SEC_TYPE_%d", int32(t))
}

// ParseSecurityType resolves a security type name; empty means STOCK.
func ParseSecurityType(name string) (SecurityType, error) {
	if strings.TrimSpace(name) == "" {
		return SecurityTypeStock, nil
	}
	st, ok := securityTypeByName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return 0, fmt.Errorf("unknown security type %q", name)
	}
	return st, nil
}

// OptionType is OpenD's OptionType enum; zero means both sides.
type OptionType int32

const (
	OptionTypeAll  OptionType = 0
	OptionTypeCall OptionType = 1
	OptionTypePut  OptionType = 2
)

// ParseOptionType resolves "CALL", "PUT" or "ALL"; empty means ALL.
func ParseOptionType(name string) (OptionType, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "ALL":
		return OptionTypeAll, nil
	case "CALL":
		return OptionTypeCall, nil
	case "PUT":
		return OptionTypePut, nil
	default:
		return 0, fmt.Errorf("unknown option type %q (want CALL, PUT or ALL)", name)
	}
}

func (o OptionType) String() string {
	switch o {
	case OptionTypeCall:
		return "CALL"
	case OptionTypePut:
		return "PUT"
	default:
		return "ALL"
	}
}

// marketStateName maps QotMarketState values to readable names.
var marketStateName = map[int32]string{
	0:  "NONE",
	1:  "AUCTION",
	2:  "WAITING_OPEN",
	3:  "MORNING",
	4:  "REST",
	5:  "AFTERNOON",
	6:  "CLOSED",
	8:  "PRE_MARKET_BEGIN",
	9:  "PRE_MARKET_END",
	10: "AFTER_HOURS_BEGIN",
	11: "AFTER_HOURS_END",
	13: "NIGHT_OPEN",
	14: "NIGHT_END",
	15: "FUTURE_DAY_OPEN",
	16: "FUTURE_DAY_BREAK",
	17: "FUTURE_DAY_CLOSE",
	18: "FUTURE_DAY_WAIT_OPEN",
	19: "HK_CAS",
}

// MarketStateName renders a QotMarketState value, falling back to the raw
// number for values this table does not know.
func MarketStateName(state int32) string {
	if name, ok := marketStateName[state]; ok {
		return name
	}
	return fmt.Sprintf("STATE_%d", state)
}

// ---------------------------------------------------------------------------
// Trade enums
// ---------------------------------------------------------------------------

// TrdEnv selects simulated or real trading.
type TrdEnv int32

const (
	TrdEnvSimulate TrdEnv = 0
	TrdEnvReal     TrdEnv = 1
)

// ParseTrdEnv resolves "SIMULATE" or "REAL".
func ParseTrdEnv(name string) (TrdEnv, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SIMULATE":
		return TrdEnvSimulate, nil
	case "REAL":
		return TrdEnvReal, nil
	default:
		return 0, fmt.Errorf("unknown trade environment %q (want SIMULATE or REAL)", name)
	}
}

func (e TrdEnv) String() string {
	if e == TrdEnvReal {
		return "REAL"
	}
	return "SIMULATE"
}

// TrdMarket is OpenD's TrdMarket enum.
type TrdMarket int32

const (
	TrdMarketHK TrdMarket = 1
	TrdMarketUS TrdMarket = 2
	TrdMarketCN TrdMarket = 3
)

// ParseTrdMarket resolves "HK", "US" or "CN".
func ParseTrdMarket(name string) (TrdMarket, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "HK":
		return TrdMarketHK, nil
	case "US":
		return TrdMarketUS, nil
	case "CN":
		return TrdMarketCN, nil
	default:
		return 0, fmt.Errorf("unknown trade market %q (want HK, US or CN)", name)
	}
}

// SecurityFirm is OpenD's SecurityFirm enum, relevant for real accounts.
type SecurityFirm int32

const (
	SecurityFirmFutuSecurities SecurityFirm = 1
	SecurityFirmFutuInc        SecurityFirm = 2
	SecurityFirmFutuSG         SecurityFirm = 3
)

// ParseSecurityFirm resolves "FUTUSECURITIES", "FUTUINC" or "FUTUSG".
func ParseSecurityFirm(name string) (SecurityFirm, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "FUTUSECURITIES":
		return SecurityFirmFutuSecurities, nil
	case "FUTUINC":
		return SecurityFirmFutuInc, nil
	case "FUTUSG":
		return SecurityFirmFutuSG, nil
	default:
		return 0, fmt.Errorf("unknown security firm %q", name)
	}
}

// trdSecMarket maps a quote market onto the TrdSecMarket enum that
// Trd_GetMaxTrdQtys expects alongside the raw code.
func trdSecMarket(m Market) int32 {
	switch m {
	case MarketHK:
		return 1
	case MarketUS:
		return 2
	case MarketSH:
		return 31
	case MarketSZ:
		return 32
	default:
		return 0
	}
}
