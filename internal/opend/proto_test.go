// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		want   Security
	}{
		{"HK.00700", Security{MarketHK, "00700"}},
		{"US.AAPL", Security{MarketUS, "AAPL"}},
		{"sh.600519", Security{MarketSH, "600519"}},
		{" SZ.000001 ", Security{MarketSZ, "000001"}},
	}
	for _, tt := range tests {
		sec, err := ParseSymbol(tt.symbol)
		require.NoError(t, err, tt.symbol)
		assert.Equal(t, tt.want, sec)
	}
}

func TestParseSymbolInvalid(t *testing.T) {
	for _, symbol := range []string{"", "00700", "HK.", "XX.00700", "."} {
		_, err := ParseSymbol(symbol)
		assert.Error(t, err, "symbol %q", symbol)
	}
}

func TestParseSymbols(t *testing.T) {
	secs, err := ParseSymbols([]string{"HK.00700", "US.TSLA"})
	require.NoError(t, err)
	require.Len(t, secs, 2)
	assert.Equal(t, Security{MarketHK, "00700"}, secs[0])
	assert.Equal(t, Security{MarketUS, "TSLA"}, secs[1])

	_, err = ParseSymbols(nil)
	assert.Error(t, err)

	_, err = ParseSymbols([]string{"HK.00700", "bogus"})
	assert.Error(t, err)
}

func TestSecurityString(t *testing.T) {
	assert.Equal(t, "HK.00700", Security{MarketHK, "00700"}.String())
	assert.Equal(t, "US.AAPL", Security{MarketUS, "AAPL"}.String())
	// Unknown markets keep the raw enum so nothing silently disappears.
	assert.Equal(t, "99.X", Security{Market(99), "X"}.String())
}

func TestMarketNames(t *testing.T) {
	assert.Equal(t, []string{"HK", "SH", "SZ", "US"}, MarketNames())
}

func TestParseSubType(t *testing.T) {
	st, err := ParseSubType("quote")
	require.NoError(t, err)
	assert.Equal(t, SubTypeQuote, st)

	st, err = ParseSubType("K_DAY")
	require.NoError(t, err)
	assert.Equal(t, SubTypeKLDay, st)

	_, err = ParseSubType("CANDLES")
	assert.Error(t, err)
}

func TestSubTypeString(t *testing.T) {
	assert.Equal(t, "ORDER_BOOK", SubTypeOrderBook.String())
	assert.Equal(t, "SUB_TYPE_99", SubType(99).String())
}

func TestParseKLTypeWireValues(t *testing.T) {
	// The wire enum does not follow bar-size order; pin the values that
	// differ from the subscription enum.
	tests := map[string]KLType{
		"K_1M":      KL1Min,
		"K_DAY":     KLDay,
		"K_WEEK":    KLWeek,
		"K_60M":     KL60Min,
		"K_QUARTER": KLQuarter,
	}
	for name, want := range tests {
		kt, err := ParseKLType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, kt, name)
	}
	assert.Equal(t, KLType(2), KLDay)
	assert.Equal(t, KLType(1), KL1Min)

	_, err := ParseKLType("K_2H")
	assert.Error(t, err)
}

func TestParseOptionType(t *testing.T) {
	for name, want := range map[string]OptionType{
		"":     OptionTypeAll,
		"ALL":  OptionTypeAll,
		"call": OptionTypeCall,
		"PUT":  OptionTypePut,
	} {
		ot, err := ParseOptionType(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, ot, name)
	}

	_, err := ParseOptionType("STRADDLE")
	assert.Error(t, err)
}

func TestParseSecurityType(t *testing.T) {
	st, err := ParseSecurityType("")
	require.NoError(t, err)
	assert.Equal(t, SecurityTypeStock, st)

	st, err = ParseSecurityType("warrant")
	require.NoError(t, err)
	assert.Equal(t, SecurityTypeWarrant, st)

	_, err = ParseSecurityType("CRYPTO")
	assert.Error(t, err)
}

func TestSecurityTypeString(t *testing.T) {
	assert.Equal(t, "STOCK", SecurityTypeStock.String())
	assert.Equal(t, "SEC_TYPE_42", SecurityType(42).String())
}

func TestMarketStateName(t *testing.T) {
	assert.Equal(t, "MORNING", MarketStateName(3))
	assert.Equal(t, "CLOSED", MarketStateName(6))
	assert.Equal(t, "STATE_77", MarketStateName(77))
}

func TestGatewayErrorMessage(t *testing.T) {
	err := &GatewayError{Proto: protoQotGetBasicQot, ErrCode: 102, Msg: "the security is not subscribed"}
	assert.Equal(t, "Qot_GetBasicQot: the security is not subscribed", err.Error())

	err = &GatewayError{Proto: protoQotSub, ErrCode: 400}
	assert.Equal(t, "Qot_Sub failed (errCode 400)", err.Error())

	err = &GatewayError{Proto: 9999, Msg: "boom"}
	assert.Equal(t, "proto 9999: boom", err.Error())
}

func TestParseTradeEnums(t *testing.T) {
	env, err := ParseTrdEnv("simulate")
	require.NoError(t, err)
	assert.Equal(t, TrdEnvSimulate, env)

	env, err = ParseTrdEnv("REAL")
	require.NoError(t, err)
	assert.Equal(t, TrdEnvReal, env)

	_, err = ParseTrdEnv("PAPER")
	assert.Error(t, err)

	m, err := ParseTrdMarket("us")
	require.NoError(t, err)
	assert.Equal(t, TrdMarketUS, m)

	_, err = ParseTrdMarket("JP")
	assert.Error(t, err)

	firm, err := ParseSecurityFirm("FUTUSECURITIES")
	require.NoError(t, err)
	assert.Equal(t, SecurityFirmFutuSecurities, firm)

	_, err = ParseSecurityFirm("GOLDMAN")
	assert.Error(t, err)
}

func TestTrdSecMarket(t *testing.T) {
	// Trade protos renumber the mainland markets.
	assert.Equal(t, int32(1), trdSecMarket(MarketHK))
	assert.Equal(t, int32(2), trdSecMarket(MarketUS))
	assert.Equal(t, int32(31), trdSecMarket(MarketSH))
	assert.Equal(t, int32(32), trdSecMarket(MarketSZ))
	assert.Equal(t, int32(0), trdSecMarket(Market(99)))
}
