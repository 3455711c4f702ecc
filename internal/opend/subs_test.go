// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubStateAddRemove(t *testing.T) {
	var s subState

	tencent := Security{MarketHK, "00700"}
	apple := Security{MarketUS, "AAPL"}

	s.add([]Security{tencent, apple}, []SubType{SubTypeQuote, SubTypeTicker})
	s.add([]Security{tencent}, []SubType{SubTypeKLDay})

	snap := s.snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "HK.00700", snap[0].Symbol)
	assert.Equal(t, []string{"K_DAY", "QUOTE", "TICKER"}, snap[0].SubTypes)
	assert.Equal(t, "US.AAPL", snap[1].Symbol)
	assert.Equal(t, []string{"QUOTE", "TICKER"}, snap[1].SubTypes)

	s.remove([]Security{tencent}, []SubType{SubTypeQuote})
	snap = s.snapshot()
	assert.Equal(t, []string{"K_DAY", "TICKER"}, snap[0].SubTypes)
}

func TestSubStateRemoveLastTypeDropsSymbol(t *testing.T) {
	var s subState
	sec := Security{MarketHK, "00005"}

	s.add([]Security{sec}, []SubType{SubTypeQuote})
	require.Len(t, s.snapshot(), 1)

	s.remove([]Security{sec}, []SubType{SubTypeQuote})
	assert.Empty(t, s.snapshot())
}

func TestSubStateRemoveUnknownIsNoop(t *testing.T) {
	var s subState
	s.remove([]Security{{MarketHK, "00700"}}, []SubType{SubTypeQuote})
	assert.Empty(t, s.snapshot())

	s.add([]Security{{MarketHK, "00700"}}, []SubType{SubTypeQuote})
	s.remove([]Security{{MarketUS, "AAPL"}}, []SubType{SubTypeQuote})
	assert.Len(t, s.snapshot(), 1)
}

func TestSubStateAddIsIdempotent(t *testing.T) {
	var s subState
	sec := Security{MarketHK, "00700"}

	s.add([]Security{sec}, []SubType{SubTypeQuote})
	s.add([]Security{sec}, []SubType{SubTypeQuote})

	snap := s.snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, []string{"QUOTE"}, snap[0].SubTypes)
}
