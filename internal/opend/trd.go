// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

package opend

import (
	"context"
	"fmt"
)

// orderTypeNormal is the plain limit-order type; Trd_GetMaxTrdQtys needs an
// order type to price the hypothetical order.
const orderTypeNormal = 1

// Account is one row of Trd_GetAccList.
type Account struct {
	AccID             uint64  `json:"accID"`
	TrdEnv            int32   `json:"trdEnv"`
	TrdMarketAuthList []int32 `json:"trdMarketAuthList"`
	AccType           int32   `json:"accType"`
	CardNum           string  `json:"cardNum,omitempty"`
	SecurityFirm      int32   `json:"securityFirm,omitempty"`
	SimAccType        int32   `json:"simAccType,omitempty"`
}

// AccountList fetches every trading account visible to this login.
func (c *Client) AccountList(ctx context.Context) ([]Account, error) {
	c2s := struct {
		UserID                uint64 `json:"userID"`
		NeedGeneralSecAccount bool   `json:"needGeneralSecAccount"`
	}{0, true}
	var s2c struct {
		AccList []Account `json:"accList"`
	}
	if err := c.call(ctx, protoTrdGetAccList, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.AccList, nil
}

// trdHeader is the env/account/market triple every trade request carries.
type trdHeader struct {
	TrdEnv    TrdEnv    `json:"trdEnv"`
	AccID     uint64    `json:"accID"`
	TrdMarket TrdMarket `json:"trdMarket"`
}

// tradeHeader resolves and caches the account ID for the configured trade
// environment, market and firm. Resolution happens on the first trade call,
// not at startup, so quote-only sessions never touch the trade protos.
func (c *Client) tradeHeader(ctx context.Context) (trdHeader, error) {
	c.accMu.Lock()
	if c.accSet {
		h := trdHeader{TrdEnv: c.opts.TrdEnv, AccID: c.accID, TrdMarket: c.opts.TrdMarket}
		c.accMu.Unlock()
		return h, nil
	}
	c.accMu.Unlock()

	accounts, err := c.AccountList(ctx)
	if err != nil {
		return trdHeader{}, fmt.Errorf("resolve trading account: %w", err)
	}
	accID, err := selectAccount(accounts, c.opts.TrdEnv, c.opts.TrdMarket, c.opts.SecurityFirm)
	if err != nil {
		return trdHeader{}, err
	}

	c.accMu.Lock()
	if !c.accSet {
		c.accID = accID
		c.accSet = true
		c.log.Info().
			Uint64("acc_id", accID).
			Str("trd_env", c.opts.TrdEnv.String()).
			Msg("trading account resolved")
	}
	accID = c.accID
	c.accMu.Unlock()

	return trdHeader{TrdEnv: c.opts.TrdEnv, AccID: accID, TrdMarket: c.opts.TrdMarket}, nil
}

// selectAccount picks the first account matching the environment and market
// authority. The firm matters only for real accounts; simulated accounts are
// not firm-bound.
func selectAccount(accounts []Account, env TrdEnv, market TrdMarket, firm SecurityFirm) (uint64, error) {
	for _, acc := range accounts {
		if acc.TrdEnv != int32(env) {
			continue
		}
		if !containsInt32(acc.TrdMarketAuthList, int32(market)) {
			continue
		}
		if env == TrdEnvReal && acc.SecurityFirm != 0 && acc.SecurityFirm != int32(firm) {
			continue
		}
		return acc.AccID, nil
	}
	return 0, fmt.Errorf("no %s trading account with %s market authority", env, trdMarketLabel(market))
}

func containsInt32(xs []int32, x int32) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func trdMarketLabel(m TrdMarket) string {
	switch m {
	case TrdMarketHK:
		return "HK"
	case TrdMarketUS:
		return "US"
	case TrdMarketCN:
		return "CN"
	default:
		return fmt.Sprintf("market_%d", int32(m))
	}
}

// Funds is the account funds row from Trd_GetFunds.
type Funds struct {
	Power             float64 `json:"power"`
	TotalAssets       float64 `json:"totalAssets"`
	Cash              float64 `json:"cash"`
	MarketVal         float64 `json:"marketVal"`
	FrozenCash        float64 `json:"frozenCash"`
	DebtCash          float64 `json:"debtCash"`
	AvlWithdrawalCash float64 `json:"avlWithdrawalCash"`
	Currency          int32   `json:"currency,omitempty"`
	AvailableFunds    float64 `json:"availableFunds,omitempty"`
	UnrealizedPL      float64 `json:"unrealizedPL,omitempty"`
	RealizedPL        float64 `json:"realizedPL,omitempty"`
	MaxPowerShort     float64 `json:"maxPowerShort,omitempty"`
	NetCashPower      float64 `json:"netCashPower,omitempty"`
}

// Funds fetches the configured account's funds summary.
func (c *Client) Funds(ctx context.Context) (*Funds, error) {
	header, err := c.tradeHeader(ctx)
	if err != nil {
		return nil, err
	}
	c2s := struct {
		Header trdHeader `json:"header"`
	}{header}
	var s2c struct {
		Header trdHeader `json:"header"`
		Funds  Funds     `json:"funds"`
	}
	if err := c.call(ctx, protoTrdGetFunds, c2s, &s2c); err != nil {
		return nil, err
	}
	return &s2c.Funds, nil
}

// Position is one holding row from Trd_GetPositionList.
type Position struct {
	PositionID   int64   `json:"positionID"`
	PositionSide int32   `json:"positionSide"`
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Qty          float64 `json:"qty"`
	CanSellQty   float64 `json:"canSellQty"`
	Price        float64 `json:"price"`
	CostPrice    float64 `json:"costPrice,omitempty"`
	Val          float64 `json:"val"`
	PLVal        float64 `json:"plVal"`
	PLRatio      float64 `json:"plRatio,omitempty"`
	SecMarket    int32   `json:"secMarket,omitempty"`
	UnrealizedPL float64 `json:"unrealizedPL,omitempty"`
	RealizedPL   float64 `json:"realizedPL,omitempty"`
}

// Positions fetches the configured account's holdings.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	header, err := c.tradeHeader(ctx)
	if err != nil {
		return nil, err
	}
	c2s := struct {
		Header trdHeader `json:"header"`
	}{header}
	var s2c struct {
		Header       trdHeader  `json:"header"`
		PositionList []Position `json:"positionList"`
	}
	if err := c.call(ctx, protoTrdGetPositions, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.PositionList, nil
}

// MaxTrdQtys is the buying/selling power row from Trd_GetMaxTrdQtys.
type MaxTrdQtys struct {
	MaxCashBuy          float64 `json:"maxCashBuy"`
	MaxCashAndMarginBuy float64 `json:"maxCashAndMarginBuy,omitempty"`
	MaxPositionSell     float64 `json:"maxPositionSell"`
	MaxSellShort        float64 `json:"maxSellShort,omitempty"`
	MaxBuyBack          float64 `json:"maxBuyBack,omitempty"`
	LongRequiredIM      float64 `json:"longRequiredIM,omitempty"`
	ShortRequiredIM     float64 `json:"shortRequiredIM,omitempty"`
}

// MaxTrdQtys fetches the maximum order quantities for a hypothetical order
// of sec at price. The wire request requires both.
func (c *Client) MaxTrdQtys(ctx context.Context, sec Security, price float64) (*MaxTrdQtys, error) {
	header, err := c.tradeHeader(ctx)
	if err != nil {
		return nil, err
	}
	c2s := struct {
		Header    trdHeader `json:"header"`
		OrderType int32     `json:"orderType"`
		Code      string    `json:"code"`
		Price     float64   `json:"price"`
		SecMarket int32     `json:"secMarket,omitempty"`
	}{header, orderTypeNormal, sec.Code, price, trdSecMarket(sec.Market)}
	var s2c struct {
		Header     trdHeader  `json:"header"`
		MaxTrdQtys MaxTrdQtys `json:"maxTrdQtys"`
	}
	if err := c.call(ctx, protoTrdGetMaxTrdQtys, c2s, &s2c); err != nil {
		return nil, err
	}
	return &s2c.MaxTrdQtys, nil
}

// MarginRatioInfo is one margin requirement row from Trd_GetMarginRatio.
type MarginRatioInfo struct {
	Security        Security `json:"security"`
	IsLongPermit    bool     `json:"isLongPermit"`
	IsShortPermit   bool     `json:"isShortPermit"`
	ShortPoolRemain float64  `json:"shortPoolRemain,omitempty"`
	ShortFeeRate    float64  `json:"shortFeeRate,omitempty"`
	AlertLongRatio  float64  `json:"alertLongRatio,omitempty"`
	AlertShortRatio float64  `json:"alertShortRatio,omitempty"`
	IMLongRatio     float64  `json:"imLongRatio,omitempty"`
	IMShortRatio    float64  `json:"imShortRatio,omitempty"`
	MCMLongRatio    float64  `json:"mcmLongRatio,omitempty"`
	MCMShortRatio   float64  `json:"mcmShortRatio,omitempty"`
	MMLongRatio     float64  `json:"mmLongRatio,omitempty"`
	MMShortRatio    float64  `json:"mmShortRatio,omitempty"`
}

// MarginRatio fetches margin requirements for the given securities.
func (c *Client) MarginRatio(ctx context.Context, secs []Security) ([]MarginRatioInfo, error) {
	header, err := c.tradeHeader(ctx)
	if err != nil {
		return nil, err
	}
	c2s := struct {
		Header       trdHeader  `json:"header"`
		SecurityList []Security `json:"securityList"`
	}{header, secs}
	var s2c struct {
		Header              trdHeader         `json:"header"`
		MarginRatioInfoList []MarginRatioInfo `json:"marginRatioInfoList"`
	}
	if err := c.call(ctx, protoTrdGetMarginRatio, c2s, &s2c); err != nil {
		return nil, err
	}
	return s2c.MarginRatioInfoList, nil
}
