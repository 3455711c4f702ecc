// Copyright 2025 The Futu Stock MCP Server Authors. All rights reserved.
// Use of this source code is governed by a Apache-2.0
// license that can be found in the LICENSE file.

// Package opend is the client binding for the Futu OpenD gateway.
//
// The gateway listens on a local TCP port and multiplexes every API over a
// framed request/reply protocol (see frame.go). A Client owns exactly one
// connection: it performs the InitConnect handshake, answers the gateway's
// keep-alive expectations, correlates replies to requests by serial number,
// and exposes typed wrappers for the quote and trade protos this server
// forwards to.
//
// The client never reconnects. When the connection breaks, every in-flight
// and subsequent call fails with ErrClosed and the process is expected to be
// restarted alongside its gateway.
package opend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed reports that the gateway connection is gone.
var ErrClosed = errors.New("opend: connection closed")

const (
	defaultDialTimeout    = 10 * time.Second
	defaultRequestTimeout = 30 * time.Second

	// clientVer is reported in InitConnect. OpenD only gates features on
	// very old values; any recent number works.
	clientVer = 100
)

// Options configures a gateway connection.
type Options struct {
	// Addr is the OpenD listen address, host:port.
	Addr string

	// ClientID identifies this process in the gateway's connection list.
	ClientID string

	// DialTimeout bounds the TCP connect plus InitConnect handshake.
	DialTimeout time.Duration

	// RequestTimeout bounds every individual call.
	RequestTimeout time.Duration

	// TrdEnv, TrdMarket and SecurityFirm select the trading account that
	// trd.go resolves on the first trade call.
	TrdEnv       TrdEnv
	TrdMarket    TrdMarket
	SecurityFirm SecurityFirm

	Logger zerolog.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.ClientID == "" {
		out.ClientID = "futu-stock-mcp-server"
	}
	if out.DialTimeout <= 0 {
		out.DialTimeout = defaultDialTimeout
	}
	if out.RequestTimeout <= 0 {
		out.RequestTimeout = defaultRequestTimeout
	}
	if out.TrdMarket == 0 {
		out.TrdMarket = TrdMarketHK
	}
	if out.SecurityFirm == 0 {
		out.SecurityFirm = SecurityFirmFutuSecurities
	}
	return out
}

// Client is a single long-lived gateway connection. Methods are safe for
// concurrent use; requests from concurrent tool calls interleave on the one
// socket and are matched back by serial number.
type Client struct {
	opts Options
	log  zerolog.Logger

	conn   net.Conn
	serial atomic.Uint32

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan *response
	closed  bool
	cause   error

	subs subState

	// trade-account cache, resolved lazily by trd.go
	accMu  sync.Mutex
	accID  uint64
	accSet bool

	connID       uint64
	serverVer    int32
	loginUserID  uint64
	keepAliveSec int32
	connectedAt  time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// Status is a point-in-time view of the connection, served by the
// futu://gateway resource.
type Status struct {
	Connected        bool   `json:"connected"`
	Addr             string `json:"addr"`
	ConnID           uint64 `json:"conn_id"`
	ServerVer        int32  `json:"server_ver"`
	LoginUserID      uint64 `json:"login_user_id"`
	KeepAliveSec     int32  `json:"keep_alive_interval_sec"`
	ConnectedAt      string `json:"connected_at"`
	TradeAccountID   uint64 `json:"trade_account_id,omitempty"`
	TradeAccountSet  bool   `json:"trade_account_resolved"`
	LastError        string `json:"last_error,omitempty"`
}

type initConnectC2S struct {
	ClientVer           int32  `json:"clientVer"`
	ClientID            string `json:"clientID"`
	RecvNotify          bool   `json:"recvNotify"`
	PacketEncAlgo       int32  `json:"packetEncAlgo"`
	PushProtoFmt        int32  `json:"pushProtoFmt"`
	ProgrammingLanguage string `json:"programmingLanguage"`
}

type initConnectS2C struct {
	ServerVer         int32  `json:"serverVer"`
	LoginUserID       uint64 `json:"loginUserID"`
	ConnID            uint64 `json:"connID"`
	ConnAESKey        string `json:"connAESKey"`
	KeepAliveInterval int32  `json:"keepAliveInterval"`
}

type keepAliveC2S struct {
	Time int64 `json:"time"`
}

// Dial connects to OpenD, performs the InitConnect handshake and starts the
// keep-alive loop. The returned client is ready for concurrent calls.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	dialer := net.Dialer{Timeout: opts.DialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", opts.Addr)
	if err != nil {
		return nil, fmt.Errorf("opend: dial %s: %w", opts.Addr, err)
	}

	c := &Client{
		opts:    opts,
		log:     opts.Logger.With().Str("component", "opend").Logger(),
		conn:    conn,
		pending: make(map[uint32]chan *response),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	hctx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()

	var init initConnectS2C
	err = c.call(hctx, protoInitConnect, initConnectC2S{
		ClientVer:  clientVer,
		ClientID:   opts.ClientID,
		RecvNotify: true,
		// -1 disables packet encryption; OpenD on localhost runs with
		// crypto disabled by default.
		PacketEncAlgo:       -1,
		PushProtoFmt:        protoFmtJSON,
		ProgrammingLanguage: "Go",
	}, &init)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("opend: handshake with %s: %w", opts.Addr, err)
	}

	c.connID = init.ConnID
	c.serverVer = init.ServerVer
	c.loginUserID = init.LoginUserID
	c.keepAliveSec = init.KeepAliveInterval
	if c.keepAliveSec <= 0 {
		c.keepAliveSec = 10
	}
	c.connectedAt = time.Now()

	c.log.Info().
		Str("addr", opts.Addr).
		Uint64("conn_id", c.connID).
		Int32("server_ver", c.serverVer).
		Int32("keep_alive_sec", c.keepAliveSec).
		Msg("connected to gateway")

	go c.keepAliveLoop(time.Duration(c.keepAliveSec) * time.Second)
	return c, nil
}

// Close tears the connection down. In-flight calls fail with ErrClosed.
func (c *Client) Close() error {
	c.fail(ErrClosed)
	return nil
}

// Status reports the current connection state.
func (c *Client) Status() Status {
	c.mu.Lock()
	closed, cause := c.closed, c.cause
	c.mu.Unlock()

	c.accMu.Lock()
	accID, accSet := c.accID, c.accSet
	c.accMu.Unlock()

	st := Status{
		Connected:       !closed,
		Addr:            c.opts.Addr,
		ConnID:          c.connID,
		ServerVer:       c.serverVer,
		LoginUserID:     c.loginUserID,
		KeepAliveSec:    c.keepAliveSec,
		TradeAccountID:  accID,
		TradeAccountSet: accSet,
	}
	if !c.connectedAt.IsZero() {
		st.ConnectedAt = c.connectedAt.Format(time.RFC3339)
	}
	if closed && cause != nil && !errors.Is(cause, ErrClosed) {
		st.LastError = cause.Error()
	}
	return st
}

// call sends one request and waits for its reply. A gateway-level rejection
// (retType != 0) comes back as *GatewayError; transport problems close the
// client and come back as ErrClosed or the underlying cause.
func (c *Client) call(ctx context.Context, proto uint32, c2s any, s2c any) error {
	body, err := json.Marshal(request{C2S: c2s})
	if err != nil {
		return fmt.Errorf("opend: encode %s: %w", protoName[proto], err)
	}

	serial := c.serial.Add(1)
	ch := make(chan *response, 1)

	c.mu.Lock()
	if c.closed {
		cause := c.cause
		c.mu.Unlock()
		if cause != nil {
			return cause
		}
		return ErrClosed
	}
	c.pending[serial] = ch
	c.mu.Unlock()

	frame := encodeFrame(proto, serial, body)

	c.writeMu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.opts.RequestTimeout))
	_, err = c.conn.Write(frame)
	_ = c.conn.SetWriteDeadline(time.Time{})
	c.writeMu.Unlock()
	if err != nil {
		c.unregister(serial)
		// A partial write leaves the stream unframeable.
		c.fail(fmt.Errorf("opend: write %s: %w", protoName[proto], err))
		return ErrClosed
	}

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.unregister(serial)
		return ctx.Err()
	case <-timer.C:
		c.unregister(serial)
		return fmt.Errorf("opend: %s timed out after %s", protoName[proto], c.opts.RequestTimeout)
	case resp, ok := <-ch:
		if !ok || resp == nil {
			c.mu.Lock()
			cause := c.cause
			c.mu.Unlock()
			if cause != nil {
				return cause
			}
			return ErrClosed
		}
		if resp.RetType != retTypeSucceed {
			return &GatewayError{Proto: proto, ErrCode: resp.ErrCode, Msg: resp.RetMsg}
		}
		if s2c != nil && len(resp.S2C) > 0 {
			if err := json.Unmarshal(resp.S2C, s2c); err != nil {
				return fmt.Errorf("opend: decode %s reply: %w", protoName[proto], err)
			}
		}
		return nil
	}
}

func (c *Client) unregister(serial uint32) {
	c.mu.Lock()
	delete(c.pending, serial)
	c.mu.Unlock()
}

// readLoop is the only reader of the socket. Replies are routed to their
// waiting caller; everything without a waiter is a gateway push and is
// dropped, because fanning data out to MCP clients is not this server's job.
func (c *Client) readLoop() {
	for {
		h, body, err := readFrame(c.conn)
		if err != nil {
			c.fail(err)
			return
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			c.log.Warn().
				Uint32("proto", h.protoID).
				Err(err).
				Msg("undecodable frame from gateway")
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[h.serial]
		if ok {
			delete(c.pending, h.serial)
		}
		c.mu.Unlock()

		if !ok {
			name := protoName[h.protoID]
			if name == "" {
				name = fmt.Sprintf("proto_%d", h.protoID)
			}
			c.log.Debug().
				Str("proto", name).
				Uint32("serial", h.serial).
				Msg("dropping unsolicited gateway frame")
			continue
		}
		ch <- &resp
	}
}

// keepAliveLoop answers the interval negotiated in InitConnect. A failed
// keep-alive does not close the connection by itself; the write or read path
// will surface the broken socket.
func (c *Client) keepAliveLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			err := c.call(context.Background(), protoKeepAlive, keepAliveC2S{Time: time.Now().Unix()}, nil)
			if err != nil {
				if errors.Is(err, ErrClosed) {
					return
				}
				c.log.Warn().Err(err).Msg("keep-alive failed")
			}
		}
	}
}

// fail closes the connection once and releases every waiting caller.
func (c *Client) fail(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.cause = cause
		pending := c.pending
		c.pending = make(map[uint32]chan *response)
		c.mu.Unlock()

		close(c.done)
		_ = c.conn.Close()
		for _, ch := range pending {
			close(ch)
		}

		if !errors.Is(cause, ErrClosed) {
			c.log.Error().Err(cause).Msg("gateway connection lost")
		} else {
			c.log.Info().Msg("gateway connection closed")
		}
	})
}
