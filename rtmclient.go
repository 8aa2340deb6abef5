// Copyright 2026 DeviceLink, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package linksdk

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
)

const defaultRtmDialTimeout = 8 * time.Second

// frame types of the messaging gateway protocol
const (
	rtmFrameLogin   = "login"
	rtmFrameLogout  = "logout"
	rtmFrameRenew   = "renew"
	rtmFrameMessage = "message"
	rtmFrameAck     = "ack"
)

// rtmFrame is the JSON wire frame exchanged with the messaging gateway.
// Requests carry a seq the gateway echoes back in its ack.
type rtmFrame struct {
	Type    string `json:"type"`
	Seq     int64  `json:"seq,omitempty"`
	UserID  string `json:"userId,omitempty"`
	PeerID  string `json:"peerId,omitempty"`
	Token   string `json:"token,omitempty"`
	Payload string `json:"payload,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// WebsocketRtmParam configures the built-in websocket messaging client.
type WebsocketRtmParam struct {
	// ServerURL is the ws:// or wss:// gateway endpoint granted during
	// node activation.
	ServerURL string
	// Username is the gateway account granted during node activation.
	Username string

	DialTimeout time.Duration
}

// websocketRtmClient implements RtmClient over a single websocket. One
// writer lock serializes frame writes; a read pump dispatches gateway acks
// back to the pending request they answer.
type websocketRtmClient struct {
	param WebsocketRtmParam

	lock    sync.Mutex
	conn    *websocket.Conn
	seq     int64
	pending map[int64]func(code int)
	inbound RtmInboundHandler

	isClosed atomic.Bool
}

func NewWebsocketRtmClient(param WebsocketRtmParam) RtmClient {
	if param.DialTimeout <= 0 {
		param.DialTimeout = defaultRtmDialTimeout
	}
	return &websocketRtmClient{
		param:   param,
		pending: make(map[int64]func(code int)),
	}
}

func (c *websocketRtmClient) SetInboundHandler(handler RtmInboundHandler) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.inbound = handler
}

func (c *websocketRtmClient) Login(token, userID string, done func(code int)) {
	c.lock.Lock()
	if c.conn == nil {
		header := http.Header{}
		header.Set("X-Gateway-User", c.param.Username)
		dialer := websocket.Dialer{HandshakeTimeout: c.param.DialTimeout}
		conn, resp, err := dialer.Dial(c.param.ServerURL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			c.lock.Unlock()
			getLogger().Warn("messaging gateway dial failed", "url", c.param.ServerURL, "error", err)
			if done != nil {
				done(rtmCodeFailure)
			}
			return
		}
		c.conn = conn
		go c.readWorker(conn)
	}
	c.writeLocked(rtmFrame{Type: rtmFrameLogin, UserID: userID, Token: token}, done)
	c.lock.Unlock()
}

func (c *websocketRtmClient) Logout(done func(code int)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		if done != nil {
			done(rtmCodeNotLoggedIn)
		}
		return
	}
	c.writeLocked(rtmFrame{Type: rtmFrameLogout}, done)
}

func (c *websocketRtmClient) RenewToken(token string, done func(code int)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		if done != nil {
			done(rtmCodeNotLoggedIn)
		}
		return
	}
	c.writeLocked(rtmFrame{Type: rtmFrameRenew, Token: token}, done)
}

func (c *websocketRtmClient) SendPeerMessage(peerID string, data []byte, done func(code int)) {
	c.lock.Lock()
	defer c.lock.Unlock()
	if c.conn == nil {
		if done != nil {
			done(rtmCodeNotLoggedIn)
		}
		return
	}
	c.writeLocked(rtmFrame{Type: rtmFrameMessage, PeerID: peerID, Payload: string(data)}, done)
}

func (c *websocketRtmClient) Close() {
	if !c.isClosed.CompareAndSwap(false, true) {
		return
	}
	c.lock.Lock()
	conn := c.conn
	c.conn = nil
	pending := c.pending
	c.pending = make(map[int64]func(code int))
	c.lock.Unlock()

	if conn != nil {
		conn.Close()
	}
	for _, done := range pending {
		done(rtmCodeNotInitialized)
	}
}

// writeLocked sends one frame and registers its ack callback. Callers hold
// c.lock.
func (c *websocketRtmClient) writeLocked(frame rtmFrame, done func(code int)) {
	c.seq++
	frame.Seq = c.seq
	if err := c.conn.WriteJSON(&frame); err != nil {
		getLogger().Warn("messaging frame write failed", "type", frame.Type, "error", err)
		if done != nil {
			done(rtmCodeFailure)
		}
		return
	}
	if done != nil {
		c.pending[frame.Seq] = done
	}
}

func (c *websocketRtmClient) readWorker(conn *websocket.Conn) {
	for {
		var frame rtmFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if !c.isClosed.Load() {
				getLogger().Warn("messaging gateway read failed", "error", err)
				c.failPending(rtmCodeFailure)
			}
			return
		}

		switch frame.Type {
		case rtmFrameAck:
			c.lock.Lock()
			done, ok := c.pending[frame.Seq]
			if ok {
				delete(c.pending, frame.Seq)
			}
			c.lock.Unlock()
			if ok {
				done(frame.Code)
			}
		case rtmFrameMessage:
			c.lock.Lock()
			inbound := c.inbound
			c.lock.Unlock()
			if inbound != nil {
				inbound(frame.PeerID, []byte(frame.Payload))
			}
		default:
			getLogger().Warn("unexpected messaging frame", "type", frame.Type)
		}
	}
}

func (c *websocketRtmClient) failPending(code int) {
	c.lock.Lock()
	pending := c.pending
	c.pending = make(map[int64]func(code int))
	c.conn = nil
	c.lock.Unlock()
	for _, done := range pending {
		done(code)
	}
}
