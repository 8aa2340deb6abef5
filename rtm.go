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
	"sync"
	"time"

	"go.uber.org/atomic"
)

// RtmClient is the messaging plane collaborator. Implementations wrap a
// vendor messaging SDK or use the built-in websocket client. Completion
// callbacks report the raw vendor status code and may fire on any goroutine;
// a nil done means the caller does not care about the outcome.
type RtmClient interface {
	SetInboundHandler(handler RtmInboundHandler)
	Login(token, userID string, done func(code int))
	Logout(done func(code int))
	RenewToken(token string, done func(code int))
	SendPeerMessage(peerID string, data []byte, done func(code int))
	Close()
}

// RtmInboundHandler receives peer messages pushed by devices.
type RtmInboundHandler func(peerID string, data []byte)

// raw messaging client status codes
const (
	rtmCodeOK             = 0
	rtmCodeFailure        = 1
	rtmCodeRejected       = 2
	rtmCodeInvalidArg     = 3
	rtmCodeInvalidAppID   = 4
	rtmCodeInvalidToken   = 5
	rtmCodeTokenExpired   = 6
	rtmCodeNotAuthorized  = 7
	rtmCodeAlreadyLogin   = 8
	rtmCodeTimeout        = 9
	rtmCodeTooOften       = 10
	rtmCodePeerUnreach    = 11
	rtmCodeCachedByServer = 12
	rtmCodeInvalidMessage = 13
	rtmCodeIncompatible   = 14
	rtmCodeInvalidPeerID  = 15
	rtmCodeNotInitialized = 101
	rtmCodeNotLoggedIn    = 102
)

func mapRtmLoginCode(code int) ErrCode {
	switch code {
	case rtmCodeOK:
		return XOK
	case rtmCodeRejected:
		return XErrRtmLoginRejected
	case rtmCodeInvalidArg:
		return XErrRtmLoginInvalidArg
	case rtmCodeInvalidAppID:
		return XErrRtmLoginInvalidAppID
	case rtmCodeInvalidToken:
		return XErrRtmLoginInvalidToken
	case rtmCodeTokenExpired:
		return XErrRtmLoginTokenExpired
	case rtmCodeNotAuthorized:
		return XErrRtmLoginNotAuthorized
	case rtmCodeAlreadyLogin:
		return XErrRtmLoginAlreadyLogin
	case rtmCodeTimeout:
		return XErrRtmLoginTimeout
	case rtmCodeTooOften:
		return XErrRtmLoginTooOften
	case rtmCodeNotInitialized:
		return XErrRtmLoginNotInitialized
	}
	return XErrRtmLoginUnknown
}

func mapRtmRenewCode(code int) ErrCode {
	switch code {
	case rtmCodeOK:
		return XOK
	case rtmCodeInvalidArg:
		return XErrRtmRenewInvalidArg
	case rtmCodeTokenExpired:
		return XErrRtmRenewTokenExpired
	case rtmCodeInvalidToken:
		return XErrRtmRenewInvalidToken
	case rtmCodeNotLoggedIn:
		return XErrRtmRenewNotLoggedIn
	}
	return XErrRtmRenewFailure
}

func mapRtmLogoutCode(code int) ErrCode {
	switch code {
	case rtmCodeOK:
		return XOK
	case rtmCodeRejected:
		return XErrRtmLogoutRejected
	case rtmCodeNotInitialized:
		return XErrRtmLogoutNotInitialized
	case rtmCodeNotLoggedIn:
		return XErrRtmLogoutNotLoggedIn
	}
	return XErrRtmLogoutFailure
}

func mapRtmMsgCode(code int) ErrCode {
	switch code {
	case rtmCodeOK:
		return XOK
	case rtmCodeTimeout:
		return XErrRtmMsgTimeout
	case rtmCodePeerUnreach:
		return XErrRtmMsgPeerUnreachable
	case rtmCodeCachedByServer:
		return XErrRtmMsgCachedByServer
	case rtmCodeTooOften:
		return XErrRtmMsgTooOften
	case rtmCodeInvalidMessage:
		return XErrRtmMsgInvalid
	case rtmCodeIncompatible:
		return XErrRtmMsgIncompatible
	case rtmCodeNotInitialized:
		return XErrRtmMsgNotInitialized
	case rtmCodeNotLoggedIn:
		return XErrRtmMsgNotLoggedIn
	case rtmCodeInvalidPeerID:
		return XErrRtmMsgPeerIDInvalid
	}
	return XErrRtmMsgFailure
}

// rtmState is the login lifecycle of the messaging link.
type rtmState int32

const (
	rtmStateIdle rtmState = iota
	rtmStateLogining
	rtmStateRenewing
	rtmStateLogouting
	rtmStateRunning
)

const (
	defaultRtmTimerInterval     = 4 * time.Second
	defaultRtmCommandTimeout    = 10 * time.Second
	defaultRtmHeartbeatInterval = 120 * time.Second

	heartbeatContent = "{ }"
)

// rtmPacket is one outbound or inbound peer message.
type rtmPacket struct {
	sequenceID int64
	peerID     string
	data       []byte
}

type rtmPacketQueue struct {
	lock    sync.Mutex
	packets []*rtmPacket
}

func (q *rtmPacketQueue) enqueue(pkt *rtmPacket) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.packets = append(q.packets, pkt)
}

func (q *rtmPacketQueue) dequeue() *rtmPacket {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.packets) == 0 {
		return nil
	}
	pkt := q.packets[0]
	q.packets = q.packets[1:]
	return pkt
}

func (q *rtmPacketQueue) size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.packets)
}

func (q *rtmPacketQueue) clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.packets = nil
}

// RtmCompParam configures the messaging component.
type RtmCompParam struct {
	Client RtmClient
	UserID string

	// Sessions enumerates live sessions for heartbeat keepalives.
	Sessions func() []SessionInfo

	// Zero values take the defaults.
	CommandTimeout    time.Duration
	TimerInterval     time.Duration
	HeartbeatInterval time.Duration
}

// rtm worker messages
type (
	rtmMsgConnectDev struct {
		deviceID string
		token    string
		done     func(ErrCode)
	}
	rtmMsgLoginDone struct{ code int }
	rtmMsgRenewDone struct{ code int }
	rtmMsgSendPkt   struct{}
	rtmMsgSendFail  struct {
		sequenceID int64
		code       int
	}
	rtmMsgRecvPkt struct{}
	rtmMsgTimer   struct{}
)

// RtmComp drives the command channel to devices over the messaging plane.
// One instance serves every session of the session manager; login happens on
// the first device connect and sticks until Release.
type RtmComp struct {
	param RtmCompParam
	queue *workerQueue
	state atomic.Int32
	seqID atomic.Int64

	cmds      *RtmCmdRegistry
	sendQueue rtmPacketQueue
	recvQueue rtmPacketQueue

	// worker-owned, never touched off the worker goroutine
	waiters       []func(ErrCode)
	lastHeartbeat time.Time

	tickerStop chan struct{}
	tickerDone chan struct{}
}

func NewRtmComp(param RtmCompParam) *RtmComp {
	if param.CommandTimeout <= 0 {
		param.CommandTimeout = defaultRtmCommandTimeout
	}
	if param.TimerInterval <= 0 {
		param.TimerInterval = defaultRtmTimerInterval
	}
	if param.HeartbeatInterval <= 0 {
		param.HeartbeatInterval = defaultRtmHeartbeatInterval
	}
	c := &RtmComp{
		param: param,
		cmds:  NewRtmCmdRegistry(),
	}
	c.queue = newWorkerQueue(workerQueueParams{
		Name:          "rtm",
		HandleMessage: c.handleMessage,
	})
	return c
}

// Initialize starts the worker and the sweep timer.
func (c *RtmComp) Initialize() ErrCode {
	if c.queue.IsStarted() {
		return XErrBadState
	}
	c.param.Client.SetInboundHandler(c.HandleInbound)
	c.lastHeartbeat = time.Now()
	c.queue.Start()
	c.tickerStop = make(chan struct{})
	c.tickerDone = make(chan struct{})
	go c.timerLoop(c.tickerStop, c.tickerDone)
	return XOK
}

// Release logs out and stops the component.
func (c *RtmComp) Release() {
	if !c.queue.IsStarted() {
		return
	}
	close(c.tickerStop)
	<-c.tickerDone
	c.queue.Close()

	if rtmState(c.state.Load()) == rtmStateRunning {
		c.state.Store(int32(rtmStateLogouting))
		c.param.Client.Logout(func(code int) {
			if mapped := mapRtmLogoutCode(code); mapped != XOK {
				getLogger().Warn("messaging logout failed", "errCode", mapped)
			}
		})
	}
	c.param.Client.Close()
	c.cmds.Clear()
	c.sendQueue.clear()
	c.recvQueue.clear()
	c.state.Store(int32(rtmStateIdle))
}

// ConnectToDevice brings the messaging leg up for a device. On the first call
// it logs in with rtmToken; later calls with a fresh token renew it. done
// fires once the leg settles.
func (c *RtmComp) ConnectToDevice(deviceID, rtmToken string, done func(ErrCode)) ErrCode {
	if err := c.queue.Post(rtmMsgConnectDev{deviceID: deviceID, token: rtmToken, done: done}); err != nil {
		return XErrBadState
	}
	return XOK
}

// DisconnectFromDevice drops pending commands addressed to the device. The
// login session itself stays up for other sessions.
func (c *RtmComp) DisconnectFromDevice(deviceID string) {
	dropped := c.cmds.RemoveByDeviceID(deviceID)
	for _, cmd := range dropped {
		if cmd.listener != nil {
			cmd.listener(XErrDevCmdNoResponse, cmd, nil)
		}
	}
}

// SendCommand queues one device command. The listener fires with the matched
// response, or with a timeout or send failure.
func (c *RtmComp) SendCommand(cmd *RtmCmd, listener OnCommandDone) ErrCode {
	if rtmState(c.state.Load()) != rtmStateRunning {
		return XErrSdkNotReady
	}
	cmd.SequenceID = c.seqID.Inc()
	cmd.SendTime = time.Now()
	cmd.listener = listener

	data, err := cmd.encode()
	if err != nil {
		return XErrJsonWrite
	}
	c.cmds.Add(cmd)
	c.sendQueue.enqueue(&rtmPacket{sequenceID: cmd.SequenceID, peerID: cmd.DeviceID, data: data})
	if err := c.queue.Post(rtmMsgSendPkt{}); err != nil {
		c.cmds.Remove(cmd.SequenceID)
		return XErrBadState
	}
	return XOK
}

// HandleInbound is the RtmInboundHandler to wire into the client.
func (c *RtmComp) HandleInbound(peerID string, data []byte) {
	c.recvQueue.enqueue(&rtmPacket{peerID: peerID, data: data})
	c.queue.Post(rtmMsgRecvPkt{}) //nolint:errcheck
}

func (c *RtmComp) timerLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.param.TimerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.queue.Post(rtmMsgTimer{}) //nolint:errcheck
		}
	}
}

func (c *RtmComp) handleMessage(msg workerMessage) {
	switch m := msg.(type) {
	case rtmMsgConnectDev:
		c.onMessageConnectDev(m)
	case rtmMsgLoginDone:
		c.onMessageLoginDone(m.code)
	case rtmMsgRenewDone:
		c.onMessageRenewDone(m.code)
	case rtmMsgSendPkt:
		c.onMessageSendPkt()
	case rtmMsgSendFail:
		c.onMessageSendFail(m)
	case rtmMsgRecvPkt:
		c.onMessageRecvPkt()
	case rtmMsgTimer:
		c.onMessageTimer()
	}
}

func (c *RtmComp) onMessageConnectDev(m rtmMsgConnectDev) {
	switch rtmState(c.state.Load()) {
	case rtmStateIdle:
		c.state.Store(int32(rtmStateLogining))
		if m.done != nil {
			c.waiters = append(c.waiters, m.done)
		}
		c.param.Client.Login(m.token, c.param.UserID, func(code int) {
			c.queue.Post(rtmMsgLoginDone{code: code}) //nolint:errcheck
		})

	case rtmStateLogining, rtmStateRenewing:
		if m.done != nil {
			c.waiters = append(c.waiters, m.done)
		}

	case rtmStateRunning:
		if m.token == "" {
			if m.done != nil {
				m.done(XOK)
			}
			return
		}
		c.state.Store(int32(rtmStateRenewing))
		if m.done != nil {
			c.waiters = append(c.waiters, m.done)
		}
		c.param.Client.RenewToken(m.token, func(code int) {
			c.queue.Post(rtmMsgRenewDone{code: code}) //nolint:errcheck
		})

	default:
		if m.done != nil {
			m.done(XErrBadState)
		}
	}
}

func (c *RtmComp) onMessageLoginDone(code int) {
	if rtmState(c.state.Load()) != rtmStateLogining {
		return
	}
	errCode := mapRtmLoginCode(code)
	if errCode == XOK || errCode == XErrRtmLoginAlreadyLogin {
		c.state.Store(int32(rtmStateRunning))
		c.lastHeartbeat = time.Now()
		errCode = XOK
	} else {
		c.state.Store(int32(rtmStateIdle))
	}
	c.notifyWaiters(errCode)
}

func (c *RtmComp) onMessageRenewDone(code int) {
	if rtmState(c.state.Load()) != rtmStateRenewing {
		return
	}
	// a failed renew leaves the old login in place
	c.state.Store(int32(rtmStateRunning))
	c.notifyWaiters(mapRtmRenewCode(code))
}

func (c *RtmComp) notifyWaiters(errCode ErrCode) {
	waiters := c.waiters
	c.waiters = nil
	for _, done := range waiters {
		done(errCode)
	}
}

// onMessageSendPkt sends one packet, then reposts itself while more remain,
// so interleaved messages still get a turn on the worker.
func (c *RtmComp) onMessageSendPkt() {
	pkt := c.sendQueue.dequeue()
	if pkt == nil {
		return
	}
	seq := pkt.sequenceID
	c.param.Client.SendPeerMessage(pkt.peerID, pkt.data, func(code int) {
		if code != rtmCodeOK {
			c.queue.Post(rtmMsgSendFail{sequenceID: seq, code: code}) //nolint:errcheck
		}
	})
	if c.sendQueue.size() > 0 {
		c.queue.Post(rtmMsgSendPkt{}) //nolint:errcheck
	}
}

func (c *RtmComp) onMessageSendFail(m rtmMsgSendFail) {
	cmd, ok := c.cmds.Remove(m.sequenceID)
	if !ok {
		return
	}
	getLogger().Warn("peer message send failed",
		"deviceId", cmd.DeviceID, "sequenceId", cmd.SequenceID, "code", m.code)
	if cmd.listener != nil {
		cmd.listener(mapRtmMsgCode(m.code), cmd, nil)
	}
}

func (c *RtmComp) onMessageRecvPkt() {
	for {
		pkt := c.recvQueue.dequeue()
		if pkt == nil {
			return
		}
		rsp, err := parseRtmRespCmd(pkt.peerID, pkt.data)
		if err != nil {
			getLogger().Warn("dropping malformed device response", "peerId", pkt.peerID, "error", err)
			continue
		}
		req, ok := c.cmds.Remove(rsp.SequenceID)
		if !ok {
			getLogger().Info("dropping unmatched device response",
				"peerId", pkt.peerID, "sequenceId", rsp.SequenceID)
			continue
		}
		if req.CommandID != rsp.CommandID {
			getLogger().Warn("device response command mismatch",
				"want", req.CommandID, "got", rsp.CommandID)
			if req.listener != nil {
				req.listener(XErrDevCmdInvalidData, req, rsp)
			}
			continue
		}
		if req.listener != nil {
			req.listener(rsp.ErrCode, req, rsp)
		}
	}
}

func (c *RtmComp) onMessageTimer() {
	for _, cmd := range c.cmds.QueryTimeout(c.param.CommandTimeout) {
		getLogger().Warn("device command timed out",
			"deviceId", cmd.DeviceID, "commandId", cmd.CommandID, "sequenceId", cmd.SequenceID)
		if cmd.listener != nil {
			cmd.listener(XErrDevCmdTimeout, cmd, nil)
		}
	}

	if rtmState(c.state.Load()) != rtmStateRunning || c.param.Sessions == nil {
		return
	}
	if time.Since(c.lastHeartbeat) < c.param.HeartbeatInterval {
		return
	}
	c.lastHeartbeat = time.Now()
	for _, s := range c.param.Sessions() {
		c.param.Client.SendPeerMessage(s.PeerDevID, []byte(heartbeatContent), nil)
	}
}
