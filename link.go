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
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

// LinkState is the lifecycle of the persistent link component.
type LinkState int32

const (
	LinkStateInvalid LinkState = iota
	LinkStateInitialized
	LinkStatePreparing
	LinkStateRunning
	LinkStateReconnecting
	LinkStateUnpreparing
)

func (s LinkState) String() string {
	switch s {
	case LinkStateInvalid:
		return "INVALID"
	case LinkStateInitialized:
		return "INITIALIZED"
	case LinkStatePreparing:
		return "PREPARING"
	case LinkStateRunning:
		return "RUNNING"
	case LinkStateReconnecting:
		return "RECONNECTING"
	case LinkStateUnpreparing:
		return "UNPREPARING"
	}
	return "UNKNOWN"
}

const (
	unprepareWaitTimeout = 3500 * time.Millisecond

	// uid the device publishes media with inside the session channel
	defaultDeviceRtcUID uint32 = 10

	msgIDConnectReq = 1

	// signaling topics are derived from the activated node id
	topicPrefix    = "$falcon/callkit/"
	topicPubSuffix = "/pub"
	topicSubSuffix = "/sub"
)

// LinkInitParam configures the persistent link once, at construction.
type LinkInitParam struct {
	AppID            string
	ProjectID        string
	MasterServerURL  string
	SlaveServerURL   string
	ConnectDeviceURL string
	BasicAuthKey     string
	BasicAuthSecret  string
	Provider         *HTTPClientProvider
}

// PrepareParam identifies the local user for one prepare cycle.
type PrepareParam struct {
	AppID      string
	UserID     string
	ClientType int
}

// OnPrepareDone reports the outcome of an asynchronous Prepare call. It fires
// exactly once per accepted Prepare.
type OnPrepareDone func(param PrepareParam, errCode ErrCode)

// OnIncomingCall reports a device-initiated call arriving over the link.
type OnIncomingCall func(traceID int64, deviceID, attachMsg, chnlName, rtcToken string)

// ReqConnectResult is the synchronous half of a connect request.
type ReqConnectResult struct {
	ErrCode   ErrCode
	ConnectID uuid.UUID
}

// localNode is the activated identity of this client. Valid only while the
// link is RUNNING.
type localNode struct {
	ready       bool
	userID      string
	nodeID      string
	region      string
	token       string
	rtmServer   string
	rtmUsername string
	topicPub    string
	topicSub    string
}

// link worker messages
type (
	linkMsgNodeActivate struct{}
	linkMsgInitDone     struct{ errCode ErrCode }
	linkMsgPacketSend   struct{}
	linkMsgPacketRecv   struct{}
	linkMsgUnprepare    struct{}
)

// PersistentLink owns the signaling connection between this client and the
// server side. All slow work runs on a single worker goroutine; public
// methods only validate, enqueue and return.
type PersistentLink struct {
	initParam LinkInitParam
	signal    *SignalClient
	queue     *workerQueue
	state     atomic.Int32

	dataLock        sync.Mutex
	node            localNode
	prepareParam    PrepareParam
	prepareListener OnPrepareDone

	sendQueue   *packetQueue
	recvQueue   *packetQueue
	connections *ConnectionRegistry

	unprepareAck     chan struct{}
	unprepareTimeout time.Duration

	// OnIncomingCall, when set before Prepare, receives device initiated
	// calls. Invoked on the worker goroutine.
	OnIncomingCall OnIncomingCall
}

func NewPersistentLink(param LinkInitParam) *PersistentLink {
	l := &PersistentLink{
		initParam: param,
		signal: NewSignalClient(SignalConfig{
			MasterServerURL:  param.MasterServerURL,
			SlaveServerURL:   param.SlaveServerURL,
			ConnectDeviceURL: param.ConnectDeviceURL,
			BasicAuthKey:     param.BasicAuthKey,
			BasicAuthSecret:  param.BasicAuthSecret,
			Provider:         param.Provider,
		}),
		sendQueue:        newPacketQueue(),
		recvQueue:        newPacketQueue(),
		connections:      NewConnectionRegistry(),
		unprepareAck:     make(chan struct{}, 1),
		unprepareTimeout: unprepareWaitTimeout,
	}
	l.queue = newWorkerQueue(workerQueueParams{
		Name:          "link",
		HandleMessage: l.handleMessage,
	})
	return l
}

// Initialize starts the worker and moves the link to INITIALIZED. Calling it
// on an already initialized link fails with XErrBadState.
func (l *PersistentLink) Initialize() ErrCode {
	if !l.state.CompareAndSwap(int32(LinkStateInvalid), int32(LinkStateInitialized)) {
		return XErrBadState
	}
	l.sendQueue.Clear()
	l.recvQueue.Clear()
	l.connections.Clear()
	l.queue.Start()
	getLogger().Info("link initialized", "version", Version)
	return XOK
}

// Release tears the component down. The link must be re-initialized before
// further use.
func (l *PersistentLink) Release() {
	if LinkState(l.state.Load()) == LinkStateInvalid {
		return
	}
	l.queue.Close()
	l.sendQueue.Clear()
	l.recvQueue.Clear()
	l.connections.Clear()
	l.state.Store(int32(LinkStateInvalid))
}

func (l *PersistentLink) State() LinkState {
	return LinkState(l.state.Load())
}

// LocalUserID returns the user id of the current prepare cycle, or "" when
// the link is not prepared.
func (l *PersistentLink) LocalUserID() string {
	l.dataLock.Lock()
	defer l.dataLock.Unlock()
	return l.node.userID
}

// LocalNode returns the activated node identity. ready is false unless the
// link is RUNNING.
func (l *PersistentLink) LocalNode() (nodeID, region, token string, ready bool) {
	l.dataLock.Lock()
	defer l.dataLock.Unlock()
	return l.node.nodeID, l.node.region, l.node.token, l.node.ready
}

// RtmAccessPoint returns the messaging gateway granted during activation.
func (l *PersistentLink) RtmAccessPoint() (server, username string) {
	l.dataLock.Lock()
	defer l.dataLock.Unlock()
	return l.node.rtmServer, l.node.rtmUsername
}

// MessageTopics returns the publish and subscribe topics of the activated
// node, or "" until the link is RUNNING. Outbound packets carry the publish
// topic; inbound packets from any other topic are dropped.
func (l *PersistentLink) MessageTopics() (pub, sub string) {
	l.dataLock.Lock()
	defer l.dataLock.Unlock()
	return l.node.topicPub, l.node.topicSub
}

// Prepare activates the local node asynchronously. The listener fires exactly
// once with the outcome; on success the link reaches RUNNING.
func (l *PersistentLink) Prepare(param PrepareParam, listener OnPrepareDone) ErrCode {
	if param.UserID == "" {
		return XErrInvalidParam
	}
	if !l.state.CompareAndSwap(int32(LinkStateInitialized), int32(LinkStatePreparing)) {
		return XErrBadState
	}

	l.dataLock.Lock()
	l.prepareParam = param
	l.prepareListener = listener
	l.dataLock.Unlock()

	if err := l.queue.Post(linkMsgNodeActivate{}); err != nil {
		l.state.Store(int32(LinkStateInitialized))
		return XErrBadState
	}
	return XOK
}

// Unprepare returns the link to INITIALIZED, dropping the node identity and
// all in-flight requests. It blocks until the worker acknowledges or the
// bounded wait elapses, and never blocks longer than that even when the
// worker is wedged in a slow request.
func (l *PersistentLink) Unprepare() ErrCode {
	switch LinkState(l.state.Load()) {
	case LinkStateInvalid:
		return XErrBadState
	case LinkStateInitialized:
		return XOK
	}
	l.state.Store(int32(LinkStateUnpreparing))

	// drain pending work by state guard, then rendezvous with the worker
	l.sendQueue.Clear()
	l.recvQueue.Clear()
	select {
	case <-l.unprepareAck: // discard stale ack from an earlier timed out wait
	default:
	}
	if err := l.queue.Post(linkMsgUnprepare{}); err == nil {
		timer := time.NewTimer(l.unprepareTimeout)
		select {
		case <-l.unprepareAck:
			timer.Stop()
		case <-timer.C:
			getLogger().Warn("unprepare wait timed out")
		}
	}

	l.dataLock.Lock()
	l.node = localNode{}
	l.prepareListener = nil
	l.dataLock.Unlock()
	l.connections.Clear()
	l.state.Store(int32(LinkStateInitialized))
	return XOK
}

// DevReqConnect asks the server to set up a call to deviceID. The listener
// fires once the response arrives or the request fails. A device with a
// request already in flight is rejected.
func (l *PersistentLink) DevReqConnect(deviceID, attachMsg string, listener OnDevReqConnectDone) ReqConnectResult {
	if deviceID == "" {
		return ReqConnectResult{ErrCode: XErrInvalidParam}
	}
	if LinkState(l.state.Load()) != LinkStateRunning {
		return ReqConnectResult{ErrCode: XErrSdkNotReady}
	}
	if _, ok := l.connections.FindByDeviceID(deviceID); ok {
		getLogger().Warn("device already has a connection in flight", "deviceId", deviceID)
		return ReqConnectResult{ErrCode: XErrSdkNotReady}
	}

	l.dataLock.Lock()
	node := l.node
	appID := l.prepareParam.AppID
	l.dataLock.Unlock()
	if !node.ready {
		return ReqConnectResult{ErrCode: XErrSdkNotReady}
	}

	ctx := &ConnectionCtx{
		ConnectID:       uuid.New(),
		TraceID:         time.Now().UnixMilli(),
		UserID:          node.userID,
		DeviceID:        deviceID,
		DeviceRtcUID:    defaultDeviceRtcUID,
		AttachMsg:       attachMsg,
		connectListener: listener,
	}
	content, errCode := EncodeConnectDeviceReq(ConnectDeviceReq{
		TraceID:   ctx.TraceID,
		NodeToken: node.token,
		AppID:     appID,
		UserID:    node.userID,
		DeviceID:  deviceID,
		AttachMsg: attachMsg,
	})
	if errCode != XOK {
		return ReqConnectResult{ErrCode: errCode}
	}

	l.connections.Add(ctx)
	l.sendQueue.Enqueue(&TransPacket{
		Topic:     node.topicPub,
		MessageID: msgIDConnectReq,
		TraceID:   ctx.TraceID,
		ConnectID: ctx.ConnectID,
		Content:   content,
	})
	if err := l.queue.Post(linkMsgPacketSend{}); err != nil {
		l.connections.Remove(ctx.ConnectID)
		l.sendQueue.RemoveByConnectID(ctx.ConnectID)
		return ReqConnectResult{ErrCode: XErrBadState}
	}
	return ReqConnectResult{ErrCode: XOK, ConnectID: ctx.ConnectID}
}

// DevReqDisconnect withdraws a connect request. Unknown connect ids succeed,
// so repeated disconnects are harmless.
func (l *PersistentLink) DevReqDisconnect(connectID uuid.UUID) ErrCode {
	if LinkState(l.state.Load()) == LinkStateInvalid {
		return XErrBadState
	}
	l.sendQueue.RemoveByConnectID(connectID)
	l.connections.Remove(connectID)
	return XOK
}

// DevReqRenewToken requests fresh channel tokens for a live connection. The
// connection's completion path switches to the renew listener until the
// response arrives.
func (l *PersistentLink) DevReqRenewToken(connectID uuid.UUID, listener OnDevReqRenewDone) ErrCode {
	if LinkState(l.state.Load()) != LinkStateRunning {
		return XErrSdkNotReady
	}
	l.dataLock.Lock()
	node := l.node
	appID := l.prepareParam.AppID
	l.dataLock.Unlock()

	traceID := time.Now().UnixMilli()
	var (
		content string
		errCode ErrCode
	)
	found := l.connections.Mutate(connectID, func(ctx *ConnectionCtx) {
		ctx.TraceID = traceID
		ctx.connectListener = nil
		ctx.renewListener = listener
		content, errCode = EncodeConnectDeviceReq(ConnectDeviceReq{
			TraceID:   traceID,
			NodeToken: node.token,
			AppID:     appID,
			UserID:    ctx.UserID,
			DeviceID:  ctx.DeviceID,
			AttachMsg: ctx.AttachMsg,
		})
	})
	if !found {
		return XErrInvalidParam
	}
	if errCode != XOK {
		return errCode
	}

	l.sendQueue.Enqueue(&TransPacket{
		Topic:     node.topicPub,
		MessageID: msgIDConnectReq,
		TraceID:   traceID,
		ConnectID: connectID,
		Content:   content,
	})
	if err := l.queue.Post(linkMsgPacketSend{}); err != nil {
		return XErrBadState
	}
	return XOK
}

// DeliverPacket feeds an inbound signaling packet into the link, typically a
// device initiated call relayed by the messaging plane.
func (l *PersistentLink) DeliverPacket(pkt *TransPacket) ErrCode {
	if LinkState(l.state.Load()) != LinkStateRunning {
		return XErrBadState
	}
	l.recvQueue.Enqueue(pkt)
	if err := l.queue.Post(linkMsgPacketRecv{}); err != nil {
		return XErrBadState
	}
	return XOK
}

func (l *PersistentLink) handleMessage(msg workerMessage) {
	switch m := msg.(type) {
	case linkMsgNodeActivate:
		l.onMessageNodeActivate()
	case linkMsgInitDone:
		l.onMessageInitDone(m.errCode)
	case linkMsgPacketSend:
		l.onMessagePacketSend()
	case linkMsgPacketRecv:
		l.onMessagePacketRecv()
	case linkMsgUnprepare:
		l.onMessageUnprepare()
	}
}

func (l *PersistentLink) onMessageNodeActivate() {
	if LinkState(l.state.Load()) != LinkStatePreparing {
		return
	}
	l.dataLock.Lock()
	param := l.prepareParam
	l.dataLock.Unlock()

	res := l.signal.NodeActivate(time.Now().UnixMilli(), param.AppID, param.UserID, param.ClientType)
	if res.ErrCode != XOK {
		getLogger().Warn("node activate failed", "errCode", res.ErrCode)
		l.onMessageInitDone(res.ErrCode)
		return
	}

	l.dataLock.Lock()
	l.node = localNode{
		ready:       true,
		userID:      param.UserID,
		nodeID:      res.NodeID,
		region:      res.NodeRegion,
		token:       res.NodeToken,
		rtmServer:   res.RtmServer,
		rtmUsername: res.RtmUsername,
		topicPub:    topicPrefix + res.NodeID + topicPubSuffix,
		topicSub:    topicPrefix + res.NodeID + topicSubSuffix,
	}
	l.dataLock.Unlock()
	l.onMessageInitDone(XOK)
}

func (l *PersistentLink) onMessageInitDone(errCode ErrCode) {
	if LinkState(l.state.Load()) != LinkStatePreparing {
		return
	}
	if errCode == XOK {
		l.state.Store(int32(LinkStateRunning))
	} else {
		l.dataLock.Lock()
		l.node = localNode{}
		l.dataLock.Unlock()
		l.state.Store(int32(LinkStateInitialized))
	}

	l.dataLock.Lock()
	param := l.prepareParam
	listener := l.prepareListener
	l.prepareListener = nil
	l.dataLock.Unlock()
	if listener != nil {
		listener(param, errCode)
	}
}

func (l *PersistentLink) onMessagePacketSend() {
	if LinkState(l.state.Load()) != LinkStateRunning {
		return
	}
	pkt := l.sendQueue.Dequeue()
	if pkt == nil {
		return
	}

	res := l.signal.ConnectDevice(pkt.Content)
	l.dispatchConnectRsp(pkt.TraceID, res)

	if l.sendQueue.Size() > 0 {
		l.queue.Post(linkMsgPacketSend{}) //nolint:errcheck
	}
}

// dispatchConnectRsp routes a connect response back to its connection by
// trace id. Responses whose connection vanished mid-flight are dropped.
func (l *PersistentLink) dispatchConnectRsp(traceID int64, res DevConnectResult) {
	conn, ok := l.connections.FindByTraceID(traceID)
	if !ok {
		getLogger().Info("dropping response for vanished connection", "traceId", traceID)
		return
	}

	var (
		connectListener OnDevReqConnectDone
		renewListener   OnDevReqRenewDone
	)
	l.connections.Mutate(conn.ConnectID, func(ctx *ConnectionCtx) {
		if res.ErrCode == XOK {
			ctx.ChnlName = res.ChnlName
			ctx.LocalRtcUID = res.RtcUID
			ctx.RtcToken = res.RtcToken
			ctx.RtmToken = res.RtmToken
		}
		connectListener = ctx.connectListener
		renewListener = ctx.renewListener
		ctx.connectListener = nil
		ctx.renewListener = nil
	})

	switch {
	case renewListener != nil:
		renewListener(res.ErrCode, conn.ConnectID, res.RtcToken, res.RtmToken)
	case connectListener != nil:
		connectListener(res.ErrCode, conn.ConnectID, conn.DeviceID,
			res.RtcUID, res.ChnlName, res.RtcToken, res.RtmToken)
	}
	if res.ErrCode != XOK && renewListener == nil {
		l.connections.Remove(conn.ConnectID)
	}
}

func (l *PersistentLink) onMessagePacketRecv() {
	if LinkState(l.state.Load()) != LinkStateRunning {
		return
	}
	l.dataLock.Lock()
	topicSub := l.node.topicSub
	l.dataLock.Unlock()
	for {
		pkt := l.recvQueue.Dequeue()
		if pkt == nil {
			return
		}
		if pkt.Topic != "" && pkt.Topic != topicSub {
			getLogger().Warn("dropping packet from foreign topic", "topic", pkt.Topic)
			continue
		}
		l.parseIncomingPacket(pkt)
	}
}

func (l *PersistentLink) parseIncomingPacket(pkt *TransPacket) {
	var env struct {
		Header struct {
			TraceID string `json:"traceId"`
			Method  string `json:"method"`
		} `json:"header"`
		Payload struct {
			CallerID  string `json:"callerId"`
			AttachMsg string `json:"attachMsg"`
			ChnlName  string `json:"cname"`
			RtcToken  string `json:"token"`
		} `json:"payload"`
	}
	if err := json.Unmarshal([]byte(pkt.Content), &env); err != nil {
		getLogger().Warn("dropping malformed inbound packet", "error", err)
		return
	}
	if env.Header.Method != methodDeviceStartCall {
		return
	}
	if l.OnIncomingCall != nil {
		l.OnIncomingCall(pkt.TraceID, env.Payload.CallerID, env.Payload.AttachMsg,
			env.Payload.ChnlName, env.Payload.RtcToken)
	}
}

func (l *PersistentLink) onMessageUnprepare() {
	l.sendQueue.Clear()
	l.recvQueue.Clear()
	select {
	case l.unprepareAck <- struct{}{}:
	default:
	}
}
