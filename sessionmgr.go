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

	"github.com/google/uuid"
)

const (
	defaultSessionTimerInterval = 2 * time.Second
	defaultConnectTimeout       = 30 * time.Second
)

// sessionLeg names one of the two transport legs of a session.
type sessionLeg int

const (
	legRtc sessionLeg = iota
	legRtm
)

func (l sessionLeg) String() string {
	if l == legRtc {
		return "rtc"
	}
	return "rtm"
}

// SessionMgrInitParam configures the device session manager.
type SessionMgrInitParam struct {
	AppID  string
	UserID string

	// EngineFactory builds the media engine on the first session.
	EngineFactory RtcEngineFactory
	// RtmClient carries device commands; see NewWebsocketRtmClient.
	RtmClient RtmClient

	// Zero values take the defaults.
	ConnectTimeout    time.Duration
	TimerInterval     time.Duration
	RtmCommandTimeout time.Duration
}

// ConnectParam describes one session to establish, built from the channel
// grant returned by PersistentLink.DevReqConnect.
type ConnectParam struct {
	PeerDevID    string
	LocalRtcUID  uint32
	DeviceRtcUID uint32 // 0 takes the default device uid
	ChnlName     string
	RtcToken     string
	RtmToken     string
	AttachMsg    string

	// Incoming marks a session answering a device initiated call, built
	// from the grant carried by PersistentLink.OnIncomingCall.
	Incoming bool

	PubLocalAudio bool
	SubDevAudio   bool
	SubDevVideo   bool
}

// ConnectResult is the synchronous half of a Connect call.
type ConnectResult struct {
	ErrCode   ErrCode
	SessionID uuid.UUID
}

// session manager worker messages
type (
	smMsgConnectDev struct{ sessionID uuid.UUID }
	smMsgLegDone    struct {
		sessionID uuid.UUID
		leg       sessionLeg
		errCode   ErrCode
	}
	smMsgUserOnline struct {
		sessionID uuid.UUID
		uid       uint32
	}
	smMsgUserOffline struct {
		sessionID uuid.UUID
		uid       uint32
	}
	smMsgFirstFrame struct {
		sessionID     uuid.UUID
		uid           uint32
		width, height int
	}
	smMsgTimer struct{}
)

// DeviceSessionMgr establishes and supervises device sessions. A session is
// CONNECTED only once both its RTC leg and its messaging leg are up; leg
// results arrive in either order and are reconciled on a single worker.
type DeviceSessionMgr struct {
	initParam SessionMgrInitParam
	queue     *workerQueue
	sessions  *SessionRegistry
	rtm       *RtmComp

	engineLock sync.Mutex
	engine     RtcEngine

	sweepStop chan struct{}
	sweepDone chan struct{}
}

func NewDeviceSessionMgr(param SessionMgrInitParam) *DeviceSessionMgr {
	if param.ConnectTimeout <= 0 {
		param.ConnectTimeout = defaultConnectTimeout
	}
	if param.TimerInterval <= 0 {
		param.TimerInterval = defaultSessionTimerInterval
	}
	m := &DeviceSessionMgr{
		initParam: param,
		sessions:  NewSessionRegistry(),
	}
	m.queue = newWorkerQueue(workerQueueParams{
		Name:          "sessionmgr",
		HandleMessage: m.handleMessage,
	})
	m.rtm = NewRtmComp(RtmCompParam{
		Client:         param.RtmClient,
		UserID:         param.UserID,
		Sessions:       m.GetSessionList,
		CommandTimeout: param.RtmCommandTimeout,
	})
	return m
}

// Initialize starts the manager. EngineFactory and RtmClient are required.
func (m *DeviceSessionMgr) Initialize() ErrCode {
	if m.initParam.EngineFactory == nil || m.initParam.RtmClient == nil {
		return XErrInvalidParam
	}
	if m.queue.IsStarted() {
		return XErrBadState
	}
	if errCode := m.rtm.Initialize(); errCode != XOK {
		return errCode
	}
	m.queue.Start()
	m.sweepStop = make(chan struct{})
	m.sweepDone = make(chan struct{})
	go m.sweepLoop(m.sweepStop, m.sweepDone)
	return XOK
}

// Release disconnects every session and stops the manager.
func (m *DeviceSessionMgr) Release() {
	if !m.queue.IsStarted() {
		return
	}
	close(m.sweepStop)
	<-m.sweepDone
	m.queue.Close()

	for _, ctx := range m.sessions.GetAll() {
		m.teardownSession(ctx)
	}
	m.sessions.Clear()
	m.rtm.Release()

	m.engineLock.Lock()
	if m.engine != nil {
		m.engine.Release()
		m.engine = nil
	}
	m.engineLock.Unlock()
}

// Connect starts establishing a session to a device. The callback's
// OnConnectDone fires exactly once with the outcome. A device that already
// has a session is rejected.
func (m *DeviceSessionMgr) Connect(param ConnectParam, cb *SessionCallback) ConnectResult {
	if !m.queue.IsStarted() {
		return ConnectResult{ErrCode: XErrSdkNotReady}
	}
	if param.PeerDevID == "" || param.ChnlName == "" {
		return ConnectResult{ErrCode: XErrInvalidParam}
	}
	if _, ok := m.sessions.FindByDeviceID(param.PeerDevID); ok {
		getLogger().Warn("device already has a session", "deviceId", param.PeerDevID)
		return ConnectResult{ErrCode: XErrSdkNotReady}
	}

	deviceUID := param.DeviceRtcUID
	if deviceUID == 0 {
		deviceUID = defaultDeviceRtcUID
	}
	callback := NewSessionCallback()
	callback.Merge(cb)

	sessionType := SessionTypeDial
	if param.Incoming {
		sessionType = SessionTypeIncoming
	}
	ctx := &SessionCtx{
		SessionID:     uuid.New(),
		Type:          sessionType,
		UserID:        m.initParam.UserID,
		DeviceID:      param.PeerDevID,
		LocalRtcUID:   param.LocalRtcUID,
		DeviceRtcUID:  deviceUID,
		ChnlName:      param.ChnlName,
		RtcToken:      param.RtcToken,
		RtmToken:      param.RtmToken,
		AttachMsg:     param.AttachMsg,
		State:         SessionStateConnecting,
		rtcState:      legConnecting,
		rtmState:      legConnecting,
		ConnectTime:   time.Now(),
		PubLocalAudio: param.PubLocalAudio,
		SubDevAudio:   param.SubDevAudio,
		SubDevVideo:   param.SubDevVideo,
		callback:      callback,
	}
	m.sessions.Add(ctx)
	if err := m.queue.Post(smMsgConnectDev{sessionID: ctx.SessionID}); err != nil {
		m.sessions.Remove(ctx.SessionID)
		return ConnectResult{ErrCode: XErrBadState}
	}
	return ConnectResult{ErrCode: XOK, SessionID: ctx.SessionID}
}

// Disconnect tears a session down synchronously, stopping preview, recording
// and playback first. Unknown session ids succeed, so repeated disconnects
// are harmless. No OnDisconnected event fires for a local disconnect.
func (m *DeviceSessionMgr) Disconnect(sessionID uuid.UUID) ErrCode {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok {
		return XOK
	}

	m.engineLock.Lock()
	if m.engine != nil && m.engine.IsRecording(ctx) {
		m.engine.RecordingStop(ctx)
	}
	m.engineLock.Unlock()
	if ctx.mediaMgr != nil {
		ctx.mediaMgr.Stop(nil)
	}
	m.teardownSession(ctx)
	return XOK
}

// RenewToken installs fresh channel tokens on both legs of a live session.
func (m *DeviceSessionMgr) RenewToken(sessionID uuid.UUID, rtcToken, rtmToken string) ErrCode {
	found := m.sessions.Mutate(sessionID, func(ctx *SessionCtx) {
		ctx.RtcToken = rtcToken
		ctx.RtmToken = rtmToken
	})
	if !found {
		return XErrInvalidParam
	}
	ctx, _ := m.sessions.Get(sessionID)

	m.engineLock.Lock()
	if m.engine != nil {
		m.engine.RenewToken(ctx, rtcToken)
	}
	m.engineLock.Unlock()
	m.rtm.ConnectToDevice(ctx.DeviceID, rtmToken, nil)
	return XOK
}

// GetSessionList snapshots all live sessions.
func (m *DeviceSessionMgr) GetSessionList() []SessionInfo {
	all := m.sessions.GetAll()
	infos := make([]SessionInfo, 0, len(all))
	for i := range all {
		infos = append(infos, all[i].info())
	}
	return infos
}

// GetSessionInfo snapshots one session.
func (m *DeviceSessionMgr) GetSessionInfo(sessionID uuid.UUID) (SessionInfo, bool) {
	return m.sessions.Info(sessionID)
}

// DevPreviewMgr returns the preview capability of a CONNECTED session.
func (m *DeviceSessionMgr) DevPreviewMgr(sessionID uuid.UUID) (*DevPreviewMgr, bool) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok || ctx.previewMgr == nil {
		return nil, false
	}
	return ctx.previewMgr, true
}

// DevMediaMgr returns the media file capability of a CONNECTED session.
func (m *DeviceSessionMgr) DevMediaMgr(sessionID uuid.UUID) (*DevMediaMgr, bool) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok || ctx.mediaMgr == nil {
		return nil, false
	}
	return ctx.mediaMgr, true
}

// DevController returns the control capability of a CONNECTED session.
func (m *DeviceSessionMgr) DevController(sessionID uuid.UUID) (*DevController, bool) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok || ctx.controller == nil {
		return nil, false
	}
	return ctx.controller, true
}

// NetworkStatus samples media transport quality, zero when no engine is up.
func (m *DeviceSessionMgr) NetworkStatus() RtcNetworkStatus {
	m.engineLock.Lock()
	defer m.engineLock.Unlock()
	if m.engine == nil {
		return RtcNetworkStatus{}
	}
	return m.engine.NetworkStatus()
}

func (m *DeviceSessionMgr) sweepLoop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.initParam.TimerInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.queue.Post(smMsgTimer{}) //nolint:errcheck
		}
	}
}

func (m *DeviceSessionMgr) handleMessage(msg workerMessage) {
	switch t := msg.(type) {
	case smMsgConnectDev:
		m.onMessageConnectDev(t.sessionID)
	case smMsgLegDone:
		m.onMessageLegDone(t.sessionID, t.leg, t.errCode)
	case smMsgUserOnline:
		m.onMessageUserOnline(t.sessionID, t.uid)
	case smMsgUserOffline:
		m.onMessageUserOffline(t.sessionID, t.uid)
	case smMsgFirstFrame:
		m.onMessageFirstFrame(t)
	case smMsgTimer:
		m.onMessageTimer()
	}
}

func (m *DeviceSessionMgr) onMessageConnectDev(sessionID uuid.UUID) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok || ctx.State != SessionStateConnecting {
		return
	}

	engine, errCode := m.engineAcquire()
	if errCode != XOK {
		m.queue.Post(smMsgLegDone{sessionID: sessionID, leg: legRtc, errCode: errCode}) //nolint:errcheck
	} else if errCode = engine.JoinChannel(ctx); errCode != XOK {
		m.queue.Post(smMsgLegDone{sessionID: sessionID, leg: legRtc, errCode: errCode}) //nolint:errcheck
	}

	m.rtm.ConnectToDevice(ctx.DeviceID, ctx.RtmToken, func(errCode ErrCode) {
		m.queue.Post(smMsgLegDone{sessionID: sessionID, leg: legRtm, errCode: errCode}) //nolint:errcheck
	})
}

// onMessageLegDone folds one leg result into the session. Results for
// sessions no longer CONNECTING are stale and dropped, which also makes
// duplicate leg events harmless.
func (m *DeviceSessionMgr) onMessageLegDone(sessionID uuid.UUID, leg sessionLeg, errCode ErrCode) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok || ctx.State != SessionStateConnecting {
		return
	}

	if errCode != XOK {
		getLogger().Warn("session leg failed",
			"sessionId", sessionID, "leg", leg.String(), "errCode", errCode)
		m.teardownSession(ctx)
		ctx.callback.OnConnectDone(sessionID, errCode)
		return
	}

	bothUp := false
	m.sessions.Mutate(sessionID, func(c *SessionCtx) {
		switch leg {
		case legRtc:
			c.rtcState = legConnected
		case legRtm:
			c.rtmState = legConnected
		}
		if c.rtcState == legConnected && c.rtmState == legConnected {
			c.State = SessionStateConnected
			c.previewMgr = newDevPreviewMgr(m, sessionID)
			c.mediaMgr = newDevMediaMgr(m, sessionID, c.DeviceID)
			c.controller = newDevController(m, sessionID, c.DeviceID)
			bothUp = true
		}
	})
	if bothUp {
		getLogger().Info("session connected", "sessionId", sessionID, "deviceId", ctx.DeviceID)
		ctx.callback.OnConnectDone(sessionID, XOK)
	}
}

func (m *DeviceSessionMgr) onMessageUserOnline(sessionID uuid.UUID, uid uint32) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok {
		return
	}
	if uid == ctx.DeviceRtcUID {
		m.onMessageLegDone(sessionID, legRtc, XOK)
		return
	}
	userCount := 0
	m.sessions.Mutate(sessionID, func(c *SessionCtx) {
		c.UserCount++
		userCount = c.UserCount
	})
	ctx.callback.OnOtherUserOnline(sessionID, userCount)
}

func (m *DeviceSessionMgr) onMessageUserOffline(sessionID uuid.UUID, uid uint32) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok {
		return
	}
	if uid == ctx.DeviceRtcUID {
		if ctx.State == SessionStateConnecting {
			m.onMessageLegDone(sessionID, legRtc, XErrNetwork)
			return
		}
		getLogger().Info("device went offline", "sessionId", sessionID, "deviceId", ctx.DeviceID)
		m.teardownSession(ctx)
		ctx.callback.OnDisconnected(sessionID)
		return
	}
	userCount := 0
	m.sessions.Mutate(sessionID, func(c *SessionCtx) {
		if c.UserCount > 0 {
			c.UserCount--
		}
		userCount = c.UserCount
	})
	ctx.callback.OnOtherUserOffline(sessionID, userCount)
}

func (m *DeviceSessionMgr) onMessageFirstFrame(t smMsgFirstFrame) {
	ctx, ok := m.sessions.Get(t.sessionID)
	if !ok || t.uid != ctx.DeviceRtcUID || ctx.previewMgr == nil {
		return
	}
	ctx.previewMgr.notifyFirstFrame(t.width, t.height)
}

// onMessageTimer sweeps sessions stuck CONNECTING past the connect timeout.
func (m *DeviceSessionMgr) onMessageTimer() {
	for _, ctx := range m.sessions.QueryTimeout(m.initParam.ConnectTimeout) {
		getLogger().Warn("session connect timed out",
			"sessionId", ctx.SessionID, "deviceId", ctx.DeviceID)
		m.teardownSession(ctx)
		ctx.callback.OnConnectDone(ctx.SessionID, XErrTimeout)
	}
}

// teardownSession removes the session and releases both legs. The engine is
// released once the last session is gone.
func (m *DeviceSessionMgr) teardownSession(ctx SessionCtx) {
	m.sessions.Remove(ctx.SessionID)
	if ctx.Type != SessionTypePlayback {
		m.rtm.DisconnectFromDevice(ctx.DeviceID)
	}

	m.engineLock.Lock()
	defer m.engineLock.Unlock()
	if m.engine == nil {
		return
	}
	m.engine.LeaveChannel(ctx)
	if m.sessions.Size() == 0 {
		m.engine.Release()
		m.engine = nil
	}
}

// engineAcquire returns the shared engine, creating it on first use.
func (m *DeviceSessionMgr) engineAcquire() (RtcEngine, ErrCode) {
	m.engineLock.Lock()
	defer m.engineLock.Unlock()
	if m.engine != nil {
		return m.engine, XOK
	}
	engine := m.initParam.EngineFactory()
	errCode := engine.Initialize(RtcEngineParam{
		AppID:  m.initParam.AppID,
		Events: m.engineEvents(),
	})
	if errCode != XOK {
		return nil, errCode
	}
	m.engine = engine
	return engine, XOK
}

// engineEvents turns engine callbacks into worker messages so every state
// change lands on the session manager worker.
func (m *DeviceSessionMgr) engineEvents() RtcEngineEvents {
	return RtcEngineEvents{
		OnJoinDone: func(sessionID uuid.UUID, chnlName string, localUID uint32) {
			getLogger().Info("joined channel", "sessionId", sessionID, "chnlName", chnlName, "uid", localUID)
		},
		OnUserOnline: func(sessionID uuid.UUID, uid uint32) {
			m.queue.Post(smMsgUserOnline{sessionID: sessionID, uid: uid}) //nolint:errcheck
		},
		OnUserOffline: func(sessionID uuid.UUID, uid uint32, reason int) {
			m.queue.Post(smMsgUserOffline{sessionID: sessionID, uid: uid}) //nolint:errcheck
		},
		OnFirstVideoDecoded: func(sessionID uuid.UUID, peerUID uint32, width, height int) {
			m.queue.Post(smMsgFirstFrame{sessionID: sessionID, uid: peerUID, width: width, height: height}) //nolint:errcheck
		},
		OnTokenWillExpire: func(sessionID uuid.UUID) {
			if ctx, ok := m.sessions.Get(sessionID); ok {
				ctx.callback.OnTokenWillExpire(sessionID)
			}
		},
		OnRecordingError: func(sessionID uuid.UUID, errCode ErrCode) {
			if ctx, ok := m.sessions.Get(sessionID); ok {
				ctx.callback.OnError(sessionID, errCode)
			}
		},
	}
}

// devPlayerChnlEnter creates the channel-backed playback session granted by
// a device for media file playback. It is CONNECTED from the start.
func (m *DeviceSessionMgr) devPlayerChnlEnter(parent SessionCtx, grant DevPlayGrant) (uuid.UUID, ErrCode) {
	ctx := &SessionCtx{
		SessionID:    uuid.New(),
		Type:         SessionTypePlayback,
		UserID:       parent.UserID,
		DeviceID:     parent.DeviceID,
		LocalRtcUID:  grant.LocalUID,
		DeviceRtcUID: grant.DeviceUID,
		ChnlName:     grant.ChnlName,
		RtcToken:     grant.RtcToken,
		State:        SessionStateConnected,
		rtcState:     legConnected,
		rtmState:     legConnected,
		ConnectTime:  time.Now(),
		SubDevAudio:  true,
		SubDevVideo:  true,
		callback:     NewSessionCallback(),
	}
	engine, errCode := m.engineAcquire()
	if errCode != XOK {
		return uuid.Nil, errCode
	}
	m.sessions.Add(ctx)
	if errCode = engine.JoinChannel(*ctx); errCode != XOK {
		m.sessions.Remove(ctx.SessionID)
		return uuid.Nil, errCode
	}
	return ctx.SessionID, XOK
}

// devPlayerChnlExit leaves and drops a playback session.
func (m *DeviceSessionMgr) devPlayerChnlExit(sessionID uuid.UUID) {
	ctx, ok := m.sessions.Get(sessionID)
	if !ok {
		return
	}
	m.teardownSession(ctx)
}
