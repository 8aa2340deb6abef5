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
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionState is the externally visible lifecycle of a device session.
type SessionState int

const (
	SessionStateDisconnected SessionState = iota
	SessionStateConnecting
	SessionStateConnected
)

func (s SessionState) String() string {
	switch s {
	case SessionStateDisconnected:
		return "DISCONNECTED"
	case SessionStateConnecting:
		return "CONNECTING"
	case SessionStateConnected:
		return "CONNECTED"
	}
	return "UNKNOWN"
}

// legState tracks one of the two transport legs of a connecting session.
// A session is CONNECTED only once both legs reach legConnected.
type legState int

const (
	legConnecting legState = iota
	legConnected
	legDisconnected
)

// SessionType distinguishes how a session came to exist.
type SessionType int

const (
	SessionTypeDial     SessionType = iota // locally initiated call
	SessionTypeIncoming                    // device initiated call
	SessionTypePlayback                    // channel based media playback
)

// SessionCtx is the internal per-session record. Fields are mutated only on
// the session manager worker through SessionRegistry.Mutate; other goroutines
// read consistent copies via Get or Info.
type SessionCtx struct {
	SessionID    uuid.UUID
	Type         SessionType
	UserID       string
	DeviceID     string
	LocalRtcUID  uint32
	DeviceRtcUID uint32
	ChnlName     string
	RtcToken     string
	RtmToken     string
	AttachMsg    string

	State       SessionState
	rtcState    legState
	rtmState    legState
	UserCount   int
	ConnectTime time.Time

	PubLocalAudio bool
	SubDevAudio   bool
	SubDevVideo   bool

	callback   *SessionCallback
	previewMgr *DevPreviewMgr
	mediaMgr   *DevMediaMgr
	controller *DevController
}

// SessionInfo is the public snapshot of a session handed to applications.
type SessionInfo struct {
	SessionID   uuid.UUID
	Type        SessionType
	UserID      string
	PeerDevID   string
	LocalRtcUID uint32
	ChnlName    string
	RtcToken    string
	RtmToken    string
	AttachMsg   string
	State       SessionState
	UserCount   int
}

func (s *SessionCtx) info() SessionInfo {
	return SessionInfo{
		SessionID:   s.SessionID,
		Type:        s.Type,
		UserID:      s.UserID,
		PeerDevID:   s.DeviceID,
		LocalRtcUID: s.LocalRtcUID,
		ChnlName:    s.ChnlName,
		RtcToken:    s.RtcToken,
		RtmToken:    s.RtmToken,
		AttachMsg:   s.AttachMsg,
		State:       s.State,
		UserCount:   s.UserCount,
	}
}

// SessionRegistry indexes session contexts by session id.
type SessionRegistry struct {
	lock     sync.RWMutex
	sessions map[uuid.UUID]*SessionCtx
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]*SessionCtx)}
}

func (r *SessionRegistry) Add(ctx *SessionCtx) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions[ctx.SessionID] = ctx
}

// Update replaces an existing context, a no-op when it is gone already.
func (r *SessionRegistry) Update(ctx *SessionCtx) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.sessions[ctx.SessionID]; ok {
		r.sessions[ctx.SessionID] = ctx
	}
}

// Mutate applies fn to the registered context under the registry lock,
// reporting whether the context was found.
func (r *SessionRegistry) Mutate(sessionID uuid.UUID, fn func(*SessionCtx)) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	ctx, ok := r.sessions[sessionID]
	if !ok {
		return false
	}
	fn(ctx)
	return true
}

// Get returns a snapshot copy of the registered context.
func (r *SessionRegistry) Get(sessionID uuid.UUID) (SessionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ctx, ok := r.sessions[sessionID]
	if !ok {
		return SessionCtx{}, false
	}
	return *ctx, true
}

// Info returns the public snapshot of the registered session.
func (r *SessionRegistry) Info(sessionID uuid.UUID) (SessionInfo, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ctx, ok := r.sessions[sessionID]
	if !ok {
		return SessionInfo{}, false
	}
	return ctx.info(), true
}

// Remove deletes the registered context, returning a snapshot of the removed
// entry and whether it existed.
func (r *SessionRegistry) Remove(sessionID uuid.UUID) (SessionCtx, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	ctx, ok := r.sessions[sessionID]
	if !ok {
		return SessionCtx{}, false
	}
	delete(r.sessions, sessionID)
	return *ctx, true
}

func (r *SessionRegistry) FindByDeviceID(deviceID string) (SessionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, ctx := range r.sessions {
		if strings.EqualFold(ctx.DeviceID, deviceID) {
			return *ctx, true
		}
	}
	return SessionCtx{}, false
}

func (r *SessionRegistry) FindByChannelName(chnlName string) (SessionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, ctx := range r.sessions {
		if ctx.ChnlName == chnlName {
			return *ctx, true
		}
	}
	return SessionCtx{}, false
}

func (r *SessionRegistry) GetAll() []SessionCtx {
	r.lock.RLock()
	defer r.lock.RUnlock()
	all := make([]SessionCtx, 0, len(r.sessions))
	for _, ctx := range r.sessions {
		all = append(all, *ctx)
	}
	return all
}

// QueryTimeout returns snapshots of sessions still CONNECTING whose connect
// attempt started more than timeout ago.
func (r *SessionRegistry) QueryTimeout(timeout time.Duration) []SessionCtx {
	r.lock.RLock()
	defer r.lock.RUnlock()
	now := time.Now()
	var expired []SessionCtx
	for _, ctx := range r.sessions {
		if ctx.State == SessionStateConnecting && now.Sub(ctx.ConnectTime) > timeout {
			expired = append(expired, *ctx)
		}
	}
	return expired
}

func (r *SessionRegistry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.sessions = make(map[uuid.UUID]*SessionCtx)
}

func (r *SessionRegistry) Size() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.sessions)
}
