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

	"github.com/google/uuid"
)

// OnDevReqConnectDone reports the outcome of a connect request. On success
// the channel grant fields are filled in.
type OnDevReqConnectDone func(errCode ErrCode, connectID uuid.UUID, deviceID string,
	localRtcUID uint32, chnlName, rtcToken, rtmToken string)

// OnDevReqRenewDone reports the outcome of a token renew request.
type OnDevReqRenewDone func(errCode ErrCode, connectID uuid.UUID, rtcToken, rtmToken string)

// ConnectionCtx tracks one device connection request through the persistent
// link. Fields are mutated only through ConnectionRegistry.Mutate; at most one
// of the two listeners is set at any time, selecting which completion path the
// next signaling response takes.
type ConnectionCtx struct {
	ConnectID    uuid.UUID
	TraceID      int64
	UserID       string
	DeviceID     string
	LocalRtcUID  uint32
	DeviceRtcUID uint32
	ChnlName     string
	RtcToken     string
	RtmToken     string
	AttachMsg    string

	connectListener OnDevReqConnectDone
	renewListener   OnDevReqRenewDone
}

// ConnectionRegistry indexes in-flight connection contexts by connect id.
// Lookups by device id, channel name and trace id scan linearly; the registry
// holds a handful of entries at most.
type ConnectionRegistry struct {
	lock  sync.RWMutex
	conns map[uuid.UUID]*ConnectionCtx
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{conns: make(map[uuid.UUID]*ConnectionCtx)}
}

func (r *ConnectionRegistry) Add(ctx *ConnectionCtx) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.conns[ctx.ConnectID] = ctx
}

// Update replaces an existing context. It is a no-op when the context is no
// longer registered.
func (r *ConnectionRegistry) Update(ctx *ConnectionCtx) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, ok := r.conns[ctx.ConnectID]; ok {
		r.conns[ctx.ConnectID] = ctx
	}
}

// Mutate applies fn to the registered context under the registry lock,
// reporting whether the context was found.
func (r *ConnectionRegistry) Mutate(connectID uuid.UUID, fn func(*ConnectionCtx)) bool {
	r.lock.Lock()
	defer r.lock.Unlock()
	ctx, ok := r.conns[connectID]
	if !ok {
		return false
	}
	fn(ctx)
	return true
}

// Get returns a snapshot copy of the registered context.
func (r *ConnectionRegistry) Get(connectID uuid.UUID) (ConnectionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	ctx, ok := r.conns[connectID]
	if !ok {
		return ConnectionCtx{}, false
	}
	return *ctx, true
}

// Remove deletes the registered context, returning a snapshot of the removed
// entry and whether it existed.
func (r *ConnectionRegistry) Remove(connectID uuid.UUID) (ConnectionCtx, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	ctx, ok := r.conns[connectID]
	if !ok {
		return ConnectionCtx{}, false
	}
	delete(r.conns, connectID)
	return *ctx, true
}

// FindByDeviceID returns a snapshot of the first context whose device id
// matches, comparing case-insensitively.
func (r *ConnectionRegistry) FindByDeviceID(deviceID string) (ConnectionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, ctx := range r.conns {
		if strings.EqualFold(ctx.DeviceID, deviceID) {
			return *ctx, true
		}
	}
	return ConnectionCtx{}, false
}

func (r *ConnectionRegistry) FindByChannelName(chnlName string) (ConnectionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, ctx := range r.conns {
		if ctx.ChnlName == chnlName {
			return *ctx, true
		}
	}
	return ConnectionCtx{}, false
}

func (r *ConnectionRegistry) FindByTraceID(traceID int64) (ConnectionCtx, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, ctx := range r.conns {
		if ctx.TraceID == traceID {
			return *ctx, true
		}
	}
	return ConnectionCtx{}, false
}

// GetAll returns snapshot copies of all registered contexts.
func (r *ConnectionRegistry) GetAll() []ConnectionCtx {
	r.lock.RLock()
	defer r.lock.RUnlock()
	all := make([]ConnectionCtx, 0, len(r.conns))
	for _, ctx := range r.conns {
		all = append(all, *ctx)
	}
	return all
}

func (r *ConnectionRegistry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.conns = make(map[uuid.UUID]*ConnectionCtx)
}

func (r *ConnectionRegistry) Size() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.conns)
}
