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

import "github.com/google/uuid"

// SessionCallback receives asynchronous session events. Construct with
// NewSessionCallback so unset fields default to no-ops, then override the
// events you care about.
type SessionCallback struct {
	// OnConnectDone fires exactly once per connect attempt, after both
	// transport legs settle or the attempt fails.
	OnConnectDone func(sessionID uuid.UUID, errCode ErrCode)

	// OnDisconnected fires when the device drops the session from its side.
	// A locally requested disconnect completes synchronously instead and
	// does not fire this event.
	OnDisconnected func(sessionID uuid.UUID)

	OnTokenWillExpire func(sessionID uuid.UUID)
	OnError           func(sessionID uuid.UUID, errCode ErrCode)

	// Other (non-device) users entering or leaving the channel.
	OnOtherUserOnline  func(sessionID uuid.UUID, userCount int)
	OnOtherUserOffline func(sessionID uuid.UUID, userCount int)
}

func NewSessionCallback() *SessionCallback {
	return &SessionCallback{
		OnConnectDone:      func(sessionID uuid.UUID, errCode ErrCode) {},
		OnDisconnected:     func(sessionID uuid.UUID) {},
		OnTokenWillExpire:  func(sessionID uuid.UUID) {},
		OnError:            func(sessionID uuid.UUID, errCode ErrCode) {},
		OnOtherUserOnline:  func(sessionID uuid.UUID, userCount int) {},
		OnOtherUserOffline: func(sessionID uuid.UUID, userCount int) {},
	}
}

// Merge overrides this callback's handlers with the non-nil handlers of other.
func (c *SessionCallback) Merge(other *SessionCallback) {
	if other == nil {
		return
	}
	if other.OnConnectDone != nil {
		c.OnConnectDone = other.OnConnectDone
	}
	if other.OnDisconnected != nil {
		c.OnDisconnected = other.OnDisconnected
	}
	if other.OnTokenWillExpire != nil {
		c.OnTokenWillExpire = other.OnTokenWillExpire
	}
	if other.OnError != nil {
		c.OnError = other.OnError
	}
	if other.OnOtherUserOnline != nil {
		c.OnOtherUserOnline = other.OnOtherUserOnline
	}
	if other.OnOtherUserOffline != nil {
		c.OnOtherUserOffline = other.OnOtherUserOffline
	}
}

// OnFirstVideoFrame reports the decode of the first video frame of a preview.
type OnFirstVideoFrame func(sessionID uuid.UUID, width, height int)
