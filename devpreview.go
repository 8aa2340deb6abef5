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

	"github.com/google/uuid"
)

// DevPreviewMgr controls live audio and video of one CONNECTED session.
// Obtain it from DeviceSessionMgr.DevPreviewMgr.
type DevPreviewMgr struct {
	mgr       *DeviceSessionMgr
	sessionID uuid.UUID

	lock       sync.Mutex
	previewing bool
	listener   OnFirstVideoFrame
}

func newDevPreviewMgr(mgr *DeviceSessionMgr, sessionID uuid.UUID) *DevPreviewMgr {
	return &DevPreviewMgr{mgr: mgr, sessionID: sessionID}
}

func (p *DevPreviewMgr) withEngine(fn func(engine RtcEngine, ctx SessionCtx) ErrCode) ErrCode {
	ctx, ok := p.mgr.sessions.Get(p.sessionID)
	if !ok {
		return XErrBadState
	}
	p.mgr.engineLock.Lock()
	defer p.mgr.engineLock.Unlock()
	if p.mgr.engine == nil {
		return XErrBadState
	}
	return fn(p.mgr.engine, ctx)
}

// PreviewStart subscribes device video. listener, when set, fires once on
// the first decoded frame.
func (p *DevPreviewMgr) PreviewStart(listener OnFirstVideoFrame) ErrCode {
	p.lock.Lock()
	p.previewing = true
	p.listener = listener
	p.lock.Unlock()
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.MutePeerVideo(ctx, false)
	})
}

func (p *DevPreviewMgr) PreviewStop() ErrCode {
	p.lock.Lock()
	p.previewing = false
	p.listener = nil
	p.lock.Unlock()
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.MutePeerVideo(ctx, true)
	})
}

func (p *DevPreviewMgr) IsPreviewing() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.previewing
}

func (p *DevPreviewMgr) notifyFirstFrame(width, height int) {
	p.lock.Lock()
	listener := p.listener
	p.listener = nil
	p.lock.Unlock()
	if listener != nil {
		listener(p.sessionID, width, height)
	}
}

// MuteDeviceAudio mutes device audio playback on this side.
func (p *DevPreviewMgr) MuteDeviceAudio(mute bool) ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.MutePeerAudio(ctx, mute)
	})
}

// MuteLocalAudio stops or resumes publishing the local microphone, i.e.
// talking to the device.
func (p *DevPreviewMgr) MuteLocalAudio(mute bool) ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.MuteLocalAudio(ctx, mute)
	})
}

func (p *DevPreviewMgr) SetPlaybackVolume(volumeLevel int) ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.SetPlaybackVolume(volumeLevel)
	})
}

func (p *DevPreviewMgr) SetAudioEffect(effect AudioEffectID) ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.SetAudioEffect(effect)
	})
}

func (p *DevPreviewMgr) AudioEffect() AudioEffectID {
	effect := AudioEffectNormal
	p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		effect = engine.AudioEffect()
		return XOK
	})
	return effect
}

// TakeSnapshot captures the current device frame to filePath.
func (p *DevPreviewMgr) TakeSnapshot(filePath string) ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.TakeSnapshot(ctx, filePath)
	})
}

// RecordingStart records the live stream to outFilePath.
func (p *DevPreviewMgr) RecordingStart(outFilePath string) ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.RecordingStart(ctx, outFilePath)
	})
}

func (p *DevPreviewMgr) RecordingStop() ErrCode {
	return p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		return engine.RecordingStop(ctx)
	})
}

func (p *DevPreviewMgr) IsRecording() bool {
	recording := false
	p.withEngine(func(engine RtcEngine, ctx SessionCtx) ErrCode {
		recording = engine.IsRecording(ctx)
		return XOK
	})
	return recording
}
