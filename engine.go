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

// AudioEffectID selects a voice changer effect applied to published audio.
type AudioEffectID int

const (
	AudioEffectNormal AudioEffectID = iota
	AudioEffectOldMan
	AudioEffectBabyBoy
	AudioEffectBabyGirl
	AudioEffectPigKing
	AudioEffectEthereal
	AudioEffectHulk
)

// RtcNetworkStatus is a point-in-time sample of media transport quality.
type RtcNetworkStatus struct {
	Duration         int64
	TxBytes          int64
	RxBytes          int64
	TxKBitRate       int
	RxKBitRate       int
	TxAudioBytes     int64
	RxAudioBytes     int64
	TxVideoBytes     int64
	RxVideoBytes     int64
	TxAudioKBitRate  int
	RxAudioKBitRate  int
	TxVideoKBitRate  int
	RxVideoKBitRate  int
	LastmileDelay    int
	TxPacketLossRate int
	RxPacketLossRate int
}

// RtcEngineEvents is the set of callbacks a media engine raises toward the
// session manager. Handlers run on the engine's delivery goroutine; the
// session manager turns them into worker messages immediately.
type RtcEngineEvents struct {
	OnJoinDone          func(sessionID uuid.UUID, chnlName string, localUID uint32)
	OnLeftChannel       func(sessionID uuid.UUID)
	OnUserOnline        func(sessionID uuid.UUID, uid uint32)
	OnUserOffline       func(sessionID uuid.UUID, uid uint32, reason int)
	OnFirstVideoDecoded func(sessionID uuid.UUID, peerUID uint32, width, height int)
	OnTokenWillExpire   func(sessionID uuid.UUID)
	OnRecordingError    func(sessionID uuid.UUID, errCode ErrCode)
}

// RtcEngineParam configures the engine instance shared by all sessions.
type RtcEngineParam struct {
	AppID  string
	Events RtcEngineEvents
}

// RtcEngine is the media plane collaborator. Implementations wrap a vendor
// RTC SDK; the session manager drives it and owns its lifecycle, creating it
// on the first session and releasing it when the last session ends.
type RtcEngine interface {
	Initialize(param RtcEngineParam) ErrCode
	Release()
	IsReady() bool

	JoinChannel(session SessionCtx) ErrCode
	LeaveChannel(session SessionCtx) ErrCode
	RenewToken(session SessionCtx, rtcToken string) ErrCode

	MuteLocalAudio(session SessionCtx, mute bool) ErrCode
	MutePeerVideo(session SessionCtx, mute bool) ErrCode
	MutePeerAudio(session SessionCtx, mute bool) ErrCode

	SetPlaybackVolume(volumeLevel int) ErrCode
	SetAudioEffect(effect AudioEffectID) ErrCode
	AudioEffect() AudioEffectID

	TakeSnapshot(session SessionCtx, filePath string) ErrCode
	RecordingStart(session SessionCtx, outFilePath string) ErrCode
	RecordingStop(session SessionCtx) ErrCode
	IsRecording(session SessionCtx) bool

	NetworkStatus() RtcNetworkStatus
	SetParameters(privateParam string) ErrCode
}

// RtcEngineFactory builds the engine on demand. Injected through
// SessionMgrInitParam so applications bind their vendor SDK of choice.
type RtcEngineFactory func() RtcEngine
