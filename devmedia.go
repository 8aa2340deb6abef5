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
	"go.uber.org/atomic"
)

// MediaPlayerState is the device side playback state.
type MediaPlayerState int32

const (
	MediaPlayerStateIdle MediaPlayerState = iota
	MediaPlayerStatePlaying
	MediaPlayerStatePaused
)

// listener signatures of the media file capability

type OnMediaQueryDone func(errCode ErrCode, fileList []DevFileInfo)
type OnMediaDeleteDone func(errCode ErrCode, errorList []DevFileDelErr)
type OnMediaCoverDone func(errCode ErrCode, coverData string)
type OnEventTimelineDone func(errCode ErrCode, eventTimes []int64)

// DevMediaMgr queries and plays media files recorded on the device of one
// CONNECTED session. Playback rides a dedicated channel the device opens on
// demand; the manager joins it as a playback session.
type DevMediaMgr struct {
	mgr       *DeviceSessionMgr
	sessionID uuid.UUID
	deviceID  string

	playerState atomic.Int32

	lock            sync.Mutex
	playerSessionID uuid.UUID
}

func newDevMediaMgr(mgr *DeviceSessionMgr, sessionID uuid.UUID, deviceID string) *DevMediaMgr {
	return &DevMediaMgr{mgr: mgr, sessionID: sessionID, deviceID: deviceID}
}

func (d *DevMediaMgr) sendCommand(commandID int, param interface{}, done OnCommandDone) ErrCode {
	cmd := &RtmCmd{
		CommandID: commandID,
		DeviceID:  d.deviceID,
		Param:     param,
	}
	return d.mgr.rtm.SendCommand(cmd, done)
}

// QueryMediaList lists media files matching param.
func (d *DevMediaMgr) QueryMediaList(param MediaQueryParam, listener OnMediaQueryDone) ErrCode {
	return d.sendCommand(CmdMediaQuery, param, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener == nil {
			return
		}
		var fileList []DevFileInfo
		if rspCmd != nil {
			fileList = rspCmd.Resp.FileList
		}
		listener(errCode, fileList)
	})
}

// DeleteMediaList deletes files by id, reporting per-file failures.
func (d *DevMediaMgr) DeleteMediaList(fileIDs []string, listener OnMediaDeleteDone) ErrCode {
	return d.sendCommand(CmdMediaDelete, MediaDeleteParam{FileIDs: fileIDs},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			if listener == nil {
				return
			}
			var errorList []DevFileDelErr
			if rspCmd != nil {
				errorList = rspCmd.Resp.DelErrList
			}
			listener(errCode, errorList)
		})
}

// GetMediaCoverData fetches the cover image of a file as base64 data.
func (d *DevMediaMgr) GetMediaCoverData(imgURL string, listener OnMediaCoverDone) ErrCode {
	return d.sendCommand(CmdMediaCover, MediaCoverParam{ImgURL: imgURL},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			if listener == nil {
				return
			}
			coverData := ""
			if rspCmd != nil {
				coverData = rspCmd.Resp.CoverData
			}
			listener(errCode, coverData)
		})
}

// QueryEventTimeline lists the days of a month holding recorded events.
func (d *DevMediaMgr) QueryEventTimeline(year, month int, listener OnEventTimelineDone) ErrCode {
	return d.sendCommand(CmdEventTimeline, EventTimelineParam{Year: year, Month: month},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			if listener == nil {
				return
			}
			var eventTimes []int64
			if rspCmd != nil {
				eventTimes = rspCmd.Resp.EventTimes
			}
			listener(errCode, eventTimes)
		})
}

// FormatStorage erases the device storage card.
func (d *DevMediaMgr) FormatStorage(listener OnDevCmdDone) ErrCode {
	return d.sendCommand(CmdSdcardFormat, nil, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener != nil {
			listener(errCode)
		}
	})
}

// DownloadFileList asks the device to stream files for download over a
// playback channel.
func (d *DevMediaMgr) DownloadFileList(fileIDs []string, listener OnDevCmdDone) ErrCode {
	return d.sendCommand(CmdMediaDownload, MediaDownloadParam{FileIDs: fileIDs},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			if errCode == XOK && rspCmd != nil && rspCmd.Resp.Play != nil {
				errCode = d.enterPlayerChannel(*rspCmd.Resp.Play)
			}
			if listener != nil {
				listener(errCode)
			}
		})
}

// Play starts timeline playback from a global start time.
func (d *DevMediaMgr) Play(beginTime int64, speed int, listener OnDevCmdDone) ErrCode {
	if MediaPlayerState(d.playerState.Load()) != MediaPlayerStateIdle {
		return XErrBadState
	}
	return d.sendCommand(CmdMediaPlayTime, MediaPlayTimeParam{BeginTime: beginTime, Speed: speed},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			d.onPlayDone(errCode, rspCmd, listener)
		})
}

// PlayByID starts playback of one file from offset.
func (d *DevMediaMgr) PlayByID(fileID string, offset int64, speed int, listener OnDevCmdDone) ErrCode {
	if MediaPlayerState(d.playerState.Load()) != MediaPlayerStateIdle {
		return XErrBadState
	}
	return d.sendCommand(CmdMediaPlayID, MediaPlayIDParam{FileID: fileID, Offset: offset, Speed: speed},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			d.onPlayDone(errCode, rspCmd, listener)
		})
}

func (d *DevMediaMgr) onPlayDone(errCode ErrCode, rspCmd *RtmCmd, listener OnDevCmdDone) {
	if errCode == XOK {
		if rspCmd == nil || rspCmd.Resp.Play == nil {
			errCode = XErrDevCmdInvalidData
		} else if errCode = d.enterPlayerChannel(*rspCmd.Resp.Play); errCode == XOK {
			d.playerState.Store(int32(MediaPlayerStatePlaying))
		}
	}
	if listener != nil {
		listener(errCode)
	}
}

func (d *DevMediaMgr) enterPlayerChannel(grant DevPlayGrant) ErrCode {
	parent, ok := d.mgr.sessions.Get(d.sessionID)
	if !ok {
		return XErrBadState
	}
	playerID, errCode := d.mgr.devPlayerChnlEnter(parent, grant)
	if errCode != XOK {
		return errCode
	}
	d.lock.Lock()
	d.playerSessionID = playerID
	d.lock.Unlock()
	return XOK
}

// Stop ends playback and leaves the playback channel.
func (d *DevMediaMgr) Stop(listener OnDevCmdDone) ErrCode {
	if MediaPlayerState(d.playerState.Load()) == MediaPlayerStateIdle {
		if listener != nil {
			listener(XOK)
		}
		return XOK
	}
	d.playerState.Store(int32(MediaPlayerStateIdle))

	d.lock.Lock()
	playerID := d.playerSessionID
	d.playerSessionID = uuid.Nil
	d.lock.Unlock()
	if playerID != uuid.Nil {
		d.mgr.devPlayerChnlExit(playerID)
	}
	return d.sendCommand(CmdMediaStop, nil, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener != nil {
			listener(errCode)
		}
	})
}

// Pause suspends playback, keeping the channel open.
func (d *DevMediaMgr) Pause(listener OnDevCmdDone) ErrCode {
	if !d.playerState.CompareAndSwap(int32(MediaPlayerStatePlaying), int32(MediaPlayerStatePaused)) {
		return XErrBadState
	}
	return d.sendCommand(CmdMediaPause, nil, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener != nil {
			listener(errCode)
		}
	})
}

// Resume continues paused playback.
func (d *DevMediaMgr) Resume(listener OnDevCmdDone) ErrCode {
	if !d.playerState.CompareAndSwap(int32(MediaPlayerStatePaused), int32(MediaPlayerStatePlaying)) {
		return XErrBadState
	}
	return d.sendCommand(CmdMediaResume, nil, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener != nil {
			listener(errCode)
		}
	})
}

// SetRate changes the playback speed.
func (d *DevMediaMgr) SetRate(rate int, listener OnDevCmdDone) ErrCode {
	if MediaPlayerState(d.playerState.Load()) == MediaPlayerStateIdle {
		return XErrBadState
	}
	return d.sendCommand(CmdMediaRate, MediaRateParam{Rate: rate},
		func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
			if listener != nil {
				listener(errCode)
			}
		})
}

// PlayerState returns the current playback state.
func (d *DevMediaMgr) PlayerState() MediaPlayerState {
	return MediaPlayerState(d.playerState.Load())
}
