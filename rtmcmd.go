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
	"strings"
	"sync"
	"time"
)

// Device command ids carried in the peer message payload. The device answers
// with the same command id and sequence id.
const (
	CmdPtzCtrl       = 1001
	CmdPtzReset      = 1002
	CmdSdcardFormat  = 2001
	CmdMediaQuery    = 2002
	CmdMediaDelete   = 2003
	CmdMediaCover    = 2004
	CmdMediaPlayTime = 2005
	CmdMediaPlayID   = 2006
	CmdMediaStop     = 2007
	CmdMediaRate     = 2008
	CmdMediaPause    = 2009
	CmdMediaResume   = 2010
	CmdMediaDownload = 2011
	CmdEventTimeline = 2012
	CmdCustomize     = 3001
	CmdDevReset      = 3002
)

// OnCommandDone reports the completion of one device command. rspCmd is nil
// when the command failed before a response arrived.
type OnCommandDone func(errCode ErrCode, reqCmd, rspCmd *RtmCmd)

// RtmCmd is one request or response exchanged with a device over the
// messaging plane. Requests carry Param, responses carry Resp.
type RtmCmd struct {
	SequenceID int64
	CommandID  int
	DeviceID   string
	SendTime   time.Time
	IsResponse bool
	ErrCode    ErrCode

	Param interface{}
	Resp  RtmCmdResp

	listener OnCommandDone
}

// RtmCmdResp holds the parsed response payload; only the field matching the
// command id is populated.
type RtmCmdResp struct {
	FileList   []DevFileInfo
	DelErrList []DevFileDelErr
	CoverData  string
	Play       *DevPlayGrant
	EventTimes []int64
	RawData    string
}

// encode renders the request payload sent as a peer message.
func (c *RtmCmd) encode() ([]byte, error) {
	req := struct {
		SequenceID int64       `json:"sequenceId"`
		CommandID  int         `json:"commandId"`
		Param      interface{} `json:"param,omitempty"`
	}{c.SequenceID, c.CommandID, c.Param}
	return json.Marshal(&req)
}

// request parameter payloads

type PtzCtrlParam struct {
	Action    int `json:"action"`
	Direction int `json:"direction"`
	Speed     int `json:"speed"`
}

type MediaQueryParam struct {
	FileID    string `json:"id,omitempty"`
	BeginTime int64  `json:"begin"`
	EndTime   int64  `json:"end"`
	PageIndex int    `json:"pageIndex"`
	PageSize  int    `json:"pageSize"`
}

type MediaDeleteParam struct {
	FileIDs []string `json:"fileList"`
}

type MediaCoverParam struct {
	ImgURL string `json:"url"`
}

type MediaPlayTimeParam struct {
	BeginTime int64 `json:"beginTime"`
	Speed     int   `json:"speed"`
}

type MediaPlayIDParam struct {
	FileID string `json:"id"`
	Offset int64  `json:"offset"`
	Speed  int    `json:"speed"`
}

type MediaRateParam struct {
	Rate int `json:"rate"`
}

type MediaDownloadParam struct {
	FileIDs []string `json:"fileList"`
}

type EventTimelineParam struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type CustomizeParam struct {
	Data string `json:"data"`
}

// response payloads

// DevFileInfo describes one media file recorded on the device.
type DevFileInfo struct {
	FileID    string `json:"id"`
	FileType  int    `json:"type"`
	Event     int    `json:"event"`
	BeginTime int64  `json:"beginTime"`
	EndTime   int64  `json:"endTime"`
	ImgURL    string `json:"pic"`
	VideoURL  string `json:"url"`
}

// DevFileDelErr reports one file the device failed to delete.
type DevFileDelErr struct {
	FileID string `json:"id"`
	Code   int    `json:"error"`
}

// DevPlayGrant is the channel grant for device side media playback.
type DevPlayGrant struct {
	ChnlName  string `json:"cname"`
	RtcToken  string `json:"token"`
	LocalUID  uint32 `json:"uid"`
	DeviceUID uint32 `json:"devUid"`
}

// mapDevRespCode converts the device reported status into an SDK error code.
func mapDevRespCode(commandID, code int) ErrCode {
	if code == 0 {
		return XOK
	}
	if commandID >= CmdSdcardFormat && commandID <= CmdEventTimeline {
		switch code {
		case 1:
			return XErrMediaNotExist
		case 2:
			return XErrMediaInDeleting
		case 3:
			return XErrMediaSysBusy
		case 4:
			return XErrMediaSdcard
		case 5:
			return XErrMediaStopped
		case 6:
			return XErrMediaOpenFailure
		}
	}
	return XErrUnknown
}

// parseRtmRespCmd decodes a response payload received from deviceID.
func parseRtmRespCmd(deviceID string, data []byte) (*RtmCmd, error) {
	var rsp struct {
		SequenceID int64           `json:"sequenceId"`
		CommandID  int             `json:"commandId"`
		Code       int             `json:"code"`
		Data       json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &rsp); err != nil {
		return nil, err
	}
	cmd := &RtmCmd{
		SequenceID: rsp.SequenceID,
		CommandID:  rsp.CommandID,
		DeviceID:   deviceID,
		IsResponse: true,
		ErrCode:    mapDevRespCode(rsp.CommandID, rsp.Code),
	}
	if len(rsp.Data) == 0 {
		return cmd, nil
	}

	switch rsp.CommandID {
	case CmdMediaQuery:
		var d struct {
			FileList []DevFileInfo `json:"fileList"`
		}
		if err := json.Unmarshal(rsp.Data, &d); err != nil {
			return nil, err
		}
		cmd.Resp.FileList = d.FileList
	case CmdMediaDelete:
		var d struct {
			ErrorList []DevFileDelErr `json:"errorList"`
		}
		if err := json.Unmarshal(rsp.Data, &d); err != nil {
			return nil, err
		}
		cmd.Resp.DelErrList = d.ErrorList
	case CmdMediaCover:
		var d struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(rsp.Data, &d); err != nil {
			return nil, err
		}
		cmd.Resp.CoverData = d.Data
	case CmdMediaPlayTime, CmdMediaPlayID, CmdMediaDownload:
		var grant DevPlayGrant
		if err := json.Unmarshal(rsp.Data, &grant); err != nil {
			return nil, err
		}
		cmd.Resp.Play = &grant
	case CmdEventTimeline:
		var d struct {
			TimeList []int64 `json:"timeList"`
		}
		if err := json.Unmarshal(rsp.Data, &d); err != nil {
			return nil, err
		}
		cmd.Resp.EventTimes = d.TimeList
	case CmdCustomize:
		var d struct {
			Data string `json:"data"`
		}
		if err := json.Unmarshal(rsp.Data, &d); err != nil {
			return nil, err
		}
		cmd.Resp.RawData = d.Data
	}
	return cmd, nil
}

// RtmCmdRegistry tracks commands awaiting a device response, by sequence id.
type RtmCmdRegistry struct {
	lock sync.Mutex
	cmds map[int64]*RtmCmd
}

func NewRtmCmdRegistry() *RtmCmdRegistry {
	return &RtmCmdRegistry{cmds: make(map[int64]*RtmCmd)}
}

func (r *RtmCmdRegistry) Add(cmd *RtmCmd) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.cmds[cmd.SequenceID] = cmd
}

func (r *RtmCmdRegistry) Get(sequenceID int64) (*RtmCmd, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	cmd, ok := r.cmds[sequenceID]
	return cmd, ok
}

func (r *RtmCmdRegistry) Remove(sequenceID int64) (*RtmCmd, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	cmd, ok := r.cmds[sequenceID]
	if ok {
		delete(r.cmds, sequenceID)
	}
	return cmd, ok
}

// RemoveByDeviceID removes and returns all commands addressed to the device.
func (r *RtmCmdRegistry) RemoveByDeviceID(deviceID string) []*RtmCmd {
	r.lock.Lock()
	defer r.lock.Unlock()
	var dropped []*RtmCmd
	for seq, cmd := range r.cmds {
		if strings.EqualFold(cmd.DeviceID, deviceID) {
			dropped = append(dropped, cmd)
			delete(r.cmds, seq)
		}
	}
	return dropped
}

// QueryTimeout removes and returns all commands older than timeout.
func (r *RtmCmdRegistry) QueryTimeout(timeout time.Duration) []*RtmCmd {
	r.lock.Lock()
	defer r.lock.Unlock()
	now := time.Now()
	var expired []*RtmCmd
	for seq, cmd := range r.cmds {
		if now.Sub(cmd.SendTime) > timeout {
			expired = append(expired, cmd)
			delete(r.cmds, seq)
		}
	}
	return expired
}

func (r *RtmCmdRegistry) Clear() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.cmds = make(map[int64]*RtmCmd)
}

func (r *RtmCmdRegistry) Size() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.cmds)
}
