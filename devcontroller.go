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

// PTZ actions
const (
	PtzActionStart = 0
	PtzActionStop  = 1
)

// PTZ directions
const (
	PtzDirectionUp    = 0
	PtzDirectionDown  = 1
	PtzDirectionLeft  = 2
	PtzDirectionRight = 3
	PtzDirectionZoom  = 4
)

// OnDevCmdDone reports the completion of a simple device command.
type OnDevCmdDone func(errCode ErrCode)

// OnDevCmdRecvData reports a command completion carrying response data.
type OnDevCmdRecvData func(errCode ErrCode, recvData string)

// DevController sends control commands to the device of one CONNECTED
// session. Obtain it from DeviceSessionMgr.DevController.
type DevController struct {
	mgr       *DeviceSessionMgr
	sessionID uuid.UUID
	deviceID  string
}

func newDevController(mgr *DeviceSessionMgr, sessionID uuid.UUID, deviceID string) *DevController {
	return &DevController{mgr: mgr, sessionID: sessionID, deviceID: deviceID}
}

func (d *DevController) sendCommand(commandID int, param interface{}, listener OnDevCmdDone) ErrCode {
	cmd := &RtmCmd{
		CommandID: commandID,
		DeviceID:  d.deviceID,
		Param:     param,
	}
	return d.mgr.rtm.SendCommand(cmd, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener != nil {
			listener(errCode)
		}
	})
}

// PtzCtrl starts or stops camera movement.
func (d *DevController) PtzCtrl(action, direction, speed int, listener OnDevCmdDone) ErrCode {
	return d.sendCommand(CmdPtzCtrl, PtzCtrlParam{
		Action:    action,
		Direction: direction,
		Speed:     speed,
	}, listener)
}

// PtzReset returns the camera to its home position.
func (d *DevController) PtzReset(listener OnDevCmdDone) ErrCode {
	return d.sendCommand(CmdPtzReset, nil, listener)
}

// DevReset reboots the device.
func (d *DevController) DevReset(listener OnDevCmdDone) ErrCode {
	return d.sendCommand(CmdDevReset, nil, listener)
}

// SendCustomizeCmd passes an opaque application payload to the device and
// returns its opaque answer.
func (d *DevController) SendCustomizeCmd(data string, listener OnDevCmdRecvData) ErrCode {
	cmd := &RtmCmd{
		CommandID: CmdCustomize,
		DeviceID:  d.deviceID,
		Param:     CustomizeParam{Data: data},
	}
	return d.mgr.rtm.SendCommand(cmd, func(errCode ErrCode, reqCmd, rspCmd *RtmCmd) {
		if listener == nil {
			return
		}
		recvData := ""
		if rspCmd != nil {
			recvData = rspCmd.Resp.RawData
		}
		listener(errCode, recvData)
	})
}
