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
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestRtmCmdEncode(t *testing.T) {
	cmd := &RtmCmd{
		SequenceID: 7,
		CommandID:  CmdPtzCtrl,
		DeviceID:   "dev-1",
		Param:      PtzCtrlParam{Action: PtzActionStart, Direction: PtzDirectionLeft, Speed: 3},
	}
	data, err := cmd.encode()
	require.NoError(t, err)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &got))
	require.EqualValues(t, 7, got["sequenceId"])
	require.EqualValues(t, CmdPtzCtrl, got["commandId"])
	param := got["param"].(map[string]interface{})
	require.EqualValues(t, 2, param["direction"])
	require.EqualValues(t, 3, param["speed"])
}

func TestRtmCmdEncodeOmitsEmptyParam(t *testing.T) {
	cmd := &RtmCmd{SequenceID: 1, CommandID: CmdPtzReset, DeviceID: "dev-1"}
	data, err := cmd.encode()
	require.NoError(t, err)
	require.NotContains(t, string(data), "param")
}

func TestParseRtmRespCmd(t *testing.T) {
	t.Run("media query file list", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 3, "commandId": 2002, "code": 0,
			"data": {"fileList": [
				{"id": "f1", "type": 1, "event": 2, "beginTime": 100, "endTime": 160,
				 "pic": "http://cdn/f1.jpg", "url": "http://cdn/f1.mp4"},
				{"id": "f2", "type": 1, "event": 0, "beginTime": 200, "endTime": 230}
			]}}`))
		require.NoError(t, err)
		require.Equal(t, int64(3), rsp.SequenceID)
		require.Equal(t, CmdMediaQuery, rsp.CommandID)
		require.Equal(t, XOK, rsp.ErrCode)
		require.True(t, rsp.IsResponse)
		require.Equal(t, "dev-1", rsp.DeviceID)

		want := []DevFileInfo{
			{FileID: "f1", FileType: 1, Event: 2, BeginTime: 100, EndTime: 160,
				ImgURL: "http://cdn/f1.jpg", VideoURL: "http://cdn/f1.mp4"},
			{FileID: "f2", FileType: 1, BeginTime: 200, EndTime: 230},
		}
		if diff := cmp.Diff(want, rsp.Resp.FileList); diff != "" {
			t.Errorf("file list mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("media delete error list", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 4, "commandId": 2003, "code": 0,
			"data": {"errorList": [{"id": "f1", "error": 2}]}}`))
		require.NoError(t, err)
		want := []DevFileDelErr{{FileID: "f1", Code: 2}}
		if diff := cmp.Diff(want, rsp.Resp.DelErrList); diff != "" {
			t.Errorf("error list mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("media cover data", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 5, "commandId": 2004, "code": 0,
			"data": {"data": "base64-jpeg-bytes"}}`))
		require.NoError(t, err)
		require.Equal(t, "base64-jpeg-bytes", rsp.Resp.CoverData)
	})

	t.Run("playback grant", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 6, "commandId": 2006, "code": 0,
			"data": {"cname": "pb-chnl", "token": "pb-tok", "uid": 3001, "devUid": 10}}`))
		require.NoError(t, err)
		require.NotNil(t, rsp.Resp.Play)
		want := &DevPlayGrant{ChnlName: "pb-chnl", RtcToken: "pb-tok", LocalUID: 3001, DeviceUID: 10}
		if diff := cmp.Diff(want, rsp.Resp.Play); diff != "" {
			t.Errorf("grant mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("event timeline", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 7, "commandId": 2012, "code": 0,
			"data": {"timeList": [1700000000, 1700003600]}}`))
		require.NoError(t, err)
		require.Equal(t, []int64{1700000000, 1700003600}, rsp.Resp.EventTimes)
	})

	t.Run("customize raw data", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 8, "commandId": 3001, "code": 0,
			"data": {"data": "vendor-specific"}}`))
		require.NoError(t, err)
		require.Equal(t, "vendor-specific", rsp.Resp.RawData)
	})

	t.Run("device error skips payload decode", func(t *testing.T) {
		rsp, err := parseRtmRespCmd("dev-1", []byte(`{
			"sequenceId": 9, "commandId": 2002, "code": 3}`))
		require.NoError(t, err)
		require.Equal(t, XErrMediaSysBusy, rsp.ErrCode)
		require.Empty(t, rsp.Resp.FileList)
	})

	t.Run("malformed payload rejected", func(t *testing.T) {
		_, err := parseRtmRespCmd("dev-1", []byte(`{"sequenceId": "nope"}`))
		require.Error(t, err)
	})
}

func TestMapDevRespCode(t *testing.T) {
	mediaCases := map[int]ErrCode{
		0: XOK,
		1: XErrMediaNotExist,
		2: XErrMediaInDeleting,
		3: XErrMediaSysBusy,
		4: XErrMediaSdcard,
		5: XErrMediaStopped,
		6: XErrMediaOpenFailure,
		7: XErrUnknown,
	}
	for code, want := range mediaCases {
		require.Equal(t, want, mapDevRespCode(CmdMediaQuery, code), "device code %d", code)
	}

	// outside the media command family only 0 is meaningful
	require.Equal(t, XOK, mapDevRespCode(CmdPtzCtrl, 0))
	require.Equal(t, XErrUnknown, mapDevRespCode(CmdPtzCtrl, 3))
}

func TestRtmCmdRegistry(t *testing.T) {
	t.Run("add get remove", func(t *testing.T) {
		r := NewRtmCmdRegistry()
		r.Add(&RtmCmd{SequenceID: 1, CommandID: CmdPtzCtrl, DeviceID: "dev-1"})
		r.Add(&RtmCmd{SequenceID: 2, CommandID: CmdMediaQuery, DeviceID: "dev-2"})
		require.Equal(t, 2, r.Size())

		cmd, ok := r.Get(1)
		require.True(t, ok)
		require.Equal(t, CmdPtzCtrl, cmd.CommandID)

		removed, ok := r.Remove(1)
		require.True(t, ok)
		require.Equal(t, "dev-1", removed.DeviceID)
		_, ok = r.Get(1)
		require.False(t, ok)
		_, ok = r.Remove(1)
		require.False(t, ok)
	})

	t.Run("remove by device", func(t *testing.T) {
		r := NewRtmCmdRegistry()
		r.Add(&RtmCmd{SequenceID: 1, DeviceID: "dev-1"})
		r.Add(&RtmCmd{SequenceID: 2, DeviceID: "dev-2"})
		r.Add(&RtmCmd{SequenceID: 3, DeviceID: "dev-1"})

		dropped := r.RemoveByDeviceID("dev-1")
		require.Len(t, dropped, 2)
		require.Equal(t, 1, r.Size())
	})

	t.Run("query timeout removes stale only", func(t *testing.T) {
		r := NewRtmCmdRegistry()
		r.Add(&RtmCmd{SequenceID: 1, DeviceID: "dev-1", SendTime: time.Now().Add(-time.Minute)})
		r.Add(&RtmCmd{SequenceID: 2, DeviceID: "dev-1", SendTime: time.Now()})

		stale := r.QueryTimeout(10 * time.Second)
		require.Len(t, stale, 1)
		require.Equal(t, int64(1), stale[0].SequenceID)
		require.Equal(t, 1, r.Size())
	})
}
