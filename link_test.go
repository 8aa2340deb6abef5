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
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// testSignalServer fakes the signaling endpoints behind one httptest server.
type testSignalServer struct {
	srv *httptest.Server

	mu             sync.Mutex
	activateFail   bool
	connectDelay   time.Duration
	connectCount   int
	nextChnlSuffix int
}

func newTestSignalServer(t *testing.T) *testSignalServer {
	s := &testSignalServer{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case pathNodeActivate:
			s.mu.Lock()
			fail := s.activateFail
			s.mu.Unlock()
			if fail {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.Write([]byte(`{"code":0,"data":{
				"nodeId":"node-1","nodeRegion":"eu","nodeToken":"ntok",
				"rtmServer":"wss://gw/rtm","rtmUsername":"gw-user"}}`))
		case "/connect":
			s.mu.Lock()
			delay := s.connectDelay
			s.connectCount++
			s.nextChnlSuffix++
			n := s.nextChnlSuffix
			s.mu.Unlock()
			if delay > 0 {
				time.Sleep(delay)
			}
			var env requestEnvelope
			json.NewDecoder(r.Body).Decode(&env)
			fmt.Fprintf(w, `{"code":0,"data":{
				"cname":"chnl-%d","uid":1001,"token":"rtc-tok-%d",
				"rtmUid":"ruid","rtmToken":"rtm-tok-%d","userId":"user-1"}}`, n, n, n)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(s.srv.Close)
	return s
}

func newTestLink(t *testing.T, s *testSignalServer) *PersistentLink {
	link := NewPersistentLink(LinkInitParam{
		AppID:            "app-1",
		MasterServerURL:  s.srv.URL,
		SlaveServerURL:   s.srv.URL,
		ConnectDeviceURL: s.srv.URL + "/connect",
		BasicAuthKey:     "key",
		BasicAuthSecret:  "secret",
	})
	t.Cleanup(link.Release)
	return link
}

func prepareTestLink(t *testing.T, link *PersistentLink) {
	require.Equal(t, XOK, link.Initialize())
	done := make(chan ErrCode, 1)
	require.Equal(t, XOK, link.Prepare(PrepareParam{AppID: "app-1", UserID: "user-1"},
		func(param PrepareParam, errCode ErrCode) {
			done <- errCode
		}))
	select {
	case errCode := <-done:
		require.Equal(t, XOK, errCode)
	case <-time.After(2 * time.Second):
		t.Fatal("prepare did not complete")
	}
	require.Equal(t, LinkStateRunning, link.State())
}

func TestLinkLifecycle(t *testing.T) {
	s := newTestSignalServer(t)

	t.Run("initialize is not reentrant", func(t *testing.T) {
		link := newTestLink(t, s)
		require.Equal(t, XOK, link.Initialize())
		require.Equal(t, XErrBadState, link.Initialize())
		require.Equal(t, LinkStateInitialized, link.State())
	})

	t.Run("prepare before initialize fails", func(t *testing.T) {
		link := newTestLink(t, s)
		errCode := link.Prepare(PrepareParam{UserID: "user-1"}, nil)
		require.Equal(t, XErrBadState, errCode)
	})

	t.Run("prepare reaches running and exposes the node", func(t *testing.T) {
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		nodeID, region, token, ready := link.LocalNode()
		require.True(t, ready)
		require.Equal(t, "node-1", nodeID)
		require.Equal(t, "eu", region)
		require.Equal(t, "ntok", token)
		require.Equal(t, "user-1", link.LocalUserID())

		server, username := link.RtmAccessPoint()
		require.Equal(t, "wss://gw/rtm", server)
		require.Equal(t, "gw-user", username)
	})

	t.Run("prepare failure returns to initialized", func(t *testing.T) {
		s2 := newTestSignalServer(t)
		s2.activateFail = true
		link := newTestLink(t, s2)
		require.Equal(t, XOK, link.Initialize())

		done := make(chan ErrCode, 1)
		require.Equal(t, XOK, link.Prepare(PrepareParam{UserID: "user-1"},
			func(param PrepareParam, errCode ErrCode) {
				done <- errCode
			}))
		select {
		case errCode := <-done:
			require.Equal(t, XErrHttpRespCode, errCode)
		case <-time.After(2 * time.Second):
			t.Fatal("prepare did not complete")
		}
		require.Equal(t, LinkStateInitialized, link.State())
		_, _, _, ready := link.LocalNode()
		require.False(t, ready)
	})

	t.Run("unprepare on initialized is a no-op", func(t *testing.T) {
		link := newTestLink(t, s)
		require.Equal(t, XOK, link.Initialize())
		require.Equal(t, XOK, link.Unprepare())
		require.Equal(t, LinkStateInitialized, link.State())
	})

	t.Run("unprepare drops the node identity", func(t *testing.T) {
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		require.Equal(t, XOK, link.Unprepare())
		require.Equal(t, LinkStateInitialized, link.State())
		_, _, _, ready := link.LocalNode()
		require.False(t, ready)
		require.Equal(t, "", link.LocalUserID())
	})
}

func TestLinkDevReqConnect(t *testing.T) {
	t.Run("grant delivered to listener", func(t *testing.T) {
		s := newTestSignalServer(t)
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		type grant struct {
			errCode  ErrCode
			chnlName string
			localUID uint32
			rtcToken string
			rtmToken string
		}
		granted := make(chan grant, 1)
		res := link.DevReqConnect("dev-1", "hello",
			func(errCode ErrCode, connectID uuid.UUID, deviceID string,
				localRtcUID uint32, chnlName, rtcToken, rtmToken string) {
				granted <- grant{errCode, chnlName, localRtcUID, rtcToken, rtmToken}
			})
		require.Equal(t, XOK, res.ErrCode)
		require.NotEqual(t, uuid.Nil, res.ConnectID)

		select {
		case g := <-granted:
			require.Equal(t, XOK, g.errCode)
			require.Equal(t, "chnl-1", g.chnlName)
			require.Equal(t, uint32(1001), g.localUID)
			require.Equal(t, "rtc-tok-1", g.rtcToken)
			require.Equal(t, "rtm-tok-1", g.rtmToken)
		case <-time.After(2 * time.Second):
			t.Fatal("connect listener not invoked")
		}

		got, ok := link.connections.Get(res.ConnectID)
		require.True(t, ok)
		require.Equal(t, "chnl-1", got.ChnlName)
	})

	t.Run("rejected before prepare", func(t *testing.T) {
		s := newTestSignalServer(t)
		link := newTestLink(t, s)
		require.Equal(t, XOK, link.Initialize())
		res := link.DevReqConnect("dev-1", "", nil)
		require.Equal(t, XErrSdkNotReady, res.ErrCode)
	})

	t.Run("duplicate device rejected while in flight", func(t *testing.T) {
		s := newTestSignalServer(t)
		s.connectDelay = 100 * time.Millisecond
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		res := link.DevReqConnect("dev-1", "", nil)
		require.Equal(t, XOK, res.ErrCode)

		dup := link.DevReqConnect("dev-1", "", nil)
		require.Equal(t, XErrSdkNotReady, dup.ErrCode)
		require.Equal(t, 1, link.connections.Size())
	})

	t.Run("disconnect is idempotent", func(t *testing.T) {
		s := newTestSignalServer(t)
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		res := link.DevReqConnect("dev-1", "", nil)
		require.Equal(t, XOK, res.ErrCode)
		require.Equal(t, XOK, link.DevReqDisconnect(res.ConnectID))
		require.Equal(t, XOK, link.DevReqDisconnect(res.ConnectID))
		require.Equal(t, XOK, link.DevReqDisconnect(uuid.New()))
		require.Equal(t, 0, link.connections.Size())
	})

	t.Run("renew token switches the completion path", func(t *testing.T) {
		s := newTestSignalServer(t)
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		granted := make(chan ErrCode, 1)
		res := link.DevReqConnect("dev-1", "",
			func(errCode ErrCode, connectID uuid.UUID, deviceID string,
				localRtcUID uint32, chnlName, rtcToken, rtmToken string) {
				granted <- errCode
			})
		require.Equal(t, XOK, res.ErrCode)
		require.Equal(t, XOK, <-granted)

		renewed := make(chan string, 1)
		errCode := link.DevReqRenewToken(res.ConnectID,
			func(errCode ErrCode, connectID uuid.UUID, rtcToken, rtmToken string) {
				require.Equal(t, XOK, errCode)
				renewed <- rtcToken
			})
		require.Equal(t, XOK, errCode)
		select {
		case tok := <-renewed:
			require.Equal(t, "rtc-tok-2", tok)
		case <-time.After(2 * time.Second):
			t.Fatal("renew listener not invoked")
		}

		require.Equal(t, XErrInvalidParam, link.DevReqRenewToken(uuid.New(), nil))
	})
}

func TestLinkUnprepareBounded(t *testing.T) {
	s := newTestSignalServer(t)
	s.connectDelay = 2 * time.Second // wedge the worker in a slow request
	link := newTestLink(t, s)
	prepareTestLink(t, link)
	link.unprepareTimeout = 200 * time.Millisecond

	res := link.DevReqConnect("dev-1", "", nil)
	require.Equal(t, XOK, res.ErrCode)
	time.Sleep(50 * time.Millisecond) // let the worker enter the request

	start := time.Now()
	require.Equal(t, XOK, link.Unprepare())
	elapsed := time.Since(start)
	require.Less(t, elapsed, time.Second, "unprepare must not wait for the wedged worker")
	require.Equal(t, LinkStateInitialized, link.State())
}

func TestLinkIncomingCall(t *testing.T) {
	s := newTestSignalServer(t)
	link := newTestLink(t, s)

	incoming := make(chan string, 1)
	link.OnIncomingCall = func(traceID int64, deviceID, attachMsg, chnlName, rtcToken string) {
		incoming <- deviceID + "/" + chnlName
	}
	prepareTestLink(t, link)

	content := `{"header":{"traceId":"55","method":"device-start-call"},
		"payload":{"callerId":"dev-9","attachMsg":"ring","cname":"chnl-9","token":"tok-9"}}`
	require.Equal(t, XOK, link.DeliverPacket(&TransPacket{TraceID: 55, Content: content}))

	select {
	case got := <-incoming:
		require.Equal(t, "dev-9/chnl-9", got)
	case <-time.After(2 * time.Second):
		t.Fatal("incoming call not delivered")
	}
}

func TestLinkMessageTopics(t *testing.T) {
	t.Run("topics derived from the node id", func(t *testing.T) {
		s := newTestSignalServer(t)
		link := newTestLink(t, s)

		pub, sub := link.MessageTopics()
		require.Equal(t, "", pub)
		require.Equal(t, "", sub)

		prepareTestLink(t, link)
		pub, sub = link.MessageTopics()
		require.Equal(t, "$falcon/callkit/node-1/pub", pub)
		require.Equal(t, "$falcon/callkit/node-1/sub", sub)

		require.Equal(t, XOK, link.Unprepare())
		pub, sub = link.MessageTopics()
		require.Equal(t, "", pub)
		require.Equal(t, "", sub)
	})

	t.Run("outbound packets carry the publish topic", func(t *testing.T) {
		s := newTestSignalServer(t)
		s.connectDelay = 200 * time.Millisecond // keep the packet queued
		link := newTestLink(t, s)
		prepareTestLink(t, link)

		first := link.DevReqConnect("dev-1", "", nil)
		require.Equal(t, XOK, first.ErrCode)
		second := link.DevReqConnect("dev-2", "", nil)
		require.Equal(t, XOK, second.ErrCode)

		seen := 0
		for pkt := link.sendQueue.Dequeue(); pkt != nil; pkt = link.sendQueue.Dequeue() {
			require.Equal(t, "$falcon/callkit/node-1/pub", pkt.Topic)
			seen++
		}
		require.GreaterOrEqual(t, seen, 1, "expected at least one queued packet")
	})

	t.Run("packets from a foreign topic are dropped", func(t *testing.T) {
		s := newTestSignalServer(t)
		link := newTestLink(t, s)

		incoming := make(chan string, 2)
		link.OnIncomingCall = func(traceID int64, deviceID, attachMsg, chnlName, rtcToken string) {
			incoming <- deviceID
		}
		prepareTestLink(t, link)

		content := `{"header":{"method":"device-start-call"},"payload":{"callerId":"dev-9"}}`
		require.Equal(t, XOK, link.DeliverPacket(&TransPacket{
			Topic: "$falcon/callkit/node-other/sub", Content: content,
		}))
		require.Equal(t, XOK, link.DeliverPacket(&TransPacket{
			Topic: "$falcon/callkit/node-1/sub", Content: content,
		}))

		select {
		case got := <-incoming:
			require.Equal(t, "dev-9", got)
		case <-time.After(2 * time.Second):
			t.Fatal("matching topic packet not delivered")
		}
		select {
		case <-incoming:
			t.Fatal("foreign topic packet must be dropped")
		case <-time.After(100 * time.Millisecond):
		}
	})
}
