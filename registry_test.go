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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestConnectionRegistry(t *testing.T) {
	t.Run("add get remove", func(t *testing.T) {
		r := NewConnectionRegistry()
		ctx := &ConnectionCtx{ConnectID: uuid.New(), TraceID: 42, DeviceID: "Dev-001"}
		r.Add(ctx)

		got, ok := r.Get(ctx.ConnectID)
		require.True(t, ok)
		require.Equal(t, int64(42), got.TraceID)

		removed, ok := r.Remove(ctx.ConnectID)
		require.True(t, ok)
		require.Equal(t, "Dev-001", removed.DeviceID)
		_, ok = r.Get(ctx.ConnectID)
		require.False(t, ok)
		require.Equal(t, 0, r.Size())

		_, ok = r.Remove(ctx.ConnectID)
		require.False(t, ok)
	})

	t.Run("find by device id is case insensitive", func(t *testing.T) {
		r := NewConnectionRegistry()
		r.Add(&ConnectionCtx{ConnectID: uuid.New(), DeviceID: "Dev-001"})

		got, ok := r.FindByDeviceID("dev-001")
		require.True(t, ok)
		require.Equal(t, "Dev-001", got.DeviceID)

		_, ok = r.FindByDeviceID("dev-002")
		require.False(t, ok)
	})

	t.Run("find by trace and channel", func(t *testing.T) {
		r := NewConnectionRegistry()
		r.Add(&ConnectionCtx{ConnectID: uuid.New(), TraceID: 7, ChnlName: "chnl-7"})

		got, ok := r.FindByTraceID(7)
		require.True(t, ok)
		require.Equal(t, "chnl-7", got.ChnlName)

		got, ok = r.FindByChannelName("chnl-7")
		require.True(t, ok)
		require.Equal(t, int64(7), got.TraceID)
	})

	t.Run("update absent is a no-op", func(t *testing.T) {
		r := NewConnectionRegistry()
		r.Update(&ConnectionCtx{ConnectID: uuid.New()})
		require.Equal(t, 0, r.Size())
	})

	t.Run("mutate", func(t *testing.T) {
		r := NewConnectionRegistry()
		id := uuid.New()
		r.Add(&ConnectionCtx{ConnectID: id})

		require.True(t, r.Mutate(id, func(ctx *ConnectionCtx) {
			ctx.RtcToken = "tok"
		}))
		got, _ := r.Get(id)
		require.Equal(t, "tok", got.RtcToken)
		require.False(t, r.Mutate(uuid.New(), func(ctx *ConnectionCtx) {}))
	})

	t.Run("concurrent add remove keeps size consistent", func(t *testing.T) {
		r := NewConnectionRegistry()
		const workers, perWorker = 8, 200

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			w := w
			wg.Add(1)
			go func() {
				defer wg.Done()
				kept := 0
				for i := 0; i < perWorker; i++ {
					ctx := &ConnectionCtx{
						ConnectID: uuid.New(),
						DeviceID:  fmt.Sprintf("dev-%d-%d", w, i),
					}
					r.Add(ctx)
					if i%2 == 0 {
						r.Remove(ctx.ConnectID)
					} else {
						kept++
					}
					r.GetAll()
				}
				require.GreaterOrEqual(t, r.Size(), kept)
			}()
		}
		wg.Wait()
		require.Equal(t, workers*perWorker/2, r.Size())
	})
}

func TestSessionRegistry(t *testing.T) {
	newCtx := func(dev string, state SessionState) *SessionCtx {
		return &SessionCtx{
			SessionID:   uuid.New(),
			DeviceID:    dev,
			ChnlName:    "chnl-" + dev,
			State:       state,
			ConnectTime: time.Now(),
		}
	}

	t.Run("info snapshot", func(t *testing.T) {
		r := NewSessionRegistry()
		ctx := newCtx("dev-a", SessionStateConnecting)
		ctx.UserCount = 2
		r.Add(ctx)

		info, ok := r.Info(ctx.SessionID)
		require.True(t, ok)
		require.Equal(t, "dev-a", info.PeerDevID)
		require.Equal(t, SessionStateConnecting, info.State)
		require.Equal(t, 2, info.UserCount)
	})

	t.Run("remove returns the evicted session", func(t *testing.T) {
		r := NewSessionRegistry()
		ctx := newCtx("dev-gone", SessionStateConnected)
		r.Add(ctx)

		removed, ok := r.Remove(ctx.SessionID)
		require.True(t, ok)
		require.Equal(t, "dev-gone", removed.DeviceID)

		_, ok = r.Remove(ctx.SessionID)
		require.False(t, ok)
	})

	t.Run("query timeout only returns stale connecting sessions", func(t *testing.T) {
		r := NewSessionRegistry()

		stale := newCtx("dev-stale", SessionStateConnecting)
		stale.ConnectTime = time.Now().Add(-time.Minute)
		r.Add(stale)

		fresh := newCtx("dev-fresh", SessionStateConnecting)
		r.Add(fresh)

		connected := newCtx("dev-up", SessionStateConnected)
		connected.ConnectTime = time.Now().Add(-time.Hour)
		r.Add(connected)

		expired := r.QueryTimeout(30 * time.Second)
		require.Len(t, expired, 1)
		require.Equal(t, stale.SessionID, expired[0].SessionID)
	})

	t.Run("find by device and channel", func(t *testing.T) {
		r := NewSessionRegistry()
		ctx := newCtx("Dev-B", SessionStateConnected)
		r.Add(ctx)

		got, ok := r.FindByDeviceID("dev-b")
		require.True(t, ok)
		require.Equal(t, ctx.SessionID, got.SessionID)

		got, ok = r.FindByChannelName("chnl-Dev-B")
		require.True(t, ok)
		require.Equal(t, ctx.SessionID, got.SessionID)
	})

	t.Run("concurrent add remove keeps size consistent", func(t *testing.T) {
		r := NewSessionRegistry()
		const workers, perWorker = 8, 200

		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			w := w
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					ctx := newCtx(fmt.Sprintf("dev-%d-%d", w, i), SessionStateConnecting)
					r.Add(ctx)
					if i%2 == 0 {
						r.Remove(ctx.SessionID)
					}
					r.QueryTimeout(time.Minute)
				}
			}()
		}
		wg.Wait()
		require.Equal(t, workers*perWorker/2, r.Size())
	})
}
