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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWorkerQueue(t *testing.T) {
	defer goleak.VerifyNone(t)

	t.Run("post before start fails", func(t *testing.T) {
		q := newWorkerQueue(workerQueueParams{
			Name:          "test",
			HandleMessage: func(msg workerMessage) {},
		})
		require.ErrorIs(t, q.Post(1), ErrQueueNotStarted)
	})

	t.Run("messages are handled in order", func(t *testing.T) {
		var handled []int
		q := newWorkerQueue(workerQueueParams{
			Name: "test",
			HandleMessage: func(msg workerMessage) {
				handled = append(handled, msg.(int))
			},
		})
		q.Start()
		for i := 0; i < 100; i++ {
			require.NoError(t, q.Post(i))
		}
		q.Close()

		require.Len(t, handled, 100)
		for i, v := range handled {
			require.Equal(t, i, v)
		}
	})

	t.Run("close drains pending messages", func(t *testing.T) {
		var mu sync.Mutex
		count := 0
		q := newWorkerQueue(workerQueueParams{
			Name: "test",
			HandleMessage: func(msg workerMessage) {
				mu.Lock()
				count++
				mu.Unlock()
			},
		})
		q.Start()
		for i := 0; i < 50; i++ {
			require.NoError(t, q.Post(i))
		}
		q.Close()
		require.Equal(t, 50, count)
		require.ErrorIs(t, q.Post(1), ErrQueueNotStarted)
	})

	t.Run("full queue rejects", func(t *testing.T) {
		release := make(chan struct{})
		q := newWorkerQueue(workerQueueParams{
			Name:      "test",
			QueueSize: 2,
			HandleMessage: func(msg workerMessage) {
				<-release
			},
		})
		q.Start()
		// capacity two plus at most one in the handler
		var full bool
		for i := 0; i < 10; i++ {
			if q.Post(i) == ErrQueueFull {
				full = true
				break
			}
		}
		require.True(t, full)
		close(release)
		q.Close()
	})

	t.Run("restart after close", func(t *testing.T) {
		q := newWorkerQueue(workerQueueParams{
			Name:          "test",
			HandleMessage: func(msg workerMessage) {},
		})
		q.Start()
		q.Close()
		q.Start()
		require.NoError(t, q.Post(1))
		q.Close()
	})
}
