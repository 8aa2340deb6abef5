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
	"log/slog"
	"sync"
)

const defaultQueueSize = 256

// workerMessage is one unit of work posted to a workerQueue. Each component
// defines its own message variants and switches on them in its handler.
type workerMessage interface{}

type workerQueueParams struct {
	Name          string
	QueueSize     int
	Logger        *slog.Logger
	HandleMessage func(msg workerMessage)
}

// workerQueue serializes component work onto a single goroutine. All state
// owned by the component is only touched from the handler, which removes the
// need for locking inside the component itself.
type workerQueue struct {
	params workerQueueParams

	lock     sync.RWMutex
	started  bool
	msgChan  chan workerMessage
	doneChan chan struct{}
}

func newWorkerQueue(params workerQueueParams) *workerQueue {
	if params.QueueSize <= 0 {
		params.QueueSize = defaultQueueSize
	}
	if params.Logger == nil {
		params.Logger = getLogger()
	}
	return &workerQueue{params: params}
}

func (q *workerQueue) Start() {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.started {
		return
	}
	q.started = true
	q.msgChan = make(chan workerMessage, q.params.QueueSize)
	q.doneChan = make(chan struct{})
	go q.worker(q.msgChan, q.doneChan)
}

// Close stops the queue and waits for the worker to drain. Messages posted
// after Close fail with ErrQueueNotStarted.
func (q *workerQueue) Close() {
	q.lock.Lock()
	if !q.started {
		q.lock.Unlock()
		return
	}
	q.started = false
	close(q.msgChan)
	done := q.doneChan
	q.lock.Unlock()

	<-done
}

func (q *workerQueue) IsStarted() bool {
	q.lock.RLock()
	defer q.lock.RUnlock()
	return q.started
}

func (q *workerQueue) Post(msg workerMessage) error {
	q.lock.RLock()
	defer q.lock.RUnlock()

	if !q.started {
		return ErrQueueNotStarted
	}
	select {
	case q.msgChan <- msg:
		return nil
	default:
		q.params.Logger.Warn("worker queue full, dropping message", "queue", q.params.Name)
		return ErrQueueFull
	}
}

func (q *workerQueue) worker(msgChan chan workerMessage, doneChan chan struct{}) {
	defer close(doneChan)
	for msg := range msgChan {
		q.params.HandleMessage(msg)
	}
}
