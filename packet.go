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

// TransPacket is one signaling request or response traveling through the
// persistent link. Content holds the JSON envelope already rendered to text.
type TransPacket struct {
	Topic     string
	MessageID int
	TraceID   int64
	ConnectID uuid.UUID
	Content   string
}

// packetQueue is a FIFO of pending transport packets, safe for concurrent use.
type packetQueue struct {
	lock    sync.Mutex
	packets []*TransPacket
}

func newPacketQueue() *packetQueue {
	return &packetQueue{}
}

func (q *packetQueue) Enqueue(pkt *TransPacket) {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.packets = append(q.packets, pkt)
}

func (q *packetQueue) Dequeue() *TransPacket {
	q.lock.Lock()
	defer q.lock.Unlock()
	if len(q.packets) == 0 {
		return nil
	}
	pkt := q.packets[0]
	q.packets = q.packets[1:]
	return pkt
}

// RemoveByConnectID removes the first queued packet belonging to the
// connection, returning it or nil when none is queued.
func (q *packetQueue) RemoveByConnectID(connectID uuid.UUID) *TransPacket {
	q.lock.Lock()
	defer q.lock.Unlock()
	for i, pkt := range q.packets {
		if pkt.ConnectID == connectID {
			q.packets = append(q.packets[:i], q.packets[i+1:]...)
			return pkt
		}
	}
	return nil
}

func (q *packetQueue) Clear() {
	q.lock.Lock()
	defer q.lock.Unlock()
	q.packets = nil
}

func (q *packetQueue) Size() int {
	q.lock.Lock()
	defer q.lock.Unlock()
	return len(q.packets)
}
