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
	"time"

	"go.uber.org/atomic"
)

// MediaInfo describes the source stream of a conversion.
type MediaInfo struct {
	Duration    int64 // milliseconds
	VideoWidth  int
	VideoHeight int
	FrameRate   int
}

// ConvertStep is the outcome of one conversion step.
type ConvertStep int

const (
	ConvertStepOK ConvertStep = iota
	ConvertStepEOF
	ConvertStepError
)

// ConvertStepResult carries one step outcome plus the progress position.
type ConvertStepResult struct {
	Step     ConvertStep
	Progress int64 // milliseconds converted so far
	ErrCode  ErrCode
}

// MediaConvertEngine is the codec collaborator turning downloaded device
// media into a local playable file. Implementations wrap a native converter
// and are driven one step at a time. Close must tolerate repeated calls.
type MediaConvertEngine interface {
	Open(srcFilePath, dstFilePath string) ErrCode
	MediaInfo() (MediaInfo, ErrCode)
	DoConvertStep() ConvertStepResult
	Close()
}

// MediaConvertParam configures one conversion run.
type MediaConvertParam struct {
	SrcFilePath string
	DstFilePath string

	OnProgress func(progress, duration int64)
	OnDone     func(errCode ErrCode)
}

type convertState int32

const (
	convertStateIdle convertState = iota
	convertStateRunning
	convertStatePaused
)

const convertPausePoll = 100 * time.Millisecond

type convMsgStep struct{}

// MediaConverter converts one media file at a time on its own worker,
// stepping the engine so Pause, Resume and Stop stay responsive.
type MediaConverter struct {
	engine MediaConvertEngine
	queue  *workerQueue
	state  atomic.Int32

	// worker-owned
	param    MediaConvertParam
	duration int64
}

func NewMediaConverter(engine MediaConvertEngine) *MediaConverter {
	c := &MediaConverter{engine: engine}
	c.queue = newWorkerQueue(workerQueueParams{
		Name:          "mediaconvert",
		HandleMessage: c.handleMessage,
	})
	return c
}

// Start opens the source and begins converting. Only one conversion may run
// at a time.
func (c *MediaConverter) Start(param MediaConvertParam) ErrCode {
	if param.SrcFilePath == "" || param.DstFilePath == "" {
		return XErrInvalidParam
	}
	if !c.state.CompareAndSwap(int32(convertStateIdle), int32(convertStateRunning)) {
		return XErrBadState
	}
	if errCode := c.engine.Open(param.SrcFilePath, param.DstFilePath); errCode != XOK {
		c.state.Store(int32(convertStateIdle))
		return XErrConvertOpen
	}

	c.param = param
	info, errCode := c.engine.MediaInfo()
	if errCode == XOK {
		c.duration = info.Duration
	} else {
		c.duration = 0
	}

	c.queue.Start()
	c.queue.Post(convMsgStep{}) //nolint:errcheck
	return XOK
}

func (c *MediaConverter) Pause() ErrCode {
	if !c.state.CompareAndSwap(int32(convertStateRunning), int32(convertStatePaused)) {
		return XErrBadState
	}
	return XOK
}

func (c *MediaConverter) Resume() ErrCode {
	if !c.state.CompareAndSwap(int32(convertStatePaused), int32(convertStateRunning)) {
		return XErrBadState
	}
	return XOK
}

// Stop aborts the conversion and closes the engine. Stopping an idle
// converter is harmless.
func (c *MediaConverter) Stop() {
	if convertState(c.state.Load()) == convertStateIdle {
		return
	}
	c.state.Store(int32(convertStateIdle))
	c.queue.Close()
	c.engine.Close()
}

func (c *MediaConverter) IsConverting() bool {
	return convertState(c.state.Load()) != convertStateIdle
}

func (c *MediaConverter) handleMessage(msg workerMessage) {
	switch msg.(type) {
	case convMsgStep:
		c.onMessageStep()
	}
}

func (c *MediaConverter) onMessageStep() {
	switch convertState(c.state.Load()) {
	case convertStateIdle:
		return
	case convertStatePaused:
		// poll until resumed or stopped
		time.AfterFunc(convertPausePoll, func() {
			c.queue.Post(convMsgStep{}) //nolint:errcheck
		})
		return
	}

	res := c.engine.DoConvertStep()
	switch res.Step {
	case ConvertStepOK:
		if c.param.OnProgress != nil {
			c.param.OnProgress(res.Progress, c.duration)
		}
		c.queue.Post(convMsgStep{}) //nolint:errcheck

	case ConvertStepEOF:
		c.finish(XOK)

	case ConvertStepError:
		errCode := res.ErrCode
		if errCode == XOK {
			errCode = XErrConvertStep
		}
		getLogger().Warn("media convert step failed", "errCode", errCode)
		c.finish(errCode)
	}
}

// finish runs on the worker; the queue is closed from a helper goroutine
// since Close waits for the worker to drain.
func (c *MediaConverter) finish(errCode ErrCode) {
	c.state.Store(int32(convertStateIdle))
	c.engine.Close()
	done := c.param.OnDone
	go func() {
		c.queue.Close()
		if done != nil {
			done(errCode)
		}
	}()
}
