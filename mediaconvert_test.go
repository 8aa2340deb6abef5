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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

// fakeConvertEngine steps through totalSteps then reports EOF. failAtStep
// aborts that step instead.
type fakeConvertEngine struct {
	totalSteps int
	failAtStep int
	openCode   ErrCode
	stepDelay  time.Duration

	steps  atomic.Int32
	closes atomic.Int32
	opened atomic.Bool
}

func (f *fakeConvertEngine) Open(srcFilePath, dstFilePath string) ErrCode {
	if f.openCode != XOK {
		return f.openCode
	}
	f.opened.Store(true)
	return XOK
}

func (f *fakeConvertEngine) MediaInfo() (MediaInfo, ErrCode) {
	return MediaInfo{Duration: int64(f.totalSteps) * 1000, VideoWidth: 1920, VideoHeight: 1080, FrameRate: 25}, XOK
}

func (f *fakeConvertEngine) DoConvertStep() ConvertStepResult {
	if f.stepDelay > 0 {
		time.Sleep(f.stepDelay)
	}
	step := int(f.steps.Inc())
	if f.failAtStep > 0 && step >= f.failAtStep {
		return ConvertStepResult{Step: ConvertStepError, ErrCode: XErrConvertStep}
	}
	if step > f.totalSteps {
		return ConvertStepResult{Step: ConvertStepEOF, Progress: int64(f.totalSteps) * 1000}
	}
	return ConvertStepResult{Step: ConvertStepOK, Progress: int64(step) * 1000}
}

func (f *fakeConvertEngine) Close() {
	f.closes.Inc()
}

func TestMediaConverterRun(t *testing.T) {
	engine := &fakeConvertEngine{totalSteps: 5}
	conv := NewMediaConverter(engine)

	var progressCalls atomic.Int32
	var lastProgress, lastDuration atomic.Int64
	done := make(chan ErrCode, 1)
	require.Equal(t, XOK, conv.Start(MediaConvertParam{
		SrcFilePath: "/tmp/in.bin",
		DstFilePath: "/tmp/out.mp4",
		OnProgress: func(progress, duration int64) {
			progressCalls.Inc()
			lastProgress.Store(progress)
			lastDuration.Store(duration)
		},
		OnDone: func(errCode ErrCode) { done <- errCode },
	}))
	require.True(t, conv.IsConverting())

	select {
	case errCode := <-done:
		require.Equal(t, XOK, errCode)
	case <-time.After(2 * time.Second):
		t.Fatal("conversion did not finish")
	}
	require.False(t, conv.IsConverting())
	require.Equal(t, int32(5), progressCalls.Load())
	require.Equal(t, int64(5000), lastProgress.Load())
	require.Equal(t, int64(5000), lastDuration.Load())
	require.Equal(t, int32(1), engine.closes.Load())
}

func TestMediaConverterValidation(t *testing.T) {
	t.Run("missing paths", func(t *testing.T) {
		conv := NewMediaConverter(&fakeConvertEngine{totalSteps: 1})
		require.Equal(t, XErrInvalidParam, conv.Start(MediaConvertParam{SrcFilePath: "/tmp/in"}))
		require.Equal(t, XErrInvalidParam, conv.Start(MediaConvertParam{DstFilePath: "/tmp/out"}))
	})

	t.Run("open failure resets state", func(t *testing.T) {
		engine := &fakeConvertEngine{openCode: XErrConvertOpen}
		conv := NewMediaConverter(engine)
		require.Equal(t, XErrConvertOpen, conv.Start(MediaConvertParam{
			SrcFilePath: "/tmp/in", DstFilePath: "/tmp/out",
		}))
		require.False(t, conv.IsConverting())
	})

	t.Run("second start rejected while running", func(t *testing.T) {
		engine := &fakeConvertEngine{totalSteps: 1000, stepDelay: time.Millisecond}
		conv := NewMediaConverter(engine)
		require.Equal(t, XOK, conv.Start(MediaConvertParam{
			SrcFilePath: "/tmp/in", DstFilePath: "/tmp/out",
		}))
		defer conv.Stop()
		require.Equal(t, XErrBadState, conv.Start(MediaConvertParam{
			SrcFilePath: "/tmp/in", DstFilePath: "/tmp/out",
		}))
	})
}

func TestMediaConverterStepError(t *testing.T) {
	engine := &fakeConvertEngine{totalSteps: 10, failAtStep: 3}
	conv := NewMediaConverter(engine)

	done := make(chan ErrCode, 1)
	require.Equal(t, XOK, conv.Start(MediaConvertParam{
		SrcFilePath: "/tmp/in", DstFilePath: "/tmp/out",
		OnDone: func(errCode ErrCode) { done <- errCode },
	}))
	require.Equal(t, XErrConvertStep, <-done)
	require.False(t, conv.IsConverting())
}

func TestMediaConverterStop(t *testing.T) {
	engine := &fakeConvertEngine{totalSteps: 100000, stepDelay: time.Millisecond}
	conv := NewMediaConverter(engine)

	require.Equal(t, XOK, conv.Start(MediaConvertParam{
		SrcFilePath: "/tmp/in", DstFilePath: "/tmp/out",
	}))
	time.Sleep(20 * time.Millisecond)
	conv.Stop()
	require.False(t, conv.IsConverting())
	require.GreaterOrEqual(t, engine.closes.Load(), int32(1))

	conv.Stop() // idle, harmless
}

func TestMediaConverterPauseResume(t *testing.T) {
	engine := &fakeConvertEngine{totalSteps: 20, stepDelay: 5 * time.Millisecond}
	conv := NewMediaConverter(engine)

	done := make(chan ErrCode, 1)
	require.Equal(t, XOK, conv.Start(MediaConvertParam{
		SrcFilePath: "/tmp/in", DstFilePath: "/tmp/out",
		OnDone: func(errCode ErrCode) { done <- errCode },
	}))
	require.Equal(t, XOK, conv.Pause())
	require.Equal(t, XErrBadState, conv.Pause())
	require.True(t, conv.IsConverting())

	// paused conversions make no step progress
	stepsAtPause := engine.steps.Load()
	time.Sleep(250 * time.Millisecond)
	require.LessOrEqual(t, engine.steps.Load(), stepsAtPause+1)
	select {
	case <-done:
		t.Fatal("conversion finished while paused")
	default:
	}

	require.Equal(t, XOK, conv.Resume())
	select {
	case errCode := <-done:
		require.Equal(t, XOK, errCode)
	case <-time.After(2 * time.Second):
		t.Fatal("conversion did not resume")
	}
}
