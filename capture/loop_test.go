// ati-eye - detect and record objects seen by a camera
//  Copyright (C) 2026, The Cacophony Project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package capture

import (
	"bytes"
	"context"
	"errors"
	"image"
	"io"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/ati-eye/frame"
)

// testSource returns count images of the given size, then io.EOF. Calls
// listed in failFrom onwards return an error instead.
type testSource struct {
	mu       sync.Mutex
	size     image.Point
	count    int
	failFrom int
	failErr  error
	delay    time.Duration
	block    chan struct{}
	calls    int
	closed   int
}

func (s *testSource) Acquire() (image.Image, error) {
	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.block != nil {
		<-s.block
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.failFrom > 0 && call >= s.failFrom {
		return nil, s.failErr
	}
	if s.count > 0 && call > s.count {
		return nil, io.EOF
	}
	return image.NewRGBA(image.Rectangle{Max: s.size}), nil
}

func (s *testSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *testSource) Closes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *testSource) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func testConfig(fps float64) *Config {
	conf := DefaultConfig()
	conf.Resolution = []int{32, 24}
	conf.FPS = fps
	conf.AcquireTimeout = 0
	return &conf
}

func captureLogs() (*bytes.Buffer, func()) {
	var logs syncBuffer
	log.SetOutput(&logs)
	log.SetFlags(0)
	return &logs.buf, func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.LstdFlags)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func waitDone(t *testing.T, loop *Loop) {
	select {
	case <-loop.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("capture loop didn't finish")
	}
}

func TestPublishesUntilEndOfStream(t *testing.T) {
	source := &testSource{size: image.Pt(32, 24), count: 3}
	slot := frame.NewSlot()
	loop := NewLoop(testConfig(1000), source, slot)

	var seqs []uint64
	loop.OnFrame = func(f *frame.Frame) {
		seqs = append(seqs, f.Seq)
		assert.Equal(t, image.Pt(32, 24), f.Size())
		assert.False(t, f.Timestamp.IsZero())
	}
	loop.Start(context.Background())
	waitDone(t, loop)

	assert.Equal(t, ErrEndOfStream, loop.Err())
	assert.NoError(t, loop.Wait())
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
	assert.Equal(t, 1, source.closed)

	f, ok := slot.TryConsume()
	require.True(t, ok)
	assert.Equal(t, uint64(3), f.Seq)
	assert.Equal(t, uint64(2), slot.Stats().Dropped)
}

func TestResizesToOutputResolution(t *testing.T) {
	source := &testSource{size: image.Pt(32, 24), count: 1}
	conf := testConfig(1000)
	conf.OutputResolution = []int{16, 12}
	slot := frame.NewSlot()
	loop := NewLoop(conf, source, slot)
	loop.Start(context.Background())
	waitDone(t, loop)

	f, ok := slot.TryConsume()
	require.True(t, ok)
	assert.Equal(t, image.Pt(16, 12), f.Size())
}

func TestPacesToFrameRate(t *testing.T) {
	source := &testSource{size: image.Pt(32, 24), count: 5}
	loop := NewLoop(testConfig(50), source, frame.NewSlot())

	start := time.Now()
	loop.Start(context.Background())
	waitDone(t, loop)

	// Each of the five frames is followed by a 20ms wait.
	assert.True(t, time.Since(start) >= 90*time.Millisecond, "took %s", time.Since(start))
	assert.Equal(t, 6, source.Calls())
}

func TestSlowSourceIsNotPaced(t *testing.T) {
	// Each acquisition takes longer than the 20ms frame period.
	source := &testSource{size: image.Pt(32, 24), count: 5, delay: 30 * time.Millisecond}
	loop := NewLoop(testConfig(50), source, frame.NewSlot())

	var stamps []time.Time
	loop.OnFrame = func(f *frame.Frame) {
		stamps = append(stamps, f.Timestamp)
	}
	start := time.Now()
	loop.Start(context.Background())
	waitDone(t, loop)
	elapsed := time.Since(start)

	// Six calls (five frames then EOF) at 30ms each, with no added sleeps.
	assert.True(t, elapsed >= 180*time.Millisecond, "took %s", elapsed)
	assert.True(t, elapsed < 400*time.Millisecond, "took %s", elapsed)
	require.Len(t, stamps, 5)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.True(t, gap >= 25*time.Millisecond, "frames %d and %d only %s apart", i, i+1, gap)
	}
}

func TestFatalAfterRetries(t *testing.T) {
	cause := errors.New("no data")
	source := &testSource{size: image.Pt(32, 24), count: 5, failFrom: 2, failErr: cause}
	conf := testConfig(1000)
	conf.AcquireRetries = 2
	loop := NewLoop(conf, source, frame.NewSlot())
	loop.Start(context.Background())
	waitDone(t, loop)

	var acqErr *AcquisitionError
	require.True(t, errors.As(loop.Err(), &acqErr))
	assert.Equal(t, uint64(2), acqErr.Seq)
	assert.Equal(t, 3, acqErr.Attempts)
	assert.True(t, errors.Is(loop.Err(), cause))
	assert.Equal(t, 4, source.Calls())
	assert.Equal(t, 1, source.closed)
}

func TestRetryRecovers(t *testing.T) {
	source := &flakySource{failures: 1}
	conf := testConfig(1000)
	conf.AcquireRetries = 1
	slot := frame.NewSlot()
	loop := NewLoop(conf, source, slot)
	ctx, cancel := context.WithCancel(context.Background())
	loop.OnFrame = func(*frame.Frame) { cancel() }
	loop.Start(ctx)
	waitDone(t, loop)

	assert.NoError(t, loop.Err())
	f, ok := slot.TryConsume()
	require.True(t, ok)
	assert.Equal(t, uint64(1), f.Seq)
}

type flakySource struct {
	failures int
}

func (s *flakySource) Acquire() (image.Image, error) {
	if s.failures > 0 {
		s.failures--
		return nil, errors.New("glitch")
	}
	return image.NewRGBA(image.Rect(0, 0, 32, 24)), nil
}

func (s *flakySource) Close() error { return nil }

func TestNilImageIsFailure(t *testing.T) {
	loop := NewLoop(testConfig(1000), nilSource{}, frame.NewSlot())
	loop.Start(context.Background())
	waitDone(t, loop)

	var acqErr *AcquisitionError
	require.True(t, errors.As(loop.Err(), &acqErr))
	assert.Equal(t, errNoData, acqErr.Cause)
}

type nilSource struct{}

func (nilSource) Acquire() (image.Image, error) { return nil, nil }
func (nilSource) Close() error                  { return nil }

func TestAcquireTimeout(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	source := &testSource{size: image.Pt(32, 24), block: block}
	conf := testConfig(10)
	conf.AcquireTimeout = 20 * time.Millisecond
	loop := NewLoop(conf, source, frame.NewSlot())
	loop.stallGrace = 20 * time.Millisecond
	loop.Start(context.Background())
	waitDone(t, loop)

	assert.True(t, errors.Is(loop.Err(), ErrAcquireTimeout))
	assert.Equal(t, 1, source.Calls())
	// The stuck Acquire never returned so the source must stay open.
	assert.Equal(t, errSourceBusy, loop.Wait())
	assert.Equal(t, 0, source.Closes())
}

// stallingSource blocks in Acquire until release is closed and records
// whether Close was called while an Acquire was running.
type stallingSource struct {
	mu               sync.Mutex
	release          chan struct{}
	acquiring        bool
	closed           int
	closedDuringCall bool
}

func (s *stallingSource) Acquire() (image.Image, error) {
	s.mu.Lock()
	s.acquiring = true
	s.mu.Unlock()

	<-s.release

	s.mu.Lock()
	s.acquiring = false
	s.mu.Unlock()
	return image.NewRGBA(image.Rect(0, 0, 32, 24)), nil
}

func (s *stallingSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	if s.acquiring {
		s.closedDuringCall = true
	}
	return nil
}

func TestClosesAfterTimedOutAcquireReturns(t *testing.T) {
	source := &stallingSource{release: make(chan struct{})}
	conf := testConfig(10)
	conf.AcquireTimeout = 20 * time.Millisecond
	loop := NewLoop(conf, source, frame.NewSlot())
	loop.stallGrace = 5 * time.Second
	loop.Start(context.Background())

	// Let the stuck call finish well after the timeout fired.
	time.AfterFunc(100*time.Millisecond, func() { close(source.release) })
	waitDone(t, loop)

	assert.True(t, errors.Is(loop.Err(), ErrAcquireTimeout))
	assert.NoError(t, loop.Wait())
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 1, source.closed)
	assert.False(t, source.closedDuringCall)
}

func TestLeavesSourceOpenWhileAcquireStuck(t *testing.T) {
	source := &stallingSource{release: make(chan struct{})}
	defer close(source.release)
	conf := testConfig(10)
	conf.AcquireTimeout = 20 * time.Millisecond
	loop := NewLoop(conf, source, frame.NewSlot())
	loop.stallGrace = 30 * time.Millisecond

	logs, restore := captureLogs()
	defer restore()
	loop.Start(context.Background())
	waitDone(t, loop)

	assert.Equal(t, errSourceBusy, loop.Wait())
	assert.Contains(t, logs.String(), "frame source still busy after 30ms, leaving it open\n")
	source.mu.Lock()
	defer source.mu.Unlock()
	assert.Equal(t, 0, source.closed)
	assert.False(t, source.closedDuringCall)
}

func TestCancelStopsPromptly(t *testing.T) {
	source := &testSource{size: image.Pt(32, 24)}
	loop := NewLoop(testConfig(10), source, frame.NewSlot())
	ctx, cancel := context.WithCancel(context.Background())
	loop.OnFrame = func(*frame.Frame) { cancel() }

	start := time.Now()
	loop.Start(ctx)
	waitDone(t, loop)

	assert.NoError(t, loop.Err())
	assert.True(t, time.Since(start) < 100*time.Millisecond)
	assert.Equal(t, 1, source.closed)
}

func TestConfigValidate(t *testing.T) {
	conf := DefaultConfig()
	assert.NoError(t, conf.Validate())

	conf.Resolution = []int{640}
	assert.EqualError(t, conf.Validate(), "camera_resolution should be [width, height]")

	conf = DefaultConfig()
	conf.OutputResolution = []int{0, 480}
	assert.EqualError(t, conf.Validate(), "camera_output_resolution should have a positive width and height")

	conf = DefaultConfig()
	conf.FPS = 0
	assert.EqualError(t, conf.Validate(), "camera_fps should be greater than 0")

	conf = DefaultConfig()
	conf.AcquireRetries = -1
	assert.EqualError(t, conf.Validate(), "camera_acquire_retries should not be negative")
}

func TestConfigDerived(t *testing.T) {
	conf := DefaultConfig()
	assert.Equal(t, image.Pt(1920, 1080), conf.OutputSize())
	assert.Equal(t, 100*time.Millisecond, conf.Period())

	conf.OutputResolution = []int{640, 480}
	assert.Equal(t, image.Pt(640, 480), conf.OutputSize())

	h, v := conf.AnglePerPixel()
	assert.InDelta(t, 62.2/1920, h, 1e-9)
	assert.InDelta(t, 48.8/1080, v, 1e-9)
}
