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
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"
	"time"

	"github.com/TheCacophonyProject/ati-eye/frame"
)

// Source produces images from a camera or a video file. Acquire returns
// io.EOF when a finite source has no more images.
type Source interface {
	Acquire() (image.Image, error)
	Close() error
}

var (
	ErrEndOfStream    = errors.New("end of stream")
	ErrAcquireTimeout = errors.New("timed out acquiring frame")
	errNoData         = errors.New("camera returned no data")
	errSourceBusy     = errors.New("frame source still busy, not closed")
)

// stallGrace is how long the loop waits for a timed out Acquire to return
// before it gives up on closing the source.
const stallGrace = 2 * time.Second

// AcquisitionError is returned when the source can't produce a frame.
type AcquisitionError struct {
	Seq      uint64
	Attempts int
	Cause    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquiring frame %d failed after %d attempt(s): %v", e.Seq, e.Attempts, e.Cause)
}

func (e *AcquisitionError) Unwrap() error {
	return e.Cause
}

func NewLoop(conf *Config, source Source, slot *frame.Slot) *Loop {
	return &Loop{
		conf:       conf,
		source:     source,
		slot:       slot,
		outSize:    conf.OutputSize(),
		nowFunc:    time.Now,
		stallGrace: stallGrace,
		done:       make(chan struct{}),
	}
}

// Loop reads frames from a Source at the configured frame rate and
// publishes each one to a frame.Slot. It never waits for the consumer.
type Loop struct {
	// OnFrame, if set, is called from the loop goroutine after each publish.
	OnFrame func(*frame.Frame)

	conf    *Config
	source  Source
	slot    *frame.Slot
	outSize image.Point
	nowFunc func() time.Time
	seq     uint64

	// stalled receives the result of an Acquire that timed out.
	stalled    <-chan acquireResult
	stallGrace time.Duration

	startOnce sync.Once
	done      chan struct{}
	err       error
	closeErr  error
}

// Start runs the loop in a new goroutine until ctx is cancelled or the
// source fails.
func (l *Loop) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		go func() {
			defer close(l.done)
			l.err = l.run(ctx)
			l.closeErr = l.closeSource()
			log.Print("capture loop stopped")
		}()
	})
}

// Done is closed once the loop has exited and the source is closed.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Err returns why the loop ended: nil when it was cancelled,
// ErrEndOfStream or an *AcquisitionError. Only valid after Done.
func (l *Loop) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}

// Wait blocks until the loop has exited and returns any error from
// closing the source. The source is left open when an Acquire call that
// timed out never returned.
func (l *Loop) Wait() error {
	<-l.done
	return l.closeErr
}

// closeSource closes the source once no Acquire call is using it. A call
// still stuck after stallGrace keeps the source open.
func (l *Loop) closeSource() error {
	if l.stalled != nil {
		timer := time.NewTimer(l.stallGrace)
		defer timer.Stop()
		select {
		case <-l.stalled:
		case <-timer.C:
			log.Printf("frame source still busy after %s, leaving it open", l.stallGrace)
			return errSourceBusy
		}
	}
	if err := l.source.Close(); err != nil {
		log.Printf("error closing frame source: %v", err)
		return err
	}
	return nil
}

type acquireResult struct {
	img image.Image
	err error
}

func (l *Loop) run(ctx context.Context) error {
	period := l.conf.Period()
	log.Printf("starting capture %dx%d @ %g fps", l.outSize.X, l.outSize.Y, l.conf.FPS)

	for {
		if ctx.Err() != nil {
			return nil
		}
		start := l.nowFunc()

		img, err := l.acquire(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		img = frame.Resize(img, l.outSize)

		l.seq++
		f := &frame.Frame{
			Image:     img,
			Seq:       l.seq,
			Timestamp: l.nowFunc(),
		}
		l.slot.Publish(f)
		if l.OnFrame != nil {
			l.OnFrame(f)
		}

		wait := period - l.nowFunc().Sub(start)
		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (l *Loop) acquire(ctx context.Context) (image.Image, error) {
	attempts := l.conf.AcquireRetries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		img, err := l.acquireWithTimeout()
		switch {
		case err == nil && img != nil:
			return img, nil
		case errors.Is(err, io.EOF):
			return nil, ErrEndOfStream
		case errors.Is(err, ErrAcquireTimeout):
			// The stalled call still owns the device so don't retry.
			return nil, &AcquisitionError{Seq: l.seq + 1, Attempts: attempt, Cause: err}
		case err == nil:
			err = errNoData
		}
		log.Printf("frame %d: acquisition attempt %d/%d failed: %v", l.seq+1, attempt, attempts, err)
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &AcquisitionError{Seq: l.seq + 1, Attempts: attempts, Cause: lastErr}
}

func (l *Loop) acquireWithTimeout() (image.Image, error) {
	if l.conf.AcquireTimeout <= 0 {
		return l.source.Acquire()
	}

	results := make(chan acquireResult, 1)
	go func() {
		img, err := l.source.Acquire()
		results <- acquireResult{img, err}
	}()

	timer := time.NewTimer(l.conf.AcquireTimeout)
	defer timer.Stop()
	select {
	case r := <-results:
		return r.img, r.err
	case <-timer.C:
		l.stalled = results
		return nil, ErrAcquireTimeout
	}
}
