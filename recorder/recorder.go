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

package recorder

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/TheCacophonyProject/ati-eye/frame"
)

var ErrClosed = errors.New("recorder is closed")

type Recorder interface {
	Write(*frame.Frame) error
	Close() error
}

// Sink is a video file that frames are appended to.
type Sink interface {
	WriteFrame(image.Image) error
	Close() error
}

type NoWriteRecorder struct {
}

func (*NoWriteRecorder) Write(*frame.Frame) error { return nil }
func (*NoWriteRecorder) Close() error             { return nil }

// NewVideoRecorder returns a VideoRecorder writing full frames to mid and
// frames scaled to lowSize to low.
func NewVideoRecorder(mid, low Sink, lowSize image.Point) *VideoRecorder {
	return &VideoRecorder{
		mid:     mid,
		low:     low,
		lowSize: lowSize,
	}
}

// VideoRecorder writes every frame it is given to two sinks of different
// resolution. Frames are written in call order and never dropped.
type VideoRecorder struct {
	mu        sync.Mutex
	mid       Sink
	low       Sink
	lowSize   image.Point
	frames    int
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Write appends f to both sinks. A failure writing to one sink doesn't stop
// the other from being written.
func (r *VideoRecorder) Write(f *frame.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.frames++

	var errs []error
	if err := r.mid.WriteFrame(f.Image); err != nil {
		errs = append(errs, fmt.Errorf("mid sink: frame %d: %w", f.Seq, err))
	}
	if err := r.low.WriteFrame(frame.Resize(f.Image, r.lowSize)); err != nil {
		errs = append(errs, fmt.Errorf("low sink: frame %d: %w", f.Seq, err))
	}
	return errors.Join(errs...)
}

// Frames returns how many frames have been given to the recorder.
func (r *VideoRecorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close flushes and closes both sinks. Only the first call does anything.
func (r *VideoRecorder) Close() error {
	r.closeOnce.Do(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.closed = true

		var errs []error
		if err := r.mid.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing mid sink: %w", err))
		}
		if err := r.low.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing low sink: %w", err))
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
