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

package opencv

import (
	"errors"
	"fmt"
	"image"
	"io"
	"log"
	"sync"

	"gocv.io/x/gocv"
)

var (
	errReadFailed = errors.New("failed to read from camera")
	errClosed     = errors.New("camera is closed")
)

// Camera reads frames from a camera device or a video file.
// Acquire and Close are serialised so the mat and capture are never freed
// during a read.
type Camera struct {
	mu      sync.Mutex
	closed  bool
	capture *gocv.VideoCapture
	mat     gocv.Mat
	file    bool
}

// OpenCamera opens a camera device, either an index such as "0" or a
// pipeline/URL understood by OpenCV, and asks it for the given resolution
// and frame rate.
func OpenCamera(device string, size image.Point, fps float64) (*Camera, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("opening camera %s: %w", device, err)
	}
	capture.Set(gocv.VideoCaptureFrameWidth, float64(size.X))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(size.Y))
	capture.Set(gocv.VideoCaptureFPS, fps)

	log.Printf("camera %s opened: %.0fx%.0f @ %.1f fps",
		device,
		capture.Get(gocv.VideoCaptureFrameWidth),
		capture.Get(gocv.VideoCaptureFrameHeight),
		capture.Get(gocv.VideoCaptureFPS))

	return &Camera{capture: capture, mat: gocv.NewMat()}, nil
}

// OpenFile plays back a recorded video. Acquire returns io.EOF at the end
// of the file.
func OpenFile(path string) (*Camera, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Camera{capture: capture, mat: gocv.NewMat(), file: true}, nil
}

func (c *Camera) Acquire() (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, errClosed
	}
	if !c.capture.Read(&c.mat) {
		if c.file {
			return nil, io.EOF
		}
		return nil, errReadFailed
	}
	if c.mat.Empty() {
		if c.file {
			return nil, io.EOF
		}
		return nil, nil
	}
	// ToImage copies the pixels so the mat can be reused for the next read.
	return c.mat.ToImage()
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.mat.Close()
	return c.capture.Close()
}
