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

package detection

import (
	"fmt"
	"image"

	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/inference"
)

// Detection is a single object found in an image.
type Detection struct {
	Class int
	Box   image.Rectangle
	Score float64
}

func (d Detection) String() string {
	return fmt.Sprintf("class %d %v score %.2f", d.Class, d.Box, d.Score)
}

// Event is the result of running a detector over one frame.
type Event struct {
	Frame      *frame.Frame
	Detections []Detection
}

// Detected is true when at least one object was found.
func (e Event) Detected() bool {
	return len(e.Detections) > 0
}

// Boxes returns the boxes of the detections scoring at least threshold.
func (e Event) Boxes(threshold float64) []image.Rectangle {
	var boxes []image.Rectangle
	for _, d := range e.Detections {
		if d.Score >= threshold {
			boxes = append(boxes, d.Box)
		}
	}
	return boxes
}

type Detector interface {
	Detect(image.Image) ([]Detection, error)
}

// SnapshotWriter saves an image with boxes drawn over it.
type SnapshotWriter interface {
	WriteSnapshot(path string, img image.Image, boxes []image.Rectangle) error
}

// VerdictListener is told when the smoothed verdict flips.
type VerdictListener interface {
	VerdictChanged(*frame.Frame, inference.Verdict)
}

// Producer is whatever fills the frame slot. Done is closed when it stops
// publishing and Err then says why.
type Producer interface {
	Done() <-chan struct{}
	Err() error
}

// SnapshotName returns the file name used for the snapshot of frame seq.
func SnapshotName(seq uint64, detected bool) string {
	if detected {
		return fmt.Sprintf("%d-detected.jpg", seq)
	}
	return fmt.Sprintf("%d-no_detection.jpg", seq)
}
