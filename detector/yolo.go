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

package detector

import (
	"fmt"
	"image"
	"math"

	"github.com/TheCacophonyProject/ati-eye/detection"
)

const nmsThreshold = 0.45

// DecodeYOLO turns the raw output of a YOLOv8 style network into
// detections. dims is the shape of the output, either [1, 4+classes, N]
// or [1, N, 4+classes]. Each candidate is a centre x, centre y, width,
// height box in network input pixels followed by one score per class.
// Boxes are scaled by scale to image coordinates and clipped to bounds.
func DecodeYOLO(out []float32, dims []int, confidence float64, scale [2]float64, bounds image.Rectangle) ([]detection.Detection, error) {
	if len(dims) != 3 || dims[0] != 1 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	rows, cols := dims[1], dims[2]
	if len(out) != rows*cols {
		return nil, fmt.Errorf("output has %d values, expected %d for shape %v", len(out), rows*cols, dims)
	}

	// Candidates are columns when there are fewer rows than columns.
	attrs, candidates := rows, cols
	at := func(candidate, attr int) float64 {
		return float64(out[attr*cols+candidate])
	}
	if rows > cols {
		attrs, candidates = cols, rows
		at = func(candidate, attr int) float64 {
			return float64(out[candidate*cols+attr])
		}
	}
	if attrs < 5 {
		return nil, fmt.Errorf("output shape %v has no class scores", dims)
	}

	var dets []detection.Detection
	for i := 0; i < candidates; i++ {
		class, score := -1, 0.0
		for c := 4; c < attrs; c++ {
			if s := at(i, c); s > score {
				class, score = c-4, s
			}
		}
		if class < 0 || score < confidence {
			continue
		}

		cx, cy, w, h := at(i, 0), at(i, 1), at(i, 2), at(i, 3)
		box := image.Rect(
			int(math.Round((cx-w/2)*scale[0])),
			int(math.Round((cy-h/2)*scale[1])),
			int(math.Round((cx+w/2)*scale[0])),
			int(math.Round((cy+h/2)*scale[1])),
		).Intersect(bounds)
		if box.Empty() {
			continue
		}
		dets = append(dets, detection.Detection{Class: class, Box: box, Score: score})
	}
	return detection.Suppress(dets, nmsThreshold), nil
}
