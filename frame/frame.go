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

package frame

import (
	"fmt"
	"image"
	"time"
)

// Frame is a single image acquired from the camera. The Image must not be
// modified once the frame has been published.
type Frame struct {
	Image     image.Image
	Seq       uint64
	Timestamp time.Time
}

// Size returns the width and height of the frame image.
func (f *Frame) Size() image.Point {
	if f.Image == nil {
		return image.Point{}
	}
	return f.Image.Bounds().Size()
}

func (f *Frame) String() string {
	size := f.Size()
	return fmt.Sprintf("frame %d (%dx%d @ %s)", f.Seq, size.X, size.Y, f.Timestamp.Format("15:04:05.000"))
}
