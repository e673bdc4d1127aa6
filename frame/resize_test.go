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
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResizeSameSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 8, 6))
	assert.Same(t, img, Resize(img, image.Pt(8, 6)))
}

func TestResizeDown(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 10, B: 10, A: 255})
		}
	}

	out := Resize(img, image.Pt(16, 12))
	assert.Equal(t, image.Pt(16, 12), out.Bounds().Size())

	r, g, b, _ := out.At(8, 6).RGBA()
	assert.InDelta(t, 200, r>>8, 2)
	assert.InDelta(t, 10, g>>8, 2)
	assert.InDelta(t, 10, b>>8, 2)
}
