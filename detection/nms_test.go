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
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIoU(t *testing.T) {
	a := image.Rect(0, 0, 10, 10)
	assert.Equal(t, 1.0, IoU(a, a))
	assert.Equal(t, 0.0, IoU(a, image.Rect(10, 10, 20, 20)))
	// 50 shared pixels out of 150.
	assert.InDelta(t, 1.0/3.0, IoU(a, image.Rect(5, 0, 15, 10)), 1e-9)
}

func TestSuppress(t *testing.T) {
	dets := []Detection{
		{Class: 0, Box: image.Rect(0, 0, 10, 10), Score: 0.6},
		{Class: 0, Box: image.Rect(1, 1, 11, 11), Score: 0.9},
		{Class: 1, Box: image.Rect(1, 1, 11, 11), Score: 0.5},
		{Class: 0, Box: image.Rect(50, 50, 60, 60), Score: 0.7},
	}

	assert.Equal(t, []Detection{
		{Class: 0, Box: image.Rect(1, 1, 11, 11), Score: 0.9},
		{Class: 0, Box: image.Rect(50, 50, 60, 60), Score: 0.7},
		{Class: 1, Box: image.Rect(1, 1, 11, 11), Score: 0.5},
	}, Suppress(dets, 0.45))
}

func TestSuppressNothing(t *testing.T) {
	assert.Nil(t, Suppress(nil, 0.5))
}
