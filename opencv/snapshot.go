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
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var boxColour = color.RGBA{G: 255, A: 255}

const boxThickness = 4

// SnapshotWriter saves frames as image files with detection boxes drawn in
// green. The format is chosen from the file extension.
type SnapshotWriter struct{}

func (SnapshotWriter) WriteSnapshot(path string, img image.Image, boxes []image.Rectangle) error {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()

	for _, box := range boxes {
		gocv.Rectangle(&mat, box, boxColour, boxThickness)
	}
	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}
