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
	"sync"

	"gocv.io/x/gocv"

	"github.com/TheCacophonyProject/ati-eye/detection"
	"github.com/TheCacophonyProject/ati-eye/detector"
)

// YOLO runs a YOLO network exported to ONNX with the OpenCV DNN module.
type YOLO struct {
	mu         sync.Mutex
	net        gocv.Net
	inputSize  int
	confidence float64
}

func NewYOLO(modelPath string, inputSize int, confidence float64) (*YOLO, error) {
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read model %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		net.Close()
		return nil, err
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		net.Close()
		return nil, err
	}
	return &YOLO{
		net:        net,
		inputSize:  inputSize,
		confidence: confidence,
	}, nil
}

func (y *YOLO) Detect(img image.Image) ([]detection.Detection, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(y.inputSize, y.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	y.mu.Lock()
	defer y.mu.Unlock()

	y.net.SetInput(blob, "")
	out := y.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading network output: %w", err)
	}
	bounds := img.Bounds()
	scale := [2]float64{
		float64(bounds.Dx()) / float64(y.inputSize),
		float64(bounds.Dy()) / float64(y.inputSize),
	}
	return detector.DecodeYOLO(data, out.Size(), y.confidence, scale, bounds)
}

func (y *YOLO) Close() error {
	y.mu.Lock()
	defer y.mu.Unlock()
	return y.net.Close()
}
