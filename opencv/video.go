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
	"log"
	"time"

	"gocv.io/x/gocv"

	"github.com/TheCacophonyProject/ati-eye/recorder"
)

// VideoSink appends frames to a video file.
type VideoSink struct {
	path   string
	size   image.Point
	writer *gocv.VideoWriter
}

// NewVideoSink creates a video file at path. codec is a four character
// code such as "XVID" or "MJPG".
func NewVideoSink(path, codec string, fps float64, size image.Point) (*VideoSink, error) {
	writer, err := gocv.VideoWriterFile(path, codec, fps, size.X, size.Y, true)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("creating %s: %s writer didn't open", path, codec)
	}
	return &VideoSink{path: path, size: size, writer: writer}, nil
}

func (s *VideoSink) WriteFrame(img image.Image) error {
	if got := img.Bounds().Size(); got != s.size {
		return fmt.Errorf("%s: frame is %dx%d, expected %dx%d", s.path, got.X, got.Y, s.size.X, s.size.Y)
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return err
	}
	defer mat.Close()
	return s.writer.Write(mat)
}

func (s *VideoSink) Close() error {
	return s.writer.Close()
}

func (s *VideoSink) String() string {
	return s.path
}

// NewRecorder creates a run directory under baseDir and opens the mid and
// low resolution videos inside it.
func NewRecorder(conf *recorder.RecorderConfig, baseDir string, fps float64, midSize image.Point) (*recorder.VideoRecorder, string, error) {
	dir, err := recorder.NewRunDir(baseDir, time.Now())
	if err != nil {
		return nil, "", err
	}
	mid, err := NewVideoSink(conf.MidPath(dir), conf.MidCodec, fps, midSize)
	if err != nil {
		return nil, "", err
	}
	low, err := NewVideoSink(conf.LowPath(dir), conf.LowCodec, fps, conf.LowSize())
	if err != nil {
		mid.Close()
		return nil, "", err
	}
	log.Printf("recording to %s and %s", mid, low)
	return recorder.NewVideoRecorder(mid, low, conf.LowSize()), dir, nil
}
