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

package capture

import (
	"errors"
	"image"
	"time"
)

type Config struct {
	Device           string        `yaml:"camera_device"`
	Resolution       []int         `yaml:"camera_resolution"`
	OutputResolution []int         `yaml:"camera_output_resolution"`
	FPS              float64       `yaml:"camera_fps"`
	HFOV             float64       `yaml:"camera_h_fov"`
	VFOV             float64       `yaml:"camera_v_fov"`
	AcquireTimeout   time.Duration `yaml:"camera_acquire_timeout"`
	AcquireRetries   int           `yaml:"camera_acquire_retries"`
}

func DefaultConfig() Config {
	return Config{
		Device:         "0",
		Resolution:     []int{1920, 1080},
		FPS:            10,
		HFOV:           62.2,
		VFOV:           48.8,
		AcquireTimeout: 5 * time.Second,
		AcquireRetries: 2,
	}
}

func (conf *Config) Validate() error {
	if err := validateResolution(conf.Resolution); err != nil {
		return errors.New("camera_resolution " + err.Error())
	}
	if len(conf.OutputResolution) > 0 {
		if err := validateResolution(conf.OutputResolution); err != nil {
			return errors.New("camera_output_resolution " + err.Error())
		}
	}
	if conf.FPS <= 0 {
		return errors.New("camera_fps should be greater than 0")
	}
	if conf.AcquireRetries < 0 {
		return errors.New("camera_acquire_retries should not be negative")
	}
	return nil
}

func validateResolution(res []int) error {
	if len(res) != 2 {
		return errors.New("should be [width, height]")
	}
	if res[0] <= 0 || res[1] <= 0 {
		return errors.New("should have a positive width and height")
	}
	return nil
}

// Size is the resolution the camera is asked to capture at.
func (conf *Config) Size() image.Point {
	return image.Pt(conf.Resolution[0], conf.Resolution[1])
}

// OutputSize is the resolution of published frames.
func (conf *Config) OutputSize() image.Point {
	if len(conf.OutputResolution) == 2 {
		return image.Pt(conf.OutputResolution[0], conf.OutputResolution[1])
	}
	return conf.Size()
}

// Period is the target time between acquisitions.
func (conf *Config) Period() time.Duration {
	return time.Duration(float64(time.Second) / conf.FPS)
}

// AnglePerPixel returns the horizontal and vertical field of view covered
// by each pixel at the capture resolution, in degrees.
func (conf *Config) AnglePerPixel() (float64, float64) {
	size := conf.Size()
	return conf.HFOV / float64(size.X), conf.VFOV / float64(size.Y)
}
