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

package recorder

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"
)

const runDirPrefix = "data_collection_"

type RecorderConfig struct {
	LowResolution []int  `yaml:"low_resolution"`
	MidCodec      string `yaml:"mid_codec"`
	LowCodec      string `yaml:"low_codec"`
	Extension     string `yaml:"extension"`
	NamePrefix    string `yaml:"name_prefix"`
}

func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		LowResolution: []int{640, 480},
		MidCodec:      "XVID",
		LowCodec:      "MJPG",
		Extension:     "avi",
		NamePrefix:    "pi_cam",
	}
}

func (conf *RecorderConfig) Validate() error {
	if len(conf.LowResolution) != 2 || conf.LowResolution[0] <= 0 || conf.LowResolution[1] <= 0 {
		return errors.New("low_resolution should be [width, height]")
	}
	if len(conf.MidCodec) != 4 || len(conf.LowCodec) != 4 {
		return errors.New("codecs should be four character codes")
	}
	if conf.Extension == "" {
		return errors.New("extension is not set")
	}
	return nil
}

func (conf *RecorderConfig) LowSize() image.Point {
	return image.Pt(conf.LowResolution[0], conf.LowResolution[1])
}

func (conf *RecorderConfig) MidPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_mid.%s", conf.NamePrefix, conf.Extension))
}

func (conf *RecorderConfig) LowPath(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("%s_low.%s", conf.NamePrefix, conf.Extension))
}

// NewRunDir creates the directory the videos of a single run are stored in.
func NewRunDir(base string, now time.Time) (string, error) {
	dir := filepath.Join(base, runDirPrefix+now.Format("2006_01_02_15_04_05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
