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

package main

import (
	"errors"
	"os"

	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/ati-eye/capture"
	"github.com/TheCacophonyProject/ati-eye/recorder"
)

// Config is read from the same file as ati-eye's. Keys it doesn't use are
// ignored.
type Config struct {
	Camera       capture.Config          `yaml:",inline"`
	RecordingDir string                  `yaml:"recording_dir"`
	Recorder     recorder.RecorderConfig `yaml:"recorder"`
}

var defaultConfig = Config{
	Camera:       capture.DefaultConfig(),
	RecordingDir: "/var/spool/ati-eye",
	Recorder:     recorder.DefaultRecorderConfig(),
}

func (conf *Config) Validate() error {
	if err := conf.Camera.Validate(); err != nil {
		return err
	}
	if err := conf.Recorder.Validate(); err != nil {
		return err
	}
	if conf.RecordingDir == "" {
		return errors.New("recording_dir must be set")
	}
	return nil
}

func ParseConfigFile(filename string) (*Config, error) {
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseConfig(buf)
}

func ParseConfig(buf []byte) (*Config, error) {
	conf := defaultConfig
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &conf, nil
}
