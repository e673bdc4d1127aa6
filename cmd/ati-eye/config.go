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
	"fmt"
	"os"
	"time"

	goconfig "github.com/TheCacophonyProject/go-config"
	yaml "gopkg.in/yaml.v2"

	"github.com/TheCacophonyProject/ati-eye/capture"
	"github.com/TheCacophonyProject/ati-eye/inference"
	"github.com/TheCacophonyProject/ati-eye/leds"
	"github.com/TheCacophonyProject/ati-eye/recorder"
	"github.com/TheCacophonyProject/ati-eye/throttle"
)

const (
	detectorYOLO   = "yolo"
	detectorRemote = "remote"
)

// Config holds everything the application needs. The camera and
// inference keys sit at the top level so an eye_config.json file can be
// used as is.
type Config struct {
	Camera       capture.Config          `yaml:",inline"`
	Inference    inference.Config        `yaml:",inline"`
	OutputDir    string                  `yaml:"output_dir"`
	RecordingDir string                  `yaml:"recording_dir"`
	IdleDelay    time.Duration           `yaml:"idle_delay"`
	Recorder     recorder.RecorderConfig `yaml:"recorder"`
	Detector     DetectorConfig          `yaml:"detector"`
	LEDs         leds.Config             `yaml:"leds"`
	Events       EventsConfig            `yaml:"events"`
	Throttler    throttle.Config         `yaml:"throttler"`
	DeviceName   string                  `yaml:"-"`
}

type DetectorConfig struct {
	Type       string        `yaml:"type"`
	Model      string        `yaml:"model"`
	URL        string        `yaml:"url"`
	Confidence float64       `yaml:"confidence"`
	InputSize  int           `yaml:"input_size"`
	Timeout    time.Duration `yaml:"timeout"`
}

type EventsConfig struct {
	Enabled bool `yaml:"enabled"`
}

func (conf *DetectorConfig) Validate() error {
	switch conf.Type {
	case detectorYOLO:
		if conf.Model == "" {
			return errors.New("detector model is not set")
		}
		if conf.InputSize <= 0 {
			return errors.New("detector input_size should be greater than 0")
		}
	case detectorRemote:
		if conf.URL == "" {
			return errors.New("detector url is not set")
		}
	default:
		return fmt.Errorf("unknown detector type %q", conf.Type)
	}
	if conf.Confidence < 0 || conf.Confidence > 1 {
		return errors.New("detector confidence should be between 0 and 1")
	}
	return nil
}

func (conf *Config) Validate() error {
	if err := conf.Camera.Validate(); err != nil {
		return err
	}
	if err := conf.Inference.Validate(); err != nil {
		return err
	}
	if err := conf.Recorder.Validate(); err != nil {
		return err
	}
	if err := conf.Detector.Validate(); err != nil {
		return err
	}
	if err := conf.Throttler.Validate(); err != nil {
		return err
	}
	if conf.OutputDir == "" || conf.RecordingDir == "" {
		return errors.New("output_dir and recording_dir must be set")
	}
	if conf.IdleDelay <= 0 {
		return errors.New("idle_delay should be greater than 0")
	}
	return nil
}

var defaultConfig = Config{
	Camera:       capture.DefaultConfig(),
	Inference:    inference.DefaultConfig(),
	OutputDir:    "/var/spool/ati-eye/logs",
	RecordingDir: "/var/spool/ati-eye",
	IdleDelay:    100 * time.Millisecond,
	Recorder:     recorder.DefaultRecorderConfig(),
	Detector: DetectorConfig{
		Type:       detectorYOLO,
		Model:      "/etc/ati-eye/yolov8n.onnx",
		URL:        "http://localhost:8000/detect",
		Confidence: 0.25,
		InputSize:  640,
		Timeout:    5 * time.Second,
	},
	Events:    EventsConfig{Enabled: true},
	Throttler: throttle.DefaultConfig(),
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

// readDeviceName returns the name this device is registered with.
func readDeviceName(configDir string) (string, error) {
	configRW, err := goconfig.New(configDir)
	if err != nil {
		return "", err
	}
	var device goconfig.Device
	if err := configRW.Unmarshal(goconfig.DeviceKey, &device); err != nil {
		return "", err
	}
	return device.Name, nil
}
