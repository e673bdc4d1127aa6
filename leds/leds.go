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

package leds

import (
	"fmt"
	"log"

	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/inference"
)

type Config struct {
	Running  string `yaml:"running"`
	Detected string `yaml:"detected"`
}

// Open finds the configured pins. A pin that isn't configured is skipped.
func Open(conf Config) (*LEDs, error) {
	if conf.Running == "" && conf.Detected == "" {
		return New(nil, nil), nil
	}
	if _, err := host.Init(); err != nil {
		return nil, err
	}
	running, err := lookup(conf.Running)
	if err != nil {
		return nil, err
	}
	detected, err := lookup(conf.Detected)
	if err != nil {
		return nil, err
	}
	return New(running, detected), nil
}

func lookup(name string) (gpio.PinOut, error) {
	if name == "" {
		return nil, nil
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("unknown LED pin %q", name)
	}
	return pin, nil
}

func New(running, detected gpio.PinOut) *LEDs {
	return &LEDs{running: running, detected: detected}
}

// LEDs shows that the application is running and whether an object is
// currently detected.
type LEDs struct {
	running  gpio.PinOut
	detected gpio.PinOut
}

func (l *LEDs) Start() error {
	if err := set(l.detected, gpio.Low); err != nil {
		return err
	}
	return set(l.running, gpio.High)
}

func (l *LEDs) VerdictChanged(_ *frame.Frame, v inference.Verdict) {
	if err := set(l.detected, gpio.Level(v.Detected)); err != nil {
		log.Printf("failed to set detected LED: %v", err)
	}
}

// Close turns both LEDs off.
func (l *LEDs) Close() error {
	err := set(l.detected, gpio.Low)
	if err2 := set(l.running, gpio.Low); err == nil {
		err = err2
	}
	return err
}

func set(pin gpio.PinOut, level gpio.Level) error {
	if pin == nil {
		return nil
	}
	if err := pin.Out(level); err != nil {
		return fmt.Errorf("failed to set %s %s: %v", pin, level, err)
	}
	return nil
}
