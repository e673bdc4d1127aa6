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

package inference

import "errors"

type Config struct {
	Window        int `yaml:"inference_window"`
	MinApplyScore int `yaml:"min_apply_score"`
}

func DefaultConfig() Config {
	return Config{
		Window:        1,
		MinApplyScore: 1,
	}
}

func (conf *Config) Validate() error {
	if conf.Window < 1 {
		return errors.New("inference_window should be at least 1")
	}
	if conf.MinApplyScore < 1 {
		return errors.New("min_apply_score should be at least 1")
	}
	if conf.MinApplyScore > conf.Window {
		return errors.New("min_apply_score should not be larger than inference_window")
	}
	return nil
}
