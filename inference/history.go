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

import (
	"fmt"
	"strings"
)

// NewHistory returns a History holding the last window detection results.
// It starts full of negatives so early verdicts lean towards no object.
func NewHistory(conf Config) *History {
	return &History{
		entries:   make([]bool, conf.Window),
		threshold: conf.MinApplyScore,
	}
}

// History is a fixed size ring of the most recent detection results.
type History struct {
	entries   []bool
	oldest    int
	threshold int
}

// Verdict is the smoothed decision over the history window.
type Verdict struct {
	Detected bool
	Score    int
}

func (v Verdict) String() string {
	if v.Detected {
		return fmt.Sprintf("object detected - inf_score: %d", v.Score)
	}
	return fmt.Sprintf("no object detected - inf_score: %d", v.Score)
}

func (h *History) nextIndexAfter(index int) int {
	return (index + 1) % len(h.entries)
}

// Record replaces the oldest entry with detected.
func (h *History) Record(detected bool) {
	h.entries[h.oldest] = detected
	h.oldest = h.nextIndexAfter(h.oldest)
}

// Entries returns the window from oldest to newest.
func (h *History) Entries() []bool {
	out := make([]bool, 0, len(h.entries))
	out = append(out, h.entries[h.oldest:]...)
	return append(out, h.entries[:h.oldest]...)
}

// Len is always the configured window size.
func (h *History) Len() int {
	return len(h.entries)
}

// Score counts the positive entries in the window.
func (h *History) Score() int {
	score := 0
	for _, e := range h.entries {
		if e {
			score++
		}
	}
	return score
}

func (h *History) Verdict() Verdict {
	score := h.Score()
	return Verdict{
		Detected: score >= h.threshold,
		Score:    score,
	}
}

func (h *History) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range h.Entries() {
		if i > 0 {
			b.WriteByte(' ')
		}
		if e {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	b.WriteByte(']')
	return b.String()
}
