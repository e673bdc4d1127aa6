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

package events

import (
	"bytes"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/inference"
)

type testReporter struct {
	events []Event
	err    error
}

func (r *testReporter) Report(e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestMarshalDetails(t *testing.T) {
	e := Event{Type: Throttled}
	details, err := e.MarshalDetails()
	require.NoError(t, err)
	assert.JSONEq(t, `{"description": {"type": "throttle"}}`, string(details))

	e = Event{Type: ObjectDetected, Details: map[string]interface{}{"frame": 3}}
	details, err = e.MarshalDetails()
	require.NoError(t, err)
	assert.JSONEq(t, `{"description": {"type": "objectDetected", "details": {"frame": 3}}}`, string(details))
}

func TestVerdictReporterOnlyReportsDetections(t *testing.T) {
	reporter := new(testReporter)
	listener := NewVerdictReporter(reporter, "eye-1")
	now := time.Now()

	listener.VerdictChanged(&frame.Frame{Seq: 4, Timestamp: now}, inference.Verdict{Detected: true, Score: 2})
	listener.VerdictChanged(&frame.Frame{Seq: 9}, inference.Verdict{Detected: false, Score: 0})

	require.Len(t, reporter.events, 1)
	assert.Equal(t, Event{
		Type: ObjectDetected,
		Time: now,
		Details: map[string]interface{}{
			"frame":     uint64(4),
			"inf_score": 2,
			"device":    "eye-1",
		},
	}, reporter.events[0])
}

func TestVerdictReporterLogsErrors(t *testing.T) {
	logs := new(bytes.Buffer)
	log.SetOutput(logs)
	flags := log.Flags()
	log.SetFlags(0)
	defer func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	}()

	reporter := &testReporter{err: errors.New("no system bus")}
	NewVerdictReporter(reporter, "").VerdictChanged(&frame.Frame{Seq: 1}, inference.Verdict{Detected: true, Score: 1})

	assert.Equal(t, "could not report objectDetected event: no system bus\n", logs.String())
}
