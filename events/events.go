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
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/godbus/dbus"

	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/inference"
)

const (
	ObjectDetected = "objectDetected"
	Throttled      = "throttle"
)

// Event is something worth telling the device's event queue about.
type Event struct {
	Type    string
	Time    time.Time
	Details map[string]interface{}
}

type Reporter interface {
	Report(Event) error
}

// MarshalDetails returns the JSON event description queued for the event.
func (e Event) MarshalDetails() ([]byte, error) {
	description := map[string]interface{}{
		"type": e.Type,
	}
	if len(e.Details) > 0 {
		description["details"] = e.Details
	}
	return json.Marshal(map[string]interface{}{
		"description": description,
	})
}

// DBusReporter queues events with the events service on the system bus.
type DBusReporter struct{}

func (DBusReporter) Report(e Event) error {
	detailsJSON, err := e.MarshalDetails()
	if err != nil {
		return err
	}

	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}

	obj := conn.Object("org.cacophony.Events", "/org/cacophony/Events")
	call := obj.Call("org.cacophony.Events.Queue", 0, detailsJSON, e.Time.UnixNano())
	return call.Err
}

// NewVerdictReporter returns a listener that reports an event each time an
// object starts being detected.
func NewVerdictReporter(reporter Reporter, deviceName string) *VerdictReporter {
	return &VerdictReporter{reporter: reporter, deviceName: deviceName}
}

type VerdictReporter struct {
	reporter   Reporter
	deviceName string
}

func (r *VerdictReporter) VerdictChanged(f *frame.Frame, v inference.Verdict) {
	if !v.Detected {
		return
	}
	details := map[string]interface{}{
		"frame":     f.Seq,
		"inf_score": v.Score,
	}
	if r.deviceName != "" {
		details["device"] = r.deviceName
	}
	err := r.reporter.Report(Event{
		Type:    ObjectDetected,
		Time:    f.Timestamp,
		Details: details,
	})
	if err != nil {
		log.Printf("could not report %s event: %v", ObjectDetected, err)
	}
}

func (e Event) String() string {
	return fmt.Sprintf("%s event at %s", e.Type, e.Time.Format(time.RFC3339))
}
