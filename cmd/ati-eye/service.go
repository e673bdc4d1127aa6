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
	"encoding/json"
	"errors"

	"github.com/godbus/dbus"
	"github.com/godbus/dbus/introspect"

	"github.com/TheCacophonyProject/ati-eye/detection"
	"github.com/TheCacophonyProject/ati-eye/frame"
)

const (
	dbusName = "org.cacophony.atieye"
	dbusPath = "/org/cacophony/atieye"
)

type statsSource interface {
	Stats() detection.Stats
}

type slotStatsSource interface {
	Stats() frame.SlotStats
}

type service struct {
	orchestrator statsSource
	slot         slotStatsSource
}

func startService(orchestrator statsSource, slot slotStatsSource) error {
	conn, err := dbus.SystemBus()
	if err != nil {
		return err
	}
	reply, err := conn.RequestName(dbusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errors.New("name already taken")
	}

	s := &service{
		orchestrator: orchestrator,
		slot:         slot,
	}
	conn.Export(s, dbusPath, dbusName)
	conn.Export(genIntrospectable(s), dbusPath, "org.freedesktop.DBus.Introspectable")

	return nil
}

func genIntrospectable(v interface{}) introspect.Introspectable {
	node := &introspect.Node{
		Interfaces: []introspect.Interface{{
			Name:    dbusName,
			Methods: introspect.Methods(v),
		}},
	}
	return introspect.NewIntrospectable(node)
}

type status struct {
	FramesPublished uint64 `json:"frames_published"`
	FramesDropped   uint64 `json:"frames_dropped"`
	FramesProcessed int    `json:"frames_processed"`
	DetectorErrors  int    `json:"detector_errors"`
	LastFrame       uint64 `json:"last_frame"`
	ObjectDetected  bool   `json:"object_detected"`
	InferenceScore  int    `json:"inf_score"`
}

func (s *service) status() status {
	stats := s.orchestrator.Stats()
	slotStats := s.slot.Stats()
	return status{
		FramesPublished: slotStats.Published,
		FramesDropped:   slotStats.Dropped,
		FramesProcessed: stats.Processed,
		DetectorErrors:  stats.Failed,
		LastFrame:       stats.LastSeq,
		ObjectDetected:  stats.LastVerdict.Detected,
		InferenceScore:  stats.LastVerdict.Score,
	}
}

// Status returns the pipeline counters and the current verdict as JSON.
func (s *service) Status() (string, *dbus.Error) {
	buf, err := json.Marshal(s.status())
	if err != nil {
		return "", makeDbusError("Status", err)
	}
	return string(buf), nil
}

// ObjectDetected reports whether an object is currently detected.
func (s *service) ObjectDetected() (bool, *dbus.Error) {
	return s.orchestrator.Stats().LastVerdict.Detected, nil
}

func makeDbusError(name string, err error) *dbus.Error {
	return &dbus.Error{
		Name: dbusName + "." + name,
		Body: []interface{}{err.Error()},
	}
}
