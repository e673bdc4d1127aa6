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

package throttle

import (
	"log"
	"time"

	"github.com/TheCacophonyProject/ati-eye/events"
)

// EventListener uses the event api to record that events were throttled
// at a particular time.
type EventListener struct {
	Reporter events.Reporter
	nowFunc  func() time.Time
}

func (l *EventListener) WhenThrottled() {
	now := time.Now
	if l.nowFunc != nil {
		now = l.nowFunc
	}
	err := l.Reporter.Report(events.Event{Type: events.Throttled, Time: now()})
	if err != nil {
		log.Printf("Could not record throttle event: %s", err)
	}
}
