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
	"sync"
	"time"

	"github.com/juju/ratelimit"

	"github.com/TheCacophonyProject/ati-eye/events"
)

func NewThrottledReporter(
	reporter events.Reporter,
	conf *Config,
	listener ThrottledEventListener,
) *ThrottledReporter {
	return NewThrottledReporterWithClock(reporter, conf, listener, new(realClock))
}

func NewThrottledReporterWithClock(
	reporter events.Reporter,
	conf *Config,
	listener ThrottledEventListener,
	clock ratelimit.Clock,
) *ThrottledReporter {
	var bucket *ratelimit.Bucket
	if conf.ApplyThrottling {
		// One token is earned back every refill interval, up to the bucket size.
		refillRate := 1 / conf.RefillInterval.Seconds()
		bucket = ratelimit.NewBucketWithRateAndClock(refillRate, int64(conf.BucketSize), clock)
	}

	if listener == nil {
		listener = new(nullListener)
	}

	return &ThrottledReporter{
		reporter: reporter,
		listener: listener,
		bucket:   bucket,
	}
}

// ThrottledReporter wraps an event reporter so that it stops passing
// events on (ie gets throttled) when asked to report too often. This
// happens when an object sits at the edge of the frame and keeps coming
// in and out of detection.
type ThrottledReporter struct {
	mu        sync.Mutex
	reporter  events.Reporter
	listener  ThrottledEventListener
	bucket    *ratelimit.Bucket
	throttled bool
	dropped   int
}

type ThrottledEventListener interface {
	WhenThrottled()
}

type nullListener struct{}

func (lis *nullListener) WhenThrottled() {}

func (throttler *ThrottledReporter) Report(e events.Event) error {
	throttler.mu.Lock()
	if throttler.bucket == nil || throttler.bucket.TakeAvailable(1) > 0 {
		if throttler.throttled {
			log.Printf("event reporting resumed; %d events throttled", throttler.dropped)
		}
		throttler.throttled = false
		throttler.dropped = 0
		throttler.mu.Unlock()
		return throttler.reporter.Report(e)
	}

	throttler.dropped++
	startThrottling := !throttler.throttled
	throttler.throttled = true
	throttler.mu.Unlock()

	if startThrottling {
		log.Printf("%s throttled", e)
		throttler.listener.WhenThrottled()
	}
	return nil
}

// realClock implements ratelimit.Clock in terms of standard time functions.
type realClock struct{}

// Now implements Clock.Now by calling time.Now.
func (realClock) Now() time.Time {
	return time.Now()
}

// Now implements Clock.Sleep by calling time.Sleep.
func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}
