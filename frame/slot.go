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

package frame

import (
	"context"
	"sync"
	"time"
)

// NewSlot returns an empty Slot.
func NewSlot() *Slot {
	return &Slot{
		notify: make(chan struct{}, 1),
	}
}

// Slot hands the most recently acquired frame from the capture loop to the
// consumer. It holds at most one unread frame: publishing over an unread
// frame replaces it. The publisher never blocks.
type Slot struct {
	mu              sync.Mutex
	frame           *Frame
	unread          bool
	notify          chan struct{}
	published       uint64
	consumed        uint64
	dropped         uint64
	lastConsumedSeq uint64
}

// SlotStats is a snapshot of the slot counters.
type SlotStats struct {
	Published       uint64
	Consumed        uint64
	Dropped         uint64
	LastConsumedSeq uint64
}

// Publish stores f as the newest frame and marks it unread.
func (s *Slot) Publish(f *Frame) {
	s.mu.Lock()
	if s.unread {
		s.dropped++
	}
	s.frame = f
	s.unread = true
	s.published++
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// TryConsume returns the newest frame if it hasn't been read yet.
func (s *Slot) TryConsume() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.unread {
		return nil, false
	}
	s.unread = false
	s.consumed++
	s.lastConsumedSeq = s.frame.Seq
	return s.frame, true
}

// Wait is like TryConsume but waits up to timeout for a frame to be
// published when there is no unread frame.
func (s *Slot) Wait(ctx context.Context, timeout time.Duration) (*Frame, bool) {
	if f, ok := s.TryConsume(); ok {
		return f, true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-s.notify:
			// The notification may belong to a frame that was already
			// consumed by the TryConsume above.
			if f, ok := s.TryConsume(); ok {
				return f, true
			}
		case <-timer.C:
			return s.TryConsume()
		case <-ctx.Done():
			return nil, false
		}
	}
}

// Stats returns the current slot counters.
func (s *Slot) Stats() SlotStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SlotStats{
		Published:       s.published,
		Consumed:        s.consumed,
		Dropped:         s.dropped,
		LastConsumedSeq: s.lastConsumedSeq,
	}
}
