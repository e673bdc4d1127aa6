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

package shutdown

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
)

type step struct {
	name    string
	release func() error
}

// New returns a Coordinator that cancels the run context with cancel before
// releasing anything.
func New(cancel context.CancelFunc) *Coordinator {
	return &Coordinator{cancel: cancel}
}

// Coordinator is the one place resources are released at the end of a run.
// It moves from running to stopped exactly once, no matter how many times
// or from where a shutdown is requested.
type Coordinator struct {
	cancel  context.CancelFunc
	mu      sync.Mutex
	steps   []step
	reason  string
	once    sync.Once
	stopped atomic.Bool
}

// Add registers a release step. Steps run in the order they were added.
func (c *Coordinator) Add(name string, release func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps = append(c.steps, step{name: name, release: release})
}

// Trigger asks for a shutdown without doing any of the release work. It is
// safe to call from a signal handling goroutine.
func (c *Coordinator) Trigger(reason string) {
	c.setReason(reason)
	c.cancel()
}

// Shutdown stops the run and releases every registered resource. Only the
// first call does the work; later calls wait for it to finish. Release
// errors are logged and the remaining steps still run.
func (c *Coordinator) Shutdown(reason string) {
	c.setReason(reason)
	c.once.Do(func() {
		c.stopped.Store(true)
		log.Printf("shutting down: %s", c.Reason())
		c.cancel()

		c.mu.Lock()
		steps := append([]step(nil), c.steps...)
		c.mu.Unlock()

		for _, s := range steps {
			if err := s.release(); err != nil {
				log.Printf("error releasing %s: %v", s.name, err)
			} else {
				log.Printf("released %s", s.name)
			}
		}
		log.Print("shutdown complete")
	})
}

// Stopped returns true once Shutdown has been called.
func (c *Coordinator) Stopped() bool {
	return c.stopped.Load()
}

// Reason returns the reason given with the first shutdown request.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Coordinator) setReason(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reason == "" {
		c.reason = reason
	}
}
