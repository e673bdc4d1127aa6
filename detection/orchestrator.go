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

package detection

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/inference"
	"github.com/TheCacophonyProject/ati-eye/loglimiter"
	"github.com/TheCacophonyProject/ati-eye/recorder"
)

const errorLogInterval = 30 * time.Second

type Config struct {
	// IdleDelay is how long to wait for a new frame before logging that
	// none arrived.
	IdleDelay    time.Duration
	BoxThreshold float64
	// SnapshotDir is where annotated frames are saved. Snapshots are
	// disabled when it is empty.
	SnapshotDir string
}

// Stats summarises what the orchestrator has done so far.
type Stats struct {
	Processed   int
	Failed      int
	LastSeq     uint64
	LastVerdict inference.Verdict
}

func NewOrchestrator(
	conf Config,
	slot *frame.Slot,
	producer Producer,
	detector Detector,
	history *inference.History,
	rec recorder.Recorder,
	snapshots SnapshotWriter,
	listeners ...VerdictListener,
) *Orchestrator {
	return &Orchestrator{
		conf:      conf,
		slot:      slot,
		producer:  producer,
		detector:  detector,
		history:   history,
		recorder:  rec,
		snapshots: snapshots,
		listeners: listeners,
		nowFunc:   time.Now,
		errLog:    loglimiter.New(errorLogInterval),
	}
}

// Orchestrator takes frames from the slot and runs each one through the
// detector, the inference history, the recorder and the snapshot writer.
type Orchestrator struct {
	conf      Config
	slot      *frame.Slot
	producer  Producer
	detector  Detector
	history   *inference.History
	recorder  recorder.Recorder
	snapshots SnapshotWriter
	listeners []VerdictListener
	nowFunc   func() time.Time
	errLog    *loglimiter.LogLimiter

	mu    sync.Mutex
	stats Stats
}

// Run processes frames until ctx is cancelled or the producer stops. Once
// the producer has stopped any frame left in the slot is processed and the
// producer's error is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-o.producer.Done():
			cancel()
		case <-waitCtx.Done():
		}
	}()

	lastFrame := o.nowFunc()
	for {
		if f, ok := o.slot.Wait(waitCtx, o.conf.IdleDelay); ok {
			lastFrame = o.nowFunc()
			o.process(f)
			continue
		}

		select {
		case <-o.producer.Done():
			if f, ok := o.slot.TryConsume(); ok {
				o.process(f)
			}
			return o.producer.Err()
		default:
		}
		if ctx.Err() != nil {
			return nil
		}
		log.Printf("no new data for %.3f seconds", o.nowFunc().Sub(lastFrame).Seconds())
	}
}

func (o *Orchestrator) process(f *frame.Frame) {
	start := o.nowFunc()

	detections, err := o.detector.Detect(f.Image)
	if err != nil {
		o.errLog.Printf("detection failed: %v", err)
		o.write(f)
		o.update(func(s *Stats) {
			s.Failed++
			s.LastSeq = f.Seq
		})
		return
	}
	event := Event{Frame: f, Detections: detections}

	o.history.Record(event.Detected())
	log.Printf("updated inference history: %s", o.history)
	verdict := o.history.Verdict()
	log.Print(verdict)

	var previous inference.Verdict
	o.update(func(s *Stats) {
		previous = s.LastVerdict
		s.Processed++
		s.LastSeq = f.Seq
		s.LastVerdict = verdict
	})
	if verdict.Detected != previous.Detected {
		for _, l := range o.listeners {
			l.VerdictChanged(f, verdict)
		}
	}

	o.write(f)
	o.saveSnapshot(event)

	log.Printf("img: %d, process_time - %.3f secs", f.Seq, o.nowFunc().Sub(start).Seconds())
}

func (o *Orchestrator) write(f *frame.Frame) {
	if err := o.recorder.Write(f); err != nil {
		o.errLog.Printf("error recording frame: %v", err)
	}
}

func (o *Orchestrator) saveSnapshot(event Event) {
	if o.snapshots == nil || o.conf.SnapshotDir == "" {
		return
	}
	boxes := event.Boxes(o.conf.BoxThreshold)
	path := filepath.Join(o.conf.SnapshotDir, SnapshotName(event.Frame.Seq, len(boxes) > 0))
	if err := o.snapshots.WriteSnapshot(path, event.Frame.Image, boxes); err != nil {
		o.errLog.Printf("error saving snapshot: %v", err)
	}
}

func (o *Orchestrator) update(fn func(*Stats)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.stats)
}

func (o *Orchestrator) Stats() Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}
