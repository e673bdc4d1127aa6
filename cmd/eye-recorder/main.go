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
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/TheCacophonyProject/ati-eye/capture"
	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/opencv"
	"github.com/TheCacophonyProject/ati-eye/recorder"
	"github.com/TheCacophonyProject/ati-eye/shutdown"
)

const frameLogSeconds = 60

var version = "<not set>"

type Args struct {
	ConfigFile string        `arg:"-c,--config" help:"path to configuration file"`
	Duration   time.Duration `arg:"-d,--duration" help:"stop after recording for this long"`
	Timestamps bool          `arg:"-t,--timestamps" help:"include timestamps in log output"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/ati-eye.yaml"
	arg.MustParse(&args)
	return args
}

func main() {
	err := runMain()
	if err != nil {
		log.Fatal(err)
	}
}

func runMain() error {
	args := procArgs()

	if !args.Timestamps {
		log.SetFlags(0)
	}

	log.Printf("running version: %s", version)
	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}

	camera, err := opencv.OpenCamera(conf.Camera.Device, conf.Camera.Size(), conf.Camera.FPS)
	if err != nil {
		return err
	}
	rec, dir, err := opencv.NewRecorder(&conf.Recorder, conf.RecordingDir, conf.Camera.FPS, conf.Camera.OutputSize())
	if err != nil {
		camera.Close()
		return err
	}
	log.Printf("recording into %s", dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if args.Duration > 0 {
		ctx, cancel = context.WithTimeout(ctx, args.Duration)
		defer cancel()
	}

	slot := frame.NewSlot()
	loop := capture.NewLoop(&conf.Camera, camera, slot)
	coord := shutdown.New(cancel)
	coord.Add("capture loop", loop.Wait)
	coord.Add("recorder", rec.Close)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go func() {
		select {
		case s := <-signals:
			// A second signal gets the default handler.
			signal.Stop(signals)
			coord.Trigger("signal: " + s.String())
		case <-ctx.Done():
		}
	}()

	start := time.Now()
	loop.Start(ctx)
	daemon.SdNotify(false, "READY=1")
	err = record(ctx, slot, loop, rec, uint64(frameLogSeconds*conf.Camera.FPS))

	daemon.SdNotify(false, "STOPPING=1")

	reason := "recording finished"
	if err != nil {
		reason = err.Error()
	}
	coord.Shutdown(reason)

	stats := slot.Stats()
	log.Printf("recorded %d frames in %s (%d dropped)",
		rec.Frames(), time.Since(start).Round(time.Millisecond), stats.Dropped)

	if err == nil || errors.Is(err, capture.ErrEndOfStream) {
		return nil
	}
	return err
}

// record writes every frame the loop captures until the loop stops.
func record(ctx context.Context, slot *frame.Slot, loop *capture.Loop, rec recorder.Recorder, logEvery uint64) error {
	write := func(f *frame.Frame) {
		if err := rec.Write(f); err != nil {
			log.Printf("error recording frame %d: %v", f.Seq, err)
		}
		if logEvery > 0 && f.Seq%logEvery == 0 {
			log.Printf("%d frames captured", f.Seq)
		}
	}

	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-loop.Done()
		cancel()
	}()

	for {
		f, ok := slot.Wait(waitCtx, time.Second)
		if ok {
			write(f)
			continue
		}
		select {
		case <-loop.Done():
			if f, ok := slot.TryConsume(); ok {
				write(f)
			}
			return loop.Err()
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
