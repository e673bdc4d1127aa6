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
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	goconfig "github.com/TheCacophonyProject/go-config"
	arg "github.com/alexflint/go-arg"
	"github.com/coreos/go-systemd/daemon"

	"github.com/TheCacophonyProject/ati-eye/capture"
	"github.com/TheCacophonyProject/ati-eye/detection"
	"github.com/TheCacophonyProject/ati-eye/detector"
	"github.com/TheCacophonyProject/ati-eye/events"
	"github.com/TheCacophonyProject/ati-eye/frame"
	"github.com/TheCacophonyProject/ati-eye/inference"
	"github.com/TheCacophonyProject/ati-eye/leds"
	"github.com/TheCacophonyProject/ati-eye/opencv"
	"github.com/TheCacophonyProject/ati-eye/recorder"
	"github.com/TheCacophonyProject/ati-eye/shutdown"
	"github.com/TheCacophonyProject/ati-eye/throttle"
)

const (
	logFileName = "ati_eye.log"

	secondsPerSdNotify = 5
)

var version = "<not set>"

type Args struct {
	ConfigFile   string `arg:"-c,--config" help:"path to configuration file"`
	DeviceConfig string `arg:"--device-config" help:"path to the device config directory"`
	TestFile     string `arg:"-f,--test-file" help:"run a video file through the pipeline instead of the camera"`
	Timestamps   bool   `arg:"-t,--timestamps" help:"include timestamps in log output"`
	NoRecord     bool   `arg:"--no-record" help:"don't write video files"`
	NoDBus       bool   `arg:"--no-dbus" help:"don't use D-Bus for events or status"`
}

func (Args) Version() string {
	return version
}

func procArgs() Args {
	var args Args
	args.ConfigFile = "/etc/ati-eye.yaml"
	args.DeviceConfig = goconfig.DefaultConfigDir
	arg.MustParse(&args)
	return args
}

type detectorCloser interface {
	detection.Detector
	Close() error
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

	conf, err := ParseConfigFile(args.ConfigFile)
	if err != nil {
		return err
	}

	logDir, logFile, err := openLogFile(conf.OutputDir, time.Now())
	if err != nil {
		return err
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stderr, logFile))

	log.Printf("running version: %s", version)
	logConfig(conf)

	if !args.NoDBus {
		conf.DeviceName, err = readDeviceName(args.DeviceConfig)
		if err != nil {
			log.Printf("could not read device name: %v", err)
		}
	}

	det, err := newDetector(&conf.Detector)
	if err != nil {
		return err
	}

	var source capture.Source
	if args.TestFile != "" {
		log.Printf("reading frames from %s", args.TestFile)
		source, err = opencv.OpenFile(args.TestFile)
	} else {
		source, err = opencv.OpenCamera(conf.Camera.Device, conf.Camera.Size(), conf.Camera.FPS)
	}
	if err != nil {
		det.Close()
		return err
	}

	var rec recorder.Recorder = new(recorder.NoWriteRecorder)
	if !args.NoRecord {
		rec, _, err = opencv.NewRecorder(&conf.Recorder, conf.RecordingDir, conf.Camera.FPS, conf.Camera.OutputSize())
		if err != nil {
			det.Close()
			source.Close()
			return err
		}
	}

	indicators, err := leds.Open(conf.LEDs)
	if err != nil {
		log.Printf("LEDs disabled: %v", err)
		indicators = leds.New(nil, nil)
	}
	if err := indicators.Start(); err != nil {
		log.Printf("error turning on running LED: %v", err)
	}
	listeners := []detection.VerdictListener{indicators}

	if conf.Events.Enabled && !args.NoDBus {
		reporter := throttle.NewThrottledReporter(
			events.DBusReporter{},
			&conf.Throttler,
			&throttle.EventListener{Reporter: events.DBusReporter{}},
		)
		listeners = append(listeners, events.NewVerdictReporter(reporter, conf.DeviceName))
	}

	slot := frame.NewSlot()
	loop := capture.NewLoop(&conf.Camera, source, slot)
	framesPerSdNotify := uint64(secondsPerSdNotify * conf.Camera.FPS)
	if framesPerSdNotify == 0 {
		framesPerSdNotify = 1
	}
	loop.OnFrame = func(f *frame.Frame) {
		if f.Seq%framesPerSdNotify == 0 {
			daemon.SdNotify(false, "WATCHDOG=1")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	coord := shutdown.New(cancel)
	coord.Add("capture loop", loop.Wait)
	coord.Add("recorder", rec.Close)
	coord.Add("detector", det.Close)
	coord.Add("LEDs", indicators.Close)

	orch := detection.NewOrchestrator(
		detection.Config{
			IdleDelay:    conf.IdleDelay,
			BoxThreshold: conf.Detector.Confidence,
			SnapshotDir:  logDir,
		},
		slot,
		loop,
		det,
		inference.NewHistory(conf.Inference),
		rec,
		opencv.SnapshotWriter{},
		listeners...,
	)

	if !args.NoDBus {
		if err := startService(orch, slot); err != nil {
			log.Printf("failed to start D-Bus service: %v", err)
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)
	go watchSignals(ctx, signals, coord.Trigger, signal.Stop)

	loop.Start(ctx)
	daemon.SdNotify(false, "READY=1")

	runErr := orch.Run(ctx)
	daemon.SdNotify(false, "STOPPING=1")

	reason := "pipeline finished"
	if runErr != nil {
		reason = runErr.Error()
	}
	coord.Shutdown(reason)

	stats := orch.Stats()
	slotStats := slot.Stats()
	log.Printf("processed %d frames (%d detector errors), %d captured, %d dropped",
		stats.Processed, stats.Failed, slotStats.Published, slotStats.Dropped)

	if runErr == nil || errors.Is(runErr, capture.ErrEndOfStream) {
		return nil
	}
	return runErr
}

// watchSignals triggers a shutdown on the first signal and then restores
// the default handlers, so a second signal kills a hung shutdown.
func watchSignals(ctx context.Context, signals chan os.Signal, trigger func(string), stop func(chan<- os.Signal)) {
	select {
	case s := <-signals:
		stop(signals)
		log.Printf("received %s, send it again to force quit", s)
		trigger("signal: " + s.String())
	case <-ctx.Done():
	}
}

// openLogFile creates a directory for this run under outputDir and opens
// the log file inside it.
func openLogFile(outputDir string, now time.Time) (string, *os.File, error) {
	dir := filepath.Join(outputDir, now.Format("2006-01-02-15-04-05"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, logFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", nil, err
	}
	return dir, f, nil
}

func newDetector(conf *DetectorConfig) (detectorCloser, error) {
	switch conf.Type {
	case detectorYOLO:
		return opencv.NewYOLO(conf.Model, conf.InputSize, conf.Confidence)
	case detectorRemote:
		remote := detector.NewRemote(conf.URL, conf.Confidence, conf.Timeout)
		if err := remote.CheckHealth(); err != nil {
			log.Printf("inference service not ready: %v", err)
		}
		return remote, nil
	}
	return nil, fmt.Errorf("unknown detector type %q", conf.Type)
}

func logConfig(conf *Config) {
	hAngle, vAngle := conf.Camera.AnglePerPixel()
	log.Printf("camera: %s %dx%d @ %g fps", conf.Camera.Device,
		conf.Camera.Resolution[0], conf.Camera.Resolution[1], conf.Camera.FPS)
	log.Printf("field of view: %.1f x %.1f degrees (%.4f x %.4f degrees per pixel)",
		conf.Camera.HFOV, conf.Camera.VFOV, hAngle, vAngle)
	log.Printf("inference window: %d, min apply score: %d",
		conf.Inference.Window, conf.Inference.MinApplyScore)
	log.Printf("detector: %s, confidence: %.2f", conf.Detector.Type, conf.Detector.Confidence)
	log.Printf("recordings: %s, logs: %s", conf.RecordingDir, conf.OutputDir)
	if conf.Throttler.ApplyThrottling {
		log.Printf("event throttling: %d events, one more every %s",
			conf.Throttler.BucketSize, conf.Throttler.RefillInterval)
	}
}
