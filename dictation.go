package main

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	"listen/audio"
	"listen/beep"
	"listen/clipboard"
	"listen/config"
	"listen/hotkey"
	"listen/log"
	"listen/session"
	"listen/transcriber"
)

// levelMeter holds the most recent input level for the front ends.
type levelMeter struct {
	bits atomic.Uint64
	peak atomic.Uint64
}

func (m *levelMeter) Set(level float64) {
	m.bits.Store(math.Float64bits(level))
	if level > m.Peak() {
		m.peak.Store(math.Float64bits(level))
	}
}

func (m *levelMeter) Level() float64 { return math.Float64frombits(m.bits.Load()) }

// Peak is the loudest level since the last ResetPeak.
func (m *levelMeter) Peak() float64 { return math.Float64frombits(m.peak.Load()) }

func (m *levelMeter) ResetPeak() { m.peak.Store(0) }

// dictation is one wired push-to-talk pipeline: capture, gate, controller
// and engine.
type dictation struct {
	cfg      config.Config
	info     transcriber.ModelInfo
	gateway  *transcriber.Gateway
	recorder *audio.Recorder
	ctl      *session.Controller
	gate     *session.Gate
	cues     *beep.Player
	meter    levelMeter

	onLevel atomic.Pointer[func(float64)]
}

func newDictation(ctx context.Context, cfg config.Config, actx audio.Context, device *audio.DeviceInfo) (*dictation, error) {
	gateway, info, err := transcriber.New(ctx, cfg.TranscriberOptions())
	if err != nil {
		return nil, err
	}

	d := &dictation{
		cfg:      cfg,
		info:     info,
		gateway:  gateway,
		recorder: audio.NewRecorder(actx, device, audio.DefaultCaptureConfig()),
		gate:     session.NewGate(cfg.SessionMode(), cfg.LongPress),
		cues:     beep.New(cfg.Beep),
	}
	d.recorder.SetObserver(d.observe)

	opts := session.Options{
		Mode:     cfg.SessionMode(),
		AutoCopy: cfg.AutoCopy,
		Cues:     d.cues,
	}
	if cfg.Paste {
		if err := clipboard.Init(); err != nil {
			log.Warnf("paste init failed: %v", err)
		} else {
			opts.Paste = clipboard.Paste
		}
	}
	d.ctl = session.NewController(d.recorder, gateway, clipboard.System{}, opts)
	return d, nil
}

func (d *dictation) observe(frame []byte) {
	level := audio.Level(frame)
	d.meter.Set(level)
	if fn := d.onLevel.Load(); fn != nil {
		(*fn)(level)
	}
}

// OnLevel registers an extra consumer of input levels.
func (d *dictation) OnLevel(fn func(float64)) {
	d.onLevel.Store(&fn)
}

// warm runs the engine warm-up with the loading flag raised.
func (d *dictation) warm(ctx context.Context) {
	d.ctl.SetLoading(true)
	defer d.ctl.SetLoading(false)
	if err := d.gateway.Warm(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Warnf("engine warm-up: %v", err)
	}
}

// handle feeds one key event through the gate and applies the intent.
func (d *dictation) handle(ev hotkey.Event) {
	intent := d.gate.Handle(ev)
	if intent == session.IntentNone {
		return
	}
	if intent == session.IntentStart {
		d.meter.ResetPeak()
	}
	changed, err := d.ctl.Apply(intent)
	if err != nil {
		log.Warnf("%s: %v", intent, err)
	}
	if intent == session.IntentStart && !changed {
		d.gate.Reset()
	}
}

// dispatch drains events until ctx is cancelled or the source closes.
// after, when set, runs once per handled event.
func (d *dictation) dispatch(ctx context.Context, events <-chan hotkey.Event, after func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			d.handle(ev)
			if after != nil {
				after()
			}
		}
	}
}

// close discards a recording in progress, releases the device and writes
// the session summary.
func (d *dictation) close() {
	d.ctl.Close()
	d.recorder.Terminate()
	log.SessionEnd(d.ctl.Snapshot().Count)
}
