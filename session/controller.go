package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"listen/audio"
	"listen/log"
	"listen/transcriber"
)

const (
	// MinPayloadBytes is the smallest PCM payload worth sending to an engine.
	MinPayloadBytes = 1000

	NoAudioText  = "(no audio captured)"
	NoSpeechText = "(no speech detected)"
)

// ErrBusy is returned by Start while a recording is being transcribed.
var ErrBusy = errors.New("session: transcription in progress")

type Recorder interface {
	Start() error
	Stop() []byte
}

type Transcriber interface {
	Transcribe(ctx context.Context, wav []byte) (transcriber.Result, error)
}

type Clipboard interface {
	Copy(text string) error
}

// Cues plays feedback sounds. Implementations must not block.
type Cues interface {
	Start()
	Stop()
	Error()
}

type Options struct {
	Mode     Mode
	AutoCopy bool
	// Paste, when set, runs after a successful copy.
	Paste func() error
	Cues  Cues
}

type noCues struct{}

func (noCues) Start() {}
func (noCues) Stop()  {}
func (noCues) Error() {}

// Controller coordinates one Recorder and one Transcriber. Input-side
// calls (Start, Stop, Toggle, Apply) are serialized; the transcription of
// each recording runs on its own goroutine and is the only thing that
// moves the phase from Processing back to Idle.
type Controller struct {
	rec  Recorder
	tx   Transcriber
	clip Clipboard
	opts Options

	ctl sync.Mutex // serializes input-side transitions

	mu      sync.Mutex // guards snap and subs
	snap    Snapshot
	subs    map[int]chan Snapshot
	nextSub int

	recordingSince time.Time
	wg             sync.WaitGroup
}

func NewController(rec Recorder, tx Transcriber, clip Clipboard, opts Options) *Controller {
	if opts.Cues == nil {
		opts.Cues = noCues{}
	}
	return &Controller{
		rec:  rec,
		tx:   tx,
		clip: clip,
		opts: opts,
		snap: Snapshot{Phase: PhaseIdle, Mode: opts.Mode.String()},
		subs: make(map[int]chan Snapshot),
	}
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe returns a channel that receives every new snapshot. A slow
// reader only ever misses intermediate snapshots; the latest one is kept.
func (c *Controller) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.snap
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) update(fn func(s *Snapshot)) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.snap)
	for _, ch := range c.subs {
		select {
		case ch <- c.snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- c.snap:
			default:
			}
		}
	}
	return c.snap
}

// SetLoading marks the engine as warming up.
func (c *Controller) SetLoading(loading bool) {
	c.update(func(s *Snapshot) { s.Loading = loading })
}

// Apply executes an intent produced by a Gate. It reports whether the
// intent changed the phase.
func (c *Controller) Apply(intent Intent) (bool, error) {
	switch intent {
	case IntentStart:
		err := c.Start()
		return err == nil, ignoreBusy(err)
	case IntentStop:
		return c.Stop(), nil
	case IntentToggle:
		return c.Toggle()
	}
	return false, nil
}

func ignoreBusy(err error) error {
	if errors.Is(err, ErrBusy) || errors.Is(err, audio.ErrAlreadyRecording) {
		return nil
	}
	return err
}

// Start begins a recording when idle. While recording it does nothing and
// while processing it returns ErrBusy. A device failure is returned and
// leaves the controller idle.
func (c *Controller) Start() error {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	return c.start()
}

func (c *Controller) start() error {
	switch c.Snapshot().Phase {
	case PhaseRecording:
		return audio.ErrAlreadyRecording
	case PhaseProcessing:
		return ErrBusy
	}

	if err := c.rec.Start(); err != nil {
		log.Errorf("recording start failed: %v", err)
		c.opts.Cues.Error()
		c.update(func(s *Snapshot) { s.LastError = "microphone: " + err.Error() })
		return err
	}

	id := uuid.NewString()
	c.recordingSince = time.Now()
	c.update(func(s *Snapshot) {
		s.Phase = PhaseRecording
		s.RecordingID = id
		s.Copied = false
	})
	c.opts.Cues.Start()
	log.RecordingStart(id)
	return nil
}

// Stop ends the current recording and hands it to a transcription
// goroutine. It reports false when nothing was recording.
func (c *Controller) Stop() bool {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	return c.stop()
}

func (c *Controller) stop() bool {
	if c.Snapshot().Phase != PhaseRecording {
		return false
	}
	wav := c.rec.Stop()
	held := time.Since(c.recordingSince)

	snap := c.update(func(s *Snapshot) { s.Phase = PhaseProcessing })
	c.opts.Cues.Stop()
	log.RecordingStop(snap.RecordingID, audio.PayloadSize(wav), held.Seconds())

	c.wg.Add(1)
	go c.process(snap.RecordingID, wav)
	return true
}

// Toggle starts when idle and stops when recording.
func (c *Controller) Toggle() (bool, error) {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	switch c.Snapshot().Phase {
	case PhaseIdle:
		err := c.start()
		return err == nil, err
	case PhaseRecording:
		return c.stop(), nil
	}
	return false, nil
}

type outcome struct {
	result  transcriber.Result
	noAudio bool
	err     error
}

func (c *Controller) process(id string, wav []byte) {
	defer c.wg.Done()

	start := time.Now()
	out := c.transcribe(wav)
	if out.err != nil {
		c.fail(id, out.err)
		return
	}

	text := out.result.Text
	copied := false
	switch {
	case out.noAudio:
		text = NoAudioText
		log.NoAudio(id, audio.PayloadSize(wav))
	case text == "":
		text = NoSpeechText
	default:
		copied = c.copy(text)
		log.TranscriptionText(text)
	}
	log.TranscriptionDone(id, log.Transcription{
		Engine:     out.result.Engine,
		Language:   out.result.Language,
		Confidence: out.result.LanguageConfidence,
		AudioS:     out.result.Duration,
		Chars:      len(out.result.Text),
		ElapsedMs:  float64(time.Since(start).Milliseconds()),
		Copied:     copied,
	})

	c.update(func(s *Snapshot) {
		s.Phase = PhaseIdle
		s.LastText = text
		s.LastError = ""
		s.Language = out.result.Language
		s.LanguageConfidence = out.result.LanguageConfidence
		s.Duration = out.result.Duration
		s.Copied = copied
		s.Count++
	})
}

func (c *Controller) transcribe(wav []byte) (out outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome{err: fmt.Errorf("transcription panic: %v", r)}
		}
	}()
	if audio.PayloadSize(wav) < MinPayloadBytes {
		return outcome{noAudio: true}
	}
	res, err := c.tx.Transcribe(context.Background(), wav)
	return outcome{result: res, err: err}
}

func (c *Controller) copy(text string) bool {
	if !c.opts.AutoCopy || c.clip == nil {
		return false
	}
	if err := c.clip.Copy(text); err != nil {
		log.Warnf("clipboard copy failed: %v", err)
		return false
	}
	if c.opts.Paste != nil {
		if err := c.opts.Paste(); err != nil {
			log.Warnf("paste failed: %v", err)
		}
	}
	return true
}

func (c *Controller) fail(id string, err error) {
	log.TranscriptionFailed(id, err)
	c.opts.Cues.Error()
	c.update(func(s *Snapshot) {
		s.Phase = PhaseIdle
		s.LastError = err.Error()
		s.Copied = false
	})
}

// Wait blocks until the in-flight transcription, if any, has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close discards a recording in progress. It does not wait for an
// in-flight transcription.
func (c *Controller) Close() {
	c.ctl.Lock()
	defer c.ctl.Unlock()
	if c.Snapshot().Phase == PhaseRecording {
		c.rec.Stop()
		c.update(func(s *Snapshot) { s.Phase = PhaseIdle })
	}
}
