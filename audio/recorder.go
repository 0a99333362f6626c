package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
)

var (
	ErrAlreadyRecording = errors.New("audio: already recording")
	ErrTerminated       = errors.New("audio: recorder terminated")
	ErrNoRecording      = errors.New("audio: nothing recorded yet")
)

// Recorder owns one recording at a time. Start opens the input stream and
// buffers frames in delivery order; Stop closes the stream and returns the
// buffered frames as a WAV container.
type Recorder struct {
	ctx    Context
	config CaptureConfig

	mu         sync.Mutex // serializes Start/Stop/Terminate
	device     *DeviceInfo
	capture    CaptureDevice
	last       []byte
	terminated bool

	bufMu     sync.Mutex // guards the buffer shared with the device callback
	accepting bool
	frames    [][]byte
	size      int

	observer atomic.Pointer[func([]byte)]
}

func NewRecorder(ctx Context, device *DeviceInfo, config CaptureConfig) *Recorder {
	if config.SampleRate == 0 {
		config = DefaultCaptureConfig()
	}
	return &Recorder{ctx: ctx, device: device, config: config}
}

// SetObserver registers fn to see every captured frame. fn runs on the
// device callback and must not block; a panic inside it is swallowed.
func (r *Recorder) SetObserver(fn func(frame []byte)) {
	if fn == nil {
		r.observer.Store(nil)
		return
	}
	r.observer.Store(&fn)
}

// SetDevice changes the input device used by the next Start.
func (r *Recorder) SetDevice(device *DeviceInfo) {
	r.mu.Lock()
	r.device = device
	r.mu.Unlock()
}

func (r *Recorder) DeviceName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.device == nil {
		return "system default"
	}
	return r.device.Name
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.capture != nil
}

func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.terminated {
		return ErrTerminated
	}
	if r.capture != nil {
		return ErrAlreadyRecording
	}

	capture, err := r.ctx.NewCapture(r.device, r.config)
	if err != nil {
		return fmt.Errorf("open capture: %w", err)
	}

	r.bufMu.Lock()
	r.frames = nil
	r.size = 0
	r.accepting = true
	r.bufMu.Unlock()

	capture.SetCallback(r.onFrame)
	if err := capture.Start(); err != nil {
		r.bufMu.Lock()
		r.accepting = false
		r.bufMu.Unlock()
		capture.ClearCallback()
		capture.Close()
		return fmt.Errorf("start capture on %s: %w", capture.DeviceName(), err)
	}
	r.capture = capture
	return nil
}

func (r *Recorder) onFrame(data []byte, _ uint32) {
	r.bufMu.Lock()
	if !r.accepting {
		r.bufMu.Unlock()
		return
	}
	r.frames = append(r.frames, data)
	r.size += len(data)
	r.bufMu.Unlock()

	if fn := r.observer.Load(); fn != nil {
		notify(*fn, data)
	}
}

func notify(fn func([]byte), data []byte) {
	defer func() { _ = recover() }()
	fn(data)
}

// Stop ends the recording and returns it encoded as WAV. A Stop with no
// recording in progress returns nil.
func (r *Recorder) Stop() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.capture == nil {
		return nil
	}

	r.bufMu.Lock()
	r.accepting = false
	frames, size := r.frames, r.size
	r.frames, r.size = nil, 0
	r.bufMu.Unlock()

	r.capture.ClearCallback()
	r.capture.Stop()
	r.capture.Close()
	r.capture = nil

	pcm := make([]byte, 0, size)
	for _, f := range frames {
		pcm = append(pcm, f...)
	}
	r.last = EncodeWAV(pcm)
	return r.last
}

// SaveTo writes the most recent recording to path.
func (r *Recorder) SaveTo(path string) error {
	r.mu.Lock()
	last := r.last
	r.mu.Unlock()
	if last == nil {
		return ErrNoRecording
	}
	return os.WriteFile(path, last, 0644)
}

// Terminate discards any recording in progress and releases the device
// context. Further calls are no-ops.
func (r *Recorder) Terminate() {
	r.mu.Lock()
	if r.terminated {
		r.mu.Unlock()
		return
	}
	r.terminated = true
	capture := r.capture
	r.capture = nil
	r.mu.Unlock()

	r.bufMu.Lock()
	r.accepting = false
	r.frames, r.size = nil, 0
	r.bufMu.Unlock()

	if capture != nil {
		capture.ClearCallback()
		capture.Stop()
		capture.Close()
	}
	r.ctx.Close()
}
