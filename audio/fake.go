package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FakeContext replays a fixed PCM clip through every capture it creates.
type FakeContext struct {
	pcm      []byte
	realtime bool

	mu        sync.Mutex
	audioDone chan struct{}
	closed    bool
	opened    int
	startErr  error
}

// NewFakeContext loads a 16 kHz mono 16-bit WAV file.
func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	f, err := os.Open(wavPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", wavPath)
	}
	if dec.SampleRate != SampleRate || dec.NumChans != Channels || dec.BitDepth != BitsPerSample {
		return nil, fmt.Errorf("%s: need %d Hz mono %d-bit, got %d Hz %d ch %d-bit",
			wavPath, SampleRate, BitsPerSample, dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", wavPath, err)
	}
	return NewFakeContextPCM(pcmFromBuffer(buf), realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime, audioDone: make(chan struct{})}
}

func pcmFromBuffer(buf *goaudio.IntBuffer) []byte {
	pcm := make([]byte, len(buf.Data)*BytesPerSample)
	for i, s := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(s)))
	}
	return pcm
}

// FailStart makes every subsequent capture Start return err.
func (f *FakeContext) FailStart(err error) {
	f.mu.Lock()
	f.startErr = err
	f.mu.Unlock()
}

// AudioDone is closed once the latest capture has delivered the whole clip.
func (f *FakeContext) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

func (f *FakeContext) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

func (f *FakeContext) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeContext) NewCapture(_ *DeviceInfo, config CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	select {
	case <-f.audioDone:
		f.audioDone = make(chan struct{})
	default:
	}
	frameSize := int(config.FrameSize)
	if frameSize == 0 {
		frameSize = FrameSize
	}
	return &FakeCapture{
		pcm:       f.pcm,
		realtime:  f.realtime,
		frameSize: frameSize,
		startErr:  f.startErr,
		audioDone: f.audioDone,
	}, nil
}

type FakeCapture struct {
	pcm       []byte
	realtime  bool
	frameSize int
	startErr  error
	audioDone chan struct{}

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos int) int {
	end := min(pos+f.frameSize*BytesPerSample, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/BytesPerSample))
	return end
}

// Start delivers the clip. Without realtime the whole clip is fed before
// Start returns; with realtime frames arrive at the capture rate, followed
// by silence until Stop.
func (f *FakeCapture) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos)
			}
		}
		close(f.audioDone)
		close(f.feedDone)
		return nil
	}

	interval := time.Duration(f.frameSize) * time.Second / SampleRate
	go func() {
		defer close(f.feedDone)
		pos := 0
		silence := make([]byte, f.frameSize*BytesPerSample)
		finished := false
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			if cb := f.callback(); cb != nil {
				if pos < len(f.pcm) {
					pos = f.feedChunk(cb, pos)
				} else {
					if !finished {
						finished = true
						close(f.audioDone)
					}
					cb(silence, uint32(f.frameSize))
				}
			}
			select {
			case <-f.stopCh:
				return
			case <-ticker.C:
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	if f.stopCh == nil {
		return
	}
	select {
	case <-f.stopCh:
	default:
		close(f.stopCh)
	}
	<-f.feedDone
}

func (f *FakeCapture) Close() {}
