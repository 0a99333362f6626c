package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func rampPCM(samples int) []byte {
	pcm := make([]byte, samples*BytesPerSample)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(i%2000-1000)))
	}
	return pcm
}

func TestEncodeWAVLength(t *testing.T) {
	const frameBytes = FrameSize * BytesPerSample
	for _, n := range []int{0, 1, 3, 17} {
		wav := EncodeWAV(make([]byte, n*frameBytes))
		if want := WAVHeaderSize + n*frameBytes; len(wav) != want {
			t.Errorf("%d frames: len = %d, want %d", n, len(wav), want)
		}
		if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
			t.Errorf("%d frames: malformed header %q", n, wav[:44])
		}
		if got := binary.LittleEndian.Uint32(wav[40:44]); int(got) != n*frameBytes {
			t.Errorf("%d frames: data size = %d", n, got)
		}
	}
}

func TestEncodeWAVRoundTripsThroughDecoder(t *testing.T) {
	pcm := rampPCM(3000)
	dec := wav.NewDecoder(bytes.NewReader(EncodeWAV(pcm)))
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	if dec.SampleRate != SampleRate || dec.NumChans != Channels || dec.BitDepth != BitsPerSample {
		t.Fatalf("format = %d Hz %d ch %d bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}
	if !bytes.Equal(pcmFromBuffer(buf), pcm) {
		t.Error("decoded samples differ from input")
	}
}

func TestPayloadHelpers(t *testing.T) {
	w := EncodeWAV(make([]byte, 32000))
	if got := PayloadSize(w); got != 32000 {
		t.Errorf("PayloadSize = %d", got)
	}
	if got := Seconds(w); got != 1.0 {
		t.Errorf("Seconds = %v, want 1", got)
	}
	if PCM(EncodeWAV(nil)) != nil {
		t.Error("empty container should have no PCM")
	}
}

func TestLevel(t *testing.T) {
	if got := Level(make([]byte, 2048)); got != 0 {
		t.Errorf("silence level = %v", got)
	}
	loud := make([]byte, 2048)
	for i := 0; i < len(loud); i += 2 {
		binary.LittleEndian.PutUint16(loud[i:], uint16(int16(32767)))
	}
	if got := Level(loud); got != 1 {
		t.Errorf("full scale level = %v, want 1", got)
	}
	if got := Level(nil); got != 0 {
		t.Errorf("empty level = %v", got)
	}
}

func TestRecorderCapturesFramesInOrder(t *testing.T) {
	pcm := rampPCM(FrameSize*4 + 100)
	ctx := NewFakeContextPCM(pcm, false)
	rec := NewRecorder(ctx, nil, DefaultCaptureConfig())
	defer rec.Terminate()

	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	if !rec.Recording() {
		t.Fatal("expected Recording() after Start")
	}
	out := rec.Stop()
	if rec.Recording() {
		t.Error("still recording after Stop")
	}
	if len(out) != WAVHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), WAVHeaderSize+len(pcm))
	}
	if !bytes.Equal(PCM(out), pcm) {
		t.Error("captured PCM differs from device input")
	}
}

func TestRecorderFreshBufferPerRecording(t *testing.T) {
	pcm := rampPCM(FrameSize * 2)
	ctx := NewFakeContextPCM(pcm, false)
	rec := NewRecorder(ctx, nil, DefaultCaptureConfig())
	defer rec.Terminate()

	for i := 0; i < 2; i++ {
		if err := rec.Start(); err != nil {
			t.Fatal(err)
		}
		if got := PayloadSize(rec.Stop()); got != len(pcm) {
			t.Errorf("recording %d: payload = %d, want %d", i, got, len(pcm))
		}
	}
	if ctx.Opened() != 2 {
		t.Errorf("opened %d streams, want 2", ctx.Opened())
	}
}

func TestRecorderStartTwice(t *testing.T) {
	rec := NewRecorder(NewFakeContextPCM(nil, false), nil, DefaultCaptureConfig())
	defer rec.Terminate()

	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	if err := rec.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Errorf("second Start = %v, want ErrAlreadyRecording", err)
	}
}

func TestRecorderStopWithoutStart(t *testing.T) {
	rec := NewRecorder(NewFakeContextPCM(nil, false), nil, DefaultCaptureConfig())
	defer rec.Terminate()
	if out := rec.Stop(); out != nil {
		t.Errorf("Stop without Start = %d bytes, want nil", len(out))
	}
}

func TestRecorderEmptyRecording(t *testing.T) {
	rec := NewRecorder(NewFakeContextPCM(nil, false), nil, DefaultCaptureConfig())
	defer rec.Terminate()
	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	out := rec.Stop()
	if len(out) != WAVHeaderSize {
		t.Errorf("empty recording = %d bytes, want bare header", len(out))
	}
}

func TestRecorderStartFailure(t *testing.T) {
	ctx := NewFakeContextPCM(nil, false)
	ctx.FailStart(errors.New("permission denied"))
	rec := NewRecorder(ctx, nil, DefaultCaptureConfig())
	defer rec.Terminate()

	if err := rec.Start(); err == nil {
		t.Fatal("expected error")
	}
	if rec.Recording() {
		t.Error("recorder should stay idle after a failed start")
	}

	ctx.FailStart(nil)
	if err := rec.Start(); err != nil {
		t.Errorf("retry after failure: %v", err)
	}
}

func TestRecorderObserver(t *testing.T) {
	pcm := rampPCM(FrameSize * 3)
	rec := NewRecorder(NewFakeContextPCM(pcm, false), nil, DefaultCaptureConfig())
	defer rec.Terminate()

	var calls atomic.Int32
	rec.SetObserver(func(frame []byte) {
		calls.Add(1)
		panic("observer failure must not reach the device callback")
	})
	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	out := rec.Stop()
	if calls.Load() != 3 {
		t.Errorf("observer saw %d frames, want 3", calls.Load())
	}
	if PayloadSize(out) != len(pcm) {
		t.Error("observer panic dropped frames")
	}
}

func TestRecorderTerminate(t *testing.T) {
	ctx := NewFakeContextPCM(rampPCM(FrameSize), true)
	rec := NewRecorder(ctx, nil, DefaultCaptureConfig())
	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	rec.Terminate()
	rec.Terminate()
	if !ctx.Closed() {
		t.Error("context not closed")
	}
	if err := rec.Start(); !errors.Is(err, ErrTerminated) {
		t.Errorf("Start after Terminate = %v", err)
	}
}

func TestRecorderSaveTo(t *testing.T) {
	rec := NewRecorder(NewFakeContextPCM(rampPCM(FrameSize), false), nil, DefaultCaptureConfig())
	defer rec.Terminate()
	path := filepath.Join(t.TempDir(), "last.wav")

	if err := rec.SaveTo(path); !errors.Is(err, ErrNoRecording) {
		t.Errorf("SaveTo before recording = %v", err)
	}
	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	want := rec.Stop()
	if err := rec.SaveTo(path); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Error("saved file differs from last recording")
	}
}

func TestNewFakeContextFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, SampleRate, BitsPerSample, Channels, 1)
	data := make([]int, 4000)
	for i := range data {
		data[i] = i%200 - 100
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: SampleRate},
		Data:           data,
		SourceBitDepth: BitsPerSample,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()

	ctx, err := NewFakeContext(path, false)
	if err != nil {
		t.Fatal(err)
	}
	rec := NewRecorder(ctx, nil, DefaultCaptureConfig())
	defer rec.Terminate()
	if err := rec.Start(); err != nil {
		t.Fatal(err)
	}
	<-ctx.AudioDone()
	if got := PayloadSize(rec.Stop()); got != len(data)*BytesPerSample {
		t.Errorf("payload = %d, want %d", got, len(data)*BytesPerSample)
	}
}

func TestNewFakeContextRejectsWrongFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stereo.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, 44100, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: 44100},
		Data:           make([]int, 200),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	enc.Close()
	f.Close()

	if _, err := NewFakeContext(path, false); err == nil {
		t.Error("expected format error")
	}
}

func TestDecodePickerKey(t *testing.T) {
	for _, tt := range []struct {
		in   []byte
		want pickerKey
	}{
		{[]byte{'\r'}, pickerAccept},
		{[]byte{3}, pickerCancel},
		{[]byte{'j'}, pickerDown},
		{[]byte{'k'}, pickerUp},
		{[]byte{0x1b, '[', 'A'}, pickerUp},
		{[]byte{0x1b, '[', 'B'}, pickerDown},
		{[]byte{0x1b, '[', 'C'}, pickerNone},
		{[]byte{'x'}, pickerNone},
		{nil, pickerNone},
	} {
		if got := decodePickerKey(tt.in); got != tt.want {
			t.Errorf("decodePickerKey(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("AirPods Pro") {
		t.Error("AirPods should be bluetooth")
	}
	if IsBluetooth("Built-in Microphone") {
		t.Error("built-in mic flagged as bluetooth")
	}
}
