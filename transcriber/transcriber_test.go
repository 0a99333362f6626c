package transcriber

import (
	"context"
	"errors"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listen/audio"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	assert.Equal(t, 195*time.Millisecond, m.Sum())
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")
	assert.Equal(t, "100", firstNonEmpty(h, "X-Missing", "X-Rate-Limit"))
	assert.Equal(t, "?", firstNonEmpty(h, "X-A", "X-B"))
}

func TestJoinSegments(t *testing.T) {
	for _, tt := range []struct {
		name string
		segs []Segment
		want string
	}{
		{"none", nil, ""},
		{"single", []Segment{{Text: " hello "}}, "hello"},
		{"several", []Segment{{Text: " hello"}, {Text: "world. "}, {Text: "again"}}, "hello world. again"},
		{"blank segments dropped", []Segment{{Text: "a"}, {Text: "   "}, {Text: "b"}}, "a b"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joinSegments(tt.segs))
		})
	}
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, clamp01(-0.5))
	assert.Equal(t, 0.0, clamp01(math.NaN()))
	assert.Equal(t, 0.4, clamp01(0.4))
	assert.Equal(t, 1.0, clamp01(1.7))
}

func TestGatewayResult(t *testing.T) {
	f := &Fake{Text: " hello world ", Language: "en", Confidence: 0.95, Duration: 1.2}
	g := NewGateway(f, "")

	res, err := g.Transcribe(context.Background(), audio.EncodeWAV(make([]byte, 32000)))
	require.NoError(t, err)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, "en", res.Language)
	assert.Equal(t, 0.95, res.LanguageConfidence)
	assert.Equal(t, 1.2, res.Duration)
	assert.Equal(t, "fake", res.Engine)
	assert.Equal(t, 1, f.Calls())
}

func TestGatewayDurationFallsBackToAudioLength(t *testing.T) {
	g := NewGateway(NewFake("x", nil), "")
	res, err := g.Transcribe(context.Background(), audio.EncodeWAV(make([]byte, 16000)))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Duration, 1e-9)
}

func TestGatewayPassesLanguageHint(t *testing.T) {
	g := NewGateway(NewFake("hola", nil), "es")
	res, err := g.Transcribe(context.Background(), audio.EncodeWAV(nil))
	require.NoError(t, err)
	assert.Equal(t, "es", res.Language)
	assert.Equal(t, "es", g.Language())
}

func TestGatewayWrapsFailures(t *testing.T) {
	cause := errors.New("CUDA out of memory")
	g := NewGateway(NewFake("", cause), "")

	_, err := g.Transcribe(context.Background(), audio.EncodeWAV(nil))
	require.Error(t, err)

	var failed *FailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "fake", failed.Engine)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "CUDA out of memory")
}

type nilEngine struct{}

func (nilEngine) Name() string { return "nil" }
func (nilEngine) Infer(context.Context, []byte, string) (*Inference, error) {
	return nil, nil
}

func TestGatewayRejectsEmptyInference(t *testing.T) {
	_, err := NewGateway(nilEngine{}, "").Transcribe(context.Background(), nil)
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.ErrorIs(t, err, errEmptyInference)
}

type concurrencyEngine struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (e *concurrencyEngine) Name() string { return "probe" }

func (e *concurrencyEngine) Infer(context.Context, []byte, string) (*Inference, error) {
	n := e.inFlight.Add(1)
	for {
		m := e.maxSeen.Load()
		if n <= m || e.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	e.inFlight.Add(-1)
	return &Inference{Segments: []Segment{{Text: "ok"}}}, nil
}

func TestGatewaySingleFlight(t *testing.T) {
	e := &concurrencyEngine{}
	g := NewGateway(e, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Transcribe(context.Background(), nil)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), e.maxSeen.Load())
}

type warmEngine struct {
	Fake
	err error
}

func (w *warmEngine) Warm(context.Context) error { return w.err }

func TestGatewayWarm(t *testing.T) {
	assert.NoError(t, NewGateway(NewFake("", nil), "").Warm(context.Background()), "engines without Warm are ready")

	g := NewGateway(&warmEngine{err: errors.New("model missing")}, "")
	err := g.Warm(context.Background())
	var failed *FailedError
	require.ErrorAs(t, err, &failed)
	assert.Contains(t, err.Error(), "model missing")
}

func TestNewSelectsEngine(t *testing.T) {
	ctx := context.Background()

	g, info, err := New(ctx, Options{Engine: "fake", FakeText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "fake", g.Engine())
	assert.Equal(t, "fake", info.Model)

	_, _, err = New(ctx, Options{Engine: "openai"})
	assert.Error(t, err, "missing key")

	g, info, err = New(ctx, Options{Engine: "openai", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "openai", g.Engine())
	assert.Equal(t, "whisper-large-v3-turbo", info.Model)

	g, info, err = New(ctx, Options{Engine: "deepgram", APIKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, "deepgram", g.Engine())
	assert.Equal(t, "nova-3", info.Model)

	_, info, err = New(ctx, Options{Engine: "whisper", Device: DeviceCPU, ModelDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, "tiny", info.Model)
	assert.Equal(t, "int8", info.ComputeType)

	_, _, err = New(ctx, Options{Engine: "whisper", Device: DeviceCPU, Model: "huge"})
	assert.Error(t, err)

	_, _, err = New(ctx, Options{Engine: "vosk"})
	assert.Error(t, err)
}
