package transcriber

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"listen/audio"
	"listen/encoder"
	"listen/log"
)

type Segment struct {
	Text         string
	Start        float64
	End          float64
	AvgLogProb   float64
	NoSpeechProb float64
}

// Inference is the raw answer of an engine for one recording.
type Inference struct {
	Segments   []Segment
	Language   string
	Confidence float64
	Duration   float64

	// Set by network engines only.
	Network   *NetworkMetrics
	RateLimit string
	Format    encoder.Format
	Upload    encoder.Stats
}

// Result is what callers of the gateway see.
type Result struct {
	Text               string
	Language           string
	LanguageConfidence float64
	Duration           float64
	Engine             string
	Elapsed            time.Duration
}

type Engine interface {
	Name() string
	Infer(ctx context.Context, wav []byte, lang string) (*Inference, error)
}

// Warmer is implemented by engines with a slow first call.
type Warmer interface {
	Warm(ctx context.Context) error
}

// FailedError wraps any failure of the speech engine.
type FailedError struct {
	Engine string
	Err    error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("transcription failed (%s): %v", e.Engine, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

var errEmptyInference = errors.New("engine returned no result")

// Gateway serializes calls to one engine. A second Transcribe blocks until
// the first returns.
type Gateway struct {
	mu     sync.Mutex
	engine Engine
	lang   string
	info   ModelInfo
}

// placer is implemented by engines that can move to another device at
// runtime.
type placer interface {
	Placement() (Device, string)
}

func NewGateway(engine Engine, lang string) *Gateway {
	return &Gateway{engine: engine, lang: lang}
}

func (g *Gateway) Engine() string { return g.engine.Name() }

func (g *Gateway) Language() string { return g.lang }

// Info returns the configuration the gateway started with, updated with
// the device and model the engine is using now.
func (g *Gateway) Info() ModelInfo {
	info := g.info
	p, ok := g.engine.(placer)
	if !ok {
		return info
	}
	device, model := p.Placement()
	if device != info.Device {
		info.Device = device
		info.ComputeType = ComputeType(device)
		info.GPU = nil
	}
	info.Model = model
	return info
}

// Warm prepares the engine if it supports it.
func (g *Gateway) Warm(ctx context.Context) error {
	w, ok := g.engine.(Warmer)
	if !ok {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := w.Warm(ctx); err != nil {
		return &FailedError{Engine: g.engine.Name(), Err: err}
	}
	return nil
}

func (g *Gateway) Transcribe(ctx context.Context, wav []byte) (Result, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	inf, err := g.engine.Infer(ctx, wav, g.lang)
	if err == nil && inf == nil {
		err = errEmptyInference
	}
	if err != nil {
		return Result{}, &FailedError{Engine: g.engine.Name(), Err: err}
	}

	res := Result{
		Text:               joinSegments(inf.Segments),
		Language:           inf.Language,
		LanguageConfidence: clamp01(inf.Confidence),
		Duration:           inf.Duration,
		Engine:             g.engine.Name(),
		Elapsed:            time.Since(start),
	}
	if res.Duration <= 0 {
		res.Duration = audio.Seconds(wav)
	}
	if inf.Network != nil {
		logNetwork(g.engine.Name(), inf)
	}
	return res, nil
}

func joinSegments(segs []Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return min(v, 1)
}

func logNetwork(engine string, inf *Inference) {
	m := inf.Network
	log.NetworkMetrics(log.Network{
		Engine:         engine,
		Format:         string(inf.Format),
		ConnReused:     m.ConnReused,
		TLSProto:       m.TLSProtocol,
		RawKB:          float64(inf.Upload.RawBytes) / 1024,
		UploadKB:       float64(inf.Upload.EncodedBytes) / 1024,
		CompressionPct: inf.Upload.CompressionPct(),
		EncodeMs:       ms(inf.Upload.EncodeTime),
		DNSMs:          ms(m.DNS),
		TLSMs:          ms(m.TLS),
		TTFBMs:         ms(m.TTFB),
		TotalMs:        ms(m.Total),
		RateLimit:      inf.RateLimit,
	})
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}
