package transcriber

import (
	"context"
	"sync/atomic"
	"time"
)

// Fake returns a fixed inference. It is used by tests and the headless
// test mode.
type Fake struct {
	Text       string
	Language   string
	Confidence float64
	Duration   float64
	Err        error
	Delay      time.Duration

	calls atomic.Int32
}

func NewFake(text string, err error) *Fake {
	return &Fake{Text: text, Language: "en", Confidence: 1, Err: err}
}

func (f *Fake) Name() string { return "fake" }

func (f *Fake) Calls() int { return int(f.calls.Load()) }

func (f *Fake) Infer(ctx context.Context, _ []byte, lang string) (*Inference, error) {
	f.calls.Add(1)
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	language := f.Language
	if lang != "" {
		language = lang
	}
	return &Inference{
		Segments:   []Segment{{Text: f.Text}},
		Language:   language,
		Confidence: f.Confidence,
		Duration:   f.Duration,
	}, nil
}
