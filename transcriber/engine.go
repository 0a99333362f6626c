package transcriber

import (
	"context"
	"fmt"
	"runtime"

	"listen/encoder"
)

var Engines = []string{"whisper", "openai", "deepgram", "fake"}

type Options struct {
	Engine string
	Lang   string

	// whisper
	Model      string
	Device     Device
	WhisperBin string
	ModelDir   string
	Threads    int

	// network engines
	APIKey      string
	BaseURL     string
	RemoteModel string
	Format      encoder.Format

	// fake
	FakeText string
}

// New builds the engine selected in opts and wraps it in a gateway. The
// compute device and model size are resolved here, once.
func New(ctx context.Context, opts Options) (*Gateway, ModelInfo, error) {
	info := ModelInfo{Engine: opts.Engine, Language: opts.Lang}

	var engine Engine
	switch opts.Engine {
	case "", "whisper":
		info.Engine = "whisper"
		info.Device = ResolveDevice(ctx, opts.Device)
		info.ComputeType = ComputeType(info.Device)
		info.Model = opts.Model
		if info.Model == "" {
			info.Model = RecommendedModel(info.Device)
		}
		if !ValidModel(info.Model) {
			return nil, info, fmt.Errorf("unknown model size %q", info.Model)
		}
		if info.Device == DeviceCUDA {
			info.GPU, _ = QueryGPU(ctx)
		}
		threads := opts.Threads
		if threads <= 0 {
			threads = min(runtime.NumCPU(), 8)
		}
		w := NewWhisper(opts.WhisperBin, opts.ModelDir, info.Model, info.Device, threads)
		w.autoModel = opts.Model == ""
		engine = w
	case "openai":
		if opts.APIKey == "" {
			return nil, info, fmt.Errorf("set GROQ_API_KEY or OPENAI_API_KEY for the openai engine")
		}
		e := NewOpenAI(opts.BaseURL, opts.APIKey, opts.RemoteModel, opts.Format)
		info.Model = e.Model()
		engine = e
	case "deepgram":
		if opts.APIKey == "" {
			return nil, info, fmt.Errorf("set DEEPGRAM_API_KEY for the deepgram engine")
		}
		e := NewDeepgram(opts.BaseURL, opts.APIKey, opts.RemoteModel, opts.Format)
		info.Model = e.Model()
		engine = e
	case "fake":
		info.Model = "fake"
		engine = NewFake(opts.FakeText, nil)
	default:
		return nil, info, fmt.Errorf("unknown engine %q", opts.Engine)
	}
	g := NewGateway(engine, opts.Lang)
	g.info = info
	return g, info, nil
}
