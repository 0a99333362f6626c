package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"listen/audio"
	"listen/log"
)

// Whisper runs the whisper.cpp command line tool on each recording.
// A CUDA run that fails moves it to the CPU for good.
type Whisper struct {
	binary   string
	modelDir string
	threads  int

	// autoModel is set when the model size was picked for the device
	// rather than by the user, so a CPU fallback may shrink it.
	autoModel bool

	mu      sync.Mutex
	model   string
	modelFn string
	device  Device
}

func NewWhisper(binary, modelDir, model string, device Device, threads int) *Whisper {
	if binary == "" {
		binary = "whisper-cli"
	}
	if threads <= 0 {
		threads = 4
	}
	return &Whisper{
		binary:   binary,
		modelDir: modelDir,
		model:    model,
		modelFn:  modelFile(modelDir, model),
		device:   device,
		threads:  threads,
	}
}

func modelFile(dir, model string) string {
	return filepath.Join(dir, "ggml-"+model+".bin")
}

func (w *Whisper) Name() string { return "whisper" }

func (w *Whisper) ModelPath() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.modelFn
}

// Placement reports the device and model size currently in use.
func (w *Whisper) Placement() (Device, string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.device, w.model
}

// Warm checks that the binary and model file exist.
func (w *Whisper) Warm(context.Context) error {
	if _, err := exec.LookPath(w.binary); err != nil {
		return fmt.Errorf("whisper binary %q not found: %w", w.binary, err)
	}
	_, model := w.Placement()
	fn := w.ModelPath()
	if _, err := os.Stat(fn); err != nil {
		return fmt.Errorf("whisper model not found at %s (download ggml-%s.bin)", fn, model)
	}
	return nil
}

func (w *Whisper) args(input, outBase, lang string) []string {
	device, _ := w.Placement()
	if lang == "" {
		lang = "auto"
	}
	args := []string{
		"-m", w.ModelPath(),
		"-f", input,
		"-l", lang,
		"-t", strconv.Itoa(w.threads),
		"-oj",
		"-of", outBase,
	}
	if device != DeviceCUDA {
		args = append(args, "-ng")
	}
	return args
}

// fallbackToCPU switches later runs to the CPU. An automatically chosen
// model drops to the CPU recommendation when that file is present.
func (w *Whisper) fallbackToCPU(cause string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.device = DeviceCPU
	if w.autoModel {
		small := RecommendedModel(DeviceCPU)
		fn := modelFile(w.modelDir, small)
		if _, err := os.Stat(fn); err == nil {
			w.model, w.modelFn = small, fn
		}
	}
	log.Warnf("whisper: CUDA run failed (%s), continuing on CPU with model %s", cause, w.model)
}

func (w *Whisper) Infer(ctx context.Context, wav []byte, lang string) (*Inference, error) {
	tmp, err := os.CreateTemp("", "listen-*.wav")
	if err != nil {
		return nil, err
	}
	input := tmp.Name()
	defer os.Remove(input)
	if _, err := tmp.Write(wav); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing audio file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, err
	}

	outBase := strings.TrimSuffix(input, ".wav")
	defer os.Remove(outBase + ".json")

	stderr, err := w.run(ctx, input, outBase, lang)
	if err != nil {
		if device, _ := w.Placement(); device != DeviceCUDA || ctx.Err() != nil {
			return nil, err
		}
		w.fallbackToCPU(lastLine(stderr))
		if stderr, err = w.run(ctx, input, outBase, lang); err != nil {
			return nil, err
		}
	}

	out, err := os.ReadFile(outBase + ".json")
	if err != nil {
		return nil, fmt.Errorf("reading whisper output: %w", err)
	}
	inf, err := parseWhisperJSON(out)
	if err != nil {
		return nil, err
	}

	inf.Duration = audio.Seconds(wav)
	if lang != "" {
		inf.Language = lang
		inf.Confidence = 1
	} else if code, p, ok := detectedLanguage(stderr); ok {
		inf.Language = code
		inf.Confidence = p
	}
	return inf, nil
}

func (w *Whisper) run(ctx context.Context, input, outBase, lang string) (string, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.binary, w.args(input, outBase, lang)...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stderr.String(), fmt.Errorf("whisper.cpp failed: %w: %s", err, lastLine(stderr.String()))
	}
	return stderr.String(), nil
}

type whisperOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int `json:"from"`
			To   int `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperJSON(data []byte) (*Inference, error) {
	var wo whisperOutput
	if err := json.Unmarshal(data, &wo); err != nil {
		return nil, fmt.Errorf("whisper output parse error: %w", err)
	}
	inf := &Inference{Language: wo.Result.Language}
	for _, t := range wo.Transcription {
		if isNonSpeech(t.Text) {
			continue
		}
		inf.Segments = append(inf.Segments, Segment{
			Text:  t.Text,
			Start: float64(t.Offsets.From) / 1000,
			End:   float64(t.Offsets.To) / 1000,
		})
	}
	return inf, nil
}

// isNonSpeech matches whisper.cpp annotations such as [BLANK_AUDIO].
func isNonSpeech(text string) bool {
	t := strings.TrimSpace(text)
	return t == "" || (strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

var detectedLangRe = regexp.MustCompile(`auto-detected language: (\w+) \(p = ([0-9.]+)\)`)

func detectedLanguage(stderr string) (string, float64, bool) {
	m := detectedLangRe.FindStringSubmatch(stderr)
	if m == nil {
		return "", 0, false
	}
	p, err := strconv.ParseFloat(m[2], 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], p, true
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	if s == "" {
		return "no output"
	}
	return s
}
