package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       atomic.Bool
	pid            int
	dir            string
)

// ResolveDir picks the log directory: flag, then LISTEN_LOG_PATH, then the
// OS default.
func ResolveDir(flagPath string) (string, error) {
	if flagPath != "" {
		return absPath(flagPath)
	}
	if envPath := os.Getenv("LISTEN_LOG_PATH"); envPath != "" {
		return absPath(envPath)
	}
	return getDefaultDir()
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagFile, err = os.OpenFile(filepath.Join(dir, "diagnostics_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	transcribeFile, err = os.OpenFile(filepath.Join(dir, "transcribe_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady.Store(true)
	return nil
}

// OpenCrashFile opens the file the runtime writes fatal errors to.
func OpenCrashFile() (*os.File, error) {
	return os.OpenFile(filepath.Join(dir, "crash_log.txt"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	logReady.Store(false)
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
}

func Info(msg string) {
	if logReady.Load() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady.Load() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady.Load() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady.Load() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady.Load() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionStart(engine, model, device, mode string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("engine", engine).
		Str("model", model).
		Str("device", device).
		Str("mode", mode).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Int("count", count).
		Msg("session_end")
}

func RecordingStart(id string) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("id", id).Msg("recording_start")
}

func RecordingStop(id string, bytes int, seconds float64) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("id", id).
		Int("bytes", bytes).
		Float64("held_s", seconds).
		Msg("recording_stop")
}

func NoAudio(id string, bytes int) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().Str("id", id).Int("bytes", bytes).Msg("no_audio")
}

type Transcription struct {
	Engine     string
	Language   string
	Confidence float64
	AudioS     float64
	Chars      int
	ElapsedMs  float64
	Copied     bool
}

func TranscriptionDone(id string, t Transcription) {
	if !logReady.Load() {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("engine", t.Engine).
		Str("language", t.Language).
		Float64("confidence", t.Confidence).
		Float64("audio_s", t.AudioS).
		Int("chars", t.Chars).
		Float64("elapsed_ms", t.ElapsedMs).
		Bool("copied", t.Copied).
		Msg("transcription")
}

func TranscriptionFailed(id string, err error) {
	if !logReady.Load() {
		return
	}
	diagLog.Error().Str("id", id).Err(err).Msg("transcription_failed")
}

// Network describes the upload of one recording to a network engine.
type Network struct {
	Engine         string
	Format         string
	ConnReused     bool
	TLSProto       string
	RawKB          float64
	UploadKB       float64
	CompressionPct float64
	EncodeMs       float64
	DNSMs          float64
	TLSMs          float64
	TTFBMs         float64
	TotalMs        float64
	RateLimit      string
}

func NetworkMetrics(n Network) {
	if !logReady.Load() {
		return
	}

	connStatus := "new"
	if n.ConnReused {
		connStatus = "reused"
	}

	ev := diagLog.Info().
		Str("engine", n.Engine).
		Str("format", n.Format).
		Str("conn", connStatus)
	if n.TLSProto != "" {
		ev = ev.Str("tls_proto", n.TLSProto)
	}
	if n.RateLimit != "" {
		ev = ev.Str("rate_limit", n.RateLimit)
	}
	ev.Float64("raw_kb", n.RawKB).
		Float64("upload_kb", n.UploadKB).
		Float64("compression_pct", n.CompressionPct).
		Float64("encode_ms", n.EncodeMs).
		Float64("dns_ms", n.DNSMs).
		Float64("tls_ms", n.TLSMs).
		Float64("ttfb_ms", n.TTFBMs).
		Float64("total_ms", n.TotalMs).
		Msg("network")
}

func TranscriptionText(text string) {
	if !logReady.Load() {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	if transcribeFile == nil {
		return
	}
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}
