package log

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("LISTEN_LOG_PATH", "/tmp/listen-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/listen-env-log" {
		t.Errorf("got %q, want /tmp/listen-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("LISTEN_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Error("expected non-empty default directory")
	}
}

func TestInitCreatesFiles(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"diagnostics_log.txt", "transcribe_log.txt"} {
		path := filepath.Join(tmp, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscriptionText(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}

	TranscriptionText("hello world")

	data, err := os.ReadFile(filepath.Join(tmp, "transcribe_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, "hello world") {
		t.Errorf("transcribe_log.txt missing text, got: %q", line)
	}
	// format: "2006-01-02 15:04:05\t[pid]\ttext\n"
	if !strings.Contains(line, "\t") {
		t.Errorf("expected tab-separated format, got: %q", line)
	}
}

func readDiag(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestSessionEvents(t *testing.T) {
	tmp := setupLogDir(t)
	if err := Init(); err != nil {
		t.Fatal(err)
	}

	SessionStart("whisper", "tiny", "cpu", "hold")
	RecordingStart("rec-1")
	RecordingStop("rec-1", 32000, 1.5)
	TranscriptionDone("rec-1", Transcription{Language: "en", Confidence: 0.9, Chars: 11, Copied: true})
	NoAudio("rec-2", 200)
	TranscriptionFailed("rec-3", errors.New("engine exploded"))
	NetworkMetrics(Network{Engine: "openai", Format: "flac", ConnReused: true, RateLimit: "9/10"})
	SessionEnd(3)

	diag := readDiag(t, tmp)
	for _, want := range []string{
		"session_start", "engine=whisper", "mode=hold",
		"recording_start", "id=rec-1",
		"recording_stop", "bytes=32000",
		"transcription", "language=en", "copied=true",
		"no_audio", "transcription_failed", "engine exploded",
		"network", "conn=reused", "rate_limit=9/10",
		"session_end", "count=3",
	} {
		if !strings.Contains(diag, want) {
			t.Errorf("diagnostics log missing %q:\n%s", want, diag)
		}
	}
}

func TestNoopBeforeInit(t *testing.T) {
	tmp := setupLogDir(t)
	Info("dropped")
	TranscriptionText("dropped")
	RecordingStart("x")
	if _, err := os.Stat(filepath.Join(tmp, "diagnostics_log.txt")); !os.IsNotExist(err) {
		t.Errorf("logging before Init must not create files, stat err = %v", err)
	}
}

func TestOpenCrashFile(t *testing.T) {
	tmp := setupLogDir(t)
	f, err := OpenCrashFile()
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	if _, err := os.Stat(filepath.Join(tmp, "crash_log.txt")); err != nil {
		t.Error(err)
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
