package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listen/encoder"
	"listen/transcriber"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "hold", cfg.Mode)
	assert.Equal(t, "whisper", cfg.Engine)
	assert.True(t, cfg.AutoCopy)
	assert.Equal(t, 350*time.Millisecond, cfg.LongPress)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: toggle
long_press: 500ms
engine: openai
format: flac
auto_copy: false
threads: 6
`), 0644))

	cfg := Default()
	require.NoError(t, cfg.readFile(path))
	assert.Equal(t, "toggle", cfg.Mode)
	assert.Equal(t, 500*time.Millisecond, cfg.LongPress)
	assert.Equal(t, "openai", cfg.Engine)
	assert.Equal(t, "flac", cfg.Format)
	assert.False(t, cfg.AutoCopy)
	assert.Equal(t, 6, cfg.Threads)
	assert.True(t, cfg.Beep, "unset keys keep defaults")
}

func TestReadFileErrors(t *testing.T) {
	cfg := Default()
	assert.ErrorIs(t, cfg.readFile(filepath.Join(t.TempDir(), "missing.yaml")), os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mode: [unterminated"), 0644))
	assert.Error(t, cfg.readFile(bad))
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadLayersEnvironmentOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: deepgram\nlang: fr\n"), 0644))
	t.Setenv("LISTEN_LANG", "de")
	t.Setenv("DEEPGRAM_API_KEY", "dg-key")
	t.Chdir(t.TempDir())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "deepgram", cfg.Engine)
	assert.Equal(t, "de", cfg.Lang)
	assert.Equal(t, "dg-key", cfg.DeepgramKey)
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("LISTEN_TEST_DOTENV_MODEL=small\n"), 0644))
	t.Chdir(dir)
	t.Cleanup(func() { os.Unsetenv("LISTEN_TEST_DOTENV_MODEL") })

	cfgPath := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{}"), 0644))
	_, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "small", os.Getenv("LISTEN_TEST_DOTENV_MODEL"))
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(envMap(map[string]string{
		"LISTEN_MODE":      "hybrid",
		"LISTEN_LONGPRESS": "1s",
		"LISTEN_THREADS":   "3",
		"GROQ_API_KEY":     "gsk",
	})))
	assert.Equal(t, "hybrid", cfg.Mode)
	assert.Equal(t, time.Second, cfg.LongPress)
	assert.Equal(t, 3, cfg.Threads)
	assert.Equal(t, "gsk", cfg.GroqKey)

	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{"LISTEN_LONGPRESS": "soon"})))
	assert.Error(t, cfg.ApplyEnv(envMap(map[string]string{"LISTEN_THREADS": "many"})))
}

func TestValidate(t *testing.T) {
	for _, tt := range []struct {
		name   string
		mutate func(*Config)
	}{
		{"mode", func(c *Config) { c.Mode = "sticky" }},
		{"engine", func(c *Config) { c.Engine = "vosk" }},
		{"model", func(c *Config) { c.Model = "huge" }},
		{"device", func(c *Config) { c.Device = "tpu" }},
		{"format", func(c *Config) { c.Format = "mp3" }},
		{"threads", func(c *Config) { c.Threads = -1 }},
		{"long press", func(c *Config) { c.LongPress = -time.Second }},
	} {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestTranscriberOptions(t *testing.T) {
	cfg := Default()
	cfg.Engine = "openai"
	cfg.OpenAIKey = "sk"
	cfg.Format = "flac"
	opts := cfg.TranscriberOptions()
	assert.Equal(t, "sk", opts.APIKey)
	assert.Equal(t, transcriber.OpenAIBaseURL, opts.BaseURL)
	assert.Equal(t, encoder.FormatFLAC, opts.Format)

	cfg.GroqKey = "gsk"
	opts = cfg.TranscriberOptions()
	assert.Equal(t, "gsk", opts.APIKey)
	assert.Equal(t, transcriber.GroqBaseURL, opts.BaseURL)

	cfg.BaseURL = "http://localhost:8000/v1"
	assert.Equal(t, "http://localhost:8000/v1", cfg.TranscriberOptions().BaseURL)

	cfg = Default()
	cfg.Device = "cpu"
	cfg.Model = "small"
	cfg.BaseURL = "http://localhost:8000/v1"
	opts = cfg.TranscriberOptions()
	assert.Equal(t, transcriber.DeviceCPU, opts.Device)
	assert.Equal(t, "small", opts.Model)
	assert.Empty(t, opts.APIKey)
	assert.Empty(t, opts.BaseURL)
}

func TestOpenAIBaseURLDoesNotReachDeepgram(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		"LISTEN_ENGINE":    "deepgram",
		"DEEPGRAM_API_KEY": "dg",
		"OPENAI_BASE_URL":  "http://localhost:8000/v1",
	}
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))

	opts := cfg.TranscriberOptions()
	assert.Equal(t, "dg", opts.APIKey)
	assert.Empty(t, opts.BaseURL, "deepgram falls back to its own endpoint")

	env["DEEPGRAM_BASE_URL"] = "http://localhost:9000"
	require.NoError(t, cfg.ApplyEnv(func(k string) string { return env[k] }))
	assert.Equal(t, "http://localhost:9000", cfg.TranscriberOptions().BaseURL)

	cfg.Engine = "openai"
	cfg.GroqKey = "gsk"
	assert.Equal(t, "http://localhost:8000/v1", cfg.TranscriberOptions().BaseURL)
}
