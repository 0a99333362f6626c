package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"listen/encoder"
	"listen/session"
	"listen/transcriber"
)

// Config holds every setting of the dictation loop. Sources are layered:
// defaults, YAML file, .env, environment, then command line flags.
type Config struct {
	Mode      string        `yaml:"mode"`
	LongPress time.Duration `yaml:"long_press"`

	Engine      string `yaml:"engine"`
	Model       string `yaml:"model"`
	Device      string `yaml:"device"`
	Lang        string `yaml:"lang"`
	Format      string `yaml:"format"`
	WhisperBin  string `yaml:"whisper_bin"`
	ModelDir    string `yaml:"model_dir"`
	Threads     int    `yaml:"threads"`
	BaseURL     string `yaml:"base_url"`
	DeepgramURL string `yaml:"deepgram_base_url"`
	RemoteModel string `yaml:"remote_model"`
	FakeText    string `yaml:"fake_text"`

	AutoCopy   bool   `yaml:"auto_copy"`
	Paste      bool   `yaml:"paste"`
	Beep       bool   `yaml:"beep"`
	Mic        string `yaml:"mic"`
	StatusAddr string `yaml:"status_addr"`

	GroqKey     string `yaml:"-"`
	OpenAIKey   string `yaml:"-"`
	DeepgramKey string `yaml:"-"`
}

func Default() Config {
	return Config{
		Mode:      session.ModeHold.String(),
		LongPress: session.DefaultLongPress,
		Engine:    "whisper",
		Device:    string(transcriber.DeviceAuto),
		Format:    string(encoder.FormatWAV),
		ModelDir:  defaultModelDir(),
		FakeText:  "hello world",
		AutoCopy:  true,
		Beep:      true,
	}
}

func defaultModelDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(dir, "listen", "models")
}

// DefaultPath is the config file read when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "listen", "config.yaml")
}

// Load builds a Config from path (or DefaultPath when empty), the .env file
// in the working directory and the environment. A missing default file is
// not an error; a missing explicit one is.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return cfg, err
			}
		}
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from LISTEN_* variables and the engine keys.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	str("LISTEN_MODE", &c.Mode)
	str("LISTEN_ENGINE", &c.Engine)
	str("LISTEN_MODEL", &c.Model)
	str("LISTEN_DEVICE", &c.Device)
	str("LISTEN_LANG", &c.Lang)
	str("LISTEN_FORMAT", &c.Format)
	str("LISTEN_WHISPER_BIN", &c.WhisperBin)
	str("LISTEN_MODEL_DIR", &c.ModelDir)
	str("LISTEN_MIC", &c.Mic)
	str("LISTEN_STATUS_ADDR", &c.StatusAddr)
	str("LISTEN_FAKE_TEXT", &c.FakeText)
	str("OPENAI_BASE_URL", &c.BaseURL)
	str("DEEPGRAM_BASE_URL", &c.DeepgramURL)
	str("GROQ_API_KEY", &c.GroqKey)
	str("OPENAI_API_KEY", &c.OpenAIKey)
	str("DEEPGRAM_API_KEY", &c.DeepgramKey)

	if v := getenv("LISTEN_LONGPRESS"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("LISTEN_LONGPRESS: %w", err)
		}
		c.LongPress = d
	}
	if v := getenv("LISTEN_THREADS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LISTEN_THREADS: %w", err)
		}
		c.Threads = n
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if _, err := session.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.LongPress < 0 {
		errs = append(errs, fmt.Errorf("long press must not be negative"))
	}
	if !validEngine(c.Engine) {
		errs = append(errs, fmt.Errorf("unknown engine %q (use whisper, openai, deepgram or fake)", c.Engine))
	}
	if c.Model != "" && !transcriber.ValidModel(c.Model) {
		errs = append(errs, fmt.Errorf("unknown model size %q", c.Model))
	}
	if _, err := transcriber.ParseDevice(c.Device); err != nil {
		errs = append(errs, err)
	}
	if _, err := encoder.ParseFormat(c.Format); err != nil {
		errs = append(errs, err)
	}
	if c.Threads < 0 {
		errs = append(errs, fmt.Errorf("threads must not be negative"))
	}
	return errors.Join(errs...)
}

func validEngine(name string) bool {
	for _, e := range transcriber.Engines {
		if e == name {
			return true
		}
	}
	return false
}

// SessionMode returns the parsed mode. Call Validate first.
func (c Config) SessionMode() session.Mode {
	m, _ := session.ParseMode(c.Mode)
	return m
}

// TranscriberOptions maps the config onto the engine factory. For the
// openai engine a Groq key wins over an OpenAI key. BaseURL only applies
// to the openai engine; deepgram reads DeepgramURL.
func (c Config) TranscriberOptions() transcriber.Options {
	device, _ := transcriber.ParseDevice(c.Device)
	format, _ := encoder.ParseFormat(c.Format)
	opts := transcriber.Options{
		Engine:      c.Engine,
		Lang:        c.Lang,
		Model:       c.Model,
		Device:      device,
		WhisperBin:  c.WhisperBin,
		ModelDir:    c.ModelDir,
		Threads:     c.Threads,
		RemoteModel: c.RemoteModel,
		Format:      format,
		FakeText:    c.FakeText,
	}
	switch c.Engine {
	case "openai":
		switch {
		case c.GroqKey != "":
			opts.APIKey = c.GroqKey
			opts.BaseURL = transcriber.GroqBaseURL
		case c.OpenAIKey != "":
			opts.APIKey = c.OpenAIKey
			opts.BaseURL = transcriber.OpenAIBaseURL
		}
		if c.BaseURL != "" {
			opts.BaseURL = c.BaseURL
		}
	case "deepgram":
		opts.APIKey = c.DeepgramKey
		opts.BaseURL = c.DeepgramURL
	}
	return opts
}
