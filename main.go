package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"
	"time"

	"github.com/spf13/cobra"

	"listen/audio"
	"listen/config"
	"listen/hotkey"
	"listen/log"
	"listen/session"
	"listen/shutdown"
	"listen/statusapi"
)

var version = "dev"

// flags mirrors the config fields that can be set on the command line.
// They only override the loaded config when explicitly given.
type flags struct {
	configPath string
	logPath    string

	toggle     bool
	hybrid     bool
	longPress  time.Duration
	model      string
	engine     string
	device     string
	lang       string
	format     string
	noCopy     bool
	paste      bool
	mic        string
	setup      bool
	gui        bool
	tui        bool
	noBeep     bool
	statusAddr string
}

func newRootCmd(f *flags) *cobra.Command {
	root := &cobra.Command{
		Use:           "listen",
		Short:         "Push-to-talk dictation: hold " + hotkey.Combo + ", speak, release",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return runDictation(cmd.Context(), cfg, f)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "Config file (default "+config.DefaultPath()+")")
	pf.StringVar(&f.logPath, "logpath", "", "Log directory (overrides LISTEN_LOG_PATH)")
	pf.StringVarP(&f.engine, "engine", "e", "", "Speech engine (whisper, openai, deepgram, fake)")
	pf.StringVarP(&f.model, "model", "m", "", "Whisper model size (tiny, base, small, medium, large-v3)")
	pf.StringVar(&f.device, "device", "", "Compute device (auto, cpu, cuda)")
	pf.StringVar(&f.lang, "lang", "", "Language code (empty for auto-detect)")
	pf.StringVar(&f.format, "format", "", "Upload format for network engines (wav, flac)")
	pf.StringVar(&f.mic, "mic", "", "Capture device name")
	pf.BoolVarP(&f.toggle, "toggle", "t", false, "Press once to start, again to stop")
	pf.BoolVar(&f.hybrid, "hybrid", false, "Hold to record, or tap to latch recording on")
	pf.DurationVar(&f.longPress, "longpress", 0, "Hybrid mode: presses shorter than this latch")
	pf.BoolVar(&f.noCopy, "no-copy", false, "Do not copy transcriptions to the clipboard")
	pf.BoolVar(&f.paste, "paste", false, "Paste into the focused window after copying")

	fl := root.Flags()
	fl.BoolVar(&f.setup, "setup", false, "Pick the capture device interactively")
	fl.BoolVar(&f.gui, "gui", false, "Show the desktop window (requires a build with -tags gui)")
	fl.BoolVar(&f.tui, "tui", true, "Show the terminal UI")
	fl.BoolVar(&f.noBeep, "no-beep", false, "Disable audible cues")
	fl.StringVar(&f.statusAddr, "status-addr", "", "Serve the status API on this address (e.g. 127.0.0.1:7070)")

	root.AddCommand(
		newDoctorCmd(f),
		newTestCmd(f),
		newDevicesCmd(),
		newInfoCmd(f),
		newVersionCmd(),
	)
	return root
}

// load layers the command line over the config file and environment.
func (f *flags) load(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}
	changed := cmd.Flags().Changed
	set := func(name string, dst *string, v string) {
		if changed(name) {
			*dst = v
		}
	}
	set("engine", &cfg.Engine, f.engine)
	set("model", &cfg.Model, f.model)
	set("device", &cfg.Device, f.device)
	set("lang", &cfg.Lang, f.lang)
	set("format", &cfg.Format, f.format)
	set("mic", &cfg.Mic, f.mic)
	set("status-addr", &cfg.StatusAddr, f.statusAddr)

	if changed("toggle") && f.toggle {
		cfg.Mode = "toggle"
	}
	if changed("hybrid") && f.hybrid {
		cfg.Mode = "hybrid"
	}
	if changed("longpress") {
		cfg.LongPress = f.longPress
	}
	if changed("no-copy") {
		cfg.AutoCopy = !f.noCopy
	}
	if changed("paste") {
		cfg.Paste = f.paste
	}
	if changed("no-beep") {
		cfg.Beep = !f.noBeep
	}
	if f.toggle && f.hybrid {
		return cfg, errors.New("--toggle and --hybrid are mutually exclusive")
	}
	return cfg, cfg.Validate()
}

// initLogging opens the log files and routes runtime crashes to the
// crash log. A failure only disables logging.
func initLogging(logPath string) {
	dir, err := log.ResolveDir(logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		return
	}
	log.SetDir(dir)
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		return
	}
	if f, err := log.OpenCrashFile(); err == nil {
		debug.SetCrashOutput(f, debug.CrashOptions{})
		f.Close()
	}
}

func selectDevice(actx audio.Context, cfg config.Config, setup bool) (*audio.DeviceInfo, error) {
	if setup {
		return audio.SelectDevice(actx)
	}
	if cfg.Mic == "" {
		return nil, nil
	}
	dev := audio.FindDevice(actx, cfg.Mic)
	if dev == nil {
		log.Warnf("capture device %q not found, using system default", cfg.Mic)
	}
	return dev, nil
}

func runDictation(parent context.Context, cfg config.Config, f *flags) error {
	if f.gui && !guiAvailable {
		return errors.New("built without GUI support (rebuild with -tags gui)")
	}
	initLogging(f.logPath)
	defer log.Close()

	ctx, cancel := shutdown.Context(parent)
	defer cancel()

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	device, err := selectDevice(actx, cfg, f.setup)
	if err != nil {
		actx.Close()
		return err
	}

	d, err := newDictation(ctx, cfg, actx, device)
	if err != nil {
		actx.Close()
		return err
	}
	defer d.close()

	d.cues.Init()
	log.SessionStart(d.info.Engine, d.info.Model, string(d.info.Device), cfg.Mode)

	source := hotkey.New()
	if err := source.Register(); err != nil {
		return fmt.Errorf("hotkey: %w", err)
	}
	defer source.Unregister()

	go d.warm(ctx)
	go d.dispatch(ctx, source.Events(), nil)

	if cfg.StatusAddr != "" {
		srv := statusapi.New(d.ctl)
		go func() {
			if err := srv.Serve(ctx, cfg.StatusAddr); err != nil {
				log.Errorf("status api: %v", err)
				fmt.Fprintf(os.Stderr, "status api: %v\n", err)
			}
		}()
	}

	switch {
	case f.gui:
		return runGUI(ctx, cancel, d)
	case f.tui:
		return runTUI(ctx, cancel, d, d.recorder.DeviceName())
	}
	return runPlain(ctx, d)
}

// runPlain prints each status change on its own line.
func runPlain(ctx context.Context, d *dictation) error {
	updates, unsubscribe := d.ctl.Subscribe()
	defer unsubscribe()
	info := d.gateway.Info().String()
	fmt.Println(info)
	var last string
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if now := d.gateway.Info().String(); now != info {
				info = now
				fmt.Println(info)
			}
			line := snap.StatusLine()
			if r := snap.ResultLine(); r != "" && snap.Phase != session.PhaseRecording {
				line += "\n  " + r
			}
			if snap.LastError != "" {
				line += "\n  error: " + snap.LastError
			}
			if line != last {
				fmt.Println(line)
				last = line
			}
		}
	}
}

func execute() {
	err := newRootCmd(&flags{}).ExecuteContext(context.Background())
	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

// exitCode reports err on stderr and maps it to a process status. An
// exitError has already been reported by its command.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		return int(ee)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
