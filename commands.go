package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"listen/audio"
	"listen/config"
	"listen/doctor"
	"listen/hotkey"
	"listen/transcriber"
)

// exitError ends the process with its code once every deferred cleanup of
// the command has run.
type exitError int

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func newDoctorCmd(f *flags) *cobra.Command {
	var recordFor time.Duration
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check hotkey, microphone, speech engine and clipboard interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("audio: %w", err)
			}
			device, err := selectDevice(actx, cfg, false)
			if err != nil {
				actx.Close()
				return err
			}
			recorder := audio.NewRecorder(actx, device, audio.DefaultCaptureConfig())
			defer recorder.Terminate()

			gateway, info, err := transcriber.New(cmd.Context(), cfg.TranscriberOptions())
			if err != nil {
				return err
			}
			fmt.Println(info.String())
			fmt.Println("mic:     ", recorder.DeviceName())

			code := doctor.Run(doctor.Options{
				Source:      hotkey.New(),
				Recorder:    recorder,
				Gateway:     gateway,
				Paste:       cfg.Paste,
				In:          os.Stdin,
				Out:         os.Stdout,
				RecordFor:   recordFor,
				Interactive: true,
			})
			if code != 0 {
				return exitError(code)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&recordFor, "record", 3*time.Second, "How long the microphone check records")
	return cmd
}

func newTestCmd(f *flags) *cobra.Command {
	var realtime bool
	cmd := &cobra.Command{
		Use:   "test <wav>",
		Short: "Run headless against a WAV file, driven by commands on stdin",
		Long: `Replays a 16 kHz mono WAV file as the microphone and reads one command per
line from stdin: KEYDOWN, KEYUP, WAIT, WAIT_AUDIO_DONE, SLEEP <ms>, QUIT.`,
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			return runTestMode(cmd.Context(), cfg, f.logPath, args[0], realtime, os.Stdin)
		},
	}
	cmd.Flags().BoolVar(&realtime, "realtime", false, "Deliver the clip at capture speed instead of all at once")
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			actx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("audio: %w", err)
			}
			defer actx.Close()
			devices, err := actx.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Println("No capture devices found")
				return nil
			}
			for _, d := range devices {
				tag := ""
				if audio.IsBluetooth(d.Name) {
					tag = " (bluetooth)"
				}
				fmt.Printf("%s%s\n", d.Name, tag)
			}
			return nil
		},
	}
}

func newInfoCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the resolved engine, model and compute device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load(cmd)
			if err != nil {
				return err
			}
			_, info, err := transcriber.New(cmd.Context(), cfg.TranscriberOptions())
			if err != nil {
				return err
			}
			fmt.Println(info.String())
			fmt.Println("mode:    ", cfg.Mode)
			path := f.configPath
			if path == "" {
				path = config.DefaultPath()
			}
			fmt.Println("config:  ", path)
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("listen", version)
		},
	}
}
