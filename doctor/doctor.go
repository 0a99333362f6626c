package doctor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"listen/audio"
	"listen/clipboard"
	"listen/hotkey"
	"listen/session"
	"listen/transcriber"
)

type Recorder interface {
	Start() error
	Stop() []byte
}

type Gateway interface {
	Warm(ctx context.Context) error
	Transcribe(ctx context.Context, wav []byte) (transcriber.Result, error)
}

type Options struct {
	Source   hotkey.Source
	Recorder Recorder
	Gateway  Gateway
	// CheckClipboard defaults to clipboard.Verify.
	CheckClipboard func() (string, error)
	Paste          bool

	In  io.Reader
	Out io.Writer

	RecordFor     time.Duration
	HotkeyTimeout time.Duration
	// Interactive resets the terminal and exits on Ctrl+C.
	Interactive bool
}

type doctor struct {
	Options
	in *bufio.Reader
}

// Run executes the checks in order, stopping at the first failure, and
// returns an exit code (0=all pass, 1=any fail).
func Run(opts Options) int {
	if opts.CheckClipboard == nil {
		opts.CheckClipboard = clipboard.Verify
	}
	if opts.HotkeyTimeout == 0 {
		opts.HotkeyTimeout = 10 * time.Second
	}
	if opts.Interactive {
		resetTerminal()
		exitOnInterrupt()
	}
	d := &doctor{Options: opts, in: bufio.NewReader(opts.In)}

	d.println("listen doctor - interactive system diagnostics")
	d.println("==============================================")

	allPass := d.checkHotkey()
	var wav []byte
	if allPass {
		wav, allPass = d.checkMicrophone()
	}
	if allPass {
		allPass = d.checkTranscription(wav)
	}
	if allPass {
		allPass = d.checkClipboard()
	}

	d.println()
	if allPass {
		d.println("All checks passed!")
		return 0
	}
	d.println("Some checks failed. See details above.")
	return 1
}

func (d *doctor) println(a ...any) { fmt.Fprintln(d.Out, a...) }

func (d *doctor) printf(format string, a ...any) { fmt.Fprintf(d.Out, format, a...) }

func (d *doctor) readLine() string {
	line, _ := d.in.ReadString('\n')
	return strings.TrimSpace(line)
}

func (d *doctor) confirm(question string) bool {
	d.printf("%s [y/n]: ", question)
	answer := strings.ToLower(d.readLine())
	return answer == "y" || answer == "yes"
}

func (d *doctor) checkHotkey() bool {
	d.println()
	d.println("[1/4] Hotkey detection")
	d.printf("Press %s...\n", hotkey.Combo)

	if err := d.Source.Register(); err != nil {
		d.printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer d.Source.Unregister()

	gate := session.NewGate(session.ModeHold, 0)
	timeout := time.After(d.HotkeyTimeout)
	for pressed := false; ; {
		select {
		case ev := <-d.Source.Events():
			switch gate.Edge(ev) {
			case session.SignalBegin:
				d.println("  PASS: hotkey detected")
				pressed = true
				timeout = time.After(5 * time.Second)
			case session.SignalEnd:
				if d.Interactive {
					resetTerminal()
				}
				return true
			}
		case <-timeout:
			if pressed {
				return true
			}
			d.println("  FAIL: timeout waiting for hotkey")
			return false
		}
	}
}

func (d *doctor) checkMicrophone() ([]byte, bool) {
	d.println()
	d.println("[2/4] Microphone")
	d.printf("Press Enter and speak for %.0f seconds...", d.RecordFor.Seconds())
	d.readLine()

	if err := d.Recorder.Start(); err != nil {
		d.printf("  FAIL: cannot open microphone: %v\n", err)
		return nil, false
	}
	d.printf("  Recording")
	for deadline := time.Now().Add(d.RecordFor); time.Now().Before(deadline); {
		time.Sleep(min(500*time.Millisecond, time.Until(deadline)))
		d.printf(".")
	}
	wav := d.Recorder.Stop()
	d.println(" done")

	pcm := audio.PCM(wav)
	if len(pcm) < session.MinPayloadBytes {
		d.printf("  FAIL: %s (%d bytes)\n", session.NoAudioText, len(pcm))
		return nil, false
	}
	peak := peakLevel(pcm)
	d.printf("  Recorded %.1f s, peak level %.0f%%\n", audio.Seconds(wav), peak*100)
	if peak < 0.02 {
		d.println("  Warning: the microphone looks silent; check the input volume")
	}
	d.println("  PASS: microphone captured audio")
	return wav, true
}

func peakLevel(pcm []byte) float64 {
	var peak float64
	frame := audio.FrameSize * audio.BytesPerSample
	for i := 0; i < len(pcm); i += frame {
		peak = max(peak, audio.Level(pcm[i:min(i+frame, len(pcm))]))
	}
	return peak
}

func (d *doctor) checkTranscription(wav []byte) bool {
	d.println()
	d.println("[3/4] Transcription")

	ctx := context.Background()
	start := time.Now()
	if err := d.Gateway.Warm(ctx); err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	res, err := d.Gateway.Transcribe(ctx, wav)
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}

	text := res.Text
	if text == "" {
		text = session.NoSpeechText
	}
	d.printf("\n  Transcribed text: %s\n", text)
	d.printf("  Language: %s (%.0f%%), took %s\n\n", res.Language, res.LanguageConfidence*100, time.Since(start).Round(time.Millisecond))

	if d.confirm("Is this correct?") {
		d.println("  PASS: transcription verified by user")
		return true
	}
	d.println("  FAIL: transcription not confirmed")
	return false
}

func (d *doctor) checkClipboard() bool {
	d.println()
	d.println("[4/4] Clipboard")

	msg, err := d.CheckClipboard()
	if err != nil {
		d.printf("  FAIL: %v\n", err)
		return false
	}
	d.printf("  PASS: %s\n", msg)

	if d.Paste {
		if err := clipboard.Init(); err != nil {
			d.printf("  FAIL: paste keystroke unavailable: %v\n", err)
			d.println("  Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
			return false
		}
		d.printf("  PASS: %s keystroke ready\n", clipboard.PasteCombo())
	}
	return true
}
