package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"listen/audio"
	"listen/config"
	"listen/hotkey"
	"listen/log"
)

// runTestMode drives the dictation pipeline from a script: a fake capture
// replays wavPath and a fake hotkey turns KEYDOWN/KEYUP into key events.
func runTestMode(ctx context.Context, cfg config.Config, logPath, wavPath string, realtime bool, script io.Reader) error {
	cfg.Beep = false
	initLogging(logPath)
	defer log.Close()

	fakeCtx, err := audio.NewFakeContext(wavPath, realtime)
	if err != nil {
		return fmt.Errorf("loading WAV: %w", err)
	}
	d, err := newDictation(ctx, cfg, fakeCtx, nil)
	if err != nil {
		fakeCtx.Close()
		return err
	}
	defer d.close()

	log.SessionStart(d.info.Engine, d.info.Model, string(d.info.Device), cfg.Mode)
	d.warm(ctx)

	hk := hotkey.NewFake()
	handled := make(chan struct{})
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go d.dispatch(ctx, hk.Events(), func() { handled <- struct{}{} })

	send := func(evs ...hotkey.Event) {
		for _, ev := range evs {
			hk.Send(ev)
			<-handled
		}
	}

	scanner := bufio.NewScanner(script)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch {
		case cmd == "KEYDOWN":
			send(hotkey.Press(hotkey.KeyModifier), hotkey.Press(hotkey.KeyTrigger))
		case cmd == "KEYUP":
			send(hotkey.Release(hotkey.KeyTrigger), hotkey.Release(hotkey.KeyModifier))
		case cmd == "WAIT":
			d.ctl.Wait()
		case cmd == "WAIT_AUDIO_DONE":
			select {
			case <-fakeCtx.AudioDone():
			case <-ctx.Done():
				return nil
			}
		case cmd == "QUIT":
			d.ctl.Wait()
			return nil
		case strings.HasPrefix(cmd, "SLEEP "):
			ms, err := strconv.Atoi(strings.TrimSpace(cmd[len("SLEEP "):]))
			if err != nil {
				return fmt.Errorf("bad SLEEP argument %q", cmd)
			}
			time.Sleep(time.Duration(ms) * time.Millisecond)
		case cmd == "":
		default:
			return fmt.Errorf("unknown command %q", cmd)
		}
	}
	d.ctl.Wait()
	return scanner.Err()
}
