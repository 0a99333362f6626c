//go:build gui

package main

import (
	"context"

	"listen/gui"
)

const guiAvailable = true

// runGUI takes over the calling thread, which must be the main thread,
// until the window closes or ctx is cancelled.
func runGUI(ctx context.Context, cancel context.CancelFunc, d *dictation) error {
	app := gui.NewApp(d.ctl)
	d.OnLevel(app.AudioLevel)
	go func() {
		<-ctx.Done()
		app.Quit()
	}()
	defer cancel()
	return gui.Run(app)
}
