//go:build gui

package gui

import (
	"sync/atomic"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/go-gl/glfw/v3.3/glfw"

	"listen/log"
	"listen/session"
)

type Controller interface {
	Subscribe() (<-chan session.Snapshot, func())
	Toggle() (bool, error)
}

type App struct {
	fyneApp fyne.App
	window  fyne.Window
	ctl     Controller

	levels    Levels
	recording atomic.Bool
	wave      *Waveform
	status    *widget.Label
	result    *widget.Label
	copied    *widget.Label
	button    *widget.Button
}

func NewApp(ctl Controller) *App {
	return &App{ctl: ctl}
}

// Run builds the window and blocks in the fyne event loop. It must be
// called on the main thread.
func Run(a *App) error {
	a.fyneApp = app.NewWithID("io.listen.gui")
	a.fyneApp.Settings().SetTheme(&darkTheme{})

	a.window = a.fyneApp.NewWindow("listen")
	a.wave = NewWaveform(&a.levels, a.recording.Load)
	a.status = widget.NewLabel("")
	a.result = widget.NewLabel("")
	a.result.Wrapping = fyne.TextWrapWord
	a.copied = widget.NewLabel("")
	a.button = widget.NewButton("● Record", a.toggle)

	a.window.SetContent(container.NewVBox(
		a.wave,
		a.status,
		a.button,
		a.result,
		a.copied,
	))
	a.window.Resize(fyne.NewSize(460, 320))
	a.window.SetOnClosed(a.Quit)
	a.placeBottomCenter()

	updates, unsubscribe := a.ctl.Subscribe()
	go a.follow(updates)
	defer unsubscribe()

	a.window.Show()
	a.fyneApp.Run()
	return nil
}

// placeBottomCenter moves the window above the dock of the primary monitor
// and keeps it floating without stealing focus from the paste target.
func (a *App) placeBottomCenter() {
	monitor := glfw.GetPrimaryMonitor()
	if monitor == nil {
		return
	}
	_, _, screenW, screenH := monitor.GetWorkarea()
	fyne.Do(func() {
		if w := glfw.GetCurrentContext(); w != nil {
			width, height := w.GetSize()
			w.SetPos((screenW-width)/2, screenH-height-40)
			w.SetAttrib(glfw.FocusOnShow, glfw.False)
			w.SetAttrib(glfw.Floating, glfw.True)
		}
	})
}

func (a *App) toggle() {
	go func() {
		if _, err := a.ctl.Toggle(); err != nil {
			log.Warnf("toggle from window failed: %v", err)
		}
	}()
}

func (a *App) follow(updates <-chan session.Snapshot) {
	for snap := range updates {
		a.render(snap)
	}
}

func (a *App) render(s session.Snapshot) {
	wasRecording := a.recording.Swap(s.Phase == session.PhaseRecording)
	if !wasRecording && s.Phase == session.PhaseRecording {
		a.levels.Reset()
	}
	fyne.Do(func() {
		a.status.SetText(s.StatusLine())
		switch s.Phase {
		case session.PhaseRecording:
			a.button.SetText("■ Stop")
			a.button.Enable()
		case session.PhaseProcessing:
			a.button.SetText("● Record")
			a.button.Disable()
		default:
			a.button.SetText("● Record")
			a.button.Enable()
		}
		text := s.LastText
		if s.LastError != "" {
			text = "Error: " + s.LastError
		}
		a.result.SetText(text)
		if s.Copied {
			a.copied.SetText("✓ Copied to clipboard")
		} else {
			a.copied.SetText("")
		}
	})
}

// AudioLevel feeds the waveform. Safe to call from the capture callback.
func (a *App) AudioLevel(level float64) {
	if a.recording.Load() {
		a.levels.Push(level)
	}
}

func (a *App) Quit() {
	if a.fyneApp != nil {
		a.fyneApp.Quit()
	}
}
