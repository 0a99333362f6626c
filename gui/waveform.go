//go:build gui

package gui

import (
	"image/color"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

var (
	barIdle      = color.RGBA{95, 95, 95, 255}
	barRecording = color.RGBA{215, 0, 0, 255}
)

// Waveform draws the recent audio levels as vertical bars.
type Waveform struct {
	widget.BaseWidget
	levels    *Levels
	recording func() bool
	stopCh    chan struct{}
}

func NewWaveform(levels *Levels, recording func() bool) *Waveform {
	w := &Waveform{levels: levels, recording: recording, stopCh: make(chan struct{})}
	w.ExtendBaseWidget(w)
	go w.animate()
	return w
}

func (w *Waveform) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

func (w *Waveform) animate() {
	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			fyne.Do(w.Refresh)
		}
	}
}

func (w *Waveform) MinSize() fyne.Size {
	return fyne.NewSize(WaveformBars*4, 80)
}

func (w *Waveform) CreateRenderer() fyne.WidgetRenderer {
	r := &waveformRenderer{wave: w, bg: canvas.NewRectangle(color.RGBA{30, 30, 30, 255})}
	r.bars = make([]*canvas.Rectangle, WaveformBars)
	for i := range r.bars {
		r.bars[i] = canvas.NewRectangle(barIdle)
	}
	return r
}

type waveformRenderer struct {
	wave *Waveform
	bg   *canvas.Rectangle
	bars []*canvas.Rectangle
	size fyne.Size
}

func (r *waveformRenderer) Layout(size fyne.Size) {
	r.size = size
	r.bg.Resize(size)
	r.Refresh()
}

func (r *waveformRenderer) MinSize() fyne.Size { return r.wave.MinSize() }

// Refresh draws each level as a bar centred on the horizontal midline.
func (r *waveformRenderer) Refresh() {
	fill := barIdle
	if r.wave.recording() {
		fill = barRecording
	}
	values := r.wave.levels.Values()
	barW := r.size.Width / WaveformBars
	mid := r.size.Height / 2
	for i, v := range values {
		h := max(float32(v)*r.size.Height, 1)
		bar := r.bars[i]
		bar.FillColor = fill
		bar.Move(fyne.NewPos(float32(i)*barW, mid-h/2))
		bar.Resize(fyne.NewSize(max(barW-1, 1), h))
		bar.Refresh()
	}
}

func (r *waveformRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, len(r.bars)+1)
	objs = append(objs, r.bg)
	for _, b := range r.bars {
		objs = append(objs, b)
	}
	return objs
}

func (r *waveformRenderer) Destroy() { r.wave.Stop() }
