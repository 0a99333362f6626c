package gui

import "sync"

// WaveformBars is the number of level samples the waveform shows.
const WaveformBars = 100

// Levels is a fixed-size history of audio levels, oldest first.
type Levels struct {
	mu   sync.Mutex
	buf  [WaveformBars]float64
	next int
	n    int
}

func (l *Levels) Push(level float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf[l.next] = min(max(level, 0), 1)
	l.next = (l.next + 1) % WaveformBars
	if l.n < WaveformBars {
		l.n++
	}
}

// Values returns WaveformBars levels, left-padded with zeros until the
// history is full.
func (l *Levels) Values() []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]float64, WaveformBars)
	start := (l.next - l.n + WaveformBars) % WaveformBars
	for i := 0; i < l.n; i++ {
		out[WaveformBars-l.n+i] = l.buf[(start+i)%WaveformBars]
	}
	return out
}

func (l *Levels) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next, l.n = 0, 0
}
