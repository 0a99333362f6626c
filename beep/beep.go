package beep

import (
	"math"
	"sync"
)

const (
	sampleRate = 44100

	// Start beep: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// Stop beep: medium pitch, slightly longer
	stopFreq   = 900
	stopVolume = 0.5
	stopDecay  = 40

	// Error beep: low pitch double-beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	startSamples []int16
	stopSamples  []int16
	errorSamples []int16
	soundOnce    sync.Once
)

func initSound() {
	startSamples = tick(startFreq, 0.05, startVolume, startDecay)
	stopSamples = tick(stopFreq, 0.08, stopVolume, stopDecay)
	errorSamples = doubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay)
	initBackend()
}

// tick is a decaying mono sine.
func tick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func doubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	b := tick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, len(b)*2+len(gap))
	out = append(out, b...)
	out = append(out, gap...)
	return append(out, b...)
}

// Player plays the recording cues. Every method returns immediately.
type Player struct {
	enabled bool
	play    func([]int16)
}

func New(enabled bool) *Player {
	return &Player{enabled: enabled, play: playSamples}
}

// Init prepares the output device ahead of the first cue.
func (p *Player) Init() {
	if p.enabled {
		soundOnce.Do(initSound)
	}
}

func (p *Player) Start() { p.cue(func() []int16 { return startSamples }) }
func (p *Player) Stop()  { p.cue(func() []int16 { return stopSamples }) }
func (p *Player) Error() { p.cue(func() []int16 { return errorSamples }) }

func (p *Player) cue(samples func() []int16) {
	if !p.enabled {
		return
	}
	soundOnce.Do(initSound)
	go p.play(samples())
}
