package session

import (
	"fmt"
	"time"

	"listen/hotkey"
)

type Mode int

const (
	// ModeHold records while the combination is held.
	ModeHold Mode = iota
	// ModeToggle starts on one press and stops on the next.
	ModeToggle
	// ModeHybrid acts like ModeHold for long presses and like ModeToggle
	// for taps shorter than the long-press threshold.
	ModeHybrid
)

const DefaultLongPress = 350 * time.Millisecond

func (m Mode) String() string {
	switch m {
	case ModeToggle:
		return "toggle"
	case ModeHybrid:
		return "hybrid"
	}
	return "hold"
}

func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "hold":
		return ModeHold, nil
	case "toggle":
		return ModeToggle, nil
	case "hybrid":
		return ModeHybrid, nil
	}
	return ModeHold, fmt.Errorf("unknown mode %q (use hold, toggle or hybrid)", s)
}

// Signal is an edge of "modifier AND trigger".
type Signal int

const (
	SignalNone Signal = iota
	SignalBegin
	SignalEnd
)

// Intent is what a Signal asks of the controller under the gate's mode.
type Intent int

const (
	IntentNone Intent = iota
	IntentStart
	IntentStop
	IntentToggle
)

func (i Intent) String() string {
	switch i {
	case IntentStart:
		return "start"
	case IntentStop:
		return "stop"
	case IntentToggle:
		return "toggle"
	}
	return "none"
}

// Gate turns raw key events into intents. It is not safe for concurrent
// use; feed it from the single goroutine that drains the hotkey source.
type Gate struct {
	mode      Mode
	longPress time.Duration
	now       func() time.Time

	modifier bool
	trigger  bool

	pressedAt  time.Time
	latched    bool
	swallowEnd bool
}

func NewGate(mode Mode, longPress time.Duration) *Gate {
	if longPress <= 0 {
		longPress = DefaultLongPress
	}
	return &Gate{mode: mode, longPress: longPress, now: time.Now}
}

func (g *Gate) Mode() Mode { return g.mode }

// Edge updates the key state and reports a rising or falling edge of the
// combination. Releasing either key ends the gesture.
func (g *Gate) Edge(ev hotkey.Event) Signal {
	before := g.modifier && g.trigger
	switch ev.Key {
	case hotkey.KeyModifier:
		g.modifier = ev.Pressed
	case hotkey.KeyTrigger:
		g.trigger = ev.Pressed
	default:
		return SignalNone
	}
	after := g.modifier && g.trigger

	switch {
	case ev.Pressed && !before && after:
		return SignalBegin
	case !ev.Pressed && before && !after:
		return SignalEnd
	}
	return SignalNone
}

func (g *Gate) Handle(ev hotkey.Event) Intent {
	switch g.Edge(ev) {
	case SignalBegin:
		return g.begin()
	case SignalEnd:
		return g.end()
	}
	return IntentNone
}

func (g *Gate) begin() Intent {
	switch g.mode {
	case ModeToggle:
		return IntentToggle
	case ModeHybrid:
		if g.latched {
			g.latched = false
			g.swallowEnd = true
			return IntentStop
		}
		g.pressedAt = g.now()
	}
	return IntentStart
}

func (g *Gate) end() Intent {
	switch g.mode {
	case ModeToggle:
		return IntentNone
	case ModeHybrid:
		if g.swallowEnd {
			g.swallowEnd = false
			return IntentNone
		}
		if g.now().Sub(g.pressedAt) < g.longPress {
			g.latched = true
			return IntentNone
		}
	}
	return IntentStop
}

// Reset forgets hybrid state after the controller refused a start, so the
// release of the current gesture cannot latch. Key state is kept.
func (g *Gate) Reset() {
	g.latched = false
	g.swallowEnd = g.modifier && g.trigger
}
