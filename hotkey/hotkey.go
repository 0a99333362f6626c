package hotkey

// Combo is the key combination every backend listens for.
const Combo = "Ctrl+Space"

type Key int

const (
	KeyUnknown Key = iota
	KeyModifier
	KeyTrigger
)

func (k Key) String() string {
	switch k {
	case KeyModifier:
		return "modifier"
	case KeyTrigger:
		return "trigger"
	}
	return "unknown"
}

// Event is one press or release of a recognized key. Left and right
// Ctrl both arrive as KeyModifier.
type Event struct {
	Key     Key
	Pressed bool
}

func Press(k Key) Event   { return Event{Key: k, Pressed: true} }
func Release(k Key) Event { return Event{Key: k} }

type Source interface {
	Register() error
	Unregister()
	Events() <-chan Event
}
