package hotkey

// Fake is a Source driven by the caller.
type Fake struct {
	events chan Event
}

func NewFake() *Fake {
	return &Fake{events: make(chan Event, 16)}
}

func (f *Fake) Register() error      { return nil }
func (f *Fake) Unregister()          {}
func (f *Fake) Events() <-chan Event { return f.events }

func (f *Fake) Send(ev Event) { f.events <- ev }

// SimKeydown presses the full combination.
func (f *Fake) SimKeydown() {
	f.Send(Press(KeyModifier))
	f.Send(Press(KeyTrigger))
}

// SimKeyup releases the combination, trigger first.
func (f *Fake) SimKeyup() {
	f.Send(Release(KeyTrigger))
	f.Send(Release(KeyModifier))
}
