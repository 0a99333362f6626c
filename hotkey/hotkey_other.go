//go:build !linux

package hotkey

import (
	"sync"

	"golang.design/x/hotkey"
)

// xSource registers Ctrl+Space with the OS. The OS only reports the
// combination, so each keydown is expanded into modifier then trigger
// presses, and each keyup into the matching releases.
type xSource struct {
	hk     *hotkey.Hotkey
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

func New() Source {
	return &xSource{
		hk:     hotkey.New([]hotkey.Modifier{hotkey.ModCtrl}, hotkey.KeySpace),
		events: make(chan Event, 64),
		stop:   make(chan struct{}),
	}
}

func (h *xSource) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			select {
			case <-h.hk.Keydown():
				h.emit(Press(KeyModifier), Press(KeyTrigger))
			case <-h.hk.Keyup():
				h.emit(Release(KeyTrigger), Release(KeyModifier))
			case <-h.stop:
				return
			}
		}
	}()
	return nil
}

func (h *xSource) emit(evs ...Event) {
	for _, ev := range evs {
		select {
		case h.events <- ev:
		case <-h.stop:
			return
		}
	}
}

func (h *xSource) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		h.hk.Unregister()
	})
}

func (h *xSource) Events() <-chan Event {
	return h.events
}

func Diagnose() (string, error) {
	return "hotkey support available (" + Combo + ")", nil
}
