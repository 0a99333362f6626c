//go:build linux

package hotkey

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// evdevSource reads every keyboard under /dev/input directly, so it works
// on X11 and Wayland alike. The user must be in the input group.
type evdevSource struct {
	events chan Event
	files  []*os.File
	stop   chan struct{}
	once   sync.Once
}

func New() Source {
	return &evdevSource{
		events: make(chan Event, 64),
		stop:   make(chan struct{}),
	}
}

func (h *evdevSource) Register() error {
	keyboards, err := findKeyboards()
	if err != nil {
		return fmt.Errorf("finding keyboards: %w", err)
	}
	if len(keyboards) == 0 {
		return errors.New("no keyboard devices found (is user in 'input' group?)")
	}

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}

	if len(h.files) == 0 {
		return errors.New("could not open any keyboard device (run: sudo usermod -aG input $USER, then re-login)")
	}
	return nil
}

func (h *evdevSource) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for _, ev := range parseEvdev(buf[:n]) {
			select {
			case h.events <- ev:
			case <-h.stop:
				return
			}
		}
	}
}

func (h *evdevSource) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevSource) Events() <-chan Event {
	return h.events
}

func findKeyboards() ([]string, error) {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil, err
	}

	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		if isKeyboard(e.Name()) {
			keyboards = append(keyboards, filepath.Join("/dev/input", e.Name()))
		}
	}
	return keyboards, nil
}

// isKeyboard checks the key capability bitmap; mice and power buttons
// report only a few bits.
func isKeyboard(eventName string) bool {
	capsPath := filepath.Join("/sys/class/input", eventName, "device", "capabilities", "key")
	data, err := os.ReadFile(capsPath)
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(data))) > 10
}

func Diagnose() (string, error) {
	keyboards, err := findKeyboards()
	if err != nil {
		return "", fmt.Errorf("cannot scan input devices: %w", err)
	}
	if len(keyboards) == 0 {
		return "", errors.New("no keyboard devices found (is user in 'input' group?)")
	}

	for _, path := range keyboards {
		f, err := os.Open(path)
		if err == nil {
			f.Close()
			return fmt.Sprintf("%d keyboard(s) found, opened %s (%s)", len(keyboards), path, Combo), nil
		}
	}
	return "", fmt.Errorf("found %d keyboard(s) but cannot open any (run: sudo usermod -aG input $USER)", len(keyboards))
}
