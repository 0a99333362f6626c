package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility available (install xclip, xsel or wl-clipboard)")

func Available() bool {
	return !cb.Unsupported
}

func Read() (string, error) {
	if cb.Unsupported {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}

func Copy(text string) error {
	if cb.Unsupported {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

// System is the desktop clipboard.
type System struct{}

func (System) Copy(text string) error { return Copy(text) }

// Verify writes a probe string and reads it back, then restores the
// previous contents.
func Verify() (string, error) {
	prev, _ := Read()
	const probe = "listen clipboard check"
	if err := Copy(probe); err != nil {
		return "", err
	}
	got, err := Read()
	if prev != "" {
		Copy(prev)
	}
	if err != nil {
		return "", err
	}
	if got != probe {
		return "", errors.New("clipboard read back different text")
	}
	return "clipboard round trip OK", nil
}
