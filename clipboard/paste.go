package clipboard

import (
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// Init creates the virtual keyboard. On linux the new uinput device needs
// a moment before the desktop starts listening to it.
func Init() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil && runtime.GOOS == "linux" {
			time.Sleep(2 * time.Second)
		}
	})
	return kbErr
}

// Paste sends the paste shortcut to the focused window.
func Paste() error {
	if err := Init(); err != nil {
		return err
	}
	kb.Clear()
	kb.SetKeys(keybd_event.VK_V)
	if runtime.GOOS == "darwin" {
		kb.HasSuper(true)
	} else {
		kb.HasCTRL(true)
	}
	return kb.Launching()
}

func PasteCombo() string {
	if runtime.GOOS == "darwin" {
		return "Cmd+V"
	}
	return "Ctrl+V"
}
