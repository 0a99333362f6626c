package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var ErrSelectionCancelled = errors.New("device selection cancelled")

type pickerKey int

const (
	pickerNone pickerKey = iota
	pickerUp
	pickerDown
	pickerAccept
	pickerCancel
)

// decodePickerKey maps one raw-mode read to a picker action.
func decodePickerKey(in []byte) pickerKey {
	switch {
	case len(in) == 1:
		switch in[0] {
		case '\r', '\n':
			return pickerAccept
		case 3, 'q': // Ctrl+C
			return pickerCancel
		case 'j':
			return pickerDown
		case 'k':
			return pickerUp
		}
	case len(in) == 3 && in[0] == 0x1b && in[1] == '[':
		switch in[2] {
		case 'A':
			return pickerUp
		case 'B':
			return pickerDown
		}
	}
	return pickerNone
}

func renderPicker(w io.Writer, devices []DeviceInfo, cursor int) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓, Enter to confirm):\r\n\r\n")
	for i, d := range devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[bluetooth: lower quality]\x1b[0m"
		}
		if i == cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %s%s\x1b[0m\r\n", d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %s%s\r\n", d.Name, tag)
		}
	}
}

// SelectDevice presents an interactive picker on the terminal. With a
// single device it returns that device without prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	renderPicker(os.Stdout, devices, cursor)

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch decodePickerKey(buf[:n]) {
		case pickerAccept:
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case pickerCancel:
			fmt.Print("\r\n")
			return nil, ErrSelectionCancelled
		case pickerUp:
			cursor = max(cursor-1, 0)
		case pickerDown:
			cursor = min(cursor+1, len(devices)-1)
		}
		fmt.Printf("\x1b[%dA", len(devices)+2)
		renderPicker(os.Stdout, devices, cursor)
	}
}
