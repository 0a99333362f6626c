package hotkey

import "encoding/binary"

// Linux input_event layout on 64-bit: timeval(16) type(2) code(2) value(4).
const (
	inputEventSize = 24

	evKey = 1

	valueRelease = 0
	valuePress   = 1

	keyLCtrl = 29
	keyRCtrl = 97
	keySpace = 57
)

// decodeEvdev turns one raw input event into an Event. Anything that is not
// a press or release of a recognized key reports ok=false, including
// auto-repeat.
func decodeEvdev(evType, code uint16, value int32) (ev Event, ok bool) {
	if evType != evKey {
		return Event{}, false
	}
	switch code {
	case keyLCtrl, keyRCtrl:
		ev.Key = KeyModifier
	case keySpace:
		ev.Key = KeyTrigger
	default:
		return Event{}, false
	}
	switch value {
	case valuePress:
		ev.Pressed = true
	case valueRelease:
	default:
		return Event{}, false
	}
	return ev, true
}

// parseEvdev decodes every complete input_event in buf. A trailing partial
// record is ignored.
func parseEvdev(buf []byte) []Event {
	var out []Event
	for i := 0; i+inputEventSize <= len(buf); i += inputEventSize {
		evType := binary.LittleEndian.Uint16(buf[i+16:])
		code := binary.LittleEndian.Uint16(buf[i+18:])
		value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
		if ev, ok := decodeEvdev(evType, code, value); ok {
			out = append(out, ev)
		}
	}
	return out
}
