package session

import (
	"encoding/json"

	"listen/hotkey"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseProcessing
)

func (p Phase) String() string {
	switch p {
	case PhaseRecording:
		return "recording"
	case PhaseProcessing:
		return "processing"
	}
	return "idle"
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Snapshot is a consistent copy of the controller's status.
type Snapshot struct {
	Phase              Phase   `json:"phase"`
	Mode               string  `json:"mode"`
	Loading            bool    `json:"loading"`
	RecordingID        string  `json:"recording_id,omitempty"`
	LastText           string  `json:"last_text"`
	LastError          string  `json:"last_error,omitempty"`
	Language           string  `json:"language,omitempty"`
	LanguageConfidence float64 `json:"language_confidence"`
	Duration           float64 `json:"duration"`
	Copied             bool    `json:"copied"`
	Count              int     `json:"count"`
}

func (s Snapshot) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}

// StatusLine is the one-line state shown by every front end.
func (s Snapshot) StatusLine() string {
	toggle := s.Mode == ModeToggle.String()
	switch {
	case s.Phase == PhaseRecording && toggle:
		return "🔴 Recording... (press again to stop)"
	case s.Phase == PhaseRecording:
		return "🔴 Recording... (release to transcribe)"
	case s.Phase == PhaseProcessing:
		return "⏳ Processing..."
	case s.Loading:
		return "⏳ Loading model..."
	case toggle:
		return "🎤 Ready - Press " + hotkey.Combo + " to record"
	}
	return "🎤 Ready - Hold " + hotkey.Combo + " to record"
}

// ResultLine describes the last transcription, or "" before the first.
func (s Snapshot) ResultLine() string {
	if s.LastText == "" {
		return ""
	}
	if s.Copied {
		return s.LastText + " (copied to clipboard)"
	}
	return s.LastText
}
