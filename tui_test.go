package main

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"listen/session"
)

func TestWrapText(t *testing.T) {
	tests := []struct {
		text  string
		width int
		want  []string
	}{
		{"", 10, []string{""}},
		{"short", 10, []string{"short"}},
		{"hello world again", 11, []string{"hello world", "again"}},
		{"abcdefghij", 4, []string{"abcd", "efgh", "ij"}},
		{"a b", 0, []string{"a", "b"}},
	}
	for _, tt := range tests {
		got := wrapText(tt.text, tt.width)
		if strings.Join(got, "|") != strings.Join(tt.want, "|") {
			t.Errorf("wrapText(%q, %d) = %q, want %q", tt.text, tt.width, got, tt.want)
		}
	}
}

func TestWrapTextMultibyte(t *testing.T) {
	for _, text := range []string{"مرحبابالعالمالجميلجدا", "مرحبا بالعالم الجميل جدا", "ünïcödé wörds everywhere"} {
		lines := wrapText(text, 11)
		if len(lines) < 2 {
			t.Errorf("wrapText(%q, 11) did not wrap: %q", text, lines)
		}
		var joined strings.Builder
		for _, line := range lines {
			if !utf8.ValidString(line) {
				t.Errorf("wrapText(%q, 11) produced invalid UTF-8 line %q", text, line)
			}
			if w := ansi.StringWidth(line); w > 11 {
				t.Errorf("line %q is %d cells wide", line, w)
			}
			joined.WriteString(strings.ReplaceAll(line, " ", ""))
		}
		if want := strings.ReplaceAll(text, " ", ""); joined.String() != want {
			t.Errorf("wrapText(%q, 11) lost text: %q", text, lines)
		}
	}
}

func TestRenderMeterIdleIsEmpty(t *testing.T) {
	got := renderMeter(0.9, 10, false)
	if strings.Contains(got, "█") {
		t.Errorf("idle meter should be empty, got %q", got)
	}
	got = renderMeter(0.5, 10, true)
	if n := strings.Count(got, "█"); n != 5 {
		t.Errorf("half meter has %d filled cells, want 5", n)
	}
	if n := strings.Count(renderMeter(3, 10, true), "█"); n != 10 {
		t.Errorf("overdriven meter has %d filled cells, want 10", n)
	}
}

func TestLevelMeterPeak(t *testing.T) {
	var m levelMeter
	m.Set(0.3)
	m.Set(0.1)
	if m.Level() != 0.1 || m.Peak() != 0.3 {
		t.Errorf("level=%v peak=%v, want 0.1 and 0.3", m.Level(), m.Peak())
	}
	m.ResetPeak()
	if m.Peak() != 0 {
		t.Errorf("peak after reset = %v", m.Peak())
	}
}

func newTestModel() tuiModel {
	m := tuiModel{meter: &levelMeter{}, modeLine: "[fake | hold]", deviceLine: "mic: fake"}
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 20})
	return next.(tuiModel)
}

func TestTUIViewStates(t *testing.T) {
	m := newTestModel()
	if v := m.View(); !strings.Contains(v, "STANDBY") || !strings.Contains(v, "No transcriptions yet") {
		t.Errorf("idle view missing standby text:\n%s", v)
	}

	next, _ := m.Update(snapshotMsg(session.Snapshot{Phase: session.PhaseRecording, Mode: "hold"}))
	m = next.(tuiModel)
	next, _ = m.Update(tickMsg(time.Now().Add(1500 * time.Millisecond)))
	m = next.(tuiModel)
	v := m.View()
	if !strings.Contains(v, "REC") {
		t.Errorf("recording view missing REC:\n%s", v)
	}
	if !strings.Contains(v, "no voice detected") {
		t.Errorf("silent recording should warn:\n%s", v)
	}

	next, _ = m.Update(snapshotMsg(session.Snapshot{
		Phase: session.PhaseIdle, Mode: "hold", LastText: "hello world", Copied: true, Count: 1,
	}))
	m = next.(tuiModel)
	v = m.View()
	for _, want := range []string{"Last transcription (#1)", "hello world", "[✓ copied]"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q:\n%s", want, v)
		}
	}
}

func TestTUIQuitCallsCancel(t *testing.T) {
	called := false
	m := newTestModel()
	m.quit = func() { called = true }
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !called {
		t.Error("quit callback not called")
	}
	if cmd == nil {
		t.Error("expected tea.Quit command")
	}
}
