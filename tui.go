package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"listen/audio"
	"listen/hotkey"
	"listen/session"
	"listen/transcriber"
)

type snapshotMsg session.Snapshot
type tickMsg time.Time

const (
	leftWidth  = 44
	meterWidth = 30
	// Peak level below which a recording longer than a second is flagged.
	voiceThreshold = 0.02
)

var (
	recStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBold     = helpStyle.Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	textStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	copiedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	metricStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	meterOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	meterOff     = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
)

type tuiModel struct {
	snap     session.Snapshot
	meter    *levelMeter
	recStart time.Time
	now      time.Time

	modeLine   string
	deviceLine string
	// describe rebuilds modeLine; the engine may change device mid-session.
	describe func() string

	width, height int
	quit          func()
}

func modeLine(info transcriber.ModelInfo, mode string) string {
	if info.Model == "" {
		return fmt.Sprintf("[%s | %s]", info.Engine, mode)
	}
	if info.Device == "" {
		return fmt.Sprintf("[%s %s | %s]", info.Engine, info.Model, mode)
	}
	return fmt.Sprintf("[%s %s | %s | %s]", info.Engine, info.Model, info.Device, mode)
}

func newTUIModel(d *dictation, deviceName string, quit func()) tuiModel {
	describe := func() string { return modeLine(d.gateway.Info(), d.cfg.Mode) }
	device := "mic: " + deviceName
	if audio.IsBluetooth(deviceName) {
		device += " (BT!)"
	}
	return tuiModel{
		snap:       d.ctl.Snapshot(),
		meter:      &d.meter,
		modeLine:   describe(),
		deviceLine: device,
		describe:   describe,
		quit:       quit,
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.quit != nil {
				m.quit()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case snapshotMsg:
		prev := m.snap.Phase
		m.snap = session.Snapshot(msg)
		if prev != session.PhaseRecording && m.snap.Phase == session.PhaseRecording {
			m.recStart = time.Now()
		}
		if m.describe != nil {
			m.modeLine = m.describe()
		}
	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()
	}
	return m, nil
}

func (m tuiModel) recordingSeconds() float64 {
	if m.snap.Phase != session.PhaseRecording || m.recStart.IsZero() || m.now.Before(m.recStart) {
		return 0
	}
	return m.now.Sub(m.recStart).Seconds()
}

func renderMeter(level float64, width int, recording bool) string {
	if !recording {
		level = 0
	}
	filled := int(min(max(level, 0), 1)*float64(width) + 0.5)
	return meterOn.Render(strings.Repeat("█", filled)) + meterOff.Render(strings.Repeat("░", width-filled))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	recording := m.snap.Phase == session.PhaseRecording

	var left []string
	if recording {
		left = append(left, recStyle.Render(fmt.Sprintf("● REC %.1fs", m.recordingSeconds())))
	} else {
		left = append(left, standbyStyle.Render("○ STANDBY"))
	}
	left = append(left, renderMeter(m.meter.Level(), meterWidth, recording))
	if recording && m.recordingSeconds() > 1.0 && m.meter.Peak() < voiceThreshold {
		left = append(left, warnStyle.Render("  ⚠ no voice detected"))
	}
	left = append(left, "", m.snap.StatusLine(), "")
	left = append(left, infoStyle.Render(m.modeLine), standbyStyle.Render(m.deviceLine), "")
	left = append(left, helpBold.Render(hotkey.Combo)+helpStyle.Render(" to record, q to quit"))
	left = append(left, helpStyle.Render("listen "+version))

	rightWidth := max(m.width-leftWidth-1, 20)
	wrapWidth := max(rightWidth-2, 10)

	var right strings.Builder
	switch {
	case m.snap.LastText == "" && m.snap.LastError == "":
		right.WriteString(standbyStyle.Render("No transcriptions yet"))
	default:
		if m.snap.LastText != "" {
			right.WriteString(titleStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.snap.Count)) + "\n\n")
			style := textStyle
			if m.snap.LastText == session.NoSpeechText || m.snap.LastText == session.NoAudioText {
				style = warnStyle
			}
			lines := wrapText(m.snap.LastText, wrapWidth)
			for i, line := range lines {
				right.WriteString(style.Render(line))
				if i == len(lines)-1 && m.snap.Copied {
					right.WriteString(" " + copiedStyle.Render("[✓ copied]"))
				}
				right.WriteString("\n")
			}
			if m.snap.Language != "" {
				right.WriteString("\n" + metricStyle.Render(fmt.Sprintf("lang %s (%.0f%%)  audio %.1fs",
					m.snap.Language, m.snap.LanguageConfidence*100, m.snap.Duration)) + "\n")
			}
		}
		if m.snap.LastError != "" {
			right.WriteString("\n")
			for _, line := range wrapText("Error: "+m.snap.LastError, wrapWidth) {
				right.WriteString(warnStyle.Render(line) + "\n")
			}
		}
	}

	leftPanel := lipgloss.NewStyle().Width(leftWidth).Height(m.height).Render(strings.Join(left, "\n"))
	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(lipgloss.Color("239")).
		Render(right.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

// runTUI blocks until the user quits or ctx is cancelled.
func runTUI(ctx context.Context, cancel context.CancelFunc, d *dictation, deviceName string) error {
	p := tea.NewProgram(newTUIModel(d, deviceName, cancel), tea.WithAltScreen(), tea.WithContext(ctx))

	updates, unsubscribe := d.ctl.Subscribe()
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Quit()
				return
			case snap := <-updates:
				p.Send(snapshotMsg(snap))
			}
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

// wrapText breaks text at spaces to fit width terminal cells, splitting
// words longer than a line. Widths are measured per grapheme, so
// multi-byte scripts are never cut mid-rune.
func wrapText(text string, width int) []string {
	if text == "" {
		return []string{""}
	}
	return strings.Split(ansi.Wrap(text, max(width, 1), ""), "\n")
}
