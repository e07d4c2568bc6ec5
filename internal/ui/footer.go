package ui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/audiostream/internal/player"
	"github.com/rivo/tview"
)

// StatusRenderer turns the latest player snapshot into the one-line status
// shown in the footer.
type StatusRenderer struct {
	mu            sync.Mutex
	info          player.Info
	isMuted       bool
	animFrame     int
	maxAnimFrame  int
	tickCount     int
	ticksPerFrame int
	primaryColor  string
}

func NewStatusRenderer() *StatusRenderer {
	return &StatusRenderer{
		maxAnimFrame:  4,
		ticksPerFrame: 4, // 4 ticks per frame at RefreshInterval
	}
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.mu.Lock()
	s.primaryColor = color
	s.mu.Unlock()
}

func (s *StatusRenderer) Update(info player.Info, muted bool) {
	s.mu.Lock()
	s.info = info
	s.isMuted = muted
	s.mu.Unlock()
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % s.maxAnimFrame
	}
}

func (s *StatusRenderer) Render() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := s.info
	switch info.State {
	case player.StateResolving:
		return s.spinner("RESOLVING")
	case player.StateBuffering:
		return s.spinner("BUFFERING " + humanize.Bytes(uint64(max(info.Downloaded, 0))))
	case player.StateConnecting:
		return s.spinner(fmt.Sprintf("CONNECTING %d/%d", info.ConnectPolls, info.ConnectRetries))
	case player.StatePlaying:
		return s.renderPlaying(info)
	case player.StatePaused:
		return s.renderPaused(info)
	case player.StateStarving:
		return joinParts([]string{"⚠ STARVING", formatBufferHealth(bufferHealth(info))})
	case player.StateReconnecting:
		return renderRetry(info)
	case player.StateStopped:
		return s.renderStopped(info)
	default:
		return s.renderIdle()
	}
}

func (s *StatusRenderer) renderIdle() string {
	if s.isMuted {
		return "○ IDLE │ [red]MUTED[-]"
	}
	return "○ IDLE"
}

func (s *StatusRenderer) spinner(label string) string {
	circles := []string{"◐", "◓", "◑", "◒"}
	return circles[s.animFrame] + " " + label
}

func (s *StatusRenderer) renderPlaying(info player.Info) string {
	dots := []string{"●", "◉", "○", "◉"}
	dot := dots[s.animFrame]
	if s.primaryColor != "" {
		dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
	}

	label := " PLAYING"
	if info.MediaLength < 0 && info.Downloaded > 0 {
		label = " LIVE"
	}
	parts := []string{dot + label}
	if s.isMuted {
		parts = append(parts, "[red]MUTED[-]")
	}
	if info.Recording {
		parts = append(parts, "[red]REC[-]")
	}
	if f := formatStream(info); f != "" {
		parts = append(parts, f)
	}
	parts = append(parts, formatBufferHealth(bufferHealth(info)))
	return joinParts(parts)
}

func (s *StatusRenderer) renderPaused(info player.Info) string {
	parts := []string{PauseIcon + " PAUSED"}
	if s.isMuted {
		parts = append(parts, "[red]MUTED[-]")
	}
	if f := formatStream(info); f != "" {
		parts = append(parts, f)
	}
	return joinParts(parts)
}

func renderRetry(info player.Info) string {
	if info.MaxReconnects == 0 {
		return fmt.Sprintf("↻ RETRY %d", info.Reconnects)
	}
	return fmt.Sprintf("↻ RETRY %d/%d", info.Reconnects, info.MaxReconnects)
}

func (s *StatusRenderer) renderStopped(info player.Info) string {
	if info.LastError != "" {
		return "✗ " + shortError(info.LastError)
	}
	return "■ STOPPED"
}

func formatStream(info player.Info) string {
	if !info.Format.Valid() {
		return ""
	}
	return fmt.Sprintf("%.1fkHz %dch", float64(info.Format.SampleRate)/1000.0, info.Format.Channels)
}

// bufferHealth is the decoded backlog as a percentage of one second of audio.
func bufferHealth(info player.Info) int {
	second := info.Format.Samples(1)
	if second <= 0 {
		return 0
	}
	return min(100, info.Queued*100/second)
}

func formatBufferHealth(percent int) string {
	signalBars := []string{"▁", "▂", "▃", "▅", "▇"}
	const numBars = 5

	filled := min((percent*numBars)/100, numBars)

	var b strings.Builder
	for i := 0; i < numBars; i++ {
		if i < filled {
			b.WriteString(signalBars[i])
		} else {
			b.WriteString("▁")
		}
	}
	return b.String()
}

func shortError(msg string) string {
	if len(msg) > 60 {
		return msg[:57] + "..."
	}
	return msg
}

func joinParts(parts []string) string {
	return strings.Join(parts, " │ ")
}

func (ui *UI) getPlaybackHint(keyColor string) string {
	switch ui.player.State() {
	case player.StatePaused:
		return fmt.Sprintf("[%s]Space[-] resume  [%s]s[-] stop", keyColor, keyColor)
	case player.StateIdle, player.StateStopped:
		return fmt.Sprintf("[%s]Space[-] play", keyColor)
	default:
		return fmt.Sprintf("[%s]Space[-] pause  [%s]s[-] stop", keyColor, keyColor)
	}
}

func (ui *UI) getHelpText() string {
	keyColor := ui.colors.helpHotkey.String()
	playbackHint := ui.getPlaybackHint(keyColor)

	ui.mu.Lock()
	muteText := "mute"
	if ui.isMuted {
		muteText = "unmute"
	}
	ui.mu.Unlock()

	return fmt.Sprintf(" %s  [%s]+/-[-] vol  [%s]m[-] %s  [%s]?[-] help  [%s]q[-] quit ",
		playbackHint, keyColor, keyColor, muteText, keyColor, keyColor)
}

func (ui *UI) handleFooterResize(width int) {
	isWide := width >= FooterBreakpoint
	wasWide := ui.lastFooterWidth >= FooterBreakpoint

	if ui.lastFooterWidth > 0 && isWide != wasWide && ui.contentLayout != nil {
		newHeight := FooterHeightWide
		if !isWide {
			newHeight = FooterHeightNarrow
		}
		ui.contentLayout.ResizeItem(ui.helpPanel, newHeight, 0)
	}
	ui.lastFooterWidth = width
}

func (ui *UI) fill(screen tcell.Screen, x, y, width, height int, bg tcell.Color) {
	style := tcell.StyleDefault.Background(bg)
	for row := y; row < y+height; row++ {
		for col := x; col < x+width; col++ {
			screen.SetContent(col, row, ' ', nil, style)
		}
	}
}

func (ui *UI) createFooter() *tview.Box {
	box := tview.NewBox().SetBackgroundColor(ui.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		ui.handleFooterResize(width)

		helpText := ui.getHelpText()
		statusText := " " + ui.statusRenderer.Render() + " "

		if width >= FooterBreakpoint {
			h := min(height, FooterHeightWide)
			helpWidth := width / 2
			ui.fill(screen, x, y, helpWidth, h, ui.colors.helpBackground)
			ui.fill(screen, x+helpWidth, y, width-helpWidth, h, ui.colors.background)

			centerY := y + h/2
			tview.Print(screen, helpText, x, centerY, helpWidth, tview.AlignCenter, ui.colors.helpForeground)
			tview.Print(screen, statusText, x+helpWidth, centerY, width-helpWidth-2, tview.AlignRight, ui.colors.foreground)
			return x, y, width, height
		}

		helpHeight := max(height/2, 1)
		ui.fill(screen, x, y, width, helpHeight, ui.colors.helpBackground)
		ui.fill(screen, x, y+helpHeight, width, height-helpHeight, ui.colors.background)

		tview.Print(screen, helpText, x, y+helpHeight/2, width, tview.AlignCenter, ui.colors.helpForeground)
		if statusHeight := height - helpHeight; statusHeight > 0 {
			tview.Print(screen, statusText, x, y+helpHeight+statusHeight/2, width-2, tview.AlignRight, ui.colors.foreground)
		}
		return x, y, width, height
	})

	return box
}
