package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/audiostream/internal/config"
	"github.com/rivo/tview"
)

func friendlyErrorMessage(errStr string) string {
	switch {
	case strings.Contains(errStr, "no such host"):
		return "Unable to connect to server.\nPlease check your internet connection."
	case strings.Contains(errStr, "connection refused"):
		return "Connection refused by server.\nThe stream may be temporarily unavailable."
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "Connection timed out.\nPlease check your internet connection."
	case strings.Contains(errStr, "status 401"):
		return "Stream access denied (401)."
	case strings.Contains(errStr, "status 403"):
		return "Stream access forbidden (403)."
	case strings.Contains(errStr, "status 404"):
		return "Stream not found (404)."
	case strings.Contains(errStr, "stream starved"):
		return "The stream stopped delivering data."
	case strings.Contains(errStr, "can't start playback"):
		return "Can't start playback.\nThe stream did not become ready in time."
	case strings.HasPrefix(errStr, "unstable shutdown"):
		return "The decoder is still shutting down.\nIt will be released shortly."
	}

	if idx := strings.Index(errStr, ": dial"); idx > 0 {
		return errStr[:idx]
	}
	if len(errStr) > 100 {
		return errStr[:100] + "..."
	}
	return errStr
}

func (ui *UI) dismiss(page string) {
	ui.pages.RemovePage(page)
	ui.app.SetFocus(ui.tagTable)
}

// centered wraps frame in a fixed-size box in the middle of the screen.
func (ui *UI) centered(frame tview.Primitive, width, height int) *tview.Flex {
	modal := tview.NewFlex().
		AddItem(nil, 0, 1, false).
		AddItem(tview.NewFlex().SetDirection(tview.FlexRow).
			AddItem(nil, 0, 1, false).
			AddItem(frame, height, 0, true).
			AddItem(nil, 0, 1, false),
			width, 0, true).
		AddItem(nil, 0, 1, false)
	modal.SetBackgroundColor(ui.colors.background)
	return modal
}

func (ui *UI) modalFrame(content tview.Primitive, title string, border tcell.Color) *tview.Frame {
	frame := tview.NewFrame(content).
		SetBorders(0, 0, 1, 1, 1, 1)
	frame.SetBorder(true).
		SetBorderColor(border).
		SetBackgroundColor(ui.colors.modalBackground).
		SetTitle(" " + title + " ").
		SetTitleColor(ui.colors.highlight).
		SetTitleAlign(tview.AlignCenter)
	return frame
}

func (ui *UI) hintView(text string) *tview.TextView {
	hint := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(text)
	hint.SetTextColor(tcell.ColorDarkGray)
	hint.SetBackgroundColor(ui.colors.modalBackground)
	return hint
}

func (ui *UI) showPlaybackErrorModal(message string) {
	messageView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true).
		SetText(fmt.Sprintf("\n[::b]Playback Error[::-]\n\n%s", tview.Escape(message)))
	messageView.SetTextColor(ui.colors.foreground)
	messageView.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(messageView, 0, 1, false).
		AddItem(ui.hintView("[::d]Press [::b]R[::d] to retry  •  Press [::b]Esc[::d] to dismiss[::-]"), 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	modalHeight := 10
	if lines := strings.Count(message, "\n") + 1; lines > 2 {
		modalHeight = min(modalHeight+lines-2, 15)
	}

	modal := ui.centered(ui.modalFrame(content, "Error", ui.colors.highlight), 50, modalHeight)
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyEscape, tcell.KeyEnter:
			ui.dismiss("error-modal")
			return nil
		case tcell.KeyRune:
			if event.Rune() == 'r' || event.Rune() == 'R' {
				ui.dismiss("error-modal")
				ui.player.Stop()
				ui.play()
				return nil
			}
		}
		return event
	})

	ui.pages.AddPage("error-modal", modal, true, true)
	ui.app.SetFocus(modal)
}

func (ui *UI) showHelpModal() {
	keyColor := ui.colors.helpHotkey.String()
	configPath, _ := config.GetConfigPath()

	helpText := fmt.Sprintf(`[::b]KEYBOARD SHORTCUTS[::-]

[%[1]s]PLAYBACK[-]
  [%[1]s]Space[-]      Pause / Resume / Play
  [%[1]s]p[-]          Play
  [%[1]s]s[-]          Stop

[%[1]s]VOLUME[-]
  [%[1]s]+[-] / [%[1]s]-[-]      Volume up / down
  [%[1]s]←[-] / [%[1]s]→[-]      Volume down / up
  [%[1]s]m[-]          Mute / Unmute

[%[1]s]APPLICATION[-]
  [%[1]s]?[-]          Show this help
  [%[1]s]q[-] / [%[1]s]Esc[-]    Quit

[%[1]s]CONFIG[-]: %[2]s`, keyColor, configPath)

	ui.showInfoModal("Help", helpText)
}

func (ui *UI) showInfoModal(title, message string) {
	messageView := tview.NewTextView().
		SetTextAlign(tview.AlignLeft).
		SetDynamicColors(true).
		SetWordWrap(true).
		SetText("\n" + message)
	messageView.SetTextColor(ui.colors.foreground)
	messageView.SetBackgroundColor(ui.colors.modalBackground)

	content := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(messageView, 0, 1, false).
		AddItem(nil, 2, 0, false).
		AddItem(ui.hintView("[::d]Press any key to close[::-]"), 1, 0, false).
		AddItem(nil, 1, 0, false)
	content.SetBackgroundColor(ui.colors.modalBackground)

	modalHeight := min(strings.Count(message, "\n")+11, 38)
	modal := ui.centered(ui.modalFrame(content, title, ui.colors.borders), 45, modalHeight)
	modal.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		ui.dismiss("modal")
		return nil
	})

	ui.pages.AddPage("modal", modal, true, true)
	ui.app.SetFocus(modal)
}
