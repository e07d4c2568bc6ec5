package ui

import (
	"errors"
	"fmt"
	"image"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gdamore/tcell/v2"
	"github.com/glebovdev/audiostream/internal/cache"
	"github.com/glebovdev/audiostream/internal/config"
	"github.com/glebovdev/audiostream/internal/player"
	"github.com/glebovdev/audiostream/internal/source"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	VolumeStep         = 5
	HeaderHeight       = 3
	FooterHeightWide   = 3 // Wide: 1 row with padding (top + text + bottom)
	FooterHeightNarrow = 6 // Narrow: 2 rows × 3 lines each
	CoverWidth         = 26
	CoverHeight        = 12
	InfoPanelHeight    = 12
	FooterBreakpoint   = 130 // Width threshold for responsive footer
	RefreshInterval    = 100 * time.Millisecond
)

// PauseIcon uses platform-specific character (Windows renders ⏸ as emoji)
var PauseIcon = func() string {
	if runtime.GOOS == "windows" {
		return "❚❚"
	}
	return "⏸"
}()

type UI struct {
	app            *tview.Application
	player         *player.Player
	source         source.Source
	config         *config.Config
	pages          *tview.Pages
	contentLayout  *tview.Flex
	infoView       *tview.TextView
	tagTable       *tview.Table
	artworkPanel   *tview.Image
	helpPanel      *tview.Box
	statusRenderer *StatusRenderer
	stopUpdates    chan struct{}

	mu              sync.Mutex
	currentVolume   int
	isMuted         bool
	lastFooterWidth int
	artwork         image.Image
	pendingErrors   []string
	pendingNotes    []string
	tagsDirty       bool

	colors struct {
		background       tcell.Color
		foreground       tcell.Color
		borders          tcell.Color
		highlight        tcell.Color
		mutedVolume      tcell.Color
		headerBackground tcell.Color
		helpBackground   tcell.Color
		helpForeground   tcell.Color
		helpHotkey       tcell.Color
		modalBackground  tcell.Color
	}
}

// NewUI builds the status screen. Attach the player before Run.
func NewUI(cfg *config.Config, src source.Source) *UI {
	ui := &UI{
		app:           tview.NewApplication(),
		source:        src,
		config:        cfg,
		stopUpdates:   make(chan struct{}),
		currentVolume: cfg.Volume,
	}

	ui.colors.background = config.GetColor(cfg.Theme.Background)
	ui.colors.foreground = config.GetColor(cfg.Theme.Foreground)
	ui.colors.borders = config.GetColor(cfg.Theme.Borders)
	ui.colors.highlight = config.GetColor(cfg.Theme.Highlight)
	ui.colors.mutedVolume = config.GetColor(cfg.Theme.MutedVolume)
	ui.colors.headerBackground = config.GetColor(cfg.Theme.HeaderBackground)
	ui.colors.helpBackground = config.GetColor(cfg.Theme.HelpBackground)
	ui.colors.helpForeground = config.GetColor(cfg.Theme.HelpForeground)
	ui.colors.helpHotkey = config.GetColor(cfg.Theme.HelpHotkey)
	ui.colors.modalBackground = config.GetColor(cfg.Theme.HelpBackground)

	ui.statusRenderer = NewStatusRenderer()
	ui.statusRenderer.SetPrimaryColor(ui.colors.highlight.String())
	return ui
}

// Hooks returns player callbacks that hand events to the draw loop. They
// never touch widgets directly since the player may call them from the
// input handler.
func (ui *UI) Hooks() player.Hooks {
	return player.Hooks{
		OnTagChanged: func(name string, value any) {
			ui.mu.Lock()
			ui.tagsDirty = true
			if img, ok := value.(image.Image); ok {
				ui.artwork = img
			}
			ui.mu.Unlock()
		},
		OnError: func(op, message string) {
			ui.mu.Lock()
			ui.pendingErrors = append(ui.pendingErrors, message)
			ui.mu.Unlock()
		},
		OnClipCreated: func(clip *cache.Clip) {
			note := fmt.Sprintf("%s\n%s, %d Hz, %d ch", clip.Name, clip.Duration().Round(time.Millisecond), clip.SampleRate, clip.Channels)
			ui.mu.Lock()
			ui.pendingNotes = append(ui.pendingNotes, note)
			ui.mu.Unlock()
		},
		OnPlaybackStopped: func() {
			ui.mu.Lock()
			ui.tagsDirty = true
			ui.mu.Unlock()
		},
	}
}

// Attach sets the player driven by this UI and applies the saved volume.
func (ui *UI) Attach(p *player.Player) {
	ui.player = p
	p.SetVolume(ui.currentVolume)
	log.Debug().Msgf("Loaded volume from config: %d%%", ui.currentVolume)
}

func (ui *UI) SaveConfig() {
	ui.mu.Lock()
	if !ui.isMuted {
		ui.config.Volume = ui.currentVolume
	}
	if ui.source.URL != "" && ui.source.Data == nil {
		ui.config.LastURL = ui.source.URL
	}
	ui.mu.Unlock()

	if err := ui.config.Save(); err != nil {
		log.Error().Err(err).Msg("Failed to save config")
	}
}

func (ui *UI) safeCloseChannel() {
	ui.mu.Lock()
	defer ui.mu.Unlock()

	if ui.stopUpdates != nil {
		close(ui.stopUpdates)
		ui.stopUpdates = nil
	}
}

func (ui *UI) stop() {
	ui.player.Stop()
	ui.SaveConfig()
	ui.safeCloseChannel()
	ui.app.Stop()
}

// Shutdown stops the UI gracefully from external callers (e.g., signal handlers).
func (ui *UI) Shutdown() {
	ui.app.QueueUpdateDraw(func() {
		ui.stop()
	})
}

func (ui *UI) Run() error {
	if ui.player == nil {
		return errors.New("ui: no player attached")
	}
	ui.setupUI()
	ui.configureScreen()
	ui.app.SetRoot(ui.pages, true)

	ui.play()
	go ui.refreshLoop(ui.stopUpdates)

	return ui.app.Run()
}

func (ui *UI) configureScreen() {
	bgStyle := tcell.StyleDefault.Background(ui.colors.background)
	ui.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		screen.SetStyle(bgStyle)
		screen.Clear()
		return false
	})

	var titleSet sync.Once
	ui.app.SetAfterDrawFunc(func(screen tcell.Screen) {
		titleSet.Do(func() { screen.SetTitle(config.AppName) })
	})
}

func (ui *UI) refreshLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ui.statusRenderer.AdvanceAnimation()
			ui.app.QueueUpdateDraw(ui.refresh)
		}
	}
}

func (ui *UI) setupUI() {
	header := ui.createHeader()

	ui.artworkPanel = tview.NewImage()
	ui.artworkPanel.SetBackgroundColor(ui.colors.background)
	ui.artworkPanel.SetAlign(tview.AlignLeft, tview.AlignTop)

	ui.infoView = tview.NewTextView()
	ui.infoView.SetDynamicColors(true)
	ui.infoView.SetWrap(false)
	ui.infoView.SetTextColor(ui.colors.foreground)
	ui.infoView.SetBackgroundColor(ui.colors.background)

	artworkWrapper := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(ui.artworkPanel, CoverHeight, 0, false).
		AddItem(nil, 0, 1, false)
	artworkWrapper.SetBackgroundColor(ui.colors.background)

	infoPanel := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 4, 0, false).
		AddItem(artworkWrapper, CoverWidth, 0, false).
		AddItem(ui.infoView, 0, 1, false).
		AddItem(nil, 4, 0, false)
	infoPanel.SetBackgroundColor(ui.colors.background)

	ui.tagTable = ui.createTagTable()
	ui.helpPanel = ui.createFooter()

	ui.contentLayout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(infoPanel, InfoPanelHeight, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(ui.tagTable, 0, 1, true).
		AddItem(ui.helpPanel, FooterHeightWide, 0, false)
	ui.contentLayout.SetBackgroundColor(ui.colors.background)

	wrapper := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(nil, 3, 0, false).
		AddItem(ui.contentLayout, 0, 1, true).
		AddItem(nil, 3, 0, false)
	wrapper.SetBackgroundColor(ui.colors.background)

	mainLayout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(nil, 1, 0, false).
		AddItem(wrapper, 0, 1, true).
		AddItem(nil, 1, 0, false)
	mainLayout.SetBackgroundColor(ui.colors.background)

	ui.pages = tview.NewPages().
		AddPage("main", mainLayout, true, true)
	ui.pages.SetBackgroundColor(ui.colors.background)

	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if ui.pages.HasPage("modal") || ui.pages.HasPage("error-modal") {
			return event
		}
		return ui.globalInputHandler(event)
	})
}

func (ui *UI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + config.AppName)
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(ui.colors.foreground)
	titleView.SetBackgroundColor(ui.colors.headerBackground)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(ui.colors.foreground)
	versionView.SetBackgroundColor(ui.colors.headerBackground)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 10, 0, false)
	textFlex.SetBackgroundColor(ui.colors.headerBackground)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox().SetBackgroundColor(ui.colors.headerBackground), 1, 0, false).
		AddItem(textFlex, 1, 0, false).
		AddItem(tview.NewBox().SetBackgroundColor(ui.colors.headerBackground), 1, 0, false)
	headerFlex.SetBackgroundColor(ui.colors.headerBackground)

	return headerFlex
}

// refresh runs on the draw goroutine.
func (ui *UI) refresh() {
	info := ui.player.Info()

	ui.mu.Lock()
	errs := ui.pendingErrors
	notes := ui.pendingNotes
	ui.pendingErrors, ui.pendingNotes = nil, nil
	tagsDirty := ui.tagsDirty
	ui.tagsDirty = false
	artwork := ui.artwork
	volume, muted := ui.currentVolume, ui.isMuted
	ui.mu.Unlock()

	ui.statusRenderer.Update(info, muted)
	ui.infoView.SetText(ui.renderInfo(info, volume, muted))

	if tagsDirty {
		ui.refreshTagTable(info.Tags)
		if artwork != nil {
			ui.artworkPanel.SetImage(artwork)
		}
	}

	if len(errs) > 0 && !ui.pages.HasPage("error-modal") {
		ui.showPlaybackErrorModal(friendlyErrorMessage(errs[len(errs)-1]))
	}
	for _, note := range notes {
		ui.showInfoModal("Clip created", note)
	}
}

func (ui *UI) renderInfo(info player.Info, volume int, muted bool) string {
	hl := ui.colors.highlight.String()
	row := func(label, value string) string {
		return fmt.Sprintf(" %-11s [%s]%s[-]\n", label+":", hl, value)
	}

	var b strings.Builder
	title := info.Title
	if title == "" {
		title = "-"
	}
	b.WriteString(row("Title", title))
	b.WriteString(row("Source", orDash(info.URL)))
	b.WriteString(row("Profile", info.Profile.String()))
	if info.Format.Valid() {
		b.WriteString(row("Format", fmt.Sprintf("%.1f kHz, %d ch", float64(info.Format.SampleRate)/1000, info.Format.Channels)))
	} else {
		b.WriteString(row("Format", "-"))
	}
	b.WriteString(row("Downloaded", formatDownload(info)))
	b.WriteString(row("Buffered", fmt.Sprintf("%s of %s", humanize.Bytes(uint64(max(info.Available, 0))), humanize.Bytes(uint64(max(info.Capacity, 0))))))
	if info.Session != "" {
		b.WriteString(row("Session", fmt.Sprintf("%s (%s)", info.Session[:8], info.SessionDuration.Round(time.Second))))
	} else {
		b.WriteString(row("Session", "-"))
	}
	if info.Recording {
		b.WriteString(row("Recording", "on"))
	}
	b.WriteString(row("Volume", volumeBar(volume, muted)))
	return b.String()
}

func formatDownload(info player.Info) string {
	got := humanize.Bytes(uint64(max(info.Downloaded, 0)))
	if info.MediaLength < 0 {
		return got + " (live)"
	}
	return fmt.Sprintf("%s of %s", got, humanize.Bytes(uint64(info.MediaLength)))
}

func volumeBar(volume int, muted bool) string {
	const width = 10
	filled := (volume * width) / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	if muted {
		return bar + " muted"
	}
	return fmt.Sprintf("%s %d%%", bar, volume)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (ui *UI) play() {
	if ui.source.URL == "" && ui.source.Data == nil {
		return
	}
	log.Info().Msgf("Starting playback: %s", ui.source.Name())
	if err := ui.player.Play(ui.source); err != nil {
		log.Debug().Err(err).Msg("Play rejected")
	}
}

func (ui *UI) adjustVolume(delta int) {
	ui.mu.Lock()
	if ui.isMuted {
		ui.currentVolume = ui.config.Volume
		ui.isMuted = false
		ui.mu.Unlock()

		ui.player.SetVolume(ui.currentVolume)
		log.Debug().Msgf("Auto-unmuted, restored volume to %d%%", ui.currentVolume)
		return
	}
	ui.currentVolume = config.ClampVolume(ui.currentVolume + delta)
	volume := ui.currentVolume
	ui.mu.Unlock()

	ui.player.SetVolume(volume)
	ui.SaveConfig()
	log.Debug().Msgf("Volume adjusted to %d%%", volume)
}

func (ui *UI) toggleMute() {
	ui.mu.Lock()
	if ui.isMuted {
		ui.currentVolume = ui.config.Volume
		ui.isMuted = false
	} else {
		ui.config.Volume = ui.currentVolume
		if ui.currentVolume == 0 {
			ui.config.Volume = config.DefaultVolume
		}
		ui.currentVolume = 0
		ui.isMuted = true
	}
	volume := ui.currentVolume
	ui.mu.Unlock()

	ui.player.SetVolume(volume)
	ui.SaveConfig()
}

func (ui *UI) globalInputHandler(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			ui.stop()
			return nil
		case ' ':
			switch ui.player.State() {
			case player.StatePlaying, player.StatePaused, player.StateStarving:
				ui.player.TogglePause()
			case player.StateIdle, player.StateStopped:
				ui.play()
			}
			return nil
		case 'p', 'P':
			ui.play()
			return nil
		case 's', 'S':
			ui.player.Stop()
			return nil
		case '+', '=':
			ui.adjustVolume(VolumeStep)
			return nil
		case '-', '_':
			ui.adjustVolume(-VolumeStep)
			return nil
		case 'm', 'M':
			ui.toggleMute()
			return nil
		case '?':
			ui.showHelpModal()
			return nil
		}
	case tcell.KeyEscape:
		ui.stop()
		return nil
	case tcell.KeyRight:
		ui.adjustVolume(VolumeStep)
		return nil
	case tcell.KeyLeft:
		ui.adjustVolume(-VolumeStep)
		return nil
	}
	return event
}
