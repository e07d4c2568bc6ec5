package ui

import (
	"image"
	"strings"
	"testing"

	"github.com/glebovdev/audiostream/internal/config"
	"github.com/glebovdev/audiostream/internal/pcm"
	"github.com/glebovdev/audiostream/internal/player"
	"github.com/glebovdev/audiostream/internal/source"
)

var stereo = pcm.Format{SampleRate: 44100, Channels: 2, BytesPerSample: 2}

func TestJoinParts(t *testing.T) {
	tests := []struct {
		name     string
		parts    []string
		expected string
	}{
		{"empty slice", []string{}, ""},
		{"single part", []string{"PLAYING"}, "PLAYING"},
		{"two parts", []string{"PLAYING", "44.1kHz"}, "PLAYING │ 44.1kHz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := joinParts(tt.parts); got != tt.expected {
				t.Errorf("joinParts(%v) = %q, want %q", tt.parts, got, tt.expected)
			}
		})
	}
}

func TestFormatBufferHealth(t *testing.T) {
	tests := []struct {
		percent  int
		expected string
	}{
		{0, "▁▁▁▁▁"},
		{40, "▁▂▁▁▁"},
		{100, "▁▂▃▅▇"},
		{250, "▁▂▃▅▇"},
	}

	for _, tt := range tests {
		if got := formatBufferHealth(tt.percent); got != tt.expected {
			t.Errorf("formatBufferHealth(%d) = %q, want %q", tt.percent, got, tt.expected)
		}
	}
}

func TestBufferHealth(t *testing.T) {
	tests := []struct {
		name string
		info player.Info
		want int
	}{
		{"no format", player.Info{Queued: 1000}, 0},
		{"half a second", player.Info{Format: stereo, Queued: 44100}, 50},
		{"capped", player.Info{Format: stereo, Queued: 500000}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := bufferHealth(tt.info); got != tt.want {
				t.Errorf("bufferHealth() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestStatusRendererStates(t *testing.T) {
	tests := []struct {
		name     string
		info     player.Info
		muted    bool
		contains string
	}{
		{"idle", player.Info{State: player.StateIdle}, false, "IDLE"},
		{"idle muted", player.Info{State: player.StateIdle}, true, "MUTED"},
		{"resolving", player.Info{State: player.StateResolving}, false, "RESOLVING"},
		{"buffering", player.Info{State: player.StateBuffering, Downloaded: 2048}, false, "BUFFERING 2.0 kB"},
		{"connecting", player.Info{State: player.StateConnecting, ConnectPolls: 3, ConnectRetries: 30}, false, "CONNECTING 3/30"},
		{"live", player.Info{State: player.StatePlaying, MediaLength: -1, Downloaded: 10, Format: stereo}, false, "LIVE"},
		{"file", player.Info{State: player.StatePlaying, MediaLength: 100, Downloaded: 10, Format: stereo}, false, "PLAYING │ 44.1kHz 2ch"},
		{"recording", player.Info{State: player.StatePlaying, Recording: true}, false, "REC"},
		{"paused", player.Info{State: player.StatePaused, Format: stereo}, false, "PAUSED │ 44.1kHz 2ch"},
		{"starving", player.Info{State: player.StateStarving}, false, "STARVING"},
		{"retry bounded", player.Info{State: player.StateReconnecting, Reconnects: 2, MaxReconnects: 5}, false, "RETRY 2/5"},
		{"retry unbounded", player.Info{State: player.StateReconnecting, Reconnects: 4}, false, "RETRY 4"},
		{"stopped", player.Info{State: player.StateStopped}, false, "STOPPED"},
		{"stopped with error", player.Info{State: player.StateStopped, LastError: "transport: download: boom"}, false, "✗ transport: download: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewStatusRenderer()
			r.Update(tt.info, tt.muted)
			if got := r.Render(); !strings.Contains(got, tt.contains) {
				t.Errorf("Render() = %q, want it to contain %q", got, tt.contains)
			}
		})
	}
}

func TestStatusRendererAnimation(t *testing.T) {
	r := NewStatusRenderer()
	r.Update(player.Info{State: player.StateBuffering}, false)

	first := r.Render()
	for i := 0; i < r.ticksPerFrame; i++ {
		r.AdvanceAnimation()
	}
	if r.Render() == first {
		t.Error("spinner frame did not advance")
	}
}

func TestShortError(t *testing.T) {
	long := strings.Repeat("x", 80)
	if got := shortError(long); len(got) != 60 || !strings.HasSuffix(got, "...") {
		t.Errorf("shortError() = %q", got)
	}
	if got := shortError("short"); got != "short" {
		t.Errorf("shortError(short) = %q", got)
	}
}

func TestFriendlyErrorMessage(t *testing.T) {
	tests := []struct {
		input    string
		contains string
	}{
		{"dial tcp: lookup x: no such host", "Unable to connect"},
		{"connection refused", "Connection refused"},
		{"context deadline exceeded", "timed out"},
		{"transport: download: stream returned status 404: Not Found", "not found (404)"},
		{"transport: download: stream returned status 403: Forbidden", "forbidden (403)"},
		{"starvation: stream: stream starved", "stopped delivering"},
		{"transport: connect: can't start playback after 30 polls", "Can't start playback"},
		{"unstable shutdown: release sound: sound is still opening", "still shutting down"},
		{"Get \"http://x\": dial tcp 1.2.3.4:80", "Get \"http://x\""},
		{strings.Repeat("a", 150), strings.Repeat("a", 100) + "..."},
	}

	for _, tt := range tests {
		got := friendlyErrorMessage(tt.input)
		if !strings.Contains(got, tt.contains) {
			t.Errorf("friendlyErrorMessage(%q) = %q, want it to contain %q", tt.input, got, tt.contains)
		}
	}
}

func TestFormatTagValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "Night Drive", "Night Drive"},
		{"escaped", "[red]x", "[red[]x"},
		{"float", float32(44100), "44100.00"},
		{"int", int64(7), "7"},
		{"binary", []byte{1, 2, 3}, "3 B binary"},
		{"image", image.NewRGBA(image.Rect(0, 0, 4, 3)), "image 4x3"},
		{"nil", nil, ""},
		{"other", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatTagValue(tt.in); got != tt.want {
				t.Errorf("formatTagValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTagRowsSorted(t *testing.T) {
	rows := tagRows(map[string]any{"TITLE": "b", "ARTIST": "a", "icy-name": "c"})
	want := []string{"ARTIST", "TITLE", "icy-name"}
	if len(rows) != len(want) {
		t.Fatalf("tagRows() returned %d rows", len(rows))
	}
	for i, name := range want {
		if rows[i][0] != name {
			t.Errorf("row %d = %q, want %q", i, rows[i][0], name)
		}
	}
}

func TestVolumeBar(t *testing.T) {
	tests := []struct {
		volume int
		muted  bool
		want   string
	}{
		{0, false, "░░░░░░░░░░ 0%"},
		{50, false, "█████░░░░░ 50%"},
		{100, false, "██████████ 100%"},
		{70, true, "███████░░░ muted"},
	}
	for _, tt := range tests {
		if got := volumeBar(tt.volume, tt.muted); got != tt.want {
			t.Errorf("volumeBar(%d, %v) = %q, want %q", tt.volume, tt.muted, got, tt.want)
		}
	}
}

func TestFormatDownload(t *testing.T) {
	if got := formatDownload(player.Info{Downloaded: 1000, MediaLength: -1}); got != "1.0 kB (live)" {
		t.Errorf("formatDownload(live) = %q", got)
	}
	if got := formatDownload(player.Info{Downloaded: 1000, MediaLength: 2000}); got != "1.0 kB of 2.0 kB" {
		t.Errorf("formatDownload(file) = %q", got)
	}
}

func TestHooksQueueEvents(t *testing.T) {
	ui := NewUI(config.DefaultConfig(), source.Source{})
	hooks := ui.Hooks()

	hooks.OnError("play", "config: play: stream url is empty")
	hooks.OnTagChanged("APIC_3", image.NewRGBA(image.Rect(0, 0, 1, 1)))

	ui.mu.Lock()
	defer ui.mu.Unlock()
	if len(ui.pendingErrors) != 1 {
		t.Errorf("pendingErrors = %v", ui.pendingErrors)
	}
	if !ui.tagsDirty || ui.artwork == nil {
		t.Error("picture tag did not mark the artwork")
	}
}

func TestSaveConfigPersistsVolume(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg := config.DefaultConfig()
	ui := NewUI(cfg, source.Source{URL: "http://radio.example/live"})
	ui.currentVolume = 35
	ui.SaveConfig()

	loaded, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	if loaded.Volume != 35 {
		t.Errorf("Volume = %d, want 35", loaded.Volume)
	}
	if loaded.LastURL != "http://radio.example/live" {
		t.Errorf("LastURL = %q", loaded.LastURL)
	}
}
