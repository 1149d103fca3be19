package ui

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/getlantern/systray"

	"github.com/simplecut/simplecut-agent/internal/editor"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/settings"
)

// Source is the part of the workspace the tray reads and drives.
type Source interface {
	Video() (*probe.VideoMetadata, bool)
	EncodingStatus() encode.Status
	CancelExport() bool
	Preferences() settings.Preferences
	UpdatePreferences(ctx context.Context, p settings.Preferences) error
	Subscribe(fn func(editor.Notification)) func()
}

type Tray struct {
	source Source
	logger *slog.Logger
	url    string

	statusItem *systray.MenuItem
	videoItem  *systray.MenuItem
	cancelItem *systray.MenuItem
	themeItem  *systray.MenuItem

	mu      sync.Mutex
	refresh chan struct{}
	unsub   func()

	onQuit func()
}

type TrayConfig struct {
	Source Source
	Logger *slog.Logger
	URL    string // shown in the menu; optional
	OnQuit func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		source:  cfg.Source,
		logger:  cfg.Logger,
		url:     cfg.URL,
		refresh: make(chan struct{}, 1),
		onQuit:  cfg.OnQuit,
	}
}

// Run blocks on the platform event loop until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("SimpleCut")
	systray.SetTooltip("SimpleCut Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.videoItem = systray.AddMenuItem("No video loaded", "Video being edited")
	t.videoItem.Disable()

	if t.url != "" {
		urlItem := systray.AddMenuItem("API: "+t.url, "Local API address")
		urlItem.Disable()
	}

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Export", "Stop the running export")
	t.cancelItem.Disable()

	t.themeItem = systray.AddMenuItem(themeLabel(t.source.Preferences().Theme), "Switch between dark and light")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit SimpleCut Agent")

	// workspace listeners run under its lock; only signal from here
	t.mu.Lock()
	t.unsub = t.source.Subscribe(func(editor.Notification) { t.requestRefresh() })
	t.mu.Unlock()
	t.requestRefresh()

	go func() {
		for {
			select {
			case <-t.refresh:
				t.apply()
			case <-t.cancelItem.ClickedCh:
				if t.source.CancelExport() {
					t.logger.Info("export cancelled from tray")
				}
			case <-t.themeItem.ClickedCh:
				t.toggleTheme()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.mu.Lock()
	if t.unsub != nil {
		t.unsub()
		t.unsub = nil
	}
	t.mu.Unlock()
	t.logger.Info("system tray exiting")
}

func (t *Tray) requestRefresh() {
	select {
	case t.refresh <- struct{}{}:
	default:
	}
}

func (t *Tray) apply() {
	v := currentView(t.source)

	t.statusItem.SetTitle(v.Status)
	t.videoItem.SetTitle(v.Video)
	if v.CanCancel {
		t.cancelItem.Enable()
	} else {
		t.cancelItem.Disable()
	}
	t.themeItem.SetTitle(v.ThemeLabel)
	systray.SetTooltip(v.Tooltip)
}

func (t *Tray) toggleTheme() {
	prefs := t.source.Preferences()
	prefs.ToggleTheme()
	if err := t.source.UpdatePreferences(context.Background(), prefs); err != nil {
		t.logger.Error("failed to switch theme", "error", err)
		return
	}
	t.requestRefresh()
}

func (t *Tray) Quit() {
	systray.Quit()
}

// view holds the menu text for one state of the workspace.
type view struct {
	Status     string
	Video      string
	Tooltip    string
	ThemeLabel string
	CanCancel  bool
}

func currentView(s Source) view {
	st := s.EncodingStatus()
	meta, loaded := s.Video()

	v := view{
		Status:     "Status: Idle",
		Video:      "No video loaded",
		Tooltip:    "SimpleCut Agent",
		ThemeLabel: themeLabel(s.Preferences().Theme),
	}
	if loaded {
		v.Video = fmt.Sprintf("%s (%s, %s)", filepath.Base(meta.Path), meta.Resolution(), meta.DurationFormatted())
		v.Status = "Status: Editing"
	}

	switch {
	case st.State == encode.StateRunning:
		v.Status = fmt.Sprintf("Status: Exporting %d%%", st.Percent)
		v.Tooltip = fmt.Sprintf("SimpleCut Agent - exporting %d%%", st.Percent)
		v.CanCancel = true
	case st.Last != nil && st.Last.State == encode.StateFailed:
		v.Status = "Status: Last export failed"
	case st.Last != nil && st.Last.State == encode.StateCancelled:
		v.Status = "Status: Last export cancelled"
	}
	return v
}

func themeLabel(current settings.Theme) string {
	if current == settings.ThemeDark {
		return "Use Light Theme"
	}
	return "Use Dark Theme"
}
