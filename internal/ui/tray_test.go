package ui

import (
	"context"
	"testing"

	"github.com/simplecut/simplecut-agent/internal/editor"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/settings"
)

type fakeSource struct {
	video  *probe.VideoMetadata
	status encode.Status
	prefs  settings.Preferences
}

func (f *fakeSource) Video() (*probe.VideoMetadata, bool) { return f.video, f.video != nil }
func (f *fakeSource) EncodingStatus() encode.Status { return f.status }
func (f *fakeSource) CancelExport() bool { return f.status.State == encode.StateRunning }
func (f *fakeSource) Preferences() settings.Preferences { return f.prefs }
func (f *fakeSource) UpdatePreferences(_ context.Context, p settings.Preferences) error {
	f.prefs = p
	return nil
}
func (f *fakeSource) Subscribe(func(editor.Notification)) func() { return func() {} }

func TestCurrentView(t *testing.T) {
	video := &probe.VideoMetadata{Path: "/videos/holiday.mp4", DurationMs: 65000, Width: 1280, Height: 720}

	tests := []struct {
		name       string
		src        *fakeSource
		wantStatus string
		wantVideo  string
		wantCancel bool
	}{
		{
			name:       "idle",
			src:        &fakeSource{status: encode.Status{State: encode.StateIdle}, prefs: settings.Defaults()},
			wantStatus: "Status: Idle",
			wantVideo:  "No video loaded",
		},
		{
			name:       "editing",
			src:        &fakeSource{video: video, status: encode.Status{State: encode.StateIdle}, prefs: settings.Defaults()},
			wantStatus: "Status: Editing",
			wantVideo:  "holiday.mp4 (1280x720, " + video.DurationFormatted() + ")",
		},
		{
			name:       "exporting",
			src:        &fakeSource{video: video, status: encode.Status{State: encode.StateRunning, Percent: 42}, prefs: settings.Defaults()},
			wantStatus: "Status: Exporting 42%",
			wantVideo:  "holiday.mp4 (1280x720, " + video.DurationFormatted() + ")",
			wantCancel: true,
		},
		{
			name: "failed",
			src: &fakeSource{
				status: encode.Status{State: encode.StateIdle, Last: &encode.Result{State: encode.StateFailed}},
				prefs:  settings.Defaults(),
			},
			wantStatus: "Status: Last export failed",
			wantVideo:  "No video loaded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := currentView(tt.src)
			if v.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", v.Status, tt.wantStatus)
			}
			if v.Video != tt.wantVideo {
				t.Errorf("Video = %q, want %q", v.Video, tt.wantVideo)
			}
			if v.CanCancel != tt.wantCancel {
				t.Errorf("CanCancel = %v, want %v", v.CanCancel, tt.wantCancel)
			}
		})
	}
}

func TestThemeLabel(t *testing.T) {
	if got := themeLabel(settings.ThemeDark); got != "Use Light Theme" {
		t.Errorf("dark label = %q", got)
	}
	if got := themeLabel(settings.ThemeLight); got != "Use Dark Theme" {
		t.Errorf("light label = %q", got)
	}
}

func TestRequestRefreshCoalesces(t *testing.T) {
	tray := NewTray(TrayConfig{Source: &fakeSource{prefs: settings.Defaults()}})
	tray.requestRefresh()
	tray.requestRefresh()
	tray.requestRefresh()
	if len(tray.refresh) != 1 {
		t.Fatalf("pending refreshes = %d, want 1", len(tray.refresh))
	}
}
