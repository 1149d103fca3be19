// Package editor ties the pieces of a trimming session together: the loaded
// video, its cut regions, user preferences and the encoder.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/export"
	"github.com/simplecut/simplecut-agent/internal/logging"
	"github.com/simplecut/simplecut-agent/internal/probe"
	"github.com/simplecut/simplecut-agent/internal/settings"
)

var (
	// ErrNoVideo is returned by region operations before a video is loaded.
	ErrNoVideo = errors.New("no video loaded")
	// ErrRejected means the region model refused the operation.
	ErrRejected = errors.New("operation rejected")
	// ErrUnsupported is returned for files with an unknown extension.
	ErrUnsupported = errors.New("unsupported video format")
	// ErrEncoding is returned when the video cannot change mid-export.
	ErrEncoding = errors.New("an export is in progress")
	// ErrInvalidOutput wraps output path validation failures.
	ErrInvalidOutput = errors.New("invalid output")
	// ErrInvalidOptions wraps rejected per-export encoding options.
	ErrInvalidOptions = errors.New("invalid export options")
)

// Prober extracts video metadata.
type Prober interface {
	Probe(ctx context.Context, path string) (*probe.VideoMetadata, error)
}

// Encoder is the session controller as seen by the workspace.
type Encoder interface {
	Start(ctx context.Context, req encode.Request) (*encode.Session, error)
	Cancel() bool
	IsRunning() bool
	Status() encode.Status
	Subscribe(fn encode.Listener) func()
}

// Player is told which file the preview should stream.
type Player interface {
	SetSource(path string)
}

type Config struct {
	Prober   Prober
	Encoder  Encoder
	Player   Player         // optional
	Settings settings.Store // optional; preferences stay in memory without it
	Logger   *slog.Logger
}

// Workspace is the single editing session of the agent. All methods are safe
// for concurrent use.
type Workspace struct {
	cfg    Config
	logger *slog.Logger

	// sessions outlive the requests that start them
	baseCtx context.Context
	stop    context.CancelFunc

	mu         sync.Mutex
	cuts       *cuts.Manager
	video      *probe.VideoMetadata
	outputPath string
	prefs      settings.Preferences

	lmu       sync.Mutex
	listeners map[int]func(Notification)
	nextID    int

	unsubscribe []func()
}

// New creates a workspace and loads stored preferences.
func New(ctx context.Context, cfg Config) (*Workspace, error) {
	if cfg.Prober == nil || cfg.Encoder == nil {
		return nil, errors.New("editor: prober and encoder are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	prefs := settings.Defaults()
	if cfg.Settings != nil {
		p, err := settings.Load(ctx, cfg.Settings)
		if err != nil {
			return nil, fmt.Errorf("load preferences: %w", err)
		}
		prefs = p
	}

	base, stop := context.WithCancel(context.Background())
	w := &Workspace{
		cfg:       cfg,
		logger:    logging.WithComponent(cfg.Logger, "editor"),
		baseCtx:   base,
		stop:      stop,
		cuts:      cuts.NewManager(),
		prefs:     prefs,
		listeners: make(map[int]func(Notification)),
	}
	w.unsubscribe = append(w.unsubscribe,
		w.cuts.Subscribe(w.onCutsEvent),
		cfg.Encoder.Subscribe(w.onEncodeEvent),
	)
	return w, nil
}

// Close cancels any running export and detaches from the encoder.
func (w *Workspace) Close() {
	w.stop()
	for _, fn := range w.unsubscribe {
		fn()
	}
}

// LoadVideo probes path and makes it the current video. The region model is
// reset to the new duration.
func (w *Workspace) LoadVideo(ctx context.Context, path string) (*probe.VideoMetadata, error) {
	if !probe.IsSupported(path) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, filepath.Ext(path))
	}
	if w.cfg.Encoder.IsRunning() {
		return nil, ErrEncoding
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	meta, err := w.cfg.Prober.Probe(ctx, abs)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.video = meta
	w.outputPath = export.SuggestOutputPath(abs)
	if w.prefs.LastOutputDir != "" {
		w.outputPath = filepath.Join(w.prefs.LastOutputDir, filepath.Base(w.outputPath))
	}
	w.cuts.SetVideoDuration(meta.DurationMs)
	w.mu.Unlock()

	if w.cfg.Player != nil {
		w.cfg.Player.SetSource(abs)
	}
	w.logger.Info("video loaded",
		"path", logging.SanitizePath(abs),
		"duration", meta.DurationFormatted(),
		"resolution", meta.Resolution(),
		"fps", meta.FPS,
		"audio", meta.HasAudio,
	)
	w.notify(Notification{Type: NotifyVideoLoaded, Data: meta})
	return meta, nil
}

// Video returns the loaded video's metadata.
func (w *Workspace) Video() (*probe.VideoMetadata, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.video, w.video != nil
}

// SuggestedOutput is the default export destination for the loaded video.
func (w *Workspace) SuggestedOutput() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.outputPath
}

// Snapshot returns the region model state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

func (w *Workspace) snapshotLocked() Snapshot {
	s := Snapshot{
		Regions:     w.cuts.Regions(),
		DurationMs:  w.cuts.DurationMs(),
		SelectedMs:  w.cuts.TotalSelectedDurationMs(),
		HasOverlaps: w.cuts.HasOverlappingRegions(),
		CanUndo:     w.cuts.CanUndo(),
		CanRedo:     w.cuts.CanRedo(),
		VideoLoaded: w.video != nil,
	}
	if pos, ok := w.cuts.PendingMarker(); ok {
		s.PendingMarkerMs = &pos
	}
	return s
}

// edit runs fn against the region model once a video is loaded.
func (w *Workspace) edit(fn func(m *cuts.Manager) bool) (Snapshot, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.video == nil {
		return Snapshot{}, ErrNoVideo
	}
	if !fn(w.cuts) {
		return w.snapshotLocked(), ErrRejected
	}
	return w.snapshotLocked(), nil
}

func (w *Workspace) SetMarkerA(posMs int64) (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.SetMarkerA(posMs) })
}

func (w *Workspace) SetMarkerB(posMs int64) (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.SetMarkerB(posMs) })
}

func (w *Workspace) CancelMarkerA() (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool {
		m.CancelMarkerA()
		return true
	})
}

func (w *Workspace) EditRegion(index int, startMs, endMs int64) (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.EditRegion(index, startMs, endMs) })
}

func (w *Workspace) RemoveRegion(index int) (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.RemoveRegion(index) })
}

func (w *Workspace) RemoveRegionAt(posMs int64) (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.RemoveRegionAt(posMs) })
}

func (w *Workspace) ClearAll() (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool {
		m.ClearAll()
		return true
	})
}

func (w *Workspace) MergeOverlapping() (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool {
		m.MergeOverlappingRegions()
		return true
	})
}

func (w *Workspace) Undo() (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.Undo() })
}

func (w *Workspace) Redo() (Snapshot, error) {
	return w.edit(func(m *cuts.Manager) bool { return m.Redo() })
}

// Segments derives the output segments for mode.
func (w *Workspace) Segments(mode cuts.Mode) ([]cuts.Segment, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.video == nil {
		return nil, ErrNoVideo
	}
	return w.cuts.SegmentsFor(mode), nil
}

// Preferences returns the current user preferences.
func (w *Workspace) Preferences() settings.Preferences {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prefs
}

// UpdatePreferences validates and stores p.
func (w *Workspace) UpdatePreferences(ctx context.Context, p settings.Preferences) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if w.cfg.Settings != nil {
		if err := settings.Save(ctx, w.cfg.Settings, p); err != nil {
			return err
		}
	}
	w.mu.Lock()
	w.prefs = p
	w.mu.Unlock()
	w.notify(Notification{Type: NotifySettingsChanged, Data: p})
	return nil
}

// EncodingStatus reports the controller state.
func (w *Workspace) EncodingStatus() encode.Status {
	return w.cfg.Encoder.Status()
}

// CancelExport stops the running export, if any.
func (w *Workspace) CancelExport() bool {
	return w.cfg.Encoder.Cancel()
}
