package editor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
	"github.com/simplecut/simplecut-agent/internal/export"
	"github.com/simplecut/simplecut-agent/internal/ffmpeg"
	"github.com/simplecut/simplecut-agent/internal/settings"
)

// ExportRequest overrides the stored preferences for one export. Nil fields
// fall back to them; an empty OutputPath uses the suggested destination.
type ExportRequest struct {
	OutputPath string            `json:"output_path"`
	Mode       *cuts.Mode        `json:"mode,omitempty"`
	Separator  *ffmpeg.Separator `json:"separator,omitempty"`
}

// Export encodes the current segments to a new file. The returned session
// runs in the background; its outcome arrives as an encoding_finished
// notification.
func (w *Workspace) Export(ctx context.Context, req ExportRequest) (*encode.Session, error) {
	w.mu.Lock()
	video := w.video
	prefs := w.prefs
	output := req.OutputPath
	if output == "" {
		output = w.outputPath
	}
	mode := prefs.Mode
	if req.Mode != nil {
		mode = *req.Mode
	}
	sep := prefs.Separator
	if req.Separator != nil {
		if req.Separator.Enabled {
			sep = *req.Separator
		} else {
			sep.Enabled = false
		}
	}
	var segments []cuts.Segment
	if video != nil {
		segments = w.cuts.SegmentsFor(mode)
	}
	w.mu.Unlock()

	if video == nil {
		return nil, ErrNoVideo
	}
	if sep.Enabled {
		if err := settings.ValidateSeparator(sep); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
		}
	}
	if err := export.ValidateOutputFile(output, video.Path); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(segments) == 0 {
		return nil, ffmpeg.ErrNoSegments
	}

	sess, err := w.cfg.Encoder.Start(w.baseCtx, encode.Request{
		Segments: segments,
		Options: ffmpeg.Options{
			InputPath:  video.Path,
			OutputPath: output,
			HasAudio:   video.HasAudio,
			Separator:  sep,
			Width:      video.Width,
			Height:     video.Height,
			FPS:        video.FPS,
		},
	})
	if err != nil {
		return nil, err
	}

	w.rememberExport(ctx, output, mode, sep)
	return sess, nil
}

// rememberExport keeps the destination folder, mode and separator choice for
// the next export.
func (w *Workspace) rememberExport(ctx context.Context, output string, mode cuts.Mode, sep ffmpeg.Separator) {
	w.mu.Lock()
	p := w.prefs
	p.LastOutputDir = filepath.Dir(output)
	p.Mode = mode
	p.Separator = sep
	w.outputPath = output
	w.prefs = p
	w.mu.Unlock()

	if w.cfg.Settings == nil {
		return
	}
	if err := w.savePrefs(ctx, p); err != nil {
		w.logger.Warn("failed to remember export preferences", "error", err)
	}
}

func (w *Workspace) savePrefs(ctx context.Context, p settings.Preferences) error {
	return settings.Save(ctx, w.cfg.Settings, p)
}

// ExportEDL writes the current segments as an edit decision list.
func (w *Workspace) ExportEDL(req export.EDLRequest) (*export.EDLResponse, error) {
	w.mu.Lock()
	video := w.video
	mode := req.Mode
	if mode == "" {
		mode = w.prefs.Mode
	}
	var segments []cuts.Segment
	if video != nil {
		segments = w.cuts.SegmentsFor(mode)
	}
	w.mu.Unlock()

	if video == nil {
		return nil, ErrNoVideo
	}
	if strings.TrimSpace(req.ProjectName) == "" {
		req.ProjectName = strings.TrimSuffix(filepath.Base(video.Path), filepath.Ext(video.Path))
	}
	resp, err := export.WriteEDL(req, export.ClipsFromSegments(video.Path, segments), video.FPS)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	w.logger.Info("edl exported", "path", resp.OutputPath, "clips", resp.ClipCount)
	return resp, nil
}
