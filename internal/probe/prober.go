// Package probe extracts container and stream metadata with ffprobe.
package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	// ErrNotFound means the input file does not exist.
	ErrNotFound = errors.New("video file not found")
	// ErrProcess means ffprobe could not be run or exited non-zero.
	ErrProcess = errors.New("ffprobe failed")
	// ErrMalformedOutput means ffprobe produced output that is not valid JSON.
	ErrMalformedOutput = errors.New("malformed ffprobe output")
	// ErrNoVideoStream means the container holds no video stream.
	ErrNoVideoStream = errors.New("no video stream found")
)

var supportedExtensions = map[string]struct{}{
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".wmv": {}, ".flv": {},
	".webm": {}, ".m4v": {}, ".mpeg": {}, ".mpg": {}, ".3gp": {}, ".ts": {},
}

// IsSupported reports whether path has a known video extension.
func IsSupported(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SupportedExtensions returns the known extensions, sorted.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Prober runs ffprobe against local files.
type Prober struct {
	binary string
	logger *slog.Logger
}

// NewProber creates a Prober. An empty binary means "ffprobe" from PATH.
func NewProber(binary string, logger *slog.Logger) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{binary: binary, logger: logger}
}

// Probe returns metadata for the file at path.
func (p *Prober) Probe(ctx context.Context, path string) (*VideoMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrNotFound, path)
	}

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		p.logger.Warn("ffprobe failed", "error", err, "stderr", strings.TrimSpace(stderr.String()))
		return nil, fmt.Errorf("%w: %v", ErrProcess, err)
	}

	meta, err := ParseOutput(output)
	if err != nil {
		return nil, err
	}
	meta.Path = path
	meta.FileSizeBytes = info.Size()

	p.logger.Debug("probed video",
		"duration_ms", meta.DurationMs,
		"resolution", meta.Resolution(),
		"fps", meta.FPS,
		"has_audio", meta.HasAudio,
	)

	return meta, nil
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index        int    `json:"index"`
	CodecName    string `json:"codec_name"`
	CodecType    string `json:"codec_type"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	RFrameRate   string `json:"r_frame_rate"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

// ParseOutput decodes ffprobe's JSON dump. Path and file size are left unset.
func ParseOutput(data []byte) (*VideoMetadata, error) {
	var ff ffprobeOutput
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	var video, audio *ffprobeStream
	for i := range ff.Streams {
		s := &ff.Streams[i]
		switch s.CodecType {
		case "video":
			if video == nil {
				video = s
			}
		case "audio":
			if audio == nil {
				audio = s
			}
		}
	}

	if video == nil {
		return nil, ErrNoVideoStream
	}

	meta := &VideoMetadata{
		Width:      video.Width,
		Height:     video.Height,
		VideoCodec: video.CodecName,
		FPS:        streamFrameRate(video),
	}
	if meta.VideoCodec == "" {
		meta.VideoCodec = "unknown"
	}

	if dur, err := strconv.ParseFloat(ff.Format.Duration, 64); err == nil && dur > 0 {
		meta.DurationMs = int64(dur * 1000)
	}

	if audio != nil {
		meta.HasAudio = true
		meta.AudioCodec = audio.CodecName
	}

	return meta, nil
}

func streamFrameRate(s *ffprobeStream) float64 {
	rate := s.RFrameRate
	if rate == "" {
		rate = s.AvgFrameRate
	}
	return parseFrameRate(rate)
}

// parseFrameRate accepts "num/den" or a plain number. Anything unparseable,
// including a zero denominator, yields 0.
func parseFrameRate(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	num, den, isFraction := strings.Cut(s, "/")
	if !isFraction {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return v
	}

	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0
	}
	d, err := strconv.ParseInt(den, 10, 64)
	if err != nil || d <= 0 {
		return 0
	}
	return math.Round(float64(n)/float64(d)*1000) / 1000
}
