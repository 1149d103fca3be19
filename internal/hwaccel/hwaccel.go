// Package hwaccel picks the H.264 encoder used for exports.
//
// Candidates are tried in priority order. An encoder counts as available only
// when ffmpeg both lists it and completes a one-frame trial encode with it.
package hwaccel

import (
	"bufio"
	"bytes"
	"context"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const trialTimeout = 10 * time.Second

// Encoder describes a video encoder and how to drive its quality control.
type Encoder struct {
	Name     string   `json:"name"`
	Display  string   `json:"display"`
	Hardware bool     `json:"hardware"`
	quality  []string // rate-control arguments following -c:v
}

// VideoArgs returns the -c:v selection plus rate-control arguments.
func (e Encoder) VideoArgs() []string {
	args := []string{"-c:v", e.Name}
	return append(args, e.quality...)
}

var (
	NVENC = Encoder{
		Name:     "h264_nvenc",
		Display:  "NVIDIA NVENC (GPU)",
		Hardware: true,
		quality:  []string{"-preset", "p4", "-rc", "vbr", "-cq", "19", "-b:v", "0"},
	}
	QSV = Encoder{
		Name:     "h264_qsv",
		Display:  "Intel Quick Sync (GPU)",
		Hardware: true,
		quality:  []string{"-preset", "medium", "-global_quality", "20"},
	}
	AMF = Encoder{
		Name:     "h264_amf",
		Display:  "AMD AMF (GPU)",
		Hardware: true,
		quality:  []string{"-quality", "balanced", "-rc", "cqp", "-qp_i", "18", "-qp_p", "20"},
	}
	VideoToolbox = Encoder{
		Name:     "h264_videotoolbox",
		Display:  "Apple VideoToolbox (GPU)",
		Hardware: true,
		quality:  []string{"-q:v", "65"},
	}
	Software = Encoder{
		Name:    "libx264",
		Display: "libx264 (CPU)",
		quality: []string{"-preset", "medium", "-crf", "18"},
	}
)

// Priority is the order in which hardware encoders are tried.
var Priority = []Encoder{NVENC, QSV, AMF, VideoToolbox}

var known = []Encoder{NVENC, QSV, AMF, VideoToolbox, Software}

// DisplayName maps an encoder name to a human label, falling back to the name.
func DisplayName(name string) string {
	for _, e := range known {
		if e.Name == name {
			return e.Display
		}
	}
	return name
}

// Lookup returns the known encoder with the given name.
func Lookup(name string) (Encoder, bool) {
	for _, e := range known {
		if e.Name == name {
			return e, true
		}
	}
	return Encoder{}, false
}

// Detector probes ffmpeg once and remembers the answer for the life of the
// process. There is no invalidation; a driver change needs a restart.
type Detector struct {
	binary   string
	disabled bool
	logger   *slog.Logger

	mu       sync.Mutex
	detected *Encoder
}

// NewDetector creates a Detector. With disabled set the software encoder is
// always returned and ffmpeg is never run.
func NewDetector(binary string, disabled bool, logger *slog.Logger) *Detector {
	if binary == "" {
		binary = "ffmpeg"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{binary: binary, disabled: disabled, logger: logger}
}

// Encoder returns the best working encoder, probing on first use.
func (d *Detector) Encoder(ctx context.Context) Encoder {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.detected != nil {
		return *d.detected
	}

	enc := d.detect(ctx)
	if ctx.Err() != nil {
		// interrupted probes say nothing about the hardware
		return enc
	}
	d.detected = &enc
	return enc
}

// Peek returns the cached encoder without probing.
func (d *Detector) Peek() (Encoder, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.detected == nil {
		return Encoder{}, false
	}
	return *d.detected, true
}

func (d *Detector) detect(ctx context.Context) Encoder {
	if d.disabled {
		d.logger.Info("hardware encoding disabled", "encoder", Software.Name)
		return Software
	}

	listed, err := d.listEncoders(ctx)
	if err != nil {
		d.logger.Warn("cannot list ffmpeg encoders", "error", err)
		return Software
	}

	for _, candidate := range Priority {
		if !listed[candidate.Name] {
			continue
		}
		if err := d.trial(ctx, candidate.Name); err != nil {
			d.logger.Info("encoder advertised but unusable", "encoder", candidate.Name, "error", err)
			continue
		}
		d.logger.Info("hardware encoder selected", "encoder", candidate.Name)
		return candidate
	}

	d.logger.Info("no hardware encoder available", "encoder", Software.Name)
	return Software
}

func (d *Detector) listEncoders(ctx context.Context) (map[string]bool, error) {
	cmd := exec.CommandContext(ctx, d.binary, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}
	return parseEncoders(output), nil
}

// parseEncoders extracts encoder names from `ffmpeg -encoders` output.
func parseEncoders(output []byte) map[string]bool {
	result := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[1] == "=" {
			continue
		}
		// capability flags column, e.g. "V....D"
		if len(fields[0]) != 6 || strings.Trim(fields[0], "VASFXBD.") != "" {
			continue
		}
		result[fields[1]] = true
	}
	return result
}

func (d *Detector) trial(ctx context.Context, encoder string) error {
	ctx, cancel := context.WithTimeout(ctx, trialTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.binary,
		"-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "color=black:s=256x256:d=0.1",
		"-frames:v", "1",
		"-c:v", encoder,
		"-f", "null", "-",
	)
	return cmd.Run()
}
