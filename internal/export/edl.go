package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/simplecut/simplecut-agent/internal/cuts"
)

const maxProjectNameLen = 80

// ClipsFromSegments names each segment after the source file and its
// position in the output.
func ClipsFromSegments(mediaPath string, segments []cuts.Segment) []Clip {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	clips := make([]Clip, len(segments))
	for i, seg := range segments {
		clips[i] = Clip{
			ClipName:  fmt.Sprintf("%s #%d", base, i+1),
			MediaPath: mediaPath,
			StartMs:   int64(math.Round(seg.Start * 1000)),
			EndMs:     int64(math.Round(seg.End * 1000)),
		}
	}
	return clips
}

// GenerateEDL renders a CMX3600 edit list with the clips laid end to end on
// the record side.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = 30
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	var recordOffsetMs int64
	for i, clip := range clips {
		srcIn := msToTimecode(clip.StartMs, fps)
		srcOut := msToTimecode(clip.EndMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		durationMs := clip.EndMs - clip.StartMs
		recOut := msToTimecode(recordOffsetMs+durationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s C        %s %s %s %s", i+1, "AX", "AA/V", srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.ClipName),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		recordOffsetMs += durationMs
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// WriteEDL writes the cut list to <output_dir>/<project>.edl.
func WriteEDL(req EDLRequest, clips []Clip, frameRate float64) (*EDLResponse, error) {
	if err := ValidateOutputDir(req.OutputDir); err != nil {
		return nil, err
	}
	if len(clips) == 0 {
		return nil, fmt.Errorf("no segments to export")
	}
	name := SanitizeName(req.ProjectName, maxProjectNameLen)
	if name == "" {
		name = "simplecut"
	}

	path := filepath.Join(req.OutputDir, name+".edl")
	if err := os.WriteFile(path, []byte(GenerateEDL(clips, name, frameRate)), 0644); err != nil {
		return nil, fmt.Errorf("failed to write edl: %w", err)
	}
	return &EDLResponse{
		Status:     "ok",
		Format:     FormatEDL,
		OutputPath: path,
		ClipCount:  len(clips),
	}, nil
}

// SuggestOutputPath proposes <dir>/<stem>_cut.mp4 next to the source.
func SuggestOutputPath(inputPath string) string {
	dir := filepath.Dir(inputPath)
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	return filepath.Join(dir, stem+"_cut.mp4")
}

func msToTimecode(ms int64, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
