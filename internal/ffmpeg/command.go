// Package ffmpeg turns source-time segments into an ffmpeg invocation that
// trims and concatenates them in a single pass.
package ffmpeg

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/hwaccel"
)

// ErrNoSegments is returned when there is nothing to encode.
var ErrNoSegments = errors.New("segment list is empty")

const (
	AudioCodec   = "aac"
	AudioBitrate = "192k"

	defaultWidth  = 1920
	defaultHeight = 1080
	defaultFPS    = 30.0

	separatorSampleRate = 48000
)

// SeparatorColor is the fill of a generated separator screen.
type SeparatorColor string

const (
	SeparatorBlack SeparatorColor = "black"
	SeparatorWhite SeparatorColor = "white"
)

// ParseSeparatorColor accepts "black" or "white", defaulting to black.
func ParseSeparatorColor(s string) SeparatorColor {
	if SeparatorColor(strings.ToLower(s)) == SeparatorWhite {
		return SeparatorWhite
	}
	return SeparatorBlack
}

// Separator configures the filler inserted between consecutive segments.
type Separator struct {
	Enabled  bool           `json:"enabled"`
	Duration float64        `json:"duration"` // seconds
	Color    SeparatorColor `json:"color"`
}

// Options are the per-export inputs besides the segment list.
type Options struct {
	InputPath  string
	OutputPath string
	HasAudio   bool
	Separator  Separator

	// Source geometry, used to size separator screens.
	Width  int
	Height int
	FPS    float64
}

// Command is a ready-to-run argument list (without the binary) plus the
// expected output duration used to normalise progress.
type Command struct {
	Args          []string
	TotalDuration float64 // seconds
	FilterGraph   string  // empty on the single-segment path
}

// UsesSeparators reports whether separators apply to n segments.
func (o Options) UsesSeparators(n int) bool {
	return o.Separator.Enabled && o.Separator.Duration > 0 && n > 1
}

type CommandBuilder struct {
	Encoder hwaccel.Encoder
}

func NewCommandBuilder(encoder hwaccel.Encoder) *CommandBuilder {
	return &CommandBuilder{Encoder: encoder}
}

// Build constructs the ffmpeg arguments for segments in the order given.
func (b *CommandBuilder) Build(segments []cuts.Segment, opts Options) (*Command, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	if len(segments) == 1 {
		return b.single(segments[0], opts), nil
	}

	var graph string
	var total float64
	if opts.UsesSeparators(len(segments)) {
		graph = separatorGraph(segments, opts)
		total = TotalDurationWithSeparators(segments, opts.Separator.Duration)
	} else {
		graph = concatGraph(segments, opts.HasAudio)
		total = TotalDuration(segments)
	}

	args := []string{
		"-hide_banner", "-y",
		"-i", opts.InputPath,
		"-filter_complex", graph,
		"-map", "[outv]",
	}
	if opts.HasAudio {
		args = append(args, "-map", "[outa]")
	}
	args = append(args, b.encodeArgs(opts.HasAudio)...)
	args = append(args, progressArgs(opts.OutputPath)...)

	return &Command{Args: args, TotalDuration: total, FilterGraph: graph}, nil
}

// single seeks on the input and reads a bounded duration. No filter graph.
func (b *CommandBuilder) single(seg cuts.Segment, opts Options) *Command {
	args := []string{
		"-hide_banner", "-y",
		"-ss", formatSeconds(seg.Start),
		"-i", opts.InputPath,
		"-t", formatSeconds(seg.Duration()),
	}
	args = append(args, b.encodeArgs(opts.HasAudio)...)
	args = append(args, progressArgs(opts.OutputPath)...)

	return &Command{Args: args, TotalDuration: seg.Duration()}
}

func (b *CommandBuilder) encodeArgs(hasAudio bool) []string {
	args := b.Encoder.VideoArgs()
	args = append(args, "-pix_fmt", "yuv420p")
	if hasAudio {
		return append(args, "-c:a", AudioCodec, "-b:a", AudioBitrate)
	}
	return append(args, "-an")
}

func progressArgs(output string) []string {
	return []string{"-progress", "pipe:1", "-nostats", output}
}

// concatGraph trims each segment from the source and concatenates the pieces.
func concatGraph(segments []cuts.Segment, hasAudio bool) string {
	parts := make([]string, 0, 2*len(segments)+1)
	var inputs strings.Builder

	for i, seg := range segments {
		parts = append(parts, fmt.Sprintf("[0:v]%s,setpts=PTS-STARTPTS[v%d]", trimFilter("trim", seg), i))
		fmt.Fprintf(&inputs, "[v%d]", i)
		if hasAudio {
			parts = append(parts, fmt.Sprintf("[0:a]%s,asetpts=PTS-STARTPTS[a%d]", trimFilter("atrim", seg), i))
			fmt.Fprintf(&inputs, "[a%d]", i)
		}
	}

	parts = append(parts, inputs.String()+concatFilter(len(segments), hasAudio))
	return strings.Join(parts, ";")
}

// separatorGraph interleaves generated colour screens (and silence) between
// segments. Every input is normalised so concat accepts the mix.
func separatorGraph(segments []cuts.Segment, opts Options) string {
	width, height, fps := geometry(opts)
	color := ParseSeparatorColor(string(opts.Separator.Color))
	dur := formatSeconds(opts.Separator.Duration)

	var parts []string
	var inputs strings.Builder
	count := 0

	for i, seg := range segments {
		if i > 0 {
			sep := i - 1
			parts = append(parts, fmt.Sprintf(
				"color=c=%s:s=%dx%d:r=%s:d=%s,setsar=1,format=yuv420p[sv%d]",
				color, width, height, formatRate(fps), dur, sep))
			fmt.Fprintf(&inputs, "[sv%d]", sep)
			if opts.HasAudio {
				parts = append(parts, fmt.Sprintf(
					"anullsrc=channel_layout=stereo:sample_rate=%d,atrim=duration=%s,asetpts=PTS-STARTPTS[sa%d]",
					separatorSampleRate, dur, sep))
				fmt.Fprintf(&inputs, "[sa%d]", sep)
			}
			count++
		}

		parts = append(parts, fmt.Sprintf(
			"[0:v]%s,setpts=PTS-STARTPTS,scale=%d:%d,setsar=1,format=yuv420p[v%d]",
			trimFilter("trim", seg), width, height, i))
		fmt.Fprintf(&inputs, "[v%d]", i)
		if opts.HasAudio {
			parts = append(parts, fmt.Sprintf(
				"[0:a]%s,asetpts=PTS-STARTPTS,aformat=sample_rates=%d:channel_layouts=stereo[a%d]",
				trimFilter("atrim", seg), separatorSampleRate, i))
			fmt.Fprintf(&inputs, "[a%d]", i)
		}
		count++
	}

	parts = append(parts, inputs.String()+concatFilter(count, opts.HasAudio))
	return strings.Join(parts, ";")
}

func concatFilter(n int, hasAudio bool) string {
	if hasAudio {
		return fmt.Sprintf("concat=n=%d:v=1:a=1[outv][outa]", n)
	}
	return fmt.Sprintf("concat=n=%d:v=1:a=0[outv]", n)
}

func trimFilter(name string, seg cuts.Segment) string {
	return fmt.Sprintf("%s=start=%s:end=%s", name, formatSeconds(seg.Start), formatSeconds(seg.End))
}

func geometry(opts Options) (int, int, float64) {
	width, height, fps := opts.Width, opts.Height, opts.FPS
	if width <= 0 || height <= 0 {
		width, height = defaultWidth, defaultHeight
	}
	// yuv420p needs even dimensions
	width -= width % 2
	height -= height % 2
	if fps <= 0 {
		fps = defaultFPS
	}
	return width, height, fps
}

// TotalDuration is the summed length of segments, in seconds.
func TotalDuration(segments []cuts.Segment) float64 {
	var total float64
	for _, s := range segments {
		total += s.Duration()
	}
	return total
}

// TotalDurationWithSeparators adds one separator between each pair of
// consecutive segments.
func TotalDurationWithSeparators(segments []cuts.Segment, separatorDuration float64) float64 {
	total := TotalDuration(segments)
	if len(segments) > 1 {
		total += float64(len(segments)-1) * separatorDuration
	}
	return total
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func formatRate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
