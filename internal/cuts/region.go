// Package cuts holds the cut-region model: A/B marker placement, the sorted
// region list, linear undo/redo history and the derivation of output segments.
//
// A Manager is not safe for concurrent use. Callers serialise access, in
// practice by driving it from a single goroutine or behind a mutex.
package cuts

// MinRegionMs is the shortest span a region may cover.
const MinRegionMs int64 = 100

// Color is a display tag for a region.
type Color string

// Palette is cycled through as regions are created.
var Palette = []Color{
	"#4CAF50",
	"#2196F3",
	"#FF9800",
	"#9C27B0",
	"#00BCD4",
	"#E91E63",
}

// Region is a committed time interval in source-video milliseconds.
type Region struct {
	StartMs int64 `json:"start_ms"`
	EndMs   int64 `json:"end_ms"`
	Color   Color `json:"color"`
}

func (r Region) DurationMs() int64 {
	return r.EndMs - r.StartMs
}

// Contains reports whether pos lies within the region, bounds inclusive.
func (r Region) Contains(posMs int64) bool {
	return r.StartMs <= posMs && posMs <= r.EndMs
}

// Overlaps reports whether the two regions share time. Touching endpoints do
// not count.
func (r Region) Overlaps(o Region) bool {
	return !(r.EndMs <= o.StartMs || r.StartMs >= o.EndMs)
}

func (r Region) Segment() Segment {
	return Segment{Start: msToSeconds(r.StartMs), End: msToSeconds(r.EndMs)}
}

// Segment is a time range in seconds on the source timeline.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func msToSeconds(ms int64) float64 {
	return float64(ms) / 1000.0
}

func copyRegions(regions []Region) []Region {
	out := make([]Region, len(regions))
	copy(out, regions)
	return out
}
