package cuts

// Mode selects how regions translate into output.
type Mode string

const (
	// ModeKeep exports the regions themselves.
	ModeKeep Mode = "keep"
	// ModeCut exports everything except the regions.
	ModeCut Mode = "cut"
)

// ParseMode maps "keep"/"cut" to a Mode, defaulting to keep.
func ParseMode(s string) Mode {
	if Mode(s) == ModeCut {
		return ModeCut
	}
	return ModeKeep
}

// FinalSegments derives the source segments to export. Without regions the
// whole video is returned, or nothing for a zero-length video.
func (m *Manager) FinalSegments(keepMode bool) []Segment {
	if len(m.regions) == 0 {
		if m.durationMs > 0 {
			return []Segment{{Start: 0, End: msToSeconds(m.durationMs)}}
		}
		return nil
	}

	if keepMode {
		segments := make([]Segment, 0, len(m.regions))
		for _, r := range m.regions {
			segments = append(segments, r.Segment())
		}
		return segments
	}

	return complement(m.regions, m.durationMs)
}

// SegmentsFor is FinalSegments keyed by Mode.
func (m *Manager) SegmentsFor(mode Mode) []Segment {
	return m.FinalSegments(mode != ModeCut)
}

func complement(sorted []Region, durationMs int64) []Segment {
	var segments []Segment
	var cursor int64
	for _, r := range sorted {
		if cursor < r.StartMs {
			segments = append(segments, Segment{Start: msToSeconds(cursor), End: msToSeconds(r.StartMs)})
		}
		cursor = r.EndMs
	}
	if cursor < durationMs {
		segments = append(segments, Segment{Start: msToSeconds(cursor), End: msToSeconds(durationMs)})
	}
	return segments
}
