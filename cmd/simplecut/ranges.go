package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
)

// parseRange reads "START-END". Each bound is either seconds ("12.5") or a
// clock value ("01:05", "1:02:03.250").
func parseRange(s string) (int64, int64, error) {
	left, right, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return 0, 0, fmt.Errorf("range %q: want START-END", s)
	}
	start, err := parseClock(left)
	if err != nil {
		return 0, 0, fmt.Errorf("range %q: %w", s, err)
	}
	end, err := parseClock(right)
	if err != nil {
		return 0, 0, fmt.Errorf("range %q: %w", s, err)
	}
	return start, end, nil
}

func parseClock(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty time")
	}
	if strings.Contains(s, ":") {
		if strings.Count(s, ":") == 1 {
			s = "00:" + s
		}
		ms, ok := encode.ParseTimeToMs(s)
		if !ok || ms < 0 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		return ms, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	return int64(secs*1000 + 0.5), nil
}

// segmentsFromRanges replays the ranges through the region model as marker
// pairs, so the command line obeys the same rules as the editor.
func segmentsFromRanges(durationMs int64, ranges []string, mode cuts.Mode) ([]cuts.Segment, error) {
	m := cuts.NewManager()
	m.SetVideoDuration(durationMs)

	for _, r := range ranges {
		start, end, err := parseRange(r)
		if err != nil {
			return nil, err
		}
		if !m.SetMarkerA(start) || !m.SetMarkerB(end) {
			return nil, fmt.Errorf("range %q rejected: must lie within 0-%d ms and span at least %d ms",
				r, durationMs, cuts.MinRegionMs)
		}
	}
	if m.HasOverlappingRegions() {
		m.MergeOverlappingRegions()
	}

	segs := m.SegmentsFor(mode)
	if len(segs) == 0 {
		return nil, fmt.Errorf("nothing to export in %s mode", mode)
	}
	return segs, nil
}
