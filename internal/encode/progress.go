package encode

import (
	"strconv"
	"strings"
)

const (
	keyOutTimeUs = "out_time_us"
	keyOutTime   = "out_time"
	keyProgress  = "progress"
)

// LineKind classifies a line of encoder output.
type LineKind int

const (
	LineEmpty LineKind = iota
	LineProgress
	LineDiagnostic
)

// LineResult is what the parser learned from one line.
type LineResult struct {
	Kind LineKind
	// Percent is set when the line moved overall progress.
	Percent    int
	HasPercent bool
	// BlockEnd is true on the sentinel line closing a progress block.
	BlockEnd bool
	// Status is the value of the sentinel key ("continue" or "end").
	Status string
}

// ProgressParser consumes the `-progress pipe:1` key=value stream.
type ProgressParser struct {
	totalMs   int64
	currentMs int64
	block     map[string]string
	last      int
}

// NewProgressParser creates a parser normalising against totalMs.
func NewProgressParser(totalMs int64) *ProgressParser {
	return &ProgressParser{
		totalMs: totalMs,
		block:   make(map[string]string),
		last:    -1,
	}
}

// CurrentMs is the latest output position seen.
func (p *ProgressParser) CurrentMs() int64 {
	return p.currentMs
}

// Block returns a copy of the key/value pairs of the open progress block.
func (p *ProgressParser) Block() map[string]string {
	out := make(map[string]string, len(p.block))
	for k, v := range p.block {
		out[k] = v
	}
	return out
}

// Feed parses one line. A percentage is reported only when it differs from
// the previous one.
func (p *ProgressParser) Feed(line string) LineResult {
	line = strings.TrimSpace(line)
	if line == "" {
		return LineResult{Kind: LineEmpty}
	}

	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return LineResult{Kind: LineDiagnostic}
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	p.block[key] = value

	res := LineResult{Kind: LineProgress}

	switch key {
	case keyOutTimeUs:
		if us, err := strconv.ParseInt(value, 10, 64); err == nil {
			p.currentMs = us / 1000
		}
	case keyOutTime:
		// only consulted when the block carries no microsecond key
		if _, hasUs := p.block[keyOutTimeUs]; !hasUs {
			if ms, ok := ParseTimeToMs(value); ok {
				p.currentMs = ms
			}
		}
	case keyProgress:
		res.BlockEnd = true
		res.Status = value
		clear(p.block)
	}

	if pct, ok := Percent(p.currentMs, p.totalMs); ok && pct != p.last {
		p.last = pct
		res.Percent = pct
		res.HasPercent = true
	}

	return res
}

// Percent is floor(100*current/total) clamped to 100. It is undefined unless
// both values are positive.
func Percent(currentMs, totalMs int64) (int, bool) {
	if totalMs <= 0 || currentMs <= 0 {
		return 0, false
	}
	pct := currentMs * 100 / totalMs
	if pct > 100 {
		pct = 100
	}
	return int(pct), true
}

// ParseTimeToMs converts "HH:MM:SS.ffffff" (or a bare microsecond count) to
// milliseconds.
func ParseTimeToMs(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if us, err := strconv.ParseInt(s, 10, 64); err == nil {
		return us / 1000, true
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, false
	}

	negative := strings.HasPrefix(parts[0], "-")
	hours, err := strconv.ParseInt(strings.TrimPrefix(parts[0], "-"), 10, 64)
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, false
	}

	secStr, fracStr, _ := strings.Cut(parts[2], ".")
	seconds, err := strconv.ParseInt(secStr, 10, 64)
	if err != nil {
		return 0, false
	}

	var micros int64
	if fracStr != "" {
		// normalise the fraction to six digits
		if len(fracStr) > 6 {
			fracStr = fracStr[:6]
		}
		fracStr += strings.Repeat("0", 6-len(fracStr))
		micros, err = strconv.ParseInt(fracStr, 10, 64)
		if err != nil {
			return 0, false
		}
	}

	ms := hours*3_600_000 + minutes*60_000 + seconds*1000 + micros/1000
	if negative {
		ms = -ms
	}
	return ms, true
}
