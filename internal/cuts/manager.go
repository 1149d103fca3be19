package cuts

import "sort"

// EventKind identifies a Manager notification.
type EventKind int

const (
	EventRegionsChanged EventKind = iota
	EventMarkerSet
	EventMarkerCleared
)

func (k EventKind) String() string {
	switch k {
	case EventRegionsChanged:
		return "regions_changed"
	case EventMarkerSet:
		return "marker_set"
	case EventMarkerCleared:
		return "marker_cleared"
	default:
		return "unknown"
	}
}

// Event is delivered to listeners after a change has been committed.
type Event struct {
	Kind     EventKind
	MarkerMs int64 // set for EventMarkerSet
}

// Listener receives Manager events synchronously.
type Listener func(Event)

// Manager owns the region list, the pending A marker and the undo history.
type Manager struct {
	regions    []Region
	pendingA   *int64
	durationMs int64
	colorIndex int

	history *history

	listeners map[int]Listener
	nextID    int
}

func NewManager() *Manager {
	return &Manager{
		history:   newHistory(MaxHistory),
		listeners: make(map[int]Listener),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (m *Manager) Subscribe(fn Listener) func() {
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() { delete(m.listeners, id) }
}

func (m *Manager) emit(ev Event) {
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if fn, ok := m.listeners[id]; ok {
			fn(ev)
		}
	}
}

// Regions returns a copy of the region list, sorted by start.
func (m *Manager) Regions() []Region {
	return copyRegions(m.regions)
}

func (m *Manager) RegionCount() int {
	return len(m.regions)
}

// Region returns the region at index.
func (m *Manager) Region(index int) (Region, bool) {
	if index < 0 || index >= len(m.regions) {
		return Region{}, false
	}
	return m.regions[index], true
}

// RegionAt returns the first region containing pos.
func (m *Manager) RegionAt(posMs int64) (Region, bool) {
	for _, r := range m.regions {
		if r.Contains(posMs) {
			return r, true
		}
	}
	return Region{}, false
}

// PendingMarker returns the position of marker A while it awaits marker B.
func (m *Manager) PendingMarker() (int64, bool) {
	if m.pendingA == nil {
		return 0, false
	}
	return *m.pendingA, true
}

func (m *Manager) HasPendingMarker() bool {
	return m.pendingA != nil
}

func (m *Manager) DurationMs() int64 {
	return m.durationMs
}

// SetVideoDuration installs a new video length. All cut state, including the
// undo history, belongs to the previous video and is discarded.
func (m *Manager) SetVideoDuration(durationMs int64) {
	if durationMs < 0 {
		durationMs = 0
	}
	m.durationMs = durationMs
	m.regions = nil
	m.pendingA = nil
	m.colorIndex = 0
	m.history.reset()

	m.emit(Event{Kind: EventMarkerCleared})
	m.emit(Event{Kind: EventRegionsChanged})
}

func (m *Manager) inBounds(posMs int64) bool {
	return posMs >= 0 && posMs <= m.durationMs
}

// SetMarkerA places marker A. Out-of-range positions are rejected.
func (m *Manager) SetMarkerA(posMs int64) bool {
	if !m.inBounds(posMs) {
		return false
	}
	p := posMs
	m.pendingA = &p
	m.emit(Event{Kind: EventMarkerSet, MarkerMs: posMs})
	return true
}

// SetMarkerB pairs the pending marker A with pos and commits a region. B may
// precede A; the span is ordered automatically.
func (m *Manager) SetMarkerB(posMs int64) bool {
	if m.pendingA == nil || !m.inBounds(posMs) {
		return false
	}

	start, end := order(*m.pendingA, posMs)
	if end-start < MinRegionMs {
		return false
	}

	color := Palette[m.colorIndex%len(Palette)]
	m.colorIndex++

	m.history.before(m.regions)
	m.regions = append(m.regions, Region{StartMs: start, EndMs: end, Color: color})
	m.pendingA = nil
	m.sortRegions()
	m.history.after(m.regions)

	m.emit(Event{Kind: EventMarkerCleared})
	m.emit(Event{Kind: EventRegionsChanged})
	return true
}

// CancelMarkerA drops the pending marker without touching regions or history.
func (m *Manager) CancelMarkerA() {
	if m.pendingA == nil {
		return
	}
	m.pendingA = nil
	m.emit(Event{Kind: EventMarkerCleared})
}

func (m *Manager) RemoveRegion(index int) bool {
	if index < 0 || index >= len(m.regions) {
		return false
	}

	m.history.before(m.regions)
	m.regions = append(m.regions[:index:index], m.regions[index+1:]...)
	m.history.after(m.regions)

	m.emit(Event{Kind: EventRegionsChanged})
	return true
}

// EditRegion replaces the bounds of the region at index, keeping its colour.
func (m *Manager) EditRegion(index int, newStartMs, newEndMs int64) bool {
	if index < 0 || index >= len(m.regions) {
		return false
	}

	start, end := order(newStartMs, newEndMs)
	if start < 0 || end > m.durationMs {
		return false
	}
	if end-start < MinRegionMs {
		return false
	}

	m.history.before(m.regions)
	m.regions[index] = Region{StartMs: start, EndMs: end, Color: m.regions[index].Color}
	m.sortRegions()
	m.history.after(m.regions)

	m.emit(Event{Kind: EventRegionsChanged})
	return true
}

// RemoveRegionAt removes the first region containing pos.
func (m *Manager) RemoveRegionAt(posMs int64) bool {
	for i, r := range m.regions {
		if r.Contains(posMs) {
			return m.RemoveRegion(i)
		}
	}
	return false
}

// ClearAll removes every region and the pending marker and restarts the
// colour cycle.
func (m *Manager) ClearAll() {
	dirty := len(m.regions) > 0 || m.pendingA != nil
	if dirty {
		m.history.before(m.regions)
	}

	m.regions = nil
	m.pendingA = nil
	m.colorIndex = 0

	if dirty {
		m.history.after(m.regions)
	}

	m.emit(Event{Kind: EventMarkerCleared})
	m.emit(Event{Kind: EventRegionsChanged})
}

func (m *Manager) HasOverlappingRegions() bool {
	for i := range m.regions {
		for j := i + 1; j < len(m.regions); j++ {
			if m.regions[i].Overlaps(m.regions[j]) {
				return true
			}
		}
	}
	return false
}

// MergeOverlappingRegions collapses overlapping and touching regions. The
// merged region keeps the colour of the earliest one.
func (m *Manager) MergeOverlappingRegions() {
	if len(m.regions) < 2 {
		return
	}

	m.history.before(m.regions)
	m.sortRegions()
	m.regions = mergeSorted(m.regions)
	m.history.after(m.regions)

	m.emit(Event{Kind: EventRegionsChanged})
}

func mergeSorted(sorted []Region) []Region {
	merged := make([]Region, 0, len(sorted))
	acc := sorted[0]
	for _, r := range sorted[1:] {
		// touching regions merge too, unlike Overlaps
		if acc.Overlaps(r) || acc.EndMs >= r.StartMs {
			acc = Region{StartMs: acc.StartMs, EndMs: max(acc.EndMs, r.EndMs), Color: acc.Color}
			continue
		}
		merged = append(merged, acc)
		acc = r
	}
	return append(merged, acc)
}

func (m *Manager) TotalSelectedDurationMs() int64 {
	var total int64
	for _, r := range m.regions {
		total += r.DurationMs()
	}
	return total
}

func (m *Manager) CanUndo() bool {
	return m.history.canUndo()
}

func (m *Manager) CanRedo() bool {
	return m.history.canRedo()
}

func (m *Manager) Undo() bool {
	state, ok := m.history.undo()
	if !ok {
		return false
	}
	m.restore(state)
	return true
}

func (m *Manager) Redo() bool {
	state, ok := m.history.redo()
	if !ok {
		return false
	}
	m.restore(state)
	return true
}

func (m *Manager) restore(state []Region) {
	m.regions = state
	m.pendingA = nil
	m.emit(Event{Kind: EventMarkerCleared})
	m.emit(Event{Kind: EventRegionsChanged})
}

func (m *Manager) sortRegions() {
	sort.SliceStable(m.regions, func(i, j int) bool {
		return m.regions[i].StartMs < m.regions[j].StartMs
	})
}

func order(a, b int64) (int64, int64) {
	if a <= b {
		return a, b
	}
	return b, a
}
