package cuts

// MaxHistory counts undo steps, not stored snapshots: the live state is kept
// alongside them, so up to MaxHistory+1 snapshots exist.
const MaxHistory = 50

// history is a linear snapshot list with a cursor. The entry at the cursor
// always equals the live region list once anything has been recorded; older
// entries are the states captured before each mutation.
type history struct {
	snapshots [][]Region
	cursor    int
	limit     int
}

func newHistory(limit int) *history {
	return &history{cursor: -1, limit: limit}
}

// before records the pre-mutation state and drops any redo branch.
func (h *history) before(current []Region) {
	if h.cursor < len(h.snapshots)-1 {
		h.snapshots = h.snapshots[:h.cursor+1]
	}
	if len(h.snapshots) == 0 {
		h.push(current)
	}
}

// after records the committed state as the new tip.
func (h *history) after(current []Region) {
	h.push(current)

	// limit pre-mutation snapshots plus the live tip
	if over := len(h.snapshots) - (h.limit + 1); over > 0 {
		h.snapshots = h.snapshots[over:]
		h.cursor = len(h.snapshots) - 1
	}
}

func (h *history) push(state []Region) {
	h.snapshots = append(h.snapshots, copyRegions(state))
	h.cursor = len(h.snapshots) - 1
}

func (h *history) canUndo() bool {
	return h.cursor > 0
}

func (h *history) canRedo() bool {
	return h.cursor < len(h.snapshots)-1
}

func (h *history) undo() ([]Region, bool) {
	if !h.canUndo() {
		return nil, false
	}
	h.cursor--
	return copyRegions(h.snapshots[h.cursor]), true
}

func (h *history) redo() ([]Region, bool) {
	if !h.canRedo() {
		return nil, false
	}
	h.cursor++
	return copyRegions(h.snapshots[h.cursor]), true
}

func (h *history) reset() {
	h.snapshots = nil
	h.cursor = -1
}

func (h *history) len() int {
	return len(h.snapshots)
}
