package editor

import (
	"sort"

	"github.com/simplecut/simplecut-agent/internal/cuts"
	"github.com/simplecut/simplecut-agent/internal/encode"
)

// Notification types pushed to UI clients.
const (
	NotifyVideoLoaded      = "video_loaded"
	NotifyRegionsChanged   = "regions_changed"
	NotifyMarkerSet        = "marker_set"
	NotifyMarkerCleared    = "marker_cleared"
	NotifySettingsChanged  = "settings_changed"
	NotifyEncodingStarted  = string(encode.EventStarted)
	NotifyProgress         = string(encode.EventProgress)
	NotifyLog              = string(encode.EventLog)
	NotifyEncodingFinished = string(encode.EventFinished)
)

// Notification is one event for UI clients.
type Notification struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Snapshot is the region model state as shown to the UI.
type Snapshot struct {
	Regions         []cuts.Region `json:"regions"`
	PendingMarkerMs *int64        `json:"pending_marker_ms"`
	DurationMs      int64         `json:"duration_ms"`
	SelectedMs      int64         `json:"selected_ms"`
	HasOverlaps     bool          `json:"has_overlaps"`
	CanUndo         bool          `json:"can_undo"`
	CanRedo         bool          `json:"can_redo"`
	VideoLoaded     bool          `json:"video_loaded"`
}

type markerData struct {
	PositionMs int64 `json:"position_ms"`
}

// Subscribe registers fn for all workspace notifications. fn runs on the
// goroutine that caused the change, sometimes with workspace state locked,
// so it must not call back into the Workspace.
func (w *Workspace) Subscribe(fn func(Notification)) func() {
	w.lmu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.lmu.Unlock()

	return func() {
		w.lmu.Lock()
		delete(w.listeners, id)
		w.lmu.Unlock()
	}
}

func (w *Workspace) notify(n Notification) {
	w.lmu.Lock()
	ids := make([]int, 0, len(w.listeners))
	for id := range w.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Notification), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, w.listeners[id])
	}
	w.lmu.Unlock()

	for _, fn := range fns {
		fn(n)
	}
}

// onCutsEvent is called by the region model while w.mu is held.
func (w *Workspace) onCutsEvent(ev cuts.Event) {
	switch ev.Kind {
	case cuts.EventRegionsChanged:
		w.notify(Notification{Type: NotifyRegionsChanged, Data: w.snapshotLocked()})
	case cuts.EventMarkerSet:
		w.notify(Notification{Type: NotifyMarkerSet, Data: markerData{PositionMs: ev.MarkerMs}})
	case cuts.EventMarkerCleared:
		w.notify(Notification{Type: NotifyMarkerCleared})
	}
}

func (w *Workspace) onEncodeEvent(ev encode.Event) {
	w.notify(Notification{Type: string(ev.Kind), Data: ev})
}
