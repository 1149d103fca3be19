package cuts

import (
	"reflect"
	"testing"
)

func newTestManager(durationMs int64) *Manager {
	m := NewManager()
	m.SetVideoDuration(durationMs)
	return m
}

func addRegion(t *testing.T, m *Manager, a, b int64) {
	t.Helper()
	if !m.SetMarkerA(a) {
		t.Fatalf("SetMarkerA(%d) rejected", a)
	}
	if !m.SetMarkerB(b) {
		t.Fatalf("SetMarkerB(%d) rejected", b)
	}
}

func spans(regions []Region) [][2]int64 {
	out := make([][2]int64, len(regions))
	for i, r := range regions {
		out[i] = [2]int64{r.StartMs, r.EndMs}
	}
	return out
}

func TestSetMarkers_CreatesOrderedRegion(t *testing.T) {
	tests := []struct {
		name      string
		a, b      int64
		wantStart int64
		wantEnd   int64
	}{
		{"forward", 1000, 2000, 1000, 2000},
		{"reversed", 2000, 1000, 1000, 2000},
		{"minimum span", 500, 600, 500, 600},
		{"whole video", 0, 10000, 0, 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(10000)
			addRegion(t, m, tt.a, tt.b)

			regions := m.Regions()
			if len(regions) != 1 {
				t.Fatalf("region count = %d, want 1", len(regions))
			}
			if regions[0].StartMs != tt.wantStart || regions[0].EndMs != tt.wantEnd {
				t.Errorf("region = %+v, want [%d,%d]", regions[0], tt.wantStart, tt.wantEnd)
			}
			if m.HasPendingMarker() {
				t.Error("pending marker should be cleared after region creation")
			}
		})
	}
}

func TestSetMarkerB_RejectsShortSpan(t *testing.T) {
	for _, b := range []int64{1000, 1050, 1099, 901, 950} {
		m := newTestManager(10000)
		m.SetMarkerA(1000)

		if m.SetMarkerB(b) {
			t.Fatalf("SetMarkerB(%d) accepted a span under %dms", b, MinRegionMs)
		}
		if m.RegionCount() != 0 {
			t.Fatalf("region created for b=%d", b)
		}
		pos, ok := m.PendingMarker()
		if !ok || pos != 1000 {
			t.Fatalf("pending marker = (%d, %v), want (1000, true)", pos, ok)
		}
		if m.CanUndo() {
			t.Fatal("rejected marker must not record history")
		}
	}
}

func TestSetMarker_OutOfBounds(t *testing.T) {
	m := newTestManager(5000)

	if m.SetMarkerA(-1) {
		t.Error("SetMarkerA(-1) accepted")
	}
	if m.SetMarkerA(5001) {
		t.Error("SetMarkerA(5001) accepted")
	}
	if m.HasPendingMarker() {
		t.Error("rejected marker A left pending state")
	}

	if m.SetMarkerB(1000) {
		t.Error("SetMarkerB without marker A accepted")
	}

	m.SetMarkerA(1000)
	if m.SetMarkerB(6000) {
		t.Error("SetMarkerB beyond duration accepted")
	}
	if !m.HasPendingMarker() {
		t.Error("out-of-bounds marker B cleared marker A")
	}
}

func TestCancelMarkerA(t *testing.T) {
	m := newTestManager(5000)
	m.SetMarkerA(1000)
	m.CancelMarkerA()

	if m.HasPendingMarker() {
		t.Fatal("marker A still pending after cancel")
	}
	if m.CanUndo() {
		t.Fatal("cancel must not record history")
	}
}

func TestRegions_StaySorted(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 5000, 6000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 3000, 4000)

	want := [][2]int64{{1000, 2000}, {3000, 4000}, {5000, 6000}}
	if got := spans(m.Regions()); !reflect.DeepEqual(got, want) {
		t.Fatalf("regions = %v, want %v", got, want)
	}
}

func TestColorCycle(t *testing.T) {
	m := newTestManager(100000)
	for i := 0; i < len(Palette)+1; i++ {
		start := int64(i) * 1000
		addRegion(t, m, start, start+500)
	}

	regions := m.Regions()
	for i, r := range regions {
		if want := Palette[i%len(Palette)]; r.Color != want {
			t.Errorf("region %d color = %s, want %s", i, r.Color, want)
		}
	}

	// removal does not rewind the counter
	m.RemoveRegion(0)
	addRegion(t, m, 90000, 91000)
	last, _ := m.Region(m.RegionCount() - 1)
	if want := Palette[(len(Palette)+1)%len(Palette)]; last.Color != want {
		t.Errorf("color after removal = %s, want %s", last.Color, want)
	}

	m.ClearAll()
	addRegion(t, m, 0, 1000)
	first, _ := m.Region(0)
	if first.Color != Palette[0] {
		t.Errorf("color after ClearAll = %s, want %s", first.Color, Palette[0])
	}
}

func TestRemoveRegion(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 3000, 4000)

	if m.RemoveRegion(2) || m.RemoveRegion(-1) {
		t.Fatal("invalid index accepted")
	}
	if !m.RemoveRegion(0) {
		t.Fatal("RemoveRegion(0) rejected")
	}
	if got := spans(m.Regions()); !reflect.DeepEqual(got, [][2]int64{{3000, 4000}}) {
		t.Fatalf("regions = %v", got)
	}
}

func TestRemoveRegionAt(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 3000, 4000)

	if m.RemoveRegionAt(2500) {
		t.Fatal("removed region at a gap position")
	}
	// bounds are inclusive
	if !m.RemoveRegionAt(4000) {
		t.Fatal("RemoveRegionAt(4000) should hit region end")
	}
	if got := spans(m.Regions()); !reflect.DeepEqual(got, [][2]int64{{1000, 2000}}) {
		t.Fatalf("regions = %v", got)
	}
}

func TestEditRegion(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 3000, 4000)
	color := m.Regions()[0].Color

	if m.EditRegion(0, 100, 150) {
		t.Error("edit below minimum span accepted")
	}
	if m.EditRegion(0, -10, 500) {
		t.Error("edit with negative start accepted")
	}
	if m.EditRegion(0, 9000, 10001) {
		t.Error("edit beyond duration accepted")
	}
	if m.EditRegion(5, 0, 1000) {
		t.Error("edit with bad index accepted")
	}

	// reversed bounds are normalised and the list is re-sorted
	if !m.EditRegion(0, 6000, 5000) {
		t.Fatal("valid edit rejected")
	}
	regions := m.Regions()
	if got := spans(regions); !reflect.DeepEqual(got, [][2]int64{{3000, 4000}, {5000, 6000}}) {
		t.Fatalf("regions = %v", got)
	}
	if regions[1].Color != color {
		t.Errorf("edited region color = %s, want %s", regions[1].Color, color)
	}
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Region
		want bool
	}{
		{"disjoint", Region{StartMs: 0, EndMs: 100}, Region{StartMs: 200, EndMs: 300}, false},
		{"touching", Region{StartMs: 0, EndMs: 100}, Region{StartMs: 100, EndMs: 300}, false},
		{"overlapping", Region{StartMs: 0, EndMs: 150}, Region{StartMs: 100, EndMs: 300}, true},
		{"contained", Region{StartMs: 0, EndMs: 1000}, Region{StartMs: 100, EndMs: 300}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Overlaps(tt.b); got != tt.want {
				t.Errorf("Overlaps() = %v, want %v", got, tt.want)
			}
			if got := tt.b.Overlaps(tt.a); got != tt.want {
				t.Errorf("Overlaps() reversed = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeOverlappingRegions(t *testing.T) {
	m := newTestManager(20000)
	addRegion(t, m, 1000, 3000)
	addRegion(t, m, 2000, 4000)
	addRegion(t, m, 4000, 5000) // touches the previous one
	addRegion(t, m, 8000, 9000)
	firstColor := m.Regions()[0].Color

	if !m.HasOverlappingRegions() {
		t.Fatal("expected overlapping regions")
	}

	m.MergeOverlappingRegions()
	once := m.Regions()

	want := [][2]int64{{1000, 5000}, {8000, 9000}}
	if got := spans(once); !reflect.DeepEqual(got, want) {
		t.Fatalf("merged = %v, want %v", got, want)
	}
	if once[0].Color != firstColor {
		t.Errorf("merged color = %s, want %s", once[0].Color, firstColor)
	}
	if m.HasOverlappingRegions() {
		t.Error("overlaps remain after merge")
	}

	m.MergeOverlappingRegions()
	if twice := m.Regions(); !reflect.DeepEqual(once, twice) {
		t.Errorf("merge not idempotent: %v then %v", once, twice)
	}
}

func TestMergeOverlappingRegions_SingleRegionNoop(t *testing.T) {
	m := newTestManager(5000)
	addRegion(t, m, 1000, 2000)
	m.Undo()
	m.Redo()

	m.MergeOverlappingRegions()
	if m.CanRedo() {
		t.Fatal("no-op merge should not touch history")
	}
	if !m.CanUndo() {
		t.Fatal("history lost by no-op merge")
	}
}

func TestFinalSegments(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 5000, 6000)

	keep := m.FinalSegments(true)
	if want := []Segment{{1.0, 2.0}, {5.0, 6.0}}; !reflect.DeepEqual(keep, want) {
		t.Errorf("keep segments = %v, want %v", keep, want)
	}

	cut := m.FinalSegments(false)
	if want := []Segment{{0.0, 1.0}, {2.0, 5.0}, {6.0, 10.0}}; !reflect.DeepEqual(cut, want) {
		t.Errorf("cut segments = %v, want %v", cut, want)
	}
}

func TestFinalSegments_EdgeCases(t *testing.T) {
	t.Run("no regions returns whole video", func(t *testing.T) {
		m := newTestManager(4000)
		for _, keep := range []bool{true, false} {
			got := m.FinalSegments(keep)
			if want := []Segment{{0, 4.0}}; !reflect.DeepEqual(got, want) {
				t.Errorf("keep=%v: %v, want %v", keep, got, want)
			}
		}
	})

	t.Run("zero duration returns nothing", func(t *testing.T) {
		m := newTestManager(0)
		if got := m.FinalSegments(true); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})

	t.Run("cut mode skips empty gaps", func(t *testing.T) {
		m := newTestManager(3000)
		addRegion(t, m, 0, 1000)
		addRegion(t, m, 2000, 3000)
		got := m.SegmentsFor(ModeCut)
		if want := []Segment{{1.0, 2.0}}; !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("cut mode everything removed", func(t *testing.T) {
		m := newTestManager(3000)
		addRegion(t, m, 0, 3000)
		if got := m.FinalSegments(false); len(got) != 0 {
			t.Errorf("got %v, want empty", got)
		}
	})
}

func TestUndoRedo(t *testing.T) {
	m := newTestManager(10000)

	if m.CanUndo() || m.CanRedo() {
		t.Fatal("fresh manager should have no history")
	}

	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 3000, 4000)
	m.EditRegion(1, 3000, 4500)
	m.RemoveRegion(0)

	for i := 0; i < 4; i++ {
		if !m.Undo() {
			t.Fatalf("undo %d rejected", i+1)
		}
	}
	if m.RegionCount() != 0 {
		t.Fatalf("after undoing everything regions = %v", m.Regions())
	}
	if m.Undo() {
		t.Fatal("undo past initial state accepted")
	}

	for i := 0; i < 4; i++ {
		if !m.Redo() {
			t.Fatalf("redo %d rejected", i+1)
		}
	}
	if got := spans(m.Regions()); !reflect.DeepEqual(got, [][2]int64{{3000, 4500}}) {
		t.Fatalf("after redo regions = %v", got)
	}
	if m.CanRedo() {
		t.Fatal("redo available at tip")
	}
}

func TestUndo_ClearsPendingMarker(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	m.SetMarkerA(5000)

	m.Undo()
	if m.HasPendingMarker() {
		t.Fatal("undo must clear pending marker")
	}
}

func TestNewActionDiscardsRedo(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 3000, 4000)

	m.Undo()
	if !m.CanRedo() {
		t.Fatal("redo should be available after undo")
	}

	addRegion(t, m, 6000, 7000)
	if m.CanRedo() {
		t.Fatal("new action should discard the redo branch")
	}
	if m.Redo() {
		t.Fatal("redo accepted after new action")
	}

	want := [][2]int64{{1000, 2000}, {6000, 7000}}
	if got := spans(m.Regions()); !reflect.DeepEqual(got, want) {
		t.Fatalf("regions = %v, want %v", got, want)
	}
}

func TestUndo_ReturnsToInitialState(t *testing.T) {
	for _, n := range []int{1, 2, 10, MaxHistory} {
		m := newTestManager(1000000)
		addRegion(t, m, 500000, 600000)
		initial := m.Regions()

		for i := 0; i < n; i++ {
			start := int64(i) * 1000
			addRegion(t, m, start, start+200)
		}
		for i := 0; i < n; i++ {
			if !m.Undo() {
				t.Fatalf("n=%d: undo %d rejected", n, i+1)
			}
		}
		if got := m.Regions(); !reflect.DeepEqual(got, initial) {
			t.Fatalf("n=%d: regions = %v, want %v", n, got, initial)
		}
	}
}

func TestHistoryCap(t *testing.T) {
	m := newTestManager(1000000)

	for i := 0; i < MaxHistory+1; i++ {
		start := int64(i) * 1000
		addRegion(t, m, start, start+200)
	}

	if got := m.history.len(); got != MaxHistory+1 {
		t.Fatalf("stored snapshots = %d, want %d undo states plus the live one", got, MaxHistory+1)
	}

	undos := 0
	for m.Undo() {
		undos++
	}
	if undos != MaxHistory {
		t.Fatalf("undo steps = %d, want %d", undos, MaxHistory)
	}
	// the empty initial state has been dropped
	if m.RegionCount() != 1 {
		t.Fatalf("oldest reachable state has %d regions, want 1", m.RegionCount())
	}
}

func TestClearAll(t *testing.T) {
	m := newTestManager(10000)

	m.ClearAll()
	if m.CanUndo() {
		t.Fatal("clearing empty state should not record history")
	}

	addRegion(t, m, 1000, 2000)
	m.SetMarkerA(4000)
	m.ClearAll()

	if m.RegionCount() != 0 || m.HasPendingMarker() {
		t.Fatal("ClearAll left state behind")
	}
	if !m.Undo() {
		t.Fatal("ClearAll should be undoable")
	}
	if m.RegionCount() != 1 {
		t.Fatalf("undo ClearAll regions = %d, want 1", m.RegionCount())
	}
}

func TestSetVideoDuration_Resets(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	m.SetMarkerA(5000)

	m.SetVideoDuration(20000)

	if m.RegionCount() != 0 || m.HasPendingMarker() {
		t.Fatal("new duration should clear regions and marker")
	}
	if m.CanUndo() || m.CanRedo() {
		t.Fatal("new duration should reset history")
	}
	if m.DurationMs() != 20000 {
		t.Fatalf("duration = %d", m.DurationMs())
	}
}

func TestSubscribe(t *testing.T) {
	m := newTestManager(10000)

	var kinds []EventKind
	var countAtNotify []int
	unsubscribe := m.Subscribe(func(ev Event) {
		kinds = append(kinds, ev.Kind)
		countAtNotify = append(countAtNotify, m.RegionCount())
	})

	m.SetMarkerA(1000)
	m.SetMarkerB(2000)

	want := []EventKind{EventMarkerSet, EventMarkerCleared, EventRegionsChanged}
	if !reflect.DeepEqual(kinds, want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	// listeners observe the committed state
	if countAtNotify[2] != 1 {
		t.Fatalf("region count at notify = %d, want 1", countAtNotify[2])
	}

	unsubscribe()
	m.ClearAll()
	if len(kinds) != len(want) {
		t.Fatal("listener called after unsubscribe")
	}
}

func TestTotalSelectedDuration(t *testing.T) {
	m := newTestManager(10000)
	addRegion(t, m, 1000, 2000)
	addRegion(t, m, 5000, 5500)

	if got := m.TotalSelectedDurationMs(); got != 1500 {
		t.Fatalf("TotalSelectedDurationMs() = %d, want 1500", got)
	}

	r, ok := m.RegionAt(5200)
	if !ok || r.StartMs != 5000 {
		t.Fatalf("RegionAt(5200) = %+v, %v", r, ok)
	}
	if _, ok := m.RegionAt(3000); ok {
		t.Fatal("RegionAt(3000) found a region")
	}
}
