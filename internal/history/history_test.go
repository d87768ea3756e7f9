package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-editor/internal/layer"
	"reel-editor/internal/project"
)

func snap(action string) Snapshot {
	return Snapshot{Action: action}
}

func TestPushUndoRedo(t *testing.T) {
	h := New(10)
	h.Push(snap("A"))
	h.Push(snap("B"))

	got, ok := h.Undo(nil)
	require.True(t, ok)
	assert.Equal(t, "B", got.Action)
	assert.Equal(t, 1, h.UndoCount())
	assert.Equal(t, 1, h.RedoCount())

	got, ok = h.Redo(nil)
	require.True(t, ok)
	assert.Equal(t, "B", got.Action)
	assert.Equal(t, 2, h.UndoCount())
	assert.Equal(t, 0, h.RedoCount())
}

func TestEmptyStackIsNoop(t *testing.T) {
	h := New(10)
	_, ok := h.Undo(nil)
	assert.False(t, ok)
	_, ok = h.Redo(nil)
	assert.False(t, ok)
	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())
}

func TestPushDiscardsRedoBranch(t *testing.T) {
	h := New(10)
	h.Push(snap("A"))
	h.Push(snap("B"))
	_, ok := h.Undo(nil)
	require.True(t, ok)
	h.Push(snap("C"))

	_, ok = h.Redo(nil)
	assert.False(t, ok, "branch holding B was discarded by pushing C")
	assert.Equal(t, []Entry{{Action: "C"}, {Action: "A"}}, stripTimes(h.RecentActions(0)))
}

func TestBoundedDepth(t *testing.T) {
	h := New(3)
	for i := 0; i < 7; i++ {
		h.Push(snap(fmt.Sprintf("action-%d", i)))
		assert.LessOrEqual(t, h.UndoCount(), 3)
	}
	assert.Equal(t, 3, h.UndoCount())

	var seen []string
	for {
		s, ok := h.Undo(nil)
		if !ok {
			break
		}
		seen = append(seen, s.Action)
	}
	assert.Equal(t, []string{"action-6", "action-5", "action-4"}, seen, "oldest entries were evicted")
	assert.Equal(t, 3, h.RedoCount())
}

func TestUndoWithCurrentMakesRedoUseful(t *testing.T) {
	h := New(10)
	before := project.NewState()
	after := before.Clone()
	after.TextLayers = append(after.TextLayers, layer.TextLayer{ID: "t1", Content: "hello"})

	h.Push(Capture("Add text layer", before))

	cur := Capture("", after)
	prev, ok := h.Undo(&cur)
	require.True(t, ok)
	assert.Empty(t, prev.TextLayers)

	back := Capture("", before)
	next, ok := h.Redo(&back)
	require.True(t, ok)
	assert.Equal(t, "Add text layer", next.Action)
	require.Len(t, next.TextLayers, 1)
	assert.Equal(t, "t1", next.TextLayers[0].ID)
}

func TestSnapshotsDoNotAliasLiveState(t *testing.T) {
	h := New(10)
	s := project.NewState()
	s.VideoLayers = []layer.VideoLayer{{ID: "v", Duration: 5, Filter: &layer.VideoFilter{Blur: 1}}}
	s.AudioTrack = &layer.AudioTrack{ID: "a", Volume: 80}

	h.Push(Capture("Add video", s))

	s.VideoLayers[0].Filter.Blur = 7
	s.VideoLayers[0].Duration = 99
	s.AudioTrack.Volume = 5

	got, ok := h.Undo(nil)
	require.True(t, ok)
	assert.Equal(t, 1.0, got.VideoLayers[0].Filter.Blur)
	assert.Equal(t, 5.0, got.VideoLayers[0].Duration)
	assert.Equal(t, 80.0, got.AudioTrack.Volume)

	// mutating a returned snapshot does not reach the stored one
	got.VideoLayers[0].ID = "changed"
	again, ok := h.Redo(nil)
	require.True(t, ok)
	assert.Equal(t, "v", again.VideoLayers[0].ID)
}

func TestApplyTo_LeavesVolumesAlone(t *testing.T) {
	s := project.NewState()
	s.VideoVolume = 20
	snapshot := Capture("x", s)

	s.VideoVolume = 90
	s.Duration = 12
	snapshot.ApplyTo(s)

	assert.Equal(t, 90.0, s.VideoVolume)
	assert.Equal(t, 30.0, s.Duration)
}

func TestPushStampsTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := New(5, WithClock(func() time.Time { return at }))
	h.Push(snap("A"))
	entries := h.RecentActions(1)
	require.Len(t, entries, 1)
	assert.Equal(t, at, entries[0].Timestamp)
}

func TestRecentActionsLimit(t *testing.T) {
	h := New(10)
	for _, a := range []string{"a", "b", "c", "d"} {
		h.Push(snap(a))
	}
	assert.Equal(t, []Entry{{Action: "d"}, {Action: "c"}}, stripTimes(h.RecentActions(2)))
}

func stripTimes(in []Entry) []Entry {
	out := make([]Entry, len(in))
	for i, e := range in {
		out[i] = Entry{Action: e.Action}
	}
	return out
}
