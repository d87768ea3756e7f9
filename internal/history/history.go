// Package history keeps a bounded undo/redo log of editor snapshots.
package history

import (
	"sync"
	"time"

	"reel-editor/internal/layer"
	"reel-editor/internal/models"
	"reel-editor/internal/project"
)

const DefaultMaxDepth = 50

// Snapshot is an immutable capture of the undoable part of editor state.
// It owns copies of every collection it holds.
type Snapshot struct {
	Action string

	VideoLayers  []layer.VideoLayer
	AudioTrack   *layer.AudioTrack
	EmojiLayers  []layer.EmojiLayer
	TextLayers   []layer.TextLayer
	ImageLayers  []layer.ImageLayer
	GlobalFilter layer.VideoFilter
	Duration     float64
	ClipStart    float64
	ClipEnd      float64
	Transcripts  []models.Transcript

	Timestamp time.Time
}

// Capture copies the undoable fields of s. The timestamp is left for Push.
func Capture(action string, s *project.State) Snapshot {
	c := s.Clone()
	return Snapshot{
		Action:       action,
		VideoLayers:  c.VideoLayers,
		AudioTrack:   c.AudioTrack,
		EmojiLayers:  c.EmojiLayers,
		TextLayers:   c.TextLayers,
		ImageLayers:  c.ImageLayers,
		GlobalFilter: c.GlobalFilter,
		Duration:     c.Duration,
		ClipStart:    c.ClipStart,
		ClipEnd:      c.ClipEnd,
		Transcripts:  c.Transcripts,
	}
}

// ApplyTo writes a copy of the snapshot into s. Fields outside the snapshot
// (volumes, output settings) are left alone.
func (snap Snapshot) ApplyTo(s *project.State) {
	c := snap.clone()
	s.VideoLayers = c.VideoLayers
	s.AudioTrack = c.AudioTrack
	s.EmojiLayers = c.EmojiLayers
	s.TextLayers = c.TextLayers
	s.ImageLayers = c.ImageLayers
	s.GlobalFilter = c.GlobalFilter
	s.Duration = c.Duration
	s.ClipStart = c.ClipStart
	s.ClipEnd = c.ClipEnd
	s.Transcripts = c.Transcripts
}

func (snap Snapshot) clone() Snapshot {
	tmp := &project.State{
		VideoLayers: snap.VideoLayers,
		AudioTrack:  snap.AudioTrack,
		EmojiLayers: snap.EmojiLayers,
		TextLayers:  snap.TextLayers,
		ImageLayers: snap.ImageLayers,
		Transcripts: snap.Transcripts,
	}
	c := tmp.Clone()
	out := snap
	out.VideoLayers = c.VideoLayers
	out.AudioTrack = c.AudioTrack
	out.EmojiLayers = c.EmojiLayers
	out.TextLayers = c.TextLayers
	out.ImageLayers = c.ImageLayers
	out.Transcripts = c.Transcripts
	return out
}

// Entry is the display form of a snapshot.
type Entry struct {
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// Stack holds two bounded stacks. Pushing a new snapshot discards the redo
// branch; overflowing either stack evicts its oldest entry.
type Stack struct {
	mu       sync.Mutex
	undo     []Snapshot
	redo     []Snapshot
	maxDepth int
	now      func() time.Time
}

type Option func(*Stack)

func WithClock(now func() time.Time) Option {
	return func(s *Stack) { s.now = now }
}

func New(maxDepth int, opts ...Option) *Stack {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	s := &Stack{maxDepth: maxDepth, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stack) MaxDepth() int { return s.maxDepth }

// Push stamps snap and appends it to the undo stack.
func (s *Stack) Push(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap = snap.clone()
	snap.Timestamp = s.now()
	s.undo = s.bounded(append(s.undo, snap))
	s.redo = nil
}

// Undo pops the most recent snapshot. current, when non-nil, is what goes
// onto the redo stack in its place, so a following Redo returns to it;
// with a nil current the popped snapshot itself is moved. Returns false on
// an empty stack.
func (s *Stack) Undo(current *Snapshot) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := pop(&s.undo)
	if !ok {
		return Snapshot{}, false
	}
	s.redo = s.bounded(append(s.redo, s.counterpart(snap, current)))
	return snap.clone(), true
}

// Redo is the inverse of Undo.
func (s *Stack) Redo(current *Snapshot) (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := pop(&s.redo)
	if !ok {
		return Snapshot{}, false
	}
	s.undo = s.bounded(append(s.undo, s.counterpart(snap, current)))
	return snap.clone(), true
}

func (s *Stack) counterpart(popped Snapshot, current *Snapshot) Snapshot {
	if current == nil {
		return popped
	}
	c := current.clone()
	c.Action = popped.Action
	c.Timestamp = s.now()
	return c
}

func pop(stack *[]Snapshot) (Snapshot, bool) {
	n := len(*stack)
	if n == 0 {
		return Snapshot{}, false
	}
	snap := (*stack)[n-1]
	(*stack)[n-1] = Snapshot{}
	*stack = (*stack)[:n-1]
	return snap, true
}

func (s *Stack) bounded(stack []Snapshot) []Snapshot {
	if over := len(stack) - s.maxDepth; over > 0 {
		stack = append(stack[:0:0], stack[over:]...)
	}
	return stack
}

func (s *Stack) CanUndo() bool { return s.UndoCount() > 0 }
func (s *Stack) CanRedo() bool { return s.RedoCount() > 0 }

func (s *Stack) UndoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

func (s *Stack) RedoCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo)
}

// RecentActions lists up to n undo entries, newest first.
func (s *Stack) RecentActions(n int) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n <= 0 || n > len(s.undo) {
		n = len(s.undo)
	}
	out := make([]Entry, 0, n)
	for i := len(s.undo) - 1; i >= len(s.undo)-n; i-- {
		out = append(out, Entry{Action: s.undo[i].Action, Timestamp: s.undo[i].Timestamp})
	}
	return out
}

func (s *Stack) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = nil
	s.redo = nil
}
