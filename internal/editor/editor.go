// Package editor is the top-level controller of one editing session. It
// owns the project state and turns UI intents into state mutations,
// history snapshots and autosave writes, and keeps the playback bridge in
// step with the timeline.
package editor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"reel-editor/internal/autosave"
	"reel-editor/internal/history"
	"reel-editor/internal/layer"
	xlog "reel-editor/internal/log"
	"reel-editor/internal/models"
	"reel-editor/internal/playback"
	"reel-editor/internal/project"
)

var (
	ErrClosed       = errors.New("editor: closed")
	ErrInvalidRange = errors.New("editor: invalid clip range")
	ErrInvalidPatch = errors.New("editor: invalid layer patch")
)

// errNoop aborts a mutation that would not change anything.
var errNoop = errors.New("no change")

// Store is the persistence service the session reads from and writes to.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (*models.ProjectDocument, error)
	Save(ctx context.Context, id uuid.UUID, pj models.ProjectJSON, status *models.Status) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.Status) error
}

type Options struct {
	// Bridge is owned by the orchestrator from here on and closed with it.
	// A bridge over a headless Playhead is created when nil.
	Bridge *playback.Bridge

	HistoryDepth  int
	Debounce      time.Duration
	WriteTimeout  time.Duration
	OnSaveSuccess func(at time.Time)
	OnSaveError   func(err error)

	Logger *zerolog.Logger
	Now    func() time.Time
	NewID  func() string
}

type change uint8

const (
	changeVideo change = 1 << iota
	changeAudio
	changeDuration

	changeNone change = 0
	changeAll         = changeVideo | changeAudio | changeDuration
)

type Orchestrator struct {
	id       uuid.UUID
	store    Store
	bridge   *playback.Bridge
	history  *history.Stack
	autosave *autosave.Pipeline
	log      zerolog.Logger
	newID    func() string

	mu        sync.Mutex
	state     *project.State
	title     string
	status    models.Status
	selected  layer.Ref
	textFocus bool
	// gesture holds the state from before the first live edit of a
	// gesture that has not been committed to history yet.
	gesture *history.Snapshot
	unsubs  []func()
	closed  bool
}

// Open loads project id from store and starts a session over it.
func Open(ctx context.Context, store Store, id uuid.UUID, opts Options) (*Orchestrator, error) {
	doc, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return New(doc, store, opts), nil
}

// New starts a session over an already loaded document. History starts
// empty.
func New(doc *models.ProjectDocument, store Store, opts Options) *Orchestrator {
	logger := xlog.Or(opts.Logger, "editor").With().
		Str(xlog.FieldProjectID, doc.ID.String()).
		Logger()

	bridge := opts.Bridge
	if bridge == nil {
		bridge = playback.New(playback.NewPlayhead(), playback.Options{Logger: &logger})
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	var histOpts []history.Option
	if opts.Now != nil {
		histOpts = append(histOpts, history.WithClock(opts.Now))
	}

	id := doc.ID
	o := &Orchestrator{
		id:      id,
		store:   store,
		bridge:  bridge,
		history: history.New(opts.HistoryDepth, histOpts...),
		log:     logger,
		newID:   newID,
		state:   project.Load(doc.ProjectJSON),
		title:   doc.Title,
		status:  doc.Status,
	}
	o.autosave = autosave.New(autosave.SaverFunc(func(ctx context.Context, pj models.ProjectJSON) error {
		return store.Save(ctx, id, pj, nil)
	}), autosave.Options{
		Debounce:      opts.Debounce,
		WriteTimeout:  opts.WriteTimeout,
		OnSaveSuccess: opts.OnSaveSuccess,
		OnSaveError:   opts.OnSaveError,
		Logger:        &logger,
		Now:           opts.Now,
	})

	s := o.state
	bridge.SetDuration(s.Duration)
	bridge.SetClips(s.VideoLayers)
	bridge.SetAudioTrack(s.AudioTrack)
	bridge.SetVideoVolume(s.VideoVolume)
	o.unsubs = append(o.unsubs, bridge.Subscribe(playback.EventDuration, func(ev playback.Event) {
		if err := o.SetDuration(ev.Duration); err != nil && !errors.Is(err, ErrClosed) {
			o.log.Warn().Err(err).Msg("duration change rejected")
		}
	}))

	logger.Info().
		Int("video_clips", len(s.VideoLayers)).
		Float64("duration", s.Duration).
		Msg("project opened")
	return o
}

type bridgeSync struct {
	ch       change
	videos   []layer.VideoLayer
	audio    *layer.AudioTrack
	duration float64
}

func (o *Orchestrator) syncLocked(ch change) bridgeSync {
	bs := bridgeSync{ch: ch, duration: o.state.Duration}
	if ch&changeVideo != 0 {
		bs.videos = make([]layer.VideoLayer, len(o.state.VideoLayers))
		for i, v := range o.state.VideoLayers {
			bs.videos[i] = v.Clone()
		}
	}
	if ch&changeAudio != 0 {
		bs.audio = o.state.AudioTrack.Clone()
	}
	return bs
}

// syncBridge runs without o.mu: the bridge may publish events that call
// back into the orchestrator.
func (o *Orchestrator) syncBridge(bs bridgeSync) {
	if bs.ch&(changeDuration|changeVideo) != 0 {
		o.bridge.SetDuration(bs.duration)
	}
	if bs.ch&changeVideo != 0 {
		o.bridge.SetClips(bs.videos)
	}
	if bs.ch&changeAudio != 0 {
		o.bridge.SetAudioTrack(bs.audio)
	}
}

// mutate applies fn to a copy of the state. A structural action pushes the
// previous state to history before the new state is installed; every
// successful mutation then queues an autosave. When fn fails the state is
// left as it was.
func (o *Orchestrator) mutate(act Action, ch change, fn func(s *project.State) error) error {
	return o.apply(act, ch, false, fn)
}

// drag is mutate for live edits. The state from before the first live
// edit is kept and becomes the undo entry once the gesture is committed.
func (o *Orchestrator) drag(act Action, ch change, fn func(s *project.State) error) error {
	return o.apply(act, ch, true, fn)
}

func (o *Orchestrator) apply(act Action, ch change, gesture bool, fn func(s *project.State) error) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	work := o.state.Clone()
	if err := fn(work); err != nil {
		o.mu.Unlock()
		if errors.Is(err, errNoop) {
			return nil
		}
		return err
	}

	switch {
	case act.Kind == Structural:
		o.commitGestureLocked()
		o.history.Push(history.Capture(act.Label, o.state))
	case gesture && o.gesture == nil:
		snap := history.Capture(act.Label, o.state)
		o.gesture = &snap
	}
	o.state = work
	// queued under o.mu so documents reach autosave in mutation order
	o.autosave.QueueSave(project.Serialize(o.state))
	bs := o.syncLocked(ch)
	o.mu.Unlock()

	o.syncBridge(bs)
	o.log.Debug().
		Str(xlog.FieldAction, act.Label).
		Stringer("kind", act.Kind).
		Msg("state mutated")
	return nil
}

func (o *Orchestrator) commitGestureLocked() {
	if o.gesture == nil {
		return
	}
	o.history.Push(*o.gesture)
	o.gesture = nil
}

// EndGesture commits a pending live edit as one undo entry.
func (o *Orchestrator) EndGesture() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.commitGestureLocked()
}

func (o *Orchestrator) Undo() bool { return o.step("undo", o.history.Undo) }
func (o *Orchestrator) Redo() bool { return o.step("redo", o.history.Redo) }

func (o *Orchestrator) step(name string, pop func(*history.Snapshot) (history.Snapshot, bool)) bool {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return false
	}
	o.commitGestureLocked()
	current := history.Capture("", o.state)
	snap, ok := pop(&current)
	if !ok {
		o.mu.Unlock()
		return false
	}
	snap.ApplyTo(o.state)
	if !o.selected.IsZero() && !o.state.Has(o.selected) {
		o.selected = layer.Ref{}
	}
	o.autosave.QueueSave(project.Serialize(o.state))
	bs := o.syncLocked(changeAll)
	o.mu.Unlock()

	o.syncBridge(bs)
	o.log.Info().Str(xlog.FieldAction, snap.Action).Msg(name)
	return true
}

func (o *Orchestrator) CanUndo() bool { return o.history.CanUndo() }
func (o *Orchestrator) CanRedo() bool { return o.history.CanRedo() }

func (o *Orchestrator) RecentActions(n int) []history.Entry {
	return o.history.RecentActions(n)
}

func (o *Orchestrator) ID() uuid.UUID { return o.id }

func (o *Orchestrator) Title() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.title
}

func (o *Orchestrator) ProjectStatus() models.Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// State returns a copy of the current project state.
func (o *Orchestrator) State() *project.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Clone()
}

// Document serializes the current state.
func (o *Orchestrator) Document() models.ProjectJSON {
	o.mu.Lock()
	defer o.mu.Unlock()
	return project.Serialize(o.state)
}

func (o *Orchestrator) SaveStatus() autosave.Status { return o.autosave.Status() }

func (o *Orchestrator) Bridge() *playback.Bridge { return o.bridge }

// Frame is what the rendering surface draws on each tick.
type Frame struct {
	VideoLayers  []layer.VideoLayer
	ImageLayers  []layer.ImageLayer
	TextLayers   []layer.TextLayer
	EmojiLayers  []layer.EmojiLayer
	CurrentTime  float64
	ClipStart    float64
	ClipEnd      float64
	GlobalFilter layer.VideoFilter
	Selection    layer.Ref
}

func (o *Orchestrator) Frame() Frame {
	t := o.bridge.CurrentTime()
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.state.Clone()
	return Frame{
		VideoLayers:  s.VideoLayers,
		ImageLayers:  s.ImageLayers,
		TextLayers:   s.TextLayers,
		EmojiLayers:  s.EmojiLayers,
		CurrentTime:  t,
		ClipStart:    s.ClipStart,
		ClipEnd:      s.ClipEnd,
		GlobalFilter: s.GlobalFilter,
		Selection:    o.selected,
	}
}
