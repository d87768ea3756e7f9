// Package playback keeps a media player and an audio mixer in step with the
// editor timeline.
package playback

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"reel-editor/internal/layer"
	xlog "reel-editor/internal/log"
)

var ErrNoMixer = errors.New("playback: no mixer attached")

type State string

const (
	StateIdle    State = "idle"
	StatePlaying State = "playing"
	StatePaused  State = "paused"
)

type EventKind int

const (
	EventTime EventKind = iota
	EventDuration
	EventState
)

type Event struct {
	Kind      EventKind
	Time      float64
	Duration  float64
	State     State
	Scrubbing bool
}

type Options struct {
	// Audio plays the overlay track; nil when the host has none.
	Audio  AudioElement
	Logger *zerolog.Logger
}

// channel is one independently mutable volume.
type channel struct {
	volume float64
	muted  bool
}

func (c channel) effective() float64 {
	if c.muted {
		return 0
	}
	return c.volume
}

// Bridge owns the play-head state machine (idle, playing, paused, with a
// scrubbing sub-state) and the two volume channels. No lock is held while
// calling the player, the audio element, the mixer or a subscriber.
type Bridge struct {
	player Player
	audio  AudioElement
	log    zerolog.Logger

	mu          sync.Mutex
	state       State
	scrubbing   bool
	currentTime float64
	duration    float64
	track       *layer.AudioTrack
	audioActive bool
	video       channel
	trackVol    channel
	mixer       Mixer

	subs   map[EventKind]map[int]func(Event)
	nextID int
	closed bool
}

func New(player Player, opts Options) *Bridge {
	b := &Bridge{
		player:   player,
		audio:    opts.Audio,
		log:      xlog.Or(opts.Logger, "playback"),
		state:    StateIdle,
		video:    channel{volume: layer.DefaultVolume},
		trackVol: channel{volume: layer.DefaultVolume},
		subs:     make(map[EventKind]map[int]func(Event)),
	}
	player.SetListener(b)
	return b
}

// Subscribe registers fn for kind and returns the function that removes it.
func (b *Bridge) Subscribe(kind EventKind, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[int]func(Event))
	}
	b.subs[kind][id] = fn
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[kind], id)
	}
}

func (b *Bridge) publish(ev Event) {
	b.mu.Lock()
	fns := make([]func(Event), 0, len(b.subs[ev.Kind]))
	for _, fn := range b.subs[ev.Kind] {
		fns = append(fns, fn)
	}
	b.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (b *Bridge) stateEventLocked() Event {
	return Event{Kind: EventState, State: b.state, Scrubbing: b.scrubbing, Time: b.currentTime}
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Bridge) Scrubbing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.scrubbing
}

func (b *Bridge) CurrentTime() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentTime
}

func (b *Bridge) Duration() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duration
}

// SetDuration adopts the editor's duration without emitting an event,
// passes it on to a player that accepts it and pulls the play-head back
// inside it.
func (b *Bridge) SetDuration(d float64) {
	b.mu.Lock()
	b.duration = d
	clamped := b.currentTime > d
	if clamped {
		b.currentTime = d
	}
	b.mu.Unlock()
	if ds, ok := b.player.(DurationSetter); ok {
		ds.SetDuration(d)
	}
	if clamped {
		b.player.SeekGlobalTime(d)
	}
}

// SetClips hands the video playlist to the player.
func (b *Bridge) SetClips(videos []layer.VideoLayer) {
	clips := make([]Clip, len(videos))
	for i, v := range videos {
		clips[i] = Clip{ID: v.ID, Src: v.Src, Start: v.Start, End: v.End}
	}
	b.player.SetClips(clips)
}

func (b *Bridge) SetLoop(loop bool)      { b.player.SetLoop(loop) }
func (b *Bridge) SetSpeed(speed float64) { b.player.SetSpeed(speed) }

func (b *Bridge) Play() {
	b.mu.Lock()
	if b.state == StatePlaying {
		b.mu.Unlock()
		return
	}
	b.state = StatePlaying
	local, inWindow := b.audioLocalLocked(b.currentTime)
	b.audioActive = inWindow
	ev := b.stateEventLocked()
	b.mu.Unlock()

	b.player.Play()
	if inWindow {
		b.audio.SetCurrentTime(local)
		if err := b.audio.Play(); err != nil {
			b.log.Warn().Err(err).Msg("audio play failed")
		}
	}
	b.publish(ev)
}

func (b *Bridge) Pause() {
	b.mu.Lock()
	if b.state != StatePlaying {
		b.mu.Unlock()
		return
	}
	b.state = StatePaused
	hasAudio := b.audio != nil
	b.audioActive = false
	ev := b.stateEventLocked()
	b.mu.Unlock()

	b.player.Pause()
	if hasAudio {
		b.audio.Pause()
	}
	b.publish(ev)
}

func (b *Bridge) TogglePlay() {
	if b.State() == StatePlaying {
		b.Pause()
		return
	}
	b.Play()
}

// Seek clamps t to [0, duration], moves the player and, when the audio
// track is active at t, the audio element. Outside its window the audio
// element is left untouched.
func (b *Bridge) Seek(t float64) float64 {
	b.mu.Lock()
	t = clamp(t, 0, b.duration)
	b.currentTime = t
	local, inWindow := b.audioLocalLocked(t)
	b.mu.Unlock()

	b.player.SeekGlobalTime(t)
	if inWindow {
		b.audio.SetCurrentTime(local)
	}
	b.publish(Event{Kind: EventTime, Time: t})
	return t
}

func (b *Bridge) StartScrub() {
	b.mu.Lock()
	if b.scrubbing {
		b.mu.Unlock()
		return
	}
	b.scrubbing = true
	ev := b.stateEventLocked()
	b.mu.Unlock()

	b.player.StartScrub()
	b.publish(ev)
}

// EndScrub leaves the scrubbing sub-state; time advances again from the
// scrubbed position.
func (b *Bridge) EndScrub() {
	b.mu.Lock()
	if !b.scrubbing {
		b.mu.Unlock()
		return
	}
	b.scrubbing = false
	ev := b.stateEventLocked()
	b.mu.Unlock()

	b.player.EndScrub()
	b.publish(ev)
}

// TimeUpdate implements Listener.
func (b *Bridge) TimeUpdate(t float64) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.currentTime = t
	local, inWindow := b.audioLocalLocked(t)
	start := inWindow && b.state == StatePlaying && !b.audioActive
	stop := !inWindow && b.audioActive
	if start || stop {
		b.audioActive = inWindow
	}
	b.mu.Unlock()

	switch {
	case start:
		b.audio.SetCurrentTime(local)
		if err := b.audio.Play(); err != nil {
			b.log.Warn().Err(err).Msg("audio play failed")
		}
	case stop:
		b.audio.Pause()
	}
	b.publish(Event{Kind: EventTime, Time: t})
}

// DurationChange implements Listener. Non-positive or unchanged values are
// ignored.
func (b *Bridge) DurationChange(d float64) {
	b.mu.Lock()
	if b.closed || d <= 0 || d == b.duration {
		b.mu.Unlock()
		return
	}
	b.duration = d
	b.mu.Unlock()
	b.publish(Event{Kind: EventDuration, Duration: d})
}

// Ended implements Listener.
func (b *Bridge) Ended() {
	b.mu.Lock()
	if b.closed || b.state != StatePlaying {
		b.mu.Unlock()
		return
	}
	b.state = StatePaused
	active := b.audioActive
	b.audioActive = false
	ev := b.stateEventLocked()
	b.mu.Unlock()

	if active {
		b.audio.Pause()
	}
	b.publish(ev)
}

func (b *Bridge) audioLocalLocked(t float64) (float64, bool) {
	if b.audio == nil || b.track == nil {
		return 0, false
	}
	return b.track.LocalTime(t)
}

// SetAudioTrack replaces the overlay track; nil removes it. The track
// channel takes the track's stored volume and mute flag.
func (b *Bridge) SetAudioTrack(track *layer.AudioTrack) {
	b.mu.Lock()
	prev := b.track
	b.track = track.Clone()
	wasActive := b.audioActive
	b.audioActive = false
	if track != nil {
		b.trackVol = channel{volume: track.Volume, muted: track.Muted}
	}
	b.mu.Unlock()

	if b.audio != nil {
		if wasActive {
			b.audio.Pause()
		}
		if track != nil && (prev == nil || prev.URL != track.URL) {
			b.audio.SetSource(track.URL)
		}
	}
	b.pushTrackVolume()
}

func (b *Bridge) SetVideoVolume(v float64) {
	b.mu.Lock()
	b.video.volume = layer.ClampVolume(v)
	b.mu.Unlock()
	b.pushVideoVolume()
}

func (b *Bridge) SetVideoMuted(muted bool) {
	b.mu.Lock()
	b.video.muted = muted
	b.mu.Unlock()
	b.pushVideoVolume()
}

func (b *Bridge) ToggleVideoMute() bool {
	b.mu.Lock()
	b.video.muted = !b.video.muted
	muted := b.video.muted
	b.mu.Unlock()
	b.pushVideoVolume()
	return muted
}

func (b *Bridge) SetTrackVolume(v float64) {
	b.mu.Lock()
	b.trackVol.volume = layer.ClampVolume(v)
	b.mu.Unlock()
	b.pushTrackVolume()
}

func (b *Bridge) SetTrackMuted(muted bool) {
	b.mu.Lock()
	b.trackVol.muted = muted
	b.mu.Unlock()
	b.pushTrackVolume()
}

func (b *Bridge) ToggleTrackMute() bool {
	b.mu.Lock()
	b.trackVol.muted = !b.trackVol.muted
	muted := b.trackVol.muted
	b.mu.Unlock()
	b.pushTrackVolume()
	return muted
}

func (b *Bridge) VideoMuted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.video.muted
}

func (b *Bridge) TrackMuted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trackVol.muted
}

func (b *Bridge) EffectiveVideoVolume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.video.effective()
}

func (b *Bridge) EffectiveTrackVolume() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trackVol.effective()
}

func (b *Bridge) pushVideoVolume() {
	b.mu.Lock()
	m, v := b.mixer, b.video.effective()
	b.mu.Unlock()
	if m == nil {
		return
	}
	m.SetVideoVolume(v)
	b.log.Debug().Float64("volume", v).Msg("video gain applied")
}

func (b *Bridge) pushTrackVolume() {
	b.mu.Lock()
	m, v := b.mixer, b.trackVol.effective()
	var id string
	if b.track != nil {
		id = b.track.ID
	}
	b.mu.Unlock()
	if m == nil || id == "" {
		return
	}
	m.UpdateEffect(id, EffectVolume, v)
	b.log.Debug().Str(xlog.FieldTrackID, id).Float64("volume", v).Msg("track gain applied")
}

// AttachMixer is called once the rendering surface has a playable video
// element. The mixer is resumed and receives both effective volumes. A
// previously attached, different mixer is closed.
func (b *Bridge) AttachMixer(ctx context.Context, m Mixer) error {
	b.mu.Lock()
	prev := b.mixer
	b.mixer = m
	b.mu.Unlock()

	if prev != nil && prev != m {
		if err := prev.Close(); err != nil {
			b.log.Warn().Err(err).Msg("closing replaced mixer")
		}
	}
	if err := m.Resume(ctx); err != nil {
		return err
	}
	b.pushVideoVolume()
	b.pushTrackVolume()
	return nil
}

// ResumeAudio resumes the attached mixer, e.g. on a user gesture.
func (b *Bridge) ResumeAudio(ctx context.Context) error {
	b.mu.Lock()
	m := b.mixer
	b.mu.Unlock()
	if m == nil {
		return ErrNoMixer
	}
	return m.Resume(ctx)
}

// Close drops every subscriber, stops playback and closes the mixer.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.subs = make(map[EventKind]map[int]func(Event))
	playing := b.state == StatePlaying
	b.state = StateIdle
	m := b.mixer
	b.mixer = nil
	b.mu.Unlock()

	b.player.SetListener(nil)
	if playing {
		b.player.Pause()
		if b.audio != nil {
			b.audio.Pause()
		}
	}
	if m != nil {
		return m.Close()
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
