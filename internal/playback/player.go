package playback

import "context"

// Clip is one entry of the player's video playlist, in timeline seconds.
type Clip struct {
	ID    string
	Src   string
	Start float64
	End   float64
}

// Listener receives the player's own notifications. Implementations must
// not call back into the player synchronously.
type Listener interface {
	TimeUpdate(t float64)
	DurationChange(d float64)
	Ended()
}

// Player is the play-head abstraction the bridge drives. It knows nothing
// about the rendering surface.
type Player interface {
	Play()
	Pause()
	SeekGlobalTime(t float64)
	StartScrub()
	EndScrub()
	SetLoop(loop bool)
	SetSpeed(speed float64)
	SetClips(clips []Clip)
	SetListener(l Listener)
}

// DurationSetter is implemented by players that take the timeline length
// from the editor. A project without video clips has no other source for it.
type DurationSetter interface {
	SetDuration(d float64)
}

// AudioElement is the element playing the overlay audio track.
type AudioElement interface {
	SetSource(url string)
	SetCurrentTime(t float64)
	Play() error
	Pause()
}

type Effect string

const EffectVolume Effect = "volume"

// Mixer is the audio engine. Resume must be safe to call repeatedly.
// Volumes are on the 0-100 scale.
type Mixer interface {
	Resume(ctx context.Context) error
	SetVideoVolume(v float64)
	UpdateEffect(trackID string, effect Effect, value float64)
	Close() error
}
