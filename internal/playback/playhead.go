package playback

import (
	"context"
	"sync"
	"time"
)

// Playhead is a Player driven by an explicit clock. Tick advances it; Run
// ticks it from a ticker until the context ends. It is used headless and
// in tests.
type Playhead struct {
	mu        sync.Mutex
	listener  Listener
	clips     []Clip
	duration  float64
	time      float64
	playing   bool
	scrubbing bool
	loop      bool
	speed     float64
}

func NewPlayhead() *Playhead {
	return &Playhead{speed: 1}
}

func (p *Playhead) SetListener(l Listener) {
	p.mu.Lock()
	p.listener = l
	p.mu.Unlock()
}

func (p *Playhead) Play() {
	p.mu.Lock()
	if p.time >= p.duration && p.duration > 0 {
		p.time = 0
	}
	p.playing = true
	p.mu.Unlock()
}

func (p *Playhead) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

func (p *Playhead) SeekGlobalTime(t float64) {
	p.mu.Lock()
	p.time = clamp(t, 0, p.duration)
	p.mu.Unlock()
}

func (p *Playhead) StartScrub() {
	p.mu.Lock()
	p.scrubbing = true
	p.mu.Unlock()
}

func (p *Playhead) EndScrub() {
	p.mu.Lock()
	p.scrubbing = false
	p.mu.Unlock()
}

func (p *Playhead) SetLoop(loop bool) {
	p.mu.Lock()
	p.loop = loop
	p.mu.Unlock()
}

func (p *Playhead) SetSpeed(speed float64) {
	if speed <= 0 {
		return
	}
	p.mu.Lock()
	p.speed = speed
	p.mu.Unlock()
}

// SetDuration sets the timeline length without notifying the listener.
// Clips replace it on the next SetClips that carries any.
func (p *Playhead) SetDuration(d float64) {
	p.mu.Lock()
	p.duration = max(d, 0)
	if p.time > p.duration {
		p.time = p.duration
	}
	p.mu.Unlock()
}

// SetClips replaces the playlist. The duration becomes the end of the last
// clip and is reported to the listener when it changes. An empty playlist
// keeps the duration set through SetDuration.
func (p *Playhead) SetClips(clips []Clip) {
	p.mu.Lock()
	p.clips = append([]Clip(nil), clips...)
	if len(p.clips) == 0 {
		p.mu.Unlock()
		return
	}
	var d float64
	for _, c := range p.clips {
		if c.End > d {
			d = c.End
		}
	}
	changed := d != p.duration
	p.duration = d
	if p.time > d {
		p.time = d
	}
	l := p.listener
	p.mu.Unlock()

	if changed && l != nil {
		l.DurationChange(d)
	}
}

// ClipAt returns the index of the clip playing at t, or -1.
func (p *Playhead) ClipAt(t float64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, c := range p.clips {
		if t >= c.Start && t < c.End {
			return i
		}
	}
	return -1
}

func (p *Playhead) Time() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.time
}

// Tick advances a playing, non-scrubbing play-head by dt seconds of wall
// time scaled by the speed.
func (p *Playhead) Tick(dt time.Duration) {
	p.mu.Lock()
	if !p.playing || p.scrubbing || p.duration <= 0 {
		p.mu.Unlock()
		return
	}
	p.time += dt.Seconds() * p.speed
	ended := false
	if p.time >= p.duration {
		if p.loop {
			p.time = 0
		} else {
			p.time = p.duration
			p.playing = false
			ended = true
		}
	}
	t, l := p.time, p.listener
	p.mu.Unlock()

	if l == nil {
		return
	}
	l.TimeUpdate(t)
	if ended {
		l.Ended()
	}
}

// Run ticks every interval until ctx is done.
func (p *Playhead) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			p.Tick(now.Sub(last))
			last = now
		}
	}
}
