package playback

import (
	"context"
	"errors"
	"sync"
)

var ErrMixerClosed = errors.New("playback: mixer closed")

// GainMixer is an in-process Mixer that keeps linear gains (0-1) for the
// source video and per-track effects.
type GainMixer struct {
	mu        sync.Mutex
	running   bool
	resumes   int
	closed    bool
	videoGain float64
	effects   map[string]map[Effect]float64
}

func NewGainMixer() *GainMixer {
	return &GainMixer{videoGain: 1, effects: make(map[string]map[Effect]float64)}
}

// Resume starts the mixer. Resuming a running mixer does nothing.
func (m *GainMixer) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrMixerClosed
	}
	if !m.running {
		m.running = true
		m.resumes++
	}
	return nil
}

func (m *GainMixer) SetVideoVolume(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.videoGain = v / 100
}

func (m *GainMixer) UpdateEffect(trackID string, effect Effect, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.effects[trackID] == nil {
		m.effects[trackID] = make(map[Effect]float64)
	}
	if effect == EffectVolume {
		value /= 100
	}
	m.effects[trackID][effect] = value
}

func (m *GainMixer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.running = false
	return nil
}

func (m *GainMixer) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Starts counts transitions into the running state.
func (m *GainMixer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resumes
}

func (m *GainMixer) VideoGain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoGain
}

// TrackGain reports the volume effect of trackID and whether one was set.
func (m *GainMixer) TrackGain(trackID string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.effects[trackID][EffectVolume]
	return g, ok
}
