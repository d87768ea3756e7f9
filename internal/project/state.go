// Package project turns a persisted project_json document into typed editor
// state and back.
//
// Load and Serialize are inverse transforms: for every state the editor can
// reach, Load(Serialize(s)) is observationally equal to s.
package project

import (
	"encoding/json"
	"errors"

	"reel-editor/internal/layer"
	"reel-editor/internal/models"
)

var (
	ErrMalformedProject = errors.New("malformed project_json")
	ErrLayerNotFound    = errors.New("layer not found")
	ErrNoVideo          = errors.New("project has no video clip")
)

const (
	DefaultDuration = 30.0
	DefaultFPS      = 30
)

var DefaultResolution = models.Resolution{Width: 1080, Height: 1920}

// State is the in-memory editor project. It is owned by a single
// orchestrator; everyone else receives copies.
type State struct {
	VideoLayers []layer.VideoLayer
	ImageLayers []layer.ImageLayer
	TextLayers  []layer.TextLayer
	EmojiLayers []layer.EmojiLayer
	AudioTrack  *layer.AudioTrack

	GlobalFilter layer.VideoFilter
	Transcripts  []models.Transcript

	Duration  float64
	ClipStart float64
	ClipEnd   float64

	FPS        int
	Resolution models.Resolution

	// VideoVolume is the source-video volume, 0-100.
	VideoVolume float64

	PublishSettings json.RawMessage

	// Track ids seen on load, reused on save.
	TrackIDs map[models.TrackType]string
	// Tracks of a type this editor does not know, written back verbatim.
	ExtraTracks []models.Track
}

func NewState() *State {
	return &State{
		GlobalFilter: layer.DefaultFilter(),
		Duration:     DefaultDuration,
		ClipEnd:      DefaultDuration,
		FPS:          DefaultFPS,
		Resolution:   DefaultResolution,
		VideoVolume:  layer.DefaultVolume,
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	out := *s
	out.VideoLayers = cloneSlice(s.VideoLayers, layer.VideoLayer.Clone)
	out.ImageLayers = cloneSlice(s.ImageLayers, layer.ImageLayer.Clone)
	out.TextLayers = cloneSlice(s.TextLayers, layer.TextLayer.Clone)
	out.EmojiLayers = cloneSlice(s.EmojiLayers, layer.EmojiLayer.Clone)
	out.AudioTrack = s.AudioTrack.Clone()
	out.Transcripts = cloneSlice(s.Transcripts, models.Transcript.Clone)
	if s.PublishSettings != nil {
		out.PublishSettings = append(json.RawMessage(nil), s.PublishSettings...)
	}
	if s.TrackIDs != nil {
		out.TrackIDs = make(map[models.TrackType]string, len(s.TrackIDs))
		for k, v := range s.TrackIDs {
			out.TrackIDs[k] = v
		}
	}
	out.ExtraTracks = cloneSlice(s.ExtraTracks, models.Track.Clone)
	return &out
}

func cloneSlice[T any](in []T, clone func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		out[i] = clone(v)
	}
	return out
}

// Has reports whether the layer ref points at exists.
func (s *State) Has(ref layer.Ref) bool {
	switch ref.Kind {
	case layer.KindVideo:
		return indexOf(s.VideoLayers, ref.ID, func(l layer.VideoLayer) string { return l.ID }) >= 0
	case layer.KindImage:
		return indexOf(s.ImageLayers, ref.ID, func(l layer.ImageLayer) string { return l.ID }) >= 0
	case layer.KindText:
		return indexOf(s.TextLayers, ref.ID, func(l layer.TextLayer) string { return l.ID }) >= 0
	case layer.KindEmoji:
		return indexOf(s.EmojiLayers, ref.ID, func(l layer.EmojiLayer) string { return l.ID }) >= 0
	case layer.KindAudio:
		return s.AudioTrack != nil && s.AudioTrack.ID == ref.ID
	}
	return false
}

func indexOf[T any](in []T, id string, key func(T) string) int {
	for i, v := range in {
		if key(v) == id {
			return i
		}
	}
	return -1
}

func (s *State) VideoIndex(id string) int {
	return indexOf(s.VideoLayers, id, func(l layer.VideoLayer) string { return l.ID })
}

func (s *State) ImageIndex(id string) int {
	return indexOf(s.ImageLayers, id, func(l layer.ImageLayer) string { return l.ID })
}

func (s *State) TextIndex(id string) int {
	return indexOf(s.TextLayers, id, func(l layer.TextLayer) string { return l.ID })
}

func (s *State) EmojiIndex(id string) int {
	return indexOf(s.EmojiLayers, id, func(l layer.EmojiLayer) string { return l.ID })
}

// Remove deletes the referenced layer. Removing a video clip re-lays out
// the remaining clips.
func (s *State) Remove(ref layer.Ref) error {
	switch ref.Kind {
	case layer.KindVideo:
		i := s.VideoIndex(ref.ID)
		if i < 0 {
			return ErrLayerNotFound
		}
		s.VideoLayers = append(s.VideoLayers[:i:i], s.VideoLayers[i+1:]...)
		s.RecomputeDuration()
	case layer.KindImage:
		i := s.ImageIndex(ref.ID)
		if i < 0 {
			return ErrLayerNotFound
		}
		s.ImageLayers = append(s.ImageLayers[:i:i], s.ImageLayers[i+1:]...)
	case layer.KindText:
		i := s.TextIndex(ref.ID)
		if i < 0 {
			return ErrLayerNotFound
		}
		s.TextLayers = append(s.TextLayers[:i:i], s.TextLayers[i+1:]...)
	case layer.KindEmoji:
		i := s.EmojiIndex(ref.ID)
		if i < 0 {
			return ErrLayerNotFound
		}
		s.EmojiLayers = append(s.EmojiLayers[:i:i], s.EmojiLayers[i+1:]...)
	case layer.KindAudio:
		if s.AudioTrack == nil || (ref.ID != "" && s.AudioTrack.ID != ref.ID) {
			return ErrLayerNotFound
		}
		s.AudioTrack = nil
	default:
		return ErrLayerNotFound
	}
	return nil
}
