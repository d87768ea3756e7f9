// Package layer defines the typed layers that make up an editor timeline:
// video, image, text, emoji/sticker/gif and the single audio track.
//
// All in-memory volumes are on the 0-100 scale. Conversion to the 0-1 scale
// used by the persisted document happens in package project only.
package layer

import (
	"fmt"
	"math"

	"reel-editor/internal/models"
)

type Kind string

const (
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindEmoji Kind = "emoji"
	KindAudio Kind = "audio"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindVideo, KindImage, KindText, KindEmoji, KindAudio:
		return k, nil
	case "sticker", "gif":
		return KindEmoji, nil
	}
	return "", fmt.Errorf("unknown layer kind %q", s)
}

// Ref identifies one layer across the five collections.
type Ref struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
}

func (r Ref) IsZero() bool { return r.ID == "" }

type Position = models.Position

// DefaultPosition is the canvas centre, in percent.
var DefaultPosition = Position{X: 50, Y: 50}

const DefaultVolume = 100.0

type VideoLayer struct {
	ID       string       `json:"id"`
	Src      string       `json:"src"`
	FileName string       `json:"fileName"`
	Start    float64      `json:"start"`
	End      float64      `json:"end"`
	Duration float64      `json:"duration"`
	Volume   float64      `json:"volume"`
	Position Position     `json:"position"`
	Scale    float64      `json:"scale"`
	Rotation float64      `json:"rotation"`
	Filter   *VideoFilter `json:"filter,omitempty"`
}

func (l VideoLayer) Clone() VideoLayer {
	l.Filter = l.Filter.Clone()
	return l
}

func (l *VideoLayer) ApplyDefaults() {
	if l.FileName == "" {
		l.FileName = "Video"
	}
}

// ClipDuration is the length the layer occupies on the video track.
func (l VideoLayer) ClipDuration() float64 {
	if l.Duration > 0 {
		return l.Duration
	}
	if d := l.End - l.Start; d > 0 {
		return d
	}
	return DefaultClipDuration
}

// DefaultClipDuration is used for a video clip with neither a duration nor
// a usable range.
const DefaultClipDuration = 5.0

type ImageLayer struct {
	ID       string       `json:"id"`
	Src      string       `json:"src"`
	FileName string       `json:"fileName"`
	Start    float64      `json:"start"`
	End      float64      `json:"end"`
	Position Position     `json:"position"`
	Scale    float64      `json:"scale"`
	Rotation float64      `json:"rotation"`
	Filter   *VideoFilter `json:"filter,omitempty"`
}

func (l ImageLayer) Clone() ImageLayer {
	l.Filter = l.Filter.Clone()
	return l
}

type TextLayer struct {
	ID        string         `json:"id"`
	Content   string         `json:"content"`
	Start     float64        `json:"start"`
	End       float64        `json:"end"`
	Position  Position       `json:"position"`
	Scale     float64        `json:"scale"`
	Rotation  float64        `json:"rotation"`
	Style     TextStyle      `json:"style"`
	Animation *TextAnimation `json:"animation,omitempty"`
}

func (l TextLayer) Clone() TextLayer {
	l.Style = l.Style.Clone()
	if l.Animation != nil {
		a := *l.Animation
		l.Animation = &a
	}
	return l
}

// ApplyDefaults completes the style and drops an animation without a type.
func (l *TextLayer) ApplyDefaults() {
	l.Style = l.Style.Complete()
	if l.Animation != nil && l.Animation.Type == "" {
		l.Animation = nil
	}
}

type TextAnimation struct {
	Type     string  `json:"type" yaml:"type"`
	Duration float64 `json:"duration" yaml:"duration"`
}

type EmojiType string

const (
	EmojiPlain   EmojiType = "emoji"
	EmojiSticker EmojiType = "sticker"
	EmojiGIF     EmojiType = "gif"
)

type EmojiLayer struct {
	ID       string    `json:"id"`
	Type     EmojiType `json:"type"`
	Content  string    `json:"content"` // character or URL
	Start    float64   `json:"start"`
	End      float64   `json:"end"`
	Position Position  `json:"position"`
	Scale    float64   `json:"scale"`
	Rotation float64   `json:"rotation"`
}

func (l EmojiLayer) Clone() EmojiLayer { return l }

func (l *EmojiLayer) ApplyDefaults() {
	switch l.Type {
	case EmojiPlain, EmojiSticker, EmojiGIF:
	default:
		l.Type = EmojiPlain
	}
}

type SourceType string

const (
	SourceYouTube    SourceType = "youtube"
	SourceSoundCloud SourceType = "soundcloud"
	SourceSpotify    SourceType = "spotify"
	SourceDirect     SourceType = "direct"
	SourceRecorded   SourceType = "recorded"
	SourceLibrary    SourceType = "library"
)

type AudioTrack struct {
	ID           string        `json:"id"`
	URL          string        `json:"url"`
	SourceType   SourceType    `json:"sourceType"`
	VideoID      string        `json:"videoId,omitempty"`
	Title        string        `json:"title"`
	Artist       string        `json:"artist,omitempty"`
	ThumbnailURL string        `json:"thumbnailUrl,omitempty"`
	StartAt      float64       `json:"startAt"`
	EndAt        float64       `json:"endAt"`
	Duration     float64       `json:"duration"`
	Volume       float64       `json:"volume"`
	Muted        bool          `json:"muted"`
	Effects      *AudioEffects `json:"effects,omitempty"`
}

func (a *AudioTrack) Clone() *AudioTrack {
	if a == nil {
		return nil
	}
	out := *a
	if a.Effects != nil {
		e := *a.Effects
		out.Effects = &e
	}
	return &out
}

func (a *AudioTrack) ApplyDefaults() {
	if a.SourceType == "" {
		a.SourceType = SourceDirect
	}
	if a.Title == "" {
		a.Title = "Music"
	}
}

// LocalTime maps a timeline position to a position inside the track. ok
// is false when the track is not active at global.
func (a *AudioTrack) LocalTime(global float64) (local float64, ok bool) {
	local = global - a.StartAt
	if local < 0 {
		return local, false
	}
	if a.Duration > 0 && local > a.Duration {
		return local, false
	}
	return local, true
}

type AudioEffects struct {
	Volume float64 `json:"volume"` // 0-100
	Bass   float64 `json:"bass"`   // -100..100
	Treble float64 `json:"treble"` // -100..100
	Reverb float64 `json:"reverb"` // 0-100
	Pan    float64 `json:"pan"`    // -100 (left)..100 (right)
	Speed  float64 `json:"speed"`  // 0.5..2.0
}

func DefaultAudioEffects() AudioEffects {
	return AudioEffects{Volume: 100, Speed: 1}
}

// volumeStep is the finest volume the 0-1 stored scale keeps.
const volumeStep = 1e4

// ClampVolume bounds v to the in-memory 0-100 scale, rounded to the
// precision a stored document keeps.
func ClampVolume(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return math.Round(v*volumeStep) / volumeStep
}
