package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusDraft Status = "draft"
	StatusDone  Status = "done"
)

func (s Status) Valid() bool {
	return s == StatusDraft || s == StatusDone
}

// ProjectDocument is the unit of persistence. ProjectJSON is the only part
// the editor core reads or writes; the rest is row metadata.
type ProjectDocument struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
	Title  string    `json:"title"`
	Status Status    `json:"status"`

	ProjectJSON ProjectJSON `json:"project_json"`

	// Version is bumped on every save, a basic audit trail of how many
	// times the project was written.
	Version int `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TrackType string

const (
	TrackVideo   TrackType = "video"
	TrackAudio   TrackType = "audio"
	TrackOverlay TrackType = "overlay"
	TrackText    TrackType = "text"
	TrackImage   TrackType = "image"
)

func (t TrackType) Known() bool {
	switch t {
	case TrackVideo, TrackAudio, TrackOverlay, TrackText, TrackImage:
		return true
	}
	return false
}

type ProjectJSON struct {
	Tracks      []Track      `json:"tracks"`
	Settings    *Settings    `json:"settings,omitempty"`
	Transcripts []Transcript `json:"transcripts,omitempty"`
	Audio       *AudioState  `json:"audio,omitempty"`

	// PublishSettings belongs to the publish screen. It is carried
	// through load/save untouched.
	PublishSettings json.RawMessage `json:"publishSettings,omitempty"`
}

type Track struct {
	ID    string    `json:"id"`
	Type  TrackType `json:"type"`
	Clips []Clip    `json:"clips"`
}

// Clip is the persisted form of every layer kind. Optional numeric fields
// are pointers so a missing value can be told apart from zero.
type Clip struct {
	ID   string `json:"id"`
	Type string `json:"type,omitempty"`

	Src      string `json:"src,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Content  string `json:"content,omitempty"`

	Start    *float64 `json:"start,omitempty"`
	End      *float64 `json:"end,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Volume   *float64 `json:"volume,omitempty"`

	Position *Position `json:"position,omitempty"`
	Scale    *float64  `json:"scale,omitempty"`
	Rotation *float64  `json:"rotation,omitempty"`

	Filter    json.RawMessage `json:"filter,omitempty"`
	Style     json.RawMessage `json:"style,omitempty"`
	Animation json.RawMessage `json:"animation,omitempty"`
	Effects   json.RawMessage `json:"effects,omitempty"`

	// audio only
	SourceType   string `json:"sourceType,omitempty"`
	VideoID      string `json:"videoId,omitempty"`
	Title        string `json:"title,omitempty"`
	Artist       string `json:"artist,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Muted        bool   `json:"muted,omitempty"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type Settings struct {
	Duration   float64    `json:"duration"`
	ClipStart  *float64   `json:"clipStart,omitempty"`
	ClipEnd    *float64   `json:"clipEnd,omitempty"`
	FPS        int        `json:"fps,omitempty"`
	Resolution Resolution `json:"resolution"`

	// VideoVolume is the legacy 0-100 volume. AudioState.VideoVolume wins
	// when both are present.
	VideoVolume *float64 `json:"videoVolume,omitempty"`

	// GlobalFilter is absent from older documents, which kept the
	// global filter only on the video clips.
	GlobalFilter json.RawMessage `json:"globalFilter,omitempty"`
}

// AudioState holds volumes on the 0-1 scale.
type AudioState struct {
	VideoVolume *float64               `json:"videoVolume,omitempty"`
	Tracks      map[string]TrackVolume `json:"tracks"`
}

type TrackVolume struct {
	Volume *float64 `json:"volume,omitempty"`
}

type TranscriptStatus string

const (
	TranscriptPending    TranscriptStatus = "pending"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptCompleted  TranscriptStatus = "completed"
	TranscriptFailed     TranscriptStatus = "failed"
)

type Transcript struct {
	ID           string              `json:"id"`
	AudioTrackID string              `json:"audioTrackId"`
	Segments     []TranscriptSegment `json:"segments"`
	Status       TranscriptStatus    `json:"status"`
	Language     string              `json:"language,omitempty"`
}

type TranscriptSegment struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Clone returns a copy that shares no slices with t.
func (t Transcript) Clone() Transcript {
	out := t
	if t.Segments != nil {
		out.Segments = make([]TranscriptSegment, len(t.Segments))
		for i, seg := range t.Segments {
			if seg.Confidence != nil {
				c := *seg.Confidence
				seg.Confidence = &c
			}
			out.Segments[i] = seg
		}
	}
	return out
}

// Clone returns a copy that shares no clips with t.
func (t Track) Clone() Track {
	out := t
	if t.Clips != nil {
		out.Clips = make([]Clip, len(t.Clips))
		for i, c := range t.Clips {
			out.Clips[i] = c.Clone()
		}
	}
	return out
}

// Clone returns a copy that shares no pointers or raw payloads with c.
func (c Clip) Clone() Clip {
	out := c
	out.Start = cloneFloat(c.Start)
	out.End = cloneFloat(c.End)
	out.Duration = cloneFloat(c.Duration)
	out.Volume = cloneFloat(c.Volume)
	out.Scale = cloneFloat(c.Scale)
	out.Rotation = cloneFloat(c.Rotation)
	if c.Position != nil {
		p := *c.Position
		out.Position = &p
	}
	out.Filter = cloneRaw(c.Filter)
	out.Style = cloneRaw(c.Style)
	out.Animation = cloneRaw(c.Animation)
	out.Effects = cloneRaw(c.Effects)
	return out
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	return Float(*p)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}

// Float returns a pointer to v, for the optional fields above.
func Float(v float64) *float64 {
	return &v
}
