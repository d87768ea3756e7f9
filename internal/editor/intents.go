package editor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"reel-editor/internal/layer"
	xlog "reel-editor/internal/log"
	"reel-editor/internal/models"
	"reel-editor/internal/playback"
	"reel-editor/internal/project"
	"reel-editor/internal/templates"
)

// newTextSpan is how long a freshly added text layer stays on screen.
const newTextSpan = 5.0

func (o *Orchestrator) layerID(kind layer.Kind) string {
	return string(kind) + "-" + o.newID()
}

func placeDefaults(pos *layer.Position, scale *float64) {
	if *pos == (layer.Position{}) {
		*pos = layer.DefaultPosition
	}
	if *scale <= 0 {
		*scale = 1
	}
}

// AddVideo appends a clip to the video track and lays every clip out back
// to back again. Duration and clip end follow the new total.
func (o *Orchestrator) AddVideo(v layer.VideoLayer) (string, error) {
	v = v.Clone()
	v.ID = o.layerID(layer.KindVideo)
	v.ApplyDefaults()
	v.Volume = layer.ClampVolume(v.Volume)
	placeDefaults(&v.Position, &v.Scale)

	var total float64
	err := o.mutate(ActAddVideo, changeVideo, func(s *project.State) error {
		s.VideoLayers = append(s.VideoLayers, v)
		s.RecomputeDuration()
		total = s.Duration
		return nil
	})
	if err != nil {
		return "", err
	}
	o.log.Info().
		Str(xlog.FieldLayerID, v.ID).
		Str("file_name", v.FileName).
		Float64("duration", total).
		Msg("video clip added")
	return v.ID, nil
}

// AddImage adds an image overlay and selects it. Without video the project
// grows to cover the image.
func (o *Orchestrator) AddImage(img layer.ImageLayer) (string, error) {
	img = img.Clone()
	img.ID = o.layerID(layer.KindImage)
	placeDefaults(&img.Position, &img.Scale)

	err := o.mutate(ActAddImage, changeDuration, func(s *project.State) error {
		if img.End <= img.Start {
			img.End = s.Duration
		}
		s.ImageLayers = append(s.ImageLayers, img)
		if len(s.VideoLayers) == 0 && img.End > s.Duration {
			s.Duration = img.End
			s.ClipEnd = img.End
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	o.selectRef(layer.Ref{Kind: layer.KindImage, ID: img.ID})
	return img.ID, nil
}

// AddText places a text layer at the play-head for up to five seconds and
// selects it. Unset style fields take the default style.
func (o *Orchestrator) AddText(t layer.TextLayer) (string, error) {
	now := o.bridge.CurrentTime()
	t = t.Clone()
	t.ID = o.layerID(layer.KindText)
	placeDefaults(&t.Position, &t.Scale)
	t.ApplyDefaults()

	err := o.mutate(ActAddText, changeNone, func(s *project.State) error {
		t.Start = s.ClampTime(now)
		t.End = min(t.Start+newTextSpan, s.Duration)
		s.TextLayers = append(s.TextLayers, t)
		return nil
	})
	if err != nil {
		return "", err
	}
	o.selectRef(layer.Ref{Kind: layer.KindText, ID: t.ID})
	return t.ID, nil
}

// AddTextFromTranscript adds a caption keeping the segment's own timing.
func (o *Orchestrator) AddTextFromTranscript(t layer.TextLayer) (string, error) {
	t = t.Clone()
	t.ID = o.layerID(layer.KindText)
	placeDefaults(&t.Position, &t.Scale)
	t.ApplyDefaults()
	if t.End < t.Start {
		return "", fmt.Errorf("%w: end %.2f before start %.2f", ErrInvalidRange, t.End, t.Start)
	}

	err := o.mutate(ActAddTranscriptText, changeNone, func(s *project.State) error {
		s.TextLayers = append(s.TextLayers, t)
		return nil
	})
	if err != nil {
		return "", err
	}
	o.selectRef(layer.Ref{Kind: layer.KindText, ID: t.ID})
	return t.ID, nil
}

// DuplicateText copies a text layer next to the original, nudged down and
// right, and selects the copy.
func (o *Orchestrator) DuplicateText(id string) (string, error) {
	newID := o.layerID(layer.KindText)
	err := o.mutate(ActDuplicateText, changeNone, func(s *project.State) error {
		i := s.TextIndex(id)
		if i < 0 {
			return project.ErrLayerNotFound
		}
		c := s.TextLayers[i].Clone()
		c.ID = newID
		c.Position.X = min(c.Position.X+5, 100)
		c.Position.Y = min(c.Position.Y+5, 100)
		s.TextLayers = append(s.TextLayers, c)
		return nil
	})
	if err != nil {
		return "", err
	}
	o.selectRef(layer.Ref{Kind: layer.KindText, ID: newID})
	return newID, nil
}

// AddEmoji adds an emoji, sticker or gif spanning the whole project and
// selects it.
func (o *Orchestrator) AddEmoji(e layer.EmojiLayer) (string, error) {
	e.ID = o.layerID(layer.KindEmoji)
	e.ApplyDefaults()
	placeDefaults(&e.Position, &e.Scale)

	err := o.mutate(ActAddEmoji, changeNone, func(s *project.State) error {
		e.Start = 0
		e.End = s.Duration
		s.EmojiLayers = append(s.EmojiLayers, e)
		return nil
	})
	if err != nil {
		return "", err
	}
	o.log.Debug().Str(xlog.FieldLayerID, e.ID).Str("content", e.Content).Msg("emoji added")
	o.selectRef(layer.Ref{Kind: layer.KindEmoji, ID: e.ID})
	return e.ID, nil
}

// SetAudio replaces the audio track; nil removes it. A track without an id
// gets a fresh one.
func (o *Orchestrator) SetAudio(track *layer.AudioTrack) error {
	if track == nil {
		return o.mutate(ActRemoveAudio, changeAudio, func(s *project.State) error {
			if s.AudioTrack == nil {
				return errNoop
			}
			s.AudioTrack = nil
			return nil
		})
	}
	track = track.Clone()
	if track.ID == "" {
		track.ID = o.layerID(layer.KindAudio)
	}
	track.ApplyDefaults()
	track.Volume = layer.ClampVolume(track.Volume)

	err := o.mutate(ActSetAudio, changeAudio, func(s *project.State) error {
		s.AudioTrack = track
		return nil
	})
	if err == nil {
		o.log.Info().Str(xlog.FieldTrackID, track.ID).Str("title", track.Title).Msg("audio track set")
	}
	return err
}

// UpdateLayer merges a JSON patch into one layer. Structural updates get
// their own undo entry; transient ones (a drag in progress) share one
// entry that is committed by EndGesture or the next structural action.
// The layer id cannot be patched.
func (o *Orchestrator) UpdateLayer(ref layer.Ref, patch json.RawMessage, kind ActionKind) error {
	act, run := ActUpdateLayer(ref.Kind), o.mutate
	if kind == Transient {
		act, run = ActDragLayer(ref.Kind), o.drag
	}

	ch := changeNone
	switch ref.Kind {
	case layer.KindVideo:
		ch = changeVideo
	case layer.KindAudio:
		ch = changeAudio
	}
	return run(act, ch, func(s *project.State) error {
		switch ref.Kind {
		case layer.KindVideo:
			i := s.VideoIndex(ref.ID)
			if i < 0 {
				return project.ErrLayerNotFound
			}
			if err := mergePatch(&s.VideoLayers[i], &s.VideoLayers[i].ID, patch); err != nil {
				return err
			}
			s.VideoLayers[i].Volume = layer.ClampVolume(s.VideoLayers[i].Volume)
			s.VideoLayers[i].ApplyDefaults()
			s.RecomputeDuration()
		case layer.KindImage:
			i := s.ImageIndex(ref.ID)
			if i < 0 {
				return project.ErrLayerNotFound
			}
			return mergePatch(&s.ImageLayers[i], &s.ImageLayers[i].ID, patch)
		case layer.KindText:
			i := s.TextIndex(ref.ID)
			if i < 0 {
				return project.ErrLayerNotFound
			}
			if err := mergePatch(&s.TextLayers[i], &s.TextLayers[i].ID, patch); err != nil {
				return err
			}
			s.TextLayers[i].ApplyDefaults()
		case layer.KindEmoji:
			i := s.EmojiIndex(ref.ID)
			if i < 0 {
				return project.ErrLayerNotFound
			}
			if err := mergePatch(&s.EmojiLayers[i], &s.EmojiLayers[i].ID, patch); err != nil {
				return err
			}
			s.EmojiLayers[i].ApplyDefaults()
		case layer.KindAudio:
			if s.AudioTrack == nil || (ref.ID != "" && s.AudioTrack.ID != ref.ID) {
				return project.ErrLayerNotFound
			}
			if err := mergePatch(s.AudioTrack, &s.AudioTrack.ID, patch); err != nil {
				return err
			}
			s.AudioTrack.Volume = layer.ClampVolume(s.AudioTrack.Volume)
			s.AudioTrack.ApplyDefaults()
		default:
			return fmt.Errorf("%w: kind %q", ErrInvalidPatch, ref.Kind)
		}
		return nil
	})
}

func mergePatch[T any](dst *T, id *string, patch json.RawMessage) error {
	keep := *id
	if err := json.Unmarshal(patch, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	*id = keep
	return nil
}

// DeleteLayer removes a layer. Deleting the selected layer clears the
// selection.
func (o *Orchestrator) DeleteLayer(ref layer.Ref) error {
	ch := changeNone
	switch ref.Kind {
	case layer.KindVideo:
		ch = changeVideo
	case layer.KindAudio:
		ch = changeAudio
	}
	if err := o.mutate(ActDeleteLayer(ref.Kind), ch, func(s *project.State) error {
		return s.Remove(ref)
	}); err != nil {
		return err
	}

	o.mu.Lock()
	if o.selected.ID == ref.ID {
		o.selected = layer.Ref{}
	}
	o.mu.Unlock()
	o.log.Debug().Str(xlog.FieldLayerKind, string(ref.Kind)).Str(xlog.FieldLayerID, ref.ID).Msg("layer deleted")
	return nil
}

// SelectLayer sets the selection; the zero Ref clears it.
func (o *Orchestrator) SelectLayer(ref layer.Ref) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !ref.IsZero() && !o.state.Has(ref) {
		return project.ErrLayerNotFound
	}
	o.selected = ref
	return nil
}

func (o *Orchestrator) selectRef(ref layer.Ref) {
	o.mu.Lock()
	o.selected = ref
	o.mu.Unlock()
}

func (o *Orchestrator) Selection() layer.Ref {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

func applyFilter(s *project.State, f layer.VideoFilter) {
	s.GlobalFilter = f
	for i := range s.VideoLayers {
		clipFilter := f
		s.VideoLayers[i].Filter = &clipFilter
	}
}

// SetFilter sets the global filter and copies it onto every video clip.
func (o *Orchestrator) SetFilter(f layer.VideoFilter) error {
	return o.mutate(ActChangeFilter, changeNone, func(s *project.State) error {
		applyFilter(s, f)
		return nil
	})
}

// PreviewFilter is SetFilter while a slider is still moving.
func (o *Orchestrator) PreviewFilter(f layer.VideoFilter) error {
	return o.drag(ActPreviewFilter, changeNone, func(s *project.State) error {
		applyFilter(s, f)
		return nil
	})
}

// SetDuration adopts a duration reported by the player. With video on the
// timeline the summed clip length wins and other values are ignored.
func (o *Orchestrator) SetDuration(d float64) error {
	return o.mutate(ActSetDuration, changeDuration, func(s *project.State) error {
		if d <= 0 || d == s.Duration {
			return errNoop
		}
		if len(s.VideoLayers) > 0 && d != s.VideoTotal() {
			return errNoop
		}
		s.Duration = d
		s.ClipEnd = d
		s.ClipStart = min(s.ClipStart, d)
		return nil
	})
}

// SetClipRange sets the exported range, clamped to the timeline.
func (o *Orchestrator) SetClipRange(start, end float64) error {
	return o.mutate(ActSetClipRange, changeNone, func(s *project.State) error {
		start, end := s.ClampTime(start), s.ClampTime(end)
		if start > end {
			return fmt.Errorf("%w: %.2f > %.2f", ErrInvalidRange, start, end)
		}
		s.ClipStart, s.ClipEnd = start, end
		return nil
	})
}

// SetTranscript stores a transcription result, replacing the transcript
// with the same id.
func (o *Orchestrator) SetTranscript(t models.Transcript) error {
	t = t.Clone()
	return o.mutate(ActSetTranscript, changeNone, func(s *project.State) error {
		for i := range s.Transcripts {
			if s.Transcripts[i].ID == t.ID {
				s.Transcripts[i] = t
				return nil
			}
		}
		s.Transcripts = append(s.Transcripts, t)
		return nil
	})
}

// ApplyTemplate inserts a template's layers under fresh ids and applies
// its filter, as one undoable action.
func (o *Orchestrator) ApplyTemplate(t templates.Template) error {
	err := o.mutate(ActApplyTemplate, changeNone, func(s *project.State) error {
		texts, emojis := t.Layers(s.Duration)
		for _, l := range texts {
			l.ID = o.layerID(layer.KindText)
			s.TextLayers = append(s.TextLayers, l)
		}
		for _, l := range emojis {
			l.ID = o.layerID(layer.KindEmoji)
			s.EmojiLayers = append(s.EmojiLayers, l)
		}
		if f := t.VideoFilter(); f != nil {
			applyFilter(s, *f)
		}
		return nil
	})
	if err == nil {
		o.log.Info().Str("template", t.ID).Msg("template applied")
	}
	return err
}

// Playback intents. None of them touch project state.

func (o *Orchestrator) Seek(t float64) float64 { return o.bridge.Seek(t) }
func (o *Orchestrator) ScrubStart()            { o.bridge.StartScrub() }
func (o *Orchestrator) ScrubEnd()              { o.bridge.EndScrub() }
func (o *Orchestrator) SetLoop(loop bool)      { o.bridge.SetLoop(loop) }
func (o *Orchestrator) SetSpeed(speed float64) { o.bridge.SetSpeed(speed) }

// TogglePlay starts or stops playback. Starting resumes the mixer first.
func (o *Orchestrator) TogglePlay(ctx context.Context) {
	if o.bridge.State() != playback.StatePlaying {
		if err := o.bridge.ResumeAudio(ctx); err != nil && !errors.Is(err, playback.ErrNoMixer) {
			o.log.Warn().Err(err).Msg("audio resume failed")
		}
	}
	o.bridge.TogglePlay()
}

// OnVideoElementReady attaches the mixer once the rendering surface has a
// playable video element.
func (o *Orchestrator) OnVideoElementReady(ctx context.Context, m playback.Mixer) error {
	if err := o.bridge.AttachMixer(ctx, m); err != nil {
		o.log.Error().Err(err).Msg("attach mixer")
		return err
	}
	return nil
}

func (o *Orchestrator) SetVideoVolume(v float64) error {
	v = layer.ClampVolume(v)
	if err := o.mutate(ActSetVideoVolume, changeNone, func(s *project.State) error {
		if s.VideoVolume == v {
			return errNoop
		}
		s.VideoVolume = v
		return nil
	}); err != nil {
		return err
	}
	o.bridge.SetVideoVolume(v)
	return nil
}

// ToggleVideoMute mutes the source video for playback only; the mute is
// not part of the project.
func (o *Orchestrator) ToggleVideoMute() bool { return o.bridge.ToggleVideoMute() }

func (o *Orchestrator) SetTrackVolume(v float64) error {
	v = layer.ClampVolume(v)
	if err := o.mutate(ActSetTrackVolume, changeNone, func(s *project.State) error {
		if s.AudioTrack == nil {
			return project.ErrLayerNotFound
		}
		if s.AudioTrack.Volume == v {
			return errNoop
		}
		s.AudioTrack.Volume = v
		return nil
	}); err != nil {
		return err
	}
	o.bridge.SetTrackVolume(v)
	return nil
}

func (o *Orchestrator) ToggleTrackMute() (bool, error) {
	var muted bool
	if err := o.mutate(ActToggleTrackMute, changeNone, func(s *project.State) error {
		if s.AudioTrack == nil {
			return project.ErrLayerNotFound
		}
		s.AudioTrack.Muted = !s.AudioTrack.Muted
		muted = s.AudioTrack.Muted
		return nil
	}); err != nil {
		return false, err
	}
	o.bridge.SetTrackMuted(muted)
	return muted, nil
}
