package project

import (
	"encoding/json"
	"fmt"
	"math"

	"reel-editor/internal/layer"
	"reel-editor/internal/models"
)

var defaultTrackIDs = map[models.TrackType]string{
	models.TrackVideo:   "track-video",
	models.TrackAudio:   "track-audio",
	models.TrackOverlay: "track-overlay",
	models.TrackText:    "track-text",
	models.TrackImage:   "track-image",
}

// Decode parses a stored project_json payload.
func Decode(raw []byte) (models.ProjectJSON, error) {
	var pj models.ProjectJSON
	if len(raw) == 0 {
		return pj, nil
	}
	if err := json.Unmarshal(raw, &pj); err != nil {
		return pj, fmt.Errorf("%w: %v", ErrMalformedProject, err)
	}
	return pj, nil
}

// Load builds editor state from a project document. It never rejects a
// document: missing fields take their defaults and video clips are laid
// out contiguously even when the stored ranges overlap.
func Load(pj models.ProjectJSON) *State {
	s := NewState()
	settings := pj.Settings
	if settings == nil {
		settings = &models.Settings{}
	}
	overlayEnd := DefaultDuration
	if settings.Duration > 0 {
		overlayEnd = settings.Duration
	}

	seen := make(map[models.TrackType]bool)
	var audioClip *models.Clip
	for _, track := range pj.Tracks {
		if !track.Type.Known() {
			s.ExtraTracks = append(s.ExtraTracks, track.Clone())
			continue
		}
		// first track of each type is canonical, later ones are kept as-is
		if seen[track.Type] {
			s.ExtraTracks = append(s.ExtraTracks, track.Clone())
			continue
		}
		seen[track.Type] = true
		if track.ID != "" && track.ID != defaultTrackIDs[track.Type] {
			if s.TrackIDs == nil {
				s.TrackIDs = make(map[models.TrackType]string)
			}
			s.TrackIDs[track.Type] = track.ID
		}

		switch track.Type {
		case models.TrackVideo:
			for _, c := range track.Clips {
				s.VideoLayers = append(s.VideoLayers, loadVideo(c))
			}
		case models.TrackAudio:
			if len(track.Clips) > 0 {
				audioClip = &track.Clips[0]
			}
		case models.TrackOverlay:
			for _, c := range track.Clips {
				s.EmojiLayers = append(s.EmojiLayers, loadEmoji(c, overlayEnd))
			}
		case models.TrackText:
			for _, c := range track.Clips {
				s.TextLayers = append(s.TextLayers, loadText(c, overlayEnd))
			}
		case models.TrackImage:
			for _, c := range track.Clips {
				s.ImageLayers = append(s.ImageLayers, loadImage(c, overlayEnd))
			}
		}
	}

	if audioClip != nil {
		s.AudioTrack = loadAudio(*audioClip, pj.Audio)
	}

	switch {
	case len(settings.GlobalFilter) > 0:
		s.GlobalFilter = layer.NormalizeFilter(settings.GlobalFilter)
	case len(s.VideoLayers) > 0 && s.VideoLayers[0].Filter != nil:
		s.GlobalFilter = *s.VideoLayers[0].Filter
	}

	for _, t := range pj.Transcripts {
		s.Transcripts = append(s.Transcripts, t.Clone())
	}

	if len(s.VideoLayers) > 0 {
		s.Duration = s.Relayout()
	} else if settings.Duration > 0 {
		s.Duration = settings.Duration
	} else if end := s.MaxLayerEnd(); end > 0 {
		s.Duration = end
	}
	s.ClipEnd = s.Duration
	if settings.ClipStart != nil {
		s.ClipStart = *settings.ClipStart
	}
	if settings.ClipEnd != nil {
		s.ClipEnd = *settings.ClipEnd
	}
	if settings.FPS > 0 {
		s.FPS = settings.FPS
	}
	if settings.Resolution.Width > 0 && settings.Resolution.Height > 0 {
		s.Resolution = settings.Resolution
	}

	switch {
	case pj.Audio != nil && pj.Audio.VideoVolume != nil:
		s.VideoVolume = fromUnit(*pj.Audio.VideoVolume)
	case settings.VideoVolume != nil:
		s.VideoVolume = normalizeVolume(*settings.VideoVolume)
	}

	if len(pj.PublishSettings) > 0 {
		s.PublishSettings = append(json.RawMessage(nil), pj.PublishSettings...)
	}
	return s
}

func loadVideo(c models.Clip) layer.VideoLayer {
	l := layer.VideoLayer{
		ID:       c.ID,
		Src:      c.Src,
		FileName: c.FileName,
		Start:    deref(c.Start, 0),
		Duration: deref(c.Duration, 0),
		Volume:   layer.DefaultVolume,
		Position: derefPosition(c.Position),
		Scale:    deref(c.Scale, 1),
		Rotation: deref(c.Rotation, 0),
	}
	l.ApplyDefaults()
	l.End = deref(c.End, l.Start+l.Duration)
	if c.Volume != nil {
		l.Volume = fromUnit(*c.Volume)
	}
	if len(c.Filter) > 0 {
		f := layer.NormalizeFilter(c.Filter)
		l.Filter = &f
	}
	return l
}

func loadImage(c models.Clip, defaultEnd float64) layer.ImageLayer {
	l := layer.ImageLayer{
		ID:       c.ID,
		Src:      c.Src,
		FileName: c.FileName,
		Start:    deref(c.Start, 0),
		End:      deref(c.End, defaultEnd),
		Position: derefPosition(c.Position),
		Scale:    deref(c.Scale, 1),
		Rotation: deref(c.Rotation, 0),
	}
	if len(c.Filter) > 0 {
		f := layer.NormalizeFilter(c.Filter)
		l.Filter = &f
	}
	return l
}

func loadText(c models.Clip, defaultEnd float64) layer.TextLayer {
	return layer.TextLayer{
		ID:        c.ID,
		Content:   c.Content,
		Start:     deref(c.Start, 0),
		End:       deref(c.End, defaultEnd),
		Position:  derefPosition(c.Position),
		Scale:     deref(c.Scale, 1),
		Rotation:  deref(c.Rotation, 0),
		Style:     layer.NormalizeTextStyle(c.Style),
		Animation: layer.NormalizeAnimation(c.Animation),
	}
}

func loadEmoji(c models.Clip, defaultEnd float64) layer.EmojiLayer {
	l := layer.EmojiLayer{
		ID:       c.ID,
		Type:     layer.EmojiType(c.Type),
		Content:  c.Content,
		Start:    deref(c.Start, 0),
		End:      deref(c.End, defaultEnd),
		Position: derefPosition(c.Position),
		Scale:    deref(c.Scale, 1),
		Rotation: deref(c.Rotation, 0),
	}
	l.ApplyDefaults()
	return l
}

// loadAudio resolves the track volume from, in order: the audio block entry
// for this track, the clip's own volume, the default of 100.
func loadAudio(c models.Clip, audio *models.AudioState) *layer.AudioTrack {
	a := &layer.AudioTrack{
		ID:           c.ID,
		URL:          c.Src,
		SourceType:   layer.SourceType(c.SourceType),
		VideoID:      c.VideoID,
		Title:        c.Title,
		Artist:       c.Artist,
		ThumbnailURL: c.ThumbnailURL,
		StartAt:      deref(c.Start, 0),
		Duration:     deref(c.Duration, 0),
		Volume:       layer.DefaultVolume,
		Muted:        c.Muted,
		Effects:      layer.NormalizeEffects(c.Effects),
	}
	a.EndAt = deref(c.End, a.StartAt+a.Duration)
	a.ApplyDefaults()

	if audio != nil {
		if tv, ok := audio.Tracks[c.ID]; ok && tv.Volume != nil {
			a.Volume = fromUnit(*tv.Volume)
			return a
		}
	}
	if c.Volume != nil {
		a.Volume = fromUnit(*c.Volume)
	}
	return a
}

// Serialize writes s as a project_json document. Empty tracks are omitted.
func Serialize(s *State) models.ProjectJSON {
	pj := models.ProjectJSON{Tracks: []models.Track{}}

	if len(s.VideoLayers) > 0 {
		clips := make([]models.Clip, 0, len(s.VideoLayers))
		for _, l := range s.VideoLayers {
			clips = append(clips, models.Clip{
				ID:       l.ID,
				Type:     string(layer.KindVideo),
				Src:      l.Src,
				FileName: l.FileName,
				Start:    models.Float(l.Start),
				End:      models.Float(l.End),
				Duration: models.Float(l.Duration),
				Volume:   models.Float(toUnit(l.Volume)),
				Position: position(l.Position),
				Scale:    models.Float(l.Scale),
				Rotation: models.Float(l.Rotation),
				Filter:   encodeRaw(l.Filter),
			})
		}
		pj.Tracks = append(pj.Tracks, s.track(models.TrackVideo, clips))
	}

	if a := s.AudioTrack; a != nil {
		var effects json.RawMessage
		if a.Effects != nil {
			effects = encodeRaw(a.Effects)
		}
		pj.Tracks = append(pj.Tracks, s.track(models.TrackAudio, []models.Clip{{
			ID:           a.ID,
			Type:         string(layer.KindAudio),
			Src:          a.URL,
			SourceType:   string(a.SourceType),
			VideoID:      a.VideoID,
			Title:        a.Title,
			Artist:       a.Artist,
			ThumbnailURL: a.ThumbnailURL,
			Start:        models.Float(a.StartAt),
			End:          models.Float(a.EndAt),
			Duration:     models.Float(a.Duration),
			Volume:       models.Float(toUnit(a.Volume)),
			Muted:        a.Muted,
			Effects:      effects,
		}}))
	}

	if len(s.EmojiLayers) > 0 {
		clips := make([]models.Clip, 0, len(s.EmojiLayers))
		for _, l := range s.EmojiLayers {
			clips = append(clips, models.Clip{
				ID:       l.ID,
				Type:     string(l.Type),
				Content:  l.Content,
				Start:    models.Float(l.Start),
				End:      models.Float(l.End),
				Position: position(l.Position),
				Scale:    models.Float(l.Scale),
				Rotation: models.Float(l.Rotation),
			})
		}
		pj.Tracks = append(pj.Tracks, s.track(models.TrackOverlay, clips))
	}

	if len(s.TextLayers) > 0 {
		clips := make([]models.Clip, 0, len(s.TextLayers))
		for _, l := range s.TextLayers {
			var anim json.RawMessage
			if l.Animation != nil {
				anim = encodeRaw(l.Animation)
			}
			clips = append(clips, models.Clip{
				ID:        l.ID,
				Type:      string(layer.KindText),
				Content:   l.Content,
				Start:     models.Float(l.Start),
				End:       models.Float(l.End),
				Position:  position(l.Position),
				Scale:     models.Float(l.Scale),
				Rotation:  models.Float(l.Rotation),
				Style:     encodeRaw(l.Style),
				Animation: anim,
			})
		}
		pj.Tracks = append(pj.Tracks, s.track(models.TrackText, clips))
	}

	if len(s.ImageLayers) > 0 {
		clips := make([]models.Clip, 0, len(s.ImageLayers))
		for _, l := range s.ImageLayers {
			clips = append(clips, models.Clip{
				ID:       l.ID,
				Type:     string(layer.KindImage),
				Src:      l.Src,
				FileName: l.FileName,
				Start:    models.Float(l.Start),
				End:      models.Float(l.End),
				Position: position(l.Position),
				Scale:    models.Float(l.Scale),
				Rotation: models.Float(l.Rotation),
				Filter:   encodeRaw(l.Filter),
			})
		}
		pj.Tracks = append(pj.Tracks, s.track(models.TrackImage, clips))
	}

	for _, t := range s.ExtraTracks {
		pj.Tracks = append(pj.Tracks, t.Clone())
	}

	pj.Settings = &models.Settings{
		Duration:     s.Duration,
		ClipStart:    models.Float(s.ClipStart),
		ClipEnd:      models.Float(s.ClipEnd),
		FPS:          s.FPS,
		Resolution:   s.Resolution,
		VideoVolume:  models.Float(s.VideoVolume),
		GlobalFilter: encodeRaw(s.GlobalFilter),
	}

	pj.Audio = &models.AudioState{
		VideoVolume: models.Float(toUnit(s.VideoVolume)),
		Tracks:      map[string]models.TrackVolume{},
	}
	if s.AudioTrack != nil {
		pj.Audio.Tracks[s.AudioTrack.ID] = models.TrackVolume{Volume: models.Float(toUnit(s.AudioTrack.Volume))}
	}

	for _, t := range s.Transcripts {
		pj.Transcripts = append(pj.Transcripts, t.Clone())
	}
	if len(s.PublishSettings) > 0 {
		pj.PublishSettings = append(json.RawMessage(nil), s.PublishSettings...)
	}
	return pj
}

func (s *State) track(t models.TrackType, clips []models.Clip) models.Track {
	id := defaultTrackIDs[t]
	if custom, ok := s.TrackIDs[t]; ok {
		id = custom
	}
	return models.Track{ID: id, Type: t, Clips: clips}
}

// volumePrecision keeps scale conversion idempotent: x/100*100 is not
// always x in floating point.
const volumePrecision = 1e6

func toUnit(v float64) float64 {
	return math.Round(normalizeVolume(v)/100*volumePrecision) / volumePrecision
}

func fromUnit(v float64) float64 {
	return normalizeVolume(v * 100)
}

func normalizeVolume(v float64) float64 {
	return math.Round(layer.ClampVolume(v)*volumePrecision) / volumePrecision
}

func deref(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func derefPosition(p *models.Position) layer.Position {
	if p == nil {
		return layer.DefaultPosition
	}
	return *p
}

func position(p layer.Position) *models.Position {
	return &p
}

func encodeRaw(v any) json.RawMessage {
	switch x := v.(type) {
	case *layer.VideoFilter:
		if x == nil {
			return nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
