package project

// Relayout places video clips back to back from zero, in slice order, and
// returns the total length. Clip i starts at the summed durations of clips
// 0..i-1.
func (s *State) Relayout() float64 {
	var cursor float64
	for i := range s.VideoLayers {
		clip := &s.VideoLayers[i]
		d := clip.ClipDuration()
		clip.Start = cursor
		clip.End = cursor + d
		clip.Duration = d
		cursor += d
	}
	return cursor
}

// VideoTotal is the summed duration of the video track.
func (s *State) VideoTotal() float64 {
	var total float64
	for _, clip := range s.VideoLayers {
		total += clip.ClipDuration()
	}
	return total
}

// MaxLayerEnd is the latest end over every non-video layer.
func (s *State) MaxLayerEnd() float64 {
	var end float64
	for _, l := range s.ImageLayers {
		end = max(end, l.End)
	}
	for _, l := range s.TextLayers {
		end = max(end, l.End)
	}
	for _, l := range s.EmojiLayers {
		end = max(end, l.End)
	}
	if s.AudioTrack != nil {
		end = max(end, s.AudioTrack.EndAt)
	}
	return end
}

// RecomputeDuration restores the timeline invariants after the video track
// changed: clips are contiguous and the duration equals their sum. Without
// video the duration follows the latest layer end, keeping the current
// value when there is nothing to measure.
func (s *State) RecomputeDuration() {
	if len(s.VideoLayers) > 0 {
		s.Duration = s.Relayout()
	} else if end := s.MaxLayerEnd(); end > 0 {
		s.Duration = end
	}
	s.ClipEnd = s.Duration
	s.ClipStart = clamp(s.ClipStart, 0, s.ClipEnd)
}

// ClampTime bounds t to [0, Duration].
func (s *State) ClampTime(t float64) float64 {
	return clamp(t, 0, s.Duration)
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
