package editor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reel-editor/internal/layer"
	"reel-editor/internal/models"
	"reel-editor/internal/playback"
	"reel-editor/internal/project"
	"reel-editor/internal/templates"
)

type fakeStore struct {
	mu       sync.Mutex
	doc      models.ProjectDocument
	saves    []models.ProjectJSON
	statuses []models.Status
	fail     error
}

func (f *fakeStore) Load(_ context.Context, id uuid.UUID) (*models.ProjectDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != f.doc.ID {
		return nil, errors.New("not found")
	}
	d := f.doc
	return &d, nil
}

func (f *fakeStore) Save(_ context.Context, _ uuid.UUID, pj models.ProjectJSON, status *models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.saves = append(f.saves, pj)
	f.doc.ProjectJSON = pj
	if status != nil {
		f.doc.Status = *status
	}
	return nil
}

func (f *fakeStore) UpdateStatus(_ context.Context, _ uuid.UUID, status models.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	f.doc.Status = status
	return nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saves)
}

func (f *fakeStore) lastSave() models.ProjectJSON {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[len(f.saves)-1]
}

func newEditor(t *testing.T, debounce time.Duration) (*Orchestrator, *fakeStore) {
	t.Helper()
	store := &fakeStore{doc: models.ProjectDocument{
		ID:          uuid.New(),
		Title:       "My reel",
		Status:      models.StatusDraft,
		ProjectJSON: models.ProjectJSON{Tracks: []models.Track{}},
	}}
	nop := zerolog.Nop()
	o, err := Open(context.Background(), store, store.doc.ID, Options{Debounce: debounce, Logger: &nop})
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close(context.Background()) })
	return o, store
}

func video(d float64) layer.VideoLayer {
	return layer.VideoLayer{Src: "clip.mp4", Duration: d, Volume: 100}
}

func TestOpenUnknownProject(t *testing.T) {
	store := &fakeStore{doc: models.ProjectDocument{ID: uuid.New()}}
	_, err := Open(context.Background(), store, uuid.New(), Options{})
	assert.Error(t, err)
}

func TestAddVideoKeepsClipsContiguous(t *testing.T) {
	o, _ := newEditor(t, time.Hour)

	var ids []string
	for _, d := range []float64{5, 8, 10} {
		id, err := o.AddVideo(video(d))
		require.NoError(t, err)
		ids = append(ids, id)
	}

	s := o.State()
	require.Len(t, s.VideoLayers, 3)
	spans := [][2]float64{}
	for _, v := range s.VideoLayers {
		spans = append(spans, [2]float64{v.Start, v.End})
	}
	assert.Equal(t, [][2]float64{{0, 5}, {5, 13}, {13, 23}}, spans)
	assert.Equal(t, 23.0, s.Duration)
	assert.Equal(t, 23.0, s.ClipEnd)
	assert.Equal(t, 23.0, o.Bridge().Duration())

	require.NoError(t, o.DeleteLayer(layer.Ref{Kind: layer.KindVideo, ID: ids[0]}))
	s = o.State()
	assert.Equal(t, 0.0, s.VideoLayers[0].Start)
	assert.Equal(t, 8.0, s.VideoLayers[1].Start)
	assert.Equal(t, 18.0, s.Duration)
}

func TestUndoSkipsTransientScrubs(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	_, err := o.AddVideo(video(20))
	require.NoError(t, err)

	_, err = o.AddText(layer.TextLayer{Content: "hello"})
	require.NoError(t, err)

	o.ScrubStart()
	o.Seek(4)
	o.Seek(9)
	o.ScrubEnd()

	require.True(t, o.Undo())
	s := o.State()
	assert.Empty(t, s.TextLayers, "undo returns to the state before the text layer")
	require.Len(t, s.VideoLayers, 1)
	assert.Equal(t, 9.0, o.Bridge().CurrentTime(), "the play-head is not part of history")

	require.True(t, o.Redo())
	assert.Len(t, o.State().TextLayers, 1)
}

func TestHistoryPushPrecedesSave(t *testing.T) {
	o, store := newEditor(t, 10*time.Millisecond)
	_, err := o.AddText(layer.TextLayer{Content: "a"})
	require.NoError(t, err)

	assert.True(t, o.CanUndo(), "snapshot exists before the debounced save lands")
	assert.Zero(t, store.saveCount())
	require.Eventually(t, func() bool { return store.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, store.lastSave().Tracks, 1)
}

func TestDeleteSelectedClearsSelection(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	id, err := o.AddEmoji(layer.EmojiLayer{Content: "🔥"})
	require.NoError(t, err)
	ref := layer.Ref{Kind: layer.KindEmoji, ID: id}
	assert.Equal(t, ref, o.Selection())

	require.NoError(t, o.DeleteLayer(ref))
	assert.True(t, o.Selection().IsZero())
	assert.ErrorIs(t, o.DeleteLayer(ref), project.ErrLayerNotFound)
}

func TestUndoClearsSelectionOfVanishedLayer(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	_, err := o.AddText(layer.TextLayer{Content: "x"})
	require.NoError(t, err)
	require.False(t, o.Selection().IsZero())
	require.True(t, o.Undo())
	assert.True(t, o.Selection().IsZero())
}

func TestUpdateLayerStructuralAndDrag(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	id, err := o.AddText(layer.TextLayer{Content: "x"})
	require.NoError(t, err)
	ref := layer.Ref{Kind: layer.KindText, ID: id}
	base := o.history.UndoCount()

	for _, x := range []float64{10, 20, 30} {
		patch := json.RawMessage(`{"position":{"x":` + jsonFloat(x) + `,"y":50}}`)
		require.NoError(t, o.UpdateLayer(ref, patch, Transient))
	}
	assert.Equal(t, base, o.history.UndoCount(), "live edits do not push")
	o.EndGesture()
	assert.Equal(t, base+1, o.history.UndoCount(), "the gesture is one entry")

	require.True(t, o.Undo())
	assert.Equal(t, layer.DefaultPosition, o.State().TextLayers[0].Position)

	require.NoError(t, o.UpdateLayer(ref, json.RawMessage(`{"content":"y","id":"hijack"}`), Structural))
	s := o.State()
	assert.Equal(t, "y", s.TextLayers[0].Content)
	assert.Equal(t, id, s.TextLayers[0].ID, "id is not patchable")

	err = o.UpdateLayer(ref, json.RawMessage(`{"content":`), Structural)
	assert.ErrorIs(t, err, ErrInvalidPatch)
	assert.Equal(t, "y", o.State().TextLayers[0].Content)
}

func jsonFloat(f float64) string {
	b, _ := json.Marshal(f)
	return string(b)
}

func TestUpdateVideoDurationRelayouts(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	a, _ := o.AddVideo(video(5))
	_, _ = o.AddVideo(video(5))
	require.NoError(t, o.UpdateLayer(layer.Ref{Kind: layer.KindVideo, ID: a}, json.RawMessage(`{"duration":2}`), Structural))
	s := o.State()
	assert.Equal(t, 2.0, s.VideoLayers[1].Start)
	assert.Equal(t, 7.0, s.Duration)
}

func TestApplyTemplateAssignsFreshIDs(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	_, err := o.AddVideo(video(10))
	require.NoError(t, err)

	catalog, err := templates.Load("")
	require.NoError(t, err)
	party, err := catalog.Get("party")
	require.NoError(t, err)

	require.NoError(t, o.ApplyTemplate(party))
	require.NoError(t, o.ApplyTemplate(party))

	s := o.State()
	require.Len(t, s.TextLayers, 2)
	require.Len(t, s.EmojiLayers, 4)
	seen := map[string]bool{}
	for _, l := range s.TextLayers {
		assert.False(t, seen[l.ID])
		seen[l.ID] = true
	}
	for _, l := range s.EmojiLayers {
		assert.False(t, seen[l.ID])
		seen[l.ID] = true
	}
	assert.Equal(t, 130.0, s.GlobalFilter.Saturation)
	require.NotNil(t, s.VideoLayers[0].Filter)
	assert.Equal(t, s.GlobalFilter, *s.VideoLayers[0].Filter)

	require.True(t, o.Undo())
	assert.Len(t, o.State().TextLayers, 1, "a template is one undo step")
}

func requireRoundTrip(t *testing.T, s *project.State) {
	t.Helper()
	if diff := cmp.Diff(s, project.Load(project.Serialize(s))); diff != "" {
		t.Fatalf("state does not survive save and load (-state +reloaded):\n%s", diff)
	}
}

func TestEditedStateSurvivesSaveAndLoad(t *testing.T) {
	catalog, err := templates.Load("")
	require.NoError(t, err)

	for _, tmpl := range catalog.List("") {
		t.Run(tmpl.ID, func(t *testing.T) {
			o, _ := newEditor(t, time.Hour)
			_, err := o.AddVideo(video(8))
			require.NoError(t, err)
			require.NoError(t, o.ApplyTemplate(tmpl))
			requireRoundTrip(t, o.State())
		})
	}

	t.Run("intents", func(t *testing.T) {
		o, _ := newEditor(t, time.Hour)
		v, err := o.AddVideo(layer.VideoLayer{Src: "a.mp4", Duration: 6, Volume: 140})
		require.NoError(t, err)
		text, err := o.AddText(layer.TextLayer{
			Content: "partial",
			Style:   layer.TextStyle{FontFamily: "Arial", FontSize: 20, Color: "#000"},
		})
		require.NoError(t, err)
		_, err = o.AddTextFromTranscript(layer.TextLayer{Content: "said", Start: 1, End: 2, Animation: &layer.TextAnimation{}})
		require.NoError(t, err)
		_, err = o.AddEmoji(layer.EmojiLayer{Type: "confetti", Content: "x"})
		require.NoError(t, err)
		_, err = o.AddImage(layer.ImageLayer{Src: "logo.png"})
		require.NoError(t, err)
		require.NoError(t, o.SetAudio(&layer.AudioTrack{URL: "song.mp3", Volume: 33.333333333}))
		require.NoError(t, o.SetFilter(layer.VideoFilter{Brightness: 120, Contrast: 90, Saturation: 0}))
		require.NoError(t, o.SetVideoVolume(12.3456789))

		videoRef := layer.Ref{Kind: layer.KindVideo, ID: v}
		require.NoError(t, o.UpdateLayer(videoRef, json.RawMessage(`{"volume":150,"fileName":""}`), Structural))
		textRef := layer.Ref{Kind: layer.KindText, ID: text}
		require.NoError(t, o.UpdateLayer(textRef, json.RawMessage(`{"style":{"fontWeight":0,"lineHeight":0}}`), Structural))
		require.NoError(t, o.UpdateLayer(textRef, json.RawMessage(`{"position":{"x":12.5,"y":70}}`), Transient))
		o.EndGesture()
		audio := layer.Ref{Kind: layer.KindAudio, ID: o.State().AudioTrack.ID}
		require.NoError(t, o.UpdateLayer(audio, json.RawMessage(`{"volume":-5,"title":""}`), Structural))

		s := o.State()
		assert.Equal(t, "Arial", s.TextLayers[0].Style.FontFamily)
		assert.Equal(t, layer.FontWeightBold, s.TextLayers[0].Style.FontWeight)
		assert.Equal(t, 1.2, s.TextLayers[0].Style.LineHeight)
		assert.Nil(t, s.TextLayers[1].Animation, "an animation without a type is dropped")
		requireRoundTrip(t, s)

		require.True(t, o.Undo())
		requireRoundTrip(t, o.State())
	})
}

func TestUpdateLayerClampsVideoVolume(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	id, err := o.AddVideo(video(4))
	require.NoError(t, err)
	ref := layer.Ref{Kind: layer.KindVideo, ID: id}

	require.NoError(t, o.UpdateLayer(ref, json.RawMessage(`{"volume":150}`), Structural))
	assert.Equal(t, 100.0, o.State().VideoLayers[0].Volume)
	require.NoError(t, o.UpdateLayer(ref, json.RawMessage(`{"volume":-20}`), Structural))
	assert.Zero(t, o.State().VideoLayers[0].Volume)
}

func TestConcurrentIntentsPersistLatestState(t *testing.T) {
	o, store := newEditor(t, time.Millisecond)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				_, err := o.AddText(layer.TextLayer{Content: "caption"})
				assert.NoError(t, err)
				if j%5 == 0 {
					assert.NoError(t, o.Save(ctx))
				}
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return !o.SaveStatus().PendingChanges }, 2*time.Second, 5*time.Millisecond)
	require.Len(t, o.State().TextLayers, 200)
	if diff := cmp.Diff(project.Serialize(o.State()), store.lastSave()); diff != "" {
		t.Fatalf("stored document is not the latest state (-latest +stored):\n%s", diff)
	}
}

func TestBeforeUnloadFlushesPendingChanges(t *testing.T) {
	o, store := newEditor(t, time.Hour)
	warn, err := o.BeforeUnload(context.Background())
	require.NoError(t, err)
	assert.False(t, warn, "nothing to save")

	_, err = o.AddText(layer.TextLayer{Content: "unsaved"})
	require.NoError(t, err)
	assert.True(t, o.SaveStatus().PendingChanges)

	warn, err = o.BeforeUnload(context.Background())
	require.NoError(t, err)
	assert.True(t, warn)
	require.Equal(t, 1, store.saveCount(), "saved before the hook returned")
	assert.False(t, o.SaveStatus().PendingChanges)
}

func TestCloseFlushes(t *testing.T) {
	o, store := newEditor(t, time.Hour)
	_, err := o.AddVideo(video(3))
	require.NoError(t, err)

	require.NoError(t, o.Close(context.Background()))
	require.Equal(t, 1, store.saveCount())
	assert.Len(t, project.Load(store.lastSave()).VideoLayers, 1)

	_, err = o.AddVideo(video(3))
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, o.Undo())
}

func TestSaveFailureKeepsPending(t *testing.T) {
	var reported error
	store := &fakeStore{doc: models.ProjectDocument{ID: uuid.New()}, fail: errors.New("offline")}
	nop := zerolog.Nop()
	o, err := Open(context.Background(), store, store.doc.ID, Options{
		Debounce:    time.Hour,
		Logger:      &nop,
		OnSaveError: func(err error) { reported = err },
	})
	require.NoError(t, err)

	require.NoError(t, o.SetClipRange(1, 2))
	assert.Error(t, o.Save(context.Background()))
	assert.True(t, o.SaveStatus().PendingChanges)
	assert.EqualError(t, reported, "offline")

	store.mu.Lock()
	store.fail = nil
	store.mu.Unlock()
	require.NoError(t, o.Close(context.Background()))
	assert.Equal(t, 1, store.saveCount())
}

func TestHandleKey(t *testing.T) {
	o, store := newEditor(t, time.Hour)
	ctx := context.Background()
	_, err := o.AddText(layer.TextLayer{Content: "a"})
	require.NoError(t, err)

	o.SetTextInputFocus(true)
	handled, err := o.HandleKey(ctx, Key{Key: "z", Ctrl: true})
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Len(t, o.State().TextLayers, 1, "typing in a text box never undoes")
	o.SetTextInputFocus(false)

	handled, _ = o.HandleKey(ctx, Key{Key: "z"})
	assert.False(t, handled, "no modifier")

	handled, _ = o.HandleKey(ctx, Key{Key: "z", Meta: true})
	assert.True(t, handled)
	assert.Empty(t, o.State().TextLayers)

	handled, _ = o.HandleKey(ctx, Key{Key: "Z", Ctrl: true, Shift: true})
	assert.True(t, handled)
	assert.Len(t, o.State().TextLayers, 1)

	o.Undo()
	handled, _ = o.HandleKey(ctx, Key{Key: "y", Ctrl: true})
	assert.True(t, handled)
	assert.Len(t, o.State().TextLayers, 1)

	handled, err = o.HandleKey(ctx, Key{Key: "s", Ctrl: true})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, 1, store.saveCount())
}

func TestNextRequiresVideo(t *testing.T) {
	o, store := newEditor(t, time.Hour)
	assert.ErrorIs(t, o.Next(context.Background()), project.ErrNoVideo)

	_, err := o.AddVideo(video(4))
	require.NoError(t, err)
	require.NoError(t, o.Next(context.Background()))
	assert.Equal(t, 1, store.saveCount())
	assert.Empty(t, store.statuses, "already a draft")

	require.NoError(t, o.Publish(context.Background()))
	assert.Equal(t, []models.Status{models.StatusDone}, store.statuses)
	assert.Equal(t, models.StatusDone, o.ProjectStatus())
}

func TestVolumesReachMixer(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	require.NoError(t, o.SetAudio(&layer.AudioTrack{URL: "song.mp3", Volume: 70}))
	mixer := playback.NewGainMixer()
	require.NoError(t, o.OnVideoElementReady(context.Background(), mixer))

	trackID := o.State().AudioTrack.ID
	g, ok := mixer.TrackGain(trackID)
	require.True(t, ok)
	assert.InDelta(t, 0.7, g, 1e-9)

	require.NoError(t, o.SetVideoVolume(40))
	assert.InDelta(t, 0.4, mixer.VideoGain(), 1e-9)
	assert.Equal(t, 40.0, o.State().VideoVolume)

	muted, err := o.ToggleTrackMute()
	require.NoError(t, err)
	assert.True(t, muted)
	g, _ = mixer.TrackGain(trackID)
	assert.Zero(t, g)
	assert.True(t, o.State().AudioTrack.Muted)

	assert.True(t, o.ToggleVideoMute())
	assert.Zero(t, mixer.VideoGain())
	assert.Equal(t, 40.0, o.State().VideoVolume, "video mute is playback only")

	require.NoError(t, o.SetAudio(nil))
	assert.ErrorIs(t, o.SetTrackVolume(10), project.ErrLayerNotFound)
}

func TestPlayerDurationChangeIsTransient(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	undo := o.history.UndoCount()
	require.NoError(t, o.SetDuration(42))
	assert.Equal(t, 42.0, o.State().Duration)
	assert.Equal(t, 42.0, o.State().ClipEnd)
	assert.Equal(t, undo, o.history.UndoCount())

	_, err := o.AddVideo(video(6))
	require.NoError(t, err)
	require.NoError(t, o.SetDuration(50))
	assert.Equal(t, 6.0, o.State().Duration, "clip total wins while video exists")
}

func TestSetClipRange(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	require.NoError(t, o.SetClipRange(-1, 100))
	s := o.State()
	assert.Equal(t, 0.0, s.ClipStart)
	assert.Equal(t, 30.0, s.ClipEnd)
	assert.ErrorIs(t, o.SetClipRange(10, 5), ErrInvalidRange)
}

func TestDuplicateAndTranscriptText(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	id, err := o.AddTextFromTranscript(layer.TextLayer{Content: "hi there", Start: 2, End: 3.5})
	require.NoError(t, err)
	dup, err := o.DuplicateText(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, dup)

	s := o.State()
	require.Len(t, s.TextLayers, 2)
	assert.Equal(t, 2.0, s.TextLayers[1].Start)
	assert.Equal(t, 55.0, s.TextLayers[1].Position.X)
	assert.Equal(t, layer.Ref{Kind: layer.KindText, ID: dup}, o.Selection())

	require.NoError(t, o.SetTranscript(models.Transcript{ID: "tr", Status: models.TranscriptCompleted}))
	require.NoError(t, o.SetTranscript(models.Transcript{ID: "tr", Language: "en"}))
	require.Len(t, o.State().Transcripts, 1)
	assert.Equal(t, "en", o.State().Transcripts[0].Language)
}

func TestAddImageExtendsDurationWithoutVideo(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	_, err := o.AddImage(layer.ImageLayer{Src: "a.png", Start: 0, End: 45})
	require.NoError(t, err)
	assert.Equal(t, 45.0, o.State().Duration)

	_, err = o.AddImage(layer.ImageLayer{Src: "b.png"})
	require.NoError(t, err)
	s := o.State()
	assert.Equal(t, 45.0, s.ImageLayers[1].End, "missing end runs to the project end")
}

func TestFrame(t *testing.T) {
	o, _ := newEditor(t, time.Hour)
	_, err := o.AddVideo(video(10))
	require.NoError(t, err)
	id, err := o.AddText(layer.TextLayer{Content: "x"})
	require.NoError(t, err)
	o.Seek(3)

	f := o.Frame()
	assert.Equal(t, 3.0, f.CurrentTime)
	assert.Equal(t, 10.0, f.ClipEnd)
	assert.Equal(t, id, f.Selection.ID)
	assert.Len(t, f.TextLayers, 1)
}
