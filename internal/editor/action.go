package editor

import (
	"fmt"

	"reel-editor/internal/layer"
)

// ActionKind decides whether a mutation gets its own undo entry.
type ActionKind int

const (
	// Structural mutations are one user-meaningful edit each and push a
	// history snapshot.
	Structural ActionKind = iota
	// Transient mutations (drags, sliders, player feedback) change state
	// without touching history.
	Transient
)

func (k ActionKind) String() string {
	if k == Structural {
		return "structural"
	}
	return "transient"
}

// Action describes a mutation at its call site.
type Action struct {
	Label string
	Kind  ActionKind
}

func structural(label string) Action { return Action{Label: label, Kind: Structural} }
func transient(label string) Action  { return Action{Label: label, Kind: Transient} }

var (
	ActAddVideo          = structural("Add video clip")
	ActAddImage          = structural("Add image")
	ActAddText           = structural("Add text layer")
	ActAddTranscriptText = structural("Add text from transcript")
	ActDuplicateText     = structural("Duplicate text layer")
	ActAddEmoji          = structural("Add emoji")
	ActSetAudio          = structural("Set audio track")
	ActRemoveAudio       = structural("Remove audio track")
	ActChangeFilter      = structural("Change filter")
	ActApplyTemplate     = structural("Apply template")

	ActPreviewFilter   = transient("Preview filter")
	ActSetClipRange    = transient("Set clip range")
	ActSetDuration     = transient("Set duration")
	ActSetVideoVolume  = transient("Set video volume")
	ActSetTrackVolume  = transient("Set track volume")
	ActToggleTrackMute = transient("Toggle track mute")
	ActSetTranscript   = transient("Update transcript")
)

// ActUpdateLayer is the committed edit of one layer.
func ActUpdateLayer(kind layer.Kind) Action {
	return structural(fmt.Sprintf("Update %s layer", kind))
}

// ActDragLayer is a live edit of one layer, e.g. every frame of a drag.
func ActDragLayer(kind layer.Kind) Action {
	return transient(fmt.Sprintf("Update %s layer", kind))
}

func ActDeleteLayer(kind layer.Kind) Action {
	return structural(fmt.Sprintf("Delete %s layer", kind))
}
