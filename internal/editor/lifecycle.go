package editor

import (
	"context"
	"errors"
	"strings"

	"reel-editor/internal/models"
	"reel-editor/internal/project"
)

// Save writes the current document now, bypassing the debounce window.
func (o *Orchestrator) Save(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	wait := o.autosave.Submit(project.Serialize(o.state))
	o.mu.Unlock()

	if err := wait(ctx); err != nil {
		o.log.Error().Err(err).Msg("save failed")
		return err
	}
	o.log.Info().Msg("project saved")
	return nil
}

// SaveDraft saves and marks the project as a draft.
func (o *Orchestrator) SaveDraft(ctx context.Context) error {
	if err := o.Save(ctx); err != nil {
		return err
	}
	return o.setStatus(ctx, models.StatusDraft)
}

// Next is the hand-off to the publish step: the project needs at least one
// video clip and is saved as a draft first.
func (o *Orchestrator) Next(ctx context.Context) error {
	if err := o.requireVideo(); err != nil {
		return err
	}
	return o.SaveDraft(ctx)
}

// Publish saves the project and moves it to its terminal status.
func (o *Orchestrator) Publish(ctx context.Context) error {
	if err := o.requireVideo(); err != nil {
		return err
	}
	if err := o.Save(ctx); err != nil {
		return err
	}
	return o.setStatus(ctx, models.StatusDone)
}

func (o *Orchestrator) requireVideo() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.state.VideoLayers) == 0 {
		return project.ErrNoVideo
	}
	return nil
}

// setStatus is a partial update; the document is not resent.
func (o *Orchestrator) setStatus(ctx context.Context, status models.Status) error {
	o.mu.Lock()
	current := o.status
	o.mu.Unlock()
	if current == status {
		return nil
	}
	if err := o.store.UpdateStatus(ctx, o.id, status); err != nil {
		return err
	}
	o.mu.Lock()
	o.status = status
	o.mu.Unlock()
	o.log.Info().Str("status", string(status)).Msg("project status changed")
	return nil
}

// Key is a keyboard event. Ctrl and Meta are interchangeable.
type Key struct {
	Key   string
	Ctrl  bool
	Meta  bool
	Shift bool
}

// SetTextInputFocus records whether a text input owns the keyboard.
func (o *Orchestrator) SetTextInputFocus(focused bool) {
	o.mu.Lock()
	o.textFocus = focused
	o.mu.Unlock()
}

// HandleKey runs the shortcut bound to k: mod+z undo, mod+shift+z or mod+y
// redo, mod+s save. Nothing fires while a text input has focus. handled
// tells the host to suppress the browser default.
func (o *Orchestrator) HandleKey(ctx context.Context, k Key) (handled bool, err error) {
	o.mu.Lock()
	focused := o.textFocus
	o.mu.Unlock()
	if focused || !(k.Ctrl || k.Meta) {
		return false, nil
	}

	switch strings.ToLower(k.Key) {
	case "z":
		if k.Shift {
			o.Redo()
		} else {
			o.Undo()
		}
		return true, nil
	case "y":
		o.Redo()
		return true, nil
	case "s":
		return true, o.Save(ctx)
	}
	return false, nil
}

// BeforeUnload is the unload hook. With unsaved changes it writes them
// before returning and asks the host to warn the user.
func (o *Orchestrator) BeforeUnload(ctx context.Context) (warn bool, err error) {
	if !o.autosave.PendingChanges() {
		return false, nil
	}
	o.mu.Lock()
	wait := o.autosave.Submit(project.Serialize(o.state))
	o.mu.Unlock()
	return true, wait(ctx)
}

// Close dismantles the session: pending changes are written, event
// subscriptions dropped, and the autosave pipeline and bridge closed.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.commitGestureLocked()
	unsubs := o.unsubs
	o.unsubs = nil
	var wait func(context.Context) error
	if o.autosave.PendingChanges() {
		wait = o.autosave.Submit(project.Serialize(o.state))
	}
	o.mu.Unlock()

	for _, unsubscribe := range unsubs {
		unsubscribe()
	}

	var errs []error
	if wait != nil {
		if err := wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := o.autosave.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := o.bridge.Close(); err != nil {
		errs = append(errs, err)
	}
	o.log.Info().Msg("editor closed")
	return errors.Join(errs...)
}
