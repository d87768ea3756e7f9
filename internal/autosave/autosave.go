// Package autosave persists the editor's project document in the background.
//
// QueueSave is a trailing-edge debounce: every call restarts the window and
// only the latest document is written once the window passes quietly.
// SaveNow skips the window. All writes go through one drain goroutine, so
// they reach the Saver strictly in the order they were requested, and a
// document still waiting for its turn is replaced by any newer one.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xlog "reel-editor/internal/log"
	"reel-editor/internal/metrics"
	"reel-editor/internal/models"
)

const DefaultDebounce = time.Second

var ErrClosed = errors.New("autosave: pipeline closed")

// Saver performs one persistence write.
type Saver interface {
	Save(ctx context.Context, doc models.ProjectJSON) error
}

type SaverFunc func(ctx context.Context, doc models.ProjectJSON) error

func (f SaverFunc) Save(ctx context.Context, doc models.ProjectJSON) error { return f(ctx, doc) }

type Options struct {
	Debounce time.Duration
	// WriteTimeout bounds a single write; zero means no bound.
	WriteTimeout time.Duration

	OnSaveSuccess func(at time.Time)
	OnSaveError   func(err error)

	Logger *zerolog.Logger
	Now    func() time.Time
}

type Status struct {
	IsSaving       bool      `json:"is_saving"`
	LastSaveTime   time.Time `json:"last_save_time"`
	PendingChanges bool      `json:"pending_changes"`
	LastError      string    `json:"last_error,omitempty"`
}

type job struct {
	doc     models.ProjectJSON
	gen     uint64
	waiters []chan error
}

type Pipeline struct {
	saver Saver
	opts  Options
	log   zerolog.Logger

	mu sync.Mutex

	// debounce window
	timer    *time.Timer
	timerGen uint64
	held     *job

	// the single slot behind the in-flight write
	next     *job
	draining bool
	saving   bool
	idle     chan struct{}

	// gen counts mutations; savedGen is the newest one confirmed written
	gen      uint64
	savedGen uint64

	lastSave time.Time
	lastErr  error
	closed   bool
}

func New(saver Saver, opts Options) *Pipeline {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Pipeline{
		saver: saver,
		opts:  opts,
		log:   xlog.Or(opts.Logger, "autosave"),
	}
}

// QueueSave records a mutation and schedules doc to be written after the
// debounce window. The pipeline owns doc from here on.
func (p *Pipeline) QueueSave(doc models.ProjectJSON) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		p.log.Warn().Msg("queue save after close, dropped")
		return
	}
	p.gen++
	if p.held != nil {
		metrics.AutosaveCoalescedTotal.Inc()
	}
	p.held = &job{doc: doc, gen: p.gen}
	p.restartTimerLocked()
}

func (p *Pipeline) restartTimerLocked() {
	p.stopTimerLocked()
	gen := p.timerGen
	p.timer = time.AfterFunc(p.opts.Debounce, func() { p.fire(gen) })
}

func (p *Pipeline) stopTimerLocked() {
	// bumping timerGen turns a callback that already started into a no-op
	p.timerGen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen != p.timerGen || p.held == nil {
		return
	}
	j := p.held
	p.held = nil
	p.timer = nil
	p.enqueueLocked(j)
}

// MarkDirty records a mutation without a document, e.g. one the caller
// will write through SaveNow.
func (p *Pipeline) MarkDirty() {
	p.mu.Lock()
	p.gen++
	p.mu.Unlock()
}

// SaveNow writes doc without waiting for the debounce window and blocks
// until it (or a newer document that replaced it) has been written. Any
// document held by the debounce window is superseded.
func (p *Pipeline) SaveNow(ctx context.Context, doc models.ProjectJSON) error {
	return p.Submit(doc)(ctx)
}

// Submit is SaveNow split in two: the document takes its place in the write
// order when Submit returns, and the returned func waits for the outcome.
// A caller can submit under its own lock and wait after releasing it.
func (p *Pipeline) Submit(doc models.ProjectJSON) (wait func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return func(context.Context) error { return ErrClosed }
	}
	p.gen++
	if p.held != nil {
		metrics.AutosaveCoalescedTotal.Inc()
		p.held = nil
	}
	p.stopTimerLocked()
	done := make(chan error, 1)
	p.enqueueLocked(&job{doc: doc, gen: p.gen, waiters: []chan error{done}})

	return func(ctx context.Context) error {
		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Pipeline) enqueueLocked(j *job) {
	if p.next != nil {
		// the replaced document never reaches storage; its waiters get the
		// outcome of the newer one
		j.waiters = append(p.next.waiters, j.waiters...)
		metrics.AutosaveCoalescedTotal.Inc()
	}
	p.next = j
	if !p.draining {
		p.draining = true
		p.idle = make(chan struct{})
		go p.drain(p.idle)
	}
}

func (p *Pipeline) drain(idle chan struct{}) {
	defer close(idle)
	for {
		p.mu.Lock()
		j := p.next
		p.next = nil
		if j == nil {
			p.draining = false
			p.saving = false
			p.mu.Unlock()
			return
		}
		p.saving = true
		p.mu.Unlock()

		err := p.write(j.doc)
		at := p.opts.Now()

		p.mu.Lock()
		if err == nil {
			if j.gen > p.savedGen {
				p.savedGen = j.gen
			}
			p.lastSave = at
			p.lastErr = nil
		} else {
			p.lastErr = err
		}
		pending := p.savedGen < p.gen
		p.mu.Unlock()

		if err == nil {
			p.log.Debug().Uint64("generation", j.gen).Bool("pending", pending).Msg("project saved")
			if p.opts.OnSaveSuccess != nil {
				p.opts.OnSaveSuccess(at)
			}
		} else {
			p.log.Error().Err(err).Uint64("generation", j.gen).Msg("autosave failed")
			if p.opts.OnSaveError != nil {
				p.opts.OnSaveError(err)
			}
		}
		for _, w := range j.waiters {
			w <- err
		}
	}
}

func (p *Pipeline) write(doc models.ProjectJSON) error {
	ctx := context.Background()
	if p.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.WriteTimeout)
		defer cancel()
	}
	start := time.Now()
	err := p.saver.Save(ctx, doc)
	metrics.AutosaveWriteSeconds.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AutosaveWritesTotal.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.AutosaveWritesTotal.WithLabelValues(metrics.ResultOK).Inc()
	return nil
}

// Flush writes any document still inside the debounce window and waits
// until no write is queued or in flight.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	var done chan error
	if p.held != nil {
		j := p.held
		p.held = nil
		p.stopTimerLocked()
		done = make(chan error, 1)
		j.waiters = append(j.waiters, done)
		p.enqueueLocked(j)
	}
	idle := p.idle
	draining := p.draining
	p.mu.Unlock()

	var err error
	if done != nil {
		select {
		case err = <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if draining {
		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Close stops accepting work, then writes whatever was accepted before.
// Work submitted after Close starts is rejected rather than lost.
func (p *Pipeline) Close(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Flush(ctx)
}

// PendingChanges reports whether a mutation happened after the newest
// confirmed write. A failed write leaves it true.
func (p *Pipeline) PendingChanges() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.savedGen < p.gen
}

func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		IsSaving:       p.saving,
		LastSaveTime:   p.lastSave,
		PendingChanges: p.savedGen < p.gen,
	}
	if p.lastErr != nil {
		st.LastError = p.lastErr.Error()
	}
	return st
}
