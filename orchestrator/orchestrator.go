package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/use-agent/sitegrab/models"
)

// ErrNoArchive is returned by HandOff when no live handle is held.
var ErrNoArchive = errors.New("orchestrator: no archive to hand off")

// Outcome is the result of one Submit call: exactly one of Download or
// Failure is set.
type Outcome struct {
	// Token is the call token of the submission.
	Token uint64

	Download *Download
	Failure  *models.Failure
}

// Succeeded reports whether the outcome carries an archive.
func (o Outcome) Succeeded() bool {
	return o.Download != nil
}

// Download references a successful archive and the name to present for it.
type Download struct {
	Handle   *Handle
	Filename string
}

// Snapshot is a consistent view of the orchestrator for callers and UIs.
type Snapshot struct {
	State   models.State
	Token   uint64
	Outcome Outcome // zero value while idle or submitting
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// OnChange registers an observer called after every state transition.
// Snapshots are delivered one at a time, in transition order and outside
// any lock. A transition made while another goroutine is delivering (or
// from inside the observer) is delivered by that goroutine once the current
// call returns.
func OnChange(fn func(Snapshot)) Option {
	return func(o *Orchestrator) { o.onChange = fn }
}

// Orchestrator owns the lifecycle of scrape-and-download submissions:
// validate, issue, classify, derive a filename, hold the archive, release it.
//
// Each Submit takes a new call token; the most recent call is authoritative.
// A reply for an older token never changes state and never yields a handle.
// At most one live handle exists at a time. The lock is held only around
// bookkeeping, never across network I/O.
type Orchestrator struct {
	collab   Collaborator
	logger   *slog.Logger
	onChange func(Snapshot)

	mu      sync.Mutex
	token   uint64
	state   models.State
	outcome Outcome
	live    *Handle
	cancel  context.CancelFunc

	pending     []Snapshot
	dispatching bool

	liveHandles atomic.Int64
}

// New creates an Orchestrator backed by the given collaborator.
func New(collab Collaborator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		collab: collab,
		logger: slog.Default(),
		state:  models.StateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit validates rawURL, asks the scraping service to archive it and
// classifies the reply. It never returns a raw error: every problem is a
// classified Failure. A call superseded by a newer Submit returns a
// KindSuperseded failure and leaves the newer call's state untouched.
func (o *Orchestrator) Submit(ctx context.Context, rawURL string) Outcome {
	req := &models.ScrapeRequest{URL: rawURL}
	req.Normalize()

	if err := req.Validate(); err != nil {
		o.mu.Lock()
		token := o.supersedeLocked()
		out := Outcome{
			Token:   token,
			Failure: models.NewFailure(models.KindValidation, err.Error(), err),
		}
		o.state = models.StateFailed
		o.outcome = out
		o.publishLocked()
		o.mu.Unlock()

		o.logger.Info("submission rejected", "url", req.URL, "token", token, "reason", err.Error())
		o.dispatch()
		return out
	}

	callCtx, cancel := context.WithCancel(ctx)

	o.mu.Lock()
	token := o.supersedeLocked()
	o.cancel = cancel
	o.state = models.StateSubmitting
	o.publishLocked()
	o.mu.Unlock()

	o.logger.Info("submitting", "url", req.URL, "token", token)
	o.dispatch()

	c := o.call(callCtx, req)
	return o.resolve(token, req.URL, cancel, c)
}

// call runs the collaborator and classifies the reply, turning a panic into
// an unexpected failure.
func (o *Orchestrator) call(ctx context.Context, req *models.ScrapeRequest) (c classified) {
	defer func() {
		if r := recover(); r != nil {
			c = classified{failure: models.NewFailure(models.KindUnexpected, fmt.Sprint(r), nil)}
		}
	}()
	raw, err := o.collab.Scrape(ctx, req)
	return classify(raw, err)
}

// resolve publishes the classified reply if token is still current.
func (o *Orchestrator) resolve(token uint64, url string, cancel context.CancelFunc, c classified) Outcome {
	cancel()

	o.mu.Lock()
	if token != o.token {
		current := o.token
		o.mu.Unlock()
		o.logger.Debug("discarding stale response", "url", url, "token", token, "current", current)
		return Outcome{
			Token:   token,
			Failure: models.NewFailure(models.KindSuperseded, models.MsgSuperseded, nil),
		}
	}

	o.cancel = nil
	var out Outcome
	if c.failure != nil {
		out = Outcome{Token: token, Failure: c.failure}
		o.state = models.StateFailed
	} else {
		h := newHandle(token, c.filename, c.payload, func() { o.liveHandles.Add(-1) })
		o.liveHandles.Add(1)
		o.live = h
		out = Outcome{Token: token, Download: &Download{Handle: h, Filename: c.filename}}
		o.state = models.StateSucceeded
	}
	o.outcome = out
	o.publishLocked()
	o.mu.Unlock()

	if out.Failure != nil {
		o.logger.Warn("scrape failed",
			"url", url,
			"token", token,
			"kind", out.Failure.Kind,
			"error", out.Failure,
		)
	} else {
		o.logger.Info("scrape succeeded",
			"url", url,
			"token", token,
			"filename", out.Download.Filename,
			"bytes", out.Download.Handle.Size(),
		)
	}
	o.dispatch()
	return out
}

// supersedeLocked starts a new call: it bumps the token, cancels the
// in-flight call and revokes the live handle. o.mu must be held.
func (o *Orchestrator) supersedeLocked() uint64 {
	o.token++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.releaseLocked()
	o.outcome = Outcome{}
	return o.token
}

// releaseLocked revokes the live handle, if any. o.mu must be held.
func (o *Orchestrator) releaseLocked() bool {
	if o.live == nil {
		return false
	}
	h := o.live
	o.live = nil
	return h.Revoke()
}

// Revoke releases the held archive and dismisses a terminal outcome,
// returning the orchestrator to idle. It is idempotent and reports whether
// a live handle was released. An in-flight call is not affected.
func (o *Orchestrator) Revoke() bool {
	o.mu.Lock()
	released := o.releaseLocked()
	changed := o.state.IsTerminal()
	if changed {
		o.state = models.StateIdle
		o.outcome = Outcome{}
		o.publishLocked()
	}
	token := o.token
	o.mu.Unlock()

	if released {
		o.logger.Debug("archive released", "token", token)
	}
	o.dispatch()
	return released
}

// HandOff passes the live handle to save and revokes it once save returns
// without error. The bytes stay valid for the whole call. If save fails the
// handle is kept so the hand-off can be retried.
func (o *Orchestrator) HandOff(save func(*Handle) error) error {
	o.mu.Lock()
	h := o.live
	o.mu.Unlock()

	return o.HandOffHandle(h, save)
}

// HandOffHandle is HandOff for a specific handle, typically the one returned
// by the caller's own Submit. It returns ErrNoArchive when h has already been
// superseded, revoked or handed off, so a caller never saves another call's
// archive.
func (o *Orchestrator) HandOffHandle(h *Handle, save func(*Handle) error) error {
	if h == nil || !h.Live() {
		return ErrNoArchive
	}

	if err := save(h); err != nil {
		return err
	}

	o.mu.Lock()
	// A Submit or Revoke during the save has already released h.
	changed := o.live == h
	if changed {
		o.releaseLocked()
		o.state = models.StateIdle
		o.outcome = Outcome{}
		o.publishLocked()
	}
	o.mu.Unlock()

	o.logger.Debug("archive handed off", "token", h.Token(), "filename", h.Filename())
	o.dispatch()
	return nil
}

// State returns the current state.
func (o *Orchestrator) State() models.State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the current state, token and outcome.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// LiveHandles returns the number of handles issued and not yet revoked.
func (o *Orchestrator) LiveHandles() int {
	return int(o.liveHandles.Load())
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	return Snapshot{State: o.state, Token: o.token, Outcome: o.outcome}
}

// publishLocked queues the current snapshot for the observer. o.mu must be
// held, so the queue order is the transition order.
func (o *Orchestrator) publishLocked() {
	if o.onChange != nil {
		o.pending = append(o.pending, o.snapshotLocked())
	}
}

// dispatch delivers queued snapshots unless another call is already doing
// so, in which case that call picks them up.
func (o *Orchestrator) dispatch() {
	if o.onChange == nil {
		return
	}
	o.mu.Lock()
	if o.dispatching {
		o.mu.Unlock()
		return
	}
	o.dispatching = true
	for len(o.pending) > 0 {
		s := o.pending[0]
		o.pending = o.pending[1:]
		o.mu.Unlock()
		o.deliver(s)
		o.mu.Lock()
	}
	o.pending = nil
	o.dispatching = false
	o.mu.Unlock()
}

func (o *Orchestrator) deliver(s Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("state observer panicked", "state", s.State, "token", s.Token, "panic", r)
		}
	}()
	o.onChange(s)
}
