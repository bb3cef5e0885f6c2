package action

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"sner-console/internal/logger"
	"sner-console/internal/notify"
)

const (
	NoSelectionMessage = "No items selected"
	FailureFallback    = "Request failed"
)

// ErrNoSelection is returned when an action needing a selection has none.
var ErrNoSelection = errors.New("no items selected")

// ErrAlreadySubmitted is returned by a second Submit of the same Pending.
var ErrAlreadySubmitted = errors.New("action already submitted")

// Grid is what the dispatcher needs of a grid session.
type Grid interface {
	ExportSelection() url.Values
	// Forget drops deleted entity ids from the selection.
	Forget(ids []string)
	Redraw(ctx context.Context) error
}

// Submitter performs the authenticated form POST (csrf token included).
type Submitter interface {
	SubmitForm(ctx context.Context, endpoint string, fields url.Values) error
}

type Confirmer interface {
	Confirm(ctx context.Context, message string) (bool, error)
}

type ConfirmFunc func(ctx context.Context, message string) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, message string) (bool, error) {
	return f(ctx, message)
}

// ModalCloser closes whatever modal dialog is open.
type ModalCloser interface {
	CloseModal()
}

// Reloader reloads the current document.
type Reloader interface {
	Reload(ctx context.Context) error
}

// TagEditor collects tags from the user; ok is false when cancelled.
type TagEditor interface {
	EditTags(ctx context.Context, title string) (tags []string, ok bool, err error)
}

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConfirming
	PhaseSubmitting
	PhaseRefreshing
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseConfirming:
		return "confirming"
	case PhaseSubmitting:
		return "submitting"
	case PhaseRefreshing:
		return "refreshing"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

type Outcome int

const (
	OutcomeDone Outcome = iota
	OutcomeNoSelection
	OutcomeDeclined
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoSelection:
		return "no-selection"
	case OutcomeDeclined:
		return "declined"
	case OutcomeFailed:
		return "failed"
	default:
		return "done"
	}
}

type Option func(*Dispatcher)

// WithConfirmer sets who answers confirmations in Dispatch. Without one,
// actions that need a confirmation are declined.
func WithConfirmer(c Confirmer) Option {
	return func(d *Dispatcher) { d.confirmer = c }
}

func WithModal(m ModalCloser) Option {
	return func(d *Dispatcher) { d.modal = m }
}

func WithReloader(r Reloader) Option {
	return func(d *Dispatcher) { d.reloader = r }
}

// WithPhaseHook observes every phase transition.
func WithPhaseHook(fn func(Phase)) Option {
	return func(d *Dispatcher) { d.phaseHook = fn }
}

// Dispatcher runs actions: selection check, confirmation, submit, refresh.
// One dispatch is strictly sequential; concurrent dispatches are not
// serialized and each works on its own snapshot of the selection.
type Dispatcher struct {
	submitter Submitter
	notifier  notify.Notifier
	confirmer Confirmer
	modal     ModalCloser
	reloader  Reloader
	phaseHook func(Phase)

	mu    sync.Mutex
	phase Phase
}

func NewDispatcher(s Submitter, n notify.Notifier, opts ...Option) *Dispatcher {
	if n == nil {
		n = notify.Discard{}
	}
	d := &Dispatcher{submitter: s, notifier: n}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Phase is the phase of the most recent dispatch.
func (d *Dispatcher) Phase() Phase {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.phase
}

func (d *Dispatcher) setPhase(p Phase) {
	d.mu.Lock()
	d.phase = p
	hook := d.phaseHook
	d.mu.Unlock()
	if hook != nil {
		hook(p)
	}
}

// Pending is a dispatch that passed the selection check and waits for its
// confirmation to be answered (Submit or Decline).
type Pending struct {
	d      *Dispatcher
	desc   Descriptor
	grid   Grid
	fields url.Values
	ids    int

	mu   sync.Mutex
	done bool
}

// Begin builds the request body (selection, then payload, then extra) and
// enters the confirming phase when desc asks for a confirmation. With an
// empty selection it warns and returns ErrNoSelection without contacting
// the server.
func (d *Dispatcher) Begin(ctx context.Context, desc Descriptor, g Grid, extra url.Values) (*Pending, error) {
	fields := url.Values{}
	ids := 0
	if desc.Scope == ScopeSelection {
		if g == nil {
			return nil, errors.New("action needs a grid")
		}
		sel := g.ExportSelection()
		if len(sel) == 0 {
			d.notifier.Warn(NoSelectionMessage)
			logger.FromContext(ctx).Debug("action skipped, empty selection", "action", desc.Name)
			return nil, ErrNoSelection
		}
		ids = len(sel)
		for k, v := range sel {
			fields[k] = v
		}
	}
	for k, v := range desc.payload() {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = append([]string(nil), v...)
	}

	p := &Pending{d: d, desc: desc, grid: g, fields: fields, ids: ids}
	if desc.Confirmation != "" {
		d.setPhase(PhaseConfirming)
	}
	return p, nil
}

func (p *Pending) Descriptor() Descriptor { return p.desc }

// Confirmation is the question to ask before Submit, or "".
func (p *Pending) Confirmation() string { return p.desc.Confirmation }

// Set replaces one request field, e.g. the tag text collected by an editor.
func (p *Pending) Set(key, value string) {
	p.mu.Lock()
	p.fields.Set(key, value)
	p.mu.Unlock()
}

// Fields returns a copy of the request body.
func (p *Pending) Fields() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := url.Values{}
	for k, v := range p.fields {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Decline abandons the dispatch without side effects.
func (p *Pending) Decline() {
	p.mu.Lock()
	p.done = true
	p.mu.Unlock()
	p.d.setPhase(PhaseIdle)
}

// Submit posts the request and refreshes. On failure the user is shown the
// server's message (or a generic fallback) and selection and state are left
// alone; Always descriptors still redraw.
func (p *Pending) Submit(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	if p.done {
		p.mu.Unlock()
		return OutcomeFailed, ErrAlreadySubmitted
	}
	p.done = true
	fields := p.fields
	p.mu.Unlock()

	d := p.d
	log := logger.FromContext(ctx).With("action", p.desc.Name, "endpoint", p.desc.Endpoint)

	d.setPhase(PhaseSubmitting)
	err := d.submitter.SubmitForm(ctx, p.desc.Endpoint, fields)
	if p.desc.Success.closesModal() && d.modal != nil {
		d.modal.CloseModal()
	}
	if err != nil {
		log.Warn("action failed", "err", err)
		d.setPhase(PhaseFailed)
		d.notifier.Error(notifyMessage(err))
		if p.desc.Always && p.grid != nil {
			_ = p.grid.Redraw(ctx)
		}
		d.setPhase(PhaseIdle)
		return OutcomeFailed, fmt.Errorf("%s: %w", p.desc.Name, err)
	}
	log.Info("action submitted", "ids", p.ids)
	if p.desc.Removes && p.grid != nil {
		p.grid.Forget(removedIDs(p.desc, fields))
	}

	d.setPhase(PhaseRefreshing)
	p.refresh(ctx, log)
	d.setPhase(PhaseIdle)
	return OutcomeDone, nil
}

// refresh failures are already surfaced by the grid; they don't fail the action.
func (p *Pending) refresh(ctx context.Context, log logger.Logger) {
	switch {
	case p.desc.Success.reloads():
		if p.d.reloader == nil {
			log.Debug("no reloader configured")
			return
		}
		if err := p.d.reloader.Reload(ctx); err != nil {
			log.Warn("reload failed", "err", err)
		}
	case p.grid != nil:
		if err := p.grid.Redraw(ctx); err != nil {
			log.Warn("redraw failed", "err", err)
		}
	}
}

// Dispatch runs the whole protocol, answering confirmations through the
// configured Confirmer.
func (d *Dispatcher) Dispatch(ctx context.Context, desc Descriptor, g Grid, extra url.Values) (Outcome, error) {
	p, err := d.Begin(ctx, desc, g, extra)
	if errors.Is(err, ErrNoSelection) {
		return OutcomeNoSelection, err
	}
	if err != nil {
		return OutcomeFailed, err
	}
	if msg := p.Confirmation(); msg != "" {
		ok, err := d.confirm(ctx, msg)
		if err != nil {
			p.Decline()
			return OutcomeDeclined, fmt.Errorf("confirm %s: %w", desc.Name, err)
		}
		if !ok {
			p.Decline()
			return OutcomeDeclined, nil
		}
	}
	return p.Submit(ctx)
}

func (d *Dispatcher) confirm(ctx context.Context, msg string) (bool, error) {
	if d.confirmer == nil {
		return false, nil
	}
	return d.confirmer.Confirm(ctx, msg)
}

// SubmitDataURL runs a single-id control (row delete, queue flush, ...).
func (d *Dispatcher) SubmitDataURL(ctx context.Context, g Grid, endpoint, confirmation string) (Outcome, error) {
	return d.Dispatch(ctx, DataURL(endpoint, confirmation), g, nil)
}

// FreeTagDescriptor is the free-form tag action; the tag field is filled from the editor.
func FreeTagDescriptor(endpoint, verb string) Descriptor {
	if verb != VerbUnset {
		verb = VerbSet
	}
	return Descriptor{
		Name:     "freetag " + verb,
		Endpoint: endpoint,
		Payload:  url.Values{"action": {verb}},
		Success:  RedrawAfterClose,
	}
}

// FreeTag sets or unsets tags collected from editor on the selected items.
func (d *Dispatcher) FreeTag(ctx context.Context, g Grid, endpoint, verb string, editor TagEditor) (Outcome, error) {
	desc := FreeTagDescriptor(endpoint, verb)
	p, err := d.Begin(ctx, desc, g, nil)
	if errors.Is(err, ErrNoSelection) {
		return OutcomeNoSelection, err
	}
	if err != nil {
		return OutcomeFailed, err
	}
	tags, ok, err := editor.EditTags(ctx, FreeTagTitle(desc.Payload.Get("action")))
	if err != nil {
		p.Decline()
		return OutcomeDeclined, fmt.Errorf("tag editor: %w", err)
	}
	if !ok {
		p.Decline()
		if d.modal != nil {
			d.modal.CloseModal()
		}
		return OutcomeDeclined, nil
	}
	p.Set("tag", JoinTags(tags))
	return p.Submit(ctx)
}

func removedIDs(desc Descriptor, fields url.Values) []string {
	var ids []string
	if desc.Scope == ScopeSelection {
		for k, v := range fields {
			if strings.HasPrefix(k, "ids-") {
				ids = append(ids, v...)
			}
		}
	}
	if desc.Subject != "" {
		ids = append(ids, desc.Subject)
	}
	return ids
}

func notifyMessage(err error) string {
	return notify.Message(err, FailureFallback)
}
