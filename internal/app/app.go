// Package app wires the console client, grid state storage, rendering
// components and action dispatch into one context shared by the CLI and TUI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"

	"sner-console/internal/action"
	"sner-console/internal/client"
	"sner-console/internal/component"
	"sner-console/internal/grid"
	"sner-console/internal/logger"
	"sner-console/internal/notify"
	"sner-console/internal/routes"
	"sner-console/internal/store"
	"sner-console/internal/views"
)

// MemoryStateDB as the state db keeps grid states in memory for the process lifetime.
const MemoryStateDB = ":memory:"

type Options struct {
	Notifier  notify.Notifier
	Confirmer action.Confirmer
	Modal     action.ModalCloser
	Annotate  action.AnnotateEditor
	PhaseHook func(action.Phase)

	// KV overrides the state db selected by the config.
	KV store.KV
	// ClientOptions are passed to client.New.
	ClientOptions []client.Option
	// EndSessionOnClose drops the session's grid states when the context is
	// closed, like a browser session ending.
	EndSessionOnClose bool
}

// sessionEnder is implemented by state stores that partition values by session.
type sessionEnder interface {
	EndSession(ctx context.Context) error
}

// Context is built once per process and handed to commands and the TUI.
type Context struct {
	Config     store.Config
	Routes     routes.Table
	Registry   *component.Registry
	Client     *client.Client
	States     *store.GridStates
	Notifier   notify.Notifier
	Dispatcher *action.Dispatcher
	Surface    *action.Surface

	closers    []io.Closer
	endSession sessionEnder

	mu       sync.Mutex
	grids    map[string]*openGrid
	onReload []func(ctx context.Context)
}

type openGrid struct {
	view     views.View
	rawQuery string
	session  *grid.Session
}

func New(ctx context.Context, cfg store.Config, opts Options) (*Context, error) {
	c := &Context{
		Config:   cfg,
		Routes:   routes.Console,
		Notifier: opts.Notifier,
		grids:    map[string]*openGrid{},
	}
	if c.Notifier == nil {
		c.Notifier = notify.Discard{}
	}

	cl, err := client.New(cfg, opts.ClientOptions...)
	if err != nil {
		return nil, err
	}
	c.Client = cl

	reg, err := component.NewDefaultRegistry(c.Routes)
	if err != nil {
		return nil, fmt.Errorf("compile components: %w", err)
	}
	c.Registry = reg

	kv := opts.KV
	if kv == nil {
		kv, err = openKV(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if closer, ok := kv.(io.Closer); ok {
			c.closers = append(c.closers, closer)
		}
	}
	if e, ok := kv.(sessionEnder); ok && opts.EndSessionOnClose {
		c.endSession = e
	}
	c.States = store.NewGridStates(kv)
	c.States.SetReloader(c)

	dopts := []action.Option{action.WithReloader(c)}
	if opts.Confirmer != nil {
		dopts = append(dopts, action.WithConfirmer(opts.Confirmer))
	}
	if opts.Modal != nil {
		dopts = append(dopts, action.WithModal(opts.Modal))
	}
	if opts.PhaseHook != nil {
		dopts = append(dopts, action.WithPhaseHook(opts.PhaseHook))
	}
	c.Dispatcher = action.NewDispatcher(cl, c.Notifier, dopts...)
	c.Surface = action.NewSurface(c.Dispatcher, cl, opts.Annotate)
	return c, nil
}

func openKV(ctx context.Context, cfg store.Config) (store.KV, error) {
	path := strings.TrimSpace(cfg.StateDB)
	if path == MemoryStateDB {
		return store.NewMemoryKV(), nil
	}
	if path == "" {
		p, err := store.DefaultStateDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	session := strings.TrimSpace(cfg.Session)
	if session == "" {
		session = store.DefaultSession
	}
	kv, err := store.OpenSQLiteKV(ctx, path, session)
	if err != nil {
		return nil, fmt.Errorf("open state db %s: %w", path, err)
	}
	return kv, nil
}

// Close ends the grid state session when asked to and closes the state db.
func (c *Context) Close() error {
	var errs []error
	if c.endSession != nil {
		if err := c.endSession.EndSession(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("end grid state session: %w", err))
		}
		c.endSession = nil
	}
	for _, cl := range c.closers {
		if err := cl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func gridKey(v views.View, rawQuery string) string {
	return v.Name + "?" + rawQuery
}

// OpenGrid initializes the grid of view v for the console query rawQuery
// (e.g. filter=Host.address=="10.0.0.1"). The view's path plus rawQuery
// keys the persisted state.
func (c *Context) OpenGrid(ctx context.Context, v views.View, rawQuery string) (*grid.Session, error) {
	params, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("invalid %s query: %w", v.Name, err)
	}
	viaTarget := v.ViaTarget && c.States.ColumnVisible(ctx, store.ViaTargetColumnFlag)
	s, err := grid.Init(ctx, grid.InitOptions{
		Selector:   v.Selector,
		Endpoint:   v.DataPath(c.Routes),
		Columns:    v.Columns(c.Registry, viaTarget),
		View:       store.ViewKey{Path: v.ListPath(c.Routes), RawQuery: rawQuery},
		Fetcher:    c.Client,
		States:     c.States,
		Notifier:   c.Notifier,
		PageLength: c.Config.EffectivePageLength(),
		Params:     params,
		OnControl:  c.runControl,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", v.Name, err)
	}
	c.mu.Lock()
	c.grids[gridKey(v, rawQuery)] = &openGrid{view: v, rawQuery: rawQuery, session: s}
	c.mu.Unlock()
	return s, nil
}

// Grid returns the current session of an open grid. Sessions are replaced on Reload.
func (c *Context) Grid(v views.View, rawQuery string) (*grid.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.grids[gridKey(v, rawQuery)]
	if !ok {
		return nil, false
	}
	return g.session, true
}

// OnReload registers fn to run after Reload re-initialized the open grids.
func (c *Context) OnReload(fn func(ctx context.Context)) {
	c.mu.Lock()
	c.onReload = append(c.onReload, fn)
	c.mu.Unlock()
}

// Reload re-initializes every open grid, the way a page reload makes grids
// read their persisted state again.
func (c *Context) Reload(ctx context.Context) error {
	c.mu.Lock()
	open := make([]*openGrid, 0, len(c.grids))
	for _, g := range c.grids {
		open = append(open, g)
	}
	hooks := append([]func(context.Context){}, c.onReload...)
	c.mu.Unlock()
	sort.Slice(open, func(i, j int) bool {
		return gridKey(open[i].view, open[i].rawQuery) < gridKey(open[j].view, open[j].rawQuery)
	})

	logger.FromContext(ctx).Debug("reloading grids", "count", len(open))
	var errs []error
	for _, g := range open {
		if _, err := c.OpenGrid(ctx, g.view, g.rawQuery); err != nil {
			errs = append(errs, err)
		}
	}
	for _, fn := range hooks {
		fn(ctx)
	}
	return errors.Join(errs...)
}

// runControl handles row controls: submit kinds go through the dispatcher,
// links are reported as absolute urls.
func (c *Context) runControl(ctx context.Context, s *grid.Session, id grid.ID, ctl grid.Control) error {
	switch ctl.Kind {
	case grid.ControlDelete:
		_, err := c.Dispatcher.Dispatch(ctx, action.DeleteRow(ctl.URL, ctl.Confirmation, string(id)), s, nil)
		return err
	case grid.ControlSubmit:
		_, err := c.Dispatcher.SubmitDataURL(ctx, s, ctl.URL, ctl.Confirmation)
		return err
	default:
		c.Notifier.Info(ctl.Label + " " + c.Client.Resolve(ctl.URL))
		return nil
	}
}

// ResetAll clears every saved grid state and reloads the open grids.
func (c *Context) ResetAll(ctx context.Context) (int, error) {
	return c.States.ResetAll(ctx)
}

// ToggleViaTarget flips the via_target column flag; grids are reset and reloaded.
func (c *Context) ToggleViaTarget(ctx context.Context) (bool, error) {
	return c.States.ToggleColumnVisibility(ctx, store.ViaTargetColumnFlag)
}

// TagDescriptor is the bulk tag action of v for tag. verb is action.VerbSet or action.VerbUnset.
func (c *Context) TagDescriptor(v views.View, tag, verb string) (action.Descriptor, error) {
	if !v.Taggable() {
		return action.Descriptor{}, fmt.Errorf("%s cannot be tagged", v.Name)
	}
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return action.Descriptor{}, errors.New("tag is required")
	}
	return action.Tag(c.Routes.MustURLFor(v.TagRoute, nil), tag, verb), nil
}

// FreeTagDescriptor is the free-form tag action of v; the tag field is set before submit.
func (c *Context) FreeTagDescriptor(v views.View, verb string) (action.Descriptor, error) {
	if !v.Taggable() {
		return action.Descriptor{}, fmt.Errorf("%s cannot be tagged", v.Name)
	}
	return action.FreeTagDescriptor(c.Routes.MustURLFor(v.TagRoute, nil), verb), nil
}

func (c *Context) DeleteDescriptor(v views.View) (action.Descriptor, error) {
	if !v.Deletable() {
		return action.Descriptor{}, fmt.Errorf("%s has no bulk delete", v.Name)
	}
	return action.Delete(c.Routes.MustURLFor(v.DeleteRoute, nil)), nil
}

// TagView sets (or with action.VerbUnset removes) tag on entity id of v as
// its detail view does: the document is reloaded on success.
func (c *Context) TagView(ctx context.Context, v views.View, id grid.ID, tag, verb string) (action.Outcome, error) {
	desc, err := c.TagDescriptor(v, tag, verb)
	if err != nil {
		return action.OutcomeFailed, err
	}
	if strings.TrimSpace(string(id)) == "" {
		return action.OutcomeFailed, errors.New("entity id is required")
	}
	fields := url.Values{"ids-0": {string(id)}}
	for k, vals := range desc.Payload {
		fields[k] = vals
	}
	return c.Surface.TagView(ctx, desc.Endpoint, fields)
}

// AnnotateView annotates entity id of v as its detail view does, with the
// configured annotate editor.
func (c *Context) AnnotateView(ctx context.Context, v views.View, id grid.ID) (action.Outcome, error) {
	formURL, err := v.AnnotatePath(c.Routes, id)
	if err != nil {
		return action.OutcomeFailed, err
	}
	return c.Surface.AnnotateView(ctx, formURL)
}

// Quickjump resolves term to an absolute console url.
func (c *Context) Quickjump(ctx context.Context, term string) (string, error) {
	return c.Client.Quickjump(ctx, c.Routes.MustURLFor("storage.quickjump_route", nil), term)
}
