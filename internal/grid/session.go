package grid

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"sner-console/internal/logger"
	"sner-console/internal/notify"
	"sner-console/internal/store"
)

// DeleteConfirmation is asked before a row delete control submits.
const DeleteConfirmation = "Really delete?"

// StateStore persists grid states per instance and view; *store.GridStates satisfies it.
type StateStore interface {
	Load(ctx context.Context, instanceID string, vk store.ViewKey) (store.GridState, bool)
	Save(ctx context.Context, instanceID string, vk store.ViewKey, st store.GridState) error
}

// ControlHandler runs a row control, e.g. submitting a delete.
type ControlHandler func(ctx context.Context, s *Session, id ID, c Control) error

type InitOptions struct {
	// Selector names the grid instance; it is part of the state key.
	Selector string
	Endpoint string
	Columns  []Column
	View     store.ViewKey
	Fetcher  Fetcher
	States   StateStore
	Notifier notify.Notifier

	PageLength int
	Order      []store.OrderSpec
	Params     url.Values
	OnControl  ControlHandler
}

// Session owns one grid instance: the table, its selection, and the
// lifecycle wiring that keeps them and the persisted state in step.
type Session struct {
	opts  InitOptions
	table *Table
	sel   *Selection

	mu       sync.Mutex
	controls map[ID][]Control
}

// Init builds the grid, restores its saved state and draws the first page.
// A failed first fetch is reported through the notifier; the session is
// still returned and usable.
func Init(ctx context.Context, opts InitOptions) (*Session, error) {
	if strings.TrimSpace(opts.Selector) == "" {
		return nil, errors.New("grid selector is required")
	}
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, errors.New("grid endpoint is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("grid fetcher is required")
	}
	if len(opts.Columns) == 0 {
		return nil, errors.New("grid needs at least one column")
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Discard{}
	}

	s := &Session{
		opts: opts,
		table: NewTable(opts.Selector, opts.Endpoint, opts.Fetcher, opts.Columns, Options{
			PageLength: opts.PageLength,
			Order:      opts.Order,
			Params:     opts.Params,
		}),
		sel:      NewSelection(),
		controls: map[ID][]Control{},
	}
	s.restoreState(ctx)
	s.wire()

	if err := s.table.Draw(ctx, DrawHold); err != nil && !errors.Is(err, ErrStaleDraw) {
		s.reportFetchError(ctx, err)
	}
	return s, nil
}

func (s *Session) restoreState(ctx context.Context) {
	if s.opts.States == nil {
		return
	}
	st, ok := s.opts.States.Load(ctx, s.opts.Selector, s.opts.View)
	if !ok {
		return
	}
	s.table.ApplyState(st)
}

func (s *Session) wire() {
	t := s.table
	idIdx := t.ColumnIndex(IDField)

	// Secondary order by id keeps paging stable across equal sort keys.
	t.OnPreFetch(func(req *FetchRequest) {
		if idIdx < 0 {
			return
		}
		for _, o := range req.Order {
			if o.Column == idIdx {
				return
			}
		}
		req.Order = append(req.Order, store.OrderSpec{Column: idIdx, Dir: OrderAsc})
	})

	t.OnDraw(func(ctx context.Context, t *Table) {
		rows := t.Rows()
		s.bindControls(rows)
		t.SetPaginationVisible(t.Info().Pages > 1)
		if pruned := s.sel.Reconcile(t.Window(), rows, t.Info().RecordsDisplay); len(pruned) > 0 {
			logger.FromContext(ctx).Debug("selection pruned", "grid", s.opts.Selector, "ids", len(pruned))
		}
	})

	if s.opts.States != nil {
		t.OnStateSave(func(ctx context.Context, st store.GridState) {
			if err := s.opts.States.Save(ctx, s.opts.Selector, s.opts.View, st); err != nil {
				logger.FromContext(ctx).Debug("grid state save failed", "grid", s.opts.Selector, "err", err)
			}
		})
	}
}

func (s *Session) bindControls(rows []Row) {
	var col *Column
	for _, c := range s.table.Columns() {
		if c.Kind == KindActions && c.Controls != nil {
			c := c
			col = &c
			break
		}
	}
	bound := make(map[ID][]Control, len(rows))
	if col != nil {
		for _, r := range rows {
			id, ok := r.ID()
			if !ok {
				continue
			}
			cs := col.Controls(r)
			for i := range cs {
				if cs[i].Kind == ControlDelete && cs[i].Confirmation == "" {
					cs[i].Confirmation = DeleteConfirmation
				}
			}
			bound[id] = cs
		}
	}
	s.mu.Lock()
	s.controls = bound
	s.mu.Unlock()
}

func (s *Session) reportFetchError(ctx context.Context, err error) {
	logger.FromContext(ctx).Warn("grid fetch failed", "grid", s.opts.Selector, "err", err)
	s.opts.Notifier.Error(notify.Message(err, "Request failed"))
}

func (s *Session) Name() string          { return s.opts.Selector }
func (s *Session) View() store.ViewKey   { return s.opts.View }
func (s *Session) Table() *Table         { return s.table }
func (s *Session) Selection() *Selection { return s.sel }

// ExportSelection returns the whole selection as ids-0..ids-N request fields.
func (s *Session) ExportSelection() url.Values {
	return s.sel.ExportRequestFields()
}

// Redraw re-fetches the current page. Fetch failures are reported and
// returned; a draw superseded by a newer one is not an error.
func (s *Session) Redraw(ctx context.Context) error {
	return s.draw(ctx, DrawHold)
}

// Reset re-fetches from the first page.
func (s *Session) Reset(ctx context.Context) error {
	return s.draw(ctx, DrawReset)
}

func (s *Session) draw(ctx context.Context, mode DrawMode) error {
	err := s.table.Draw(ctx, mode)
	if errors.Is(err, ErrStaleDraw) {
		return nil
	}
	if err != nil {
		s.reportFetchError(ctx, err)
	}
	return err
}

// Forget drops removed entity ids from the selection.
func (s *Session) Forget(ids []string) {
	for _, id := range ids {
		s.sel.Forget(ID(id))
	}
}

func (s *Session) SelectVisible() int   { return s.sel.SelectVisible(s.table) }
func (s *Session) DeselectVisible() int { return s.sel.DeselectVisible(s.table) }

// Controls returns the controls bound to the row id in the last draw.
func (s *Session) Controls(id ID) []Control {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Control(nil), s.controls[id]...)
}

// TriggerControl runs control index i of row id through the session's control handler.
func (s *Session) TriggerControl(ctx context.Context, id ID, i int) error {
	cs := s.Controls(id)
	if i < 0 || i >= len(cs) {
		return fmt.Errorf("row %s has no control %d", id, i)
	}
	if s.opts.OnControl == nil {
		return fmt.Errorf("grid %s has no control handler", s.opts.Selector)
	}
	return s.opts.OnControl(ctx, s, id, cs[i])
}
