package tui

import (
	"context"
	"sync/atomic"

	"sner-console/internal/action"
	"sner-console/internal/app"
	"sner-console/internal/grid"
	"sner-console/internal/notify"
	"sner-console/internal/views"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalConfirm
	modalSearch
	modalQuickjump
	modalTagPick
	modalFreeTag
	modalAnnotate
	modalControls
	modalDetail
	modalHelp
)

type annotateFocus int

const (
	annotateFocusTags annotateFocus = iota
	annotateFocusComment
)

// modalLatch records the dispatcher's requests to close the open modal.
// Dispatches run in commands; Update applies the request when they finish.
type modalLatch struct{ closed atomic.Bool }

func (l *modalLatch) CloseModal() { l.closed.Store(true) }
func (l *modalLatch) take() bool  { return l.closed.Swap(false) }

type model struct {
	ctx   context.Context
	app   *app.Context
	notes *notify.Recorder
	latch *modalLatch
	keys  keyMap
	help  help.Model

	views   []views.View
	viewIdx int
	// queries keeps the console query (filter=...) each grid was opened with.
	queries map[string]string
	session *grid.Session

	cursor    int
	colCursor int
	width     int
	height    int
	busy      bool

	modal         modalKind
	pending       *action.Pending
	confirmTitle  string
	confirmFocus  confirmModalFocus
	tagVerb       string
	input         textinput.Model
	textarea      textarea.Model
	annotateForm  *action.Form
	annotateTags  string
	annotateFocus annotateFocus
	detail        viewport.Model
	// detailID is the entity of the open detail view.
	detailID grid.ID
	// tagTarget is set while the tag picker tags a detail view entity.
	tagTarget grid.ID
	// annotateDetail submits the annotate form as the detail view's.
	annotateDetail bool

	minibuffer      string
	minibufferLevel notify.Level
}

// newModel builds the TUI over a, starting on view v with the console query rawQuery.
func newModel(ctx context.Context, a *app.Context, notes *notify.Recorder, latch *modalLatch, v views.View, rawQuery string) model {
	all := views.All()
	idx := 0
	for i, cand := range all {
		if cand.Name == v.Name {
			idx = i
		}
	}
	in := textinput.New()
	in.Prompt = "> "
	in.CharLimit = 512

	ta := textarea.New()
	ta.ShowLineNumbers = false
	ta.Placeholder = "one tag per line"

	return model{
		ctx:      ctx,
		app:      a,
		notes:    notes,
		latch:    latch,
		keys:     defaultKeyMap(),
		help:     help.New(),
		views:    all,
		viewIdx:  idx,
		queries:  map[string]string{v.Name: rawQuery},
		input:    in,
		textarea: ta,
		detail:   viewport.New(80, 20),
		busy:     true,
	}
}

func (m model) Init() tea.Cmd {
	return m.openGridCmd()
}

func (m model) currentView() views.View {
	return m.views[m.viewIdx]
}

func (m model) currentQuery() string {
	return m.queries[m.currentView().Name]
}

// cursorRow returns the row under the cursor and its id.
func (m model) cursorRow() (grid.Row, grid.ID, bool) {
	if m.session == nil {
		return nil, "", false
	}
	rows := m.session.Table().Rows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return nil, "", false
	}
	id, ok := rows[m.cursor].ID()
	return rows[m.cursor], id, ok
}

func (m *model) clampCursor() {
	n := 0
	if m.session != nil {
		n = len(m.session.Table().Rows())
	}
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// visibleColumns returns the indices of the table columns drawn on screen.
func (m model) visibleColumns() []int {
	if m.session == nil {
		return nil
	}
	t := m.session.Table()
	var out []int
	for i, c := range t.Columns() {
		if c.Kind == grid.KindSelect && !m.currentView().Selectable {
			continue
		}
		if t.ColumnVisible(i) {
			out = append(out, i)
		}
	}
	return out
}

func (m *model) flash(level notify.Level, msg string) {
	m.minibuffer = msg
	m.minibufferLevel = level
}

// absorbNotes moves the newest notification into the minibuffer.
func (m *model) absorbNotes() {
	notes := m.notes.Drain()
	if len(notes) == 0 {
		return
	}
	last := notes[len(notes)-1]
	m.flash(last.Level, last.Text)
}

// refreshSession picks up the session of the current grid after a reload replaced it.
func (m *model) refreshSession() {
	if s, ok := m.app.Grid(m.currentView(), m.currentQuery()); ok {
		m.session = s
	}
	m.clampCursor()
}
