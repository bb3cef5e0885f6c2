package tui

import (
	"net/url"

	"sner-console/internal/action"
	"sner-console/internal/grid"

	tea "github.com/charmbracelet/bubbletea"
)

type gridOpenedMsg struct {
	session *grid.Session
	err     error
}

type drawnMsg struct{ err error }

type dispatchedMsg struct {
	outcome action.Outcome
	err     error
}

type annotationMsg struct {
	form *action.Form
	err  error
}

type reloadedMsg struct{ err error }

type quickjumpMsg struct {
	url string
	err error
}

// openGridCmd reuses an already open grid (redrawing it) or opens it.
func (m model) openGridCmd() tea.Cmd {
	ctx, a, v, q := m.ctx, m.app, m.currentView(), m.currentQuery()
	return func() tea.Msg {
		if s, ok := a.Grid(v, q); ok {
			err := s.Redraw(ctx)
			return gridOpenedMsg{session: s, err: err}
		}
		s, err := a.OpenGrid(ctx, v, q)
		return gridOpenedMsg{session: s, err: err}
	}
}

func (m model) redrawCmd() tea.Cmd {
	ctx, s := m.ctx, m.session
	if s == nil {
		return nil
	}
	return func() tea.Msg {
		return drawnMsg{err: s.Redraw(ctx)}
	}
}

func (m model) submitCmd(p *action.Pending) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		out, err := p.Submit(ctx)
		return dispatchedMsg{outcome: out, err: err}
	}
}

func (m model) fetchAnnotationCmd(formURL string) tea.Cmd {
	ctx, surface := m.ctx, m.app.Surface
	return func() tea.Msg {
		f, err := surface.FetchAnnotation(ctx, formURL)
		return annotationMsg{form: f, err: err}
	}
}

// submitAnnotationCmd posts the annotate form. A row annotation redraws the
// grid; a detail view annotation reloads.
func (m model) submitAnnotationCmd(form *action.Form, values url.Values) tea.Cmd {
	ctx, surface := m.ctx, m.app.Surface
	var g action.Grid
	if !m.annotateDetail && m.session != nil {
		g = m.session
	}
	return func() tea.Msg {
		out, err := surface.SubmitAnnotation(ctx, form, values, g)
		return dispatchedMsg{outcome: out, err: err}
	}
}

func (m model) tagViewCmd(id grid.ID, tag, verb string) tea.Cmd {
	ctx, a, v := m.ctx, m.app, m.currentView()
	return func() tea.Msg {
		out, err := a.TagView(ctx, v, id, tag, verb)
		return dispatchedMsg{outcome: out, err: err}
	}
}

func (m model) resetAllCmd() tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		n, err := a.ResetAll(ctx)
		if err == nil {
			a.Notifier.Info(pluralize(n, "grid state", "grid states") + " cleared")
		}
		return reloadedMsg{err: err}
	}
}

func (m model) toggleViaTargetCmd() tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		on, err := a.ToggleViaTarget(ctx)
		if err == nil {
			state := "hidden"
			if on {
				state = "shown"
			}
			a.Notifier.Info("via_target column " + state)
		}
		return reloadedMsg{err: err}
	}
}

func (m model) quickjumpCmd(term string) tea.Cmd {
	ctx, a := m.ctx, m.app
	return func() tea.Msg {
		u, err := a.Quickjump(ctx, term)
		return quickjumpMsg{url: u, err: err}
	}
}
