package tui

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sner-console/internal/action"
	"sner-console/internal/grid"
	"sner-console/internal/notify"
	"sner-console/internal/store"
	"sner-console/internal/views"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	next, cmd := m.update(msg)
	next.absorbNotes()
	return next, cmd
}

func (m model) update(msg tea.Msg) (model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.textarea.SetWidth(modalBodyWidth(msg.Width))
		m.textarea.SetHeight(6)
		m.input.Width = modalBodyWidth(msg.Width) - 2
		m.detail.Width = modalBodyWidth(msg.Width)
		m.detail.Height = max(5, msg.Height-8)
		return m, nil

	case gridOpenedMsg:
		m.busy = false
		if msg.err != nil && msg.session == nil {
			m.flash(notify.LevelError, msg.err.Error())
			return m, nil
		}
		m.session = msg.session
		m.cursor = 0
		m.colCursor = 0
		m.clampCursor()
		return m, nil

	case drawnMsg:
		m.busy = false
		m.clampCursor()
		return m, nil

	case dispatchedMsg:
		m.busy = false
		if m.latch.take() {
			m.closeModal()
		}
		m.refreshSession()
		// Failures were already reported through the notifier.
		if msg.err == nil && msg.outcome == action.OutcomeDone {
			m.flash(notify.LevelInfo, "Done")
		}
		return m, nil

	case annotationMsg:
		m.busy = false
		if msg.err != nil {
			return m, nil
		}
		m.openAnnotate(msg.form)
		return m, nil

	case reloadedMsg:
		m.busy = false
		m.refreshSession()
		if msg.err != nil {
			m.flash(notify.LevelError, msg.err.Error())
		}
		return m, nil

	case quickjumpMsg:
		m.busy = false
		if msg.err != nil {
			m.flash(notify.LevelWarn, notify.Message(msg.err, msg.err.Error()))
			return m, nil
		}
		m.flash(notify.LevelInfo, msg.url)
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}
	return m, nil
}

func (m model) updateKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch m.modal {
	case modalConfirm:
		return m.updateConfirm(msg)
	case modalSearch, modalQuickjump:
		return m.updateInput(msg)
	case modalTagPick:
		return m.updateTagPick(msg)
	case modalFreeTag:
		return m.updateFreeTag(msg)
	case modalAnnotate:
		return m.updateAnnotate(msg)
	case modalControls:
		return m.updateControls(msg)
	case modalDetail:
		return m.updateDetail(msg)
	case modalHelp:
		m.closeModal()
		return m, nil
	}
	return m.updateGrid(msg)
}

func (m *model) closeModal() {
	m.modal = modalNone
	m.pending = nil
	m.tagTarget = ""
	m.annotateDetail = false
	m.annotateForm = nil
	m.input.Blur()
	m.textarea.Blur()
}

func (m model) updateGrid(msg tea.KeyMsg) (model, tea.Cmd) {
	k := m.keys
	if key.Matches(msg, k.Quit) {
		return m, tea.Quit
	}
	if key.Matches(msg, k.Help) {
		m.modal = modalHelp
		return m, nil
	}
	switch {
	case key.Matches(msg, k.NextView):
		return m.switchView(1)
	case key.Matches(msg, k.PrevView):
		return m.switchView(-1)
	case key.Matches(msg, k.Quickjump):
		m.openInput(modalQuickjump, "")
		return m, nil
	}
	if m.session == nil {
		return m, nil
	}
	t := m.session.Table()
	v := m.currentView()

	switch {
	case key.Matches(msg, k.Up):
		m.cursor--
		m.clampCursor()
	case key.Matches(msg, k.Down):
		m.cursor++
		m.clampCursor()
	case key.Matches(msg, k.Left):
		m.moveColumn(-1)
	case key.Matches(msg, k.Right):
		m.moveColumn(1)
	case key.Matches(msg, k.NextPage):
		if t.NextPage() {
			m.busy = true
			return m, m.redrawCmd()
		}
	case key.Matches(msg, k.PrevPage):
		if t.PrevPage() {
			m.busy = true
			return m, m.redrawCmd()
		}
	case key.Matches(msg, k.Sort):
		if err := t.ToggleOrder(m.sortColumn()); err != nil {
			m.flash(notify.LevelWarn, "column is not sortable")
			return m, nil
		}
		m.busy = true
		return m, m.redrawCmd()
	case key.Matches(msg, k.Length):
		if err := t.SetLength(nextLength(t.Info().Length)); err != nil {
			m.flash(notify.LevelWarn, err.Error())
			return m, nil
		}
		m.busy = true
		return m, m.redrawCmd()
	case key.Matches(msg, k.Search):
		m.openInput(modalSearch, t.Search())
	case key.Matches(msg, k.Redraw):
		m.busy = true
		return m, m.redrawCmd()
	case key.Matches(msg, k.ResetAll):
		m.busy = true
		return m, m.resetAllCmd()
	case key.Matches(msg, k.ViaTarget):
		if !v.ViaTarget {
			m.flash(notify.LevelWarn, v.Title+" have no via_target column")
			return m, nil
		}
		m.busy = true
		return m, m.toggleViaTargetCmd()

	case key.Matches(msg, k.Toggle):
		if !v.Selectable {
			m.flash(notify.LevelWarn, v.Title+" have no selection")
			return m, nil
		}
		if _, id, ok := m.cursorRow(); ok {
			m.session.Selection().Toggle(id)
			m.cursor++
			m.clampCursor()
		}
	case key.Matches(msg, k.SelectAll):
		if v.Selectable {
			n := m.session.SelectVisible()
			m.flash(notify.LevelInfo, pluralize(n, "row", "rows")+" selected")
		}
	case key.Matches(msg, k.DeselectAll):
		if v.Selectable {
			n := m.session.DeselectVisible()
			m.flash(notify.LevelInfo, pluralize(n, "row", "rows")+" unselected")
		}
	case key.Matches(msg, k.Tag):
		return m.openTagPick(action.VerbSet)
	case key.Matches(msg, k.Untag):
		return m.openTagPick(action.VerbUnset)
	case key.Matches(msg, k.FreeTag):
		return m.beginFreeTag(action.VerbSet)
	case key.Matches(msg, k.FreeUntag):
		return m.beginFreeTag(action.VerbUnset)
	case key.Matches(msg, k.Delete):
		desc, err := m.app.DeleteDescriptor(v)
		if err != nil {
			m.flash(notify.LevelWarn, err.Error())
			return m, nil
		}
		return m.begin(desc)
	case key.Matches(msg, k.Control):
		if _, id, ok := m.cursorRow(); ok && len(m.session.Controls(id)) > 0 {
			m.modal = modalControls
		}
	case key.Matches(msg, k.Annotate):
		_, id, ok := m.cursorRow()
		if !ok {
			return m, nil
		}
		formURL, err := v.AnnotatePath(m.app.Routes, id)
		if err != nil {
			m.flash(notify.LevelWarn, err.Error())
			return m, nil
		}
		m.annotateDetail = false
		m.busy = true
		return m, m.fetchAnnotationCmd(formURL)
	case key.Matches(msg, k.Detail):
		if row, id, ok := m.cursorRow(); ok {
			m.detail.SetContent(renderMarkdown(m.detailMarkdown(row), m.detail.Width))
			m.detail.GotoTop()
			m.detailID = id
			m.modal = modalDetail
		}
	}
	return m, nil
}

// updateDetail handles the detail view: its own tag and annotate actions
// reload the document instead of redrawing a grid.
func (m model) updateDetail(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	v := m.currentView()
	switch msg.String() {
	case "esc", "enter", "q":
		m.closeModal()
		return m, nil
	case "t", "U":
		if !v.Taggable() {
			m.flash(notify.LevelWarn, v.Title+" cannot be tagged")
			return m, nil
		}
		m.tagVerb = action.VerbSet
		if msg.String() == "U" {
			m.tagVerb = action.VerbUnset
		}
		m.tagTarget = m.detailID
		m.modal = modalTagPick
		return m, nil
	case "a":
		formURL, err := v.AnnotatePath(m.app.Routes, m.detailID)
		if err != nil {
			m.flash(notify.LevelWarn, err.Error())
			return m, nil
		}
		m.annotateDetail = true
		m.busy = true
		return m, m.fetchAnnotationCmd(formURL)
	}
	var cmd tea.Cmd
	m.detail, cmd = m.detail.Update(msg)
	return m, cmd
}

func (m model) switchView(delta int) (model, tea.Cmd) {
	n := len(m.views)
	m.viewIdx = ((m.viewIdx+delta)%n + n) % n
	m.session = nil
	m.busy = true
	return m, m.openGridCmd()
}

func (m *model) moveColumn(delta int) {
	cols := m.visibleColumns()
	if len(cols) == 0 {
		return
	}
	m.colCursor = (m.colCursor + delta + len(cols)) % len(cols)
}

// sortColumn maps the header cursor to the table column index.
func (m model) sortColumn() int {
	cols := m.visibleColumns()
	if m.colCursor < 0 || m.colCursor >= len(cols) {
		return -1
	}
	return cols[m.colCursor]
}

func nextLength(cur int) int {
	for i, n := range store.LengthMenu {
		if n == cur {
			return store.LengthMenu[(i+1)%len(store.LengthMenu)]
		}
	}
	return store.DefaultPageLength
}

func (m *model) openInput(kind modalKind, value string) {
	m.modal = kind
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m model) updateInput(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.String() {
	case "esc", "ctrl+g":
		m.closeModal()
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		kind := m.modal
		m.closeModal()
		if kind == modalQuickjump {
			if value == "" {
				return m, nil
			}
			m.busy = true
			return m, m.quickjumpCmd(value)
		}
		if m.session == nil {
			return m, nil
		}
		m.session.Table().SetSearch(value)
		m.busy = true
		return m, m.redrawCmd()
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// begin starts a dispatch. Confirmed actions open the confirm modal; the
// rest are submitted right away.
func (m model) begin(desc action.Descriptor) (model, tea.Cmd) {
	p, err := m.app.Dispatcher.Begin(m.ctx, desc, m.session, nil)
	if err != nil {
		// An empty selection was already reported by the dispatcher.
		if !errors.Is(err, action.ErrNoSelection) {
			m.flash(notify.LevelError, err.Error())
		}
		m.closeModal()
		return m, nil
	}
	if p.Confirmation() == "" {
		m.closeModal()
		m.busy = true
		return m, m.submitCmd(p)
	}
	m.modal = modalConfirm
	m.pending = p
	m.confirmTitle = desc.Name
	m.confirmFocus = confirmFocusCancel
	return m, nil
}

func (m model) updateConfirm(msg tea.KeyMsg) (model, tea.Cmd) {
	accept := func() (model, tea.Cmd) {
		p := m.pending
		m.closeModal()
		m.busy = true
		return m, m.submitCmd(p)
	}
	decline := func() (model, tea.Cmd) {
		m.pending.Decline()
		m.closeModal()
		return m, nil
	}
	switch msg.String() {
	case "y":
		return accept()
	case "n", "esc", "ctrl+g":
		return decline()
	case "tab", "shift+tab", "left", "right", "h", "l":
		m.confirmFocus = m.confirmFocus.toggle()
	case "enter":
		if m.confirmFocus == confirmFocusConfirm {
			return accept()
		}
		return decline()
	}
	return m, nil
}

func (m model) openTagPick(verb string) (model, tea.Cmd) {
	v := m.currentView()
	if !v.Taggable() {
		m.flash(notify.LevelWarn, v.Title+" cannot be tagged")
		return m, nil
	}
	m.modal = modalTagPick
	m.tagVerb = verb
	return m, nil
}

func (m model) updateTagPick(msg tea.KeyMsg) (model, tea.Cmd) {
	s := msg.String()
	if s == "esc" || s == "ctrl+g" || s == "q" {
		m.closeModal()
		return m, nil
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 1 || i > len(views.QuickTags) {
		return m, nil
	}
	if id := m.tagTarget; id != "" {
		tag, verb := views.QuickTags[i-1], m.tagVerb
		m.closeModal()
		m.busy = true
		return m, m.tagViewCmd(id, tag, verb)
	}
	desc, err := m.app.TagDescriptor(m.currentView(), views.QuickTags[i-1], m.tagVerb)
	if err != nil {
		m.flash(notify.LevelWarn, err.Error())
		m.closeModal()
		return m, nil
	}
	return m.begin(desc)
}

func (m model) beginFreeTag(verb string) (model, tea.Cmd) {
	desc, err := m.app.FreeTagDescriptor(m.currentView(), verb)
	if err != nil {
		m.flash(notify.LevelWarn, err.Error())
		return m, nil
	}
	p, err := m.app.Dispatcher.Begin(m.ctx, desc, m.session, nil)
	if err != nil {
		return m, nil
	}
	m.pending = p
	m.tagVerb = verb
	m.modal = modalFreeTag
	m.textarea.Reset()
	m.textarea.Focus()
	return m, nil
}

func (m model) updateFreeTag(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "esc", "ctrl+g":
		m.pending.Decline()
		m.closeModal()
		return m, nil
	case "ctrl+s":
		m.pending.Set("tag", action.JoinTags(strings.Split(m.textarea.Value(), "\n")))
		m.busy = true
		// The modal stays open until the dispatcher closes it.
		return m, m.submitCmd(m.pending)
	}
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *model) openAnnotate(form *action.Form) {
	m.annotateForm = form
	m.annotateTags = ""
	if len(form.TagFields) > 0 {
		m.annotateTags = form.TagFields[0]
	}
	m.modal = modalAnnotate
	m.textarea.SetValue(form.Fields.Get(m.annotateTags))
	m.input.SetValue(form.Fields.Get("comment"))
	m.annotateFocus = annotateFocusTags
	if m.annotateTags == "" {
		m.annotateFocus = annotateFocusComment
	}
	m.focusAnnotate()
}

func (m *model) focusAnnotate() {
	if m.annotateFocus == annotateFocusTags {
		m.input.Blur()
		m.textarea.Focus()
		return
	}
	m.textarea.Blur()
	m.input.Focus()
}

func (m model) annotateValues() url.Values {
	values := m.annotateForm.Values()
	if m.annotateTags != "" {
		values.Set(m.annotateTags, action.JoinTags(strings.Split(m.textarea.Value(), "\n")))
	}
	if _, ok := m.annotateForm.Fields["comment"]; ok {
		values.Set("comment", m.input.Value())
	}
	return values
}

func (m model) updateAnnotate(msg tea.KeyMsg) (model, tea.Cmd) {
	if m.busy {
		return m, nil
	}
	switch msg.String() {
	case "esc", "ctrl+g":
		m.closeModal()
		return m, nil
	case "tab", "shift+tab":
		if m.annotateTags != "" {
			if m.annotateFocus == annotateFocusTags {
				m.annotateFocus = annotateFocusComment
			} else {
				m.annotateFocus = annotateFocusTags
			}
			m.focusAnnotate()
		}
		return m, nil
	case "ctrl+s":
		m.busy = true
		return m, m.submitAnnotationCmd(m.annotateForm, m.annotateValues())
	}
	var cmd tea.Cmd
	if m.annotateFocus == annotateFocusTags {
		m.textarea, cmd = m.textarea.Update(msg)
	} else {
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m model) updateControls(msg tea.KeyMsg) (model, tea.Cmd) {
	s := msg.String()
	if s == "esc" || s == "ctrl+g" || s == "q" {
		m.closeModal()
		return m, nil
	}
	_, id, ok := m.cursorRow()
	if !ok {
		m.closeModal()
		return m, nil
	}
	i, err := strconv.Atoi(s)
	controls := m.session.Controls(id)
	if err != nil || i < 1 || i > len(controls) {
		return m, nil
	}
	ctl := controls[i-1]
	if ctl.Kind == grid.ControlLink {
		m.closeModal()
		m.flash(notify.LevelInfo, fmt.Sprintf("%s: %s", ctl.Label, m.app.Client.Resolve(ctl.URL)))
		return m, nil
	}
	if ctl.Kind == grid.ControlDelete {
		return m.begin(action.DeleteRow(ctl.URL, ctl.Confirmation, string(id)))
	}
	return m.begin(action.DataURL(ctl.URL, ctl.Confirmation))
}
