package tui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"sner-console/internal/action"
	"sner-console/internal/grid"
	"sner-console/internal/notify"
	"sner-console/internal/views"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

const (
	maxColumnWidth = 32
	selectMarkOn   = "[x]"
	selectMarkOff  = "[ ]"
)

func (m model) View() string {
	w, h := m.width, m.height
	if w <= 0 {
		w = 100
	}
	if h <= 0 {
		h = 30
	}
	if box := m.modalView(w); box != "" {
		return overlay(w, h, box)
	}

	header := m.titleBar()
	footer := m.footer()
	mini := m.minibufferView()
	helpLine := m.help.ShortHelpView(m.keys.ShortHelp())
	bodyH := h - 1 - lipgloss.Height(footer) - 1 - 1
	body := normalizePane(m.gridView(), w, bodyH)
	return strings.Join([]string{
		normalizePane(header, w, 1),
		body,
		normalizePane(footer, w, lipgloss.Height(footer)),
		normalizePane(mini, w, 1),
		normalizePane(helpLine, w, 1),
	}, "\n")
}

func (m model) titleBar() string {
	var tabs []string
	for i, v := range m.views {
		if i == m.viewIdx {
			tabs = append(tabs, styleTitle().Render(v.Title))
			continue
		}
		tabs = append(tabs, styleMuted().Render(v.Title))
	}
	bar := strings.Join(tabs, " ")
	if m.busy {
		bar += "  " + styleMuted().Render("loading…")
	}
	return bar
}

// columnWidths sizes each visible column to its widest header or cell.
func (m model) columnWidths(cols []int, rows []grid.Row) []int {
	t := m.session.Table()
	all := t.Columns()
	widths := make([]int, len(cols))
	for i, ci := range cols {
		c := all[ci]
		if c.Kind == grid.KindSelect {
			widths[i] = xansi.StringWidth(selectMarkOn)
			continue
		}
		w := xansi.StringWidth(c.Title) + 2
		for _, r := range rows {
			if cw := xansi.StringWidth(c.Cell(r)); cw > w {
				w = cw
			}
		}
		widths[i] = min(w, maxColumnWidth)
	}
	return widths
}

func (m model) gridView() string {
	if m.session == nil {
		return styleMuted().Render("no grid open")
	}
	t := m.session.Table()
	if err := t.Err(); err != nil && len(t.Rows()) == 0 {
		return lipgloss.NewStyle().Foreground(colorError).Render(notify.Message(err, "Request failed"))
	}
	rows := t.Rows()
	cols := m.visibleColumns()
	widths := m.columnWidths(cols, rows)
	all := t.Columns()

	orderCol, dir := -1, ""
	if o := t.Order(); len(o) > 0 {
		orderCol, dir = o[0].Column, o[0].Dir
	}

	head := make([]string, len(cols))
	for i, ci := range cols {
		title := all[ci].Title
		if all[ci].Kind == grid.KindSelect || all[ci].Kind == grid.KindActions {
			title = ""
		}
		if ci == orderCol {
			if dir == grid.OrderDesc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		st := styleHeader()
		if i == m.colCursor {
			st = st.Underline(true)
		}
		head[i] = st.Render(fitCell(title, widths[i]))
	}

	lines := []string{strings.Join(head, " ")}
	if len(rows) == 0 {
		lines = append(lines, styleMuted().Render("No data available in table"))
	}
	sel := m.session.Selection()
	for ri, r := range rows {
		id, _ := r.ID()
		marked := m.currentView().Selectable && sel.IsSelected(id)
		cells := make([]string, len(cols))
		for i, ci := range cols {
			c := all[ci]
			if c.Kind == grid.KindSelect {
				mark := selectMarkOff
				if marked {
					mark = styleMarked().Render(selectMarkOn)
				}
				cells[i] = fitCell(mark, widths[i])
				continue
			}
			cells[i] = fitCell(c.Cell(r), widths[i])
		}
		line := strings.Join(cells, " ")
		if ri == m.cursor {
			line = styleCursorRow().Render(xansi.Strip(line))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// footer mirrors the console's info and pagination lines.
func (m model) footer() string {
	if m.session == nil {
		return ""
	}
	t := m.session.Table()
	info := t.Info()
	var b strings.Builder
	if info.RecordsDisplay == 0 {
		b.WriteString("Showing 0 to 0 of 0 entries")
	} else {
		fmt.Fprintf(&b, "Showing %d to %d of %d entries", info.Start+1, info.End, info.RecordsDisplay)
	}
	if info.RecordsDisplay != info.RecordsTotal {
		fmt.Fprintf(&b, " (filtered from %d total entries)", info.RecordsTotal)
	}
	if t.PaginationVisible() {
		fmt.Fprintf(&b, "  ·  page %d/%d", info.Page+1, info.Pages)
	}
	fmt.Fprintf(&b, "  ·  %d per page", info.Length)
	if m.currentView().Selectable {
		fmt.Fprintf(&b, "  ·  %d selected", m.session.Selection().Len())
	}
	if s := t.Search(); s != "" {
		fmt.Fprintf(&b, "  ·  search: %s", s)
	}
	if q := m.currentQuery(); q != "" {
		fmt.Fprintf(&b, "  ·  %s", q)
	}
	return styleMuted().Render(b.String())
}

func (m model) minibufferView() string {
	if m.minibuffer == "" {
		return ""
	}
	st := lipgloss.NewStyle()
	switch m.minibufferLevel {
	case notify.LevelWarn:
		st = st.Foreground(colorWarn)
	case notify.LevelError:
		st = st.Foreground(colorError).Bold(true)
	}
	return st.Render(m.minibuffer)
}

func (m model) modalView(width int) string {
	bodyW := modalBodyWidth(width)
	switch m.modal {
	case modalConfirm:
		if m.pending == nil {
			return ""
		}
		return renderConfirmModal(width, m.confirmTitle, m.pending.Confirmation(), "OK", "Cancel", m.confirmFocus)
	case modalSearch:
		return renderModalBox(width, "Search", m.input.View())
	case modalQuickjump:
		return renderModalBox(width, "Quick jump", m.input.View()+"\n\n"+styleMuted().Render("address, hostname or address:port"))
	case modalTagPick:
		title := "Tag selected"
		if m.tagVerb == action.VerbUnset {
			title = "Untag selected"
		}
		if m.tagTarget != "" {
			title = strings.Replace(title, "selected", string(m.tagTarget), 1)
		}
		var lines []string
		for i, tag := range views.QuickTags {
			lines = append(lines, fmt.Sprintf("%d  %s", i+1, m.app.Registry.RenderFunc("storage.tag_labels")(grid.Row{"tags": []any{tag}})))
		}
		lines = append(lines, "", styleMuted().Render("1-"+strconv.Itoa(len(views.QuickTags))+": pick   esc: cancel"))
		return renderModalBox(width, title, strings.Join(lines, "\n"))
	case modalFreeTag:
		return renderModalBox(width, action.FreeTagTitle(m.tagVerb), m.textarea.View()+"\n\n"+m.modalHint("ctrl+s: save   esc: cancel"))
	case modalAnnotate:
		var parts []string
		if m.annotateTags != "" {
			parts = append(parts, styleHeader().Render("Tags"), m.textarea.View(), "")
		}
		parts = append(parts, styleHeader().Render("Comment"), m.input.View(), "", m.modalHint("tab: field   ctrl+s: save   esc: cancel"))
		return renderModalBox(width, "Annotate", strings.Join(parts, "\n"))
	case modalControls:
		_, id, ok := m.cursorRow()
		if !ok {
			return ""
		}
		var lines []string
		for i, c := range m.session.Controls(id) {
			lines = append(lines, fmt.Sprintf("%d  %s", i+1, c.Label))
		}
		lines = append(lines, "", styleMuted().Render("number: run   esc: cancel"))
		return renderModalBox(width, "Row "+string(id), strings.Join(lines, "\n"))
	case modalDetail:
		hint := m.modalHint(m.detailHint())
		return renderModalBox(width, m.currentView().Title+" detail", normalizePane(m.detail.View(), bodyW, 0)+"\n\n"+hint)
	case modalHelp:
		return renderModalBox(width, "Keys", m.help.FullHelpView(m.keys.FullHelp()))
	}
	return ""
}

func (m model) detailHint() string {
	v := m.currentView()
	var parts []string
	if v.Taggable() {
		parts = append(parts, "t: tag", "U: untag")
	}
	if v.Annotable() {
		parts = append(parts, "a: annotate")
	}
	return strings.Join(append(parts, "esc: close"), "   ")
}

func (m model) modalHint(s string) string {
	if m.busy {
		return styleMuted().Render("submitting…")
	}
	return styleMuted().Render(s)
}

// detailMarkdown renders the view's detail template, or lists the row's fields.
func (m model) detailMarkdown(row grid.Row) string {
	v := m.currentView()
	if v.Detail != "" {
		if out, err := m.app.Registry.Render(v.Detail, row); err == nil {
			return out
		}
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString("| field | value |\n|---|---|\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "| %s | %s |\n", k, strings.ReplaceAll(grid.RenderText(row[k]), "|", "\\|"))
	}
	return b.String()
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
