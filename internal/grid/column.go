package grid

import (
	"strings"
	"unicode"

	xansi "github.com/charmbracelet/x/ansi"
)

type ColumnKind int

const (
	KindData ColumnKind = iota
	// KindSelect is the selection checkbox column.
	KindSelect
	// KindActions holds per-row controls (edit, delete, ...).
	KindActions
)

const (
	SelectColumnName  = "_select"
	ActionsColumnName = "_buttons"
)

// RenderFunc turns a row into the cell content of a custom-rendered column.
type RenderFunc func(Row) string

type ControlKind int

const (
	ControlLink ControlKind = iota
	// ControlDelete submits to URL after a "Really delete?" confirmation.
	ControlDelete
	// ControlSubmit submits to URL after its own confirmation.
	ControlSubmit
)

// Control is one per-row button of an actions column.
type Control struct {
	Label        string
	Title        string
	Kind         ControlKind
	URL          string
	Confirmation string
}

type ControlsFunc func(Row) []Control

type Column struct {
	Name       string
	Title      string
	Data       string
	Kind       ColumnKind
	Orderable  bool
	Searchable bool
	Visible    bool
	Render     RenderFunc
	Controls   ControlsFunc
}

type ColumnOption func(*Column)

func WithTitle(title string) ColumnOption {
	return func(c *Column) { c.Title = title }
}

func WithRender(fn RenderFunc) ColumnOption {
	return func(c *Column) { c.Render = fn }
}

func NotOrderable() ColumnOption {
	return func(c *Column) { c.Orderable = false }
}

func NotSearchable() ColumnOption {
	return func(c *Column) { c.Searchable = false }
}

func Visible(v bool) ColumnOption {
	return func(c *Column) { c.Visible = v }
}

// DataColumn is an orderable column rendered as plain text unless WithRender is given.
func DataColumn(name string, opts ...ColumnOption) Column {
	c := Column{Name: name, Title: name, Data: name, Kind: KindData, Orderable: true, Searchable: true, Visible: true}
	for _, o := range opts {
		o(&c)
	}
	return c
}

func SelectColumn() Column {
	return Column{Name: SelectColumnName, Title: "", Kind: KindSelect, Visible: true}
}

func ActionsColumn(render RenderFunc, controls ControlsFunc, opts ...ColumnOption) Column {
	c := Column{
		Name:     ActionsColumnName,
		Title:    ActionsColumnName,
		Data:     ActionsColumnName,
		Kind:     KindActions,
		Visible:  true,
		Render:   render,
		Controls: controls,
	}
	for _, o := range opts {
		o(&c)
	}
	c.Orderable = false
	c.Searchable = false
	return c
}

// RenderText is the default data cell renderer: the value as inert text, with
// terminal escape sequences stripped and control characters flattened to spaces.
func RenderText(v any) string {
	s := xansi.Strip(valueString(v))
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

// Cell renders the column for row. Select columns render empty; the widget draws the checkbox.
func (c Column) Cell(row Row) string {
	switch {
	case c.Kind == KindSelect:
		return ""
	case c.Render != nil:
		return c.Render(row)
	case c.Data == "":
		return ""
	default:
		return RenderText(row[c.Data])
	}
}
