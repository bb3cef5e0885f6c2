package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up, Down, Left, Right key.Binding
	NextPage, PrevPage    key.Binding
	Sort, Length          key.Binding
	Search                key.Binding
	NextView, PrevView    key.Binding

	Toggle, SelectAll, DeselectAll key.Binding
	Tag, Untag                     key.Binding
	FreeTag, FreeUntag             key.Binding
	Delete                         key.Binding
	Control                        key.Binding
	Annotate                       key.Binding
	Detail                         key.Binding

	Redraw, ResetAll, ViaTarget key.Binding
	Quickjump                   key.Binding
	Help, Quit                  key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Left:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "column")),
		Right:     key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "column")),
		NextPage:  key.NewBinding(key.WithKeys("n", "pgdown"), key.WithHelp("n", "next page")),
		PrevPage:  key.NewBinding(key.WithKeys("p", "pgup"), key.WithHelp("p", "prev page")),
		Sort:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort column")),
		Length:    key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "page length")),
		Search:    key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		NextView:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next grid")),
		PrevView:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev grid")),
		Toggle:    key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		SelectAll: key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select page")),
		DeselectAll: key.NewBinding(
			key.WithKeys("A"), key.WithHelp("A", "unselect page"),
		),
		Tag:       key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "tag")),
		Untag:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "untag")),
		FreeTag:   key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "tag…")),
		FreeUntag: key.NewBinding(key.WithKeys("U"), key.WithHelp("U", "untag…")),
		Delete:    key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete selected")),
		Control:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "row actions")),
		Annotate:  key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "annotate")),
		Detail:    key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "detail")),
		Redraw:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "redraw")),
		ResetAll:  key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset all grids")),
		ViaTarget: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "via_target")),
		Quickjump: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "quickjump")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Tag, k.FreeTag, k.Delete, k.Search, k.NextPage, k.Sort, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right, k.NextPage, k.PrevPage, k.Sort, k.Length},
		{k.Toggle, k.SelectAll, k.DeselectAll, k.Tag, k.Untag, k.FreeTag, k.FreeUntag, k.Delete},
		{k.Control, k.Annotate, k.Detail, k.Search, k.Quickjump},
		{k.NextView, k.PrevView, k.Redraw, k.ResetAll, k.ViaTarget, k.Help, k.Quit},
	}
}
