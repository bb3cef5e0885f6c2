package grid

import (
	"testing"

	"sner-console/internal/store"
)

type staticRows struct {
	rows []Row
	w    Window
}

func (s staticRows) Rows() []Row    { return s.rows }
func (s staticRows) Window() Window { return s.w }

func rowsOf(ids ...string) []Row {
	out := make([]Row, len(ids))
	for i, id := range ids {
		out[i] = Row{"id": id}
	}
	return out
}

func TestSelection_ExportEmpty(t *testing.T) {
	t.Parallel()

	if got := NewSelection().ExportRequestFields(); len(got) != 0 {
		t.Fatalf("export: got %v want empty", got)
	}
}

func TestSelection_VisibleHelpers(t *testing.T) {
	t.Parallel()

	page := staticRows{rows: rowsOf("a", "b", "c"), w: Window{Length: 3}}
	s := NewSelection()
	s.Reconcile(page.w, page.rows, 3)
	s.Select("b")

	if n := s.SelectVisible(page); n != 2 {
		t.Fatalf("SelectVisible added %d want 2", n)
	}
	ids := s.IDs()
	if len(ids) != 3 || ids[0] != "b" || ids[1] != "a" || ids[2] != "c" {
		t.Fatalf("discovery order: got %v", ids)
	}
	if n := s.DeselectVisible(page); n != 3 || s.Len() != 0 {
		t.Fatalf("DeselectVisible removed %d, left %d", n, s.Len())
	}
}

func TestSelection_Toggle(t *testing.T) {
	t.Parallel()

	s := NewSelection()
	if !s.Toggle("1") || !s.IsSelected("1") {
		t.Fatalf("toggle on failed")
	}
	if s.Toggle("1") || s.IsSelected("1") {
		t.Fatalf("toggle off failed")
	}
	s.Select("")
	if s.Len() != 0 {
		t.Fatalf("empty id must not be selected")
	}
}

func TestSelection_UnseenIDKeptUntilWholeResultShown(t *testing.T) {
	t.Parallel()

	w := Window{Length: 10, Query: "q1"}
	s := NewSelection()
	s.Reconcile(w, rowsOf("1"), 40)
	s.Select("42")

	if pruned := s.Reconcile(w, rowsOf("1"), 40); len(pruned) != 0 {
		t.Fatalf("same-window redraw pruned %v", pruned)
	}
	if pruned := s.Reconcile(Window{Length: 10, Query: "q2"}, rowsOf("1"), 40); len(pruned) != 0 {
		t.Fatalf("query change with more pages pruned %v", pruned)
	}
	if pruned := s.Reconcile(Window{Length: 10, Query: "q3"}, rowsOf("1"), 1); len(pruned) != 1 || pruned[0] != "42" {
		t.Fatalf("whole result set shown: pruned %v want [42]", pruned)
	}
}

func TestSelection_KnownIDKeptWhenLayoutChanges(t *testing.T) {
	t.Parallel()

	page2 := Window{Start: 2, Length: 2}
	s := NewSelection()
	s.Reconcile(page2, rowsOf("9", "15"), 4)
	s.Select("15")

	if pruned := s.Reconcile(Window{Length: 2, Query: "10.0"}, rowsOf("5", "6"), 4); len(pruned) != 0 {
		t.Fatalf("search change pruned %v", pruned)
	}
	// Position unknown now; a redraw of the old window no longer proves anything.
	if pruned := s.Reconcile(Window{Start: 2, Length: 2, Query: "10.0"}, rowsOf("9"), 3); len(pruned) != 0 {
		t.Fatalf("redraw of other page pruned %v", pruned)
	}
	if !s.IsSelected("15") {
		t.Fatalf("15 should still be selected")
	}
}

func TestSelection_Forget(t *testing.T) {
	t.Parallel()

	s := NewSelection()
	s.Select("1")
	s.Select("2")
	s.Select("3")
	s.Forget("2", "7")
	if ids := s.IDs(); len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
		t.Fatalf("ids after forget: got %v want [1 3]", ids)
	}
}

func TestTable_RejectsInvalidLengthAndOrder(t *testing.T) {
	t.Parallel()

	tbl := NewTable("t", "/x", newFakeServer(), hostColumns(), Options{})
	if err := tbl.SetLength(7); err == nil {
		t.Fatalf("expected error for length 7")
	}
	if err := tbl.SetLength(50); err != nil {
		t.Fatalf("SetLength(50): %v", err)
	}
	if err := tbl.SetOrder(0, OrderAsc); err == nil {
		t.Fatalf("select column must not be orderable")
	}
	// Default order is the first orderable column ascending; toggling flips it.
	if err := tbl.ToggleOrder(1); err != nil {
		t.Fatalf("ToggleOrder: %v", err)
	}
	if o := tbl.Order(); len(o) != 1 || o[0] != (store.OrderSpec{Column: 1, Dir: OrderDesc}) {
		t.Fatalf("order after toggle: got %v", o)
	}
}
