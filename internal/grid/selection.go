package grid

import (
	"net/url"
	"strconv"
	"sync"
)

// RowSource is the narrow read view the selection needs of a grid.
type RowSource interface {
	Rows() []Row
	Window() Window
}

// Window identifies where a page of rows came from: its offset and length,
// the sort order and the search/filter query.
type Window struct {
	Start  int
	Length int
	Order  string
	Query  string
}

type selEntry struct {
	window Window
	// known is set once the id has been seen in a drawn page.
	known bool
}

// Selection is the set of selected entity ids of one grid, kept in discovery
// order and independent of the visible page.
//
// Ids are dropped by Reconcile when a redraw shows they left the result set,
// and by Forget when an action removed them.
type Selection struct {
	mu      sync.Mutex
	order   []ID
	entries map[ID]*selEntry

	visible map[ID]bool
	current Window
}

func NewSelection() *Selection {
	return &Selection{entries: map[ID]*selEntry{}, visible: map[ID]bool{}}
}

func (s *Selection) Select(id ID) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectLocked(id)
}

func (s *Selection) selectLocked(id ID) {
	if _, ok := s.entries[id]; ok {
		return
	}
	e := &selEntry{window: Window{Query: s.current.Query}}
	if s.visible[id] {
		e.window = s.current
		e.known = true
	}
	s.entries[id] = e
	s.order = append(s.order, id)
}

func (s *Selection) Deselect(id ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deselectLocked(id)
}

func (s *Selection) deselectLocked(id ID) {
	if _, ok := s.entries[id]; !ok {
		return
	}
	delete(s.entries, id)
	for i, x := range s.order {
		if x == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Toggle flips id and reports whether it is selected afterwards.
func (s *Selection) Toggle(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; ok {
		s.deselectLocked(id)
		return false
	}
	s.selectLocked(id)
	return true
}

func (s *Selection) IsSelected(id ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[id]
	return ok
}

// IDs returns the selected ids in discovery order.
func (s *Selection) IDs() []ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ID(nil), s.order...)
}

func (s *Selection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Selection) Clear() {
	s.mu.Lock()
	s.order = nil
	s.entries = map[ID]*selEntry{}
	s.mu.Unlock()
}

// SelectVisible marks every row of the displayed page.
func (s *Selection) SelectVisible(src RowSource) int {
	rows := src.Rows()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range rows {
		if id, ok := r.ID(); ok {
			if _, had := s.entries[id]; !had {
				n++
			}
			s.selectLocked(id)
		}
	}
	return n
}

// DeselectVisible unmarks every row of the displayed page.
func (s *Selection) DeselectVisible(src RowSource) int {
	rows := src.Rows()
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range rows {
		if id, ok := r.ID(); ok {
			if _, had := s.entries[id]; had {
				n++
			}
			s.deselectLocked(id)
		}
	}
	return n
}

// ExportRequestFields encodes the whole selection as ids-0..ids-N.
func (s *Selection) ExportRequestFields() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := url.Values{}
	for i, id := range s.order {
		v.Set("ids-"+strconv.Itoa(i), string(id))
	}
	return v
}

// Forget drops ids the server no longer has, e.g. after a delete.
func (s *Selection) Forget(ids ...ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.deselectLocked(id)
	}
}

// Reconcile records the rows of a finished draw of w, whose result set holds
// filtered records, and prunes ids that provably left it. It returns the
// pruned ids.
//
// An id is gone when the drawn page holds the whole result set without it,
// or when the page it was last seen on was redrawn without it. An id whose
// page changed meaning (new query, order or length, or a page past the end)
// is kept with an unknown position.
func (s *Selection) Reconcile(w Window, rows []Row, filtered int) []ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = w
	s.visible = make(map[ID]bool, len(rows))
	for _, r := range rows {
		if id, ok := r.ID(); ok {
			s.visible[id] = true
		}
	}
	whole := w.Start == 0 && len(rows) >= filtered

	var pruned []ID
	kept := s.order[:0]
	for _, id := range s.order {
		e := s.entries[id]
		drop := false
		switch {
		case s.visible[id]:
			e.window = w
			e.known = true
		case whole:
			drop = true
		case !e.known:
			// unseen ids wait for a page that shows the whole result set
		case e.window == w:
			drop = true
		case !sameLayout(e.window, w) || e.window.Start >= filtered:
			e.window = Window{Query: w.Query}
			e.known = false
		}
		if drop {
			delete(s.entries, id)
			pruned = append(pruned, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return pruned
}

func sameLayout(a, b Window) bool {
	return a.Query == b.Query && a.Order == b.Order && a.Length == b.Length
}
