package grid

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"sner-console/internal/store"
)

// fakeServer serves rows page by page, filtered by the search value.
type fakeServer struct {
	mu       sync.Mutex
	rows     []Row
	requests []FetchRequest
	fail     error
	errMsg   string
}

func newFakeServer(ids ...int) *fakeServer {
	f := &fakeServer{}
	for _, id := range ids {
		f.rows = append(f.rows, Row{"id": json.Number(strconv.Itoa(id)), "address": "10.0.0." + strconv.Itoa(id)})
	}
	return f
}

func (f *fakeServer) remove(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.rows[:0]
	for _, r := range f.rows {
		if rid, _ := r.ID(); string(rid) != id {
			out = append(out, r)
		}
	}
	f.rows = out
}

func (f *fakeServer) Fetch(_ context.Context, _ string, req FetchRequest) (*FetchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.fail != nil {
		return nil, f.fail
	}
	if f.errMsg != "" {
		return &FetchResponse{Draw: req.Draw, Error: f.errMsg}, nil
	}
	var matched []Row
	for _, r := range f.rows {
		if req.Search == "" || strings.Contains(r.String("address"), req.Search) {
			matched = append(matched, r)
		}
	}
	end := req.Start + req.Length
	if end > len(matched) {
		end = len(matched)
	}
	var page []Row
	if req.Start < len(matched) {
		page = matched[req.Start:end]
	}
	return &FetchResponse{
		Draw:            req.Draw,
		RecordsTotal:    len(f.rows),
		RecordsFiltered: len(matched),
		Data:            page,
	}, nil
}

func (f *fakeServer) last() FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeServer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func hostColumns() []Column {
	return []Column{
		SelectColumn(),
		DataColumn("id"),
		DataColumn("address"),
		ActionsColumn(nil, func(r Row) []Control {
			return []Control{
				{Label: "edit", Kind: ControlLink, URL: "/storage/host/edit/" + r.String("id")},
				{Label: "delete", Kind: ControlDelete, URL: "/storage/host/delete/" + r.String("id")},
			}
		}),
	}
}

type memStates struct {
	mu     sync.Mutex
	states map[string]store.GridState
	saves  int
}

func (m *memStates) Load(_ context.Context, id string, vk store.ViewKey) (store.GridState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.states[id+vk.String()]
	return st, ok
}

func (m *memStates) Save(_ context.Context, id string, vk store.ViewKey, st store.GridState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = map[string]store.GridState{}
	}
	m.states[id+vk.String()] = st
	m.saves++
	return nil
}
