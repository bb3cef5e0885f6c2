package grid

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"sner-console/internal/store"
)

type DrawMode int

const (
	// DrawHold re-fetches the current page.
	DrawHold DrawMode = iota
	// DrawReset re-fetches from the first page (after search/order/length changes).
	DrawReset
)

const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// ErrStaleDraw reports a response that lost the race against a newer draw.
var ErrStaleDraw = errors.New("stale draw discarded")

type PageInfo struct {
	Page           int
	Pages          int
	Start          int
	End            int
	Length         int
	RecordsTotal   int
	RecordsDisplay int
}

type Options struct {
	PageLength int
	LengthMenu []int
	Order      []store.OrderSpec
	Params     url.Values
}

// Table is the headless server-side paginated grid widget.
//
// It holds the request parameters (page, order, search) and the last page of
// rows, and exposes lifecycle hooks around each fetch. Methods are safe for
// concurrent use; fetches run without holding the lock.
type Table struct {
	mu       sync.Mutex
	id       string
	endpoint string
	fetcher  Fetcher
	columns  []Column
	opts     Options

	start      int
	length     int
	order      []store.OrderSpec
	search     string
	colVisible []bool

	drawSeq           int
	rows              []Row
	info              PageInfo
	window            Window
	err               error
	paginationVisible bool

	preFetch  []func(*FetchRequest)
	onDraw    []func(context.Context, *Table)
	stateSave func(context.Context, store.GridState)
}

func NewTable(id, endpoint string, f Fetcher, columns []Column, opts Options) *Table {
	if len(opts.LengthMenu) == 0 {
		opts.LengthMenu = store.LengthMenu
	}
	if opts.PageLength <= 0 {
		opts.PageLength = store.DefaultPageLength
	}
	vis := make([]bool, len(columns))
	for i, c := range columns {
		vis[i] = c.Visible
	}
	t := &Table{
		id:                id,
		endpoint:          endpoint,
		fetcher:           f,
		columns:           append([]Column(nil), columns...),
		opts:              opts,
		length:            opts.PageLength,
		order:             append([]store.OrderSpec(nil), opts.Order...),
		colVisible:        vis,
		paginationVisible: true,
	}
	if len(t.order) == 0 {
		if idx := t.firstOrderable(); idx >= 0 {
			t.order = []store.OrderSpec{{Column: idx, Dir: OrderAsc}}
		}
	}
	return t
}

func (t *Table) firstOrderable() int {
	for i, c := range t.columns {
		if c.Orderable {
			return i
		}
	}
	return -1
}

func (t *Table) ID() string       { return t.id }
func (t *Table) Endpoint() string { return t.endpoint }

func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// ColumnIndex returns the index of the column named name, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

func (t *Table) ColumnVisible(i int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return i >= 0 && i < len(t.colVisible) && t.colVisible[i]
}

func (t *Table) OnPreFetch(fn func(*FetchRequest)) {
	t.mu.Lock()
	t.preFetch = append(t.preFetch, fn)
	t.mu.Unlock()
}

func (t *Table) OnDraw(fn func(context.Context, *Table)) {
	t.mu.Lock()
	t.onDraw = append(t.onDraw, fn)
	t.mu.Unlock()
}

func (t *Table) OnStateSave(fn func(context.Context, store.GridState)) {
	t.mu.Lock()
	t.stateSave = fn
	t.mu.Unlock()
}

func (t *Table) State() store.GridState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

func (t *Table) stateLocked() store.GridState {
	cols := make([]store.ColumnState, len(t.colVisible))
	for i, v := range t.colVisible {
		cols[i] = store.ColumnState{Visible: v}
	}
	return store.GridState{
		Start:   t.start,
		Length:  t.length,
		Order:   append([]store.OrderSpec(nil), t.order...),
		Search:  t.search,
		Columns: cols,
	}
}

// ApplyState restores a saved state. Parts that don't fit the current column
// layout or length menu are ignored.
func (t *Table) ApplyState(st store.GridState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.validLength(st.Length) {
		t.length = st.Length
	}
	if st.Start >= 0 {
		t.start = st.Start - st.Start%t.length
	}
	var order []store.OrderSpec
	for _, o := range st.Order {
		if o.Column < 0 || o.Column >= len(t.columns) || !t.columns[o.Column].Orderable {
			continue
		}
		if o.Dir != OrderAsc && o.Dir != OrderDesc {
			continue
		}
		order = append(order, o)
	}
	if len(order) > 0 {
		t.order = order
	}
	t.search = st.Search
	if len(st.Columns) == len(t.columns) {
		for i, c := range st.Columns {
			t.colVisible[i] = c.Visible
		}
	}
}

func (t *Table) validLength(n int) bool {
	for _, v := range t.opts.LengthMenu {
		if v == n {
			return true
		}
	}
	return false
}

func (t *Table) SetPage(page int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if page < 0 {
		page = 0
	}
	t.start = page * t.length
}

// NextPage advances one page if the last draw reported more pages.
func (t *Table) NextPage() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.info.Pages == 0 || t.info.Page+1 >= t.info.Pages {
		return false
	}
	t.start += t.length
	return true
}

func (t *Table) PrevPage() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.start == 0 {
		return false
	}
	t.start -= t.length
	if t.start < 0 {
		t.start = 0
	}
	return true
}

// SetOrder sorts by a single column; non-orderable columns are rejected.
func (t *Table) SetOrder(col int, dir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if col < 0 || col >= len(t.columns) || !t.columns[col].Orderable {
		return fmt.Errorf("column %d is not orderable", col)
	}
	if dir != OrderAsc && dir != OrderDesc {
		return fmt.Errorf("invalid order direction %q", dir)
	}
	t.order = []store.OrderSpec{{Column: col, Dir: dir}}
	return nil
}

// ToggleOrder sorts by col ascending, or flips the direction if col already leads the order.
func (t *Table) ToggleOrder(col int) error {
	t.mu.Lock()
	dir := OrderAsc
	if len(t.order) > 0 && t.order[0].Column == col && t.order[0].Dir == OrderAsc {
		dir = OrderDesc
	}
	t.mu.Unlock()
	return t.SetOrder(col, dir)
}

func (t *Table) Order() []store.OrderSpec {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]store.OrderSpec(nil), t.order...)
}

func (t *Table) SetSearch(s string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.search = s
	t.start = 0
}

func (t *Table) Search() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.search
}

func (t *Table) SetLength(n int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.validLength(n) {
		return fmt.Errorf("page length %d not in %v", n, t.opts.LengthMenu)
	}
	t.length = n
	t.start = 0
	return nil
}

// Rows returns the rows of the last successful draw.
func (t *Table) Rows() []Row {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Row(nil), t.rows...)
}

func (t *Table) Info() PageInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.info
}

// Window identifies the page the visible rows came from.
func (t *Table) Window() Window {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Err is the error of the last draw, nil after a successful one.
func (t *Table) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Table) PaginationVisible() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paginationVisible
}

func (t *Table) SetPaginationVisible(v bool) {
	t.mu.Lock()
	t.paginationVisible = v
	t.mu.Unlock()
}

func (t *Table) requestLocked() FetchRequest {
	cols := make([]ColumnRequest, len(t.columns))
	for i, c := range t.columns {
		cols[i] = ColumnRequest{Data: c.Data, Name: c.Name, Searchable: c.Searchable, Orderable: c.Orderable}
	}
	params := url.Values{}
	for k, v := range t.opts.Params {
		params[k] = append([]string(nil), v...)
	}
	return FetchRequest{
		Draw:    t.drawSeq,
		Start:   t.start,
		Length:  t.length,
		Search:  t.search,
		Order:   append([]store.OrderSpec(nil), t.order...),
		Columns: cols,
		Params:  params,
	}
}

// Draw fetches the page described by the current parameters and runs the
// draw and state-save hooks. A failed fetch clears the rows and is returned;
// the table stays usable for the next draw. A page past the end of a
// non-empty result set (rows deleted from the last page) is replaced by the
// last page.
func (t *Table) Draw(ctx context.Context, mode DrawMode) error {
	return t.draw(ctx, mode, true)
}

func (t *Table) draw(ctx context.Context, mode DrawMode, stepBack bool) error {
	t.mu.Lock()
	if mode == DrawReset {
		t.start = 0
	}
	t.drawSeq++
	req := t.requestLocked()
	hooks := append([]func(*FetchRequest){}, t.preFetch...)
	t.mu.Unlock()

	for _, h := range hooks {
		h(&req)
	}

	resp, err := t.fetcher.Fetch(ctx, t.endpoint, req)
	if err == nil && resp == nil {
		err = errors.New("empty response")
	}
	if err == nil && strings.TrimSpace(resp.Error) != "" {
		err = &FetchError{Message: resp.Error}
	}

	t.mu.Lock()
	if req.Draw != t.drawSeq || (err == nil && resp.Draw != 0 && resp.Draw != req.Draw) {
		t.mu.Unlock()
		return ErrStaleDraw
	}
	if err != nil {
		t.rows = nil
		t.info = PageInfo{Length: req.Length}
		t.err = err
		t.mu.Unlock()
		return fmt.Errorf("draw %s: %w", t.id, err)
	}
	if stepBack && len(resp.Data) == 0 && req.Length > 0 && resp.RecordsFiltered > 0 && req.Start >= resp.RecordsFiltered {
		t.start = (resp.RecordsFiltered - 1) / req.Length * req.Length
		t.mu.Unlock()
		return t.draw(ctx, DrawHold, false)
	}
	t.rows = resp.Data
	t.err = nil
	t.info = pageInfo(req.Start, req.Length, len(resp.Data), resp.RecordsTotal, resp.RecordsFiltered)
	t.window = windowOf(req)
	drawHooks := append([]func(context.Context, *Table){}, t.onDraw...)
	save := t.stateSave
	st := t.stateLocked()
	t.mu.Unlock()

	for _, h := range drawHooks {
		h(ctx, t)
	}
	if save != nil {
		save(ctx, st)
	}
	return nil
}

func pageInfo(start, length, n, total, filtered int) PageInfo {
	info := PageInfo{
		Start:          start,
		End:            start + n,
		Length:         length,
		RecordsTotal:   total,
		RecordsDisplay: filtered,
	}
	if length > 0 {
		info.Page = start / length
		info.Pages = (filtered + length - 1) / length
	}
	return info
}

func windowOf(req FetchRequest) Window {
	var ob strings.Builder
	for _, o := range req.Order {
		ob.WriteString(strconv.Itoa(o.Column))
		ob.WriteString(o.Dir)
		ob.WriteByte(',')
	}
	return Window{
		Start:  req.Start,
		Length: req.Length,
		Order:  ob.String(),
		Query:  req.Search + "\x00" + req.Params.Encode(),
	}
}
