package grid

import (
	"context"
	"errors"
	"testing"

	"sner-console/internal/notify"
	"sner-console/internal/store"
)

func newTestSession(t *testing.T, srv *fakeServer, states StateStore, rec notify.Notifier) *Session {
	t.Helper()
	s, err := Init(context.Background(), InitOptions{
		Selector:   "host_list_table",
		Endpoint:   "/storage/host/list.json",
		Columns:    hostColumns(),
		View:       store.ViewKey{Path: "/storage/host/list"},
		Fetcher:    srv,
		States:     states,
		Notifier:   rec,
		PageLength: 2,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	return s
}

func TestSession_SelectionSurvivesPaging(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeServer(5, 6, 9)
	s := newTestSession(t, srv, nil, nil)

	if got := s.Table().Info().Pages; got != 2 {
		t.Fatalf("pages: got %d want 2", got)
	}
	s.Selection().Select("5")

	if !s.Table().NextPage() {
		t.Fatalf("expected a next page")
	}
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	s.Selection().Select("9")

	got := s.ExportSelection()
	if got.Get("ids-0") != "5" || got.Get("ids-1") != "9" || len(got) != 2 {
		t.Fatalf("export: got %v want ids-0=5 ids-1=9", got)
	}

	if !s.Table().PrevPage() {
		t.Fatalf("expected a previous page")
	}
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	ids := s.Selection().IDs()
	if len(ids) != 2 || ids[0] != "5" || ids[1] != "9" {
		t.Fatalf("selection after round trip: got %v", ids)
	}
}

func TestSession_RedrawPrunesRemovedRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeServer(5, 6, 9)
	s := newTestSession(t, srv, nil, nil)
	s.Selection().Select("5")
	s.Selection().Select("6")

	srv.remove("5")
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	got := s.ExportSelection()
	if len(got) != 1 || got.Get("ids-0") != "6" {
		t.Fatalf("export after removal: got %v want only ids-0=6", got)
	}
}

func TestSession_SearchChangePrunesHiddenRows(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeServer(5, 6, 9)
	s := newTestSession(t, srv, nil, nil)
	s.Selection().Select("5")
	s.Selection().Select("6")

	s.Table().SetSearch(".6")
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	ids := s.Selection().IDs()
	if len(ids) != 1 || ids[0] != "6" {
		t.Fatalf("selection after search: got %v want [6]", ids)
	}
}

func TestSession_SearchKeepsSelectedRowThatStillMatches(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeServer(5, 6, 9, 15)
	s := newTestSession(t, srv, nil, nil)
	s.Table().SetPage(1)
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	s.Selection().Select("15")

	s.Table().SetSearch("10.0.0.")
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if got := s.ExportSelection(); len(got) != 1 || got.Get("ids-0") != "15" {
		t.Fatalf("export after search: got %v want ids-0=15", got)
	}
}

func TestSession_DeleteAcrossPagesEmptiesSelection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeServer(5, 6, 9)
	s := newTestSession(t, srv, nil, nil)
	s.Selection().Select("5")
	if !s.Table().NextPage() {
		t.Fatalf("expected a next page")
	}
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	s.Selection().Select("9")

	srv.remove("5")
	srv.remove("9")
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if got := s.ExportSelection(); len(got) != 0 {
		t.Fatalf("export after delete: got %v want empty", got)
	}
}

func TestSession_ForgetDropsSelection(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newFakeServer(5, 6, 9), nil, nil)
	s.Selection().Select("5")
	s.Selection().Select("9")
	s.Forget([]string{"9"})
	if got := s.ExportSelection(); len(got) != 1 || got.Get("ids-0") != "5" {
		t.Fatalf("export after forget: got %v want ids-0=5", got)
	}
}

func TestSession_EmptyLastPageStepsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	srv := newFakeServer(1, 2, 3, 4, 5)
	s := newTestSession(t, srv, nil, nil)
	s.Table().SetPage(2)
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	srv.remove("5")
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	info := s.Table().Info()
	if info.Page != 1 || info.Pages != 2 || len(s.Table().Rows()) != 2 {
		t.Fatalf("after emptying last page: page %d of %d, %d rows", info.Page, info.Pages, len(s.Table().Rows()))
	}
	if !s.Table().PaginationVisible() {
		t.Fatalf("pagination should stay visible with two pages")
	}

	srv.remove("3")
	srv.remove("4")
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if info := s.Table().Info(); info.Page != 0 || s.Table().PaginationVisible() {
		t.Fatalf("after shrinking to one page: page %d, pager visible %v", info.Page, s.Table().PaginationVisible())
	}
}

func TestSession_PreFetchAppendsIDOrder(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(1, 2)
	s := newTestSession(t, srv, nil, nil)
	if err := s.Table().SetOrder(2, OrderDesc); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	if err := s.Redraw(context.Background()); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	order := srv.last().Order
	want := []store.OrderSpec{{Column: 2, Dir: OrderDesc}, {Column: 1, Dir: OrderAsc}}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order: got %v want %v", order, want)
	}
	if form := srv.last().Form(); form.Get("order[1][column]") != "1" || form.Get("length") != "2" {
		t.Fatalf("form: got %v", form)
	}
}

func TestSession_PaginationHiddenOnSinglePage(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newFakeServer(1, 2), nil, nil)
	if s.Table().PaginationVisible() {
		t.Fatalf("pagination should be hidden for one page")
	}
	s2 := newTestSession(t, newFakeServer(1, 2, 3), nil, nil)
	if !s2.Table().PaginationVisible() {
		t.Fatalf("pagination should be shown for two pages")
	}
}

func TestSession_BindsDeleteConfirmation(t *testing.T) {
	t.Parallel()

	s := newTestSession(t, newFakeServer(4), nil, nil)
	cs := s.Controls("4")
	if len(cs) != 2 {
		t.Fatalf("controls: got %d want 2", len(cs))
	}
	if cs[1].Confirmation != DeleteConfirmation {
		t.Fatalf("delete confirmation: got %q", cs[1].Confirmation)
	}
	if cs[0].Confirmation != "" {
		t.Fatalf("link confirmation should stay empty, got %q", cs[0].Confirmation)
	}
	if err := s.TriggerControl(context.Background(), "4", 1); err == nil {
		t.Fatalf("expected error without a control handler")
	}
}

func TestSession_FetchFailureIsReported(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(1)
	srv.errMsg = "database is gone"
	rec := &notify.Recorder{}
	s := newTestSession(t, srv, nil, rec)

	if s.Table().Err() == nil {
		t.Fatalf("expected table error state")
	}
	if rows := s.Table().Rows(); len(rows) != 0 {
		t.Fatalf("rows: got %d want 0", len(rows))
	}
	notes := rec.Drain()
	if len(notes) != 1 || notes[0].Level != notify.LevelError || notes[0].Text != "database is gone" {
		t.Fatalf("notes: got %+v", notes)
	}

	// The grid stays usable for the next interaction.
	srv.errMsg = ""
	if err := s.Redraw(context.Background()); err != nil {
		t.Fatalf("Redraw: %v", err)
	}
	if rows := s.Table().Rows(); len(rows) != 1 {
		t.Fatalf("rows after recovery: got %d want 1", len(rows))
	}
}

func TestSession_TransportFailureUsesFallback(t *testing.T) {
	t.Parallel()

	srv := newFakeServer(1)
	srv.fail = errors.New("dial tcp: connection refused")
	rec := &notify.Recorder{}
	newTestSession(t, srv, nil, rec)

	notes := rec.Drain()
	if len(notes) != 1 || notes[0].Text != "Request failed" {
		t.Fatalf("notes: got %+v", notes)
	}
}

func TestSession_StateRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	states := &memStates{}
	srv := newFakeServer(1, 2, 3, 4, 5)
	s := newTestSession(t, srv, states, nil)
	s.Table().SetPage(1)
	if err := s.Table().SetOrder(2, OrderDesc); err != nil {
		t.Fatalf("SetOrder: %v", err)
	}
	if err := s.Redraw(ctx); err != nil {
		t.Fatalf("Redraw: %v", err)
	}

	s2 := newTestSession(t, srv, states, nil)
	st := s2.Table().State()
	if st.Start != 2 || st.Page() != 1 {
		t.Fatalf("restored start: got %d want 2", st.Start)
	}
	if len(st.Order) != 1 || st.Order[0] != (store.OrderSpec{Column: 2, Dir: OrderDesc}) {
		t.Fatalf("restored order: got %v", st.Order)
	}
	if got := srv.last().Start; got != 2 {
		t.Fatalf("restored draw start: got %d want 2", got)
	}
}

func TestSession_StaleDrawDiscarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	release := make(chan struct{})
	srv := newFakeServer(1, 2, 3)
	tbl := NewTable("t", "/x", FetcherFunc(func(ctx context.Context, ep string, req FetchRequest) (*FetchResponse, error) {
		if req.Draw == 1 {
			<-release
		}
		return srv.Fetch(ctx, ep, req)
	}), hostColumns(), Options{PageLength: 2})

	done := make(chan error, 1)
	go func() { done <- tbl.Draw(ctx, DrawHold) }()

	// Wait until the first draw has taken its sequence number.
	for {
		tbl.mu.Lock()
		seq := tbl.drawSeq
		tbl.mu.Unlock()
		if seq == 1 {
			break
		}
	}
	tbl.SetPage(1)
	if err := tbl.Draw(ctx, DrawHold); err != nil {
		t.Fatalf("second draw: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrStaleDraw) {
		t.Fatalf("first draw: got %v want ErrStaleDraw", err)
	}
	if info := tbl.Info(); info.Page != 1 {
		t.Fatalf("page: got %d want 1 (stale response must not win)", info.Page)
	}
}

func TestInit_ValidatesOptions(t *testing.T) {
	t.Parallel()

	if _, err := Init(context.Background(), InitOptions{Endpoint: "/x", Fetcher: newFakeServer(), Columns: hostColumns()}); err == nil {
		t.Fatalf("expected error for missing selector")
	}
	if _, err := Init(context.Background(), InitOptions{Selector: "s", Endpoint: "/x", Columns: hostColumns()}); err == nil {
		t.Fatalf("expected error for missing fetcher")
	}
}
