package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"sner-console/internal/action"
	"sner-console/internal/grid"
	"sner-console/internal/notify"
	"sner-console/internal/store"
	"sner-console/internal/views"
)

type posted struct {
	path string
	form url.Values
}

type console struct {
	mu    sync.Mutex
	posts []posted
}

func (c *console) record(r *http.Request) {
	_ = r.ParseForm()
	c.mu.Lock()
	c.posts = append(c.posts, posted{path: r.URL.Path, form: r.PostForm})
	c.mu.Unlock()
}

func (c *console) count(path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.posts {
		if p.path == path {
			n++
		}
	}
	return n
}

func (c *console) last(path string) posted {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.posts) - 1; i >= 0; i-- {
		if c.posts[i].path == path {
			return c.posts[i]
		}
	}
	return posted{}
}

func newConsole(t *testing.T) (*console, *httptest.Server) {
	t.Helper()
	c := &console{}
	page := func(rows string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			c.record(r)
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"draw":%s,"recordsTotal":2,"recordsFiltered":2,"data":%s}`, r.PostForm.Get("draw"), rows)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html><head><meta name="csrf-token" content="tok"></head></html>`)
	})
	mux.HandleFunc("/storage/host/list.json", page(`[{"id":1,"address":"10.0.0.1"},{"id":2,"address":"10.0.0.2"}]`))
	mux.HandleFunc("/storage/vuln/list.json", page(`[{"id":7,"name":"weak tls","via_target":"a.example"}]`))
	mux.HandleFunc("/scheduler/queue/list.json", page(`[{"id":3,"ident":"nmap.default"}]`))
	ok := func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		w.WriteHeader(http.StatusOK)
	}
	mux.HandleFunc("/storage/host/tag_multiid", ok)
	mux.HandleFunc("/scheduler/queue/flush/3", ok)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return c, srv
}

func newTestContext(t *testing.T, srv *httptest.Server, opts Options) *Context {
	t.Helper()
	if opts.KV == nil {
		opts.KV = store.NewMemoryKV()
	}
	c, err := New(context.Background(), store.Config{BaseURL: srv.URL}, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestOpenGrid_FetchesAndPersistsState(t *testing.T) {
	t.Parallel()
	_, srv := newConsole(t)
	kv := store.NewMemoryKV()
	c := newTestContext(t, srv, Options{KV: kv})
	ctx := context.Background()

	s, err := c.OpenGrid(ctx, views.MustLookup("hosts"), "filter=Host.address%3D%3D%2210.0.0.1%22")
	if err != nil {
		t.Fatalf("OpenGrid: %v", err)
	}
	if got := len(s.Table().Rows()); got != 2 {
		t.Fatalf("rows: got %d want 2", got)
	}
	want := `DataTables_host_list_table_/storage/host/list_?filter=Host.address%3D%3D%2210.0.0.1%22`
	if _, ok, _ := kv.Get(ctx, want); !ok {
		t.Fatalf("state not saved under %q; keys=%v", want, kv.Keys())
	}
	if got, ok := c.Grid(views.MustLookup("hosts"), "filter=Host.address%3D%3D%2210.0.0.1%22"); !ok || got != s {
		t.Fatalf("Grid lookup: got %p ok=%v", got, ok)
	}
}

func TestOpenGrid_RejectsBadQuery(t *testing.T) {
	t.Parallel()
	_, srv := newConsole(t)
	c := newTestContext(t, srv, Options{})
	if _, err := c.OpenGrid(context.Background(), views.MustLookup("hosts"), "%zz"); err == nil {
		t.Fatalf("expected error for malformed query")
	}
}

func TestResetAll_ReloadsOpenGrids(t *testing.T) {
	t.Parallel()
	con, srv := newConsole(t)
	kv := store.NewMemoryKV()
	c := newTestContext(t, srv, Options{KV: kv})
	ctx := context.Background()
	hosts := views.MustLookup("hosts")

	before, err := c.OpenGrid(ctx, hosts, "")
	if err != nil {
		t.Fatalf("OpenGrid: %v", err)
	}
	reloaded := 0
	c.OnReload(func(context.Context) { reloaded++ })

	if _, err := c.ResetAll(ctx); err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	after, _ := c.Grid(hosts, "")
	if after == before {
		t.Fatalf("expected a fresh session after reset")
	}
	if reloaded != 1 {
		t.Fatalf("reload hooks: got %d want 1", reloaded)
	}
	if got := con.count("/storage/host/list.json"); got != 2 {
		t.Fatalf("fetches: got %d want 2", got)
	}
}

func TestToggleViaTarget_ShowsColumnAfterReload(t *testing.T) {
	t.Parallel()
	_, srv := newConsole(t)
	c := newTestContext(t, srv, Options{})
	ctx := context.Background()
	vulns := views.MustLookup("vulns")

	s, err := c.OpenGrid(ctx, vulns, "")
	if err != nil {
		t.Fatalf("OpenGrid: %v", err)
	}
	idx := s.Table().ColumnIndex("via_target")
	if s.Table().ColumnVisible(idx) {
		t.Fatalf("via_target should start hidden")
	}
	on, err := c.ToggleViaTarget(ctx)
	if err != nil || !on {
		t.Fatalf("ToggleViaTarget: on=%v err=%v", on, err)
	}
	s, _ = c.Grid(vulns, "")
	if !s.Table().ColumnVisible(idx) {
		t.Fatalf("via_target should be visible after toggle")
	}
}

func TestRowControl_SubmitsThroughDispatcher(t *testing.T) {
	t.Parallel()
	con, srv := newConsole(t)
	var asked []string
	rec := &notify.Recorder{}
	c := newTestContext(t, srv, Options{
		Notifier: rec,
		Confirmer: action.ConfirmFunc(func(_ context.Context, msg string) (bool, error) {
			asked = append(asked, msg)
			return true, nil
		}),
	})
	ctx := context.Background()

	s, err := c.OpenGrid(ctx, views.MustLookup("queues"), "")
	if err != nil {
		t.Fatalf("OpenGrid: %v", err)
	}
	controls := s.Controls("3")
	flush := -1
	for i, ctl := range controls {
		if ctl.Label == "Flush" {
			flush = i
		}
	}
	if flush < 0 {
		t.Fatalf("no Flush control in %+v", controls)
	}
	if err := s.TriggerControl(ctx, "3", flush); err != nil {
		t.Fatalf("TriggerControl: %v", err)
	}
	if len(asked) != 1 || asked[0] != action.DefaultConfirmation {
		t.Fatalf("confirmations: %v", asked)
	}
	if got := con.last("/scheduler/queue/flush/3").form.Get("csrf_token"); got != "tok" {
		t.Fatalf("flush csrf: %v", got)
	}
	if got := con.count("/scheduler/queue/list.json"); got != 2 {
		t.Fatalf("grid should redraw after flush; fetches=%d", got)
	}

	// Links are not submitted; they are reported as absolute urls.
	if err := s.TriggerControl(ctx, "3", 0); err != nil {
		t.Fatalf("TriggerControl link: %v", err)
	}
	notes := rec.Drain()
	if len(notes) == 0 || !strings.HasSuffix(notes[len(notes)-1].Text, srv.URL+"/scheduler/queue/edit/3") {
		t.Fatalf("link note: %+v", notes)
	}
}

func TestDescriptors(t *testing.T) {
	t.Parallel()
	_, srv := newConsole(t)
	c := newTestContext(t, srv, Options{})

	d, err := c.TagDescriptor(views.MustLookup("hosts"), " todo ", action.VerbSet)
	if err != nil {
		t.Fatalf("TagDescriptor: %v", err)
	}
	if d.Endpoint != "/storage/host/tag_multiid" || d.Payload.Get("tag") != "todo" || d.Payload.Get("action") != "set" {
		t.Fatalf("tag descriptor: %+v", d)
	}
	if _, err := c.TagDescriptor(views.MustLookup("services"), "todo", action.VerbSet); err == nil {
		t.Fatalf("services have no tag endpoint")
	}
	if _, err := c.TagDescriptor(views.MustLookup("hosts"), "  ", action.VerbSet); err == nil {
		t.Fatalf("empty tag should be rejected")
	}
	if _, err := c.DeleteDescriptor(views.MustLookup("hosts")); err == nil {
		t.Fatalf("hosts have no bulk delete")
	}
	del, err := c.DeleteDescriptor(views.MustLookup("vulns"))
	if err != nil || del.Endpoint != "/storage/vuln/delete_multiid" {
		t.Fatalf("delete descriptor: %+v err=%v", del, err)
	}
}

func TestBulkTag_PostsSelection(t *testing.T) {
	t.Parallel()
	con, srv := newConsole(t)
	c := newTestContext(t, srv, Options{})
	ctx := context.Background()
	hosts := views.MustLookup("hosts")

	s, err := c.OpenGrid(ctx, hosts, "")
	if err != nil {
		t.Fatalf("OpenGrid: %v", err)
	}
	s.Selection().Select(grid.ID("2"))
	d, _ := c.TagDescriptor(hosts, "report", action.VerbSet)
	out, err := c.Dispatcher.Dispatch(ctx, d, s, nil)
	if err != nil || out != action.OutcomeDone {
		t.Fatalf("Dispatch: out=%v err=%v", out, err)
	}
	p := con.last("/storage/host/tag_multiid")
	if p.form.Get("ids-0") != "2" || p.form.Get("tag") != "report" {
		t.Fatalf("posted form: %v", p.form)
	}
}
