package cli

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type consoleStub struct {
	mu    sync.Mutex
	posts map[string][]url.Values
}

func (c *consoleStub) record(r *http.Request) {
	_ = r.ParseForm()
	c.mu.Lock()
	c.posts[r.URL.Path] = append(c.posts[r.URL.Path], r.PostForm)
	c.mu.Unlock()
}

func (c *consoleStub) posted(path string) []url.Values {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]url.Values(nil), c.posts[path]...)
}

func newConsoleStub(t *testing.T) (*consoleStub, *httptest.Server) {
	t.Helper()
	c := &consoleStub{posts: map[string][]url.Values{}}
	list := func(rows string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			c.record(r)
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"draw":%s,"recordsTotal":3,"recordsFiltered":2,"data":%s}`, r.PostForm.Get("draw"), rows)
		}
	}
	ok := func(w http.ResponseWriter, r *http.Request) { c.record(r) }
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<meta name="csrf-token" content="tok">`)
	})
	mux.HandleFunc("/storage/host/list.json", list(`[{"id":1,"address":"10.0.0.1","hostname":"a\tb","tags":["todo"]},{"id":2,"address":"10.0.0.2","tags":[]}]`))
	mux.HandleFunc("/storage/vuln/list.json", list(`[{"id":7,"name":"weak tls","severity":"high","tags":[],"refs":[]}]`))
	mux.HandleFunc("/scheduler/queue/list.json", list(`[{"id":3,"name":"nmap.default","priority":10}]`))
	mux.HandleFunc("/storage/host/tag_multiid", ok)
	mux.HandleFunc("/storage/vuln/delete_multiid", ok)
	mux.HandleFunc("/scheduler/queue/flush/3", ok)
	mux.HandleFunc("/storage/host/annotate/2", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			c.record(r)
			return
		}
		_, _ = io.WriteString(w, `<form method="post">
<textarea class="form-control tageditor" name="tags">todo</textarea>
<textarea name="comment">old</textarea>
</form>`)
	})
	mux.HandleFunc("/storage/quickjump", func(w http.ResponseWriter, r *http.Request) {
		c.record(r)
		_, _ = io.WriteString(w, `{"message":"success","url":"/storage/host/view/1"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return c, srv
}

// runCLI runs the root command against srv with an in-memory state db.
func runCLI(t *testing.T, srv *httptest.Server, stdin string, args ...string) ([]byte, []byte, error) {
	t.Helper()
	t.Setenv("SNER_CONFIG_DIR", t.TempDir())
	cmd := NewRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--url", srv.URL, "--state-db", ":memory:", "--log-level", "disabled"}, args...))
	err := cmd.Execute()
	return stdout.Bytes(), stderr.Bytes(), err
}

func mustRun(t *testing.T, srv *httptest.Server, stdin string, args ...string) map[string]any {
	t.Helper()
	stdout, stderr, err := runCLI(t, srv, stdin, args...)
	if err != nil {
		t.Fatalf("sner %v failed: %v\nstderr:\n%s", args, err, stderr)
	}
	var env map[string]any
	if err := json.Unmarshal(stdout, &env); err != nil {
		t.Fatalf("stdout is not json: %v\n%s", err, stdout)
	}
	if _, ok := env["data"]; !ok {
		t.Fatalf("expected data key; got %v", env)
	}
	return env
}

func TestViews(t *testing.T) {
	_, srv := newConsoleStub(t)
	env := mustRun(t, srv, "", "views")
	data, _ := env["data"].([]any)
	if len(data) < 9 {
		t.Fatalf("views: got %d entries", len(data))
	}
	first, _ := data[0].(map[string]any)
	if first["name"] != "hosts" || first["taggable"] != true {
		t.Fatalf("first view: %v", first)
	}
}

func TestList_JSONAndState(t *testing.T) {
	con, srv := newConsoleStub(t)
	env := mustRun(t, srv, "", "list", "hosts", "--length", "50", "--search", "10.0", "--query", "filter=Host.os==\"linux\"")
	rows, _ := env["data"].([]any)
	if len(rows) != 2 {
		t.Fatalf("rows: got %d want 2", len(rows))
	}
	meta, _ := env["meta"].(map[string]any)
	if meta["recordsTotal"] != float64(3) || meta["recordsFiltered"] != float64(2) || meta["length"] != float64(50) {
		t.Fatalf("meta: %v", meta)
	}
	posts := con.posted("/storage/host/list.json")
	last := posts[len(posts)-1]
	if last.Get("length") != "50" || last.Get("search[value]") != "10.0" || last.Get("filter") != `Host.os=="linux"` {
		t.Fatalf("last fetch: %v", last)
	}
}

func TestList_TSV(t *testing.T) {
	_, srv := newConsoleStub(t)
	stdout, stderr, err := runCLI(t, srv, "", "--format", "tsv", "list", "hosts")
	if err != nil {
		t.Fatalf("list: %v\n%s", err, stderr)
	}
	lines := strings.Split(strings.TrimSpace(string(stdout)), "\n")
	if len(lines) != 3 {
		t.Fatalf("tsv lines: got %d\n%s", len(lines), stdout)
	}
	if !strings.HasPrefix(lines[0], "id\t") {
		t.Fatalf("header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "10.0.0.1") || strings.Count(lines[1], "\t") != strings.Count(lines[0], "\t") {
		t.Fatalf("row 1: %q (header %q)", lines[1], lines[0])
	}
}

func TestList_Errors(t *testing.T) {
	_, srv := newConsoleStub(t)
	cases := [][]string{
		{"list", "widgets"},
		{"list", "hosts", "--length", "7"},
		{"list", "hosts", "--order", "nope:asc"},
		{"list", "hosts", "--page", "0"},
	}
	for _, args := range cases {
		if _, _, err := runCLI(t, srv, "", args...); err == nil {
			t.Fatalf("sner %v: expected an error", args)
		}
	}
}

func TestTag_PostsSelectedIDs(t *testing.T) {
	con, srv := newConsoleStub(t)
	env := mustRun(t, srv, "", "tag", "hosts", "--tag", "report", "2", "9")
	data, _ := env["data"].(map[string]any)
	if data["outcome"] != "done" {
		t.Fatalf("outcome: %v", data)
	}
	posts := con.posted("/storage/host/tag_multiid")
	if len(posts) != 1 {
		t.Fatalf("tag posts: got %d want 1", len(posts))
	}
	got := posts[0]
	if got.Get("ids-0") != "2" || got.Get("ids-1") != "9" || got.Get("tag") != "report" || got.Get("action") != "set" || got.Get("csrf_token") != "tok" {
		t.Fatalf("tag form: %v", got)
	}
}

func TestUntag_Visible(t *testing.T) {
	con, srv := newConsoleStub(t)
	mustRun(t, srv, "", "untag", "hosts", "--tag", "todo", "--visible")
	posts := con.posted("/storage/host/tag_multiid")
	if len(posts) != 1 || posts[0].Get("ids-0") != "1" || posts[0].Get("ids-1") != "2" || posts[0].Get("action") != "unset" {
		t.Fatalf("untag posts: %v", posts)
	}
}

func TestTag_EmptySelectionFails(t *testing.T) {
	con, srv := newConsoleStub(t)
	_, stderr, err := runCLI(t, srv, "", "tag", "hosts", "--tag", "todo")
	if err == nil {
		t.Fatalf("expected an error without ids")
	}
	if !strings.Contains(string(stderr), "no items selected") {
		t.Fatalf("stderr: %s", stderr)
	}
	if len(con.posted("/storage/host/tag_multiid")) != 0 {
		t.Fatalf("nothing should be posted")
	}
}

func TestFreeTag(t *testing.T) {
	con, srv := newConsoleStub(t)
	mustRun(t, srv, "", "freetag", "hosts", "--tag", "i:a", "--tag", " i:b ", "1")
	posts := con.posted("/storage/host/tag_multiid")
	if len(posts) != 1 || posts[0].Get("tag") != "i:a\ni:b" || posts[0].Get("action") != "set" {
		t.Fatalf("freetag posts: %v", posts)
	}
}

func TestDelete_Confirmation(t *testing.T) {
	con, srv := newConsoleStub(t)
	env := mustRun(t, srv, "n\n", "delete", "vulns", "7")
	if data, _ := env["data"].(map[string]any); data["outcome"] != "declined" {
		t.Fatalf("declined delete: %v", env)
	}
	if len(con.posted("/storage/vuln/delete_multiid")) != 0 {
		t.Fatalf("declined delete must not post")
	}

	mustRun(t, srv, "y\n", "delete", "vulns", "7")
	posts := con.posted("/storage/vuln/delete_multiid")
	if len(posts) != 1 || posts[0].Get("ids-0") != "7" {
		t.Fatalf("delete posts: %v", posts)
	}

	mustRun(t, srv, "", "delete", "--yes", "vulns", "7")
	if got := len(con.posted("/storage/vuln/delete_multiid")); got != 2 {
		t.Fatalf("--yes delete: got %d posts want 2", got)
	}
}

func TestControl_Flush(t *testing.T) {
	con, srv := newConsoleStub(t)
	mustRun(t, srv, "", "--yes", "control", "queues", "3", "flush")
	posts := con.posted("/scheduler/queue/flush/3")
	if len(posts) != 1 || posts[0].Get("csrf_token") != "tok" {
		t.Fatalf("flush posts: %v", posts)
	}

	env := mustRun(t, srv, "", "control", "queues", "3", "edit")
	data, _ := env["data"].(map[string]any)
	if u, _ := data["url"].(string); u != srv.URL+"/scheduler/queue/edit/3" {
		t.Fatalf("edit url: %v", data)
	}

	if _, _, err := runCLI(t, srv, "", "control", "queues", "3", "launch"); err == nil {
		t.Fatalf("unknown control should fail")
	}
}

func TestAnnotate(t *testing.T) {
	con, srv := newConsoleStub(t)
	mustRun(t, srv, "", "annotate", "hosts", "2", "--tag", "report", "--tag", "i:x", "--comment", "new")
	posts := con.posted("/storage/host/annotate/2")
	if len(posts) != 1 {
		t.Fatalf("annotate posts: got %d want 1", len(posts))
	}
	if got := posts[0]; got.Get("tags") != "report\ni:x" || got.Get("comment") != "new" {
		t.Fatalf("annotate form: %v", got)
	}
	if _, _, err := runCLI(t, srv, "", "annotate", "hosts", "2"); err == nil {
		t.Fatalf("annotate without fields should fail")
	}
}

func TestAnnotate_DetailView(t *testing.T) {
	con, srv := newConsoleStub(t)
	env := mustRun(t, srv, "", "annotate", "--view", "hosts", "2", "--comment", "from detail")
	if data, _ := env["data"].(map[string]any); data["outcome"] != "done" {
		t.Fatalf("outcome: %v", env)
	}
	posts := con.posted("/storage/host/annotate/2")
	if len(posts) != 1 || posts[0].Get("comment") != "from detail" || posts[0].Get("tags") != "todo" {
		t.Fatalf("annotate posts: %v", posts)
	}
	if got := len(con.posted("/storage/host/list.json")); got != 0 {
		t.Fatalf("detail annotate opened a grid: %d list requests", got)
	}
}

func TestTagView(t *testing.T) {
	con, srv := newConsoleStub(t)
	mustRun(t, srv, "", "tag-view", "hosts", "2", "--tag", "report")
	mustRun(t, srv, "", "tag-view", "hosts", "2", "--tag", "todo", "--unset")
	posts := con.posted("/storage/host/tag_multiid")
	if len(posts) != 2 {
		t.Fatalf("tag-view posts: got %d want 2", len(posts))
	}
	if got := posts[0]; got.Get("ids-0") != "2" || got.Get("tag") != "report" || got.Get("action") != "set" {
		t.Fatalf("set form: %v", got)
	}
	if got := posts[1]; got.Get("tag") != "todo" || got.Get("action") != "unset" {
		t.Fatalf("unset form: %v", got)
	}
	if _, _, err := runCLI(t, srv, "", "tag-view", "queues", "3", "--tag", "x"); err == nil {
		t.Fatalf("tag-view on an untaggable view should fail")
	}
}

func stateRows(t *testing.T, path string) int {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open state db: %v", err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM kv`).Scan(&n); err != nil {
		t.Fatalf("count states: %v", err)
	}
	return n
}

func TestNewSession_LeavesNoGridState(t *testing.T) {
	_, srv := newConsoleStub(t)
	path := filepath.Join(t.TempDir(), "state.sqlite")

	mustRun(t, srv, "", "--new-session", "--state-db", path, "list", "hosts")
	if n := stateRows(t, path); n != 0 {
		t.Fatalf("rows after --new-session: got %d want 0", n)
	}

	mustRun(t, srv, "", "--session", "kept", "--state-db", path, "list", "hosts")
	if n := stateRows(t, path); n == 0 {
		t.Fatalf("a named session should keep its grid state")
	}
}

func TestQuickjump(t *testing.T) {
	con, srv := newConsoleStub(t)
	env := mustRun(t, srv, "", "quickjump", "10.0.0.1")
	data, _ := env["data"].(map[string]any)
	if data["url"] != srv.URL+"/storage/host/view/1" {
		t.Fatalf("quickjump url: %v", data)
	}
	if posts := con.posted("/storage/quickjump"); len(posts) != 1 || posts[0].Get("quickjump") != "10.0.0.1" {
		t.Fatalf("quickjump posts: %v", posts)
	}
}

func TestResetAndToggleColumn(t *testing.T) {
	_, srv := newConsoleStub(t)
	env := mustRun(t, srv, "", "reset")
	if data, _ := env["data"].(map[string]any); data["cleared"] != float64(0) {
		t.Fatalf("reset: %v", env)
	}
	env = mustRun(t, srv, "", "toggle-column", "via_target")
	if data, _ := env["data"].(map[string]any); data["visible"] != true {
		t.Fatalf("toggle: %v", env)
	}
	if _, _, err := runCLI(t, srv, "", "toggle-column", "address"); err == nil {
		t.Fatalf("unknown column should fail")
	}
}

func TestMissingURL(t *testing.T) {
	t.Setenv("SNER_CONFIG_DIR", t.TempDir())
	t.Setenv("SNER_URL", "")
	cmd := NewRootCmd()
	var stderr bytes.Buffer
	cmd.SetOut(io.Discard)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"--state-db", ":memory:", "list", "hosts"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected missing url error")
	}
	if !strings.Contains(stderr.String(), "console url is not set") {
		t.Fatalf("stderr: %s", stderr.String())
	}
}
