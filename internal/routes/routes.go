// Package routes maps logical console endpoint names to url paths.
package routes

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Table maps endpoint names (blueprint.view) to path patterns with <arg>
// placeholders, e.g. "/storage/host/view/<host_id>".
type Table map[string]string

// Console lists the endpoints the grids and actions use.
var Console = Table{
	"auth.user_list_route":                  "/auth/user/list",
	"auth.user_list_json_route":             "/auth/user/list.json",
	"auth.user_add_route":                   "/auth/user/add",
	"auth.user_edit_route":                  "/auth/auth/edit/<user_id>",
	"auth.user_delete_route":                "/auth/user/delete/<user_id>",
	"auth.user_apikey_route":                "/auth/user/apikey/<user_id>/<action>",
	"auth.profile_webauthn_list_json_route": "/auth/profile/webauthn/list.json",
	"auth.profile_webauthn_edit_route":      "/auth/profile/webauthn/edit/<webauthn_id>",
	"auth.profile_webauthn_delete_route":    "/auth/profile/webauthn/delete/<webauthn_id>",

	"scheduler.excl_list_route":          "/scheduler/excl/list",
	"scheduler.excl_list_json_route":     "/scheduler/excl/list.json",
	"scheduler.excl_edit_route":          "/scheduler/excl/edit/<excl_id>",
	"scheduler.excl_delete_route":        "/scheduler/excl/delete/<excl_id>",
	"scheduler.job_list_route":           "/scheduler/job/list",
	"scheduler.job_list_json_route":      "/scheduler/job/list.json",
	"scheduler.job_delete_route":         "/scheduler/job/delete/<job_id>",
	"scheduler.queue_list_route":         "/scheduler/queue/list",
	"scheduler.queue_list_json_route":    "/scheduler/queue/list.json",
	"scheduler.queue_add_route__task_id": "/scheduler/queue/add/<task_id>",
	"scheduler.queue_edit_route":         "/scheduler/queue/edit/<queue_id>",
	"scheduler.queue_enqueue_route":      "/scheduler/queue/enqueue/<queue_id>",
	"scheduler.queue_flush_route":        "/scheduler/queue/flush/<queue_id>",
	"scheduler.queue_prune_route":        "/scheduler/queue/prune/<queue_id>",
	"scheduler.queue_delete_route":       "/scheduler/queue/delete/<queue_id>",
	"scheduler.task_list_route":          "/scheduler/task/list",
	"scheduler.task_list_json_route":     "/scheduler/task/list.json",
	"scheduler.task_edit_route":          "/scheduler/task/edit/<task_id>",
	"scheduler.task_delete_route":        "/scheduler/task/delete/<task_id>",

	"storage.host_list_route":           "/storage/host/list",
	"storage.host_list_json_route":      "/storage/host/list.json",
	"storage.host_edit_route":           "/storage/host/edit/<host_id>",
	"storage.host_delete_route":         "/storage/host/delete/<host_id>",
	"storage.host_annotate_route":       "/storage/host/annotate/<model_id>",
	"storage.host_view_route":           "/storage/host/view/<host_id>",
	"storage.host_tag_multiid_route":    "/storage/host/tag_multiid",
	"storage.note_list_route":           "/storage/note/list",
	"storage.note_list_json_route":      "/storage/note/list.json",
	"storage.note_add_route":            "/storage/note/add/<model_name>/<model_id>",
	"storage.note_edit_route":           "/storage/note/edit/<note_id>",
	"storage.note_delete_route":         "/storage/note/delete/<note_id>",
	"storage.note_annotate_route":       "/storage/note/annotate/<model_id>",
	"storage.note_view_route":           "/storage/note/view/<note_id>",
	"storage.quickjump_route":           "/storage/quickjump",
	"storage.service_list_route":        "/storage/service/list",
	"storage.service_list_json_route":   "/storage/service/list.json",
	"storage.service_add_route":         "/storage/service/add/<host_id>",
	"storage.service_edit_route":        "/storage/service/edit/<service_id>",
	"storage.service_delete_route":      "/storage/service/delete/<service_id>",
	"storage.service_annotate_route":    "/storage/service/annotate/<model_id>",
	"storage.vuln_list_route":           "/storage/vuln/list",
	"storage.vuln_list_json_route":      "/storage/vuln/list.json",
	"storage.vuln_add_route":            "/storage/vuln/add/<model_name>/<model_id>",
	"storage.vuln_edit_route":           "/storage/vuln/edit/<vuln_id>",
	"storage.vuln_delete_route":         "/storage/vuln/delete/<vuln_id>",
	"storage.vuln_annotate_route":       "/storage/vuln/annotate/<model_id>",
	"storage.vuln_view_route":           "/storage/vuln/view/<vuln_id>",
	"storage.vuln_multicopy_route":      "/storage/vuln/multicopy/<vuln_id>",
	"storage.vuln_delete_multiid_route": "/storage/vuln/delete_multiid",
	"storage.vuln_tag_multiid_route":    "/storage/vuln/tag_multiid",
}

// URLFor builds the path of endpoint name. Params not consumed by the
// pattern are appended as a query string in key order.
func (t Table) URLFor(name string, params map[string]string) (string, error) {
	pattern, ok := t[name]
	if !ok {
		return "", fmt.Errorf("unknown route %q", name)
	}
	used := map[string]bool{}
	var b strings.Builder
	rest := pattern
	for {
		i := strings.IndexByte(rest, '<')
		if i < 0 {
			b.WriteString(rest)
			break
		}
		j := strings.IndexByte(rest[i:], '>')
		if j < 0 {
			return "", fmt.Errorf("route %q: unterminated placeholder", name)
		}
		arg := rest[i+1 : i+j]
		v, ok := params[arg]
		if !ok {
			return "", fmt.Errorf("route %q: missing %q", name, arg)
		}
		used[arg] = true
		b.WriteString(rest[:i])
		b.WriteString(url.PathEscape(v))
		rest = rest[i+j+1:]
	}

	var keys []string
	for k := range params {
		if !used[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) > 0 {
		sort.Strings(keys)
		q := url.Values{}
		for _, k := range keys {
			q.Set(k, params[k])
		}
		b.WriteString("?")
		b.WriteString(q.Encode())
	}
	return b.String(), nil
}

// MustURLFor is URLFor for names and params fixed at compile time.
func (t Table) MustURLFor(name string, params map[string]string) string {
	u, err := t.URLFor(name, params)
	if err != nil {
		panic(err)
	}
	return u
}

// Args lists the placeholder names of endpoint name in pattern order.
func (t Table) Args(name string) []string {
	var out []string
	rest := t[name]
	for {
		i := strings.IndexByte(rest, '<')
		if i < 0 {
			return out
		}
		j := strings.IndexByte(rest[i:], '>')
		if j < 0 {
			return out
		}
		out = append(out, rest[i+1:i+j])
		rest = rest[i+j+1:]
	}
}

// Names returns the endpoint names in sorted order.
func (t Table) Names() []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
