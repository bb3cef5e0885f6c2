// Package views is the catalogue of console grids: their endpoints,
// columns, row controls and the bulk actions each grid offers.
package views

import (
	"fmt"
	"sort"
	"strings"

	"sner-console/internal/component"
	"sner-console/internal/grid"
	"sner-console/internal/routes"
)

// QuickTags are offered as one-key bulk tag actions on taggable grids.
var QuickTags = []string{"todo", "report", "report:data", "info"}

// View describes one console grid.
type View struct {
	Name     string
	Title    string
	Selector string

	ListRoute     string
	DataRoute     string
	TagRoute      string
	DeleteRoute   string
	AnnotateRoute string
	// Detail is an optional markdown template rendered for the row detail pane.
	Detail string

	Selectable bool
	// ViaTarget marks grids with the optional via_target column.
	ViaTarget bool

	columns func(r *component.Registry, viaTarget bool) []grid.Column
}

// Columns builds the grid columns. viaTarget shows the optional via_target column.
func (v View) Columns(r *component.Registry, viaTarget bool) []grid.Column {
	return v.columns(r, viaTarget)
}

func (v View) Taggable() bool  { return v.TagRoute != "" }
func (v View) Deletable() bool { return v.DeleteRoute != "" }
func (v View) Annotable() bool { return v.AnnotateRoute != "" }

// ListPath is the path the grid lives at; together with the query it keys the saved state.
func (v View) ListPath(rt routes.Table) string {
	return rt.MustURLFor(v.ListRoute, nil)
}

func (v View) DataPath(rt routes.Table) string {
	return rt.MustURLFor(v.DataRoute, nil)
}

// AnnotatePath is the annotate form url of entity id.
func (v View) AnnotatePath(rt routes.Table, id grid.ID) (string, error) {
	if !v.Annotable() {
		return "", fmt.Errorf("%s cannot be annotated", v.Name)
	}
	return rt.URLFor(v.AnnotateRoute, map[string]string{"model_id": string(id)})
}

func controlsLabel(fn grid.ControlsFunc) grid.RenderFunc {
	return func(row grid.Row) string {
		cs := fn(row)
		labels := make([]string, len(cs))
		for i, c := range cs {
			labels[i] = c.Label
		}
		return strings.Join(labels, " ")
	}
}

func actions(r *component.Registry, tmpl string) grid.Column {
	fn := r.ControlsFunc(tmpl)
	return grid.ActionsColumn(controlsLabel(fn), fn)
}

func hidden(name string) grid.Column {
	return grid.DataColumn(name, grid.Visible(false))
}

func tags(r *component.Registry) grid.Column {
	return grid.DataColumn("tags", grid.WithRender(r.RenderFunc("storage.tag_labels")))
}

var catalogue = []View{
	{
		Name: "hosts", Title: "Hosts", Selector: "host_list_table",
		ListRoute: "storage.host_list_route", DataRoute: "storage.host_list_json_route",
		TagRoute: "storage.host_tag_multiid_route", AnnotateRoute: "storage.host_annotate_route",
		Detail: "storage.host_detail", Selectable: true,
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.SelectColumn(),
				grid.DataColumn("id"),
				grid.DataColumn("address"),
				grid.DataColumn("hostname"),
				grid.DataColumn("os"),
				grid.DataColumn("cnt_s", grid.WithTitle("s"), grid.NotSearchable()),
				grid.DataColumn("cnt_v", grid.WithTitle("v"), grid.NotSearchable()),
				grid.DataColumn("cnt_n", grid.WithTitle("n"), grid.NotSearchable()),
				tags(r),
				grid.DataColumn("comment"),
				actions(r, "storage.host_controls"),
			}
		},
	},
	{
		Name: "services", Title: "Services", Selector: "service_list_table",
		ListRoute: "storage.service_list_route", DataRoute: "storage.service_list_json_route",
		AnnotateRoute: "storage.service_annotate_route",
		Detail: "storage.service_detail", Selectable: true,
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.SelectColumn(),
				grid.DataColumn("id"),
				hidden("host_id"),
				grid.DataColumn("host_address"),
				grid.DataColumn("host_hostname"),
				grid.DataColumn("proto"),
				grid.DataColumn("port"),
				grid.DataColumn("name"),
				grid.DataColumn("state"),
				grid.DataColumn("info"),
				tags(r),
				grid.DataColumn("comment"),
				actions(r, "storage.service_controls"),
			}
		},
	},
	{
		Name: "vulns", Title: "Vulns", Selector: "vuln_list_table",
		ListRoute: "storage.vuln_list_route", DataRoute: "storage.vuln_list_json_route",
		TagRoute: "storage.vuln_tag_multiid_route", DeleteRoute: "storage.vuln_delete_multiid_route",
		AnnotateRoute: "storage.vuln_annotate_route",
		Detail: "storage.vuln_detail", Selectable: true, ViaTarget: true,
		columns: func(r *component.Registry, viaTarget bool) []grid.Column {
			return []grid.Column{
				grid.SelectColumn(),
				grid.DataColumn("id"),
				hidden("host_id"),
				grid.DataColumn("host_address"),
				grid.DataColumn("host_hostname"),
				hidden("service_proto"),
				hidden("service_port"),
				grid.DataColumn("service"),
				grid.DataColumn("via_target", grid.Visible(viaTarget)),
				grid.DataColumn("name"),
				grid.DataColumn("xtype"),
				grid.DataColumn("severity", grid.WithRender(r.RenderFunc("storage.severity_label"))),
				grid.DataColumn("refs", grid.WithRender(r.RenderFunc("storage.vuln_refs"))),
				tags(r),
				grid.DataColumn("comment"),
				hidden("created"),
				hidden("modified"),
				hidden("rescan_time"),
				hidden("import_time"),
				actions(r, "storage.vuln_controls"),
			}
		},
	},
	{
		Name: "notes", Title: "Notes", Selector: "note_list_table",
		ListRoute: "storage.note_list_route", DataRoute: "storage.note_list_json_route",
		AnnotateRoute: "storage.note_annotate_route", Selectable: true,
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.SelectColumn(),
				grid.DataColumn("id"),
				hidden("host_id"),
				grid.DataColumn("host_address"),
				grid.DataColumn("host_hostname"),
				grid.DataColumn("service"),
				grid.DataColumn("xtype"),
				grid.DataColumn("data"),
				tags(r),
				grid.DataColumn("comment"),
				actions(r, "storage.note_controls"),
			}
		},
	},
	{
		Name: "excls", Title: "Exclusions", Selector: "excl_list_table",
		ListRoute: "scheduler.excl_list_route", DataRoute: "scheduler.excl_list_json_route",
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.DataColumn("id"),
				grid.DataColumn("family"),
				grid.DataColumn("value"),
				grid.DataColumn("comment"),
				actions(r, "scheduler.excl_controls"),
			}
		},
	},
	{
		Name: "tasks", Title: "Tasks", Selector: "task_list_table",
		ListRoute: "scheduler.task_list_route", DataRoute: "scheduler.task_list_json_route",
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.DataColumn("id"),
				grid.DataColumn("name"),
				grid.DataColumn("module"),
				grid.DataColumn("params"),
				grid.DataColumn("group_size"),
				grid.DataColumn("nr_queues", grid.NotSearchable()),
				actions(r, "scheduler.task_controls"),
			}
		},
	},
	{
		Name: "queues", Title: "Queues", Selector: "queue_list_table",
		ListRoute: "scheduler.queue_list_route", DataRoute: "scheduler.queue_list_json_route",
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.DataColumn("id"),
				grid.DataColumn("ident"),
				grid.DataColumn("priority"),
				grid.DataColumn("active"),
				grid.DataColumn("nr_targets", grid.NotSearchable()),
				grid.DataColumn("nr_jobs", grid.NotSearchable()),
				actions(r, "scheduler.queue_controls"),
			}
		},
	},
	{
		Name: "jobs", Title: "Jobs", Selector: "job_list_table",
		ListRoute: "scheduler.job_list_route", DataRoute: "scheduler.job_list_json_route",
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.DataColumn("id"),
				grid.DataColumn("queue_ident"),
				grid.DataColumn("assignment"),
				grid.DataColumn("retval"),
				grid.DataColumn("time_start"),
				grid.DataColumn("time_end"),
				grid.DataColumn("time_taken"),
				actions(r, "scheduler.job_controls"),
			}
		},
	},
	{
		Name: "users", Title: "Users", Selector: "user_list_table",
		ListRoute: "auth.user_list_route", DataRoute: "auth.user_list_json_route",
		columns: func(r *component.Registry, _ bool) []grid.Column {
			return []grid.Column{
				grid.DataColumn("id"),
				grid.DataColumn("username"),
				grid.DataColumn("email"),
				grid.DataColumn("apikey"),
				grid.DataColumn("roles"),
				grid.DataColumn("active"),
				actions(r, "auth.user_controls"),
			}
		},
	},
}

// All returns the catalogue in display order.
func All() []View {
	return append([]View(nil), catalogue...)
}

func Names() []string {
	out := make([]string, len(catalogue))
	for i, v := range catalogue {
		out[i] = v.Name
	}
	return out
}

// Lookup finds a view by name, singular or plural ("host", "hosts").
func Lookup(name string) (View, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, v := range catalogue {
		if v.Name == n || strings.TrimSuffix(v.Name, "s") == n {
			return v, true
		}
	}
	return View{}, false
}

// MustLookup panics for names not in the catalogue.
func MustLookup(name string) View {
	v, ok := Lookup(name)
	if !ok {
		known := Names()
		sort.Strings(known)
		panic(fmt.Sprintf("unknown view %q (known: %s)", name, strings.Join(known, ", ")))
	}
	return v
}
