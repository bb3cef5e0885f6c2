package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	appctx "sner-console/internal/app"
	"sner-console/internal/grid"
	"sner-console/internal/views"

	"github.com/spf13/cobra"
)

func lookupView(name string) (views.View, error) {
	v, ok := views.Lookup(name)
	if !ok {
		known := views.Names()
		sort.Strings(known)
		return views.View{}, fmt.Errorf("unknown view %q (known: %s)", name, strings.Join(known, ", "))
	}
	return v, nil
}

type viewList []views.View

func (l viewList) Table() ([]string, [][]string) {
	header := []string{"name", "title", "selectable", "taggable", "deletable", "annotable"}
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		rows = append(rows, []string{
			v.Name,
			v.Title,
			strconv.FormatBool(v.Selectable),
			strconv.FormatBool(v.Taggable()),
			strconv.FormatBool(v.Deletable()),
			strconv.FormatBool(v.Annotable()),
		})
	}
	return header, rows
}

func (l viewList) MarshalJSON() ([]byte, error) {
	data := make([]map[string]any, 0, len(l))
	for _, v := range l {
		data = append(data, map[string]any{
			"name":       v.Name,
			"title":      v.Title,
			"selectable": v.Selectable,
			"taggable":   v.Taggable(),
			"deletable":  v.Deletable(),
			"annotable":  v.Annotable(),
			"viaTarget":  v.ViaTarget,
		})
	}
	return json.Marshal(map[string]any{"data": data})
}

func newViewsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "views",
		Short: "List the grid views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, viewList(views.All()))
		},
	}
}

// pageResult is one drawn page of a grid.
type pageResult struct {
	view    views.View
	columns []grid.Column
	rows    []grid.Row
	info    grid.PageInfo
	search  string
	query   string
}

func newPageResult(v views.View, rawQuery string, s *grid.Session) pageResult {
	t := s.Table()
	var cols []grid.Column
	for i, c := range t.Columns() {
		if c.Kind != grid.KindData || !t.ColumnVisible(i) {
			continue
		}
		cols = append(cols, c)
	}
	return pageResult{
		view:    v,
		columns: cols,
		rows:    t.Rows(),
		info:    t.Info(),
		search:  t.Search(),
		query:   rawQuery,
	}
}

func (p pageResult) Table() ([]string, [][]string) {
	header := make([]string, len(p.columns))
	for i, c := range p.columns {
		header[i] = c.Name
	}
	rows := make([][]string, 0, len(p.rows))
	for _, r := range p.rows {
		cells := make([]string, len(p.columns))
		for i, c := range p.columns {
			cells[i] = grid.RenderText(c.Cell(r))
		}
		rows = append(rows, cells)
	}
	return header, rows
}

func (p pageResult) MarshalJSON() ([]byte, error) {
	rows := p.rows
	if rows == nil {
		rows = []grid.Row{}
	}
	return json.Marshal(map[string]any{
		"data": rows,
		"meta": map[string]any{
			"view":            p.view.Name,
			"query":           p.query,
			"search":          p.search,
			"page":            p.info.Page + 1,
			"pages":           p.info.Pages,
			"length":          p.info.Length,
			"recordsTotal":    p.info.RecordsTotal,
			"recordsFiltered": p.info.RecordsDisplay,
		},
	})
}

type listOptions struct {
	query  string
	page   int
	length int
	search string
	order  string
}

func newListCmd(app *App) *cobra.Command {
	var o listOptions
	cmd := &cobra.Command{
		Use:   "list <view>",
		Short: "Fetch one page of a grid",
		Long: strings.TrimSpace(`
Fetches one page of a grid the way the console renders it. The grid starts
from its saved state (page, order, search, length); flags change that state
and the change is saved, like paging in the browser.
`),
		Example: strings.TrimSpace(`
  sner list hosts
  sner list services --query 'filter=Service.port==22' --length 50
  sner list vulns --order severity:desc --search ssh --format tsv
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := lookupView(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			a, err := openApp(cmd, app, appctx.Options{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			s, err := a.OpenGrid(cmd.Context(), v, o.query)
			if err != nil {
				return writeErr(cmd, err)
			}
			changed, err := applyListOptions(cmd, s.Table(), o)
			if err != nil {
				return writeErr(cmd, err)
			}
			if changed {
				if err := s.Redraw(cmd.Context()); err != nil {
					return writeErr(cmd, err)
				}
			}
			if err := s.Table().Err(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, newPageResult(v, o.query, s))
		},
	}
	cmd.Flags().StringVar(&o.query, "query", "", "Console query of the view (e.g. filter=Host.address==\"10.0.0.1\")")
	cmd.Flags().IntVar(&o.page, "page", 0, "Page number (1-based)")
	cmd.Flags().IntVar(&o.length, "length", 0, "Page length (10|50|100|200|500|1000)")
	cmd.Flags().StringVar(&o.search, "search", "", "Global search value")
	cmd.Flags().StringVar(&o.order, "order", "", "Sort column and direction (name[:asc|desc])")
	return cmd
}

// applyListOptions applies the flags that were set to t and reports whether any was.
func applyListOptions(cmd *cobra.Command, t *grid.Table, o listOptions) (bool, error) {
	changed := false
	if cmd.Flags().Changed("length") {
		if err := t.SetLength(o.length); err != nil {
			return false, err
		}
		changed = true
	}
	if cmd.Flags().Changed("search") {
		t.SetSearch(o.search)
		changed = true
	}
	if cmd.Flags().Changed("order") {
		name, dir, _ := strings.Cut(o.order, ":")
		if dir == "" {
			dir = grid.OrderAsc
		}
		col := t.ColumnIndex(strings.TrimSpace(name))
		if col < 0 {
			return false, fmt.Errorf("unknown column %q", name)
		}
		if err := t.SetOrder(col, strings.ToLower(dir)); err != nil {
			return false, err
		}
		changed = true
	}
	if cmd.Flags().Changed("page") {
		if o.page < 1 {
			return false, fmt.Errorf("page must be 1 or more, got %d", o.page)
		}
		t.SetPage(o.page - 1)
		changed = true
	}
	return changed, nil
}
