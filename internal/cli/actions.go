package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"sner-console/internal/action"
	appctx "sner-console/internal/app"
	"sner-console/internal/grid"
	"sner-console/internal/views"

	"github.com/spf13/cobra"
)

type selectOptions struct {
	query   string
	visible bool
}

func (o *selectOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.query, "query", "", "Console query of the view the ids are selected in")
	cmd.Flags().BoolVar(&o.visible, "visible", false, "Select every row of the current page")
}

// selectRows opens the grid of v and selects ids (plus the visible page with --visible).
func selectRows(ctx context.Context, a *appctx.Context, v views.View, o selectOptions, ids []string) (*grid.Session, error) {
	if !v.Selectable {
		return nil, fmt.Errorf("%s has no row selection", v.Name)
	}
	s, err := a.OpenGrid(ctx, v, o.query)
	if err != nil {
		return nil, err
	}
	if o.visible {
		if err := s.Table().Err(); err != nil {
			return nil, err
		}
		s.SelectVisible()
	}
	for _, id := range ids {
		s.Selection().Select(grid.ID(strings.TrimSpace(id)))
	}
	return s, nil
}

func selectionIDs(s *grid.Session) []string {
	ids := s.Selection().IDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

func outcomeResult(out action.Outcome, ids []string) map[string]any {
	return map[string]any{"data": map[string]any{"outcome": out.String(), "ids": ids}}
}

// dispatchResult writes the outcome of a bulk action. A declined
// confirmation is a result, not an error.
func dispatchResult(cmd *cobra.Command, app *App, out action.Outcome, err error, ids []string) error {
	if err != nil {
		return writeErr(cmd, err)
	}
	return writeOut(cmd, app, outcomeResult(out, ids))
}

func newTagCmd(app *App, use string) *cobra.Command {
	verb, short := action.VerbSet, "Tag the selected rows"
	if use == "untag" {
		verb, short = action.VerbUnset, "Remove a tag from the selected rows"
	}
	var o selectOptions
	var tag string
	cmd := &cobra.Command{
		Use:   use + " <view> --tag <tag> [id...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
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

			desc, err := a.TagDescriptor(v, tag, verb)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := selectRows(cmd.Context(), a, v, o, args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}
			ids := selectionIDs(s)
			out, err := a.Dispatcher.Dispatch(cmd.Context(), desc, s, nil)
			return dispatchResult(cmd, app, out, err, ids)
		},
	}
	o.bind(cmd)
	cmd.Flags().StringVar(&tag, "tag", "", "Tag (e.g. todo, report, report:data)")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

func newTagViewCmd(app *App) *cobra.Command {
	var tag string
	var unset bool
	cmd := &cobra.Command{
		Use:   "tag-view <view> <id> --tag <tag>",
		Short: "Tag one entity from its detail view",
		Example: strings.TrimSpace(`
  sner tag-view vulns 12 --tag report
  sner tag-view hosts 3 --tag todo --unset
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := lookupView(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			verb := action.VerbSet
			if unset {
				verb = action.VerbUnset
			}
			a, err := openApp(cmd, app, appctx.Options{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			out, err := a.TagView(cmd.Context(), v, grid.ID(args[1]), tag, verb)
			return dispatchResult(cmd, app, out, err, []string{args[1]})
		},
	}
	cmd.Flags().StringVar(&tag, "tag", "", "Tag (e.g. todo, report, report:data)")
	cmd.Flags().BoolVar(&unset, "unset", false, "Remove the tag instead of setting it")
	_ = cmd.MarkFlagRequired("tag")
	return cmd
}

// flagTags answers the tag editor with tags given on the command line.
type flagTags []string

func (t flagTags) EditTags(context.Context, string) ([]string, bool, error) {
	return []string(t), len(t) > 0, nil
}

func newFreeTagCmd(app *App) *cobra.Command {
	var o selectOptions
	var tags []string
	var unset bool
	cmd := &cobra.Command{
		Use:   "freetag <view> --tag <tag>... [id...]",
		Short: "Set or unset free-form tags on the selected rows",
		Example: strings.TrimSpace(`
  sner freetag hosts --tag i:reviewed --tag i:ext 12 14
  sner freetag hosts --unset --tag i:ext --visible --query 'filter=Host.os ilike "%linux%"'
`),
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := lookupView(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			if strings.TrimSpace(action.JoinTags(tags)) == "" {
				return writeErr(cmd, errors.New("at least one --tag is required"))
			}
			verb := action.VerbSet
			if unset {
				verb = action.VerbUnset
			}
			a, err := openApp(cmd, app, appctx.Options{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			if !v.Taggable() {
				return writeErr(cmd, fmt.Errorf("%s cannot be tagged", v.Name))
			}
			s, err := selectRows(cmd.Context(), a, v, o, args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}
			ids := selectionIDs(s)
			endpoint := a.Routes.MustURLFor(v.TagRoute, nil)
			out, err := a.Dispatcher.FreeTag(cmd.Context(), s, endpoint, verb, flagTags(tags))
			return dispatchResult(cmd, app, out, err, ids)
		},
	}
	o.bind(cmd)
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag to set (repeatable)")
	cmd.Flags().BoolVar(&unset, "unset", false, "Remove the tags instead of setting them")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	var o selectOptions
	cmd := &cobra.Command{
		Use:   "delete <view> [id...]",
		Short: "Delete the selected rows (asks for confirmation unless --yes)",
		Args:  cobra.MinimumNArgs(1),
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

			desc, err := a.DeleteDescriptor(v)
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := selectRows(cmd.Context(), a, v, o, args[1:])
			if err != nil {
				return writeErr(cmd, err)
			}
			ids := selectionIDs(s)
			out, err := a.Dispatcher.Dispatch(cmd.Context(), desc, s, nil)
			return dispatchResult(cmd, app, out, err, ids)
		},
	}
	o.bind(cmd)
	return cmd
}

func findControl(s *grid.Session, id grid.ID, label string) (int, grid.Control, error) {
	cs := s.Controls(id)
	if len(cs) == 0 {
		return -1, grid.Control{}, fmt.Errorf("row %s is not on the current page or has no controls", id)
	}
	var labels []string
	for i, c := range cs {
		if strings.EqualFold(c.Label, label) || strings.EqualFold(c.Title, label) {
			return i, c, nil
		}
		labels = append(labels, c.Label)
	}
	return -1, grid.Control{}, fmt.Errorf("row %s has no control %q (available: %s)", id, label, strings.Join(labels, ", "))
}

func newControlCmd(app *App) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "control <view> <id> <label>",
		Short: "Run a row control (edit, delete, flush, prune, ...)",
		Example: strings.TrimSpace(`
  sner control queues 3 flush --yes
  sner control jobs 2f1d delete
`),
		Args: cobra.ExactArgs(3),
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

			s, err := a.OpenGrid(cmd.Context(), v, query)
			if err != nil {
				return writeErr(cmd, err)
			}
			id := grid.ID(args[1])
			i, ctl, err := findControl(s, id, args[2])
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := s.TriggerControl(cmd.Context(), id, i); err != nil {
				return writeErr(cmd, err)
			}
			data := map[string]any{"id": string(id), "control": ctl.Label}
			if ctl.Kind == grid.ControlLink {
				data["url"] = a.Client.Resolve(ctl.URL)
			}
			return writeOut(cmd, app, map[string]any{"data": data})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Console query of the view")
	return cmd
}

// flagAnnotation answers the annotate form with values given on the command line.
type flagAnnotation struct {
	tags       []string
	setTags    bool
	comment    string
	setComment bool
}

func (f flagAnnotation) EditForm(_ context.Context, _ string, form *action.Form) (url.Values, bool, error) {
	values := form.Values()
	if f.setTags {
		if len(form.TagFields) == 0 {
			return nil, false, errors.New("annotate form has no tag field")
		}
		for _, name := range form.TagFields {
			values.Set(name, action.JoinTags(f.tags))
		}
	}
	if f.setComment {
		values.Set("comment", f.comment)
	}
	return values, true, nil
}

func newAnnotateCmd(app *App) *cobra.Command {
	var query string
	var detail bool
	var ann flagAnnotation
	cmd := &cobra.Command{
		Use:   "annotate <view> <id> [--tag <tag>...] [--comment <text>]",
		Short: "Edit the tags and comment of one row",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := lookupView(args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			ann.setTags = cmd.Flags().Changed("tag")
			ann.setComment = cmd.Flags().Changed("comment")
			if !ann.setTags && !ann.setComment {
				return writeErr(cmd, errors.New("nothing to annotate: pass --tag and/or --comment"))
			}
			a, err := openApp(cmd, app, appctx.Options{Annotate: ann})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			if detail {
				out, err := a.AnnotateView(cmd.Context(), v, grid.ID(args[1]))
				return dispatchResult(cmd, app, out, err, []string{args[1]})
			}
			formURL, err := v.AnnotatePath(a.Routes, grid.ID(args[1]))
			if err != nil {
				return writeErr(cmd, err)
			}
			s, err := a.OpenGrid(cmd.Context(), v, query)
			if err != nil {
				return writeErr(cmd, err)
			}
			out, err := a.Surface.AnnotateRow(cmd.Context(), formURL, s)
			return dispatchResult(cmd, app, out, err, []string{args[1]})
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Console query of the view")
	cmd.Flags().BoolVar(&detail, "view", false, "Annotate from the entity's detail view; no grid is opened")
	cmd.Flags().StringArrayVar(&ann.tags, "tag", nil, "Tag (repeatable; replaces the row's tags)")
	cmd.Flags().StringVar(&ann.comment, "comment", "", "Comment")
	return cmd
}
