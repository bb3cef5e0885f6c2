package cli

import (
	"fmt"
	"strings"

	appctx "sner-console/internal/app"
	"sner-console/internal/logger"
	"sner-console/internal/tui"

	"github.com/spf13/cobra"
)

func newResetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear every saved grid state of the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app, appctx.Options{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			n, err := a.ResetAll(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"cleared": n}})
		},
	}
}

// toggleColumns maps the toggle-column argument to its persisted flag.
var toggleColumns = map[string]struct{}{
	"via_target": {},
}

func newToggleColumnCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:       "toggle-column via_target",
		Short:     "Show or hide an optional grid column (resets grid states)",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"via_target"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if _, ok := toggleColumns[name]; !ok {
				return writeErr(cmd, fmt.Errorf("unknown optional column %q", name))
			}
			a, err := openApp(cmd, app, appctx.Options{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			on, err := a.ToggleViaTarget(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"column": name, "visible": on}})
		},
	}
}

func newQuickjumpCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quickjump <term>",
		Short: "Resolve an address, hostname or address:port to its console page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, app, appctx.Options{})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer func() { _ = a.Close() }()

			u, err := a.Quickjump(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"url": u}})
		},
	}
}

func newTUICmd(app *App) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "tui [view]",
		Short: "Browse grids interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "hosts"
			if len(args) == 1 {
				name = args[0]
			}
			return runTUI(cmd, app, name, query)
		},
	}
	cmd.Flags().StringVar(&query, "query", "", "Console query of the first view")
	return cmd
}

func runTUI(cmd *cobra.Command, app *App, name, rawQuery string) error {
	v, err := lookupView(name)
	if err != nil {
		return writeErr(cmd, err)
	}
	cfg, err := loadConfig(app)
	if err != nil {
		return writeErr(cmd, err)
	}
	// Log lines on stderr would tear the screen; keep only --log-file logging.
	if strings.TrimSpace(app.LogFile) == "" {
		closer, err := logger.SetupLogger(string(logger.DisabledLevel), false, "")
		if err != nil {
			return writeErr(cmd, err)
		}
		_ = closer.Close()
	}
	if err := tui.Run(cmd.Context(), cfg, v, rawQuery, appctx.Options{EndSessionOnClose: app.NewSession}); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
