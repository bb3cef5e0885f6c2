package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	appctx "sner-console/internal/app"
	"sner-console/internal/format"
	"sner-console/internal/logger"
	"sner-console/internal/notify"
	"sner-console/internal/store"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type App struct {
	URL        string
	Session    string
	NewSession bool
	StateDB    string
	PrettyJSON bool
	Format     string
	Yes        bool

	LogLevel string
	LogJSON  bool
	LogFile  string

	logCloser io.Closer
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "sner",
		Short:        "Terminal client for the sner console grids",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Browse hosts interactively
  sner

  # Open a view directly (shortcut for: sner tui vulns)
  sner vulns

  # Scriptable commands
  sner list services --query 'filter=Service.port==22'
  sner tag hosts --tag todo 12 14
  sner delete vulns --yes 7
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI on hosts.
			if len(args) == 0 {
				return runTUI(cmd, app, "hosts", "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, logJSON, path, err := logger.GetLoggerConfig(cmd)
		if err != nil {
			return err
		}
		closer, err := logger.SetupLogger(level, logJSON, path)
		if err != nil {
			return err
		}
		app.logCloser = closer
		if app.NewSession {
			app.Session = uuid.NewString()
		}
		return nil
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.logCloser == nil {
			return nil
		}
		return app.logCloser.Close()
	}

	cmd.PersistentFlags().StringVar(&app.URL, "url", envOr("SNER_URL", ""), "Console base url (overrides baseUrl in config.json)")
	cmd.PersistentFlags().StringVar(&app.Session, "session", envOr("SNER_SESSION", ""), "Grid state session (default: 'default')")
	cmd.PersistentFlags().BoolVar(&app.NewSession, "new-session", false, "Start from a fresh grid state session")
	cmd.PersistentFlags().StringVar(&app.StateDB, "state-db", envOr("SNER_STATE_DB", ""), "Grid state db path (':memory:' keeps nothing)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("SNER_FORMAT", "json"), "Output format (json|tsv)")
	cmd.PersistentFlags().BoolVarP(&app.Yes, "yes", "y", false, "Answer yes to confirmations")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("SNER_LOG_LEVEL", "warn"), "Log level (debug|info|warn|error|disabled)")
	cmd.PersistentFlags().BoolVar(&app.LogJSON, "log-json", false, "Log as JSON")
	cmd.PersistentFlags().StringVar(&app.LogFile, "log-file", envOr("SNER_LOG_FILE", ""), "Log to a file instead of stderr")

	cmd.AddCommand(newViewsCmd(app))
	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newTagCmd(app, "tag"))
	cmd.AddCommand(newTagCmd(app, "untag"))
	cmd.AddCommand(newTagViewCmd(app))
	cmd.AddCommand(newFreeTagCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newControlCmd(app))
	cmd.AddCommand(newAnnotateCmd(app))
	cmd.AddCommand(newQuickjumpCmd(app))
	cmd.AddCommand(newResetCmd(app))
	cmd.AddCommand(newToggleColumnCmd(app))
	cmd.AddCommand(newTUICmd(app))

	return cmd
}

// loadConfig reads config.json; flags take precedence.
func loadConfig(app *App) (store.Config, error) {
	cfg, err := store.LoadConfig()
	if err != nil {
		return store.Config{}, fmt.Errorf("load config: %w", err)
	}
	if v := strings.TrimSpace(app.URL); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(app.Session); v != "" {
		cfg.Session = v
	}
	if v := strings.TrimSpace(app.StateDB); v != "" {
		cfg.StateDB = v
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return store.Config{}, fmt.Errorf("console url is not set (use --url, SNER_URL or baseUrl in %s)", configPathHint())
	}
	return *cfg, nil
}

func configPathHint() string {
	p, err := store.ConfigPath()
	if err != nil {
		return "config.json"
	}
	return p
}

// openApp builds the application context for one command. Notifications go to stderr.
func openApp(cmd *cobra.Command, app *App, opts appctx.Options) (*appctx.Context, error) {
	cfg, err := loadConfig(app)
	if err != nil {
		return nil, err
	}
	if opts.Notifier == nil {
		opts.Notifier = &notify.Writer{W: cmd.ErrOrStderr()}
	}
	if opts.Confirmer == nil {
		opts.Confirmer = &promptConfirmer{in: cmd.InOrStdin(), out: cmd.ErrOrStderr(), yes: app.Yes}
	}
	// A --new-session uuid is never reused; its states go with the process.
	opts.EndSessionOnClose = app.NewSession
	return appctx.New(cmd.Context(), cfg, opts)
}

type promptConfirmer struct {
	in  io.Reader
	out io.Writer
	yes bool
}

func (p *promptConfirmer) Confirm(_ context.Context, message string) (bool, error) {
	if p.yes {
		return true, nil
	}
	_, _ = fmt.Fprintf(p.out, "%s [y/N] ", message)
	line, err := bufio.NewReader(p.in).ReadString('\n')
	if err != nil && line == "" {
		// No terminal answer (closed stdin) declines.
		_, _ = fmt.Fprintln(p.out)
		return false, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	_, _ = fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}

func envOr(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}
