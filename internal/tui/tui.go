package tui

import (
	"context"

	"sner-console/internal/app"
	"sner-console/internal/notify"
	"sner-console/internal/store"
	"sner-console/internal/views"

	tea "github.com/charmbracelet/bubbletea"
)

// Run opens the grid of view v (with the console query rawQuery) full screen.
func Run(ctx context.Context, cfg store.Config, v views.View, rawQuery string, opts app.Options) error {
	applyColorProfilePreference()
	theme := ""
	if cfg.TUI != nil {
		theme = cfg.TUI.Theme
	}
	applyThemePreference(theme)

	notes := &notify.Recorder{}
	latch := &modalLatch{}
	opts.Notifier = notes
	opts.Modal = latch
	a, err := app.New(ctx, cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	m := newModel(ctx, a, notes, latch, v, rawQuery)
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}
