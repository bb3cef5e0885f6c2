package tui

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

type rendererKey struct {
	dark  bool
	width int
}

// detailRenderers caches glamour renderers per background and wrap width.
// A fixed style is chosen up front: WithAutoStyle queries the terminal and
// can block inside a running program.
type detailRenderers struct {
	mu sync.Mutex
	m  map[rendererKey]*glamour.TermRenderer
}

var details = &detailRenderers{m: map[rendererKey]*glamour.TermRenderer{}}

func (d *detailRenderers) get(k rendererKey) (*glamour.TermRenderer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.m[k]; ok {
		return r, nil
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStyles(detailStyle(k.dark)),
		glamour.WithWordWrap(k.width),
	)
	if err != nil {
		return nil, fmt.Errorf("markdown renderer: %w", err)
	}
	d.m[k] = r
	return r, nil
}

// renderMarkdown renders a row detail document at width. The source is
// returned unchanged when rendering fails.
func renderMarkdown(md string, width int) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	r, err := details.get(rendererKey{dark: lipgloss.HasDarkBackground(), width: max(width, 10)})
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

// detailStyle keeps glamour's palette for code and tables but draws text and
// headings in the surface colour, links in the accent, with no document margin.
func detailStyle(dark bool) ansi.StyleConfig {
	cfg := styles.LightStyleConfig
	if dark {
		cfg = styles.DarkStyleConfig
	}
	pick := func(c lipgloss.AdaptiveColor) *string {
		s := c.Light
		if dark {
			s = c.Dark
		}
		return &s
	}
	margin := uint(0)
	underline := true

	cfg.Document.Margin = &margin
	text := pick(colorSurfaceFg)
	for _, block := range []*ansi.StyleBlock{&cfg.Heading, &cfg.H1, &cfg.H2, &cfg.H3} {
		block.Color = text
	}
	cfg.Text.Color = text
	cfg.Code.Color = text
	cfg.Link.Color = pick(colorAccent)
	cfg.Link.Underline = &underline
	cfg.LinkText.Color = cfg.Link.Color
	cfg.Strong.Color = nil
	cfg.Emph.Color = nil
	return cfg
}
