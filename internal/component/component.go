// Package component holds the rendering components of the console views:
// route partials, helpers and text templates compiled per component.
package component

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"sner-console/internal/grid"
	"sner-console/internal/routes"
)

// Declarations is what a component contributes: route partials by name,
// helper funcs and template sources.
type Declarations struct {
	// Partials are route names registered as templates rendering the route's
	// path with {{.arg}} placeholders; invoke with
	// {{template "storage.host_view_route" (dict "host_id" .id)}}.
	Partials  []string
	Helpers   template.FuncMap
	Templates map[string]string
}

type Component interface {
	Name() string
	Declare() Declarations
}

// Registry holds the compiled templates of every registered component.
type Registry struct {
	routes routes.Table

	mu        sync.RWMutex
	templates map[string]*template.Template
}

func NewRegistry(rt routes.Table) *Registry {
	return &Registry{routes: rt, templates: map[string]*template.Template{}}
}

// Compile registers c's partials, helpers and templates. Templates are
// addressed as <component>.<template> and may invoke each other by their
// short name.
func Compile(r *Registry, c Component) error {
	decl := c.Declare()

	funcs := sprig.TxtFuncMap()
	funcs["url_for"] = r.urlFor
	funcs["badge"] = Badge
	for name, fn := range decl.Helpers {
		funcs[name] = fn
	}

	base := template.New(c.Name()).Funcs(funcs)
	partials := append([]string(nil), decl.Partials...)
	sort.Strings(partials)
	for _, name := range partials {
		src, err := r.partialSource(name)
		if err != nil {
			return fmt.Errorf("component %s: %w", c.Name(), err)
		}
		if _, err := base.New(name).Parse(src); err != nil {
			return fmt.Errorf("component %s: partial %s: %w", c.Name(), name, err)
		}
	}

	names := make([]string, 0, len(decl.Templates))
	for name := range decl.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := base.New(name).Parse(decl.Templates[name]); err != nil {
			return fmt.Errorf("component %s: template %s: %w", c.Name(), name, err)
		}
	}
	compiled := map[string]*template.Template{}
	for _, name := range names {
		compiled[c.Name()+"."+name] = base.Lookup(name)
	}

	r.mu.Lock()
	for k, t := range compiled {
		r.templates[k] = t
	}
	r.mu.Unlock()
	return nil
}

// partialSource turns a route pattern into template text: <host_id> becomes {{.host_id}}.
func (r *Registry) partialSource(name string) (string, error) {
	pattern, ok := r.routes[name]
	if !ok {
		return "", fmt.Errorf("unknown route %q", name)
	}
	src := pattern
	for _, arg := range r.routes.Args(name) {
		src = strings.Replace(src, "<"+arg+">", "{{."+arg+"}}", 1)
	}
	return src, nil
}

// urlFor is the url_for template func: url_for "name" "key" value ...
func (r *Registry) urlFor(name string, kv ...any) (string, error) {
	if len(kv)%2 != 0 {
		return "", fmt.Errorf("url_for %s: odd number of params", name)
	}
	params := map[string]string{}
	for i := 0; i < len(kv); i += 2 {
		params[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
	}
	return r.routes.URLFor(name, params)
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.templates[name]
	return ok
}

// Names lists the compiled templates.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.templates))
	for k := range r.templates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Render executes template name (<component>.<template>) with data.
func (r *Registry) Render(name string, data any) (string, error) {
	r.mu.RLock()
	t, ok := r.templates[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template not found: %s", name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// RenderFunc adapts template name into a grid cell renderer. Render errors
// show as "!" in the cell; whitespace is collapsed to single spaces.
func (r *Registry) RenderFunc(name string) grid.RenderFunc {
	return func(row grid.Row) string {
		out, err := r.Render(name, map[string]any(row))
		if err != nil {
			return "!"
		}
		return strings.Join(strings.Fields(out), " ")
	}
}

// ControlsFunc renders template name into per-row controls. The template
// emits one control per line: kind|label|url|confirmation, kind being
// link, delete or submit.
func (r *Registry) ControlsFunc(name string) grid.ControlsFunc {
	return func(row grid.Row) []grid.Control {
		out, err := r.Render(name, map[string]any(row))
		if err != nil {
			return nil
		}
		return ParseControls(out)
	}
}

func ParseControls(s string) []grid.Control {
	var cs []grid.Control
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 3 {
			continue
		}
		c := grid.Control{Label: strings.TrimSpace(parts[1]), URL: strings.TrimSpace(parts[2])}
		if len(parts) > 3 {
			c.Confirmation = strings.TrimSpace(parts[3])
		}
		switch strings.TrimSpace(parts[0]) {
		case "delete":
			c.Kind = grid.ControlDelete
		case "submit":
			c.Kind = grid.ControlSubmit
		default:
			c.Kind = grid.ControlLink
		}
		c.Title = c.Label
		cs = append(cs, c)
	}
	return cs
}

// Defaults returns the console components.
func Defaults() []Component {
	return []Component{Storage{}, Scheduler{}, Auth{}}
}

// NewDefaultRegistry compiles the console components against rt.
func NewDefaultRegistry(rt routes.Table) (*Registry, error) {
	r := NewRegistry(rt)
	for _, c := range Defaults() {
		if err := Compile(r, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}
