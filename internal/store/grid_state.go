package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"sner-console/internal/logger"
)

const (
	// GridStateNamespace prefixes every persisted grid state key.
	GridStateNamespace = "DataTables"

	// ViaTargetColumnFlag toggles the optional via_target column of service/vuln grids.
	ViaTargetColumnFlag = "dt_viatarget_column_visible"
)

// ViewKey identifies a view: the path plus the raw query string.
// Two views with the same path but different filters never share state.
type ViewKey struct {
	Path     string
	RawQuery string
}

func (k ViewKey) String() string {
	q := ""
	if k.RawQuery != "" {
		q = "?" + k.RawQuery
	}
	return k.Path + "_" + q
}

type OrderSpec struct {
	Column int    `json:"column"`
	Dir    string `json:"dir"`
}

type ColumnState struct {
	Visible bool   `json:"visible"`
	Search  string `json:"search,omitempty"`
}

// GridState is the persisted paging/sort/search state of one grid.
type GridState struct {
	Time    int64         `json:"time"`
	Start   int           `json:"start"`
	Length  int           `json:"length"`
	Order   []OrderSpec   `json:"order"`
	Search  string        `json:"search"`
	Columns []ColumnState `json:"columns,omitempty"`
}

// Page is the zero-based page the state points at.
func (s GridState) Page() int {
	if s.Length <= 0 {
		return 0
	}
	return s.Start / s.Length
}

// Reloader re-initializes whatever reads grid states at startup.
type Reloader interface {
	Reload(ctx context.Context) error
}

type ReloadFunc func(ctx context.Context) error

func (f ReloadFunc) Reload(ctx context.Context) error { return f(ctx) }

// GridStates stores GridState values in a KV under namespaced keys.
type GridStates struct {
	kv       KV
	reloader Reloader
}

func NewGridStates(kv KV) *GridStates {
	return &GridStates{kv: kv}
}

func (g *GridStates) SetReloader(r Reloader) { g.reloader = r }

// Key builds <namespace>_<instanceID>_<path>_<query>.
func (g *GridStates) Key(instanceID string, vk ViewKey) string {
	return GridStateNamespace + "_" + instanceID + "_" + vk.String()
}

func (g *GridStates) Save(ctx context.Context, instanceID string, vk ViewKey, st GridState) error {
	if st.Time == 0 {
		st.Time = time.Now().UnixMilli()
	}
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return g.kv.Set(ctx, g.Key(instanceID, vk), string(b))
}

// Load returns the state saved under the exact key. Missing, unreadable or
// malformed values are reported as absent.
func (g *GridStates) Load(ctx context.Context, instanceID string, vk ViewKey) (GridState, bool) {
	key := g.Key(instanceID, vk)
	raw, ok, err := g.kv.Get(ctx, key)
	if err != nil {
		logger.FromContext(ctx).Debug("grid state read failed", "key", key, "err", err)
		return GridState{}, false
	}
	if !ok || strings.TrimSpace(raw) == "" || raw == "null" {
		return GridState{}, false
	}
	var st GridState
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		logger.FromContext(ctx).Debug("grid state corrupt, ignoring", "key", key, "err", err)
		return GridState{}, false
	}
	return st, true
}

// ResetAll removes every saved grid state and reloads, since grids only read
// their state when initialized. Keys outside the namespace are left alone.
func (g *GridStates) ResetAll(ctx context.Context) (int, error) {
	n, err := g.kv.DeleteByPrefix(ctx, GridStateNamespace+"_")
	if err != nil {
		return n, fmt.Errorf("reset grid states: %w", err)
	}
	if g.reloader != nil {
		if err := g.reloader.Reload(ctx); err != nil {
			return n, fmt.Errorf("reload after reset: %w", err)
		}
	}
	return n, nil
}

// ColumnVisible reads a boolean visibility flag; missing or corrupt reads as false.
func (g *GridStates) ColumnVisible(ctx context.Context, flag string) bool {
	raw, ok, err := g.kv.Get(ctx, flag)
	if err != nil || !ok {
		return false
	}
	var v bool
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		if b, perr := strconv.ParseBool(strings.TrimSpace(raw)); perr == nil {
			return b
		}
		return false
	}
	return v
}

// ToggleColumnVisibility flips flag and clears all grid states: a saved state
// carries column visibility and takes precedence over the grid's defaults.
func (g *GridStates) ToggleColumnVisibility(ctx context.Context, flag string) (bool, error) {
	next := !g.ColumnVisible(ctx, flag)
	b, _ := json.Marshal(next)
	if err := g.kv.Set(ctx, flag, string(b)); err != nil {
		return false, err
	}
	if _, err := g.ResetAll(ctx); err != nil {
		return next, err
	}
	return next, nil
}
