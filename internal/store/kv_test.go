package store

import (
	"context"
	"path/filepath"
	"testing"
)

func testKVs(t *testing.T) map[string]KV {
	t.Helper()
	ctx := context.Background()
	sq, err := OpenSQLiteKV(ctx, filepath.Join(t.TempDir(), "state.sqlite"), "sess-a")
	if err != nil {
		t.Fatalf("OpenSQLiteKV: %v", err)
	}
	t.Cleanup(func() { _ = sq.Close() })
	return map[string]KV{
		"memory": NewMemoryKV(),
		"sqlite": sq,
	}
}

func TestKV_DeleteByPrefix(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	for name, kv := range testKVs(t) {
		for _, k := range []string{"DataTables_a", "DataTables_b", "DataTablesX", "other_DataTables_c"} {
			if err := kv.Set(ctx, k, "1"); err != nil {
				t.Fatalf("%s: set %s: %v", name, k, err)
			}
		}
		n, err := kv.DeleteByPrefix(ctx, "DataTables_")
		if err != nil {
			t.Fatalf("%s: DeleteByPrefix: %v", name, err)
		}
		if n != 2 {
			t.Fatalf("%s: expected 2 deleted, got %d", name, n)
		}
		for _, k := range []string{"DataTablesX", "other_DataTables_c"} {
			if _, ok, _ := kv.Get(ctx, k); !ok {
				t.Fatalf("%s: expected %s to survive", name, k)
			}
		}
		if _, ok, _ := kv.Get(ctx, "DataTables_a"); ok {
			t.Fatalf("%s: expected DataTables_a to be deleted", name)
		}
	}
}

func TestSQLiteKV_SessionsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.sqlite")

	a, err := OpenSQLiteKV(ctx, path, "sess-a")
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	defer a.Close()
	b, err := OpenSQLiteKV(ctx, path, "sess-b")
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	defer b.Close()
	a2, err := OpenSQLiteKV(ctx, path, "sess-a")
	if err != nil {
		t.Fatalf("open a2: %v", err)
	}
	defer a2.Close()

	if err := a.Set(ctx, "k", "from-a"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := b.Get(ctx, "k"); ok {
		t.Fatalf("session b must not see session a values")
	}
	if v, ok, _ := a2.Get(ctx, "k"); !ok || v != "from-a" {
		t.Fatalf("same session should share values; got %q ok=%v", v, ok)
	}

	if err := a.EndSession(ctx); err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if _, ok, _ := a2.Get(ctx, "k"); ok {
		t.Fatalf("expected value gone after EndSession")
	}
}

func TestOpenSQLiteKV_RequiresSession(t *testing.T) {
	t.Parallel()
	if _, err := OpenSQLiteKV(context.Background(), filepath.Join(t.TempDir(), "x.sqlite"), "  "); err == nil {
		t.Fatalf("expected error for empty session")
	}
}
