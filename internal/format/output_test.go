package format

import (
	"bytes"
	"strings"
	"testing"
)

type table struct {
	header []string
	rows   [][]string
}

func (t table) Table() ([]string, [][]string) { return t.header, t.rows }

func TestWriteTSV(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	v := table{header: []string{"id", "address"}, rows: [][]string{{"1", "10.0.0.1"}, {"2", "a\tb\nc"}}}
	if err := Write(&buf, v, "tsv", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "id\taddress\n1\t10.0.0.1\n2\ta b c\n"
	if got := buf.String(); got != want {
		t.Fatalf("tsv: got %q want %q", got, want)
	}
}

func TestWrite_JSONAndErrors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	if err := Write(&buf, map[string]any{"data": 1}, "", false); err != nil {
		t.Fatalf("json: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != `{"data":1}` {
		t.Fatalf("json: got %q", got)
	}
	if err := Write(&buf, map[string]any{}, "tsv", false); err == nil {
		t.Fatalf("tsv of a non-tabular value should fail")
	}
	if err := Write(&buf, 1, "edn", false); err == nil {
		t.Fatalf("unknown format should fail")
	}
}
