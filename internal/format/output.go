package format

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Tabular values can be written as tab-separated rows.
type Tabular interface {
	Table() (header []string, rows [][]string)
}

// Write writes output in the requested format.
//
// Supported formats:
// - json (default)
// - tsv (only for Tabular values)
func Write(w io.Writer, v any, format string, pretty bool) error {
	switch format {
	case "", "json":
		return WriteJSON(w, v, pretty)
	case "tsv":
		t, ok := v.(Tabular)
		if !ok {
			return fmt.Errorf("tsv output is not available for %T", v)
		}
		return WriteTSV(w, t)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// WriteJSON writes strict JSON output for CLI commands.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}

// WriteTSV writes a header line followed by one line per row. Tabs and
// newlines inside cells become spaces.
func WriteTSV(w io.Writer, t Tabular) error {
	header, rows := t.Table()
	if len(header) > 0 {
		if err := writeTSVLine(w, header); err != nil {
			return err
		}
	}
	for _, r := range rows {
		if err := writeTSVLine(w, r); err != nil {
			return err
		}
	}
	return nil
}

var tsvCell = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

func writeTSVLine(w io.Writer, cells []string) error {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = tsvCell.Replace(c)
	}
	_, err := fmt.Fprintln(w, strings.Join(out, "\t"))
	return err
}
