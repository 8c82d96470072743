// Package render formats query results for the CLI (§4.8's table/JSON
// output boundary). Every query command goes through Table or JSON so
// `--format=json` behaves identically across the whole surface.
package render

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
)

// Options controls table styling and colorization.
type Options struct {
	Format       Format
	ColorEnabled bool
}

// Table writes rows as a go-pretty table (human format) or as a JSON
// array of objects (--format=json), matching the columns/values given.
func Table(w io.Writer, opts Options, columns []string, rows [][]any) error {
	if opts.Format == FormatJSON {
		return writeJSON(w, columns, rows)
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	header := make(table.Row, len(columns))
	for i, c := range columns {
		header[i] = c
	}

	tbl.AppendHeader(header)

	for _, row := range rows {
		tbl.AppendRow(table.Row(row))
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("%d row(s)", len(rows))})
	tbl.Render()

	return nil
}

func writeJSON(w io.Writer, columns []string, rows [][]any) error {
	objects := make([]map[string]any, 0, len(rows))

	for _, row := range rows {
		obj := make(map[string]any, len(columns))

		for i, c := range columns {
			if i < len(row) {
				obj[c] = row[i]
			}
		}

		objects = append(objects, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(objects)
}

// Error writes an error to w, either as a colorized one-liner or (in JSON
// mode) as {"error": {"kind": ..., "message": ...}} (§7).
func Error(w io.Writer, opts Options, kind, message string) {
	if opts.Format == FormatJSON {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"kind": kind, "message": message},
		})

		return
	}

	if opts.ColorEnabled {
		color.New(color.FgRed).Fprintf(w, "Error: %s\n", message)

		return
	}

	fmt.Fprintf(w, "Error: %s\n", message)
}

// Info writes a colorized informational line in table mode, or a
// {"message": ...} JSON object in JSON mode.
func Info(w io.Writer, opts Options, message string) {
	if opts.Format == FormatJSON {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": message})

		return
	}

	if opts.ColorEnabled {
		color.New(color.FgCyan).Fprintln(w, message)

		return
	}

	fmt.Fprintln(w, message)
}
