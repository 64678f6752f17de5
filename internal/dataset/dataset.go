// Package dataset loads the matcher's two input tables and writes its two
// output tables. Schema problems surface before any output exists; row-level
// problems are absorbed and counted by the callers.
package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/bigrise-data/bigrise/internal/fetcher"
)

// SchemaError reports a dataset whose header is missing required columns.
// Raised before anything downstream runs, so a malformed input can never
// produce partial output.
type SchemaError struct {
	Dataset string
	Path    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("dataset %s (%s): missing required columns: %s",
		e.Dataset, e.Path, strings.Join(e.Missing, ", "))
}

// rawTable is a parsed tabular file: the header as read plus rows padded to
// the header width.
type rawTable struct {
	Columns []string
	Rows    [][]string
	lower   map[string]int
}

// col returns the index of a column by its case-insensitive name, -1 when
// absent.
func (t *rawTable) col(name string) int {
	if i, ok := t.lower[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

// cell returns a row's value for a column index, tolerating short rows.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// readTable parses a CSV or XLSX file by extension. CSV input may carry a
// UTF-8 byte-order mark (the outputs of this pipeline do, for Excel); it is
// consumed transparently.
func readTable(ctx context.Context, path string) (*rawTable, error) {
	var header []string
	var rows [][]string

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		all, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read %s", path)
		}
		if len(all) == 0 {
			return nil, eris.Errorf("dataset: %s has no header row", path)
		}
		header, rows = all[0], all[1:]
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: open %s", path)
		}
		defer f.Close() //nolint:errcheck

		header, rows, err = readCSV(ctx, f)
		if err != nil {
			return nil, eris.Wrapf(err, "dataset: read %s", path)
		}
		if header == nil {
			return nil, eris.Errorf("dataset: %s has no header row", path)
		}
	}

	t := &rawTable{
		Columns: trimAll(header),
		lower:   make(map[string]int, len(header)),
	}
	for i, c := range t.Columns {
		t.lower[strings.ToLower(c)] = i
	}
	// Pad short rows so cells stay aligned with the header all the way to
	// the output writer.
	t.Rows = make([][]string, 0, len(rows))
	for _, row := range rows {
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// readCSV streams a CSV body and collects header plus rows.
func readCSV(ctx context.Context, r io.Reader) ([]string, [][]string, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	headerCh := make(chan []string, 1)
	rowCh, errCh := fetcher.StreamCSV(ctx, decoded, fetcher.CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, nil, err
	}

	select {
	case header := <-headerCh:
		return header, rows, nil
	default:
		return nil, rows, nil
	}
}

// missingColumns lists required columns absent from the table.
func (t *rawTable) missingColumns(required []string) []string {
	var missing []string
	for _, c := range required {
		if t.col(c) < 0 {
			missing = append(missing, c)
		}
	}
	return missing
}

func trimAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
