package dataset

import (
	"encoding/csv"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/bigrise-data/bigrise/internal/model"
)

// matchedColumns are appended to the input columns on emission, in this
// order. Unmatched rows carry them empty.
var matchedColumns = []string{
	"industry_info", "industry_frequency", "industry_source", "industry_update_date",
}

// utf8BOM prefixes every CSV this pipeline writes. The downstream consumers
// open these files in Excel, which needs the mark to pick UTF-8 for Korean
// text.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FullOutputName is the file name of the full match output for a date.
func FullOutputName(date string) string {
	return "bigrise_" + date + ".csv"
}

// RecentOutputName is the file name of the recent-subset output for a date.
func RecentOutputName(date string) string {
	return "bigrise_recent_" + date + ".csv"
}

// writeCSV writes a BOM-prefixed CSV through emit. The file appears
// atomically: rows go to a temp file in the target directory which is renamed
// into place only after a clean flush.
func writeCSV(path string, emit func(w *csv.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".bigrise-*.csv")
	if err != nil {
		return eris.Wrapf(err, "dataset: create temp for %s", path)
	}
	defer func() {
		tmp.Close()           //nolint:errcheck
		os.Remove(tmp.Name()) //nolint:errcheck
	}()

	if _, err := tmp.Write(utf8BOM); err != nil {
		return eris.Wrapf(err, "dataset: write %s", path)
	}

	w := csv.NewWriter(tmp)
	if err := emit(w); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrapf(err, "dataset: flush %s", path)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "dataset: close temp for %s", path)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "dataset: move output into place at %s", path)
	}
	return nil
}

// WriteTable writes a plain string table as an atomic BOM-prefixed CSV. Short
// rows are padded to the header width.
func WriteTable(path string, columns []string, rows [][]string) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(columns); err != nil {
			return eris.Wrapf(err, "dataset: write header for %s", path)
		}
		record := make([]string, 0, len(columns))
		for _, row := range rows {
			record = record[:0]
			record = append(record, row...)
			for len(record) < len(columns) {
				record = append(record, "")
			}
			if err := w.Write(record[:len(columns)]); err != nil {
				return eris.Wrapf(err, "dataset: write row for %s", path)
			}
		}
		return nil
	})
}

// WriteResolved writes one match output table: the input columns verbatim
// plus the four industry columns.
func WriteResolved(path string, columns []string, rows []model.ResolvedHolding) error {
	return writeCSV(path, func(w *csv.Writer) error {
		if err := w.Write(append(append([]string{}, columns...), matchedColumns...)); err != nil {
			return eris.Wrapf(err, "dataset: write header for %s", path)
		}
		record := make([]string, 0, len(columns)+len(matchedColumns))
		for i := range rows {
			r := &rows[i]
			record = record[:0]
			record = append(record, r.Fields...)
			for len(record) < len(columns) {
				record = append(record, "")
			}
			record = record[:len(columns)]
			record = append(record, r.IndustryInfo, r.IndustryFrequency, r.IndustrySource, r.IndustryUpdate)
			if err := w.Write(record); err != nil {
				return eris.Wrapf(err, "dataset: write row for %s", path)
			}
		}
		return nil
	})
}

// WriteMatchOutputs writes the full and recent tables for a reference date
// under outDir, all or nothing: if the second write fails the first is
// removed so consumers never see an unpaired output.
func WriteMatchOutputs(outDir, date string, columns []string, full, recent []model.ResolvedHolding) (fullPath, recentPath string, err error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", "", eris.Wrapf(err, "dataset: create output dir %s", outDir)
	}

	fullPath = filepath.Join(outDir, FullOutputName(date))
	recentPath = filepath.Join(outDir, RecentOutputName(date))

	if err := WriteResolved(fullPath, columns, full); err != nil {
		return "", "", err
	}
	if err := WriteResolved(recentPath, columns, recent); err != nil {
		os.Remove(fullPath) //nolint:errcheck
		return "", "", err
	}
	return fullPath, recentPath, nil
}
