// Package artifact reads and writes the intermediate delimited-text files
// passed between pipeline stages.
//
// An artifact is RFC 4180 CSV with a header row. Missing values are empty
// fields. On read every column gets one kind: int when each non-empty cell
// is a base-10 integer, float when each is a finite decimal, text otherwise,
// and empty when the column has no non-empty cell. Floats are always written
// with a fractional digit, so a table read back from its own output is
// identical to the one written.
package artifact

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BartekS5/dailyetl/pkg/models"
	"github.com/BartekS5/dailyetl/pkg/utils"
)

// ErrMalformed is returned for artifacts that cannot be parsed into a table.
var ErrMalformed = errors.New("malformed artifact")

// Read loads the artifact at path.
func Read(path string) (*models.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open artifact '%s': %w", path, err)
	}
	defer f.Close()

	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact '%s': %w", path, err)
	}
	return t, nil
}

// Write replaces the artifact at path with t. The table is written to a
// temporary file next to path and renamed over it, so readers never see a
// partially written artifact.
func Write(path string, t *models.Table) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create artifact directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := Encode(tmp, t); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write artifact '%s': %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync artifact '%s': %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close artifact '%s': %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set mode on artifact '%s': %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace artifact '%s': %w", path, err)
	}
	return nil
}

// Encode writes t as CSV: the header, then one line per row.
func Encode(w io.Writer, t *models.Table) error {
	cw := csv.NewWriter(w)
	if err := writeRecord(cw, w, t.Header); err != nil {
		return err
	}

	line := make([]string, len(t.Header))
	for i, row := range t.Rows {
		if len(row) != len(t.Header) {
			return fmt.Errorf("%w: row %d has %d values, header has %d", ErrMalformed, i, len(row), len(t.Header))
		}
		for j, v := range row {
			line[j] = utils.FormatCell(v)
		}
		if err := writeRecord(cw, w, line); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// writeRecord writes one CSV line. csv.Writer renders a record holding a
// single empty field as a blank line, which csv.Reader skips, so that case
// is written as a quoted empty field instead.
func writeRecord(cw *csv.Writer, w io.Writer, rec []string) error {
	if len(rec) != 1 || rec[0] != "" {
		return cw.Write(rec)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\"\"\n")
	return err
}

// Decode parses CSV from r and infers column kinds.
func Decode(r io.Reader) (*models.Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 0 // every row must match the header

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: missing header row", ErrMalformed)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var cells [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		cells = append(cells, rec)
	}

	t := &models.Table{
		Header: header,
		Kinds:  make([]models.Kind, len(header)),
		Rows:   make([]models.Row, len(cells)),
	}
	for i := range cells {
		t.Rows[i] = make(models.Row, len(header))
	}

	column := make([]string, len(cells))
	for j := range header {
		for i, rec := range cells {
			column[i] = rec[j]
		}
		kind := InferKind(column)
		t.Kinds[j] = kind
		for i, cell := range column {
			t.Rows[i][j] = parseCell(cell, kind)
		}
	}
	return t, nil
}

// InferKind returns the narrowest kind that every non-empty cell fits.
func InferKind(cells []string) models.Kind {
	kind := models.KindEmpty
	for _, c := range cells {
		if c == "" {
			continue
		}
		switch kind {
		case models.KindEmpty, models.KindInt:
			if _, ok := utils.ParseInt(c); ok {
				kind = models.KindInt
				continue
			}
			if _, ok := utils.ParseFloat(c); ok {
				kind = models.KindFloat
				continue
			}
			return models.KindText
		case models.KindFloat:
			if _, ok := utils.ParseFloat(c); !ok {
				return models.KindText
			}
		}
	}
	return kind
}

func parseCell(cell string, kind models.Kind) interface{} {
	if cell == "" {
		return nil
	}
	switch kind {
	case models.KindInt:
		v, _ := utils.ParseInt(cell)
		return v
	case models.KindFloat:
		v, _ := utils.ParseFloat(cell)
		return v
	default:
		return cell
	}
}
