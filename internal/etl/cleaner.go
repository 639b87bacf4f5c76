package etl

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/BartekS5/dailyetl/internal/config"
	"github.com/BartekS5/dailyetl/pkg/artifact"
	"github.com/BartekS5/dailyetl/pkg/models"
	"github.com/BartekS5/dailyetl/pkg/utils"
)

// Cleaner applies the cleaning rules to a raw table, in order:
//
//  1. drop rows that exactly repeat an earlier row;
//  2. fill missing values per column: the median of the column's values
//     for numeric columns, the placeholder for text columns;
//  3. trim and lower-case the column names.
//
// A column with no value at all has no median. EmptyNumeric decides what
// happens then: config.EmptyNumericZero fills it with 0,
// config.EmptyNumericFail returns ErrImputation.
//
// Filling can make two distinct rows equal (a row with a missing score next
// to the same row with the median score), so rows are deduplicated once
// more after step 2.
type Cleaner struct {
	Placeholder  string
	EmptyNumeric string
}

func NewCleaner(cfg config.CleaningConfig) *Cleaner {
	return &Cleaner{Placeholder: cfg.Placeholder, EmptyNumeric: cfg.EmptyNumeric}
}

// CleanReport describes what a clean pass changed.
type CleanReport struct {
	RowsIn     int
	RowsOut    int
	Duplicates int
	// Filled counts imputed values per (normalized) column.
	Filled map[string]int
	// Medians holds the fill value used for each imputed numeric column.
	Medians map[string]float64
}

// Clean returns a cleaned copy of t. t needs inferred column kinds, as
// produced by artifact.Read; it is not modified.
func (c *Cleaner) Clean(t *models.Table) (*models.Table, CleanReport, error) {
	report := CleanReport{
		RowsIn:  t.Len(),
		Filled:  map[string]int{},
		Medians: map[string]float64{},
	}
	if len(t.Kinds) != len(t.Header) {
		return nil, report, fmt.Errorf("%w: column kinds not inferred", artifact.ErrMalformed)
	}

	header, err := normalizeHeader(t.Header)
	if err != nil {
		return nil, report, err
	}

	out := t.Clone()
	out.Rows, report.Duplicates = dedupe(out.Rows)

	filled := false
	for j := range out.Header {
		n, median, err := c.fillColumn(out, j)
		if err != nil {
			return nil, report, fmt.Errorf("column %q: %w", t.Header[j], err)
		}
		if n == 0 {
			continue
		}
		filled = true
		report.Filled[header[j]] = n
		if out.Kinds[j].Numeric() {
			report.Medians[header[j]] = median
		}
	}

	if filled {
		var extra int
		out.Rows, extra = dedupe(out.Rows)
		report.Duplicates += extra
	}

	out.Header = header
	report.RowsOut = out.Len()
	return out, report, nil
}

// fillColumn imputes the missing values of column j in place and returns
// how many it filled and the numeric fill value.
func (c *Cleaner) fillColumn(t *models.Table, j int) (int, float64, error) {
	missing := 0
	for _, row := range t.Rows {
		if row[j] == nil {
			missing++
		}
	}
	if missing == 0 {
		return 0, 0, nil
	}

	var fill interface{}
	var median float64
	switch t.Kinds[j] {
	case models.KindText:
		fill = c.Placeholder

	case models.KindInt, models.KindFloat:
		median = columnMedian(t.Rows, j)
		if t.Kinds[j] == models.KindInt && median != math.Trunc(median) {
			promoteToFloat(t, j)
		}
		if t.Kinds[j] == models.KindInt {
			fill = int64(median)
		} else {
			fill = median
		}

	case models.KindEmpty:
		if c.EmptyNumeric != config.EmptyNumericZero {
			return 0, 0, fmt.Errorf("%w: no values to take a median of", ErrImputation)
		}
		t.Kinds[j] = models.KindInt
		fill = int64(0)

	default:
		return 0, 0, fmt.Errorf("%w: unknown column kind %v", artifact.ErrMalformed, t.Kinds[j])
	}

	for _, row := range t.Rows {
		if row[j] == nil {
			row[j] = fill
		}
	}
	return missing, median, nil
}

// columnMedian returns the median of the non-missing values of column j.
// The caller guarantees at least one such value exists.
func columnMedian(rows []models.Row, j int) float64 {
	vals := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row[j] == nil {
			continue
		}
		if v, err := utils.ConvertToFloat(row[j]); err == nil {
			vals = append(vals, v)
		}
	}
	sort.Float64s(vals)

	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

func promoteToFloat(t *models.Table, j int) {
	t.Kinds[j] = models.KindFloat
	for _, row := range t.Rows {
		if v, ok := row[j].(int64); ok {
			row[j] = float64(v)
		}
	}
}

// dedupe keeps the first occurrence of every distinct row.
func dedupe(rows []models.Row) ([]models.Row, int) {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, row := range rows {
		k := rowKey(row)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out, len(rows) - len(out)
}

func rowKey(row models.Row) string {
	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		switch x := v.(type) {
		case nil:
			b.WriteByte(0)
		case int64:
			b.WriteByte('i')
			b.WriteString(strconv.FormatInt(x, 10))
		case float64:
			b.WriteByte('f')
			b.WriteString(strconv.FormatFloat(x, 'g', -1, 64))
		case string:
			b.WriteByte('s')
			b.WriteString(strconv.Quote(x))
		default:
			b.WriteString(fmt.Sprintf("?%v", x))
		}
	}
	return b.String()
}

// normalizeHeader trims and lower-cases every column name. Two columns
// that end up with the same name cannot both become document fields.
func normalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]string, len(header))
	for i, h := range header {
		n := strings.ToLower(strings.TrimSpace(h))
		if prev, ok := seen[n]; ok {
			return nil, fmt.Errorf("%w: columns %q and %q both normalize to %q", artifact.ErrMalformed, prev, h, n)
		}
		seen[n] = h
		out[i] = n
	}
	return out, nil
}
