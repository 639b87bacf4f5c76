package etl

import (
	"fmt"
	"strings"

	"github.com/BartekS5/dailyetl/pkg/artifact"
	"github.com/BartekS5/dailyetl/pkg/models"
)

// Validator checks that a table read back from the cleaned artifact still
// satisfies what the clean stage guarantees.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidateTable requires normalized column names and no missing values.
func (v *Validator) ValidateTable(t *models.Table) error {
	for _, h := range t.Header {
		if h != strings.ToLower(strings.TrimSpace(h)) {
			return fmt.Errorf("%w: column %q is not normalized", artifact.ErrMalformed, h)
		}
	}
	for i, row := range t.Rows {
		for j, val := range row {
			if val == nil {
				return fmt.Errorf("%w: row %d has no value for %q", artifact.ErrMalformed, i+1, t.Header[j])
			}
		}
	}
	return nil
}

// ValidateDocument requires a value for every column of header.
func (v *Validator) ValidateDocument(header []string, doc models.Document) error {
	if len(doc.Fields) != len(header) {
		return fmt.Errorf("%w: document has %d fields, want %d", artifact.ErrMalformed, len(doc.Fields), len(header))
	}
	for _, col := range header {
		val, ok := doc.Fields.Get(col)
		if !ok || val == nil {
			return fmt.Errorf("%w: no value for %q", artifact.ErrMalformed, col)
		}
	}
	return nil
}
