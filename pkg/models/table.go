package models

// Kind is the scalar type shared by every value of one column.
type Kind int

const (
	// KindEmpty marks a column with no non-missing value.
	KindEmpty Kind = iota
	KindInt
	KindFloat
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Numeric reports whether values of the kind are numbers.
func (k Kind) Numeric() bool {
	return k == KindInt || k == KindFloat
}

// Row holds one record's values in header order. A nil entry is a missing
// value; otherwise entries are int64, float64 or string.
type Row []interface{}

// Table is an ordered set of rows plus the column names they were read
// under. Kinds is nil when the column types have not been inferred (as for
// a freshly extracted result set).
type Table struct {
	Header []string
	Kinds  []Kind
	Rows   []Row
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// Clone returns a deep copy of the table. Values are immutable scalars so
// copying the row slices is enough.
func (t *Table) Clone() *Table {
	out := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([]Row, len(t.Rows)),
	}
	if t.Kinds != nil {
		out.Kinds = append([]Kind(nil), t.Kinds...)
	}
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// Records returns every row as an ordered key/value record.
func (t *Table) Records() []Record {
	out := make([]Record, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(Record, len(t.Header))
		for i, h := range t.Header {
			var v interface{}
			if i < len(row) {
				v = row[i]
			}
			rec[i] = Field{Key: h, Value: v}
		}
		out = append(out, rec)
	}
	return out
}
