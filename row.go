package simpledb

import "time"

// Row is one result record: column labels in result order, each mapped to its
// converted value. The zero Row is the empty record.
type Row struct {
	cols []string
	vals map[string]any
}

func newRow(n int) Row {
	return Row{cols: make([]string, 0, n), vals: make(map[string]any, n)}
}

// set stores v under col. A repeated label keeps its first position and takes
// the latest value.
func (r *Row) set(col string, v any) {
	if _, ok := r.vals[col]; !ok {
		r.cols = append(r.cols, col)
	}
	r.vals[col] = v
}

// Columns returns the column labels in result order.
func (r Row) Columns() []string { return append([]string(nil), r.cols...) }

// Len returns the number of columns.
func (r Row) Len() int { return len(r.cols) }

// IsEmpty reports whether the row has no columns.
func (r Row) IsEmpty() bool { return len(r.cols) == 0 }

// Get returns the value stored under col, or nil.
func (r Row) Get(col string) any { return r.vals[col] }

// Lookup returns the value stored under col and whether the column exists.
func (r Row) Lookup(col string) (any, bool) {
	v, ok := r.vals[col]
	return v, ok
}

// First returns the value of the first column.
func (r Row) First() (any, bool) {
	if len(r.cols) == 0 {
		return nil, false
	}
	return r.vals[r.cols[0]], true
}

// Values returns the values in column order.
func (r Row) Values() []any {
	out := make([]any, len(r.cols))
	for i, c := range r.cols {
		out[i] = r.vals[c]
	}
	return out
}

// Map returns a copy of the row as a plain map.
func (r Row) Map() map[string]any {
	out := make(map[string]any, len(r.vals))
	for k, v := range r.vals {
		out[k] = v
	}
	return out
}

// normalizeValue converts a raw driver value into the form stored in a Row.
// Temporal values are moved into loc, byte slices become strings.
func normalizeValue(v any, loc *time.Location) any {
	switch x := v.(type) {
	case time.Time:
		if loc != nil {
			return x.In(loc)
		}
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return normalizeValue(*x, loc)
	case []byte:
		return string(x)
	default:
		return v
	}
}
