// Package record holds the current best-known structured data for one page.
// A Record is mutated only by the correction applicator and owned exclusively
// by the round controller for the duration of one page's processing.
package record

import "fmt"

// Record maps schema-defined field names to scalars, nested objects
// (map[string]any) and tables ([]any of map[string]any rows).
type Record map[string]any

// Clone returns a deep copy. The applicator works copy-on-write, so the
// original snapshot survives every round for the audit trail.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	return Record(cloneMap(r))
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return t
	}
}

// Get resolves a dot/array-indexed path. The second return is false when any
// segment is missing or an index is out of range.
func (r Record) Get(path string) (any, bool) {
	segs, err := parsePath(path)
	if err != nil {
		return nil, false
	}
	var cur any = map[string]any(r)
	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg.name]
		if !ok {
			return nil, false
		}
		if seg.hasIndex {
			arr, ok := cur.([]any)
			if !ok || seg.index >= len(arr) {
				return nil, false
			}
			cur = arr[seg.index]
		}
	}
	return cur, true
}

// Set writes a value at a dot/array-indexed path, creating intermediate
// objects as needed. An array index must reference an existing row or the
// row one past the end (append).
func (r Record) Set(path string, value any) error {
	segs, err := parsePath(path)
	if err != nil {
		return err
	}
	cur := map[string]any(r)
	for i, seg := range segs {
		last := i == len(segs)-1

		if seg.hasIndex {
			arr, ok := cur[seg.name].([]any)
			if !ok {
				if cur[seg.name] != nil {
					return fmt.Errorf("path %q: segment %q is not a table", path, seg.name)
				}
				arr = []any{}
			}
			switch {
			case seg.index < len(arr):
			case seg.index == len(arr):
				arr = append(arr, map[string]any{})
				cur[seg.name] = arr
			default:
				return fmt.Errorf("path %q: row index %d out of range (len %d)", path, seg.index, len(arr))
			}
			if last {
				arr[seg.index] = value
				cur[seg.name] = arr
				return nil
			}
			row, ok := arr[seg.index].(map[string]any)
			if !ok {
				row = map[string]any{}
				arr[seg.index] = row
			}
			cur[seg.name] = arr
			cur = row
			continue
		}

		if last {
			cur[seg.name] = value
			return nil
		}
		next, ok := cur[seg.name].(map[string]any)
		if !ok {
			if cur[seg.name] != nil {
				return fmt.Errorf("path %q: segment %q is not an object", path, seg.name)
			}
			next = map[string]any{}
			cur[seg.name] = next
		}
		cur = next
	}
	return nil
}

// Table returns the rows of a table-typed field. Rows that are not objects
// are skipped rather than failing the whole table.
func (r Record) Table(path string) ([]map[string]any, bool) {
	v, ok := r.Get(path)
	if !ok {
		return nil, false
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	rows := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if row, ok := e.(map[string]any); ok {
			rows = append(rows, row)
		}
	}
	return rows, true
}

// AppendRow adds a row to a table-typed field, creating the table if absent.
func (r Record) AppendRow(path string, row map[string]any) error {
	v, ok := r.Get(path)
	if !ok || v == nil {
		return r.Set(path, []any{row})
	}
	arr, ok := v.([]any)
	if !ok {
		return fmt.Errorf("path %q is not a table", path)
	}
	return r.Set(path, append(arr, any(row)))
}
