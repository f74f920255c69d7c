package storage

import "fmt"

// RowHeader is the immutable ordered schema of a table. It is shared by
// reference across every Row and table handle built from it and is never
// copied, so structural equality can short-circuit on identity.
type RowHeader struct {
	cols   []Column
	colPos map[string]int
}

// NewRowHeader builds a header from an ordered column list. Column names
// must be non-empty and unique within the header; name matching is
// case-sensitive throughout the engine.
func NewRowHeader(cols []Column) (*RowHeader, error) {
	pos := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return nil, fmt.Errorf("column %d has an empty name", i)
		}
		if _, dup := pos[c.Name]; dup {
			return nil, fmt.Errorf("duplicate column name %q", c.Name)
		}
		pos[c.Name] = i
	}
	own := make([]Column, len(cols))
	copy(own, cols)
	return &RowHeader{cols: own, colPos: pos}, nil
}

// Len returns the number of columns.
func (h *RowHeader) Len() int { return len(h.cols) }

// Column returns the column at index i.
func (h *RowHeader) Column(i int) Column { return h.cols[i] }

// Columns returns a copy of the ordered column list.
func (h *RowHeader) Columns() []Column {
	out := make([]Column, len(h.cols))
	copy(out, h.cols)
	return out
}

// Index returns the zero-based index of the named column.
func (h *RowHeader) Index(name string) (int, error) {
	i, ok := h.colPos[name]
	if !ok {
		return -1, fmt.Errorf("%w: %q", ErrUnknownColumn, name)
	}
	return i, nil
}

// Equal reports structural equality: same column count, names, and types
// in the same order. Identity is checked first since headers are shared
// by reference.
func (h *RowHeader) Equal(other *RowHeader) bool {
	if h == other {
		return true
	}
	if h == nil || other == nil || len(h.cols) != len(other.cols) {
		return false
	}
	for i := range h.cols {
		if h.cols[i] != other.cols[i] {
			return false
		}
	}
	return true
}
