package storage

import (
	"bytes"
	"fmt"
	"strconv"
)

// ==================== Tagged value ====================

type valueKind uint8

const (
	kindNone valueKind = iota // never-set Blob slot; any access fails
	kindInt
	kindFloat
	kindText
	kindBytes
)

// value is the tagged union a row stores per column. The column's declared
// type constrains which variant a setter may produce; that check happens
// once at the setter boundary.
type value struct {
	kind valueKind
	i    int64
	f    float64
	s    string
	b    []byte
}

func (v value) equal(o value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindInt:
		return v.i == o.i
	case kindFloat:
		return v.f == o.f
	case kindText:
		return v.s == o.s
	case kindBytes:
		return bytes.Equal(v.b, o.b)
	default:
		return true
	}
}

func (v value) clone() value {
	if v.kind == kindBytes && v.b != nil {
		b := make([]byte, len(v.b))
		copy(b, v.b)
		v.b = b
	}
	return v
}

// goValue returns the variant as a plain Go value for generic consumers.
func (v value) goValue() any {
	switch v.kind {
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	case kindText:
		return v.s
	case kindBytes:
		return v.b
	default:
		return nil
	}
}

// formatValue renders the variant in its canonical text form for the table
// file writer. Text is returned unescaped; the writer escapes it.
func (v value) format() (string, error) {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10), nil
	case kindFloat:
		return formatFloat(v.f), nil
	case kindText:
		return v.s, nil
	default:
		return "", ErrNotImplemented
	}
}

// formatFloat renders f so that it never re-parses as an integer: a
// fractional or exponent marker is always present. This keeps the Numeric
// integer-first load precedence stable across a round trip.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', 'e', 'E', 'n', 'N', 'I': // ., e, NaN, Inf
			return s
		}
	}
	return s + ".0"
}

// ==================== Row ====================

// Row is one record of typed values conforming to a RowHeader. The header
// is held by reference and shared; the value storage is owned. Rows are
// not safe for concurrent use, matching the engine's single-threaded model.
type Row struct {
	header *RowHeader
	vals   []value
}

// NewRow builds a row against a header. Every non-Blob column starts at
// its type-appropriate zero value (0, 0.0, or ""), so reads are total even
// before the first explicit assignment; Blob slots stay unset and fail on
// access.
func NewRow(h *RowHeader) *Row {
	vals := make([]value, h.Len())
	for i := range vals {
		switch h.Column(i).Type {
		case Integer, Numeric:
			vals[i] = value{kind: kindInt}
		case Real:
			vals[i] = value{kind: kindFloat}
		case Text:
			vals[i] = value{kind: kindText}
		}
	}
	return &Row{header: h, vals: vals}
}

// Header returns the shared header reference the row was built against.
func (r *Row) Header() *RowHeader { return r.header }

// Clone duplicates all values; the copy shares the header reference but
// owns independent value storage.
func (r *Row) Clone() *Row {
	vals := make([]value, len(r.vals))
	for i := range r.vals {
		vals[i] = r.vals[i].clone()
	}
	return &Row{header: r.header, vals: vals}
}

// Equal reports value equality: structurally equal headers and equal
// values for every column. Insert deduplication relies on it.
func (r *Row) Equal(other *Row) bool {
	if other == nil || !r.header.Equal(other.header) {
		return false
	}
	for i := range r.vals {
		if !r.vals[i].equal(other.vals[i]) {
			return false
		}
	}
	return true
}

// ==================== Typed setters ====================

// SetInt64 assigns an integer value. Accepted by Integer and Numeric
// columns only.
func (r *Row) SetInt64(column string, v int64) error {
	i, err := r.header.Index(column)
	if err != nil {
		return err
	}
	switch r.header.Column(i).Type {
	case Integer, Numeric:
		r.vals[i] = value{kind: kindInt, i: v}
		return nil
	case Blob:
		return fmt.Errorf("column %q: %w", column, ErrNotImplemented)
	default:
		return fmt.Errorf("column %q (%s): %w: integer", column, r.header.Column(i).Type, ErrTypeMismatch)
	}
}

// SetFloat64 assigns a floating point value. Accepted by Real and Numeric
// columns only.
func (r *Row) SetFloat64(column string, v float64) error {
	i, err := r.header.Index(column)
	if err != nil {
		return err
	}
	switch r.header.Column(i).Type {
	case Real, Numeric:
		r.vals[i] = value{kind: kindFloat, f: v}
		return nil
	case Blob:
		return fmt.Errorf("column %q: %w", column, ErrNotImplemented)
	default:
		return fmt.Errorf("column %q (%s): %w: float", column, r.header.Column(i).Type, ErrTypeMismatch)
	}
}

// SetText assigns a string value. Accepted by Text columns only.
func (r *Row) SetText(column string, v string) error {
	i, err := r.header.Index(column)
	if err != nil {
		return err
	}
	switch r.header.Column(i).Type {
	case Text:
		r.vals[i] = value{kind: kindText, s: v}
		return nil
	case Blob:
		return fmt.Errorf("column %q: %w", column, ErrNotImplemented)
	default:
		return fmt.Errorf("column %q (%s): %w: string", column, r.header.Column(i).Type, ErrTypeMismatch)
	}
}

// SetBytes always fails: Blob columns are not implemented, and no other
// column type accepts a binary value.
func (r *Row) SetBytes(column string, _ []byte) error {
	if _, err := r.header.Index(column); err != nil {
		return err
	}
	return fmt.Errorf("column %q: %w", column, ErrNotImplemented)
}

// Set assigns v through the typed setter matching its Go representation.
// Integer kinds route to SetInt64, floating kinds to SetFloat64, strings
// to SetText, byte slices to SetBytes.
func (r *Row) Set(column string, v any) error {
	switch t := v.(type) {
	case int:
		return r.SetInt64(column, int64(t))
	case int8:
		return r.SetInt64(column, int64(t))
	case int16:
		return r.SetInt64(column, int64(t))
	case int32:
		return r.SetInt64(column, int64(t))
	case int64:
		return r.SetInt64(column, t)
	case float32:
		return r.SetFloat64(column, float64(t))
	case float64:
		return r.SetFloat64(column, t)
	case string:
		return r.SetText(column, t)
	case []byte:
		return r.SetBytes(column, t)
	default:
		return fmt.Errorf("column %q: unsupported value type %T", column, v)
	}
}

// checkAssignable reports whether Set(column, v) would succeed, without
// mutating the row. UpdateMultiple uses it to validate a full column set
// before applying any of it.
func (r *Row) checkAssignable(column string, v any) error {
	i, err := r.header.Index(column)
	if err != nil {
		return err
	}
	ct := r.header.Column(i).Type
	switch v.(type) {
	case int, int8, int16, int32, int64:
		if ct == Integer || ct == Numeric {
			return nil
		}
	case float32, float64:
		if ct == Real || ct == Numeric {
			return nil
		}
	case string:
		if ct == Text {
			return nil
		}
	case []byte:
		return fmt.Errorf("column %q: %w", column, ErrNotImplemented)
	default:
		return fmt.Errorf("column %q: unsupported value type %T", column, v)
	}
	if ct == Blob {
		return fmt.Errorf("column %q: %w", column, ErrNotImplemented)
	}
	return fmt.Errorf("column %q (%s): %w: %T", column, ct, ErrTypeMismatch, v)
}

// ==================== Typed getters ====================

// Int64 returns the stored integer value of a column. Only an integer
// variant satisfies it; a Numeric column holding a float does not.
func (r *Row) Int64(column string) (int64, error) {
	i, err := r.header.Index(column)
	if err != nil {
		return 0, err
	}
	v := r.vals[i]
	if v.kind != kindInt {
		return 0, fmt.Errorf("column %q does not hold an integer", column)
	}
	return v.i, nil
}

// Float64 returns the stored floating point value of a column. An integer
// variant in a Numeric column widens to float64.
func (r *Row) Float64(column string) (float64, error) {
	i, err := r.header.Index(column)
	if err != nil {
		return 0, err
	}
	switch v := r.vals[i]; v.kind {
	case kindFloat:
		return v.f, nil
	case kindInt:
		return float64(v.i), nil
	default:
		return 0, fmt.Errorf("column %q does not hold a number", column)
	}
}

// Text returns the stored string value of a Text column.
func (r *Row) Text(column string) (string, error) {
	i, err := r.header.Index(column)
	if err != nil {
		return "", err
	}
	v := r.vals[i]
	if v.kind != kindText {
		return "", fmt.Errorf("column %q does not hold text", column)
	}
	return v.s, nil
}

// Value returns the column's value as a plain Go value (int64, float64,
// string). Blob slots fail with ErrNotImplemented.
func (r *Row) Value(column string) (any, error) {
	i, err := r.header.Index(column)
	if err != nil {
		return nil, err
	}
	v := r.vals[i]
	if v.kind == kindNone {
		return nil, fmt.Errorf("column %q: %w", column, ErrNotImplemented)
	}
	return v.goValue(), nil
}

// String renders the row for diagnostics, in header column order.
func (r *Row) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < r.header.Len(); i++ {
		if i > 0 {
			buf.WriteString(", ")
		}
		fmt.Fprintf(&buf, "%s=%v", r.header.Column(i).Name, r.vals[i].goValue())
	}
	buf.WriteByte('}')
	return buf.String()
}
