package storage

import (
	"errors"
	"testing"
)

func fourColHeader(t *testing.T) *RowHeader {
	t.Helper()
	return testHeader(t,
		Column{Name: "colt", Type: Text},
		Column{Name: "coln", Type: Numeric},
		Column{Name: "coli", Type: Integer},
		Column{Name: "colr", Type: Real},
	)
}

func TestNewRowHeaderValidation(t *testing.T) {
	if _, err := NewRowHeader([]Column{{Name: "", Type: Text}}); err == nil {
		t.Error("empty column name accepted")
	}
	if _, err := NewRowHeader([]Column{{Name: "a", Type: Text}, {Name: "a", Type: Integer}}); err == nil {
		t.Error("duplicate column name accepted")
	}
	h, err := NewRowHeader(nil)
	if err != nil {
		t.Fatalf("zero-column header rejected: %v", err)
	}
	if h.Len() != 0 {
		t.Errorf("Len = %d, want 0", h.Len())
	}
}

func TestRowHeaderEqual(t *testing.T) {
	h1 := fourColHeader(t)
	h2 := fourColHeader(t)
	if !h1.Equal(h1) {
		t.Error("header not equal to itself")
	}
	if !h1.Equal(h2) {
		t.Error("structurally identical headers not equal")
	}
	h3 := testHeader(t, Column{Name: "colt", Type: Text})
	if h1.Equal(h3) {
		t.Error("headers of different lengths equal")
	}
	h4 := testHeader(t,
		Column{Name: "colt", Type: Text},
		Column{Name: "coln", Type: Real}, // type differs
		Column{Name: "coli", Type: Integer},
		Column{Name: "colr", Type: Real},
	)
	if h1.Equal(h4) {
		t.Error("headers with a differing type equal")
	}
}

func TestRowZeroValues(t *testing.T) {
	row := NewRow(fourColHeader(t))
	if v, err := row.Text("colt"); err != nil || v != "" {
		t.Errorf("colt = %q, %v; want zero string", v, err)
	}
	if v, err := row.Int64("coli"); err != nil || v != 0 {
		t.Errorf("coli = %d, %v; want 0", v, err)
	}
	if v, err := row.Float64("colr"); err != nil || v != 0 {
		t.Errorf("colr = %v, %v; want 0", v, err)
	}
	if v, err := row.Int64("coln"); err != nil || v != 0 {
		t.Errorf("coln = %d, %v; want integer 0", v, err)
	}
}

func TestRowTypedSetters(t *testing.T) {
	row := NewRow(fourColHeader(t))

	// Accepted representations.
	if err := row.SetText("colt", "hello"); err != nil {
		t.Error(err)
	}
	if err := row.SetInt64("coln", 42); err != nil {
		t.Errorf("numeric rejected integer: %v", err)
	}
	if err := row.SetFloat64("coln", 3.14); err != nil {
		t.Errorf("numeric rejected float: %v", err)
	}
	if err := row.SetInt64("coli", 9223372036854775807); err != nil {
		t.Error(err)
	}
	if err := row.SetFloat64("colr", 42.0); err != nil {
		t.Error(err)
	}

	// Rejected representations.
	if err := row.SetFloat64("coli", 1.5); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("integer column accepted float: %v", err)
	}
	if err := row.SetInt64("colr", 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("real column accepted integer: %v", err)
	}
	if err := row.SetText("coli", "x"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("integer column accepted string: %v", err)
	}
	if err := row.SetInt64("colt", 1); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("text column accepted integer: %v", err)
	}
	if err := row.SetBytes("colt", []byte("x")); !errors.Is(err, ErrNotImplemented) {
		t.Errorf("SetBytes = %v, want ErrNotImplemented", err)
	}
	if err := row.SetText("nope", "x"); !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("unknown column = %v, want ErrUnknownColumn", err)
	}
}

func TestRowCloneIndependence(t *testing.T) {
	row := NewRow(fourColHeader(t))
	if err := row.SetText("colt", "original"); err != nil {
		t.Fatal(err)
	}
	clone := row.Clone()
	if clone.Header() != row.Header() {
		t.Error("clone does not share the header reference")
	}
	if !clone.Equal(row) {
		t.Error("clone not value-equal to original")
	}
	if err := clone.SetText("colt", "changed"); err != nil {
		t.Fatal(err)
	}
	if v, _ := row.Text("colt"); v != "original" {
		t.Errorf("mutating the clone changed the original: %q", v)
	}
}

func TestRowEqual(t *testing.T) {
	h := fourColHeader(t)
	a := NewRow(h)
	b := NewRow(h)
	if !a.Equal(b) {
		t.Error("fresh rows under one header not equal")
	}
	if err := b.SetInt64("coli", 1); err != nil {
		t.Fatal(err)
	}
	if a.Equal(b) {
		t.Error("rows with one differing field equal")
	}

	// A Numeric integer 42 and a Numeric float 42.0 are different values.
	c := NewRow(h)
	d := NewRow(h)
	if err := c.SetInt64("coln", 42); err != nil {
		t.Fatal(err)
	}
	if err := d.SetFloat64("coln", 42.0); err != nil {
		t.Fatal(err)
	}
	if c.Equal(d) {
		t.Error("integer and float numeric variants compare equal")
	}

	// Different (but structurally equal) headers still compare equal.
	e := NewRow(fourColHeader(t))
	if !a.Equal(e) {
		t.Error("rows under structurally equal headers not equal")
	}
}

func TestRowSetDispatch(t *testing.T) {
	row := NewRow(fourColHeader(t))
	if err := row.Set("coli", int(5)); err != nil {
		t.Error(err)
	}
	if err := row.Set("colr", float32(1.5)); err != nil {
		t.Error(err)
	}
	if err := row.Set("colt", "s"); err != nil {
		t.Error(err)
	}
	if err := row.Set("coli", struct{}{}); err == nil {
		t.Error("unsupported value type accepted")
	}
	if v, _ := row.Int64("coli"); v != 5 {
		t.Errorf("coli = %d, want 5", v)
	}
}

func TestRowValue(t *testing.T) {
	row := NewRow(fourColHeader(t))
	if err := row.SetFloat64("coln", 2.5); err != nil {
		t.Fatal(err)
	}
	v, err := row.Value("coln")
	if err != nil {
		t.Fatal(err)
	}
	if f, ok := v.(float64); !ok || f != 2.5 {
		t.Errorf("Value = %#v, want float64 2.5", v)
	}
}
