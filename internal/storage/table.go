package storage

import "fmt"

// Predicate selects rows for Select, Update, UpdateMultiple, and Delete.
// It is evaluated against the stored row; predicates must not retain or
// mutate the row they are handed.
type Predicate func(*Row) bool

// Table is the CRUD façade over one table's in-memory rows. Handles are
// issued by the driver, at most one per table name, and stay valid until
// the driver is closed. All operations are synchronous and touch no disk;
// persistence happens only through Driver.Commit.
type Table struct {
	drv   *Driver
	state *tableState
}

// Name returns the table name.
func (t *Table) Name() string { return t.state.name }

// Header returns the shared header reference of the table.
func (t *Table) Header() *RowHeader { return t.state.header }

// Len returns the current number of rows.
func (t *Table) Len() int { return len(t.state.rows) }

// NewRow builds an empty row against the table's header, ready for the
// typed setters and Insert.
func (t *Table) NewRow() *Row { return NewRow(t.state.header) }

// Insert appends the given rows. A row whose header is not structurally
// equal to the table's header is rejected and the call aborts. A row
// value-equal to one already stored is skipped: insertion is a set union
// by value, not a blind append. Accepted rows are stored as independent
// copies, so later mutation of the caller's row never affects stored
// state.
func (t *Table) Insert(rows ...*Row) error {
	for _, row := range rows {
		if !t.state.header.Equal(row.Header()) {
			return fmt.Errorf("table %q: %w", t.state.name, ErrHeaderMismatch)
		}
	}
	for _, row := range rows {
		if t.contains(row) {
			t.drv.logger.Debug("insert skipped duplicate row", "table", t.state.name)
			continue
		}
		t.state.rows = append(t.state.rows, row.Clone())
	}
	return nil
}

func (t *Table) contains(row *Row) bool {
	for _, stored := range t.state.rows {
		if stored.Equal(row) {
			return true
		}
	}
	return false
}

// Select returns defensive copies of every row matching pred, in table
// order. Stored rows are never exposed.
func (t *Table) Select(pred Predicate) []*Row {
	var out []*Row
	for _, row := range t.state.rows {
		if pred(row) {
			out = append(out, row.Clone())
		}
	}
	return out
}

// SelectAll returns defensive copies of every row, in table order.
func (t *Table) SelectAll() []*Row {
	out := make([]*Row, len(t.state.rows))
	for i, row := range t.state.rows {
		out[i] = row.Clone()
	}
	return out
}

// Update sets one column in place on every row matching pred, using the
// typed-setter rules, and returns the number of rows changed. Update does
// not deduplicate: a row that now equals another stored row is kept, and
// the situation is logged as an accepted quirk.
func (t *Table) Update(pred Predicate, column string, v any) (int, error) {
	changed := 0
	for _, row := range t.state.rows {
		if !pred(row) {
			continue
		}
		if err := row.Set(column, v); err != nil {
			return changed, fmt.Errorf("table %q: %w", t.state.name, err)
		}
		changed++
	}
	if changed > 0 {
		t.warnOnDuplicates("update")
	}
	return changed, nil
}

// UpdateMultiple applies a full column→value mapping to every row
// matching pred. Per row the whole mapping is validated before any of it
// is applied, so a row is never visible half-applied; a validation
// failure aborts the call, leaving earlier matched rows fully updated.
func (t *Table) UpdateMultiple(pred Predicate, columnValues map[string]any) (int, error) {
	changed := 0
	for _, row := range t.state.rows {
		if !pred(row) {
			continue
		}
		for column, v := range columnValues {
			if err := row.checkAssignable(column, v); err != nil {
				return changed, fmt.Errorf("table %q: %w", t.state.name, err)
			}
		}
		for column, v := range columnValues {
			// Validated above; Set cannot fail here.
			if err := row.Set(column, v); err != nil {
				return changed, fmt.Errorf("table %q: %w", t.state.name, err)
			}
		}
		changed++
	}
	if changed > 0 {
		t.warnOnDuplicates("update multiple")
	}
	return changed, nil
}

// Delete removes every row matching pred in place and returns the number
// of rows removed.
func (t *Table) Delete(pred Predicate) int {
	kept := t.state.rows[:0]
	for _, row := range t.state.rows {
		if !pred(row) {
			kept = append(kept, row)
		}
	}
	removed := len(t.state.rows) - len(kept)
	for i := len(kept); i < len(t.state.rows); i++ {
		t.state.rows[i] = nil
	}
	t.state.rows = kept
	return removed
}

// warnOnDuplicates logs when the table holds value-equal rows. Updates
// may create duplicates; that is permitted and never an error.
func (t *Table) warnOnDuplicates(op string) {
	for i := 0; i < len(t.state.rows); i++ {
		for j := i + 1; j < len(t.state.rows); j++ {
			if t.state.rows[i].Equal(t.state.rows[j]) {
				t.drv.logger.Warn("table holds duplicate rows", "table", t.state.name, "after", op)
				return
			}
		}
	}
}
