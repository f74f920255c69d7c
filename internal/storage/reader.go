package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ==================== Element reader ====================

// stopReason reports why an element ended.
type stopReason int

const (
	stopSeparator stopReason = iota // a comma followed the element
	stopLine                        // a line terminator followed the element
	stopEOF                         // the stream ended after the element
)

func (s stopReason) String() string {
	switch s {
	case stopSeparator:
		return "separator"
	case stopLine:
		return "line end"
	default:
		return "end of stream"
	}
}

// elementReader scans a character stream one byte at a time and produces
// unescaped field strings together with the reason each one stopped.
//
// Grammar: ',' separates fields, '\n' or "\r\n" (consumed as one) or a
// bare '\r' terminates a line, and '\\' escapes the very next character so
// it is appended verbatim and never counts as structural. No other
// character is special.
type elementReader struct {
	r    *bufio.Reader
	line int // 1-based, for diagnostics
}

func newElementReader(r io.Reader) *elementReader {
	return &elementReader{r: bufio.NewReader(r), line: 1}
}

// exhausted reports whether no characters remain. It distinguishes a
// stream that ended exactly on a line terminator from one with a final
// unterminated field, and surfaces non-EOF stream errors rather than
// passing them off as end of input: a gzip checksum failure is only
// reported once the stream is fully consumed.
func (er *elementReader) exhausted() (bool, error) {
	if _, err := er.r.Peek(1); err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return true, err
	}
	return false, nil
}

// next reads one element. The returned stop reason tells the caller
// whether the element ended a field, a line, or the stream. A backslash
// with no following character is a syntax error.
func (er *elementReader) next() (string, stopReason, error) {
	var sb strings.Builder
	escaped := false
	for {
		c, err := er.r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", stopEOF, err
			}
			if escaped {
				return "", stopEOF, fmt.Errorf("line %d: unterminated escape at end of stream", er.line)
			}
			return sb.String(), stopEOF, nil
		}
		if escaped {
			sb.WriteByte(c)
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case ',':
			return sb.String(), stopSeparator, nil
		case '\n':
			er.line++
			return sb.String(), stopLine, nil
		case '\r':
			// "\r\n" is one terminator; a lone '\r' is one too.
			if nxt, err := er.r.Peek(1); err == nil && nxt[0] == '\n' {
				_, _ = er.r.ReadByte()
			}
			er.line++
			return sb.String(), stopLine, nil
		default:
			sb.WriteByte(c)
		}
	}
}

// readLine collects elements until a non-separator stop and returns them
// together with the stop reason.
func (er *elementReader) readLine() ([]string, stopReason, error) {
	var fields []string
	for {
		field, stop, err := er.next()
		if err != nil {
			return nil, stop, err
		}
		fields = append(fields, field)
		if stop != stopSeparator {
			return fields, stop, nil
		}
	}
}

// ==================== Table file loader ====================

// loadTable parses one table file from r into an in-memory table state.
// name is the table name (file base name, extension stripped); file is the
// path used in diagnostics. Any problem is fatal for the whole load.
func loadTable(r io.Reader, name, file string) (*tableState, error) {
	er := newElementReader(r)

	// Header row: column names.
	headerLine := er.line
	names, nameStop, err := er.readLine()
	if err != nil {
		return nil, &ParseError{File: file, Line: headerLine, Err: err}
	}
	for i, n := range names {
		if n == "" {
			return nil, parseErrorf(file, headerLine, "column %d has an empty name", i)
		}
	}

	// Type row: one keyword per column.
	typeLine := er.line
	keywords, typeStop, err := er.readLine()
	if err != nil {
		return nil, &ParseError{File: file, Line: typeLine, Err: err}
	}
	if len(names) != len(keywords) {
		msg := fmt.Sprintf("%d column names but %d types", len(names), len(keywords))
		if nameStop == stopEOF || typeStop == stopEOF {
			msg += " (file appears truncated)"
		}
		return nil, parseErrorf(file, typeLine, "%s", msg)
	}

	cols := make([]Column, len(names))
	for i := range names {
		t, err := ParseColumnType(keywords[i])
		if err != nil {
			return nil, &ParseError{File: file, Line: typeLine, Err: err}
		}
		if t == Blob {
			return nil, parseErrorf(file, typeLine, "column %q: %w", names[i], ErrNotImplemented)
		}
		cols[i] = Column{Name: names[i], Type: t}
	}
	header, err := NewRowHeader(cols)
	if err != nil {
		return nil, &ParseError{File: file, Line: headerLine, Err: err}
	}

	// Data rows until the stream is exhausted. A stream that ended exactly
	// on the prior line terminator contributes no further rows.
	var rows []*Row
	for {
		done, err := er.exhausted()
		if err != nil {
			return nil, &ParseError{File: file, Line: er.line, Err: err}
		}
		if done {
			break
		}
		rowLine := er.line
		fields, _, err := er.readLine()
		if err != nil {
			return nil, &ParseError{File: file, Line: rowLine, Err: err}
		}
		if len(fields) != header.Len() {
			return nil, parseErrorf(file, rowLine, "row has %d fields, header declares %d columns", len(fields), header.Len())
		}
		row := NewRow(header)
		for i, field := range fields {
			if err := coerceField(row, i, field); err != nil {
				return nil, &ParseError{File: file, Line: rowLine, Err: err}
			}
		}
		rows = append(rows, row)
	}

	return &tableState{name: name, header: header, rows: rows}, nil
}

// coerceField converts one unescaped field string to the declared type of
// column i and stores it in the row. Numeric tries an integer parse before
// a floating one; that precedence is part of the file format.
func coerceField(row *Row, i int, field string) error {
	col := row.header.Column(i)
	switch col.Type {
	case Numeric:
		if n, err := strconv.ParseInt(field, 10, 64); err == nil {
			row.vals[i] = value{kind: kindInt, i: n}
			return nil
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not numeric", col.Name, field)
		}
		row.vals[i] = value{kind: kindFloat, f: f}
		return nil
	case Integer:
		n, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not an integer", col.Name, field)
		}
		row.vals[i] = value{kind: kindInt, i: n}
		return nil
	case Real:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not a real number", col.Name, field)
		}
		row.vals[i] = value{kind: kindFloat, f: f}
		return nil
	case Text:
		row.vals[i] = value{kind: kindText, s: field}
		return nil
	default:
		return fmt.Errorf("column %q: %w", col.Name, ErrNotImplemented)
	}
}
