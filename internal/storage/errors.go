package storage

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the driver and table handles. Callers match
// them with errors.Is.
var (
	// ErrTableNotFound is returned by GetTable for an unknown table name.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned by CreateTable when the name is taken.
	ErrTableExists = errors.New("table already exists")

	// ErrHeaderMismatch is returned by Insert when a row was built against
	// a header that is not structurally equal to the table's header.
	ErrHeaderMismatch = errors.New("row header does not match table header")

	// ErrNotImplemented is returned for every Blob column operation:
	// loading, saving, and value access.
	ErrNotImplemented = errors.New("blob columns are not implemented")

	// ErrDriverClosed is returned when a driver is used after Close.
	ErrDriverClosed = errors.New("driver is closed")

	// ErrUnknownColumn is returned when a column name is not declared in
	// the row's header.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrTypeMismatch is returned by typed setters when the value
	// representation is not accepted by the column's declared type.
	ErrTypeMismatch = errors.New("value type not accepted by column type")
)

// ParseError describes a fatal problem in a table file. Any ParseError
// during load aborts driver construction; there is no skip-and-continue.
type ParseError struct {
	File string // table file path
	Line int    // 1-based line where the problem was detected
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func parseErrorf(file string, line int, format string, args ...any) *ParseError {
	return &ParseError{File: file, Line: line, Err: fmt.Errorf(format, args...)}
}
