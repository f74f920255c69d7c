// Package csvdb provides a lightweight, embeddable table engine that
// persists typed tabular data as one escaped-CSV file per table.
//
// csvdb gives callers a table/row abstraction over a storage directory:
// every table file is loaded into memory when a driver is opened, all
// CRUD runs against the in-memory row lists, and an explicit Commit
// flushes everything back to disk. There is no SQL, no indexing, and no
// concurrent-writer support; embedding applications serialize their own
// access to a driver.
//
// # Basic Usage
//
// Open a storage directory, create a table, and work with rows:
//
//	drv, err := csvdb.Open("./data")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer drv.Close()
//
//	header, _ := csvdb.NewRowHeader([]csvdb.Column{
//	    {Name: "name", Type: csvdb.Text},
//	    {Name: "score", Type: csvdb.Numeric},
//	})
//	users, _ := drv.CreateTable("users", header)
//
//	row := users.NewRow()
//	row.SetText("name", "alice")
//	row.SetInt64("score", 42)
//	users.Insert(row)
//
//	// Nothing touches disk until an explicit commit.
//	drv.Commit()
//
// # Queries
//
// Select hands out defensive copies; mutating a returned row never
// changes stored state:
//
//	high := users.Select(func(r *csvdb.Row) bool {
//	    v, err := r.Float64("score")
//	    return err == nil && v > 10
//	})
//
// # File Format
//
// A table file holds a line of column names, a line of type keywords
// (NUMERIC, INTEGER, REAL, TEXT, BLOB), and one comma-joined line per
// row. Backslash, comma, CR, and LF inside fields are escaped with a
// leading backslash; this is not RFC-4180 CSV. Use the importer package
// to bring standard CSV files into the engine.
package csvdb

import "github.com/dayjn1/csvdb/internal/storage"

// ============================================================================
// Core Types - Re-exported from internal packages for public API
// ============================================================================

// Driver owns all tables of one storage directory. Create with Open.
type Driver = storage.Driver

// Table is the CRUD façade over one table's in-memory rows. Obtain via
// Driver.GetTable or Driver.CreateTable; at most one handle exists per
// table name.
type Table = storage.Table

// Row is one record of typed values conforming to a RowHeader.
type Row = storage.Row

// RowHeader is the immutable ordered schema of a table, shared by
// reference across every row built from it.
type RowHeader = storage.RowHeader

// Column describes one field of a table: a name and a value type.
type Column = storage.Column

// ColumnType enumerates the supported column data types.
type ColumnType = storage.ColumnType

// Predicate selects rows for Select, Update, and Delete.
type Predicate = storage.Predicate

// ParseError describes a fatal problem in a table file, with the file
// path and 1-based line.
type ParseError = storage.ParseError

// Option configures driver construction; see WithLogger, WithCompression,
// and WithCommitWorkers.
type Option = storage.Option

// Column types.
const (
	Numeric = storage.Numeric
	Integer = storage.Integer
	Real    = storage.Real
	Text    = storage.Text
	Blob    = storage.Blob
)

// Sentinel errors, matched with errors.Is.
var (
	ErrTableNotFound  = storage.ErrTableNotFound
	ErrTableExists    = storage.ErrTableExists
	ErrHeaderMismatch = storage.ErrHeaderMismatch
	ErrNotImplemented = storage.ErrNotImplemented
	ErrDriverClosed   = storage.ErrDriverClosed
	ErrUnknownColumn  = storage.ErrUnknownColumn
	ErrTypeMismatch   = storage.ErrTypeMismatch
)

// ============================================================================
// Constructors and options
// ============================================================================

// Open loads every table file under dir and returns a ready driver. Any
// load failure aborts construction.
func Open(dir string, opts ...Option) (*Driver, error) {
	return storage.Open(dir, opts...)
}

// NewRowHeader builds an immutable header from an ordered column list.
func NewRowHeader(cols []Column) (*RowHeader, error) {
	return storage.NewRowHeader(cols)
}

// NewRow builds a row against a header, with every non-Blob column at its
// type-appropriate zero value.
func NewRow(h *RowHeader) *Row {
	return storage.NewRow(h)
}

// ParseColumnType maps a type keyword ("TEXT", "INTEGER", ...) to its
// ColumnType. The match is exact and case-sensitive.
func ParseColumnType(keyword string) (ColumnType, error) {
	return storage.ParseColumnType(keyword)
}

// IsParseError reports whether err carries a *ParseError.
func IsParseError(err error) bool {
	return storage.IsParseError(err)
}

// WithLogger configures structured logging for driver operations.
var WithLogger = storage.WithLogger

// WithCompression makes newly created tables persist as gzip-compressed
// .csv.gz files.
var WithCompression = storage.WithCompression

// WithCommitWorkers bounds the number of table files written concurrently
// during Commit.
var WithCommitWorkers = storage.WithCommitWorkers
