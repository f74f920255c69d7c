package storage

import "fmt"

// ColumnType enumerates the five supported column data types.
type ColumnType int

const (
	// Numeric is a superset type: values load with an integer parse first
	// and fall back to floating point.
	Numeric ColumnType = iota
	Integer
	Real
	Text
	// Blob is recognized in table files but not implemented; any table
	// declaring a Blob column fails to load.
	Blob
)

var columnTypeToKeyword = map[ColumnType]string{
	Numeric: "NUMERIC",
	Integer: "INTEGER",
	Real:    "REAL",
	Text:    "TEXT",
	Blob:    "BLOB",
}

var keywordToColumnType = map[string]ColumnType{
	"NUMERIC": Numeric,
	"INTEGER": Integer,
	"REAL":    Real,
	"TEXT":    Text,
	"BLOB":    Blob,
}

func (t ColumnType) String() string {
	if s, ok := columnTypeToKeyword[t]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseColumnType maps a type-row keyword to its ColumnType. The match is
// exact and case-sensitive: "text" is not a recognized keyword.
func ParseColumnType(keyword string) (ColumnType, error) {
	if t, ok := keywordToColumnType[keyword]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unknown column type keyword %q", keyword)
}

// Column describes one field of a table: a name and a value type.
// Columns are immutable after construction.
type Column struct {
	Name string
	Type ColumnType
}
