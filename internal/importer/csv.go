// Package importer brings standard delimited data into csvdb tables.
//
// The engine's own table files are not RFC-4180 CSV; this package bridges
// the gap for real-world files: quoted fields, foreign delimiters,
// UTF-8/UTF-16 BOMs, and transparent gzip input. Column types are
// inferred onto the engine's type model (Integer, Real, Numeric, Text;
// never Blob). Importing inserts into the in-memory table only — callers
// commit explicitly.
package importer

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/dayjn1/csvdb/internal/storage"
)

// Options configures the importer. All fields are optional.
type Options struct {
	// HeaderMode controls header detection:
	//   "auto" (default) → heuristic decides based on the first two records
	//   "present"        → first record is always the header
	//   "absent"         → first record is data; names col_1, col_2, ... are generated
	HeaderMode string

	// DelimiterCandidates tested during auto-detection.
	// Default: ',' ';' '\t' '|'. Set a single candidate to force it.
	DelimiterCandidates []rune

	// TypeInference enables column type detection (default true). When
	// disabled every column becomes TEXT.
	TypeInference *bool
}

// Result returns metadata about one import.
type Result struct {
	TableName    string
	RowsImported int
	Delimiter    rune
	HadHeader    bool
	Encoding     string // "utf-8", "utf-8-bom", "utf-16le", "utf-16be"
	ColumnNames  []string
	ColumnTypes  []storage.ColumnType
}

func (o *Options) headerMode() string {
	if o.HeaderMode == "" {
		return "auto"
	}
	return o.HeaderMode
}

func (o *Options) delimiters() []rune {
	if len(o.DelimiterCandidates) > 0 {
		return o.DelimiterCandidates
	}
	return []rune{',', ';', '\t', '|'}
}

func (o *Options) inferTypes() bool {
	return o.TypeInference == nil || *o.TypeInference
}

// ImportCSV reads standard delimited data from src into a new table. The
// table must not exist yet; its header is built from the detected column
// names and inferred types. The context is checked between records so
// large imports can be abandoned.
func ImportCSV(ctx context.Context, drv *storage.Driver, tableName string, src io.Reader, opts *Options) (*Result, error) {
	if opts == nil {
		opts = &Options{}
	}

	r, enc, err := decodeInput(src)
	if err != nil {
		return nil, err
	}

	// The engine holds whole tables in memory anyway, so the importer
	// reads all records up front; detection then sees the full file.
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	delim := detectDelimiter(string(raw), opts.delimiters())

	cr := csv.NewReader(strings.NewReader(string(raw)))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("input contains no records")
	}

	names, data, hadHeader, err := splitHeader(records, opts.headerMode())
	if err != nil {
		return nil, err
	}

	types := make([]storage.ColumnType, len(names))
	for i := range types {
		types[i] = storage.Text
	}
	if opts.inferTypes() {
		types = inferColumnTypes(data, len(names))
	}

	cols := make([]storage.Column, len(names))
	for i := range names {
		cols[i] = storage.Column{Name: names[i], Type: types[i]}
	}
	header, err := storage.NewRowHeader(cols)
	if err != nil {
		return nil, fmt.Errorf("build header: %w", err)
	}
	tbl, err := drv.CreateTable(tableName, header)
	if err != nil {
		return nil, err
	}

	res := &Result{
		TableName:   tableName,
		Delimiter:   delim,
		HadHeader:   hadHeader,
		Encoding:    enc,
		ColumnNames: names,
		ColumnTypes: types,
	}
	for ri, record := range data {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if len(record) != len(names) {
			return res, fmt.Errorf("record %d has %d fields, want %d", ri+1, len(record), len(names))
		}
		row := tbl.NewRow()
		for ci, field := range record {
			if err := setField(row, names[ci], types[ci], field); err != nil {
				return res, fmt.Errorf("record %d: %w", ri+1, err)
			}
		}
		if err := tbl.Insert(row); err != nil {
			return res, err
		}
		res.RowsImported++
	}
	return res, nil
}

// decodeInput unwraps gzip and decodes UTF-16 input to UTF-8 based on the
// leading BOM. A UTF-8 BOM is stripped.
func decodeInput(src io.Reader) (io.Reader, string, error) {
	br := bufio.NewReader(src)
	if magic, err := br.Peek(2); err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		gr, err := gzip.NewReader(br)
		if err != nil {
			return nil, "", fmt.Errorf("gzip input: %w", err)
		}
		br = bufio.NewReader(gr)
	}
	bom, _ := br.Peek(3)
	switch {
	case len(bom) >= 3 && bom[0] == 0xef && bom[1] == 0xbb && bom[2] == 0xbf:
		br.Discard(3)
		return br, "utf-8-bom", nil
	case len(bom) >= 2 && bom[0] == 0xff && bom[1] == 0xfe:
		dec := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, dec), "utf-16le", nil
	case len(bom) >= 2 && bom[0] == 0xfe && bom[1] == 0xff:
		dec := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder()
		return transform.NewReader(br, dec), "utf-16be", nil
	default:
		return br, "utf-8", nil
	}
}

// detectDelimiter picks the candidate that yields the most consistent
// field count above one across the sample's lines.
func detectDelimiter(sample string, candidates []rune) rune {
	if len(candidates) == 1 {
		return candidates[0]
	}
	lines := strings.Split(sample, "\n")
	if len(lines) > 50 {
		lines = lines[:50]
	}
	best := candidates[0]
	bestScore := -1
	for _, cand := range candidates {
		counts := map[int]int{}
		for _, line := range lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			counts[strings.Count(line, string(cand))]++
		}
		// Score: the most common per-line count, provided it is nonzero.
		score := 0
		for n, freq := range counts {
			if n > 0 && freq > score {
				score = freq
			}
		}
		if score > bestScore {
			bestScore = score
			best = cand
		}
	}
	return best
}

// splitHeader separates the header record from the data records.
func splitHeader(records [][]string, mode string) (names []string, data [][]string, hadHeader bool, err error) {
	switch mode {
	case "present":
		hadHeader = true
	case "absent":
		hadHeader = false
	case "auto":
		hadHeader = looksLikeHeader(records)
	default:
		return nil, nil, false, fmt.Errorf("unknown header mode %q", mode)
	}
	if hadHeader {
		names = normalizeNames(records[0])
		data = records[1:]
		return names, data, true, nil
	}
	names = make([]string, len(records[0]))
	for i := range names {
		names[i] = fmt.Sprintf("col_%d", i+1)
	}
	return names, records, false, nil
}

// looksLikeHeader guesses: a first record with no parseable numbers atop
// a record that has at least one is a header.
func looksLikeHeader(records [][]string) bool {
	if len(records) < 2 {
		return true
	}
	numericFields := func(rec []string) int {
		n := 0
		for _, f := range rec {
			if _, err := strconv.ParseFloat(strings.TrimSpace(f), 64); err == nil {
				n++
			}
		}
		return n
	}
	return numericFields(records[0]) == 0 && numericFields(records[1]) > 0
}

func normalizeNames(raw []string) []string {
	names := make([]string, len(raw))
	seen := map[string]int{}
	for i, n := range raw {
		n = strings.TrimSpace(n)
		if n == "" {
			n = fmt.Sprintf("col_%d", i+1)
		}
		if c := seen[n]; c > 0 {
			n = fmt.Sprintf("%s_%d", n, c+1)
		}
		seen[n]++
		names[i] = n
	}
	return names
}

// inferColumnTypes maps each column to the narrowest engine type that
// accepts every one of its values: all-integer → INTEGER, all-float →
// REAL, a mix of the two → NUMERIC, anything else → TEXT. An empty value
// forces TEXT since the engine has no NULL.
func inferColumnTypes(data [][]string, numCols int) []storage.ColumnType {
	type tally struct{ ints, fracs, other int }
	tallies := make([]tally, numCols)
	for _, rec := range data {
		for ci := 0; ci < numCols && ci < len(rec); ci++ {
			v := strings.TrimSpace(rec[ci])
			switch {
			case v == "":
				tallies[ci].other++
			default:
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					tallies[ci].ints++
				} else if _, err := strconv.ParseFloat(v, 64); err == nil {
					tallies[ci].fracs++
				} else {
					tallies[ci].other++
				}
			}
		}
	}
	types := make([]storage.ColumnType, numCols)
	for i, c := range tallies {
		switch {
		case c.other > 0 || c.ints+c.fracs == 0:
			types[i] = storage.Text
		case c.fracs == 0:
			types[i] = storage.Integer
		case c.ints == 0:
			types[i] = storage.Real
		default:
			// Whole numbers and fractions mixed in one column.
			types[i] = storage.Numeric
		}
	}
	return types
}

// setField coerces one field string to the column's type and assigns it.
func setField(row *storage.Row, column string, t storage.ColumnType, field string) error {
	switch t {
	case storage.Integer:
		n, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not an integer", column, field)
		}
		return row.SetInt64(column, n)
	case storage.Real:
		f, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not a real number", column, field)
		}
		return row.SetFloat64(column, f)
	case storage.Numeric:
		v := strings.TrimSpace(field)
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return row.SetInt64(column, n)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not numeric", column, field)
		}
		return row.SetFloat64(column, f)
	default:
		return row.SetText(column, field)
	}
}
