// Package exporter writes csvdb tables to standard interchange formats.
//
// Exports operate on SelectAll snapshots: they never touch the engine's
// table files and never expose stored rows. The CSV written here is
// standard RFC-4180 CSV (encoding/csv), not the engine's private escaped
// format.
package exporter

import (
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/dayjn1/csvdb/internal/storage"
)

// Options controls exporter behavior.
type Options struct {
	PrettyJSON   bool
	CSVNoHeader  bool
	CSVDelimiter rune
}

func valueToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// snapshot pulls column names and row values out of a table handle.
func snapshot(t *storage.Table) (cols []string, rows [][]any, err error) {
	header := t.Header()
	cols = make([]string, header.Len())
	for i := range cols {
		cols[i] = header.Column(i).Name
	}
	for _, row := range t.SelectAll() {
		vals := make([]any, len(cols))
		for i, c := range cols {
			v, err := row.Value(c)
			if err != nil {
				return nil, nil, fmt.Errorf("table %q column %q: %w", t.Name(), c, err)
			}
			vals[i] = v
		}
		rows = append(rows, vals)
	}
	return cols, rows, nil
}

// ExportCSV writes the table as standard CSV to w. Column order follows
// the table header.
func ExportCSV(w io.Writer, t *storage.Table, opts Options) error {
	cols, rows, err := snapshot(t)
	if err != nil {
		return err
	}
	csvw := csv.NewWriter(w)
	if opts.CSVDelimiter != 0 {
		csvw.Comma = opts.CSVDelimiter
	}
	if !opts.CSVNoHeader {
		if err := csvw.Write(cols); err != nil {
			return err
		}
	}
	record := make([]string, len(cols))
	for _, vals := range rows {
		for i, v := range vals {
			record[i] = valueToString(v)
		}
		if err := csvw.Write(record); err != nil {
			return err
		}
	}
	csvw.Flush()
	return csvw.Error()
}

// ExportJSON writes the table as a JSON array of objects keyed by column
// name.
func ExportJSON(w io.Writer, t *storage.Table, opts Options) error {
	cols, rows, err := snapshot(t)
	if err != nil {
		return err
	}
	out := make([]map[string]any, len(rows))
	for i, vals := range rows {
		m := make(map[string]any, len(cols))
		for j, c := range cols {
			m[c] = vals[j]
		}
		out[i] = m
	}
	enc := json.NewEncoder(w)
	if opts.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}

type xmlField struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type xmlRow struct {
	XMLName xml.Name   `xml:"row"`
	Fields  []xmlField `xml:",any"`
}

type xmlTable struct {
	XMLName xml.Name `xml:"table"`
	Name    string   `xml:"name,attr"`
	Rows    []xmlRow `xml:"row"`
}

// ExportXML writes the table as <table><row><col>value</col>...</row>...
func ExportXML(w io.Writer, t *storage.Table, _ Options) error {
	cols, rows, err := snapshot(t)
	if err != nil {
		return err
	}
	doc := xmlTable{Name: t.Name()}
	for _, vals := range rows {
		xr := xmlRow{}
		for i, c := range cols {
			xr.Fields = append(xr.Fields, xmlField{
				XMLName: xml.Name{Local: c},
				Value:   valueToString(vals[i]),
			})
		}
		doc.Rows = append(doc.Rows, xr)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}
