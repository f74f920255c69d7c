package storage

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// escapeField prefixes backslash, comma, CR, and LF with a backslash.
// It is the exact inverse of the element reader's unescaping.
func escapeField(s string) string {
	if !strings.ContainsAny(s, "\\,\r\n") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s) + 4)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\', ',', '\r', '\n':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// writeTable serializes a table to w in the engine's file format: a line
// of column names, a line of type keywords, then one line per row in the
// table's current order. Lines end with a single '\n'; the trailing comma
// of each line is never emitted.
func writeTable(w io.Writer, t *tableState) error {
	bw := bufio.NewWriter(w)

	for i := 0; i < t.header.Len(); i++ {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(escapeField(t.header.Column(i).Name)); err != nil {
			return err
		}
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	for i := 0; i < t.header.Len(); i++ {
		if i > 0 {
			if err := bw.WriteByte(','); err != nil {
				return err
			}
		}
		if _, err := bw.WriteString(t.header.Column(i).Type.String()); err != nil {
			return err
		}
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}

	for ri, row := range t.rows {
		for i := 0; i < t.header.Len(); i++ {
			if i > 0 {
				if err := bw.WriteByte(','); err != nil {
					return err
				}
			}
			s, err := row.vals[i].format()
			if err != nil {
				return fmt.Errorf("table %q row %d column %q: %w", t.name, ri, t.header.Column(i).Name, err)
			}
			if _, err := bw.WriteString(escapeField(s)); err != nil {
				return err
			}
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}

	return bw.Flush()
}
