package importer

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"

	"github.com/dayjn1/csvdb/internal/storage"
)

// ImportShapefile reads the DBF attribute table of a .shp file into a new
// csvdb table. DBF numeric fields map to INTEGER or REAL depending on
// their declared precision; everything else becomes TEXT. Geometry is not
// imported beyond the shape's type name in a "shape_type" TEXT column.
func ImportShapefile(ctx context.Context, drv *storage.Driver, tableName, filePath string) (*Result, error) {
	r, err := shp.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	fields := r.Fields()
	cols := make([]storage.Column, 0, len(fields)+1)
	names := make([]string, 0, len(fields)+1)
	for i, fld := range fields {
		name := strings.Trim(fld.String(), "\x00 ")
		if name == "" {
			name = fmt.Sprintf("field_%d", i+1)
		}
		cols = append(cols, storage.Column{Name: name, Type: dbfColumnType(fld)})
		names = append(names, name)
	}
	cols = append(cols, storage.Column{Name: "shape_type", Type: storage.Text})
	names = append(names, "shape_type")

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
		ColumnNames: names,
	}
	for _, c := range cols {
		res.ColumnTypes = append(res.ColumnTypes, c.Type)
	}

	for r.Next() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		idx, shape := r.Shape()
		row := tbl.NewRow()
		for fi := range fields {
			raw := strings.TrimSpace(r.ReadAttribute(idx, fi))
			if err := setDBFField(row, cols[fi], raw); err != nil {
				return res, fmt.Errorf("record %d: %w", idx, err)
			}
		}
		if err := row.SetText("shape_type", shapeTypeName(shape)); err != nil {
			return res, err
		}
		if err := tbl.Insert(row); err != nil {
			return res, err
		}
		res.RowsImported++
	}
	return res, nil
}

// dbfColumnType maps a DBF field descriptor to an engine column type.
// 'N' fields with zero precision are whole numbers; 'N' with precision
// and 'F' fields carry fractions.
func dbfColumnType(fld shp.Field) storage.ColumnType {
	switch fld.Fieldtype {
	case 'N':
		if fld.Precision == 0 {
			return storage.Integer
		}
		return storage.Real
	case 'F':
		return storage.Real
	default:
		return storage.Text
	}
}

// setDBFField coerces one DBF attribute string. DBF files pad numeric
// fields with blanks; an empty attribute stays at the column's zero
// value.
func setDBFField(row *storage.Row, col storage.Column, raw string) error {
	if raw == "" {
		return nil
	}
	switch col.Type {
	case storage.Integer:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not an integer", col.Name, raw)
		}
		return row.SetInt64(col.Name, n)
	case storage.Real:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return fmt.Errorf("column %q: %q is not a real number", col.Name, raw)
		}
		return row.SetFloat64(col.Name, f)
	default:
		return row.SetText(col.Name, raw)
	}
}

func shapeTypeName(s shp.Shape) string {
	switch s.(type) {
	case *shp.Point:
		return "point"
	case *shp.PolyLine:
		return "polyline"
	case *shp.Polygon:
		return "polygon"
	case *shp.MultiPoint:
		return "multipoint"
	case *shp.Null:
		return "null"
	default:
		return fmt.Sprintf("%T", s)
	}
}
