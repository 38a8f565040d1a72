// Package stage encodes completed result tables into parquet objects the
// batch worker deposits in the object store, and decodes them back when a
// poll retrieves the result.
package stage

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"

	"github.com/parquet-go/parquet-go"

	"github.com/tapgate/tapgate/internal/result"
)

// stagedCell is the flattened parquet representation: one record per cell,
// plus one descriptor record (Row == -1) per column so the table shape and
// portable types survive the round trip. Values are stored in their canonical
// text form and reparsed by the column's datatype on decode.
type stagedCell struct {
	Row      int64  `parquet:"row"`
	Col      int64  `parquet:"col"`
	Name     string `parquet:"name"`
	Datatype string `parquet:"datatype"`
	Xtype    string `parquet:"xtype"`
	Null     bool   `parquet:"null"`
	Value    string `parquet:"value"`
}

// EncodeTable serializes a materialized table into a parquet payload.
func EncodeTable(table result.Table) ([]byte, error) {
	records := make([]stagedCell, 0, len(table.Columns)*(len(table.Rows)+1))

	for colIndex, column := range table.Columns {
		records = append(records, stagedCell{
			Row:      -1,
			Col:      int64(colIndex),
			Name:     column.Name,
			Datatype: string(column.Datatype),
			Xtype:    column.Xtype,
			Null:     true,
		})
	}

	for rowIndex, row := range table.Rows {
		if len(row) != len(table.Columns) {
			return nil, fmt.Errorf("row %d width %d does not match %d columns", rowIndex, len(row), len(table.Columns))
		}
		for colIndex, value := range row {
			record := stagedCell{Row: int64(rowIndex), Col: int64(colIndex)}
			if value == nil {
				record.Null = true
			} else {
				record.Value = formatValue(value)
			}
			records = append(records, record)
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[stagedCell](buf)
	if _, err := writer.Write(records); err != nil {
		return nil, fmt.Errorf("write parquet records: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close parquet writer: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeTable rebuilds a table from a staged parquet payload.
func DecodeTable(data []byte) (result.Table, error) {
	records, err := parquet.Read[stagedCell](bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return result.Table{}, fmt.Errorf("read parquet records: %w", err)
	}

	descriptors := make([]stagedCell, 0)
	cells := make([]stagedCell, 0, len(records))
	maxRow := int64(-1)
	for _, record := range records {
		if record.Row < 0 {
			descriptors = append(descriptors, record)
			continue
		}
		cells = append(cells, record)
		if record.Row > maxRow {
			maxRow = record.Row
		}
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Col < descriptors[j].Col })
	if len(descriptors) == 0 {
		return result.Table{}, fmt.Errorf("staged table has no column descriptors")
	}

	columns := make([]result.FieldDescriptor, len(descriptors))
	for i, descriptor := range descriptors {
		if descriptor.Col != int64(i) {
			return result.Table{}, fmt.Errorf("staged table descriptor sequence is broken at %d", i)
		}
		columns[i] = result.FieldDescriptor{
			Name:     descriptor.Name,
			Datatype: result.Datatype(descriptor.Datatype),
			Xtype:    descriptor.Xtype,
		}
	}

	rows := make([][]any, maxRow+1)
	for i := range rows {
		rows[i] = make([]any, len(columns))
	}
	for _, cell := range cells {
		if cell.Col < 0 || cell.Col >= int64(len(columns)) {
			return result.Table{}, fmt.Errorf("staged cell column %d out of range", cell.Col)
		}
		if cell.Null {
			continue
		}
		value, err := parseValue(columns[cell.Col].Datatype, cell.Value)
		if err != nil {
			return result.Table{}, err
		}
		rows[cell.Row][cell.Col] = value
	}

	return result.Table{Columns: columns, Rows: rows}, nil
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	default:
		return fmt.Sprint(typed)
	}
}

func parseValue(datatype result.Datatype, text string) (any, error) {
	switch datatype {
	case result.TypeBoolean:
		value, err := strconv.ParseBool(text)
		if err != nil {
			return nil, fmt.Errorf("parse staged boolean %q: %w", text, err)
		}
		return value, nil
	case result.TypeInteger:
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse staged integer %q: %w", text, err)
		}
		return value, nil
	case result.TypeFloat:
		value, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, fmt.Errorf("parse staged float %q: %w", text, err)
		}
		return value, nil
	default:
		// string, binary, and timestamp columns are staged in their coerced
		// text form already.
		return text, nil
	}
}
