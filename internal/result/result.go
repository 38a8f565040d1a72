package result

import (
	"fmt"
)

// FieldDescriptor carries the portable per-column type metadata included in
// every rendered result.
type FieldDescriptor struct {
	Name     string   `json:"name"`
	Datatype Datatype `json:"datatype"`
	Xtype    string   `json:"xtype,omitempty"`
}

// Table is a fully materialized query result. Rendering requires the whole
// table up front, so results are never streamed.
type Table struct {
	Columns []FieldDescriptor
	Rows    [][]any
}

// ColumnMeta is the backend-native column description a cursor reports.
type ColumnMeta struct {
	Name             string
	DatabaseTypeName string
	Nullable         bool
}

// Cursor is the minimal row iterator the builder consumes. SQLCursor adapts
// *sql.Rows to it.
type Cursor interface {
	Columns() ([]ColumnMeta, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// Build materializes a Table from a cursor. Field coercers are derived
// exactly once, from the cursor metadata and the first row's raw values;
// every row, including the first, is mapped through its column's coercer. A
// cursor error mid-iteration discards the partial table and propagates.
func Build(cursor Cursor) (Table, error) {
	metas, err := cursor.Columns()
	if err != nil {
		return Table{}, fmt.Errorf("read column metadata: %w", err)
	}

	var coercers []*FieldCoercer
	rows := make([][]any, 0)

	for cursor.Next() {
		raw := make([]any, len(metas))
		targets := make([]any, len(metas))
		for i := range raw {
			targets[i] = &raw[i]
		}
		if err := cursor.Scan(targets...); err != nil {
			return Table{}, fmt.Errorf("scan row: %w", err)
		}

		if coercers == nil {
			coercers = make([]*FieldCoercer, len(metas))
			for i, meta := range metas {
				coercers[i] = NewFieldCoercer(meta, raw[i])
			}
		}

		typed := make([]any, len(raw))
		for i, coercer := range coercers {
			typed[i] = coercer.CheckValue(raw[i])
		}
		rows = append(rows, typed)
	}
	if err := cursor.Err(); err != nil {
		return Table{}, fmt.Errorf("iterate rows: %w", err)
	}

	// Empty results still carry column metadata, derived without a sample.
	if coercers == nil {
		coercers = make([]*FieldCoercer, len(metas))
		for i, meta := range metas {
			coercers[i] = NewFieldCoercer(meta, nil)
		}
	}

	columns := make([]FieldDescriptor, len(coercers))
	for i, coercer := range coercers {
		columns[i] = coercer.Descriptor()
	}
	return Table{Columns: columns, Rows: rows}, nil
}
