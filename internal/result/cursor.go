package result

import (
	"database/sql"
	"fmt"
)

// SQLCursor adapts *sql.Rows to the Cursor interface.
type SQLCursor struct {
	rows  *sql.Rows
	metas []ColumnMeta
}

func NewSQLCursor(rows *sql.Rows) (*SQLCursor, error) {
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read column types: %w", err)
	}
	metas := make([]ColumnMeta, len(colTypes))
	for i, colType := range colTypes {
		nullable, _ := colType.Nullable()
		metas[i] = ColumnMeta{
			Name:             colType.Name(),
			DatabaseTypeName: colType.DatabaseTypeName(),
			Nullable:         nullable,
		}
	}
	return &SQLCursor{rows: rows, metas: metas}, nil
}

func (c *SQLCursor) Columns() ([]ColumnMeta, error) { return c.metas, nil }
func (c *SQLCursor) Next() bool                     { return c.rows.Next() }
func (c *SQLCursor) Scan(dest ...any) error         { return c.rows.Scan(dest...) }
func (c *SQLCursor) Err() error                     { return c.rows.Err() }

// BuildFromRows materializes a Table directly from *sql.Rows. The caller
// retains ownership of the rows and must close them.
func BuildFromRows(rows *sql.Rows) (Table, error) {
	cursor, err := NewSQLCursor(rows)
	if err != nil {
		return Table{}, err
	}
	return Build(cursor)
}
