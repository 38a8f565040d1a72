package result

import (
	"errors"
	"testing"
	"time"
)

type fakeCursor struct {
	metas   []ColumnMeta
	rows    [][]any
	pos     int
	iterErr error
}

func (f *fakeCursor) Columns() ([]ColumnMeta, error) { return f.metas, nil }

func (f *fakeCursor) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeCursor) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	for i := range dest {
		ptr := dest[i].(*any)
		*ptr = row[i]
	}
	return nil
}

func (f *fakeCursor) Err() error {
	if f.pos >= len(f.rows) {
		return f.iterErr
	}
	return nil
}

func TestBuildMaterializesTypedTable(t *testing.T) {
	cursor := &fakeCursor{
		metas: []ColumnMeta{
			{Name: "id", DatabaseTypeName: "BIGINT"},
			{Name: "label", DatabaseTypeName: "VARCHAR"},
			{Name: "ratio", DatabaseTypeName: "DOUBLE"},
		},
		rows: [][]any{
			{int32(1), []byte("alpha"), float64(0.5)},
			{int32(2), []byte("beta"), float64(1.5)},
		},
	}

	table, err := Build(cursor)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("column count = %d", len(table.Columns))
	}
	if table.Columns[0].Datatype != TypeInteger || table.Columns[1].Datatype != TypeString || table.Columns[2].Datatype != TypeFloat {
		t.Fatalf("datatypes = %v", table.Columns)
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Columns) {
			t.Fatalf("row %d width = %d, want %d", i, len(row), len(table.Columns))
		}
	}
	if table.Rows[0][0] != int64(1) {
		t.Fatalf("coerced id = %v (%T)", table.Rows[0][0], table.Rows[0][0])
	}
	if table.Rows[1][1] != "beta" {
		t.Fatalf("coerced label = %v", table.Rows[1][1])
	}
}

func TestBuildEmptyResultKeepsColumnMetadata(t *testing.T) {
	cursor := &fakeCursor{metas: []ColumnMeta{{Name: "x", DatabaseTypeName: "INTEGER"}}}

	table, err := Build(cursor)
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(table.Rows) != 0 {
		t.Fatalf("rows = %d", len(table.Rows))
	}
	if len(table.Columns) != 1 || table.Columns[0].Datatype != TypeInteger {
		t.Fatalf("columns = %v", table.Columns)
	}
}

func TestBuildPropagatesCursorError(t *testing.T) {
	iterErr := errors.New("connection reset")
	cursor := &fakeCursor{
		metas:   []ColumnMeta{{Name: "x", DatabaseTypeName: "INTEGER"}},
		rows:    [][]any{{int64(1)}},
		iterErr: iterErr,
	}

	if _, err := Build(cursor); !errors.Is(err, iterErr) {
		t.Fatalf("Build() error = %v, want wrapped %v", err, iterErr)
	}
}

func TestCheckValueNullPassesThrough(t *testing.T) {
	for _, typeName := range []string{"BOOLEAN", "BIGINT", "DOUBLE", "VARCHAR", "BLOB", "TIMESTAMP", "SOMETHING_ODD"} {
		coercer := NewFieldCoercer(ColumnMeta{Name: "c", DatabaseTypeName: typeName}, nil)
		if got := coercer.CheckValue(nil); got != nil {
			t.Fatalf("CheckValue(nil) for %s = %v", typeName, got)
		}
	}
}

func TestCheckValueDecodesDeclaredTypes(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	cases := []struct {
		typeName string
		raw      any
		want     any
	}{
		{"BOOLEAN", int64(1), true},
		{"BOOLEAN", []byte("true"), true},
		{"BIGINT", []byte("42"), int64(42)},
		{"INTEGER", int16(7), int64(7)},
		{"DOUBLE", []byte("2.25"), 2.25},
		{"DECIMAL(18,3)", []byte("10.125"), 10.125},
		{"VARCHAR", []byte("hello"), "hello"},
		{"TIMESTAMP", at, "2024-03-01T12:30:00Z"},
		{"BLOB", []byte{0x01, 0x02}, "AQI="},
	}
	for _, tc := range cases {
		coercer := NewFieldCoercer(ColumnMeta{Name: "c", DatabaseTypeName: tc.typeName}, tc.raw)
		if got := coercer.CheckValue(tc.raw); got != tc.want {
			t.Fatalf("CheckValue(%v) for %s = %v (%T), want %v", tc.raw, tc.typeName, got, got, tc.want)
		}
	}
}

func TestUnknownTypeNameFallsBackToSample(t *testing.T) {
	coercer := NewFieldCoercer(ColumnMeta{Name: "c", DatabaseTypeName: "GEOMETRY_3D"}, float64(1))
	if desc := coercer.Descriptor(); desc.Datatype != TypeFloat {
		t.Fatalf("datatype = %s", desc.Datatype)
	}

	coercer = NewFieldCoercer(ColumnMeta{Name: "c", DatabaseTypeName: "GEOMETRY_3D"}, nil)
	if desc := coercer.Descriptor(); desc.Datatype != TypeString {
		t.Fatalf("fallback datatype = %s", desc.Datatype)
	}
}

func TestXtypeRefinements(t *testing.T) {
	cases := map[string]string{
		"HUGEINT":  "hugeint",
		"UBIGINT":  "unsigned",
		"UUID":     "uuid",
		"JSON":     "json",
		"DATE":     "date",
		"VARCHAR":  "",
		"NUMERIC":  "decimal",
		"INTERVAL": "interval",
	}
	for typeName, want := range cases {
		coercer := NewFieldCoercer(ColumnMeta{Name: "c", DatabaseTypeName: typeName}, nil)
		if got := coercer.Descriptor().Xtype; got != want {
			t.Fatalf("xtype for %s = %q, want %q", typeName, got, want)
		}
	}
}
