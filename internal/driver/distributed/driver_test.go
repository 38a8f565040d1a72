package distributed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tapgate/tapgate/internal/driver"
	"github.com/tapgate/tapgate/internal/result"
)

func newMockDriver(t *testing.T) (*Driver, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewWithDB(db, nil), mock
}

func TestExecuteMaterializesTypedTable(t *testing.T) {
	d, mock := newMockDriver(t)

	cols := []*sqlmock.Column{
		sqlmock.NewColumn("x").OfType("INT8", int64(0)),
		sqlmock.NewColumn("label").OfType("TEXT", ""),
	}
	mock.ExpectQuery("SELECT 1 AS x, 'alpha' AS label").
		WillReturnRows(sqlmock.NewRowsWithColumnDefinition(cols...).AddRow(int64(1), "alpha"))

	table, err := d.Execute(context.Background(), "SELECT 1 AS x, 'alpha' AS label")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if table.Columns[0].Datatype != result.TypeInteger || table.Columns[1].Datatype != result.TypeString {
		t.Fatalf("columns = %+v", table.Columns)
	}
	if table.Rows[0][0] != int64(1) || table.Rows[0][1] != "alpha" {
		t.Fatalf("rows = %v", table.Rows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestExecuteRejectsEmptyQuery(t *testing.T) {
	d, _ := newMockDriver(t)
	if _, err := d.Execute(context.Background(), "   "); err == nil {
		t.Fatal("expected error for empty query")
	}
}

func TestSubmitRecordsClusterError(t *testing.T) {
	d, mock := newMockDriver(t)

	mock.ExpectQuery("SELECT * FROM missing").
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "missing" does not exist`})

	jobID, err := d.Submit(context.Background(), "SELECT * FROM missing", "user-a")
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		status, err := d.Job(context.Background(), jobID)
		if err != nil {
			t.Fatalf("Job() error = %v", err)
		}
		if status.State.Terminal() {
			if status.State != driver.StateError {
				t.Fatalf("state = %s", status.State)
			}
			if status.Error.Kind != "SyntaxOrAccessError" {
				t.Fatalf("kind = %q", status.Error.Kind)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job never reached a terminal state")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMapErrorClassifiesBySQLState(t *testing.T) {
	cases := []struct {
		name string
		err  error
		kind string
	}{
		{"syntax", &pgconn.PgError{Code: "42601", Message: "syntax error"}, "SyntaxOrAccessError"},
		{"connection", &pgconn.PgError{Code: "08006", Message: "connection failure"}, "ConnectionError"},
		{"cancelled", &pgconn.PgError{Code: "57014", Message: "canceling statement"}, "QueryCancelledError"},
		{"other sqlstate", &pgconn.PgError{Code: "22012", Message: "division by zero"}, "QueryExecutionError"},
		{"plain error", errors.New("dial tcp: refused"), "QueryExecutionError"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MapError(tc.err); got.Kind != tc.kind {
				t.Fatalf("MapError(%v).Kind = %q, want %q", tc.err, got.Kind, tc.kind)
			}
		})
	}
}

func TestUnknownJob(t *testing.T) {
	d, _ := newMockDriver(t)
	if _, err := d.Job(context.Background(), "nope"); !errors.Is(err, driver.ErrUnknownJob) {
		t.Fatalf("Job() error = %v, want ErrUnknownJob", err)
	}
}
