package distributed

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/tapgate/tapgate/internal/driver"
)

// MapError classifies a cluster failure by SQLSTATE class. Anything the
// protocol did not label keeps the generic execution kind.
func MapError(err error) *driver.ExecError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kind := "QueryExecutionError"
		switch {
		case strings.HasPrefix(pgErr.Code, "42"):
			kind = "SyntaxOrAccessError"
		case strings.HasPrefix(pgErr.Code, "08"):
			kind = "ConnectionError"
		case strings.HasPrefix(pgErr.Code, "57"):
			kind = "QueryCancelledError"
		}
		return &driver.ExecError{Kind: kind, Message: pgErr.Message}
	}
	return &driver.ExecError{Kind: "QueryExecutionError", Message: err.Error()}
}
