package duckdb

import (
	"strings"

	"github.com/tapgate/tapgate/internal/driver"
)

// errorKinds maps the prefix DuckDB embeds in its error text to the exception
// kind surfaced to clients.
var errorKinds = []struct {
	marker string
	kind   string
}{
	{"Parser Error", "ParserError"},
	{"Binder Error", "BinderError"},
	{"Catalog Error", "CatalogError"},
	{"Conversion Error", "ConversionError"},
	{"Constraint Error", "ConstraintError"},
	{"Out of Range Error", "OutOfRangeError"},
	{"IO Error", "IOError"},
}

// MapError translates a DuckDB execution failure into the standard
// execution-error shape.
func MapError(err error) *driver.ExecError {
	message := err.Error()
	for _, entry := range errorKinds {
		if strings.Contains(message, entry.marker) {
			return &driver.ExecError{Kind: entry.kind, Message: message}
		}
	}
	return &driver.ExecError{Kind: "QueryExecutionError", Message: message}
}
