package result

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Datatype is the backend-agnostic type tag derived from backend-specific
// type names. It drives the per-format vocabulary mapping in render.
type Datatype string

const (
	TypeBoolean   Datatype = "boolean"
	TypeInteger   Datatype = "integer"
	TypeFloat     Datatype = "float"
	TypeString    Datatype = "string"
	TypeBinary    Datatype = "binary"
	TypeTimestamp Datatype = "timestamp"
)

// FieldCoercer binds one column's derived portable type to a value-decoding
// function. It is built once per column from the cursor metadata and the
// first row's raw value.
type FieldCoercer struct {
	name     string
	datatype Datatype
	xtype    string
}

// NewFieldCoercer derives a coercer from a backend-native column description
// and a sample raw value. An unrecognized backend type name never fails; it
// falls back to the portable string type, refined by the sample where one
// exists.
func NewFieldCoercer(meta ColumnMeta, sample any) *FieldCoercer {
	datatype, xtype, known := classifyTypeName(meta.DatabaseTypeName)
	if !known {
		datatype, xtype = classifySample(sample)
	}
	return &FieldCoercer{name: meta.Name, datatype: datatype, xtype: xtype}
}

// Descriptor returns the portable descriptor for this column.
func (c *FieldCoercer) Descriptor() FieldDescriptor {
	return FieldDescriptor{Name: c.name, Datatype: c.datatype, Xtype: c.xtype}
}

// CheckValue decodes one raw driver value into the column's declared
// portable type. Nulls pass through untouched.
func (c *FieldCoercer) CheckValue(raw any) any {
	if raw == nil {
		return nil
	}
	switch c.datatype {
	case TypeBoolean:
		return coerceBool(raw)
	case TypeInteger:
		return coerceInt(raw)
	case TypeFloat:
		return coerceFloat(raw)
	case TypeBinary:
		return coerceBinary(raw)
	case TypeTimestamp:
		return coerceTimestamp(raw)
	default:
		return coerceString(raw)
	}
}

func classifyTypeName(name string) (Datatype, string, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	if idx := strings.IndexByte(normalized, '('); idx >= 0 {
		normalized = strings.TrimSpace(normalized[:idx])
	}

	switch normalized {
	case "BOOLEAN", "BOOL":
		return TypeBoolean, "", true
	case "TINYINT", "SMALLINT", "INT2", "INTEGER", "INT", "INT4", "BIGINT", "INT8":
		return TypeInteger, "", true
	case "UTINYINT", "USMALLINT", "UINTEGER", "UBIGINT":
		return TypeInteger, "unsigned", true
	case "HUGEINT":
		return TypeInteger, "hugeint", true
	case "FLOAT", "FLOAT4", "REAL", "DOUBLE", "FLOAT8":
		return TypeFloat, "", true
	case "DECIMAL", "NUMERIC":
		return TypeFloat, "decimal", true
	case "VARCHAR", "TEXT", "CHAR", "BPCHAR", "STRING", "NAME":
		return TypeString, "", true
	case "UUID":
		return TypeString, "uuid", true
	case "JSON", "JSONB":
		return TypeString, "json", true
	case "INTERVAL":
		return TypeString, "interval", true
	case "BLOB", "BYTEA", "VARBINARY", "BINARY":
		return TypeBinary, "", true
	case "DATE":
		return TypeTimestamp, "date", true
	case "TIME", "TIMETZ":
		return TypeTimestamp, "time", true
	case "TIMESTAMP", "TIMESTAMPTZ", "TIMESTAMP WITH TIME ZONE", "DATETIME", "TIMESTAMP_S", "TIMESTAMP_MS", "TIMESTAMP_NS":
		return TypeTimestamp, "", true
	}
	return TypeString, "", false
}

func classifySample(sample any) (Datatype, string) {
	switch sample.(type) {
	case bool:
		return TypeBoolean, ""
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeInteger, ""
	case float32, float64:
		return TypeFloat, ""
	case time.Time:
		return TypeTimestamp, ""
	case []byte:
		return TypeBinary, ""
	default:
		return TypeString, ""
	}
}

func coerceBool(raw any) any {
	switch value := raw.(type) {
	case bool:
		return value
	case int64:
		return value != 0
	case []byte:
		return parseBool(string(value), raw)
	case string:
		return parseBool(value, raw)
	default:
		return raw
	}
}

func parseBool(text string, fallback any) any {
	parsed, err := strconv.ParseBool(strings.TrimSpace(text))
	if err != nil {
		return fallback
	}
	return parsed
}

func coerceInt(raw any) any {
	switch value := raw.(type) {
	case int:
		return int64(value)
	case int8:
		return int64(value)
	case int16:
		return int64(value)
	case int32:
		return int64(value)
	case int64:
		return value
	case uint8:
		return int64(value)
	case uint16:
		return int64(value)
	case uint32:
		return int64(value)
	case uint64:
		return int64(value)
	case []byte:
		return parseInt(string(value), raw)
	case string:
		return parseInt(value, raw)
	default:
		return raw
	}
}

func parseInt(text string, fallback any) any {
	parsed, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func coerceFloat(raw any) any {
	switch value := raw.(type) {
	case float32:
		return float64(value)
	case float64:
		return value
	case int64:
		return float64(value)
	case []byte:
		return parseFloat(string(value), raw)
	case string:
		return parseFloat(value, raw)
	default:
		return raw
	}
}

func parseFloat(text string, fallback any) any {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func coerceBinary(raw any) any {
	switch value := raw.(type) {
	case []byte:
		return base64.StdEncoding.EncodeToString(value)
	default:
		return raw
	}
}

func coerceTimestamp(raw any) any {
	switch value := raw.(type) {
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	case []byte:
		return string(value)
	default:
		return raw
	}
}

func coerceString(raw any) any {
	switch value := raw.(type) {
	case []byte:
		return string(value)
	case time.Time:
		return value.UTC().Format(time.RFC3339Nano)
	default:
		return raw
	}
}
