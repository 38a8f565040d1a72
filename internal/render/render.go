// Package render serializes result tables and errors into the gateway's wire
// formats. Rendering is formatting only; it never mutates or re-derives the
// payload it is given.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/tapgate/tapgate/internal/result"
)

type tableMetadata struct {
	Elements []result.FieldDescriptor `json:"elements"`
}

type tableBody struct {
	Metadata tableMetadata `json:"metadata"`
	Data     [][]any       `json:"data"`
}

type resultBody struct {
	Table tableBody `json:"table"`
}

type resultEnvelope struct {
	Result resultBody `json:"result"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Result renders a success table in the requested format and returns the body
// plus its Content-Type. VOTable rendering fails when a declared datatype has
// no mapping in that format's vocabulary.
func Result(table result.Table, mediaType MediaType) ([]byte, string, error) {
	switch mediaType {
	case MediaHTML:
		body, err := htmlResult(table)
		return body, contentType(MediaHTML), err
	case MediaVOTable:
		body, err := votableResult(table)
		return body, contentType(MediaVOTable), err
	default:
		body, err := encodeJSON(resultEnvelope{Result: resultBody{Table: tableBody{
			Metadata: tableMetadata{Elements: table.Columns},
			Data:     table.Rows,
		}}})
		return body, contentType(MediaJSON), err
	}
}

// Error renders an error payload in the requested format. Error rendering
// never fails; an unrenderable format degrades to JSON.
func Error(kind, message string, mediaType MediaType) ([]byte, string) {
	switch mediaType {
	case MediaHTML:
		return htmlError(kind, message), contentType(MediaHTML)
	case MediaVOTable:
		return votableError(kind, message), contentType(MediaVOTable)
	default:
		body, err := encodeJSON(errorEnvelope{Error: kind, Message: message})
		if err != nil {
			body = []byte(`{"error":"RenderError","message":"failed to encode error"}`)
		}
		return body, contentType(MediaJSON)
	}
}

// JSON renders an arbitrary payload as JSON, for the non-tabular responses
// (async submission handles, job listings, status bodies).
func JSON(payload any) ([]byte, string, error) {
	body, err := encodeJSON(payload)
	return body, contentType(MediaJSON), err
}

func contentType(mediaType MediaType) string {
	if mediaType == MediaHTML {
		return "text/html; charset=utf-8"
	}
	return string(mediaType)
}

func encodeJSON(payload any) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(payload); err != nil {
		return nil, fmt.Errorf("encode json payload: %w", err)
	}
	return buf.Bytes(), nil
}

// cellText is the shared scalar formatting used by the HTML and VOTable
// renderings. Nulls render as the empty cell.
func cellText(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case bool:
		return strconv.FormatBool(typed)
	case int64:
		return strconv.FormatInt(typed, 10)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(typed)
	}
}
