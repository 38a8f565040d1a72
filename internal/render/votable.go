package render

import (
	"encoding/xml"
	"fmt"

	"github.com/tapgate/tapgate/internal/result"
)

// votableType maps one portable datatype into the VOTable vocabulary.
type votableType struct {
	Datatype  string
	Arraysize string
}

// votableTypes is the fixed portable-to-VOTable mapping. A datatype missing
// here makes VOTable rendering fail loudly rather than emit an invalid
// document.
var votableTypes = map[result.Datatype]votableType{
	result.TypeBoolean:   {Datatype: "boolean"},
	result.TypeInteger:   {Datatype: "long"},
	result.TypeFloat:     {Datatype: "double"},
	result.TypeString:    {Datatype: "char", Arraysize: "*"},
	result.TypeBinary:    {Datatype: "unsignedByte", Arraysize: "*"},
	result.TypeTimestamp: {Datatype: "char", Arraysize: "*"},
}

type votableDoc struct {
	XMLName  xml.Name        `xml:"VOTABLE"`
	Version  string          `xml:"version,attr"`
	Xmlns    string          `xml:"xmlns,attr"`
	Resource votableResource `xml:"RESOURCE"`
}

type votableResource struct {
	Type  string        `xml:"type,attr"`
	Infos []votableInfo `xml:"INFO"`
	Table *votableTable `xml:"TABLE,omitempty"`
}

type votableInfo struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type votableTable struct {
	Fields []votableFieldElem `xml:"FIELD"`
	Data   votableData        `xml:"DATA"`
}

type votableFieldElem struct {
	Name      string `xml:"name,attr"`
	Datatype  string `xml:"datatype,attr"`
	Arraysize string `xml:"arraysize,attr,omitempty"`
	Xtype     string `xml:"xtype,attr,omitempty"`
}

type votableData struct {
	TableData votableTableData `xml:"TABLEDATA"`
}

type votableTableData struct {
	Rows []votableRow `xml:"TR"`
}

type votableRow struct {
	Cells []string `xml:"TD"`
}

func votableResult(table result.Table) ([]byte, error) {
	fields := make([]votableFieldElem, 0, len(table.Columns))
	for _, column := range table.Columns {
		mapped, ok := votableTypes[column.Datatype]
		if !ok {
			return nil, fmt.Errorf("no votable mapping for datatype %q (column %q)", column.Datatype, column.Name)
		}
		fields = append(fields, votableFieldElem{
			Name:      column.Name,
			Datatype:  mapped.Datatype,
			Arraysize: mapped.Arraysize,
			Xtype:     column.Xtype,
		})
	}

	rows := make([]votableRow, 0, len(table.Rows))
	for i := range table.Rows {
		cells := make([]string, 0, len(table.Rows[i]))
		for j := range table.Rows[i] {
			cells = append(cells, cellText(table.Rows[i][j]))
		}
		rows = append(rows, votableRow{Cells: cells})
	}

	doc := votableDoc{
		Version: "1.3",
		Xmlns:   "http://www.ivoa.net/xml/VOTable/v1.3",
		Resource: votableResource{
			Type:  "results",
			Infos: []votableInfo{{Name: "QUERY_STATUS", Value: "OK"}},
			Table: &votableTable{
				Fields: fields,
				Data:   votableData{TableData: votableTableData{Rows: rows}},
			},
		},
	}
	return marshalVOTable(doc)
}

func votableError(kind, message string) []byte {
	doc := votableDoc{
		Version: "1.3",
		Xmlns:   "http://www.ivoa.net/xml/VOTable/v1.3",
		Resource: votableResource{
			Type: "results",
			Infos: []votableInfo{{
				Name:  "QUERY_STATUS",
				Value: "ERROR",
				Text:  fmt.Sprintf("%s: %s", kind, message),
			}},
		},
	}
	body, err := marshalVOTable(doc)
	if err != nil {
		return []byte(xml.Header + `<VOTABLE version="1.3"/>`)
	}
	return body
}

func marshalVOTable(doc votableDoc) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal votable: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
