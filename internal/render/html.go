package render

import (
	"bytes"
	"fmt"

	gomponents "maragu.dev/gomponents"
	html "maragu.dev/gomponents/html"

	"github.com/tapgate/tapgate/internal/result"
)

func htmlResult(table result.Table) ([]byte, error) {
	headerCells := make([]gomponents.Node, 0, len(table.Columns))
	for i := range table.Columns {
		label := table.Columns[i].Name
		if table.Columns[i].Xtype != "" {
			label = fmt.Sprintf("%s (%s/%s)", label, table.Columns[i].Datatype, table.Columns[i].Xtype)
		} else {
			label = fmt.Sprintf("%s (%s)", label, table.Columns[i].Datatype)
		}
		headerCells = append(headerCells, html.Th(gomponents.Text(label)))
	}

	bodyRows := make([]gomponents.Node, 0, len(table.Rows))
	for i := range table.Rows {
		cells := make([]gomponents.Node, 0, len(table.Rows[i]))
		for j := range table.Rows[i] {
			cells = append(cells, html.Td(gomponents.Text(cellText(table.Rows[i][j]))))
		}
		bodyRows = append(bodyRows, html.Tr(gomponents.Group(cells)))
	}

	page := htmlPage("Query Result",
		html.P(gomponents.Text(fmt.Sprintf("%d row(s), %d column(s)", len(table.Rows), len(table.Columns)))),
		html.Table(
			html.THead(html.Tr(gomponents.Group(headerCells))),
			html.TBody(gomponents.Group(bodyRows)),
		),
	)
	return renderNode(page)
}

func htmlError(kind, message string) []byte {
	page := htmlPage("Query Error",
		html.H2(gomponents.Text(kind)),
		html.Pre(gomponents.Text(message)),
	)
	body, err := renderNode(page)
	if err != nil {
		return []byte("<html><body><h1>Query Error</h1></body></html>")
	}
	return body
}

// Banner renders the capability banner for the hypertext root response.
func Banner(serviceName string, paths []string) []byte {
	links := make([]gomponents.Node, 0, len(paths))
	for _, path := range paths {
		links = append(links, html.Li(html.A(html.Href(path), gomponents.Text(path))))
	}
	page := htmlPage(serviceName,
		html.P(gomponents.Text(serviceName+" here. I currently support:")),
		html.Ul(gomponents.Group(links)),
	)
	body, err := renderNode(page)
	if err != nil {
		return []byte("<html><body>" + serviceName + "</body></html>")
	}
	return body
}

func htmlPage(title string, content ...gomponents.Node) gomponents.Node {
	return html.Doctype(
		html.HTML(
			html.Head(html.TitleEl(gomponents.Text(title))),
			html.Body(
				append([]gomponents.Node{html.H1(gomponents.Text(title))}, content...)...,
			),
		),
	)
}

func renderNode(node gomponents.Node) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := node.Render(buf); err != nil {
		return nil, fmt.Errorf("render html: %w", err)
	}
	return buf.Bytes(), nil
}
