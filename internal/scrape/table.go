package scrape

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/firefly-engineering/skillctl/internal/parse"
)

// Table is one HTML table with normalized headers.
type Table struct {
	Caption string
	Headers []string
	Rows    []map[string]string
}

// ParseTables extracts every table in the document. The header row is the
// first row containing <th> cells, or the first row when there are none.
// A cell holding a link to a .pdf sets the row's pdf_path.
func ParseTables(r io.Reader) ([]Table, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	var tables []Table
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Table {
			if t, ok := parseTable(n); ok {
				tables = append(tables, t)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return tables, nil
}

// ParseTablesString is ParseTables over a string.
func ParseTablesString(s string) ([]Table, error) {
	return ParseTables(strings.NewReader(s))
}

type cell struct {
	text   string
	header bool
	pdf    string
}

func parseTable(n *html.Node) (Table, bool) {
	var t Table
	var rows [][]cell

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		switch n.DataAtom {
		case atom.Table:
			// Nested tables are parsed on their own.
			return
		case atom.Caption:
			t.Caption = textOf(n)
			return
		case atom.Tr:
			rows = append(rows, cellsOf(n))
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}

	headerIdx := -1
	for i, row := range rows {
		if len(row) > 0 && row[0].header {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		headerIdx = 0
	}
	if len(rows) == 0 {
		return t, false
	}

	raw := make([]string, len(rows[headerIdx]))
	for i, c := range rows[headerIdx] {
		raw[i] = c.text
	}
	t.Headers = parse.NormalizeHeaders(raw)

	for _, row := range rows[headerIdx+1:] {
		if len(row) == 0 {
			continue
		}
		m := make(map[string]string, len(t.Headers))
		empty := true
		for i, h := range t.Headers {
			if h == "" || i >= len(row) {
				continue
			}
			m[h] = row[i].text
			if row[i].text != "" {
				empty = false
			}
			if row[i].pdf != "" && m["pdf_path"] == "" {
				m["pdf_path"] = row[i].pdf
			}
		}
		if !empty {
			t.Rows = append(t.Rows, m)
		}
	}
	return t, true
}

func cellsOf(tr *html.Node) []cell {
	var cells []cell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.DataAtom != atom.Td && c.DataAtom != atom.Th) {
			continue
		}
		cells = append(cells, cell{
			text:   textOf(c),
			header: c.DataAtom == atom.Th,
			pdf:    pdfLink(c),
		})
	}
	return cells
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch {
		case n.Type == html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

func pdfLink(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.A {
		for _, a := range n.Attr {
			if a.Key == "href" && strings.HasSuffix(strings.ToLower(strings.SplitN(a.Val, "?", 2)[0]), ".pdf") {
				return a.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := pdfLink(c); href != "" {
			return href
		}
	}
	return ""
}
