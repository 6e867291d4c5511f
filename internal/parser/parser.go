// Package parser decodes the "XLS" exports produced by the student portal.
// Despite the extension the files are HTML documents containing a single
// table, so parsing walks the HTML tree rather than any spreadsheet format.
package parser

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

var (
	ErrNoTable      = errors.New("no table found in file")
	ErrEmptyDataset = errors.New("file does not contain enough rows")
)

// Row is one data row of the export: the positional cell values plus the
// header-keyed view of the same values. Field extraction uses Cells only;
// header text is unreliable and kept for labelling.
type Row struct {
	Cells []string
	Named map[string]string
}

type Document struct {
	Headers []string
	Rows    []Row
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanText collapses whitespace runs and strips non-breaking spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

var nonDigits = regexp.MustCompile(`[^0-9]`)

// NormalizePhone strips every non-digit character.
func NormalizePhone(s string) string {
	return nonDigits.ReplaceAllString(s, "")
}

// ParseExport decodes the raw file bytes and materializes every data row.
// The first table row is treated as headers; rows whose first five cells are
// all empty are dropped as noise.
func ParseExport(data []byte) (*Document, error) {
	root, err := html.Parse(strings.NewReader(decode(data)))
	if err != nil {
		return nil, err
	}

	table := findFirst(root, "table")
	if table == nil {
		return nil, ErrNoTable
	}

	trs := findAll(table, "tr")
	if len(trs) < 2 {
		return nil, ErrEmptyDataset
	}

	headers := make([]string, 0)
	for _, cell := range findAllAny(trs[0], "td", "th") {
		headers = append(headers, CleanText(nodeText(cell)))
	}

	rows := make([]Row, 0, len(trs)-1)
	for _, tr := range trs[1:] {
		cells := findAll(tr, "td")
		if len(cells) == 0 {
			continue
		}

		values := make([]string, 0, len(cells))
		named := make(map[string]string, len(cells))
		for i, cell := range cells {
			value := CleanText(nodeText(cell))
			values = append(values, value)
			if i < len(headers) {
				named[headers[i]] = value
			}
		}

		if !hasContent(values, 5) {
			continue
		}
		rows = append(rows, Row{Cells: values, Named: named})
	}

	return &Document{Headers: headers, Rows: rows}, nil
}

// decode tries UTF-8 first and falls back to Latin-1, which never fails.
func decode(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

func hasContent(values []string, firstN int) bool {
	if firstN > len(values) {
		firstN = len(values)
	}
	for _, v := range values[:firstN] {
		if v != "" {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, tag string) []*html.Node {
	return findAllAny(n, tag)
}

func findAllAny(n *html.Node, tags ...string) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode {
			for _, tag := range tags {
				if node.Data == tag {
					out = append(out, node)
					return
				}
			}
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c)
	}
	return out
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			sb.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
