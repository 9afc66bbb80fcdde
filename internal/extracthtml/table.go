// Package extracthtml pulls tabular data out of HTML pages.
package extracthtml

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"hretl/internal/config"
	"hretl/internal/table"
)

// ErrNoTable is returned when the page has no table matching the request.
var ErrNoTable = errors.New("no matching table")

// TableQuery selects one <table> element of a page.
type TableQuery struct {
	// Selector narrows the candidates. Empty means every <table>.
	Selector string

	// Match, when set, keeps only candidates whose text matches the regex.
	Match string

	// Index picks among the remaining candidates in page order.
	Index int
}

// Grid is a table flattened to text cells. Empty cells are "".
type Grid struct {
	Header []string
	Rows   [][]string
}

// ExtractTable parses html and returns the table picked by q.
//
// Header rows are the rows inside <thead>; without a <thead>, leading rows
// made only of <th> cells. Several header rows are joined per column with a
// space. colspan and rowspan repeat the cell text over the spanned slots.
// Rows of nested tables belong to the nested table only.
func ExtractTable(r io.Reader, q TableQuery) (Grid, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Grid{}, fmt.Errorf("parse html: %w", err)
	}

	sel := q.Selector
	if strings.TrimSpace(sel) == "" {
		sel = "table"
	}
	re, err := compileOptionalRegex(q.Match)
	if err != nil {
		return Grid{}, err
	}

	var candidates []*goquery.Selection
	doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
		if !s.Is("table") {
			s = s.Find("table").First()
			if s.Length() == 0 {
				return
			}
		}
		if re != nil && !re.MatchString(s.Text()) {
			return
		}
		candidates = append(candidates, s)
	})
	if q.Index < 0 || q.Index >= len(candidates) {
		return Grid{}, fmt.Errorf("%w: selector=%q match=%q index=%d (found %d)", ErrNoTable, sel, q.Match, q.Index, len(candidates))
	}
	return gridOf(candidates[q.Index]), nil
}

func compileOptionalRegex(expr string) (*regexp.Regexp, error) {
	if expr == "" {
		return nil, nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid match regex %q: %w", expr, err)
	}
	return re, nil
}

func gridOf(tbl *goquery.Selection) Grid {
	var headRows, bodyRows []*goquery.Selection
	hasThead := tbl.ChildrenFiltered("thead").Length() > 0

	tbl.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if !tr.Closest("table").IsSelection(tbl) {
			return
		}
		if tr.ParentFiltered("thead").Length() > 0 {
			headRows = append(headRows, tr)
			return
		}
		bodyRows = append(bodyRows, tr)
	})

	cells := expandSpans(append(headRows, bodyRows...))
	head, body := cells[:len(headRows)], cells[len(headRows):]

	if !hasThead {
		n := 0
		for n < len(bodyRows) && onlyHeaderCells(bodyRows[n]) {
			n++
		}
		head, body = cells[:n], cells[n:]
	}

	return Grid{Header: joinHeaderRows(head), Rows: body}
}

func onlyHeaderCells(tr *goquery.Selection) bool {
	cells := tr.ChildrenFiltered("td, th")
	return cells.Length() > 0 && cells.Length() == cells.Filter("th").Length()
}

type pendingSpan struct {
	text string
	left int
}

// expandSpans turns rows of <td>/<th> cells into a rectangular-ish grid,
// carrying rowspan cells down into the rows below.
func expandSpans(rows []*goquery.Selection) [][]string {
	out := make([][]string, 0, len(rows))
	pending := make(map[int]*pendingSpan)

	for _, tr := range rows {
		var row []string
		col := 0
		carry := func() {
			for {
				p, ok := pending[col]
				if !ok {
					return
				}
				row = append(row, p.text)
				p.left--
				if p.left == 0 {
					delete(pending, col)
				}
				col++
			}
		}

		tr.ChildrenFiltered("td, th").Each(func(_ int, cell *goquery.Selection) {
			carry()
			text := strings.TrimSpace(cell.Text())
			cs := spanAttr(cell, "colspan")
			rs := spanAttr(cell, "rowspan")
			for k := 0; k < cs; k++ {
				row = append(row, text)
				if rs > 1 {
					pending[col] = &pendingSpan{text: text, left: rs - 1}
				}
				col++
			}
		})
		carry()
		out = append(out, row)
	}
	return out
}

func spanAttr(s *goquery.Selection, name string) int {
	v, ok := s.Attr(name)
	if !ok {
		return 1
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func joinHeaderRows(rows [][]string) []string {
	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}
	header := make([]string, width)
	for j := range header {
		var parts []string
		for _, r := range rows {
			if j >= len(r) || r[j] == "" {
				continue
			}
			if len(parts) > 0 && parts[len(parts)-1] == r[j] {
				continue
			}
			parts = append(parts, r[j])
		}
		header[j] = strings.Join(parts, " ")
	}
	return header
}

// ReadTable extracts one table from r and returns it as text cells. Empty
// cells and missing-value tokens (see table.NewNASet) are missing values.
// Options: selector, match, index, header_map, na_values, keep_default_na.
func ReadTable(name string, r io.Reader, opt config.Options) (*table.Table, error) {
	g, err := ExtractTable(r, TableQuery{
		Selector: opt.String("selector", ""),
		Match:    opt.String("match", ""),
		Index:    opt.Int("index", 0),
	})
	if err != nil {
		return nil, err
	}

	width := len(g.Header)
	for _, row := range g.Rows {
		width = max(width, len(row))
	}
	hm := opt.StringMap("header_map")
	na := table.NewNASet(opt.Strings("na_values"), opt.Bool("keep_default_na", true))
	cols := make([]string, width)
	for j := range cols {
		h := ""
		if j < len(g.Header) {
			h = g.Header[j]
		}
		if mapped, ok := hm[h]; ok {
			h = mapped
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", j+1)
		}
		cols[j] = h
	}
	table.DedupeNames(cols)

	rows := make([][]any, len(g.Rows))
	for i, src := range g.Rows {
		row := make([]any, width)
		for j, v := range src {
			if !na.Has(v) {
				row[j] = v
			}
		}
		rows[i] = row
	}
	return table.FromRows(name, cols, rows)
}
