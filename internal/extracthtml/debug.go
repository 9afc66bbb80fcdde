package extracthtml

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DebugPrintSelector writes every match of selector, as outer HTML or as
// trimmed text, each preceded by a "# match N" line. It returns the number
// of matches.
func DebugPrintSelector(w io.Writer, r io.Reader, selector string, textOnly bool) (int, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return 0, fmt.Errorf("parse html: %w", err)
	}

	matches := doc.Find(selector)
	matches.Each(func(i int, s *goquery.Selection) {
		fmt.Fprintf(w, "# match %d\n", i+1)
		if textOnly {
			fmt.Fprintln(w, strings.TrimSpace(s.Text()))
			return
		}
		out, err := goquery.OuterHtml(s)
		if err != nil {
			out, _ = s.Html()
		}
		fmt.Fprintln(w, out)
	})
	return matches.Length(), nil
}
