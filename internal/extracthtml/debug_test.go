package extracthtml

import (
	"bytes"
	"strings"
	"testing"
)

func TestDebugPrintSelector_TextOnly(t *testing.T) {
	t.Parallel()

	html := `<td class="c">  city_103  </td><td class="c">city_21</td>`
	var buf bytes.Buffer

	n, err := DebugPrintSelector(&buf, strings.NewReader("<table><tr>"+html+"</tr></table>"), "td.c", true)
	if err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if n != 2 {
		t.Fatalf("matches=%d, want 2", n)
	}
	want := "# match 1\ncity_103\n# match 2\ncity_21\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\nwant=%q\ngot=%q", want, buf.String())
	}
}

func TestDebugPrintSelector_OuterHTML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := DebugPrintSelector(&buf, strings.NewReader(`<div id="x"><span>Hi</span></div>`), "div#x", false)
	if err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	out := buf.String()
	if n != 1 || !strings.Contains(out, `<div id="x">`) || !strings.Contains(out, `<span>Hi</span>`) {
		t.Fatalf("unexpected outer html output (n=%d): %q", n, out)
	}
}

func TestDebugPrintSelector_NoMatches(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n, err := DebugPrintSelector(&buf, strings.NewReader(`<p>x</p>`), "table", true)
	if err != nil {
		t.Fatalf("DebugPrintSelector: %v", err)
	}
	if n != 0 || buf.Len() != 0 {
		t.Fatalf("n=%d out=%q", n, buf.String())
	}
}
