package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const cityPage = `<html><body>
<table id="nav"><tr><td>Home</td></tr></table>
<table class="cdi">
  <thead><tr><th>City</th><th>City Development Index</th></tr></thead>
  <tbody>
    <tr><td>city_103</td><td>0.92</td></tr>
    <tr><td>city_21</td><td></td></tr>
  </tbody>
</table>
</body></html>`

func TestRun_StdinFirstTable(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), nil, strings.NewReader(cityPage), &stdout, &stderr, http.DefaultClient)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	if want := "column_1\nHome\n"; stdout.String() != want {
		t.Fatalf("stdout=%q, want %q", stdout.String(), want)
	}
}

func TestRun_URLWithSelectorAndInfer(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(cityPage))
	}))
	defer srv.Close()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-url", srv.URL, "-select", "table.cdi", "-infer"},
		strings.NewReader(""), &stdout, &stderr, srv.Client())
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	want := "City,City Development Index\ncity_103,0.92\ncity_21,\n"
	if stdout.String() != want {
		t.Fatalf("stdout=%q, want %q", stdout.String(), want)
	}
	if !strings.Contains(stderr.String(), "float64") {
		t.Fatalf("schema not printed: %s", stderr.String())
	}
}

func TestRun_MatchByText(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-match", "Development"}, strings.NewReader(cityPage), &stdout, &stderr, http.DefaultClient)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	if !strings.HasPrefix(stdout.String(), "City,City Development Index\n") {
		t.Fatalf("stdout=%q", stdout.String())
	}
}

func TestRun_DebugSelectorText(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"-debug", "td", "-text"}, strings.NewReader(cityPage), &stdout, &stderr, http.DefaultClient)
	if code != 0 {
		t.Fatalf("run returned %d; stderr=%s", code, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "# match 1") || !strings.Contains(out, "city_103") || strings.Contains(out, "<td>") {
		t.Fatalf("stdout=%q", out)
	}
}

func TestRun_Errors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  int
	}{
		{name: "bad_flag", args: []string{"-nope"}, want: 2},
		{name: "negative_index", args: []string{"-index", "-1"}, want: 2},
		{name: "no_table", args: nil, stdin: "<p>nothing</p>", want: 1},
		{name: "index_out_of_range", args: []string{"-index", "5"}, stdin: cityPage, want: 1},
		{name: "http_404", args: []string{"-url", srv.URL}, want: 1},
		{name: "bad_encoding", args: []string{"-encoding", "klingon-8"}, stdin: cityPage, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), tc.args, strings.NewReader(tc.stdin), &stdout, &stderr, srv.Client()); code != tc.want {
				t.Fatalf("code=%d, want %d; stderr=%s", code, tc.want, stderr.String())
			}
		})
	}
}
