// Command extract_table reads an HTML page (from stdin or a URL) and prints
// one of its tables as CSV.
//
// Usage (first table of a page):
//
//	extract_table -url "https://example.com/cities.html"
//
// Usage (pick a table):
//
//	extract_table -url "$URL" -select "div.content table" -match "Development" -index 0
//
// Debug (print outer HTML or text of every selector match):
//
//	cat page.html | extract_table -debug "table" -text
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"hretl/internal/config"
	"hretl/internal/datasource"
	"hretl/internal/extracthtml"
	"hretl/internal/probe"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// run returns 0 on success, 2 on usage errors and 1 on runtime errors.
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("extract_table", flag.ContinueOnError)
	fs.SetOutput(stderr)

	urlFlag := fs.String("url", "", "Optional: fetch HTML from URL or path instead of stdin")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")
	encoding := fs.String("encoding", "", "Input charset (default: sniff BOM, else UTF-8)")
	sel := fs.String("select", "", "CSS selector for the table (default: first <table>)")
	match := fs.String("match", "", "Regex a table's text must match")
	index := fs.Int("index", 0, "Index among the matching tables")
	infer := fs.Bool("infer", false, "Run type inference and print the schema to stderr")
	debugSelector := fs.String("debug", "", "Debug: CSS selector to print matches for (no CSV)")
	onlyText := fs.Bool("text", false, "Debug: print text instead of outer HTML for -debug matches")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *index < 0 {
		fmt.Fprintln(stderr, "-index must be >= 0")
		return 2
	}

	raw, err := readInput(ctx, *urlFlag, stdin, httpClient, *timeout)
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}
	html, err := datasource.DecodeText(raw, *encoding)
	if err != nil {
		fmt.Fprintf(stderr, "decode html: %v\n", err)
		return 1
	}

	if *debugSelector != "" {
		n, err := extracthtml.DebugPrintSelector(stdout, bytes.NewReader(html), *debugSelector, *onlyText)
		if err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		if n == 0 {
			fmt.Fprintf(stderr, "no matches for %q\n", *debugSelector)
		}
		return 0
	}

	t, err := extracthtml.ReadTable("table", bytes.NewReader(html), config.Options{
		"selector": *sel,
		"match":    *match,
		"index":    *index,
	})
	if err != nil {
		fmt.Fprintf(stderr, "extract table: %v\n", err)
		return 1
	}
	if *infer {
		probe.InferTypes(t)
		if err := t.Info(stderr); err != nil {
			fmt.Fprintf(stderr, "info: %v\n", err)
			return 1
		}
	}
	if err := t.WriteCSV(stdout); err != nil {
		fmt.Fprintf(stderr, "write csv: %v\n", err)
		return 1
	}
	return 0
}

func readInput(ctx context.Context, location string, stdin io.Reader, client *http.Client, timeout time.Duration) ([]byte, error) {
	if strings.TrimSpace(location) == "" {
		return io.ReadAll(stdin)
	}
	return datasource.NewFetcher(client, timeout, "").Fetch(ctx, location)
}
