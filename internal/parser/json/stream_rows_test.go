package json

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"hretl/internal/config"
	"hretl/internal/table"
)

// runStream collects every record StreamRecords emits together with the
// returned error and the onParseErr calls, formatted as "line=N err=...".
func runStream(ctx context.Context, input string, opts config.Options) (recs []Record, err error, parseErrCalls []string) {
	onParseErr := func(line int, e error) {
		parseErrCalls = append(parseErrCalls, fmt.Sprintf("line=%d err=%s", line, e.Error()))
	}
	err = StreamRecords(ctx, strings.NewReader(input), opts, func(r Record) error {
		recs = append(recs, r)
		return nil
	}, onParseErr)
	return recs, err, parseErrCalls
}

func TestStreamRecords_RootArrayAndTrailingJSONL(t *testing.T) {
	t.Parallel()

	input := `[
		{"enrollee_id": 1, "tags": ["x", "y"]},
		null,
		{"enrollee_id": 2, "tags": []}
	]
	{"enrollee_id": 3, "tags": ["z"]}`

	recs, err, parseCalls := runStream(context.Background(), input, config.Options{})
	if err != nil {
		t.Fatalf("StreamRecords() err=%v", err)
	}
	if len(parseCalls) != 0 {
		t.Fatalf("onParseErr calls=%v, want none", parseCalls)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d, want 3", len(recs))
	}
	for i, r := range recs {
		if r.Line != i+1 {
			t.Fatalf("recs[%d].Line=%d", i, r.Line)
		}
		if !reflect.DeepEqual(r.Keys, []string{"enrollee_id", "tags"}) {
			t.Fatalf("recs[%d].Keys=%v", i, r.Keys)
		}
	}
	if got := recs[2].Obj["enrollee_id"].(fmt.Stringer).String(); got != "3" {
		t.Fatalf("trailing enrollee_id=%q", got)
	}
}

func TestStreamRecords_EnvelopeStreamsFirstArrayField(t *testing.T) {
	t.Parallel()

	input := `{
		"meta": {"ignore": [1,2,3]},
		"records": [{"x": 1}, {"x": 2}],
		"other": {"deep": [{"k": "v"}], "n": 10}
	}
	{"x": 3}`

	recs, err, _ := runStream(context.Background(), input, config.Options{})
	if err != nil {
		t.Fatalf("StreamRecords() err=%v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("records=%d, want 3", len(recs))
	}
}

func TestStreamRecords_SingleObjectKeepsKeyOrderAndHeaderMap(t *testing.T) {
	t.Parallel()

	input := `{"Zeta": 1, "nested": {"y": 2}, "Alpha": true}`
	opts := config.Options{"header_map": map[string]any{"Zeta": "zeta"}}

	recs, err, _ := runStream(context.Background(), input, opts)
	if err != nil {
		t.Fatalf("StreamRecords() err=%v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("records=%d, want 1", len(recs))
	}
	if !reflect.DeepEqual(recs[0].Keys, []string{"zeta", "nested", "Alpha"}) {
		t.Fatalf("Keys=%v", recs[0].Keys)
	}
	if _, ok := recs[0].Obj["nested"].(map[string]any); !ok {
		t.Fatalf("nested=%T, want map", recs[0].Obj["nested"])
	}
}

func TestStreamRecords_ContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recs, err, parseCalls := runStream(ctx, `[{"a": 1}]`, config.Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
	if len(recs) != 0 || len(parseCalls) != 0 {
		t.Fatalf("recs=%v parseCalls=%v", recs, parseCalls)
	}
}

func TestStreamRecords_ErrorPaths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		input         string
		wantErrSubstr string
		wantParseLine string
	}{
		{name: "root_null", input: `null`, wantErrSubstr: "unsupported root token"},
		{name: "bad_first_token", input: `(`, wantErrSubstr: "read first token", wantParseLine: "line=0"},
		{name: "array_element_not_object", input: `[1]`, wantErrSubstr: "array element not an object", wantParseLine: "line=1"},
		{name: "envelope_element_not_object", input: `{"records":[1]}`, wantErrSubstr: "array element not an object", wantParseLine: "line=1"},
		{name: "trailing_garbage", input: `{"x":1} not-json`, wantErrSubstr: "decode trailing object", wantParseLine: "line=2"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err, parseCalls := runStream(context.Background(), tc.input, config.Options{})
			if err == nil || !strings.Contains(err.Error(), tc.wantErrSubstr) {
				t.Fatalf("err=%v, want substring %q", err, tc.wantErrSubstr)
			}
			if tc.wantParseLine == "" {
				if len(parseCalls) != 0 {
					t.Fatalf("unexpected onParseErr calls: %v", parseCalls)
				}
				return
			}
			if len(parseCalls) == 0 || !strings.Contains(parseCalls[0], tc.wantParseLine) {
				t.Fatalf("onParseErr=%v, want %q", parseCalls, tc.wantParseLine)
			}
		})
	}
}

func TestReadTable_UnionOfKeysInFirstSeenOrder(t *testing.T) {
	t.Parallel()

	input := `[
		{"enrollee_id": 1, "training_hours": 36},
		{"enrollee_id": 2, "training_hours": 12.5, "note": ""},
		{"enrollee_id": 3, "note": "late", "tags": ["a", "b"], "extra": {"k": 1}}
	]`
	tb, err := ReadTable(context.Background(), "training_hours", strings.NewReader(input), config.Options{"array_join_separator": "|"}, nil)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if want := []string{"enrollee_id", "training_hours", "note", "tags", "extra"}; !reflect.DeepEqual(tb.Names(), want) {
		t.Fatalf("Names=%v, want %v", tb.Names(), want)
	}
	id, _ := tb.Column("enrollee_id")
	if id.Type != table.Int || id.Values[2] != int64(3) {
		t.Fatalf("enrollee_id=%+v", id)
	}
	th, _ := tb.Column("training_hours")
	if th.Type != table.Float || th.Values[0] != 36.0 || th.Values[2] != nil {
		t.Fatalf("training_hours=%+v", th)
	}
	note, _ := tb.Column("note")
	if note.Values[1] != nil || note.Values[2] != "late" {
		t.Fatalf("note=%v", note.Values)
	}
	tags, _ := tb.Column("tags")
	if tags.Values[2] != "a|b" {
		t.Fatalf("tags=%v", tags.Values)
	}
	extra, _ := tb.Column("extra")
	if extra.Values[2] != `{"k":1}` {
		t.Fatalf("extra=%v", extra.Values)
	}
}

func TestReadTable_FixedColumns(t *testing.T) {
	t.Parallel()

	tb, err := ReadTable(context.Background(), "t", strings.NewReader(`{"b": "x", "a": 1}`),
		config.Options{"columns": []any{"a", "missing"}}, nil)
	if err != nil {
		t.Fatalf("ReadTable: %v", err)
	}
	if !reflect.DeepEqual(tb.Names(), []string{"a", "missing"}) {
		t.Fatalf("Names=%v", tb.Names())
	}
	m, _ := tb.Column("missing")
	if m.Values[0] != nil {
		t.Fatalf("missing column should be nil, got %v", m.Values[0])
	}
}

func TestNormalizeScalarJSONValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		sep  string
		want any
	}{
		{name: "nil", in: nil, sep: ",", want: nil},
		{name: "string_array_joined", in: []string{"a", "b"}, sep: "|", want: "a|b"},
		{name: "string_array_empty", in: []string{}, sep: ",", want: ""},
		{name: "any_array_strings_joined", in: []any{"a", "b"}, sep: ",", want: "a,b"},
		{name: "any_array_all_nil_returns_empty", in: []any{nil, nil}, sep: ",", want: ""},
		{name: "any_array_mixed_types_returns_original", in: []any{"a", 1}, sep: ",", want: []any{"a", 1}},
		{name: "scalar_passthrough", in: true, sep: ",", want: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeScalarJSONValue(tc.in, tc.sep); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("normalizeScalarJSONValue(%#v,%q)=%#v, want %#v", tc.in, tc.sep, got, tc.want)
			}
		})
	}
}
