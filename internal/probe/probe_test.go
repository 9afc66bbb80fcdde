package probe

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"hretl/internal/table"
)

func textTable(t *testing.T, header []string, rows [][]any) *table.Table {
	t.Helper()
	tb, err := table.FromRows("t", header, rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return tb
}

// TestInferTypes verifies the integer > boolean > float > text precedence.
func TestInferTypes(t *testing.T) {
	t.Parallel()

	tb := textTable(t,
		[]string{"id", "active", "cdi", "experience", "empty", "padded"},
		[][]any{
			{"1", "true", "0.92", "<1", nil, " 5"},
			{"2", "False", "1", "7", nil, "6 "},
			{"3", nil, "0.5", ">20", nil, nil},
		})

	changed := InferTypes(tb)
	if want := []string{"id", "active", "cdi", "padded"}; !reflect.DeepEqual(changed, want) {
		t.Fatalf("changed=%v, want %v", changed, want)
	}

	tests := []struct {
		col   string
		dtype table.DType
		first any
	}{
		{"id", table.Int, int64(1)},
		{"active", table.Bool, true},
		{"cdi", table.Float, 0.92},
		{"experience", table.Text, "<1"},
		{"empty", table.Text, nil},
		{"padded", table.Int, int64(5)},
	}
	for _, tt := range tests {
		t.Run(tt.col, func(t *testing.T) {
			c, _ := tb.Column(tt.col)
			if c.Type != tt.dtype || c.Values[0] != tt.first {
				t.Fatalf("%s: type=%s first=%#v, want %s %#v", tt.col, c.Type, c.Values[0], tt.dtype, tt.first)
			}
		})
	}

	if again := InferTypes(tb); len(again) != 0 {
		t.Fatalf("second pass changed %v", again)
	}
}

func TestInferTypes_SkipsCategoryAndTypedColumns(t *testing.T) {
	t.Parallel()

	tb := textTable(t, []string{"size", "n"}, [][]any{{"1", int64(1)}})
	tb.Columns[0].Type = table.Category
	if changed := InferTypes(tb); len(changed) != 0 {
		t.Fatalf("changed=%v", changed)
	}
}

func TestProfileAndKeyCandidates(t *testing.T) {
	t.Parallel()

	tb := textTable(t, []string{"enrollee_id", "city", "gender"}, [][]any{
		{int64(1), "city_1", "F"},
		{int64(2), "city_1", nil},
		{int64(3), "city_2", "M"},
	})
	ps := Profile(tb)
	if len(ps) != 3 {
		t.Fatalf("profiles=%d", len(ps))
	}
	if got := KeyCandidates(ps); !reflect.DeepEqual(got, []string{"enrollee_id"}) {
		t.Fatalf("KeyCandidates=%v", got)
	}
	g := ps[2]
	if g.Rows != 2 || g.Nulls != 1 || g.Distinct != 2 || g.Ratio() != 1 {
		t.Fatalf("gender profile=%+v", g)
	}
	if g.Unique() {
		t.Fatalf("a column with nulls is not a key")
	}

	var buf bytes.Buffer
	if err := WriteReport(&buf, ps); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[1], "city") {
		t.Fatalf("report:\n%s", buf.String())
	}
}

func TestWriteReport_Empty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteReport(&buf, nil); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	if !strings.Contains(buf.String(), "no values") {
		t.Fatalf("got %q", buf.String())
	}
}
