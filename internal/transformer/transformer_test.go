package transformer

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"hretl/internal/table"
)

type captureLogger struct{ lines []string }

func (c *captureLogger) Printf(format string, v ...any) {
	c.lines = append(c.lines, fmt.Sprintf(format, v...))
}

func mustTable(t *testing.T, header []string, rows [][]any) *table.Table {
	t.Helper()
	tb, err := table.FromRows("t", header, rows)
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	return tb
}

func TestConvert_ReportsEveryOutcome(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"enrollee_id", "city", "training_hours", "note"}, [][]any{
		{int64(1), "city_103", "36", "x"},
		{int64(2), nil, "abc", "y"},
	})

	rep := Convert(tb, []string{"city", "note", "absent"}, table.Text)
	if len(rep.AlreadyTyped) != 2 || len(rep.Missing) != 1 || rep.Missing[0] != "absent" {
		t.Fatalf("unexpected report: %+v", rep)
	}

	rep = Convert(tb, []string{"enrollee_id", "training_hours"}, table.Int)
	if !reflect.DeepEqual(rep.AlreadyTyped, []string{"enrollee_id"}) {
		t.Fatalf("AlreadyTyped=%v", rep.AlreadyTyped)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].Column != "training_hours" {
		t.Fatalf("Failed=%+v", rep.Failed)
	}
	if !errors.Is(rep.Failed[0].Err, ErrConversion) || !errors.Is(rep.Err(), ErrConversion) {
		t.Fatalf("failure should wrap ErrConversion: %v", rep.Failed[0].Err)
	}
	if rep.OK() {
		t.Fatalf("OK() should be false")
	}

	// The failed column is untouched.
	col, _ := tb.Column("training_hours")
	if col.Type != table.Text || col.Values[0] != "36" {
		t.Fatalf("failed column was modified: %+v", col)
	}
}

func TestConvert_FailureDoesNotAbortOtherColumns(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"a", "b"}, [][]any{{"x", "1"}, {"y", "2"}})
	rep := Convert(tb, []string{"a", "b"}, table.Int)

	if len(rep.Failed) != 1 || !reflect.DeepEqual(rep.Converted, []string{"b"}) {
		t.Fatalf("unexpected report: %+v", rep)
	}
	b, _ := tb.Column("b")
	if b.Type != table.Int || b.Values[1] != int64(2) {
		t.Fatalf("b not converted: %+v", b)
	}
}

func TestConvert_Idempotent(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"enrollee_id", "gender", "city"}, [][]any{
		{int64(1), "Male", nil},
		{int64(2), nil, "city_21"},
	})
	cols := []string{"gender", "city"}

	Convert(tb, cols, table.Category)
	before := tb.Clone()

	rep := Convert(tb, cols, table.Category)
	if !reflect.DeepEqual(rep.AlreadyTyped, cols) || len(rep.Converted) != 0 {
		t.Fatalf("second run should report every column already typed: %+v", rep)
	}
	if !reflect.DeepEqual(before, tb) {
		t.Fatalf("second run changed values")
	}
}

func TestConvert_NumbersToTextKeepMissing(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"enrollee_id", "training_hours"}, [][]any{
		{int64(1), 3.0},
		{int64(2), nil},
	})
	rep := ConvertAllExcept(tb, []string{"enrollee_id"}, table.Text)
	if !reflect.DeepEqual(rep.Converted, []string{"training_hours"}) {
		t.Fatalf("Converted=%v", rep.Converted)
	}
	col, _ := tb.Column("training_hours")
	if col.Values[0] != "3.0" || col.Values[1] != nil {
		t.Fatalf("values=%v", col.Values)
	}
	id, _ := tb.Column("enrollee_id")
	if id.Type != table.Int {
		t.Fatalf("excluded column changed type: %s", id.Type)
	}
}

func TestConvertReport_Log(t *testing.T) {
	t.Parallel()

	rep := ConvertReport{
		Target:       table.Text,
		Converted:    []string{"a"},
		AlreadyTyped: []string{"b"},
		Missing:      []string{"c"},
		Failed:       []ColumnError{{Column: "d", Err: ErrConversion}},
	}
	l := &captureLogger{}
	rep.Log(l)
	rep.Log(nil)

	if len(l.lines) != 4 {
		t.Fatalf("lines=%v", l.lines)
	}
	for i, want := range []string{"status=converted", "status=already_typed", "status=not_found", "status=failed"} {
		if !strings.Contains(l.lines[i], want) {
			t.Fatalf("line %d=%q, want %q", i, l.lines[i], want)
		}
	}
}

func TestFillMissing_GenderScenario(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"enrollee_id", "gender", "city"}, [][]any{
		{int64(1), "F", nil},
		{int64(2), nil, nil},
	})
	cityNulls := func() int { c, _ := tb.Column("city"); return c.NullCount() }
	before := cityNulls()

	n, err := FillMissing(tb, "gender", "Non-binary")
	if err != nil {
		t.Fatalf("FillMissing: %v", err)
	}
	if n != 1 {
		t.Fatalf("filled=%d, want 1", n)
	}
	g, _ := tb.Column("gender")
	if g.Values[0] != "F" || g.Values[1] != "Non-binary" {
		t.Fatalf("gender=%v", g.Values)
	}
	if cityNulls() != before {
		t.Fatalf("fill touched another column")
	}
}

func TestFillMissing_Errors(t *testing.T) {
	t.Parallel()

	tb := mustTable(t, []string{"experience"}, [][]any{{int64(3)}, {nil}})

	if _, err := FillMissing(tb, "gender", "x"); !errors.Is(err, ErrColumnNotFound) {
		t.Fatalf("want ErrColumnNotFound, got %v", err)
	}
	if _, err := FillMissing(tb, "experience", "Other"); !errors.Is(err, ErrConversion) {
		t.Fatalf("want ErrConversion, got %v", err)
	}
	n, err := FillMissing(tb, "experience", -1)
	if err != nil || n != 1 {
		t.Fatalf("FillMissing int: n=%d err=%v", n, err)
	}
	c, _ := tb.Column("experience")
	if c.Values[1] != int64(-1) {
		t.Fatalf("filled value=%#v", c.Values[1])
	}
}

func TestRowPool_GetRowZeroes(t *testing.T) {
	r := GetRow(3)
	r.V[0], r.Line = "x", 9
	r.Free()

	r2 := GetRow(2)
	if len(r2.V) != 2 || r2.V[0] != nil || r2.Line != 0 {
		t.Fatalf("pooled row not reset: %+v", r2)
	}
	r2.Drop()
	if r2.V != nil {
		t.Fatalf("Drop should release V")
	}
}
