package storage

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"hretl/internal/table"
)

type fakeRepo struct{ closed int }

func (f *fakeRepo) Close() { f.closed++ }

func (f *fakeRepo) ReadTable(context.Context, string) (*table.Table, error) {
	return nil, nil
}

func (f *fakeRepo) ReplaceTable(context.Context, *table.Table) (int64, error) {
	return 0, nil
}

func (f *fakeRepo) ApplyDDL(context.Context, []DDLOp) error { return nil }

func TestRegisterAndNew(t *testing.T) {
	var got Config
	Register("fake-registry-test", func(_ context.Context, cfg Config) (Repository, error) {
		got = cfg
		return &fakeRepo{}, nil
	})

	repo, err := New(context.Background(), Config{Kind: "fake-registry-test", DSN: "x"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	repo.Close()
	if got.DSN != "x" {
		t.Fatalf("factory cfg=%+v", got)
	}

	found := false
	for _, k := range Kinds() {
		if k == "fake-registry-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Kinds()=%v", Kinds())
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for empty kind")
	}
	_, err := New(context.Background(), Config{Kind: "nope"})
	if err == nil || !strings.Contains(err.Error(), "unsupported storage kind=nope") {
		t.Fatalf("err=%v", err)
	}
}

func TestRegister_Panics(t *testing.T) {
	f := func(context.Context, Config) (Repository, error) { return nil, nil }
	Register("dup-registry-test", f)

	cases := map[string]func(){
		"empty_kind":  func() { Register("", f) },
		"nil_factory": func() { Register("x-registry-test", nil) },
		"duplicate":   func() { Register("dup-registry-test", f) },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			fn()
		})
	}
}

func TestConfigBatch(t *testing.T) {
	t.Parallel()

	if (Config{}).Batch() != DefaultBatchSize || (Config{BatchSize: 7}).Batch() != 7 {
		t.Fatalf("Batch defaults wrong")
	}
}

func TestDDLOp_StringAndValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		op      DDLOp
		str     string
		wantErr bool
	}{
		{op: PrimaryKey("enrollee", "enrollee_id", 0), str: "add_primary_key enrollee(enrollee_id)"},
		{op: PrimaryKey("city_development_index", "City", 255), str: "add_primary_key city_development_index(City) key_length=255"},
		{op: Widen("enrollee", "city", 255), str: "widen_column enrollee(city) varchar(255)"},
		{op: ForeignKey("fk_city", "enrollee", "city", "city_development_index", "City"),
			str: "add_foreign_key enrollee(city) -> city_development_index(City) name=fk_city"},
		{op: Widen("enrollee", "city", 0), str: "widen_column enrollee(city) varchar(0)", wantErr: true},
		{op: ForeignKey("", "a", "b", "c", "d"), str: "add_foreign_key a(b) -> c(d) name=", wantErr: true},
		{op: DDLOp{Kind: AddPrimaryKey, Table: "t"}, str: "add_primary_key t()", wantErr: true},
		{op: DDLOp{Kind: 9, Table: "t", Column: "c"}, str: "ddl_kind(9) t(c)", wantErr: true},
	}
	for _, tc := range tests {
		if got := tc.op.String(); got != tc.str {
			t.Fatalf("String()=%q, want %q", got, tc.str)
		}
		if err := tc.op.Validate(); (err != nil) != tc.wantErr {
			t.Fatalf("%s Validate() err=%v, wantErr=%v", tc.str, err, tc.wantErr)
		}
	}
}

func TestChunkAndRowsPerStatement(t *testing.T) {
	t.Parallel()

	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	chunks := Chunk(rows, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("Chunk=%v", chunks)
	}
	if len(Chunk(nil, 2)) != 0 {
		t.Fatalf("Chunk(nil) should be empty")
	}
	if got := RowsPerStatement(500, 10, 2100); got != 210 {
		t.Fatalf("RowsPerStatement=%d, want 210", got)
	}
	if got := RowsPerStatement(500, 5000, 2100); got != 1 {
		t.Fatalf("RowsPerStatement=%d, want 1", got)
	}
	if got := RowsPerStatement(50, 2, 2100); got != 50 {
		t.Fatalf("RowsPerStatement=%d, want 50", got)
	}
}

func TestNormalizeDBValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     any
		dbType string
		want   any
	}{
		{nil, "TEXT", nil},
		{[]byte("42"), "BIGINT", int64(42)},
		{[]byte("0.5"), "DOUBLE", 0.5},
		{[]byte("city_103"), "VARCHAR", "city_103"},
		{[]byte("x"), "INT", "x"},
		{"1.25", "DECIMAL", 1.25},
		{int32(7), "INT", int64(7)},
		{float32(0.5), "FLOAT", 0.5},
		{true, "BOOLEAN", true},
	}
	for _, tc := range tests {
		if got := NormalizeDBValue(tc.in, tc.dbType); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("NormalizeDBValue(%#v,%q)=%#v, want %#v", tc.in, tc.dbType, got, tc.want)
		}
	}
}
