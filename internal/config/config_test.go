package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
job: hr
sources:
  enrollee:
    kind: file
    location: https://docs.google.com/spreadsheets/d/abc/export?format=xlsx
    format: excel
  training_hours:
    kind: sql
    table: training_hours
  city_development_index:
    kind: html
    location: https://example.test/city/index.html
source_db:
  kind: mysql
  host: ${HRETL_TEST_DB_HOST}
  port: 3306
  user: etl
  password: ${HRETL_TEST_DB_PASSWORD}
  name: company_course
sink:
  kind: sqlite
  name: out
runtime:
  http_timeout: 5s
metrics:
  backend: none
`

func TestParse_YAMLExpandsEnvAndAppliesDefaults(t *testing.T) {
	t.Setenv("HRETL_TEST_DB_HOST", "db.internal")
	t.Setenv("HRETL_TEST_DB_PASSWORD", "s3cret")

	c, err := Parse([]byte(sampleYAML), "yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.SourceDB.Host != "db.internal" || c.SourceDB.Password != "s3cret" {
		t.Fatalf("env not expanded: %+v", c.SourceDB)
	}
	if c.Runtime.HTTPTimeout.D() != 5*time.Second {
		t.Fatalf("http_timeout=%s, want 5s", c.Runtime.HTTPTimeout.D())
	}
	if c.Runtime.InsertBatchSize != DefaultInsertBatchSize {
		t.Fatalf("insert_batch_size default not applied: %d", c.Runtime.InsertBatchSize)
	}
	if c.Analysis.Target != "employed" || c.Analysis.Seed != 42 || c.Analysis.TestSize != 0.2 {
		t.Fatalf("analysis defaults not applied: %+v", c.Analysis)
	}
	if got := c.Sources["training_hours"].Table; got != "training_hours" {
		t.Fatalf("sql table=%q", got)
	}
}

func TestParse_JSONRejectsUnknownSourceKind(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"sources":{"x":{"kind":"ftp","location":"a"}}}`), "json")
	if err == nil || !strings.Contains(err.Error(), "oneof") {
		t.Fatalf("expected oneof validation error, got %v", err)
	}
}

func TestParse_SQLSourceNeedsHost(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"sources":{"employment":{"kind":"sql","table":"employment"}}}`), "json")
	if err == nil || !strings.Contains(err.Error(), "source_db") {
		t.Fatalf("expected source_db error, got %v", err)
	}
}

func TestParse_FileSourceNeedsLocation(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte(`{"sources":{"work_experience":{"kind":"file"}}}`), "json")
	if err == nil {
		t.Fatalf("expected validation error for missing location")
	}
}

func TestLoad_ReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	if err := os.WriteFile(env, []byte("HRETL_TEST_SHEET=sheet-123\n"), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("HRETL_TEST_SHEET") })

	cfgPath := filepath.Join(dir, "pipeline.json")
	body := `{
		"sources": {"enrollee": {"kind": "gsheet", "spreadsheet_id": "${HRETL_TEST_SHEET}"}},
		"google": {"api_key": "k"}
	}`
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	c, err := Load(cfgPath, env, filepath.Join(dir, "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.Sources["enrollee"].SpreadsheetID; got != "sheet-123" {
		t.Fatalf("spreadsheet_id=%q, want sheet-123", got)
	}
}

func TestDSNFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		db   DBConfig
		want string
	}{
		{
			name: "explicit dsn wins",
			db:   DBConfig{Kind: "mysql", DSN: "raw-dsn"},
			want: "raw-dsn",
		},
		{
			name: "mysql",
			db:   DBConfig{Kind: "mysql", Host: "h", Port: 3360, User: "u", Password: "p", Name: "company_course"},
			want: "u:p@tcp(h:3360)/company_course?parseTime=true",
		},
		{
			name: "postgres",
			db:   DBConfig{Kind: "postgres", Host: "h", User: "u", Password: "p", Name: "hr"},
			want: "postgresql://u:p@h:5432/hr?sslmode=disable",
		},
		{
			name: "mssql",
			db:   DBConfig{Kind: "mssql", Host: "h", User: "u", Password: "p", Name: "hr"},
			want: "sqlserver://u:p@h:1433?database=hr&encrypt=disable",
		},
		{
			name: "sqlite path",
			db:   DBConfig{Kind: "sqlite", Name: "out"},
			want: "file:out.db?_pragma=foreign_keys(1)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.db.DSNFor("")
			if err != nil {
				t.Fatalf("DSNFor: %v", err)
			}
			if got != tt.want {
				t.Fatalf("DSNFor()=%q, want %q", got, tt.want)
			}
		})
	}

	if _, err := (DBConfig{}).DSNFor("x"); err == nil {
		t.Fatalf("expected error for empty kind")
	}
}

func TestOptions_Getters(t *testing.T) {
	t.Parallel()

	o := Options{
		"comma":      ";",
		"tab":        `\t`,
		"has_header": false,
		"n":          float64(3),
		"header_map": map[string]any{"City": "city", "bad": 1},
		"cols":       []any{"a", "b"},
		"timeout":    "2s",
	}
	if o.Rune("comma", ',') != ';' || o.Rune("tab", ',') != '\t' || o.Rune("none", ',') != ',' {
		t.Fatalf("Rune getter")
	}
	if o.Bool("has_header", true) {
		t.Fatalf("Bool getter")
	}
	if o.Int("n", 0) != 3 {
		t.Fatalf("Int getter")
	}
	if m := o.StringMap("header_map"); len(m) != 1 || m["City"] != "city" {
		t.Fatalf("StringMap getter: %v", m)
	}
	if s := o.Strings("cols"); len(s) != 2 {
		t.Fatalf("Strings getter: %v", s)
	}
	if o.Duration("timeout", 0) != 2*time.Second {
		t.Fatalf("Duration getter")
	}
}
