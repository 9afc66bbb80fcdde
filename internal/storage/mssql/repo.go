// Package mssql is the Microsoft SQL Server backend.
//
// The package does not import a driver. The application registers
// "sqlserver" with database/sql (see storage/all).
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hretl/internal/storage"
	"hretl/internal/table"
)

// maxParams stays below SQL Server's 2100 parameter limit.
const maxParams = 2000

// defaultKeyLength bounds NVARCHAR key columns to the 900-byte index limit.
const defaultKeyLength = 450

// Repo implements storage.Repository for SQL Server. Replacement and the DDL
// plan each run in one transaction.
type Repo struct {
	db    *sql.DB
	batch int
}

func init() {
	storage.Register("mssql", New)
}

// New opens the "sqlserver" driver and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, batch: cfg.Batch()}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// ReadTable selects the whole table.
func (r *Repo) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+mssqlTableIdent(name))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return storage.ScanSQLRows(name, rows)
}

// ReplaceTable drops, recreates and fills t in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	create, err := buildCreateTableSQL(t)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+mssqlTableIdent(t.Name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create table %s: %w", t.Name, err)
	}

	var n int64
	per := storage.RowsPerStatement(r.batch, t.Width(), maxParams)
	for _, part := range storage.Chunk(t.Rows(), per) {
		q, args := buildBulkInsertSQL(t.Name, t.Names(), part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", t.Name, err)
	}
	return n, nil
}

// ApplyDDL runs the plan in one transaction. Key columns are made NOT NULL
// (and bounded, for NVARCHAR(MAX)) before the key is declared.
func (r *Repo) ApplyDDL(ctx context.Context, ops []storage.DDLOp) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
		var col columnInfo
		if op.Kind != storage.AddForeignKey {
			col, err = lookupColumn(ctx, tx, op.Table, op.Column)
			if err != nil {
				return fmt.Errorf("ddl %s: %w", op, err)
			}
		}
		for _, q := range buildDDLStatements(op, col) {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("ddl %s: %w", op, err)
			}
		}
	}
	return tx.Commit()
}

// columnInfo is a column's INFORMATION_SCHEMA row. MaxLength is -1 for MAX.
type columnInfo struct {
	DataType  string
	MaxLength int
	Nullable  bool
}

func (c columnInfo) isText() bool {
	switch strings.ToLower(c.DataType) {
	case "nvarchar", "varchar", "nchar", "char", "ntext", "text":
		return true
	}
	return false
}

// typeSQL renders the column type, replacing the length for text types when
// length > 0.
func (c columnInfo) typeSQL(length int) string {
	dt := strings.ToUpper(c.DataType)
	if !c.isText() {
		return dt
	}
	if dt == "NTEXT" || dt == "TEXT" {
		dt = "NVARCHAR"
	}
	if length <= 0 {
		length = c.MaxLength
	}
	if length <= 0 {
		return dt + "(MAX)"
	}
	return fmt.Sprintf("%s(%d)", dt, length)
}

func lookupColumn(ctx context.Context, tx *sql.Tx, tbl, col string) (columnInfo, error) {
	schema, name := splitQualifiedName(tbl)
	q := `SELECT DATA_TYPE, COALESCE(CHARACTER_MAXIMUM_LENGTH, 0), IS_NULLABLE
FROM INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_NAME = @p1 AND COLUMN_NAME = @p2 AND (@p3 = '' OR TABLE_SCHEMA = @p3)`

	var info columnInfo
	var nullable string
	err := tx.QueryRowContext(ctx, q, name, col, schema).Scan(&info.DataType, &info.MaxLength, &nullable)
	if errors.Is(err, sql.ErrNoRows) {
		return columnInfo{}, fmt.Errorf("column %s.%s not found", tbl, col)
	}
	if err != nil {
		return columnInfo{}, err
	}
	info.Nullable = strings.EqualFold(nullable, "YES")
	return info, nil
}

// buildDDLStatements renders op for a column currently described by col.
//
//	PK:    ALTER COLUMN c <type> NOT NULL; ADD CONSTRAINT [pk_t] PRIMARY KEY (c)
//	widen: ALTER COLUMN c NVARCHAR(n) [NOT NULL], skipped when already NVARCHAR(n)
//	FK:    ADD CONSTRAINT [fk] FOREIGN KEY (c) REFERENCES r (rc)
func buildDDLStatements(op storage.DDLOp, col columnInfo) []string {
	tbl := mssqlTableIdent(op.Table)
	c := mssqlIdent(op.Column)
	switch op.Kind {
	case storage.AddPrimaryKey:
		length := 0
		if col.isText() && (col.MaxLength <= 0 || col.MaxLength > defaultKeyLength) {
			length = op.KeyLength
			if length <= 0 || length > defaultKeyLength {
				length = defaultKeyLength
			}
		}
		_, bare := splitQualifiedName(op.Table)
		return []string{
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s %s NOT NULL", tbl, c, col.typeSQL(length)),
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s PRIMARY KEY (%s)", tbl, mssqlIdent("pk_"+bare), c),
		}
	case storage.WidenColumn:
		if col.isText() && col.MaxLength == op.Length && strings.EqualFold(col.DataType, "nvarchar") {
			return nil
		}
		q := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s NVARCHAR(%d)", tbl, c, op.Length)
		if !col.Nullable {
			q += " NOT NULL"
		}
		return []string{q}
	default:
		return []string{fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			tbl, mssqlIdent(op.Name), c, mssqlTableIdent(op.RefTable), mssqlIdent(op.RefColumn))}
	}
}

func sqlType(dt table.DType) string {
	switch dt {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "FLOAT"
	case table.Bool:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

func buildCreateTableSQL(t *table.Table) (string, error) {
	if strings.TrimSpace(t.Name) == "" {
		return "", fmt.Errorf("table name is empty")
	}
	if t.Width() == 0 {
		return "", fmt.Errorf("table %s has no columns", t.Name)
	}
	defs := make([]string, 0, t.Width())
	for _, c := range t.Columns {
		defs = append(defs, mssqlIdent(c.Name)+" "+sqlType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", mssqlTableIdent(t.Name), strings.Join(defs, ",\n  ")), nil
}

// buildBulkInsertSQL builds a single INSERT ... VALUES statement for all rows.
func buildBulkInsertSQL(tbl string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(mssqlTableIdent(tbl))
	b.WriteString(" (")

	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	return b.String(), args
}

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTableIdent returns a bracket-quoted identifier for schema-qualified names.
//
// Example:
//
//	"dbo.enrollee" -> [dbo].[enrollee]
func mssqlTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = mssqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func splitQualifiedName(name string) (schema, tbl string) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.TrimSpace(name[:i]), strings.TrimSpace(name[i+1:])
	}
	return "", strings.TrimSpace(name)
}
