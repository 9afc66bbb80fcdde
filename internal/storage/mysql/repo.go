// Package mysql is the MySQL backend. It is the dialect the star schema DDL
// was written for: TEXT keys are indexed by prefix and DDL auto-commits.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"hretl/internal/storage"
	"hretl/internal/table"
)

// maxParams stays below the server's 65535 placeholder limit.
const maxParams = 60000

// Repo implements storage.Repository for MySQL.
type Repo struct {
	db    *sql.DB
	batch int
}

func init() {
	storage.Register("mysql", New)
}

// New opens and pings a MySQL connection pool.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, batch: cfg.Batch()}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// ReadTable selects the whole table.
func (r *Repo) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+myTableIdent(name))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return storage.ScanSQLRows(name, rows)
}

// ReplaceTable drops and recreates t.Name, then inserts in batches. MySQL
// commits DDL implicitly, so only the inserts share a transaction.
func (r *Repo) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	if _, err := r.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+myTableIdent(t.Name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", t.Name, err)
	}
	create, err := buildCreateTableSQL(t)
	if err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, create); err != nil {
		return 0, fmt.Errorf("create table %s: %w", t.Name, err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var n int64
	per := storage.RowsPerStatement(r.batch, t.Width(), maxParams)
	for _, part := range storage.Chunk(t.Rows(), per) {
		q, args := buildInsertSQL(t.Name, t.Names(), part)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return n, fmt.Errorf("insert into %s: %w", t.Name, err)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", t.Name, err)
	}
	return n, nil
}

// ApplyDDL runs ops one statement at a time and stops at the first failure.
// Statements that already ran stay applied.
func (r *Repo) ApplyDDL(ctx context.Context, ops []storage.DDLOp) error {
	for _, op := range ops {
		q, err := buildDDLSQL(op)
		if err != nil {
			return err
		}
		if _, err := r.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ddl %s: %w", op, err)
		}
	}
	return nil
}

// myIdent returns a backtick-quoted identifier, escaping '`' as '``'.
func myIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// myTableIdent quotes a possibly database-qualified name: "db.t" -> `db`.`t`.
func myTableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = myIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

// sqlType maps a column type the way a dataframe writer does: text stays
// unbounded TEXT until a key needs it narrower.
func sqlType(dt table.DType) string {
	switch dt {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "DOUBLE"
	case table.Bool:
		return "BOOLEAN"
	default:
		return "TEXT"
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
		defs = append(defs, myIdent(c.Name)+" "+sqlType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", myTableIdent(t.Name), strings.Join(defs, ",\n  ")), nil
}

// buildInsertSQL builds one multi-row INSERT with '?' placeholders.
func buildInsertSQL(name string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myTableIdent(name))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(myIdent(c))
	}
	b.WriteString(") VALUES ")

	one := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(one)
		args = append(args, row[:len(columns)]...)
	}
	return b.String(), args
}

// buildDDLSQL renders one op:
//
//	ALTER TABLE `enrollee` ADD PRIMARY KEY (`enrollee_id`)
//	ALTER TABLE `city_development_index` ADD PRIMARY KEY (`City`(255))
//	ALTER TABLE `enrollee` MODIFY `city` VARCHAR(255)
//	ALTER TABLE `work_experience` ADD CONSTRAINT `fk_enrollee_work`
//	  FOREIGN KEY (`enrollee_id`) REFERENCES `enrollee`(`enrollee_id`)
func buildDDLSQL(op storage.DDLOp) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}
	tbl := myTableIdent(op.Table)
	col := myIdent(op.Column)
	switch op.Kind {
	case storage.AddPrimaryKey:
		if op.KeyLength > 0 {
			return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s(%d))", tbl, col, op.KeyLength), nil
		}
		return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", tbl, col), nil
	case storage.WidenColumn:
		return fmt.Sprintf("ALTER TABLE %s MODIFY %s VARCHAR(%d)", tbl, col, op.Length), nil
	default:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s(%s)",
			tbl, myIdent(op.Name), col, myTableIdent(op.RefTable), myIdent(op.RefColumn)), nil
	}
}
