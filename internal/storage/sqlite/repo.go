// Package sqlite is the SQLite backend (modernc.org/sqlite, no cgo).
//
// SQLite cannot add constraints to an existing table, so ApplyDDL rebuilds
// each affected table with its new key declarations, copies the rows across
// and checks referential integrity before committing.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"hretl/internal/storage"
	"hretl/internal/table"
)

// maxParams stays below SQLITE_MAX_VARIABLE_NUMBER (32766).
const maxParams = 32000

// Repo implements storage.Repository for SQLite.
type Repo struct {
	db    *sql.DB
	batch int
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database file named by cfg.DSN and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
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
	rows, err := r.db.QueryContext(ctx, "SELECT * FROM "+sqlIdent(name))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	return storage.ScanSQLRows(name, rows)
}

// ReplaceTable drops, recreates and fills t in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	if strings.TrimSpace(t.Name) == "" {
		return 0, fmt.Errorf("table name is empty")
	}
	if t.Width() == 0 {
		return 0, fmt.Errorf("table %s has no columns", t.Name)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(t.Name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", t.Name, err)
	}
	if _, err := tx.ExecContext(ctx, buildCreateTableSQL(schemaOf(t), t.Name)); err != nil {
		return 0, fmt.Errorf("create table %s: %w", t.Name, err)
	}

	var n int64
	per := storage.RowsPerStatement(r.batch, t.Width(), maxParams)
	for _, part := range storage.Chunk(t.Rows(), per) {
		q, args := buildInsertSQL(t.Name, t.Names(), part)
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

// ApplyDDL folds ops into the target schema of every table they touch, then
// rebuilds those tables in one transaction with foreign key enforcement off
// and runs PRAGMA foreign_key_check before committing. Any failure leaves
// every table as it was.
func (r *Repo) ApplyDDL(ctx context.Context, ops []storage.DDLOp) error {
	for _, op := range ops {
		if err := op.Validate(); err != nil {
			return err
		}
	}

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	var fkOn int
	if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fkOn); err != nil {
		return fmt.Errorf("read foreign_keys pragma: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return err
	}
	defer conn.ExecContext(context.WithoutCancel(ctx), fmt.Sprintf("PRAGMA foreign_keys = %d", fkOn))

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	order, byTable, err := planRebuilds(ops, func(name string) (tableSchema, error) {
		return readSchema(ctx, tx, name)
	})
	if err != nil {
		return err
	}

	for _, name := range order {
		s := byTable[name]
		for _, q := range buildRebuildSQL(s) {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				return fmt.Errorf("ddl rebuild %s: %w", name, err)
			}
		}
	}

	if err := foreignKeyCheck(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// planRebuilds applies ops to the current schemas and returns the touched
// tables in first-touched order.
func planRebuilds(ops []storage.DDLOp, current func(string) (tableSchema, error)) ([]string, map[string]*tableSchema, error) {
	var order []string
	byTable := map[string]*tableSchema{}

	for _, op := range ops {
		s, ok := byTable[op.Table]
		if !ok {
			cur, err := current(op.Table)
			if err != nil {
				return nil, nil, fmt.Errorf("ddl %s: %w", op, err)
			}
			s = &cur
			byTable[op.Table] = s
			order = append(order, op.Table)
		}
		col := s.column(op.Column)
		if col == nil {
			return nil, nil, fmt.Errorf("ddl %s: column %q not found", op, op.Column)
		}
		switch op.Kind {
		case storage.AddPrimaryKey:
			s.PK = []string{op.Column}
			col.NotNull = true
		case storage.WidenColumn:
			col.Type = fmt.Sprintf("VARCHAR(%d)", op.Length)
		case storage.AddForeignKey:
			s.addFK(foreignKey{Name: op.Name, Column: op.Column, RefTable: op.RefTable, RefColumn: op.RefColumn})
		}
	}
	return order, byTable, nil
}

type columnDef struct {
	Name    string
	Type    string
	NotNull bool
}

type foreignKey struct {
	Name      string
	Column    string
	RefTable  string
	RefColumn string
}

type tableSchema struct {
	Name    string
	Columns []columnDef
	PK      []string
	FKs     []foreignKey
}

func (s *tableSchema) column(name string) *columnDef {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i]
		}
	}
	return nil
}

func (s *tableSchema) addFK(fk foreignKey) {
	for i, cur := range s.FKs {
		if (fk.Name != "" && cur.Name == fk.Name) || (cur.Column == fk.Column && cur.RefTable == fk.RefTable) {
			s.FKs[i] = fk
			return
		}
	}
	s.FKs = append(s.FKs, fk)
}

func schemaOf(t *table.Table) tableSchema {
	s := tableSchema{Name: t.Name}
	for _, c := range t.Columns {
		s.Columns = append(s.Columns, columnDef{Name: c.Name, Type: sqlType(c.Type)})
	}
	return s
}

func sqlType(dt table.DType) string {
	switch dt {
	case table.Int:
		return "INTEGER"
	case table.Float:
		return "REAL"
	case table.Bool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

// readSchema reads columns, primary key and foreign keys of an existing
// table. Foreign key names are not recoverable from SQLite and come back
// empty.
func readSchema(ctx context.Context, tx *sql.Tx, name string) (tableSchema, error) {
	s := tableSchema{Name: name}

	rows, err := tx.QueryContext(ctx, "SELECT name, type, \"notnull\", pk FROM pragma_table_info(?) ORDER BY cid", name)
	if err != nil {
		return s, fmt.Errorf("table_info %s: %w", name, err)
	}
	type pkCol struct {
		name string
		pos  int
	}
	var pks []pkCol
	for rows.Next() {
		var c columnDef
		var notNull, pk int
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &pk); err != nil {
			rows.Close()
			return s, err
		}
		c.NotNull = notNull != 0
		s.Columns = append(s.Columns, c)
		if pk > 0 {
			pks = append(pks, pkCol{c.Name, pk})
		}
	}
	if err := rows.Close(); err != nil {
		return s, err
	}
	if len(s.Columns) == 0 {
		return s, fmt.Errorf("table %s not found", name)
	}
	s.PK = make([]string, len(pks))
	for _, p := range pks {
		s.PK[p.pos-1] = p.name
	}

	fkRows, err := tx.QueryContext(ctx, `SELECT "from", "table", "to" FROM pragma_foreign_key_list(?) ORDER BY id, seq`, name)
	if err != nil {
		return s, fmt.Errorf("foreign_key_list %s: %w", name, err)
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var fk foreignKey
		var to sql.NullString
		if err := fkRows.Scan(&fk.Column, &fk.RefTable, &to); err != nil {
			return s, err
		}
		fk.RefColumn = to.String
		s.FKs = append(s.FKs, fk)
	}
	return s, fkRows.Err()
}

func foreignKeyCheck(ctx context.Context, tx *sql.Tx) error {
	rows, err := tx.QueryContext(ctx, "PRAGMA foreign_key_check")
	if err != nil {
		return fmt.Errorf("foreign_key_check: %w", err)
	}
	defer rows.Close()

	var violations []string
	for rows.Next() {
		var child, parent string
		var rowid sql.NullInt64
		var fkid int64
		if err := rows.Scan(&child, &rowid, &parent, &fkid); err != nil {
			return err
		}
		if len(violations) < 5 {
			violations = append(violations, fmt.Sprintf("%s rowid=%d -> %s", child, rowid.Int64, parent))
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(violations) > 0 {
		return fmt.Errorf("foreign key violations: %s", strings.Join(violations, "; "))
	}
	return nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func buildCreateTableSQL(s tableSchema, name string) string {
	var parts []string
	for _, c := range s.Columns {
		def := sqlIdent(c.Name)
		if c.Type != "" {
			def += " " + c.Type
		}
		if c.NotNull {
			def += " NOT NULL"
		}
		parts = append(parts, def)
	}
	if len(s.PK) > 0 {
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", joinIdentList(s.PK)))
	}
	for _, fk := range s.FKs {
		def := ""
		if fk.Name != "" {
			def = "CONSTRAINT " + sqlIdent(fk.Name) + " "
		}
		def += fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s", sqlIdent(fk.Column), sqlIdent(fk.RefTable))
		if fk.RefColumn != "" {
			def += fmt.Sprintf(" (%s)", sqlIdent(fk.RefColumn))
		}
		parts = append(parts, def)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", sqlIdent(name), strings.Join(parts, ",\n  "))
}

// buildRebuildSQL returns the statements that replace s.Name with a table
// declared as s, keeping its rows.
func buildRebuildSQL(s *tableSchema) []string {
	tmp := s.Name + "__rebuild"
	cols := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		cols[i] = c.Name
	}
	list := joinIdentList(cols)
	return []string{
		"DROP TABLE IF EXISTS " + sqlIdent(tmp),
		buildCreateTableSQL(*s, tmp),
		fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s", sqlIdent(tmp), list, list, sqlIdent(s.Name)),
		"DROP TABLE " + sqlIdent(s.Name),
		fmt.Sprintf("ALTER TABLE %s RENAME TO %s", sqlIdent(tmp), sqlIdent(s.Name)),
	}
}

func buildInsertSQL(name string, columns []string, rows [][]any) (string, []any) {
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(name))
	b.WriteString(" (")
	b.WriteString(joinIdentList(columns))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	return b.String(), args
}

func joinIdentList(columns []string) string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = sqlIdent(c)
	}
	return strings.Join(out, ", ")
}
