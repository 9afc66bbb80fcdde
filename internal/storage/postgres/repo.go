// Package postgres is the Postgres backend, built on a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hretl/internal/storage"
	"hretl/internal/table"
)

// Repo implements storage.Repository for Postgres. Table replacement and the
// DDL plan each run in one transaction.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool and pings it.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// ReadTable selects the whole table.
func (r *Repo) ReadTable(ctx context.Context, name string) (*table.Table, error) {
	rows, err := r.pool.Query(ctx, "SELECT * FROM "+pgTableIdent(name))
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	cols := make([]string, len(fields))
	for i, f := range fields {
		cols[i] = f.Name
	}

	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		for i, v := range vals {
			vals[i] = storage.NormalizeDBValue(v, "")
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return table.FromRows(name, cols, out)
}

// ReplaceTable drops, recreates and COPYs t in one transaction.
func (r *Repo) ReplaceTable(ctx context.Context, t *table.Table) (int64, error) {
	create, err := buildCreateTableSQL(t)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+pgTableIdent(t.Name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", t.Name, err)
	}
	if _, err := tx.Exec(ctx, create); err != nil {
		return 0, fmt.Errorf("create table %s: %w", t.Name, err)
	}
	n, err := tx.CopyFrom(ctx, pgIdentifier(t.Name), t.Names(), pgx.CopyFromRows(t.Rows()))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", t.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit %s: %w", t.Name, err)
	}
	return n, nil
}

// ApplyDDL runs every op in one transaction; any failure rolls all of them
// back.
func (r *Repo) ApplyDDL(ctx context.Context, ops []storage.DDLOp) error {
	stmts := make([]string, 0, len(ops))
	for _, op := range ops {
		q, err := buildDDLSQL(op)
		if err != nil {
			return err
		}
		stmts = append(stmts, q)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, q := range stmts {
		if _, err := tx.Exec(ctx, q); err != nil {
			return fmt.Errorf("ddl %s: %w", ops[i], err)
		}
	}
	return tx.Commit(ctx)
}

// pgIdent returns a double-quoted identifier, escaping '"' as '""'.
func pgIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// splitQualifiedName splits "schema.table". Anything else is unqualified.
func splitQualifiedName(name string) (schema string, tbl string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func pgTableIdent(name string) string {
	schema, tbl := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(tbl)
	}
	return pgIdent(schema) + "." + pgIdent(tbl)
}

func pgIdentifier(name string) pgx.Identifier {
	schema, tbl := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{tbl}
	}
	return pgx.Identifier{schema, tbl}
}

func sqlType(dt table.DType) string {
	switch dt {
	case table.Int:
		return "BIGINT"
	case table.Float:
		return "DOUBLE PRECISION"
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
		defs = append(defs, pgIdent(c.Name)+" "+sqlType(c.Type))
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", pgTableIdent(t.Name), strings.Join(defs, ",\n  ")), nil
}

// buildDDLSQL renders one op. Postgres indexes whole TEXT values, so the key
// length of a primary key is not needed.
func buildDDLSQL(op storage.DDLOp) (string, error) {
	if err := op.Validate(); err != nil {
		return "", err
	}
	tbl := pgTableIdent(op.Table)
	col := pgIdent(op.Column)
	switch op.Kind {
	case storage.AddPrimaryKey:
		return fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s)", tbl, col), nil
	case storage.WidenColumn:
		return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE VARCHAR(%d)", tbl, col, op.Length), nil
	default:
		return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			tbl, pgIdent(op.Name), col, pgTableIdent(op.RefTable), pgIdent(op.RefColumn)), nil
	}
}
