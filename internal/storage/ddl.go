package storage

import (
	"fmt"
	"strings"
)

// DDLKind enumerates the schema changes a publish plan can contain.
type DDLKind int

const (
	// AddPrimaryKey declares Column as the table's primary key.
	AddPrimaryKey DDLKind = iota + 1
	// WidenColumn changes a text column to VARCHAR(Length).
	WidenColumn
	// AddForeignKey declares Table(Column) -> RefTable(RefColumn) as Name.
	AddForeignKey
)

func (k DDLKind) String() string {
	switch k {
	case AddPrimaryKey:
		return "add_primary_key"
	case WidenColumn:
		return "widen_column"
	case AddForeignKey:
		return "add_foreign_key"
	default:
		return fmt.Sprintf("ddl_kind(%d)", int(k))
	}
}

// DDLOp is one schema change.
//
// KeyLength applies to AddPrimaryKey on a text column in dialects that index
// a prefix (MySQL TEXT keys); other backends ignore it or use it as the
// column width.
type DDLOp struct {
	Kind      DDLKind
	Name      string
	Table     string
	Column    string
	KeyLength int
	Length    int
	RefTable  string
	RefColumn string
}

// PrimaryKey returns an AddPrimaryKey op.
func PrimaryKey(table, column string, keyLength int) DDLOp {
	return DDLOp{Kind: AddPrimaryKey, Table: table, Column: column, KeyLength: keyLength}
}

// Widen returns a WidenColumn op.
func Widen(table, column string, length int) DDLOp {
	return DDLOp{Kind: WidenColumn, Table: table, Column: column, Length: length}
}

// ForeignKey returns an AddForeignKey op.
func ForeignKey(name, table, column, refTable, refColumn string) DDLOp {
	return DDLOp{Kind: AddForeignKey, Name: name, Table: table, Column: column, RefTable: refTable, RefColumn: refColumn}
}

func (op DDLOp) String() string {
	var b strings.Builder
	b.WriteString(op.Kind.String())
	b.WriteString(" ")
	b.WriteString(op.Table)
	b.WriteString("(")
	b.WriteString(op.Column)
	b.WriteString(")")
	switch op.Kind {
	case AddPrimaryKey:
		if op.KeyLength > 0 {
			fmt.Fprintf(&b, " key_length=%d", op.KeyLength)
		}
	case WidenColumn:
		fmt.Fprintf(&b, " varchar(%d)", op.Length)
	case AddForeignKey:
		fmt.Fprintf(&b, " -> %s(%s) name=%s", op.RefTable, op.RefColumn, op.Name)
	}
	return b.String()
}

// Validate checks the fields op.Kind needs.
func (op DDLOp) Validate() error {
	if strings.TrimSpace(op.Table) == "" || strings.TrimSpace(op.Column) == "" {
		return fmt.Errorf("ddl %s: table and column are required", op.Kind)
	}
	switch op.Kind {
	case AddPrimaryKey:
		if op.KeyLength < 0 {
			return fmt.Errorf("ddl %s: negative key length", op)
		}
	case WidenColumn:
		if op.Length <= 0 {
			return fmt.Errorf("ddl %s: length must be positive", op)
		}
	case AddForeignKey:
		if op.Name == "" || op.RefTable == "" || op.RefColumn == "" {
			return fmt.Errorf("ddl %s: name and reference are required", op)
		}
	default:
		return fmt.Errorf("ddl: unknown kind %d", int(op.Kind))
	}
	return nil
}
