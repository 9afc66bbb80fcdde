package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"hretl/internal/table"
)

// Chunk splits rows into batches of at most size rows.
func Chunk(rows [][]any, size int) [][][]any {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][][]any
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}

// RowsPerStatement caps batch so one statement binds at most maxParams
// placeholders for width columns.
func RowsPerStatement(batch, width, maxParams int) int {
	if width <= 0 {
		return batch
	}
	if limit := maxParams / width; limit < batch {
		batch = max(limit, 1)
	}
	return batch
}

// NormalizeDBValue converts a driver value to a table scalar. dbType is the
// driver's column type name, used to parse numbers delivered as bytes.
func NormalizeDBValue(v any, dbType string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []byte:
		return parseTextValue(string(t), dbType)
	case string:
		return parseTextValue(t, dbType)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return v
	}
}

func parseTextValue(s, dbType string) any {
	switch kind := strings.ToUpper(dbType); {
	case strings.Contains(kind, "INT"):
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
	case strings.Contains(kind, "DOUBLE"), strings.Contains(kind, "FLOAT"),
		strings.Contains(kind, "REAL"), strings.Contains(kind, "DECIMAL"), strings.Contains(kind, "NUMERIC"):
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

// ScanSQLRows reads every row of rows into a table named name. rows is
// closed.
func ScanSQLRows(name string, rows *sql.Rows) (*table.Table, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read %s columns: %w", name, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("read %s column types: %w", name, err)
	}

	var out [][]any
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", name, err)
		}
		for i, v := range raw {
			raw[i] = NormalizeDBValue(v, types[i].DatabaseTypeName())
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", name, err)
	}
	return table.FromRows(name, cols, out)
}
