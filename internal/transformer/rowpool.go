// Package transformer holds the column-level cleaning operations (type
// conversion, missing-value fill) and the pooled Row used by the streaming
// parsers.
package transformer

import "sync"

// Row is a pooled positional record handed from a parser goroutine to the
// collector that builds a table.
//
// Ownership contract:
//   - Exactly one goroutine owns a Row at a time.
//   - Sending a Row on a channel transfers ownership.
//   - The final consumer calls Free() once it has copied r.V out.
//
// On cancellation use Drop() instead of Free(): a canceled producer may still
// be writing rows, and re-pooling them there would let two goroutines share
// one backing slice.
type Row struct {
	V    []any
	Line int // 1-based record number, if known
}

var rowPool sync.Pool

// GetRow returns a pooled Row whose V has length colCount, all nil.
func GetRow(colCount int) *Row {
	if v := rowPool.Get(); v != nil {
		r := v.(*Row)
		if cap(r.V) < colCount {
			r.V = make([]any, colCount)
		}
		r.V = r.V[:colCount]
		clear(r.V)
		r.Line = 0
		return r
	}
	return &Row{V: make([]any, colCount)}
}

// Free returns the Row to the pool.
func (r *Row) Free() {
	rowPool.Put(r)
}

// Drop discards the Row without returning it to the pool.
func (r *Row) Drop() {
	r.V = nil
	r.Line = 0
}
