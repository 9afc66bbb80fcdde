// Package json reads JSON documents into tables.
package json

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"hretl/internal/config"
	"hretl/internal/table"
)

// Record is one decoded JSON object with its keys in document order.
type Record struct {
	Line int
	Keys []string
	Obj  map[string]any
}

// StreamRecords decodes r and calls emit once per record object.
//
// Accepted shapes:
//   - a root array of objects (null elements are skipped)
//   - a root object whose first array field holds the objects (envelope);
//     the remaining fields are skipped
//   - a single root object with no array fields, emitted as one record
//   - any of the above followed by JSONL objects
//
// Numbers are json.Number. Keys are renamed through the header_map option
// before emit sees them.
func StreamRecords(
	ctx context.Context,
	r io.Reader,
	opts config.Options,
	emit func(Record) error,
	onParseErr func(line int, err error),
) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	w := &walker{
		ctx:        ctx,
		dec:        dec,
		headerMap:  opts.StringMap("header_map"),
		emit:       emit,
		onParseErr: onParseErr,
	}

	tok, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		w.parseErr(0, err)
		return fmt.Errorf("json: read first token: %w", err)
	}

	switch d := tok.(type) {
	case json.Delim:
		switch d {
		case '[':
			if err := w.streamArray(); err != nil {
				return err
			}
			if err := w.expect(']', "array end"); err != nil {
				return err
			}
		case '{':
			streamed, single, err := w.streamEnvelopeOrSingle()
			if err != nil {
				return err
			}
			if err := w.expect('}', "object end"); err != nil {
				return err
			}
			if !streamed && single != nil {
				if err := w.send(*single); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("json: unsupported root delimiter %q", d)
		}
	default:
		return fmt.Errorf("json: unsupported root token %T (want object or array)", tok)
	}
	return w.streamTrailing()
}

type walker struct {
	ctx        context.Context
	dec        *json.Decoder
	headerMap  map[string]string
	emit       func(Record) error
	onParseErr func(line int, err error)
	line       int
}

func (w *walker) parseErr(line int, err error) {
	if w.onParseErr != nil {
		w.onParseErr(line, err)
	}
}

func (w *walker) send(rec Record) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	w.line++
	rec.Line = w.line
	return w.emit(rec)
}

func (w *walker) expect(want json.Delim, what string) error {
	tok, err := w.dec.Token()
	if err != nil {
		return fmt.Errorf("json: read %s: %w", what, err)
	}
	if tok != want {
		return fmt.Errorf("json: expected %q, got %v", want, tok)
	}
	return nil
}

// streamArray emits the elements of the current array ('[' consumed).
func (w *walker) streamArray() error {
	for w.dec.More() {
		tok, err := w.dec.Token()
		if err != nil {
			w.parseErr(w.line+1, err)
			return fmt.Errorf("json: decode array element: %w", err)
		}
		if tok == nil {
			continue
		}
		if tok != json.Delim('{') {
			err := fmt.Errorf("json: array element not an object (got %v)", tok)
			w.parseErr(w.line+1, err)
			return err
		}
		rec, err := w.readObject()
		if err != nil {
			w.parseErr(w.line+1, err)
			return err
		}
		if err := w.send(rec); err != nil {
			return err
		}
	}
	return nil
}

// streamEnvelopeOrSingle walks a root object ('{' consumed). The first array
// field is streamed as records; without one the object itself is returned.
func (w *walker) streamEnvelopeOrSingle() (streamed bool, single *Record, _ error) {
	rec := Record{Obj: make(map[string]any)}
	for w.dec.More() {
		key, err := w.readKey()
		if err != nil {
			return false, nil, err
		}
		valTok, err := w.dec.Token()
		if err != nil {
			w.parseErr(w.line+1, err)
			return false, nil, fmt.Errorf("json: read object value token: %w", err)
		}
		if valTok == json.Delim('[') {
			if err := w.streamArray(); err != nil {
				return false, nil, err
			}
			if err := w.expect(']', "envelope array end"); err != nil {
				return false, nil, err
			}
			for w.dec.More() {
				if _, err := w.dec.Token(); err != nil {
					return true, nil, fmt.Errorf("json: skip envelope key: %w", err)
				}
				if err := skipNextValue(w.dec); err != nil {
					return true, nil, err
				}
			}
			return true, nil, nil
		}
		val, err := materializeValueFromFirstToken(w.dec, valTok)
		if err != nil {
			w.parseErr(w.line+1, err)
			return false, nil, err
		}
		w.put(&rec, key, val)
	}
	return false, &rec, nil
}

func (w *walker) streamTrailing() error {
	for {
		tok, err := w.dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err == nil && tok != json.Delim('{') {
			err = fmt.Errorf("unexpected token %v", tok)
		}
		var rec Record
		if err == nil {
			rec, err = w.readObject()
		}
		if err != nil {
			w.parseErr(w.line+1, err)
			return fmt.Errorf("json: decode trailing object: %w", err)
		}
		if err := w.send(rec); err != nil {
			return err
		}
	}
}

// readObject reads the members of an object whose '{' was consumed,
// keeping key order, and consumes the closing '}'.
func (w *walker) readObject() (Record, error) {
	rec := Record{Obj: make(map[string]any)}
	for w.dec.More() {
		key, err := w.readKey()
		if err != nil {
			return Record{}, err
		}
		vt, err := w.dec.Token()
		if err != nil {
			return Record{}, fmt.Errorf("json: read value of %q: %w", key, err)
		}
		v, err := materializeValueFromFirstToken(w.dec, vt)
		if err != nil {
			return Record{}, err
		}
		w.put(&rec, key, v)
	}
	if err := w.expect('}', "object end"); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func (w *walker) readKey() (string, error) {
	kt, err := w.dec.Token()
	if err != nil {
		w.parseErr(w.line+1, err)
		return "", fmt.Errorf("json: read object key: %w", err)
	}
	k, ok := kt.(string)
	if !ok {
		return "", fmt.Errorf("json: object key not a string (got %T)", kt)
	}
	return k, nil
}

func (w *walker) put(rec *Record, key string, v any) {
	if mapped, ok := w.headerMap[key]; ok && mapped != "" {
		key = mapped
	}
	if _, dup := rec.Obj[key]; !dup {
		rec.Keys = append(rec.Keys, key)
	}
	rec.Obj[key] = v
}

// ReadTable decodes r into a table. Columns are the union of record keys in
// first-seen order, or the "columns" option when set. Arrays of strings are
// joined with array_join_separator (default ","); other nested values are
// kept as compact JSON text.
func ReadTable(ctx context.Context, name string, r io.Reader, opts config.Options, onParseErr func(line int, err error)) (*table.Table, error) {
	sep := strings.TrimSpace(opts.String("array_join_separator", ","))
	if sep == "" {
		sep = ","
	}

	fixed := opts.Strings("columns")
	columns := append([]string(nil), fixed...)
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		seen[c] = struct{}{}
	}

	var recs []Record
	err := StreamRecords(ctx, r, opts, func(rec Record) error {
		if len(fixed) == 0 {
			for _, k := range rec.Keys {
				if _, ok := seen[k]; !ok {
					seen[k] = struct{}{}
					columns = append(columns, k)
				}
			}
		}
		recs = append(recs, rec)
		return nil
	}, onParseErr)
	if err != nil {
		return nil, err
	}

	rows := make([][]any, len(recs))
	for i, rec := range recs {
		rows[i] = recordToRow(rec.Obj, columns, sep)
	}
	return table.FromRows(name, columns, rows)
}

// recordToRow aligns obj with columns. Absent keys and empty strings are
// missing values.
func recordToRow(obj map[string]any, columns []string, sep string) []any {
	row := make([]any, len(columns))
	for i, col := range columns {
		v := normalizeScalarJSONValue(obj[col], sep)
		switch t := v.(type) {
		case string:
			if t == "" {
				v = nil
			}
		case map[string]any, []any:
			b, err := json.Marshal(t)
			if err != nil {
				v = fmt.Sprint(t)
			} else {
				v = string(b)
			}
		}
		row[i] = v
	}
	return row
}

// normalizeScalarJSONValue flattens arrays of strings to a joined string.
// Everything else passes through untouched.
func normalizeScalarJSONValue(v any, sep string) any {
	switch t := v.(type) {
	case nil:
		return nil
	case []string:
		return strings.Join(t, sep)
	case []any:
		ss := make([]string, 0, len(t))
		for _, it := range t {
			if it == nil {
				continue
			}
			s, ok := it.(string)
			if !ok {
				return v
			}
			ss = append(ss, s)
		}
		return strings.Join(ss, sep)
	default:
		return v
	}
}

func skipNextValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("json: skip value token: %w", err)
	}
	_, err = materializeValueFromFirstToken(dec, tok)
	return err
}

// materializeValueFromFirstToken builds the Go value whose first token has
// already been read.
func materializeValueFromFirstToken(dec *json.Decoder, tok any) (any, error) {
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		m := make(map[string]any)
		for dec.More() {
			kt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested object key: %w", err)
			}
			k, ok := kt.(string)
			if !ok {
				return nil, fmt.Errorf("json: nested object key not string (got %T)", kt)
			}
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested object value token: %w", err)
			}
			v, err := materializeValueFromFirstToken(dec, vt)
			if err != nil {
				return nil, err
			}
			m[k] = v
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read nested object end: %w", err)
		} else if end != json.Delim('}') {
			return nil, fmt.Errorf("json: expected '}', got %v", end)
		}
		return m, nil
	case '[':
		arr := []any{}
		for dec.More() {
			vt, err := dec.Token()
			if err != nil {
				return nil, fmt.Errorf("json: read nested array value token: %w", err)
			}
			v, err := materializeValueFromFirstToken(dec, vt)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		if end, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("json: read nested array end: %w", err)
		} else if end != json.Delim(']') {
			return nil, fmt.Errorf("json: expected ']', got %v", end)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("json: unexpected delimiter %q", d)
	}
}
