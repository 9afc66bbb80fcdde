package builtin

import (
	"fmt"

	"hretl/internal/table"
	"hretl/internal/transformer"
)

// DefaultBucketLabel is used for missing and unmapped raw values.
const DefaultBucketLabel = "Unknown"

// Bucket derives an ordinal category column from a raw range column.
//
// The raw column is kept. Target is added, or replaced when it already
// exists, so re-running a recipe is safe. The result is never null: missing
// and unmapped raw values both get Default.
type Bucket struct {
	Source  string
	Target  string
	Mapping map[string]string
	Default string
}

// Apply adds or replaces b.Target.
func (b Bucket) Apply(t *table.Table) error {
	src, ok := t.Column(b.Source)
	if !ok {
		return fmt.Errorf("bucket %s.%s: %w", t.Name, b.Source, transformer.ErrColumnNotFound)
	}
	def := b.Default
	if def == "" {
		def = DefaultBucketLabel
	}

	vals := make([]any, len(src.Values))
	for i, v := range src.Values {
		vals[i] = def
		if v == nil {
			continue
		}
		key, err := table.CoerceValue(v, table.Text)
		if err != nil {
			return fmt.Errorf("bucket %s.%s row %d: %w: %v", t.Name, b.Source, i, transformer.ErrConversion, err)
		}
		if label, ok := b.Mapping[key.(string)]; ok {
			vals[i] = label
		}
	}

	col := &table.Column{Name: b.Target, Type: table.Category, Values: vals}
	if t.Has(b.Target) {
		return t.Replace(col)
	}
	return t.AddColumn(col)
}

// Labels returns the distinct labels b can produce, Default included.
func (b Bucket) Labels() map[string]struct{} {
	out := make(map[string]struct{}, len(b.Mapping)+1)
	for _, l := range b.Mapping {
		out[l] = struct{}{}
	}
	if b.Default == "" {
		out[DefaultBucketLabel] = struct{}{}
	} else {
		out[b.Default] = struct{}{}
	}
	return out
}

var _ Recoder = Bucket{}
