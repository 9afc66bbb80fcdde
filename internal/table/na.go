package table

// DefaultNAValues are the cell texts the file parsers read as missing
// values unless keep_default_na is switched off.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None",
	"n/a", "nan", "null",
}

// NASet is a set of cell texts that stand for a missing value. Matching is
// exact: no trimming and no case folding.
type NASet map[string]struct{}

// NewNASet returns the tokens in extra, plus DefaultNAValues when
// keepDefault is set. The empty string is always missing.
func NewNASet(extra []string, keepDefault bool) NASet {
	s := NASet{"": {}}
	if keepDefault {
		for _, v := range DefaultNAValues {
			s[v] = struct{}{}
		}
	}
	for _, v := range extra {
		s[v] = struct{}{}
	}
	return s
}

// Has reports whether v reads as missing.
func (s NASet) Has(v string) bool {
	_, ok := s[v]
	return ok
}
