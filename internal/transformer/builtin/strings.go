package builtin

// HasEdgeSpace reports whether s starts or ends with ASCII whitespace. It lets
// hot paths skip strings.TrimSpace allocations for already-clean cells.
func HasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return isSpace(s[0]) || isSpace(s[len(s)-1])
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}
