package datasource

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeText converts text content to UTF-8. A byte order mark wins over
// the configured encoding (UTF-8 when empty) and is removed.
func DecodeText(b []byte, encodingName string) ([]byte, error) {
	var enc encoding.Encoding = unicode.UTF8
	if name := strings.TrimSpace(encodingName); name != "" {
		e, err := htmlindex.Get(name)
		if err != nil {
			return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
		}
		enc = e
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), b)
	if err != nil {
		return nil, fmt.Errorf("decode text: %w", err)
	}
	return out, nil
}
