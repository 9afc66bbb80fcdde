// Package datasource loads one named dataset from its configured transport
// (file, http, html page, relational table or Google Sheet) into a table.
package datasource

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Format is the closed set of file formats the loader can parse.
type Format string

const (
	CSV   Format = "csv"
	Excel Format = "excel"
	JSON  Format = "json"
)

// ErrFormatUndetermined is returned when a location's extension does not
// name a known format and no explicit format was given.
var ErrFormatUndetermined = errors.New("format undetermined")

// InferFormat maps the extension of location's path to a Format. A URL's
// query and fragment are ignored and case does not matter.
//
//	.csv         => CSV
//	.xls, .xlsx  => Excel
//	.json        => JSON
func InferFormat(location string) (Format, error) {
	p := location
	if u, err := url.Parse(location); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		p = u.Path
	} else {
		if i := strings.IndexAny(p, "?#"); i >= 0 {
			p = p[:i]
		}
	}

	switch ext := strings.ToLower(path.Ext(strings.ReplaceAll(p, `\`, "/"))); ext {
	case ".csv":
		return CSV, nil
	case ".xls", ".xlsx":
		return Excel, nil
	case ".json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: %q has extension %q", ErrFormatUndetermined, location, ext)
	}
}

// ParseFormat maps an explicit format tag to a Format.
func ParseFormat(tag string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "csv":
		return CSV, nil
	case "excel", "xlsx", "xls", "spreadsheet":
		return Excel, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: unknown format tag %q", ErrFormatUndetermined, tag)
	}
}

// ResolveFormat returns the explicit tag's format when tag is set and the
// inferred format otherwise.
func ResolveFormat(location, tag string) (Format, error) {
	if strings.TrimSpace(tag) != "" {
		return ParseFormat(tag)
	}
	return InferFormat(location)
}
