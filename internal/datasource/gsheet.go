package datasource

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"hretl/internal/config"
	"hretl/internal/table"
)

// DefaultSheetRange reads every used row of the first visible sheet.
const DefaultSheetRange = "A:ZZ"

// SheetsClient reads cell values from a spreadsheet.
type SheetsClient interface {
	Values(ctx context.Context, spreadsheetID, readRange string) ([][]any, error)
}

type sheetsClient struct {
	svc *sheets.Service
}

// NewSheetsClient builds a read-only Sheets client from a service account
// credentials file or, failing that, an API key.
func NewSheetsClient(ctx context.Context, g config.GoogleConfig) (SheetsClient, error) {
	switch {
	case g.CredentialsFile != "":
		raw, err := os.ReadFile(g.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("read google credentials: %w", err)
		}
		conf, err := google.JWTConfigFromJSON(raw, sheets.SpreadsheetsReadonlyScope)
		if err != nil {
			return nil, fmt.Errorf("parse google credentials: %w", err)
		}
		return newSheetsClient(ctx, option.WithHTTPClient(conf.Client(ctx)))
	case g.APIKey != "":
		return newSheetsClient(ctx, option.WithAPIKey(g.APIKey))
	default:
		return nil, fmt.Errorf("google sheets: no credentials_file or api_key configured")
	}
}

func newSheetsClient(ctx context.Context, opts ...option.ClientOption) (SheetsClient, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &sheetsClient{svc: svc}, nil
}

func (c *sheetsClient) Values(ctx context.Context, spreadsheetID, readRange string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(spreadsheetID, readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("get values %s!%s: %w", spreadsheetID, readRange, err)
	}
	return resp.Values, nil
}

// sheetTable turns a value grid into a table. The first row is the header;
// integral numbers become int64. Empty strings and missing-value tokens are
// missing, as for file sources.
func sheetTable(name string, grid [][]any, opt config.Options) (*table.Table, error) {
	if len(grid) == 0 {
		return table.New(name), nil
	}

	headerMap := opt.StringMap("header_map")
	na := table.NewNASet(opt.Strings("na_values"), opt.Bool("keep_default_na", true))
	width := 0
	for _, r := range grid {
		width = max(width, len(r))
	}
	cols := make([]string, width)
	for j := range cols {
		h := ""
		if j < len(grid[0]) {
			h = strings.TrimSpace(fmt.Sprint(grid[0][j]))
		}
		if mapped, ok := headerMap[h]; ok {
			h = mapped
		}
		if h == "" {
			h = fmt.Sprintf("column_%d", j+1)
		}
		cols[j] = h
	}
	table.DedupeNames(cols)

	rows := make([][]any, 0, len(grid)-1)
	for _, src := range grid[1:] {
		row := make([]any, width)
		for j, v := range src {
			row[j] = sheetValue(v, na)
		}
		rows = append(rows, row)
	}
	return table.FromRows(name, cols, rows)
}

func sheetValue(v any, na table.NASet) any {
	switch t := v.(type) {
	case string:
		if na.Has(t) {
			return nil
		}
		return t
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			return int64(t)
		}
		return t
	default:
		return v
	}
}
