// Package sheets reads the roster spreadsheet through the Google Sheets API.
package sheets

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"clanchecker/service/internal/metrics"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Config holds spreadsheet source configuration
type Config struct {
	SheetID  string
	Range    string
	APIKey   string
	Endpoint string // optional override of the Sheets API base URL
}

// Source fetches raw roster rows from a spreadsheet
type Source struct {
	svc       *sheets.Service
	sheetID   string
	readRange string
}

// NewSource creates a spreadsheet source authenticated with an API key
func NewSource(ctx context.Context, cfg Config) (*Source, error) {
	if cfg.SheetID == "" {
		return nil, fmt.Errorf("sheet id is required")
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	readRange := cfg.Range
	if readRange == "" {
		readRange = "sheet1"
	}

	return &Source{
		svc:       svc,
		sheetID:   cfg.SheetID,
		readRange: readRange,
	}, nil
}

// FetchRows returns every row of the configured range, header included,
// with each cell rendered as a string
func (s *Source) FetchRows(ctx context.Context) ([][]string, error) {
	start := time.Now()

	resp, err := s.svc.Spreadsheets.Values.Get(s.sheetID, s.readRange).Context(ctx).Do()
	if err != nil {
		metrics.RecordAPICall("sheets", "error", time.Since(start).Seconds())
		return nil, fmt.Errorf("failed to fetch sheet values: %w", err)
	}
	metrics.RecordAPICall("sheets", strconv.Itoa(resp.HTTPStatusCode), time.Since(start).Seconds())

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = toString(cell)
		}
		rows = append(rows, row)
	}

	log.Debug().
		Str("sheet_id", s.sheetID).
		Str("range", s.readRange).
		Int("rows", len(rows)).
		Msg("Sheet values fetched")

	return rows, nil
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	}
	return fmt.Sprint(v)
}
