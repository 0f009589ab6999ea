package plan

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported catalog file format")
	ErrInvalidCatalog    = errors.New("invalid catalog file")
)

var headerAliases = map[string]string{
	"plan_name":     "plan_name",
	"plan name":     "plan_name",
	"plan":          "plan_name",
	"name":          "plan_name",
	"daily_budget":  "daily_budget",
	"daily budget":  "daily_budget",
	"daily":         "daily_budget",
	"duration_days": "duration_days",
	"duration days": "duration_days",
	"duration":      "duration_days",
	"days":          "duration_days",
	"client_price":  "client_price",
	"client price":  "client_price",
	"price":         "client_price",
	"is_active":     "is_active",
	"active":        "is_active",
}

var requiredColumns = []string{"plan_name", "daily_budget", "duration_days"}

// ImportResult tallies a catalog import. Row numbers are 1-based and include the header row.
type ImportResult struct {
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Failed  []RowFailure `json:"failed,omitempty"`
}

// CatalogRow is one parsed plan with its spreadsheet row number.
type CatalogRow struct {
	Row   int
	Input Input
}

type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ParseCatalog reads plan rows from an .xlsx or .csv file. The format is picked from the file name.
func ParseCatalog(filename string, r io.Reader) ([]CatalogRow, []RowFailure, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		rows, err = readSheet(r)
	case ".csv":
		rows, err = readCSV(r)
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: file is empty", ErrInvalidCatalog)
	}

	colMap := mapColumns(rows[0])
	for _, col := range requiredColumns {
		if _, ok := colMap[col]; !ok {
			return nil, nil, fmt.Errorf("%w: missing required column %s", ErrInvalidCatalog, col)
		}
	}

	parsed := make([]CatalogRow, 0, len(rows)-1)
	var failures []RowFailure
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := strings.TrimSpace(readCell(cells, colMap["plan_name"]))
		if name == "" {
			continue
		}

		in, err := parseRow(name, cells, colMap)
		if err != nil {
			failures = append(failures, RowFailure{Row: index + 1, Reason: err.Error()})
			continue
		}
		parsed = append(parsed, CatalogRow{Row: index + 1, Input: in})
	}

	return parsed, failures, nil
}

func parseRow(name string, cells []string, colMap map[string]int) (Input, error) {
	in := Input{PlanName: name}

	daily, err := decimal.NewFromString(cleanNumber(readCell(cells, colMap["daily_budget"])))
	if err != nil {
		return in, fmt.Errorf("invalid daily_budget: %w", err)
	}
	in.DailyBudget = daily

	days, err := strconv.Atoi(cleanNumber(readCell(cells, colMap["duration_days"])))
	if err != nil {
		return in, fmt.Errorf("invalid duration_days: %w", err)
	}
	in.DurationDays = days

	if idx, ok := colMap["client_price"]; ok {
		if raw := cleanNumber(readCell(cells, idx)); raw != "" {
			price, err := decimal.NewFromString(raw)
			if err != nil {
				return in, fmt.Errorf("invalid client_price: %w", err)
			}
			in.ClientPrice = price
		}
	}

	if idx, ok := colMap["is_active"]; ok {
		if raw := strings.TrimSpace(readCell(cells, idx)); raw != "" {
			active, err := strconv.ParseBool(strings.ToLower(raw))
			if err != nil {
				return in, fmt.Errorf("invalid is_active: %w", err)
			}
			in.IsActive = &active
		}
	}

	return in, nil
}

// Import parses the file and upserts every valid row by plan name. Row-level failures do not stop the import.
func (s *Service) Import(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	rows, failures, err := ParseCatalog(filename, r)
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Failed: failures}
	for _, row := range rows {
		_, created, err := s.Upsert(ctx, row.Input)
		if err != nil {
			result.Failed = append(result.Failed, RowFailure{Row: row.Row, Reason: err.Error()})
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	zap.L().With(logFields(ctx)...).Info("plan catalog imported",
		zap.String("file", filename),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("failed", len(result.Failed)),
	)

	return result, nil
}

func readSheet(r io.Reader) ([][]string, error) {
	file, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	return rows, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	return rows, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if canonical, ok := headerAliases[key]; ok {
			if _, seen := cols[canonical]; !seen {
				cols[canonical] = i
			}
		}
	}
	return cols
}

func readCell(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// cleanNumber drops currency symbols and thousands separators.
func cleanNumber(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "$")
	raw = strings.ReplaceAll(raw, ",", "")
	return strings.TrimSpace(raw)
}
