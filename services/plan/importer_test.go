package plan

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestParseCatalogCSV(t *testing.T) {
	data := "\xef\xbb\xbfPlan Name,Daily Budget,Duration,Client Price,Active\n" +
		"Starter,3.00,7,43.00,true\n" +
		",1,1,1,true\n" +
		"Broken,abc,7,10,true\n" +
		"Big,\"1,000\",30,\"$45,000\",false\n"

	rows, failures, err := ParseCatalog("catalog.csv", strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Len(t, failures, 1)
	require.Equal(t, 4, failures[0].Row)

	require.Equal(t, "Starter", rows[0].Input.PlanName)
	require.Equal(t, 2, rows[0].Row)
	require.True(t, rows[0].Input.DailyBudget.Equal(decimal.RequireFromString("3")))
	require.Equal(t, 7, rows[0].Input.DurationDays)
	require.True(t, *rows[0].Input.IsActive)

	require.True(t, rows[1].Input.DailyBudget.Equal(decimal.NewFromInt(1000)))
	require.True(t, rows[1].Input.ClientPrice.Equal(decimal.NewFromInt(45000)))
	require.False(t, *rows[1].Input.IsActive)
}

func TestParseCatalogMissingColumn(t *testing.T) {
	_, _, err := ParseCatalog("catalog.csv", strings.NewReader("plan_name,daily_budget\nA,1\n"))
	require.ErrorIs(t, err, ErrInvalidCatalog)
}

func TestParseCatalogUnsupported(t *testing.T) {
	_, _, err := ParseCatalog("catalog.pdf", strings.NewReader(""))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestImportXLSX(t *testing.T) {
	svc := newTestService(t)

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"plan_name", "daily_budget", "duration_days", "client_price"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Starter", 3, 7, 43}))
	require.NoError(t, f.SetSheetRow(sheet, "A3", &[]any{"Monthly", 10, 30, 400}))
	require.NoError(t, f.SetSheetRow(sheet, "A4", &[]any{"Zero", 0, 30, 400}))

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	result, err := svc.Import(context.Background(), "catalog.xlsx", &buf)
	require.NoError(t, err)
	require.Equal(t, 2, result.Created)
	require.Equal(t, 0, result.Updated)
	require.Len(t, result.Failed, 1)
	require.Equal(t, 4, result.Failed[0].Row)

	plans, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, plans, 2)
}
