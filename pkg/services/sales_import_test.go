package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"sales-forecast-api/pkg/datastore"
	"sales-forecast-api/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestImportCSV(t *testing.T) {
	store := datastore.NewMemoryStore(nil)
	importer := NewSalesImporter(store, nil)
	require.NotNil(t, importer)

	csvData := "Date,Quantity,medicine_name,weather_condition\n" +
		"2024-01-01,10,Aspirin,Sunny\n" +
		"not a date,5,Aspirin,Rainy\n" +
		"2024-01-02,7,,\n"

	result, err := importer.Import(context.Background(), "sales", "upload.csv", strings.NewReader(csvData))
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Collection: "sales", Imported: 2, Skipped: 1}, result)

	observations, err := NewRecordFetcher(store, nil).Fetch(context.Background(), "sales")
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, "Aspirin", observations[0].Entity())
	assert.Nil(t, observations[1].EntityName)
}

func TestImportXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"ds", "y"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{"2024-02-01", 3}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	store := datastore.NewMemoryStore(nil)
	result, err := NewSalesImporter(store, nil).Import(context.Background(), "pharmacy", "sales.XLSX", &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
}

func TestImportXLSXWithDateCells(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]string{"date", "quantity", "medicine_name"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]interface{}{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), 10, "Aspirin"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]interface{}{time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), 4, "Aspirin"}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	store := datastore.NewMemoryStore(nil)
	result, err := NewSalesImporter(store, nil).Import(context.Background(), "sales", "sales.xlsx", &buf)
	require.NoError(t, err)
	assert.Equal(t, ImportResult{Collection: "sales", Imported: 2}, result)

	observations, err := NewRecordFetcher(store, nil).Fetch(context.Background(), "sales")
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, utcDay(2024, 1, 2), observations[0].Timestamp)
	assert.Equal(t, utcDay(2024, 1, 3), observations[1].Timestamp)
}

func TestImportRejectsBadUploads(t *testing.T) {
	importer := NewSalesImporter(datastore.NewMemoryStore(nil), nil)
	ctx := context.Background()

	_, err := importer.Import(ctx, "sales", "notes.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	_, err = importer.Import(ctx, "sales", "a.csv", strings.NewReader("date,amount\n2024-01-01,3\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "quantity")

	_, err = importer.Import(ctx, "sales", "a.csv", strings.NewReader("date,quantity\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = importer.Import(ctx, "sales", "a.csv", strings.NewReader("date,quantity\nbad,bad\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = importer.Import(ctx, "", "a.csv", strings.NewReader("date,quantity\n2024-01-01,1\n"))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

// readOnlyStore は Writer を実装しない
type readOnlyStore struct{ datastore.Store }

func TestNewSalesImporterNeedsWriter(t *testing.T) {
	assert.Nil(t, NewSalesImporter(readOnlyStore{datastore.NewMemoryStore(nil)}, nil))
}

func TestBuildForecastWorkbook(t *testing.T) {
	points := []models.ForecastPoint{
		{Date: utcDay(2024, 1, 3), Yhat: 11, YhatLower: 9, YhatUpper: 13},
		{Date: utcDay(2024, 1, 4), Yhat: 12.5, YhatLower: 10, YhatUpper: 15},
	}
	f, err := BuildForecastWorkbook(points)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ForecastSheet)
	require.NoError(t, err)
	require.Len(t, rows, len(points)+1)
	assert.Equal(t, []string{"ds", "yhat", "yhat_lower", "yhat_upper"}, rows[0])
	assert.Equal(t, []string{"2024-01-03", "11", "9", "13"}, rows[1])
	assert.Equal(t, "12.5", rows[2][1])
}
