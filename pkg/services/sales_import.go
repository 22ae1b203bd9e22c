package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"sales-forecast-api/pkg/datastore"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// ErrUnsupportedFile アップロードされたファイル形式が扱えない
var ErrUnsupportedFile = errors.New("unsupported file type: upload .xlsx or .csv")

// ImportResult 取り込み結果
type ImportResult struct {
	Collection string `json:"collection"`
	Imported   int    `json:"imported"`
	Skipped    int    `json:"skipped"`
}

// SalesImporter はアップロードされた表を売上ドキュメントとしてストアに書き込む
type SalesImporter struct {
	writer datastore.Writer
	logger *zap.SugaredLogger
}

// NewSalesImporter returns nil when the store cannot be written to.
func NewSalesImporter(store datastore.Store, logger *zap.SugaredLogger) *SalesImporter {
	writer, ok := store.(datastore.Writer)
	if !ok {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &SalesImporter{writer: writer, logger: logger}
}

// Import parses the upload and appends every row that has a date and a
// quantity. Rows without them are counted as skipped.
func (si *SalesImporter) Import(ctx context.Context, collection, filename string, r io.Reader) (ImportResult, error) {
	result := ImportResult{Collection: collection}
	if strings.TrimSpace(collection) == "" {
		return result, fmt.Errorf("%w: collection is required", ErrInvalidInput)
	}

	rows, err := ReadSheetRows(filename, r)
	if err != nil {
		return result, err
	}
	docs, skipped, err := RowsToSalesDocuments(rows)
	if err != nil {
		return result, err
	}
	result.Skipped = skipped
	if len(docs) == 0 {
		return result, fmt.Errorf("%w: no importable rows", ErrInvalidInput)
	}

	if err := si.writer.Put(ctx, collection, docs); err != nil {
		return result, fmt.Errorf("%w: %v", ErrDataSourceUnavailable, err)
	}
	result.Imported = len(docs)
	si.logger.Infow("sales imported", "collection", collection, "file", filename,
		"imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// ReadSheetRows reads the first sheet of an .xlsx file or a whole .csv file.
func ReadSheetRows(filename string, r io.Reader) ([][]string, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, ".xlsx"):
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("%w: excel: %v", ErrInvalidInput, err)
		}
		defer f.Close()
		rows, err := f.GetRows(f.GetSheetName(0), excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: excel rows: %v", ErrInvalidInput, err)
		}
		return rows, nil
	case strings.HasSuffix(name, ".csv"):
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("%w: csv: %v", ErrInvalidInput, err)
		}
		return rows, nil
	default:
		return nil, ErrUnsupportedFile
	}
}

// RowsToSalesDocuments maps rows (header first) to documents keyed by the
// header names. The header must name a date and a quantity column.
func RowsToSalesDocuments(rows [][]string) ([]datastore.Document, int, error) {
	if len(rows) < 2 {
		return nil, 0, fmt.Errorf("%w: a header row and at least one data row are required", ErrInvalidInput)
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	var missing []string
	if findIndex(header, dateFields...) == -1 {
		missing = append(missing, "date")
	}
	if findIndex(header, quantityFields...) == -1 {
		missing = append(missing, "quantity")
	}
	if len(missing) > 0 {
		return nil, 0, fmt.Errorf("%w: missing columns %s (header: %v)", ErrInvalidInput, strings.Join(missing, ", "), header)
	}

	docs := make([]datastore.Document, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		doc := make(datastore.Document, len(header))
		for i, cell := range row {
			if i >= len(header) || header[i] == "" || strings.TrimSpace(cell) == "" {
				continue
			}
			doc[header[i]] = strings.TrimSpace(cell)
		}
		if _, ok := DecodeObservation(doc); !ok {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	return docs, skipped, nil
}

// findIndex finds the index of the first candidate in a slice
func findIndex(slice []string, candidates ...string) int {
	for _, candidate := range candidates {
		for i, item := range slice {
			if strings.EqualFold(item, candidate) {
				return i
			}
		}
	}
	return -1
}
