package datastore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExcelStore 1つの .xlsx ブックをドキュメントストアとして扱う
// シート名がコレクション名、1行目がフィールド名、2行目以降が1ドキュメント
type ExcelStore struct {
	path string
	mu   sync.Mutex
}

// NewExcelStore checks that the workbook exists when it is meant to be read.
// A missing file is accepted; Put creates it.
func NewExcelStore(path string) (*ExcelStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("excel store requires a workbook path")
	}
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return nil, fmt.Errorf("unsupported workbook %q: .xlsx required", path)
	}
	return &ExcelStore{path: path}, nil
}

func (s *ExcelStore) Name() string { return "excel" }

// Stream はシートの全行をドキュメントに変換する。空セルはフィールド欠損として扱う
func (s *ExcelStore) Stream(ctx context.Context, collection string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return []Document{}, nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("excel open %s: %w", s.path, err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(collection)
	if err != nil {
		return nil, fmt.Errorf("excel sheet %s: %w", collection, err)
	}
	if idx < 0 {
		return []Document{}, nil
	}

	// 日付セルは表示形式ではなくシリアル値で読む
	rows, err := f.GetRows(collection, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("excel rows %s: %w", collection, err)
	}
	return rowsToDocuments(rows), nil
}

func rowsToDocuments(rows [][]string) []Document {
	if len(rows) < 2 {
		return []Document{}
	}
	header := rows[0]
	docs := make([]Document, 0, len(rows)-1)
	for _, row := range rows[1:] {
		doc := make(Document, len(header))
		for i, cell := range row {
			if i >= len(header) || strings.TrimSpace(header[i]) == "" {
				continue
			}
			if strings.TrimSpace(cell) == "" {
				continue
			}
			doc[strings.TrimSpace(header[i])] = cell
		}
		if len(doc) > 0 {
			docs = append(docs, doc)
		}
	}
	return docs
}

// Put はシートの末尾にドキュメントを追記する。新しいフィールドはヘッダーに追加される
func (s *ExcelStore) Put(ctx context.Context, collection string, docs []Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, created, err := s.openOrCreate(collection)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := f.GetRows(collection)
	if err != nil {
		return fmt.Errorf("excel rows %s: %w", collection, err)
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	header = mergeHeader(header, docs)
	if err := f.SetSheetRow(collection, "A1", &header); err != nil {
		return fmt.Errorf("excel header %s: %w", collection, err)
	}

	next := len(rows) + 1
	if next < 2 {
		next = 2
	}
	for _, doc := range docs {
		values := make([]interface{}, len(header))
		for i, field := range header {
			values[i] = cellValue(doc[field])
		}
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(collection, cell, &values); err != nil {
			return fmt.Errorf("excel write %s: %w", collection, err)
		}
		next++
	}

	if created {
		return f.SaveAs(s.path)
	}
	return f.Save()
}

func (s *ExcelStore) openOrCreate(collection string) (*excelize.File, bool, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		f := excelize.NewFile()
		if err := f.SetSheetName(f.GetSheetName(0), collection); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("excel new sheet %s: %w", collection, err)
		}
		return f, true, nil
	}

	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("excel open %s: %w", s.path, err)
	}
	idx, err := f.GetSheetIndex(collection)
	if err != nil {
		f.Close()
		return nil, false, err
	}
	if idx < 0 {
		if _, err := f.NewSheet(collection); err != nil {
			f.Close()
			return nil, false, fmt.Errorf("excel new sheet %s: %w", collection, err)
		}
	}
	return f, false, nil
}

// mergeHeader keeps existing column order and appends unseen fields sorted.
func mergeHeader(header []string, docs []Document) []string {
	seen := make(map[string]struct{}, len(header))
	for _, h := range header {
		seen[h] = struct{}{}
	}
	var extra []string
	for _, doc := range docs {
		for field := range doc {
			if _, ok := seen[field]; !ok {
				seen[field] = struct{}{}
				extra = append(extra, field)
			}
		}
	}
	sort.Strings(extra)
	return append(append([]string{}, header...), extra...)
}

func cellValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.Format("2006-01-02")
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return val
	}
}

func (s *ExcelStore) Close() error { return nil }
