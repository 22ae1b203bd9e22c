// Package datastore reads raw sales documents from the configured document
// store. A document is a flat field-to-value mapping; interpreting the fields
// is left to the record fetcher.
package datastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Document 生のドキュメント（フィールド名 → 値）
type Document map[string]interface{}

// Store ドキュメントストアの読み出しインターフェース
type Store interface {
	// Name identifies the backend in logs and metrics.
	Name() string
	// Stream returns every document of the collection. A collection that does
	// not exist yields an empty slice, not an error.
	Stream(ctx context.Context, collection string) ([]Document, error)
	Close() error
}

// Writer is implemented by stores the seeding tool can write to.
type Writer interface {
	Put(ctx context.Context, collection string, docs []Document) error
}

// ErrUnknownBackend is returned by Open for an unsupported STORE_BACKEND.
var ErrUnknownBackend = errors.New("unknown store backend")

// decodeJSONDocument parses a JSON object keeping numbers as json.Number so
// integer quantities survive untouched.
func decodeJSONDocument(raw []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("document is null")
	}
	return doc, nil
}
