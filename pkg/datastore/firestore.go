package datastore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// FirestoreStore Cloud Firestore のコレクションを読み出すストア
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a Firestore client. An empty projectID lets the
// client detect the project from the environment credentials.
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

func (s *FirestoreStore) Name() string { return "firestore" }

// Stream はコレクション内の全ドキュメントを走査する
func (s *FirestoreStore) Stream(ctx context.Context, collection string) ([]Document, error) {
	iter := s.client.Collection(collection).Documents(ctx)
	defer iter.Stop()

	var docs []Document
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore stream %s: %w", collection, err)
		}
		docs = append(docs, Document(snap.Data()))
	}
	return docs, nil
}

// Put writes each document under its "id" field, or a fresh UUID when absent.
func (s *FirestoreStore) Put(ctx context.Context, collection string, docs []Document) error {
	for _, doc := range docs {
		id, _ := doc["id"].(string)
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := s.client.Collection(collection).Doc(id).Set(ctx, map[string]interface{}(doc)); err != nil {
			return fmt.Errorf("firestore write %s/%s: %w", collection, id, err)
		}
	}
	return nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}
