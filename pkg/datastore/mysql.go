package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
)

// MySQLStore JSONドキュメントを MySQL の1テーブルに格納するストア
// dsn format: "username:password@tcp(host:port)/dbname?parseTime=true"
type MySQLStore struct {
	conn   *sql.DB
	logger *zap.SugaredLogger
}

// NewMySQLStore opens the connection pool and creates the documents table.
func NewMySQLStore(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*MySQLStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	conn, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &MySQLStore{conn: conn, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *MySQLStore) initSchema(ctx context.Context) error {
	_, err := s.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS sales_documents (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		collection VARCHAR(255) NOT NULL,
		body JSON NOT NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_sales_documents_collection (collection)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`)
	return err
}

func (s *MySQLStore) Name() string { return "mysql" }

// Stream はコレクションに属する全ドキュメントを挿入順に返す
func (s *MySQLStore) Stream(ctx context.Context, collection string) ([]Document, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT body FROM sales_documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("mysql query %s: %w", collection, err)
	}
	defer rows.Close()

	var docs []Document
	skipped := 0
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("mysql scan %s: %w", collection, err)
		}
		doc, err := decodeJSONDocument(body)
		if err != nil {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mysql rows %s: %w", collection, err)
	}
	if skipped > 0 {
		s.logger.Warnw("skipped undecodable documents", "backend", s.Name(), "collection", collection, "skipped", skipped)
	}
	return docs, nil
}

// Put は1トランザクションでドキュメントを挿入する
func (s *MySQLStore) Put(ctx context.Context, collection string, docs []Document) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("mysql begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sales_documents (collection, body) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("mysql prepare: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("mysql encode document: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, collection, body); err != nil {
			return fmt.Errorf("mysql insert %s: %w", collection, err)
		}
	}
	return tx.Commit()
}

func (s *MySQLStore) Close() error {
	return s.conn.Close()
}
