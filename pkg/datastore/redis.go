package datastore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisStore 各コレクションを JSON 文字列のリストとして保持するストア
// キーは <prefix>:<collection>
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.SugaredLogger
}

// RedisOptions Redis 接続設定
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, opts RedisOptions, logger *zap.SugaredLogger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	return &RedisStore{client: client, keyPrefix: opts.KeyPrefix, logger: logger}, nil
}

func (s *RedisStore) Name() string { return "redis" }

func (s *RedisStore) key(collection string) string {
	return redisKey(s.keyPrefix, collection)
}

// redisKey は "<prefix>:<collection>"。末尾のコロンは重ねない
func redisKey(prefix, collection string) string {
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		return collection
	}
	return prefix + ":" + collection
}

func (s *RedisStore) Stream(ctx context.Context, collection string) ([]Document, error) {
	values, err := s.client.LRange(ctx, s.key(collection), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis lrange %s: %w", s.key(collection), err)
	}

	docs := make([]Document, 0, len(values))
	skipped := 0
	for _, v := range values {
		doc, err := decodeJSONDocument([]byte(v))
		if err != nil {
			skipped++
			continue
		}
		docs = append(docs, doc)
	}
	if skipped > 0 {
		s.logger.Warnw("skipped undecodable documents", "backend", s.Name(), "collection", collection, "skipped", skipped)
	}
	return docs, nil
}

func (s *RedisStore) Put(ctx context.Context, collection string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("redis encode document: %w", err)
		}
		values = append(values, string(body))
	}
	if err := s.client.RPush(ctx, s.key(collection), values...).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", s.key(collection), err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
