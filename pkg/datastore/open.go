package datastore

import (
	"context"
	"fmt"
	"strings"

	config "sales-forecast-api/configs"

	"go.uber.org/zap"
)

// Open は設定に応じたストアを生成する
func Open(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (Store, error) {
	switch strings.ToLower(cfg.StoreBackend) {
	case "firestore":
		return NewFirestoreStore(ctx, cfg.FirestoreProjectID)
	case "mysql":
		return NewMySQLStore(ctx, cfg.DatabaseDSN, logger)
	case "redis":
		return NewRedisStore(ctx, RedisOptions{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: cfg.RedisKeyPrefix,
		}, logger)
	case "excel", "xlsx":
		return NewExcelStore(cfg.ExcelPath)
	case "memory":
		return NewMemoryStore(nil), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.StoreBackend)
	}
}
