package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/annel0/rescue-sim/internal/config"
)

// Open создаёт хранилище по конфигурации. Для backend "none" возвращает nil, nil.
func Open(ctx context.Context, cfg config.StorageConfig) (SnapshotStore, error) {
	if cfg.Backend == "none" {
		return nil, nil
	}
	if cfg.Backend == "" || cfg.Backend == "memory" {
		return NewMemoryStore(), nil
	}

	codec, err := NewCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	path := cfg.Path
	if path == "" {
		path = "data"
	}

	switch cfg.Backend {
	case "badger":
		return NewBadgerStore(path, codec)
	case "redis":
		rc := DefaultRedisConfig()
		if cfg.RedisAddr != "" {
			rc.Addr = cfg.RedisAddr
		}
		return NewRedisStore(ctx, rc, codec)
	case "sqlite":
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("ошибка создания директории %s: %w", path, err)
		}
		return OpenSQLite(filepath.Join(path, "replay.db"), codec)
	case "mysql":
		return OpenSQL(DriverMySQL, cfg.DSN, codec)
	case "mongo":
		return NewMongoStore(ctx, MongoConfig{URI: cfg.MongoURI, Database: cfg.Database}, codec)
	default:
		return nil, fmt.Errorf("неизвестный бэкенд хранилища: %s", cfg.Backend)
	}
}
