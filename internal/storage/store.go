// Package storage сохраняет тики эпизодов для повторного просмотра.
//
// Каждый тик хранится как одна запись Record, закодированная Codec
// (JSON, опционально сжатый zstd). Бэкенды различаются только тем,
// где лежат байты: память, BadgerDB, Redis, SQL (SQLite/MySQL) или MongoDB.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/world"
)

// ErrNotReady возвращается при обращении к закрытому хранилищу
var ErrNotReady = errors.New("хранилище не готово")

// Record - один сохранённый тик эпизода
type Record struct {
	EpisodeID  string         `json:"episode_id"`
	Tick       int            `json:"tick"`
	Snapshot   world.Snapshot `json:"snapshot"`
	Info       engine.Info    `json:"info"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// SnapshotStore определяет интерфейс хранилища тиков
type SnapshotStore interface {
	// Save сохраняет тик. Повторное сохранение того же тика перезаписывает его.
	Save(ctx context.Context, rec Record) error

	// Load загружает тик эпизода. found == false, если тика нет.
	Load(ctx context.Context, episodeID string, tick int) (rec Record, found bool, err error)

	// Range возвращает тики from..to включительно, по возрастанию
	Range(ctx context.Context, episodeID string, from, to int) ([]Record, error)

	// Episodes возвращает отсортированные ID сохранённых эпизодов
	Episodes(ctx context.Context) ([]string, error)

	// Close освобождает ресурсы хранилища
	Close() error
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
