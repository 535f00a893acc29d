package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v3"
)

// BadgerStore хранит тики во встроенной BadgerDB.
// Ключи тиков "snap:<эпизод>:<тик с ведущими нулями>" упорядочены по времени,
// поэтому Range - это один проход итератора по префиксу.
type BadgerStore struct {
	db      *badger.DB
	dbPath  string
	codec   *Codec
	mutex   sync.RWMutex
	isReady bool
}

// NewBadgerStore открывает (или создаёт) БД в dataPath/replay
func NewBadgerStore(dataPath string, codec *Codec) (*BadgerStore, error) {
	dbPath := filepath.Join(dataPath, "replay")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	return &BadgerStore{
		db:      db,
		dbPath:  dbPath,
		codec:   codec,
		isReady: true,
	}, nil
}

func tickPrefix(episodeID string) string {
	return "snap:" + episodeID + ":"
}

func tickKey(episodeID string, tick int) []byte {
	return []byte(fmt.Sprintf("%s%010d", tickPrefix(episodeID), tick))
}

func episodeKey(episodeID string) []byte {
	return []byte("episode:" + episodeID)
}

// Save сохраняет тик и отмечает эпизод
func (bs *BadgerStore) Save(ctx context.Context, rec Record) error {
	if err := checkContext(ctx); err != nil {
		return err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return ErrNotReady
	}

	data, err := bs.codec.Encode(rec)
	if err != nil {
		return err
	}

	err = bs.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(episodeKey(rec.EpisodeID), nil); err != nil {
			return err
		}
		return txn.Set(tickKey(rec.EpisodeID, rec.Tick), data)
	})
	if err != nil {
		return fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}
	return nil
}

// Load загружает тик
func (bs *BadgerStore) Load(ctx context.Context, episodeID string, tick int) (Record, bool, error) {
	if err := checkContext(ctx); err != nil {
		return Record{}, false, err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return Record{}, false, ErrNotReady
	}

	var data []byte
	err := bs.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(tickKey(episodeID, tick))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	rec, err := bs.codec.Decode(data)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Range возвращает тики from..to по возрастанию
func (bs *BadgerStore) Range(ctx context.Context, episodeID string, from, to int) ([]Record, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return nil, ErrNotReady
	}
	if from < 0 {
		from = 0
	}

	result := make([]Record, 0)
	prefix := []byte(tickPrefix(episodeID))
	err := bs.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(tickKey(episodeID, from)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			tick, err := strconv.Atoi(strings.TrimPrefix(string(item.Key()), string(prefix)))
			if err != nil {
				continue
			}
			if tick > to {
				break
			}
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			rec, err := bs.codec.Decode(data)
			if err != nil {
				return err
			}
			result = append(result, rec)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения диапазона из BadgerDB: %w", err)
	}
	return result, nil
}

// Episodes возвращает ID эпизодов
func (bs *BadgerStore) Episodes(ctx context.Context) ([]string, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	bs.mutex.RLock()
	defer bs.mutex.RUnlock()
	if !bs.isReady {
		return nil, ErrNotReady
	}

	ids := make([]string, 0)
	prefix := []byte("episode:")
	err := bs.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ids = append(ids, strings.TrimPrefix(string(it.Item().Key()), string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Close закрывает хранилище данных
func (bs *BadgerStore) Close() error {
	bs.mutex.Lock()
	defer bs.mutex.Unlock()

	if !bs.isReady {
		return nil
	}

	bs.isReady = false
	return bs.db.Close()
}
