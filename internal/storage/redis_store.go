package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/annel0/rescue-sim/internal/logging"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни тиков, 0 - бессрочно
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "rescue:",
	}
}

// RedisStore хранит тики в Redis: значение тика - строка по ключу
// <prefix>snap:<эпизод>:<тик>, порядок тиков - отсортированное множество
// <prefix>ticks:<эпизод> со счётом, равным номеру тика.
type RedisStore struct {
	client    redis.UniversalClient
	codec     *Codec
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStore подключается к Redis и проверяет соединение
func NewRedisStore(ctx context.Context, config *RedisConfig, codec *Codec) (*RedisStore, error) {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("не удалось подключиться к Redis: %w", err)
	}

	logging.GetStorageLogger().Info("🔴 Подключено к Redis %s", config.Addr)
	return NewRedisStoreWithClient(client, config.KeyPrefix, config.TTL, codec), nil
}

// NewRedisStoreWithClient оборачивает готовый клиент
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration, codec *Codec) *RedisStore {
	return &RedisStore{client: client, codec: codec, keyPrefix: keyPrefix, ttl: ttl}
}

func (rs *RedisStore) snapKey(episodeID string, tick int) string {
	return rs.keyPrefix + "snap:" + episodeID + ":" + strconv.Itoa(tick)
}

func (rs *RedisStore) ticksKey(episodeID string) string {
	return rs.keyPrefix + "ticks:" + episodeID
}

func (rs *RedisStore) episodesKey() string {
	return rs.keyPrefix + "episodes"
}

// Save сохраняет тик одним пайплайном
func (rs *RedisStore) Save(ctx context.Context, rec Record) error {
	data, err := rs.codec.Encode(rec)
	if err != nil {
		return err
	}

	pipe := rs.client.TxPipeline()
	pipe.Set(ctx, rs.snapKey(rec.EpisodeID, rec.Tick), data, rs.ttl)
	pipe.ZAdd(ctx, rs.ticksKey(rec.EpisodeID), &redis.Z{Score: float64(rec.Tick), Member: rec.Tick})
	pipe.SAdd(ctx, rs.episodesKey(), rec.EpisodeID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("ошибка сохранения тика в Redis: %w", err)
	}
	return nil
}

// Load загружает тик
func (rs *RedisStore) Load(ctx context.Context, episodeID string, tick int) (Record, bool, error) {
	data, err := rs.client.Get(ctx, rs.snapKey(episodeID, tick)).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	} else if err != nil {
		return Record{}, false, fmt.Errorf("ошибка чтения тика из Redis: %w", err)
	}

	rec, err := rs.codec.Decode(data)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Range возвращает тики from..to по возрастанию. Тики с истёкшим TTL пропускаются.
func (rs *RedisStore) Range(ctx context.Context, episodeID string, from, to int) ([]Record, error) {
	members, err := rs.client.ZRangeByScore(ctx, rs.ticksKey(episodeID), &redis.ZRangeBy{
		Min: strconv.Itoa(from),
		Max: strconv.Itoa(to),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения индекса тиков: %w", err)
	}
	if len(members) == 0 {
		return []Record{}, nil
	}

	// Получаем данные пайплайном
	pipe := rs.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(members))
	for i, m := range members {
		tick, err := strconv.Atoi(m)
		if err != nil {
			return nil, fmt.Errorf("повреждён индекс тиков: %q", m)
		}
		cmds[i] = pipe.Get(ctx, rs.snapKey(episodeID, tick))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("ошибка чтения тиков из Redis: %w", err)
	}

	result := make([]Record, 0, len(cmds))
	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err == redis.Nil {
			continue
		} else if err != nil {
			return nil, err
		}
		rec, err := rs.codec.Decode(data)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// Episodes возвращает ID эпизодов
func (rs *RedisStore) Episodes(ctx context.Context) ([]string, error) {
	ids, err := rs.client.SMembers(ctx, rs.episodesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка эпизодов: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

// Close закрывает соединение
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
