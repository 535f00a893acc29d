package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Поддерживаемые SQL драйверы
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// SQLStore хранит тики в таблице replay_ticks. Работает поверх SQLite
// (встроенный файл) или MySQL/MariaDB. Запросы общие для обоих диалектов.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	codec  *Codec
}

// tickRow - строка таблицы replay_ticks
type tickRow struct {
	EpisodeID  string `db:"episode_id"`
	Tick       int    `db:"tick"`
	RecordedAt int64  `db:"recorded_at"`
	Data       []byte `db:"data"`
}

// OpenSQLite открывает или создаёт файл SQLite
func OpenSQLite(path string, codec *Codec) (*SQLStore, error) {
	return OpenSQL(DriverSQLite, path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", codec)
}

// OpenSQL открывает БД и создаёт таблицу, если её нет.
//
// Параметры:
//
//	driver - DriverSQLite или DriverMySQL
//	dsn - путь к файлу или строка подключения (user:pass@tcp(host:port)/dbname)
func OpenSQL(driver, dsn string, codec *Codec) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, fmt.Errorf("неподдерживаемый SQL драйвер: %s", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// SQLite не любит параллельных писателей
		db.SetMaxOpenConns(1)
	}

	store := &SQLStore{db: db, driver: driver, codec: codec}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("не удалось создать таблицу: %w", err)
	}
	return store, nil
}

func (s *SQLStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS replay_ticks (
			episode_id  VARCHAR(64) NOT NULL,
			tick        INTEGER     NOT NULL,
			recorded_at BIGINT      NOT NULL,
			data        BLOB        NOT NULL,
			PRIMARY KEY (episode_id, tick)
		)`
	_, err := s.db.Exec(schema)
	return err
}

// Save сохраняет тик. REPLACE INTO понимают и SQLite, и MySQL.
func (s *SQLStore) Save(ctx context.Context, rec Record) error {
	data, err := s.codec.Encode(rec)
	if err != nil {
		return err
	}

	row := tickRow{
		EpisodeID:  rec.EpisodeID,
		Tick:       rec.Tick,
		RecordedAt: rec.RecordedAt.UnixNano(),
		Data:       data,
	}
	_, err = s.db.NamedExecContext(ctx, `
		REPLACE INTO replay_ticks (episode_id, tick, recorded_at, data)
		VALUES (:episode_id, :tick, :recorded_at, :data)`, row)
	if err != nil {
		return fmt.Errorf("ошибка сохранения тика %d: %w", rec.Tick, err)
	}
	return nil
}

// Load загружает тик
func (s *SQLStore) Load(ctx context.Context, episodeID string, tick int) (Record, bool, error) {
	var row tickRow
	err := s.db.GetContext(ctx, &row,
		`SELECT episode_id, tick, recorded_at, data FROM replay_ticks WHERE episode_id = ? AND tick = ?`,
		episodeID, tick)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("ошибка чтения тика %d: %w", tick, err)
	}

	rec, err := s.decode(row)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Range возвращает тики from..to по возрастанию
func (s *SQLStore) Range(ctx context.Context, episodeID string, from, to int) ([]Record, error) {
	var rows []tickRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT episode_id, tick, recorded_at, data FROM replay_ticks
		WHERE episode_id = ? AND tick BETWEEN ? AND ?
		ORDER BY tick`, episodeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения диапазона тиков: %w", err)
	}

	result := make([]Record, 0, len(rows))
	for _, row := range rows {
		rec, err := s.decode(row)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// Episodes возвращает ID эпизодов
func (s *SQLStore) Episodes(ctx context.Context) ([]string, error) {
	ids := make([]string, 0)
	err := s.db.SelectContext(ctx, &ids, `SELECT DISTINCT episode_id FROM replay_ticks ORDER BY episode_id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения списка эпизодов: %w", err)
	}
	return ids, nil
}

// Close закрывает соединение с БД
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) decode(row tickRow) (Record, error) {
	rec, err := s.codec.Decode(row.Data)
	if err != nil {
		return Record{}, fmt.Errorf("тик %d эпизода %s: %w", row.Tick, row.EpisodeID, err)
	}
	if rec.RecordedAt.IsZero() && row.RecordedAt != 0 {
		rec.RecordedAt = time.Unix(0, row.RecordedAt).UTC()
	}
	return rec, nil
}
