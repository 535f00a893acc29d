package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/annel0/rescue-sim/internal/auth"
	"github.com/annel0/rescue-sim/internal/config"
	"github.com/annel0/rescue-sim/internal/eventbus"
	"github.com/annel0/rescue-sim/internal/storage"
)

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигурации (или RESCUE_CONFIG)")
		command    = flag.String("cmd", "episodes", "Command: episodes, ticks, tail, token, hash")
		episode    = flag.String("episode", "", "ID эпизода для ticks")
		from       = flag.Int("from", 0, "Первый тик диапазона")
		to         = flag.Int("to", 1<<31-1, "Последний тик диапазона")
		eventTypes = flag.String("types", "", "Event types filter (comma-separated)")
		operator   = flag.String("operator", "cli", "Имя оператора для token")
		role       = flag.String("role", auth.RoleOperator, "Роль для token: operator, viewer")
		ttl        = flag.Duration("ttl", 24*time.Hour, "Срок действия токена")
		password   = flag.String("password", "", "Пароль для hash")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *command {
	case "episodes":
		err = withStore(ctx, cfg.Storage, listEpisodes)
	case "ticks":
		if *episode == "" {
			log.Fatalf("❌ -episode is required for ticks")
		}
		err = withStore(ctx, cfg.Storage, func(ctx context.Context, store storage.SnapshotStore) error {
			return showTicks(ctx, store, *episode, *from, *to)
		})
	case "tail":
		err = tailEvents(ctx, cfg.EventBus, parseStringList(*eventTypes))
	case "token":
		err = issueToken(cfg.Server.GetJWTSecret(), *operator, *role, *ttl)
	case "hash":
		err = hashPassword(*password)
	default:
		fmt.Printf("❌ Unknown command: %s\n", *command)
		fmt.Println("Available commands: episodes, ticks, tail, token, hash")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("❌ %s failed: %v", *command, err)
	}
}

func withStore(ctx context.Context, cfg config.StorageConfig, fn func(context.Context, storage.SnapshotStore) error) error {
	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("storage backend %q не хранит реплеи", cfg.Backend)
	}
	defer store.Close()
	return fn(ctx, store)
}

// listEpisodes выводит эпизоды с числом тиков
func listEpisodes(ctx context.Context, store storage.SnapshotStore) error {
	episodes, err := store.Episodes(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("📼 Episodes: %d\n", len(episodes))
	for _, id := range episodes {
		records, err := store.Range(ctx, id, 0, 1<<31-1)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Printf("  %s: пусто\n", id)
			continue
		}
		last := records[len(records)-1]
		fmt.Printf("  %s: %d ticks, last tick %d (%s)\n",
			id, len(records), last.Tick, humanize.Time(last.RecordedAt))
	}
	return nil
}

// showTicks выводит итоги тиков эпизода
func showTicks(ctx context.Context, store storage.SnapshotStore, episodeID string, from, to int) error {
	records, err := store.Range(ctx, episodeID, from, to)
	if err != nil {
		return err
	}
	fmt.Printf("🎬 Episode %s, ticks %d..%d\n", episodeID, from, to)

	var size uint64
	for _, rec := range records {
		info := rec.Info
		fmt.Printf("[%05d] agents=%d committed=%d rejected=%d detections=%d messages=%d\n",
			rec.Tick, len(rec.Snapshot.Agents), info.Committed, info.Rejected, len(info.Detections), info.Messages)
		if data, err := json.Marshal(rec); err == nil {
			size += uint64(len(data))
		}
	}
	fmt.Printf("\n📊 Total ticks: %d, JSON size: %s\n", len(records), humanize.Bytes(size))
	return nil
}

// tailEvents выводит события шины в реальном времени
func tailEvents(ctx context.Context, cfg config.EventBusConfig, types []string) error {
	if cfg.URL == "" {
		return fmt.Errorf("eventbus.url не задан: in-memory шина недоступна извне процесса")
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return err
	}
	defer bus.Close()

	fmt.Printf("🎬 Tailing %s (types: %v)\n", cfg.Stream, types)
	sub, err := bus.Subscribe(ctx, eventbus.Filter{Types: types}, func(ctx context.Context, ev *eventbus.Envelope) {
		printEvent(ev)
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	<-ctx.Done()
	return nil
}

// printEvent выводит событие в читаемом формате
func printEvent(ev *eventbus.Envelope) {
	fmt.Printf("[%s] %s/%s [%s] %s\n",
		ev.Timestamp.Format("15:04:05"), ev.CorrelationID, ev.Source, ev.EventType, ev.ID)

	switch ev.EventType {
	case eventbus.EventTickCompleted:
		var e eventbus.TickEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Tick: %d committed=%d rejected=%d done=%v\n", e.Tick, e.Committed, e.Rejected, e.Done)
		}
	case eventbus.EventPatientDetected:
		var e eventbus.DetectionEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Patient: %s distance=%.1f\n", e.Detection.Position, e.Detection.Distance)
		}
	case eventbus.EventMoveRejected:
		var e eventbus.MoveRejectedEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Agent %d (%s): %s -> %s\n", e.AgentID, e.Kind, e.From, e.To)
		}
	case eventbus.EventEpisodeFinished:
		var e eventbus.EpisodeEvent
		if ev.Decode(&e) == nil {
			fmt.Printf("  Finished after %d ticks: %s\n", e.Ticks, e.Reason)
		}
	}
}

// issueToken печатает JWT оператора для управляющих эндпоинтов
func issueToken(secret, operator, role string, ttl time.Duration) error {
	if secret == "" {
		return fmt.Errorf("server.jwt_secret или RESCUE_JWT_SECRET не задан")
	}
	tokens, err := auth.NewTokenIssuer(secret, ttl)
	if err != nil {
		return err
	}
	token, err := tokens.Issue(operator, role)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// hashPassword печатает bcrypt хеш для server.operators[].password_hash
func hashPassword(password string) error {
	if password == "" {
		return fmt.Errorf("-password is required for hash")
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// parseStringList парсит строку с разделителями-запятыми
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
