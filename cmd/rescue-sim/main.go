package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/rescue-sim/internal/api"
	"github.com/annel0/rescue-sim/internal/auth"
	"github.com/annel0/rescue-sim/internal/config"
	"github.com/annel0/rescue-sim/internal/eventbus"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/metrics"
	"github.com/annel0/rescue-sim/internal/observability"
	"github.com/annel0/rescue-sim/internal/registry"
	"github.com/annel0/rescue-sim/internal/sim"
	"github.com/annel0/rescue-sim/internal/storage"
	"github.com/annel0/rescue-sim/internal/webhook"
)

func main() {
	var (
		configPath = flag.String("config", "", "Путь к YAML конфигурации (или RESCUE_CONFIG)")
		episodeID  = flag.String("episode", "", "ID эпизода (по умолчанию UUID)")
		maxTicks   = flag.Int("ticks", -1, "Лимит тиков, перекрывает run.max_ticks")
		paused     = flag.Bool("paused", false, "Запустить эпизод на паузе")
		stay       = flag.Bool("stay", false, "Не останавливать REST API после завершения эпизода")
	)
	flag.Parse()

	if err := run(*configPath, *episodeID, *maxTicks, *paused, *stay); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(configPath, episodeID string, maxTicks int, paused, stay bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	if episodeID != "" {
		cfg.Run.EpisodeID = episodeID
	}
	if maxTicks >= 0 {
		cfg.Run.MaxTicks = maxTicks
	}

	if err := setupLogging(cfg.Logging); err != nil {
		return err
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()

	logging.Info("🚑 Запуск симулятора спасательной миссии...")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// === ТЕЛЕМЕТРИЯ ===
	shutdownTelemetry, err := observability.InitTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("ошибка инициализации телеметрии: %w", err)
	}
	defer shutdownTelemetry(context.Background())

	// === ХРАНИЛИЩЕ ===
	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("ошибка открытия хранилища %s: %w", cfg.Storage.Backend, err)
	}
	if store != nil {
		defer store.Close()
		logging.Info("💾 Хранилище реплеев: %s", backendName(cfg.Storage.Backend))
	}

	// === WEBHOOK'И ===
	// Закрываются после шины, чтобы получить EpisodeFinished
	hooks := webhook.NewManager(logging.GetComponentLogger("webhook"))
	defer hooks.Close()
	hooks.FromConfig(cfg.Webhooks)

	// === ШИНА СОБЫТИЙ ===
	bus, err := openBus(cfg.EventBus)
	if err != nil {
		return err
	}
	defer bus.Close()
	if _, err := eventbus.StartLoggingListener(bus, logging.GetComponentLogger("eventbus")); err != nil {
		return err
	}
	if _, err := hooks.Attach(bus); err != nil {
		return err
	}

	// === МЕТРИКИ ===
	reg := metrics.NewRegistry()
	simMetrics, err := metrics.NewSimMetrics(reg)
	if err != nil {
		return err
	}
	process := metrics.NewProcessStats()
	if err := process.RegisterGauges(reg); err != nil {
		return err
	}
	busExporter, err := eventbus.NewMetricsExporter(bus, reg)
	if err != nil {
		return err
	}
	busExporter.Start(5 * time.Second)
	defer busExporter.Stop()

	// === ЭПИЗОД ===
	opts := []sim.Option{
		sim.WithStore(store),
		sim.WithBus(bus),
		sim.WithMetrics(simMetrics),
		sim.WithLogger(logging.GetRunnerLogger()),
	}
	if paused {
		opts = append(opts, sim.WithPaused())
	}
	runner, err := sim.Build(cfg, registry.Default(), opts...)
	if err != nil {
		return fmt.Errorf("ошибка сборки эпизода: %w", err)
	}

	// === REST API ===
	var server *api.Server
	if cfg.Server.Enabled {
		tokens, err := auth.NewTokenIssuer(cfg.Server.GetJWTSecret(), 24*time.Hour)
		if err != nil {
			return fmt.Errorf("ошибка настройки JWT: %w", err)
		}
		if cfg.Server.GetJWTSecret() == "" {
			token, err := tokens.Issue("local", auth.RoleOperator)
			if err == nil {
				logging.Warn("🔐 Секрет JWT не задан, используется случайный. Токен оператора: %s", token)
			}
		}

		var accounts *auth.Credentials
		if len(cfg.Server.Operators) > 0 {
			ops := make([]auth.Operator, 0, len(cfg.Server.Operators))
			for _, op := range cfg.Server.Operators {
				ops = append(ops, auth.Operator{Name: op.Name, PasswordHash: op.PasswordHash, Role: op.Role})
			}
			if accounts, err = auth.NewCredentials(ops); err != nil {
				return fmt.Errorf("ошибка настройки операторов: %w", err)
			}
			logging.Info("🔑 Загружено операторов: %d", accounts.Len())
		}

		server, err = api.NewServer(api.Config{
			Addr:     fmt.Sprintf(":%d", cfg.Server.GetRESTPort()),
			Runner:   runner,
			Store:    store,
			Tokens:   tokens,
			Accounts: accounts,
			Registry: reg,
			Process:  process,
			Webhooks: hooks,
			Logger:   logging.GetAPILogger(),
		})
		if err != nil {
			return err
		}
		go func() {
			if err := server.Start(); err != nil {
				logging.Error("❌ Ошибка REST API сервера: %v", err)
			}
		}()
	} else {
		eventbus.StartHTTP(fmt.Sprintf(":%d", cfg.Server.GetMetricsPort()), reg)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("эпизод %s прерван: %w", runner.EpisodeID(), err)
	}
	logging.Info("📊 Итог: эпизод %s, тиков %d, причина %s", summary.EpisodeID, summary.Ticks, summary.Reason)

	if server != nil {
		if stay && ctx.Err() == nil {
			logging.Info("🌐 Эпизод завершён, REST API продолжает работу до сигнала завершения")
			<-ctx.Done()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logging.Error("❌ Ошибка при остановке HTTP сервера: %v", err)
		}
	}

	logging.Info("✅ Симулятор остановлен")
	return nil
}

func setupLogging(cfg config.LoggingConfig) error {
	component := cfg.Component
	if component == "" {
		component = "rescue"
	}
	if cfg.File {
		if err := logging.InitDefaultLogger(component); err != nil {
			return fmt.Errorf("ошибка инициализации логирования: %w", err)
		}
	} else {
		logging.SetDefaultLogger(logging.NewWriterLogger(component, os.Stdout, logging.INFO))
	}
	if cfg.Level != "" {
		level, err := logging.ParseLevel(cfg.Level)
		if err != nil {
			return err
		}
		logging.SetLevel(level)
	}
	return nil
}

func openBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, time.Duration(cfg.Retention)*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к NATS %s: %w", cfg.URL, err)
	}
	logging.Info("📨 Шина событий: JetStream %s, стрим %s", cfg.URL, cfg.Stream)
	return bus, nil
}

func backendName(backend string) string {
	if backend == "" {
		return "memory"
	}
	return strings.ToLower(backend)
}
