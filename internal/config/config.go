package config

import (
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/errs"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/world"
)

// ConfigEnv - переменная окружения с путём к конфигурации
const ConfigEnv = "RESCUE_CONFIG"

// Config корневая структура конфигурации симулятора
type Config struct {
	Environment EnvironmentConfig `yaml:"environment"`
	Observer    ObserverConfig    `yaml:"observer"`
	Layout      LayoutConfig      `yaml:"layout"`
	Patients    []Position        `yaml:"patients"`
	Obstacles   []ObstacleConfig  `yaml:"obstacles"`
	Agents      []AgentConfig     `yaml:"agents"`
	Run         RunConfig         `yaml:"run"`
	Logging     LoggingConfig     `yaml:"logging"`
	Storage     StorageConfig     `yaml:"storage"`
	EventBus    EventBusConfig    `yaml:"eventbus"`
	Server      ServerConfig      `yaml:"server"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Webhooks    []WebhookConfig   `yaml:"webhooks"`
}

// Position - координаты в YAML в виде [x, y]
type Position []int

// Vec2 переводит позицию в вектор. Длину проверяет Validate.
func (p Position) Vec2() vec.Vec2 {
	if len(p) != 2 {
		return vec.Vec2{}
	}
	return vec.Vec2{X: p[0], Y: p[1]}
}

type EnvironmentConfig struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	GridSize           int     `yaml:"grid_size"`
	ObstacleSize       float64 `yaml:"obstacle_size"`
	SpeedLimit         bool    `yaml:"speed_limit"`
	PersistentMessages bool    `yaml:"persistent_messages"`
	HistoryLimit       int     `yaml:"history_limit"`
}

type ObserverConfig struct {
	Position      Position `yaml:"position"`
	ViewRange     float64  `yaml:"view_range"`
	FOVDegrees    float64  `yaml:"fov_degrees"`
	RotationSpeed float64  `yaml:"rotation_speed"` // градусов за тик
	Heading       float64  `yaml:"heading_degrees"`
}

type LayoutConfig struct {
	Name string `yaml:"name"` // default, perlin, empty
	Seed int64  `yaml:"seed"`
}

type ObstacleConfig struct {
	Position Position `yaml:"position"`
	Kind     string   `yaml:"kind"`
}

type AgentConfig struct {
	ID       *int       `yaml:"id"`
	Kind     string     `yaml:"kind"`
	Position Position   `yaml:"position"`
	Policy   string     `yaml:"policy"`
	Script   []Position `yaml:"script"`
	Loop     bool       `yaml:"loop"`
}

type RunConfig struct {
	MaxTicks     int           `yaml:"max_ticks"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Seed         int64         `yaml:"seed"`
	ReachRadius  float64       `yaml:"reach_radius"` // 0 - эпизод не завершается сам
	EpisodeID    string        `yaml:"episode_id"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	Component string `yaml:"component"`
	File      bool   `yaml:"file"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"` // none, memory, badger, redis, sqlite, mysql, mongo
	Path        string `yaml:"path"`
	DSN         string `yaml:"dsn"`
	RedisAddr   string `yaml:"redis_addr"`
	MongoURI    string `yaml:"mongo_uri"`
	Database    string `yaml:"database"`
	Compression bool   `yaml:"compression"`
}

type EventBusConfig struct {
	URL       string `yaml:"url"`
	Stream    string `yaml:"stream"`
	Retention int    `yaml:"retention_hours"`
}

type ServerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RESTPort    int    `yaml:"rest_port"`
	MetricsPort int    `yaml:"metrics_port"`
	JWTSecret   string `yaml:"jwt_secret"`

	Operators []OperatorConfig `yaml:"operators"`
}

// OperatorConfig - учётная запись для POST /api/login
type OperatorConfig struct {
	Name         string `yaml:"name"`
	PasswordHash string `yaml:"password_hash"` // bcrypt, см. replay-cli -cmd hash
	Role         string `yaml:"role"`          // operator или viewer
}

// WebhookConfig - исходящий webhook для событий эпизода
type WebhookConfig struct {
	Name       string        `yaml:"name"`
	URL        string        `yaml:"url"`
	Secret     string        `yaml:"secret"`
	Events     []string      `yaml:"events"` // "*" - все события
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// GetRESTPort возвращает REST API порт с поддержкой fallback значений
func (s *ServerConfig) GetRESTPort() int {
	return getPortWithEnvFallback(s.RESTPort, "RESCUE_REST_PORT", 8088)
}

// GetMetricsPort возвращает Prometheus метрики порт с поддержкой fallback значений
func (s *ServerConfig) GetMetricsPort() int {
	return getPortWithEnvFallback(s.MetricsPort, "RESCUE_METRICS_PORT", 2112)
}

// GetJWTSecret возвращает секрет для токенов: config -> env RESCUE_JWT_SECRET
func (s *ServerConfig) GetJWTSecret() string {
	if s.JWTSecret != "" {
		return s.JWTSecret
	}
	return os.Getenv("RESCUE_JWT_SECRET")
}

// getPortWithEnvFallback возвращает порт с приоритетом: config -> env -> default
func getPortWithEnvFallback(configPort int, envVar string, defaultPort int) int {
	if configPort > 0 {
		return configPort
	}

	if envVal := os.Getenv(envVar); envVal != "" {
		if port, err := strconv.Atoi(envVal); err == nil && port > 0 {
			return port
		}
	}

	return defaultPort
}

func intPtr(v int) *int { return &v }

// Default возвращает классическую миссию: карта по умолчанию, два дрона
// и колёсный агент у левого края.
func Default() *Config {
	return &Config{
		Environment: EnvironmentConfig{
			Width:        world.DefaultWidth,
			Height:       world.DefaultHeight,
			GridSize:     world.DefaultGridSize,
			ObstacleSize: world.DefaultObstacleSize,
			HistoryLimit: 64,
		},
		Observer: ObserverConfig{
			Position:      Position{100, 300},
			ViewRange:     800,
			FOVDegrees:    60,
			RotationSpeed: 2,
		},
		Layout: LayoutConfig{Name: "default"},
		Agents: []AgentConfig{
			{ID: intPtr(0), Kind: "drone", Position: Position{100, 100}, Policy: "seek"},
			{ID: intPtr(1), Kind: "drone", Position: Position{100, 130}, Policy: "seek"},
			{ID: intPtr(2), Kind: "wheeled", Position: Position{100, 160}, Policy: "seek"},
		},
		Run: RunConfig{
			MaxTicks:     1000,
			TickInterval: 50 * time.Millisecond,
			ReachRadius:  5,
		},
		Logging:  LoggingConfig{Level: "info", Component: "rescue"},
		Storage:  StorageConfig{Backend: "memory"},
		EventBus: EventBusConfig{Stream: "RESCUE_EVENTS", Retention: 24},
		Server:   ServerConfig{Enabled: true},
		Telemetry: TelemetryConfig{
			ServiceName: "rescue-sim",
		},
	}
}

// Load читает YAML файл конфигурации поверх значений по умолчанию.
// Если path == "", пытается прочитать из ENV RESCUE_CONFIG или возвращает Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(ConfigEnv)
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse разбирает YAML и проверяет результат
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// Агенты из файла заменяют агентов по умолчанию, а не дополняют их
	cfg.Agents = nil
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errs.Configuration("yaml", "%v", err)
	}
	if cfg.Agents == nil {
		cfg.Agents = Default().Agents
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет размеры, позиции и имена типов
func (c *Config) Validate() error {
	env := c.Environment
	if env.Width <= 0 || env.Height <= 0 {
		return errs.Configuration("environment", "размеры мира должны быть положительными: %dx%d", env.Width, env.Height)
	}
	if env.GridSize <= 0 {
		return errs.Configuration("environment.grid_size", "шаг сетки должен быть положительным")
	}
	if env.ObstacleSize <= 0 {
		return errs.Configuration("environment.obstacle_size", "размер препятствия должен быть положительным")
	}
	if c.Observer.ViewRange < 0 {
		return errs.Configuration("observer.view_range", "дальность обзора не может быть отрицательной")
	}
	if err := checkPosition("observer.position", c.Observer.Position); err != nil {
		return err
	}

	for i, p := range c.Patients {
		if err := checkPosition(indexed("patients", i), p); err != nil {
			return err
		}
	}
	for i, o := range c.Obstacles {
		if err := checkPosition(indexed("obstacles", i)+".position", o.Position); err != nil {
			return err
		}
		if _, err := world.ParseObstacleKind(o.Kind); err != nil {
			return errs.Configuration(indexed("obstacles", i)+".kind", "неизвестный тип препятствия %q", o.Kind)
		}
	}
	for i, a := range c.Agents {
		field := indexed("agents", i)
		if err := checkPosition(field+".position", a.Position); err != nil {
			return err
		}
		if _, err := agent.ParseKind(a.Kind); err != nil {
			return errs.Configuration(field+".kind", "неизвестный тип агента %q", a.Kind)
		}
		for j, step := range a.Script {
			if err := checkPosition(field+".script["+strconv.Itoa(j)+"]", step); err != nil {
				return err
			}
		}
	}
	for i, wh := range c.Webhooks {
		if wh.URL == "" || len(wh.Events) == 0 {
			return errs.Configuration(indexed("webhooks", i), "обязательные поля: url, events")
		}
	}
	for i, op := range c.Server.Operators {
		if op.Name == "" || op.PasswordHash == "" {
			return errs.Configuration(indexed("server.operators", i), "обязательные поля: name, password_hash")
		}
	}
	if c.Run.MaxTicks < 0 {
		return errs.Configuration("run.max_ticks", "не может быть отрицательным")
	}
	return nil
}

func checkPosition(field string, p Position) error {
	if len(p) != 2 {
		return errs.Configuration(field, "позиция должна быть парой [x, y], получено %v", []int(p))
	}
	return nil
}

func indexed(field string, i int) string {
	return field + "[" + strconv.Itoa(i) + "]"
}
