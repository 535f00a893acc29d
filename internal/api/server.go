// Package api - REST API симулятора: снимки, реплеи, метрики и управление циклом.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/annel0/rescue-sim/internal/auth"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/metrics"
	"github.com/annel0/rescue-sim/internal/middleware"
	"github.com/annel0/rescue-sim/internal/sim"
	"github.com/annel0/rescue-sim/internal/storage"
	"github.com/annel0/rescue-sim/internal/webhook"
)

// Config содержит зависимости REST сервера
type Config struct {
	Addr     string                // адрес для запуска сервера (":8088")
	Runner   *sim.Runner           // цикл эпизода
	Store    storage.SnapshotStore // хранилище реплеев, nil - runner.Store()
	Tokens   *auth.TokenIssuer     // проверка токенов операторов
	Accounts *auth.Credentials     // пароли операторов для /api/login, nil - вход выключен
	Registry *prometheus.Registry  // реестр метрик для /metrics
	Process  *metrics.ProcessStats // метрики процесса для /api/stats
	Webhooks *webhook.Manager      // исходящие webhook'и, nil - эндпоинты выключены
	Logger   *logging.Logger
}

// GenericResponse представляет общий ответ API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Server представляет REST API сервер
type Server struct {
	router     *gin.Engine
	cfg        Config
	store      storage.SnapshotStore
	logger     *logging.Logger
	httpServer *http.Server
}

// NewServer создает REST сервер и настраивает маршруты
func NewServer(cfg Config) (*Server, error) {
	if cfg.Runner == nil || cfg.Tokens == nil {
		return nil, errors.New("api: runner и tokens обязательны")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8088"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Process == nil {
		cfg.Process = metrics.NewProcessStats()
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.GetAPILogger()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()        // без стандартного logger/recovery
	router.Use(gin.Recovery()) // добавим только recovery

	// === Observability middleware ===
	router.Use(otelgin.Middleware("rest_api"))
	router.Use(middleware.NewRequestLogger(cfg.Logger).Handler())

	promMw, err := middleware.NewPrometheusMiddleware("rest_api", cfg.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	middleware.RegisterMetricsEndpoint(router, cfg.Registry)

	store := cfg.Store
	if store == nil {
		store = cfg.Runner.Store()
	}

	s := &Server{
		router: router,
		cfg:    cfg,
		store:  store,
		logger: cfg.Logger,
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes настраивает маршруты REST API
func (s *Server) setupRoutes() {
	s.router.Use(cors())

	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleStream)

	api := s.router.Group("/api")
	{
		api.POST("/login", s.handleLogin)

		api.GET("/status", s.handleStatus)
		api.GET("/stats", s.handleStats)
		api.GET("/snapshot", s.handleSnapshot)
		api.GET("/observations", s.handleObservations)
		api.GET("/detections", s.handleDetections)
		api.GET("/spaces", s.handleSpaces)
		api.GET("/map", s.handleMap)

		api.GET("/episodes", s.handleEpisodes)
		api.GET("/episodes/:id/ticks", s.handleEpisodeTicks)
		api.GET("/episodes/:id/ticks/:tick", s.handleEpisodeTick)
	}

	// Управление циклом (требует токен оператора)
	control := api.Group("/control")
	control.Use(s.jwtMiddleware(), s.operatorMiddleware())
	{
		control.POST("/pause", s.handlePause)
		control.POST("/resume", s.handleResume)
		control.POST("/step", s.handleStep)
	}

	if s.cfg.Webhooks != nil {
		hooks := api.Group("/webhooks")
		hooks.Use(s.jwtMiddleware(), s.operatorMiddleware())
		{
			hooks.GET("", s.handleListWebhooks)
			hooks.POST("", s.handleCreateWebhook)
			hooks.DELETE("/:id", s.handleDeleteWebhook)
		}
	}
}

// Handler возвращает http.Handler сервера (для тестов и встраивания)
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start запускает REST сервер и блокируется до Shutdown
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("🌐 REST API сервер запущен на http://localhost%s", s.cfg.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("🛑 Остановка REST API сервера...")
	return s.httpServer.Shutdown(ctx)
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, GenericResponse{Success: false, Message: message})
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: message, Data: data})
}
