package api

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"

	"github.com/annel0/rescue-sim/internal/physics"
	"github.com/annel0/rescue-sim/internal/sim"
	"github.com/annel0/rescue-sim/internal/webhook"
	"github.com/annel0/rescue-sim/internal/world"
)

// handleHealth проверка состояния сервера
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Unix(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	respondOK(c, "Состояние цикла", s.cfg.Runner.Status())
}

// handleStats возвращает метрики процесса и состояние эпизода
func (s *Server) handleStats(c *gin.Context) {
	last := s.cfg.Runner.Last()
	respondOK(c, "Статистика получена", gin.H{
		"process": s.cfg.Process.Summary(),
		"episode": s.cfg.Runner.Status(),
		"last_tick": gin.H{
			"committed":  last.Info.Committed,
			"rejected":   last.Info.Rejected,
			"detections": len(last.Info.Detections),
			"messages":   last.Info.Messages,
		},
	})
}

func (s *Server) handleSnapshot(c *gin.Context) {
	respondOK(c, "Снимок мира", s.cfg.Runner.Last().Snapshot)
}

// handleObservations возвращает наблюдения агентов; ?agent=<id> - одного агента
func (s *Server) handleObservations(c *gin.Context) {
	observations := s.cfg.Runner.Last().Observations
	raw, ok := c.GetQuery("agent")
	if !ok {
		respondOK(c, "Наблюдения агентов", observations)
		return
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный ID агента")
		return
	}
	for _, obs := range observations {
		if obs.AgentID == id {
			respondOK(c, "Наблюдение агента", obs)
			return
		}
	}
	respondError(c, http.StatusNotFound, "Агент не найден")
}

func (s *Server) handleDetections(c *gin.Context) {
	respondOK(c, "Обнаружения последнего тика", s.cfg.Runner.Last().Info.Detections)
}

func (s *Server) handleSpaces(c *gin.Context) {
	w := s.cfg.Runner.Engine().World()
	respondOK(c, "Пространства наблюдений и действий", gin.H{
		"observation": w.ObservationSpace(),
		"action":      w.ActionSpace(),
	})
}

// handleMap отдаёт карту последнего снимка в GeoJSON: препятствия - квадраты,
// пациенты и агенты - точки.
func (s *Server) handleMap(c *gin.Context) {
	snap := s.cfg.Runner.Last().Snapshot
	collider := physics.NewBoxCollider(s.cfg.Runner.Engine().World().ObstacleSize())
	c.JSON(http.StatusOK, buildMap(snap, collider))
}

func buildMap(snap world.Snapshot, collider *physics.BoxCollider) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, o := range snap.Obstacles {
		f := geojson.NewFeature(collider.Bound(o.Position).ToPolygon())
		f.Properties["type"] = "obstacle"
		f.Properties["kind"] = o.Kind
		fc.Append(f)
	}
	for _, p := range snap.Patients {
		f := geojson.NewFeature(physics.ToPoint(p))
		f.Properties["type"] = "patient"
		fc.Append(f)
	}
	for _, a := range snap.Agents {
		f := geojson.NewFeature(physics.ToPoint(a.Position))
		f.Properties["type"] = "agent"
		f.Properties["id"] = a.ID
		f.Properties["kind"] = a.Kind
		fc.Append(f)
	}
	return fc
}

// === РЕПЛЕИ ===

func (s *Server) requireStore(c *gin.Context) bool {
	if s.store == nil {
		respondError(c, http.StatusServiceUnavailable, "Хранилище реплеев не настроено")
		return false
	}
	return true
}

func (s *Server) handleEpisodes(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	episodes, err := s.store.Episodes(c.Request.Context())
	if err != nil {
		s.logger.Error("❌ Ошибка чтения списка эпизодов: %v", err)
		respondError(c, http.StatusInternalServerError, "Ошибка хранилища")
		return
	}
	respondOK(c, "Список эпизодов", gin.H{"episodes": episodes, "total": len(episodes)})
}

// handleEpisodeTicks возвращает тики эпизода в диапазоне ?from=&to= (включительно)
func (s *Server) handleEpisodeTicks(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	from, err := strconv.Atoi(c.DefaultQuery("from", "0"))
	if err != nil || from < 0 {
		respondError(c, http.StatusBadRequest, "Неверный параметр from")
		return
	}
	to, err := strconv.Atoi(c.DefaultQuery("to", strconv.Itoa(math.MaxInt32)))
	if err != nil || to < from {
		respondError(c, http.StatusBadRequest, "Неверный параметр to")
		return
	}

	records, err := s.store.Range(c.Request.Context(), c.Param("id"), from, to)
	if err != nil {
		s.logger.Error("❌ Ошибка чтения тиков эпизода %s: %v", c.Param("id"), err)
		respondError(c, http.StatusInternalServerError, "Ошибка хранилища")
		return
	}
	respondOK(c, "Тики эпизода", gin.H{"ticks": records, "total": len(records)})
}

func (s *Server) handleEpisodeTick(c *gin.Context) {
	if !s.requireStore(c) {
		return
	}
	tick, err := strconv.Atoi(c.Param("tick"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный номер тика")
		return
	}

	rec, found, err := s.store.Load(c.Request.Context(), c.Param("id"), tick)
	if err != nil {
		s.logger.Error("❌ Ошибка чтения тика %d эпизода %s: %v", tick, c.Param("id"), err)
		respondError(c, http.StatusInternalServerError, "Ошибка хранилища")
		return
	}
	if !found {
		respondError(c, http.StatusNotFound, "Тик не найден")
		return
	}
	respondOK(c, "Тик эпизода", rec)
}

// === УПРАВЛЕНИЕ ЦИКЛОМ ===

func (s *Server) handlePause(c *gin.Context) {
	s.cfg.Runner.Pause()
	respondOK(c, "Эпизод на паузе", s.cfg.Runner.Status())
}

func (s *Server) handleResume(c *gin.Context) {
	s.cfg.Runner.Resume()
	respondOK(c, "Эпизод продолжен", s.cfg.Runner.Status())
}

// handleStep выполняет один тик на паузе
func (s *Server) handleStep(c *gin.Context) {
	result, err := s.cfg.Runner.StepOnce(c.Request.Context())
	if err == sim.ErrNotPaused {
		respondError(c, http.StatusConflict, "Пошаговый режим доступен только на паузе")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, err.Error())
		return
	}
	respondOK(c, "Тик выполнен", result)
}

// === ВХОД ОПЕРАТОРА ===

// LoginRequest представляет запрос на вход
type LoginRequest struct {
	Operator string `json:"operator" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (s *Server) handleLogin(c *gin.Context) {
	if s.cfg.Accounts == nil {
		respondError(c, http.StatusServiceUnavailable, "Вход по паролю не настроен")
		return
	}
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат запроса")
		return
	}
	role, err := s.cfg.Accounts.Authenticate(req.Operator, req.Password)
	if err != nil {
		s.logger.Warn("🔒 Неудачный вход оператора %s", req.Operator)
		respondError(c, http.StatusUnauthorized, "Неверное имя оператора или пароль")
		return
	}
	token, err := s.cfg.Tokens.Issue(req.Operator, role)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "Ошибка генерации токена")
		return
	}
	respondOK(c, "Успешная авторизация", gin.H{"token": token, "role": role})
}

// === ИСХОДЯЩИЕ WEBHOOK'И ===

func (s *Server) handleListWebhooks(c *gin.Context) {
	hooks := s.cfg.Webhooks.List()
	respondOK(c, "Список webhook'ов", gin.H{"webhooks": hooks, "total": len(hooks)})
}

func (s *Server) handleCreateWebhook(c *gin.Context) {
	var hook webhook.Hook
	if err := c.ShouldBindJSON(&hook); err != nil {
		respondError(c, http.StatusBadRequest, "Неверный формат webhook'а: "+err.Error())
		return
	}
	created := s.cfg.Webhooks.Add(hook)
	c.JSON(http.StatusCreated, GenericResponse{Success: true, Message: "Webhook создан", Data: created})
}

func (s *Server) handleDeleteWebhook(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Неверный ID webhook'а")
		return
	}
	if !s.cfg.Webhooks.Remove(id) {
		respondError(c, http.StatusNotFound, "Webhook не найден")
		return
	}
	respondOK(c, "Webhook удалён", nil)
}
