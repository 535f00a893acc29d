// Package webhook пересылает события шины во внешние HTTP-эндпоинты.
package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/annel0/rescue-sim/internal/config"
	"github.com/annel0/rescue-sim/internal/eventbus"
	"github.com/annel0/rescue-sim/internal/logging"
)

const (
	defaultTimeout = 10 * time.Second
	queueSize      = 1000
)

// Hook - исходящий webhook
type Hook struct {
	ID           uint64        `json:"id"`
	Name         string        `json:"name" binding:"required"`
	URL          string        `json:"url" binding:"required"`
	Secret       string        `json:"secret,omitempty"`
	Events       []string      `json:"events" binding:"required"` // События, на которые подписан
	Active       bool          `json:"active"`
	Timeout      time.Duration `json:"timeout"`
	RetryCount   int           `json:"retry_count"`
	CreatedAt    time.Time     `json:"created_at"`
	LastUsed     *time.Time    `json:"last_used,omitempty"`
	FailureCount int           `json:"failure_count"`
}

// Delivery - тело POST-запроса
type Delivery struct {
	EventID   string          `json:"event_id"`
	EventType string          `json:"event_type"`
	EpisodeID string          `json:"episode_id"`
	Timestamp int64           `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// Manager хранит webhook'и и доставляет им события
type Manager struct {
	mu         sync.RWMutex
	hooks      map[uint64]*Hook
	nextID     uint64
	queue      chan Delivery
	httpClient *http.Client
	logger     *logging.Logger
	backoff    time.Duration
	wg         sync.WaitGroup
	closeMu    sync.RWMutex // Держится на чтение на время записи в queue
	closed     bool
}

// NewManager создаёт менеджер и запускает воркер доставки
func NewManager(logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	m := &Manager{
		hooks:      make(map[uint64]*Hook),
		nextID:     1,
		queue:      make(chan Delivery, queueSize),
		httpClient: &http.Client{},
		logger:     logger,
		backoff:    time.Second,
	}
	m.wg.Add(1)
	go m.worker()
	return m
}

// FromConfig регистрирует webhook'и из конфигурации
func (m *Manager) FromConfig(hooks []config.WebhookConfig) {
	for _, h := range hooks {
		m.Add(Hook{
			Name:       h.Name,
			URL:        h.URL,
			Secret:     h.Secret,
			Events:     h.Events,
			Timeout:    h.Timeout,
			RetryCount: h.RetryCount,
		})
	}
}

// Add добавляет webhook и возвращает его копию с назначенным ID
func (m *Manager) Add(hook Hook) Hook {
	m.mu.Lock()
	defer m.mu.Unlock()

	hook.ID = m.nextID
	m.nextID++
	hook.CreatedAt = time.Now()
	hook.Active = true
	if hook.Timeout <= 0 {
		hook.Timeout = defaultTimeout
	}
	if hook.RetryCount < 0 {
		hook.RetryCount = 0
	}

	m.hooks[hook.ID] = &hook
	return hook
}

// Remove удаляет webhook
func (m *Manager) Remove(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.hooks[id]; !ok {
		return false
	}
	delete(m.hooks, id)
	return true
}

// List возвращает копии webhook'ов по возрастанию ID
func (m *Manager) List() []Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := make([]Hook, 0, len(m.hooks))
	for _, h := range m.hooks {
		hooks = append(hooks, *h)
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks
}

// Attach подписывает менеджер на все события шины
func (m *Manager) Attach(bus eventbus.EventBus) (eventbus.Subscription, error) {
	return bus.Subscribe(context.Background(), eventbus.Filter{}, func(ctx context.Context, ev *eventbus.Envelope) {
		m.Enqueue(ev)
	})
}

// Enqueue ставит событие в очередь доставки. При переполнении или после Close
// событие теряется.
func (m *Manager) Enqueue(ev *eventbus.Envelope) {
	d := Delivery{
		EventID:   ev.ID,
		EventType: ev.EventType,
		EpisodeID: ev.CorrelationID,
		Timestamp: ev.Timestamp.Unix(),
		Source:    ev.Source,
		Data:      json.RawMessage(ev.Payload),
	}
	m.closeMu.RLock()
	defer m.closeMu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- d:
	default:
		m.logger.Warn("⚠️ Очередь webhook'ов переполнена, событие %s пропущено", ev.EventType)
	}
}

// Close дожидается отправки событий из очереди
func (m *Manager) Close() {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()
	m.wg.Wait()
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for d := range m.queue {
		for _, hook := range m.subscribed(d.EventType) {
			m.send(hook, d)
		}
	}
}

func (m *Manager) subscribed(eventType string) []Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hooks []Hook
	for _, h := range m.hooks {
		if h.Active && matches(h.Events, eventType) {
			hooks = append(hooks, *h)
		}
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks
}

func matches(events []string, eventType string) bool {
	for _, e := range events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

func (m *Manager) send(hook Hook, d Delivery) {
	body, err := json.Marshal(d)
	if err != nil {
		m.logger.Error("❌ Ошибка маршалинга события для webhook %s: %v", hook.Name, err)
		return
	}

	success := false
	for attempt := 0; attempt <= hook.RetryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * m.backoff)
		}
		status, err := m.post(hook, d.EventType, body)
		if err != nil {
			m.logger.Warn("⚠️ Попытка %d/%d для webhook %s: %v", attempt+1, hook.RetryCount+1, hook.Name, err)
			continue
		}
		if status >= 200 && status < 300 {
			success = true
			m.logger.Debug("✅ Событие %s отправлено в webhook %s", d.EventType, hook.Name)
			break
		}
		m.logger.Warn("⚠️ Webhook %s вернул статус %d на попытке %d", hook.Name, status, attempt+1)
	}

	m.mu.Lock()
	if h, ok := m.hooks[hook.ID]; ok {
		now := time.Now()
		h.LastUsed = &now
		if !success {
			h.FailureCount++
		}
	}
	m.mu.Unlock()
}

func (m *Manager) post(hook Hook, eventType string, body []byte) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), hook.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "rescue-sim/1.0")
	req.Header.Set("X-Event-Type", eventType)
	if hook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(body, hook.Secret))
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

// Sign возвращает HMAC-SHA256 подпись тела в формате "sha256=<hex>"
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify проверяет подпись тела
func Verify(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}
