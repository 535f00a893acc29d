package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/annel0/rescue-sim/internal/agent"
	"github.com/annel0/rescue-sim/internal/auth"
	"github.com/annel0/rescue-sim/internal/engine"
	"github.com/annel0/rescue-sim/internal/logging"
	"github.com/annel0/rescue-sim/internal/policy"
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/sim"
	"github.com/annel0/rescue-sim/internal/storage"
	"github.com/annel0/rescue-sim/internal/vec"
	"github.com/annel0/rescue-sim/internal/webhook"
	"github.com/annel0/rescue-sim/internal/world"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fixture struct {
	server *Server
	runner *sim.Runner
	tokens *auth.TokenIssuer
}

func newFixture(t *testing.T, store storage.SnapshotStore) *fixture {
	t.Helper()
	w, err := world.New(800, 600)
	require.NoError(t, err)
	require.NoError(t, w.AddPatient(vec.Vec2{X: 300, Y: 300}))
	require.NoError(t, w.AddObstacle(vec.Vec2{X: 400, Y: 300}, world.ObstacleNormal))
	require.NoError(t, w.AddAgent(agent.New(0, agent.KindAerial, vec.Vec2{X: 100, Y: 100})))

	quiet := logging.NewWriterLogger("api-test", io.Discard, logging.ERROR)
	eng := engine.New(w, sensor.NewObserver(), engine.WithLogger(quiet))

	opts := []sim.Option{sim.WithEpisodeID("ep-api"), sim.WithPaused(), sim.WithLogger(quiet)}
	if store != nil {
		opts = append(opts, sim.WithStore(store))
	}
	runner, err := sim.NewRunner(eng, []policy.Policy{policy.Idle{}}, opts...)
	require.NoError(t, err)

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	hooks := webhook.NewManager(quiet)
	t.Cleanup(hooks.Close)

	hash, err := auth.HashPassword("pw")
	require.NoError(t, err)
	accounts, err := auth.NewCredentials([]auth.Operator{{Name: "alice", PasswordHash: hash, Role: auth.RoleOperator}})
	require.NoError(t, err)

	srv, err := NewServer(Config{
		Runner:   runner,
		Tokens:   tokens,
		Accounts: accounts,
		Registry: prometheus.NewRegistry(),
		Webhooks: hooks,
		Logger:   quiet,
	})
	require.NoError(t, err)
	return &fixture{server: srv, runner: runner, tokens: tokens}
}

func (f *fixture) do(t *testing.T, method, path, role string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		token, err := f.tokens.Issue("tester", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) GenericResponse {
	t.Helper()
	var resp GenericResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthAndSnapshot(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = f.do(t, http.MethodGet, "/api/snapshot", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data world.Snapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Data.Time)
	assert.Len(t, resp.Data.Agents, 1)
	assert.Equal(t, "NORMAL", resp.Data.Obstacles[0].Kind)
}

func TestObservationsFilter(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/observations?agent=0", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/observations?agent=7", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/observations?agent=x", "", nil).Code)
}

func TestControlRequiresOperator(t *testing.T) {
	f := newFixture(t, nil)

	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, "/api/control/step", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, "/api/control/step", auth.RoleViewer, nil).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/control/step", nil)
	req.Header.Set("Authorization", "Token abc")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogin(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/login", "", strings.NewReader(`{"operator":"alice","password":"pw"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec).Data.(map[string]interface{})
	assert.Equal(t, auth.RoleOperator, data["role"])

	claims, err := f.tokens.Validate(data["token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Operator)
	assert.True(t, claims.CanControl())

	rec = f.do(t, http.MethodPost, "/api/login", "", strings.NewReader(`{"operator":"alice","password":"bad"}`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/login", "", strings.NewReader(`{"operator":"alice"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestControlStepPauseResume(t *testing.T) {
	store := storage.NewMemoryStore()
	f := newFixture(t, store)

	rec := f.do(t, http.MethodPost, "/api/control/step", auth.RoleOperator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.runner.Status().Tick)

	rec = f.do(t, http.MethodPost, "/api/control/resume", auth.RoleOperator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.runner.Paused())

	rec = f.do(t, http.MethodPost, "/api/control/step", auth.RoleOperator, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/control/pause", auth.RoleOperator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, f.runner.Paused())

	// Тик из пошагового режима попал в хранилище
	rec = f.do(t, http.MethodGet, "/api/episodes", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ep-api")

	rec = f.do(t, http.MethodGet, "/api/episodes/ep-api/ticks/1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).Success)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/episodes/ep-api/ticks/9", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/episodes/ep-api/ticks/x", "", nil).Code)

	rec = f.do(t, http.MethodGet, "/api/episodes/ep-api/ticks?from=0&to=5", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/episodes/ep-api/ticks?from=5&to=1", "", nil).Code)
}

func TestEpisodesWithoutStore(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(t, http.MethodGet, "/api/episodes", "", nil).Code)
}

func TestMapGeoJSON(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/map", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string      `json:"type"`
				Coordinates interface{} `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, "Polygon", fc.Features[0].Geometry.Type)
	assert.Equal(t, "obstacle", fc.Features[0].Properties["type"])
	assert.Equal(t, "Point", fc.Features[1].Geometry.Type)
	assert.Equal(t, "agent", fc.Features[2].Properties["type"])
}

func TestSpacesAndMetrics(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/api/spaces", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"discrete"`)

	rec = f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rest_api_http_request_duration_seconds")
}

func TestWebhooksCRUD(t *testing.T) {
	f := newFixture(t, nil)

	body := `{"name":"ops","url":"http://localhost:9/hook","events":["EpisodeFinished"]}`
	rec := f.do(t, http.MethodPost, "/api/webhooks", auth.RoleOperator, strings.NewReader(body))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/webhooks", auth.RoleOperator, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/webhooks/1", auth.RoleOperator, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, "/api/webhooks/1", auth.RoleOperator, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/api/webhooks", auth.RoleOperator, strings.NewReader(`{}`)).Code)
}

func TestStream(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var first engine.StepResult
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 0, first.Snapshot.Time)

	// Подписка регистрируется до отправки первого сообщения
	_, err = f.runner.StepOnce(context.Background())
	require.NoError(t, err)

	var next engine.StepResult
	require.NoError(t, conn.ReadJSON(&next))
	assert.Equal(t, 1, next.Snapshot.Time)
}
