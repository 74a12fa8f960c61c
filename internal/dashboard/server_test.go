package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"guildkeeper/internal/config"
	"guildkeeper/internal/dmlog"
	"guildkeeper/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const validSettings = `{
  "status": "online",
  "activity": "Helping",
  "welcomeMessage": "Welcome {user}!",
  "discordLink": "https://discord.gg/x",
  "channelKeywords": {"zeta": "1", "alpha": "2"},
  "customCommands": [{"command": "ping", "response": "pong"}]
}`

func newTestServer(t *testing.T, store *storage.Store) (*Server, config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.SettingsPath = filepath.Join(dir, "settings.json")
	cfg.DMLogPath = filepath.Join(dir, "dms.json")
	cfg.Dashboard.StaticDir = filepath.Join(dir, "public")
	require.NoError(t, os.MkdirAll(cfg.Dashboard.StaticDir, 0o755))
	return New(cfg, zap.NewNop(), store), cfg
}

func do(s *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestSettingsRoundTrip(t *testing.T) {
	s, cfg := newTestServer(t, nil)

	w := do(s, http.MethodGet, "/api/settings", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to read settings."}`, w.Body.String())

	w = do(s, http.MethodPost, "/api/settings", validSettings)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"success":true,"message":"Settings updated successfully."}`, w.Body.String())

	saved, err := os.ReadFile(cfg.SettingsPath)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(saved), `"zeta"`), strings.Index(string(saved), `"alpha"`))
	assert.Contains(t, string(saved), "\n  \"status\": \"online\"")

	w = do(s, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Helping", got["activity"])
	assert.Equal(t, map[string]any{"zeta": "1", "alpha": "2"}, got["channelKeywords"])
}

func TestSettingsKeepKeywordCaseAndUnknownFields(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(s, http.MethodPost, "/api/settings", `{"status":"idle","channelKeywords":{"Billing":"1"},"customCommands":[],"accentColor":"#ff0000"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(s, http.MethodGet, "/api/settings", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, map[string]any{"Billing": "1"}, got["channelKeywords"])
	assert.Equal(t, "#ff0000", got["accentColor"])
}

func TestPostInvalidSettings(t *testing.T) {
	s, cfg := newTestServer(t, nil)

	w := do(s, http.MethodPost, "/api/settings", `{"customCommands":[{"command":"","response":"x"}]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(s, http.MethodPost, "/api/settings", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	_, err := os.Stat(cfg.SettingsPath)
	assert.True(t, os.IsNotExist(err), "invalid settings must not be written")
}

func TestDMs(t *testing.T) {
	s, cfg := newTestServer(t, nil)

	w := do(s, http.MethodGet, "/api/dms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	store := dmlog.Open(cfg.DMLogPath, zap.NewNop())
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, store.Append(context.Background(), dmlog.NewEntry(at, "alice", "hello")))
	store.Close()

	w = do(s, http.MethodGet, "/api/dms", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[{"timestamp":"2024-01-02T03:04:05.000Z","author":"alice","content":"hello"}]`, w.Body.String())

	require.NoError(t, os.WriteFile(cfg.DMLogPath, []byte("{broken"), 0o644))
	w = do(s, http.MethodGet, "/api/dms", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to read DM log."}`, w.Body.String())
}

func TestAuditRoutes(t *testing.T) {
	store, err := storage.New(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Migrate())
	ctx := context.Background()
	require.NoError(t, store.AddAuditLog(ctx, storage.AuditLog{GuildID: "g1", UserID: "u1", Level: "WARN", Event: "ban", CreatedAt: time.Now()}))
	require.NoError(t, store.AddAuditLog(ctx, storage.AuditLog{UserID: "u2", Level: "INFO", Event: "dm_logged", CreatedAt: time.Now()}))

	s, _ := newTestServer(t, store)

	w := do(s, http.MethodGet, "/api/audit?since=1h", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []auditEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)

	w = do(s, http.MethodGet, "/api/audit/report?since=1h&guild_id=g1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var report struct {
		Total   int            `json:"total"`
		ByLevel map[string]int `json:"by_level"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.ByLevel["WARN"])

	w = do(s, http.MethodGet, "/api/audit?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuditWithoutStore(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(s, http.MethodGet, "/api/audit", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthAndStatic(t *testing.T) {
	s, cfg := newTestServer(t, nil)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Dashboard.StaticDir, "index.html"), []byte("<h1>dashboard</h1>"), 0o644))

	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "dashboard")

	w = do(s, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
