package server

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := Config{
		DBPath:   filepath.Join(t.TempDir(), "test.db"),
		AgentURL: "http://127.0.0.1:1", // unreachable on purpose
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Close() })
	return srv, srv.Router()
}

func withMasterKey(t *testing.T) {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	t.Setenv("FARM_MASTER_KEY", base64.StdEncoding.EncodeToString(key))
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestSettingsMerge(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := doJSON(t, h, "POST", "/api/settings", map[string]any{"discordWebhook": "https://discord.com/api/webhooks/1/x", "theme": "dark"})
	require.Equal(t, 200, w.Code, w.Body.String())

	// A later save merges instead of replacing.
	w = doJSON(t, h, "POST", "/api/settings", map[string]any{"theme": "light", "refreshSeconds": 5})
	require.Equal(t, 200, w.Code)

	got := decode[map[string]any](t, doJSON(t, h, "GET", "/api/settings", nil))
	assert.Equal(t, "https://discord.com/api/webhooks/1/x", got["discordWebhook"])
	assert.Equal(t, "light", got["theme"])
	assert.EqualValues(t, 5, got["refreshSeconds"])
}

func TestSettingsGetEmpty(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := doJSON(t, h, "GET", "/api/settings", nil)
	require.Equal(t, 200, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())
}

func TestOverlayDefaultsAndMerge(t *testing.T) {
	_, h := newTestServer(t, nil)

	w := doJSON(t, h, "GET", "/overlay/alice", nil)
	require.Equal(t, 200, w.Code)
	assert.JSONEq(t, "{}", w.Body.String())

	w = doJSON(t, h, "POST", "/overlay/alice", map[string]any{"x": 10, "label": "mining"})
	require.Equal(t, 200, w.Code)
	w = doJSON(t, h, "POST", "/overlay/alice", map[string]any{"x": 20})
	require.Equal(t, 200, w.Code)

	got := decode[map[string]any](t, doJSON(t, h, "GET", "/overlay/alice", nil))
	assert.EqualValues(t, 20, got["x"])
	assert.Equal(t, "mining", got["label"])
}

func TestAccountCreateAndLaunchConfig(t *testing.T) {
	withMasterKey(t)
	srv, h := newTestServer(t, nil)

	w := doJSON(t, h, "POST", "/api/accounts", map[string]any{
		"username": "alice",
		"password": "hunter2",
		"plugin":   "miner",
		"args":     "world=309",
		"rsn":      "IronAlice",
	})
	require.Equal(t, 200, w.Code, w.Body.String())

	// Stored encrypted, not in plaintext.
	a, err := srv.getAccount(t.Context(), "alice")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.NotEmpty(t, a.PasswordEnc)
	assert.NotContains(t, a.PasswordEnc, "hunter2")

	// Launch config decrypts for the agent.
	got := decode[map[string]any](t, doJSON(t, h, "GET", "/api/accounts/alice/launch-config", nil))
	assert.Equal(t, "hunter2", got["password"])
	assert.Equal(t, "miner", got["plugin"])
	assert.Equal(t, "IronAlice", got["rsn"])
}

func TestAccountCreateDuplicate(t *testing.T) {
	withMasterKey(t)
	_, h := newTestServer(t, nil)

	w := doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "alice", "password": "pw"})
	require.Equal(t, 200, w.Code)
	w = doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "alice", "password": "pw"})
	assert.Equal(t, 409, w.Code)
}

func TestAccountCreateWithoutMasterKey(t *testing.T) {
	t.Setenv("FARM_MASTER_KEY", "")
	_, h := newTestServer(t, nil)

	w := doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "alice", "password": "pw"})
	assert.Equal(t, 500, w.Code)

	// Accounts without a credential are still storable.
	w = doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "bob"})
	assert.Equal(t, 200, w.Code, w.Body.String())
}

func TestAccountUpdateMerges(t *testing.T) {
	withMasterKey(t)
	_, h := newTestServer(t, nil)

	w := doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "alice", "password": "pw", "plugin": "miner"})
	require.Equal(t, 200, w.Code)

	w = doJSON(t, h, "PUT", "/api/accounts/alice", map[string]any{"plugin": "fisher"})
	require.Equal(t, 200, w.Code, w.Body.String())

	got := decode[map[string]any](t, doJSON(t, h, "GET", "/api/accounts/alice/launch-config", nil))
	assert.Equal(t, "fisher", got["plugin"])
	assert.Equal(t, "pw", got["password"], "omitted fields keep their value")
}

func TestAccountUpdateUnknown(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := doJSON(t, h, "PUT", "/api/accounts/ghost", map[string]any{"plugin": "x"})
	assert.Equal(t, 404, w.Code)
}

func TestLaunchConfigUnknownAccount(t *testing.T) {
	_, h := newTestServer(t, nil)
	w := doJSON(t, h, "GET", "/api/accounts/ghost/launch-config", nil)
	assert.Equal(t, 404, w.Code)
}

func TestAccountsListAgentOffline(t *testing.T) {
	withMasterKey(t)
	_, h := newTestServer(t, nil)

	w := doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "alice", "password": "pw"})
	require.Equal(t, 200, w.Code)

	views := decode[[]map[string]any](t, doJSON(t, h, "GET", "/api/accounts", nil))
	require.Len(t, views, 1)
	assert.Equal(t, "offline", views[0]["status"])
	assert.Equal(t, true, views[0]["hasPassword"])
}

func TestAccountsListJoinsAgentState(t *testing.T) {
	withMasterKey(t)
	agent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/bots", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"username":"alice","status":"running","pid":321}]`))
	}))
	defer agent.Close()

	_, h := newTestServer(t, func(c *Config) { c.AgentURL = agent.URL })

	w := doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "alice", "password": "pw"})
	require.Equal(t, 200, w.Code)
	w = doJSON(t, h, "POST", "/api/accounts", map[string]any{"username": "bob", "password": "pw"})
	require.Equal(t, 200, w.Code)

	views := decode[[]map[string]any](t, doJSON(t, h, "GET", "/api/accounts", nil))
	require.Len(t, views, 2)
	assert.Equal(t, "running", views[0]["status"])
	assert.EqualValues(t, 321, views[0]["pid"])
	assert.Equal(t, "stopped", views[1]["status"], "accounts the agent does not know read stopped")
}
