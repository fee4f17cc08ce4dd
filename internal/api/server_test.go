package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayarr/relayarr/internal/arr"
	"github.com/relayarr/relayarr/internal/auth"
	"github.com/relayarr/relayarr/internal/config"
	"github.com/relayarr/relayarr/internal/routing"
	"github.com/relayarr/relayarr/internal/testutil"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	tdb := testutil.NewTestDB(t)
	t.Cleanup(tdb.Close)

	logger := zerolog.New(zerolog.NewTestWriter(t))

	authSvc, err := auth.NewService(tdb.Store, "test-secret", logger)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0

	deps := Deps{
		Store:  tdb.Store,
		Auth:   authSvc,
		Radarr: arr.NewRadarrManager(tdb.Store, 5*time.Second, logger),
		Sonarr: arr.NewSonarrManager(tdb.Store, 5*time.Second, logger),
	}
	return NewServer(cfg, deps, logger)
}

func doJSON(s *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = strings.NewReader(string(raw))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echoContentType, "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

const echoContentType = "Content-Type"

func setupAndLogin(t *testing.T, s *Server) string {
	t.Helper()

	rec := doJSON(s, http.MethodPost, "/api/v1/auth/setup", "",
		map[string]string{"username": "admin", "password": "hunter22"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealthCheck(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetupFlow(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(s, http.MethodGet, "/api/v1/auth/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requiresSetup":true`)

	token := setupAndLogin(t, s)
	assert.NotEmpty(t, token)

	// Second setup attempt is rejected.
	rec = doJSON(s, http.MethodPost, "/api/v1/auth/setup", "",
		map[string]string{"username": "intruder", "password": "pw"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/auth/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"requiresSetup":false`)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestServer(t)
	setupAndLogin(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "admin", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "admin", "password": "hunter22"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)
	token := setupAndLogin(t, s)

	rec := doJSON(s, http.MethodGet, "/api/v1/rules", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/rules", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/rules", token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestInstanceCRUD(t *testing.T) {
	s := newTestServer(t)
	token := setupAndLogin(t, s)

	rec := doJSON(s, http.MethodGet, "/api/v1/instances/radarr", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doJSON(s, http.MethodPost, "/api/v1/instances/radarr", token, arr.Instance{
		Name:    "main",
		BaseURL: "http://radarr:7878",
		APIKey:  "key",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created arr.Instance
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.True(t, created.IsDefault, "first instance becomes default")

	rec = doJSON(s, http.MethodGet, fmt.Sprintf("/api/v1/instances/radarr/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/instances/deluge", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodDelete, fmt.Sprintf("/api/v1/instances/radarr/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRuleCRUDAndExport(t *testing.T) {
	s := newTestServer(t)
	token := setupAndLogin(t, s)

	rule := routing.RouterRule{
		Name:             "anime to second radarr",
		Type:             routing.RuleGenre,
		Criteria:         routing.Condition{Field: "genre", Operator: routing.OpEquals, Value: routing.StringValue("anime")},
		TargetType:       arr.ServiceRadarr,
		TargetInstanceID: 2,
		Enabled:          true,
	}

	rec := doJSON(s, http.MethodPost, "/api/v1/rules", token, rule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created routing.RouterRule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotZero(t, created.ID)

	rec = doJSON(s, http.MethodGet, "/api/v1/rules/export", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "anime to second radarr")
	assert.Contains(t, rec.Body.String(), "operator: equals")

	rec = doJSON(s, http.MethodDelete, fmt.Sprintf("/api/v1/rules/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(s, http.MethodGet, fmt.Sprintf("/api/v1/rules/%d", created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRuleImportYAML(t *testing.T) {
	s := newTestServer(t)
	token := setupAndLogin(t, s)

	doc := `rules:
  - name: french content
    type: language
    criteria:
      field: language
      operator: equals
      value: French
    targetType: radarr
    targetInstanceId: 3
    enabled: true
  - name: broken rule
    type: nonsense
    criteria:
      field: language
      operator: equals
      value: German
    targetType: radarr
    targetInstanceId: 3
    enabled: true
`

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rules/import", strings.NewReader(doc))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(echoContentType, "application/x-yaml")
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp importResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Imported)
	assert.Len(t, resp.Errors, 1)

	rec = doJSON(s, http.MethodGet, "/api/v1/rules", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "french content")
	assert.NotContains(t, rec.Body.String(), "broken rule")
}

func TestAccountLockoutAfterRepeatedFailures(t *testing.T) {
	s := newTestServer(t)
	setupAndLogin(t, s)

	for i := 0; i < 5; i++ {
		rec := doJSON(s, http.MethodPost, "/api/v1/auth/login", "",
			map[string]string{"username": "admin", "password": "wrong"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}

	rec := doJSON(s, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": "admin", "password": "hunter22"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
