package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/roster-search/internal/auth"
	"github.com/sakif/roster-search/internal/config"
	"github.com/sakif/roster-search/internal/handler"
	"github.com/sakif/roster-search/internal/model"
	"github.com/sakif/roster-search/internal/search"
)

const testSecret = "test-secret-at-least-16-chars!!"

type testEnv struct {
	srv    *Server
	ts     *httptest.Server
	tokens *auth.TokenService
	course int64
	viewer int64
	admin  int64
}

// newTestEnv boots the full stack on an in-memory database with a small
// roster (one teacher, three students) plus an unenrolled account admin.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	// The admin is created first, so in a fresh database it gets id 1.
	cfg := &config.Config{Port: 8080, DBPath: ":memory:", JWTSecret: testSecret, Gist: true, AccountAdminIDs: []int64{1}}
	srv, err := New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	db := srv.DB()
	add := func(name string) int64 {
		u := &model.User{Name: name}
		require.NoError(t, db.CreateUser(ctx, u))
		return u.ID
	}
	admin := add("Account Admin")
	require.Equal(t, int64(1), admin)

	course := &model.Course{Name: "Companions"}
	require.NoError(t, db.CreateCourse(ctx, course))
	enroll := func(name, role string) int64 {
		id := add(name)
		require.NoError(t, db.Enroll(ctx, &model.Enrollment{UserID: id, CourseID: course.ID, RoleName: role}))
		return id
	}
	enroll("Tyler Teacher", model.TeacherEnrollment)
	enroll("Martha Stewart", model.StudentEnrollment)
	enroll("Jon Stewart", model.StudentEnrollment)
	viewer := enroll("Stewart Little", model.StudentEnrollment)

	tokens, err := auth.NewTokenService(testSecret)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, ts: ts, tokens: tokens, course: course.ID, viewer: viewer, admin: admin}
}

func (e *testEnv) do(t *testing.T, method, path string, as int64, body string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	require.NoError(t, err)
	if as != 0 {
		token, err := e.tokens.Generate(as)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) searchPath(query string) string {
	return "/api/v1/courses/" + strconv.FormatInt(e.course, 10) + "/search_users?" + query
}

func decodeNames(t *testing.T, resp *http.Response) []string {
	t.Helper()
	var users []handler.UserResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&users))
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	return names
}

func TestServer_SearchEndToEnd(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, env.searchPath("search_term=Stewart"), env.viewer, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"Jon Stewart", "Martha Stewart", "Stewart Little"}, decodeNames(t, resp))

	resp = env.do(t, http.MethodGet, env.searchPath("search_term=Stewart&per_page=1"), env.viewer, "")
	assert.Len(t, decodeNames(t, resp), 1)

	resp = env.do(t, http.MethodGet, env.searchPath("search_term=Tyler&enrollment_type[]=student"), env.viewer, "")
	assert.Empty(t, decodeNames(t, resp))

	resp = env.do(t, http.MethodGet, env.searchPath("search_term=Tyler&enrollment_type=all"), env.viewer, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_RequiresToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, env.searchPath("search_term=Stewart"), 0, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_SettingsToggleChangesNextSearch(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/settings/" + search.SettingGist

	resp := env.do(t, http.MethodPut, path, env.viewer, `{"value":false}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = env.do(t, http.MethodPut, path, env.admin, `{"value":false}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, env.searchPath("search_term=Stewart"), env.viewer, "")
	assert.Equal(t, []string{"Stewart Little"}, decodeNames(t, resp))

	// The change reached the settings table, not just memory.
	stored, ok, err := env.srv.DB().GetSetting(context.Background(), search.SettingGist)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "false", stored)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/healthz", 0, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	env.do(t, http.MethodGet, env.searchPath("search_term=Stewart"), env.viewer, "")

	resp = env.do(t, http.MethodGet, "/metrics", 0, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `roster_user_search_searches_total{mode="name_only",outcome="ok"} 1`)
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(context.Background(), &config.Config{DBPath: ":memory:"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
