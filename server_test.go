package main

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/config"
)

func memoryConfig() *config.AppConfig {
	return &config.AppConfig{
		Storage: config.StorageMemory,
		Auth: &config.AuthConfig{
			JWTSecret:            "test-secret",
			AccessTokenDuration:  time.Hour,
			RefreshTokenDuration: 24 * time.Hour,
		},
		Server:  &config.ServerConfig{Port: "0", RateLimitRPS: 1000, RateLimitBurst: 1000},
		Sweeper: &config.SweeperConfig{Interval: time.Hour, MaxAge: 24 * time.Hour, Lock: config.SweepLockNone},
		Events:  &config.EventsConfig{SubjectPrefix: "blog"},
		Log:     &config.LogConfig{},
	}
}

type apiClient struct {
	t     *testing.T
	srv   *httptest.Server
	token string
}

func (c *apiClient) do(method, path, body string, out interface{}) int {
	c.t.Helper()
	req, err := http.NewRequest(method, c.srv.URL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.srv.Client().Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil && env.Status == "success" {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
	return resp.StatusCode
}

func (c *apiClient) login(name string) {
	c.t.Helper()
	c.token = ""
	body := `{"name":"` + name + `","email":"` + name + `@example.com","password":"correct horse"}`
	require.Equal(c.t, http.StatusCreated, c.do(http.MethodPost, "/auth/register", body, nil))

	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.Equal(c.t, http.StatusOK, c.do(http.MethodPost, "/auth/login", body, &tokens))
	c.token = tokens.AccessToken
}

func TestEndToEndWithMemoryStorage(t *testing.T) {
	cfg := memoryConfig()
	b, err := openBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	srv := httptest.NewServer(newRouter(cfg, b))
	defer srv.Close()

	// Subscribe before anything happens so the created event is seen.
	streamReq, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := srv.Client().Do(streamReq.WithContext(ctx))
	require.NoError(t, err)
	defer stream.Body.Close()
	lines := bufio.NewScanner(stream.Body)
	require.True(t, lines.Scan())
	assert.Equal(t, "event: connected", lines.Text())

	alice := &apiClient{t: t, srv: srv}
	alice.login("alice")

	var me struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusOK, alice.do(http.MethodGet, "/users/me", "", &me))

	var post struct {
		ID   int64    `json:"id"`
		Tags []string `json:"tags"`
	}
	require.Equal(t, http.StatusCreated, alice.do(http.MethodPost, "/api/v1/posts", `{"title":"Hi","body":"There","tags":["Go","go"]}`, &post))
	assert.Equal(t, []string{"go"}, post.Tags)
	postPath := "/api/v1/posts/" + strconv.FormatInt(post.ID, 10)

	sawCreated := false
	for lines.Scan() {
		if strings.HasPrefix(lines.Text(), "data: ") && strings.Contains(lines.Text(), `"post.created"`) {
			sawCreated = true
			break
		}
	}
	assert.True(t, sawCreated)

	bob := &apiClient{t: t, srv: srv}
	bob.login("bob")
	assert.Equal(t, http.StatusForbidden, bob.do(http.MethodPut, postPath, `{"title":"mine"}`, nil))
	assert.Equal(t, http.StatusCreated, bob.do(http.MethodPost, postPath+"/comments", `{"body":"nice"}`, nil))

	var thread []struct {
		Body string `json:"body"`
	}
	anon := &apiClient{t: t, srv: srv}
	require.Equal(t, http.StatusOK, anon.do(http.MethodGet, postPath+"/comments", "", &thread))
	require.Len(t, thread, 1)
	assert.Equal(t, "nice", thread[0].Body)

	var tagList []struct {
		Name string `json:"name"`
	}
	require.Equal(t, http.StatusOK, anon.do(http.MethodGet, "/api/v1/tags", "", &tagList))
	require.Len(t, tagList, 1)
	assert.Equal(t, "go", tagList[0].Name)

	assert.Equal(t, http.StatusUnauthorized, anon.do(http.MethodPost, "/api/v1/posts", `{}`, nil))
	assert.Equal(t, http.StatusOK, alice.do(http.MethodDelete, postPath, "", nil))
	assert.Equal(t, http.StatusNotFound, anon.do(http.MethodGet, postPath, "", nil))
}

func TestSweeperWiring(t *testing.T) {
	cfg := memoryConfig()
	b, err := openBackend(context.Background(), cfg)
	require.NoError(t, err)
	defer b.Close()

	s, err := b.Sweeper(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, s.MaxAge)

	res, err := s.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Found)

	cfg.Sweeper.Lock = config.SweepLockPostgres
	_, err = b.Sweeper(context.Background(), cfg)
	assert.Error(t, err)
}
