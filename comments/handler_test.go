package comments_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/blog-go/auth"
	"github.com/user/blog-go/comments"
)

func asUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, err := strconv.ParseInt(r.Header.Get("X-User-ID"), 10, 64); err == nil {
			r = r.WithContext(auth.WithUserID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func newRouter(f *fixture) http.Handler {
	h := comments.NewCommentHandler(f.manager)
	r := chi.NewRouter()
	r.Route("/api/v1/posts/{id}/comments", func(r chi.Router) {
		h.RegisterPostRoutes(r, asUser)
	})
	r.Route("/api/v1/comments", func(r chi.Router) {
		h.RegisterRoutes(r, asUser)
	})
	return r
}

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  string          `json:"error"`
}

func call(t *testing.T, h http.Handler, method, path string, userID int64, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != 0 {
		req.Header.Set("X-User-ID", strconv.FormatInt(userID, 10))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func TestCommentRoutes(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)
	thread := "/api/v1/posts/" + strconv.FormatInt(f.postID, 10) + "/comments"

	code, env := call(t, h, http.MethodPost, thread, f.bob, `{"body":"great read"}`)
	require.Equal(t, http.StatusCreated, code)
	var c comments.Comment
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, "great read", c.Body)
	single := "/api/v1/comments/" + strconv.FormatInt(c.ID, 10)

	code, env = call(t, h, http.MethodGet, thread, 0, "")
	require.Equal(t, http.StatusOK, code)
	var list []comments.WithAuthor
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Bob", list[0].Author.Name)

	code, _ = call(t, h, http.MethodGet, single, 0, "")
	assert.Equal(t, http.StatusOK, code)

	code, env = call(t, h, http.MethodPut, single, f.alice, `{"body":"nope"}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "error", env.Status)

	code, _ = call(t, h, http.MethodPut, single, f.bob, `{"body":"better read"}`)
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodDelete, single, f.bob, "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodDelete, single, f.bob, "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestCommentRouteErrors(t *testing.T) {
	f := newFixture(t)
	h := newRouter(f)

	tests := []struct {
		name   string
		method string
		path   string
		user   int64
		body   string
		status int
	}{
		{"anonymous comment", http.MethodPost, "/api/v1/posts/1/comments", 0, `{"body":"hi"}`, http.StatusUnauthorized},
		{"blank body", http.MethodPost, "/api/v1/posts/1/comments", 2, `{"body":"  "}`, http.StatusUnprocessableEntity},
		{"unknown post", http.MethodPost, "/api/v1/posts/99/comments", 2, `{"body":"hi"}`, http.StatusNotFound},
		{"thread of unknown post", http.MethodGet, "/api/v1/posts/99/comments", 0, "", http.StatusNotFound},
		{"bad comment id", http.MethodGet, "/api/v1/comments/x", 0, "", http.StatusBadRequest},
		{"unknown comment", http.MethodGet, "/api/v1/comments/99", 0, "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := call(t, h, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, "error", env.Status)
		})
	}
}
