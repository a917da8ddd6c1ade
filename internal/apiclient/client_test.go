package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/utils"
)

func writeEnvelope(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(utils.Response{Code: code, Message: "success", Data: data, Success: code < 300})
}

func TestClient_SignInAndRefresh(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/signin":
			writeEnvelope(w, http.StatusOK, map[string]interface{}{"token": "t1", "user_id": "u1", "email": "ana@example.com"})
		case "/api/me/movies/603/like":
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set(middleware.RefreshHeader, "t2")
			writeEnvelope(w, http.StatusOK, map[string]interface{}{"movie_id": "603", "status": map[string]bool{"liked": true}})
		default:
			writeEnvelope(w, http.StatusNotFound, nil)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	var refreshed string
	c.OnRefresh = func(token string) { refreshed = token }

	sess, err := c.SignIn(context.Background(), "ana@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, "t1", c.Token())

	status, err := c.Toggle(context.Background(), "like", "603")
	require.NoError(t, err)
	assert.True(t, status.Liked)
	assert.Equal(t, "Bearer t1", gotAuth)
	assert.Equal(t, "t2", c.Token())
	assert.Equal(t, "t2", refreshed)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(utils.Response{Code: 409, Message: "用户名已被占用"})
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).SignUp(context.Background(), "a@b.c", "secret123", "ana")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "用户名已被占用", apiErr.Message)
}

func TestClient_NonJSONFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).Browse(context.Background(), "")
	var statusErr *utils.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}
