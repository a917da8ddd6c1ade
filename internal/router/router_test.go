package router

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cineverse/internal/auth"
	"github.com/user/cineverse/internal/config"
	"github.com/user/cineverse/internal/handler"
	"github.com/user/cineverse/internal/metrics"
	"github.com/user/cineverse/internal/repository"
	"github.com/user/cineverse/internal/service"
	"github.com/user/cineverse/internal/session"
	"github.com/user/cineverse/internal/storage"
	"github.com/user/cineverse/internal/utils"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

type testApp struct {
	engine *gin.Engine
	bucket *storage.Bucket
}

func newFakeTMDB(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/movie/popular":
			w.Write([]byte(`{"page":1,"results":[
				{"id":603,"title":"Matrix","overview":"Neo","poster_path":"/matrix.jpg"},
				{"id":604,"title":"Sem Poster","overview":"x","poster_path":null}]}`))
		case "/search/movie":
			w.Write([]byte(`{"page":1,"results":[{"id":11,"title":"Star Wars","overview":"space","poster_path":"/sw.jpg"}]}`))
		case "/movie/603":
			w.Write([]byte(`{"id":603,"title":"Matrix","overview":"Neo","poster_path":"/matrix.jpg","vote_average":8.2,"release_date":"1999-03-31"}`))
		case "/movie/42":
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status_code":11}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"status_code":34}`))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db, err := repository.OpenSQLite(":memory:")
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, repository.Migrate(db))

	cfg := &config.Config{
		Env:                "test",
		AppSecret:          "secret",
		JWTExpiry:          time.Hour,
		TMDBBaseURL:        newFakeTMDB(t).URL,
		TMDBImageBase:      "https://image.tmdb.org/t/p/w500",
		TMDBAPIKey:         "key",
		TMDBLanguage:       "pt-BR",
		StoragePublic:      "http://example.test/storage",
		AvatarMaxBytes:     1024,
		StatusSyncMode:     config.SyncStrict,
		SessionCacheSize:   16,
		RateLimitPerMinute: 1000,
	}

	repos := repository.NewRepositories(db)
	m := metrics.NewCollector()
	bucket, err := storage.NewBucket(afero.NewMemMapFs(), "avatars", cfg.StoragePublic)
	require.NoError(t, err)

	authSvc := auth.NewService(repos.Account, auth.NewMemoryRevoker(), cfg.AppSecret, cfg.JWTExpiry)
	manager, err := session.NewManager(repository.NewStore(repos), cfg.SessionCacheSize, session.Options{
		Mode:           session.SyncMode(cfg.StatusSyncMode),
		Storage:        bucket,
		Auth:           authSvc,
		MaxAvatarBytes: cfg.AvatarMaxBytes,
		Metrics:        m,
	})
	require.NoError(t, err)
	catalog := service.NewCatalogService(cfg, utils.NewHTTPClient(5*time.Second), m)

	h := handler.NewHandler(cfg, repos, authSvc, manager, catalog, bucket)
	return &testApp{engine: New(h, m), bucket: bucket}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.serve(t, req)
}

func (a *testApp) serve(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

// signIn 注册并登录，返回 token 和用户 ID
func (a *testApp) signIn(t *testing.T) (string, string) {
	t.Helper()
	w, _ := a.do(t, "POST", "/api/auth/signup", "", gin.H{
		"email": "Ana@Example.com", "password": "secret123", "username": "ana",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := a.do(t, "POST", "/api/auth/signin", "", gin.H{"email": "ana@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		Token  string `json:"token"`
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	require.NotEmpty(t, sess.Token)
	return sess.Token, sess.UserID
}

func TestHealthAndMetrics(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(t, "GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(t, "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/health")
}

func TestAuthFlow(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.signIn(t)

	// 重复注册
	w, _ := app.do(t, "POST", "/api/auth/signup", "", gin.H{
		"email": "ana@example.com", "password": "secret123", "username": "other",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = app.do(t, "POST", "/api/auth/signup", "", gin.H{
		"email": "not-an-email", "password": "secret123", "username": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, "POST", "/api/auth/signin", "", gin.H{"email": "ana@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := app.do(t, "GET", "/api/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me struct {
		State   string `json:"state"`
		Profile struct {
			Username string `json:"username"`
		} `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, "ready", me.State)
	assert.Equal(t, "ana", me.Profile.Username)

	w, _ = app.do(t, "POST", "/api/auth/signout", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	// 注销后的 token 不再可用
	w, _ = app.do(t, "GET", "/api/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignOutOnlyRevokesOwnDevice(t *testing.T) {
	app := newTestApp(t)
	phone, _ := app.signIn(t)

	w, env := app.do(t, "POST", "/api/auth/signin", "", gin.H{"email": "ana@example.com", "password": "secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sess))
	laptop := sess.Token

	w, _ = app.do(t, "GET", "/api/me", phone, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(t, "GET", "/api/me", laptop, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(t, "POST", "/api/auth/signout", phone, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = app.do(t, "GET", "/api/me", phone, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = app.do(t, "GET", "/api/me", laptop, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	app := newTestApp(t)

	w, _ := app.do(t, "GET", "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = app.do(t, "POST", "/api/me/movies/603/like", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCatalogEndpoints(t *testing.T) {
	app := newTestApp(t)

	w, env := app.do(t, "GET", "/api/movies/popular", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var movies []struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &movies))
	require.Len(t, movies, 1)
	assert.Equal(t, "603", movies[0].ID)

	w, env = app.do(t, "GET", "/api/movies/search?query="+url.QueryEscape("star wars"), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &movies))
	require.Len(t, movies, 1)
	assert.Equal(t, "11", movies[0].ID)

	w, _ = app.do(t, "GET", "/api/movies/999", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = app.do(t, "GET", "/api/movies/603", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, string(env.Data), `"status"`)
}

func TestToggleAndLists(t *testing.T) {
	app := newTestApp(t)
	token, _ := app.signIn(t)

	w, env := app.do(t, "POST", "/api/me/movies/603/like", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"liked":true`)

	// 目录不可用时使用请求体里的电影信息
	w, env = app.do(t, "POST", "/api/me/movies/42/save", token, gin.H{"title": "Zodiac", "poster_url": "http://img/z.jpg"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"saved":true`)

	w, _ = app.do(t, "POST", "/api/me/movies/42/like", token, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)

	w, _ = app.do(t, "POST", "/api/me/movies/abc/like", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.do(t, "POST", "/api/me/movies/999/like", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = app.do(t, "GET", "/api/me/movies?filter=liked", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var liked []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &liked))
	require.Len(t, liked, 1)
	assert.Equal(t, "Matrix", liked[0].Title)

	// 目录可用时请求体里的标题被忽略
	w, _ = app.do(t, "POST", "/api/me/movies/603/save", token, gin.H{"title": "Hacked"})
	require.Equal(t, http.StatusOK, w.Code)
	w, env = app.do(t, "GET", "/api/me/movies?filter=saved", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Matrix")
	assert.Contains(t, string(env.Data), "Zodiac")
	assert.NotContains(t, string(env.Data), "Hacked")

	w, _ = app.do(t, "GET", "/api/me/movies?filter=watched", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// 详情页带上当前用户的标记
	w, env = app.do(t, "GET", "/api/movies/603", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"liked":true`)

	// 不喜欢会清除喜欢
	w, env = app.do(t, "POST", "/api/me/movies/603/dislike", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"liked":false`)
	assert.Contains(t, string(env.Data), `"disliked":true`)
}

func TestReviewEndpoints(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signIn(t)

	w, env := app.do(t, "GET", "/api/me/reviews/603", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "null", string(env.Data))

	w, _ = app.do(t, "PUT", "/api/me/reviews/603", token, gin.H{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = app.do(t, "PUT", "/api/me/reviews/603", token, gin.H{"rating": 5, "comment": "obra-prima"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"rating":5`)

	w, env = app.do(t, "GET", "/api/movies/603/reviews", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []struct {
		UserID string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reviews))
	require.Len(t, reviews, 1)
	assert.Equal(t, userID, reviews[0].UserID)

	w, env = app.do(t, "GET", "/api/me/reviews", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &reviews))
	assert.Len(t, reviews, 1)

	w, _ = app.do(t, "DELETE", "/api/me/reviews/603", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = app.do(t, "DELETE", "/api/me/reviews/603", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = app.do(t, "GET", "/api/movies/603/reviews", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", string(env.Data))
}

func TestProfileEndpoints(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signIn(t)

	w, _ := app.do(t, "PUT", "/api/me/username", token, gin.H{"username": "ab"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := app.do(t, "PUT", "/api/me/username", token, gin.H{"username": "ana_maria"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"username":"ana_maria"`)

	w, env = app.do(t, "GET", "/api/users?q=ana", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), userID)

	w, env = app.do(t, "GET", "/api/users/"+userID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "ana_maria")

	w, _ = app.do(t, "GET", "/api/users/missing", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func avatarRequest(t *testing.T, token, filename string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/api/me/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestAvatarUploadAndServe(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signIn(t)

	w, _ := app.serve(t, avatarRequest(t, token, "notes.txt", []byte("hello world")))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = app.serve(t, avatarRequest(t, token, "big.png", append(pngBytes, make([]byte, 2048)...)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w, env := app.serve(t, avatarRequest(t, token, "me.png", pngBytes))
	require.Equal(t, http.StatusOK, w.Code)
	var out struct {
		AvatarURL string `json:"avatar_url"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &out))
	assert.True(t, strings.HasPrefix(out.AvatarURL, "http://example.test/storage/avatars/"+userID+"/avatar.png?t="))

	w, _ = app.do(t, "GET", "/storage/avatars/"+userID+"/avatar.png", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, pngBytes, w.Body.Bytes())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	w, _ = app.do(t, "GET", "/storage/avatars/"+userID+"/missing.png", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAvatarFromURL(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signIn(t)

	img := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	defer img.Close()

	w, _ := app.do(t, "POST", "/api/me/avatar", token, gin.H{"url": "file:///etc/passwd"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := app.do(t, "POST", "/api/me/avatar", token, gin.H{"url": img.URL + "/photos/me.jpeg"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "/avatars/"+userID+"/avatar.png?t=")

	stored, err := app.bucket.ReadAll(userID + "/avatar.png")
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)
}

func TestAvatarUploadIgnoresClientFilename(t *testing.T) {
	app := newTestApp(t)
	token, userID := app.signIn(t)

	// 合法 PNG 但文件名是 html：按内容存为 png
	w, env := app.serve(t, avatarRequest(t, token, "evil.html", pngBytes))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "/avatars/"+userID+"/avatar.png?t=")
	_, err := app.bucket.ReadAll(userID + "/avatar.html")
	assert.Error(t, err)

	// 带脚本的 SVG 被拒绝
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)
	w, _ = app.serve(t, avatarRequest(t, token, "a.svg", svg))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	_, err = app.bucket.ReadAll(userID + "/avatar.svg")
	assert.Error(t, err)

	// 存储里即使有其他类型的文件也不会被输出
	require.NoError(t, app.bucket.Upload(context.Background(), userID+"/avatar.html", []byte("<script>x</script>"), true))
	w, _ = app.do(t, "GET", "/storage/avatars/"+userID+"/avatar.html", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "<script>")
}
