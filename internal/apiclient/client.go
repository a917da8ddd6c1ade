// Package apiclient 终端客户端访问服务端 JSON API 的封装。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/utils"
)

// APIError 服务端返回 success=false
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
}

// Client 带登录状态的 API 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.Mutex
	token string

	// OnRefresh 服务端续期 token 时回调，用于持久化新 token
	OnRefresh func(token string)
}

// New 创建客户端
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken 设置登录 token
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token 当前 token
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SignUp 注册
func (c *Client) SignUp(ctx context.Context, email, password, username string) (*model.Profile, error) {
	var profile model.Profile
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"email": email, "password": password, "username": username,
	}, &profile)
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// SignIn 登录，成功后客户端持有新 token
func (c *Client) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	var sess model.Session
	err := c.do(ctx, http.MethodPost, "/api/auth/signin", map[string]string{
		"email": email, "password": password,
	}, &sess)
	if err != nil {
		return nil, err
	}
	c.SetToken(sess.Token)
	return &sess, nil
}

// SignOut 登出并丢弃 token
func (c *Client) SignOut(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/signout", nil, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// Me 当前用户
type Me struct {
	Profile  *model.Profile               `json:"profile"`
	Statuses map[string]model.MovieStatus `json:"statuses"`
	Pending  []string                     `json:"pending"`
	State    string                       `json:"state"`
}

// Me 当前用户资料与标记
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/api/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Browse 空查询返回热门，否则搜索
func (c *Client) Browse(ctx context.Context, query string) ([]model.Movie, error) {
	var movies []model.Movie
	if err := c.do(ctx, http.MethodGet, "/api/movies/search?query="+url.QueryEscape(query), nil, &movies); err != nil {
		return nil, err
	}
	return movies, nil
}

// Toggle action 为 like、dislike 或 save
func (c *Client) Toggle(ctx context.Context, action, movieID string) (model.MovieStatus, error) {
	var out struct {
		Status model.MovieStatus `json:"status"`
	}
	path := fmt.Sprintf("/api/me/movies/%s/%s", url.PathEscape(movieID), action)
	if err := c.do(ctx, http.MethodPost, path, nil, &out); err != nil {
		return model.MovieStatus{}, err
	}
	return out.Status, nil
}

// PutReview 新增或修改影评
func (c *Client) PutReview(ctx context.Context, movieID string, rating int, comment string) (*model.Review, error) {
	var review model.Review
	err := c.do(ctx, http.MethodPut, "/api/me/reviews/"+url.PathEscape(movieID), map[string]interface{}{
		"rating": rating, "comment": comment,
	}, &review)
	if err != nil {
		return nil, err
	}
	return &review, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, target interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if fresh := resp.Header.Get(middleware.RefreshHeader); fresh != "" {
		c.SetToken(fresh)
		if c.OnRefresh != nil {
			c.OnRefresh(fresh)
		}
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
			return &utils.StatusError{URL: req.URL.Redacted(), Code: resp.StatusCode}
		}
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if target == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, target)
}
