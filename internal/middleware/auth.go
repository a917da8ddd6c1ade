package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/auth"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/utils"
)

const (
	TokenCookie = "token"
	// RefreshHeader 滑动续期后的新 token，供不使用 Cookie 的客户端更新本地存储
	RefreshHeader = "X-Refreshed-Token"

	sessionKey = "session"
)

// RequireAuth 必须登录中间件；OptionalAuth 已解析出会话时直接放行
func RequireAuth(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetSession(c) != nil {
			c.Next()
			return
		}
		sess, err := svc.Authenticate(c.Request.Context(), extractToken(c))
		if err != nil {
			msg := "未登录"
			if errors.Is(err, model.ErrSessionRevoked) {
				msg = err.Error()
			}
			utils.Unauthorized(c, msg)
			c.Abort()
			return
		}

		c.Set(sessionKey, refresh(c, svc, sess))
		c.Next()
	}
}

// OptionalAuth 可选登录中间件（不强制要求登录）
func OptionalAuth(svc *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := extractToken(c); token != "" {
			if sess, err := svc.Authenticate(c.Request.Context(), token); err == nil {
				c.Set(sessionKey, refresh(c, svc, sess))
			}
		}
		c.Next()
	}
}

// refresh 滑动续期：有效期消耗过半时下发新 token
func refresh(c *gin.Context, svc *auth.Service, sess *model.Session) *model.Session {
	fresh, err := svc.Refresh(sess)
	if err != nil || fresh == nil {
		return sess
	}
	SetTokenCookie(c, fresh.Token, fresh.ExpiresAt)
	c.Header(RefreshHeader, fresh.Token)
	return fresh
}

// extractToken 优先从 Cookie 获取，其次 Authorization Header
func extractToken(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return cookie
	}
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// SetTokenCookie 写入登录 Cookie
func SetTokenCookie(c *gin.Context, token string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge < 0 {
		maxAge = 0
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(TokenCookie, token, maxAge, "/", "", false, true)
}

// ClearTokenCookie 删除登录 Cookie
func ClearTokenCookie(c *gin.Context) {
	c.SetCookie(TokenCookie, "", -1, "/", "", false, true)
}

// GetSession 从上下文获取会话（未登录返回 nil）
func GetSession(c *gin.Context) *model.Session {
	if v, exists := c.Get(sessionKey); exists {
		if sess, ok := v.(*model.Session); ok {
			return sess
		}
	}
	return nil
}

// GetUserID 从上下文获取用户 ID（未登录返回空字符串）
func GetUserID(c *gin.Context) string {
	if sess := GetSession(c); sess != nil {
		return sess.UserID
	}
	return ""
}
