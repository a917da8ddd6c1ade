package model

import (
	"time"
)

// Session 已登录会话
type Session struct {
	ID        string    `json:"-"` // token 的 jti，用于注销
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired 会话是否已过期
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// AuthEventKind 登录状态变化类型
type AuthEventKind int

const (
	SignedIn AuthEventKind = iota + 1
	SignedOut
)

func (k AuthEventKind) String() string {
	switch k {
	case SignedIn:
		return "signed_in"
	case SignedOut:
		return "signed_out"
	}
	return "unknown"
}

// AuthEvent 登录状态变化
type AuthEvent struct {
	Kind    AuthEventKind
	Session Session
}
