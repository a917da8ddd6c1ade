// Package auth 负责账号注册、登录、会话校验与注销，并向订阅者广播登录状态变化。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/repository"
)

// Listener 登录状态订阅者
type Listener func(model.AuthEvent)

// Service 认证服务
type Service struct {
	accounts *repository.AccountRepository
	revoker  Revoker
	secret   string
	expiry   time.Duration
	validate *validator.Validate
	now      func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int
}

// NewService 创建认证服务
func NewService(accounts *repository.AccountRepository, revoker Revoker, secret string, expiry time.Duration) *Service {
	return &Service{
		accounts:  accounts,
		revoker:   revoker,
		secret:    secret,
		expiry:    expiry,
		validate:  validator.New(),
		now:       time.Now,
		listeners: make(map[int]Listener),
	}
}

type signUpInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"min=6"`
	Username string `validate:"min=3"`
}

// SignUp 注册账号并开通公开资料
func (s *Service) SignUp(ctx context.Context, email, password, username string) (*model.Account, *model.Profile, error) {
	in := signUpInput{
		Email:    strings.ToLower(strings.TrimSpace(email)),
		Password: password,
		Username: strings.TrimSpace(username),
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, nil, signUpError(err)
	}

	account, profile, err := s.accounts.CreateWithProfile(ctx, in.Email, in.Username, in.Password)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[Auth] 新用户注册: %s (%s)", profile.Username, account.ID)
	return account, profile, nil
}

func signUpError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	switch verrs[0].Field() {
	case "Email":
		return model.ErrInvalidEmail
	case "Password":
		return model.ErrPasswordTooShort
	case "Username":
		return model.ErrUsernameTooShort
	}
	return err
}

// SignIn 邮箱密码登录
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	account, err := s.accounts.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if account == nil || !s.accounts.CheckPassword(account, password) {
		return nil, model.ErrInvalidCredentials
	}

	token, claims, err := GenerateToken(account.ID, account.Email, "", s.secret, s.now(), s.expiry)
	if err != nil {
		return nil, fmt.Errorf("生成 token 失败: %w", err)
	}
	sess := sessionFromClaims(token, claims)

	s.publish(model.AuthEvent{Kind: model.SignedIn, Session: *sess})
	return sess, nil
}

// Authenticate 校验 token 并返回会话
func (s *Service) Authenticate(ctx context.Context, token string) (*model.Session, error) {
	claims, err := ParseToken(token, s.secret)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("查询注销状态失败: %w", err)
	}
	if revoked {
		return nil, model.ErrSessionRevoked
	}
	return sessionFromClaims(token, claims), nil
}

// Refresh 已消耗一半有效期时签发新 token，沿用原 jti 以便注销同时覆盖新旧 token；
// 不需要刷新时返回 nil
func (s *Service) Refresh(sess *model.Session) (*model.Session, error) {
	claims, err := ParseToken(sess.Token, s.secret)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !ShouldRefresh(claims, now) {
		return nil, nil
	}

	token, fresh, err := GenerateToken(claims.UserID, claims.Email, claims.ID, s.secret, now, s.expiry)
	if err != nil {
		return nil, err
	}
	return sessionFromClaims(token, fresh), nil
}

// SignOut 注销会话：jti 在最长有效期内都视为无效
func (s *Service) SignOut(ctx context.Context, sess *model.Session) error {
	if sess == nil {
		return model.ErrNoSession
	}
	if err := s.revoker.Revoke(ctx, sess.ID, s.expiry); err != nil {
		return fmt.Errorf("注销失败: %w", err)
	}

	s.publish(model.AuthEvent{Kind: model.SignedOut, Session: *sess})
	return nil
}

// Subscribe 订阅登录状态变化，返回取消订阅函数
func (s *Service) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) publish(evt model.AuthEvent) {
	s.mu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(evt)
	}
}

func sessionFromClaims(token string, claims *Claims) *model.Session {
	sess := &model.Session{
		ID:     claims.ID,
		Token:  token,
		UserID: claims.UserID,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess
}
