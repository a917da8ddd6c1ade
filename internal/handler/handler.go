package handler

import (
	"context"
	"errors"
	"log"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/user/cineverse/internal/auth"
	"github.com/user/cineverse/internal/config"
	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/repository"
	"github.com/user/cineverse/internal/service"
	"github.com/user/cineverse/internal/session"
	"github.com/user/cineverse/internal/storage"
	"github.com/user/cineverse/internal/utils"
)

const sessionUserKey = "userinfo"

// Handler HTTP 处理器
type Handler struct {
	Config   *config.Config
	Store    *repository.Store
	Auth     *auth.Service
	Sessions *session.Manager
	Catalog  *service.CatalogService
	Users    *service.UserService
	Avatars  *storage.Bucket
}

// NewHandler 创建处理器
func NewHandler(cfg *config.Config, repos *repository.Repositories, authSvc *auth.Service,
	manager *session.Manager, catalog *service.CatalogService, avatars *storage.Bucket) *Handler {
	store := repository.NewStore(repos)
	return &Handler{
		Config:   cfg,
		Store:    store,
		Auth:     authSvc,
		Sessions: manager,
		Catalog:  catalog,
		Users:    service.NewUserService(repos, store),
		Avatars:  avatars,
	}
}

// cache 当前用户的状态缓存
func (h *Handler) cache(c *gin.Context) (*session.Cache, bool) {
	sess := middleware.GetSession(c)
	cache, err := h.Sessions.Acquire(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return cache, true
}

// resolveMovie 以目录数据为准；目录不可用时才使用请求体里的电影信息，
// 避免任意用户改写其他人列表里看到的标题
func (h *Handler) resolveMovie(ctx context.Context, id string, in movieInput) (*model.Movie, error) {
	if _, err := model.ParseMovieID(id); err != nil {
		return nil, err
	}
	details, err := h.Catalog.Details(ctx, id)
	if err != nil {
		if in.Title == "" {
			return nil, err
		}
		log.Printf("[Handler] 电影目录不可用，使用请求中的电影信息 movie=%s: %v", id, err)
		return &model.Movie{
			ID:          id,
			Title:       in.Title,
			Description: in.Description,
			PosterURL:   in.PosterURL,
		}, nil
	}
	if details == nil {
		return nil, model.ErrNotFound
	}
	return &details.Movie, nil
}

type movieInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	PosterURL   string `json:"poster_url"`
}

// saveSessionUser 登录信息写入 Cookie Session
func saveSessionUser(c *gin.Context, user model.SessionUser) {
	s := sessions.Default(c)
	s.Set(sessionUserKey, user)
	if err := s.Save(); err != nil {
		log.Printf("[Handler] 保存 Session 失败: %v", err)
	}
}

func clearSessionUser(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	if err := s.Save(); err != nil {
		log.Printf("[Handler] 清理 Session 失败: %v", err)
	}
}

// fail 按错误类型返回对应状态码
func (h *Handler) fail(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	var statusErr *utils.StatusError

	switch {
	case errors.Is(err, model.ErrUsernameTooShort),
		errors.Is(err, model.ErrInvalidMovieID),
		errors.Is(err, model.ErrInvalidEmail),
		errors.Is(err, model.ErrPasswordTooShort),
		errors.Is(err, model.ErrInvalidRating),
		errors.Is(err, model.ErrNotAnImage):
		utils.BadRequest(c, err.Error())
	case errors.As(err, &verrs):
		utils.BadRequest(c, "数据格式错误")
	case errors.Is(err, model.ErrImageTooLarge):
		utils.RequestEntityTooLarge(c, err.Error())
	case errors.Is(err, model.ErrUsernameTaken), errors.Is(err, model.ErrEmailTaken):
		utils.Conflict(c, err.Error())
	case errors.Is(err, model.ErrInvalidCredentials),
		errors.Is(err, model.ErrNoSession),
		errors.Is(err, model.ErrSessionRevoked):
		utils.Unauthorized(c, err.Error())
	case errors.Is(err, model.ErrNotFound):
		utils.NotFound(c, "")
	case errors.As(err, &statusErr):
		log.Printf("[Handler] 上游错误 %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		utils.BadGateway(c, "")
	default:
		log.Printf("[Handler] %s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
		utils.InternalServerError(c, "")
	}
}
