package router

import (
	"encoding/gob"
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/handler"
	"github.com/user/cineverse/internal/metrics"
	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/model"
)

const sessionName = "cineverse"

// New 创建 Gin 引擎并挂载中间件与路由
func New(h *handler.Handler, m *metrics.Collector) *gin.Engine {
	// Session 中保存的用户信息
	gob.Register(model.SessionUser{})

	if h.Config.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(m))

	// 头像走 ServeContent 支持 Range，不压缩
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/storage/", "/metrics"})))

	store := cookie.NewStore([]byte(h.Config.AppSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7, // 7 天
		HttpOnly: true,
		Secure:   h.Config.Env == "production",
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	RegisterRoutes(r, h, m)
	return r
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(r *gin.Engine, h *handler.Handler, m *metrics.Collector) {
	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.Sessions.Len()})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	// 头像文件
	r.GET("/storage/"+h.Avatars.Name()+"/*path", h.ServeAvatar)

	limiter := middleware.NewRateLimiter(h.Config.RateLimitPerMinute)

	api := r.Group("/api")
	api.Use(middleware.OptionalAuth(h.Auth))
	api.Use(limiter.Middleware())
	{
		// ==================== 认证 ====================
		auth := api.Group("/auth")
		{
			auth.POST("/signup", h.SignUp)
			auth.POST("/signin", h.SignIn)
			auth.POST("/signout", middleware.RequireAuth(h.Auth), h.SignOut)
		}

		// ==================== 电影目录 ====================
		api.GET("/movies/popular", h.Popular)
		api.GET("/movies/search", h.SearchMovies)
		api.GET("/movies/:id", h.MovieDetails)
		api.GET("/movies/:id/reviews", h.MovieReviews)

		// ==================== 用户 ====================
		api.GET("/users", h.SearchUsers)
		api.GET("/users/:id", h.PublicProfile)

		// ==================== 当前用户（需要登录）====================
		me := api.Group("/me")
		me.Use(middleware.RequireAuth(h.Auth))
		{
			me.GET("", h.Me)
			me.GET("/movies", h.MyMovies)
			me.POST("/movies/:id/like", h.LikeMovie)
			me.POST("/movies/:id/dislike", h.DislikeMovie)
			me.POST("/movies/:id/save", h.SaveMovie)
			me.PUT("/username", h.UpdateUsername)
			me.POST("/avatar", h.UpdateAvatar)
			me.GET("/reviews", h.MyReviews)
			me.GET("/reviews/:movieId", h.GetReview)
			me.PUT("/reviews/:movieId", h.PutReview)
			me.DELETE("/reviews/:movieId", h.DeleteReview)
		}
	}
}
