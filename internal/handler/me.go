package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/session"
	"github.com/user/cineverse/internal/utils"
)

// Me 当前用户资料与全部标记
func (h *Handler) Me(c *gin.Context) {
	cache, ok := h.cache(c)
	if !ok {
		return
	}
	utils.Success(c, gin.H{
		"profile":  cache.Profile(),
		"statuses": cache.Statuses(),
		"pending":  cache.Pending(),
		"state":    cache.State().String(),
	})
}

// MyMovies 个人主页的喜欢/不喜欢/收藏列表
func (h *Handler) MyMovies(c *gin.Context) {
	filter := session.Filter(c.DefaultQuery("filter", string(session.FilterLiked)))
	if !filter.Valid() {
		utils.BadRequest(c, "filter 只能是 liked、disliked 或 saved")
		return
	}
	cache, ok := h.cache(c)
	if !ok {
		return
	}
	utils.Success(c, cache.Movies(filter))
}

type toggleFunc func(*session.Cache, context.Context, model.Movie) (model.MovieStatus, error)

// LikeMovie 切换喜欢
func (h *Handler) LikeMovie(c *gin.Context) {
	h.toggle(c, (*session.Cache).ToggleLiked)
}

// DislikeMovie 切换不喜欢
func (h *Handler) DislikeMovie(c *gin.Context) {
	h.toggle(c, (*session.Cache).ToggleDisliked)
}

// SaveMovie 切换收藏
func (h *Handler) SaveMovie(c *gin.Context) {
	h.toggle(c, (*session.Cache).ToggleSaved)
}

func (h *Handler) toggle(c *gin.Context, fn toggleFunc) {
	var in movieInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			utils.BadRequest(c, "请求格式错误")
			return
		}
	}

	movie, err := h.resolveMovie(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		h.fail(c, err)
		return
	}
	cache, ok := h.cache(c)
	if !ok {
		return
	}

	status, err := fn(cache, c.Request.Context(), *movie)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, gin.H{"movie_id": movie.ID, "status": status})
}

type usernameRequest struct {
	Username string `json:"username"`
}

// UpdateUsername 修改用户名：过短 400，已被占用 409
func (h *Handler) UpdateUsername(c *gin.Context) {
	var req usernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求格式错误")
		return
	}
	cache, ok := h.cache(c)
	if !ok {
		return
	}

	if err := cache.UpdateProfile(c.Request.Context(), req.Username); err != nil {
		h.fail(c, err)
		return
	}

	// 同步 Session 中的用户名
	profile := cache.Profile()
	if profile != nil {
		sess := middleware.GetSession(c)
		saveSessionUser(c, model.SessionUser{ID: sess.UserID, Email: sess.Email, Username: profile.Username})
	}
	utils.Success(c, profile)
}

type avatarURLRequest struct {
	URL string `json:"url" binding:"required"`
}

// UpdateAvatar 上传头像：multipart 字段 avatar，或 JSON {"url": "..."} 从网络地址拉取
func (h *Handler) UpdateAvatar(c *gin.Context) {
	if c.ContentType() == gin.MIMEJSON {
		h.updateAvatarFromURL(c)
		return
	}

	limit := h.Config.AvatarMaxBytes
	if limit <= 0 {
		limit = 5 * 1024 * 1024
	}
	// multipart 自身的开销留出 1MB
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		utils.BadRequest(c, "请选择要上传的图片")
		return
	}
	if fileHeader.Size > limit {
		h.fail(c, model.ErrImageTooLarge)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		utils.BadRequest(c, "读取图片失败")
		return
	}
	defer file.Close()

	cache, ok := h.cache(c)
	if !ok {
		return
	}
	avatarURL, err := cache.UpdateAvatarData(c.Request.Context(), file)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, gin.H{"avatar_url": avatarURL, "profile": cache.Profile()})
}

// updateAvatarFromURL 只接受 http(s) 地址，不允许读取服务器本地文件
func (h *Handler) updateAvatarFromURL(c *gin.Context) {
	var req avatarURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请提供图片地址")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		utils.BadRequest(c, "图片地址只支持 http 或 https")
		return
	}

	cache, ok := h.cache(c)
	if !ok {
		return
	}
	avatarURL, err := cache.UpdateAvatar(c.Request.Context(), req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, gin.H{"avatar_url": avatarURL, "profile": cache.Profile()})
}

// MyReviews 当前用户的全部影评
func (h *Handler) MyReviews(c *gin.Context) {
	reviews, err := h.Users.UserReviews(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, reviews)
}

// GetReview 当前用户对某部电影的影评，没有时 data 为 null
func (h *Handler) GetReview(c *gin.Context) {
	cache, ok := h.cache(c)
	if !ok {
		return
	}
	review, err := cache.GetReview(c.Request.Context(), c.Param("movieId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, review)
}

type reviewRequest struct {
	movieInput
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// PutReview 新增或修改影评
func (h *Handler) PutReview(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求格式错误")
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		h.fail(c, model.ErrInvalidRating)
		return
	}

	movieID := c.Param("movieId")
	movie, err := h.resolveMovie(c.Request.Context(), movieID, req.movieInput)
	if err != nil {
		h.fail(c, err)
		return
	}
	cache, ok := h.cache(c)
	if !ok {
		return
	}
	if err := cache.AddReview(c.Request.Context(), *movie, req.Rating, req.Comment); err != nil {
		h.fail(c, err)
		return
	}

	review, err := cache.GetReview(c.Request.Context(), movieID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, review)
}

// DeleteReview 删除影评，不存在也返回成功
func (h *Handler) DeleteReview(c *gin.Context) {
	cache, ok := h.cache(c)
	if !ok {
		return
	}
	if err := cache.DeleteReview(c.Request.Context(), c.Param("movieId")); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessWithMessage(c, "已删除", nil)
}
