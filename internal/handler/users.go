package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/utils"
)

// SearchUsers 按用户名搜索用户
func (h *Handler) SearchUsers(c *gin.Context) {
	users, err := h.Users.SearchUsers(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, users)
}

// PublicProfile 其他用户的公开主页
func (h *Handler) PublicProfile(c *gin.Context) {
	profile, err := h.Users.PublicProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if profile == nil {
		utils.NotFound(c, "用户不存在")
		return
	}
	utils.Success(c, profile)
}

// MovieReviews 某部电影的全部影评
func (h *Handler) MovieReviews(c *gin.Context) {
	movieID := c.Param("id")
	if _, err := model.ParseMovieID(movieID); err != nil {
		h.fail(c, err)
		return
	}
	reviews, err := h.Users.MovieReviews(c.Request.Context(), movieID)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, reviews)
}
