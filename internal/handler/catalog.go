package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/utils"
)

// Popular 热门电影
func (h *Handler) Popular(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	movies, err := h.Catalog.Popular(c.Request.Context(), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, movies)
}

// SearchMovies 搜索；空查询返回热门
func (h *Handler) SearchMovies(c *gin.Context) {
	movies, err := h.Catalog.Browse(c.Request.Context(), c.Query("query"))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, movies)
}

// MovieDetails 电影详情，登录时附带当前用户的标记
func (h *Handler) MovieDetails(c *gin.Context) {
	details, err := h.Catalog.Details(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if details == nil {
		utils.NotFound(c, "电影不存在")
		return
	}

	resp := gin.H{"movie": details}
	if sess := middleware.GetSession(c); sess != nil {
		if cache, err := h.Sessions.Acquire(c.Request.Context(), sess); err == nil {
			resp["status"] = cache.Status(details.ID)
		}
	}
	utils.Success(c, resp)
}
