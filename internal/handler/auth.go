package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/middleware"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/utils"
)

type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp 注册
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请求格式错误")
		return
	}

	_, profile, err := h.Auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Created(c, profile)
}

// SignIn 登录：返回 token 并写入 Cookie
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "请输入邮箱和密码")
		return
	}

	sess, err := h.Auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	middleware.SetTokenCookie(c, sess.Token, sess.ExpiresAt)

	user := model.SessionUser{ID: sess.UserID, Email: sess.Email}
	if profile, err := h.Store.FetchProfile(c.Request.Context(), sess.UserID); err == nil {
		user.Username = profile.Username
	}
	saveSessionUser(c, user)

	utils.Success(c, sess)
}

// SignOut 登出：注销 token 并清空缓存
func (h *Handler) SignOut(c *gin.Context) {
	sess := middleware.GetSession(c)
	if cache, ok := h.Sessions.Peek(sess.UserID); ok && cache.Session() != nil {
		// 缓存持有的可能是其他设备的会话，只注销本次请求的会话
		if err := cache.SignOut(c.Request.Context(), sess); err != nil {
			h.fail(c, err)
			return
		}
	} else if err := h.Auth.SignOut(c.Request.Context(), sess); err != nil {
		h.fail(c, err)
		return
	}

	middleware.ClearTokenCookie(c)
	clearSessionUser(c)
	utils.SuccessWithMessage(c, "已退出登录", nil)
}
