package handler

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/cineverse/internal/session"
	"github.com/user/cineverse/internal/storage"
	"github.com/user/cineverse/internal/utils"
)

// ServeAvatar 读取头像文件，只输出白名单内的图片类型
func (h *Handler) ServeAvatar(c *gin.Context) {
	objectPath := strings.TrimPrefix(c.Param("path"), "/")
	contentType, ok := session.AvatarContentType(objectPath)
	if !ok {
		utils.NotFound(c, "文件不存在")
		return
	}

	f, info, err := h.Avatars.Open(objectPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, storage.ErrInvalidPath) {
			utils.NotFound(c, "文件不存在")
			return
		}
		h.fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", contentType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "public, max-age=300")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}
