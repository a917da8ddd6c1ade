package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/user/cineverse/internal/model"
)

// UpdateProfile 修改用户名；长度不足时不访问远端
func (c *Cache) UpdateProfile(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := c.validate.Var(username, "min=3"); err != nil {
		return model.ErrUsernameTooShort
	}

	sess, epoch := c.currentSession()
	if sess == nil {
		return model.ErrNoSession
	}

	if err := c.remote.UpdateUsername(ctx, sess.UserID, username); err != nil {
		if errors.Is(err, model.ErrUsernameTaken) {
			return err
		}
		return fmt.Errorf("修改用户名失败: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch && c.profile != nil {
		p := *c.profile
		p.Username = username
		p.UpdatedAt = c.opts.Now()
		c.profile = &p
	}
	return nil
}

// UpdateAvatar 从 URL 或本地路径读取图片并设为头像，返回新的头像地址
func (c *Cache) UpdateAvatar(ctx context.Context, imageURI string) (string, error) {
	if sess, _ := c.currentSession(); sess == nil {
		return "", model.ErrNoSession
	}

	data, err := c.readImage(ctx, imageURI)
	if err != nil {
		return "", err
	}
	return c.UpdateAvatarData(ctx, bytes.NewReader(data))
}

// UpdateAvatarData 上传头像到 avatars/{userId}/avatar.{ext}（覆盖），
// 扩展名只由识别出的图片类型决定，客户端的文件名不参与。
// 地址附带时间戳避免客户端缓存；任何一步失败本地都不变
func (c *Cache) UpdateAvatarData(ctx context.Context, r io.Reader) (string, error) {
	sess, epoch := c.currentSession()
	if sess == nil {
		return "", model.ErrNoSession
	}
	if c.opts.Storage == nil {
		return "", errors.New("未配置头像存储")
	}

	data, err := io.ReadAll(io.LimitReader(r, c.opts.MaxAvatarBytes+1))
	if err != nil {
		return "", fmt.Errorf("读取图片失败: %w", err)
	}
	if int64(len(data)) > c.opts.MaxAvatarBytes {
		return "", model.ErrImageTooLarge
	}

	ext, ok := avatarExt(mimetype.Detect(data))
	if !ok {
		return "", model.ErrNotAnImage
	}

	objectPath := fmt.Sprintf("%s/avatar.%s", sess.UserID, ext)
	if err := c.opts.Storage.Upload(ctx, objectPath, data, true); err != nil {
		return "", fmt.Errorf("上传头像失败: %w", err)
	}

	avatarURL := fmt.Sprintf("%s?t=%d", c.opts.Storage.PublicURL(objectPath), c.opts.Now().UnixMilli())
	if err := c.remote.UpdateAvatarURL(ctx, sess.UserID, avatarURL); err != nil {
		return "", fmt.Errorf("保存头像地址失败: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch == epoch && c.profile != nil {
		p := *c.profile
		p.AvatarURL = &avatarURL
		p.UpdatedAt = c.opts.Now()
		c.profile = &p
	}
	return avatarURL, nil
}

func (c *Cache) readImage(ctx context.Context, imageURI string) ([]byte, error) {
	u, err := url.Parse(imageURI)
	if err != nil {
		return nil, fmt.Errorf("无效的图片地址: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURI, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.opts.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("下载图片失败: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("下载图片失败: HTTP %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxAvatarBytes+1))
		if err != nil {
			return nil, fmt.Errorf("下载图片失败: %w", err)
		}
		return data, nil
	case "file", "":
		p := u.Path
		if u.Scheme == "" {
			p = imageURI
		}
		f, err := c.opts.FS.Open(p)
		if err != nil {
			return nil, fmt.Errorf("读取图片失败: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, c.opts.MaxAvatarBytes+1))
		if err != nil {
			return nil, fmt.Errorf("读取图片失败: %w", err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("不支持的图片地址: %s", u.Scheme)
}

// avatarTypes 允许作为头像的图片类型。SVG 可以携带脚本，不在其中
var avatarTypes = []struct {
	mime string
	ext  string
}{
	{"image/png", "png"},
	{"image/jpeg", "jpg"},
	{"image/gif", "gif"},
	{"image/webp", "webp"},
}

// avatarExt 按识别出的类型返回扩展名，不在白名单内返回 false
func avatarExt(mt *mimetype.MIME) (string, bool) {
	if mt == nil {
		return "", false
	}
	for _, t := range avatarTypes {
		if mt.Is(t.mime) {
			return t.ext, true
		}
	}
	return "", false
}

// AvatarContentType 按头像文件名返回响应的 Content-Type，不是头像文件时返回 false
func AvatarContentType(name string) (string, bool) {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	for _, t := range avatarTypes {
		if t.ext == ext {
			return t.mime, true
		}
	}
	return "", false
}
