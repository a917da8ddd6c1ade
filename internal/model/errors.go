package model

import "errors"

var (
	ErrNotFound           = errors.New("记录不存在")
	ErrInvalidMovieID     = errors.New("无效的电影 ID")
	ErrUsernameTooShort   = errors.New("用户名至少需要 3 个字符")
	ErrUsernameTaken      = errors.New("用户名已被使用")
	ErrEmailTaken         = errors.New("该邮箱已被注册")
	ErrInvalidEmail       = errors.New("请输入有效的邮箱地址")
	ErrPasswordTooShort   = errors.New("密码至少需要 6 个字符")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrInvalidRating      = errors.New("评分必须在 1 到 5 之间")
	ErrNotAnImage         = errors.New("上传的文件不是图片")
	ErrImageTooLarge      = errors.New("图片过大")
	ErrNoSession          = errors.New("未登录")
	ErrSessionRevoked     = errors.New("会话已注销")
	ErrSuperseded         = errors.New("已被更新的加载请求取代")
)
