package model

import (
	"time"
)

// Account 登录账号（邮箱 + 密码）
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile 公开资料，与 Account 一对一
type Profile struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36" validate:"required"`
	Username  string    `json:"username" gorm:"uniqueIndex;size:64" validate:"required,min=3"`
	AvatarURL *string   `json:"avatar_url"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionUser 专门用于 Session 存储的用户信息结构
type SessionUser struct {
	ID       string
	Email    string
	Username string
}

// HasAvatar 是否已设置头像
func (p *Profile) HasAvatar() bool {
	return p != nil && p.AvatarURL != nil && *p.AvatarURL != ""
}
