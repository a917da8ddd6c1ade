package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/user/cineverse/internal/model"
	"gorm.io/gorm"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByID 根据用户 ID 查找资料，不存在返回 nil
func (r *ProfileRepository) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var profile model.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateUsername 更新用户名，重名返回 ErrUsernameTaken
func (r *ProfileRepository) UpdateUsername(ctx context.Context, id, username string) error {
	return r.update(ctx, id, map[string]interface{}{
		"username":   username,
		"updated_at": time.Now(),
	})
}

// UpdateAvatarURL 更新头像地址
func (r *ProfileRepository) UpdateAvatarURL(ctx context.Context, id, avatarURL string) error {
	return r.update(ctx, id, map[string]interface{}{
		"avatar_url": avatarURL,
		"updated_at": time.Now(),
	})
}

func (r *ProfileRepository) update(ctx context.Context, id string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&model.Profile{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		if IsUniqueViolation(res.Error) {
			return model.ErrUsernameTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

// SearchByUsername 按用户名模糊搜索（不区分大小写）
func (r *ProfileRepository) SearchByUsername(ctx context.Context, query string, limit int) ([]*model.Profile, error) {
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var profiles []*model.Profile
	err := r.db.WithContext(ctx).
		Where("LOWER(username) LIKE ? ESCAPE '\\'", pattern).
		Order("username ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
