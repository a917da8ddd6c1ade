package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/cineverse/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReviewRepository struct {
	db *gorm.DB
}

func NewReviewRepository(db *gorm.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert 写入影评，(user_id, movie_id) 冲突时只更新评分与内容
func (r *ReviewRepository) Upsert(ctx context.Context, rec *model.ReviewRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"rating", "comment"}),
	}).Omit("Movie", "Profile").Create(rec).Error
}

// Delete 删除影评，不存在时不报错
func (r *ReviewRepository) Delete(ctx context.Context, userID string, movieID int64) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		Delete(&model.ReviewRecord{}).Error
}

// GetByUserAndMovie 获取单条影评，不存在返回 nil
func (r *ReviewRepository) GetByUserAndMovie(ctx context.Context, userID string, movieID int64) (*model.ReviewRecord, error) {
	var rec model.ReviewRecord
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ?", userID, movieID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListByUser 用户的全部影评（附带电影），最新在前
func (r *ReviewRepository) ListByUser(ctx context.Context, userID string) ([]*model.ReviewRecord, error) {
	var records []*model.ReviewRecord
	err := r.db.WithContext(ctx).Preload("Movie").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}

// ListByMovie 电影下的全部影评（附带作者资料），最新在前
func (r *ReviewRepository) ListByMovie(ctx context.Context, movieID int64) ([]*model.ReviewRecord, error) {
	var records []*model.ReviewRecord
	err := r.db.WithContext(ctx).Preload("Profile").
		Where("movie_id = ?", movieID).
		Order("created_at DESC").
		Find(&records).Error
	return records, err
}
