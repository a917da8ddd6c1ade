package repository

import (
	"context"

	"github.com/user/cineverse/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovieStatusRepository struct {
	db *gorm.DB
}

func NewMovieStatusRepository(db *gorm.DB) *MovieStatusRepository {
	return &MovieStatusRepository{db: db}
}

// Upsert 写入用户对电影的标记
func (r *MovieStatusRepository) Upsert(ctx context.Context, s *model.MovieStatusRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"liked", "disliked", "saved"}),
	}).Omit("Movie").Create(s).Error
}

// ListByUser 获取用户全部标记（附带电影）
func (r *MovieStatusRepository) ListByUser(ctx context.Context, userID string) ([]*model.MovieStatusRecord, error) {
	var records []*model.MovieStatusRecord
	err := r.db.WithContext(ctx).Preload("Movie").
		Where("user_id = ?", userID).
		Find(&records).Error
	return records, err
}

// ListLikedByUser 获取用户喜欢的电影（公开主页）
func (r *MovieStatusRepository) ListLikedByUser(ctx context.Context, userID string) ([]*model.MovieStatusRecord, error) {
	var records []*model.MovieStatusRecord
	err := r.db.WithContext(ctx).Preload("Movie").
		Where("user_id = ? AND liked = ?", userID, true).
		Find(&records).Error
	return records, err
}

// DeleteCleared 删除三个标记都为 false 的行，与"没有关系"等价
func (r *MovieStatusRepository) DeleteCleared(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("liked = ? AND disliked = ? AND saved = ?", false, false, false).
		Delete(&model.MovieStatusRecord{})
	return res.RowsAffected, res.Error
}
