package repository

import (
	"context"
	"errors"

	"github.com/user/cineverse/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MovieRepository struct {
	db *gorm.DB
}

func NewMovieRepository(db *gorm.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// Upsert 创建或更新电影（按 id）
func (r *MovieRepository) Upsert(ctx context.Context, movie *model.MovieRecord) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "overview", "poster_url"}),
	}).Create(movie).Error
}

// FindByID 根据 ID 查找电影
func (r *MovieRepository) FindByID(ctx context.Context, id int64) (*model.MovieRecord, error) {
	var movie model.MovieRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&movie).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &movie, nil
}

// DeleteOrphans 删除没有任何标记和影评引用的电影
func (r *MovieRepository) DeleteOrphans(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id NOT IN (?)", r.db.Model(&model.MovieStatusRecord{}).Select("movie_id")).
		Where("id NOT IN (?)", r.db.Model(&model.ReviewRecord{}).Select("movie_id")).
		Delete(&model.MovieRecord{})
	return res.RowsAffected, res.Error
}
