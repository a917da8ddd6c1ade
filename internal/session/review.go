package session

import (
	"context"
	"fmt"

	"github.com/user/cineverse/internal/model"
)

// AddReview 新增或更新当前用户对某部电影的影评，评分 1-5，空评论存为 NULL
func (c *Cache) AddReview(ctx context.Context, movie model.Movie, rating int, comment string) error {
	if rating < 1 || rating > 5 {
		return model.ErrInvalidRating
	}
	if _, err := model.ParseMovieID(movie.ID); err != nil {
		return err
	}
	sess, _ := c.currentSession()
	if sess == nil {
		return model.ErrNoSession
	}

	if err := c.remote.UpsertMovie(ctx, movie); err != nil {
		return fmt.Errorf("保存电影失败: %w", err)
	}
	review := model.Review{
		UserID:  sess.UserID,
		MovieID: movie.ID,
		Rating:  rating,
		Comment: &comment,
	}
	if err := c.remote.UpsertReview(ctx, review); err != nil {
		return fmt.Errorf("保存影评失败: %w", err)
	}
	return nil
}

// DeleteReview 删除影评，不存在时不报错
func (c *Cache) DeleteReview(ctx context.Context, movieID string) error {
	sess, _ := c.currentSession()
	if sess == nil {
		return model.ErrNoSession
	}
	return c.remote.DeleteReview(ctx, sess.UserID, movieID)
}

// GetReview 读取当前用户的影评，没有时返回 nil, nil
func (c *Cache) GetReview(ctx context.Context, movieID string) (*model.Review, error) {
	sess, _ := c.currentSession()
	if sess == nil {
		return nil, model.ErrNoSession
	}
	return c.remote.FetchReview(ctx, sess.UserID, movieID)
}
