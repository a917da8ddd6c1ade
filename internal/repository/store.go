package repository

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/user/cineverse/internal/model"
)

// Store 将各仓库组合成会话缓存使用的远端存储，
// 所有行在进出边界时都做结构校验
type Store struct {
	repos    *Repositories
	validate *validator.Validate
}

// NewStore 创建远端存储
func NewStore(repos *Repositories) *Store {
	return &Store{
		repos:    repos,
		validate: validator.New(),
	}
}

// FetchProfile 读取用户资料，不存在返回 ErrNotFound
func (s *Store) FetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	profile, err := s.repos.Profile.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, model.ErrNotFound
	}
	if err := s.validate.Struct(profile); err != nil {
		return nil, fmt.Errorf("profiles 行格式错误: %w", err)
	}
	return profile, nil
}

// FetchStatuses 读取用户全部标记
func (s *Store) FetchStatuses(ctx context.Context, userID string) ([]model.StatusEntry, error) {
	records, err := s.repos.MovieStatus.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := make([]model.StatusEntry, 0, len(records))
	for _, rec := range records {
		entry, err := s.toEntry(rec)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// FetchLiked 读取某用户喜欢的电影（公开读取）
func (s *Store) FetchLiked(ctx context.Context, userID string) ([]model.Movie, error) {
	records, err := s.repos.MovieStatus.ListLikedByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	movies := make([]model.Movie, 0, len(records))
	for _, rec := range records {
		if rec.Movie == nil {
			continue
		}
		if err := s.validate.Struct(rec.Movie); err != nil {
			return nil, fmt.Errorf("movies 行格式错误: %w", err)
		}
		movies = append(movies, rec.Movie.ToMovie())
	}
	return movies, nil
}

func (s *Store) toEntry(rec *model.MovieStatusRecord) (model.StatusEntry, error) {
	if err := s.validate.Struct(rec); err != nil {
		return model.StatusEntry{}, fmt.Errorf("movie_status 行格式错误: %w", err)
	}
	entry := model.StatusEntry{
		MovieID: model.FormatMovieID(rec.MovieID),
		Status: model.MovieStatus{
			Liked:    rec.Liked,
			Disliked: rec.Disliked,
			Saved:    rec.Saved,
		},
	}
	if rec.Movie != nil {
		if err := s.validate.Struct(rec.Movie); err != nil {
			return model.StatusEntry{}, fmt.Errorf("movies 行格式错误: %w", err)
		}
		m := rec.Movie.ToMovie()
		entry.Movie = &m
	}
	return entry, nil
}

// UpsertMovie 确保电影行存在
func (s *Store) UpsertMovie(ctx context.Context, movie model.Movie) error {
	rec, err := movie.ToRecord()
	if err != nil {
		return err
	}
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("电影数据不完整: %w", err)
	}
	return s.repos.Movie.Upsert(ctx, rec)
}

// UpsertStatus 写入标记
func (s *Store) UpsertStatus(ctx context.Context, userID, movieID string, status model.MovieStatus) error {
	id, err := model.ParseMovieID(movieID)
	if err != nil {
		return err
	}
	rec := &model.MovieStatusRecord{
		UserID:   userID,
		MovieID:  id,
		Liked:    status.Liked,
		Disliked: status.Disliked,
		Saved:    status.Saved,
	}
	if err := s.validate.Struct(rec); err != nil {
		return err
	}
	return s.repos.MovieStatus.Upsert(ctx, rec)
}

// UpdateUsername 修改用户名
func (s *Store) UpdateUsername(ctx context.Context, userID, username string) error {
	return s.repos.Profile.UpdateUsername(ctx, userID, username)
}

// UpdateAvatarURL 修改头像地址
func (s *Store) UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error {
	return s.repos.Profile.UpdateAvatarURL(ctx, userID, avatarURL)
}

// UpsertReview 写入影评
func (s *Store) UpsertReview(ctx context.Context, review model.Review) error {
	movieID, err := model.ParseMovieID(review.MovieID)
	if err != nil {
		return err
	}
	rec := &model.ReviewRecord{
		UserID:  review.UserID,
		MovieID: movieID,
		Rating:  review.Rating,
		Comment: normalizeComment(review.Comment),
	}
	if err := s.validate.Struct(rec); err != nil {
		return err
	}
	return s.repos.Review.Upsert(ctx, rec)
}

// DeleteReview 删除影评
func (s *Store) DeleteReview(ctx context.Context, userID, movieID string) error {
	id, err := model.ParseMovieID(movieID)
	if err != nil {
		return err
	}
	return s.repos.Review.Delete(ctx, userID, id)
}

// FetchReview 读取单条影评，没有时返回 nil, nil
func (s *Store) FetchReview(ctx context.Context, userID, movieID string) (*model.Review, error) {
	id, err := model.ParseMovieID(movieID)
	if err != nil {
		return nil, err
	}
	rec, err := s.repos.Review.GetByUserAndMovie(ctx, userID, id)
	if err != nil || rec == nil {
		return nil, err
	}
	if err := s.validate.Struct(rec); err != nil {
		return nil, fmt.Errorf("reviews 行格式错误: %w", err)
	}
	review := rec.ToReview()
	return &review, nil
}

// ListUserReviews 用户的全部影评（个人主页"影评"页签）
func (s *Store) ListUserReviews(ctx context.Context, userID string) ([]model.Review, error) {
	records, err := s.repos.Review.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toReviews(records), nil
}

// ListMovieReviews 电影下的全部影评
func (s *Store) ListMovieReviews(ctx context.Context, movieID string) ([]model.Review, error) {
	id, err := model.ParseMovieID(movieID)
	if err != nil {
		return nil, err
	}
	records, err := s.repos.Review.ListByMovie(ctx, id)
	if err != nil {
		return nil, err
	}
	return toReviews(records), nil
}

func toReviews(records []*model.ReviewRecord) []model.Review {
	reviews := make([]model.Review, 0, len(records))
	for _, rec := range records {
		reviews = append(reviews, rec.ToReview())
	}
	return reviews
}

// 影评只保存纯文本
var commentPolicy = bluemonday.StrictPolicy()

// normalizeComment 去掉标签和首尾空白，空评论保存为 NULL
func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	trimmed := strings.TrimSpace(html.UnescapeString(commentPolicy.Sanitize(*comment)))
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
