package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/repository"
)

const (
	userSearchMinChars = 2
	userSearchLimit    = 20
)

// PublicProfile 公开主页：资料 + 喜欢的电影
type PublicProfile struct {
	Profile *model.Profile `json:"profile"`
	Liked   []model.Movie  `json:"liked"`
}

// UserService 不需要登录的公开读取
type UserService struct {
	repos *repository.Repositories
	store *repository.Store
}

func NewUserService(repos *repository.Repositories, store *repository.Store) *UserService {
	return &UserService{repos: repos, store: store}
}

// SearchUsers 按用户名模糊搜索（不区分大小写），少于 2 个字符返回空
func (s *UserService) SearchUsers(ctx context.Context, query string) ([]*model.Profile, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < userSearchMinChars {
		return []*model.Profile{}, nil
	}
	return s.repos.Profile.SearchByUsername(ctx, query, userSearchLimit)
}

// PublicProfile 用户不存在时返回 nil, nil
func (s *UserService) PublicProfile(ctx context.Context, userID string) (*PublicProfile, error) {
	profile, err := s.store.FetchProfile(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	liked, err := s.store.FetchLiked(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &PublicProfile{Profile: profile, Liked: liked}, nil
}

// MovieReviews 电影下的影评，最新的在前
func (s *UserService) MovieReviews(ctx context.Context, movieID string) ([]model.Review, error) {
	return s.store.ListMovieReviews(ctx, movieID)
}

// UserReviews 用户写过的影评，最新的在前
func (s *UserService) UserReviews(ctx context.Context, userID string) ([]model.Review, error) {
	return s.store.ListUserReviews(ctx, userID)
}
