package session

import (
	"context"

	"github.com/user/cineverse/internal/model"
)

// Remote 会话缓存依赖的远端存储，由 repository.Store 实现
type Remote interface {
	FetchProfile(ctx context.Context, userID string) (*model.Profile, error)
	FetchStatuses(ctx context.Context, userID string) ([]model.StatusEntry, error)
	UpsertMovie(ctx context.Context, movie model.Movie) error
	UpsertStatus(ctx context.Context, userID, movieID string, status model.MovieStatus) error
	UpdateUsername(ctx context.Context, userID, username string) error
	UpdateAvatarURL(ctx context.Context, userID, avatarURL string) error
	UpsertReview(ctx context.Context, review model.Review) error
	DeleteReview(ctx context.Context, userID, movieID string) error
	FetchReview(ctx context.Context, userID, movieID string) (*model.Review, error)
}

// AvatarStorage 头像存储桶，由 storage.Bucket 实现
type AvatarStorage interface {
	Upload(ctx context.Context, objectPath string, data []byte, upsert bool) error
	PublicURL(objectPath string) string
}

// Authenticator 远端会话注销，由 auth.Service 实现
type Authenticator interface {
	SignOut(ctx context.Context, sess *model.Session) error
}
