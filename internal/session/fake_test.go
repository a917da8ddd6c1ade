package session

import (
	"context"
	"sync"

	"github.com/user/cineverse/internal/model"
)

// fakeRemote 内存实现，fn 字段用于注入失败或阻塞
type fakeRemote struct {
	mu       sync.Mutex
	profiles map[string]*model.Profile
	entries  map[string][]model.StatusEntry
	statuses map[string]model.MovieStatus
	movies   map[string]model.Movie
	reviews  map[string]model.Review

	fetchProfileCalls  int
	fetchStatusCalls   int
	updateUsernameCall int

	fetchProfileFn   func(ctx context.Context, userID string) (*model.Profile, error)
	fetchStatusesFn  func(ctx context.Context, userID string) ([]model.StatusEntry, error)
	upsertStatusFn   func(ctx context.Context, userID, movieID string, status model.MovieStatus) error
	updateUsernameFn func(ctx context.Context, userID, username string) error
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		profiles: make(map[string]*model.Profile),
		entries:  make(map[string][]model.StatusEntry),
		statuses: make(map[string]model.MovieStatus),
		movies:   make(map[string]model.Movie),
		reviews:  make(map[string]model.Review),
	}
}

func (f *fakeRemote) addProfile(id, username string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profiles[id] = &model.Profile{ID: id, Username: username}
}

func (f *fakeRemote) FetchProfile(ctx context.Context, userID string) (*model.Profile, error) {
	f.mu.Lock()
	f.fetchProfileCalls++
	fn := f.fetchProfileFn
	p, ok := f.profiles[userID]
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID)
	}
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeRemote) FetchStatuses(ctx context.Context, userID string) ([]model.StatusEntry, error) {
	f.mu.Lock()
	f.fetchStatusCalls++
	fn := f.fetchStatusesFn
	entries := append([]model.StatusEntry(nil), f.entries[userID]...)
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, userID)
	}
	return entries, nil
}

func (f *fakeRemote) UpsertMovie(_ context.Context, movie model.Movie) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movies[movie.ID] = movie
	return nil
}

func (f *fakeRemote) UpsertStatus(ctx context.Context, userID, movieID string, status model.MovieStatus) error {
	f.mu.Lock()
	fn := f.upsertStatusFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(ctx, userID, movieID, status); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[userID+"/"+movieID] = status
	return nil
}

func (f *fakeRemote) UpdateUsername(ctx context.Context, userID, username string) error {
	f.mu.Lock()
	f.updateUsernameCall++
	fn := f.updateUsernameFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, userID, username)
	}
	return nil
}

func (f *fakeRemote) UpdateAvatarURL(_ context.Context, userID, avatarURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[userID]; ok {
		p.AvatarURL = &avatarURL
	}
	return nil
}

func (f *fakeRemote) UpsertReview(_ context.Context, review model.Review) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reviews[review.UserID+"/"+review.MovieID] = review
	return nil
}

func (f *fakeRemote) DeleteReview(_ context.Context, userID, movieID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.reviews, userID+"/"+movieID)
	return nil
}

func (f *fakeRemote) FetchReview(_ context.Context, userID, movieID string) (*model.Review, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reviews[userID+"/"+movieID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRemote) remoteStatus(userID, movieID string) (model.MovieStatus, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[userID+"/"+movieID]
	return st, ok
}

type fakeAuth struct {
	signedOut []string
	err       error
}

func (a *fakeAuth) SignOut(_ context.Context, sess *model.Session) error {
	if a.err != nil {
		return a.err
	}
	a.signedOut = append(a.signedOut, sess.ID)
	return nil
}
