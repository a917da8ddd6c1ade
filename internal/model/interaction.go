package model

import (
	"time"
)

// MovieStatus 用户对某部电影的标记
type MovieStatus struct {
	Liked    bool `json:"liked"`
	Disliked bool `json:"disliked"`
	Saved    bool `json:"saved"`
}

// IsZero 三个标记都为 false 时等同于"没有关系"
func (s MovieStatus) IsZero() bool {
	return !s.Liked && !s.Disliked && !s.Saved
}

// ToggleLiked 切换喜欢，同时清除不喜欢
func (s MovieStatus) ToggleLiked() MovieStatus {
	s.Liked = !s.Liked
	s.Disliked = false
	return s
}

// ToggleDisliked 切换不喜欢，同时清除喜欢
func (s MovieStatus) ToggleDisliked() MovieStatus {
	s.Disliked = !s.Disliked
	s.Liked = false
	return s
}

// ToggleSaved 切换收藏，不影响喜欢/不喜欢
func (s MovieStatus) ToggleSaved() MovieStatus {
	s.Saved = !s.Saved
	return s
}

// StatusEntry 带电影信息的标记
type StatusEntry struct {
	MovieID string      `json:"movie_id"`
	Status  MovieStatus `json:"status"`
	Movie   *Movie      `json:"movie,omitempty"`
}

// MovieStatusRecord movie_status 表行，(user_id, movie_id) 唯一
type MovieStatusRecord struct {
	UserID   string       `gorm:"primaryKey;size:36" validate:"required"`
	MovieID  int64        `gorm:"primaryKey;autoIncrement:false" validate:"required,gt=0"`
	Liked    bool         `gorm:"not null"`
	Disliked bool         `gorm:"not null"`
	Saved    bool         `gorm:"not null"`
	Movie    *MovieRecord `gorm:"foreignKey:MovieID"`
}

func (MovieStatusRecord) TableName() string {
	return "movie_status"
}

// Review 用户影评，每个 (用户, 电影) 至多一条
type Review struct {
	ID        int64     `json:"id"`
	MovieID   string    `json:"movie_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	Movie     *Movie    `json:"movie,omitempty"`
	Author    *Profile  `json:"author,omitempty"`
}

// ReviewRecord reviews 表行
type ReviewRecord struct {
	ID        int64        `gorm:"primaryKey"`
	UserID    string       `gorm:"size:36;uniqueIndex:idx_reviews_user_movie" validate:"required"`
	MovieID   int64        `gorm:"uniqueIndex:idx_reviews_user_movie" validate:"required,gt=0"`
	Rating    int          `validate:"min=1,max=5"`
	Comment   *string      `gorm:"type:text"`
	CreatedAt time.Time    `gorm:"index"`
	Movie     *MovieRecord `gorm:"foreignKey:MovieID"`
	Profile   *Profile     `gorm:"foreignKey:UserID"`
}

func (ReviewRecord) TableName() string {
	return "reviews"
}

// ToReview 表行转为影评
func (r ReviewRecord) ToReview() Review {
	review := Review{
		ID:        r.ID,
		MovieID:   FormatMovieID(r.MovieID),
		UserID:    r.UserID,
		Rating:    r.Rating,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
	}
	if r.Movie != nil {
		m := r.Movie.ToMovie()
		review.Movie = &m
	}
	if r.Profile != nil {
		p := *r.Profile
		review.Author = &p
	}
	return review
}
