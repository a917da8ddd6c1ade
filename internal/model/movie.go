package model

import (
	"strconv"
	"strings"
)

// Movie 电影（来自 TMDB 目录，用户互动时才落库）
type Movie struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	PosterURL   string `json:"poster_url"`
}

// MovieDetails 电影详情页数据
type MovieDetails struct {
	Movie
	BackdropURL string  `json:"backdrop_url"`
	VoteAverage float64 `json:"vote_average"`
	ReleaseDate string  `json:"release_date"`
}

// MovieRecord movies 表行
type MovieRecord struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false" validate:"required,gt=0"`
	Title     string `validate:"required"`
	Overview  string
	PosterURL string
}

func (MovieRecord) TableName() string {
	return "movies"
}

// ParseMovieID 将目录 ID 转为数据库使用的数字 ID
func ParseMovieID(id string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || n <= 0 {
		return 0, ErrInvalidMovieID
	}
	return n, nil
}

// FormatMovieID 数字 ID 转为目录 ID
func FormatMovieID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// ToRecord 转为表行
func (m Movie) ToRecord() (*MovieRecord, error) {
	id, err := ParseMovieID(m.ID)
	if err != nil {
		return nil, err
	}
	return &MovieRecord{
		ID:        id,
		Title:     m.Title,
		Overview:  m.Description,
		PosterURL: m.PosterURL,
	}, nil
}

// ToMovie 表行转为电影
func (r MovieRecord) ToMovie() Movie {
	return Movie{
		ID:          FormatMovieID(r.ID),
		Title:       r.Title,
		Description: r.Overview,
		PosterURL:   r.PosterURL,
	}
}
