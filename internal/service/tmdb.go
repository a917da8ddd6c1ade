package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/user/cineverse/internal/config"
	"github.com/user/cineverse/internal/metrics"
	"github.com/user/cineverse/internal/model"
	"github.com/user/cineverse/internal/utils"
	"golang.org/x/sync/singleflight"
)

const (
	popularTTL = 10 * time.Minute
	detailsTTL = time.Hour
	searchTTL  = 10 * time.Minute
	searchSize = 512
)

// CatalogService TMDB 电影目录
type CatalogService struct {
	config  *config.Config
	client  *utils.HTTPClient
	metrics *metrics.Collector
	cache   *cache.Cache
	search  *utils.SearchCache[[]model.Movie]
	group   singleflight.Group
}

func NewCatalogService(cfg *config.Config, client *utils.HTTPClient, m *metrics.Collector) *CatalogService {
	return &CatalogService{
		config:  cfg,
		client:  client,
		metrics: m,
		cache:   cache.New(popularTTL, 30*time.Minute),
		search:  utils.NewSearchCache[[]model.Movie](searchSize, searchTTL),
	}
}

type tmdbMovie struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	VoteAverage  float64 `json:"vote_average"`
	ReleaseDate  string  `json:"release_date"`
}

type tmdbListResponse struct {
	Page    int         `json:"page"`
	Results []tmdbMovie `json:"results"`
}

// Popular 热门电影
func (s *CatalogService) Popular(ctx context.Context, page int) ([]model.Movie, error) {
	if page < 1 {
		page = 1
	}
	key := fmt.Sprintf("popular:%s:%d", s.config.TMDBLanguage, page)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RecordCatalogCacheHit("popular")
		return cloneMovies(v.([]model.Movie)), nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var resp tmdbListResponse
		err := s.get(ctx, "/movie/popular", url.Values{"page": {strconv.Itoa(page)}}, &resp)
		s.metrics.RecordCatalogRequest("popular", err)
		if err != nil {
			return nil, err
		}
		movies := s.toMovies(resp.Results)
		s.cache.SetDefault(key, movies)
		return movies, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneMovies(v.([]model.Movie)), nil
}

// Search 按标题搜索，空查询返回空列表
func (s *CatalogService) Search(ctx context.Context, query string) ([]model.Movie, error) {
	query = utils.NormalizeQuery(query)
	if query == "" {
		return []model.Movie{}, nil
	}
	key := fmt.Sprintf("search:%s:%s", s.config.TMDBLanguage, utils.QueryKey(query))
	if movies, ok := s.search.Get(key); ok {
		s.metrics.RecordCatalogCacheHit("search")
		return cloneMovies(movies), nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var resp tmdbListResponse
		err := s.get(ctx, "/search/movie", url.Values{"query": {query}}, &resp)
		s.metrics.RecordCatalogRequest("search", err)
		if err != nil {
			return nil, err
		}
		movies := s.toMovies(resp.Results)
		s.search.Set(key, movies)
		return movies, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneMovies(v.([]model.Movie)), nil
}

// Browse 浏览页数据源：空查询展示热门第一页，否则搜索
func (s *CatalogService) Browse(ctx context.Context, query string) ([]model.Movie, error) {
	if strings.TrimSpace(query) == "" {
		return s.Popular(ctx, 1)
	}
	return s.Search(ctx, query)
}

// Details 电影详情，目录中不存在时返回 nil, nil
func (s *CatalogService) Details(ctx context.Context, id string) (*model.MovieDetails, error) {
	movieID, err := model.ParseMovieID(id)
	if err != nil {
		return nil, err
	}
	key := fmt.Sprintf("movie:%s:%d", s.config.TMDBLanguage, movieID)
	if v, ok := s.cache.Get(key); ok {
		s.metrics.RecordCatalogCacheHit("details")
		d := v.(model.MovieDetails)
		return &d, nil
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		var resp tmdbMovie
		err := s.get(ctx, "/movie/"+model.FormatMovieID(movieID), nil, &resp)
		var statusErr *utils.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			s.metrics.RecordCatalogRequest("details", nil)
			return nil, nil
		}
		s.metrics.RecordCatalogRequest("details", err)
		if err != nil {
			return nil, err
		}
		details := s.toDetails(resp)
		s.cache.Set(key, details, detailsTTL)
		return details, nil
	})
	if err != nil || v == nil {
		return nil, err
	}
	d := v.(model.MovieDetails)
	return &d, nil
}

// PurgeExpired 清理过期的目录缓存
func (s *CatalogService) PurgeExpired() int {
	s.cache.DeleteExpired()
	return s.search.PurgeExpired()
}

func (s *CatalogService) get(ctx context.Context, path string, params url.Values, target interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("language", s.config.TMDBLanguage)

	var headers map[string]string
	if s.config.TMDBToken != "" {
		headers = map[string]string{"Authorization": "Bearer " + s.config.TMDBToken}
	} else if s.config.TMDBAPIKey != "" {
		params.Set("api_key", s.config.TMDBAPIKey)
	}

	endpoint := strings.TrimRight(s.config.TMDBBaseURL, "/") + path + "?" + params.Encode()
	if err := s.client.GetJSON(ctx, endpoint, headers, target); err != nil {
		log.Printf("[TMDB] 请求 %s 失败: %v", path, err)
		return fmt.Errorf("电影目录请求失败: %w", err)
	}
	return nil
}

// toMovies 没有海报的电影不展示
func (s *CatalogService) toMovies(results []tmdbMovie) []model.Movie {
	movies := make([]model.Movie, 0, len(results))
	for _, r := range results {
		if r.PosterPath == "" || r.ID <= 0 {
			continue
		}
		movies = append(movies, model.Movie{
			ID:          model.FormatMovieID(r.ID),
			Title:       r.Title,
			Description: r.Overview,
			PosterURL:   s.imageURL(r.PosterPath),
		})
	}
	return movies
}

func (s *CatalogService) toDetails(r tmdbMovie) model.MovieDetails {
	d := model.MovieDetails{
		Movie: model.Movie{
			ID:          model.FormatMovieID(r.ID),
			Title:       r.Title,
			Description: r.Overview,
			PosterURL:   s.imageURL(r.PosterPath),
		},
		VoteAverage: r.VoteAverage,
		ReleaseDate: r.ReleaseDate,
	}
	// 没有剧照时用海报代替
	backdrop := r.BackdropPath
	if backdrop == "" {
		backdrop = r.PosterPath
	}
	d.BackdropURL = s.imageURL(backdrop)
	return d
}

func (s *CatalogService) imageURL(p string) string {
	if p == "" {
		return ""
	}
	return strings.TrimRight(s.config.TMDBImageBase, "/") + p
}

func cloneMovies(movies []model.Movie) []model.Movie {
	out := make([]model.Movie, len(movies))
	copy(out, movies)
	return out
}
