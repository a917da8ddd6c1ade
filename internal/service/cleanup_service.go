package service

import (
	"context"
	"log"
	"time"

	"github.com/user/cineverse/internal/repository"
	"github.com/user/cineverse/internal/session"
)

// CleanupService 清理服务
type CleanupService struct {
	repos    *repository.Repositories
	sessions *session.Manager
	catalog  *CatalogService
	interval time.Duration
}

// CleanupReport 一次清理的结果
type CleanupReport struct {
	ClearedStatuses int64
	OrphanMovies    int64
	ExpiredSessions int
	ExpiredSearches int
}

// NewCleanupService sessions 和 catalog 可以为 nil
func NewCleanupService(repos *repository.Repositories, sessions *session.Manager, catalog *CatalogService) *CleanupService {
	return &CleanupService{
		repos:    repos,
		sessions: sessions,
		catalog:  catalog,
		interval: 24 * time.Hour,
	}
}

// Start 启动定时清理任务，ctx 取消后停止
func (s *CleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)

	go func() {
		defer ticker.Stop()
		// 启动时先运行一次
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 执行一次清理
func (s *CleanupService) RunOnce(ctx context.Context) CleanupReport {
	log.Println("[CleanupService] 开始清理过期数据...")
	var report CleanupReport

	// 1. 三个标记都取消的行等同于没有关系
	cleared, err := s.repos.MovieStatus.DeleteCleared(ctx)
	if err != nil {
		log.Printf("[CleanupService] 清理空标记失败: %v", err)
	} else {
		report.ClearedStatuses = cleared
	}

	// 2. 没有任何标记和影评引用的电影
	orphans, err := s.repos.Movie.DeleteOrphans(ctx)
	if err != nil {
		log.Printf("[CleanupService] 清理无引用电影失败: %v", err)
	} else {
		report.OrphanMovies = orphans
	}

	// 3. 会话已过期的用户缓存
	if s.sessions != nil {
		report.ExpiredSessions = s.sessions.Sweep(time.Now())
	}

	// 4. 过期的搜索缓存
	if s.catalog != nil {
		report.ExpiredSearches = s.catalog.PurgeExpired()
	}

	log.Printf("[CleanupService] 清理完成: 空标记 %d, 电影 %d, 会话缓存 %d, 搜索缓存 %d",
		report.ClearedStatuses, report.OrphanMovies, report.ExpiredSessions, report.ExpiredSearches)
	return report
}
