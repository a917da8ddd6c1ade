package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// 状态同步模式
const (
	SyncStrict        = "strict"
	SyncFireAndForget = "fire_and_forget"
)

// Config 应用配置
type Config struct {
	Env         string
	AppSecret   string
	DatabaseURL string
	RedisURL    string
	JWTExpiry   time.Duration
	Port        string
	SiteName    string
	SiteUrl     string

	// TMDB 电影目录
	TMDBBaseURL   string
	TMDBImageBase string
	TMDBAPIKey    string
	TMDBToken     string
	TMDBLanguage  string

	// 头像存储
	StorageDir     string
	StoragePublic  string
	AvatarMaxBytes int64

	StatusSyncMode     string
	SessionCacheSize   int
	RateLimitPerMinute int
}

// Load 加载配置
func Load() *Config {
	expiryHours, _ := strconv.Atoi(getEnv("JWT_EXPIRY_HOURS", "72"))
	avatarMaxMB, _ := strconv.Atoi(getEnv("AVATAR_MAX_MB", "5"))
	cacheSize, _ := strconv.Atoi(getEnv("SESSION_CACHE_SIZE", "1024"))
	ratePerMinute, _ := strconv.Atoi(getEnv("RATE_LIMIT_PER_MINUTE", "120"))

	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbName := getEnv("DB_NAME", "cineverse")
	dbSSL := getEnv("DB_SSLMODE", "disable")

	dbURL := getEnv("DATABASE_URL", fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		dbUser, dbPass, dbHost, dbPort, dbName, dbSSL))

	appSecret := getEnv("APP_SECRET", getEnv("JWT_SECRET", "your-secret-key-change-in-production"))

	if getEnv("APP_ENV", "development") == "production" && appSecret == "your-secret-key-change-in-production" {
		fmt.Println("【严重警告】生产环境正在使用默认密钥！请立即设置 APP_SECRET 环境变量。")
	}

	port := getEnv("PORT", "5005")
	siteURL := getEnv("SITE_URL", "http://localhost:"+port)

	syncMode := getEnv("STATUS_SYNC_MODE", SyncStrict)
	if syncMode != SyncStrict && syncMode != SyncFireAndForget {
		fmt.Printf("未知的 STATUS_SYNC_MODE=%q，回退为 %s\n", syncMode, SyncStrict)
		syncMode = SyncStrict
	}

	return &Config{
		Env:         getEnv("APP_ENV", "development"),
		AppSecret:   appSecret,
		DatabaseURL: dbURL,
		RedisURL:    getEnv("REDIS_URL", ""),
		JWTExpiry:   time.Duration(expiryHours) * time.Hour,
		Port:        port,
		SiteName:    getEnv("SITE_NAME", "Cineverse"),
		SiteUrl:     siteURL,

		TMDBBaseURL:   getEnv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		TMDBImageBase: getEnv("TMDB_IMAGE_BASE", "https://image.tmdb.org/t/p/w500"),
		TMDBAPIKey:    getEnv("TMDB_API_KEY", ""),
		TMDBToken:     getEnv("TMDB_TOKEN", ""),
		TMDBLanguage:  getEnv("TMDB_LANGUAGE", "pt-BR"),

		StorageDir:     getEnv("STORAGE_DIR", "./data/storage"),
		StoragePublic:  getEnv("STORAGE_PUBLIC_URL", siteURL+"/storage"),
		AvatarMaxBytes: int64(avatarMaxMB) * 1024 * 1024,

		StatusSyncMode:     syncMode,
		SessionCacheSize:   cacheSize,
		RateLimitPerMinute: ratePerMinute,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
