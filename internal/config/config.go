package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string

	PostgresDSN string
	RedisAddr   string

	// 定时采集 + 分析流水线
	CronSpec     string
	CollectHours int

	// 阻塞 I/O（拉取 RSS、下载正文）的最大并发数
	Workers        int
	FeedTimeout    time.Duration
	ArticleTimeout time.Duration

	// 可选：YAML 格式的源列表，覆盖内置注册表
	FeedsFile string
	// 可选：无头浏览器正文提取服务，如 http://localhost:4000/extract
	ExtractorURL string

	GeminiToken string
	GeminiModel string

	TelegramToken string
	DigestLimit   int

	// 日志同时写到 stdout 和该文件，机器人的 /log 命令从这里读取；为空时只写 stdout
	LogFile string

	// 全站 Basic Auth，两者都配置时才启用
	BasicAuthUser string
	BasicAuthPass string
}

func Load() *Config {
	// .env 只做补充，不覆盖真实环境变量
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("config: load .env: %v", err)
	}

	cfg := &Config{
		AppPort:        getEnv("APP_PORT", "9000"),
		PostgresDSN:    getEnv("POSTGRES_DSN", "host=localhost user=tickerpulse password=tickerpulse dbname=news port=5432 sslmode=disable TimeZone=UTC"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6380"),
		CronSpec:       getEnv("CRON_SPEC", "0 * * * *"),
		CollectHours:   getEnvInt("COLLECT_HOURS", 24),
		Workers:        getEnvInt("WORKERS", 8),
		FeedTimeout:    getEnvDuration("FEED_TIMEOUT", 15*time.Second),
		ArticleTimeout: getEnvDuration("ARTICLE_TIMEOUT", 20*time.Second),
		FeedsFile:      getEnv("FEEDS_FILE", ""),
		ExtractorURL:   getEnv("EXTRACTOR_URL", ""),
		GeminiToken:    getEnv("GEMINI_TOKEN", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash-001"),
		TelegramToken:  getEnv("TELEGRAM_TOKEN", ""),
		DigestLimit:    getEnvInt("DIGEST_LIMIT", 3),
		LogFile:        getEnv("LOG_FILE", "tickerpulse.log"),
		BasicAuthUser:  getEnv("APP_BASIC_USER", ""),
		BasicAuthPass:  getEnv("APP_BASIC_PASS", ""),
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}

	log.Printf("config loaded: port=%s cron=%s hours=%d workers=%d", cfg.AppPort, cfg.CronSpec, cfg.CollectHours, cfg.Workers)
	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("config: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("config: invalid %s=%q, using %s", key, v, def)
		return def
	}
	return d
}
