package app

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log"

	"github.com/LJTian/TickerPulse/internal/analysis"
	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/LJTian/TickerPulse/internal/config"
	"github.com/LJTian/TickerPulse/internal/digest"
	"github.com/LJTian/TickerPulse/internal/processor"
	"github.com/LJTian/TickerPulse/internal/scheduler"
	"github.com/LJTian/TickerPulse/internal/storage"
)

// App 各个命令共用的组件。Store 不可用时为 nil，此时 Pipeline 也为 nil
type App struct {
	Config  *config.Config
	Sources []collector.Source

	// Collector 每次调用都重新拉取 RSS，正文缓存在进程内共享
	Collector *collector.Runner
	Store     *storage.Store
	Analyzer  *analysis.Analyzer
	Pipeline  *scheduler.Pipeline
	Digest    *digest.Builder
}

// New 组装采集引擎、存储与分析流水线；数据库连接失败不致命，由调用方决定是否退出
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	sources, err := cfg.Sources()
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Sources:   sources,
		Collector: NewRunner(cfg, sources),
	}

	a.Analyzer, err = analysis.NewAnalyzer(ctx, cfg.GeminiToken, cfg.GeminiModel)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Printf("warn: PostgreSQL unavailable: %v", err)
		a.Digest = digest.NewBuilder(nil, cfg.DigestLimit)
		return a, nil
	}
	a.Store = store

	// 确保各个源存在
	for _, src := range sources {
		if _, err := store.EnsureSource(SourceCode(src.URL), src.Name, src.URL); err != nil {
			log.Printf("warn: ensure source %s failed: %v", src.Name, err)
		}
	}

	a.Pipeline = scheduler.NewPipeline(a.Collector, processor.NewSimpleProcessor(), store, a.Analyzer)
	a.Digest = digest.NewBuilder(store, cfg.DigestLimit)
	return a, nil
}

// NewRunner 按配置创建采集器：RSS 与正文共用一个并发池，每轮采集使用新的 Feed 缓存
func NewRunner(cfg *config.Config, sources []collector.Source) *collector.Runner {
	pool := collector.NewPool(cfg.Workers)
	fetcher := collector.NewGofeedFetcher(cfg.FeedTimeout)

	var extractor collector.Extractor = &collector.CollyExtractor{Timeout: cfg.ArticleTimeout}
	if cfg.ExtractorURL != "" {
		// colly 取不到正文时（前端渲染页面）再走无头浏览器
		extractor = collector.FirstNonEmpty(extractor, &collector.BrowserExtractor{Endpoint: cfg.ExtractorURL})
	}
	articles := collector.NewArticleResolver(extractor, pool)

	return collector.NewRunner(sources, func() collector.FeedProvider {
		return collector.NewFeedCache(fetcher, pool)
	}, articles)
}

// SourceCode 由源地址生成稳定的短编码
func SourceCode(url string) string {
	sum := sha1.Sum([]byte(url))
	return hex.EncodeToString(sum[:6])
}

// Close 释放数据库与模型客户端
func (a *App) Close() {
	if a.Analyzer != nil {
		if err := a.Analyzer.Close(); err != nil {
			log.Printf("warn: close analyzer: %v", err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			log.Printf("warn: close store: %v", err)
		}
	}
}
