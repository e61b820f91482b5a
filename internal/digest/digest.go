package digest

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/LJTian/TickerPulse/internal/processor"
	"github.com/LJTian/TickerPulse/internal/storage"
)

const (
	DefaultLimit = 3
	// 每个代码多取几倍候选，部分文章正文为空
	fetchFactor = 5

	MsgNoDatabase      = "База данных недоступна."
	MsgNoArticles      = "Статьи не найдены."
	MsgNoSubscriptions = "У вас нет подписок."
	MsgFetchFailed     = "Ошибка получения новостей"
)

// Store 摘要所需的存储能力，由 storage.Store 实现
type Store interface {
	ArticlesByTicker(ctx context.Context, ticker string, limit int) ([]storage.News, error)
	Subscriptions(ctx context.Context, userID int64) ([]string, error)
}

type Builder struct {
	store     Store
	limit     int
	sentences int
}

// NewBuilder store 为 nil 时所有摘要都返回“数据库不可用”
func NewBuilder(store Store, limit int) *Builder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Builder{store: store, limit: limit, sentences: processor.DefaultSummarySentences}
}

// ForTicker 生成单个代码的新闻摘要，limit<=0 时使用默认条数
func (b *Builder) ForTicker(ctx context.Context, ticker string, limit int) (string, error) {
	if b.store == nil {
		return MsgNoDatabase, nil
	}
	if limit <= 0 {
		limit = b.limit
	}
	ticker = storage.NormalizeTicker(ticker)

	articles, err := b.store.ArticlesByTicker(ctx, ticker, limit*fetchFactor)
	if err != nil {
		return "", fmt.Errorf("digest: articles for %s: %w", ticker, err)
	}
	if len(articles) == 0 {
		return MsgNoArticles, nil
	}
	if len(articles) > limit {
		articles = articles[:limit]
	}

	parts := make([]string, 0, len(articles))
	for _, a := range articles {
		summary := ""
		if a.Body != "" {
			summary = processor.Summarize(a.Body, b.sentences)
		}
		parts = append(parts, fmt.Sprintf("*%s*\n%s\n%s", a.Title, summary, a.Link))
	}
	return strings.Join(parts, "\n\n"), nil
}

// ForUser 并发生成用户所有订阅的摘要，按订阅顺序拼接；单个代码失败不影响其他
func (b *Builder) ForUser(ctx context.Context, userID int64) (string, error) {
	if b.store == nil {
		return MsgNoDatabase, nil
	}
	tickers, err := b.store.Subscriptions(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("digest: subscriptions of %d: %w", userID, err)
	}
	if len(tickers) == 0 {
		return MsgNoSubscriptions, nil
	}

	results := make([]string, len(tickers))
	var wg sync.WaitGroup
	for i, t := range tickers {
		wg.Add(1)
		go func(i int, t string) {
			defer wg.Done()
			msg, err := b.ForTicker(ctx, t, b.limit)
			if err != nil {
				log.Printf("digest: %v", err)
				msg = MsgFetchFailed
			}
			results[i] = fmt.Sprintf("*%s*\n%s", t, msg)
		}(i, t)
	}
	wg.Wait()

	log.Printf("digest: built for user %d, %d tickers", userID, len(tickers))
	return strings.Join(results, "\n\n"), nil
}
