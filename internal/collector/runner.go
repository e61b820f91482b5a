package collector

import (
	"context"
	"time"
)

// Runner 每次采集都新建一个 Engine（以及它的 FeedCache），因此每一轮都会重新拉取 RSS；
// 正文缓存由 articles 跨轮共享，同一链接的正文只下载一次
type Runner struct {
	sources  []Source
	newFeeds func() FeedProvider
	articles TextProvider

	now func() time.Time
	loc *time.Location
}

func NewRunner(sources []Source, newFeeds func() FeedProvider, articles TextProvider) *Runner {
	regs := make([]Source, len(sources))
	copy(regs, sources)
	return &Runner{
		sources:  regs,
		newFeeds: newFeeds,
		articles: articles,
		now:      time.Now,
		loc:      time.Local,
	}
}

// Engine 返回一个带全新 Feed 缓存的引擎，单次调用内每个源只拉取一次
func (r *Runner) Engine() *Engine {
	e := NewEngine(r.sources, r.newFeeds(), r.articles)
	e.now = r.now
	e.loc = r.loc
	return e
}

func (r *Runner) Sources() []Source {
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

func (r *Runner) Recent(ctx context.Context, hours int) []ArticleRecord {
	return r.Engine().Recent(ctx, hours)
}

func (r *Runner) ByTicker(ctx context.Context, ticker string) []ArticleRecord {
	return r.Engine().ByTicker(ctx, ticker)
}
