package collector

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/singleflight"
)

const (
	feedMaxResponseBytes = 8 << 20 // 8MB
	feedUserAgent        = "TickerPulseBot/1.0"
)

// GofeedFetcher 通过 HTTP 下载并用 gofeed 解析 RSS/Atom/JSON Feed
type GofeedFetcher struct {
	Client *http.Client
}

func NewGofeedFetcher(timeout time.Duration) *GofeedFetcher {
	return &GofeedFetcher{Client: &http.Client{Timeout: timeout}}
}

func (g *GofeedFetcher) FetchFeed(ctx context.Context, url string) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	req.Header.Set("User-Agent", feedUserAgent)

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: %s unexpected status %d", url, resp.StatusCode)
	}

	// gofeed.Parser 解析时持有内部状态，每次新建一个
	parsed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, feedMaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("feed: parse %s: %w", url, err)
	}
	return entriesFromFeed(parsed), nil
}

func entriesFromFeed(f *gofeed.Feed) []Entry {
	entries := make([]Entry, 0, len(f.Items))
	for _, it := range f.Items {
		if it == nil {
			continue
		}
		e := Entry{
			Title:   it.Title,
			Summary: it.Description,
			Link:    it.Link,
		}
		switch {
		case it.PublishedParsed != nil:
			t := *it.PublishedParsed
			e.Published = &t
		case it.UpdatedParsed != nil:
			t := *it.UpdatedParsed
			e.Published = &t
		}
		entries = append(entries, e)
	}
	return entries
}

// FeedCache 按 URL 缓存解析后的 Feed，进程生命周期内不刷新、不淘汰。
// 每个 URL 只尝试一次：失败同样缓存为空 Feed。
type FeedCache struct {
	fetcher FeedFetcher
	pool    *Pool

	mu    sync.RWMutex
	feeds map[string]*Feed
	group singleflight.Group
}

func NewFeedCache(fetcher FeedFetcher, pool *Pool) *FeedCache {
	return &FeedCache{
		fetcher: fetcher,
		pool:    pool,
		feeds:   make(map[string]*Feed),
	}
}

func (c *FeedCache) lookup(url string) (*Feed, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.feeds[url]
	return f, ok
}

// Get 命中时不访问网络；未命中时拉取一次。调用方 ctx 结束只会放弃等待，
// 后台的拉取会继续完成并写入缓存。
func (c *FeedCache) Get(ctx context.Context, url string) *Feed {
	if f, ok := c.lookup(url); ok {
		return f
	}

	ch := c.group.DoChan(url, func() (any, error) {
		if f, ok := c.lookup(url); ok {
			return f, nil
		}
		f := c.load(context.WithoutCancel(ctx), url)
		c.mu.Lock()
		c.feeds[url] = f
		c.mu.Unlock()
		return f, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Feed)
	case <-ctx.Done():
		return &Feed{URL: url}
	}
}

func (c *FeedCache) load(ctx context.Context, url string) (f *Feed) {
	f = &Feed{URL: url}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("feed: fetch %s panic: %v", url, r)
			f = &Feed{URL: url}
		}
	}()

	var (
		entries []Entry
		err     error
	)
	_ = c.pool.Do(ctx, func() {
		entries, err = c.fetcher.FetchFeed(ctx, url)
	})
	if err != nil {
		log.Printf("feed: %v", err)
		return f
	}
	f.Entries = entries
	return f
}

// Len 当前缓存的 Feed 数量
func (c *FeedCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.feeds)
}
