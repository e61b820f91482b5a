package collector

import (
	"context"
	"time"
)

// Source 注册表中的一个 RSS 源，Name 唯一
type Source struct {
	Name string
	URL  string
}

// Entry 是 RSS/Atom 中的一条记录，取回后不再修改
type Entry struct {
	Title   string
	Summary string
	Link    string
	// Published 优先取发布时间，缺失时用更新时间；两者都没有时为 nil
	Published *time.Time
}

// Feed 一次解析得到的源文档，条目保持原始顺序
type Feed struct {
	URL     string
	Entries []Entry
}

// ArticleRecord 采集输出的统一结构
type ArticleRecord struct {
	Source string `json:"source"`
	Title  string `json:"title"`
	Link   string `json:"link"`
	// Date 为本地时区的 "2006-01-02 15:04"，条目没有时间时为空
	Date        string    `json:"date,omitempty"`
	PublishedAt time.Time `json:"publishedAt,omitzero"`
	Text        string    `json:"text"`
}

const recordDateLayout = "2006-01-02 15:04"

// FeedFetcher 抽象 RSS 拉取与解析
type FeedFetcher interface {
	FetchFeed(ctx context.Context, url string) ([]Entry, error)
}

// Extractor 抽象正文下载与提取
type Extractor interface {
	Extract(ctx context.Context, link string) (string, error)
}

// FeedProvider / TextProvider 是 Engine 依赖的两个缓存层
type FeedProvider interface {
	Get(ctx context.Context, url string) *Feed
}

type TextProvider interface {
	Text(ctx context.Context, link string) string
}
