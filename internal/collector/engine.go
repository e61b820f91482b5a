package collector

import (
	"context"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// Engine 在固定的源注册表上并发采集，输出按 (源注册顺序, 源内条目顺序) 排列
type Engine struct {
	sources  []Source
	feeds    FeedProvider
	articles TextProvider

	now func() time.Time
	loc *time.Location
}

func NewEngine(sources []Source, feeds FeedProvider, articles TextProvider) *Engine {
	regs := make([]Source, len(sources))
	copy(regs, sources)
	return &Engine{
		sources:  regs,
		feeds:    feeds,
		articles: articles,
		now:      time.Now,
		loc:      time.Local,
	}
}

// Sources 返回注册表的副本
func (e *Engine) Sources() []Source {
	out := make([]Source, len(e.sources))
	copy(out, e.sources)
	return out
}

// Recent 返回时间落在 [now-hours, now] 内的条目；没有时间的条目一律排除。
// 负数按 0 处理。now 每次调用只取一次，保证各源窗口一致。
func (e *Engine) Recent(ctx context.Context, hours int) []ArticleRecord {
	if hours < 0 {
		hours = 0
	}
	now := e.now()
	start := now.Add(-time.Duration(hours) * time.Hour)

	return e.collect(ctx, func(en Entry) bool {
		if en.Published == nil {
			return false
		}
		t := *en.Published
		return !t.Before(start) && !t.After(now)
	})
}

// ByTicker 返回 标题+摘要 中包含 ticker 的条目（忽略大小写的普通子串匹配）
func (e *Engine) ByTicker(ctx context.Context, ticker string) []ArticleRecord {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return []ArticleRecord{}
	}

	return e.collect(ctx, func(en Entry) bool {
		haystack := strings.ToUpper(en.Title + " " + en.Summary)
		return strings.Contains(haystack, ticker)
	})
}

func (e *Engine) collect(ctx context.Context, match func(Entry) bool) []ArticleRecord {
	// 按注册下标写入，合并时与完成顺序无关
	perSource := make([][]ArticleRecord, len(e.sources))

	var wg sync.WaitGroup
	for i, src := range e.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			perSource[i] = e.collectSource(ctx, src, match)
		}(i, src)
	}
	wg.Wait()

	total := 0
	for _, recs := range perSource {
		total += len(recs)
	}
	out := make([]ArticleRecord, 0, total)
	for _, recs := range perSource {
		out = append(out, recs...)
	}
	return out
}

// collectSource 处理单个源；任何 panic 都在这里吸收，该源贡献 0 条
func (e *Engine) collectSource(ctx context.Context, src Source, match func(Entry) bool) (out []ArticleRecord) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("collector: source %q panic: %v\n%s", src.Name, r, debug.Stack())
			out = nil
		}
	}()

	feed := e.feeds.Get(ctx, src.URL)
	if feed == nil {
		return nil
	}

	var matched []Entry
	for _, en := range feed.Entries {
		if match(en) {
			matched = append(matched, en)
		}
	}
	if len(matched) == 0 {
		return nil
	}

	records := make([]ArticleRecord, len(matched))
	var (
		wg       sync.WaitGroup
		panicMu  sync.Mutex
		panicked any
	)
	for i, en := range matched {
		records[i] = e.newRecord(src, en)
		wg.Add(1)
		go func(i int, link string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					panicMu.Lock()
					panicked = r
					panicMu.Unlock()
				}
			}()
			records[i].Text = e.articles.Text(ctx, link)
		}(i, en.Link)
	}
	wg.Wait()

	// 子 goroutine 的 panic 不会被外层 recover 捕获，转交到源边界统一处理
	if panicked != nil {
		panic(panicked)
	}

	log.Printf("collector: %s matched=%d", src.Name, len(records))
	return records
}

func (e *Engine) newRecord(src Source, en Entry) ArticleRecord {
	rec := ArticleRecord{
		Source: src.Name,
		Title:  en.Title,
		Link:   en.Link,
	}
	if en.Published != nil {
		local := en.Published.In(e.loc)
		rec.Date = local.Format(recordDateLayout)
		rec.PublishedAt = local
	}
	return rec
}
