package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"golang.org/x/sync/singleflight"
)

const (
	articleMinBodyRunes  = 200
	articleMinParagraph  = 40
	articleFallbackRunes = 4000
	browserMaxChars      = 8000
	browserMaxRespBytes  = 1 << 20 // 1MB
	articleUserAgent     = "Mozilla/5.0 (compatible; TickerPulseBot/1.0)"
)

// 常见正文容器，按优先级排列
var bodySelectors = []string{
	"article",
	"div.article-content",
	"div#article-content",
	"div.article__text",
	"div.article_text",
	"div#content",
	"div.main-content",
	"div.content",
	"div.article",
}

var errEmptyContent = errors.New("empty content")

// CollyExtractor 用 colly 下载页面，用 goquery 提取正文
type CollyExtractor struct {
	Timeout   time.Duration
	UserAgent string
}

func (x *CollyExtractor) Extract(ctx context.Context, link string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ua := x.UserAgent
	if ua == "" {
		ua = articleUserAgent
	}
	c := colly.NewCollector(colly.UserAgent(ua))
	if x.Timeout > 0 {
		c.SetRequestTimeout(x.Timeout)
	}

	var (
		text     string
		parseErr error
	)
	c.OnResponse(func(r *colly.Response) {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
		if err != nil {
			parseErr = err
			return
		}
		text = ExtractText(doc)
	})

	if err := c.Visit(link); err != nil {
		return "", fmt.Errorf("article: visit %s: %w", link, err)
	}
	if parseErr != nil {
		return "", fmt.Errorf("article: parse %s: %w", link, parseErr)
	}
	if text == "" {
		return "", errEmptyContent
	}
	return text, nil
}

// ExtractText 优先在常见正文容器中取文本，找不到足够长的内容时
// 退回到全页较长段落的拼接。
func ExtractText(doc *goquery.Document) string {
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	for _, sel := range bodySelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if t := blockText(node); runeLen(t) >= articleMinBodyRunes {
			return t
		}
	}

	var pieces []string
	total := 0
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		t := normalizeSpace(s.Text())
		if runeLen(t) < articleMinParagraph {
			return true
		}
		pieces = append(pieces, t)
		total += runeLen(t)
		return total < articleFallbackRunes
	})
	return strings.Join(pieces, "\n\n")
}

func blockText(sel *goquery.Selection) string {
	ps := sel.Find("p")
	if ps.Length() == 0 {
		return normalizeSpace(sel.Text())
	}
	parts := make([]string, 0, ps.Length())
	ps.Each(func(_ int, p *goquery.Selection) {
		if t := normalizeSpace(p.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n")
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func runeLen(s string) int {
	return len([]rune(s))
}

// BrowserExtractor 调用 cmd/extractor 提供的无头浏览器正文提取服务
type BrowserExtractor struct {
	Endpoint string
	Client   *http.Client
	MaxChars int
}

type browserRequest struct {
	URL      string `json:"url"`
	MaxChars int    `json:"maxChars"`
}

type browserResponse struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

func (b *BrowserExtractor) Extract(ctx context.Context, link string) (string, error) {
	maxChars := b.MaxChars
	if maxChars <= 0 || maxChars > browserMaxChars {
		maxChars = browserMaxChars
	}
	body, err := json.Marshal(browserRequest{URL: link, MaxChars: maxChars})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("browser: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("browser: extract %s: %w", link, err)
	}
	defer resp.Body.Close()

	var out browserResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, browserMaxRespBytes)).Decode(&out); err != nil {
		return "", fmt.Errorf("browser: decode response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("browser: extract %s: %s", link, out.Error)
	}
	return out.Text, nil
}

// FirstNonEmpty 依次尝试多个 Extractor，返回第一个非空结果
func FirstNonEmpty(extractors ...Extractor) Extractor {
	return chainExtractor(extractors)
}

type chainExtractor []Extractor

func (c chainExtractor) Extract(ctx context.Context, link string) (string, error) {
	lastErr := errEmptyContent
	for _, x := range c {
		text, err := x.Extract(ctx, link)
		if err != nil {
			lastErr = err
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", lastErr
}

// ArticleResolver 按链接缓存正文，进程内永不淘汰。失败记为空串，同样缓存。
type ArticleResolver struct {
	extractor Extractor
	pool      *Pool

	mu    sync.RWMutex
	texts map[string]string
	group singleflight.Group
}

func NewArticleResolver(extractor Extractor, pool *Pool) *ArticleResolver {
	return &ArticleResolver{
		extractor: extractor,
		pool:      pool,
		texts:     make(map[string]string),
	}
}

func (r *ArticleResolver) lookup(link string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.texts[link]
	return t, ok
}

// Text 返回链接对应的正文；空链接直接返回空串
func (r *ArticleResolver) Text(ctx context.Context, link string) string {
	if link == "" {
		return ""
	}
	if t, ok := r.lookup(link); ok {
		return t
	}

	ch := r.group.DoChan(link, func() (any, error) {
		if t, ok := r.lookup(link); ok {
			return t, nil
		}
		t := r.load(context.WithoutCancel(ctx), link)
		r.mu.Lock()
		r.texts[link] = t
		r.mu.Unlock()
		return t, nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return ""
	}
}

func (r *ArticleResolver) load(ctx context.Context, link string) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("article: extract %s panic: %v", link, rec)
			text = ""
		}
	}()

	var err error
	_ = r.pool.Do(ctx, func() {
		text, err = r.extractor.Extract(ctx, link)
	})
	if err != nil {
		log.Printf("article: %s: %v", link, err)
		return ""
	}
	return strings.TrimSpace(text)
}

// Len 当前缓存的正文数量
func (r *ArticleResolver) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.texts)
}
