package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"

	"github.com/LJTian/TickerPulse/internal/collector"
)

// ProcessedArticle 是写入存储层前的统一结构
type ProcessedArticle struct {
	ID          string
	Source      string
	Title       string
	Link        string
	Body        string
	PublishedAt time.Time
}

// SimpleProcessor 做最基础的数据清洗、按链接去重与 ID 生成
type SimpleProcessor struct {
	now func() time.Time
}

func NewSimpleProcessor() *SimpleProcessor {
	return &SimpleProcessor{now: time.Now}
}

func (p *SimpleProcessor) Process(items []collector.ArticleRecord) []ProcessedArticle {
	out := make([]ProcessedArticle, 0, len(items))
	seen := make(map[string]struct{})
	collectedAt := p.now()

	for _, it := range items {
		link := strings.TrimSpace(it.Link)
		if link == "" {
			continue
		}
		id := hashURL(link)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		// 没有发布时间的条目按采集时间入库
		published := it.PublishedAt
		if published.IsZero() {
			published = collectedAt
		}

		out = append(out, ProcessedArticle{
			ID:          id,
			Source:      it.Source,
			Title:       strings.TrimSpace(it.Title),
			Link:        link,
			Body:        strings.TrimSpace(it.Text),
			PublishedAt: published,
		})
	}

	return out
}

func hashURL(url string) string {
	h := sha1.New()
	h.Write([]byte(url))
	return hex.EncodeToString(h.Sum(nil))
}

// truncateRunes 按 rune 截断，超长时追加省略号
func truncateRunes(s string, limit int) string {
	rs := []rune(s)
	if limit <= 0 || len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}
