package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LJTian/TickerPulse/internal/analysis"
	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/LJTian/TickerPulse/internal/config"
	"github.com/LJTian/TickerPulse/internal/processor"
	"github.com/LJTian/TickerPulse/internal/scheduler"
	"github.com/google/go-cmp/cmp"
)

func TestSourceCodeIsStable(t *testing.T) {
	a := SourceCode("https://example.com/rss")
	if len(a) != 12 {
		t.Fatalf("len = %d, want 12", len(a))
	}
	if a != SourceCode("https://example.com/rss") {
		t.Fatalf("code should be deterministic")
	}
	if a == SourceCode("https://example.com/other") {
		t.Fatalf("different urls should give different codes")
	}
}

func TestNewRunnerKeepsSourceOrder(t *testing.T) {
	cfg := &config.Config{
		Workers:        2,
		FeedTimeout:    time.Second,
		ArticleTimeout: time.Second,
		ExtractorURL:   "http://127.0.0.1:1/extract",
	}
	sources := []collector.Source{{Name: "b", URL: "u2"}, {Name: "a", URL: "u1"}}
	r := NewRunner(cfg, sources)
	if diff := cmp.Diff(sources, r.Sources()); diff != "" {
		t.Fatalf("sources mismatch (-want +got):\n%s", diff)
	}
	if got := r.ByTicker(context.Background(), "  "); len(got) != 0 {
		t.Fatalf("blank ticker should match nothing, got %d", len(got))
	}
}

// newsSite 模拟一个不断发布新闻的站点：RSS 每被请求一次就多一条
type newsSite struct {
	mu       sync.Mutex
	feedHits int
	pageHits map[string]int
}

func (s *newsSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/article/") {
		s.pageHits[r.URL.Path]++
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, "<html><body><article><p>%s</p></article></body></html>",
			strings.Repeat("Сбербанк отчитался о прибыли. ", 10))
		return
	}

	s.feedHits++
	base := "http://" + r.Host
	var items strings.Builder
	for i := 1; i <= s.feedHits; i++ {
		fmt.Fprintf(&items, "<item><title>news %d</title><link>%s/article/%d</link><pubDate>%s</pubDate></item>",
			i, base, i, time.Now().Add(-time.Duration(i)*time.Minute).UTC().Format(time.RFC1123Z))
	}
	w.Header().Set("Content-Type", "application/rss+xml")
	fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>t</title>%s</channel></rss>`, items.String())
}

type memoryStore struct {
	links map[string]bool
}

func (m *memoryStore) SaveArticles(items []processor.ProcessedArticle) (int, error) {
	n := 0
	for _, it := range items {
		if !m.links[it.Link] {
			m.links[it.Link] = true
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) SaveAnalyses(items []analysis.Classification) (int, error) {
	return len(items), nil
}

func TestScheduledRunsPickUpNewItems(t *testing.T) {
	site := &newsSite{pageHits: make(map[string]int)}
	srv := httptest.NewServer(site)
	defer srv.Close()

	cfg := &config.Config{Workers: 2, FeedTimeout: 5 * time.Second, ArticleTimeout: 5 * time.Second}
	runner := NewRunner(cfg, []collector.Source{{Name: "site", URL: srv.URL + "/rss"}})
	store := &memoryStore{links: make(map[string]bool)}
	p := scheduler.NewPipeline(runner, processor.NewSimpleProcessor(), store, nil)

	first, err := p.Run(context.Background(), 24)
	if err != nil {
		t.Fatalf("run1 error: %v", err)
	}
	second, err := p.Run(context.Background(), 24)
	if err != nil {
		t.Fatalf("run2 error: %v", err)
	}

	if first.Collected != 1 || second.Collected != 2 {
		t.Fatalf("run1 collected=%d run2 collected=%d, want 1 and 2", first.Collected, second.Collected)
	}
	if second.Saved != 1 {
		t.Fatalf("run2 saved=%d, want only the new item", second.Saved)
	}

	site.mu.Lock()
	defer site.mu.Unlock()
	if site.feedHits != 2 {
		t.Fatalf("feed hits=%d, want one per run", site.feedHits)
	}
	if site.pageHits["/article/1"] != 1 {
		t.Fatalf("article page fetched %d times, want once across runs", site.pageHits["/article/1"])
	}
}
