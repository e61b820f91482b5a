package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/TickerPulse/internal/analysis"
	"github.com/LJTian/TickerPulse/internal/processor"
	"github.com/google/go-cmp/cmp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestStore 每个测试独立的 sqlite 文件，不带 Redis
func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "news.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	s, err := NewStoreWithDB(db, nil)
	if err != nil {
		t.Fatalf("NewStoreWithDB: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func article(id, title, body string, published time.Time) processor.ProcessedArticle {
	return processor.ProcessedArticle{
		ID:          id,
		Source:      "РБК",
		Title:       title,
		Link:        "https://rbc.ru/" + id,
		Body:        body,
		PublishedAt: published,
	}
}

func TestSaveArticlesIgnoresKnownLinks(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	n, err := s.SaveArticles([]processor.ProcessedArticle{
		article("a1", "first", "", now.Add(-time.Hour)),
		article("a2", "second", "", now.Add(-2*time.Hour)),
	})
	if err != nil || n != 2 {
		t.Fatalf("first save = %d, %v; want 2", n, err)
	}

	n, err = s.SaveArticles([]processor.ProcessedArticle{
		article("a1", "first again", "", now.Add(-time.Hour)),
		article("a3", "third", "", now.Add(-3*time.Hour)),
	})
	if err != nil || n != 1 {
		t.Fatalf("second save = %d, %v; want 1", n, err)
	}

	var total int64
	if err := s.DB.Model(&News{}).Count(&total).Error; err != nil || total != 3 {
		t.Fatalf("rows = %d, %v; want 3", total, err)
	}
}

func TestRecentArticlesWindowAndOrder(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if _, err := s.SaveArticles([]processor.ProcessedArticle{
		article("old", "old", "", now.Add(-48*time.Hour)),
		article("mid", "mid", "", now.Add(-5*time.Hour)),
		article("new", "new", "", now.Add(-time.Hour)),
	}); err != nil {
		t.Fatalf("SaveArticles: %v", err)
	}

	list, err := s.RecentArticles(context.Background(), 24)
	if err != nil {
		t.Fatalf("RecentArticles: %v", err)
	}
	var titles []string
	for _, n := range list {
		titles = append(titles, n.Title)
	}
	if diff := cmp.Diff([]string{"new", "mid"}, titles); diff != "" {
		t.Fatalf("titles mismatch (-want +got):\n%s", diff)
	}
}

func TestArticlesByTickerMatchesTitleAndBody(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if _, err := s.SaveArticles([]processor.ProcessedArticle{
		article("t1", "SBER raises dividends", "", now.Add(-3*time.Hour)),
		article("t2", "Market wrap", "shares of sber rose", now.Add(-time.Hour)),
		article("t3", "GAZP exports", "pipeline news", now.Add(-2*time.Hour)),
	}); err != nil {
		t.Fatalf("SaveArticles: %v", err)
	}

	list, err := s.ArticlesByTicker(context.Background(), " sber ", 0)
	if err != nil {
		t.Fatalf("ArticlesByTicker: %v", err)
	}
	var ids []string
	for _, n := range list {
		ids = append(ids, n.ID)
	}
	if diff := cmp.Diff([]string{"t2", "t1"}, ids); diff != "" {
		t.Fatalf("ids mismatch (-want +got):\n%s", diff)
	}

	if list, err := s.ArticlesByTicker(context.Background(), "  ", 10); err != nil || list != nil {
		t.Fatalf("blank ticker = %v, %v; want nil", list, err)
	}
}

func TestSubscriptionsKeepOrderAndRankings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.AddSubscriptions(ctx, 1, []string{"sber", "gazp", "SBER", "lkoh"})
	if err != nil {
		t.Fatalf("AddSubscriptions: %v", err)
	}
	if diff := cmp.Diff([]string{"SBER", "GAZP", "LKOH"}, got); diff != "" {
		t.Fatalf("subscriptions mismatch (-want +got):\n%s", diff)
	}

	// 重复订阅被忽略
	if got, err = s.AddSubscription(ctx, 1, "gazp"); err != nil || len(got) != 3 {
		t.Fatalf("AddSubscription = %v, %v", got, err)
	}
	for _, uid := range []int64{2, 3} {
		if _, err := s.AddSubscription(ctx, uid, "gazp"); err != nil {
			t.Fatalf("AddSubscription: %v", err)
		}
	}
	if _, err := s.AddSubscription(ctx, 2, "sber"); err != nil {
		t.Fatalf("AddSubscription: %v", err)
	}
	if err := s.RemoveSubscription(ctx, 1, "lkoh"); err != nil {
		t.Fatalf("RemoveSubscription: %v", err)
	}

	rank, err := s.Rankings(ctx)
	if err != nil {
		t.Fatalf("Rankings: %v", err)
	}
	want := []Ranking{{Ticker: "GAZP", Count: 3}, {Ticker: "SBER", Count: 2}}
	if diff := cmp.Diff(want, rank); diff != "" {
		t.Fatalf("rankings mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveAnalysesSkipsEmptyAndKnownLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	items := []analysis.Classification{
		{Ticker: "sber", Topics: analysis.StringList{"dividends"}, Link: "https://rbc.ru/x", PublishedAt: time.Now().Add(-time.Hour)},
		{Ticker: "gazp", Link: ""},
	}

	n, err := s.SaveAnalyses(items)
	if err != nil || n != 1 {
		t.Fatalf("first save = %d, %v; want 1", n, err)
	}
	if n, err = s.SaveAnalyses(items); err != nil || n != 0 {
		t.Fatalf("second save = %d, %v; want 0", n, err)
	}

	list, err := s.AnalysesByTicker(ctx, "SBER", 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("AnalysesByTicker = %v, %v", list, err)
	}
	if diff := cmp.Diff([]string{"dividends"}, []string(list[0].Topics)); diff != "" {
		t.Fatalf("topics mismatch (-want +got):\n%s", diff)
	}
}
