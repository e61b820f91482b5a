package processor

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/LJTian/TickerPulse/internal/collector"
)

func TestHashURLDeterministicAndDistinct(t *testing.T) {
	url1 := "https://example.com/a"
	url2 := "https://example.com/b"

	h1a := hashURL(url1)
	h1b := hashURL(url1)
	h2 := hashURL(url2)

	if h1a != h1b {
		t.Fatalf("hashURL not deterministic: %q vs %q", h1a, h1b)
	}
	if h1a == h2 {
		t.Fatalf("hashURL should differ for different URLs: %q", h1a)
	}
}

func TestTruncateRunesHandlesCyrillicAndEllipsis(t *testing.T) {
	s := "Привет, мир, это очень длинное предложение для проверки обрезки."
	out := truncateRunes(s, 5)
	if len([]rune(out)) != 6 { // 5 个字符 + 1 个省略号
		t.Fatalf("truncateRunes length = %d, want 6 (including ellipsis): %q", len([]rune(out)), out)
	}
	if !strings.HasSuffix(out, "…") {
		t.Fatalf("truncateRunes should append ellipsis: %q", out)
	}

	// limit 大于长度时不应截断
	if full := truncateRunes("коротко", 10); full != "коротко" {
		t.Fatalf("truncateRunes should keep original when under limit: %q", full)
	}
}

func TestSimpleProcessorDeduplicateAndFillTime(t *testing.T) {
	collected := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	p := NewSimpleProcessor()
	p.now = func() time.Time { return collected }
	published := time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)

	items := []collector.ArticleRecord{
		{Source: "A", Title: "  Title 1 ", Link: "https://example.com/1", PublishedAt: published, Text: " body "},
		{Source: "B", Title: "Title 1 duplicate by link", Link: "https://example.com/1"},
		{Source: "A", Title: "no link"},
		{Source: "B", Title: "Title 2 no time", Link: "https://example.com/2"},
	}

	out := p.Process(items)
	if len(out) != 2 {
		t.Fatalf("expected 2 processed items after dedupe, got %d", len(out))
	}

	// 第一条保留先出现的来源与发布时间
	if out[0].Source != "A" || out[0].Title != "Title 1" || out[0].Body != "body" {
		t.Fatalf("unexpected first item: %+v", out[0])
	}
	if !out[0].PublishedAt.Equal(published) {
		t.Fatalf("PublishedAt = %v, want %v", out[0].PublishedAt, published)
	}
	if out[0].ID != hashURL("https://example.com/1") {
		t.Fatalf("ID should be sha1 of link")
	}

	// 第二条没有时间，应使用采集时间兜底
	if !out[1].PublishedAt.Equal(collected) {
		t.Fatalf("fallback PublishedAt = %v, want %v", out[1].PublishedAt, collected)
	}
}

func TestSummarizePicksSentencesFromText(t *testing.T) {
	text := "Sberbank raised its dividend forecast. The weather was sunny today. " +
		"Analysts expect the Sberbank dividend to support shares. Cats like milk. " +
		"Sberbank shares rose after the dividend news."

	got := Summarize(text, 2)
	if got == "" || len(got) >= len(text) {
		t.Fatalf("Summarize = %q, want a shorter non-empty summary", got)
	}
	picked := splitSentences(got)
	if len(picked) == 0 || len(picked) > 2 {
		t.Fatalf("Summarize gave %d sentences, want 1..2: %q", len(picked), got)
	}
	for _, s := range picked {
		if !strings.Contains(text, s) {
			t.Fatalf("sentence %q is not taken from the text", s)
		}
	}
}

func TestSummarizeCapsRunes(t *testing.T) {
	var b strings.Builder
	for i := range 5 {
		fmt.Fprintf(&b, "Выпуск %d: %sрастёт. ", i, strings.Repeat("Газпром ", 60))
	}
	text := b.String()

	got := Summarize(text, 2)
	if n := utf8.RuneCountInString(got); n > maxSummaryRunes+1 {
		t.Fatalf("summary has %d runes, want at most %d", n, maxSummaryRunes+1)
	}
}

func TestSummarizeShortAndEmpty(t *testing.T) {
	if got := Summarize("   ", 3); got != "" {
		t.Fatalf("Summarize(blank) = %q, want empty", got)
	}
	short := "One sentence only. And a second one!"
	if got := Summarize(short, 3); got != short {
		t.Fatalf("Summarize(short) = %q, want unchanged", got)
	}
	if got := Summarize("Без точки в конце", 0); got != "Без точки в конце" {
		t.Fatalf("Summarize(no terminator) = %q", got)
	}
}

func TestSplitSentencesKeepsDecimals(t *testing.T) {
	got := splitSentences("Rate is 16.5 percent. Next step?  Done")
	if len(got) != 3 || got[0] != "Rate is 16.5 percent." {
		t.Fatalf("splitSentences = %q", got)
	}
}
