package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/LJTian/TickerPulse/internal/collector"
	"gopkg.in/yaml.v3"
)

// defaultFeeds 内置的财经 RSS 源，顺序即结果中的排序
var defaultFeeds = []collector.Source{
	{Name: "РБК Главные новости", URL: "https://static.feed.rbc.ru/rbc/internal/rss.rbc.ru/rbc.ru/mainnews.rss"},
	{Name: "Коммерсантъ — Экономика", URL: "https://www.kommersant.ru/RSS/section-economics.xml"},
	{Name: "ЦБ РФ — Новости", URL: "http://www.cbr.ru/rss/RssNews"},
	{Name: "Banki.ru — Лента", URL: "https://www.banki.ru/news/lenta/?r1=rss&r2=news"},
	{Name: "Finam — Новости компаний", URL: "https://www.finam.ru/analysis/conews/rsspoint/"},
	{Name: "Finam — Новости облигаций", URL: "https://bonds.finam.ru/news/today/rss.asp"},
	{Name: "ТАСС — Business & Economy", URL: "https://tass.com/rss/v2.xml"},
	{Name: "Profinance — Фондовый рынок", URL: "https://www.profinance.ru/fond.xml"},
	{Name: "Profinance — Экономика", URL: "https://www.profinance.ru/econom.xml"},
}

type feedsFile struct {
	Feeds []struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"feeds"`
}

// Sources 返回源注册表：配置了 FeedsFile 时从 YAML 读取，否则用内置列表
func (c *Config) Sources() ([]collector.Source, error) {
	if c.FeedsFile == "" {
		out := make([]collector.Source, len(defaultFeeds))
		copy(out, defaultFeeds)
		return out, nil
	}
	data, err := os.ReadFile(c.FeedsFile)
	if err != nil {
		return nil, fmt.Errorf("config: read feeds file: %w", err)
	}
	return ParseFeeds(data)
}

// ParseFeeds 解析 YAML 源列表，保持文件中的顺序；名称不可重复
func ParseFeeds(data []byte) ([]collector.Source, error) {
	var f feedsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("config: parse feeds: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Feeds))
	out := make([]collector.Source, 0, len(f.Feeds))
	for i, fd := range f.Feeds {
		name := strings.TrimSpace(fd.Name)
		url := strings.TrimSpace(fd.URL)
		if name == "" || url == "" {
			return nil, fmt.Errorf("config: feed #%d: name and url are required", i+1)
		}
		if _, ok := seen[name]; ok {
			return nil, fmt.Errorf("config: duplicate feed name %q", name)
		}
		seen[name] = struct{}{}
		out = append(out, collector.Source{Name: name, URL: url})
	}
	return out, nil
}
