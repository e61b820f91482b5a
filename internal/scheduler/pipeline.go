package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/LJTian/TickerPulse/internal/analysis"
	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/LJTian/TickerPulse/internal/processor"
)

// ArticleCollector 即 collector.Runner 的采集入口
type ArticleCollector interface {
	Recent(ctx context.Context, hours int) []collector.ArticleRecord
}

type ArticleStore interface {
	SaveArticles(items []processor.ProcessedArticle) (int, error)
	SaveAnalyses(items []analysis.Classification) (int, error)
}

type NewsAnalyzer interface {
	Analyze(ctx context.Context, text string) (*analysis.Classification, error)
}

// Result 一轮流水线的统计
type Result struct {
	Collected     int `json:"collected"`
	Saved         int `json:"saved"`
	Analysed      int `json:"analysed"`
	SavedAnalyses int `json:"savedAnalyses"`
}

// Pipeline 采集 → 清洗去重 → 入库 → 模型分析 → 分析结果入库
type Pipeline struct {
	collector ArticleCollector
	processor *processor.SimpleProcessor
	store     ArticleStore
	analyzer  NewsAnalyzer
}

func NewPipeline(c ArticleCollector, p *processor.SimpleProcessor, store ArticleStore, analyzer NewsAnalyzer) *Pipeline {
	return &Pipeline{collector: c, processor: p, store: store, analyzer: analyzer}
}

func (p *Pipeline) Run(ctx context.Context, hours int) (Result, error) {
	var res Result

	log.Printf("pipeline: collecting news for the last %d hours", hours)
	records := p.collector.Recent(ctx, hours)
	res.Collected = len(records)

	articles := p.processor.Process(records)
	saved, err := p.store.SaveArticles(articles)
	if err != nil {
		return res, fmt.Errorf("pipeline: save articles: %w", err)
	}
	res.Saved = saved
	log.Printf("pipeline: saved %d raw articles (collected=%d)", saved, res.Collected)

	if p.analyzer == nil {
		return res, nil
	}

	// 逐条调用模型，避免触发限流；单条失败只跳过该条
	analysed := make([]analysis.Classification, 0, len(articles))
	for _, a := range articles {
		if err := ctx.Err(); err != nil {
			break
		}
		c, err := p.analyzer.Analyze(ctx, a.Title+"\n"+a.Body)
		if errors.Is(err, analysis.ErrNoToken) {
			log.Printf("pipeline: analysis skipped: %v", err)
			break
		}
		if err != nil {
			log.Printf("pipeline: analyse %s: %v", a.Link, err)
			continue
		}
		c.Title = a.Title
		c.Link = a.Link
		c.PublishedAt = a.PublishedAt
		analysed = append(analysed, *c)
	}
	res.Analysed = len(analysed)

	if len(analysed) == 0 {
		log.Println("pipeline: no articles were analysed")
		return res, nil
	}
	savedAI, err := p.store.SaveAnalyses(analysed)
	if err != nil {
		return res, fmt.Errorf("pipeline: save analyses: %w", err)
	}
	res.SavedAnalyses = savedAI
	log.Printf("pipeline: saved %d analysed articles", savedAI)
	return res, nil
}
