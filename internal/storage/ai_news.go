package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/LJTian/TickerPulse/internal/analysis"
	"gorm.io/datatypes"
	"gorm.io/gorm/clause"
)

// AINews 模型分析后的新闻，link 唯一
type AINews struct {
	ID                uint                        `gorm:"primaryKey" json:"id"`
	Ticker            string                      `gorm:"size:32;index" json:"ticker"`
	CompanyName       string                      `gorm:"size:256" json:"companyName"`
	NewsType          datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"newsType"`
	Topics            datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"topics"`
	Region            string                      `gorm:"size:128" json:"region"`
	CorrelatedMarkets datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"correlatedMarkets"`
	MacroSensitive    bool                        `json:"macroSensitive"`
	LikelyToInfluence bool                        `json:"likelyToInfluence"`
	InfluenceReason   string                      `gorm:"type:text" json:"influenceReason"`
	Sentiment         string                      `gorm:"size:32" json:"sentiment"`
	SummaryText       string                      `gorm:"type:text" json:"summaryText"`
	RawText           string                      `gorm:"type:text" json:"rawText"`
	Title             string                      `gorm:"size:512" json:"title"`
	Link              string                      `gorm:"size:1024;uniqueIndex" json:"link"`
	PublishedAt       time.Time                   `gorm:"index" json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

// TableName 与历史表名保持一致
func (AINews) TableName() string {
	return "ai_news"
}

func aiNewsFromClassification(c analysis.Classification, now time.Time) AINews {
	published := c.PublishedAt
	if published.IsZero() {
		published = now
	}
	return AINews{
		Ticker:            truncateRunesDB(NormalizeTicker(c.Ticker), 32),
		CompanyName:       truncateRunesDB(toValidUTF8(c.CompanyName), 256),
		NewsType:          datatypes.JSONSlice[string](c.NewsType),
		Topics:            datatypes.JSONSlice[string](c.Topics),
		Region:            truncateRunesDB(toValidUTF8(c.Region), 128),
		CorrelatedMarkets: datatypes.JSONSlice[string](c.CorrelatedMarkets),
		MacroSensitive:    bool(c.MacroSensitive),
		LikelyToInfluence: bool(c.LikelyToInfluence),
		InfluenceReason:   toValidUTF8(c.InfluenceReason),
		Sentiment:         truncateRunesDB(c.Sentiment, 32),
		SummaryText:       toValidUTF8(c.SummaryText),
		RawText:           toValidUTF8(c.RawText),
		Title:             truncateRunesDB(toValidUTF8(c.Title), 512),
		Link:              c.Link,
		PublishedAt:       published,
	}
}

// SaveAnalyses 保存分析结果，link 已存在或为空的忽略；返回实际插入条数
func (s *Store) SaveAnalyses(items []analysis.Classification) (int, error) {
	now := time.Now()
	rows := make([]AINews, 0, len(items))
	for _, it := range items {
		if it.Link == "" {
			continue
		}
		rows = append(rows, aiNewsFromClassification(it, now))
	}
	if len(rows) == 0 {
		return 0, nil
	}

	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link"}},
		DoNothing: true,
	}).CreateInBatches(rows, 100)
	if res.Error != nil {
		return 0, res.Error
	}
	return int(res.RowsAffected), nil
}

// RecentAnalyses 返回最近 hours 小时的分析结果，按发布时间倒序
func (s *Store) RecentAnalyses(ctx context.Context, hours int) ([]AINews, error) {
	if hours < 0 {
		hours = 0
	}
	cacheKey := fmt.Sprintf("ai:recent:%d", hours)

	var list []AINews
	if s.getCache(ctx, cacheKey, &list) {
		return list, nil
	}

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	if err := s.DB.WithContext(ctx).
		Where("published_at >= ?", since).
		Order("published_at DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	if len(list) > 0 {
		s.setCache(ctx, cacheKey, list)
	}
	return list, nil
}

// AnalysesByTicker 返回某个代码最近的分析结果
func (s *Store) AnalysesByTicker(ctx context.Context, ticker string, limit int) ([]AINews, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 5
	}

	var list []AINews
	err := s.DB.WithContext(ctx).
		Where("ticker = ?", ticker).
		Order("published_at DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
