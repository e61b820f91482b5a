package storage

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Subscription 用户订阅的股票代码，(user_id, ticker) 唯一
type Subscription struct {
	UserID    int64     `gorm:"primaryKey;autoIncrement:false" json:"userId"`
	Ticker    string    `gorm:"primaryKey;size:32" json:"ticker"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ranking 某个代码的订阅人数
type Ranking struct {
	Ticker string `json:"ticker"`
	Count  int64  `json:"count"`
}

// NormalizeTicker 去空白并转大写
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// normalizeTickers 规范化并去重，保持首次出现的顺序，空值忽略
func normalizeTickers(tickers []string) []string {
	seen := make(map[string]struct{}, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		t = NormalizeTicker(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// AddSubscription 添加订阅（已存在则忽略），返回用户当前的全部订阅
func (s *Store) AddSubscription(ctx context.Context, userID int64, ticker string) ([]string, error) {
	return s.AddSubscriptions(ctx, userID, []string{ticker})
}

// AddSubscriptions 批量添加订阅
func (s *Store) AddSubscriptions(ctx context.Context, userID int64, tickers []string) ([]string, error) {
	tickers = normalizeTickers(tickers)
	if len(tickers) > 0 {
		now := time.Now()
		rows := make([]Subscription, 0, len(tickers))
		// 同一批内逐条错开 1 微秒，按 created_at 排序时保持传入顺序
		for i, t := range tickers {
			rows = append(rows, Subscription{UserID: userID, Ticker: t, CreatedAt: now.Add(time.Duration(i) * time.Microsecond)})
		}
		if err := s.DB.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&rows).Error; err != nil {
			return nil, err
		}
	}
	return s.Subscriptions(ctx, userID)
}

// RemoveSubscription 取消订阅
func (s *Store) RemoveSubscription(ctx context.Context, userID int64, ticker string) error {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil
	}
	return s.DB.WithContext(ctx).
		Where("user_id = ? AND ticker = ?", userID, ticker).
		Delete(&Subscription{}).Error
}

// Subscriptions 返回用户的订阅（按添加顺序）
func (s *Store) Subscriptions(ctx context.Context, userID int64) ([]string, error) {
	var tickers []string
	err := s.DB.WithContext(ctx).
		Model(&Subscription{}).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("ticker ASC").
		Pluck("ticker", &tickers).Error
	return tickers, err
}

// Rankings 按订阅人数倒序返回所有代码
func (s *Store) Rankings(ctx context.Context) ([]Ranking, error) {
	var list []Ranking
	err := s.DB.WithContext(ctx).
		Model(&Subscription{}).
		Select("ticker, COUNT(*) AS count").
		Group("ticker").
		Order("count DESC").
		Order("ticker ASC").
		Scan(&list).Error
	return list, err
}

// withSilentLogger 对预期内可能查不到记录的查询关闭 gorm 日志
func (s *Store) withSilentLogger() *gorm.DB {
	return s.DB.Session(&gorm.Session{Logger: s.DB.Logger.LogMode(logger.Silent)})
}
