package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/TickerPulse/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Source 描述一个 RSS 源，启动时与注册表同步
type Source struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Code    string `gorm:"size:64;uniqueIndex" json:"code"`
	Name    string `gorm:"size:256" json:"name"`
	BaseURL string `gorm:"size:512" json:"baseUrl"`
	Status  string `gorm:"size:32;index" json:"status"` // active / disabled

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// News 原始新闻，link 唯一，重复插入直接忽略
type News struct {
	ID          string    `gorm:"primaryKey;size:40" json:"id"`
	Source      string    `gorm:"size:256;index" json:"source"`
	Title       string    `gorm:"size:512" json:"title"`
	Link        string    `gorm:"size:1024;uniqueIndex" json:"link"`
	Body        string    `gorm:"type:text" json:"body"`
	PublishedAt time.Time `gorm:"index" json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

const listCacheTTL = 5 * time.Minute

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return NewStoreWithDB(db, rdb)
}

// NewStoreWithDB 使用已打开的连接并完成建表；rdb 可以为 nil，此时不做缓存
func NewStoreWithDB(db *gorm.DB, rdb *redis.Client) (*Store, error) {
	if err := db.AutoMigrate(&Source{}, &News{}, &AINews{}, &Subscription{}); err != nil {
		return nil, err
	}
	return &Store{DB: db, Redis: rdb}, nil
}

// Close 关闭数据库与 Redis 连接
func (s *Store) Close() error {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureSource 确保某个源存在
func (s *Store) EnsureSource(code, name, baseURL string) (*Source, error) {
	src := &Source{}
	if err := s.withSilentLogger().Where("code = ?", code).First(src).Error; err == nil {
		return src, nil
	}

	src = &Source{
		Code:    code,
		Name:    name,
		BaseURL: baseURL,
		Status:  "active",
	}
	if err := s.DB.Create(src).Error; err != nil {
		return nil, err
	}
	return src, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（部分源可能含 cp1251 混编）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度（例如 varchar(512)）。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

func newsFromProcessed(it processor.ProcessedArticle) News {
	return News{
		ID:          it.ID,
		Source:      truncateRunesDB(toValidUTF8(it.Source), 256),
		Title:       truncateRunesDB(toValidUTF8(it.Title), 512),
		Link:        it.Link,
		Body:        toValidUTF8(it.Body),
		PublishedAt: it.PublishedAt,
	}
}

// SaveArticles 保存一批新闻，link 已存在的忽略；返回实际插入条数
func (s *Store) SaveArticles(items []processor.ProcessedArticle) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}
	rows := make([]News, 0, len(items))
	for _, it := range items {
		rows = append(rows, newsFromProcessed(it))
	}

	// 以 link 作为幂等键：ON CONFLICT (link) DO NOTHING
	res := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "link"}},
		DoNothing: true,
	}).CreateInBatches(rows, 100)
	if res.Error != nil {
		return 0, res.Error
	}
	// 这里不做按 key 通配删除，完全依赖短 TTL 的缓存自然过期
	return int(res.RowsAffected), nil
}

// RecentArticles 返回最近 hours 小时内入库的新闻，按发布时间倒序
func (s *Store) RecentArticles(ctx context.Context, hours int) ([]News, error) {
	if hours < 0 {
		hours = 0
	}
	cacheKey := fmt.Sprintf("news:recent:%d", hours)

	var list []News
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

// ArticlesByTicker 在标题和正文中查找包含 ticker 的新闻（不区分大小写）
func (s *Store) ArticlesByTicker(ctx context.Context, ticker string, limit int) ([]News, error) {
	ticker = NormalizeTicker(ticker)
	if ticker == "" {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	cacheKey := fmt.Sprintf("news:ticker:%s:%d", ticker, limit)

	var list []News
	if s.getCache(ctx, cacheKey, &list) {
		return list, nil
	}

	if err := s.DB.WithContext(ctx).
		Where("UPPER(title || ' ' || COALESCE(body, '')) LIKE ?", "%"+ticker+"%").
		Order("published_at DESC").
		Limit(limit).
		Find(&list).Error; err != nil {
		return nil, err
	}

	if len(list) > 0 {
		s.setCache(ctx, cacheKey, list)
	}
	return list, nil
}

// getCache / setCache 是 Redis 上的一层 JSON 缓存，Redis 不可用时静默跳过
func (s *Store) getCache(ctx context.Context, key string, dst any) bool {
	if s.Redis == nil {
		return false
	}
	bs, err := s.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	return json.Unmarshal(bs, dst) == nil
}

func (s *Store) setCache(ctx context.Context, key string, v any) {
	if s.Redis == nil {
		return
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = s.Redis.Set(ctx, key, bs, listCacheTTL).Err()
}
