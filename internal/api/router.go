package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/LJTian/TickerPulse/internal/collector"
	"github.com/LJTian/TickerPulse/internal/scheduler"
	"github.com/LJTian/TickerPulse/internal/storage"
	"github.com/gin-gonic/gin"
)

// LiveCollector 实时采集入口，由 collector.Runner 实现
type LiveCollector interface {
	Recent(ctx context.Context, hours int) []collector.ArticleRecord
	ByTicker(ctx context.Context, ticker string) []collector.ArticleRecord
}

// NewsStore 已入库数据的查询接口，由 storage.Store 实现
type NewsStore interface {
	RecentArticles(ctx context.Context, hours int) ([]storage.News, error)
	RecentAnalyses(ctx context.Context, hours int) ([]storage.AINews, error)
	AnalysesByTicker(ctx context.Context, ticker string, limit int) ([]storage.AINews, error)
	Rankings(ctx context.Context) ([]storage.Ranking, error)
}

type DigestBuilder interface {
	ForTicker(ctx context.Context, ticker string, limit int) (string, error)
}

type PipelineRunner interface {
	Run(ctx context.Context, hours int) (scheduler.Result, error)
}

type Server struct {
	engine   LiveCollector
	store    NewsStore
	digest   DigestBuilder
	pipeline PipelineRunner

	defaultHours int
}

func NewServer(engine LiveCollector, store NewsStore, digest DigestBuilder, pipeline PipelineRunner, defaultHours int) *Server {
	if defaultHours <= 0 {
		defaultHours = 24
	}
	return &Server{
		engine:       engine,
		store:        store,
		digest:       digest,
		pipeline:     pipeline,
		defaultHours: defaultHours,
	}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/news/recent", s.recentNews)
		v1.GET("/news/ticker/:ticker", s.tickerNews)
		v1.GET("/news/stored", s.storedNews)
		v1.GET("/analysis", s.listAnalysis)
		v1.GET("/digest/:ticker", s.tickerDigest)
		v1.GET("/rank", s.rank)
		v1.POST("/collect", s.collect)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// hoursParam 读取 ?hours=，缺省或非法时取默认值，负数交给下层按 0 处理
func (s *Server) hoursParam(c *gin.Context) int {
	hours, err := strconv.Atoi(c.Query("hours"))
	if err != nil {
		return s.defaultHours
	}
	return hours
}

func (s *Server) recentNews(c *gin.Context) {
	items := s.engine.Recent(c.Request.Context(), s.hoursParam(c))
	ok(c, items)
}

func (s *Server) tickerNews(c *gin.Context) {
	ticker := storage.NormalizeTicker(c.Param("ticker"))
	if ticker == "" {
		badRequest(c, "ticker is required")
		return
	}
	ok(c, s.engine.ByTicker(c.Request.Context(), ticker))
}

func (s *Server) storedNews(c *gin.Context) {
	if s.store == nil {
		unavailable(c)
		return
	}
	items, err := s.store.RecentArticles(c.Request.Context(), s.hoursParam(c))
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) listAnalysis(c *gin.Context) {
	if s.store == nil {
		unavailable(c)
		return
	}
	var (
		items []storage.AINews
		err   error
	)
	if ticker := c.Query("ticker"); ticker != "" {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "5"))
		items, err = s.store.AnalysesByTicker(c.Request.Context(), ticker, limit)
	} else {
		items, err = s.store.RecentAnalyses(c.Request.Context(), s.hoursParam(c))
	}
	if err != nil {
		internalError(c)
		return
	}
	ok(c, items)
}

func (s *Server) tickerDigest(c *gin.Context) {
	ticker := storage.NormalizeTicker(c.Param("ticker"))
	if ticker == "" {
		badRequest(c, "ticker is required")
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	text, err := s.digest.ForTicker(c.Request.Context(), ticker, limit)
	if err != nil {
		internalError(c)
		return
	}
	ok(c, gin.H{"ticker": ticker, "digest": text})
}

func (s *Server) rank(c *gin.Context) {
	if s.store == nil {
		unavailable(c)
		return
	}
	list, err := s.store.Rankings(c.Request.Context())
	if err != nil {
		internalError(c)
		return
	}
	ok(c, list)
}

func (s *Server) collect(c *gin.Context) {
	if s.pipeline == nil {
		unavailable(c)
		return
	}
	res, err := s.pipeline.Run(c.Request.Context(), s.hoursParam(c))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "collect_failed",
			"message": err.Error(),
			"data":    res,
		})
		return
	}
	ok(c, res)
}

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "bad_request",
		"message": msg,
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}

func unavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"code":    "unavailable",
		"message": "database unavailable",
	})
}
