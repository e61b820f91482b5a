package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LJTian/TickerPulse/internal/api"
	"github.com/LJTian/TickerPulse/internal/app"
	"github.com/LJTian/TickerPulse/internal/config"
	"github.com/LJTian/TickerPulse/internal/scheduler"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

// run 返回前会依次停止调度、关闭存储，main 只负责退出码
func run() error {
	cfg := config.Load()
	closeLog, err := config.SetupLogging(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app failed: %w", err)
	}
	defer a.Close()

	// 接口值不能持有 nil 指针，数据库不可用时显式传 nil
	var (
		store    api.NewsStore
		pipeline api.PipelineRunner
	)
	if a.Store != nil {
		store = a.Store
		pipeline = a.Pipeline

		s, err := scheduler.New(cfg.CronSpec, cfg.CollectHours, a.Pipeline)
		if err != nil {
			return fmt.Errorf("init scheduler failed: %w", err)
		}
		s.Start()
		defer s.Stop()
	} else {
		log.Println("warn: running without database, scheduler disabled")
	}

	r := gin.Default()
	// 若配置了全局访问密码，则启用 Basic Auth 保护（/health 仍然免认证）
	if cfg.BasicAuthUser != "" && cfg.BasicAuthPass != "" {
		r.Use(api.BasicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass))
	}

	apiServer := api.NewServer(a.Collector, store, a.Digest, pipeline, cfg.CollectHours)
	apiServer.RegisterRoutes(r)

	srv := &http.Server{Addr: ":" + cfg.AppPort, Handler: r}
	serveErr := make(chan error, 1)
	go func() {
		log.Printf("starting api server at %s ...", srv.Addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exit: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("shutting down api server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}
	return nil
}
