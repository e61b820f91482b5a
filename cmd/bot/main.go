package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/TickerPulse/internal/app"
	"github.com/LJTian/TickerPulse/internal/bot"
	"github.com/LJTian/TickerPulse/internal/config"
	"github.com/LJTian/TickerPulse/internal/scheduler"
)

// Telegram 机器人入口：长轮询处理命令，同时按 CRON_SPEC 运行采集流水线
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg := config.Load()
	if cfg.TelegramToken == "" {
		return errors.New("TELEGRAM_TOKEN not set")
	}
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

	var subs bot.SubscriptionStore
	if a.Store != nil {
		subs = a.Store

		s, err := scheduler.New(cfg.CronSpec, cfg.CollectHours, a.Pipeline)
		if err != nil {
			return fmt.Errorf("init scheduler failed: %w", err)
		}
		s.Start()
		defer s.Stop()
	}

	client, err := bot.NewClient(cfg.TelegramToken, "")
	if err != nil {
		return err
	}
	b := bot.New(client, subs, a.Digest, a.Collector)
	b.SetLogFile(cfg.LogFile)
	if err := b.Run(ctx); err != nil {
		log.Printf("bot exit: %v", err)
	}
	log.Println("bot stopped")
	return nil
}
