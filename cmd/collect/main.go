package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/LJTian/TickerPulse/internal/app"
	"github.com/LJTian/TickerPulse/internal/config"
	"github.com/LJTian/TickerPulse/internal/storage"
)

// 一个仅执行一次采集任务的命令行入口：适合手动回填历史新闻
func main() {
	days := flag.Int("days", 10, "collect news for the last N days")
	hours := flag.Int("hours", 0, "collect news for the last N hours (overrides -days)")
	csvPath := flag.String("csv", "", "also append collected articles to this CSV file")
	flag.Parse()

	window := *days * 24
	if *hours > 0 {
		window = *hours
	}

	if err := run(window, *csvPath); err != nil {
		log.Fatal(err)
	}
}

func run(window int, csvPath string) error {
	cfg := config.Load()
	closeLog, err := config.SetupLogging(cfg.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := context.WithTimeout(context.Background(), time.Hour)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init app failed: %w", err)
	}
	defer a.Close()

	if csvPath != "" {
		// CSV 导出不依赖数据库
		records := a.Collector.Recent(ctx, window)
		added, err := storage.AppendCSV(csvPath, records)
		if err != nil {
			return fmt.Errorf("export csv: %w", err)
		}
		log.Printf("csv: appended %d of %d articles to %s", added, len(records), csvPath)
	}

	if a.Pipeline == nil {
		if csvPath != "" {
			return nil
		}
		return errors.New("database unavailable, nothing to do")
	}

	res, err := a.Pipeline.Run(ctx, window)
	if err != nil {
		return fmt.Errorf("collect failed: %w", err)
	}
	log.Printf("collect done: hours=%d collected=%d saved=%d analysed=%d savedAnalyses=%d",
		window, res.Collected, res.Saved, res.Analysed, res.SavedAnalyses)
	return nil
}
