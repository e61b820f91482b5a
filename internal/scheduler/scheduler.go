package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// 定时任务单轮的最长运行时间
const runTimeout = 30 * time.Minute

type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	hours    int
}

func New(spec string, hours int, p *Pipeline) (*Scheduler, error) {
	// 上一轮尚未结束时跳过本轮，避免重复采集
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	s := &Scheduler{
		cron:     c,
		pipeline: p,
		hours:    hours,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与启动阶段的其他初始化争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

// Stop 停止调度并等待正在运行的任务结束
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Cron 暴露底层 cron，便于注册额外任务
func (s *Scheduler) Cron() *cron.Cron {
	return s.cron
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("start collect job...")
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	res, err := s.pipeline.Run(ctx, s.hours)
	if err != nil {
		log.Printf("collect job error: %v", err)
		return
	}
	log.Printf("collect job done: collected=%d saved=%d analysed=%d", res.Collected, res.Saved, res.Analysed)
}
