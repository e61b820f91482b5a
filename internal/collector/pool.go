package collector

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool 限制同时进行的阻塞操作数量，超出的请求排队等待而不是失败
type Pool struct {
	sem *semaphore.Weighted
}

func NewPool(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size))}
}

// Do 占用一个槽位执行 fn；ctx 在排队期间结束时返回其错误，fn 不会执行
func (p *Pool) Do(ctx context.Context, fn func()) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer p.sem.Release(1)
	fn()
	return nil
}
