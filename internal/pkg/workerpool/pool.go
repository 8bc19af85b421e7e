package workerpool

import (
	"errors"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

var (
	ErrPoolClosed = errors.New("worker pool is closed")
)

// Config Worker Pool 配置
type Config struct {
	Workers  int  // worker 数量
	NonBlock bool // 队列满时是否立即返回错误
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Workers:  32,
		NonBlock: false,
	}
}

// Statistics 统计信息
type Statistics struct {
	mu sync.RWMutex

	Submitted int64 // 已提交
	Completed int64 // 已完成
	Failed    int64 // 失败
}

func (s *Statistics) incSubmitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Submitted++
}

func (s *Statistics) incCompleted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Completed++
}

func (s *Statistics) incFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Failed++
}

func (s *Statistics) Get() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Statistics{
		Submitted: s.Submitted,
		Completed: s.Completed,
		Failed:    s.Failed,
	}
}

// Pool 基于 ants 的 worker pool，用于批量任务的并发执行
type Pool struct {
	pool   *ants.Pool
	logger *zap.Logger
	stats  Statistics

	mu     sync.RWMutex
	closed bool
}

// New 创建 worker pool
func New(cfg *Config, logger *zap.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultConfig().Workers
	}

	opts := []ants.Option{
		ants.WithNonblocking(cfg.NonBlock),
	}
	if logger != nil {
		opts = append(opts, ants.WithPanicHandler(func(v interface{}) {
			logger.Error("worker panic recovered", zap.Any("panic", v))
		}))
	}

	p, err := ants.NewPool(cfg.Workers, opts...)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("worker pool initialized", zap.Int("workers", cfg.Workers))
	}

	return &Pool{
		pool:   p,
		logger: logger,
	}, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}

	p.stats.incSubmitted()

	err := p.pool.Submit(func() {
		task()
		p.stats.incCompleted()
	})
	if err != nil {
		p.stats.incFailed()
		return err
	}

	return nil
}

// Map 并发执行 n 个任务并等待全部完成，顺序由调用方通过下标保证
func (p *Pool) Map(n int, task func(i int)) error {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		err := p.Submit(func() {
			defer wg.Done()
			task(i)
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return err
		}
	}
	wg.Wait()
	return nil
}

// Running 返回正在运行的 worker 数量
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Stats 返回统计信息快照
func (p *Pool) Stats() Statistics {
	return p.stats.Get()
}

// Release 关闭 worker pool
func (p *Pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	p.pool.Release()

	if p.logger != nil {
		p.logger.Info("worker pool released")
	}
}
