package worker

import (
	"context"
	"keyshop/pkg/logger"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task 队列中的任务，只携带 ID，处理时再从存储中读取最新状态
type Task struct {
	ID    string
	Retry int // 重试次数
}

// Handler 处理单个任务，返回错误时按重试策略重新入队
type Handler func(ctx context.Context, task Task) error

// DeadLetter 超过重试次数或队列满时的回调
type DeadLetter func(task Task, err error)

type WorkerPool struct {
	TaskQueue  chan Task
	RetryQueue chan Task // 重试队列
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	RetryDelay time.Duration // 第 n 次重试等待 n*RetryDelay

	handler    Handler
	deadLetter DeadLetter
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

func NewWorkerPool(handler Handler, workerNum int, bufferSize int) *WorkerPool {
	if workerNum < 1 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		TaskQueue:  make(chan Task, bufferSize),
		RetryQueue: make(chan Task, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		RetryDelay: time.Second,
		handler:    handler,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnDeadLetter 设置死信回调
func (p *WorkerPool) OnDeadLetter(fn DeadLetter) {
	p.deadLetter = fn
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	logger.Log.Info("worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止接收新任务，等待正在处理的任务结束
func (p *WorkerPool) Stop() {
	p.stopOnce.Do(func() {
		p.cancel()
		p.wg.Wait()
	})
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.TaskQueue:
			p.process(id, task)
		}
	}
}

func (p *WorkerPool) process(id int, task Task) {
	err := p.handler(p.ctx, task)
	if err == nil {
		return
	}
	logger.Log.Warn("task failed",
		zap.Int("worker", id),
		zap.String("task_id", task.ID),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry >= p.MaxRetry {
		p.logFailedTask(task, err)
		return
	}
	task.Retry++
	select {
	case p.RetryQueue <- task:
	default:
		p.logFailedTask(task, err)
	}
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-p.ctx.Done():
				return
			case <-time.After(time.Duration(task.Retry) * p.RetryDelay):
			}

			select {
			case p.TaskQueue <- task:
			default:
				p.logFailedTask(task, nil)
			}
		}
	}
}

func (p *WorkerPool) logFailedTask(task Task, err error) {
	logger.Log.Error("task dropped",
		zap.String("task_id", task.ID),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)
	if p.deadLetter != nil {
		p.deadLetter(task, err)
	}
}

// AddTask 非阻塞入队，队列满时直接进入死信
func (p *WorkerPool) AddTask(task Task) bool {
	select {
	case p.TaskQueue <- task:
		return true
	default:
		p.logFailedTask(task, nil)
		return false
	}
}
