package worker

import (
	"context"
	"time"

	"benefits_gateway/pkg/logger"

	"go.uber.org/zap"
)

// ShadowTask 一次失败后待重试的影子缓存写
// 权威服务调用已经成功，这里的重试只负责让本地缓存追上来，
// 无论成功与否都不改变已经返回给调用方的结果
type ShadowTask struct {
	Name  string
	Run   func(ctx context.Context) error
	Retry int // 已重试次数
}

// Pool 影子写重试池
type Pool struct {
	TaskQueue  chan ShadowTask
	RetryQueue chan ShadowTask
	WorkerNum  int
	MaxRetry   int
	Timeout    time.Duration // 单次重试的超时
}

// NewPool 创建影子写重试池
func NewPool(workerNum, bufferSize int) *Pool {
	return &Pool{
		TaskQueue:  make(chan ShadowTask, bufferSize),
		RetryQueue: make(chan ShadowTask, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   3,
		Timeout:    10 * time.Second,
	}
}

// Start 启动 worker
func (p *Pool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		go p.worker(i)
	}
	go p.retryWorker()
	logger.Log.Info("Shadow write pool started", zap.Int("workers", p.WorkerNum))
}

// Submit 提交任务，队列满时丢弃（影子写本身就是尽力而为）
func (p *Pool) Submit(task ShadowTask) {
	select {
	case p.TaskQueue <- task:
	default:
		logger.Log.Warn("Shadow write queue full, task dropped", zap.String("task", task.Name))
	}
}

func (p *Pool) worker(id int) {
	for task := range p.TaskQueue {
		ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
		err := task.Run(ctx)
		cancel()
		if err == nil {
			continue
		}

		logger.Log.Warn("Shadow write failed",
			zap.Int("worker", id),
			zap.String("task", task.Name),
			zap.Int("attempt", task.Retry),
			zap.Error(err))

		if task.Retry < p.MaxRetry {
			task.Retry++
			select {
			case p.RetryQueue <- task:
			default:
				logger.Log.Warn("Retry queue full, task dropped", zap.String("task", task.Name))
			}
		} else {
			// 放弃：下一次成功的全量分区刷新会覆盖这里的缺口
			logger.Log.Warn("Shadow write exceeded max retries, dropped", zap.String("task", task.Name))
		}
	}
}

func (p *Pool) retryWorker() {
	for task := range p.RetryQueue {
		// 延迟重试，避免立即重试
		time.Sleep(time.Duration(task.Retry) * time.Second)

		select {
		case p.TaskQueue <- task:
		default:
			logger.Log.Warn("Main queue full, retry dropped", zap.String("task", task.Name))
		}
	}
}
