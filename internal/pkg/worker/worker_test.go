package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"benefits_gateway/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func init() {
	logger.Init(true)
}

func TestPoolRunsSubmittedTask(t *testing.T) {
	pool := NewPool(2, 10)
	pool.Start()

	var runs int32
	pool.Submit(ShadowTask{
		Name: "test_task",
		Run: func(ctx context.Context) error {
			atomic.AddInt32(&runs, 1)
			return nil
		},
	})

	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&runs) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPoolRetriesFailedTask(t *testing.T) {
	pool := NewPool(1, 10)
	pool.Start()

	var attempts int32
	pool.Submit(ShadowTask{
		Name: "flaky_task",
		Run: func(ctx context.Context) error {
			if atomic.AddInt32(&attempts, 1) == 1 {
				return errors.New("cache busy")
			}
			return nil
		},
	})

	// 重试带退避延迟，放宽等待时间
	assert.Eventually(t, func() bool {
		return atomic.LoadInt32(&attempts) >= 2
	}, 5*time.Second, 50*time.Millisecond)
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	// 不启动 worker，队列容量 1：第二个任务应被丢弃而不是阻塞
	pool := NewPool(1, 1)

	task := ShadowTask{Name: "noop", Run: func(ctx context.Context) error { return nil }}

	done := make(chan struct{})
	go func() {
		pool.Submit(task)
		pool.Submit(task)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
	assert.Len(t, pool.TaskQueue, 1)
}
