package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"paperflow_backend/internal/model"
	"paperflow_backend/internal/util"
	"paperflow_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// JobProcessor 由 PipelineService 实现
type JobProcessor interface {
	StartProcessing(ctx context.Context, id string) (*model.TestPaper, error)
}

// Dispatcher 异步派发处理任务，结果通过轮询任务状态获取
type Dispatcher interface {
	Enqueue(ctx context.Context, jobID string) error
	// Run 启动工作协程，阻塞到 ctx 取消
	Run(ctx context.Context) error
}

func runOne(ctx context.Context, processor JobProcessor, log *zap.Logger, jobID string) {
	if _, err := processor.StartProcessing(ctx, jobID); err != nil {
		// 失败已经落在任务的 lastError 上，这里只记录
		level := log.Warn
		if errors.Is(err, util.ErrInvalidState) || errors.Is(err, util.ErrNotFound) {
			level = log.Info
		}
		level("Queued processing did not complete", zap.String("job_id", jobID), zap.Error(err))
	}
}

// LocalDispatcher 进程内有界队列
type LocalDispatcher struct {
	processor JobProcessor
	workers   int
	queue     chan string
}

func NewLocalDispatcher(processor JobProcessor, workers, capacity int) *LocalDispatcher {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 64
	}
	return &LocalDispatcher{processor: processor, workers: workers, queue: make(chan string, capacity)}
}

func (d *LocalDispatcher) Enqueue(ctx context.Context, jobID string) error {
	select {
	case d.queue <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("%w: processing queue is full", util.ErrQueueUnavailable)
	}
}

func (d *LocalDispatcher) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		log := logger.ForWorker("local", i)
		g.Go(func() error {
			for {
				select {
				case <-gCtx.Done():
					return nil
				case jobID := <-d.queue:
					runOne(gCtx, d.processor, log, jobID)
				}
			}
		})
	}
	return g.Wait()
}

// RedisDispatcher 基于 Redis list 的队列，LPUSH 入队、BRPOP 出队，多实例共享
type RedisDispatcher struct {
	processor JobProcessor
	client    *redis.Client
	key       string
	workers   int
	poll      time.Duration
}

func NewRedisDispatcher(processor JobProcessor, client *redis.Client, key string, workers int) *RedisDispatcher {
	if workers < 1 {
		workers = 1
	}
	return &RedisDispatcher{processor: processor, client: client, key: key, workers: workers, poll: 5 * time.Second}
}

func (d *RedisDispatcher) Enqueue(ctx context.Context, jobID string) error {
	if err := d.client.LPush(ctx, d.key, jobID).Err(); err != nil {
		return fmt.Errorf("%w: enqueue: %v", util.ErrQueueUnavailable, err)
	}
	return nil
}

func (d *RedisDispatcher) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	for i := 0; i < d.workers; i++ {
		log := logger.ForWorker("redis", i)
		g.Go(func() error {
			for {
				if gCtx.Err() != nil {
					return nil
				}
				res, err := d.client.BRPop(gCtx, d.poll, d.key).Result()
				if err != nil {
					if errors.Is(err, redis.Nil) {
						continue
					}
					if gCtx.Err() != nil {
						return nil
					}
					log.Error("Queue pop failed", zap.Error(err))
					select {
					case <-gCtx.Done():
						return nil
					case <-time.After(time.Second):
					}
					continue
				}
				// BRPOP 返回 [key, value]
				if len(res) == 2 {
					runOne(gCtx, d.processor, log, res[1])
				}
			}
		})
	}
	return g.Wait()
}
