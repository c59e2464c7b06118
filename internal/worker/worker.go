package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"image-server/internal/broker"
	"image-server/internal/domain"
	"image-server/internal/metrics"
	image_uc "image-server/internal/usecase/image"

	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type thumbnailRegenerator interface {
	RegenerateThumbnail(ctx context.Context, id string) (*domain.Image, error)
}

// Worker drains thumbnail tasks with a fixed number of goroutines. A failing
// task is retried in place; once retries run out it is committed anyway so
// later offsets of the partition are never blocked behind it.
type Worker struct {
	consumer    broker.Consumer
	images      thumbnailRegenerator
	retries     retry.Strategy
	logger      *zlog.Zerolog
	concurrency int
	wg          sync.WaitGroup
}

func NewWorker(consumer broker.Consumer, images thumbnailRegenerator, concurrency int, retries retry.Strategy, logger *zlog.Zerolog) *Worker {
	if concurrency <= 0 {
		concurrency = 1
	}
	if retries.Attempts <= 0 {
		retries.Attempts = 1
	}

	return &Worker{
		consumer:    consumer,
		images:      images,
		retries:     retries,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Run blocks until ctx is done and every goroutine has returned.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info().Int("concurrency", w.concurrency).Msg("Starting worker")

	messages := make(chan *broker.Message, w.concurrency*2)
	w.consumer.Start(ctx, messages)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go func(id int) {
			defer w.wg.Done()
			w.processWorker(ctx, id, messages)
		}(i)
	}

	<-ctx.Done()
	w.logger.Info().Msg("Shutting down worker gracefully")
	w.wg.Wait()

	return nil
}

func (w *Worker) processWorker(ctx context.Context, id int, messages <-chan *broker.Message) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug().Int("worker_id", id).Msg("Worker stopping")
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			startTime := time.Now()
			err := retry.DoContext(ctx, w.retries, func() error {
				return w.safeProcessMessage(ctx, id, msg)
			})
			if err != nil && ctx.Err() != nil {
				w.logger.Warn().
					Err(err).
					Int("worker_id", id).
					Int64("offset", msg.Offset).
					Msg("Shutdown interrupted message, leaving it uncommitted")
				return
			}

			if err != nil {
				metrics.WorkerTasksTotal.WithLabelValues("failed").Inc()
				w.logger.Error().
					Err(err).
					Int("worker_id", id).
					Int("attempts", w.retries.Attempts).
					Int64("offset", msg.Offset).
					Msg("Giving up on message after retries")
			} else {
				metrics.WorkerTasksTotal.WithLabelValues("done").Inc()
			}

			if err := w.consumer.Commit(ctx, msg); err != nil {
				w.logger.Error().
					Err(err).
					Int("worker_id", id).
					Int64("offset", msg.Offset).
					Msg("Failed to commit message")
				continue
			}

			w.logger.Debug().
				Int("worker_id", id).
				Int64("offset", msg.Offset).
				Dur("duration", time.Since(startTime)).
				Msg("Message processed and committed")
		}
	}
}

func (w *Worker) safeProcessMessage(ctx context.Context, workerID int, msg *broker.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error().
				Int("worker_id", workerID).
				Interface("panic", r).
				Int64("offset", msg.Offset).
				Msg("Panic recovered while processing message")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.processMessage(ctx, msg)
}

// processMessage returns nil for tasks that can never succeed, so they are
// committed instead of redelivered.
func (w *Worker) processMessage(ctx context.Context, msg *broker.Message) error {
	var task domain.ThumbnailTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		w.logger.Error().Err(err).Int64("offset", msg.Offset).Msg("Dropping malformed thumbnail task")
		return nil
	}

	w.logger.Info().
		Str("task_id", task.ID).
		Str("image_id", task.ImageID).
		Str("reason", task.Reason).
		Msg("Regenerating thumbnail")

	img, err := w.images.RegenerateThumbnail(ctx, task.ImageID)
	if errors.Is(err, image_uc.ErrNotFound) {
		w.logger.Warn().Err(err).Str("image_id", task.ImageID).Msg("Image is gone, dropping thumbnail task")
		return nil
	}
	if errors.Is(err, image_uc.ErrConflict) {
		w.logger.Warn().Err(err).Str("image_id", task.ImageID).Msg("Image changed during regeneration, dropping thumbnail task")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to regenerate thumbnail for %s: %w", task.ImageID, err)
	}

	w.logger.Info().
		Str("image_id", img.ID).
		Str("thumbnail", img.ThumbnailPath).
		Msg("Thumbnail regenerated")

	return nil
}
