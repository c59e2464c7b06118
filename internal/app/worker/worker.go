package worker

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"image-server/internal/app"
	kafka_impl "image-server/internal/broker/kafka"
	"image-server/internal/config"
	"image-server/internal/worker"

	"github.com/wb-go/wbf/zlog"
)

// Worker is the thumbnail worker process: it consumes tasks published by
// the server and regenerates thumbnails through the image coordinator.
type Worker struct {
	cfg      *config.Config
	logger   *zlog.Zerolog
	deps     *app.Deps
	consumer *kafka_impl.ConsumerClient
	worker   *worker.Worker
}

func NewWorker(cfg *config.Config, logger *zlog.Zerolog) (*Worker, error) {
	// the worker regenerates thumbnails itself, so nothing is queued back
	deps, err := app.BuildDeps(context.Background(), cfg, nil, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build dependencies: %w", err)
	}

	consumer := kafka_impl.NewConsumerClient(cfg)

	logger.Info().
		Strs("brokers", cfg.Kafka.Brokers).
		Str("topic", cfg.Kafka.Topic).
		Str("group", cfg.Kafka.GroupID).
		Int("concurrency", cfg.Worker.Concurrency).
		Msg("Worker configuration")

	return &Worker{
		cfg:      cfg,
		logger:   logger,
		deps:     deps,
		consumer: consumer,
		worker:   worker.NewWorker(consumer, deps.Images, cfg.Worker.Concurrency, cfg.DefaultRetryStrategy(), logger),
	}, nil
}

func (w *Worker) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := w.worker.Run(ctx)

	if cerr := w.consumer.Close(); cerr != nil {
		w.logger.Error().Err(cerr).Msg("Failed to close consumer")
	}
	if cerr := w.deps.Close(); cerr != nil {
		w.logger.Error().Err(cerr).Msg("Failed to release dependencies")
	}

	w.logger.Info().Msg("Worker stopped gracefully")
	return err
}
