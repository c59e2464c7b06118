package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	kafka_impl "image-server/internal/broker/kafka"
	"image-server/internal/config"
	image_h "image-server/internal/http-server/handler/image"
	"image-server/internal/http-server/router"

	"github.com/wb-go/wbf/zlog"
)

type App struct {
	cfg      *config.Config
	server   *http.Server
	logger   *zlog.Zerolog
	deps     *Deps
	producer *kafka_impl.ProducerClient
}

func NewApp(cfg *config.Config, logger *zlog.Zerolog) (*App, error) {
	var (
		producer *kafka_impl.ProducerClient
		queue    ThumbnailQueue
	)
	if cfg.Kafka.Enabled {
		producer = kafka_impl.NewProducerClient(cfg)
		queue = producer
	}

	deps, err := BuildDeps(context.Background(), cfg, queue, logger)
	if err != nil {
		if producer != nil {
			producer.Close()
		}
		return nil, fmt.Errorf("failed to build dependencies: %w", err)
	}

	imageHandler := image_h.NewImageHandler(deps.Images, deps.Store, cfg.Storage.MaxFileSize, logger)

	h := &router.Handler{
		ImageHandler: imageHandler,
		Ready:        deps.DB.Ping,
		StaticDir:    cfg.Server.StaticDir,
		TemplatesDir: cfg.Server.TemplatesDir,
	}

	mux := router.SetupRouter(h)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &App{
		cfg:      cfg,
		server:   server,
		logger:   logger,
		deps:     deps,
		producer: producer,
	}, nil
}

func (a *App) Run() error {
	a.logger.Info().Str("addr", a.cfg.Server.Addr).Msg("Starting server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go a.handleSignals(cancel)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		a.logger.Error().Err(err).Msg("Server error")
		a.close()
		return err
	case <-ctx.Done():
		a.logger.Info().Msg("Shutting down server")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("Server shutdown failed")
		}

		a.close()

		a.logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

func (a *App) close() {
	if err := a.deps.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to release dependencies")
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Failed to close producer")
		}
	}
}

func (a *App) handleSignals(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	a.logger.Info().Str("signal", sig.String()).Msg("Received signal")
	cancel()
}
